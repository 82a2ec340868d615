// Package prefs manages the validated user settings record with
// import/export. Loads merge over defaults so saved data from older
// versions stays usable when new keys appear.
package prefs

import (
	"encoding/json"
	"fmt"
	"sync"

	govalidator "github.com/go-playground/validator/v10"
	"github.com/quizdrill/quizdrill-backend/internal/config"
	"github.com/quizdrill/quizdrill-backend/internal/model"
	"github.com/quizdrill/quizdrill-backend/internal/storage"
	"github.com/rs/zerolog"
)

// Manager owns the preferences record in the durable store.
type Manager struct {
	mu       sync.Mutex
	store    *storage.Store
	log      zerolog.Logger
	validate *govalidator.Validate
}

// New creates a preferences manager.
func New(store *storage.Store, log zerolog.Logger) *Manager {
	return &Manager{
		store:    store,
		log:      log.With().Str("component", "preferences").Logger(),
		validate: govalidator.New(),
	}
}

// Load returns the stored preferences merged over the defaults. A
// missing or unreadable record yields the defaults unchanged.
func (m *Manager) Load() model.Preferences {
	m.mu.Lock()
	defer m.mu.Unlock()

	prefs := model.DefaultPreferences()
	m.store.Read(config.StorageKey.PreferencesKey(), &prefs)
	if err := m.validate.Struct(prefs); err != nil {
		m.log.Warn().Err(err).Msg("stored preferences invalid, reverting to defaults")
		return model.DefaultPreferences()
	}
	return prefs
}

// Save validates and persists the full preferences record.
func (m *Manager) Save(prefs model.Preferences) error {
	if err := m.validate.Struct(prefs); err != nil {
		return fmt.Errorf("invalid preferences: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store.Write(config.StorageKey.PreferencesKey(), prefs)
	return nil
}

// Export serializes the current preferences for the user to download.
func (m *Manager) Export() ([]byte, error) {
	return json.MarshalIndent(m.Load(), "", "  ")
}

// Import replaces the preferences from an exported blob. Fails closed on
// malformed or invalid content without touching the stored record.
func (m *Manager) Import(blob []byte) error {
	prefs := model.DefaultPreferences()
	if err := json.Unmarshal(blob, &prefs); err != nil {
		return fmt.Errorf("malformed preferences blob: %w", err)
	}
	if err := m.Save(prefs); err != nil {
		return err
	}
	m.log.Info().Msg("preferences imported")
	return nil
}
