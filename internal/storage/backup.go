package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/quizdrill/quizdrill-backend/internal/model"
)

const fullBackupVersion = 1

// FullBackup is the whole-store export blob used for disaster recovery.
type FullBackup struct {
	Version   int                        `json:"version"`
	Timestamp time.Time                  `json:"timestamp"`
	Data      map[string]json.RawMessage `json:"data"`
}

// CreateFullBackup serializes every primary record into a single blob.
// Backup copies are not exported; they are rebuilt on the next write.
func (s *Store) CreateFullBackup() ([]byte, error) {
	defer s.flush()
	s.mu.Lock()
	defer s.mu.Unlock()

	backup := FullBackup{
		Version:   fullBackupVersion,
		Timestamp: s.now(),
		Data:      make(map[string]json.RawMessage),
	}
	for _, key := range s.primaryKeysLocked() {
		raw, ok, err := s.medium.Get(key)
		if !ok || err != nil {
			continue
		}
		backup.Data[key] = raw
	}
	return json.Marshal(backup)
}

// RestoreFullBackup replaces the whole store from a backup blob
// (clear-then-write). It fails closed: a malformed blob or a write
// failure rolls the store back and returns false, with an unrecoverable
// corrupted_data error emitted.
func (s *Store) RestoreFullBackup(blob []byte) bool {
	defer s.flush()
	var backup FullBackup
	if err := json.Unmarshal(blob, &backup); err != nil {
		s.emit(model.StorageErrCorruptedData, fmt.Sprintf("restore: malformed backup blob: %v", err), false)
		return false
	}
	if backup.Version != fullBackupVersion || backup.Data == nil {
		s.emit(model.StorageErrCorruptedData, "restore: unsupported or empty backup blob", false)
		return false
	}
	// Validate every entry before touching the store.
	for key, raw := range backup.Data {
		if decodeRecord(raw, nil) != nil {
			s.emit(model.StorageErrCorruptedData, fmt.Sprintf("restore: invalid record %s in backup", key), false)
			return false
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Snapshot the current contents so a failed apply can roll back.
	snapshot := make(map[string][]byte)
	existing, err := s.medium.Keys()
	if err != nil {
		s.emit(model.StorageErrPermissionDenied, fmt.Sprintf("restore: list keys: %v", err), false)
		return false
	}
	for _, key := range existing {
		if raw, ok, err := s.medium.Get(key); ok && err == nil {
			snapshot[key] = raw
		}
	}

	for _, key := range existing {
		_ = s.medium.Delete(key)
	}

	for key, raw := range backup.Data {
		if err := s.medium.Set(key, raw); err != nil {
			s.rollbackLocked(snapshot)
			s.emit(model.StorageErrPermissionDenied, fmt.Sprintf("restore: write %s failed: %v", key, err), false)
			return false
		}
	}

	s.log.Info().Int("records", len(backup.Data)).Msg("full backup restored")
	return true
}

func (s *Store) rollbackLocked(snapshot map[string][]byte) {
	keys, err := s.medium.Keys()
	if err == nil {
		for _, key := range keys {
			_ = s.medium.Delete(key)
		}
	}
	for key, raw := range snapshot {
		if err := s.medium.Set(key, raw); err != nil {
			s.log.Error().Err(err).Str("key", key).Msg("rollback write failed")
		}
	}
}
