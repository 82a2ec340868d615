// Package registry holds the in-memory catalog of loaded exam
// definitions. Exams are parsed once and treated as immutable.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/quizdrill/quizdrill-backend/internal/model"
	"github.com/quizdrill/quizdrill-backend/internal/parser"
)

// ErrDuplicate is returned when registering an exam whose ID is taken.
var ErrDuplicate = fmt.Errorf("exam already registered")

// Registry is a concurrency-safe exam catalog.
type Registry struct {
	mu    sync.RWMutex
	exams map[string]*model.Exam
	log   zerolog.Logger
}

// New creates an empty registry.
func New(log zerolog.Logger) *Registry {
	return &Registry{
		exams: make(map[string]*model.Exam),
		log:   log.With().Str("component", "registry").Logger(),
	}
}

// LoadDir parses every *.md file in dir and registers the result. The
// file name without extension becomes the exam ID. Files that fail to
// parse are logged and skipped so one bad exam cannot block startup.
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read exams dir: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".md")
		content, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			r.log.Error().Err(err).Str("file", entry.Name()).Msg("failed to read exam file")
			continue
		}
		exam, err := parser.ParseExam(string(content), id)
		if err != nil {
			r.log.Error().Err(err).Str("file", entry.Name()).Msg("failed to parse exam file")
			continue
		}
		if err := r.Register(exam); err != nil {
			r.log.Warn().Err(err).Str("exam_id", id).Msg("skipping exam")
			continue
		}
		loaded++
	}

	r.log.Info().Int("count", loaded).Str("dir", dir).Msg("exams loaded")
	return nil
}

// Register adds an exam to the catalog. Duplicate IDs are rejected.
func (r *Registry) Register(exam *model.Exam) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.exams[exam.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicate, exam.ID)
	}
	r.exams[exam.ID] = exam
	return nil
}

// Get returns the exam with the given ID, or false if absent.
func (r *Registry) Get(id string) (*model.Exam, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exam, ok := r.exams[id]
	return exam, ok
}

// List returns all exams sorted by ID.
func (r *Registry) List() []*model.Exam {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.Exam, 0, len(r.exams))
	for _, exam := range r.exams {
		out = append(out, exam)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
