package storage

import (
	"errors"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrQuota is returned by a Medium when a write is rejected for size
// reasons. Any other Set failure is treated as a permission problem.
var ErrQuota = errors.New("storage quota exceeded")

// Medium is the raw key/value surface the Store persists through. It is
// deliberately dumb: bytes in, bytes out, no interpretation.
type Medium interface {
	// Get returns the stored bytes and whether the key exists.
	Get(key string) ([]byte, bool, error)
	// Set stores the bytes, overwriting any prior value.
	Set(key string, value []byte) error
	// Delete removes the key. Removing a missing key is not an error.
	Delete(key string) error
	// Keys lists every stored key in no particular order.
	Keys() ([]string, error)
}

// ─── File medium ────────────────────────────────────────────────────

// FileMedium stores each key as one file under a data directory.
type FileMedium struct {
	dir string
}

// NewFileMedium creates the data directory if needed and returns a medium
// backed by it.
func NewFileMedium(dir string) (*FileMedium, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileMedium{dir: dir}, nil
}

func (m *FileMedium) path(key string) string {
	// Keys contain ':' and caller-supplied exam ids; escape so every key
	// maps to a flat, reversible file name.
	return filepath.Join(m.dir, url.QueryEscape(key)+".json")
}

func (m *FileMedium) Get(key string) ([]byte, bool, error) {
	data, err := os.ReadFile(m.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (m *FileMedium) Set(key string, value []byte) error {
	path := m.path(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, value, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (m *FileMedium) Delete(key string) error {
	err := os.Remove(m.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (m *FileMedium) Keys() ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		key, err := url.QueryUnescape(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// ─── In-memory medium ───────────────────────────────────────────────

// MemMedium is an in-memory medium with failure injection, used by tests
// and by the repair CLI dry-run mode.
type MemMedium struct {
	mu      sync.Mutex
	data    map[string][]byte
	failSet error
}

func NewMemMedium() *MemMedium {
	return &MemMedium{data: make(map[string][]byte)}
}

func (m *MemMedium) Get(key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, true, nil
}

func (m *MemMedium) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet != nil {
		return m.failSet
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	m.data[key] = cp
	return nil
}

func (m *MemMedium) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MemMedium) Keys() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys, nil
}

// FailWrites makes every subsequent Set return err until cleared with nil.
func (m *MemMedium) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failSet = err
}

// Corrupt overwrites the stored bytes for key with unparseable garbage.
func (m *MemMedium) Corrupt(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		m.data[key] = []byte("{corrupt!!")
	}
}
