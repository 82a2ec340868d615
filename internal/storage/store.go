// Package storage implements the durable key/value store: backup-before-write,
// corruption detection with backup fallback, quota monitoring with proactive
// eviction, validate-and-repair and whole-store backup/restore. Low-level
// failures never escape as errors; they are converted to model.StorageError
// and broadcast to subscribers.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/quizdrill/quizdrill-backend/internal/config"
	"github.com/quizdrill/quizdrill-backend/internal/model"
	"github.com/rs/zerolog"
)

const (
	recordVersion = 1
	backupSuffix  = ":backup"
	maxErrorLog   = 50
)

// record is the envelope every value is persisted in. The store reads the
// envelope for ordering and shape checks but never interprets Data beyond
// that.
type record struct {
	Version int             `json:"version"`
	SavedAt time.Time       `json:"saved_at"`
	Data    json.RawMessage `json:"data"`
}

// Options configures quota and eviction behaviour.
type Options struct {
	MaxBytes       int64
	EvictThreshold float64
	KeepSessions   int
	KeepResults    int
}

// UsageStats reports aggregate store usage.
type UsageStats struct {
	UsedBytes int64   `json:"used_bytes"`
	MaxBytes  int64   `json:"max_bytes"`
	UsedRatio float64 `json:"used_ratio"`
	KeyCount  int     `json:"key_count"`
}

// Store is the durable store shared by every component. Each component
// owns a distinct key namespace (see config.StorageKey), so the store is
// the only synchronization point.
type Store struct {
	mu     sync.Mutex
	medium Medium
	opts   Options
	log    zerolog.Logger

	subMu   sync.Mutex
	subs    map[int]func(model.StorageError)
	nextSub int
	errLog  []model.StorageError
	pending []model.StorageError

	now func() time.Time
}

// New creates a Store over the given medium.
func New(medium Medium, opts Options, log zerolog.Logger) *Store {
	if opts.EvictThreshold <= 0 || opts.EvictThreshold > 1 {
		opts.EvictThreshold = 0.8
	}
	return &Store{
		medium: medium,
		opts:   opts,
		log:    log.With().Str("component", "storage").Logger(),
		subs:   make(map[int]func(model.StorageError)),
		now:    time.Now,
	}
}

// SetNow overrides the clock, for tests.
func (s *Store) SetNow(now func() time.Time) { s.now = now }

// Write persists value under key, taking a backup of any prior value
// first. Returns false when the write was rejected; the prior value is
// left in place and a StorageError is emitted.
func (s *Store) Write(key string, value any) bool {
	defer s.flush()

	data, err := json.Marshal(value)
	if err != nil {
		s.emit(model.StorageErrCorruptedData, fmt.Sprintf("marshal %s: %v", key, err), true)
		return false
	}
	raw, err := json.Marshal(record{Version: recordVersion, SavedAt: s.now(), Data: data})
	if err != nil {
		s.emit(model.StorageErrCorruptedData, fmt.Sprintf("envelope %s: %v", key, err), true)
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old, hadOld, _ := s.medium.Get(key)
	if hadOld {
		if err := s.medium.Set(key+backupSuffix, old); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("backup write failed")
		}
	}

	usage := s.usageLocked()
	projected := usage + int64(len(raw))
	if hadOld {
		projected -= int64(len(old))
	}

	if s.opts.MaxBytes > 0 && float64(projected) >= s.opts.EvictThreshold*float64(s.opts.MaxBytes) {
		s.evictLocked()
		usage = s.usageLocked()
		projected = usage + int64(len(raw))
		if hadOld {
			projected -= int64(len(old))
		}
	}

	if s.opts.MaxBytes > 0 && projected > s.opts.MaxBytes {
		s.emit(model.StorageErrQuotaExceeded, fmt.Sprintf("write %s rejected: %d of %d bytes used", key, usage, s.opts.MaxBytes), true)
		return false
	}

	if err := s.medium.Set(key, raw); err != nil {
		if hadOld {
			// Restore the pre-write value so readers never observe a torn state.
			if rerr := s.medium.Set(key, old); rerr != nil {
				s.log.Error().Err(rerr).Str("key", key).Msg("restore after failed write failed")
			}
		}
		if errors.Is(err, ErrQuota) {
			s.emit(model.StorageErrQuotaExceeded, fmt.Sprintf("write %s: %v", key, err), true)
		} else {
			s.emit(model.StorageErrPermissionDenied, fmt.Sprintf("write %s: %v", key, err), false)
		}
		return false
	}
	return true
}

// Read loads the record stored under key into dest. On a corrupt or
// unreadable primary it falls back to the backup copy; when both fail a
// corrupted_data error is emitted. Returns false when nothing usable
// exists.
func (s *Store) Read(key string, dest any) bool {
	defer s.flush()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked(key, dest)
}

func (s *Store) readLocked(key string, dest any) bool {
	raw, ok, err := s.medium.Get(key)
	if ok && err == nil {
		if decodeRecord(raw, dest) == nil {
			return true
		}
	}
	primaryExisted := ok || err != nil

	braw, bok, berr := s.medium.Get(key + backupSuffix)
	if bok && berr == nil {
		if decodeRecord(braw, dest) == nil {
			s.log.Warn().Str("key", key).Msg("primary unreadable, served backup")
			return true
		}
	}

	if primaryExisted || bok {
		s.emit(model.StorageErrCorruptedData, fmt.Sprintf("read %s: primary and backup both unusable", key), bok)
	}
	return false
}

func decodeRecord(raw []byte, dest any) error {
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return err
	}
	if rec.Version == 0 || rec.Data == nil {
		return fmt.Errorf("malformed record envelope")
	}
	if dest == nil {
		return nil
	}
	return json.Unmarshal(rec.Data, dest)
}

// Delete removes a key and its backup copy.
func (s *Store) Delete(key string) {
	defer s.flush()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.medium.Delete(key); err != nil {
		s.emit(model.StorageErrPermissionDenied, fmt.Sprintf("delete %s: %v", key, err), false)
		return
	}
	_ = s.medium.Delete(key + backupSuffix)
}

// Has reports whether a usable record exists under key.
func (s *Store) Has(key string) bool {
	return s.Read(key, nil)
}

// Keys returns all primary keys, backup copies excluded.
func (s *Store) Keys() []string {
	defer s.flush()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.primaryKeysLocked()
}

func (s *Store) primaryKeysLocked() []string {
	all, err := s.medium.Keys()
	if err != nil {
		s.emit(model.StorageErrPermissionDenied, fmt.Sprintf("list keys: %v", err), false)
		return nil
	}
	keys := make([]string, 0, len(all))
	for _, k := range all {
		if !isBackupKey(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func isBackupKey(key string) bool {
	return len(key) > len(backupSuffix) && key[len(key)-len(backupSuffix):] == backupSuffix
}

// Usage reports aggregate byte usage against the configured quota.
func (s *Store) Usage() UsageStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	used := s.usageLocked()
	stats := UsageStats{UsedBytes: used, MaxBytes: s.opts.MaxBytes, KeyCount: len(s.primaryKeysLocked())}
	if s.opts.MaxBytes > 0 {
		stats.UsedRatio = float64(used) / float64(s.opts.MaxBytes)
	}
	return stats
}

func (s *Store) usageLocked() int64 {
	keys, err := s.medium.Keys()
	if err != nil {
		return 0
	}
	var total int64
	for _, k := range keys {
		if isBackupKey(k) {
			continue
		}
		if raw, ok, err := s.medium.Get(k); ok && err == nil {
			total += int64(len(raw))
		}
	}
	return total
}

// ─── Eviction ───────────────────────────────────────────────────────

// evictLocked frees space in the capped categories: oldest session
// records beyond KeepSessions are dropped, and the results history list
// is trimmed to its newest KeepResults entries.
func (s *Store) evictLocked() {
	type aged struct {
		key     string
		savedAt time.Time
	}
	var sessions []aged
	for _, k := range s.primaryKeysLocked() {
		if !config.StorageKey.IsSessionKey(k) {
			continue
		}
		raw, ok, err := s.medium.Get(k)
		if !ok || err != nil {
			continue
		}
		var rec record
		if json.Unmarshal(raw, &rec) != nil {
			continue
		}
		sessions = append(sessions, aged{key: k, savedAt: rec.SavedAt})
	}
	if s.opts.KeepSessions > 0 && len(sessions) > s.opts.KeepSessions {
		sort.Slice(sessions, func(i, j int) bool { return sessions[i].savedAt.Before(sessions[j].savedAt) })
		for _, victim := range sessions[:len(sessions)-s.opts.KeepSessions] {
			s.log.Info().Str("key", victim.key).Msg("evicting old session record")
			_ = s.medium.Delete(victim.key)
			_ = s.medium.Delete(victim.key + backupSuffix)
		}
	}

	s.trimResultsLocked()
}

func (s *Store) trimResultsLocked() {
	if s.opts.KeepResults <= 0 {
		return
	}
	key := config.StorageKey.ResultsHistoryKey()
	raw, ok, err := s.medium.Get(key)
	if !ok || err != nil {
		return
	}
	var rec record
	if json.Unmarshal(raw, &rec) != nil {
		return
	}
	var entries []json.RawMessage
	if json.Unmarshal(rec.Data, &entries) != nil {
		return
	}
	if len(entries) <= s.opts.KeepResults {
		return
	}
	trimmed := entries[len(entries)-s.opts.KeepResults:]
	data, err := json.Marshal(trimmed)
	if err != nil {
		return
	}
	rec.Data = data
	if out, err := json.Marshal(rec); err == nil {
		s.log.Info().Int("dropped", len(entries)-len(trimmed)).Msg("trimmed results history")
		_ = s.medium.Set(key, out)
	}
}

// ─── Error channel ──────────────────────────────────────────────────

// OnError registers an error subscriber and returns its unsubscribe
// function. A subscriber that panics does not block the other
// subscribers or abort the emit.
func (s *Store) OnError(cb func(model.StorageError)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = cb
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

// Errors returns the rolling error log, newest last.
func (s *Store) Errors() []model.StorageError {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	out := make([]model.StorageError, len(s.errLog))
	copy(out, s.errLog)
	return out
}

// emit records a StorageError but does not deliver it: emit runs deep
// inside sections holding s.mu, and subscribers must never see the store
// locked. Delivery happens in flush once the mutating call unlocks.
func (s *Store) emit(typ model.StorageErrorType, msg string, recoverable bool) {
	serr := model.StorageError{
		Type:        typ,
		Message:     msg,
		Timestamp:   s.now(),
		Recoverable: recoverable,
	}
	s.log.Warn().Str("type", string(typ)).Bool("recoverable", recoverable).Msg(msg)

	s.subMu.Lock()
	s.errLog = append(s.errLog, serr)
	if len(s.errLog) > maxErrorLog {
		s.errLog = s.errLog[len(s.errLog)-maxErrorLog:]
	}
	s.pending = append(s.pending, serr)
	s.subMu.Unlock()
}

// flush hands queued errors to subscribers. Every public entry point
// defers it ahead of the lock, so callbacks run with s.mu released and
// may safely call back into the store.
func (s *Store) flush() {
	for {
		s.subMu.Lock()
		if len(s.pending) == 0 {
			s.subMu.Unlock()
			return
		}
		serr := s.pending[0]
		s.pending = s.pending[1:]
		cbs := make([]func(model.StorageError), 0, len(s.subs))
		for _, cb := range s.subs {
			cbs = append(cbs, cb)
		}
		s.subMu.Unlock()

		for _, cb := range cbs {
			func() {
				defer func() {
					if r := recover(); r != nil {
						s.log.Error().Interface("panic", r).Msg("error subscriber panicked")
					}
				}()
				cb(serr)
			}()
		}
	}
}
