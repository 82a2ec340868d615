package config

import (
	"fmt"
	"strings"
)

// StorageKeyStruct builds the namespaced keys of every record category in
// the durable store. No two components write the same namespace.
type StorageKeyStruct struct{}

func NewStorageKeyStruct() *StorageKeyStruct {
	return &StorageKeyStruct{}
}

// SessionKey returns the key for an in-progress session record.
func (r *StorageKeyStruct) SessionKey(examID string) string {
	return fmt.Sprintf("session:%s", examID)
}

// IsSessionKey reports whether a key belongs to the session namespace.
func (r *StorageKeyStruct) IsSessionKey(key string) bool {
	return strings.HasPrefix(key, "session:")
}

// ResultsHistoryKey returns the key for the capped results history list.
func (r *StorageKeyStruct) ResultsHistoryKey() string {
	return "results:history"
}

// PreferencesKey returns the key for the user preferences record.
func (r *StorageKeyStruct) PreferencesKey() string {
	return "prefs"
}

// ExamStatsKey returns the key for a per-exam aggregate stats record.
func (r *StorageKeyStruct) ExamStatsKey(examID string) string {
	return fmt.Sprintf("stats:%s", examID)
}

// IsExamStatsKey reports whether a key belongs to the stats namespace.
func (r *StorageKeyStruct) IsExamStatsKey(key string) bool {
	return strings.HasPrefix(key, "stats:")
}

// DeadLetterKey returns the key for the abandoned-action list.
func (r *StorageKeyStruct) DeadLetterKey() string {
	return "queue:deadletter"
}

var StorageKey = NewStorageKeyStruct()
