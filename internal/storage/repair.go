package storage

import (
	"encoding/json"
	"fmt"

	"github.com/quizdrill/quizdrill-backend/internal/config"
	"github.com/quizdrill/quizdrill-backend/internal/model"
)

// RepairReport summarizes one validate-and-repair pass.
type RepairReport struct {
	IsHealthy        bool     `json:"is_healthy"`
	RepairsAttempted int      `json:"repairs_attempted"`
	Errors           []string `json:"errors"`
}

// ValidateAndRepair scans the whole store and repairs what it safely can:
// orphaned backups are restored or discarded, structurally invalid
// entries are discarded, and result records failing field-range checks
// are dropped from the history. Values are never repaired by guessing.
func (s *Store) ValidateAndRepair() RepairReport {
	defer s.flush()
	s.mu.Lock()
	defer s.mu.Unlock()

	report := RepairReport{}

	all, err := s.medium.Keys()
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("list keys: %v", err))
		return report
	}

	primaries := make(map[string]bool)
	var backups []string
	for _, k := range all {
		if isBackupKey(k) {
			backups = append(backups, k)
		} else {
			primaries[k] = true
		}
	}

	// Orphaned backups: restore to the missing primary when the backup
	// parses, discard otherwise.
	for _, bk := range backups {
		primary := bk[:len(bk)-len(backupSuffix)]
		if primaries[primary] {
			continue
		}
		raw, ok, err := s.medium.Get(bk)
		if ok && err == nil && decodeRecord(raw, nil) == nil {
			if err := s.medium.Set(primary, raw); err == nil {
				report.RepairsAttempted++
				primaries[primary] = true
				s.log.Info().Str("key", primary).Msg("restored orphaned backup")
				continue
			}
		}
		_ = s.medium.Delete(bk)
		report.RepairsAttempted++
		report.Errors = append(report.Errors, fmt.Sprintf("discarded unusable orphan backup %s", bk))
	}

	// Structurally invalid entries are discarded outright.
	for key := range primaries {
		raw, ok, err := s.medium.Get(key)
		if !ok || err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("unreadable key %s", key))
			continue
		}
		if decodeRecord(raw, nil) != nil {
			_ = s.medium.Delete(key)
			_ = s.medium.Delete(key + backupSuffix)
			report.RepairsAttempted++
			report.Errors = append(report.Errors, fmt.Sprintf("discarded invalid entry %s", key))
			delete(primaries, key)
			continue
		}
		if config.StorageKey.IsSessionKey(key) && !s.sessionShapeOK(raw) {
			_ = s.medium.Delete(key)
			_ = s.medium.Delete(key + backupSuffix)
			report.RepairsAttempted++
			report.Errors = append(report.Errors, fmt.Sprintf("discarded malformed session %s", key))
			delete(primaries, key)
		}
	}

	// Result records failing field-range checks are dropped individually.
	if n := s.repairResultsLocked(); n > 0 {
		report.RepairsAttempted++
		report.Errors = append(report.Errors, fmt.Sprintf("discarded %d out-of-range result records", n))
	}

	report.IsHealthy = len(report.Errors) == 0
	return report
}

func (s *Store) sessionShapeOK(raw []byte) bool {
	var sess model.QuizSession
	if decodeRecord(raw, &sess) != nil {
		return false
	}
	if sess.ExamID == "" || sess.CurrentIndex < 0 || sess.StartTime.IsZero() {
		return false
	}
	if sess.Mode != model.QuizModePractice && sess.Mode != model.QuizModeExam {
		return false
	}
	return true
}

func (s *Store) repairResultsLocked() int {
	key := config.StorageKey.ResultsHistoryKey()
	raw, ok, err := s.medium.Get(key)
	if !ok || err != nil {
		return 0
	}
	var rec record
	if json.Unmarshal(raw, &rec) != nil {
		return 0
	}
	var results []model.QuizResult
	if json.Unmarshal(rec.Data, &results) != nil {
		return 0
	}

	kept := results[:0]
	for _, r := range results {
		if resultRangeOK(r) {
			kept = append(kept, r)
		}
	}
	dropped := len(results) - len(kept)
	if dropped == 0 {
		return 0
	}

	data, err := json.Marshal(kept)
	if err != nil {
		return 0
	}
	rec.Data = data
	if out, err := json.Marshal(rec); err == nil {
		_ = s.medium.Set(key, out)
	}
	return dropped
}

func resultRangeOK(r model.QuizResult) bool {
	if r.ExamID == "" {
		return false
	}
	if r.Percentage < 0 || r.Percentage > 100 {
		return false
	}
	if r.CorrectCount < 0 || r.IncorrectCount < 0 || r.SkippedCount < 0 {
		return false
	}
	if r.CorrectCount+r.IncorrectCount+r.SkippedCount != len(r.Questions) {
		return false
	}
	if r.EndTime.Before(r.StartTime) {
		return false
	}
	return true
}
