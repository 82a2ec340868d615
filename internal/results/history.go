// Package results owns the capped result history and the per-exam
// aggregate stats, independent of any session lifecycle.
package results

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/quizdrill/quizdrill-backend/internal/config"
	"github.com/quizdrill/quizdrill-backend/internal/model"
	"github.com/quizdrill/quizdrill-backend/internal/storage"
	"github.com/rs/zerolog"
)

// History is the append-only, capped results store.
type History struct {
	mu    sync.Mutex
	store *storage.Store
	log   zerolog.Logger
	cap   int
}

// New creates a History keeping at most cap results (oldest trimmed).
func New(store *storage.Store, cap int, log zerolog.Logger) *History {
	if cap <= 0 {
		cap = 50
	}
	return &History{
		store: store,
		log:   log.With().Str("component", "results_history").Logger(),
		cap:   cap,
	}
}

// Add appends a result, trims the history to its cap and refreshes the
// per-exam aggregate stats record.
func (h *History) Add(result model.QuizResult) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var list []model.QuizResult
	h.store.Read(config.StorageKey.ResultsHistoryKey(), &list)
	list = append(list, result)
	if len(list) > h.cap {
		list = list[len(list)-h.cap:]
	}
	h.store.Write(config.StorageKey.ResultsHistoryKey(), list)

	h.updateStatsLocked(result)
	h.log.Info().Str("exam_id", result.ExamID).Float64("percentage", result.Percentage).Msg("result recorded")
}

func (h *History) updateStatsLocked(result model.QuizResult) {
	key := config.StorageKey.ExamStatsKey(result.ExamID)
	stats := model.ExamStats{ExamID: result.ExamID}
	h.store.Read(key, &stats)

	stats.Attempts++
	stats.Scores = append(stats.Scores, result.Percentage)
	if result.Percentage > stats.BestScore {
		stats.BestScore = result.Percentage
	}
	stats.LastAttempted = result.EndTime
	h.store.Write(key, stats)
}

// List returns all stored results, oldest first.
func (h *History) List() []model.QuizResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	var list []model.QuizResult
	h.store.Read(config.StorageKey.ResultsHistoryKey(), &list)
	return list
}

// Search filters results by exact exam id or case-insensitive title
// substring.
func (h *History) Search(query string) []model.QuizResult {
	needle := strings.ToLower(strings.TrimSpace(query))
	all := h.List()
	if needle == "" {
		return all
	}
	out := make([]model.QuizResult, 0, len(all))
	for _, r := range all {
		if r.ExamID == query || strings.Contains(strings.ToLower(r.ExamTitle), needle) {
			out = append(out, r)
		}
	}
	return out
}

// Stats loads the per-exam aggregate record.
func (h *History) Stats(examID string) (model.ExamStats, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var stats model.ExamStats
	ok := h.store.Read(config.StorageKey.ExamStatsKey(examID), &stats)
	return stats, ok
}

// Trend analyses the score movement for one exam across attempts.
func (h *History) Trend(examID string) model.TrendReport {
	report := model.TrendReport{ExamID: examID, Direction: model.TrendFlat}
	for _, r := range h.List() {
		if r.ExamID == examID {
			report.Scores = append(report.Scores, r.Percentage)
		}
	}
	if n := len(report.Scores); n >= 2 {
		// Compare the average of the later half against the earlier half
		// so a single outlier does not flip the direction.
		half := n / 2
		early := avg(report.Scores[:half])
		late := avg(report.Scores[n-half:])
		switch {
		case late > early:
			report.Direction = model.TrendImproving
		case late < early:
			report.Direction = model.TrendDeclining
		}
	}
	return report
}

func avg(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// ExportJSON serializes the full history.
func (h *History) ExportJSON() ([]byte, error) {
	return json.MarshalIndent(h.List(), "", "  ")
}

// ExportCSV serializes the history as one row per result.
func (h *History) ExportCSV() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"exam_id", "exam_title", "score", "percentage", "correct", "incorrect", "skipped", "time_elapsed_seconds", "start_time", "end_time"}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for _, r := range h.List() {
		row := []string{
			r.ExamID,
			r.ExamTitle,
			strconv.Itoa(r.Score),
			strconv.FormatFloat(r.Percentage, 'f', 2, 64),
			strconv.Itoa(r.CorrectCount),
			strconv.Itoa(r.IncorrectCount),
			strconv.Itoa(r.SkippedCount),
			strconv.FormatFloat(r.TimeElapsed, 'f', 1, 64),
			r.StartTime.UTC().Format(time.RFC3339),
			r.EndTime.UTC().Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
