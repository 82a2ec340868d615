package results

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/quizdrill/quizdrill-backend/internal/model"
	"github.com/quizdrill/quizdrill-backend/internal/storage"
)

func newTestHistory(t *testing.T, cap int) *History {
	t.Helper()
	store := storage.New(storage.NewMemMedium(), storage.Options{}, zerolog.Nop())
	return New(store, cap, zerolog.Nop())
}

func result(examID, title string, pct float64, at time.Time) model.QuizResult {
	return model.QuizResult{
		ID:         fmt.Sprintf("%s-%0.f-%d", examID, pct, at.Unix()),
		ExamID:     examID,
		ExamTitle:  title,
		Percentage: pct,
		StartTime:  at.Add(-10 * time.Minute),
		EndTime:    at,
	}
}

func TestAddAndList(t *testing.T) {
	h := newTestHistory(t, 10)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	h.Add(result("go-basics", "Go Basics", 40, now))
	h.Add(result("go-basics", "Go Basics", 70, now.Add(time.Hour)))

	list := h.List()
	require.Len(t, list, 2)
	require.Equal(t, 40.0, list[0].Percentage)
	require.Equal(t, 70.0, list[1].Percentage)
}

func TestCapTrimsOldest(t *testing.T) {
	h := newTestHistory(t, 3)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		h.Add(result("go-basics", "Go Basics", float64(i*10), now.Add(time.Duration(i)*time.Hour)))
	}

	list := h.List()
	require.Len(t, list, 3)
	require.Equal(t, 20.0, list[0].Percentage)
	require.Equal(t, 40.0, list[2].Percentage)

	// Stats keep counting across the trim.
	stats, ok := h.Stats("go-basics")
	require.True(t, ok)
	require.Equal(t, 5, stats.Attempts)
	require.Equal(t, 40.0, stats.BestScore)
}

func TestSearch(t *testing.T) {
	h := newTestHistory(t, 10)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h.Add(result("go-basics", "Go Basics", 50, now))
	h.Add(result("net-101", "Networking Fundamentals", 60, now))

	require.Len(t, h.Search("go-basics"), 1)        // exact exam id
	require.Len(t, h.Search("fundamentals"), 1)     // title substring, case-insensitive
	require.Len(t, h.Search("  "), 2)               // blank query returns everything
	require.Empty(t, h.Search("does-not-exist"))
}

func TestStatsMissingExam(t *testing.T) {
	h := newTestHistory(t, 10)
	_, ok := h.Stats("never-attempted")
	require.False(t, ok)
}

func TestTrendDirections(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name   string
		scores []float64
		want   model.TrendDirection
	}{
		{"improving", []float64{30, 40, 60, 80}, model.TrendImproving},
		{"declining", []float64{90, 70, 50, 40}, model.TrendDeclining},
		{"flat", []float64{50, 50, 50, 50}, model.TrendFlat},
		{"single attempt", []float64{50}, model.TrendFlat},
		{"no attempts", nil, model.TrendFlat},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHistory(t, 20)
			for i, s := range tc.scores {
				h.Add(result("exam", "Exam", s, now.Add(time.Duration(i)*time.Hour)))
			}
			report := h.Trend("exam")
			require.Equal(t, tc.want, report.Direction)
			require.Len(t, report.Scores, len(tc.scores))
		})
	}
}

func TestExportJSON(t *testing.T) {
	h := newTestHistory(t, 10)
	h.Add(result("go-basics", "Go Basics", 75, time.Now()))

	blob, err := h.ExportJSON()
	require.NoError(t, err)

	var decoded []model.QuizResult
	require.NoError(t, json.Unmarshal(blob, &decoded))
	require.Len(t, decoded, 1)
	require.Equal(t, "go-basics", decoded[0].ExamID)
}

func TestExportCSV(t *testing.T) {
	h := newTestHistory(t, 10)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h.Add(result("go-basics", "Go Basics", 75, now))

	blob, err := h.ExportCSV()
	require.NoError(t, err)

	rows, err := csv.NewReader(strings.NewReader(string(blob))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "exam_id", rows[0][0])
	require.Equal(t, "go-basics", rows[1][0])
	require.Equal(t, "75.00", rows[1][3])
}
