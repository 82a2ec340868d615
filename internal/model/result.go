package model

import "time"

// QuestionResult is the per-question snapshot frozen into a QuizResult.
type QuestionResult struct {
	QuestionID string   `json:"question_id"`
	Number     int      `json:"number"`
	Selected   []string `json:"selected"`
	CorrectIDs []string `json:"correct_ids"`
	Correct    bool     `json:"correct"`
	Skipped    bool     `json:"skipped"`
}

// QuizResult is the immutable scored outcome of one submitted session.
type QuizResult struct {
	ID             string           `json:"id"`
	ExamID         string           `json:"exam_id"`
	ExamTitle      string           `json:"exam_title"`
	Score          int              `json:"score"`
	Percentage     float64          `json:"percentage"`
	CorrectCount   int              `json:"correct_count"`
	IncorrectCount int              `json:"incorrect_count"`
	SkippedCount   int              `json:"skipped_count"`
	TimeElapsed    float64          `json:"time_elapsed_seconds"`
	StartTime      time.Time        `json:"start_time"`
	EndTime        time.Time        `json:"end_time"`
	Questions      []QuestionResult `json:"questions"`
}

// ExamStats is the per-exam aggregate maintained alongside the full
// result history, used for listing and dashboard display.
type ExamStats struct {
	ExamID        string    `json:"exam_id"`
	Attempts      int       `json:"attempts"`
	BestScore     float64   `json:"best_score"`
	Scores        []float64 `json:"scores"`
	LastAttempted time.Time `json:"last_attempted"`
}

// TrendDirection summarizes score movement across attempts.
type TrendDirection string

const (
	TrendImproving TrendDirection = "IMPROVING"
	TrendDeclining TrendDirection = "DECLINING"
	TrendFlat      TrendDirection = "FLAT"
)

// TrendReport is the score-over-time analysis for one exam.
type TrendReport struct {
	ExamID    string         `json:"exam_id"`
	Scores    []float64      `json:"scores"`
	Direction TrendDirection `json:"direction"`
}
