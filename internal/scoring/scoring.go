// Package scoring turns a finished session and its exam definition into
// an immutable result record. Pure computation: no storage, no clocks.
package scoring

import (
	"time"

	"github.com/google/uuid"
	"github.com/quizdrill/quizdrill-backend/internal/model"
)

// Score grades every question by exact set equality between the user's
// selection and the correct ids. Unanswered questions are skipped, not
// incorrect. Percentage is 0 for an empty exam.
func Score(exam *model.Exam, answers model.AnswerMap, startTime, endTime time.Time) model.QuizResult {
	result := model.QuizResult{
		ID:          uuid.New().String(),
		ExamID:      exam.ID,
		ExamTitle:   exam.Title,
		StartTime:   startTime,
		EndTime:     endTime,
		TimeElapsed: endTime.Sub(startTime).Seconds(),
		Questions:   make([]model.QuestionResult, 0, len(exam.Questions)),
	}

	for _, q := range exam.Questions {
		qr := model.QuestionResult{
			QuestionID: q.ID,
			Number:     q.Number,
			CorrectIDs: append([]string(nil), q.CorrectIDs...),
		}
		selected, answered := answers[q.ID]
		if !answered || len(selected) == 0 {
			qr.Skipped = true
			result.SkippedCount++
		} else {
			qr.Selected = append([]string(nil), selected...)
			if sameSet(selected, q.CorrectIDs) {
				qr.Correct = true
				result.CorrectCount++
			} else {
				result.IncorrectCount++
			}
		}
		result.Questions = append(result.Questions, qr)
	}

	result.Score = result.CorrectCount
	if total := len(exam.Questions); total > 0 {
		result.Percentage = float64(result.CorrectCount) / float64(total) * 100
	}
	return result
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, id := range a {
		set[id] = true
	}
	for _, id := range b {
		if !set[id] {
			return false
		}
	}
	return len(set) == len(b)
}
