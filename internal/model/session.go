package model

import "time"

// QuizMode enumerates the two ways an exam can be taken.
type QuizMode string

const (
	QuizModePractice QuizMode = "PRACTICE"
	QuizModeExam     QuizMode = "EXAM"
)

// QuizSession is one in-progress or submitted attempt at a single exam.
// CurrentIndex is always within [0, len(exam.Questions)). Once Submitted
// is set the session is frozen and no further mutation is accepted.
type QuizSession struct {
	ExamID         string     `json:"exam_id"`
	Mode           QuizMode   `json:"mode"`
	CurrentIndex   int        `json:"current_question_index"`
	Answers        AnswerMap  `json:"answers"`
	Flagged        FlagSet    `json:"flagged_questions"`
	StartTime      time.Time  `json:"start_time"`
	EndTime        *time.Time `json:"end_time,omitempty"`
	Submitted      bool       `json:"submitted"`
	ElapsedSeconds *float64   `json:"elapsed_seconds,omitempty"`
}

// Clone returns a value-semantics deep copy of the session. Snapshots for
// redo must never share answer slices or flag sets with the live session.
func (s *QuizSession) Clone() *QuizSession {
	cp := *s
	cp.Answers = s.Answers.Clone()
	cp.Flagged = s.Flagged.Clone()
	if s.EndTime != nil {
		t := *s.EndTime
		cp.EndTime = &t
	}
	if s.ElapsedSeconds != nil {
		e := *s.ElapsedSeconds
		cp.ElapsedSeconds = &e
	}
	return &cp
}

// AnswerHistoryEntry is one record of the append-only answer change log,
// used for single-step undo.
type AnswerHistoryEntry struct {
	QuestionID string    `json:"question_id"`
	Previous   []string  `json:"previous"`
	Next       []string  `json:"next"`
	Timestamp  time.Time `json:"timestamp"`
}

// NavigationReason classifies a navigation event.
type NavigationReason string

const (
	NavigationNext     NavigationReason = "next"
	NavigationPrevious NavigationReason = "previous"
	NavigationJump     NavigationReason = "jump"
	NavigationReview   NavigationReason = "review"
)

// NavigationPattern records one movement between questions.
type NavigationPattern struct {
	From      int              `json:"from"`
	To        int              `json:"to"`
	Timestamp time.Time        `json:"timestamp"`
	Reason    NavigationReason `json:"reason"`
}

// AnalyticsRecord accumulates behavioural metrics for one session.
type AnalyticsRecord struct {
	TotalTimeSeconds   float64             `json:"total_time_seconds"`
	AvgTimePerQuestion float64             `json:"avg_time_per_question"`
	RevisitCount       int                 `json:"revisit_count"`
	FlagsUsed          int                 `json:"flags_used"`
	Navigation         []NavigationPattern `json:"navigation"`
}

// QuizProgress is the derived completion view consumed by the UI.
type QuizProgress struct {
	Answered   int     `json:"answered"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// StartSessionRequest is the payload for initializing a session. A
// positive time limit arms a countdown in EXAM mode; zero means untimed.
type StartSessionRequest struct {
	Mode             QuizMode `json:"mode" binding:"required,oneof=PRACTICE EXAM"`
	TimeLimitSeconds int      `json:"time_limit_seconds" binding:"min=0"`
}

// AnswerRequest is the payload for answering a question.
type AnswerRequest struct {
	QuestionID string   `json:"question_id" binding:"required"`
	Selected   []string `json:"selected" binding:"required,max=2"`
}

// FlagRequest is the payload for toggling a review flag.
type FlagRequest struct {
	QuestionID string `json:"question_id" binding:"required"`
}

// GotoRequest is the payload for jumping to a question index.
type GotoRequest struct {
	Index int `json:"index" binding:"min=0"`
}
