// Package session implements the authoritative in-memory state machine
// for one active quiz attempt. Every mutation is immediately persisted
// through the durable store; persistence failures never fail the
// in-memory mutation and surface only on the store's error channel.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/quizdrill/quizdrill-backend/internal/config"
	"github.com/quizdrill/quizdrill-backend/internal/model"
	"github.com/quizdrill/quizdrill-backend/internal/sched"
	"github.com/quizdrill/quizdrill-backend/internal/storage"
	"github.com/rs/zerolog"
)

// State enumerates the manager lifecycle. SUBMITTED is terminal.
type State string

const (
	StateUninitialized State = "UNINITIALIZED"
	StateActive        State = "ACTIVE"
	StateSubmitted     State = "SUBMITTED"
)

// Options tunes history bounds and the auto-save cadence.
type Options struct {
	MaxHistorySize   int
	AutosaveInterval time.Duration
}

// Manager owns one quiz session at a time. All methods are safe for
// concurrent use; the mutex stands in for the single-owner cooperative
// model of the original design.
type Manager struct {
	mu    sync.Mutex
	store *storage.Store
	sched sched.Scheduler
	log   zerolog.Logger
	opts  Options
	now   func() time.Time

	state     State
	exam      *model.Exam
	session   *model.QuizSession
	history   []model.AnswerHistoryEntry
	undone    []model.AnswerHistoryEntry
	snapshots []*model.QuizSession
	cursor    int
	analytics model.AnalyticsRecord

	cancelAutosave func()
}

// NewManager creates a Manager persisting through the given store.
func NewManager(store *storage.Store, scheduler sched.Scheduler, opts Options, log zerolog.Logger) *Manager {
	if opts.MaxHistorySize <= 0 {
		opts.MaxHistorySize = 50
	}
	if opts.AutosaveInterval <= 0 {
		opts.AutosaveInterval = 5 * time.Second
	}
	return &Manager{
		store: store,
		sched: scheduler,
		log:   log.With().Str("component", "session_manager").Logger(),
		opts:  opts,
		now:   time.Now,
		state: StateUninitialized,
	}
}

// SetNow overrides the clock, for tests.
func (m *Manager) SetNow(now func() time.Time) { m.now = now }

// Init loads the unsubmitted session persisted for this exam if one
// exists, otherwise creates a fresh one, then arms the auto-save tick
// and takes the baseline snapshot for undo/redo.
func (m *Manager) Init(exam *model.Exam, mode model.QuizMode) error {
	if exam == nil || len(exam.Questions) == 0 {
		return errors.New("exam has no questions")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.teardownLocked()
	m.exam = exam

	var saved model.QuizSession
	if m.store.Read(config.StorageKey.SessionKey(exam.ID), &saved) && !saved.Submitted && saved.ExamID == exam.ID {
		if saved.Answers == nil {
			saved.Answers = model.AnswerMap{}
		}
		if saved.Flagged == nil {
			saved.Flagged = model.FlagSet{}
		}
		saved.CurrentIndex = clamp(saved.CurrentIndex, 0, len(exam.Questions)-1)
		m.session = &saved
		m.log.Info().Str("exam_id", exam.ID).Msg("resumed in-progress session")
	} else {
		m.session = &model.QuizSession{
			ExamID:    exam.ID,
			Mode:      mode,
			Answers:   model.AnswerMap{},
			Flagged:   model.FlagSet{},
			StartTime: m.now(),
		}
		m.log.Info().Str("exam_id", exam.ID).Str("mode", string(mode)).Msg("started fresh session")
	}

	m.history = nil
	m.undone = nil
	m.snapshots = []*model.QuizSession{m.session.Clone()}
	m.cursor = 0
	m.analytics = model.AnalyticsRecord{}
	m.state = StateActive

	m.persistLocked()

	// Auto-save persists unconditionally on every tick. Redundant writes
	// are the accepted cost of crash safety.
	m.cancelAutosave = m.sched.Schedule(m.opts.AutosaveInterval, m.autosaveTick)
	return nil
}

func (m *Manager) autosaveTick() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateActive {
		m.persistLocked()
	}
}

// AnswerQuestion replaces the answer for a question, recording the change
// in both the undo log and the snapshot list. The selection is stored as
// given; arity validation is the caller's contract. Returns false once
// the session is no longer active.
func (m *Manager) AnswerQuestion(questionID string, selection []string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateActive {
		return false
	}

	if q := m.exam.QuestionByID(questionID); q != nil {
		if q.Type == model.QuestionTypeSingle && len(selection) > 1 {
			m.log.Warn().Str("question_id", questionID).Int("selected", len(selection)).
				Msg("oversized selection for single-answer question stored as passed")
		}
	} else {
		m.log.Warn().Str("question_id", questionID).Msg("answer for unknown question id")
	}

	prev := m.session.Answers[questionID]
	next := make([]string, len(selection))
	copy(next, selection)

	m.history = append(m.history, model.AnswerHistoryEntry{
		QuestionID: questionID,
		Previous:   prev,
		Next:       next,
		Timestamp:  m.now(),
	})
	if len(m.history) > m.opts.MaxHistorySize {
		m.history = m.history[len(m.history)-m.opts.MaxHistorySize:]
	}

	m.session.Answers[questionID] = next
	m.undone = nil // a fresh change invalidates the redo tail
	m.pushSnapshotLocked()
	m.persistLocked()
	return true
}

// ToggleFlag adds or removes the review flag for a question.
func (m *Manager) ToggleFlag(questionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateActive {
		return false
	}
	if m.session.Flagged[questionID] {
		delete(m.session.Flagged, questionID)
	} else {
		m.session.Flagged[questionID] = true
		m.analytics.FlagsUsed++
	}
	m.persistLocked()
	return true
}

// GoToQuestion jumps to an index, clamped into bounds.
func (m *Manager) GoToQuestion(index int) bool {
	return m.navigate(func(int) int { return index }, model.NavigationJump)
}

// NextQuestion advances one question, clamped at the last.
func (m *Manager) NextQuestion() bool {
	return m.navigate(func(cur int) int { return cur + 1 }, model.NavigationNext)
}

// PreviousQuestion steps back one question, clamped at the first.
func (m *Manager) PreviousQuestion() bool {
	return m.navigate(func(cur int) int { return cur - 1 }, model.NavigationPrevious)
}

func (m *Manager) navigate(target func(current int) int, reason model.NavigationReason) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateActive {
		return false
	}

	from := m.session.CurrentIndex
	to := clamp(target(from), 0, len(m.exam.Questions)-1)

	// A jump onto a flagged question is the review gesture.
	if reason == model.NavigationJump && m.session.Flagged[m.exam.Questions[to].ID] {
		reason = model.NavigationReview
	}

	m.session.CurrentIndex = to
	m.analytics.Navigation = append(m.analytics.Navigation, model.NavigationPattern{
		From:      from,
		To:        to,
		Timestamp: m.now(),
		Reason:    reason,
	})
	if to < from {
		m.analytics.RevisitCount++
	}
	m.persistLocked()
	return true
}

// UndoAnswer reverts the most recent answer change. Returns false when
// the change log is empty (a no-op, not an error).
func (m *Manager) UndoAnswer() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateActive || len(m.history) == 0 {
		return false
	}

	entry := m.history[len(m.history)-1]
	m.history = m.history[:len(m.history)-1]
	m.undone = append(m.undone, entry)

	if entry.Previous == nil {
		delete(m.session.Answers, entry.QuestionID)
	} else {
		prev := make([]string, len(entry.Previous))
		copy(prev, entry.Previous)
		m.session.Answers[entry.QuestionID] = prev
	}

	if m.cursor > 0 {
		m.cursor--
	}
	m.persistLocked()
	return true
}

// RedoAnswer replays one snapshot forward, restoring the complete state
// that existed before the undo. The undone change entry goes back onto
// the change log, so a later undo reverts exactly the redone step.
// Returns false at the newest snapshot.
func (m *Manager) RedoAnswer() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateActive || m.cursor >= len(m.snapshots)-1 {
		return false
	}

	m.cursor++
	restored := m.snapshots[m.cursor].Clone()
	// Timestamps and submission state are owned by the live session.
	restored.StartTime = m.session.StartTime
	m.session = restored

	if n := len(m.undone); n > 0 {
		m.history = append(m.history, m.undone[n-1])
		m.undone = m.undone[:n-1]
	}
	m.persistLocked()
	return true
}

// Submit freezes the session: stamps the end time, finalizes analytics,
// cancels auto-save and deletes the in-progress durable record. After
// the first call the frozen session is returned unchanged.
func (m *Manager) Submit() *model.QuizSession {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateSubmitted:
		return m.session.Clone()
	case StateUninitialized:
		return nil
	}

	end := m.now()
	elapsed := end.Sub(m.session.StartTime).Seconds()
	m.session.EndTime = &end
	m.session.ElapsedSeconds = &elapsed
	m.session.Submitted = true

	m.analytics.TotalTimeSeconds = elapsed
	if answered := len(m.session.Answers); answered > 0 {
		m.analytics.AvgTimePerQuestion = elapsed / float64(answered)
	}

	if m.cancelAutosave != nil {
		m.cancelAutosave()
		m.cancelAutosave = nil
	}
	m.store.Delete(config.StorageKey.SessionKey(m.session.ExamID))
	m.state = StateSubmitted

	m.log.Info().Str("exam_id", m.session.ExamID).Float64("elapsed_s", elapsed).Msg("session submitted")
	return m.session.Clone()
}

// Clear hard-resets the manager to uninitialized, discarding all
// in-memory history, snapshots and analytics and cancelling timers.
// Durable result records are untouched.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teardownLocked()
}

func (m *Manager) teardownLocked() {
	if m.cancelAutosave != nil {
		m.cancelAutosave()
		m.cancelAutosave = nil
	}
	m.state = StateUninitialized
	m.exam = nil
	m.session = nil
	m.history = nil
	m.undone = nil
	m.snapshots = nil
	m.cursor = 0
	m.analytics = model.AnalyticsRecord{}
}

// ─── Derived views ──────────────────────────────────────────────────

// State returns the lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Session returns a deep copy of the current session, or nil.
func (m *Manager) Session() *model.QuizSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}
	return m.session.Clone()
}

// Analytics returns a copy of the accumulated analytics.
func (m *Manager) Analytics() model.AnalyticsRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.analytics
	out.Navigation = make([]model.NavigationPattern, len(m.analytics.Navigation))
	copy(out.Navigation, m.analytics.Navigation)
	return out
}

// Progress derives the answered/total completion view.
func (m *Manager) Progress() model.QuizProgress {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil || m.exam == nil {
		return model.QuizProgress{}
	}
	total := len(m.exam.Questions)
	answered := len(m.session.Answers)
	p := model.QuizProgress{Answered: answered, Total: total}
	if total > 0 {
		p.Percentage = float64(answered) / float64(total) * 100
	}
	return p
}

// IsAnswerCorrect reports whether the user's selection matches the
// correct set exactly. Partial credit is not supported.
func (m *Manager) IsAnswerCorrect(questionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil || m.exam == nil {
		return false
	}
	q := m.exam.QuestionByID(questionID)
	if q == nil {
		return false
	}
	return sameSet(m.session.Answers[questionID], q.CorrectIDs)
}

// ─── Internals ──────────────────────────────────────────────────────

// pushSnapshotLocked appends a fresh deep copy and drops any redo tail,
// keeping the cursor pinned to the newest snapshot.
func (m *Manager) pushSnapshotLocked() {
	m.snapshots = m.snapshots[:m.cursor+1]
	m.snapshots = append(m.snapshots, m.session.Clone())
	if len(m.snapshots) > m.opts.MaxHistorySize {
		m.snapshots = m.snapshots[len(m.snapshots)-m.opts.MaxHistorySize:]
	}
	m.cursor = len(m.snapshots) - 1
}

func (m *Manager) persistLocked() {
	if !m.store.Write(config.StorageKey.SessionKey(m.session.ExamID), m.session) {
		// In-memory state already reflects the mutation; delivery is the
		// offline queue's problem, reporting is the error channel's.
		m.log.Debug().Str("exam_id", m.session.ExamID).Msg("session persist rejected")
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
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
