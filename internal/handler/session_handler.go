package handler

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/quizdrill/quizdrill-backend/internal/config"
	"github.com/quizdrill/quizdrill-backend/internal/model"
	"github.com/quizdrill/quizdrill-backend/internal/queue"
	"github.com/quizdrill/quizdrill-backend/internal/registry"
	"github.com/quizdrill/quizdrill-backend/internal/response"
	"github.com/quizdrill/quizdrill-backend/internal/results"
	"github.com/quizdrill/quizdrill-backend/internal/sched"
	"github.com/quizdrill/quizdrill-backend/internal/scoring"
	"github.com/quizdrill/quizdrill-backend/internal/session"
	"github.com/quizdrill/quizdrill-backend/internal/storage"
	"github.com/quizdrill/quizdrill-backend/internal/timer"
	"github.com/quizdrill/quizdrill-backend/internal/validator"
	ws "github.com/quizdrill/quizdrill-backend/internal/websocket"
)

// SessionHandler drives one quiz attempt per exam. Managers are created
// lazily on the first session start and kept for resume across requests.
type SessionHandler struct {
	mu       sync.Mutex
	managers map[string]*session.Manager
	timers   map[string]*timer.Timer

	registry  *registry.Registry
	store     *storage.Store
	scheduler sched.Scheduler
	queue     *queue.Queue
	history   *results.History
	hub       *ws.Hub
	opts      session.Options
	log       zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(
	reg *registry.Registry,
	store *storage.Store,
	scheduler sched.Scheduler,
	q *queue.Queue,
	history *results.History,
	hub *ws.Hub,
	cfg *config.Config,
	log zerolog.Logger,
) *SessionHandler {
	return &SessionHandler{
		managers:  make(map[string]*session.Manager),
		timers:    make(map[string]*timer.Timer),
		registry:  reg,
		store:     store,
		scheduler: scheduler,
		queue:     q,
		history:   history,
		hub:       hub,
		opts: session.Options{
			MaxHistorySize:   cfg.MaxHistorySize,
			AutosaveInterval: cfg.AutosaveInterval,
		},
		log: log.With().Str("component", "session_handler").Logger(),
	}
}

func (h *SessionHandler) managerFor(examID string) *session.Manager {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.managers[examID]
	if !ok {
		m = session.NewManager(h.store, h.scheduler, h.opts, h.log)
		h.managers[examID] = m
	}
	return m
}

// activeManager returns the manager for an exam only if a session was
// started (or resumed) for it.
func (h *SessionHandler) activeManager(examID string) (*session.Manager, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.managers[examID]
	if !ok || m.State() == session.StateUninitialized {
		return nil, false
	}
	return m, true
}

// sessionView is the standard session payload for session endpoints.
func sessionView(m *session.Manager) gin.H {
	return gin.H{
		"state":     m.State(),
		"session":   m.Session(),
		"progress":  m.Progress(),
		"analytics": m.Analytics(),
	}
}

// Start godoc
// POST /api/v1/exams/:exam_id/session
// Starts a fresh session or resumes a persisted unsubmitted one.
func (h *SessionHandler) Start(c *gin.Context) {
	exam, ok := h.registry.Get(c.Param("exam_id"))
	if !ok {
		response.Fail(c, http.StatusNotFound, response.ErrExamNotFound)
		return
	}

	var req model.StartSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	m := h.managerFor(exam.ID)
	if err := m.Init(exam, req.Mode); err != nil {
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrNoQuestions)
		return
	}

	if req.Mode == model.QuizModeExam && req.TimeLimitSeconds > 0 {
		h.armTimer(exam.ID, time.Duration(req.TimeLimitSeconds)*time.Second)
	}

	response.Success(c, http.StatusCreated, sessionView(m))
}

// armTimer starts a countdown for a timed exam session. Warnings and
// expiry go out over the notification hub; expiry also force-submits.
func (h *SessionHandler) armTimer(examID string, limit time.Duration) {
	h.stopTimer(examID)

	thresholds := make([]time.Duration, 0, 2)
	for _, th := range []time.Duration{5 * time.Minute, time.Minute} {
		if th < limit {
			thresholds = append(thresholds, th)
		}
	}

	t := timer.New(timer.ModeCountdown, limit,
		timer.WithWarnings(thresholds, func(remaining time.Duration) {
			h.hub.Broadcast(ws.TimerNotice{
				Event:            ws.EventTimerWarning,
				ExamID:           examID,
				RemainingSeconds: int(remaining / time.Second),
			})
		}),
		timer.WithExpire(func() {
			h.hub.Broadcast(ws.TimerNotice{Event: ws.EventTimerExpired, ExamID: examID})
			h.expire(examID)
		}),
	)

	h.mu.Lock()
	h.timers[examID] = t
	h.mu.Unlock()
	t.Start()
}

func (h *SessionHandler) stopTimer(examID string) {
	h.mu.Lock()
	t, ok := h.timers[examID]
	delete(h.timers, examID)
	h.mu.Unlock()
	if ok {
		t.Stop()
	}
}

// expire force-submits a timed-out session as if the user had submitted.
func (h *SessionHandler) expire(examID string) {
	exam, ok := h.registry.Get(examID)
	if !ok {
		return
	}
	m, ok := h.activeManager(examID)
	if !ok || m.State() != session.StateActive {
		return
	}
	if _, ok := h.finalize(exam, m); !ok {
		h.log.Warn().Str("exam_id", examID).Msg("expired session could not be submitted")
	}
	h.stopTimer(examID)
}

// finalize freezes, scores and records a session. The first call per
// session appends to history and mirrors the submit to the sync queue;
// later calls just rescore the frozen answers.
func (h *SessionHandler) finalize(exam *model.Exam, m *session.Manager) (model.QuizResult, bool) {
	alreadySubmitted := m.State() == session.StateSubmitted
	sess := m.Submit()
	if sess == nil || sess.EndTime == nil {
		return model.QuizResult{}, false
	}

	result := scoring.Score(exam, sess.Answers, sess.StartTime, *sess.EndTime)
	if !alreadySubmitted {
		h.history.Add(result)
		h.enqueue(model.ActionSubmit, gin.H{
			"exam_id":    exam.ID,
			"score":      result.Score,
			"percentage": result.Percentage,
		})
	}
	return result, true
}

// Get godoc
// GET /api/v1/exams/:exam_id/session
// Returns the live session with derived progress and analytics.
func (h *SessionHandler) Get(c *gin.Context) {
	m, ok := h.activeManager(c.Param("exam_id"))
	if !ok {
		response.Fail(c, http.StatusNotFound, response.ErrNoActiveSession)
		return
	}
	response.Success(c, http.StatusOK, sessionView(m))
}

// Answer godoc
// POST /api/v1/exams/:exam_id/session/answer
// Replaces the answer for one question and mirrors it to the sync queue.
func (h *SessionHandler) Answer(c *gin.Context) {
	m, ok := h.activeManager(c.Param("exam_id"))
	if !ok {
		response.Fail(c, http.StatusNotFound, response.ErrNoActiveSession)
		return
	}

	var req model.AnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if !m.AnswerQuestion(req.QuestionID, req.Selected) {
		response.Fail(c, http.StatusConflict, response.ErrSessionSubmitted)
		return
	}

	h.enqueue(model.ActionAnswer, gin.H{
		"exam_id":     c.Param("exam_id"),
		"question_id": req.QuestionID,
		"selected":    req.Selected,
	})
	response.Success(c, http.StatusOK, sessionView(m))
}

// Flag godoc
// POST /api/v1/exams/:exam_id/session/flag
// Toggles the review flag for one question.
func (h *SessionHandler) Flag(c *gin.Context) {
	m, ok := h.activeManager(c.Param("exam_id"))
	if !ok {
		response.Fail(c, http.StatusNotFound, response.ErrNoActiveSession)
		return
	}

	var req model.FlagRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if !m.ToggleFlag(req.QuestionID) {
		response.Fail(c, http.StatusConflict, response.ErrSessionSubmitted)
		return
	}

	h.enqueue(model.ActionFlag, gin.H{
		"exam_id":     c.Param("exam_id"),
		"question_id": req.QuestionID,
	})
	response.Success(c, http.StatusOK, sessionView(m))
}

// Goto godoc
// POST /api/v1/exams/:exam_id/session/goto
// Jumps to a question index. Out-of-range indexes are clamped.
func (h *SessionHandler) Goto(c *gin.Context) {
	m, ok := h.activeManager(c.Param("exam_id"))
	if !ok {
		response.Fail(c, http.StatusNotFound, response.ErrNoActiveSession)
		return
	}

	var req model.GotoRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if !m.GoToQuestion(req.Index) {
		response.Fail(c, http.StatusConflict, response.ErrSessionSubmitted)
		return
	}

	h.enqueue(model.ActionNavigation, gin.H{
		"exam_id": c.Param("exam_id"),
		"index":   m.Session().CurrentIndex,
	})
	response.Success(c, http.StatusOK, sessionView(m))
}

// Next godoc
// POST /api/v1/exams/:exam_id/session/next
func (h *SessionHandler) Next(c *gin.Context) {
	h.step(c, func(m *session.Manager) bool { return m.NextQuestion() })
}

// Previous godoc
// POST /api/v1/exams/:exam_id/session/previous
func (h *SessionHandler) Previous(c *gin.Context) {
	h.step(c, func(m *session.Manager) bool { return m.PreviousQuestion() })
}

func (h *SessionHandler) step(c *gin.Context, move func(*session.Manager) bool) {
	m, ok := h.activeManager(c.Param("exam_id"))
	if !ok {
		response.Fail(c, http.StatusNotFound, response.ErrNoActiveSession)
		return
	}
	if !move(m) {
		response.Fail(c, http.StatusConflict, response.ErrSessionSubmitted)
		return
	}

	h.enqueue(model.ActionNavigation, gin.H{
		"exam_id": c.Param("exam_id"),
		"index":   m.Session().CurrentIndex,
	})
	response.Success(c, http.StatusOK, sessionView(m))
}

// Undo godoc
// POST /api/v1/exams/:exam_id/session/undo
// Reverts the most recent answer change.
func (h *SessionHandler) Undo(c *gin.Context) {
	m, ok := h.activeManager(c.Param("exam_id"))
	if !ok {
		response.Fail(c, http.StatusNotFound, response.ErrNoActiveSession)
		return
	}
	if !m.UndoAnswer() {
		response.Fail(c, http.StatusConflict, response.ErrNothingToUndo)
		return
	}
	response.Success(c, http.StatusOK, sessionView(m))
}

// Redo godoc
// POST /api/v1/exams/:exam_id/session/redo
// Replays one undone answer change.
func (h *SessionHandler) Redo(c *gin.Context) {
	m, ok := h.activeManager(c.Param("exam_id"))
	if !ok {
		response.Fail(c, http.StatusNotFound, response.ErrNoActiveSession)
		return
	}
	if !m.RedoAnswer() {
		response.Fail(c, http.StatusConflict, response.ErrNothingToRedo)
		return
	}
	response.Success(c, http.StatusOK, sessionView(m))
}

// Submit godoc
// POST /api/v1/exams/:exam_id/session/submit
// Freezes the session, scores it and appends the result to history.
// Idempotent: repeat submits return the already-recorded outcome.
func (h *SessionHandler) Submit(c *gin.Context) {
	examID := c.Param("exam_id")
	exam, ok := h.registry.Get(examID)
	if !ok {
		response.Fail(c, http.StatusNotFound, response.ErrExamNotFound)
		return
	}
	m, ok := h.activeManager(examID)
	if !ok {
		response.Fail(c, http.StatusNotFound, response.ErrNoActiveSession)
		return
	}

	result, ok := h.finalize(exam, m)
	if !ok {
		response.Fail(c, http.StatusConflict, response.ErrNoActiveSession)
		return
	}
	h.stopTimer(examID)

	response.Success(c, http.StatusOK, gin.H{
		"result":    result,
		"analytics": m.Analytics(),
	})
}

// Analytics godoc
// GET /api/v1/exams/:exam_id/session/analytics
// Returns just the behavioural metrics of the live session.
func (h *SessionHandler) Analytics(c *gin.Context) {
	m, ok := h.activeManager(c.Param("exam_id"))
	if !ok {
		response.Fail(c, http.StatusNotFound, response.ErrNoActiveSession)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"analytics": m.Analytics()})
}

// Delete godoc
// DELETE /api/v1/exams/:exam_id/session
// Discards the in-memory session and its persisted record.
func (h *SessionHandler) Delete(c *gin.Context) {
	examID := c.Param("exam_id")
	m, ok := h.activeManager(examID)
	if !ok {
		response.Fail(c, http.StatusNotFound, response.ErrNoActiveSession)
		return
	}
	m.Clear()
	h.stopTimer(examID)
	h.store.Delete(config.StorageKey.SessionKey(examID))
	response.Success(c, http.StatusOK, gin.H{"cleared": true})
}

func (h *SessionHandler) enqueue(typ model.ActionType, payload gin.H) {
	raw, err := json.Marshal(payload)
	if err != nil {
		h.log.Error().Err(err).Str("type", string(typ)).Msg("failed to encode action payload")
		return
	}
	h.queue.AddPendingAction(typ, raw)
}
