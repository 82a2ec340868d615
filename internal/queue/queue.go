// Package queue buffers user actions that must eventually reach the sync
// target, retrying with exponential backoff while the app is offline or
// the target is failing. Actions that exhaust their retries are moved to
// a persisted dead-letter list and reported, never silently dropped.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quizdrill/quizdrill-backend/internal/config"
	"github.com/quizdrill/quizdrill-backend/internal/model"
	"github.com/quizdrill/quizdrill-backend/internal/sched"
	"github.com/quizdrill/quizdrill-backend/internal/storage"
	"github.com/rs/zerolog"
)

// ProcessFunc delivers one action to the sync target. delivered=false
// with a nil error means the target rejected the action.
type ProcessFunc func(ctx context.Context, action model.PendingAction) (delivered bool, err error)

// Options tunes the retry policy.
type Options struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// SyncReport summarizes one drain pass.
type SyncReport struct {
	Attempted int `json:"attempted"`
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
}

// Queue is the offline action queue. Retry timers for the same action id
// never overlap: arming a retry replaces the previous timer, and an
// in-flight flag keeps concurrent attempts out.
type Queue struct {
	mu      sync.Mutex
	log     zerolog.Logger
	store   *storage.Store
	process ProcessFunc
	opts    Options
	now     func() time.Time

	online   bool
	actions  map[string]*model.PendingAction
	order    []string
	timers   map[string]*time.Timer
	inFlight map[string]bool
	dead     []model.PendingAction

	onAbandon      func(model.PendingAction)
	cancelPeriodic func()
}

// New creates a queue. Previously abandoned actions are reloaded from
// the store so they stay visible across restarts.
func New(store *storage.Store, process ProcessFunc, opts Options, log zerolog.Logger) *Queue {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 30 * time.Second
	}
	q := &Queue{
		log:      log.With().Str("component", "offline_queue").Logger(),
		store:    store,
		process:  process,
		opts:     opts,
		now:      time.Now,
		actions:  make(map[string]*model.PendingAction),
		timers:   make(map[string]*time.Timer),
		inFlight: make(map[string]bool),
	}
	store.Read(config.StorageKey.DeadLetterKey(), &q.dead)
	return q
}

// OnAbandon registers the abandonment report callback.
func (q *Queue) OnAbandon(fn func(model.PendingAction)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onAbandon = fn
}

// AddPendingAction enqueues an action. When the app is online an
// immediate delivery attempt is made before falling back to retries.
func (q *Queue) AddPendingAction(typ model.ActionType, payload json.RawMessage) model.PendingAction {
	action := model.PendingAction{
		ID:        fmt.Sprintf("%d-%s", q.now().UnixMilli(), uuid.New().String()[:8]),
		Type:      typ,
		Payload:   payload,
		Timestamp: q.now(),
		Status:    model.ActionStatusPending,
	}

	q.mu.Lock()
	q.actions[action.ID] = &action
	q.order = append(q.order, action.ID)
	online := q.online
	q.mu.Unlock()

	q.log.Debug().Str("action_id", action.ID).Str("type", string(typ)).Msg("action enqueued")
	if online {
		go q.attempt(action.ID)
	}
	return action
}

// Sync drains the whole queue concurrently, removing every delivered
// action and individually rescheduling every failure.
func (q *Queue) Sync(ctx context.Context) SyncReport {
	q.mu.Lock()
	ids := make([]string, 0, len(q.order))
	for _, id := range q.order {
		if !q.inFlight[id] {
			ids = append(ids, id)
		}
	}
	q.mu.Unlock()

	var report SyncReport
	var repMu sync.Mutex
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			delivered, attempted := q.attemptCtx(ctx, id)
			repMu.Lock()
			if attempted {
				report.Attempted++
				if delivered {
					report.Delivered++
				} else {
					report.Failed++
				}
			}
			repMu.Unlock()
		}(id)
	}
	wg.Wait()
	return report
}

// SetOnline flips the connectivity flag. The offline edge has no side
// effects; the online edge triggers an immediate full sync.
func (q *Queue) SetOnline(online bool) {
	q.mu.Lock()
	was := q.online
	q.online = online
	q.mu.Unlock()

	if online && !was {
		q.log.Info().Msg("back online, syncing queue")
		go q.Sync(context.Background())
	}
}

// Online reports the connectivity flag.
func (q *Queue) Online() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.online
}

// StartPeriodicSync opportunistically drains a non-empty queue on a
// fixed interval while online, independent of transition events.
func (q *Queue) StartPeriodicSync(scheduler sched.Scheduler, interval time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cancelPeriodic != nil {
		return
	}
	q.cancelPeriodic = scheduler.Schedule(interval, func() {
		if q.Online() && q.Len() > 0 {
			q.Sync(context.Background())
		}
	})
}

// ClearPending cancels every scheduled retry and empties the active
// queue. Deliberately destructive; confirmation is the caller's job.
// The dead-letter list is left intact.
func (q *Queue) ClearPending() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for id, t := range q.timers {
		t.Stop()
		delete(q.timers, id)
	}
	q.actions = make(map[string]*model.PendingAction)
	q.order = nil
	q.log.Info().Msg("pending actions cleared")
}

// Stop shuts the queue down: periodic sync and all retry timers stop,
// queued actions stay in memory for a final manual Sync if wanted.
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cancelPeriodic != nil {
		q.cancelPeriodic()
		q.cancelPeriodic = nil
	}
	for id, t := range q.timers {
		t.Stop()
		delete(q.timers, id)
	}
}

// Len returns the number of active (not abandoned) actions.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.actions)
}

// Pending returns copies of the active actions in enqueue order.
func (q *Queue) Pending() []model.PendingAction {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]model.PendingAction, 0, len(q.order))
	for _, id := range q.order {
		if a, ok := q.actions[id]; ok {
			out = append(out, *a)
		}
	}
	return out
}

// DeadLetters returns the abandoned actions, oldest first.
func (q *Queue) DeadLetters() []model.PendingAction {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]model.PendingAction, len(q.dead))
	copy(out, q.dead)
	return out
}

// ─── Internals ──────────────────────────────────────────────────────

func (q *Queue) attempt(id string) {
	q.attemptCtx(context.Background(), id)
}

// attemptCtx runs one delivery attempt. Returns (delivered, attempted);
// attempted is false when the action vanished or is already in flight.
func (q *Queue) attemptCtx(ctx context.Context, id string) (bool, bool) {
	q.mu.Lock()
	action, ok := q.actions[id]
	if !ok || q.inFlight[id] {
		q.mu.Unlock()
		return false, false
	}
	q.inFlight[id] = true
	action.Status = model.ActionStatusProcessing
	snapshot := *action
	q.mu.Unlock()

	delivered, err := q.process(ctx, snapshot)

	q.mu.Lock()
	delete(q.inFlight, id)
	action, ok = q.actions[id]
	if !ok {
		// Cleared while in flight.
		q.mu.Unlock()
		return delivered, true
	}
	if delivered {
		q.removeLocked(id)
		q.mu.Unlock()
		q.log.Debug().Str("action_id", id).Msg("action delivered")
		return true, true
	}

	if err != nil {
		q.log.Warn().Err(err).Str("action_id", id).Int("retry", action.RetryCount).Msg("delivery failed")
	}
	q.scheduleRetryLocked(action)
	q.mu.Unlock()
	return false, true
}

// scheduleRetryLocked arms the next backoff timer, replacing any prior
// timer for this id, or abandons the action past the retry budget.
func (q *Queue) scheduleRetryLocked(action *model.PendingAction) {
	action.RetryCount++
	if action.RetryCount > q.opts.MaxRetries {
		q.abandonLocked(action)
		return
	}

	action.Status = model.ActionStatusPending
	delay := q.backoff(action.RetryCount)
	if t, ok := q.timers[action.ID]; ok {
		t.Stop()
	}
	id := action.ID
	q.timers[id] = time.AfterFunc(delay, func() { q.attempt(id) })
	q.log.Debug().Str("action_id", id).Dur("delay", delay).Msg("retry scheduled")
}

func (q *Queue) abandonLocked(action *model.PendingAction) {
	action.Status = model.ActionStatusAbandoned
	dead := *action
	q.removeLocked(action.ID)
	q.dead = append(q.dead, dead)
	q.store.Write(config.StorageKey.DeadLetterKey(), q.dead)
	q.log.Warn().Str("action_id", dead.ID).Str("type", string(dead.Type)).Msg("action abandoned after max retries")

	if q.onAbandon != nil {
		go q.onAbandon(dead)
	}
}

func (q *Queue) removeLocked(id string) {
	delete(q.actions, id)
	if t, ok := q.timers[id]; ok {
		t.Stop()
		delete(q.timers, id)
	}
	for i, oid := range q.order {
		if oid == id {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
}

// backoff doubles per attempt from the base delay, capped.
func (q *Queue) backoff(retryCount int) time.Duration {
	delay := q.opts.BaseDelay
	for i := 1; i < retryCount; i++ {
		delay *= 2
		if delay >= q.opts.MaxDelay {
			return q.opts.MaxDelay
		}
	}
	if delay > q.opts.MaxDelay {
		delay = q.opts.MaxDelay
	}
	return delay
}
