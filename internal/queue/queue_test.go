package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/quizdrill/quizdrill-backend/internal/config"
	"github.com/quizdrill/quizdrill-backend/internal/model"
	"github.com/quizdrill/quizdrill-backend/internal/storage"
)

// fakeProcessor counts attempts and answers from a scripted outcome list.
type fakeProcessor struct {
	mu       sync.Mutex
	attempts int
	outcomes []bool // consumed per attempt; last value repeats
}

func (p *fakeProcessor) process(ctx context.Context, action model.PendingAction) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts++
	var ok bool
	if len(p.outcomes) > 1 {
		ok, p.outcomes = p.outcomes[0], p.outcomes[1:]
	} else if len(p.outcomes) == 1 {
		ok = p.outcomes[0]
	}
	if ok {
		return true, nil
	}
	return false, errors.New("remote unavailable")
}

func (p *fakeProcessor) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts
}

func newTestQueue(t *testing.T, proc ProcessFunc, opts Options) (*Queue, *storage.Store) {
	t.Helper()
	store := storage.New(storage.NewMemMedium(), storage.Options{}, zerolog.Nop())
	return New(store, proc, opts, zerolog.Nop()), store
}

func payload(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func TestOfflineActionsOnlyBuffer(t *testing.T) {
	proc := &fakeProcessor{outcomes: []bool{true}}
	q, _ := newTestQueue(t, proc.process, Options{})

	q.AddPendingAction(model.ActionAnswer, payload(t, map[string]string{"q": "q1"}))
	q.AddPendingAction(model.ActionFlag, payload(t, map[string]string{"q": "q2"}))

	// Offline: nothing is attempted, nothing vanishes.
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 0, proc.count())
	require.Equal(t, 2, q.Len())

	pending := q.Pending()
	require.Equal(t, model.ActionAnswer, pending[0].Type)
	require.Equal(t, model.ActionFlag, pending[1].Type)
	require.Equal(t, model.ActionStatusPending, pending[0].Status)
}

func TestSyncDrainsQueue(t *testing.T) {
	proc := &fakeProcessor{outcomes: []bool{true}}
	q, _ := newTestQueue(t, proc.process, Options{})

	q.AddPendingAction(model.ActionAnswer, payload(t, map[string]int{"n": 1}))
	q.AddPendingAction(model.ActionSubmit, payload(t, map[string]int{"n": 2}))

	report := q.Sync(context.Background())
	require.Equal(t, 2, report.Attempted)
	require.Equal(t, 2, report.Delivered)
	require.Equal(t, 0, report.Failed)
	require.Equal(t, 0, q.Len())
}

func TestGoingOnlineTriggersSync(t *testing.T) {
	proc := &fakeProcessor{outcomes: []bool{true}}
	q, _ := newTestQueue(t, proc.process, Options{})

	q.AddPendingAction(model.ActionAnswer, payload(t, map[string]int{"n": 1}))
	q.SetOnline(true)

	require.Eventually(t, func() bool { return q.Len() == 0 }, time.Second, 5*time.Millisecond)
	require.Equal(t, 1, proc.count())
}

func TestRetryBackoffThenSuccess(t *testing.T) {
	// Fail twice, then deliver.
	proc := &fakeProcessor{outcomes: []bool{false, false, true}}
	q, _ := newTestQueue(t, proc.process, Options{
		MaxRetries: 3,
		BaseDelay:  5 * time.Millisecond,
		MaxDelay:   50 * time.Millisecond,
	})
	defer q.Stop()

	q.SetOnline(true)
	q.AddPendingAction(model.ActionAnswer, payload(t, map[string]int{"n": 1}))

	require.Eventually(t, func() bool { return q.Len() == 0 }, time.Second, 5*time.Millisecond)
	require.Equal(t, 3, proc.count())
	require.Empty(t, q.DeadLetters())
}

func TestAbandonAfterMaxRetries(t *testing.T) {
	proc := &fakeProcessor{outcomes: []bool{false}}
	q, store := newTestQueue(t, proc.process, Options{
		MaxRetries: 3,
		BaseDelay:  2 * time.Millisecond,
		MaxDelay:   10 * time.Millisecond,
	})
	defer q.Stop()

	abandoned := make(chan model.PendingAction, 1)
	q.OnAbandon(func(a model.PendingAction) { abandoned <- a })

	q.SetOnline(true)
	action := q.AddPendingAction(model.ActionSubmit, payload(t, map[string]int{"n": 9}))

	select {
	case dead := <-abandoned:
		require.Equal(t, action.ID, dead.ID)
		require.Equal(t, model.ActionStatusAbandoned, dead.Status)
		// First attempt plus MaxRetries retries.
		require.Equal(t, 4, dead.RetryCount)
	case <-time.After(2 * time.Second):
		t.Fatal("action was never abandoned")
	}

	require.Equal(t, 0, q.Len())
	require.Len(t, q.DeadLetters(), 1)

	// The dead letter survives in the durable store.
	var persisted []model.PendingAction
	require.True(t, store.Read(config.StorageKey.DeadLetterKey(), &persisted))
	require.Len(t, persisted, 1)
	require.Equal(t, action.ID, persisted[0].ID)
}

func TestDeadLettersReloadedOnStartup(t *testing.T) {
	proc := &fakeProcessor{outcomes: []bool{false}}
	q, store := newTestQueue(t, proc.process, Options{
		MaxRetries: 1,
		BaseDelay:  2 * time.Millisecond,
		MaxDelay:   10 * time.Millisecond,
	})
	q.SetOnline(true)
	q.AddPendingAction(model.ActionFlag, payload(t, map[string]int{"n": 1}))
	require.Eventually(t, func() bool { return len(q.DeadLetters()) == 1 }, time.Second, 5*time.Millisecond)
	q.Stop()

	q2 := New(store, proc.process, Options{}, zerolog.Nop())
	require.Len(t, q2.DeadLetters(), 1)
}

func TestClearPendingKeepsDeadLetters(t *testing.T) {
	proc := &fakeProcessor{outcomes: []bool{false}}
	q, _ := newTestQueue(t, proc.process, Options{
		MaxRetries: 1,
		BaseDelay:  2 * time.Millisecond,
		MaxDelay:   10 * time.Millisecond,
	})
	defer q.Stop()

	q.SetOnline(true)
	q.AddPendingAction(model.ActionAnswer, payload(t, map[string]int{"n": 1}))
	require.Eventually(t, func() bool { return len(q.DeadLetters()) == 1 }, time.Second, 5*time.Millisecond)

	q.SetOnline(false)
	q.AddPendingAction(model.ActionAnswer, payload(t, map[string]int{"n": 2}))
	require.Equal(t, 1, q.Len())

	q.ClearPending()
	require.Equal(t, 0, q.Len())
	require.Len(t, q.DeadLetters(), 1)
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	q, _ := newTestQueue(t, nil, Options{
		MaxRetries: 10,
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
	})

	cases := []struct {
		retry int
		want  time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 16 * time.Second},
		{6, 30 * time.Second},
		{7, 30 * time.Second},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, q.backoff(tc.retry), "retry %d", tc.retry)
	}
}
