package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError           Event = "error"
	EventPong            Event = "pong"
	EventStorageError    Event = "storage_error"
	EventActionAbandoned Event = "action_abandoned"
	EventTimerWarning    Event = "timer_warning"
	EventTimerExpired    Event = "timer_expired"
	EventSyncReport      Event = "sync_report"
)

// StorageErrorNotice reports a persistence failure to connected clients.
type StorageErrorNotice struct {
	Event   Event  `json:"event"`
	Type    string `json:"type"`
	Key     string `json:"key,omitempty"`
	Message string `json:"message"`
}

// ActionAbandonedNotice reports an offline action dropped after retry exhaustion.
type ActionAbandonedNotice struct {
	Event      Event  `json:"event"`
	ActionID   string `json:"action_id"`
	ActionType string `json:"action_type"`
	RetryCount int    `json:"retry_count"`
}

// TimerNotice reports a countdown threshold or expiry.
type TimerNotice struct {
	Event            Event  `json:"event"`
	ExamID           string `json:"exam_id"`
	RemainingSeconds int    `json:"remaining_seconds"`
}

// SyncReportNotice summarizes a queue sync pass.
type SyncReportNotice struct {
	Event     Event `json:"event"`
	Delivered int   `json:"delivered"`
	Retried   int   `json:"retried"`
	Abandoned int   `json:"abandoned"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
