package model

import (
	"encoding/json"
	"time"
)

// ActionType enumerates the user actions the offline queue can buffer.
type ActionType string

const (
	ActionAnswer     ActionType = "answer"
	ActionFlag       ActionType = "flag"
	ActionNavigation ActionType = "navigation"
	ActionSubmit     ActionType = "submit"
)

// ActionStatus enumerates the delivery states of a pending action.
type ActionStatus string

const (
	ActionStatusPending    ActionStatus = "PENDING"
	ActionStatusProcessing ActionStatus = "PROCESSING"
	ActionStatusAbandoned  ActionStatus = "ABANDONED"
)

// PendingAction is one buffered user action awaiting delivery to the
// sync target. The payload is opaque to the queue.
type PendingAction struct {
	ID         string          `json:"id"`
	Type       ActionType      `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Timestamp  time.Time       `json:"timestamp"`
	RetryCount int             `json:"retry_count"`
	Status     ActionStatus    `json:"status"`
}
