package model

import "time"

// StorageErrorType classifies durable-store failures.
type StorageErrorType string

const (
	StorageErrQuotaExceeded    StorageErrorType = "quota_exceeded"
	StorageErrCorruptedData    StorageErrorType = "corrupted_data"
	StorageErrNetworkError     StorageErrorType = "network_error"
	StorageErrPermissionDenied StorageErrorType = "permission_denied"
)

// StorageError is a converted low-level storage failure. It is broadcast
// to subscribers instead of being returned from mutating calls.
type StorageError struct {
	Type        StorageErrorType `json:"type"`
	Message     string           `json:"message"`
	Timestamp   time.Time        `json:"timestamp"`
	Recoverable bool             `json:"recoverable"`
}
