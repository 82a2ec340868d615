package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound        ErrCode = "NOT_FOUND"
	ErrConflict        ErrCode = "CONFLICT"
	ErrActionForbidden ErrCode = "ACTION_FORBIDDEN"

	// ─── Session ───────────────────────────────────────────────────────
	ErrNoActiveSession  ErrCode = "NO_ACTIVE_SESSION"
	ErrSessionSubmitted ErrCode = "SESSION_ALREADY_SUBMITTED"
	ErrNothingToUndo    ErrCode = "NOTHING_TO_UNDO"
	ErrNothingToRedo    ErrCode = "NOTHING_TO_REDO"

	// ─── Exam definitions ──────────────────────────────────────────────
	ErrExamNotFound  ErrCode = "EXAM_NOT_FOUND"
	ErrExamMalformed ErrCode = "EXAM_MALFORMED"
	ErrNoQuestions   ErrCode = "NO_QUESTIONS"
	ErrDuplicateExam ErrCode = "DUPLICATE_EXAM"

	// ─── Storage ───────────────────────────────────────────────────────
	ErrStorageQuota     ErrCode = "STORAGE_QUOTA_EXCEEDED"
	ErrStorageCorrupted ErrCode = "STORAGE_CORRUPTED"
	ErrRestoreFailed    ErrCode = "RESTORE_FAILED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "Resource already exists."
	case ErrActionForbidden:
		return "This action is not allowed."

	// ─── Session ───────────────────────────────────────────────────────
	case ErrNoActiveSession:
		return "No active quiz session for this exam."
	case ErrSessionSubmitted:
		return "This quiz session has already been submitted."
	case ErrNothingToUndo:
		return "There is nothing to undo."
	case ErrNothingToRedo:
		return "There is nothing to redo."

	// ─── Exam definitions ──────────────────────────────────────────────
	case ErrExamNotFound:
		return "Exam not found."
	case ErrExamMalformed:
		return "The exam content could not be parsed."
	case ErrNoQuestions:
		return "This exam has no questions."
	case ErrDuplicateExam:
		return "An exam with this ID already exists."

	// ─── Storage ───────────────────────────────────────────────────────
	case ErrStorageQuota:
		return "Storage quota exceeded."
	case ErrStorageCorrupted:
		return "Stored data is corrupted."
	case ErrRestoreFailed:
		return "Backup restore failed. Existing data was left unchanged."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
