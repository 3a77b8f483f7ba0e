package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"
	ErrEmailTaken         ErrCode = "EMAIL_TAKEN"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrPermissionDenied    ErrCode = "PERMISSION_DENIED"
	ErrCandidateAccessOnly ErrCode = "CANDIDATE_ACCESS_ONLY"
	ErrAdminAccessOnly     ErrCode = "ADMIN_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation      ErrCode = "VALIDATION_ERROR"
	ErrInvalidID       ErrCode = "INVALID_ID"
	ErrInvalidPayload  ErrCode = "INVALID_PAYLOAD"
	ErrInvalidQuestion ErrCode = "INVALID_QUESTION"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Exam ──────────────────────────────────────────────────────────
	ErrNotEligible          ErrCode = "NOT_ELIGIBLE"
	ErrNoLiveSession        ErrCode = "NO_LIVE_SESSION"
	ErrNoExamResult         ErrCode = "NO_EXAM_RESULT"
	ErrRetakeCooldown       ErrCode = "RETAKE_COOLDOWN"
	ErrNothingToRetake      ErrCode = "NOTHING_TO_RETAKE"
	ErrCapabilityDenied     ErrCode = "CAPABILITY_DENIED"
	ErrSessionNotInProgress ErrCode = "SESSION_NOT_IN_PROGRESS"
	ErrInvalidSelection     ErrCode = "INVALID_SELECTION"
	ErrPersistFailed        ErrCode = "PERSIST_FAILED"
	ErrBadFrame             ErrCode = "BAD_FRAME"
	ErrUnknownAction        ErrCode = "UNKNOWN_ACTION"

	// ─── Question import ───────────────────────────────────────────────
	ErrNothingImported   ErrCode = "NOTHING_IMPORTED"
	ErrExtractorDisabled ErrCode = "AI_DISABLED"
	ErrExtractorFailed   ErrCode = "AI_FAILED"

	// ─── Media ─────────────────────────────────────────────────────────
	ErrFileRequired    ErrCode = "FILE_REQUIRED"
	ErrUnsupportedFile ErrCode = "UNSUPPORTED_FILE_TYPE"
	ErrFileTooLarge    ErrCode = "FILE_TOO_LARGE"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

var messages = map[ErrCode]string{
	ErrInvalidCredentials: "Incorrect email or password.",
	ErrSessionInvalidated: "Your session has ended. Please log in again.",
	ErrTokenRequired:      "An authentication token is required.",
	ErrTokenInvalid:       "The authentication token is invalid.",
	ErrTokenExpired:       "The authentication token has expired.",
	ErrEmailTaken:         "An account with this email already exists.",

	ErrPermissionDenied:    "Permission denied.",
	ErrCandidateAccessOnly: "This resource is restricted to candidates.",
	ErrAdminAccessOnly:     "This resource is restricted to administrators.",

	ErrValidation:      "Validation failed. Please check your input.",
	ErrInvalidID:       "Invalid ID format.",
	ErrInvalidPayload:  "Invalid request payload.",
	ErrInvalidQuestion: "The question data is invalid.",

	ErrNotFound: "Resource not found.",
	ErrConflict: "Resource already exists.",

	ErrNotEligible:          "A purchase is required and the exam must not be completed yet.",
	ErrNoLiveSession:        "The candidate has no live exam session.",
	ErrNoExamResult:         "No exam result is available yet.",
	ErrRetakeCooldown:       "A new attempt is not available yet.",
	ErrNothingToRetake:      "There is no completed exam to retake.",
	ErrCapabilityDenied:     "Screen sharing is required to start the exam.",
	ErrSessionNotInProgress: "The exam is not in progress.",
	ErrInvalidSelection:     "The selected answer is not valid for the current question.",
	ErrPersistFailed:        "Your result could not be saved. Please retry submission.",
	ErrBadFrame:             "The screen frame could not be decoded.",
	ErrUnknownAction:        "Unknown action.",

	ErrNothingImported:   "No usable questions were found in the input.",
	ErrExtractorDisabled: "AI question generation is not configured.",
	ErrExtractorFailed:   "AI question generation failed.",

	ErrFileRequired:    "A file upload is required.",
	ErrUnsupportedFile: "Unsupported file type.",
	ErrFileTooLarge:    "The file exceeds the size limit.",

	ErrRateLimitExceeded: "Too many requests. Please try again later.",

	ErrInternal: "An internal server error occurred.",
}

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	if msg, ok := messages[code]; ok {
		return msg
	}
	return "An unexpected error occurred."
}
