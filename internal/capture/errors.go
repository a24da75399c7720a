package capture

import "errors"

// Sentinel errors forming the ingestion and reconciliation taxonomy. Callers
// classify with errors.Is; the API layer maps them to wire codes and HTTP
// statuses via CodeFor.
var (
	ErrValidation       = errors.New("validation error")
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionNotActive = errors.New("session not active")
	ErrSDKConflict      = errors.New("session bound to a different sdk identity")
	ErrSessionExpired   = errors.New("session expired")
	ErrOverLimit        = errors.New("session over capture limit")
	ErrUniqueConflict   = errors.New("unique constraint conflict")
)

// Wire error codes.
const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeSessionNotFound  = "SESSION_NOT_FOUND"
	CodeSessionNotActive = "SESSION_NOT_ACTIVE"
	CodeSDKConflict      = "SDK_CONFLICT"
	CodeSessionExpired   = "SESSION_EXPIRED"
	CodeOverLimit        = "SESSION_OVER_LIMIT"
	CodeUniqueConflict   = "UNIQUE_CONFLICT"
	CodeInternal         = "INTERNAL_ERROR"
)

// CodeFor maps an error to its wire code. Unclassified errors report as
// internal.
func CodeFor(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrSessionNotFound):
		return CodeSessionNotFound
	case errors.Is(err, ErrSessionExpired):
		return CodeSessionExpired
	case errors.Is(err, ErrSessionNotActive):
		return CodeSessionNotActive
	case errors.Is(err, ErrSDKConflict):
		return CodeSDKConflict
	case errors.Is(err, ErrOverLimit):
		return CodeOverLimit
	case errors.Is(err, ErrUniqueConflict):
		return CodeUniqueConflict
	default:
		return CodeInternal
	}
}
