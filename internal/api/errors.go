package api

import (
	"net/http"

	"weft/internal/capture"
)

// HTTPStatusFor maps a wire error code to its HTTP status.
func HTTPStatusFor(code string) int {
	switch code {
	case capture.CodeValidation:
		return http.StatusBadRequest
	case capture.CodeSessionNotFound:
		return http.StatusNotFound
	case capture.CodeSessionNotActive, capture.CodeSDKConflict,
		capture.CodeSessionExpired, capture.CodeUniqueConflict:
		return http.StatusConflict
	case capture.CodeOverLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// ErrorBodyFor builds the wire error for a failure.
func ErrorBodyFor(err error) *ErrorBody {
	if err == nil {
		return nil
	}
	code := capture.CodeFor(err)
	message := err.Error()
	if code == capture.CodeInternal {
		// internal details stay in the log, not on the wire
		message = "internal error"
	}
	return &ErrorBody{Code: code, Message: message}
}
