package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"weft/internal/capture"
)

func TestHTTPStatusFor(t *testing.T) {
	cases := []struct {
		code string
		want int
	}{
		{capture.CodeValidation, http.StatusBadRequest},
		{capture.CodeSessionNotFound, http.StatusNotFound},
		{capture.CodeSessionNotActive, http.StatusConflict},
		{capture.CodeSDKConflict, http.StatusConflict},
		{capture.CodeSessionExpired, http.StatusConflict},
		{capture.CodeUniqueConflict, http.StatusConflict},
		{capture.CodeOverLimit, http.StatusTooManyRequests},
		{capture.CodeInternal, http.StatusInternalServerError},
		{"SOMETHING_ELSE", http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := HTTPStatusFor(tc.code); got != tc.want {
			t.Fatalf("HTTPStatusFor(%s) = %d, want %d", tc.code, got, tc.want)
		}
	}
}

func TestErrorBodyFor(t *testing.T) {
	body := ErrorBodyFor(fmt.Errorf("session abc: %w", capture.ErrSessionExpired))
	if body.Code != capture.CodeSessionExpired {
		t.Fatalf("code = %s", body.Code)
	}
	if body.Message == "" {
		t.Fatal("missing message")
	}

	internal := ErrorBodyFor(errors.New("sqlite disk io"))
	if internal.Code != capture.CodeInternal {
		t.Fatalf("code = %s", internal.Code)
	}
	if internal.Message != "internal error" {
		t.Fatalf("internal detail leaked: %q", internal.Message)
	}
}
