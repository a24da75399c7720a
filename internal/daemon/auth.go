package daemon

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"weft/internal/logging"
	"weft/internal/requestctx"
)

// operatorAuth validates the dashboard bearer token. An empty configured
// token disables authentication and all requests pass through.
func (s *apiServer) operatorAuth(next http.HandlerFunc) http.HandlerFunc {
	if s.token == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			http.Error(w, `{"ok":false,"error":{"code":"UNAUTHORIZED","message":"unauthorized"}}`, http.StatusUnauthorized)
			return
		}
		if strings.TrimPrefix(auth, "Bearer ") != s.token {
			http.Error(w, `{"ok":false,"error":{"code":"UNAUTHORIZED","message":"unauthorized"}}`, http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// sdkAuth resolves the SDK token header to a project and stores the project
// id on the request context. Requests without a valid token are rejected.
func (s *apiServer) sdkAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(r.Header.Get("X-Weft-SDK-Token"))
		project, err := s.daemon.catalog.ProjectByToken(r.Context(), token)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if project == nil {
			http.Error(w, `{"ok":false,"error":{"code":"UNAUTHORIZED","message":"unauthorized"}}`, http.StatusUnauthorized)
			return
		}
		ctx := requestctx.WithProjectID(r.Context(), project.ID)
		next(w, r.WithContext(ctx))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

// requestLog tags every request with a correlation id and logs its outcome.
func (s *apiServer) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		ctx := requestctx.WithRequestID(r.Context(), requestID)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r.WithContext(ctx))

		s.log().Debug("request handled",
			logging.String(logging.FieldCorrelationID, requestID),
			logging.String("method", r.Method),
			logging.String(logging.FieldRoute, r.URL.Path),
			logging.Int("status", rec.status),
			logging.Duration("duration", time.Since(start)))
	})
}
