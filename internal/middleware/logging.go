// Package middleware contains HTTP middleware for request logging and
// request metrics.
//
// Both middlewares share statusRecorder to learn what the wrapped handler
// wrote. They rely on chi having routed the request by the time the
// handler returns, so the route pattern (not the raw path) can be used as
// a low-cardinality label.
//
// WHY READ THE ROUTE AFTER next.ServeHTTP?
// These middlewares are mounted on the root router, which runs them
// BEFORE chi has matched a route. chi fills in the RouteContext while it
// dispatches, so only after next returns does RoutePattern() hold
// "/api/users" rather than "". Reading it up front would label every
// request "unmatched".
package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// statusRecorder wraps http.ResponseWriter to capture the status code and
// the number of body bytes written.
//
// status starts at 200 because a handler that only calls Write never calls
// WriteHeader; net/http sends 200 implicitly in that case.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int64
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// routePattern returns the chi pattern that matched r, or "unmatched".
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// Logger returns a middleware that logs one line per completed request:
// method, path, route, status, duration, bytes and the chi request id.
//
// LOG LEVEL BY STATUS:
// 5xx responses (including panics turned into 500 by Recoverer, which runs
// inside this middleware) are logged at ERROR so they survive a LOG_LEVEL
// of warn or error; everything else is INFO.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newStatusRecorder(w)

			next.ServeHTTP(rec, r)

			level := slog.LevelInfo
			if rec.status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.LogAttrs(r.Context(), level, "request completed",
				slog.String("request_id", chimiddleware.GetReqID(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("route", routePattern(r)),
				slog.Int("status", rec.status),
				slog.Duration("duration", time.Since(start)),
				slog.Int64("bytes", rec.written),
			)
		})
	}
}
