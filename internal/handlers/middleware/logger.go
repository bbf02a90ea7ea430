package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-ID"

type logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// statusRecorder remembers what was sent to the client
type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (w *statusRecorder) Write(p []byte) (int, error) {
	n, err := w.ResponseWriter.Write(p)
	w.size += n
	return n, err
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.ResponseWriter.WriteHeader(statusCode)
	w.status = statusCode
}

// Returns request id sent by the client (e.g. a proxy) or a fresh one
func requestID(r *http.Request) string {
	if id := r.Header.Get(RequestIDHeader); id != "" && len(id) <= 128 {
		return id
	}
	return uuid.NewString()
}

// LoggerMiddleware logs every request once it is served.
// Only the path is logged: query strings and headers may carry credentials.
func LoggerMiddleware(l logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			id := requestID(r)
			w.Header().Set(RequestIDHeader, id)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			args := []any{
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
				"duration", time.Since(start),
				"status", rec.status,
				"size", rec.size,
			}

			switch {
			case rec.status >= http.StatusInternalServerError:
				l.Error("HTTP request failed", args...)
			case rec.status >= http.StatusBadRequest:
				l.Warn("HTTP request rejected", args...)
			default:
				l.Info("HTTP request served", args...)
			}
		})
	}
}
