package http

import (
	"net/http"
	"time"

	"federation/logger"
)

type ResponseWriter struct {
	http.ResponseWriter
	statusCode   int
	responseSize int64
}

func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{w, http.StatusOK, 0}
}

func (rw *ResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *ResponseWriter) Write(b []byte) (int, error) {
	size, err := rw.ResponseWriter.Write(b)
	rw.responseSize += int64(size)
	return size, err
}

// LoggingMiddleware logs one entry per request. The query string is left
// out because it carries authorization codes.
func LoggingMiddleware(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := NewResponseWriter(w)

			next.ServeHTTP(rw, r)

			entry := log.With(
				logger.F("method", r.Method),
				logger.F("path", r.URL.Path),
				logger.F("status", rw.statusCode),
				logger.F("duration", time.Since(start).String()),
				logger.F("size", rw.responseSize),
				logger.F("ip", clientIP(r)),
				logger.F("request_id", RequestIDFromContext(r.Context())),
			).Context(r.Context())
			if rw.statusCode >= http.StatusInternalServerError {
				entry.Error("request failed")
				return
			}
			entry.Info("request")
		})
	}
}
