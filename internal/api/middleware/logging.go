package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/zatekoja/mindcare-directory/internal/infrastructure/observability"
)

// LoggingMiddleware logs every request and attaches a request-scoped logger
// to the context for handlers and services further down
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		logger := observability.GetLogger().With().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Logger()
		if userID := r.Header.Get(UserIDHeader); userID != "" {
			logger = logger.With().Str("user_id", userID).Logger()
		}
		ctx := observability.WithLogger(r.Context(), logger)

		rw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r.WithContext(ctx))

		var event *zerolog.Event
		switch {
		case rw.statusCode >= 500:
			event = logger.Error()
		case rw.statusCode >= 400:
			event = logger.Warn()
		default:
			event = logger.Info()
		}
		event.
			Int("status", rw.statusCode).
			Dur("duration", time.Since(start)).
			Msg("request completed")
	})
}

// loggingResponseWriter wraps http.ResponseWriter to capture status code
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *loggingResponseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

// Unwrap lets http.ResponseController reach Flush and deadlines underneath
func (rw *loggingResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
