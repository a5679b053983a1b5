package middleware

import (
	"context"
	"net/http"
	"time"

	"barakahAPI/internal/logger"
)

type subjectSinkKey struct{}

func withSubjectSink(ctx context.Context, dst *string) context.Context {
	return context.WithValue(ctx, subjectSinkKey{}, dst)
}

// recordSubject lets auth middleware further down the chain report the caller.
func recordSubject(ctx context.Context, subject string) {
	if dst, ok := ctx.Value(subjectSinkKey{}).(*string); ok {
		*dst = subject
	}
}

// LoggingMiddleware logs every request with its status and latency.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := wrap(w)

		// filled in by RequireAuth/OptionalAuth further down the chain
		var clerkID string
		next.ServeHTTP(ww, r.WithContext(withSubjectSink(r.Context(), &clerkID)))

		event := logger.Info()
		if ww.statusCode >= 400 {
			event = logger.Warn()
		}
		if ww.statusCode >= 500 {
			event = logger.Error()
		}

		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("route", routeLabel(r)).
			Int("status", ww.statusCode).
			Dur("latency", time.Since(start)).
			Str("ip", clientIP(r)).
			Str("user_agent", r.UserAgent()).
			Str("clerk_id", clerkID).
			Int("body_size", ww.size).
			Msg("request")
	})
}
