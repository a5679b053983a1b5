package middleware

import (
	"context"
	"net/http"
	"strings"

	"barakahAPI/internal/identity"
	"barakahAPI/internal/logger"

	"github.com/clerk/clerk-sdk-go/v2/jwt"
)

// Verifier checks a bearer token and returns its subject.
type Verifier func(ctx context.Context, token string) (subject string, err error)

// ClerkVerifier verifies Clerk session tokens. clerk.SetKey must have been called.
func ClerkVerifier(ctx context.Context, token string) (string, error) {
	claims, err := jwt.Verify(ctx, &jwt.VerifyParams{
		Token: token,
	})
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if authHeader == "" || token == authHeader || token == "" {
		return "", false
	}
	return token, true
}

// RequireAuth rejects requests without a valid bearer token and puts the subject on the context.
func RequireAuth(verify Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				authRejections.WithLabelValues("missing_header").Inc()
				respondWithError(w, http.StatusUnauthorized, "Authorization header required")
				return
			}
			token, ok := bearerToken(r)
			if !ok {
				authRejections.WithLabelValues("bad_format").Inc()
				respondWithError(w, http.StatusUnauthorized, "Invalid authorization format. Use 'Bearer <token>'")
				return
			}

			subject, err := verify(r.Context(), token)
			if err != nil || subject == "" {
				authRejections.WithLabelValues("invalid_token").Inc()
				logger.Debug().Err(err).Msg("token verification failed")
				respondWithError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			recordSubject(r.Context(), subject)
			next.ServeHTTP(w, r.WithContext(identity.WithClerkID(r.Context(), subject)))
		})
	}
}

// OptionalAuth accepts anonymous requests. A valid token still identifies the caller.
func OptionalAuth(verify Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token, ok := bearerToken(r); ok {
				if subject, err := verify(r.Context(), token); err == nil && subject != "" {
					recordSubject(r.Context(), subject)
					r = r.WithContext(identity.WithClerkID(r.Context(), subject))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write([]byte(`{"error": "` + message + `"}`))
}
