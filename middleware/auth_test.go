package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"barakahAPI/internal/identity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var devSecret = []byte("test-secret-key-for-testing-only")

func echoSubject(w http.ResponseWriter, r *http.Request) {
	id, ok := identity.ClerkID(r.Context())
	if !ok {
		id = "anonymous"
	}
	w.Write([]byte(id))
}

func TestRequireAuth(t *testing.T) {
	token, err := SignDevToken(devSecret, "user_123", time.Hour)
	require.NoError(t, err)
	expired, err := SignDevToken(devSecret, "user_123", -time.Minute)
	require.NoError(t, err)
	foreign, err := SignDevToken([]byte("someone-else"), "user_123", time.Hour)
	require.NoError(t, err)

	h := RequireAuth(HS256Verifier(devSecret))(http.HandlerFunc(echoSubject))

	cases := []struct {
		name   string
		header string
		code   int
		body   string
	}{
		{"valid", "Bearer " + token, http.StatusOK, "user_123"},
		{"missing", "", http.StatusUnauthorized, ""},
		{"no bearer prefix", token, http.StatusUnauthorized, ""},
		{"expired", "Bearer " + expired, http.StatusUnauthorized, ""},
		{"wrong key", "Bearer " + foreign, http.StatusUnauthorized, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			assert.Equal(t, tc.code, rr.Code)
			if tc.body != "" {
				assert.Equal(t, tc.body, rr.Body.String())
			} else {
				assert.Contains(t, rr.Body.String(), "error")
			}
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	token, err := SignDevToken(devSecret, "user_opt", time.Hour)
	require.NoError(t, err)
	h := OptionalAuth(HS256Verifier(devSecret))(http.HandlerFunc(echoSubject))

	for header, want := range map[string]string{
		"":                "anonymous",
		"Bearer garbage":  "anonymous",
		"Bearer " + token: "user_opt",
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, want, rr.Body.String())
	}
}
