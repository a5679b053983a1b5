package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"barakahAPI/internal/logger"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("ok"))
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	h := rl.Middleware(http.HandlerFunc(ok))

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// other clients have their own bucket
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "192.168.1.9, 10.0.0.1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	rl.sweep(0)
	rl.mu.Lock()
	assert.Empty(t, rl.visitors)
	rl.mu.Unlock()
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:443"
	assert.Equal(t, "203.0.113.7", clientIP(req))

	req.Header.Set("X-Forwarded-For", " 198.51.100.2 ,203.0.113.7")
	assert.Equal(t, "198.51.100.2", clientIP(req))
}

func TestBasicAuth(t *testing.T) {
	h := BasicAuth("prom", "scrape")(http.HandlerFunc(ok))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("WWW-Authenticate"))

	req.SetBasicAuth("prom", "wrong")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req.SetBasicAuth("prom", "scrape")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	locked := BasicAuth("", "")(http.HandlerFunc(ok))
	req.SetBasicAuth("", "")
	rr = httptest.NewRecorder()
	locked.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLoggingMiddlewareRecordsRouteAndUser(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter("production", &buf)
	t.Cleanup(func() { logger.InitWithWriter("production", &bytes.Buffer{}) })

	token, err := SignDevToken(devSecret, "user_log", time.Hour)
	require.NoError(t, err)

	r := mux.NewRouter()
	r.Use(LoggingMiddleware)
	protected := r.PathPrefix("/api").Subrouter()
	protected.Use(RequireAuth(HS256Verifier(devSecret)))
	protected.HandleFunc("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	req := httptest.NewRequest(http.MethodPut, "/api/items/42", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line), buf.String())
	assert.Equal(t, "request", line["message"])
	assert.Equal(t, "/api/items/42", line["path"])
	assert.Equal(t, "/api/items/{id}", line["route"])
	assert.EqualValues(t, http.StatusCreated, line["status"])
	assert.Equal(t, "user_log", line["clerk_id"])
}

func TestMonitorMiddlewareUsesRouteTemplate(t *testing.T) {
	reg := prometheus.NewRegistry()
	InitPrometheus(reg)

	r := mux.NewRouter()
	r.Use(MonitorMiddleware)
	r.HandleFunc("/api/v1/quests/{id}/completion", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}).Methods("PUT")

	for _, id := range []string{"a", "b", "c"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPut, "/api/v1/quests/"+id+"/completion", nil))
	}

	counter := httpRequestsTotal.WithLabelValues("/api/v1/quests/{id}/completion", http.MethodPut, http.StatusText(http.StatusConflict))
	assert.Equal(t, 3.0, testutil.ToFloat64(counter))
}
