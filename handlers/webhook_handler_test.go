package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"barakahAPI/internal/apperr"
	"barakahAPI/internal/ledger"
	"barakahAPI/internal/session"
	"barakahAPI/internal/store"
	"barakahAPI/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testWebhookKey    = []byte("0123456789abcdef0123456789abcdef")
	testWebhookSecret = "whsec_" + base64.StdEncoding.EncodeToString(testWebhookKey)
)

func userPayload(eventType, clerkID, username string) []byte {
	return []byte(fmt.Sprintf(`{
		"object": "event",
		"type": %q,
		"data": {
			"id": %q,
			"username": %q,
			"first_name": "Amina",
			"last_name": "Yusuf",
			"image_url": "",
			"profile_image_url": "https://img.example.com/%s.png"
		}
	}`, eventType, clerkID, username, clerkID))
}

func newWebhookFixture(t *testing.T) (*WebhookHandler, *memory.Store, *session.Registry) {
	t.Helper()
	mem := memory.New()
	sessions := session.NewRegistry(ledger.NewService(mem))
	h, err := NewWebhookHandler(mem, sessions, testWebhookSecret)
	require.NoError(t, err)
	h.now = func() time.Time { return fixedNow }
	return h, mem, sessions
}

func signedRequest(body []byte, ts time.Time) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(svixIDHeader, "msg_test")
	req.Header.Set(svixTimestampHeader, strconv.FormatInt(ts.Unix(), 10))
	req.Header.Set(svixSignatureHeader, "v1,bm90LXRoaXMtb25l "+signWebhook(testWebhookKey, "msg_test", ts, body))
	return req
}

func TestWebhookUserLifecycle(t *testing.T) {
	h, mem, sessions := newWebhookFixture(t)
	ctx := context.Background()

	rr := httptest.NewRecorder()
	h.HandleClerkWebhook(rr, signedRequest(userPayload("user.created", "user_wh", "amina"), fixedNow))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	id, err := mem.ResolveUser(ctx, "user_wh")
	require.NoError(t, err)
	p, err := mem.ReadProfile(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, p.DisplayName)
	assert.Equal(t, "amina", *p.DisplayName)
	require.NotNil(t, p.AvatarURL)
	assert.Equal(t, "https://img.example.com/user_wh.png", *p.AvatarURL)

	rr = httptest.NewRecorder()
	h.HandleClerkWebhook(rr, signedRequest(userPayload("user.updated", "user_wh", ""), fixedNow))
	require.Equal(t, http.StatusOK, rr.Code)
	p, err = mem.ReadProfile(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Amina Yusuf", *p.DisplayName)

	sessions.For(id)
	rr = httptest.NewRecorder()
	h.HandleClerkWebhook(rr, signedRequest([]byte(`{"type":"user.deleted","data":{"id":"user_wh","deleted":true}}`), fixedNow))
	require.Equal(t, http.StatusOK, rr.Code)
	_, err = mem.ResolveUser(ctx, "user_wh")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, 0, sessions.Len())

	// redelivery of the delete is harmless
	rr = httptest.NewRecorder()
	h.HandleClerkWebhook(rr, signedRequest([]byte(`{"type":"user.deleted","data":{"id":"user_wh"}}`), fixedNow))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestWebhookUpdateBeforeCreate(t *testing.T) {
	h, mem, _ := newWebhookFixture(t)

	rr := httptest.NewRecorder()
	h.HandleClerkWebhook(rr, signedRequest(userPayload("user.updated", "user_early", "early"), fixedNow))
	require.Equal(t, http.StatusOK, rr.Code)

	_, err := mem.ResolveUser(context.Background(), "user_early")
	assert.NoError(t, err)
}

func TestWebhookRejectsBadSignatures(t *testing.T) {
	h, mem, _ := newWebhookFixture(t)
	body := userPayload("user.created", "user_forged", "mallory")

	tampered := signedRequest(body, fixedNow)
	tampered.Body = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(userPayload("user.created", "user_other", "x"))).Body

	unsigned := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", bytes.NewReader(body))

	cases := map[string]*http.Request{
		"tampered body": tampered,
		"stale":         signedRequest(body, fixedNow.Add(-10*time.Minute)),
		"future":        signedRequest(body, fixedNow.Add(10*time.Minute)),
		"unsigned":      unsigned,
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.HandleClerkWebhook(rr, req)
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
		})
	}

	_, err := mem.ResolveUser(context.Background(), "user_forged")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestWebhookWithoutSecret(t *testing.T) {
	mem := memory.New()
	h, err := NewWebhookHandler(mem, session.NewRegistry(ledger.NewService(mem)), "")
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", bytes.NewReader(userPayload("user.created", "user_dev", "dev")))
	h.HandleClerkWebhook(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	p, err := mem.EnsureProfile(context.Background(), store.NewProfile{ClerkID: "user_dev"})
	require.NoError(t, err)
	assert.Equal(t, "dev", *p.DisplayName)
}

func TestWebhookBadInput(t *testing.T) {
	_, err := NewWebhookHandler(memory.New(), nil, "whsec_!!!")
	assert.Error(t, err)

	h, _, _ := newWebhookFixture(t)
	rr := httptest.NewRecorder()
	h.HandleClerkWebhook(rr, signedRequest([]byte(`not json`), fixedNow))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	h.HandleClerkWebhook(rr, signedRequest([]byte(`{"type":"session.created","data":{}}`), fixedNow))
	assert.Equal(t, http.StatusOK, rr.Code)
}
