package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Clerk delivers webhooks through Svix. The signature is an HMAC-SHA256 over
// "<id>.<timestamp>.<body>", keyed with the base64 part of the whsec_ secret.
const (
	svixIDHeader        = "svix-id"
	svixTimestampHeader = "svix-timestamp"
	svixSignatureHeader = "svix-signature"

	webhookTolerance = 5 * time.Minute
)

var (
	errMissingSignature = errors.New("missing webhook signature headers")
	errStaleTimestamp   = errors.New("webhook timestamp outside tolerance")
	errBadSignature     = errors.New("no matching webhook signature")
)

func decodeWebhookSecret(secret string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, "whsec_"))
	if err != nil {
		return nil, fmt.Errorf("invalid webhook secret: %w", err)
	}
	return key, nil
}

func signWebhook(key []byte, id string, ts time.Time, body []byte) string {
	mac := hmac.New(sha256.New, key)
	fmt.Fprintf(mac, "%s.%d.", id, ts.Unix())
	mac.Write(body)
	return "v1," + base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func verifyWebhook(key []byte, h http.Header, body []byte, now time.Time) error {
	id := h.Get(svixIDHeader)
	rawTS := h.Get(svixTimestampHeader)
	sigs := h.Get(svixSignatureHeader)
	if id == "" || rawTS == "" || sigs == "" {
		return errMissingSignature
	}

	unix, err := strconv.ParseInt(rawTS, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid webhook timestamp %q: %w", rawTS, err)
	}
	ts := time.Unix(unix, 0)
	if now.Sub(ts) > webhookTolerance || ts.Sub(now) > webhookTolerance {
		return errStaleTimestamp
	}

	expected := signWebhook(key, id, ts, body)
	for _, sig := range strings.Fields(sigs) {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return nil
		}
	}
	return errBadSignature
}
