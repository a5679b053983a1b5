package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"barakahAPI/internal/apperr"
	"barakahAPI/internal/logger"
	"barakahAPI/internal/session"
	"barakahAPI/internal/store"
)

const maxWebhookBody = 1 << 20

type clerkWebhookEvent struct {
	Type   string          `json:"type"`
	Object string          `json:"object"`
	Data   json.RawMessage `json:"data"`
}

type clerkUserData struct {
	ID              string `json:"id"`
	Username        string `json:"username"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	ImageURL        string `json:"image_url"`
	ProfileImageURL string `json:"profile_image_url"`
}

func (u clerkUserData) displayName() *string {
	name := u.Username
	if name == "" {
		name = strings.TrimSpace(u.FirstName + " " + u.LastName)
	}
	if name == "" {
		return nil
	}
	return &name
}

func (u clerkUserData) avatar() *string {
	url := u.ImageURL
	if url == "" {
		url = u.ProfileImageURL
	}
	if url == "" {
		return nil
	}
	return &url
}

func (u clerkUserData) newProfile() store.NewProfile {
	return store.NewProfile{
		ClerkID:     u.ID,
		DisplayName: u.displayName(),
		AvatarURL:   u.avatar(),
	}
}

type WebhookHandler struct {
	store    store.Store
	sessions *session.Registry
	key      []byte
	now      func() time.Time
}

// NewWebhookHandler verifies deliveries with the whsec_ secret. An empty secret turns
// verification off, which serve only allows in development.
func NewWebhookHandler(s store.Store, sessions *session.Registry, secret string) (*WebhookHandler, error) {
	h := &WebhookHandler{store: s, sessions: sessions, now: time.Now}
	if secret != "" {
		key, err := decodeWebhookSecret(secret)
		if err != nil {
			return nil, err
		}
		h.key = key
	}
	return h, nil
}

func (h *WebhookHandler) HandleClerkWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Error reading body")
		return
	}

	if h.key != nil {
		if err := verifyWebhook(h.key, r.Header, body, h.now()); err != nil {
			logger.Warn().Err(err).Msg("rejected clerk webhook")
			respondWithError(w, http.StatusUnauthorized, "Invalid signature")
			return
		}
	}

	var event clerkWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		respondWithError(w, http.StatusBadRequest, "Error parsing webhook")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	switch event.Type {
	case "user.created":
		err = h.handleUserCreated(ctx, event.Data)
	case "user.updated":
		err = h.handleUserUpdated(ctx, event.Data)
	case "user.deleted":
		err = h.handleUserDeleted(ctx, event.Data)
	default:
		logger.Debug().Str("type", event.Type).Msg("unhandled webhook event type")
	}
	if err != nil {
		logger.Error().Err(err).Str("type", event.Type).Msg("failed to process webhook")
		respondWithError(w, http.StatusInternalServerError, "Error processing webhook")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func decodeUser(data json.RawMessage) (clerkUserData, error) {
	var u clerkUserData
	if err := json.Unmarshal(data, &u); err != nil {
		return u, fmt.Errorf("failed to unmarshal user data: %w", err)
	}
	if u.ID == "" {
		return u, fmt.Errorf("user data has no id")
	}
	return u, nil
}

func (h *WebhookHandler) handleUserCreated(ctx context.Context, data json.RawMessage) error {
	u, err := decodeUser(data)
	if err != nil {
		return err
	}
	profile, err := h.store.EnsureProfile(ctx, u.newProfile())
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	logger.Info().Str("clerk_id", u.ID).Str("user_id", profile.ID.String()).Msg("profile created")
	return nil
}

func (h *WebhookHandler) handleUserUpdated(ctx context.Context, data json.RawMessage) error {
	u, err := decodeUser(data)
	if err != nil {
		return err
	}
	err = h.store.UpdateIdentity(ctx, u.newProfile())
	if errors.Is(err, apperr.ErrNotFound) {
		// user.updated overtook user.created
		_, err = h.store.EnsureProfile(ctx, u.newProfile())
	}
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	logger.Info().Str("clerk_id", u.ID).Msg("profile updated")
	return nil
}

func (h *WebhookHandler) handleUserDeleted(ctx context.Context, data json.RawMessage) error {
	var u struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &u); err != nil {
		return fmt.Errorf("failed to unmarshal user data: %w", err)
	}

	if id, err := h.store.ResolveUser(ctx, u.ID); err == nil && h.sessions != nil {
		h.sessions.SignOut(id)
	}
	if err := h.store.DeleteProfile(ctx, u.ID); err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	logger.Info().Str("clerk_id", u.ID).Msg("profile deleted")
	return nil
}
