package identity

import (
	"context"
	"errors"
	"fmt"

	"barakahAPI/internal/apperr"
	"barakahAPI/internal/logger"
	"barakahAPI/internal/store"

	"github.com/google/uuid"
)

type contextKey string

const clerkIDKey contextKey = "clerkID"

// WithClerkID stores the verified Clerk subject on the context.
func WithClerkID(ctx context.Context, clerkID string) context.Context {
	return context.WithValue(ctx, clerkIDKey, clerkID)
}

// ClerkID extracts the Clerk subject placed on the context by the auth middleware.
func ClerkID(ctx context.Context) (string, bool) {
	clerkID, ok := ctx.Value(clerkIDKey).(string)
	return clerkID, ok && clerkID != ""
}

type User struct {
	ID      uuid.UUID `json:"id"`
	ClerkID string    `json:"clerk_id"`
}

// Provider resolves the current user. A nil user with a nil error means nobody is
// signed in.
type Provider interface {
	CurrentUser(ctx context.Context) (*User, error)
}

// ClerkProvider maps the Clerk subject to a profile id, creating the profile when the
// user.created webhook has not arrived yet.
type ClerkProvider struct {
	store store.Store
}

func NewClerkProvider(s store.Store) *ClerkProvider {
	return &ClerkProvider{store: s}
}

func (p *ClerkProvider) CurrentUser(ctx context.Context) (*User, error) {
	clerkID, ok := ClerkID(ctx)
	if !ok {
		return nil, nil
	}

	id, err := p.store.ResolveUser(ctx, clerkID)
	if err == nil {
		return &User{ID: id, ClerkID: clerkID}, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}

	profile, err := p.store.EnsureProfile(ctx, store.NewProfile{ClerkID: clerkID})
	if err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}
	logger.Info().Str("clerk_id", clerkID).Str("user_id", profile.ID.String()).Msg("profile created on first request")
	return &User{ID: profile.ID, ClerkID: clerkID}, nil
}

// IDOf returns the user's profile id, or nil for nobody.
func IDOf(u *User) *uuid.UUID {
	if u == nil {
		return nil
	}
	id := u.ID
	return &id
}
