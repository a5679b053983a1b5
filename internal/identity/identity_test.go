package identity

import (
	"context"
	"testing"

	"barakahAPI/internal/store"
	"barakahAPI/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrentUserWithoutClerkID(t *testing.T) {
	p := NewClerkProvider(memory.New())

	u, err := p.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Nil(t, u)
	assert.Nil(t, IDOf(u))

	u, err = p.CurrentUser(WithClerkID(context.Background(), ""))
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestCurrentUserResolvesExistingProfile(t *testing.T) {
	mem := memory.New()
	profile, err := mem.EnsureProfile(context.Background(), store.NewProfile{ClerkID: "user_abc"})
	require.NoError(t, err)

	u, err := NewClerkProvider(mem).CurrentUser(WithClerkID(context.Background(), "user_abc"))
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, profile.ID, u.ID)
	assert.Equal(t, profile.ID, *IDOf(u))
}

func TestCurrentUserProvisionsMissingProfile(t *testing.T) {
	mem := memory.New()
	ctx := WithClerkID(context.Background(), "user_new")

	u, err := NewClerkProvider(mem).CurrentUser(ctx)
	require.NoError(t, err)
	require.NotNil(t, u)

	id, err := mem.ResolveUser(ctx, "user_new")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
}
