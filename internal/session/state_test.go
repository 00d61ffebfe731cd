package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workoutbuddy/sessionkit/internal/domain"
	"github.com/workoutbuddy/sessionkit/internal/token"
)

func testProfile() *domain.UserProfile {
	return &domain.UserProfile{
		ID:           "u-1",
		Email:        "buddy@example.com",
		Username:     "buddy",
		AuthProvider: domain.ProviderGoogle,
		IsActive:     true,
	}
}

func TestNewStatePrepopulatesToken(t *testing.T) {
	ctx := context.Background()
	store := token.NewMemoryStore()
	tok := mintExpiring(t, time.Hour)
	require.NoError(t, store.Save(ctx, tok))

	state := NewState(ctx, store, testLogger())

	snap := state.Snapshot()
	assert.Equal(t, tok, snap.AccessToken)
	assert.False(t, snap.IsAuthenticated, "a token alone must never authenticate")
	assert.True(t, snap.IsLoading)
	assert.Nil(t, snap.User)
}

func TestSetAccessTokenDoesNotAuthenticate(t *testing.T) {
	ctx := context.Background()
	store := token.NewMemoryStore()
	state := NewState(ctx, store, testLogger())

	tok := mintExpiring(t, time.Hour)
	require.NoError(t, state.SetAccessToken(ctx, tok))

	snap := state.Snapshot()
	assert.Equal(t, tok, snap.AccessToken)
	assert.False(t, snap.IsAuthenticated)

	// And it persisted.
	stored, err := store.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, tok, stored)
}

func TestSetUserAuthenticatesAndClearsError(t *testing.T) {
	ctx := context.Background()
	state := NewState(ctx, token.NewMemoryStore(), testLogger())

	state.SetError("boom")
	state.SetUser(testProfile())

	snap := state.Snapshot()
	assert.True(t, snap.IsAuthenticated)
	assert.Equal(t, "buddy", snap.User.Username)
	assert.Empty(t, snap.Err)
}

func TestSetErrorStopsLoading(t *testing.T) {
	ctx := context.Background()
	state := NewState(ctx, token.NewMemoryStore(), testLogger())

	state.SetError("profile fetch failed")

	snap := state.Snapshot()
	assert.Equal(t, "profile fetch failed", snap.Err)
	assert.False(t, snap.IsLoading)
}

func TestClearAuthResetsEverythingAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := token.NewMemoryStore()
	state := NewState(ctx, store, testLogger())

	require.NoError(t, state.SetAccessToken(ctx, mintExpiring(t, time.Hour)))
	state.SetUser(testProfile())
	state.SetError("late error")

	state.ClearAuth(ctx)
	first := state.Snapshot()
	state.ClearAuth(ctx)
	second := state.Snapshot()

	assert.Equal(t, Snapshot{}, first)
	assert.Equal(t, first, second)
	assert.False(t, store.Exists(ctx), "persisted token must be removed")
}

func TestAuthenticatedOnlyViaProfileSet(t *testing.T) {
	ctx := context.Background()
	state := NewState(ctx, token.NewMemoryStore(), testLogger())

	// A sequence of token writes and errors never flips authentication.
	require.NoError(t, state.SetAccessToken(ctx, mintExpiring(t, time.Hour)))
	state.SetError("x")
	require.NoError(t, state.SetAccessToken(ctx, mintExpiring(t, 2*time.Hour)))
	assert.False(t, state.Snapshot().IsAuthenticated)

	state.SetUser(testProfile())
	assert.True(t, state.Snapshot().IsAuthenticated)

	state.ClearAuth(ctx)
	assert.False(t, state.Snapshot().IsAuthenticated)
}

func TestSetSessionAtomic(t *testing.T) {
	ctx := context.Background()
	store := token.NewMemoryStore()
	state := NewState(ctx, store, testLogger())

	tok := mintExpiring(t, time.Hour)
	require.NoError(t, state.SetSession(ctx, testProfile(), tok))

	snap := state.Snapshot()
	assert.True(t, snap.IsAuthenticated)
	assert.Equal(t, tok, snap.AccessToken)
	assert.Equal(t, "u-1", snap.User.ID)
	assert.False(t, snap.IsLoading)

	stored, err := store.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, tok, stored)
}

func TestSubscribeSeesMutations(t *testing.T) {
	ctx := context.Background()
	state := NewState(ctx, token.NewMemoryStore(), testLogger())

	ch := state.Subscribe()
	defer state.Unsubscribe(ch)

	state.SetUser(testProfile())

	select {
	case snap := <-ch:
		assert.True(t, snap.IsAuthenticated)
	case <-time.After(time.Second):
		t.Fatal("expected a snapshot notification")
	}
}
