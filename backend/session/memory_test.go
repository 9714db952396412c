package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_GetMissingIsInactive(t *testing.T) {
	store := NewMemoryStore()

	s, err := store.Get(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), s.UserID)
	assert.False(t, s.Active())
	assert.NotNil(t, s.Answers)
}

func TestMemoryStore_SetGetClear(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Set(ctx, Session{
		UserID:  1,
		Step:    StepAwaitingCity,
		Answers: map[string]string{"name": "Alice"},
	}))

	s, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, StepAwaitingCity, s.Step)
	assert.Equal(t, "Alice", s.Answers["name"])
	assert.False(t, s.UpdatedAt.IsZero())

	require.NoError(t, store.Clear(ctx, 1))
	s, err = store.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, s.Active())

	// Clearing twice is fine.
	require.NoError(t, store.Clear(ctx, 1))
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	answers := map[string]string{"name": "Alice"}
	require.NoError(t, store.Set(ctx, Session{UserID: 1, Step: StepAwaitingCity, Answers: answers}))
	answers["name"] = "Mallory"

	s, err := store.Get(ctx, 1)
	require.NoError(t, err)
	s.Answers["city"] = "3"

	again, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"name": "Alice"}, again.Answers)
}

func TestMemoryStore_LastWriterWins(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Set(ctx, Session{UserID: 1, Step: StepAwaitingCity}))
	require.NoError(t, store.Set(ctx, Session{UserID: 1, Step: StepAwaitingName}))

	s, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, StepAwaitingName, s.Step)
}

func TestMemoryStore_Sweep(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	store.now = func() time.Time { return base }
	require.NoError(t, store.Set(ctx, Session{UserID: 1, Step: StepAwaitingName}))
	store.now = func() time.Time { return base.Add(2 * time.Hour) }
	require.NoError(t, store.Set(ctx, Session{UserID: 2, Step: StepAwaitingName}))

	removed := store.Sweep(base.Add(time.Hour))
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, store.Len())

	s, err := store.Get(ctx, 2)
	require.NoError(t, err)
	assert.True(t, s.Active())
}

func TestStep_StringRoundTrip(t *testing.T) {
	for _, step := range Steps() {
		parsed, err := ParseStep(step.String())
		require.NoError(t, err)
		assert.Equal(t, step, parsed)
	}

	_, err := ParseStep("awaiting_nothing")
	require.Error(t, err)
	assert.Equal(t, "step(99)", Step(99).String())
}
