//go:build integration

package session_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanoonai/kanoon/internal/log"
	"github.com/kanoonai/kanoon/internal/session"
	"github.com/kanoonai/kanoon/internal/testutil"
)

func TestStoreThreadRoundTrip(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := session.NewStore(db.Pool, log.NewNop())
	ctx := context.Background()

	thread, err := store.CreateThread(ctx, "land dispute advice")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, thread.ID)

	got, err := store.Thread(ctx, thread.ID)
	require.NoError(t, err)
	assert.Equal(t, "land dispute advice", got.Title)
	assert.Zero(t, got.StepCount)
}

func TestStoreAppendAndReload(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := session.NewStore(db.Pool, log.NewNop())
	ctx := context.Background()

	thread, err := store.CreateThread(ctx, "test")
	require.NoError(t, err)

	turns := []session.Turn{
		{Role: session.RoleUser, Content: "first question"},
		{Role: session.RoleAssistant, Content: "first answer"},
		{Role: session.RoleUser, Content: "second question"},
		{Role: session.RoleAssistant, Content: ""},
	}
	require.NoError(t, store.AppendTurns(ctx, thread.ID, turns[:2]))
	require.NoError(t, store.AppendTurns(ctx, thread.ID, turns[2:]))

	steps, err := store.Steps(ctx, thread.ID)
	require.NoError(t, err)
	require.Len(t, steps, 4)
	assert.Equal(t, session.StepTypeUser, steps[0].Type)
	assert.Equal(t, "first question", steps[0].Output)
	assert.Equal(t, session.StepTypeAssistant, steps[3].Type)
	assert.Empty(t, steps[3].Output)

	got, err := store.Thread(ctx, thread.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.StepCount)

	// Resume through the lifecycle drops the empty assistant step's
	// content but keeps turn order.
	lifecycle := session.NewLifecycle(store, log.NewNop())
	conv := lifecycle.Resume(ctx, thread.ID)
	reloaded := conv.Turns()
	require.Len(t, reloaded, 3)
	assert.Equal(t, "first question", reloaded[0].Content)
	assert.Equal(t, "first answer", reloaded[1].Content)
	assert.Equal(t, "second question", reloaded[2].Content)
}

func TestStoreListAndDelete(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := session.NewStore(db.Pool, log.NewNop())
	ctx := context.Background()

	first, err := store.CreateThread(ctx, "older")
	require.NoError(t, err)
	second, err := store.CreateThread(ctx, "newer")
	require.NoError(t, err)

	// Touching the first thread moves it to the top of the list.
	require.NoError(t, store.AppendTurns(ctx, first.ID, []session.Turn{
		{Role: session.RoleUser, Content: "hello"},
	}))

	threads, err := store.ListThreads(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, threads, 2)
	assert.Equal(t, first.ID, threads[0].ID)

	require.NoError(t, store.DeleteThread(ctx, second.ID))
	_, err = store.Thread(ctx, second.ID)
	assert.ErrorIs(t, err, session.ErrThreadNotFound)

	// Steps were cascade-deleted with the thread.
	steps, err := store.Steps(ctx, second.ID)
	require.NoError(t, err)
	assert.Empty(t, steps)
}
