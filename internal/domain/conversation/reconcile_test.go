package conversation_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workify/services/conversation-api/internal/domain/conversation"
)

func TestReconcileRepairsDriftedCounters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv := f.conversation(t)
	f.send(t, conv.ID, f.employer, "Hello")
	f.send(t, conv.ID, f.employer, "Are you available?")
	f.send(t, conv.ID, f.jobSeeker, "Yes")

	f.store.SetCounters(conv.ID, 0, 7)

	reconciler := conversation.NewReconciler(f.store, f.store, zerolog.Nop())
	fixed, err := reconciler.Reconcile(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, fixed)

	stored, err := f.manager.GetByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.UnreadCountJobSeeker)
	assert.Equal(t, 1, stored.UnreadCountEmployer)

	fixed, err = reconciler.Reconcile(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, fixed, "a consistent conversation is left alone")
}

func TestReconcileHonoursCancellation(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t)
	f.send(t, conv.ID, f.employer, "Hello")
	f.store.SetCounters(conv.ID, 5, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reconciler := conversation.NewReconciler(f.store, f.store, zerolog.Nop())
	fixed, err := reconciler.Reconcile(ctx, 10)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, fixed)
}
