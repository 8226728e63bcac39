package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bingo-platform/internal/game"
	"bingo-platform/internal/model"
)

func TestCreditRequestApprove(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, time.Hour)

	_, err := env.credits.Request(ctx, playerID, otherID, 100, "")
	assert.ErrorIs(t, err, game.ErrValidation, "players cannot grant credits")
	_, err = env.credits.Request(ctx, playerID, organizerID, 0, "")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	cr, err := env.credits.Request(ctx, playerID, organizerID, 400, "  bank ref 9  ")
	require.NoError(t, err)
	assert.Equal(t, model.CreditPending, cr.Status)
	require.NotNil(t, cr.PaymentProof)
	assert.Equal(t, "bank ref 9", *cr.PaymentProof)

	pending, err := env.credits.ListPending(ctx, organizerID)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	_, err = env.credits.Approve(ctx, cr.ID, adminID)
	assert.ErrorIs(t, err, ErrForbidden)

	approved, err := env.credits.Approve(ctx, cr.ID, organizerID)
	require.NoError(t, err)
	assert.Equal(t, model.CreditApproved, approved.Status)
	assert.NotNil(t, approved.ResolvedAt)
	assert.Equal(t, int64(600), env.db.Balance(organizerID))
	assert.Equal(t, int64(1400), env.db.Balance(playerID))

	_, err = env.credits.Approve(ctx, cr.ID, organizerID)
	assert.ErrorIs(t, err, game.ErrInvalidStateTransition)

	mine, err := env.credits.ListByUser(ctx, playerID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, model.CreditApproved, mine[0].Status)
}

func TestCreditRequestApproveNeedsFunds(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, time.Hour)

	cr, err := env.credits.Request(ctx, playerID, organizerID, 5000, "")
	require.NoError(t, err)
	_, err = env.credits.Approve(ctx, cr.ID, organizerID)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	stored, err := env.db.Credits().Get(ctx, cr.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CreditPending, stored.Status)

	fromAdmin, err := env.credits.Request(ctx, playerID, adminID, 5000, "")
	require.NoError(t, err)
	_, err = env.credits.Approve(ctx, fromAdmin.ID, adminID)
	require.NoError(t, err)
	assert.Equal(t, int64(6000), env.db.Balance(playerID))
}

func TestCreditRequestReject(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, time.Hour)

	cr, err := env.credits.Request(ctx, playerID, organizerID, 100, "")
	require.NoError(t, err)
	rejected, err := env.credits.Reject(ctx, cr.ID, organizerID)
	require.NoError(t, err)
	assert.Equal(t, model.CreditRejected, rejected.Status)
	assert.Equal(t, int64(1000), env.db.Balance(playerID))

	_, err = env.credits.Reject(ctx, cr.ID, organizerID)
	assert.ErrorIs(t, err, game.ErrInvalidStateTransition)
	_, err = env.credits.Reject(ctx, "missing", organizerID)
	assert.ErrorIs(t, err, game.ErrNotFound)
}
