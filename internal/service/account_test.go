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

func TestEnsureUser(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, time.Hour)

	user, created, err := env.accounts.EnsureUser(ctx, 50, "neo", "Thomas")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, model.RoleUser, user.Role)
	assert.Equal(t, int64(1000), user.Balance)

	user, created, err = env.accounts.EnsureUser(ctx, 50, "neo2", "")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "neo2", user.Username)
	assert.Equal(t, "Thomas", user.Name)

	env.db.DeleteUser(adminID)
	admin, created, err := env.accounts.EnsureUser(ctx, adminID, "root", "")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, model.RoleAdmin, admin.Role)
}

func TestSetRole(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, time.Hour)

	user, err := env.accounts.SetRole(ctx, adminID, playerID, model.RoleOrganizer)
	require.NoError(t, err)
	assert.Equal(t, model.RoleOrganizer, user.Role)

	_, err = env.accounts.SetRole(ctx, organizerID, otherID, model.RoleOrganizer)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = env.accounts.SetRole(ctx, adminID, otherID, model.RoleAdmin)
	assert.ErrorIs(t, err, game.ErrValidation)

	env.db.AddUser(10, model.RoleAdmin, 0)
	_, err = env.accounts.SetRole(ctx, adminID, 10, model.RoleUser)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = env.accounts.SetRole(ctx, adminID, 404, model.RoleUser)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestAdminBalanceOperations(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, time.Hour)

	user, err := env.accounts.AdminAdd(ctx, playerID, 250)
	require.NoError(t, err)
	assert.Equal(t, int64(1250), user.Balance)

	user, err = env.accounts.AdminSub(ctx, playerID, 5000)
	require.NoError(t, err)
	assert.Equal(t, int64(0), user.Balance, "subtraction clamps at zero")

	user, err = env.accounts.AdminSet(ctx, playerID, 77)
	require.NoError(t, err)
	assert.Equal(t, int64(77), user.Balance)

	_, err = env.accounts.AdminSet(ctx, playerID, -1)
	assert.ErrorIs(t, err, game.ErrValidation)
	_, err = env.accounts.AdminAdd(ctx, playerID, 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = env.accounts.AdminSet(ctx, 404, 1)
	assert.ErrorIs(t, err, ErrUserNotFound)

	txs, err := env.accounts.Transactions(ctx, playerID, 10)
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, model.TxTypeAdminSet, txs[0].Type)
	assert.Equal(t, int64(77), txs[0].Amount)
	assert.Equal(t, int64(-1250), txs[1].Amount)
}

func TestAdjustBalanceDebitExemption(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, time.Hour)

	_, err := env.accounts.AdjustBalance(ctx, playerID, -1001, model.TxTypeAdminSub, "")
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, int64(1000), env.db.Balance(playerID))

	exempt, err := env.accounts.IsDebitExempt(ctx, adminID)
	require.NoError(t, err)
	assert.True(t, exempt)

	admin, err := env.accounts.AdjustBalance(ctx, adminID, -1_000_000, model.TxTypeAdminSub, "")
	require.NoError(t, err)
	assert.Equal(t, int64(0), admin.Balance)

	_, err = env.accounts.RequireRole(ctx, playerID, model.RoleOrganizer, model.RoleAdmin)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = env.accounts.RequireRole(ctx, organizerID, model.RoleOrganizer, model.RoleAdmin)
	assert.NoError(t, err)
}

func TestTopUsersExcludeAdmins(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, time.Hour)
	env.db.AddUser(adminID, model.RoleAdmin, 1_000_000)
	env.db.AddUser(otherID, model.RoleUser, 3000)

	top, err := env.stats.TopUsers(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, otherID, top[0].ID)
	for _, u := range top {
		assert.NotEqual(t, model.RoleAdmin, u.Role)
	}
}
