package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bingo-platform/internal/game/pattern"
	"bingo-platform/internal/model"
)

func TestPlatformStats(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, time.Hour)
	env.db.AddUser(organizerID, model.RoleOrganizer, 10_000)

	g := createManualGame(t, env, pattern.FullHouse)
	c, _, err := env.bingo.BuyCard(ctx, g.ID, playerID)
	require.NoError(t, err)
	_, err = env.bingo.Start(ctx, g.ID, organizerID)
	require.NoError(t, err)
	for _, n := range c.Numbers() {
		_, _, err := env.bingo.CallNumber(ctx, g.ID, organizerID, n)
		require.NoError(t, err)
	}

	rf := createRaffle(t, env, model.ModeAutomatic)
	_, err = env.raffles.Purchase(ctx, rf.ID, otherID, []int{0})
	require.NoError(t, err)
	_, _, err = env.raffles.Draw(ctx, rf.ID, organizerID, nil)
	require.NoError(t, err)

	createRaffle(t, env, model.ModeManual)
	running := createManualGame(t, env, pattern.AnyLine)
	_, err = env.bingo.Start(ctx, running.ID, organizerID)
	require.NoError(t, err)

	stats, err := env.stats.Platform(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(52), stats.GameCommission)
	assert.Equal(t, int64(49), stats.RaffleCommission)
	assert.Equal(t, int64(101), stats.TotalCommission)
	assert.Equal(t, 1, stats.ActiveRaffles)
	assert.Equal(t, 1, stats.ActiveGames)
	assert.Equal(t, 1, stats.Organizers)
	assert.Equal(t, 2, stats.Players)
}
