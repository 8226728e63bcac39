package service

import (
	"context"
	"fmt"

	"bingo-platform/internal/model"
	"bingo-platform/internal/payout"
)

// StatsService builds the admin dashboard.
type StatsService struct {
	users   UserStore
	txs     TransactionReader
	games   GameStore
	raffles RaffleStore
}

// NewStatsService creates a new StatsService instance.
func NewStatsService(users UserStore, txs TransactionReader, games GameStore, raffles RaffleStore) *StatsService {
	return &StatsService{users: users, txs: txs, games: games, raffles: raffles}
}

// Platform returns commission earned and activity counts.
func (s *StatsService) Platform(ctx context.Context) (*model.PlatformStats, error) {
	var stats model.PlatformStats
	var err error

	if stats.GameCommission, err = s.txs.SumByType(ctx, model.TxTypePayoutCommission, string(payout.KindGame)+" "); err != nil {
		return nil, fmt.Errorf("failed to sum game commission: %w", err)
	}
	if stats.RaffleCommission, err = s.txs.SumByType(ctx, model.TxTypePayoutCommission, string(payout.KindRaffle)+" "); err != nil {
		return nil, fmt.Errorf("failed to sum raffle commission: %w", err)
	}
	stats.TotalCommission = stats.GameCommission + stats.RaffleCommission

	if stats.ActiveRaffles, err = s.raffles.CountByStatus(ctx, model.RaffleWaiting); err != nil {
		return nil, err
	}
	if stats.ActiveGames, err = s.games.CountByStatus(ctx, model.GameInProgress); err != nil {
		return nil, err
	}
	if stats.Organizers, err = s.users.CountByRole(ctx, model.RoleOrganizer); err != nil {
		return nil, err
	}
	if stats.Players, err = s.users.CountByRole(ctx, model.RoleUser); err != nil {
		return nil, err
	}
	return &stats, nil
}

// TopUsers returns the richest non-admin users.
func (s *StatsService) TopUsers(ctx context.Context, limit int) ([]*model.User, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.users.GetTopUsers(ctx, limit)
}
