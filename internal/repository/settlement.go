package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bingo-platform/internal/game"
	"bingo-platform/internal/payout"
)

// SettlementRepository applies payouts. It implements payout.Ledger.
type SettlementRepository struct {
	pool  *pgxpool.Pool
	users *UserRepository
}

// NewSettlementRepository creates a new SettlementRepository instance.
func NewSettlementRepository(pool *pgxpool.Pool) *SettlementRepository {
	return &SettlementRepository{pool: pool, users: NewUserRepository(pool)}
}

var _ payout.Ledger = (*SettlementRepository)(nil)

// AdminID returns the commission recipient.
func (r *SettlementRepository) AdminID(ctx context.Context) (int64, error) {
	admin, err := r.users.FindAdmin(ctx)
	if err != nil {
		return 0, err
	}
	return admin.ID, nil
}

// Apply flips the entity's payout_complete flag and applies every credit in
// one transaction. A flag that is already set means another attempt won; in
// that case nothing is applied and game.ErrAlreadySettled is returned.
func (r *SettlementRepository) Apply(ctx context.Context, s payout.Settlement) error {
	var table string
	switch s.Kind {
	case payout.KindGame:
		table = "games"
	case payout.KindRaffle:
		table = "raffles"
	default:
		return fmt.Errorf("unknown settlement kind %q", s.Kind)
	}

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE `+table+` SET payout_complete = TRUE, updated_at = NOW()
			 WHERE id = $1 AND status = 'finished' AND NOT payout_complete`, s.EntityID)
		if err != nil {
			return fmt.Errorf("failed to mark %s settled: %w", s.Kind, err)
		}
		if tag.RowsAffected() == 0 {
			return game.ErrAlreadySettled
		}
		for _, c := range s.Credits {
			e := Entry{UserID: c.UserID, Amount: c.Amount, Type: c.Type, Description: string(s.Kind) + " " + s.EntityID}
			if err := credit(ctx, tx, e); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, game.ErrAlreadySettled) {
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to apply settlement: %w", err)
	}
	return nil
}
