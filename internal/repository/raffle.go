package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bingo-platform/internal/model"
)

const raffleColumns = `id, organizer_id, name, prize, ticket_price, mode, status,
	winner_ticket, winner_id, payout_complete, created_at, updated_at`

// RaffleRepository persists raffles and their tickets.
type RaffleRepository struct {
	pool *pgxpool.Pool
}

// NewRaffleRepository creates a new RaffleRepository instance.
func NewRaffleRepository(pool *pgxpool.Pool) *RaffleRepository {
	return &RaffleRepository{pool: pool}
}

func scanRaffle(row pgx.Row) (*model.Raffle, error) {
	var (
		rf     model.Raffle
		ticket *int32
	)
	err := row.Scan(
		&rf.ID,
		&rf.OrganizerID,
		&rf.Name,
		&rf.Prize,
		&rf.TicketPrice,
		&rf.Mode,
		&rf.Status,
		&ticket,
		&rf.WinnerID,
		&rf.PayoutComplete,
		&rf.CreatedAt,
		&rf.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if ticket != nil {
		n := int(*ticket)
		rf.WinnerTicket = &n
	}
	return &rf, nil
}

// Create debits the organizer's prize and inserts the raffle with all its
// tickets available, in one transaction.
func (r *RaffleRepository) Create(ctx context.Context, rf *model.Raffle, funding Entry) error {
	const insertRaffle = `
		INSERT INTO raffles (id, organizer_id, name, prize, ticket_price, total_tickets, mode, status,
			payout_complete, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE, $9, $9)
	`
	const insertTickets = `
		INSERT INTO raffle_tickets (raffle_id, number, status)
		SELECT $1, n, 'available' FROM generate_series(0, $2 - 1) AS n
	`
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := debit(ctx, tx, funding); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, insertRaffle,
			rf.ID, rf.OrganizerID, rf.Name, rf.Prize, rf.TicketPrice, len(rf.Tickets), rf.Mode, rf.Status, rf.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert raffle: %w", err)
		}
		if _, err := tx.Exec(ctx, insertTickets, rf.ID, len(rf.Tickets)); err != nil {
			return fmt.Errorf("failed to insert tickets: %w", err)
		}
		return nil
	})
}

// Get loads a raffle with its tickets.
// Returns ErrRaffleNotFound if the raffle does not exist.
func (r *RaffleRepository) Get(ctx context.Context, id string) (*model.Raffle, error) {
	rf, err := scanRaffle(r.pool.QueryRow(ctx, `SELECT `+raffleColumns+` FROM raffles WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRaffleNotFound
		}
		return nil, fmt.Errorf("failed to get raffle: %w", err)
	}
	if err := r.loadTickets(ctx, []*model.Raffle{rf}); err != nil {
		return nil, err
	}
	return rf, nil
}

// List returns raffles in any of the given statuses (all when none are
// given), newest first.
func (r *RaffleRepository) List(ctx context.Context, statuses []model.RaffleStatus, limit int) ([]*model.Raffle, error) {
	query := `
		SELECT ` + raffleColumns + `
		FROM raffles
		WHERE cardinality($1::text[]) = 0 OR status = ANY($1)
		ORDER BY created_at DESC
		LIMIT $2
	`
	return r.query(ctx, query, statusStrings(statuses), limit)
}

// ListUnsettled returns finished raffles whose payout has not been applied.
func (r *RaffleRepository) ListUnsettled(ctx context.Context) ([]*model.Raffle, error) {
	query := `
		SELECT ` + raffleColumns + `
		FROM raffles
		WHERE status = 'finished' AND winner_id IS NOT NULL AND NOT payout_complete
		ORDER BY updated_at
	`
	return r.query(ctx, query)
}

func (r *RaffleRepository) query(ctx context.Context, query string, args ...any) ([]*model.Raffle, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list raffles: %w", err)
	}
	defer rows.Close()

	var raffles []*model.Raffle
	for rows.Next() {
		rf, err := scanRaffle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan raffle: %w", err)
		}
		raffles = append(raffles, rf)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating raffles: %w", err)
	}
	rows.Close()

	if err := r.loadTickets(ctx, raffles); err != nil {
		return nil, err
	}
	return raffles, nil
}

func (r *RaffleRepository) loadTickets(ctx context.Context, raffles []*model.Raffle) error {
	if len(raffles) == 0 {
		return nil
	}
	byID := make(map[string]*model.Raffle, len(raffles))
	ids := make([]string, len(raffles))
	for i, rf := range raffles {
		byID[rf.ID] = rf
		ids[i] = rf.ID
		rf.Tickets = nil
	}

	const query = `
		SELECT raffle_id, number, status, owner_id, payment_proof
		FROM raffle_tickets
		WHERE raffle_id = ANY($1::text[]::uuid[])
		ORDER BY raffle_id, number
	`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("failed to load tickets: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			raffleID string
			number   int32
			t        model.Ticket
		)
		if err := rows.Scan(&raffleID, &number, &t.Status, &t.OwnerID, &t.PaymentProof); err != nil {
			return fmt.Errorf("failed to scan ticket: %w", err)
		}
		t.Number = int(number)
		rf := byID[raffleID]
		rf.Tickets = append(rf.Tickets, t)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating tickets: %w", err)
	}
	return nil
}

// Purchase marks the given available tickets sold to the buyer and debits
// the payment in one transaction. If any ticket was taken meanwhile, nothing
// changes and ErrStaleState is returned.
func (r *RaffleRepository) Purchase(ctx context.Context, raffleID string, buyerID int64, numbers []int, payment Entry) error {
	const query = `
		UPDATE raffle_tickets t
		SET status = 'sold', owner_id = $2, payment_proof = NULL
		FROM raffles r
		WHERE t.raffle_id = $1 AND r.id = t.raffle_id AND r.status = 'waiting'
		  AND t.number = ANY($3) AND t.status = 'available'
	`
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, query, raffleID, buyerID, toInt32s(numbers))
		if err != nil {
			return fmt.Errorf("failed to sell tickets: %w", err)
		}
		if int(tag.RowsAffected()) != len(numbers) {
			return ErrStaleState
		}
		return debit(ctx, tx, payment)
	})
}

// SaveTickets writes the status, owner and proof of the given tickets. Used
// for reservations and their review while the raffle is waiting.
func (r *RaffleRepository) SaveTickets(ctx context.Context, raffleID string, tickets []model.Ticket) error {
	const query = `
		UPDATE raffle_tickets t
		SET status = $3, owner_id = $4, payment_proof = $5
		FROM raffles r
		WHERE t.raffle_id = $1 AND t.number = $2 AND r.id = t.raffle_id AND r.status = 'waiting'
	`
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, t := range tickets {
			batch.Queue(query, raffleID, t.Number, t.Status, t.OwnerID, t.PaymentProof)
		}
		results := tx.SendBatch(ctx, batch)
		for range tickets {
			tag, err := results.Exec()
			if err != nil {
				results.Close()
				return fmt.Errorf("failed to save ticket: %w", err)
			}
			if tag.RowsAffected() == 0 {
				results.Close()
				return ErrStaleState
			}
		}
		return results.Close()
	})
}

// Finish records the drawn ticket and its owner and marks the raffle
// finished.
func (r *RaffleRepository) Finish(ctx context.Context, rf *model.Raffle) error {
	const query = `
		UPDATE raffles
		SET status = 'finished', winner_ticket = $2, winner_id = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'waiting'
	`
	tag, err := r.pool.Exec(ctx, query, rf.ID, rf.WinnerTicket, rf.WinnerID)
	if err != nil {
		return fmt.Errorf("failed to finish raffle: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleState
	}
	return nil
}

// Delete applies refunds and removes the raffle in one transaction. A drawn
// raffle whose winner is not paid yet is left in place with ErrStaleState.
func (r *RaffleRepository) Delete(ctx context.Context, id string, refunds []Entry) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			DELETE FROM raffles
			WHERE id = $1 AND (winner_id IS NULL OR payout_complete)
		`, id)
		if err != nil {
			return fmt.Errorf("failed to delete raffle: %w", err)
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM raffles WHERE id = $1)`, id).Scan(&exists); err != nil {
				return fmt.Errorf("failed to check raffle: %w", err)
			}
			if exists {
				return ErrStaleState
			}
			return ErrRaffleNotFound
		}
		for _, e := range refunds {
			if err := credit(ctx, tx, e); err != nil {
				return err
			}
		}
		return nil
	})
}

// CountByStatus returns the number of raffles in the given status.
func (r *RaffleRepository) CountByStatus(ctx context.Context, status model.RaffleStatus) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM raffles WHERE status = $1`, status).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count raffles: %w", err)
	}
	return n, nil
}
