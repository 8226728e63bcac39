package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bingo-platform/internal/model"
)

const creditRequestColumns = `id, from_user_id, to_user_id, amount, status, payment_proof, created_at, resolved_at`

// CreditRequestRepository persists balance top-up requests.
type CreditRequestRepository struct {
	pool *pgxpool.Pool
}

// NewCreditRequestRepository creates a new CreditRequestRepository instance.
func NewCreditRequestRepository(pool *pgxpool.Pool) *CreditRequestRepository {
	return &CreditRequestRepository{pool: pool}
}

func scanCreditRequest(row pgx.Row) (*model.CreditRequest, error) {
	var cr model.CreditRequest
	err := row.Scan(
		&cr.ID,
		&cr.FromUserID,
		&cr.ToUserID,
		&cr.Amount,
		&cr.Status,
		&cr.PaymentProof,
		&cr.CreatedAt,
		&cr.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	return &cr, nil
}

// Create inserts a pending request.
func (r *CreditRequestRepository) Create(ctx context.Context, cr *model.CreditRequest) error {
	const query = `
		INSERT INTO credit_requests (id, from_user_id, to_user_id, amount, status, payment_proof, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query, cr.ID, cr.FromUserID, cr.ToUserID, cr.Amount, cr.Status, cr.PaymentProof, cr.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create credit request: %w", err)
	}
	return nil
}

// Get retrieves a request by ID.
func (r *CreditRequestRepository) Get(ctx context.Context, id string) (*model.CreditRequest, error) {
	cr, err := scanCreditRequest(r.pool.QueryRow(ctx, `SELECT `+creditRequestColumns+` FROM credit_requests WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCreditRequestNotFound
		}
		return nil, fmt.Errorf("failed to get credit request: %w", err)
	}
	return cr, nil
}

// Approve marks a pending request approved, debits the approver and
// credits the requester in one transaction.
func (r *CreditRequestRepository) Approve(ctx context.Context, id string, from, to Entry) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := resolve(ctx, tx, id, model.CreditApproved); err != nil {
			return err
		}
		if err := debit(ctx, tx, from); err != nil {
			return err
		}
		return credit(ctx, tx, to)
	})
}

// Reject marks a pending request rejected.
func (r *CreditRequestRepository) Reject(ctx context.Context, id string) error {
	return resolve(ctx, r.pool, id, model.CreditRejected)
}

func resolve(ctx context.Context, q querier, id string, status model.CreditRequestStatus) error {
	const query = `
		UPDATE credit_requests
		SET status = $2, resolved_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`
	tag, err := q.Exec(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("failed to resolve credit request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleState
	}
	return nil
}

// ListPendingTo returns pending requests addressed to a user, oldest first.
func (r *CreditRequestRepository) ListPendingTo(ctx context.Context, toUserID int64) ([]*model.CreditRequest, error) {
	query := `
		SELECT ` + creditRequestColumns + `
		FROM credit_requests
		WHERE to_user_id = $1 AND status = 'pending'
		ORDER BY created_at
	`
	return r.query(ctx, query, toUserID)
}

// ListFrom returns requests made by a user, newest first.
func (r *CreditRequestRepository) ListFrom(ctx context.Context, fromUserID int64, limit int) ([]*model.CreditRequest, error) {
	query := `
		SELECT ` + creditRequestColumns + `
		FROM credit_requests
		WHERE from_user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	return r.query(ctx, query, fromUserID, limit)
}

func (r *CreditRequestRepository) query(ctx context.Context, query string, args ...any) ([]*model.CreditRequest, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list credit requests: %w", err)
	}
	defer rows.Close()

	var requests []*model.CreditRequest
	for rows.Next() {
		cr, err := scanCreditRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan credit request: %w", err)
		}
		requests = append(requests, cr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating credit requests: %w", err)
	}
	return requests, nil
}
