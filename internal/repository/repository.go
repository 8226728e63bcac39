// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"bingo-platform/internal/game"
)

// Common errors for repository operations. Each wraps the matching engine
// error kind so callers can test either.
var (
	ErrUserNotFound          = fmt.Errorf("user %w", game.ErrNotFound)
	ErrGameNotFound          = fmt.Errorf("game %w", game.ErrNotFound)
	ErrRaffleNotFound        = fmt.Errorf("raffle %w", game.ErrNotFound)
	ErrCreditRequestNotFound = fmt.Errorf("credit request %w", game.ErrNotFound)
	ErrInsufficientBalance   = game.ErrInsufficientBalance
	ErrStaleState            = fmt.Errorf("%w: state changed concurrently", game.ErrInvalidStateTransition)
	ErrNoAdmin               = errors.New("no admin account")
)

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Entry is one balance change with its transaction record.
type Entry struct {
	UserID      int64
	Amount      int64
	Type        string
	Description string
}

// debit subtracts amount from a user's balance and records it. Admins are
// debit-exempt: the record is written but the balance is left unchanged.
func debit(ctx context.Context, q querier, e Entry) error {
	const query = `
		UPDATE users
		SET balance = CASE WHEN role = 'admin' THEN balance ELSE balance - $2 END,
		    updated_at = NOW()
		WHERE id = $1 AND (role = 'admin' OR balance >= $2)
	`
	tag, err := q.Exec(ctx, query, e.UserID, e.Amount)
	if err != nil {
		return fmt.Errorf("failed to debit user %d: %w", e.UserID, err)
	}
	if tag.RowsAffected() == 0 {
		exists, err := userExists(ctx, q, e.UserID)
		if err != nil {
			return err
		}
		if !exists {
			return ErrUserNotFound
		}
		return ErrInsufficientBalance
	}
	return record(ctx, q, e.UserID, -e.Amount, e.Type, e.Description)
}

// credit adds amount to a user's balance and records it.
func credit(ctx context.Context, q querier, e Entry) error {
	const query = `
		UPDATE users
		SET balance = balance + $2, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := q.Exec(ctx, query, e.UserID, e.Amount)
	if err != nil {
		return fmt.Errorf("failed to credit user %d: %w", e.UserID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return record(ctx, q, e.UserID, e.Amount, e.Type, e.Description)
}

func record(ctx context.Context, q querier, userID, amount int64, txType, description string) error {
	const query = `
		INSERT INTO transactions (user_id, amount, type, description, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NOW())
	`
	if _, err := q.Exec(ctx, query, userID, amount, txType, description); err != nil {
		return fmt.Errorf("failed to record transaction: %w", err)
	}
	return nil
}

func userExists(ctx context.Context, q querier, userID int64) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return exists, nil
}

func toInt32s(nums []int) []int32 {
	out := make([]int32, len(nums))
	for i, n := range nums {
		out[i] = int32(n)
	}
	return out
}

func toInts(nums []int32) []int {
	out := make([]int, len(nums))
	for i, n := range nums {
		out[i] = int(n)
	}
	return out
}
