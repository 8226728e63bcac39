package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bingo-platform/internal/model"
)

const userColumns = `id, username, name, role, balance, avatar, created_at, updated_at`

// UserRepository handles user data persistence.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository instance.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Name,
		&user.Role,
		&user.Balance,
		&user.Avatar,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func collectUsers(rows pgx.Rows) ([]*model.User, error) {
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

// Create creates a user with the given role and initial balance, recording
// the initial credit.
func (r *UserRepository) Create(ctx context.Context, id int64, username, name string, role model.Role, initialBalance int64) (*model.User, error) {
	const query = `
		INSERT INTO users (id, username, name, role, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING ` + userColumns

	var user *model.User
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		user, err = scanUser(tx.QueryRow(ctx, query, id, username, name, role, initialBalance))
		if err != nil {
			return err
		}
		if initialBalance > 0 {
			return record(ctx, tx, id, initialBalance, model.TxTypeInitial, "")
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetByID retrieves a user by ID.
// Returns ErrUserNotFound if the user does not exist.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetOrCreate retrieves a user by ID, creating one if it doesn't exist.
func (r *UserRepository) GetOrCreate(ctx context.Context, id int64, username, name string, role model.Role, initialBalance int64) (*model.User, bool, error) {
	user, err := r.GetByID(ctx, id)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, false, err
	}

	user, err = r.Create(ctx, id, username, name, role, initialBalance)
	if err != nil {
		// Another request might have created the user
		user, err = r.GetByID(ctx, id)
		if err != nil {
			return nil, false, err
		}
		return user, false, nil
	}
	return user, true, nil
}

// Adjust applies a signed balance change and records it in one transaction.
// Debits fail with ErrInsufficientBalance unless the user is an admin, whose
// balance is left unchanged by debits.
func (r *UserRepository) Adjust(ctx context.Context, id int64, e Entry) (*model.User, error) {
	e.UserID = id
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if e.Amount < 0 {
			e.Amount = -e.Amount
			return debit(ctx, tx, e)
		}
		return credit(ctx, tx, e)
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// SetBalance sets a user's balance to an exact value and records the delta.
func (r *UserRepository) SetBalance(ctx context.Context, id int64, balance int64, txType, description string) (*model.User, error) {
	var user *model.User
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var old int64
		err := tx.QueryRow(ctx, `SELECT balance FROM users WHERE id = $1 FOR UPDATE`, id).Scan(&old)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrUserNotFound
			}
			return err
		}
		user, err = scanUser(tx.QueryRow(ctx, `
			UPDATE users SET balance = $2, updated_at = NOW()
			WHERE id = $1
			RETURNING `+userColumns, id, balance))
		if err != nil {
			return err
		}
		return record(ctx, tx, id, balance-old, txType, description)
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to set balance: %w", err)
	}
	return user, nil
}

// Transfer moves amount from one user to another in one transaction.
func (r *UserRepository) Transfer(ctx context.Context, from, to Entry) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := debit(ctx, tx, from); err != nil {
			return err
		}
		return credit(ctx, tx, to)
	})
}

// UpdateProfile updates a user's username and display name.
func (r *UserRepository) UpdateProfile(ctx context.Context, id int64, username, name string) error {
	const query = `
		UPDATE users
		SET username = $2, name = $3, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query, id, username, name)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetRole changes a user's role.
func (r *UserRepository) SetRole(ctx context.Context, id int64, role model.Role) (*model.User, error) {
	query := `UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1 RETURNING ` + userColumns
	user, err := scanUser(r.pool.QueryRow(ctx, query, id, role))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to set role: %w", err)
	}
	return user, nil
}

// SetAvatar stores a user's avatar reference.
func (r *UserRepository) SetAvatar(ctx context.Context, id int64, avatar string) error {
	result, err := r.pool.Exec(ctx, `UPDATE users SET avatar = $2, updated_at = NOW() WHERE id = $1`, id, avatar)
	if err != nil {
		return fmt.Errorf("failed to set avatar: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// FindAdmin returns the earliest admin account.
func (r *UserRepository) FindAdmin(ctx context.Context) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE role = 'admin' ORDER BY created_at, id LIMIT 1`
	user, err := scanUser(r.pool.QueryRow(ctx, query))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoAdmin
		}
		return nil, fmt.Errorf("failed to find admin: %w", err)
	}
	return user, nil
}

// List returns users ordered by ID.
func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY id LIMIT $1 OFFSET $2`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return collectUsers(rows)
}

// GetTopUsers retrieves the top N non-admin users by balance.
func (r *UserRepository) GetTopUsers(ctx context.Context, limit int) ([]*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE role <> 'admin' ORDER BY balance DESC, id LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top users: %w", err)
	}
	return collectUsers(rows)
}

// CountByRole returns the number of users with the given role.
func (r *UserRepository) CountByRole(ctx context.Context, role model.Role) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role = $1`, role).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

// Exists checks if a user with the given ID exists.
func (r *UserRepository) Exists(ctx context.Context, id int64) (bool, error) {
	return userExists(ctx, r.pool, id)
}
