package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/rs/zerolog/log"

	"bingo-platform/internal/game"
	"bingo-platform/internal/model"
	"bingo-platform/internal/pkg/lock"
	"bingo-platform/internal/repository"
)

// AccountService handles the user directory and balance ledger.
type AccountService struct {
	users          UserStore
	txs            TransactionReader
	userLock       *lock.UserLock
	initialBalance int64
	adminIDs       []int64
}

// NewAccountService creates a new AccountService instance. Users whose ID is
// in adminIDs get the admin role when their account is created.
func NewAccountService(
	users UserStore,
	txs TransactionReader,
	userLock *lock.UserLock,
	initialBalance int64,
	adminIDs []int64,
) *AccountService {
	return &AccountService{
		users:          users,
		txs:            txs,
		userLock:       userLock,
		initialBalance: initialBalance,
		adminIDs:       adminIDs,
	}
}

// EnsureUser ensures a user exists, creating one if necessary.
// Returns the user and whether it was newly created.
func (s *AccountService) EnsureUser(ctx context.Context, id int64, username, name string) (*model.User, bool, error) {
	role := model.RoleUser
	if slices.Contains(s.adminIDs, id) {
		role = model.RoleAdmin
	}

	user, created, err := s.users.GetOrCreate(ctx, id, username, name, role, s.initialBalance)
	if err != nil {
		return nil, false, fmt.Errorf("failed to ensure user: %w", err)
	}

	if created {
		log.Info().Int64("user_id", id).Str("role", string(role)).Msg("User created")
		return user, true, nil
	}

	if (username != "" && user.Username != username) || (name != "" && user.Name != name) {
		if username == "" {
			username = user.Username
		}
		if name == "" {
			name = user.Name
		}
		if err := s.users.UpdateProfile(ctx, id, username, name); err != nil {
			log.Warn().Err(err).Int64("user_id", id).Msg("Failed to update profile")
		} else {
			user.Username, user.Name = username, name
		}
	}

	return user, false, nil
}

// GetUser retrieves a user by ID.
func (s *AccountService) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return s.users.GetByID(ctx, id)
}

// GetBalance retrieves a user's current balance.
func (s *AccountService) GetBalance(ctx context.Context, id int64) (int64, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return user.Balance, nil
}

// FindAdmin returns the commission recipient.
func (s *AccountService) FindAdmin(ctx context.Context) (*model.User, error) {
	return s.users.FindAdmin(ctx)
}

// ListUsers returns a page of users.
func (s *AccountService) ListUsers(ctx context.Context, limit, offset int) ([]*model.User, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.users.List(ctx, limit, offset)
}

// GetTopUsers retrieves the richest non-admin users.
func (s *AccountService) GetTopUsers(ctx context.Context, limit int) ([]*model.User, error) {
	return s.users.GetTopUsers(ctx, limit)
}

// Transactions returns a user's latest balance changes.
func (s *AccountService) Transactions(ctx context.Context, id int64, limit int) ([]*model.Transaction, error) {
	return s.txs.GetByUserID(ctx, id, limit)
}

// RequireRole fails with ErrForbidden unless the user has one of roles.
func (s *AccountService) RequireRole(ctx context.Context, id int64, roles ...model.Role) (*model.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(roles, user.Role) {
		return nil, ErrForbidden
	}
	return user, nil
}

// SetRole changes a user's role. Only admins may do it, and only to user
// or organizer.
func (s *AccountService) SetRole(ctx context.Context, actorID, userID int64, role model.Role) (*model.User, error) {
	if role != model.RoleUser && role != model.RoleOrganizer {
		return nil, fmt.Errorf("%w: role must be user or organizer", game.ErrValidation)
	}
	if _, err := s.RequireRole(ctx, actorID, model.RoleAdmin); err != nil {
		return nil, err
	}
	target, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if target.Role == model.RoleAdmin {
		return nil, fmt.Errorf("%w: cannot change an admin's role", ErrForbidden)
	}

	user, err := s.users.SetRole(ctx, userID, role)
	if err != nil {
		return nil, err
	}
	log.Info().Int64("actor_id", actorID).Int64("user_id", userID).Str("role", string(role)).Msg("Role changed")
	return user, nil
}

// SetAvatar stores a user's avatar reference.
func (s *AccountService) SetAvatar(ctx context.Context, id int64, avatar string) error {
	if len(avatar) > 2048 {
		return fmt.Errorf("%w: avatar reference too long", game.ErrValidation)
	}
	return s.users.SetAvatar(ctx, id, avatar)
}

// IsDebitExempt reports whether debits leave the user's balance unchanged.
// Only admins are exempt.
func (s *AccountService) IsDebitExempt(ctx context.Context, id int64) (bool, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	return user.Role == model.RoleAdmin, nil
}

// AdjustBalance applies a signed balance change and records it. Debits fail
// with ErrInsufficientBalance unless the user is debit-exempt.
func (s *AccountService) AdjustBalance(ctx context.Context, id int64, delta int64, txType, description string) (*model.User, error) {
	if delta == 0 {
		return nil, ErrInvalidAmount
	}
	var user *model.User
	err := s.userLock.WithLock(id, func() error {
		var err error
		user, err = s.users.Adjust(ctx, id, repository.Entry{Amount: delta, Type: txType, Description: description})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to adjust balance: %w", err)
	}
	return user, nil
}

// AdminAdd credits a user.
func (s *AccountService) AdminAdd(ctx context.Context, id int64, amount int64) (*model.User, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	return s.AdjustBalance(ctx, id, amount, model.TxTypeAdminAdd, "admin credit")
}

// AdminSub debits a user, clamping the balance at zero.
func (s *AccountService) AdminSub(ctx context.Context, id int64, amount int64) (*model.User, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	var user *model.User
	err := s.userLock.WithLock(id, func() error {
		current, err := s.users.GetByID(ctx, id)
		if err != nil {
			return err
		}
		amount = min(amount, current.Balance)
		if amount == 0 {
			user = current
			return nil
		}
		user, err = s.users.Adjust(ctx, id, repository.Entry{Amount: -amount, Type: model.TxTypeAdminSub, Description: "admin debit"})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subtract balance: %w", err)
	}
	return user, nil
}

// AdminSet sets a user's balance to an exact non-negative value.
func (s *AccountService) AdminSet(ctx context.Context, id int64, balance int64) (*model.User, error) {
	if balance < 0 {
		return nil, fmt.Errorf("%w: balance cannot be negative", game.ErrValidation)
	}
	var user *model.User
	err := s.userLock.WithLock(id, func() error {
		var err error
		user, err = s.users.SetBalance(ctx, id, balance, model.TxTypeAdminSet, "admin set")
		return err
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to set balance: %w", err)
	}
	return user, nil
}
