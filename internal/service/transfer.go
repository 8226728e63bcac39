package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"bingo-platform/internal/model"
	"bingo-platform/internal/pkg/lock"
	"bingo-platform/internal/repository"
)

// TransferService handles user-to-user transfers.
type TransferService struct {
	users    UserStore
	userLock *lock.UserLock
}

// NewTransferService creates a new TransferService instance.
func NewTransferService(users UserStore, userLock *lock.UserLock) *TransferService {
	return &TransferService{users: users, userLock: userLock}
}

// ValidateTransfer checks a transfer without executing it.
func (s *TransferService) ValidateTransfer(ctx context.Context, fromID, toID int64, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if fromID == toID {
		return ErrSelfTransfer
	}

	sender, err := s.users.GetByID(ctx, fromID)
	if err != nil {
		return fmt.Errorf("failed to get sender: %w", err)
	}
	if sender.Role != model.RoleAdmin && sender.Balance < amount {
		return ErrInsufficientBalance
	}

	if _, err := s.users.GetByID(ctx, toID); err != nil {
		return fmt.Errorf("failed to get receiver: %w", err)
	}
	return nil
}

// Transfer moves amount from one user to another. Both legs and their
// transaction records are written atomically.
func (s *TransferService) Transfer(ctx context.Context, fromID, toID int64, amount int64) error {
	if err := s.ValidateTransfer(ctx, fromID, toID, amount); err != nil {
		return err
	}

	// Lock in ID order so opposite transfers cannot deadlock.
	first, second := min(fromID, toID), max(fromID, toID)
	s.userLock.Lock(first)
	defer s.userLock.Unlock(first)
	s.userLock.Lock(second)
	defer s.userLock.Unlock(second)

	err := s.users.Transfer(ctx,
		repository.Entry{UserID: fromID, Amount: amount, Type: model.TxTypeTransfer, Description: fmt.Sprintf("transfer to %d", toID)},
		repository.Entry{UserID: toID, Amount: amount, Type: model.TxTypeTransfer, Description: fmt.Sprintf("transfer from %d", fromID)},
	)
	if err != nil {
		return fmt.Errorf("failed to transfer: %w", err)
	}

	log.Info().Int64("from", fromID).Int64("to", toID).Int64("amount", amount).Msg("Transfer completed")
	return nil
}
