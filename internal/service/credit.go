package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"bingo-platform/internal/game"
	"bingo-platform/internal/model"
	"bingo-platform/internal/repository"
)

// CreditService handles balance top-up requests addressed to organizers
// and admins.
type CreditService struct {
	requests CreditRequestStore
	users    UserStore
}

// NewCreditService creates a new CreditService instance.
func NewCreditService(requests CreditRequestStore, users UserStore) *CreditService {
	return &CreditService{requests: requests, users: users}
}

// Request asks toID to credit fromID with amount. The proof is stored as
// given.
func (s *CreditService) Request(ctx context.Context, fromID, toID int64, amount int64, proof string) (*model.CreditRequest, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if fromID == toID {
		return nil, fmt.Errorf("%w: cannot request credits from yourself", game.ErrValidation)
	}
	target, err := s.users.GetByID(ctx, toID)
	if err != nil {
		return nil, err
	}
	if !target.Role.CanOrganize() {
		return nil, fmt.Errorf("%w: requests must go to an organizer or admin", game.ErrValidation)
	}

	cr := &model.CreditRequest{
		ID:         uuid.NewString(),
		FromUserID: fromID,
		ToUserID:   toID,
		Amount:     amount,
		Status:     model.CreditPending,
		CreatedAt:  time.Now(),
	}
	if proof = strings.TrimSpace(proof); proof != "" {
		cr.PaymentProof = &proof
	}
	if err := s.requests.Create(ctx, cr); err != nil {
		return nil, err
	}

	log.Info().Str("request_id", cr.ID).Int64("user_id", fromID).Int64("to", toID).Int64("amount", amount).Msg("Credit requested")
	return cr, nil
}

// pending loads a request that approverID may resolve.
func (s *CreditService) pending(ctx context.Context, id string, approverID int64) (*model.CreditRequest, error) {
	cr, err := s.requests.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cr.ToUserID != approverID {
		return nil, fmt.Errorf("%w: request is addressed to someone else", ErrForbidden)
	}
	if cr.Status != model.CreditPending {
		return nil, fmt.Errorf("%w: request already %s", game.ErrInvalidStateTransition, cr.Status)
	}
	return cr, nil
}

// Approve credits the requester from the approver's balance. Admin
// approvers are debit-exempt.
func (s *CreditService) Approve(ctx context.Context, id string, approverID int64) (*model.CreditRequest, error) {
	cr, err := s.pending(ctx, id, approverID)
	if err != nil {
		return nil, err
	}

	desc := "credit request " + cr.ID
	err = s.requests.Approve(ctx, cr.ID,
		repository.Entry{UserID: approverID, Amount: cr.Amount, Type: model.TxTypeCreditRequest, Description: desc},
		repository.Entry{UserID: cr.FromUserID, Amount: cr.Amount, Type: model.TxTypeCreditRequest, Description: desc},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to approve request: %w", err)
	}

	now := time.Now()
	cr.Status = model.CreditApproved
	cr.ResolvedAt = &now
	log.Info().Str("request_id", cr.ID).Int64("user_id", approverID).Int64("amount", cr.Amount).Msg("Credit request approved")
	return cr, nil
}

// Reject declines a pending request.
func (s *CreditService) Reject(ctx context.Context, id string, approverID int64) (*model.CreditRequest, error) {
	cr, err := s.pending(ctx, id, approverID)
	if err != nil {
		return nil, err
	}
	if err := s.requests.Reject(ctx, cr.ID); err != nil {
		return nil, fmt.Errorf("failed to reject request: %w", err)
	}
	now := time.Now()
	cr.Status = model.CreditRejected
	cr.ResolvedAt = &now
	return cr, nil
}

// ListPending returns the pending requests addressed to a user.
func (s *CreditService) ListPending(ctx context.Context, toID int64) ([]*model.CreditRequest, error) {
	return s.requests.ListPendingTo(ctx, toID)
}

// ListByUser returns the requests a user has made.
func (s *CreditService) ListByUser(ctx context.Context, fromID int64) ([]*model.CreditRequest, error) {
	return s.requests.ListFrom(ctx, fromID, 50)
}
