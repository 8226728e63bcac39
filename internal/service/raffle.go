package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"bingo-platform/internal/game"
	"bingo-platform/internal/game/raffle"
	"bingo-platform/internal/model"
	"bingo-platform/internal/payout"
	"bingo-platform/internal/pkg/lock"
	"bingo-platform/internal/repository"
)

// CreateRaffleInput describes a new raffle.
type CreateRaffleInput struct {
	Name         string     `json:"name"`
	Prize        int64      `json:"prize"`
	TicketPrice  int64      `json:"ticket_price"`
	TotalTickets int        `json:"total_tickets"`
	Mode         model.Mode `json:"mode"`
}

// RaffleService runs raffles. Operations on one raffle are serialized by a
// per-raffle lock.
type RaffleService struct {
	raffles    RaffleStore
	users      UserStore
	settler    Settler
	locks      *lock.EntityLock
	notifier   Notifier
	rand       game.Rand
	maxTickets int
}

// NewRaffleService creates a new RaffleService instance.
func NewRaffleService(
	raffles RaffleStore,
	users UserStore,
	settler Settler,
	notifier Notifier,
	rnd game.Rand,
	maxTickets int,
) *RaffleService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &RaffleService{
		raffles:    raffles,
		users:      users,
		settler:    settler,
		locks:      lock.NewEntityLock(),
		notifier:   notifier,
		rand:       newLockedRand(rnd),
		maxTickets: maxTickets,
	}
}

// Create funds and opens a new raffle.
func (s *RaffleService) Create(ctx context.Context, organizerID int64, in CreateRaffleInput) (*model.Raffle, error) {
	organizer, err := s.users.GetByID(ctx, organizerID)
	if err != nil {
		return nil, err
	}
	if !organizer.Role.CanOrganize() {
		return nil, fmt.Errorf("%w: only organizers can create raffles", ErrForbidden)
	}

	rf, err := raffle.NewRaffle(raffle.Params{
		ID:           uuid.NewString(),
		OrganizerID:  organizerID,
		Name:         in.Name,
		Prize:        in.Prize,
		TicketPrice:  in.TicketPrice,
		TotalTickets: in.TotalTickets,
		MaxTickets:   s.maxTickets,
		Mode:         in.Mode,
		CreatedAt:    time.Now(),
	})
	if err != nil {
		return nil, err
	}

	funding := repository.Entry{
		UserID:      organizerID,
		Amount:      rf.Prize,
		Type:        model.TxTypeRaffleCreate,
		Description: "raffle " + rf.ID,
	}
	if err := s.raffles.Create(ctx, rf, funding); err != nil {
		return nil, fmt.Errorf("failed to create raffle: %w", err)
	}

	log.Info().
		Str("raffle_id", rf.ID).
		Int64("user_id", organizerID).
		Int64("amount", rf.Prize).
		Int("tickets", len(rf.Tickets)).
		Msg("Raffle created")
	s.notifier.Notify(Event{Type: EventRaffleCreated, Raffle: rf})
	return rf, nil
}

// Get returns a raffle.
func (s *RaffleService) Get(ctx context.Context, id string) (*model.Raffle, error) {
	return s.raffles.Get(ctx, id)
}

// List returns raffles, optionally filtered by status.
func (s *RaffleService) List(ctx context.Context, statuses ...model.RaffleStatus) ([]*model.Raffle, error) {
	return s.raffles.List(ctx, statuses, 100)
}

// Purchase sells available tickets to the buyer for credits.
func (s *RaffleService) Purchase(ctx context.Context, raffleID string, buyerID int64, numbers []int) (*model.Raffle, error) {
	var result *model.Raffle
	var cost int64
	err := s.locks.WithLock(raffleID, func() error {
		rf, err := s.raffles.Get(ctx, raffleID)
		if err != nil {
			return err
		}
		next := rf.Clone()
		cost, err = raffle.Purchase(next, buyerID, numbers)
		if err != nil {
			return err
		}
		payment := repository.Entry{
			UserID:      buyerID,
			Amount:      cost,
			Type:        model.TxTypeTicketPurchase,
			Description: "raffle " + rf.ID,
		}
		if err := s.raffles.Purchase(ctx, rf.ID, buyerID, numbers, payment); err != nil {
			return fmt.Errorf("failed to purchase tickets: %w", err)
		}
		result = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("raffle_id", raffleID).Int64("user_id", buyerID).Ints("tickets", numbers).Int64("amount", cost).Msg("Tickets purchased")
	s.notifier.Notify(Event{Type: EventTicketsPurchased, Raffle: result, Tickets: numbers})
	return result, nil
}

// Reserve holds tickets for the buyer pending the organizer's review of an
// off-platform payment proof.
func (s *RaffleService) Reserve(ctx context.Context, raffleID string, buyerID int64, numbers []int, proof string) (*model.Raffle, error) {
	result, err := s.updateTickets(ctx, raffleID, numbers, func(rf *model.Raffle) error {
		return raffle.Reserve(rf, buyerID, numbers, proof)
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("raffle_id", raffleID).Int64("user_id", buyerID).Ints("tickets", numbers).Msg("Tickets reserved")
	s.notifier.Notify(Event{Type: EventTicketsReserved, Raffle: result, Tickets: numbers})
	return result, nil
}

// Approve confirms a reserved ticket as sold.
func (s *RaffleService) Approve(ctx context.Context, raffleID string, actorID int64, n int) (*model.Raffle, error) {
	result, err := s.updateTickets(ctx, raffleID, []int{n}, func(rf *model.Raffle) error {
		actor, err := actingAs(ctx, s.users, rf.OrganizerID, actorID)
		if err != nil {
			return err
		}
		return raffle.Approve(rf, actor, n)
	})
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(Event{Type: EventTicketApproved, Raffle: result, Tickets: []int{n}})
	return result, nil
}

// Reject releases a reserved ticket.
func (s *RaffleService) Reject(ctx context.Context, raffleID string, actorID int64, n int) (*model.Raffle, error) {
	result, err := s.updateTickets(ctx, raffleID, []int{n}, func(rf *model.Raffle) error {
		actor, err := actingAs(ctx, s.users, rf.OrganizerID, actorID)
		if err != nil {
			return err
		}
		return raffle.Reject(rf, actor, n)
	})
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(Event{Type: EventTicketRejected, Raffle: result, Tickets: []int{n}})
	return result, nil
}

// updateTickets applies fn to a copy of the raffle and persists the
// touched tickets.
func (s *RaffleService) updateTickets(ctx context.Context, raffleID string, numbers []int, fn func(*model.Raffle) error) (*model.Raffle, error) {
	var result *model.Raffle
	err := s.locks.WithLock(raffleID, func() error {
		rf, err := s.raffles.Get(ctx, raffleID)
		if err != nil {
			return err
		}
		next := rf.Clone()
		if err := fn(next); err != nil {
			return err
		}
		tickets := make([]model.Ticket, 0, len(numbers))
		for _, n := range numbers {
			tickets = append(tickets, next.Tickets[n])
		}
		if err := s.raffles.SaveTickets(ctx, rf.ID, tickets); err != nil {
			return fmt.Errorf("failed to save tickets: %w", err)
		}
		result = next
		return nil
	})
	return result, err
}

// Draw picks the winning ticket and pays out. Automatic raffles draw at
// random among sold tickets; manual raffles take the organizer's number,
// which must be given.
func (s *RaffleService) Draw(ctx context.Context, raffleID string, actorID int64, number *int) (*model.Raffle, payout.Result, error) {
	var result *model.Raffle
	err := s.locks.WithLock(raffleID, func() error {
		rf, err := s.raffles.Get(ctx, raffleID)
		if err != nil {
			return err
		}
		actor, err := actingAs(ctx, s.users, rf.OrganizerID, actorID)
		if err != nil {
			return err
		}
		next := rf.Clone()
		switch rf.Mode {
		case model.ModeManual:
			if number == nil {
				return fmt.Errorf("%w: a manual raffle needs a ticket number", game.ErrValidation)
			}
			err = raffle.DrawManual(next, actor, *number)
		default:
			_, err = raffle.DrawAuto(next, actor, s.rand)
		}
		if err != nil {
			return err
		}
		if err := s.raffles.Finish(ctx, next); err != nil {
			return fmt.Errorf("failed to finish raffle: %w", err)
		}
		result = next
		return nil
	})
	if err != nil {
		return nil, payout.Result{}, err
	}

	log.Info().
		Str("raffle_id", raffleID).
		Int("ticket", *result.WinnerTicket).
		Int64("user_id", *result.WinnerID).
		Str("mode", string(result.Mode)).
		Msg("Raffle drawn")
	s.notifier.Notify(Event{Type: EventRaffleDrawn, Raffle: result})

	settlement, err := s.settler.SettleRaffle(ctx, result)
	if err != nil {
		// The reconciler retries unsettled raffles.
		log.Error().Err(err).Str("raffle_id", raffleID).Msg("Failed to settle raffle")
		return result, payout.Result{}, nil
	}
	result.PayoutComplete = true
	if settlement.Applied {
		s.notifier.Notify(Event{Type: EventRaffleSettled, Raffle: result, Payout: &settlement})
	}
	return result, settlement, nil
}

// SettlePending settles finished raffles whose payout is still missing.
func (s *RaffleService) SettlePending(ctx context.Context) (int, error) {
	raffles, err := s.raffles.ListUnsettled(ctx)
	if err != nil {
		return 0, err
	}
	settled := 0
	for _, rf := range raffles {
		result, err := s.settler.SettleRaffle(ctx, rf)
		if err != nil {
			log.Error().Err(err).Str("raffle_id", rf.ID).Msg("Failed to settle raffle")
			continue
		}
		if result.Applied {
			settled++
			rf.PayoutComplete = true
			s.notifier.Notify(Event{Type: EventRaffleSettled, Raffle: rf, Payout: &result})
		}
	}
	return settled, nil
}

// Delete removes a raffle. A waiting raffle with no sold or reserved
// tickets refunds the prize; a finished raffle refunds nothing.
func (s *RaffleService) Delete(ctx context.Context, raffleID string, actorID int64) error {
	var deleted *model.Raffle
	err := s.locks.WithLock(raffleID, func() error {
		rf, err := s.raffles.Get(ctx, raffleID)
		if err != nil {
			return err
		}
		actor, err := actingAs(ctx, s.users, rf.OrganizerID, actorID)
		if err != nil {
			return err
		}
		refund, err := raffle.DeleteRefund(rf, actor)
		if err != nil {
			return err
		}
		var entries []repository.Entry
		if refund > 0 {
			entries = append(entries, repository.Entry{
				UserID:      rf.OrganizerID,
				Amount:      refund,
				Type:        model.TxTypeRaffleRefund,
				Description: "raffle " + rf.ID,
			})
		}
		if err := s.raffles.Delete(ctx, rf.ID, entries); err != nil {
			return fmt.Errorf("failed to delete raffle: %w", err)
		}
		deleted = rf
		return nil
	})
	if err != nil {
		return err
	}

	log.Info().Str("raffle_id", raffleID).Int64("user_id", actorID).Msg("Raffle deleted")
	s.notifier.Notify(Event{Type: EventRaffleDeleted, Raffle: deleted})
	return nil
}
