// Package service provides business logic implementations.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"bingo-platform/internal/game"
	"bingo-platform/internal/game/card"
	"bingo-platform/internal/model"
	"bingo-platform/internal/payout"
	"bingo-platform/internal/repository"
)

// Common service errors.
var (
	ErrInvalidAmount       = fmt.Errorf("%w: amount must be positive", game.ErrValidation)
	ErrSelfTransfer        = fmt.Errorf("%w: cannot transfer to self", game.ErrValidation)
	ErrForbidden           = errors.New("permission denied")
	ErrUserNotFound        = repository.ErrUserNotFound
	ErrInsufficientBalance = game.ErrInsufficientBalance
)

// actingAs resolves who performs an organizer-only action. An admin acts as
// the entity's organizer; anyone else acts as themselves and is rejected by
// the engine when they are not the organizer.
func actingAs(ctx context.Context, users UserStore, organizerID, actorID int64) (int64, error) {
	if actorID == organizerID {
		return actorID, nil
	}
	user, err := users.GetByID(ctx, actorID)
	if errors.Is(err, ErrUserNotFound) {
		return actorID, nil
	}
	if err != nil {
		return 0, err
	}
	if user.Role == model.RoleAdmin {
		return organizerID, nil
	}
	return actorID, nil
}

// UserStore persists accounts and balances.
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetOrCreate(ctx context.Context, id int64, username, name string, role model.Role, initialBalance int64) (*model.User, bool, error)
	UpdateProfile(ctx context.Context, id int64, username, name string) error
	Adjust(ctx context.Context, id int64, e repository.Entry) (*model.User, error)
	SetBalance(ctx context.Context, id int64, balance int64, txType, description string) (*model.User, error)
	Transfer(ctx context.Context, from, to repository.Entry) error
	SetRole(ctx context.Context, id int64, role model.Role) (*model.User, error)
	SetAvatar(ctx context.Context, id int64, avatar string) error
	FindAdmin(ctx context.Context) (*model.User, error)
	List(ctx context.Context, limit, offset int) ([]*model.User, error)
	GetTopUsers(ctx context.Context, limit int) ([]*model.User, error)
	CountByRole(ctx context.Context, role model.Role) (int, error)
}

// TransactionReader reads the balance change history.
type TransactionReader interface {
	GetByUserID(ctx context.Context, userID int64, limit int) ([]*model.Transaction, error)
	SumByType(ctx context.Context, txType, prefix string) (int64, error)
}

// GameStore persists bingo games.
type GameStore interface {
	Create(ctx context.Context, g *model.Game, funding repository.Entry) error
	Get(ctx context.Context, id string) (*model.Game, error)
	List(ctx context.Context, statuses []model.GameStatus, limit int) ([]*model.Game, error)
	ListUnsettled(ctx context.Context) ([]*model.Game, error)
	AddCard(ctx context.Context, gameID string, buyerID int64, c card.Card, pot int64, payment repository.Entry) error
	Save(ctx context.Context, g *model.Game) error
	Delete(ctx context.Context, id string, refunds []repository.Entry) error
	CountByStatus(ctx context.Context, status model.GameStatus) (int, error)
}

// RaffleStore persists raffles.
type RaffleStore interface {
	Create(ctx context.Context, rf *model.Raffle, funding repository.Entry) error
	Get(ctx context.Context, id string) (*model.Raffle, error)
	List(ctx context.Context, statuses []model.RaffleStatus, limit int) ([]*model.Raffle, error)
	ListUnsettled(ctx context.Context) ([]*model.Raffle, error)
	Purchase(ctx context.Context, raffleID string, buyerID int64, numbers []int, payment repository.Entry) error
	SaveTickets(ctx context.Context, raffleID string, tickets []model.Ticket) error
	Finish(ctx context.Context, rf *model.Raffle) error
	Delete(ctx context.Context, id string, refunds []repository.Entry) error
	CountByStatus(ctx context.Context, status model.RaffleStatus) (int, error)
}

// CreditRequestStore persists top-up requests.
type CreditRequestStore interface {
	Create(ctx context.Context, cr *model.CreditRequest) error
	Get(ctx context.Context, id string) (*model.CreditRequest, error)
	Approve(ctx context.Context, id string, from, to repository.Entry) error
	Reject(ctx context.Context, id string) error
	ListPendingTo(ctx context.Context, toUserID int64) ([]*model.CreditRequest, error)
	ListFrom(ctx context.Context, fromUserID int64, limit int) ([]*model.CreditRequest, error)
}

// MessageStore persists direct messages.
type MessageStore interface {
	Create(ctx context.Context, m *model.Message) error
	Conversation(ctx context.Context, a, b int64, limit int) ([]*model.Message, error)
	MarkRead(ctx context.Context, reader, sender int64) (int, error)
	UnreadCounts(ctx context.Context, reader int64) (map[int64]int, error)
	Partners(ctx context.Context, userID int64) ([]int64, error)
}

// Settler pays out finished games and raffles. *payout.Resolver implements it.
type Settler interface {
	SettleGame(ctx context.Context, g *model.Game) (payout.Result, error)
	SettleRaffle(ctx context.Context, r *model.Raffle) (payout.Result, error)
}

// lockedRand makes a game.Rand safe to share between games.
type lockedRand struct {
	mu sync.Mutex
	r  game.Rand
}

func newLockedRand(r game.Rand) *lockedRand {
	if r == nil {
		r = game.DefaultRand
	}
	return &lockedRand{r: r}
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}
