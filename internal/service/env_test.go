package service

import (
	"testing"
	"time"

	"bingo-platform/internal/game"
	"bingo-platform/internal/model"
	"bingo-platform/internal/payout"
	"bingo-platform/internal/pkg/lock"
	"bingo-platform/internal/service/servicetest"
)

const (
	adminID     int64 = 1
	organizerID int64 = 2
	playerID    int64 = 3
	otherID     int64 = 4
)

type testEnv struct {
	db       *servicetest.DB
	notifier *recordingNotifier
	resolver *payout.Resolver
	accounts *AccountService
	transfer *TransferService
	bingo    *BingoService
	raffles  *RaffleService
	credits  *CreditService
	chat     *ChatService
	stats    *StatsService
}

// newTestEnv wires every service to one in-memory store holding an admin,
// an organizer and two players with 1000 credits each.
func newTestEnv(t *testing.T, interval time.Duration) *testEnv {
	t.Helper()

	db := servicetest.NewDB()
	db.AddUser(adminID, model.RoleAdmin, 0)
	db.AddUser(organizerID, model.RoleOrganizer, 1000)
	db.AddUser(playerID, model.RoleUser, 1000)
	db.AddUser(otherID, model.RoleUser, 1000)

	env := &testEnv{db: db, notifier: &recordingNotifier{}}
	return env.wire(t, interval)
}

func (e *testEnv) wire(t *testing.T, interval time.Duration) *testEnv {
	users := e.db.Users()
	userLock := lock.NewUserLock()
	rnd := game.NewSeededRand(42)

	e.resolver = payout.NewResolver(e.db.Ledger(), payout.DefaultCommissionPercent)
	e.accounts = NewAccountService(users, e.db.Transactions(), userLock, 1000, []int64{adminID})
	e.transfer = NewTransferService(users, userLock)
	e.bingo = NewBingoService(e.db.Games(), users, e.resolver, e.notifier, rnd, interval)
	e.raffles = NewRaffleService(e.db.Raffles(), users, e.resolver, e.notifier, rnd, 100)
	e.credits = NewCreditService(e.db.Credits(), users)
	e.chat = NewChatService(e.db.Messages(), users)
	e.stats = NewStatsService(users, e.db.Transactions(), e.db.Games(), e.db.Raffles())
	t.Cleanup(e.bingo.Shutdown)
	return e
}
