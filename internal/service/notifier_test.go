package service

import (
	"sync"

	"bingo-platform/internal/payout"
	"bingo-platform/internal/repository"
	"bingo-platform/internal/service/servicetest"
)

// recordingNotifier captures events for assertions.
type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingNotifier) Notify(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingNotifier) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

var (
	_ UserStore          = servicetest.Users{}
	_ TransactionReader  = servicetest.Transactions{}
	_ GameStore          = servicetest.Games{}
	_ RaffleStore        = servicetest.Raffles{}
	_ CreditRequestStore = servicetest.Credits{}
	_ MessageStore       = servicetest.Messages{}
	_ payout.Ledger      = servicetest.Ledger{}

	_ UserStore          = (*repository.UserRepository)(nil)
	_ TransactionReader  = (*repository.TransactionRepository)(nil)
	_ GameStore          = (*repository.GameRepository)(nil)
	_ RaffleStore        = (*repository.RaffleRepository)(nil)
	_ CreditRequestStore = (*repository.CreditRequestRepository)(nil)
	_ MessageStore       = (*repository.MessageRepository)(nil)
	_ Settler            = (*payout.Resolver)(nil)
)
