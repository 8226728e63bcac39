package service

import (
	"bingo-platform/internal/game/bingo"
	"bingo-platform/internal/model"
	"bingo-platform/internal/payout"
)

// EventType names a state change pushed to subscribers.
type EventType string

// Event types.
const (
	EventGameCreated      EventType = "game_created"
	EventCardBought       EventType = "card_bought"
	EventGameStarted      EventType = "game_started"
	EventNumberCalled     EventType = "number_called"
	EventGameFinished     EventType = "game_finished"
	EventGameSettled      EventType = "game_settled"
	EventGameDeleted      EventType = "game_deleted"
	EventRaffleCreated    EventType = "raffle_created"
	EventTicketsPurchased EventType = "tickets_purchased"
	EventTicketsReserved  EventType = "tickets_reserved"
	EventTicketApproved   EventType = "ticket_approved"
	EventTicketRejected   EventType = "ticket_rejected"
	EventRaffleDrawn      EventType = "raffle_drawn"
	EventRaffleSettled    EventType = "raffle_settled"
	EventRaffleDeleted    EventType = "raffle_deleted"
)

// Event is a snapshot of a game or raffle after a state change. Exactly one
// of Game and Raffle is set.
type Event struct {
	Type    EventType         `json:"type"`
	Game    *model.Game       `json:"game,omitempty"`
	Raffle  *model.Raffle     `json:"raffle,omitempty"`
	Call    *bingo.CallResult `json:"call,omitempty"`
	Tickets []int             `json:"tickets,omitempty"`
	Payout  *payout.Result    `json:"payout,omitempty"`
}

// Notifier receives events. Implementations must not block.
type Notifier interface {
	Notify(ev Event)
}

// Notifiers fans an event out to several notifiers.
type Notifiers []Notifier

// Notify implements Notifier.
func (ns Notifiers) Notify(ev Event) {
	for _, n := range ns {
		if n != nil {
			n.Notify(ev)
		}
	}
}

type nopNotifier struct{}

func (nopNotifier) Notify(Event) {}
