// Package bingo implements the bingo game lifecycle: joining, starting,
// calling numbers and detecting winners.
//
// Every function validates fully before it mutates, so a rejected operation
// leaves the game untouched. The functions are not safe for concurrent use
// on the same game; callers hold a per-game lock around load, mutate and
// save.
package bingo

import (
	"fmt"
	"time"

	"bingo-platform/internal/game"
	"bingo-platform/internal/game/card"
	"bingo-platform/internal/game/pattern"
	"bingo-platform/internal/model"
)

// Params describes a new game.
type Params struct {
	ID          string
	OrganizerID int64
	Prize       int64
	CardPrice   int64
	Pattern     pattern.Kind
	Mode        model.Mode
	CreatedAt   time.Time
}

// CallResult describes the effect of one number call.
type CallResult struct {
	Number    int     `json:"number"`
	Winners   []int64 `json:"winners,omitempty"`
	Finished  bool    `json:"finished"`
	Exhausted bool    `json:"exhausted"`
}

// Refund is a credit owed when a waiting game is deleted.
type Refund struct {
	UserID int64
	Amount int64
	Reason string
}

// NewGame validates p and returns a waiting game whose pot holds the prize.
func NewGame(p Params) (*model.Game, error) {
	if p.ID == "" {
		return nil, fmt.Errorf("%w: game id is required", game.ErrValidation)
	}
	if p.Prize <= 0 {
		return nil, fmt.Errorf("%w: prize must be positive", game.ErrValidation)
	}
	if p.CardPrice <= 0 {
		return nil, fmt.Errorf("%w: card price must be positive", game.ErrValidation)
	}
	if !p.Pattern.Valid() {
		return nil, fmt.Errorf("%w: unknown pattern %q", game.ErrValidation, p.Pattern)
	}
	if !p.Mode.Valid() {
		return nil, fmt.Errorf("%w: unknown mode %q", game.ErrValidation, p.Mode)
	}

	created := p.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	return &model.Game{
		ID:            p.ID,
		OrganizerID:   p.OrganizerID,
		Prize:         p.Prize,
		CardPrice:     p.CardPrice,
		Pot:           p.Prize,
		Pattern:       p.Pattern,
		Mode:          p.Mode,
		Status:        model.GameWaiting,
		CalledNumbers: []int{},
		Players:       []model.Player{},
		Winners:       []int64{},
		CreatedAt:     created,
		UpdatedAt:     created,
	}, nil
}

// CheckPurchase reports whether buyerID may buy a card right now.
func CheckPurchase(g *model.Game, buyerID int64) error {
	if g.Status != model.GameWaiting {
		return fmt.Errorf("%w: cards can only be bought while the game is waiting", game.ErrInvalidStateTransition)
	}
	if buyerID == g.OrganizerID {
		return fmt.Errorf("%w: organizer cannot buy cards in their own game", game.ErrValidation)
	}
	return nil
}

// AddCard appends c to the buyer's cards, creating the player entry on the
// first purchase, and grows the pot by the card price. The caller debits the
// buyer.
func AddCard(g *model.Game, buyerID int64, c card.Card) error {
	if err := CheckPurchase(g, buyerID); err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return err
	}

	if p := g.Player(buyerID); p != nil {
		p.Cards = append(p.Cards, c)
	} else {
		g.Players = append(g.Players, model.Player{UserID: buyerID, Cards: []card.Card{c}})
	}
	g.Pot += g.CardPrice
	g.UpdatedAt = time.Now()
	return nil
}

// Start moves a waiting game to in progress. Only the organizer may start.
func Start(g *model.Game, actorID int64) error {
	if actorID != g.OrganizerID {
		return game.ErrNotOrganizer
	}
	if g.Status != model.GameWaiting {
		return fmt.Errorf("%w: game is %s, not waiting", game.ErrInvalidStateTransition, g.Status)
	}
	g.Status = model.GameInProgress
	g.UpdatedAt = time.Now()
	return nil
}

// CheckManualCaller reports whether actorID may call numbers by hand.
func CheckManualCaller(g *model.Game, actorID int64) error {
	if g.Mode != model.ModeManual {
		return fmt.Errorf("%w: numbers are called automatically in this game", game.ErrInvalidStateTransition)
	}
	if actorID != g.OrganizerID {
		return game.ErrNotOrganizer
	}
	return nil
}

func checkCallable(g *model.Game) error {
	if g.Status != model.GameInProgress {
		return fmt.Errorf("%w: game is %s, not in progress", game.ErrInvalidStateTransition, g.Status)
	}
	if len(g.Winners) > 0 {
		return fmt.Errorf("%w: winners already declared", game.ErrInvalidStateTransition)
	}
	return nil
}

// Call records number n and checks every card for the game's pattern. If
// any player wins, or all numbers have been called, the game finishes in
// the same step.
func Call(g *model.Game, n int) (CallResult, error) {
	if err := checkCallable(g); err != nil {
		return CallResult{}, err
	}
	if n < 1 || n > card.MaxNumber {
		return CallResult{}, fmt.Errorf("%w: number %d outside 1-%d", game.ErrValidation, n, card.MaxNumber)
	}
	for _, c := range g.CalledNumbers {
		if c == n {
			return CallResult{}, fmt.Errorf("%w: %d", game.ErrDuplicateCall, n)
		}
	}

	g.CalledNumbers = append(g.CalledNumbers, n)
	g.UpdatedAt = time.Now()

	res := CallResult{Number: n}
	if winners := Winners(g); len(winners) > 0 {
		g.Winners = winners
		g.Status = model.GameFinished
		res.Winners = winners
		res.Finished = true
		return res, nil
	}

	if len(g.CalledNumbers) == card.MaxNumber {
		g.Status = model.GameFinished
		res.Finished = true
		res.Exhausted = true
	}
	return res, nil
}

// DrawNext calls a uniformly random number that has not been called yet.
// With nothing left to call, the game finishes with no winners.
func DrawNext(g *model.Game, r game.Rand) (CallResult, error) {
	if err := checkCallable(g); err != nil {
		return CallResult{}, err
	}

	remaining := Remaining(g)
	if len(remaining) == 0 {
		g.Status = model.GameFinished
		g.UpdatedAt = time.Now()
		return CallResult{Finished: true, Exhausted: true}, nil
	}
	return Call(g, remaining[r.IntN(len(remaining))])
}

// Remaining returns the numbers not yet called, ascending.
func Remaining(g *model.Game) []int {
	called := pattern.NewSet(g.CalledNumbers...)
	out := make([]int, 0, card.MaxNumber-len(called))
	for n := 1; n <= card.MaxNumber; n++ {
		if !called.Has(n) {
			out = append(out, n)
		}
	}
	return out
}

// Winners returns every player holding at least one card that satisfies the
// game's pattern, once each, in roster order.
func Winners(g *model.Game) []int64 {
	called := pattern.NewSet(g.CalledNumbers...)
	var winners []int64
	for _, p := range g.Players {
		for _, c := range p.Cards {
			if pattern.IsWinningCard(c, called, g.Pattern) {
				winners = append(winners, p.UserID)
				break
			}
		}
	}
	return winners
}

// WinningCards returns the indexes of userID's cards that satisfy the
// pattern.
func WinningCards(g *model.Game, userID int64) []int {
	p := g.Player(userID)
	if p == nil {
		return nil
	}
	called := pattern.NewSet(g.CalledNumbers...)
	var idx []int
	for i, c := range p.Cards {
		if pattern.IsWinningCard(c, called, g.Pattern) {
			idx = append(idx, i)
		}
	}
	return idx
}

// DeleteRefunds reports what deleting the game owes. A waiting game returns
// the prize to the organizer and each card's price to its buyer. A finished
// game is deleted without refunds once its winners are paid. A game in
// progress cannot be deleted.
func DeleteRefunds(g *model.Game, actorID int64) ([]Refund, error) {
	if actorID != g.OrganizerID {
		return nil, game.ErrNotOrganizer
	}

	switch g.Status {
	case model.GameWaiting:
		refunds := []Refund{{UserID: g.OrganizerID, Amount: g.Prize, Reason: model.TxTypeGameRefund}}
		for _, p := range g.Players {
			if len(p.Cards) == 0 {
				continue
			}
			refunds = append(refunds, Refund{
				UserID: p.UserID,
				Amount: int64(len(p.Cards)) * g.CardPrice,
				Reason: model.TxTypeGameRefund,
			})
		}
		return refunds, nil
	case model.GameFinished:
		if len(g.Winners) > 0 && !g.PayoutComplete {
			return nil, fmt.Errorf("%w: game payout is still pending", game.ErrInvalidStateTransition)
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: cannot delete a game in progress", game.ErrInvalidStateTransition)
	}
}
