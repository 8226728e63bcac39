// Package payout distributes the prize of a finished game or raffle.
//
// The commission is a fixed percentage of the pool (the pot for bingo, the
// prize for raffles), rounded down, and goes to the administrator. The rest
// is split evenly between the winners, rounded down; any remainder is not
// credited to anyone.
package payout

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"bingo-platform/internal/game"
	"bingo-platform/internal/model"
)

// DefaultCommissionPercent is the administrator's cut.
const DefaultCommissionPercent = 5

// Kind identifies what is being settled.
type Kind string

// Settlement kinds.
const (
	KindGame   Kind = "game"
	KindRaffle Kind = "raffle"
)

// Share is an amount credited to one winner.
type Share struct {
	UserID int64 `json:"user_id"`
	Amount int64 `json:"amount"`
}

// Plan is the arithmetic of one settlement.
type Plan struct {
	Pool          int64   `json:"pool"`
	Commission    int64   `json:"commission"`
	PerWinner     int64   `json:"per_winner"`
	Shares        []Share `json:"shares"`
	Undistributed int64   `json:"undistributed"`
}

// Split computes commission and equal shares of pool for winners. Winners
// must be non-empty and distinct.
func Split(pool int64, percent int64, winners []int64) (Plan, error) {
	if pool < 0 {
		return Plan{}, fmt.Errorf("%w: negative pool %d", game.ErrValidation, pool)
	}
	if percent < 0 || percent > 100 {
		return Plan{}, fmt.Errorf("%w: commission percent %d outside 0-100", game.ErrValidation, percent)
	}
	if len(winners) == 0 {
		return Plan{}, fmt.Errorf("%w: no winners to pay", game.ErrInvalidStateTransition)
	}
	seen := make(map[int64]bool, len(winners))
	for _, w := range winners {
		if seen[w] {
			return Plan{}, fmt.Errorf("%w: winner %d listed twice", game.ErrValidation, w)
		}
		seen[w] = true
	}

	// Split before multiplying so pools near MaxInt64 cannot overflow.
	commission := pool/100*percent + pool%100*percent/100
	perWinner := (pool - commission) / int64(len(winners))

	shares := make([]Share, len(winners))
	for i, w := range winners {
		shares[i] = Share{UserID: w, Amount: perWinner}
	}

	return Plan{
		Pool:          pool,
		Commission:    commission,
		PerWinner:     perWinner,
		Shares:        shares,
		Undistributed: pool - commission - perWinner*int64(len(winners)),
	}, nil
}

// ForGame plans the payout of a finished game with winners.
func ForGame(g *model.Game, percent int64) (Plan, error) {
	if g.Status != model.GameFinished {
		return Plan{}, fmt.Errorf("%w: game is %s, not finished", game.ErrInvalidStateTransition, g.Status)
	}
	return Split(g.Pot, percent, g.Winners)
}

// ForRaffle plans the payout of a finished raffle.
func ForRaffle(r *model.Raffle, percent int64) (Plan, error) {
	if r.Status != model.RaffleFinished {
		return Plan{}, fmt.Errorf("%w: raffle is %s, not finished", game.ErrInvalidStateTransition, r.Status)
	}
	if r.WinnerID == nil {
		return Plan{}, fmt.Errorf("%w: raffle has no winner", game.ErrInvalidStateTransition)
	}
	return Split(r.Prize, percent, []int64{*r.WinnerID})
}

// Credit is one balance credit applied by a settlement.
type Credit struct {
	UserID int64
	Amount int64
	Type   string
}

// Settlement is what the ledger applies atomically: set the entity's
// completion flag, then apply every credit.
type Settlement struct {
	Kind     Kind
	EntityID string
	Credits  []Credit
}

// Ledger applies settlements.
type Ledger interface {
	// AdminID returns the user who receives the commission.
	AdminID(ctx context.Context) (int64, error)

	// Apply sets the completion flag of s.EntityID and applies the credits
	// in one atomic step. If the flag was already set, it applies nothing
	// and returns game.ErrAlreadySettled.
	Apply(ctx context.Context, s Settlement) error
}

// Result reports what a settle call did.
type Result struct {
	Plan    Plan  `json:"plan"`
	AdminID int64 `json:"admin_id"`
	Applied bool  `json:"applied"`
}

// Recorder observes settlements, e.g. for metrics.
type Recorder interface {
	Settled(kind Kind, applied bool, commission int64)
}

// Resolver settles finished games and raffles exactly once.
type Resolver struct {
	ledger   Ledger
	percent  int64
	recorder Recorder
}

// NewResolver creates a Resolver. A non-positive percent falls back to
// DefaultCommissionPercent.
func NewResolver(ledger Ledger, percent int64) *Resolver {
	if percent <= 0 {
		percent = DefaultCommissionPercent
	}
	return &Resolver{ledger: ledger, percent: percent}
}

// WithRecorder attaches a Recorder.
func (r *Resolver) WithRecorder(rec Recorder) *Resolver {
	r.recorder = rec
	return r
}

// Percent returns the commission percentage in use.
func (r *Resolver) Percent() int64 {
	return r.percent
}

// SettleGame pays out a finished game. An already settled game is a no-op
// with Applied false.
func (r *Resolver) SettleGame(ctx context.Context, g *model.Game) (Result, error) {
	if g.PayoutComplete {
		return r.skip(KindGame, g.ID), nil
	}
	plan, err := ForGame(g, r.percent)
	if err != nil {
		return Result{}, err
	}
	return r.apply(ctx, KindGame, g.ID, plan)
}

// SettleRaffle pays out a finished raffle. An already settled raffle is a
// no-op with Applied false.
func (r *Resolver) SettleRaffle(ctx context.Context, rf *model.Raffle) (Result, error) {
	if rf.PayoutComplete {
		return r.skip(KindRaffle, rf.ID), nil
	}
	plan, err := ForRaffle(rf, r.percent)
	if err != nil {
		return Result{}, err
	}
	return r.apply(ctx, KindRaffle, rf.ID, plan)
}

func (r *Resolver) skip(kind Kind, id string) Result {
	log.Debug().Str("kind", string(kind)).Str("entity_id", id).Msg("Payout already complete")
	if r.recorder != nil {
		r.recorder.Settled(kind, false, 0)
	}
	return Result{}
}

func (r *Resolver) apply(ctx context.Context, kind Kind, id string, plan Plan) (Result, error) {
	adminID, err := r.ledger.AdminID(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to find admin: %w", err)
	}

	credits := make([]Credit, 0, len(plan.Shares)+1)
	for _, s := range plan.Shares {
		if s.Amount > 0 {
			credits = append(credits, Credit{UserID: s.UserID, Amount: s.Amount, Type: model.TxTypePayoutWin})
		}
	}
	if plan.Commission > 0 {
		credits = append(credits, Credit{UserID: adminID, Amount: plan.Commission, Type: model.TxTypePayoutCommission})
	}

	err = r.ledger.Apply(ctx, Settlement{Kind: kind, EntityID: id, Credits: credits})
	if errors.Is(err, game.ErrAlreadySettled) {
		return r.skip(kind, id), nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("failed to apply %s settlement: %w", kind, err)
	}

	log.Info().
		Str("kind", string(kind)).
		Str("entity_id", id).
		Int64("pool", plan.Pool).
		Int64("commission", plan.Commission).
		Int64("per_winner", plan.PerWinner).
		Int("winners", len(plan.Shares)).
		Msg("Payout settled")

	if r.recorder != nil {
		r.recorder.Settled(kind, true, plan.Commission)
	}
	return Result{Plan: plan, AdminID: adminID, Applied: true}, nil
}
