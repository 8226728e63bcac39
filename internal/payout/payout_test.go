package payout

import (
	"context"
	"errors"
	"math"
	"math/big"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"bingo-platform/internal/game"
	"bingo-platform/internal/model"
)

const adminID = int64(100)

// memLedger is an in-memory Ledger keyed by entity ID.
type memLedger struct {
	mu       sync.Mutex
	balances map[int64]int64
	settled  map[string]bool
	applies  int
	adminErr error
}

func newMemLedger() *memLedger {
	return &memLedger{balances: map[int64]int64{}, settled: map[string]bool{}}
}

func (l *memLedger) AdminID(ctx context.Context) (int64, error) {
	if l.adminErr != nil {
		return 0, l.adminErr
	}
	return adminID, nil
}

func (l *memLedger) Apply(ctx context.Context, s Settlement) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := string(s.Kind) + ":" + s.EntityID
	if l.settled[key] {
		return game.ErrAlreadySettled
	}
	l.settled[key] = true
	l.applies++
	for _, c := range s.Credits {
		l.balances[c.UserID] += c.Amount
	}
	return nil
}

func (l *memLedger) balance(id int64) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[id]
}

func finishedGame(pot int64, winners ...int64) *model.Game {
	return &model.Game{ID: "g1", Pot: pot, Status: model.GameFinished, Winners: winners}
}

func TestSettleGame_SingleWinner(t *testing.T) {
	ledger := newMemLedger()
	r := NewResolver(ledger, 5)
	g := finishedGame(1050, 7)

	res, err := r.SettleGame(context.Background(), g)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, int64(52), res.Plan.Commission)
	assert.Equal(t, int64(997), res.Plan.PerWinner)
	assert.Equal(t, int64(1), res.Plan.Undistributed)
	assert.Equal(t, int64(997), ledger.balance(7))
	assert.Equal(t, int64(52), ledger.balance(adminID))

	// The in-memory flag is not set by the resolver; the ledger refuses the
	// second attempt.
	res, err = r.SettleGame(context.Background(), g)
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, int64(997), ledger.balance(7))
	assert.Equal(t, int64(52), ledger.balance(adminID))
	assert.Equal(t, 1, ledger.applies)
}

func TestSettleGame_TwoWinners(t *testing.T) {
	ledger := newMemLedger()
	r := NewResolver(ledger, 5)

	res, err := r.SettleGame(context.Background(), finishedGame(1000, 7, 8))
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, int64(475), ledger.balance(7))
	assert.Equal(t, int64(475), ledger.balance(8))
	assert.Equal(t, int64(50), ledger.balance(adminID))
	assert.Zero(t, res.Plan.Undistributed)
}

func TestSettleGame_FlagAlreadySet(t *testing.T) {
	ledger := newMemLedger()
	r := NewResolver(ledger, 5)
	g := finishedGame(1000, 7)
	g.PayoutComplete = true

	res, err := r.SettleGame(context.Background(), g)
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Zero(t, ledger.applies)
}

func TestSettleGame_Rejects(t *testing.T) {
	r := NewResolver(newMemLedger(), 5)

	_, err := r.SettleGame(context.Background(), &model.Game{ID: "g", Pot: 100, Status: model.GameInProgress, Winners: []int64{1}})
	assert.ErrorIs(t, err, game.ErrInvalidStateTransition)

	_, err = r.SettleGame(context.Background(), finishedGame(100))
	assert.ErrorIs(t, err, game.ErrInvalidStateTransition)
}

func TestSettleGame_AdminLookupFails(t *testing.T) {
	ledger := newMemLedger()
	ledger.adminErr = errors.New("no admin")
	r := NewResolver(ledger, 5)

	_, err := r.SettleGame(context.Background(), finishedGame(100, 1))
	require.Error(t, err)
	assert.Zero(t, ledger.applies)
}

func TestSettleGame_ConcurrentAttemptsApplyOnce(t *testing.T) {
	ledger := newMemLedger()
	r := NewResolver(ledger, 5)

	var wg sync.WaitGroup
	var mu sync.Mutex
	applied := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := r.SettleGame(context.Background(), finishedGame(1050, 7))
			assert.NoError(t, err)
			if res.Applied {
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, applied)
	assert.Equal(t, int64(997), ledger.balance(7))
	assert.Equal(t, int64(52), ledger.balance(adminID))
}

func TestSettleRaffle(t *testing.T) {
	ledger := newMemLedger()
	r := NewResolver(ledger, 5)
	winner := int64(9)
	ticket := 3
	rf := &model.Raffle{ID: "r1", Prize: 999, Status: model.RaffleFinished, WinnerID: &winner, WinnerTicket: &ticket}

	res, err := r.SettleRaffle(context.Background(), rf)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, int64(49), ledger.balance(adminID))
	assert.Equal(t, int64(950), ledger.balance(winner))

	res, err = r.SettleRaffle(context.Background(), rf)
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, int64(950), ledger.balance(winner))
}

func TestSettleRaffle_Rejects(t *testing.T) {
	r := NewResolver(newMemLedger(), 5)
	_, err := r.SettleRaffle(context.Background(), &model.Raffle{ID: "r", Prize: 10, Status: model.RaffleWaiting})
	assert.ErrorIs(t, err, game.ErrInvalidStateTransition)

	_, err = r.SettleRaffle(context.Background(), &model.Raffle{ID: "r", Prize: 10, Status: model.RaffleFinished})
	assert.ErrorIs(t, err, game.ErrInvalidStateTransition)
}

func TestSplit_Validation(t *testing.T) {
	_, err := Split(-1, 5, []int64{1})
	assert.ErrorIs(t, err, game.ErrValidation)
	_, err = Split(100, 101, []int64{1})
	assert.ErrorIs(t, err, game.ErrValidation)
	_, err = Split(100, 5, []int64{1, 1})
	assert.ErrorIs(t, err, game.ErrValidation)
	_, err = Split(100, 5, nil)
	assert.ErrorIs(t, err, game.ErrInvalidStateTransition)
}

func TestSplit_LargePool(t *testing.T) {
	plan, err := Split(math.MaxInt64, 5, []int64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, int64(461168601842738790), plan.Commission)
	assert.Equal(t, int64(4381101717506018508), plan.PerWinner)
	assert.Equal(t, int64(1), plan.Undistributed)
}

// TestCommissionMatchesExactArithmeticProperty compares the commission with
// floor(pool*percent/100) computed without overflow.
func TestCommissionMatchesExactArithmeticProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		pool := rapid.Int64Range(0, math.MaxInt64).Draw(t, "pool")
		percent := rapid.Int64Range(0, 100).Draw(t, "percent")

		plan, err := Split(pool, percent, []int64{1})
		if err != nil {
			t.Fatalf("split: %v", err)
		}
		want := new(big.Int).Mul(big.NewInt(pool), big.NewInt(percent))
		want.Quo(want, big.NewInt(100))
		if plan.Commission != want.Int64() {
			t.Fatalf("commission of %d at %d%%: got %d, want %s", pool, percent, plan.Commission, want)
		}
		if plan.Commission+plan.PerWinner+plan.Undistributed != pool {
			t.Fatalf("pool %d not conserved: %+v", pool, plan)
		}
	})
}

func TestNewResolver_DefaultPercent(t *testing.T) {
	assert.Equal(t, int64(DefaultCommissionPercent), NewResolver(newMemLedger(), 0).Percent())
}

// TestSplitConservationProperty checks that commission, shares and the
// undistributed remainder always add up to the pool, and that the
// remainder is smaller than the number of winners.
func TestSplitConservationProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		pool := rapid.Int64Range(0, 10_000_000).Draw(t, "pool")
		n := rapid.IntRange(1, 20).Draw(t, "winners")
		winners := make([]int64, n)
		for i := range winners {
			winners[i] = int64(i + 1)
		}

		plan, err := Split(pool, DefaultCommissionPercent, winners)
		if err != nil {
			t.Fatalf("split: %v", err)
		}

		if plan.Commission != pool*5/100 {
			t.Fatalf("commission %d, want floor(%d*5/100)", plan.Commission, pool)
		}
		total := plan.Commission + plan.Undistributed
		for _, s := range plan.Shares {
			if s.Amount != plan.PerWinner {
				t.Fatalf("uneven share %d vs %d", s.Amount, plan.PerWinner)
			}
			total += s.Amount
		}
		if total != pool {
			t.Fatalf("plan does not add up: %d != %d", total, pool)
		}
		if plan.Undistributed < 0 || plan.Undistributed >= int64(n) {
			t.Fatalf("remainder %d out of range for %d winners", plan.Undistributed, n)
		}
	})
}
