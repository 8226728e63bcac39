package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"bingo-platform/internal/game"
	"bingo-platform/internal/game/bingo"
	"bingo-platform/internal/game/card"
	"bingo-platform/internal/game/pattern"
	"bingo-platform/internal/model"
	"bingo-platform/internal/pkg/lock"
	"bingo-platform/internal/repository"
)

// CreateGameInput describes a new bingo game.
type CreateGameInput struct {
	Prize     int64        `json:"prize"`
	CardPrice int64        `json:"card_price"`
	Pattern   pattern.Kind `json:"pattern"`
	Mode      model.Mode   `json:"mode"`
}

// BingoService runs bingo games. State transitions of one game are
// serialized by a per-game lock; automatic games are driven by a Caller
// goroutine registered in the session registry.
type BingoService struct {
	games    GameStore
	users    UserStore
	settler  Settler
	locks    *lock.EntityLock
	callers  *game.Registry
	notifier Notifier
	rand     game.Rand
	interval time.Duration

	root   context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup
	closed bool
	mu     sync.Mutex
}

// NewBingoService creates a new BingoService instance. A nil rand uses
// game.DefaultRand; a non-positive interval uses bingo.DefaultCallInterval.
func NewBingoService(
	games GameStore,
	users UserStore,
	settler Settler,
	notifier Notifier,
	rnd game.Rand,
	interval time.Duration,
) *BingoService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if interval <= 0 {
		interval = bingo.DefaultCallInterval
	}
	root, stop := context.WithCancel(context.Background())
	return &BingoService{
		games:    games,
		users:    users,
		settler:  settler,
		locks:    lock.NewEntityLock(),
		callers:  game.NewRegistry(),
		notifier: notifier,
		rand:     newLockedRand(rnd),
		interval: interval,
		root:     root,
		stop:     stop,
	}
}

// Create funds and opens a new game. The organizer must have the organizer
// or admin role; the prize is debited from their balance.
func (s *BingoService) Create(ctx context.Context, organizerID int64, in CreateGameInput) (*model.Game, error) {
	organizer, err := s.users.GetByID(ctx, organizerID)
	if err != nil {
		return nil, err
	}
	if !organizer.Role.CanOrganize() {
		return nil, fmt.Errorf("%w: only organizers can create games", ErrForbidden)
	}

	g, err := bingo.NewGame(bingo.Params{
		ID:          uuid.NewString(),
		OrganizerID: organizerID,
		Prize:       in.Prize,
		CardPrice:   in.CardPrice,
		Pattern:     in.Pattern,
		Mode:        in.Mode,
		CreatedAt:   time.Now(),
	})
	if err != nil {
		return nil, err
	}

	funding := repository.Entry{
		UserID:      organizerID,
		Amount:      g.Prize,
		Type:        model.TxTypeGameCreate,
		Description: "game " + g.ID,
	}
	if err := s.games.Create(ctx, g, funding); err != nil {
		return nil, fmt.Errorf("failed to create game: %w", err)
	}

	log.Info().
		Str("game_id", g.ID).
		Int64("user_id", organizerID).
		Int64("amount", g.Prize).
		Str("pattern", string(g.Pattern)).
		Str("mode", string(g.Mode)).
		Msg("Bingo game created")
	s.notifier.Notify(Event{Type: EventGameCreated, Game: g})
	return g, nil
}

// Get returns a game.
func (s *BingoService) Get(ctx context.Context, id string) (*model.Game, error) {
	return s.games.Get(ctx, id)
}

// List returns games, optionally filtered by status.
func (s *BingoService) List(ctx context.Context, statuses ...model.GameStatus) ([]*model.Game, error) {
	return s.games.List(ctx, statuses, 100)
}

// BuyCard sells the buyer a freshly generated card.
func (s *BingoService) BuyCard(ctx context.Context, gameID string, buyerID int64) (card.Card, *model.Game, error) {
	var (
		bought card.Card
		result *model.Game
	)
	err := s.locks.WithLock(gameID, func() error {
		g, err := s.games.Get(ctx, gameID)
		if err != nil {
			return err
		}
		if err := bingo.CheckPurchase(g, buyerID); err != nil {
			return err
		}

		c := card.Generate(s.rand)
		next := g.Clone()
		if err := bingo.AddCard(next, buyerID, c); err != nil {
			return err
		}

		payment := repository.Entry{
			UserID:      buyerID,
			Amount:      g.CardPrice,
			Type:        model.TxTypeCardPurchase,
			Description: "game " + g.ID,
		}
		if err := s.games.AddCard(ctx, g.ID, buyerID, c, next.Pot, payment); err != nil {
			return fmt.Errorf("failed to buy card: %w", err)
		}
		bought, result = c, next
		return nil
	})
	if err != nil {
		return card.Card{}, nil, err
	}

	log.Info().Str("game_id", gameID).Int64("user_id", buyerID).Int64("pot", result.Pot).Msg("Card bought")
	s.notifier.Notify(Event{Type: EventCardBought, Game: result})
	return bought, result, nil
}

// Start moves a waiting game into play. Automatic games get a caller.
func (s *BingoService) Start(ctx context.Context, gameID string, actorID int64) (*model.Game, error) {
	var result *model.Game
	err := s.locks.WithLock(gameID, func() error {
		g, err := s.games.Get(ctx, gameID)
		if err != nil {
			return err
		}
		actor, err := actingAs(ctx, s.users, g.OrganizerID, actorID)
		if err != nil {
			return err
		}
		next := g.Clone()
		if err := bingo.Start(next, actor); err != nil {
			return err
		}
		if err := s.games.Save(ctx, next); err != nil {
			return fmt.Errorf("failed to start game: %w", err)
		}
		result = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("game_id", gameID).Int("cards", result.CardCount()).Msg("Bingo game started")
	s.notifier.Notify(Event{Type: EventGameStarted, Game: result})

	if result.Mode == model.ModeAutomatic {
		s.launch(gameID)
	}
	return result, nil
}

// CallNumber calls n in a manual game on the organizer's behalf.
func (s *BingoService) CallNumber(ctx context.Context, gameID string, actorID int64, n int) (bingo.CallResult, *model.Game, error) {
	var (
		res    bingo.CallResult
		result *model.Game
	)
	err := s.locks.WithLock(gameID, func() error {
		g, err := s.games.Get(ctx, gameID)
		if err != nil {
			return err
		}
		actor, err := actingAs(ctx, s.users, g.OrganizerID, actorID)
		if err != nil {
			return err
		}
		if err := bingo.CheckManualCaller(g, actor); err != nil {
			return err
		}
		next := g.Clone()
		res, err = bingo.Call(next, n)
		if err != nil {
			return err
		}
		if err := s.games.Save(ctx, next); err != nil {
			return fmt.Errorf("failed to save call: %w", err)
		}
		result = next
		return nil
	})
	if err != nil {
		return bingo.CallResult{}, nil, err
	}

	s.afterCall(ctx, result, res)
	return res, result, nil
}

// tick draws the next number of an automatic game. It reports done once
// the game is no longer in progress.
func (s *BingoService) tick(gameID string) bingo.TickFunc {
	return func(ctx context.Context) (bool, error) {
		var (
			res    bingo.CallResult
			result *model.Game
			done   bool
		)
		err := s.locks.WithLock(gameID, func() error {
			g, err := s.games.Get(ctx, gameID)
			if err != nil {
				if errors.Is(err, game.ErrNotFound) {
					done = true
					return nil
				}
				return err
			}
			if g.Status != model.GameInProgress || len(g.Winners) > 0 {
				done = true
				return nil
			}
			next := g.Clone()
			res, err = bingo.DrawNext(next, s.rand)
			if err != nil {
				return err
			}
			if err := s.games.Save(ctx, next); err != nil {
				return fmt.Errorf("failed to save call: %w", err)
			}
			result = next
			return nil
		})
		if err != nil || done {
			return done, err
		}

		s.afterCall(ctx, result, res)
		return res.Finished, nil
	}
}

// afterCall publishes a call and settles the game if it just finished.
func (s *BingoService) afterCall(ctx context.Context, g *model.Game, res bingo.CallResult) {
	if res.Number > 0 {
		log.Debug().Str("game_id", g.ID).Int("number", res.Number).Msg("Number called")
		s.notifier.Notify(Event{Type: EventNumberCalled, Game: g, Call: &res})
	}
	if !res.Finished {
		return
	}

	log.Info().
		Str("game_id", g.ID).
		Ints64("winners", g.Winners).
		Bool("exhausted", res.Exhausted).
		Int("calls", len(g.CalledNumbers)).
		Msg("Bingo game finished")
	s.notifier.Notify(Event{Type: EventGameFinished, Game: g, Call: &res})

	if len(g.Winners) > 0 {
		s.settle(ctx, g)
	}
}

func (s *BingoService) settle(ctx context.Context, g *model.Game) {
	result, err := s.settler.SettleGame(ctx, g)
	if err != nil {
		// The reconciler retries unsettled games.
		log.Error().Err(err).Str("game_id", g.ID).Msg("Failed to settle game")
		return
	}
	g.PayoutComplete = true
	if result.Applied {
		s.notifier.Notify(Event{Type: EventGameSettled, Game: g, Payout: &result})
	}
}

// SettlePending settles finished games whose payout is still missing.
// Returns how many were settled by this call.
func (s *BingoService) SettlePending(ctx context.Context) (int, error) {
	games, err := s.games.ListUnsettled(ctx)
	if err != nil {
		return 0, err
	}
	settled := 0
	for _, g := range games {
		result, err := s.settler.SettleGame(ctx, g)
		if err != nil {
			log.Error().Err(err).Str("game_id", g.ID).Msg("Failed to settle game")
			continue
		}
		if result.Applied {
			settled++
			g.PayoutComplete = true
			s.notifier.Notify(Event{Type: EventGameSettled, Game: g, Payout: &result})
		}
	}
	return settled, nil
}

// Delete removes a game. The organizer (or an admin) may delete a waiting
// game, which refunds the prize and every card, or a finished one, which
// refunds nothing. Games in progress cannot be deleted.
func (s *BingoService) Delete(ctx context.Context, gameID string, actorID int64) error {
	var deleted *model.Game
	err := s.locks.WithLock(gameID, func() error {
		g, err := s.games.Get(ctx, gameID)
		if err != nil {
			return err
		}
		actor, err := actingAs(ctx, s.users, g.OrganizerID, actorID)
		if err != nil {
			return err
		}
		refunds, err := bingo.DeleteRefunds(g, actor)
		if err != nil {
			return err
		}
		entries := make([]repository.Entry, 0, len(refunds))
		for _, r := range refunds {
			entries = append(entries, repository.Entry{
				UserID:      r.UserID,
				Amount:      r.Amount,
				Type:        r.Reason,
				Description: "game " + g.ID,
			})
		}
		if err := s.games.Delete(ctx, g.ID, entries); err != nil {
			return fmt.Errorf("failed to delete game: %w", err)
		}
		deleted = g
		return nil
	})
	if err != nil {
		return err
	}

	s.callers.Cancel(gameID)
	log.Info().Str("game_id", gameID).Int64("user_id", actorID).Msg("Bingo game deleted")
	s.notifier.Notify(Event{Type: EventGameDeleted, Game: deleted})
	return nil
}

// Resume restarts callers for automatic games left in progress, e.g. after
// a restart.
func (s *BingoService) Resume(ctx context.Context) (int, error) {
	games, err := s.games.List(ctx, []model.GameStatus{model.GameInProgress}, 1000)
	if err != nil {
		return 0, fmt.Errorf("failed to list running games: %w", err)
	}
	n := 0
	for _, g := range games {
		if g.Mode == model.ModeAutomatic && len(g.Winners) == 0 {
			if s.launch(g.ID) {
				n++
			}
		}
	}
	log.Info().Int("games", n).Msg("Resumed automatic callers")
	return n, nil
}

// launch starts the caller for a game unless one is already running.
func (s *BingoService) launch(gameID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}

	ctx, cancel := context.WithCancel(s.root)
	if err := s.callers.Register(gameID, cancel); err != nil {
		cancel()
		return false
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		defer s.callers.Done(gameID)
		bingo.NewCaller(gameID, s.interval, s.tick(gameID)).Run(ctx)
	}()
	return true
}

// Running reports whether a caller is active for the game.
func (s *BingoService) Running(gameID string) bool {
	return s.callers.Active(gameID)
}

// Shutdown stops every caller and waits for them to exit.
func (s *BingoService) Shutdown() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.stop()
	s.callers.CancelAll()
	s.wg.Wait()
	log.Info().Msg("Bingo callers stopped")
}
