package bingo

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultCallInterval is the cadence of automatic calls.
const DefaultCallInterval = 2500 * time.Millisecond

// TickFunc performs one automatic call. It must re-check the game's state
// before calling, since a tick can fire after the game has already
// finished. It returns done when no further calls are needed.
type TickFunc func(ctx context.Context) (done bool, err error)

// Caller drives an automatic game on a fixed cadence until the tick
// reports done or the context is cancelled.
type Caller struct {
	GameID   string
	Interval time.Duration
	Tick     TickFunc
}

// NewCaller creates a Caller. A non-positive interval falls back to
// DefaultCallInterval.
func NewCaller(gameID string, interval time.Duration, tick TickFunc) *Caller {
	if interval <= 0 {
		interval = DefaultCallInterval
	}
	return &Caller{GameID: gameID, Interval: interval, Tick: tick}
}

// Run blocks until the game needs no more calls or ctx is cancelled.
// Tick errors are logged and the next tick retries.
func (c *Caller) Run(ctx context.Context) {
	ticker := time.NewTicker(c.Interval)
	defer ticker.Stop()

	log.Info().Str("game_id", c.GameID).Dur("interval", c.Interval).Msg("Automatic caller started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("game_id", c.GameID).Msg("Automatic caller cancelled")
			return
		case <-ticker.C:
		}

		// Cancellation may race with the tick; skip the call if we lost.
		if ctx.Err() != nil {
			log.Info().Str("game_id", c.GameID).Msg("Automatic caller cancelled")
			return
		}

		done, err := c.Tick(ctx)
		if err != nil {
			log.Warn().Err(err).Str("game_id", c.GameID).Msg("Automatic call failed")
			continue
		}
		if done {
			log.Info().Str("game_id", c.GameID).Msg("Automatic caller finished")
			return
		}
	}
}
