// Package scheduler runs periodic maintenance jobs on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// DefaultSpec reconciles settlements once a minute.
const DefaultSpec = "@every 1m"

// Reconciler settles finished entities whose payout is missing and
// returns how many it settled. BingoService and RaffleService implement it.
type Reconciler interface {
	SettlePending(ctx context.Context) (int, error)
}

// Job is a named reconciler.
type Job struct {
	Name       string
	Reconciler Reconciler
}

// Scheduler runs every job on one cron spec. Overlapping runs are skipped.
type Scheduler struct {
	cron    *cron.Cron
	jobs    []Job
	timeout time.Duration
}

// New parses spec and registers the jobs. A non-positive timeout bounds
// each run at one minute.
func New(spec string, timeout time.Duration, jobs ...Job) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultSpec
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	for _, j := range jobs {
		if j.Name == "" || j.Reconciler == nil {
			return nil, errors.New("scheduler job needs a name and a reconciler")
		}
	}

	logger := cronLogger{}
	s := &Scheduler{
		cron: cron.New(cron.WithLogger(logger), cron.WithChain(
			cron.Recover(logger),
			cron.SkipIfStillRunning(logger),
		)),
		jobs:    jobs,
		timeout: timeout,
	}
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	s.RunOnce(ctx)
}

// RunOnce runs every job now and returns the settled count per job. A
// failing job is logged and does not stop the others.
func (s *Scheduler) RunOnce(ctx context.Context) map[string]int {
	settled := make(map[string]int, len(s.jobs))
	for _, j := range s.jobs {
		n, err := j.Reconciler.SettlePending(ctx)
		if err != nil {
			log.Error().Err(err).Str("job", j.Name).Msg("Reconcile failed")
			continue
		}
		settled[j.Name] = n
		if n > 0 {
			log.Info().Str("job", j.Name).Int("settled", n).Msg("Settled pending payouts")
		}
	}
	return settled
}

// Start runs the schedule in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Info().Int("jobs", len(s.jobs)).Msg("Scheduler started")
}

// Stop stops the schedule and waits for a running job, up to ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
		log.Info().Msg("Scheduler stopped")
	case <-ctx.Done():
		log.Warn().Msg("Scheduler stop timed out")
	}
}

// cronLogger routes cron's logging to zerolog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
