package service

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"textshare/internal/repository"
)

const defaultSweepInterval = time.Minute

// Sweeper periodically compacts the store by deleting expired notes.
// Reads never depend on it having run.
type Sweeper struct {
	repo     repository.NoteRepository
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
	log      zerolog.Logger
	deleted  prometheus.Counter
	failures prometheus.Counter
}

// SweeperOptions tune a Sweeper. Zero values select defaults; a nil Registerer disables metrics.
type SweeperOptions struct {
	Interval   time.Duration
	Timeout    time.Duration
	Now        func() time.Time
	Logger     zerolog.Logger
	Registerer prometheus.Registerer
}

// NewSweeper creates a Sweeper and registers its counters.
func NewSweeper(repo repository.NoteRepository, opts SweeperOptions) (*Sweeper, error) {
	s := &Sweeper{
		repo:     repo,
		interval: opts.Interval,
		timeout:  opts.Timeout,
		now:      opts.Now,
		log:      opts.Logger.With().Str("component", "sweeper").Logger(),
		deleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notes_expired_deleted_total",
			Help: "Total number of expired notes removed by the periodic sweep.",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notes_sweep_failures_total",
			Help: "Total number of sweep runs that failed.",
		}),
	}
	if s.interval <= 0 {
		s.interval = defaultSweepInterval
	}
	if s.timeout <= 0 {
		s.timeout = defaultStoreTimeout
	}
	if s.now == nil {
		s.now = time.Now
	}
	if opts.Registerer != nil {
		for _, c := range []prometheus.Collector{s.deleted, s.failures} {
			if err := opts.Registerer.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return s, nil
}

// Run sweeps once per interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", s.interval).Msg("sweeper started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("sweeper stopped")
			return
		case <-ticker.C:
			_, _ = s.SweepOnce(ctx)
		}
	}
}

// SweepOnce deletes every note expired at the current time.
func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	n, err := s.repo.DeleteExpired(ctx, s.now().UTC())
	if err != nil {
		s.failures.Inc()
		s.log.Error().Err(err).Int64("deleted", n).Msg("sweep failed")
		return n, err
	}
	s.deleted.Add(float64(n))
	if n > 0 {
		s.log.Info().Int64("deleted", n).Dur("duration", time.Since(start)).Msg("expired notes swept")
	}
	return n, nil
}
