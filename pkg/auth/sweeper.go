package auth

import (
	"context"
	"log/slog"
	"time"
)

// DefaultSweepInterval is how often expired token records are purged.
const DefaultSweepInterval = time.Hour

// Sweeper periodically deletes expired token records. Blacklisted records are
// kept until they expire, since a revoked token must stay revoked while its
// signature would still verify.
type Sweeper struct {
	store    TokenStore
	interval time.Duration
	clock    Clock
	logger   *slog.Logger
}

// NewSweeper creates a new sweeper.
func NewSweeper(store TokenStore, interval time.Duration, clock Clock, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{store: store, interval: interval, clock: clock, logger: logger}
}

// Sweep deletes every record that expired before now.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	return s.store.DeleteExpired(ctx, s.clock.Now())
}

// Run sweeps on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				s.logger.ErrorContext(ctx, "token sweep failed", "error", err)
				continue
			}
			if n > 0 {
				s.logger.InfoContext(ctx, "swept expired tokens", "deleted", n)
			}
		}
	}
}
