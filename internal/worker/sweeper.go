package worker

import (
	"context"
	"time"

	"fieldhire/internal/dispatch"

	"github.com/rs/zerolog"
)

// Sweeper periodically expires bookings whose window elapsed without an
// acceptance. Reads already expire on sight, so the sweeper only has to keep
// the table from accumulating stale rows nobody looks at.
type Sweeper struct {
	lifecycle *dispatch.Lifecycle
	interval  time.Duration
	logger    *zerolog.Logger
}

func NewSweeper(lifecycle *dispatch.Lifecycle, interval time.Duration, logger *zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{lifecycle: lifecycle, interval: interval, logger: logger}
}

// Start runs the sweep loop; stops when ctx is done.
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info().Dur("interval", s.interval).Msg("sweeper started")
	defer s.logger.Info().Msg("sweeper stopped")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.lifecycle.Sweep(ctx, time.Now()); err != nil {
				s.logger.Error().Err(err).Msg("sweep failed")
			}
		}
	}
}
