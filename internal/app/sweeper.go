package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/franciscolir/pre-reserva/internal/clock"
	"github.com/franciscolir/pre-reserva/internal/telemetry"
)

// Sweeper reverts expired soft-locks. It runs from three triggers: the
// background ticker, a new observer connecting, and every state-changing
// request. Triggers may race; each reports only the rows its own update
// changed, so no slot is freed or announced twice.
type Sweeper struct {
	repo     SlotRepository
	clock    clock.Clock
	logger   zerolog.Logger
	interval time.Duration
}

const defaultSweepInterval = 5 * time.Second

func NewSweeper(repo SlotRepository, clk clock.Clock, logger zerolog.Logger, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		repo:     repo,
		clock:    clk,
		logger:   logger.With().Str("component", "sweeper").Logger(),
		interval: defaultSweepInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type SweeperOption func(*Sweeper)

// WithSweepInterval overrides the background sweep period.
func WithSweepInterval(d time.Duration) SweeperOption {
	return func(s *Sweeper) {
		if d > 0 {
			s.interval = d
		}
	}
}

// Sweep frees every soft-lock past its expiry and returns the ids it freed.
func (s *Sweeper) Sweep(ctx context.Context) ([]string, error) {
	telemetry.Sweeps.Inc()

	ids, err := s.repo.FreeExpired(ctx, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		telemetry.ExpiredSlots.Add(float64(len(ids)))
		s.logger.Debug().Strs("slots", ids).Msg("expired soft-locks freed")
	}
	return ids, nil
}

// Run sweeps on a fixed interval until the context is cancelled, invoking
// expired with the freed ids. A failed sweep is logged and retried on the
// next tick.
func (s *Sweeper) Run(ctx context.Context, expired func(ids []string)) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ids, err := s.Sweep(ctx)
			if err != nil {
				s.logger.Error().Err(err).Msg("sweep failed")
				continue
			}
			if len(ids) > 0 && expired != nil {
				expired(ids)
			}
		}
	}
}
