package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/ksred/wager-api/internal/betting"
	"github.com/rs/zerolog/log"
)

// Processor drives the recurring settlement tick
type Processor struct {
	service      *Service
	tickInterval time.Duration // Time between settlement scans
	betTimeout   time.Duration // Per-bet resolution budget
}

func NewProcessor(service *Service) *Processor {
	return &Processor{
		service:      service,
		tickInterval: 30 * time.Second,
		betTimeout:   15 * time.Second,
	}
}

// Start begins the settlement processing loop
func (p *Processor) Start(ctx context.Context) {
	logger := log.With().Str("component", "settlement_processor").Logger()
	logger.Info().Dur("interval", p.tickInterval).Msg("starting settlement processor")

	ticker := time.NewTicker(p.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down settlement processor")
			return
		case <-ticker.C:
			if err := p.Tick(ctx); err != nil {
				logger.Error().Err(err).Msg("settlement tick failed")
			}
		}
	}
}

// Tick resolves every due bet once
// Each bet is an independent unit of work: a failure on one bet is logged
// and the bet stays pending for the next tick, without blocking the rest.
func (p *Processor) Tick(ctx context.Context) error {
	logger := log.With().Str("component", "settlement_processor").Logger()

	due, err := p.service.GetDB().GetDueBets(p.service.now().UTC())
	if err != nil {
		return err
	}

	if len(due) == 0 {
		return nil
	}

	logger.Info().Int("due_count", len(due)).Msg("processing due bets")

	for i := range due {
		bet := &due[i]

		betCtx, cancel := context.WithTimeout(ctx, p.betTimeout)
		_, err := p.service.ResolveBet(betCtx, bet.BetID)
		cancel()

		if err != nil {
			// A concurrent tick or cancel already claimed the bet
			if errors.Is(err, betting.ErrBetNotPending) || errors.Is(err, ErrBetNotDue) {
				continue
			}
			logger.Error().
				Err(err).
				Str("bet_id", bet.BetID).
				Msg("failed to resolve bet, will retry next tick")
			continue
		}
	}

	return nil
}
