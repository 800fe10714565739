package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"loyalty-redemption-core/internal/usecase"
)

// ExpiryWorker periodically sweeps overdue issued tokens into the
// expired state via the verifier use case.
type ExpiryWorker struct {
	interval time.Duration
	batch    int
	verifier *usecase.VerifierUseCase
	log      *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, batch int, verifier *usecase.VerifierUseCase, logger *zerolog.Logger) *ExpiryWorker {
	l := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{
		interval: interval,
		batch:    batch,
		verifier: verifier,
		log:      &l,
	}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Int("batch", w.batch).Msg("starting expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.verifier.ExpireOverdue(ctx, w.batch)
			if err != nil {
				w.log.Error().Err(err).Msg("expiry sweep error")
			}
			if n > 0 {
				w.log.Info().Int("count", n).Msg("overdue tokens expired")
			}
		}
	}
}
