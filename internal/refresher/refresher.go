// MTGrec - Commander Deck Recommendation Engine
// Copyright 2026 Trevan C. (TrevanC)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/TrevanC/MTGrec

// Package refresher periodically retrains the engine snapshot from the
// dataset document, supervised by suture.
//
// A failed refresh is logged and retried on the next tick; the previous
// snapshot keeps serving requests, so a transient bad document never takes
// the engine down.
package refresher

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/TrevanC/MTGrec/internal/logging"
)

// Trainer is the engine surface the refresher drives.
type Trainer interface {
	LoadAndTrain(ctx context.Context, refresh bool) error
}

// Service retrains the snapshot on a fixed interval. Implements
// suture.Service.
type Service struct {
	trainer  Trainer
	interval time.Duration
	name     string
}

// NewService creates a refresh service.
func NewService(trainer Trainer, interval time.Duration) *Service {
	return &Service{
		trainer:  trainer,
		interval: interval,
		name:     "dataset-refresher",
	}
}

// Serve implements suture.Service. It blocks until the context is canceled,
// retraining on every tick. Refresh failures are logged, not fatal: the
// current snapshot stays live until a later attempt succeeds.
func (s *Service) Serve(ctx context.Context) error {
	log := logging.With("refresher")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", s.interval).Msg("refresh loop started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			start := time.Now()
			if err := s.trainer.LoadAndTrain(ctx, false); err != nil {
				log.Warn().Err(err).Msg("snapshot refresh failed, keeping previous snapshot")
				continue
			}
			log.Info().Dur("elapsed", time.Since(start)).Msg("snapshot refreshed")
		}
	}
}

// String implements fmt.Stringer for suture's log messages.
func (s *Service) String() string {
	return s.name
}

// NewSupervisor creates the root supervisor with suture events routed into
// the structured logger.
func NewSupervisor(logger *slog.Logger) *suture.Supervisor {
	handler := &sutureslog.Handler{Logger: logger}
	return suture.New("mtgrec", suture.Spec{
		EventHook: handler.MustHook(),
	})
}
