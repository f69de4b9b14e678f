package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Nobiscumdeus/robustquiz-backend/internal/service"
)

// SweepWorker periodically expires overdue sessions and auto-submits stale
// ones. It is the safety net for clients that vanish without a final sync:
// every IN_PROGRESS session terminates within one sweep interval of its
// deadline or heartbeat grace running out.
type SweepWorker struct {
	timer     *service.TimerAuthority
	heartbeat *service.HeartbeatMonitor
	interval  time.Duration
	log       zerolog.Logger
}

// NewSweepWorker creates a new SweepWorker.
func NewSweepWorker(timer *service.TimerAuthority, heartbeat *service.HeartbeatMonitor, interval time.Duration, log zerolog.Logger) *SweepWorker {
	return &SweepWorker{
		timer:     timer,
		heartbeat: heartbeat,
		interval:  interval,
		log:       log.With().Str("component", "sweep_worker").Logger(),
	}
}

// Start begins the periodic sweep loop. Call in a goroutine.
func (w *SweepWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("Worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *SweepWorker) sweep(ctx context.Context) {
	if _, err := w.timer.SweepOverdue(ctx); err != nil {
		w.log.Error().Err(err).Msg("Overdue sweep failed")
	}
	if _, err := w.heartbeat.StaleSweep(ctx); err != nil {
		w.log.Error().Err(err).Msg("Stale heartbeat sweep failed")
	}
}
