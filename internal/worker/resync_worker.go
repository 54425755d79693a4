// Package worker runs periodic background jobs.
package worker

import (
	"context"
	"time"

	"ledger/internal/log"
)

// Syncer forces a full pull of the active household.
type Syncer interface {
	Sync(ctx context.Context) error
}

// ResyncWorker periodically pulls the active household. Change notifications
// are lost while a feed is disconnected; this bounds how long a missed remote
// write can stay invisible.
type ResyncWorker struct {
	syncer   Syncer
	interval time.Duration
	logger   *log.Logger
}

func NewResyncWorker(syncer Syncer, interval time.Duration, logger *log.Logger) *ResyncWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &ResyncWorker{
		syncer:   syncer,
		interval: interval,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// Run resyncs every interval until ctx is cancelled. A non-positive interval
// disables the worker.
func (w *ResyncWorker) Run(ctx context.Context) {
	if w.interval <= 0 {
		return
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.DebugContext(ctx, "Periodic resync started", "interval", w.interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
				w.logger.WarnContext(ctx, "Periodic resync failed", log.FieldError, err)
			}
		}
	}
}

// RunOnce performs a single resync.
func (w *ResyncWorker) RunOnce(ctx context.Context) error {
	start := time.Now()
	if err := w.syncer.Sync(ctx); err != nil {
		return err
	}
	w.logger.DebugContext(ctx, "Periodic resync completed", log.FieldDuration, time.Since(start).Milliseconds())
	return nil
}
