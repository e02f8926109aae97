// Package sweeper removes finalized meetings once they are over.
package sweeper

import (
	"context"
	"log/slog"
	"time"
)

type Deleter interface {
	DeletePastFinalized(ctx context.Context, cutoff time.Time) (int64, error)
}

type Worker struct {
	store     Deleter
	logger    *slog.Logger
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
}

type WorkerConfig struct {
	Interval time.Duration
	// Retention keeps ended meetings around for this long before deleting.
	Retention time.Duration
}

func NewWorker(store Deleter, logger *slog.Logger, cfg WorkerConfig) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Retention < 0 {
		cfg.Retention = 0
	}
	return &Worker{
		store:     store,
		logger:    logger,
		interval:  cfg.Interval,
		retention: cfg.Retention,
		now:       time.Now,
	}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.sweep(ctx); err != nil {
				w.logger.Error("finalized sweep failed", "err", err)
			}
		}
	}
}

func (w *Worker) sweep(ctx context.Context) (int64, error) {
	cutoff := w.now().UTC().Add(-w.retention)
	n, err := w.store.DeletePastFinalized(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		w.logger.Info("finalized meetings swept", "deleted", n, "cutoff", cutoff)
	}
	return n, nil
}
