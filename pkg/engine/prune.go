package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// EventPruner is the part of the store the prune worker needs.
type EventPruner interface {
	PruneEvents(ctx context.Context, retention time.Duration) (int64, error)
}

// RetentionConfig controls audit log pruning. A zero Retention disables it.
type RetentionConfig struct {
	Retention time.Duration
	Interval  time.Duration
}

type PruneWorker struct {
	store  EventPruner
	logger *slog.Logger

	mu     sync.RWMutex
	config RetentionConfig
}

func NewPruneWorker(st EventPruner, cfg RetentionConfig) *PruneWorker {
	return &PruneWorker{
		store:  st,
		config: cfg,
		logger: slog.Default(),
	}
}

func (w *PruneWorker) SetLogger(l *slog.Logger) {
	if l != nil {
		w.logger = l
	}
}

func (w *PruneWorker) UpdateConfig(cfg RetentionConfig) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.config = cfg
}

// Run prunes once immediately and then every Interval (default 1h) until ctx
// is cancelled. It returns at once when pruning is disabled.
func (w *PruneWorker) Run(ctx context.Context) {
	w.mu.RLock()
	cfg := w.config
	w.mu.RUnlock()

	if cfg.Retention <= 0 {
		w.logger.Info("prune_disabled")
		return
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Hour
	}

	w.logger.Info("prune_worker_started", "retention", cfg.Retention.String(), "interval", interval.String())
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.Prune(ctx)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("prune_worker_stopping")
			return
		case <-ticker.C:
			w.Prune(ctx)
		}
	}
}

// Prune deletes events older than the configured retention and returns how
// many were removed.
func (w *PruneWorker) Prune(ctx context.Context) int64 {
	w.mu.RLock()
	retention := w.config.Retention
	w.mu.RUnlock()

	if retention <= 0 {
		return 0
	}
	deleted, err := w.store.PruneEvents(ctx, retention)
	if err != nil {
		w.logger.Error("prune_failed", "error", err)
		return 0
	}
	if deleted > 0 {
		w.logger.Info("events_pruned", "deleted", deleted, "retention", retention.String())
	}
	return deleted
}
