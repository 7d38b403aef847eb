package engine

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rmax-ai/spawnlord/pkg/blob"
	"github.com/rmax-ai/spawnlord/pkg/store"
)

// EventArchiveSource is the part of the store the archive worker drains.
type EventArchiveSource interface {
	QueryEvents(ctx context.Context, filter store.EventFilter) ([]*store.Event, error)
	DeleteEvents(ctx context.Context, ids []string) (int64, error)
}

type ArchiveConfig struct {
	Retention time.Duration
	BatchSize int
	Interval  time.Duration
}

// ArchiveWorker moves audit events older than the retention window into
// gzipped JSON Lines blobs, then deletes them from the store. It replaces the
// prune worker when an archive directory is configured.
type ArchiveWorker struct {
	store     EventArchiveSource
	blobStore blob.BlobStore
	world     string
	config    ArchiveConfig
	logger    *slog.Logger
	now       func() time.Time
}

func NewArchiveWorker(st EventArchiveSource, bs blob.BlobStore, world string, cfg ArchiveConfig) *ArchiveWorker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	return &ArchiveWorker{
		store:     st,
		blobStore: bs,
		world:     world,
		config:    cfg,
		logger:    slog.Default(),
		now:       time.Now,
	}
}

func (w *ArchiveWorker) SetLogger(l *slog.Logger) {
	if l != nil {
		w.logger = l
	}
}

// Run archives once immediately and then every Interval until ctx is done.
func (w *ArchiveWorker) Run(ctx context.Context) {
	if w.config.Retention <= 0 {
		w.logger.Info("archive_disabled")
		return
	}
	w.logger.Info("archive_worker_started", "retention", w.config.Retention.String(), "interval", w.config.Interval.String())
	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	w.archiveAll(ctx)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("archive_worker_stopping")
			return
		case <-ticker.C:
			w.archiveAll(ctx)
		}
	}
}

func (w *ArchiveWorker) archiveAll(ctx context.Context) {
	for ctx.Err() == nil {
		n, err := w.ArchiveBatch(ctx)
		if err != nil {
			w.logger.Error("archive_failed", "error", err)
			return
		}
		if n < w.config.BatchSize {
			return
		}
	}
}

// ArchiveBatch archives up to BatchSize of the oldest expired events and
// returns how many were moved. Events are deleted only after the blob is
// written.
func (w *ArchiveWorker) ArchiveBatch(ctx context.Context) (int, error) {
	cutoff := w.now().UTC().Add(-w.config.Retention)
	events, err := w.store.QueryEvents(ctx, store.EventFilter{
		To:        cutoff,
		WorldID:   w.world,
		Limit:     w.config.BatchSize,
		Ascending: true,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to read expired events: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	enc := json.NewEncoder(gz)
	ids := make([]string, len(events))
	for i, evt := range events {
		if err := enc.Encode(evt); err != nil {
			gz.Close()
			return 0, fmt.Errorf("failed to encode event %s: %w", evt.EventID, err)
		}
		ids[i] = string(evt.EventID)
	}
	if err := gz.Close(); err != nil {
		return 0, fmt.Errorf("failed to close gzip writer: %w", err)
	}

	key := archiveKey(w.world, events[0].TsEvent, events[len(events)-1].TsEvent)
	if err := w.blobStore.Put(ctx, key, &buf); err != nil {
		return 0, fmt.Errorf("failed to write archive %s: %w", key, err)
	}
	if _, err := w.store.DeleteEvents(ctx, ids); err != nil {
		return 0, fmt.Errorf("failed to delete archived events: %w", err)
	}

	EventsArchivedTotal.Add(float64(len(events)))
	w.logger.Info("events_archived", "key", key, "count", len(events))
	return len(events), nil
}

// archiveKey lays blobs out as events/<world>/YYYY/MM/DD/<first>_<last>_<uuid>.jsonl.gz.
func archiveKey(world string, first, last time.Time) string {
	first = first.UTC()
	y, m, d := first.Date()
	return fmt.Sprintf("events/%s/%04d/%02d/%02d/%d_%d_%s.jsonl.gz",
		world, y, m, d, first.Unix(), last.UTC().Unix(), uuid.NewString())
}
