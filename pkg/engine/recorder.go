package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/rmax-ai/spawnlord/pkg/spawn"
	"github.com/rmax-ai/spawnlord/pkg/store"
)

// EventAppender is the part of the store the recorder writes to.
type EventAppender interface {
	AppendEvent(ctx context.Context, evt *store.Event) error
}

// Recorder turns driver activity into audit events and metrics.
type Recorder struct {
	store    EventAppender
	world    string
	writerID string
	logger   *slog.Logger

	epochFunc func() int64
}

func NewRecorder(st EventAppender, world, writerID string) *Recorder {
	return &Recorder{
		store:    st,
		world:    world,
		writerID: writerID,
		logger:   slog.Default(),
	}
}

func (r *Recorder) SetLogger(l *slog.Logger) {
	if l != nil {
		r.logger = l
	}
}

// SetEpochFunc sets the function to retrieve the current leadership epoch.
func (r *Recorder) SetEpochFunc(f func() int64) {
	r.epochFunc = f
}

func (r *Recorder) getEpoch() int64 {
	if r.epochFunc != nil {
		return r.epochFunc()
	}
	return 0
}

func (r *Recorder) OnBind(ctx context.Context, id string, err error) {
	if err != nil {
		r.append(ctx, id, "", store.EventTypeSchedulerInert, 0, map[string]any{"error": err.Error()})
		return
	}
	r.append(ctx, id, "", store.EventTypeSchedulerBound, 0, map[string]any{})
}

func (r *Recorder) OnOutcome(ctx context.Context, id string, out spawn.Outcome) {
	ElapsedSeconds.WithLabelValues(id).Set(out.Elapsed.Seconds())
	IntervalBoundSeconds.WithLabelValues(id, "min").Set(out.Bounds.Min.Seconds())
	IntervalBoundSeconds.WithLabelValues(id, "max").Set(out.Bounds.Max.Seconds())

	for _, f := range out.Fired {
		MilestonesFiredTotal.WithLabelValues(id, f.Tier).Inc()
		r.append(ctx, id, f.Tier, store.EventTypeMilestoneFired, out.Now, map[string]any{
			"index":             f.Index,
			"threshold_seconds": f.Threshold.Seconds(),
			"elapsed_seconds":   out.Elapsed.Seconds(),
			"decayed":           f.Decayed,
			"min_seconds":       f.Bounds.Min.Seconds(),
			"max_seconds":       f.Bounds.Max.Seconds(),
		})
	}

	if !out.Spawned {
		return
	}
	b := out.Batch
	SpawnEventsTotal.WithLabelValues(id).Inc()
	SpawnEntitiesTotal.WithLabelValues(id).Add(float64(b.Activated))
	SpawnSlotsDroppedTotal.WithLabelValues(id).Add(float64(b.Dropped))

	typ := store.EventTypeSpawnBatch
	if b.Activated == 0 && b.Requested > 0 {
		typ = store.EventTypePoolExhausted
	}
	r.append(ctx, id, "", typ, out.Now, map[string]any{
		"requested":             b.Requested,
		"activated":             b.Activated,
		"revived":               b.Revived,
		"dropped":               b.Dropped,
		"next_interval_seconds": out.NextInterval.Seconds(),
	})
}

func (r *Recorder) OnSpawningChanged(ctx context.Context, id string, enabled bool) {
	r.append(ctx, id, "", store.EventTypeSpawningToggled, 0, map[string]any{"enabled": enabled})
}

// OnLeadershipChanged records a promotion or demotion of this node. The
// event is not tied to a scheduler and carries the "*" scheduler id.
func (r *Recorder) OnLeadershipChanged(ctx context.Context, leader bool) {
	r.append(ctx, "*", "", store.EventTypeLeadershipChange, 0, map[string]any{"leader": leader, "holder_id": r.writerID})
}

func (r *Recorder) append(ctx context.Context, id, tier string, typ store.EventType, simTime time.Duration, payload map[string]any) {
	if r.store == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		r.logger.Error("event_marshal_failed", "event_type", typ, "error", err)
		return
	}
	evt := &store.Event{
		EventType: typ,
		Epoch:     r.getEpoch(),
		SimTime:   simTime,
		Source: store.EventSource{
			OriginKind: "driver",
			OriginID:   r.world,
			WriterID:   r.writerID,
		},
		Dimensions: store.EventDimensions{
			WorldID:     r.world,
			SchedulerID: id,
			Tier:        tier,
		},
		Payload: data,
	}
	if err := r.store.AppendEvent(ctx, evt); err != nil {
		r.logger.Error("event_append_failed", "event_type", typ, "scheduler_id", id, "error", err)
	}
}

var _ Observer = (*Recorder)(nil)
