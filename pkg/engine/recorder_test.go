package engine

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/rmax-ai/spawnlord/pkg/spawn"
	"github.com/rmax-ai/spawnlord/pkg/store"
)

type memAppender struct {
	mu     sync.Mutex
	events []*store.Event
	err    error
}

func (m *memAppender) AppendEvent(_ context.Context, evt *store.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, evt)
	return nil
}

func (m *memAppender) types() []store.EventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.EventType, len(m.events))
	for i, e := range m.events {
		out[i] = e.EventType
	}
	return out
}

func TestRecorder_Outcome(t *testing.T) {
	app := &memAppender{}
	rec := NewRecorder(app, "arena", "spawnlord-d")
	rec.SetEpochFunc(func() int64 { return 4 })
	ctx := context.Background()

	before := testutil.ToFloat64(MilestonesFiredTotal.WithLabelValues("rec-a", "Enemy_Soldier"))

	rec.OnOutcome(ctx, "rec-a", spawn.Outcome{
		Now:     31 * time.Second,
		Elapsed: 30500 * time.Millisecond,
		Fired: []spawn.FiredMilestone{{
			Index:     1,
			Tier:      "Enemy_Soldier",
			Threshold: 30 * time.Second,
			Decayed:   true,
			Bounds:    spawn.Bounds{Min: 500 * time.Millisecond, Max: time.Second},
		}},
		Spawned:      true,
		Batch:        spawn.BatchResult{Requested: 3, Activated: 2, Revived: 1, Dropped: 1},
		NextInterval: 750 * time.Millisecond,
		Bounds:       spawn.Bounds{Min: 500 * time.Millisecond, Max: time.Second},
	})

	got := app.types()
	if len(got) != 2 || got[0] != store.EventTypeMilestoneFired || got[1] != store.EventTypeSpawnBatch {
		t.Fatalf("unexpected events: %v", got)
	}

	fired := app.events[0]
	if fired.Dimensions.Tier != "Enemy_Soldier" || fired.Epoch != 4 || fired.SimTime != 31*time.Second {
		t.Errorf("unexpected milestone event: %+v", fired)
	}
	var payload map[string]any
	if err := json.Unmarshal(app.events[1].Payload, &payload); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if payload["activated"] != float64(2) || payload["dropped"] != float64(1) {
		t.Errorf("unexpected batch payload: %v", payload)
	}

	if d := testutil.ToFloat64(MilestonesFiredTotal.WithLabelValues("rec-a", "Enemy_Soldier")) - before; d != 1 {
		t.Errorf("expected milestone counter +1, got %v", d)
	}
	if v := testutil.ToFloat64(IntervalBoundSeconds.WithLabelValues("rec-a", "min")); v != 0.5 {
		t.Errorf("expected min bound gauge 0.5, got %v", v)
	}
	if v := testutil.ToFloat64(ElapsedSeconds.WithLabelValues("rec-a")); v != 30.5 {
		t.Errorf("expected elapsed gauge 30.5, got %v", v)
	}
	if v := testutil.ToFloat64(SpawnEntitiesTotal.WithLabelValues("rec-a")); v != 2 {
		t.Errorf("expected 2 entities spawned, got %v", v)
	}
}

func TestRecorder_BoundsGaugeBeforeAnyMilestone(t *testing.T) {
	rec := NewRecorder(&memAppender{}, "arena", "spawnlord-d")

	rec.OnOutcome(context.Background(), "rec-c", spawn.Outcome{
		Now:    100 * time.Millisecond,
		Bounds: spawn.Bounds{Min: time.Second, Max: 2 * time.Second},
	})

	if v := testutil.ToFloat64(IntervalBoundSeconds.WithLabelValues("rec-c", "min")); v != 1 {
		t.Errorf("expected min bound gauge 1, got %v", v)
	}
	if v := testutil.ToFloat64(IntervalBoundSeconds.WithLabelValues("rec-c", "max")); v != 2 {
		t.Errorf("expected max bound gauge 2, got %v", v)
	}
}

func TestRecorder_PoolExhausted(t *testing.T) {
	app := &memAppender{}
	rec := NewRecorder(app, "arena", "spawnlord-d")

	rec.OnOutcome(context.Background(), "rec-b", spawn.Outcome{
		Spawned: true,
		Batch:   spawn.BatchResult{Requested: 2, Dropped: 2},
	})
	rec.OnOutcome(context.Background(), "rec-b", spawn.Outcome{Elapsed: time.Second})

	got := app.types()
	if len(got) != 1 || got[0] != store.EventTypePoolExhausted {
		t.Errorf("expected a single pool_exhausted event, got %v", got)
	}
	if v := testutil.ToFloat64(SpawnSlotsDroppedTotal.WithLabelValues("rec-b")); v != 2 {
		t.Errorf("expected 2 dropped slots, got %v", v)
	}
}

func TestRecorder_BindAndToggle(t *testing.T) {
	app := &memAppender{}
	rec := NewRecorder(app, "arena", "spawnlord-d")
	ctx := context.Background()

	rec.OnBind(ctx, "a", nil)
	rec.OnBind(ctx, "b", spawn.ErrNoPoolBound)
	rec.OnSpawningChanged(ctx, "a", false)
	rec.SetEpochFunc(func() int64 { return 3 })
	rec.OnLeadershipChanged(ctx, true)

	want := []store.EventType{store.EventTypeSchedulerBound, store.EventTypeSchedulerInert, store.EventTypeSpawningToggled, store.EventTypeLeadershipChange}
	got := app.types()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], got[i])
		}
	}

	lead := app.events[3]
	if lead.Epoch != 3 || lead.Dimensions.SchedulerID != "*" {
		t.Errorf("unexpected leadership event: %+v", lead)
	}

	// Append failures are logged, never surfaced to the driver.
	app.err = errors.New("disk full")
	rec.OnSpawningChanged(ctx, "a", true)
}

func TestRecorder_NilStore(t *testing.T) {
	rec := NewRecorder(nil, "arena", "spawnlord-d")
	rec.OnBind(context.Background(), "a", nil)
}
