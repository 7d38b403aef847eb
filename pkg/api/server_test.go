package api

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rmax-ai/spawnlord/pkg/engine"
	"github.com/rmax-ai/spawnlord/pkg/store"
)

type mockStore struct {
	mu      sync.Mutex
	events  []*store.Event
	err     error
	filters []store.EventFilter
}

func (m *mockStore) QueryEvents(ctx context.Context, filter store.EventFilter) ([]*store.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filters = append(m.filters, filter)
	return m.events, m.err
}

type mockElection struct {
	leader     bool
	leaderAddr string
	ok         bool
	err        error
}

func (m *mockElection) IsLeader() bool { return m.leader }
func (m *mockElection) GetLeader(ctx context.Context) (string, bool, error) {
	return m.leaderAddr, m.ok, m.err
}
func (m *mockElection) Epoch() int64 { return 2 }

func newTestDriver(t *testing.T) *engine.Driver {
	t.Helper()
	disabled := false
	cfg := &engine.WorldConfig{
		World: "arena",
		Schedulers: []engine.SchedulerConfig{
			{
				ID:           "north",
				MinFrequency: 1,
				MaxFrequency: 1,
				BatchSize:    1,
				Seed:         1,
				Milestones:   []engine.MilestoneConfig{{Threshold: 0, Tier: "grunt"}},
				Tiers:        []engine.TierConfig{{Name: "grunt", Size: 4}},
			},
			{
				ID:              "south",
				MinFrequency:    1,
				MaxFrequency:    2,
				BatchSize:       1,
				Seed:            2,
				SpawningEnabled: &disabled,
				Tiers:           []engine.TierConfig{{Name: "grunt", Size: 1, Enabled: true}},
			},
		},
	}
	insts, err := cfg.Build(nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	d := engine.NewDriver(cfg.World, time.Second)
	for _, inst := range insts {
		if err := d.Register(context.Background(), inst); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	}
	return d
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestServer_Health(t *testing.T) {
	s := NewServer(newTestDriver(t), nil, nil, "")
	w := do(t, s.Handler(), http.MethodGet, "/v1/health")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" || resp.World != "arena" || resp.Schedulers != 2 || !resp.Leader {
		t.Errorf("unexpected health: %+v", resp)
	}
	if w.Header().Get("X-Trace-ID") == "" {
		t.Error("expected a trace id header")
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected secure headers")
	}
}

func TestServer_Schedulers(t *testing.T) {
	d := newTestDriver(t)
	d.Step(context.Background(), 1500*time.Millisecond)
	s := NewServer(d, nil, nil, "")

	w := do(t, s.Handler(), http.MethodGet, "/v1/schedulers")
	var snaps []engine.Snapshot
	if err := json.NewDecoder(w.Body).Decode(&snaps); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(snaps) != 2 || snaps[0].ID != "north" {
		t.Fatalf("unexpected snapshots: %+v", snaps)
	}
	if snaps[0].Counters.SpawnEvents != 1 {
		t.Errorf("expected one spawn event, got %+v", snaps[0].Counters)
	}

	w = do(t, s.Handler(), http.MethodGet, "/v1/schedulers/south")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w = do(t, s.Handler(), http.MethodGet, "/v1/schedulers/nowhere")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestServer_SpawningGate(t *testing.T) {
	d := newTestDriver(t)
	s := NewServer(d, nil, nil, "")

	tests := []struct {
		path string
		want bool
		code int
	}{
		{"/v1/schedulers/south/enable", true, http.StatusOK},
		{"/v1/schedulers/south/toggle", false, http.StatusOK},
		{"/v1/schedulers/south/toggle", true, http.StatusOK},
		{"/v1/schedulers/south/disable", false, http.StatusOK},
		{"/v1/schedulers/nowhere/enable", false, http.StatusNotFound},
	}
	for _, tt := range tests {
		w := do(t, s.Handler(), http.MethodPost, tt.path)
		if w.Code != tt.code {
			t.Fatalf("%s: expected %d, got %d", tt.path, tt.code, w.Code)
		}
		if tt.code != http.StatusOK {
			continue
		}
		var resp SpawningResponse
		json.NewDecoder(w.Body).Decode(&resp)
		if resp.SpawningEnabled != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.path, tt.want, resp.SpawningEnabled)
		}
	}

	if w := do(t, s.Handler(), http.MethodGet, "/v1/schedulers/south/enable"); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET on a write route should be 405, got %d", w.Code)
	}
}

func TestServer_LeaderRedirect(t *testing.T) {
	s := NewServer(newTestDriver(t), nil, nil, "")

	s.SetElectionManager(&mockElection{leader: false, leaderAddr: "http://node-b:8090/", ok: true})
	w := do(t, s.Handler(), http.MethodPost, "/v1/schedulers/north/toggle?x=1")
	if w.Code != http.StatusTemporaryRedirect {
		t.Fatalf("expected 307, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "http://node-b:8090/v1/schedulers/north/toggle?x=1" {
		t.Errorf("unexpected redirect target %q", loc)
	}

	// Reads are served locally.
	if w := do(t, s.Handler(), http.MethodGet, "/v1/schedulers"); w.Code != http.StatusOK {
		t.Errorf("follower read should succeed, got %d", w.Code)
	}

	s.SetElectionManager(&mockElection{leader: false, ok: false})
	if w := do(t, s.Handler(), http.MethodPost, "/v1/schedulers/north/toggle"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without a leader, got %d", w.Code)
	}

	s.SetElectionManager(&mockElection{err: errors.New("redis down")})
	if w := do(t, s.Handler(), http.MethodPost, "/v1/schedulers/north/toggle"); w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 on lookup failure, got %d", w.Code)
	}

	s.SetElectionManager(&mockElection{leader: true})
	if w := do(t, s.Handler(), http.MethodPost, "/v1/schedulers/north/toggle"); w.Code != http.StatusOK {
		t.Errorf("leader should serve writes, got %d", w.Code)
	}
}

func TestServer_Events(t *testing.T) {
	st := &mockStore{events: []*store.Event{{EventID: "e1", EventType: store.EventTypeSpawnBatch}}}
	s := NewServer(newTestDriver(t), st, nil, "")

	w := do(t, s.Handler(), http.MethodGet, "/v1/events?limit=5000&type=spawn_batch&scheduler_id=north")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	f := st.filters[0]
	if f.Limit != maxEventLimit || f.SchedulerID != "north" || len(f.EventTypes) != 1 || f.EventTypes[0] != store.EventTypeSpawnBatch {
		t.Errorf("unexpected filter: %+v", f)
	}

	if w := do(t, s.Handler(), http.MethodGet, "/v1/events?limit=abc"); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a bad limit, got %d", w.Code)
	}

	st.err = errors.New("boom")
	if w := do(t, s.Handler(), http.MethodGet, "/v1/events"); w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}

	noStore := NewServer(newTestDriver(t), nil, nil, "")
	if w := do(t, noStore.Handler(), http.MethodGet, "/v1/events"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without a store, got %d", w.Code)
	}
}

func TestServer_Reports(t *testing.T) {
	st := &mockStore{events: []*store.Event{{
		EventID:    "e1",
		EventType:  store.EventTypeSpawnBatch,
		TsEvent:    time.Now(),
		Dimensions: store.EventDimensions{SchedulerID: "north"},
		Payload:    json.RawMessage(`{"activated":1}`),
	}}}
	s := NewServer(newTestDriver(t), st, nil, "")

	w := do(t, s.Handler(), http.MethodGet, "/v1/reports")
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "text/csv" {
		t.Fatalf("expected CSV, got %d %s", w.Code, w.Header().Get("Content-Type"))
	}
	records, err := csv.NewReader(w.Body).ReadAll()
	if err != nil || len(records) != 2 {
		t.Fatalf("unexpected CSV %v %v", records, err)
	}

	w = do(t, s.Handler(), http.MethodGet, "/v1/reports?format=json&type=events")
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "application/json" {
		t.Errorf("expected JSON, got %d %s", w.Code, w.Header().Get("Content-Type"))
	}

	for _, path := range []string{"/v1/reports?format=xml", "/v1/reports?type=usage", "/v1/reports?from=yesterday"} {
		if w := do(t, s.Handler(), http.MethodGet, path); w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", path, w.Code)
		}
	}
}

func TestServer_Stream(t *testing.T) {
	d := newTestDriver(t)
	hub := NewHub()
	d.AddObserver(hub)
	s := NewServer(d, nil, hub, "")

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// The first step fires north's milestone and spawns.
	d.Step(context.Background(), 1500*time.Millisecond)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg StreamMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != StreamTypeOutcome || msg.SchedulerID != "north" || msg.Outcome == nil || !msg.Outcome.Spawned {
		t.Errorf("unexpected frame: %+v", msg)
	}

	if err := d.SetSpawning(context.Background(), "south", true); err != nil {
		t.Fatalf("SetSpawning: %v", err)
	}
	for {
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if msg.Type == StreamTypeSpawning {
			break
		}
	}
	if msg.SchedulerID != "south" || msg.SpawningEnabled == nil || !*msg.SpawningEnabled {
		t.Errorf("unexpected spawning frame: %+v", msg)
	}
}
