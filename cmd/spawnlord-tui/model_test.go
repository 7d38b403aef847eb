package main

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rmax-ai/spawnlord/pkg/client"
)

type fakeAPI struct {
	schedulers []client.Scheduler
	events     []client.Event
	err        error
	calls      []string
}

func (f *fakeAPI) ListSchedulers(context.Context) ([]client.Scheduler, error) {
	return f.schedulers, f.err
}

func (f *fakeAPI) GetEvents(context.Context, client.EventsOptions) ([]client.Event, error) {
	return f.events, f.err
}

func (f *fakeAPI) SetSpawning(_ context.Context, id string, enabled bool, _ string) error {
	if enabled {
		f.calls = append(f.calls, "enable "+id)
	} else {
		f.calls = append(f.calls, "disable "+id)
	}
	return f.err
}

func (f *fakeAPI) Toggle(_ context.Context, id string) (bool, error) {
	f.calls = append(f.calls, "toggle "+id)
	return true, f.err
}

func testAPI() *fakeAPI {
	return &fakeAPI{
		schedulers: []client.Scheduler{{
			ID: "north",
			State: client.SchedulerState{
				Elapsed:         12 * time.Second,
				Bounds:          client.Bounds{Min: time.Second, Max: 2 * time.Second},
				SpawningEnabled: true,
				Milestones:      []client.Milestone{{Tier: "Grunt", Fired: true}, {Tier: "Soldier"}},
			},
			Tiers: []client.TierStats{{Name: "Grunt", Enabled: true, Size: 10, InUse: 3}, {Name: "Soldier", Size: 6}},
		}},
		events: []client.Event{{EventType: "pool_exhausted", Dimensions: client.EventDimensions{SchedulerID: "north", Tier: "Grunt"}}},
	}
}

func loaded(t *testing.T, api *fakeAPI) model {
	t.Helper()
	m := initialModel(api)
	next, _ := m.Update(fetchData(api)())
	return next.(model)
}

func TestModel_RendersSchedulers(t *testing.T) {
	m := loaded(t, testAPI())

	rows := m.table.Rows()
	if len(rows) != 1 {
		t.Fatalf("expected one row, got %d", len(rows))
	}
	want := []string{"north", "open", "12.0s", "1.00-2.00s", "0.00s", "1/2", "Grunt 3/10"}
	for i, w := range want {
		if rows[0][i] != w {
			t.Errorf("column %d: expected %q, got %q", i, w, rows[0][i])
		}
	}

	view := m.View()
	for _, s := range []string{"north", "pool_exhausted", "1 Schedulers"} {
		if !strings.Contains(view, s) {
			t.Errorf("view missing %q", s)
		}
	}
}

func TestModel_Offline(t *testing.T) {
	api := testAPI()
	api.err = errors.New("connection refused")
	m := loaded(t, api)
	if !strings.Contains(m.View(), "Offline") {
		t.Error("expected offline status")
	}
}

func TestModel_GateKeys(t *testing.T) {
	api := testAPI()
	m := loaded(t, api)

	for _, key := range []string{"e", "d", "t"} {
		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)})
		if cmd == nil {
			t.Fatalf("key %s should issue a command", key)
		}
		msg := cmd()
		next, _ := m.Update(msg)
		if !strings.Contains(next.(model).status, "north") {
			t.Errorf("key %s: expected a status line, got %q", key, next.(model).status)
		}
	}

	want := []string{"enable north", "disable north", "toggle north"}
	if strings.Join(api.calls, ",") != strings.Join(want, ",") {
		t.Errorf("expected calls %v, got %v", want, api.calls)
	}
}

func TestModel_GateKeysWithoutSelection(t *testing.T) {
	api := &fakeAPI{}
	m := loaded(t, api)
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("t")}); cmd != nil {
		t.Error("no scheduler selected; expected no command")
	}
}
