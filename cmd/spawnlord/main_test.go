package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newDaemon(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/schedulers":
			w.Write([]byte(`[{"id":"north","state":{"elapsed":12000000000,"bounds":{"min":1000000000,"max":2000000000},"spawning_enabled":false,"milestones":[{"tier":"Grunt","fired":true}]},"counters":{"entities_spawned":9}}]`))
		case "/v1/schedulers/north/toggle":
			w.Write([]byte(`{"scheduler_id":"north","spawning_enabled":true}`))
		case "/v1/schedulers/north/enable":
			w.Write([]byte(`{"scheduler_id":"north","spawning_enabled":true}`))
		case "/v1/events":
			if r.URL.Query().Get("type") != "spawn_batch" {
				t.Errorf("type filter not forwarded: %s", r.URL.RawQuery)
			}
			w.Write([]byte(`[{"event_type":"spawn_batch","dimensions":{"scheduler_id":"north","tier":"Grunt"},"payload":{"activated":2}}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"scheduler_not_found"}`))
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestRun_Commands(t *testing.T) {
	ts := newDaemon(t)
	tests := []struct {
		args []string
		want []string
	}{
		{[]string{"status"}, []string{"north", "closed", "12s", "1/1", "9"}},
		{[]string{"toggle", "north"}, []string{"north: spawning_enabled=true"}},
		{[]string{"enable", "north"}, []string{"north: spawning_enabled=true"}},
		{[]string{"events", "-n", "5", "-type", "spawn_batch"}, []string{"spawn_batch", "Grunt", `{"activated":2}`}},
		{[]string{"version"}, []string{"spawnlord v"}},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			var out bytes.Buffer
			args := append([]string{"-api", ts.URL}, tt.args...)
			if err := run(context.Background(), args, &out); err != nil {
				t.Fatalf("run failed: %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(out.String(), w) {
					t.Errorf("output missing %q:\n%s", w, out.String())
				}
			}
		})
	}
}

func TestRun_Errors(t *testing.T) {
	ts := newDaemon(t)
	var out bytes.Buffer

	if err := run(context.Background(), []string{}, &out); !errors.Is(err, flag.ErrHelp) {
		t.Errorf("no command should print usage, got %v", err)
	}
	if err := run(context.Background(), []string{"-api", ts.URL, "toggle"}, &out); err == nil {
		t.Error("toggle without an id should fail")
	}
	if err := run(context.Background(), []string{"-api", ts.URL, "disable", "south"}, &out); err == nil {
		t.Error("unknown scheduler should fail")
	}
	if err := run(context.Background(), []string{"launch"}, &out); err == nil {
		t.Error("unknown command should fail")
	}
}

func TestRun_Schema(t *testing.T) {
	var out bytes.Buffer
	if err := run(context.Background(), []string{"schema"}, &out); err != nil {
		t.Fatalf("schema failed: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(out.Bytes(), &doc); err != nil {
		t.Fatalf("schema is not JSON: %v", err)
	}
	if doc["title"] != "spawnlord world" {
		t.Errorf("unexpected title %v", doc["title"])
	}
}
