package main

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rmax-ai/spawnlord/pkg/simulation"
)

func TestDefaultScenarioPasses(t *testing.T) {
	res, err := simulation.RunScenario(context.Background(), defaultScenario(), nil)
	if err != nil {
		t.Fatalf("RunScenario failed: %v", err)
	}
	if !res.Success {
		t.Fatalf("default scenario should pass: %+v", res.Invariants)
	}
}

func TestFormatReport(t *testing.T) {
	res := simulation.SimulationResult{
		ScenarioName: "demo",
		Milestones:   []simulation.MilestoneFiring{{Index: 0, Tier: "Enemy_Grunt", FiredAtSeconds: 0.1}},
		Invariants: []simulation.InvariantResult{
			{Metric: "spawn_events", Expected: "> 0.00", Actual: "3.0000", Passed: true},
			{Metric: "tiers_unlocked", Expected: "== 3.00", Actual: "1.0000", Passed: false},
		},
	}

	text, err := formatReport(res, false)
	if err != nil {
		t.Fatalf("formatReport failed: %v", err)
	}
	for _, want := range []string{"Simulation Report: demo", "Enemy_Grunt", "[PASS] spawn_events", "[FAIL] tiers_unlocked"} {
		if !strings.Contains(string(text), want) {
			t.Errorf("report missing %q:\n%s", want, text)
		}
	}

	data, err := formatReport(res, true)
	if err != nil {
		t.Fatalf("formatReport json failed: %v", err)
	}
	var decoded simulation.SimulationResult
	if err := json.Unmarshal(data, &decoded); err != nil || decoded.ScenarioName != "demo" {
		t.Errorf("bad JSON report: %v", err)
	}
}
