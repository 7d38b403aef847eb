package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/rmax-ai/spawnlord/pkg/engine"
	"github.com/rmax-ai/spawnlord/pkg/simulation"
)

func main() {
	var (
		scenarioFile string
		jsonOutput   bool
		outputFile   string
		seed         int64
		verbose      bool
	)

	flag.StringVar(&scenarioFile, "scenario", "", "Path to scenario file (YAML or JSON)")
	flag.BoolVar(&jsonOutput, "json", false, "Output results as JSON")
	flag.StringVar(&outputFile, "out", "", "Write output to file instead of stdout")
	flag.Int64Var(&seed, "seed", 0, "Override the scenario seed")
	flag.BoolVar(&verbose, "v", false, "Log scheduler diagnostics to stderr")
	flag.Parse()

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	scenario := defaultScenario()
	if scenarioFile != "" {
		var err error
		if scenario, err = simulation.LoadScenario(scenarioFile); err != nil {
			logger.Error("scenario_load_failed", "error", err)
			os.Exit(2)
		}
	} else {
		fmt.Fprintln(os.Stderr, "No scenario file provided, running default demo scenario...")
	}
	if seed != 0 {
		scenario.Seed = seed
	}

	result, err := simulation.RunScenario(context.Background(), scenario, logger)
	if err != nil {
		logger.Error("scenario_failed", "error", err)
		os.Exit(2)
	}

	output, err := formatReport(result, jsonOutput)
	if err != nil {
		logger.Error("report_failed", "error", err)
		os.Exit(2)
	}
	if outputFile != "" {
		if err := os.WriteFile(outputFile, output, 0644); err != nil {
			logger.Error("report_write_failed", "path", outputFile, "error", err)
			os.Exit(2)
		}
		fmt.Printf("Report written to %s\n", outputFile)
	} else {
		fmt.Println(string(output))
	}

	if !result.Success {
		os.Exit(1)
	}
}

func defaultScenario() simulation.Scenario {
	return simulation.Scenario{
		Name:        "Default Demo",
		Description: "Three tiers unlocking over a minute",
		Seed:        1,
		Step:        0.1,
		Duration:    90,
		Scheduler: engine.SchedulerConfig{
			ID:           "demo",
			MinFrequency: 1,
			MaxFrequency: 3,
			BatchSize:    2,
			Milestones: []engine.MilestoneConfig{
				{Threshold: 0, Tier: "Enemy_Grunt"},
				{Threshold: 30, Tier: "Enemy_Soldier"},
				{Threshold: 60, Tier: "Enemy_Overwatch"},
			},
			Tiers: []engine.TierConfig{
				{Name: "Enemy_Grunt", Size: 20, Lifetime: 10},
				{Name: "Enemy_Soldier", Size: 10, MaxHealth: 100, Lifetime: 15},
				{Name: "Enemy_Overwatch", Size: 4, MaxHealth: 250},
			},
		},
		Invariants: []simulation.Invariant{
			{Metric: "tiers_unlocked", Condition: "==", Value: 3},
			{Metric: "spawn_events", Condition: ">", Value: 0},
		},
	}
}

func formatReport(res simulation.SimulationResult, jsonFmt bool) ([]byte, error) {
	if jsonFmt {
		return json.MarshalIndent(res, "", "  ")
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "\n--- Simulation Report: %s ---\n", res.ScenarioName)
	fmt.Fprintf(&buf, "Seed: %d | Duration: %.1fs | Steps: %d\n", res.Seed, res.DurationSeconds, res.Steps)
	fmt.Fprintf(&buf, "Spawn events: %d | Spawned: %d | Revived: %d | Dropped: %d | Released: %d\n",
		res.SpawnEvents, res.EntitiesSpawned, res.EntitiesRevived, res.SlotsDropped, res.Released)
	fmt.Fprintf(&buf, "Elapsed: %.2fs | Interval bounds: [%.3fs, %.3fs]\n",
		res.ElapsedSeconds, res.MinFrequencySeconds, res.MaxFrequencySeconds)

	if len(res.Milestones) > 0 {
		buf.WriteString("\nMilestones:\n")
		for _, m := range res.Milestones {
			fmt.Fprintf(&buf, "  #%d %-20s threshold %6.2fs fired at %6.2fs\n", m.Index, m.Tier, m.ThresholdSeconds, m.FiredAtSeconds)
		}
	}
	if len(res.Invariants) > 0 {
		buf.WriteString("\nInvariants:\n")
		for _, inv := range res.Invariants {
			status := "FAIL"
			if inv.Passed {
				status = "PASS"
			}
			fmt.Fprintf(&buf, "[%s] %s: Expected %s, Got %s\n", status, inv.Metric, inv.Expected, inv.Actual)
		}
	}
	return buf.Bytes(), nil
}
