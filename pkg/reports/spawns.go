package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/rmax-ai/spawnlord/pkg/store"
)

// SpawnSummary aggregates one scheduler's activity over the report window.
type SpawnSummary struct {
	SchedulerID     string   `json:"scheduler_id"`
	SpawnEvents     int      `json:"spawn_events"`
	Exhausted       int      `json:"exhausted_events"`
	Activated       int      `json:"activated"`
	Revived         int      `json:"revived"`
	Dropped         int      `json:"dropped"`
	MilestonesFired int      `json:"milestones_fired"`
	TiersUnlocked   []string `json:"tiers_unlocked"`
}

// SpawnReport summarizes spawn_batch, pool_exhausted and milestone_fired
// events per scheduler.
type SpawnReport struct {
	store ReportStore
}

func NewSpawnReport(s ReportStore) *SpawnReport {
	return &SpawnReport{store: s}
}

type batchPayload struct {
	Activated int `json:"activated"`
	Revived   int `json:"revived"`
	Dropped   int `json:"dropped"`
}

// Summarize returns one summary per scheduler, sorted by id.
func (r *SpawnReport) Summarize(ctx context.Context, params ReportParams) ([]SpawnSummary, error) {
	events, err := r.store.QueryEvents(ctx, store.EventFilter{
		From:        params.Start,
		To:          params.End,
		SchedulerID: params.SchedulerID,
		EventTypes: []store.EventType{
			store.EventTypeSpawnBatch,
			store.EventTypePoolExhausted,
			store.EventTypeMilestoneFired,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}

	byID := make(map[string]*SpawnSummary)
	// Oldest first so tiers are listed in unlock order.
	for i := len(events) - 1; i >= 0; i-- {
		evt := events[i]
		id := evt.Dimensions.SchedulerID
		sum, ok := byID[id]
		if !ok {
			sum = &SpawnSummary{SchedulerID: id, TiersUnlocked: []string{}}
			byID[id] = sum
		}
		switch evt.EventType {
		case store.EventTypeMilestoneFired:
			sum.MilestonesFired++
			sum.TiersUnlocked = append(sum.TiersUnlocked, evt.Dimensions.Tier)
		case store.EventTypeSpawnBatch, store.EventTypePoolExhausted:
			var p batchPayload
			if err := json.Unmarshal(evt.Payload, &p); err != nil {
				return nil, fmt.Errorf("failed to unmarshal payload for event %s: %w", evt.EventID, err)
			}
			sum.SpawnEvents++
			if evt.EventType == store.EventTypePoolExhausted {
				sum.Exhausted++
			}
			sum.Activated += p.Activated
			sum.Revived += p.Revived
			sum.Dropped += p.Dropped
		}
	}

	out := make([]SpawnSummary, 0, len(byID))
	for _, s := range byID {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SchedulerID < out[j].SchedulerID })
	return out, nil
}

func (r *SpawnReport) Generate(ctx context.Context, params ReportParams) (io.Reader, error) {
	summaries, err := r.Summarize(ctx, params)
	if err != nil {
		return nil, err
	}

	buf := &bytes.Buffer{}
	if params.Format == ReportFormatJSON {
		if err := json.NewEncoder(buf).Encode(summaries); err != nil {
			return nil, fmt.Errorf("failed to encode summaries: %w", err)
		}
		return buf, nil
	}

	writer := csv.NewWriter(buf)
	headers := []string{"scheduler_id", "spawn_events", "exhausted_events", "activated", "revived", "dropped", "milestones_fired"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write headers: %w", err)
	}
	for _, s := range summaries {
		row := []string{
			s.SchedulerID,
			strconv.Itoa(s.SpawnEvents),
			strconv.Itoa(s.Exhausted),
			strconv.Itoa(s.Activated),
			strconv.Itoa(s.Revived),
			strconv.Itoa(s.Dropped),
			strconv.Itoa(s.MilestonesFired),
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush writer: %w", err)
	}
	return buf, nil
}
