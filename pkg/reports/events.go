package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/rmax-ai/spawnlord/pkg/store"
)

// EventReport dumps raw audit events, oldest first.
type EventReport struct {
	store ReportStore
}

func NewEventReport(s ReportStore) *EventReport {
	return &EventReport{store: s}
}

func (r *EventReport) Generate(ctx context.Context, params ReportParams) (io.Reader, error) {
	events, err := r.store.QueryEvents(ctx, store.EventFilter{
		From:        params.Start,
		To:          params.End,
		SchedulerID: params.SchedulerID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	// The store returns newest first.
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}

	buf := &bytes.Buffer{}
	if params.Format == ReportFormatJSON {
		if events == nil {
			events = []*store.Event{}
		}
		if err := json.NewEncoder(buf).Encode(events); err != nil {
			return nil, fmt.Errorf("failed to encode events: %w", err)
		}
		return buf, nil
	}

	writer := csv.NewWriter(buf)
	headers := []string{"event_id", "timestamp", "event_type", "scheduler_id", "tier", "sim_seconds", "payload"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write headers: %w", err)
	}
	for _, evt := range events {
		row := []string{
			string(evt.EventID),
			evt.TsEvent.Format(time.RFC3339),
			string(evt.EventType),
			evt.Dimensions.SchedulerID,
			evt.Dimensions.Tier,
			strconv.FormatFloat(evt.SimTime.Seconds(), 'f', 3, 64),
			string(evt.Payload),
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
