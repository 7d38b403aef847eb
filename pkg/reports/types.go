package reports

import (
	"context"
	"io"
	"time"

	"github.com/rmax-ai/spawnlord/pkg/store"
)

type ReportType string

const (
	ReportTypeEvents ReportType = "events"
	ReportTypeSpawns ReportType = "spawns"
)

type ReportFormat string

const (
	ReportFormatCSV  ReportFormat = "csv"
	ReportFormatJSON ReportFormat = "json"
)

type ReportParams struct {
	Start       time.Time
	End         time.Time
	SchedulerID string
	Format      ReportFormat
}

// ReportStore defines the interface for data access required by reports.
type ReportStore interface {
	QueryEvents(ctx context.Context, filter store.EventFilter) ([]*store.Event, error)
}

type Generator interface {
	Generate(ctx context.Context, params ReportParams) (io.Reader, error)
}
