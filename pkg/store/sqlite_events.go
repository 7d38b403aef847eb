package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidEvent = errors.New("invalid event")

// AppendEvent writes one event. Missing ids, timestamps and schema versions
// are filled in.
func (s *Store) AppendEvent(ctx context.Context, evt *Event) error {
	if evt == nil {
		return fmt.Errorf("%w: nil event", ErrInvalidEvent)
	}
	if evt.EventType == "" {
		return fmt.Errorf("%w: missing event type", ErrInvalidEvent)
	}
	if evt.Dimensions.SchedulerID == "" {
		return fmt.Errorf("%w: missing scheduler id", ErrInvalidEvent)
	}
	if evt.EventID == "" {
		evt.EventID = EventID(uuid.NewString())
	}
	if evt.SchemaVersion == 0 {
		evt.SchemaVersion = SchemaVersion
	}
	now := time.Now().UTC()
	if evt.TsEvent.IsZero() {
		evt.TsEvent = now
	}
	evt.TsEvent = evt.TsEvent.UTC()
	evt.TsIngest = now
	if len(evt.Payload) == 0 {
		evt.Payload = []byte("{}")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (
			event_id, event_type, schema_version, ts_event, ts_ingest, epoch, sim_time_ns,
			origin_kind, origin_id, writer_id,
			world_id, scheduler_id, tier, payload
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		string(evt.EventID), string(evt.EventType), evt.SchemaVersion, evt.TsEvent, evt.TsIngest, evt.Epoch, int64(evt.SimTime),
		evt.Source.OriginKind, evt.Source.OriginID, evt.Source.WriterID,
		evt.Dimensions.WorldID, evt.Dimensions.SchedulerID, evt.Dimensions.Tier, string(evt.Payload),
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// ReadRecentEvents returns up to limit events, newest first.
func (s *Store) ReadRecentEvents(ctx context.Context, limit int) ([]*Event, error) {
	return s.QueryEvents(ctx, EventFilter{Limit: limit})
}

// QueryEvents returns events matching the filter, newest first.
func (s *Store) QueryEvents(ctx context.Context, filter EventFilter) ([]*Event, error) {
	var (
		where []string
		args  []any
	)
	if !filter.From.IsZero() {
		where = append(where, "ts_event >= ?")
		args = append(args, filter.From.UTC())
	}
	if !filter.To.IsZero() {
		where = append(where, "ts_event < ?")
		args = append(args, filter.To.UTC())
	}
	if len(filter.EventTypes) > 0 {
		placeholders := make([]string, len(filter.EventTypes))
		for i, et := range filter.EventTypes {
			placeholders[i] = "?"
			args = append(args, string(et))
		}
		where = append(where, "event_type IN ("+strings.Join(placeholders, ",")+")")
	}
	if filter.WorldID != "" {
		where = append(where, "world_id = ?")
		args = append(args, filter.WorldID)
	}
	if filter.SchedulerID != "" {
		where = append(where, "scheduler_id = ?")
		args = append(args, filter.SchedulerID)
	}

	query := `
		SELECT event_id, event_type, schema_version, ts_event, ts_ingest, epoch, sim_time_ns,
			origin_kind, origin_id, writer_id, world_id, scheduler_id, tier, payload
		FROM events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if filter.Ascending {
		query += " ORDER BY ts_event ASC, rowid ASC"
	} else {
		query += " ORDER BY ts_event DESC, rowid DESC"
	}
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []*Event
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return out, nil
}

func scanEvent(rows *sql.Rows) (*Event, error) {
	var (
		evt                  Event
		eventID, eventType   string
		simTime              int64
		originKind, originID sql.NullString
		writerID, tier       sql.NullString
		payload              string
	)
	err := rows.Scan(
		&eventID, &eventType, &evt.SchemaVersion, &evt.TsEvent, &evt.TsIngest, &evt.Epoch, &simTime,
		&originKind, &originID, &writerID,
		&evt.Dimensions.WorldID, &evt.Dimensions.SchedulerID, &tier, &payload,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan event: %w", err)
	}
	evt.EventID = EventID(eventID)
	evt.EventType = EventType(eventType)
	evt.SimTime = time.Duration(simTime)
	evt.Source = EventSource{OriginKind: originKind.String, OriginID: originID.String, WriterID: writerID.String}
	evt.Dimensions.Tier = tier.String
	evt.Payload = []byte(payload)
	return &evt, nil
}

// PruneEvents deletes events older than retention and returns how many were removed.
func (s *Store) PruneEvents(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, fmt.Errorf("retention must be positive")
	}
	cutoff := time.Now().UTC().Add(-retention)
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE ts_event < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return n, nil
}

// DeleteEvents removes the events with the given ids in one transaction.
func (s *Store) DeleteEvents(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM events WHERE event_id = ?`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare delete: %w", err)
	}
	defer stmt.Close()

	var total int64
	for _, id := range ids {
		res, err := stmt.ExecContext(ctx, id)
		if err != nil {
			return 0, fmt.Errorf("failed to delete event %s: %w", id, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit delete: %w", err)
	}
	return total, nil
}
