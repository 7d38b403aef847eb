package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rmax-ai/spawnlord/pkg/engine"
	"github.com/rmax-ai/spawnlord/pkg/reports"
	"github.com/rmax-ai/spawnlord/pkg/store"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 1000
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, reason string) {
	body := map[string]string{"error": code}
	if reason != "" {
		body["reason"] = reason
	}
	writeJSON(w, status, body)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:     "ok",
		World:      s.driver.World(),
		Leader:     true,
		Schedulers: len(s.driver.Snapshots()),
	}
	if s.election != nil {
		resp.Leader = s.election.IsLeader()
		resp.Epoch = s.election.Epoch()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListSchedulers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.driver.Snapshots())
}

func (s *Server) handleGetScheduler(w http.ResponseWriter, r *http.Request) {
	snap, err := s.driver.Snapshot(chi.URLParam(r, "id"))
	if err != nil {
		s.driverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleSetSpawning(enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var req SpawningRequest
		if r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_json", "")
				return
			}
		}

		if err := s.driver.SetSpawning(r.Context(), id, enabled); err != nil {
			s.driverError(w, r, err)
			return
		}
		s.logger.Info("spawning_set", "trace_id", getTraceID(r.Context()), "scheduler_id", id, "enabled", enabled, "reason", req.Reason)
		writeJSON(w, http.StatusOK, SpawningResponse{SchedulerID: id, SpawningEnabled: enabled})
	}
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	enabled, err := s.driver.Toggle(r.Context(), id)
	if err != nil {
		s.driverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SpawningResponse{SchedulerID: id, SpawningEnabled: enabled})
}

func (s *Server) driverError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, engine.ErrSchedulerNotFound) {
		writeError(w, http.StatusNotFound, "scheduler_not_found", "")
		return
	}
	s.logger.Error("driver_error", "trace_id", getTraceID(r.Context()), "error", err)
	writeError(w, http.StatusInternalServerError, "internal_server_error", "")
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "store_not_available", "")
		return
	}
	q := r.URL.Query()

	limit := defaultEventLimit
	if l := q.Get("limit"); l != "" {
		val, err := strconv.Atoi(l)
		if err != nil || val <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "")
			return
		}
		limit = min(val, maxEventLimit)
	}

	filter := store.EventFilter{
		SchedulerID: q.Get("scheduler_id"),
		Limit:       limit,
	}
	if typ := q.Get("type"); typ != "" {
		filter.EventTypes = []store.EventType{store.EventType(typ)}
	}

	events, err := s.store.QueryEvents(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed_to_read_events", "trace_id", getTraceID(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "internal_server_error", "")
		return
	}
	if events == nil {
		events = []*store.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "store_not_available", "")
		return
	}
	q := r.URL.Query()

	format, err := reports.ParseFormat(q.Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_format", "")
		return
	}

	to := time.Now()
	if v := q.Get("to"); v != "" {
		if to, err = time.Parse(time.RFC3339, v); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_to", "RFC3339")
			return
		}
	}
	from := to.Add(-24 * time.Hour)
	if v := q.Get("from"); v != "" {
		if from, err = time.Parse(time.RFC3339, v); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_from", "RFC3339")
			return
		}
	}

	gen, err := reports.NewReportGenerator(reports.ReportType(q.Get("type")), s.store)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_report_type", "")
		return
	}

	reader, err := gen.Generate(r.Context(), reports.ReportParams{
		Start:       from,
		End:         to,
		SchedulerID: q.Get("scheduler_id"),
		Format:      format,
	})
	if err != nil {
		s.logger.Error("failed_to_generate_report", "trace_id", getTraceID(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "report_generation_failed", "")
		return
	}

	if format == reports.ReportFormatJSON {
		w.Header().Set("Content-Type", "application/json")
	} else {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=spawnlord_%d.csv", time.Now().Unix()))
	}
	if _, err := io.Copy(w, reader); err != nil {
		s.logger.Error("failed_to_stream_report", "trace_id", getTraceID(r.Context()), "error", err)
	}
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "stream_not_available", "")
		return
	}
	s.hub.ServeHTTP(w, r)
}
