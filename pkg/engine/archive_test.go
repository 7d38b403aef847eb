package engine

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rmax-ai/spawnlord/pkg/blob"
	"github.com/rmax-ai/spawnlord/pkg/store"
)

func TestArchiveWorker_ArchiveBatch(t *testing.T) {
	st, err := store.NewStore(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer st.Close()
	blobs := blob.NewLocalBlobStore(filepath.Join(t.TempDir(), "blobs"))
	ctx := context.Background()

	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		ages := []time.Duration{3 * time.Hour, 2 * time.Hour, 90 * time.Minute, 10 * time.Minute, time.Minute}
		evt := &store.Event{
			EventType:  store.EventTypeSpawnBatch,
			TsEvent:    now.Add(-ages[i]),
			Dimensions: store.EventDimensions{WorldID: "arena", SchedulerID: "north"},
			Payload:    json.RawMessage(`{"activated":1}`),
		}
		if err := st.AppendEvent(ctx, evt); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	w := NewArchiveWorker(st, blobs, "arena", ArchiveConfig{Retention: time.Hour, BatchSize: 2})
	var moved int
	for {
		n, err := w.ArchiveBatch(ctx)
		if err != nil {
			t.Fatalf("ArchiveBatch failed: %v", err)
		}
		if n == 0 {
			break
		}
		moved += n
	}
	if moved != 3 {
		t.Fatalf("expected 3 events archived, got %d", moved)
	}

	left, _ := st.ReadRecentEvents(ctx, 10)
	if len(left) != 2 {
		t.Errorf("expected 2 recent events left, got %d", len(left))
	}

	keys, err := blobs.List(ctx, "events/arena")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 archive blobs, got %v", keys)
	}

	var archived int
	for _, key := range keys {
		if !strings.HasSuffix(key, ".jsonl.gz") {
			t.Errorf("unexpected key %s", key)
		}
		rc, err := blobs.Get(ctx, key)
		if err != nil {
			t.Fatalf("Get %s: %v", key, err)
		}
		gz, err := gzip.NewReader(rc)
		if err != nil {
			t.Fatalf("gzip %s: %v", key, err)
		}
		dec := json.NewDecoder(gz)
		for {
			var evt store.Event
			if err := dec.Decode(&evt); err == io.EOF {
				break
			} else if err != nil {
				t.Fatalf("decode %s: %v", key, err)
			}
			if evt.Dimensions.SchedulerID != "north" || evt.TsEvent.After(now.Add(-time.Hour)) {
				t.Errorf("unexpected archived event %+v", evt)
			}
			archived++
		}
		gz.Close()
		rc.Close()
	}
	if archived != 3 {
		t.Errorf("expected 3 events across archives, got %d", archived)
	}
}

type failingBlobStore struct{ blob.BlobStore }

func (failingBlobStore) Put(context.Context, string, io.Reader) error {
	return errors.New("read-only filesystem")
}

func TestArchiveWorker_KeepsEventsWhenUploadFails(t *testing.T) {
	st, err := store.NewStore(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer st.Close()
	ctx := context.Background()

	evt := &store.Event{
		EventType:  store.EventTypeSpawnBatch,
		TsEvent:    time.Now().Add(-2 * time.Hour),
		Dimensions: store.EventDimensions{WorldID: "arena", SchedulerID: "north"},
	}
	if err := st.AppendEvent(ctx, evt); err != nil {
		t.Fatalf("append: %v", err)
	}

	w := NewArchiveWorker(st, failingBlobStore{}, "arena", ArchiveConfig{Retention: time.Hour})
	if _, err := w.ArchiveBatch(ctx); err == nil {
		t.Fatal("expected an error when the blob write fails")
	}
	left, _ := st.ReadRecentEvents(ctx, 10)
	if len(left) != 1 {
		t.Errorf("events must survive a failed upload, got %d", len(left))
	}
}

func TestArchiveKey(t *testing.T) {
	first := time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC)
	key := archiveKey("arena", first, first.Add(time.Minute))
	prefix := "events/arena/2026/03/07/1772884800_1772884860_"
	if !strings.HasPrefix(key, prefix) {
		t.Errorf("key = %s; want prefix %s", key, prefix)
	}
}
