package blob

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalBlobStore(t *testing.T) {
	root := t.TempDir()
	store := NewLocalBlobStore(root)
	ctx := context.Background()

	key := "events/arena/batch-1.jsonl.gz"
	if err := store.Put(ctx, key, strings.NewReader("hello world")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "events", "arena", "batch-1.jsonl.gz")); err != nil {
		t.Errorf("file was not created: %v", err)
	}

	reader, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	data, _ := io.ReadAll(reader)
	reader.Close()
	if string(data) != "hello world" {
		t.Errorf("Get content mismatch: %q", data)
	}

	store.Put(ctx, "events/arena/batch-0.jsonl.gz", strings.NewReader("older"))
	keys, err := store.List(ctx, "events/arena")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(keys) != 2 || keys[0] != "events/arena/batch-0.jsonl.gz" {
		t.Errorf("expected two sorted keys, got %v", keys)
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Errorf("double delete should be ErrNotFound, got %v", err)
	}
}

func TestLocalBlobStore_ListMissingPrefix(t *testing.T) {
	keys, err := NewLocalBlobStore(t.TempDir()).List(context.Background(), "nothing/here")
	if err != nil || len(keys) != 0 {
		t.Errorf("expected an empty list, got %v %v", keys, err)
	}
}

func TestLocalBlobStore_RejectsEscapingKeys(t *testing.T) {
	store := NewLocalBlobStore(t.TempDir())
	for _, key := range []string{"../outside", "/abs/path", "a/../../b", ""} {
		if err := store.Put(context.Background(), key, strings.NewReader("x")); err == nil {
			t.Errorf("key %q should be rejected", key)
		}
	}
}
