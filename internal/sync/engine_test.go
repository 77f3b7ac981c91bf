package sync

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/erauner12/notarium-bridge/internal/backend"
	"github.com/erauner12/notarium-bridge/internal/cache"
)

func newTestStore(t *testing.T) *cache.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.db")
	s, _, err := cache.Open(path, cache.Config{Username: "alice"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEngine_FullSyncPullsAllEntries(t *testing.T) {
	store := newTestStore(t)
	client := backend.NewFakeClient()
	client.Seed(backend.NoteData{ID: "n1", Text: "hello", ModifiedAt: 10, CreatedAt: 10, Version: 1})
	client.Seed(backend.NoteData{ID: "n2", Text: "world", ModifiedAt: 20, CreatedAt: 20, Version: 1})

	e := NewEngine(store, client, "bucket", time.Minute, zerolog.Nop())
	if err := e.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle: %v", err)
	}

	n1, err := store.GetByID("n1")
	if err != nil {
		t.Fatalf("get n1: %v", err)
	}
	if n1.Text != "hello" || n1.ServerVersion == nil || *n1.ServerVersion != 1 {
		t.Errorf("unexpected n1: %+v", n1)
	}

	cursor, err := store.Meta().BackendCursor()
	if err != nil || cursor == "" {
		t.Errorf("expected backend cursor to be persisted, got %q err=%v", cursor, err)
	}
}

func TestEngine_DeltaSyncPullsNewEntries(t *testing.T) {
	store := newTestStore(t)
	client := backend.NewFakeClient()
	client.Seed(backend.NoteData{ID: "n1", Text: "v1", ModifiedAt: 10, CreatedAt: 10, Version: 1})

	e := NewEngine(store, client, "bucket", time.Minute, zerolog.Nop())
	if err := e.runCycle(context.Background()); err != nil {
		t.Fatalf("first cycle: %v", err)
	}

	client.Seed(backend.NoteData{ID: "n2", Text: "new", ModifiedAt: 30, CreatedAt: 30, Version: 1})
	if err := e.runCycle(context.Background()); err != nil {
		t.Fatalf("second cycle: %v", err)
	}

	n2, err := store.GetByID("n2")
	if err != nil {
		t.Fatalf("get n2: %v", err)
	}
	if n2.Text != "new" {
		t.Errorf("unexpected n2: %+v", n2)
	}
}

func TestResolveEntry_LocalServerVersionAheadKeepsLocal(t *testing.T) {
	store := newTestStore(t)
	sv := 5
	if err := store.ApplyRemote(cache.Note{ID: "n1", LocalVersion: 1, ServerVersion: &sv, Text: "authoritative", ModifiedAt: 1, CreatedAt: 1}); err != nil {
		t.Fatalf("seed local: %v", err)
	}

	entry := backend.IndexEntry{ID: "n1", Version: 3}
	remote := backend.NoteData{ID: "n1", Text: "stale", ModifiedAt: 1, CreatedAt: 1, Version: 3}
	if err := resolveEntry(store, zerolog.Nop(), entry, remote); err != nil {
		t.Fatalf("resolveEntry: %v", err)
	}

	got, err := store.GetByID("n1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Text != "authoritative" {
		t.Errorf("expected local row to win, got %q", got.Text)
	}
}

func TestResolveEntry_EqualVersionIsNoOp(t *testing.T) {
	store := newTestStore(t)
	sv := 2
	if err := store.ApplyRemote(cache.Note{ID: "n1", LocalVersion: 3, ServerVersion: &sv, Text: "current", ModifiedAt: 1, CreatedAt: 1}); err != nil {
		t.Fatalf("seed local: %v", err)
	}

	entry := backend.IndexEntry{ID: "n1", Version: 2}
	remote := backend.NoteData{ID: "n1", Text: "ignored", ModifiedAt: 1, CreatedAt: 1, Version: 2}
	if err := resolveEntry(store, zerolog.Nop(), entry, remote); err != nil {
		t.Fatalf("resolveEntry: %v", err)
	}

	got, err := store.GetByID("n1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Text != "current" || got.LocalVersion != 3 {
		t.Errorf("expected no-op on equal version, got %+v", got)
	}
}

func TestEngine_FetchNotFoundDegradesToTombstone(t *testing.T) {
	store := newTestStore(t)
	if err := store.InsertNew(cache.Note{ID: "n1", Text: "x", ModifiedAt: 1, CreatedAt: 1}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	client := backend.NewFakeClient() // never seeded, Fetch returns NotFound
	e := NewEngine(store, client, "bucket", time.Minute, zerolog.Nop())

	entry := backend.IndexEntry{ID: "n1", Version: 1}
	if err := e.resolveEntryFetching(context.Background(), entry); err != nil {
		t.Fatalf("resolveEntryFetching: %v", err)
	}

	got, err := store.GetByID("n1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Trash || !got.SyncDeleted {
		t.Errorf("expected tombstone, got %+v", got)
	}
}

func TestEngine_StopsAfterMaxConsecutiveErrors(t *testing.T) {
	store := newTestStore(t)
	client := backend.NewFakeClient()
	client.IndexFail = true
	e := NewEngine(store, client, "bucket", time.Minute, zerolog.Nop())

	for i := 0; i < maxConsecutiveErrors; i++ {
		e.runOnce(context.Background())
	}

	status, err := store.Meta().Status()
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.LastStatus != statusStopped {
		t.Errorf("expected status %q after %d failures, got %q", statusStopped, maxConsecutiveErrors, status.LastStatus)
	}

	attemptsBefore, _ := store.Meta().Status()
	e.runOnce(context.Background())
	attemptsAfter, _ := store.Meta().Status()
	if attemptsAfter.LastAttemptAt != attemptsBefore.LastAttemptAt {
		t.Errorf("expected no new attempt once stopped")
	}
}

func TestBackoffFor_GrowsAndCaps(t *testing.T) {
	if backoffFor(0) != backoffBase {
		t.Errorf("expected base backoff for 0 errors, got %v", backoffFor(0))
	}
	if backoffFor(1) != backoffBase*2 {
		t.Errorf("expected 2x base for 1 error, got %v", backoffFor(1))
	}
	if backoffFor(100) != backoffCap {
		t.Errorf("expected cap for large error count, got %v", backoffFor(100))
	}
}
