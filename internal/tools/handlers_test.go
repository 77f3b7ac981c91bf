package tools

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/erauner12/notarium-bridge/internal/backend"
	"github.com/erauner12/notarium-bridge/internal/cache"
	"github.com/erauner12/notarium-bridge/internal/errs"
)

func newTestContext(t *testing.T) *Context {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.db")
	store, _, err := cache.Open(path, cache.Config{Username: "alice"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewContext(store, backend.NewFakeClient(), "bucket")
}

func TestSaveNoteHandler_CreatesNewNote(t *testing.T) {
	tc := newTestContext(t)
	args, _ := json.Marshal(map[string]any{"text": "hello world", "tags": []string{"work"}})

	res, err := SaveNoteHandler(context.Background(), tc, args)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	detail := res.(NoteDetail)
	if detail.Text != "hello world" || detail.LocalVersion != 1 {
		t.Errorf("unexpected detail: %+v", detail)
	}
}

func TestSaveNoteHandler_UpdateRequiresLocalVersion(t *testing.T) {
	tc := newTestContext(t)
	id := "n1"
	args, _ := json.Marshal(map[string]any{"id": id})
	if _, err := SaveNoteHandler(context.Background(), tc, args); err == nil {
		t.Error("expected validation error when id present without local_version")
	}
}

func TestSaveNoteHandler_UpdateAppliesPatch(t *testing.T) {
	tc := newTestContext(t)
	createArgs, _ := json.Marshal(map[string]any{"text": "a\nb\nc"})
	created, err := SaveNoteHandler(context.Background(), tc, createArgs)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := created.(NoteDetail).ID

	updateArgs, _ := json.Marshal(map[string]any{
		"id":            id,
		"local_version": 1,
		"text_patch": []map[string]any{
			{"op": "mod", "line_number": 2, "value": "B"},
		},
	})
	updated, err := SaveNoteHandler(context.Background(), tc, updateArgs)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	detail := updated.(NoteDetail)
	if detail.Text != "a\nB\nc" || detail.LocalVersion != 2 {
		t.Errorf("unexpected detail after patch: %+v", detail)
	}
}

func TestGetNoteHandler_RangeSlicing(t *testing.T) {
	tc := newTestContext(t)
	createArgs, _ := json.Marshal(map[string]any{"text": "one\ntwo\nthree\nfour"})
	created, _ := SaveNoteHandler(context.Background(), tc, createArgs)
	id := created.(NoteDetail).ID

	start, count := 2, 2
	getArgs, _ := json.Marshal(map[string]any{"id": id, "range_line_start": start, "range_line_count": count})
	res, err := GetNoteHandler(context.Background(), tc, getArgs)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	result := res.(GetNoteResult)
	if len(result.Notes) != 1 || result.Notes[0].Text != "two\nthree" {
		t.Errorf("unexpected range slice: %+v", result)
	}
	if !result.Notes[0].TextIsPartial || result.Notes[0].RangeLineCount != 2 {
		t.Errorf("expected text_is_partial=true range_line_count=2, got %+v", result.Notes[0])
	}
}

func TestGetNoteHandler_RangeStartPastEndIsEmptyPartial(t *testing.T) {
	tc := newTestContext(t)
	createArgs, _ := json.Marshal(map[string]any{"text": "one\ntwo"})
	created, _ := SaveNoteHandler(context.Background(), tc, createArgs)
	id := created.(NoteDetail).ID

	start := 50
	getArgs, _ := json.Marshal(map[string]any{"id": id, "range_line_start": start})
	res, err := GetNoteHandler(context.Background(), tc, getArgs)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	result := res.(GetNoteResult)
	if len(result.Notes) != 1 {
		t.Fatalf("expected one note, got %+v", result)
	}
	note := result.Notes[0]
	if note.Text != "" || !note.TextIsPartial || note.RangeLineCount != 0 {
		t.Errorf("expected empty partial range at the boundary, got %+v", note)
	}
}

func TestGetNoteHandler_BatchReportsNotFound(t *testing.T) {
	tc := newTestContext(t)
	createArgs, _ := json.Marshal(map[string]any{"text": "x"})
	created, _ := SaveNoteHandler(context.Background(), tc, createArgs)
	id := created.(NoteDetail).ID

	args, _ := json.Marshal(map[string]any{"ids": []string{id, "missing-id"}})
	res, err := GetNoteHandler(context.Background(), tc, args)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	result := res.(GetNoteResult)
	if len(result.Notes) != 1 || len(result.NotFound) != 1 || result.NotFound[0] != "missing-id" {
		t.Errorf("unexpected batch result: %+v", result)
	}
}

func TestListNotesHandler_FiltersByTagToken(t *testing.T) {
	tc := newTestContext(t)
	a, _ := json.Marshal(map[string]any{"text": "shopping list", "tags": []string{"home"}})
	b, _ := json.Marshal(map[string]any{"text": "work plan", "tags": []string{"work"}})
	SaveNoteHandler(context.Background(), tc, a)
	SaveNoteHandler(context.Background(), tc, b)

	args, _ := json.Marshal(map[string]any{"query": "tag:home"})
	res, err := ListNotesHandler(context.Background(), tc, args)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	result := res.(ListNotesResult)
	if result.TotalItems != 1 || len(result.Notes) != 1 {
		t.Errorf("unexpected list result: %+v", result)
	}
}

func TestManageNotesHandler_TrashThenUntrash(t *testing.T) {
	tc := newTestContext(t)
	createArgs, _ := json.Marshal(map[string]any{"text": "x"})
	created, _ := SaveNoteHandler(context.Background(), tc, createArgs)
	id := created.(NoteDetail).ID

	trashArgs, _ := json.Marshal(map[string]any{"action": "trash", "id": id, "local_version": 1})
	res, err := ManageNotesHandler(context.Background(), tc, trashArgs)
	if err != nil {
		t.Fatalf("trash: %v", err)
	}
	mr := res.(ManageResult)
	if !mr.OK || mr.Note == nil || !mr.Note.Trash {
		t.Errorf("unexpected trash result: %+v", mr)
	}

	untrashArgs, _ := json.Marshal(map[string]any{"action": "untrash", "id": id, "local_version": 2})
	res2, err := ManageNotesHandler(context.Background(), tc, untrashArgs)
	if err != nil {
		t.Fatalf("untrash: %v", err)
	}
	mr2 := res2.(ManageResult)
	if !mr2.OK || mr2.Note == nil || mr2.Note.Trash {
		t.Errorf("unexpected untrash result: %+v", mr2)
	}
}

func TestManageNotesHandler_DeletePermanentlyIsLocalOnly(t *testing.T) {
	tc := newTestContext(t)
	createArgs, _ := json.Marshal(map[string]any{"text": "x"})
	created, _ := SaveNoteHandler(context.Background(), tc, createArgs)
	id := created.(NoteDetail).ID

	args, _ := json.Marshal(map[string]any{"action": "delete_permanently", "id": id})
	if _, err := ManageNotesHandler(context.Background(), tc, args); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := tc.Store.GetByID(id); err != cache.ErrNotFound {
		t.Errorf("expected note gone from local cache, got err=%v", err)
	}
}

func TestManageNotesHandler_GetStats(t *testing.T) {
	tc := newTestContext(t)
	args, _ := json.Marshal(map[string]any{"action": "get_stats"})
	res, err := ManageNotesHandler(context.Background(), tc, args)
	if err != nil {
		t.Fatalf("get_stats: %v", err)
	}
	stats := res.(StatsResult)
	if stats.SchemaVersion == 0 {
		t.Errorf("expected non-zero schema version: %+v", stats)
	}
}

func TestRegistry_CallWrapsResultInContentBlock(t *testing.T) {
	tc := newTestContext(t)
	r := RegisterAll()

	args, _ := json.Marshal(map[string]any{"text": "hello"})
	result, err := r.Call(context.Background(), tc, CallRequest{Name: "save_note", Arguments: args})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if len(result.Content) != 1 || result.Content[0].Type != "text" {
		t.Errorf("unexpected call result: %+v", result)
	}
}

func TestRegistry_CallUnknownToolReturnsValidationError(t *testing.T) {
	tc := newTestContext(t)
	r := RegisterAll()

	_, err := r.Call(context.Background(), tc, CallRequest{Name: "does_not_exist"})
	if err == nil {
		t.Fatal("expected error for unknown tool")
	}
	e, ok := errs.As(err)
	if !ok || e.Category != errs.CategoryValidation {
		t.Errorf("expected validation category error, got %v", err)
	}
}
