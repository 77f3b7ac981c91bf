package backend

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/erauner12/notarium-bridge/internal/errs"
)

// FakeClient is an in-memory Client double, the primary vehicle for sync
// engine and tool handler tests per the bridge's test-doubles-over-HTTP-mocks
// convention.
type FakeClient struct {
	mu        sync.Mutex
	notes     map[string]NoteData // by id
	order     []string            // insertion order, for deterministic index pages
	current   int                 // monotonically increasing cursor value
	AuthFail  bool
	IndexFail bool // forces every Index call to fail, for exercising sync-error paths
}

func NewFakeClient() *FakeClient {
	return &FakeClient{notes: make(map[string]NoteData)}
}

func (f *FakeClient) Authorize(ctx context.Context, username, password string) error {
	if f.AuthFail || username == "" || password == "" {
		return errs.NewAuth("Invalid credentials")
	}
	return nil
}

// Seed inserts or overwrites a note directly, bumping the fake's cursor.
func (f *FakeClient) Seed(n NoteData) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.notes[n.ID]; !exists {
		f.order = append(f.order, n.ID)
	}
	f.notes[n.ID] = n
	f.current++
}

func (f *FakeClient) Index(ctx context.Context, bucket string, opts IndexOpts) (IndexPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.IndexFail {
		return IndexPage{}, errs.NewBackend(errs.SubUnavailable, 503, "index unavailable")
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultIndexPageLimit
	}

	start := 0
	if opts.Mark != "" {
		fmt.Sscanf(opts.Mark, "%d", &start)
	}

	ids := append([]string(nil), f.order...)
	sort.Strings(ids) // deterministic across runs

	var page IndexPage
	end := start + limit
	if end > len(ids) {
		end = len(ids)
	}
	for _, id := range ids[start:end] {
		n := f.notes[id]
		entry := IndexEntry{ID: n.ID, Version: n.Version}
		if opts.IncludeData {
			cp := n
			entry.Data = &cp
		}
		page.Entries = append(page.Entries, entry)
	}
	if end < len(ids) {
		page.Cursor = fmt.Sprintf("%d", end)
	} else {
		page.Cursor = fmt.Sprintf("current-%d", f.current)
	}
	return page, nil
}

func (f *FakeClient) Fetch(ctx context.Context, bucket, id string, version int) (NoteData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.notes[id]
	if !ok {
		return NoteData{}, errs.NewNotFound(id)
	}
	return n, nil
}

func (f *FakeClient) Save(ctx context.Context, bucket, id string, payload NotePayload, baseVersion *int) (SaveResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	existing, exists := f.notes[id]
	if exists && baseVersion != nil && *baseVersion != existing.Version {
		return SaveResult{}, errs.NewBackend(errs.SubConflict, 409, "version conflict").WithResolution("re-fetch and re-apply")
	}

	newVersion := 1
	if exists {
		newVersion = existing.Version + 1
	}

	n := NoteData{
		ID:         id,
		Text:       payload.Text,
		Tags:       payload.Tags,
		ModifiedAt: payload.ModifiedAt,
		CreatedAt:  payload.CreatedAt,
		Deleted:    payload.Deleted,
		Version:    newVersion,
	}
	if !exists {
		f.order = append(f.order, id)
	}
	f.notes[id] = n
	f.current++

	cp := n
	return SaveResult{NewVersion: newVersion, Echoed: &cp}, nil
}
