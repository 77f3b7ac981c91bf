// Package backend implements the client for the remote note-sync service
// (§4.1): authorize, index, fetch, save, with the 401/429/409/404 interceptor
// contract applied uniformly across every call.
package backend

import "context"

// IndexOpts parameterizes an index call. Mark is the full-sync page token;
// Since is the delta-sync watermark. Exactly one is normally set.
type IndexOpts struct {
	Since       string
	Mark        string
	Limit       int
	IncludeData bool
}

// IndexEntry is one row of an index page: an identifier, its server revision,
// and optionally the inlined note payload (delta sync only).
type IndexEntry struct {
	ID      string
	Version int
	Data    *NoteData
}

// IndexPage is the result of one index call.
type IndexPage struct {
	Entries []IndexEntry
	Cursor  string // the "current" token to persist as backend_cursor
}

// NoteData is the remote representation of a note, as returned by fetch or
// embedded inline in an index page.
type NoteData struct {
	ID         string
	Text       string
	Tags       []string
	ModifiedAt int64
	CreatedAt  int64
	Deleted    bool
	Version    int
}

// NotePayload is what the bridge sends on a save call.
type NotePayload struct {
	Text       string
	Tags       []string
	Deleted    bool
	ModifiedAt int64
	CreatedAt  int64
}

// SaveResult is the outcome of a successful save call.
type SaveResult struct {
	NewVersion int
	Echoed     *NoteData
}

// Client is the remote-backend contract every tool handler and the sync
// engine depend on. HTTPClient is the production implementation; FakeClient
// is the in-memory test double.
type Client interface {
	Authorize(ctx context.Context, username, password string) error
	Index(ctx context.Context, bucket string, opts IndexOpts) (IndexPage, error)
	Fetch(ctx context.Context, bucket, id string, version int) (NoteData, error)
	Save(ctx context.Context, bucket, id string, payload NotePayload, baseVersion *int) (SaveResult, error)
}
