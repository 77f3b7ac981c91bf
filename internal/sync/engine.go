// Package sync implements the background reconciliation loop (§4.3): a
// single-writer pull engine that keeps the local cache (internal/cache)
// converged with the remote backend (internal/backend) on a fixed interval,
// applying server-wins conflict resolution (conflict.go) to every entry it
// sees.
package sync

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/erauner12/notarium-bridge/internal/backend"
	"github.com/erauner12/notarium-bridge/internal/cache"
	"github.com/erauner12/notarium-bridge/internal/errs"
)

const (
	statusSuccess = "success"
	statusError   = "error"
	statusStopped = "stopped (max errors)"

	backoffBase = 60 * time.Second
	backoffCap  = time.Hour

	// maxConsecutiveErrors is §4.3's stop threshold: once reached, the
	// engine parks itself and stops attempting cycles until the count is
	// cleared by a process restart or a reset_cache.
	maxConsecutiveErrors = 5
)

// Engine owns the single-writer sync loop for one bucket (one signed-in
// account). Only one Engine should ever be driving a given cache.Store.
type Engine struct {
	store   *cache.Store
	client  backend.Client
	bucket  string
	logger  zerolog.Logger
	interval time.Duration
}

func NewEngine(store *cache.Store, client backend.Client, bucket string, interval time.Duration, logger zerolog.Logger) *Engine {
	return &Engine{store: store, client: client, bucket: bucket, interval: interval, logger: logger}
}

// Run drives the reconciliation loop until ctx is cancelled. It runs one
// cycle immediately, then waits either the configured interval or a
// backoff period derived from consecutive failures (§4.3), whichever
// applies.
func (e *Engine) Run(ctx context.Context) error {
	// A new process starts with a clean consecutive-error count, which also
	// lifts a max-errors stop persisted by a previous run.
	meta := e.store.Meta()
	if st, err := meta.Status(); err == nil && st.ConsecutiveErrors > 0 {
		_ = meta.RecordOutcome(0, st.LastDurationMs, st.LastStatus, 0)
	}
	for {
		wait := e.runOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

// runOnce executes a single sync cycle and returns how long to wait before
// the next one. Once consecutive_error_count reaches maxConsecutiveErrors
// the engine stops attempting cycles entirely (§4.3) — it only resumes after
// a process restart or a reset_cache clears sync_meta, either of which drops
// the error count back to zero.
func (e *Engine) runOnce(ctx context.Context) time.Duration {
	meta := e.store.Meta()

	status, statusErr := meta.Status()
	if statusErr == nil && status.ConsecutiveErrors >= maxConsecutiveErrors {
		e.logger.Error().Int("consecutive_errors", status.ConsecutiveErrors).Msg("sync engine stopped: max consecutive errors reached")
		_ = meta.RecordOutcome(0, 0, statusStopped, status.ConsecutiveErrors)
		return e.interval
	}

	start := time.Now()
	_ = meta.RecordAttempt(start.Unix())

	err := e.runCycle(ctx)

	consecutiveErrors := status.ConsecutiveErrors
	durationMs := time.Since(start).Milliseconds()
	if err != nil {
		consecutiveErrors++
		e.logger.Warn().Err(err).Int("consecutive_errors", consecutiveErrors).Msg("sync cycle failed")
		syncStatus := statusError
		if consecutiveErrors >= maxConsecutiveErrors {
			syncStatus = statusStopped
			e.logger.Error().Int("consecutive_errors", consecutiveErrors).Msg("sync engine stopped: max consecutive errors reached")
		}
		_ = meta.RecordOutcome(0, durationMs, syncStatus, consecutiveErrors)
		return backoffFor(consecutiveErrors)
	}

	e.logger.Debug().Int64("duration_ms", durationMs).Msg("sync cycle completed")
	_ = meta.RecordOutcome(time.Now().Unix(), durationMs, statusSuccess, 0)
	return e.interval
}

// backoffFor computes the exponential backoff for n consecutive failures:
// min(2^n * 60s, 1h).
func backoffFor(n int) time.Duration {
	d := backoffBase
	for i := 0; i < n && d < backoffCap; i++ {
		d *= 2
	}
	if d > backoffCap {
		d = backoffCap
	}
	return d
}

// runCycle performs either a full sync (no backend cursor persisted yet) or
// a delta sync (cursor present), then resolves every entry it observes.
func (e *Engine) runCycle(ctx context.Context) error {
	meta := e.store.Meta()
	cursor, err := meta.BackendCursor()
	if err != nil {
		return err
	}

	var nextCursor string
	if cursor == "" {
		nextCursor, err = e.fullSync(ctx)
	} else {
		nextCursor, err = e.deltaSync(ctx, cursor)
	}
	if err != nil {
		return err
	}
	if nextCursor != "" {
		return meta.SetBackendCursor(nextCursor)
	}
	return nil
}

// fullSync paginates the entire index via the mark token, resolving every
// entry as it goes, and returns the terminal cursor to be persisted as the
// delta-sync watermark going forward.
const syncPageLimit = 100

func (e *Engine) fullSync(ctx context.Context) (string, error) {
	mark := ""
	var last string
	for {
		page, err := e.client.Index(ctx, e.bucket, backend.IndexOpts{Mark: mark, Limit: syncPageLimit})
		if err != nil {
			return "", err
		}
		if err := e.resolvePage(ctx, page); err != nil {
			return "", err
		}
		last = page.Cursor
		if len(page.Entries) < syncPageLimit {
			break
		}
		mark = page.Cursor
	}
	return last, nil
}

// deltaSync pulls everything changed since the persisted watermark.
func (e *Engine) deltaSync(ctx context.Context, since string) (string, error) {
	mark := ""
	last := since
	for {
		page, err := e.client.Index(ctx, e.bucket, backend.IndexOpts{Since: since, Mark: mark, IncludeData: true, Limit: syncPageLimit})
		if err != nil {
			return "", err
		}
		if err := e.resolvePage(ctx, page); err != nil {
			return "", err
		}
		if page.Cursor != "" {
			last = page.Cursor
		}
		if len(page.Entries) < syncPageLimit {
			break
		}
		mark = page.Cursor
	}
	return last, nil
}

func (e *Engine) resolvePage(ctx context.Context, page backend.IndexPage) error {
	for _, entry := range page.Entries {
		if err := e.resolveEntryFetching(ctx, entry); err != nil {
			return err
		}
	}
	return nil
}

// resolveEntryFetching fetches the full note data for entry (unless the
// index already inlined it) and hands it to the conflict resolver. A
// NotFound from the backend degrades to a local tombstone rather than
// failing the whole cycle, since a single vanished note is expected
// best-effort behavior, not a sync-halting error.
func (e *Engine) resolveEntryFetching(ctx context.Context, entry backend.IndexEntry) error {
	var data backend.NoteData
	if entry.Data != nil {
		data = *entry.Data
	} else {
		fetched, err := e.client.Fetch(ctx, e.bucket, entry.ID, entry.Version)
		if err != nil {
			if ae, ok := errs.As(err); ok && ae.Category == errs.CategoryNotFound {
				return e.store.MarkTombstone(entry.ID)
			}
			return err
		}
		data = fetched
	}
	return resolveEntry(e.store, e.logger, entry, data)
}
