package tools

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/erauner12/notarium-bridge/internal/backend"
	"github.com/erauner12/notarium-bridge/internal/cache"
	"github.com/erauner12/notarium-bridge/internal/errs"
	"github.com/erauner12/notarium-bridge/internal/schema"
)

// StatsResult is the get_stats payload (§4.8): cache size, schema version,
// sync health, and process memory footprint.
type StatsResult struct {
	TotalNotes        int     `json:"total_notes"`
	CacheFileBytes    int64   `json:"cache_file_bytes"`
	SchemaVersion     int     `json:"schema_version"`
	BackendCursor     string  `json:"backend_cursor,omitempty"`
	LastSyncStatus    string  `json:"last_sync_status"`
	LastSyncAttemptAt int64   `json:"last_sync_attempt_at"`
	LastSyncSuccessAt int64   `json:"last_sync_success_at"`
	ConsecutiveErrors int     `json:"consecutive_sync_errors"`
	UptimeSeconds     int64   `json:"uptime_seconds"`
	ProcessRSSMiB     float64 `json:"process_rss_mib,omitempty"`
}

// ManageResult is the envelope for the mutating manage_notes actions.
type ManageResult struct {
	Action  string      `json:"action"`
	OK      bool        `json:"ok"`
	Note    *NoteDetail `json:"note,omitempty"`
	Message string      `json:"message,omitempty"`
}

func ManageNotesHandler(ctx context.Context, tc *Context, raw json.RawMessage) (any, error) {
	var params schema.ManageNotesParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, errs.NewValidation("", "invalid arguments: "+err.Error())
		}
	}
	if err := params.Validate(); err != nil {
		return nil, errs.NewValidation("", err.Error())
	}

	switch params.Action {
	case "get_stats":
		return getStats(tc)
	case "reset_cache":
		return resetCache(tc)
	case "trash":
		return setTrash(ctx, tc, params.ID, *params.LocalVersion, true)
	case "untrash":
		return setTrash(ctx, tc, params.ID, *params.LocalVersion, false)
	case "delete_permanently":
		return deletePermanently(tc, params.ID)
	default:
		return nil, errs.NewValidation("action", "unsupported action: "+params.Action)
	}
}

func getStats(tc *Context) (any, error) {
	total, err := tc.Store.TotalNotes()
	if err != nil {
		return nil, errs.NewDb("get_stats: counting notes", err)
	}
	size, err := tc.Store.FileSize()
	if err != nil {
		return nil, errs.NewDb("get_stats: reading cache file size", err)
	}
	version, err := tc.Store.SchemaVersion()
	if err != nil {
		return nil, errs.NewDb("get_stats: reading schema version", err)
	}
	status, err := tc.Store.Meta().Status()
	if err != nil {
		return nil, errs.NewDb("get_stats: reading sync status", err)
	}
	cursor, err := tc.Store.Meta().BackendCursor()
	if err != nil {
		return nil, errs.NewDb("get_stats: reading backend cursor", err)
	}

	result := StatsResult{
		TotalNotes:        total,
		CacheFileBytes:    size,
		SchemaVersion:     version,
		BackendCursor:     cursor,
		LastSyncStatus:    status.LastStatus,
		LastSyncAttemptAt: status.LastAttemptAt,
		LastSyncSuccessAt: status.LastSuccessAt,
		ConsecutiveErrors: status.ConsecutiveErrors,
		UptimeSeconds:     int64(time.Since(tc.StartedAt).Seconds()),
	}

	if proc, err := process.NewProcess(int32(processPID())); err == nil {
		if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
			result.ProcessRSSMiB = float64(mem.RSS) / (1024 * 1024)
		}
	}

	return result, nil
}

func resetCache(tc *Context) (any, error) {
	if err := tc.Store.Reset(); err != nil {
		return nil, errs.NewDb("reset_cache failed", err)
	}
	return ManageResult{Action: "reset_cache", OK: true, Message: "cache reset; a full resync will run on the next sync cycle"}, nil
}

func setTrash(ctx context.Context, tc *Context, id string, localVersion int, trash bool) (any, error) {
	existing, err := tc.Store.GetByIDAndVersion(id, localVersion)
	if err == cache.ErrNotFound {
		return nil, errs.NewNotFound(id)
	}
	if err == cache.ErrVersionConflict {
		return nil, errs.NewBackend(errs.SubConflict, 409, "local_version does not match stored note").WithResolution("re-fetch and re-apply")
	}
	if err != nil {
		return nil, errs.NewDb("trash/untrash lookup failed", err)
	}
	if existing.Trash == trash {
		detail := toDetail(existing)
		return ManageResult{Action: actionName(trash), OK: true, Note: &detail}, nil
	}

	now := time.Now().Unix()
	result, err := tc.Backend.Save(ctx, tc.Bucket, id, backend.NotePayload{
		Text: existing.Text, Tags: existing.Tags, ModifiedAt: now, CreatedAt: existing.CreatedAt, Deleted: trash,
	}, existing.ServerVersion)
	if err != nil {
		return nil, err
	}

	version := result.NewVersion
	n := cache.Note{
		ID:            id,
		LocalVersion:  existing.LocalVersion + 1,
		ServerVersion: &version,
		Text:          existing.Text,
		Tags:          existing.Tags,
		ModifiedAt:    now,
		CreatedAt:     existing.CreatedAt,
		Trash:         trash,
	}
	if err := tc.Store.UpdateAfterSave(n); err != nil {
		return nil, errs.NewDb("failed to persist trash state locally", err)
	}

	detail := toDetail(n)
	return ManageResult{Action: actionName(trash), OK: true, Note: &detail}, nil
}

func actionName(trash bool) string {
	if trash {
		return "trash"
	}
	return "untrash"
}

// deletePermanently removes a row locally only: hard-delete propagation to
// peers is best-effort and out of scope, so this never calls the backend.
func deletePermanently(tc *Context, id string) (any, error) {
	if _, err := tc.Store.GetByID(id); err == cache.ErrNotFound {
		return nil, errs.NewNotFound(id)
	} else if err != nil {
		return nil, errs.NewDb("delete_permanently lookup failed", err)
	}
	if err := tc.Store.DeletePermanently(id); err != nil {
		return nil, errs.NewDb("delete_permanently failed", err)
	}
	return ManageResult{Action: "delete_permanently", OK: true}, nil
}

func ManageNotesDefinition() Definition {
	return Definition{
		Name:        "manage_notes",
		Description: "Cache and lifecycle operations: get_stats, reset_cache, trash, untrash, delete_permanently.",
		InputSchema: schema.ManageNotesSchema(),
	}
}
