package tools

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/erauner12/notarium-bridge/internal/backend"
	"github.com/erauner12/notarium-bridge/internal/cache"
	"github.com/erauner12/notarium-bridge/internal/errs"
	"github.com/erauner12/notarium-bridge/internal/patch"
	"github.com/erauner12/notarium-bridge/internal/schema"
)

// SaveNoteHandler implements both the create path (id omitted) and the
// update path (id + local_version present) of save_note (§4.6). Every save
// round-trips through the remote backend first; the local cache only
// records the save once the backend has confirmed a new server_version,
// preserving the local+remote version reconciliation invariant.
func SaveNoteHandler(ctx context.Context, tc *Context, raw json.RawMessage) (any, error) {
	var params schema.SaveNoteParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, errs.NewValidation("", "invalid arguments: "+err.Error())
		}
	}
	if err := params.Validate(); err != nil {
		return nil, errs.NewValidation("", err.Error())
	}

	if params.ID == nil || *params.ID == "" {
		return createNote(ctx, tc, params)
	}
	return updateNote(ctx, tc, params)
}

func createNote(ctx context.Context, tc *Context, params schema.SaveNoteParams) (any, error) {
	text, err := resolveText("", params)
	if err != nil {
		return nil, err
	}
	var tags []string
	if params.Tags != nil {
		tags = *params.Tags
	}

	id := uuid.NewString()
	now := time.Now().Unix()

	result, err := tc.Backend.Save(ctx, tc.Bucket, id, backend.NotePayload{
		Text: text, Tags: tags, ModifiedAt: now, CreatedAt: now,
	}, nil)
	if err != nil {
		return nil, err
	}

	version := result.NewVersion
	n := cache.Note{
		ID:            id,
		LocalVersion:  1,
		ServerVersion: &version,
		Text:          text,
		Tags:          tags,
		ModifiedAt:    now,
		CreatedAt:     now,
	}
	if err := tc.Store.InsertNew(n); err != nil {
		return nil, errs.NewDb("failed to persist new note locally after remote save", err)
	}
	return toDetail(n), nil
}

func updateNote(ctx context.Context, tc *Context, params schema.SaveNoteParams) (any, error) {
	id := *params.ID
	existing, err := tc.Store.GetByIDAndVersion(id, *params.LocalVersion)
	if err == cache.ErrNotFound {
		return nil, errs.NewNotFound(id)
	}
	if err == cache.ErrVersionConflict {
		return nil, errs.NewBackend(errs.SubConflict, 409, "local_version does not match stored note").WithResolution("re-fetch and re-apply")
	}
	if err != nil {
		return nil, errs.NewDb("get_note lookup failed", err)
	}

	text, err := resolveText(existing.Text, params)
	if err != nil {
		return nil, err
	}
	tags := existing.Tags
	if params.Tags != nil {
		tags = *params.Tags
	}
	trash := existing.Trash
	if params.Trash != nil {
		trash = *params.Trash
	}

	baseVersion := existing.ServerVersion
	if params.ServerVersion != nil {
		baseVersion = params.ServerVersion
	}

	now := time.Now().Unix()
	result, err := tc.Backend.Save(ctx, tc.Bucket, id, backend.NotePayload{
		Text: text, Tags: tags, ModifiedAt: now, CreatedAt: existing.CreatedAt, Deleted: trash,
	}, baseVersion)
	if err != nil {
		return nil, err
	}

	version := result.NewVersion
	n := cache.Note{
		ID:            id,
		LocalVersion:  existing.LocalVersion + 1,
		ServerVersion: &version,
		Text:          text,
		Tags:          tags,
		ModifiedAt:    now,
		CreatedAt:     existing.CreatedAt,
		Trash:         trash,
	}
	if err := tc.Store.UpdateAfterSave(n); err != nil {
		return nil, errs.NewDb("failed to persist saved note locally", err)
	}
	return toDetail(n), nil
}

// resolveText applies text or text_patch against base, returning base
// unchanged when the caller supplied neither (a tags/trash-only save).
func resolveText(base string, params schema.SaveNoteParams) (string, error) {
	if params.Text != nil {
		return *params.Text, nil
	}
	if len(params.TextPatch) > 0 {
		ops, err := schema.ToEngineOps(params.TextPatch)
		if err != nil {
			return "", errs.NewValidation("text_patch", err.Error())
		}
		return patch.Apply(base, ops), nil
	}
	return base, nil
}

func SaveNoteDefinition() Definition {
	return Definition{
		Name:        "save_note",
		Description: "Create a new note or update an existing one by full text replacement or line patch.",
		InputSchema: schema.SaveNoteSchema(),
	}
}
