package tools

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/erauner12/notarium-bridge/internal/cache"
	"github.com/erauner12/notarium-bridge/internal/errs"
	"github.com/erauner12/notarium-bridge/internal/schema"
)

// NoteDetail is the full note body returned by get_note.
type NoteDetail struct {
	ID             string   `json:"id"`
	LocalVersion   int      `json:"local_version"`
	ServerVersion  *int     `json:"server_version,omitempty"`
	Text           string   `json:"text"`
	Tags           []string `json:"tags"`
	ModifiedAt     int64    `json:"modified_at"`
	CreatedAt      int64    `json:"created_at"`
	Trash          bool     `json:"trash"`
	LineCount      int      `json:"line_count"`
	TextIsPartial  bool     `json:"text_is_partial"`
	RangeLineCount int      `json:"range_line_count"`
}

// GetNoteResult covers both the single-id and batch-ids response shapes.
type GetNoteResult struct {
	Notes    []NoteDetail `json:"notes"`
	NotFound []string     `json:"not_found,omitempty"`
}

func GetNoteHandler(ctx context.Context, tc *Context, raw json.RawMessage) (any, error) {
	var params schema.GetNoteParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, errs.NewValidation("", "invalid arguments: "+err.Error())
		}
	}
	if err := params.Validate(); err != nil {
		return nil, errs.NewValidation("", err.Error())
	}

	if params.ID != "" {
		n, err := fetchOne(tc, params.ID, params.LocalVersion)
		if err != nil {
			return nil, err
		}
		detail := toDetail(n)
		applyRange(&detail, params.RangeLineStart, params.RangeLineCount)
		return GetNoteResult{Notes: []NoteDetail{detail}}, nil
	}

	var result GetNoteResult
	for _, id := range params.IDs {
		n, err := fetchOne(tc, id, nil)
		if err != nil {
			if e, ok := errs.As(err); ok && e.Category == errs.CategoryNotFound {
				result.NotFound = append(result.NotFound, id)
				continue
			}
			return nil, err
		}
		result.Notes = append(result.Notes, toDetail(n))
	}
	return result, nil
}

// fetchOne resolves a single note by id, with a best-effort full-text-search
// fallback when the exact identifier misses: a caller that only has a
// fragment or a stale id from an earlier list_notes preview still finds the
// note as long as the fragment resolves unambiguously.
func fetchOne(tc *Context, id string, localVersion *int) (cache.Note, error) {
	var n cache.Note
	var err error
	if localVersion != nil {
		n, err = tc.Store.GetByIDAndVersion(id, *localVersion)
	} else {
		n, err = tc.Store.GetByID(id)
	}
	if err == nil {
		return n, nil
	}
	if err == cache.ErrVersionConflict {
		return cache.Note{}, errs.NewBackend(errs.SubConflict, 409, "local_version does not match stored note").WithResolution("re-fetch and re-apply")
	}
	if err != cache.ErrNotFound {
		return cache.Note{}, errs.NewDb("get_note lookup failed", err)
	}

	res, searchErr := tc.Store.Search(cache.SearchParams{Term: id, TrashStatus: "any", Limit: 2})
	if searchErr == nil && len(res.Notes) == 1 {
		return res.Notes[0], nil
	}
	return cache.Note{}, errs.NewNotFound(id)
}

func toDetail(n cache.Note) NoteDetail {
	return NoteDetail{
		ID:            n.ID,
		LocalVersion:  n.LocalVersion,
		ServerVersion: n.ServerVersion,
		Text:          n.Text,
		Tags:          n.Tags,
		ModifiedAt:    n.ModifiedAt,
		CreatedAt:     n.CreatedAt,
		Trash:         n.Trash,
		LineCount:     len(strings.Split(n.Text, "\n")),
	}
}

// applyRange slices Text down to [start, start+count) 1-based lines when a
// range was requested; count==0 means through end of document. RangeLineCount
// reports how many lines actually landed in Text, including the boundary
// case where start is past the end of the note (0 lines, still partial).
func applyRange(d *NoteDetail, start, count *int) {
	if start == nil {
		d.RangeLineCount = len(strings.Split(d.Text, "\n"))
		return
	}
	d.TextIsPartial = true
	lines := strings.Split(d.Text, "\n")
	from := *start - 1
	if from < 0 {
		from = 0
	}
	if from >= len(lines) {
		d.Text = ""
		d.RangeLineCount = 0
		return
	}
	to := len(lines)
	if count != nil && *count > 0 && from+*count < to {
		to = from + *count
	}
	d.Text = strings.Join(lines[from:to], "\n")
	d.RangeLineCount = to - from
}

func GetNoteDefinition() Definition {
	return Definition{
		Name:        "get_note",
		Description: "Retrieve one or more cached notes by id, with optional version pinning and line-range slicing.",
		InputSchema: schema.GetNoteSchema(),
	}
}
