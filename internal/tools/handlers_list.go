package tools

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/erauner12/notarium-bridge/internal/cache"
	"github.com/erauner12/notarium-bridge/internal/errs"
	"github.com/erauner12/notarium-bridge/internal/schema"
)

// ListNotesResult is the list_notes response body (§4.7).
type ListNotesResult struct {
	Notes       []NoteSummary `json:"notes"`
	TotalItems  int           `json:"total_items"`
	CurrentPage int           `json:"current_page"`
	TotalPages  int           `json:"total_pages"`
	NextPage    *int          `json:"next_page,omitempty"`
	Limit       int           `json:"limit"`
}

type NoteSummary struct {
	ID           string   `json:"id"`
	LocalVersion int      `json:"local_version"`
	Preview      string   `json:"preview"`
	Tags         []string `json:"tags"`
	ModifiedAt   int64    `json:"modified_at"`
	CreatedAt    int64    `json:"created_at"`
	Trash        bool     `json:"trash"`
}

func ListNotesHandler(ctx context.Context, tc *Context, raw json.RawMessage) (any, error) {
	var params schema.ListNotesParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, errs.NewValidation("", "invalid arguments: "+err.Error())
		}
	}
	if err := params.Validate(); err != nil {
		return nil, errs.NewValidation("", err.Error())
	}

	term, tags, before, after := extractQueryTokens(params.Query, params.Tags)

	sp := cache.SearchParams{
		Term:        term,
		Tags:        tags,
		TrashStatus: params.TrashStatus,
		SortBy:      params.SortBy,
		SortOrder:   params.SortOrder,
		Limit:       params.Limit,
		Page:        params.Page,
	}
	if sp.Limit <= 0 {
		sp.Limit = 20
	}
	if sp.Page <= 0 {
		sp.Page = 1
	}

	if before != "" {
		if ms, ok := parseDateBound(before, true); ok {
			sp.ModifiedAtMax = &ms
		}
	} else if params.DateBefore != "" {
		if ms, ok := parseDateBound(params.DateBefore, true); ok {
			sp.ModifiedAtMax = &ms
		}
	}
	if after != "" {
		if ms, ok := parseDateBound(after, false); ok {
			sp.ModifiedAtMin = &ms
		}
	} else if params.DateAfter != "" {
		if ms, ok := parseDateBound(params.DateAfter, false); ok {
			sp.ModifiedAtMin = &ms
		}
	}

	res, err := tc.Store.Search(sp)
	if err != nil {
		return nil, errs.NewDb("list_notes search failed", err)
	}

	previewLines := params.PreviewLines
	if previewLines <= 0 {
		previewLines = 3
	}

	totalPages := (res.TotalItems + sp.Limit - 1) / sp.Limit
	if totalPages < 1 {
		totalPages = 1
	}
	out := ListNotesResult{TotalItems: res.TotalItems, CurrentPage: sp.Page, TotalPages: totalPages, Limit: sp.Limit}
	if sp.Page < totalPages {
		next := sp.Page + 1
		out.NextPage = &next
	}
	for _, n := range res.Notes {
		out.Notes = append(out.Notes, NoteSummary{
			ID:           n.ID,
			LocalVersion: n.LocalVersion,
			Preview:      previewOf(n.Text, previewLines),
			Tags:         n.Tags,
			ModifiedAt:   n.ModifiedAt,
			CreatedAt:    n.CreatedAt,
			Trash:        n.Trash,
		})
	}
	return out, nil
}

// extractQueryTokens pulls tag:/before:/after: tokens out of a free-text
// query string (§4.7), returning the remaining text as the FTS search term.
func extractQueryTokens(query string, explicitTags []string) (term string, tags []string, before, after string) {
	tags = append(tags, explicitTags...)
	var remaining []string
	for _, tok := range strings.Fields(query) {
		switch {
		case strings.HasPrefix(tok, "tag:"):
			tags = append(tags, strings.TrimPrefix(tok, "tag:"))
		case strings.HasPrefix(tok, "before:"):
			before = strings.TrimPrefix(tok, "before:")
		case strings.HasPrefix(tok, "after:"):
			after = strings.TrimPrefix(tok, "after:")
		default:
			remaining = append(remaining, tok)
		}
	}
	term = strings.Join(remaining, " ")
	return
}

func parseDateBound(s string, endOfDay bool) (int64, bool) {
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		return 0, false
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Second)
	}
	return t.Unix(), true
}

// previewOf returns the first lines of text, each trimmed of surrounding
// whitespace, falling back to a placeholder for an empty note (§4.7).
func previewOf(text string, lines int) string {
	if strings.TrimSpace(text) == "" {
		return "(empty note)"
	}
	split := strings.Split(text, "\n")
	if len(split) > lines {
		split = split[:lines]
	}
	for i, line := range split {
		split[i] = strings.TrimSpace(line)
	}
	return strings.Join(split, "\n")
}

// Definition returns the tools/list descriptor for list_notes.
func ListNotesDefinition() Definition {
	return Definition{
		Name:        "list_notes",
		Description: "List and search cached notes by free text, tags, trash status, and date range.",
		InputSchema: schema.ListNotesSchema(),
	}
}
