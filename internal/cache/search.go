package cache

import (
	"fmt"
	"strings"
)

// SearchParams is the resolved, already-parsed form of a list_notes request
// (§4.7). Query-string token extraction (tag:, before:, after:) happens in
// the tools layer; by the time it reaches the cache, Term is the remaining
// free-text search string.
type SearchParams struct {
	Term            string
	Tags            []string
	TrashStatus     string // active, trashed, any
	ModifiedAtMin   *int64
	ModifiedAtMax   *int64
	SortBy          string // modified_at, created_at
	SortOrder       string // ASC, DESC
	Limit           int
	Page            int
}

type SearchResult struct {
	Notes      []Note
	TotalItems int
}

// Search runs the list_notes query (§4.7): trash filter, tag membership via
// json_each, modified_at bounds, an optional FTS5 MATCH subquery, and
// rank-aware ordering when a search term is present.
func (s *Store) Search(p SearchParams) (SearchResult, error) {
	var conditions []string
	var args []any

	switch p.TrashStatus {
	case "trashed":
		conditions = append(conditions, "notes.trash = 1")
	case "any":
		// no filter
	default: // active
		conditions = append(conditions, "notes.trash = 0")
	}

	for _, tag := range p.Tags {
		conditions = append(conditions, "EXISTS (SELECT 1 FROM json_each(notes.tags) WHERE value = ?)")
		args = append(args, tag)
	}

	if p.ModifiedAtMin != nil {
		conditions = append(conditions, "notes.modified_at >= ?")
		args = append(args, *p.ModifiedAtMin)
	}
	if p.ModifiedAtMax != nil {
		conditions = append(conditions, "notes.modified_at <= ?")
		args = append(args, *p.ModifiedAtMax)
	}

	fromClause := "FROM notes"
	if p.Term != "" {
		fromClause = "FROM notes JOIN (SELECT rowid, rank FROM notes_fts WHERE notes_fts.text MATCH ?) AS ftsmatch ON notes.rowid = ftsmatch.rowid"
		args = append([]any{p.Term}, args...)
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s %s", fromClause, whereClause)
	var total int
	if err := s.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return SearchResult{}, fmt.Errorf("cache: counting search results: %w", err)
	}

	sortBy := p.SortBy
	if sortBy != "modified_at" && sortBy != "created_at" {
		sortBy = "modified_at"
	}
	sortOrder := strings.ToUpper(p.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}

	orderClause := fmt.Sprintf("ORDER BY notes.%s %s", sortBy, sortOrder)
	if p.Term != "" {
		orderClause = fmt.Sprintf("ORDER BY ftsmatch.rank, notes.%s %s", sortBy, sortOrder)
	}

	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}
	page := p.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	selectQuery := fmt.Sprintf("SELECT %s %s %s %s LIMIT ? OFFSET ?", noteColumns, fromClause, whereClause, orderClause)
	rows, err := s.db.Query(selectQuery, append(append([]any{}, args...), limit, offset)...)
	if err != nil {
		return SearchResult{}, fmt.Errorf("cache: running search: %w", err)
	}
	defer rows.Close()

	var result SearchResult
	result.TotalItems = total
	for rows.Next() {
		n, err := s.scanNote(rows)
		if err != nil {
			return SearchResult{}, err
		}
		result.Notes = append(result.Notes, n)
	}
	return result, rows.Err()
}
