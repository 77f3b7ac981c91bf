// Package schema provides declarative tool-parameter validation
// (go-playground/validator) and the JSON-Schema builders used to describe
// those same parameters in tools/list responses (§6, Component B).
package schema

// Common JSON Schema building blocks, generalized from the registry's
// original entity-CRUD schema helpers to notes' richer parameter set.

func StringSchema(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func IntegerSchema(description string, min, max *int) map[string]any {
	s := map[string]any{"type": "integer", "description": description}
	if min != nil {
		s["minimum"] = *min
	}
	if max != nil {
		s["maximum"] = *max
	}
	return s
}

func BooleanSchema(description string) map[string]any {
	return map[string]any{"type": "boolean", "description": description}
}

func EnumSchema(description string, values []string) map[string]any {
	return map[string]any{"type": "string", "description": description, "enum": values}
}

func ArraySchema(description string, items map[string]any) map[string]any {
	return map[string]any{"type": "array", "description": description, "items": items}
}

func BuildSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{"type": "object", "properties": properties}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func ListNotesSchema() map[string]any {
	min1, max100 := 1, 100
	min1page := 1
	min1preview, max20preview := 1, 20
	return BuildSchema(map[string]any{
		"query":         StringSchema("Free-text query; supports tag:X, before:YYYY-MM-DD, after:YYYY-MM-DD tokens"),
		"tags":          ArraySchema("Tags the note must have (ANDed)", StringSchema("")),
		"trash_status":  EnumSchema("Which notes to include", []string{"active", "trashed", "any"}),
		"date_before":   StringSchema("YYYY-MM-DD, UTC end-of-day bound"),
		"date_after":    StringSchema("YYYY-MM-DD, UTC start-of-day bound"),
		"sort_by":       EnumSchema("Sort field", []string{"modified_at", "created_at"}),
		"sort_order":    EnumSchema("Sort direction", []string{"ASC", "DESC"}),
		"limit":         IntegerSchema("Results per page (1-100)", &min1, &max100),
		"page":          IntegerSchema("1-based page number", &min1page, nil),
		"preview_lines": IntegerSchema("Lines of preview text per result (1-20)", &min1preview, &max20preview),
	}, nil)
}

func GetNoteSchema() map[string]any {
	min1 := 1
	min0 := 0
	return BuildSchema(map[string]any{
		"id":                StringSchema("Single note identifier"),
		"ids":               ArraySchema("Batch of up to 20 note identifiers", StringSchema("")),
		"local_version":     IntegerSchema("Pin to a specific local_version (single-id only)", nil, nil),
		"range_line_start":  IntegerSchema("1-based starting line (single-id only)", &min1, nil),
		"range_line_count":  IntegerSchema("Number of lines to return, 0 means to end (single-id only)", &min0, nil),
	}, nil)
}

func SaveNoteSchema() map[string]any {
	min1 := 1
	opSchema := BuildSchema(map[string]any{
		"op":          EnumSchema("Patch operation", []string{"add", "mod", "del"}),
		"line_number": IntegerSchema("1-based line number", &min1, nil),
		"value":       StringSchema("Line content (required for add/mod)"),
	}, []string{"op", "line_number"})

	return BuildSchema(map[string]any{
		"id":             StringSchema("Existing note identifier; omit to create a new note"),
		"local_version":  IntegerSchema("Required when id is present: the local_version being updated", nil, nil),
		"server_version": IntegerSchema("Optimistic-concurrency base version", nil, nil),
		"text":           StringSchema("Full replacement text (mutually exclusive with text_patch)"),
		"text_patch":     ArraySchema("Line-addressed patch operations (mutually exclusive with text)", opSchema),
		"tags":           ArraySchema("Tags, each 1-100 bytes, up to 100 items", StringSchema("")),
		"trash":          BooleanSchema("Trash flag"),
	}, nil)
}

func ManageNotesSchema() map[string]any {
	return BuildSchema(map[string]any{
		"action":        EnumSchema("Management action", []string{"get_stats", "reset_cache", "trash", "untrash", "delete_permanently"}),
		"id":            StringSchema("Note identifier (required for trash/untrash/delete_permanently)"),
		"local_version": IntegerSchema("Required for trash/untrash: the local_version being updated", nil, nil),
	}, []string{"action"})
}
