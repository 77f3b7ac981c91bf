package schema

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/erauner12/notarium-bridge/internal/patch"
)

var validate = validator.New()

// ListNotesParams is the decoded, tag-validated form of a list_notes call.
// Query holds the raw query string; the tools layer extracts its tag:,
// before: and after: tokens after this struct is decoded and validated.
type ListNotesParams struct {
	Query        string   `json:"query" validate:"omitempty,max=500"`
	Tags         []string `json:"tags" validate:"omitempty,dive,min=1,max=100"`
	TrashStatus  string   `json:"trash_status" validate:"omitempty,oneof=active trashed any"`
	DateBefore   string   `json:"date_before" validate:"omitempty,datetime=2006-01-02"`
	DateAfter    string   `json:"date_after" validate:"omitempty,datetime=2006-01-02"`
	SortBy       string   `json:"sort_by" validate:"omitempty,oneof=modified_at created_at"`
	SortOrder    string   `json:"sort_order" validate:"omitempty,oneof=ASC DESC asc desc"`
	Limit        int      `json:"limit" validate:"omitempty,min=1,max=100"`
	Page         int      `json:"page" validate:"omitempty,min=1"`
	PreviewLines int      `json:"preview_lines" validate:"omitempty,min=1,max=20"`
}

func (p ListNotesParams) Validate() error {
	return validate.Struct(p)
}

// GetNoteParams is the decoded form of a get_note call. Exactly one of ID or
// IDs must be set; the range/version fields only apply to the single-id form.
type GetNoteParams struct {
	ID             string   `json:"id" validate:"omitempty"`
	IDs            []string `json:"ids" validate:"omitempty,max=20,dive,required"`
	LocalVersion   *int     `json:"local_version" validate:"omitempty,min=1"`
	RangeLineStart *int     `json:"range_line_start" validate:"omitempty,min=1"`
	RangeLineCount *int     `json:"range_line_count" validate:"omitempty,min=0"`
}

func (p GetNoteParams) Validate() error {
	if err := validate.Struct(p); err != nil {
		return err
	}
	if p.ID == "" && len(p.IDs) == 0 {
		return fmt.Errorf("one of id or ids is required")
	}
	if p.ID != "" && len(p.IDs) > 0 {
		return fmt.Errorf("id and ids are mutually exclusive")
	}
	if len(p.IDs) > 0 {
		if p.LocalVersion != nil || p.RangeLineStart != nil || p.RangeLineCount != nil {
			return fmt.Errorf("local_version and range_line_* only apply to a single id")
		}
	}
	return nil
}

// PatchOpParam is the wire form of a single text_patch entry, validated
// independently of patch.Op (the engine's internal representation).
type PatchOpParam struct {
	Op         string  `json:"op" validate:"required,oneof=add mod del"`
	LineNumber int     `json:"line_number" validate:"required,min=1"`
	Value      *string `json:"value" validate:"omitempty"`
}

func (p PatchOpParam) toEngineOp() (patch.Op, error) {
	kind := patch.Kind(p.Op)
	if kind == patch.KindAdd || kind == patch.KindMod {
		if p.Value == nil {
			return patch.Op{}, fmt.Errorf("value is required for %s operations", p.Op)
		}
	}
	var value string
	if p.Value != nil {
		value = *p.Value
	}
	return patch.Op{Kind: kind, LineNumber: p.LineNumber, Value: value}, nil
}

// ToEngineOps converts a decoded text_patch list into patch.Op values,
// validating each entry's op-specific value requirement along the way.
func ToEngineOps(ops []PatchOpParam) ([]patch.Op, error) {
	out := make([]patch.Op, 0, len(ops))
	for i, op := range ops {
		eo, err := op.toEngineOp()
		if err != nil {
			return nil, fmt.Errorf("text_patch[%d]: %w", i, err)
		}
		out = append(out, eo)
	}
	return out, nil
}

// SaveNoteParams is the decoded form of a save_note call, covering both the
// create-new-note path (ID omitted) and the update-existing-note path.
type SaveNoteParams struct {
	ID            *string        `json:"id" validate:"omitempty"`
	LocalVersion  *int           `json:"local_version" validate:"omitempty,min=1"`
	ServerVersion *int           `json:"server_version" validate:"omitempty,min=0"`
	Text          *string        `json:"text" validate:"omitempty"`
	TextPatch     []PatchOpParam `json:"text_patch" validate:"omitempty,dive"`
	Tags          *[]string      `json:"tags" validate:"omitempty,dive,min=1,max=100"`
	Trash         *bool          `json:"trash" validate:"omitempty"`
}

func (p SaveNoteParams) Validate() error {
	if err := validate.Struct(p); err != nil {
		return err
	}
	if p.Text != nil && len(p.TextPatch) > 0 {
		return fmt.Errorf("text and text_patch are mutually exclusive")
	}
	if p.ID != nil && *p.ID != "" && p.LocalVersion == nil {
		return fmt.Errorf("local_version is required when id is present")
	}
	if p.Tags != nil && len(*p.Tags) > 100 {
		return fmt.Errorf("tags: at most 100 entries allowed")
	}
	return nil
}

// ManageNotesParams is the decoded form of a manage_notes call.
type ManageNotesParams struct {
	Action       string `json:"action" validate:"required,oneof=get_stats reset_cache trash untrash delete_permanently"`
	ID           string `json:"id" validate:"omitempty"`
	LocalVersion *int   `json:"local_version" validate:"omitempty,min=1"`
}

func (p ManageNotesParams) Validate() error {
	if err := validate.Struct(p); err != nil {
		return err
	}
	switch p.Action {
	case "trash", "untrash", "delete_permanently":
		if p.ID == "" {
			return fmt.Errorf("id is required for action %q", p.Action)
		}
	}
	switch p.Action {
	case "trash", "untrash":
		if p.LocalVersion == nil {
			return fmt.Errorf("local_version is required for action %q", p.Action)
		}
	}
	return nil
}
