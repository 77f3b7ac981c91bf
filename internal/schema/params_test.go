package schema

import "testing"

func TestGetNoteParams_RequiresIDOrIDs(t *testing.T) {
	p := GetNoteParams{}
	if err := p.Validate(); err == nil {
		t.Error("expected error when neither id nor ids is set")
	}
}

func TestGetNoteParams_IDAndIDsMutuallyExclusive(t *testing.T) {
	p := GetNoteParams{ID: "n1", IDs: []string{"n2"}}
	if err := p.Validate(); err == nil {
		t.Error("expected error when both id and ids are set")
	}
}

func TestSaveNoteParams_TextAndPatchMutuallyExclusive(t *testing.T) {
	text := "hello"
	p := SaveNoteParams{
		Text:      &text,
		TextPatch: []PatchOpParam{{Op: "add", LineNumber: 1, Value: &text}},
	}
	if err := p.Validate(); err == nil {
		t.Error("expected error when both text and text_patch are set")
	}
}

func TestSaveNoteParams_LocalVersionRequiredWhenIDPresent(t *testing.T) {
	id := "n1"
	p := SaveNoteParams{ID: &id}
	if err := p.Validate(); err == nil {
		t.Error("expected error when id is present without local_version")
	}
}

func TestSaveNoteParams_NewNoteNeedsNoLocalVersion(t *testing.T) {
	text := "hello"
	p := SaveNoteParams{Text: &text}
	if err := p.Validate(); err != nil {
		t.Errorf("unexpected error for new-note save: %v", err)
	}
}

func TestManageNotesParams_TrashRequiresIDAndVersion(t *testing.T) {
	p := ManageNotesParams{Action: "trash"}
	if err := p.Validate(); err == nil {
		t.Error("expected error for trash without id/local_version")
	}
}

func TestManageNotesParams_GetStatsNeedsNothingElse(t *testing.T) {
	p := ManageNotesParams{Action: "get_stats"}
	if err := p.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestToEngineOps_MissingValueForAddIsError(t *testing.T) {
	_, err := ToEngineOps([]PatchOpParam{{Op: "add", LineNumber: 1}})
	if err == nil {
		t.Error("expected error for add op missing value")
	}
}

func TestToEngineOps_DelNeedsNoValue(t *testing.T) {
	ops, err := ToEngineOps([]PatchOpParam{{Op: "del", LineNumber: 3}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ops) != 1 || ops[0].LineNumber != 3 {
		t.Errorf("unexpected ops: %+v", ops)
	}
}
