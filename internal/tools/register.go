package tools

// RegisterAll wires the four notes tools into a fresh Registry, in the
// fixed order the agent protocol's tools/list response exposes them.
func RegisterAll() *Registry {
	r := NewRegistry()
	r.MustRegister(ListNotesDefinition(), ListNotesHandler)
	r.MustRegister(GetNoteDefinition(), GetNoteHandler)
	r.MustRegister(SaveNoteDefinition(), SaveNoteHandler)
	r.MustRegister(ManageNotesDefinition(), ManageNotesHandler)
	return r
}
