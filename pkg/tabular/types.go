// Package tabular defines the value types, error taxonomy and collaborator
// interfaces shared by the table edit staging and commit engine.
package tabular

// ImportType classifies how a table accepts committed edits.
type ImportType string

const (
	// ImportNone marks a table that never accepts edits.
	ImportNone ImportType = "not-importable"
	// ImportNonInteractive marks a table importable only through batch commits.
	ImportNonInteractive ImportType = "importable"
	// ImportInteractiveUnlocked marks a table editable while the model is unlocked.
	ImportInteractiveUnlocked ImportType = "interactive-unlocked"
	// ImportInteractiveAlways marks a table editable regardless of model lock state.
	ImportInteractiveAlways ImportType = "interactive-always"
)

// Editable reports whether the classification admits committed edits at all.
func (t ImportType) Editable() bool {
	return t != "" && t != ImportNone
}

// TableDescriptor describes one table as reported by the model store.
// Descriptors are immutable; their lifetime is a single catalog query.
type TableDescriptor struct {
	Key         string     `json:"key"`
	DisplayName string     `json:"display_name"`
	Import      ImportType `json:"import"`
	IsEmpty     bool       `json:"is_empty"`
}

// ObsoleteTable names a deprecated table key and where its data moved.
type ObsoleteTable struct {
	Key           string `json:"key"`
	MigrationNote string `json:"migration_note"`
}

// FieldDescriptor describes one column of a table. Importable determines
// whether the field may appear in a staged edit.
type FieldDescriptor struct {
	TableKey   string `json:"table_key"`
	FieldKey   string `json:"field_key"`
	Importable bool   `json:"importable"`
}

// TableSnapshot is an immutable, versioned read of one table. Rows is
// row-major: cell (i, j) lives at Rows[i*len(FieldKeys)+j]. Version is zero
// for display reads, which are not stageable.
type TableSnapshot struct {
	Key       string   `json:"key"`
	Version   int64    `json:"version"`
	FieldKeys []string `json:"field_keys"`
	RowCount  int      `json:"row_count"`
	Rows      []string `json:"rows"`
}

// Validate checks the row-major shape invariant.
func (s TableSnapshot) Validate() error {
	if len(s.FieldKeys) == 0 {
		return ShapeError{TableKey: s.Key, Fields: 0, RowCount: s.RowCount, Cells: len(s.Rows)}
	}
	if len(s.Rows) != s.RowCount*len(s.FieldKeys) {
		return ShapeError{TableKey: s.Key, Fields: len(s.FieldKeys), RowCount: s.RowCount, Cells: len(s.Rows)}
	}
	return nil
}

// Row returns a copy of row i.
func (s TableSnapshot) Row(i int) []string {
	f := len(s.FieldKeys)
	return append([]string(nil), s.Rows[i*f:(i+1)*f]...)
}

// Clone returns a deep copy that shares no state with the receiver.
func (s TableSnapshot) Clone() TableSnapshot {
	cp := s
	cp.FieldKeys = append([]string(nil), s.FieldKeys...)
	cp.Rows = append([]string(nil), s.Rows...)
	return cp
}

// PendingEdit is one staged table edit awaiting commit. At most one exists
// per table key inside a staging buffer; staging again replaces it wholesale.
type PendingEdit struct {
	TableKey  string   `json:"table_key"`
	Version   int64    `json:"version"`
	FieldKeys []string `json:"field_keys"`
	Rows      []string `json:"rows"`
}

// RowCount derives the number of rows from the flat cell slice.
func (e PendingEdit) RowCount() int {
	if len(e.FieldKeys) == 0 {
		return 0
	}
	return len(e.Rows) / len(e.FieldKeys)
}

// Clone returns a deep copy of the edit.
func (e PendingEdit) Clone() PendingEdit {
	cp := e
	cp.FieldKeys = append([]string(nil), e.FieldKeys...)
	cp.Rows = append([]string(nil), e.Rows...)
	return cp
}

// TableEdit is the wire form of a pending edit submitted to the model store.
type TableEdit struct {
	TableKey  string   `json:"table_key"`
	Version   int64    `json:"version"`
	FieldKeys []string `json:"field_keys"`
	Rows      []string `json:"rows"`
}

// CommitStats carries the aggregated accounting a model store reports for one
// commit batch. The counts are meaningful even when the call itself succeeds.
type CommitStats struct {
	FatalErrors int    `json:"fatal_errors"`
	Errors      int    `json:"errors"`
	Warnings    int    `json:"warnings"`
	Infos       int    `json:"infos"`
	Log         string `json:"log"`
}

// CommitResult is the terminal outcome of applying a staging buffer.
// Succeeded is true iff the store call returned no transport error and the
// batch produced neither fatal nor non-fatal errors; a clean status with
// row-level errors in the counts is a content failure, not a success.
type CommitResult struct {
	FatalErrors int    `json:"fatal_errors"`
	Errors      int    `json:"errors"`
	Warnings    int    `json:"warnings"`
	Infos       int    `json:"infos"`
	Log         string `json:"log"`
	Succeeded   bool   `json:"succeeded"`
}

// ModeRange bounds a modal or buckling result range. All overrides the bounds.
type ModeRange struct {
	All   bool `json:"all"`
	Start int  `json:"start"`
	End   int  `json:"end"`
}

// OutputOptions selects which result categories display reads include.
type OutputOptions struct {
	Modal               ModeRange `json:"modal"`
	Buckling            ModeRange `json:"buckling"`
	IncludeCombinations bool      `json:"include_combinations"`
	IncludeStatic       bool      `json:"include_static"`
	IncludeHistory      bool      `json:"include_history"`
}

// Validate checks internal range consistency.
func (o OutputOptions) Validate() error {
	if !o.Modal.All && o.Modal.Start > o.Modal.End {
		return OptionRangeError{Category: "modal", Start: o.Modal.Start, End: o.Modal.End}
	}
	if !o.Buckling.All && o.Buckling.Start > o.Buckling.End {
		return OptionRangeError{Category: "buckling", Start: o.Buckling.Start, End: o.Buckling.End}
	}
	return nil
}

// Selection is the process-wide display selection handed to the model store
// with every display read. The engine never interprets it.
type Selection struct {
	Cases        []string      `json:"cases"`
	Combinations []string      `json:"combinations"`
	Patterns     []string      `json:"patterns"`
	Options      OutputOptions `json:"options"`
}

// Clone returns a deep copy of the selection.
func (s Selection) Clone() Selection {
	cp := s
	cp.Cases = append([]string(nil), s.Cases...)
	cp.Combinations = append([]string(nil), s.Combinations...)
	cp.Patterns = append([]string(nil), s.Patterns...)
	return cp
}
