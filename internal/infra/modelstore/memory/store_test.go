package memory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"tablecore/pkg/tabular"
)

func seedStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	err := s.DefineTable(TableDef{
		Key:         "Loads",
		DisplayName: "Load Assignments",
		Import:      tabular.ImportNonInteractive,
		Fields: []FieldDef{
			{Key: "Name", Importable: true},
			{Key: "Value", Importable: true},
			{Key: "Computed", Importable: false},
		},
	}, [][]string{
		{"L1", "10", "x"},
		{"L2", "20", "y"},
		{"L3", "30", "z"},
	})
	if err != nil {
		t.Fatalf("define Loads: %v", err)
	}
	err = s.DefineTable(TableDef{
		Key:         "JointReactions",
		DisplayName: "Joint Reactions",
		Import:      tabular.ImportNone,
		Fields: []FieldDef{
			{Key: "Joint", Importable: false},
			{Key: "Case", Importable: false},
			{Key: "Fz", Importable: false},
		},
		CaseField: "Case",
	}, [][]string{
		{"J1", "DEAD", "-12.5"},
		{"J1", "LIVE", "-4.2"},
		{"J2", "DEAD", "-8.0"},
	})
	if err != nil {
		t.Fatalf("define JointReactions: %v", err)
	}
	return s
}

func TestDefineTableValidation(t *testing.T) {
	s := NewStore()
	if err := s.DefineTable(TableDef{}, nil); err == nil {
		t.Fatalf("expected error for missing key")
	}
	if err := s.DefineTable(TableDef{Key: "T"}, nil); err == nil {
		t.Fatalf("expected error for missing fields")
	}
	dup := TableDef{Key: "T", Fields: []FieldDef{{Key: "A"}, {Key: "A"}}}
	if err := s.DefineTable(dup, nil); err == nil {
		t.Fatalf("expected error for duplicate field")
	}
	ragged := TableDef{Key: "T", Fields: []FieldDef{{Key: "A"}}}
	if err := s.DefineTable(ragged, [][]string{{"1", "2"}}); err == nil {
		t.Fatalf("expected error for ragged seed row")
	}
	badCase := TableDef{Key: "T", Fields: []FieldDef{{Key: "A"}}, CaseField: "Missing"}
	if err := s.DefineTable(badCase, nil); err == nil {
		t.Fatalf("expected error for undeclared case field")
	}
	ok := TableDef{Key: "T", Fields: []FieldDef{{Key: "A"}}}
	if err := s.DefineTable(ok, nil); err != nil {
		t.Fatalf("define: %v", err)
	}
	if err := s.DefineTable(ok, nil); err == nil {
		t.Fatalf("expected error for duplicate table")
	}
}

func TestListTables(t *testing.T) {
	s := seedStore(t)
	if err := s.DefineTable(TableDef{
		Key:    "Empty",
		Import: tabular.ImportNonInteractive,
		Fields: []FieldDef{{Key: "A", Importable: true}},
	}, nil); err != nil {
		t.Fatalf("define: %v", err)
	}

	tables, err := s.ListTables(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tables) != 3 {
		t.Fatalf("expected 3 tables, got %d", len(tables))
	}
	if tables[0].Key != "Loads" || tables[1].Key != "JointReactions" || tables[2].Key != "Empty" {
		t.Fatalf("definition order lost: %+v", tables)
	}
	if tables[0].IsEmpty || !tables[2].IsEmpty {
		t.Fatalf("unexpected emptiness flags: %+v", tables)
	}
	if tables[1].Import != tabular.ImportNone {
		t.Fatalf("unexpected import type %q", tables[1].Import)
	}
}

func TestListObsoleteTables(t *testing.T) {
	s := seedStore(t)
	s.MarkObsolete("OldLoads", "superseded by Loads")
	obs, err := s.ListObsoleteTables(context.Background())
	if err != nil {
		t.Fatalf("list obsolete: %v", err)
	}
	if len(obs) != 1 || obs[0].Key != "OldLoads" || obs[0].MigrationNote == "" {
		t.Fatalf("unexpected obsolete list %+v", obs)
	}
}

func TestListFields(t *testing.T) {
	s := seedStore(t)
	fields, err := s.ListFields(context.Background(), "Loads")
	if err != nil {
		t.Fatalf("list fields: %v", err)
	}
	if len(fields) != 3 {
		t.Fatalf("expected 3 fields, got %d", len(fields))
	}
	if fields[2].FieldKey != "Computed" || fields[2].Importable {
		t.Fatalf("unexpected field %+v", fields[2])
	}

	_, err = s.ListFields(context.Background(), "Nope")
	var unknown tabular.UnknownTableError
	if !errors.As(err, &unknown) || unknown.TableKey != "Nope" {
		t.Fatalf("expected UnknownTableError, got %v", err)
	}
}

func TestGetEditableTable(t *testing.T) {
	s := seedStore(t)
	et, err := s.GetEditableTable(context.Background(), "Loads", "")
	if err != nil {
		t.Fatalf("editable read: %v", err)
	}
	if et.Version != 1 {
		t.Fatalf("expected version 1, got %d", et.Version)
	}
	if et.RowCount != 3 || len(et.Rows) != 9 {
		t.Fatalf("unexpected shape %d rows %d cells", et.RowCount, len(et.Rows))
	}

	_, err = s.GetEditableTable(context.Background(), "JointReactions", "")
	var unavailable tabular.TableUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected TableUnavailableError, got %v", err)
	}

	_, err = s.GetEditableTable(context.Background(), "Nope", "")
	var unknown tabular.UnknownTableError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownTableError, got %v", err)
	}
}

func TestGroupFilter(t *testing.T) {
	s := seedStore(t)
	s.RegisterGroup("upper", []string{"L1", "L3"})

	et, err := s.GetEditableTable(context.Background(), "Loads", "upper")
	if err != nil {
		t.Fatalf("filtered read: %v", err)
	}
	if et.RowCount != 2 {
		t.Fatalf("expected 2 rows, got %d", et.RowCount)
	}
	if et.Rows[0] != "L1" || et.Rows[3] != "L3" {
		t.Fatalf("unexpected filtered rows %v", et.Rows)
	}

	_, err = s.GetEditableTable(context.Background(), "Loads", "missing")
	var notFound tabular.GroupNotFoundError
	if !errors.As(err, &notFound) || notFound.Group != "missing" {
		t.Fatalf("expected GroupNotFoundError, got %v", err)
	}
}

func TestGetDisplayTableProjection(t *testing.T) {
	s := seedStore(t)
	dt, err := s.GetDisplayTable(context.Background(), tabular.DisplayRequest{
		TableKey:  "Loads",
		FieldKeys: []string{"Value", "Name"},
	})
	if err != nil {
		t.Fatalf("display read: %v", err)
	}
	if dt.RowCount != 3 || len(dt.Rows) != 6 {
		t.Fatalf("unexpected shape %d rows %d cells", dt.RowCount, len(dt.Rows))
	}
	if dt.Rows[0] != "10" || dt.Rows[1] != "L1" {
		t.Fatalf("projection order lost: %v", dt.Rows)
	}

	_, err = s.GetDisplayTable(context.Background(), tabular.DisplayRequest{
		TableKey:  "Loads",
		FieldKeys: []string{"Nope"},
	})
	var unknownField tabular.UnknownFieldError
	if !errors.As(err, &unknownField) {
		t.Fatalf("expected UnknownFieldError, got %v", err)
	}
}

func TestDisplaySelectionNarrowsAndIsRecorded(t *testing.T) {
	s := seedStore(t)
	sel := tabular.Selection{Cases: []string{"DEAD"}}
	dt, err := s.GetDisplayTable(context.Background(), tabular.DisplayRequest{
		TableKey:  "JointReactions",
		Selection: sel,
	})
	if err != nil {
		t.Fatalf("display read: %v", err)
	}
	if dt.RowCount != 2 {
		t.Fatalf("expected 2 DEAD rows, got %d", dt.RowCount)
	}
	for i := 0; i < dt.RowCount; i++ {
		if dt.Rows[i*3+1] != "DEAD" {
			t.Fatalf("row %d not narrowed: %v", i, dt.Rows)
		}
	}

	recorded, seen := s.LastSelection()
	if !seen {
		t.Fatalf("selection was not recorded")
	}
	if len(recorded.Cases) != 1 || recorded.Cases[0] != "DEAD" {
		t.Fatalf("unexpected recorded selection %+v", recorded)
	}

	// An empty selection means no narrowing, and tables without a case field
	// ignore the selection entirely.
	dt, err = s.GetDisplayTable(context.Background(), tabular.DisplayRequest{TableKey: "JointReactions"})
	if err != nil {
		t.Fatalf("display read: %v", err)
	}
	if dt.RowCount != 3 {
		t.Fatalf("empty selection must not narrow, got %d rows", dt.RowCount)
	}
	dt, err = s.GetDisplayTable(context.Background(), tabular.DisplayRequest{TableKey: "Loads", Selection: sel})
	if err != nil {
		t.Fatalf("display read: %v", err)
	}
	if dt.RowCount != 3 {
		t.Fatalf("table without case field must ignore selection, got %d rows", dt.RowCount)
	}
}

func TestCommitEditsAppliesAndBumpsVersion(t *testing.T) {
	s := seedStore(t)
	stats, err := s.CommitEdits(context.Background(), []tabular.TableEdit{{
		TableKey:  "Loads",
		Version:   1,
		FieldKeys: []string{"Name", "Value"},
		Rows:      []string{"L1", "11", "L4", "40"},
	}}, true)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if stats.FatalErrors != 0 || stats.Errors != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.Warnings != 0 {
		t.Fatalf("omitting a read-only field must not warn, got %+v", stats)
	}
	if stats.Infos != 1 {
		t.Fatalf("expected one info line, got %+v", stats)
	}
	if !strings.Contains(stats.Log, "INFO Loads: applied 2 rows, now version 2") {
		t.Fatalf("log not filled: %q", stats.Log)
	}

	if v, _ := s.Version("Loads"); v != 2 {
		t.Fatalf("expected version 2, got %d", v)
	}
	et, err := s.GetEditableTable(context.Background(), "Loads", "")
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if et.RowCount != 2 {
		t.Fatalf("expected 2 rows after replace, got %d", et.RowCount)
	}
	// The non-importable Computed column is outside the edit and blank now.
	if et.Rows[2] != "" {
		t.Fatalf("expected blank computed cell, got %q", et.Rows[2])
	}
}

func TestCommitEditsBlankFillsMissingImportableFields(t *testing.T) {
	s := seedStore(t)
	stats, err := s.CommitEdits(context.Background(), []tabular.TableEdit{{
		TableKey:  "Loads",
		Version:   1,
		FieldKeys: []string{"Name"},
		Rows:      []string{"L1", "L2"},
	}}, true)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if stats.Warnings != 1 {
		t.Fatalf("expected blank-fill warning, got %+v", stats)
	}
	if !strings.Contains(stats.Log, "WARNING Loads: importable fields missing from edit were blank-filled") {
		t.Fatalf("unexpected log %q", stats.Log)
	}
	et, err := s.GetEditableTable(context.Background(), "Loads", "")
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if et.Rows[1] != "" {
		t.Fatalf("expected blank Value cell, got %q", et.Rows[1])
	}
}

func TestCommitEditsVersionConflict(t *testing.T) {
	s := seedStore(t)
	stats, err := s.CommitEdits(context.Background(), []tabular.TableEdit{{
		TableKey:  "Loads",
		Version:   7,
		FieldKeys: []string{"Name", "Value"},
		Rows:      []string{"L1", "11"},
	}}, true)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if stats.Errors != 1 || stats.FatalErrors != 0 {
		t.Fatalf("expected one error, got %+v", stats)
	}
	if !strings.Contains(stats.Log, "version conflict: staged 7, current 1") {
		t.Fatalf("unexpected log %q", stats.Log)
	}
	if v, _ := s.Version("Loads"); v != 1 {
		t.Fatalf("conflicting edit must not advance version, got %d", v)
	}
}

func TestCommitEditsRowLevelProblems(t *testing.T) {
	s := seedStore(t)
	stats, err := s.CommitEdits(context.Background(), []tabular.TableEdit{
		{TableKey: "Nope", Version: 1, FieldKeys: []string{"A"}, Rows: []string{"1"}},
		{TableKey: "JointReactions", Version: 1, FieldKeys: []string{"Joint"}, Rows: []string{"J1"}},
		{TableKey: "Loads", Version: 1, FieldKeys: []string{"Name", "Bogus"}, Rows: []string{"L1", "x"}},
		{TableKey: "Loads", Version: 1, FieldKeys: []string{"Name", "Computed"}, Rows: []string{"L1", "x"}},
		{TableKey: "Loads", Version: 1, FieldKeys: []string{"Name", "Value"}, Rows: []string{"L1"}},
	}, true)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if stats.FatalErrors != 2 {
		t.Fatalf("expected 2 fatals (unknown, not importable), got %+v", stats)
	}
	if stats.Errors != 3 {
		t.Fatalf("expected 3 errors (unknown field, read-only field, malformed), got %+v", stats)
	}
	if v, _ := s.Version("Loads"); v != 1 {
		t.Fatalf("rejected edits must not advance version, got %d", v)
	}
}

func TestCommitEditsLogSuppressedWhenNotRequested(t *testing.T) {
	s := seedStore(t)
	stats, err := s.CommitEdits(context.Background(), []tabular.TableEdit{{
		TableKey:  "Loads",
		Version:   9,
		FieldKeys: []string{"Name", "Value"},
		Rows:      []string{"L1", "11"},
	}}, false)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if stats.Errors != 1 {
		t.Fatalf("counts must be kept without log, got %+v", stats)
	}
	if stats.Log != "" {
		t.Fatalf("log must be empty when not requested, got %q", stats.Log)
	}
}

func TestFailNextCommitIsOneShot(t *testing.T) {
	s := seedStore(t)
	fault := errors.New("store unreachable")
	s.FailNextCommit(fault)

	edit := []tabular.TableEdit{{
		TableKey:  "Loads",
		Version:   1,
		FieldKeys: []string{"Name", "Value", "Computed"},
		Rows:      []string{"L1", "11", "x"},
	}}
	_, err := s.CommitEdits(context.Background(), edit, false)
	if !errors.Is(err, fault) {
		t.Fatalf("expected armed fault, got %v", err)
	}
	if v, _ := s.Version("Loads"); v != 1 {
		t.Fatalf("faulted commit must not advance version, got %d", v)
	}

	stats, err := s.CommitEdits(context.Background(), edit, false)
	if err != nil {
		t.Fatalf("second commit: %v", err)
	}
	if stats.Errors != 0 || stats.FatalErrors != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestExportImportState(t *testing.T) {
	s := seedStore(t)
	s.RegisterGroup("upper", []string{"L1"})
	s.MarkObsolete("OldLoads", "superseded")
	if _, err := s.CommitEdits(context.Background(), []tabular.TableEdit{{
		TableKey:  "Loads",
		Version:   1,
		FieldKeys: []string{"Name", "Value", "Computed"},
		Rows:      []string{"L9", "90", "q"},
	}}, false); err != nil {
		t.Fatalf("commit: %v", err)
	}

	restored := NewStore()
	restored.ImportState(s.ExportState())

	if v, ok := restored.Version("Loads"); !ok || v != 2 {
		t.Fatalf("expected restored version 2, got %d (%v)", v, ok)
	}
	et, err := restored.GetEditableTable(context.Background(), "Loads", "upper")
	if err != nil {
		t.Fatalf("restored filtered read: %v", err)
	}
	if et.RowCount != 0 {
		t.Fatalf("group members must survive restore, got %d rows", et.RowCount)
	}
	obs, _ := restored.ListObsoleteTables(context.Background())
	if len(obs) != 1 {
		t.Fatalf("obsolete list must survive restore, got %+v", obs)
	}
}

func TestDiscardEditsIsNoOp(t *testing.T) {
	s := seedStore(t)
	if err := s.DiscardEdits(context.Background()); err != nil {
		t.Fatalf("discard: %v", err)
	}
}
