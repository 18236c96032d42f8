// Package memory provides the reference in-memory model store. It owns
// durable table contents, versions them per table, and is the sole arbiter of
// version conflicts and field coercion during commits. It doubles as the test
// backend and as the transactional core the persistent stores wrap.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"tablecore/pkg/tabular"
)

// FieldDef declares one column of a table definition.
type FieldDef struct {
	Key        string `json:"key"`
	Importable bool   `json:"importable"`
}

// TableDef declares a table: its classification, ordered fields and, for
// result tables, the field matched against the display selection.
type TableDef struct {
	Key         string             `json:"key"`
	DisplayName string             `json:"display_name"`
	Import      tabular.ImportType `json:"import"`
	Fields      []FieldDef         `json:"fields"`
	// CaseField names the field display selections narrow on. Empty
	// disables narrowing for the table.
	CaseField string `json:"case_field,omitempty"`
}

func (d TableDef) fieldIndex(key string) int {
	for i, f := range d.Fields {
		if f.Key == key {
			return i
		}
	}
	return -1
}

type tableState struct {
	def     TableDef
	version int64
	rows    [][]string
}

func (t *tableState) clone() *tableState {
	cp := &tableState{def: t.def, version: t.version}
	cp.def.Fields = append([]FieldDef(nil), t.def.Fields...)
	cp.rows = cloneRows(t.rows)
	return cp
}

func cloneRows(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}

// Store is an in-memory model store. A single mutex guards all state; every
// read hands out copies.
type Store struct {
	mu            sync.RWMutex
	tables        map[string]*tableState
	order         []string
	groups        map[string]map[string]struct{}
	obsolete      []tabular.ObsoleteTable
	lastSelection tabular.Selection
	selectionSeen bool
	commitFault   error
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{
		tables: make(map[string]*tableState),
		groups: make(map[string]map[string]struct{}),
	}
}

// DefineTable registers a table definition with its initial rows. Initial
// contents start at version 1.
func (s *Store) DefineTable(def TableDef, rows [][]string) error {
	if def.Key == "" {
		return fmt.Errorf("table definition requires a key")
	}
	if len(def.Fields) == 0 {
		return fmt.Errorf("table %q requires at least one field", def.Key)
	}
	seen := make(map[string]struct{}, len(def.Fields))
	for _, f := range def.Fields {
		if f.Key == "" {
			return fmt.Errorf("table %q has an unnamed field", def.Key)
		}
		if _, dup := seen[f.Key]; dup {
			return fmt.Errorf("table %q declares field %q twice", def.Key, f.Key)
		}
		seen[f.Key] = struct{}{}
	}
	for i, r := range rows {
		if len(r) != len(def.Fields) {
			return fmt.Errorf("table %q row %d has %d cells, expected %d", def.Key, i, len(r), len(def.Fields))
		}
	}
	if def.CaseField != "" && def.fieldIndex(def.CaseField) < 0 {
		return fmt.Errorf("table %q case field %q is not declared", def.Key, def.CaseField)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tables[def.Key]; exists {
		return fmt.Errorf("table %q already defined", def.Key)
	}
	s.tables[def.Key] = &tableState{def: def, version: 1, rows: cloneRows(rows)}
	s.order = append(s.order, def.Key)
	return nil
}

// RegisterGroup names a set of row keys usable as a group filter. Filtering
// matches the first field of each row against the member set.
func (s *Store) RegisterGroup(name string, members []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := make(map[string]struct{}, len(members))
	for _, m := range members {
		set[m] = struct{}{}
	}
	s.groups[name] = set
}

// MarkObsolete records a deprecated table key with a migration note.
func (s *Store) MarkObsolete(key, note string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.obsolete = append(s.obsolete, tabular.ObsoleteTable{Key: key, MigrationNote: note})
}

// FailNextCommit arms a one-shot transport failure for the next CommitEdits
// call. Test hook.
func (s *Store) FailNextCommit(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitFault = err
}

// LastSelection returns the display selection most recently forwarded by a
// display read, and whether any read happened yet.
func (s *Store) LastSelection() (tabular.Selection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSelection.Clone(), s.selectionSeen
}

// Version returns the current version of a table. Test and diagnostics hook.
func (s *Store) Version(tableKey string) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[tableKey]
	if !ok {
		return 0, false
	}
	return t.version, true
}

// ListTables implements tabular.ModelStore.
func (s *Store) ListTables(_ context.Context) ([]tabular.TableDescriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]tabular.TableDescriptor, 0, len(s.order))
	for _, key := range s.order {
		t := s.tables[key]
		out = append(out, tabular.TableDescriptor{
			Key:         t.def.Key,
			DisplayName: t.def.DisplayName,
			Import:      t.def.Import,
			IsEmpty:     len(t.rows) == 0,
		})
	}
	return out, nil
}

// ListObsoleteTables implements tabular.ModelStore.
func (s *Store) ListObsoleteTables(_ context.Context) ([]tabular.ObsoleteTable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]tabular.ObsoleteTable(nil), s.obsolete...), nil
}

// ListFields implements tabular.ModelStore.
func (s *Store) ListFields(_ context.Context, tableKey string) ([]tabular.FieldDescriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[tableKey]
	if !ok {
		return nil, tabular.UnknownTableError{TableKey: tableKey}
	}
	out := make([]tabular.FieldDescriptor, 0, len(t.def.Fields))
	for _, f := range t.def.Fields {
		out = append(out, tabular.FieldDescriptor{TableKey: tableKey, FieldKey: f.Key, Importable: f.Importable})
	}
	return out, nil
}

// GetEditableTable implements tabular.ModelStore. The returned version must
// be echoed when the caller stages an edit built from this read.
func (s *Store) GetEditableTable(_ context.Context, tableKey, groupFilter string) (tabular.EditableTable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[tableKey]
	if !ok {
		return tabular.EditableTable{}, tabular.UnknownTableError{TableKey: tableKey}
	}
	if !t.def.Import.Editable() {
		return tabular.EditableTable{}, tabular.TableUnavailableError{TableKey: tableKey, Reason: "table is not importable"}
	}
	rows, err := s.filterRowsLocked(t, groupFilter)
	if err != nil {
		return tabular.EditableTable{}, err
	}
	keys := make([]string, 0, len(t.def.Fields))
	for _, f := range t.def.Fields {
		keys = append(keys, f.Key)
	}
	return tabular.EditableTable{
		Version:   t.version,
		FieldKeys: keys,
		RowCount:  len(rows),
		Rows:      flatten(rows),
	}, nil
}

// GetDisplayTable implements tabular.ModelStore. The forwarded selection is
// recorded and, for tables with a case field, narrows the returned rows.
func (s *Store) GetDisplayTable(_ context.Context, req tabular.DisplayRequest) (tabular.DisplayTable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSelection = req.Selection.Clone()
	s.selectionSeen = true

	t, ok := s.tables[req.TableKey]
	if !ok {
		return tabular.DisplayTable{}, tabular.UnknownTableError{TableKey: req.TableKey}
	}
	rows, err := s.filterRowsLocked(t, req.GroupFilter)
	if err != nil {
		return tabular.DisplayTable{}, err
	}
	rows = narrowBySelection(t.def, rows, req.Selection)

	keys := req.FieldKeys
	if len(keys) == 0 {
		keys = make([]string, 0, len(t.def.Fields))
		for _, f := range t.def.Fields {
			keys = append(keys, f.Key)
		}
	}
	idx := make([]int, len(keys))
	for i, k := range keys {
		j := t.def.fieldIndex(k)
		if j < 0 {
			return tabular.DisplayTable{}, tabular.UnknownFieldError{TableKey: req.TableKey, FieldKey: k}
		}
		idx[i] = j
	}
	out := make([]string, 0, len(rows)*len(keys))
	for _, r := range rows {
		for _, j := range idx {
			out = append(out, r[j])
		}
	}
	return tabular.DisplayTable{
		FieldKeys: append([]string(nil), keys...),
		RowCount:  len(rows),
		Rows:      out,
	}, nil
}

func (s *Store) filterRowsLocked(t *tableState, groupFilter string) ([][]string, error) {
	if groupFilter == "" {
		return cloneRows(t.rows), nil
	}
	members, ok := s.groups[groupFilter]
	if !ok {
		return nil, tabular.GroupNotFoundError{Group: groupFilter}
	}
	var out [][]string
	for _, r := range t.rows {
		if _, in := members[r[0]]; in {
			out = append(out, append([]string(nil), r...))
		}
	}
	return out, nil
}

func narrowBySelection(def TableDef, rows [][]string, sel tabular.Selection) [][]string {
	if def.CaseField == "" {
		return rows
	}
	names := make(map[string]struct{}, len(sel.Cases)+len(sel.Combinations)+len(sel.Patterns))
	for _, group := range [][]string{sel.Cases, sel.Combinations, sel.Patterns} {
		for _, n := range group {
			names[n] = struct{}{}
		}
	}
	if len(names) == 0 {
		return rows
	}
	j := def.fieldIndex(def.CaseField)
	var out [][]string
	for _, r := range rows {
		if _, in := names[r[j]]; in {
			out = append(out, r)
		}
	}
	return out
}

func flatten(rows [][]string) []string {
	var n int
	for _, r := range rows {
		n += len(r)
	}
	out := make([]string, 0, n)
	for _, r := range rows {
		out = append(out, r...)
	}
	return out
}

// commitLog accumulates per-row accounting for one batch.
type commitLog struct {
	stats tabular.CommitStats
	fill  bool
	lines []string
}

func (l *commitLog) fatal(format string, args ...any) { l.stats.FatalErrors++; l.line("FATAL", format, args...) }
func (l *commitLog) errorf(format string, args ...any) {
	l.stats.Errors++
	l.line("ERROR", format, args...)
}
func (l *commitLog) warnf(format string, args ...any) {
	l.stats.Warnings++
	l.line("WARNING", format, args...)
}
func (l *commitLog) infof(format string, args ...any) {
	l.stats.Infos++
	l.line("INFO", format, args...)
}

func (l *commitLog) line(level, format string, args ...any) {
	if !l.fill {
		return
	}
	l.lines = append(l.lines, level+" "+fmt.Sprintf(format, args...))
}

func (l *commitLog) text() string { return strings.Join(l.lines, "\n") }

// CommitEdits implements tabular.ModelStore. The whole batch runs under one
// lock; each edit is applied independently and problems are accounted per
// table in the returned stats rather than failing the call. Versions of
// successfully applied tables advance by one.
func (s *Store) CommitEdits(_ context.Context, edits []tabular.TableEdit, fillLog bool) (tabular.CommitStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.commitFault != nil {
		err := s.commitFault
		s.commitFault = nil
		return tabular.CommitStats{}, err
	}

	log := &commitLog{fill: fillLog}
	for _, edit := range edits {
		s.applyEditLocked(edit, log)
	}
	log.stats.Log = log.text()
	return log.stats, nil
}

func (s *Store) applyEditLocked(edit tabular.TableEdit, log *commitLog) {
	t, ok := s.tables[edit.TableKey]
	if !ok {
		log.fatal("%s: unknown table", edit.TableKey)
		return
	}
	if !t.def.Import.Editable() {
		log.fatal("%s: table is not importable", edit.TableKey)
		return
	}
	if edit.Version != t.version {
		log.errorf("%s: version conflict: staged %d, current %d", edit.TableKey, edit.Version, t.version)
		return
	}
	if len(edit.FieldKeys) == 0 || len(edit.Rows)%len(edit.FieldKeys) != 0 {
		log.errorf("%s: malformed edit: %d cells for %d fields", edit.TableKey, len(edit.Rows), len(edit.FieldKeys))
		return
	}
	colFor := make(map[string]int, len(edit.FieldKeys))
	for i, k := range edit.FieldKeys {
		j := t.def.fieldIndex(k)
		if j < 0 {
			log.errorf("%s: unknown field %q", edit.TableKey, k)
			return
		}
		if !t.def.Fields[j].Importable {
			log.errorf("%s: field %q is not importable", edit.TableKey, k)
			return
		}
		colFor[k] = i
	}

	rowCount := len(edit.Rows) / len(edit.FieldKeys)
	next := make([][]string, rowCount)
	blankFilled := false
	for i := 0; i < rowCount; i++ {
		row := make([]string, len(t.def.Fields))
		src := edit.Rows[i*len(edit.FieldKeys) : (i+1)*len(edit.FieldKeys)]
		for j, f := range t.def.Fields {
			if c, ok := colFor[f.Key]; ok {
				row[j] = src[c]
			} else if f.Importable {
				blankFilled = true
			}
		}
		next[i] = row
	}
	if blankFilled {
		log.warnf("%s: importable fields missing from edit were blank-filled", edit.TableKey)
	}
	t.rows = next
	t.version++
	log.infof("%s: applied %d rows, now version %d", edit.TableKey, rowCount, t.version)
}

// DiscardEdits implements tabular.ModelStore. The memory store keeps no
// store-side staged state, so there is nothing to discard.
func (s *Store) DiscardEdits(_ context.Context) error { return nil }
