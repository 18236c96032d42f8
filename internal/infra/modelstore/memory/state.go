package memory

import "tablecore/pkg/tabular"

// TableState is the serializable snapshot of one table.
type TableState struct {
	Def     TableDef   `json:"def"`
	Version int64      `json:"version"`
	Rows    [][]string `json:"rows"`
}

// State is the full serializable store snapshot used by the persistent
// wrappers to hydrate and re-snapshot the store.
type State struct {
	Tables   []TableState            `json:"tables"`
	Groups   map[string][]string     `json:"groups,omitempty"`
	Obsolete []tabular.ObsoleteTable `json:"obsolete,omitempty"`
}

// ExportState captures the current store contents.
func (s *Store) ExportState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := State{Groups: make(map[string][]string, len(s.groups))}
	for _, key := range s.order {
		t := s.tables[key]
		st.Tables = append(st.Tables, TableState{
			Def:     t.clone().def,
			Version: t.version,
			Rows:    cloneRows(t.rows),
		})
	}
	for name, members := range s.groups {
		list := make([]string, 0, len(members))
		for m := range members {
			list = append(list, m)
		}
		st.Groups[name] = list
	}
	st.Obsolete = append([]tabular.ObsoleteTable(nil), s.obsolete...)
	return st
}

// ImportState replaces the store contents with a previously exported state.
func (s *Store) ImportState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables = make(map[string]*tableState, len(st.Tables))
	s.order = s.order[:0]
	for _, ts := range st.Tables {
		s.tables[ts.Def.Key] = &tableState{def: ts.Def, version: ts.Version, rows: cloneRows(ts.Rows)}
		s.order = append(s.order, ts.Def.Key)
	}
	s.groups = make(map[string]map[string]struct{}, len(st.Groups))
	for name, members := range st.Groups {
		set := make(map[string]struct{}, len(members))
		for _, m := range members {
			set[m] = struct{}{}
		}
		s.groups[name] = set
	}
	s.obsolete = append([]tabular.ObsoleteTable(nil), st.Obsolete...)
}
