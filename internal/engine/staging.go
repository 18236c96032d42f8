package engine

import (
	"context"
	"fmt"
	"sync"

	"tablecore/pkg/tabular"
)

// StagingBuffer holds at most one pending edit per table key until the batch
// is applied or cancelled. It is explicit, constructor-injected state — not a
// hidden singleton — so independent engines can run in parallel.
//
// The buffer assumes one logical editing session: concurrent Stage calls for
// the same key are last-writer-wins, and callers needing multi-writer
// isolation must serialize the Stage-Apply sequence externally.
type StagingBuffer struct {
	catalog *Catalog

	mu    sync.Mutex
	edits map[string]tabular.PendingEdit
	order []string
}

// NewStagingBuffer constructs an empty buffer validating against catalog.
func NewStagingBuffer(catalog *Catalog) *StagingBuffer {
	return &StagingBuffer{
		catalog: catalog,
		edits:   make(map[string]tabular.PendingEdit),
	}
}

// Stage records an intended edit. The rows must be row-major over fieldKeys,
// every field key must exist in the catalog and be importable, and version
// must come from an editing read. Version freshness is deliberately not
// checked here: versions of unrelated tables move independently between
// Stage calls, so the store arbitrates conflicts at Apply time.
//
// Staging again for the same table key replaces the prior pending edit
// wholesale. A rejected edit leaves any prior pending edit untouched.
func (b *StagingBuffer) Stage(ctx context.Context, tableKey string, version int64, fieldKeys []string, rows []string) error {
	if len(fieldKeys) == 0 || len(rows)%len(fieldKeys) != 0 {
		return tabular.ShapeError{
			TableKey: tableKey,
			Fields:   len(fieldKeys),
			RowCount: -1,
			Cells:    len(rows),
		}
	}
	catalogFields, err := b.catalog.ListFields(ctx, tableKey)
	if err != nil {
		return err
	}
	importable := make(map[string]bool, len(catalogFields))
	for _, f := range catalogFields {
		importable[f.FieldKey] = f.Importable
	}
	seen := make(map[string]struct{}, len(fieldKeys))
	for _, key := range fieldKeys {
		ok, known := importable[key]
		if !known {
			return tabular.UnknownFieldError{TableKey: tableKey, FieldKey: key}
		}
		if !ok {
			return tabular.FieldNotImportableError{TableKey: tableKey, FieldKey: key}
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("field %q staged twice for table %q", key, tableKey)
		}
		seen[key] = struct{}{}
	}

	edit := tabular.PendingEdit{
		TableKey:  tableKey,
		Version:   version,
		FieldKeys: append([]string(nil), fieldKeys...),
		Rows:      append([]string(nil), rows...),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.edits[tableKey]; !exists {
		b.order = append(b.order, tableKey)
	}
	b.edits[tableKey] = edit
	return nil
}

// Peek returns a copy of the pending edit for a table key, if any. Read-only
// introspection for diagnostics and tests.
func (b *StagingBuffer) Peek(tableKey string) (tabular.PendingEdit, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	edit, ok := b.edits[tableKey]
	if !ok {
		return tabular.PendingEdit{}, false
	}
	return edit.Clone(), true
}

// Len reports the number of pending edits.
func (b *StagingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.edits)
}

// Keys returns the staged table keys in staging order.
func (b *StagingBuffer) Keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.order...)
}

// Clear discards every pending edit without touching the model store.
func (b *StagingBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.edits = make(map[string]tabular.PendingEdit)
	b.order = b.order[:0]
}

// snapshotEdits copies the buffer contents in staging order as wire edits.
func (b *StagingBuffer) snapshotEdits() []tabular.TableEdit {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]tabular.TableEdit, 0, len(b.order))
	for _, key := range b.order {
		e := b.edits[key].Clone()
		out = append(out, tabular.TableEdit{
			TableKey:  e.TableKey,
			Version:   e.Version,
			FieldKeys: e.FieldKeys,
			Rows:      e.Rows,
		})
	}
	return out
}
