// Package engine implements the table edit staging and commit engine: a
// catalog over the model store's table directory, versioned snapshot reads in
// three wire formats, an in-process staging buffer and a commit coordinator
// that applies the whole buffer as one batch.
package engine

import (
	"context"

	"tablecore/pkg/tabular"
)

// Catalog is a read-only directory of available and obsolete tables and their
// per-table field metadata. It holds no state beyond what the model store
// reports.
type Catalog struct {
	store tabular.ModelStore
}

// NewCatalog constructs a catalog over the supplied store.
func NewCatalog(store tabular.ModelStore) *Catalog {
	return &Catalog{store: store}
}

// ListAvailable returns every table the store currently reports. An empty
// result is valid.
func (c *Catalog) ListAvailable(ctx context.Context) ([]tabular.TableDescriptor, error) {
	return c.store.ListTables(ctx)
}

// ListObsolete returns deprecated table keys with migration notes.
func (c *Catalog) ListObsolete(ctx context.Context) ([]tabular.ObsoleteTable, error) {
	return c.store.ListObsoleteTables(ctx)
}

// ListFields returns the field metadata of one table. Unknown keys fail with
// tabular.UnknownTableError.
func (c *Catalog) ListFields(ctx context.Context, tableKey string) ([]tabular.FieldDescriptor, error) {
	return c.store.ListFields(ctx, tableKey)
}
