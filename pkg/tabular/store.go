package tabular

import "context"

// EditableTable is the versioned payload of an editing read. Rows is
// row-major with RowCount rows of len(FieldKeys) cells.
type EditableTable struct {
	Version   int64
	FieldKeys []string
	RowCount  int
	Rows      []string
}

// DisplayTable is the unversioned payload of a display read.
type DisplayTable struct {
	FieldKeys []string
	RowCount  int
	Rows      []string
}

// DisplayRequest parameterizes a display read. Empty FieldKeys means all
// fields in catalog order. Selection is forwarded verbatim; the store decides
// what narrowing it implies.
type DisplayRequest struct {
	TableKey    string
	FieldKeys   []string
	GroupFilter string
	Selection   Selection
}

// ModelStore is the external system of record that owns durable table
// contents. The engine validates locally, stages in memory, and otherwise
// forwards; per-table version conflicts, field coercion and referential
// validity are the store's responsibility.
type ModelStore interface {
	ListTables(ctx context.Context) ([]TableDescriptor, error)
	ListObsoleteTables(ctx context.Context) ([]ObsoleteTable, error)
	ListFields(ctx context.Context, tableKey string) ([]FieldDescriptor, error)

	GetEditableTable(ctx context.Context, tableKey, groupFilter string) (EditableTable, error)
	GetDisplayTable(ctx context.Context, req DisplayRequest) (DisplayTable, error)

	// CommitEdits applies the batch as one logical operation. A returned
	// error means the batch could not run at all; row-level problems are
	// reported through the stats counts and log instead.
	CommitEdits(ctx context.Context, edits []TableEdit, fillLog bool) (CommitStats, error)

	// DiscardEdits drops any store-side staged state. Stores without such
	// state return nil.
	DiscardEdits(ctx context.Context) error
}
