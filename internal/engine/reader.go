package engine

import (
	"context"

	"tablecore/pkg/tabular"
	"tablecore/pkg/tabular/codec"
)

// Payload is a table snapshot in a requested wire format. Snapshot always
// carries the canonical form; Encoded holds the delimited or markup rendering
// and is empty for the array format.
type Payload struct {
	Snapshot tabular.TableSnapshot
	Format   codec.Format
	Encoded  string
}

// SnapshotReader retrieves read-only or editable snapshots of one table from
// the model store. Display reads are narrowed by the shared selection state;
// editing reads carry the version that must be echoed when staging.
type SnapshotReader struct {
	store         tabular.ModelStore
	selection     *SelectionState
	separator     rune
	includeSchema bool
}

// NewSnapshotReader constructs a reader. Delimited renderings use separator
// (comma when zero) and markup renderings carry the schema-version attribute
// when includeSchema is set.
func NewSnapshotReader(store tabular.ModelStore, selection *SelectionState, separator rune, includeSchema bool) *SnapshotReader {
	if separator == 0 {
		separator = codec.DefaultSeparator
	}
	return &SnapshotReader{store: store, selection: selection, separator: separator, includeSchema: includeSchema}
}

// ReadForDisplay returns a read-only snapshot. Empty fieldKeys means all
// fields in catalog order. The returned payload has version zero: display
// reads are not stageable.
func (r *SnapshotReader) ReadForDisplay(ctx context.Context, tableKey string, fieldKeys []string, groupFilter string, format codec.Format) (Payload, error) {
	req := tabular.DisplayRequest{
		TableKey:    tableKey,
		FieldKeys:   fieldKeys,
		GroupFilter: groupFilter,
		Selection:   r.selection.Current(),
	}
	dt, err := r.store.GetDisplayTable(ctx, req)
	if err != nil {
		return Payload{}, err
	}
	snap := tabular.TableSnapshot{
		Key:       tableKey,
		FieldKeys: dt.FieldKeys,
		RowCount:  dt.RowCount,
		Rows:      dt.Rows,
	}
	return r.encode(snap, format)
}

// ReadForEditing returns an editable snapshot whose version must be echoed
// back when staging an edit built from it.
func (r *SnapshotReader) ReadForEditing(ctx context.Context, tableKey, groupFilter string, format codec.Format) (Payload, error) {
	et, err := r.store.GetEditableTable(ctx, tableKey, groupFilter)
	if err != nil {
		return Payload{}, err
	}
	snap := tabular.TableSnapshot{
		Key:       tableKey,
		Version:   et.Version,
		FieldKeys: et.FieldKeys,
		RowCount:  et.RowCount,
		Rows:      et.Rows,
	}
	return r.encode(snap, format)
}

func (r *SnapshotReader) encode(snap tabular.TableSnapshot, format codec.Format) (Payload, error) {
	if err := snap.Validate(); err != nil {
		return Payload{}, err
	}
	p := Payload{Snapshot: snap, Format: format}
	t := codec.Table{FieldKeys: snap.FieldKeys, Rows: snap.Rows}
	switch format {
	case codec.FormatArray, "":
		p.Format = codec.FormatArray
	case codec.FormatDelimited:
		text, err := codec.EncodeDelimited(t, r.separator)
		if err != nil {
			return Payload{}, err
		}
		p.Encoded = text
	case codec.FormatMarkup:
		text, err := codec.EncodeMarkup(t, snap.Key, r.includeSchema)
		if err != nil {
			return Payload{}, err
		}
		p.Encoded = text
	default:
		if _, err := codec.ParseFormat(string(format)); err != nil {
			return Payload{}, err
		}
	}
	return p, nil
}
