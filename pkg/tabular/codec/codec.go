// Package codec converts between the canonical table representation and the
// three wire formats used for snapshot transfer: row-major value array,
// delimited text and tagged markup. All three are semantically equivalent and
// round-trip losslessly through Table.
package codec

import "fmt"

// Format names a snapshot wire format.
type Format string

const (
	// FormatArray is the flat row-major value array.
	FormatArray Format = "array"
	// FormatDelimited is separator-joined text with one header line.
	FormatDelimited Format = "delimited"
	// FormatMarkup is a hierarchical tagged document.
	FormatMarkup Format = "markup"
)

// DefaultSeparator joins delimited-text fields unless the caller chooses
// another rune.
const DefaultSeparator = ','

// ParseFormat maps a format name to its Format, accepting only known names.
func ParseFormat(name string) (Format, error) {
	switch Format(name) {
	case FormatArray, FormatDelimited, FormatMarkup:
		return Format(name), nil
	default:
		return "", fmt.Errorf("unknown format %q", name)
	}
}

// Table is the canonical representation every codec encodes from and decodes
// to: ordered field keys and a flat row-major cell slice.
type Table struct {
	FieldKeys []string
	Rows      []string
}

// RowCount derives the number of rows from the cell slice.
func (t Table) RowCount() int {
	if len(t.FieldKeys) == 0 {
		return 0
	}
	return len(t.Rows) / len(t.FieldKeys)
}

// Row returns row i as a slice view; callers must not retain it across edits.
func (t Table) Row(i int) []string {
	f := len(t.FieldKeys)
	return t.Rows[i*f : (i+1)*f]
}

// Clone returns a deep copy of the table.
func (t Table) Clone() Table {
	return Table{
		FieldKeys: append([]string(nil), t.FieldKeys...),
		Rows:      append([]string(nil), t.Rows...),
	}
}

// FromFlat validates a caller-supplied flat array against the field count and
// wraps it as a Table.
func FromFlat(fieldKeys []string, rows []string) (Table, error) {
	if len(fieldKeys) == 0 {
		return Table{}, fmt.Errorf("array form requires at least one field key")
	}
	if len(rows)%len(fieldKeys) != 0 {
		return Table{}, fmt.Errorf("array form has %d cells, not a multiple of %d fields", len(rows), len(fieldKeys))
	}
	return Table{
		FieldKeys: append([]string(nil), fieldKeys...),
		Rows:      append([]string(nil), rows...),
	}, nil
}
