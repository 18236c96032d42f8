package tabular

import "fmt"

// UnknownTableError reports a table key absent from the catalog.
type UnknownTableError struct {
	TableKey string
}

func (e UnknownTableError) Error() string {
	return fmt.Sprintf("unknown table %q", e.TableKey)
}

// TableUnavailableError reports a table that exists but cannot serve the
// requested read, e.g. an editing read against a non-importable table.
type TableUnavailableError struct {
	TableKey string
	Reason   string
}

func (e TableUnavailableError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("table %q unavailable", e.TableKey)
	}
	return fmt.Sprintf("table %q unavailable: %s", e.TableKey, e.Reason)
}

// UnknownFieldError reports a field key absent from a table's field list.
type UnknownFieldError struct {
	TableKey string
	FieldKey string
}

func (e UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field %q in table %q", e.FieldKey, e.TableKey)
}

// FieldNotImportableError reports an attempt to stage a read-only field.
type FieldNotImportableError struct {
	TableKey string
	FieldKey string
}

func (e FieldNotImportableError) Error() string {
	return fmt.Sprintf("field %q in table %q is not importable", e.FieldKey, e.TableKey)
}

// GroupNotFoundError reports an unknown group filter name.
type GroupNotFoundError struct {
	Group string
}

func (e GroupNotFoundError) Error() string {
	return fmt.Sprintf("group %q not found", e.Group)
}

// EmptySelectionError reports a selection-setting call with zero names. An
// empty selection is ambiguous between "select nothing" and a forgotten
// argument, so it is rejected rather than guessed at.
type EmptySelectionError struct {
	Kind string
}

func (e EmptySelectionError) Error() string {
	return fmt.Sprintf("selection of %s must name at least one entry", e.Kind)
}

// OptionRangeError reports an inverted result range in output options.
type OptionRangeError struct {
	Category string
	Start    int
	End      int
}

func (e OptionRangeError) Error() string {
	return fmt.Sprintf("%s range start %d exceeds end %d", e.Category, e.Start, e.End)
}

// ShapeError reports a violated row-major shape invariant: the flat cell
// slice must hold exactly RowCount*Fields entries.
type ShapeError struct {
	TableKey string
	Fields   int
	RowCount int
	Cells    int
}

func (e ShapeError) Error() string {
	return fmt.Sprintf("table %q shape mismatch: %d cells for %d fields x %d rows", e.TableKey, e.Cells, e.Fields, e.RowCount)
}

// StoreCommunicationError reports a model store call that failed outright,
// with no partial result to surface.
type StoreCommunicationError struct {
	Op  string
	Err error
}

func (e StoreCommunicationError) Error() string {
	return fmt.Sprintf("model store %s failed: %v", e.Op, e.Err)
}

func (e StoreCommunicationError) Unwrap() error { return e.Err }
