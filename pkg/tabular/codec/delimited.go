package codec

import (
	"encoding/csv"
	"fmt"
	"strings"
)

// EncodeDelimited renders the table as delimited text: one header line of
// field keys followed by one line per row, fields joined by sep. Cells
// containing the separator, quotes or newlines are quoted.
func EncodeDelimited(t Table, sep rune) (string, error) {
	if len(t.FieldKeys) == 0 {
		return "", fmt.Errorf("delimited form requires at least one field key")
	}
	if sep == 0 {
		sep = DefaultSeparator
	}
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	w.Comma = sep
	if err := writeRecord(w, &sb, t.FieldKeys); err != nil {
		return "", err
	}
	for i := 0; i < t.RowCount(); i++ {
		if err := writeRecord(w, &sb, t.Row(i)); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// writeRecord writes one record, quoting a lone empty field explicitly.
// csv.Writer emits it as a blank line and csv.Reader skips blank lines, so
// the row would otherwise vanish on decode.
func writeRecord(w *csv.Writer, sb *strings.Builder, rec []string) error {
	if len(rec) == 1 && rec[0] == "" {
		w.Flush()
		if err := w.Error(); err != nil {
			return err
		}
		sb.WriteString("\"\"\n")
		return nil
	}
	return w.Write(rec)
}

// DecodeDelimited parses delimited text produced by EncodeDelimited (or any
// equivalent header-plus-rows text) back into the canonical table. Every row
// must have exactly as many fields as the header.
func DecodeDelimited(text string, sep rune) (Table, error) {
	if sep == 0 {
		sep = DefaultSeparator
	}
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = sep
	records, err := r.ReadAll()
	if err != nil {
		return Table{}, fmt.Errorf("parse delimited text: %w", err)
	}
	if len(records) == 0 {
		return Table{}, fmt.Errorf("delimited text is missing the header line")
	}
	t := Table{FieldKeys: records[0]}
	t.Rows = make([]string, 0, (len(records)-1)*len(records[0]))
	for _, rec := range records[1:] {
		t.Rows = append(t.Rows, rec...)
	}
	return t, nil
}
