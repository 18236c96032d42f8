package codec

import (
	"encoding/xml"
	"fmt"
)

// markupSchemaVersion is stamped on documents when schema inclusion is
// requested, so consumers can detect layout changes.
const markupSchemaVersion = "1"

type markupDoc struct {
	XMLName       xml.Name    `xml:"table"`
	Key           string      `xml:"key,attr,omitempty"`
	SchemaVersion string      `xml:"schemaVersion,attr,omitempty"`
	FieldKeys     []string    `xml:"fields>field"`
	Rows          []markupRow `xml:"rows>row"`
}

type markupRow struct {
	Cells []string `xml:"cell"`
}

// EncodeMarkup renders the table as a tagged markup document. When
// includeSchema is set the root element carries an explicit schema-version
// attribute. tableKey may be empty.
func EncodeMarkup(t Table, tableKey string, includeSchema bool) (string, error) {
	if len(t.FieldKeys) == 0 {
		return "", fmt.Errorf("markup form requires at least one field key")
	}
	doc := markupDoc{
		Key:       tableKey,
		FieldKeys: t.FieldKeys,
		Rows:      make([]markupRow, 0, t.RowCount()),
	}
	if includeSchema {
		doc.SchemaVersion = markupSchemaVersion
	}
	for i := 0; i < t.RowCount(); i++ {
		doc.Rows = append(doc.Rows, markupRow{Cells: t.Row(i)})
	}
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}
	return xml.Header + string(out) + "\n", nil
}

// DecodeMarkup parses a tagged markup document back into the canonical table
// along with the table key recorded on the root element.
func DecodeMarkup(text string) (Table, string, error) {
	var doc markupDoc
	if err := xml.Unmarshal([]byte(text), &doc); err != nil {
		return Table{}, "", fmt.Errorf("parse markup: %w", err)
	}
	if len(doc.FieldKeys) == 0 {
		return Table{}, "", fmt.Errorf("markup document declares no fields")
	}
	t := Table{FieldKeys: doc.FieldKeys}
	t.Rows = make([]string, 0, len(doc.Rows)*len(doc.FieldKeys))
	for i, row := range doc.Rows {
		if len(row.Cells) != len(doc.FieldKeys) {
			return Table{}, "", fmt.Errorf("markup row %d has %d cells, expected %d", i, len(row.Cells), len(doc.FieldKeys))
		}
		t.Rows = append(t.Rows, row.Cells...)
	}
	return t, doc.Key, nil
}
