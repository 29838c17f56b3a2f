// Package normalize converts heterogeneous provider records into a uniform
// tabular form. The schema is derived data, observed at runtime from the
// records themselves rather than declared as a compiled type.
package normalize

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// blankMarker fills cells for fields a record does not carry. Records missing
// fields are valid, not malformed.
const blankMarker = ""

// Table is the flattened, column-aligned representation of a record set.
// Every row has exactly len(Header) values.
type Table struct {
	Header []string
	Rows   [][]string
}

// RowCount returns the number of data rows (header excluded).
func (t *Table) RowCount() int {
	return len(t.Rows)
}

// Values returns the table as the destination API expects it: the header
// first, then the data rows in order.
func (t *Table) Values() [][]interface{} {
	values := make([][]interface{}, 0, len(t.Rows)+1)

	header := make([]interface{}, len(t.Header))
	for i, col := range t.Header {
		header[i] = col
	}
	values = append(values, header)

	for _, row := range t.Rows {
		cells := make([]interface{}, len(row))
		for i, cell := range row {
			cells[i] = cell
		}
		values = append(values, cells)
	}

	return values
}

// Normalize builds a Table from raw records. The header is the union of
// field names across all records: records contribute fields in input order,
// each record's fields in lexical order (Go maps carry no key order), and a
// field enters the header the first time it is seen. Provider meta fields
// are excluded. Every record becomes exactly one row; missing fields are
// blank-filled, nested values are flattened to a stable textual form.
func Normalize(records []map[string]any) *Table {
	header := deriveHeader(records)

	index := make(map[string]int, len(header))
	for i, col := range header {
		index[col] = i
	}

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		row := make([]string, len(header))
		for i := range row {
			row[i] = blankMarker
		}
		for field, value := range rec {
			if i, ok := index[field]; ok {
				row[i] = formatValue(value)
			}
		}
		rows = append(rows, row)
	}

	return &Table{Header: header, Rows: rows}
}

// deriveHeader collects the union of observed field names in first-seen
// order, skipping meta fields.
func deriveHeader(records []map[string]any) []string {
	seen := make(map[string]bool)
	var header []string

	for _, rec := range records {
		fields := make([]string, 0, len(rec))
		for field := range rec {
			if isMetaField(field) {
				continue
			}
			fields = append(fields, field)
		}
		sort.Strings(fields)

		for _, field := range fields {
			if !seen[field] {
				seen[field] = true
				header = append(header, field)
			}
		}
	}

	return header
}

// isMetaField reports whether the provider embedded this field as internal
// metadata rather than record data. Wedof uses HAL-style underscore prefixes
// for links and pagination metadata.
func isMetaField(name string) bool {
	return strings.HasPrefix(name, "_")
}

// formatValue renders a decoded JSON value as a single scalar cell. The
// representation is deterministic so that an unchanged upstream record
// produces an identical cell on every run.
func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return blankMarker
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case map[string]any, []any:
		// Canonical JSON text: map keys marshal in sorted order, so the
		// representation cannot drift between runs.
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	default:
		return fmt.Sprintf("%v", v)
	}
}
