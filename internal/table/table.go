// Package table provides the tabular data model shared by the reconciliation
// pipeline: an ordered sequence of rows, each row a mapping from column name
// to scalar value. Schema information is inferred metadata, not enforced
// per-row.
package table

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// MissingCell is substituted for absent or nil values whenever rows are
// exported, so results are always serializable.
const MissingCell = ""

// Row maps column names to scalar values.
type Row map[string]any

// Table is an ordered collection of rows with a declared column order.
type Table struct {
	Columns []string
	Rows    []Row
}

// New returns an empty table with the given column order.
func New(columns ...string) *Table {
	return &Table{Columns: append([]string(nil), columns...)}
}

// FromRecords builds a table from row-of-mapping form. Column order is taken
// from the union of keys, sorted, since map iteration order is unstable.
func FromRecords(records []map[string]any) *Table {
	seen := map[string]bool{}
	var columns []string
	for _, rec := range records {
		for k := range rec {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}
	sort.Strings(columns)

	t := New(columns...)
	for _, rec := range records {
		t.Append(Row(rec))
	}
	return t
}

// Append adds a row to the table.
func (t *Table) Append(r Row) {
	t.Rows = append(t.Rows, r)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Copy returns a deep copy. Sandboxed programs receive copies, never the
// session's original tables.
func (t *Table) Copy() *Table {
	if t == nil {
		return nil
	}
	out := New(t.Columns...)
	out.Rows = make([]Row, 0, len(t.Rows))
	for _, r := range t.Rows {
		dup := make(Row, len(r))
		for k, v := range r {
			dup[k] = v
		}
		out.Rows = append(out.Rows, dup)
	}
	return out
}

// Records converts the table to row-of-mapping form, substituting MissingCell
// for nil values and filling absent columns.
func (t *Table) Records() []map[string]any {
	if t == nil {
		return []map[string]any{}
	}
	out := make([]map[string]any, 0, len(t.Rows))
	for _, r := range t.Rows {
		rec := make(map[string]any, len(t.Columns))
		for _, col := range t.Columns {
			v, ok := r[col]
			if !ok || v == nil {
				rec[col] = MissingCell
				continue
			}
			rec[col] = v
		}
		out = append(out, rec)
	}
	return out
}

// Schema infers a type name per column from the first non-empty values.
func (t *Table) Schema() map[string]string {
	schema := make(map[string]string, len(t.Columns))
	for _, col := range t.Columns {
		schema[col] = t.inferColumnType(col)
	}
	return schema
}

func (t *Table) inferColumnType(col string) string {
	const sampleLimit = 50
	counts := map[string]int{}
	sampled := 0
	for _, r := range t.Rows {
		if sampled >= sampleLimit {
			break
		}
		v, ok := r[col]
		if !ok || v == nil {
			continue
		}
		kind := inferKind(v)
		if kind == "" {
			continue
		}
		counts[kind]++
		sampled++
	}
	if sampled == 0 {
		return "empty"
	}
	best, bestCount := "string", 0
	for kind, n := range counts {
		if n > bestCount {
			best, bestCount = kind, n
		}
	}
	return best
}

var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"01/02/2006",
	"02-Jan-06",
	"02-Jan-2006",
	time.RFC3339,
}

func inferKind(v any) string {
	switch x := v.(type) {
	case int, int32, int64:
		return "integer"
	case float32:
		return "float"
	case float64:
		if x == float64(int64(x)) {
			return "integer"
		}
		return "float"
	case bool:
		return "boolean"
	case time.Time:
		return "date"
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return ""
		}
		if _, err := strconv.ParseInt(s, 10, 64); err == nil {
			return "integer"
		}
		if _, err := strconv.ParseFloat(s, 64); err == nil {
			return "float"
		}
		if _, err := strconv.ParseBool(s); err == nil {
			return "boolean"
		}
		for _, layout := range dateLayouts {
			if _, err := time.Parse(layout, s); err == nil {
				return "date"
			}
		}
		return "string"
	default:
		return "string"
	}
}

// Preview renders up to n rows as a markdown table for LLM context windows.
func (t *Table) Preview(n int) string {
	if t == nil || len(t.Columns) == 0 {
		return "(empty table)"
	}
	if n > len(t.Rows) {
		n = len(t.Rows)
	}

	var b strings.Builder
	b.WriteString("| ")
	b.WriteString(strings.Join(t.Columns, " | "))
	b.WriteString(" |\n|")
	for range t.Columns {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")

	for i := 0; i < n; i++ {
		b.WriteString("| ")
		cells := make([]string, 0, len(t.Columns))
		for _, col := range t.Columns {
			cells = append(cells, cellString(t.Rows[i][col]))
		}
		b.WriteString(strings.Join(cells, " | "))
		b.WriteString(" |\n")
	}
	if n < len(t.Rows) {
		fmt.Fprintf(&b, "... %d more rows\n", len(t.Rows)-n)
	}
	return b.String()
}

func cellString(v any) string {
	if v == nil {
		return MissingCell
	}
	switch x := v.(type) {
	case string:
		// Pipes would break the markdown layout.
		return strings.ReplaceAll(x, "|", "\\|")
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", x)
	}
}
