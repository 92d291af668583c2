package table

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Metadata describes a parsed file.
type Metadata struct {
	Filename  string            `json:"filename"`
	Format    string            `json:"format"`
	RowCount  int               `json:"row_count"`
	Columns   []string          `json:"columns"`
	Types     map[string]string `json:"types"`
	SizeBytes int               `json:"size_bytes"`
}

// Load parses file bytes into a table based on the filename extension.
// CSV and JSON (array of objects) are supported.
func Load(data []byte, filename string) (*Table, *Metadata, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))

	var (
		t   *Table
		err error
	)
	switch ext {
	case "csv":
		t, err = loadCSV(data)
	case "json":
		t, err = loadJSON(data)
	default:
		return nil, nil, fmt.Errorf("unsupported file type %q (want csv or json)", ext)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", filename, err)
	}

	meta := &Metadata{
		Filename:  filename,
		Format:    ext,
		RowCount:  t.Len(),
		Columns:   append([]string(nil), t.Columns...),
		Types:     t.Schema(),
		SizeBytes: len(data),
	}
	return t, meta, nil
}

func loadCSV(data []byte) (*Table, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty file")
	}

	header := records[0]
	t := New(header...)
	for _, rec := range records[1:] {
		row := make(Row, len(header))
		for i, col := range header {
			if i >= len(rec) {
				row[col] = nil
				continue
			}
			row[col] = coerceCSVValue(rec[i])
		}
		t.Append(row)
	}
	return t, nil
}

// coerceCSVValue narrows obvious numerics so downstream type inference and
// generated code see numbers, not digit strings.
func coerceCSVValue(s string) any {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	if i, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return f
	}
	return trimmed
}

func loadJSON(data []byte) (*Table, error) {
	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("expected a JSON array of objects: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty file")
	}
	return FromRecords(records), nil
}
