// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package segment

import (
	"fmt"
	"sort"
	"strings"
)

// Filing is one parsed filing document: its accession number, document
// path, and the parsed JSON tree produced upstream.
type Filing struct {
	Accession string `json:"accession"`
	Path      string `json:"path"`
	Data      any    `json:"data"`
}

const (
	recordText        = "text"
	recordTableColumn = "table_column"
)

// Flatten walks the filing's JSON tree in a single pass and lifts out the
// annotatable text: every "text" field containing at least one letter
// becomes a text record, and every "table" value becomes one record per
// column, rendered as "header: v1, v2, ...". Each record carries the
// dotted path to its source node for provenance.
func Flatten(f Filing) []Record {
	var records []Record
	walk(f.Data, "", &records, f.Accession, f.Path)
	return records
}

func walk(node any, jsonPath string, records *[]Record, accession, path string) {
	switch v := node.(type) {
	case map[string]any:
		// Sorted keys keep flattening deterministic; decoded JSON maps
		// have no insertion order to preserve.
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			value := v[key]
			if key == "text" {
				if text, ok := value.(string); ok && hasLetter(text) {
					*records = append(*records, Record{
						Accession: accession,
						Path:      path,
						JSONPath:  jsonPath,
						Type:      recordText,
						Text:      strings.TrimSpace(text),
					})
					continue
				}
			}
			if key == "table" {
				if rows, ok := value.([]any); ok && len(rows) > 1 {
					*records = append(*records, tableColumns(rows, jsonPath, accession, path)...)
					continue
				}
			}
			walk(value, joinPath(jsonPath, key), records, accession, path)
		}
	case []any:
		for i, item := range v {
			walk(item, joinPath(jsonPath, fmt.Sprintf("[%d]", i)), records, accession, path)
		}
	}
}

func joinPath(base, component string) string {
	if base == "" {
		return component
	}
	return base + "." + component
}

// tableColumns renders each column of a table as one record. The first row
// is assumed to be headers. Columns whose rendered text adds nothing
// beyond the header are dropped.
func tableColumns(rows []any, jsonPath, accession, path string) []Record {
	headers, ok := rows[0].([]any)
	if !ok {
		return nil
	}
	dataRows := rows[1:]

	var records []Record
	for colIdx, h := range headers {
		header := cellString(h)

		var values []string
		for _, r := range dataRows {
			row, ok := r.([]any)
			if !ok || colIdx >= len(row) {
				continue
			}
			if v := cellString(row[colIdx]); v != "" {
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			continue
		}

		columnText := header + ": " + strings.Join(values, ", ")
		if len(columnText) <= len(header)+2 {
			continue
		}

		records = append(records, Record{
			Accession: accession,
			Path:      path,
			JSONPath:  jsonPath,
			Type:      recordTableColumn,
			Text:      columnText,
		})
	}
	return records
}

// cellString renders a table cell. JSON numbers arrive as float64; render
// integral values without the trailing ".0" noise.
func cellString(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	case float64:
		if c == float64(int64(c)) {
			return fmt.Sprintf("%d", int64(c))
		}
		return fmt.Sprintf("%g", c)
	default:
		return fmt.Sprint(c)
	}
}

func hasLetter(s string) bool {
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return true
		}
	}
	return false
}
