package utils

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"analytics-ai/internal/table"
)

const (
	// DefaultPreviewRows is used when the caller does not ask for a row count.
	DefaultPreviewRows = 10

	rawPreviewLimit      = 2000
	invalidJSONLimit     = 1000
	truncationEllipsis   = "..."
	singleValueColumn    = "data"
	invalidJSONMessage   = "Invalid JSON format"
	rawPreviewMessageFmt = "Raw preview of %s file"
)

// ColumnInfo describes one column of a preview.
type ColumnInfo struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	DType string `json:"dtype"`
}

// PreviewResult is the body returned by the file preview endpoint. Interface
// fields are left nil to omit them for file types that do not carry them.
type PreviewResult struct {
	Type      string      `json:"type"`
	Columns   interface{} `json:"columns,omitempty"`
	Rows      interface{} `json:"rows,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	RowsShown int         `json:"rowsShown"`
	TotalRows int         `json:"totalRows"`
	Error     string      `json:"error,omitempty"`
	Message   string      `json:"message,omitempty"`
}

// FileExtension returns the lower-cased text after the last dot, or the whole
// lower-cased name when there is no dot.
func FileExtension(name string) string {
	lower := strings.ToLower(name)
	if i := strings.LastIndex(lower, "."); i >= 0 {
		return lower[i+1:]
	}
	return lower
}

// BuildPreview renders the first rows of content according to the file extension.
func BuildPreview(filename string, content []byte, rows int) (*PreviewResult, error) {
	if rows < 0 {
		rows = 0
	}

	ext := FileExtension(filename)
	switch ext {
	case "csv":
		return previewCSV(content, rows)
	case "json":
		return previewJSON(content, rows), nil
	default:
		return &PreviewResult{
			Type:    ext,
			Data:    Truncate(string(content), rawPreviewLimit),
			Message: fmt.Sprintf(rawPreviewMessageFmt, ext),
		}, nil
	}
}

// Truncate cuts s to limit characters and marks the cut with "...".
func Truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + truncationEllipsis
}

func previewCSV(content []byte, rows int) (*PreviewResult, error) {
	frame, err := ParseCSVFrame(content)
	if err != nil {
		return nil, err
	}

	shown := frame.Records
	if len(shown) > rows {
		shown = shown[:rows]
	}

	return &PreviewResult{
		Type:      "csv",
		Columns:   frame.Columns,
		Rows:      shown,
		RowsShown: len(shown),
		TotalRows: len(frame.Records),
	}, nil
}

func previewJSON(content []byte, rows int) *PreviewResult {
	value, err := table.Decode(content)
	if err != nil {
		return &PreviewResult{
			Type:  "json",
			Data:  Truncate(string(content), invalidJSONLimit),
			Error: invalidJSONMessage,
		}
	}

	items, ok := value.([]interface{})
	if !ok {
		return &PreviewResult{
			Type:      "json",
			Columns:   []ColumnInfo{{Name: singleValueColumn, Type: "json", DType: "object"}},
			Rows:      []interface{}{value},
			RowsShown: 1,
			TotalRows: 1,
		}
	}

	head := items
	if len(head) > rows {
		head = head[:rows]
	}
	frame := FrameFromJSON(head)

	return &PreviewResult{
		Type:      "json",
		Columns:   frame.Columns,
		Rows:      frame.Records,
		RowsShown: len(frame.Records),
		TotalRows: len(items),
	}
}

// Frame is a typed table: columns in order and one record per row.
type Frame struct {
	Columns []ColumnInfo
	Records []table.Record
}

// missingMarkers are the cell values a dataframe loader reads as missing.
var missingMarkers = map[string]bool{
	"": true, "#N/A": true, "#N/A N/A": true, "#NA": true, "-1.#IND": true,
	"-1.#QNAN": true, "-NaN": true, "-nan": true, "1.#IND": true, "1.#QNAN": true,
	"<NA>": true, "N/A": true, "NA": true, "NULL": true, "NaN": true, "None": true,
	"n/a": true, "nan": true, "null": true,
}

var boolLiterals = map[string]bool{
	"True": true, "TRUE": true, "true": true,
	"False": false, "FALSE": false, "false": false,
}

// ParseCSVFrame reads CSV content with a header row and infers a type per column.
func ParseCSVFrame(content []byte) (*Frame, error) {
	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("no columns to parse from file")
		}
		return nil, fmt.Errorf("parse CSV header: %w", err)
	}
	names := uniqueColumnNames(header)

	var cells [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse CSV: %w", err)
		}
		if len(record) > len(names) {
			return nil, fmt.Errorf("parse CSV: expected %d fields, saw %d", len(names), len(record))
		}
		cells = append(cells, record)
	}

	columns := make([]ColumnInfo, len(names))
	values := make([][]interface{}, len(names))
	for j, name := range names {
		raw := make([]string, len(cells))
		for i, record := range cells {
			if j < len(record) {
				raw[i] = record[j]
			}
		}
		columns[j], values[j] = inferCSVColumn(name, raw)
	}

	records := make([]table.Record, len(cells))
	for i := range cells {
		rec := make(table.Record, len(names))
		for j, name := range names {
			rec[j] = table.Field{Key: name, Value: values[j][i]}
		}
		records[i] = rec
	}

	return &Frame{Columns: columns, Records: records}, nil
}

// uniqueColumnNames suffixes repeated header names with .1, .2, ...
func uniqueColumnNames(header []string) []string {
	seen := make(map[string]int, len(header))
	names := make([]string, len(header))
	for i, h := range header {
		name := h
		for seen[name] > 0 {
			name = fmt.Sprintf("%s.%d", h, seen[h])
			seen[h]++
		}
		seen[name]++
		names[i] = name
	}
	return names
}

func inferCSVColumn(name string, raw []string) (ColumnInfo, []interface{}) {
	values := make([]interface{}, len(raw))

	allInt, allFloat, allBool := true, true, true
	missing, present := false, 0
	for _, s := range raw {
		if missingMarkers[s] {
			missing = true
			continue
		}
		present++
		t := strings.TrimSpace(s)
		if _, err := strconv.ParseInt(t, 10, 64); err != nil {
			allInt = false
		}
		if _, ok := parseCSVFloat(t); !ok {
			allFloat = false
		}
		if _, ok := boolLiterals[t]; !ok {
			allBool = false
		}
	}

	switch {
	case present == 0 && len(raw) > 0:
		return column(name, "float64"), values
	case present == 0:
		return column(name, "object"), values
	case allInt && !missing:
		for i, s := range raw {
			values[i], _ = strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		}
		return column(name, "int64"), values
	case allFloat:
		for i, s := range raw {
			if missingMarkers[s] {
				continue
			}
			if f, _ := parseCSVFloat(strings.TrimSpace(s)); !math.IsInf(f, 0) && !math.IsNaN(f) {
				values[i] = f
			}
		}
		return column(name, "float64"), values
	case allBool && !missing:
		for i, s := range raw {
			values[i] = boolLiterals[strings.TrimSpace(s)]
		}
		return column(name, "bool"), values
	default:
		for i, s := range raw {
			if missingMarkers[s] {
				continue
			}
			values[i] = s
		}
		return column(name, "object"), values
	}
}

// parseCSVFloat accepts decimal notation only. Infinities parse so the column
// stays numeric, but callers store them as missing since JSON cannot carry them.
func parseCSVFloat(t string) (float64, bool) {
	if strings.ContainsAny(t, "_xXpP") {
		return 0, false
	}
	f, err := strconv.ParseFloat(t, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	return f, true
}

// FrameFromJSON builds a frame from decoded JSON array elements. Object keys
// become columns in order of first appearance; other elements land in column "0".
func FrameFromJSON(items []interface{}) *Frame {
	var names []string
	index := map[string]int{}
	rows := make([]table.Record, len(items))
	for i, item := range items {
		rec, ok := item.(table.Record)
		if !ok {
			rec = table.Record{{Key: "0", Value: item}}
		}
		rows[i] = rec
		for _, key := range rec.Keys() {
			if _, seen := index[key]; !seen {
				index[key] = len(names)
				names = append(names, key)
			}
		}
	}

	columns := make([]ColumnInfo, len(names))
	for j, name := range names {
		col := make([]interface{}, len(rows))
		for i, rec := range rows {
			col[i], _ = rec.Get(name)
		}
		columns[j] = column(name, inferJSONDType(col))
	}

	records := make([]table.Record, len(rows))
	for i, rec := range rows {
		out := make(table.Record, len(names))
		for j, name := range names {
			v, _ := rec.Get(name)
			if columns[j].DType == "float64" {
				if n, ok := v.(int64); ok {
					v = float64(n)
				}
			}
			out[j] = table.Field{Key: name, Value: v}
		}
		records[i] = out
	}

	return &Frame{Columns: columns, Records: records}
}

func inferJSONDType(values []interface{}) string {
	allInt, allNumber, allBool := true, true, true
	missing, present := false, 0
	for _, v := range values {
		switch v.(type) {
		case nil:
			missing = true
			continue
		case int64:
			allBool = false
		case float64:
			allInt = false
			allBool = false
		case bool:
			allInt = false
			allNumber = false
		default:
			allInt, allNumber, allBool = false, false, false
		}
		present++
	}

	switch {
	case present == 0:
		return "object"
	case allInt && !missing:
		return "int64"
	case allNumber:
		return "float64"
	case allBool && !missing:
		return "bool"
	default:
		return "object"
	}
}

func column(name, dtype string) ColumnInfo {
	return ColumnInfo{Name: name, Type: ReadableType(dtype), DType: dtype}
}

// ReadableType maps a dataframe dtype to the short type shown to users.
func ReadableType(dtype string) string {
	switch {
	case strings.HasPrefix(dtype, "int"):
		return "int"
	case strings.HasPrefix(dtype, "float"):
		return "float"
	case strings.HasPrefix(dtype, "bool"):
		return "bool"
	case strings.HasPrefix(dtype, "datetime"):
		return "date"
	default:
		return "string"
	}
}
