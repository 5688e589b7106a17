// Package intake reads uploaded manifest CSV files into raw rows.
package intake

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/leapstack-labs/manifestkit/pkg/manifest"
)

// DefaultPreviewRows is the number of rows shown when previewing an upload.
const DefaultPreviewRows = 20

// ErrNoHeader is returned for input without a header row.
var ErrNoHeader = errors.New("empty file: no header row found")

// Warning is a non-fatal problem found while reading a manifest.
type Warning struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// Manifest is a parsed upload.
type Manifest struct {
	Headers   []string          `json:"headers"`
	Signature string            `json:"signature"`
	Rows      []manifest.RawRow `json:"rows"`
	Warnings  []Warning         `json:"warnings,omitempty"`
	Encoding  Encoding          `json:"encoding"`
}

// Preview returns the first n rows; n <= 0 means DefaultPreviewRows.
func (m *Manifest) Preview(n int) []manifest.RawRow {
	return Preview(m.Rows, n)
}

// Search returns the rows matching query with manifest.MatchesRaw. An empty
// query matches every row.
func (m *Manifest) Search(query string) []manifest.RawRow {
	return manifest.FilterRaw(m.Rows, query)
}

// Preview returns the first n of rows; n <= 0 means DefaultPreviewRows.
func Preview(rows []manifest.RawRow, n int) []manifest.RawRow {
	if n <= 0 {
		n = DefaultPreviewRows
	}
	if n > len(rows) {
		n = len(rows)
	}
	return rows[:n]
}

// Read parses a manifest from r.
func Read(r io.Reader) (*Manifest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return Parse(data)
}

// Parse decodes and parses manifest CSV bytes.
//
// Row numbers are 1-based with the first line after the header as row 1.
// Blank lines and rows whose cells are all empty are skipped, but they still
// consume a row number so numbers match what the vendor sees in a
// spreadsheet. Short rows are padded and long rows truncated to the header
// width, each with a warning. Duplicate header names are an error.
func Parse(data []byte) (*Manifest, error) {
	decoded, enc, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("encoding detection failed: %w", err)
	}

	reader := csv.NewReader(bytes.NewReader(decoded))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	headers, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoHeader
		}
		return nil, fmt.Errorf("failed to read header row: %w", err)
	}

	seen := make(map[string]int, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(h)
		headers[i] = h
		if h == "" {
			continue
		}
		if prev, ok := seen[h]; ok {
			return nil, fmt.Errorf("duplicate header %q in columns %d and %d", h, prev+1, i+1)
		}
		seen[h] = i
	}

	m := &Manifest{
		Headers:   headers,
		Signature: manifest.HeaderSignature(headers),
		Encoding:  enc,
	}

	lines := newLineCounter(decoded)
	nextLine := lines.lineAt(reader.InputOffset())
	rowNum := 0

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		var startLine int
		var parseErr *csv.ParseError
		switch {
		case errors.As(err, &parseErr):
			startLine = parseErr.StartLine
		case err != nil:
			return nil, fmt.Errorf("failed to read row %d: %w", rowNum+1, err)
		default:
			startLine, _ = reader.FieldPos(0)
		}

		// csv.Reader drops empty lines; count them so numbering matches.
		if skipped := startLine - nextLine; skipped > 0 {
			rowNum += skipped
		}
		rowNum++
		nextLine = lines.lineAt(reader.InputOffset())

		if err != nil {
			m.Warnings = append(m.Warnings, Warning{Row: rowNum, Message: fmt.Sprintf("parse error: %v", err)})
			continue
		}
		if isEmpty(record) {
			continue
		}

		if len(record) != len(headers) {
			if len(record) < len(headers) {
				m.Warnings = append(m.Warnings, Warning{
					Row:     rowNum,
					Message: fmt.Sprintf("row has %d columns, expected %d; padding with empty values", len(record), len(headers)),
				})
				padded := make([]string, len(headers))
				copy(padded, record)
				record = padded
			} else {
				m.Warnings = append(m.Warnings, Warning{
					Row:     rowNum,
					Message: fmt.Sprintf("row has %d columns, expected %d; truncating extra columns", len(record), len(headers)),
				})
				record = record[:len(headers)]
			}
		}

		raw := make(manifest.Row, len(headers))
		for i, h := range headers {
			if h == "" {
				continue
			}
			raw[h] = record[i]
		}
		m.Rows = append(m.Rows, manifest.RawRow{RowNumber: rowNum, Raw: raw})
	}

	return m, nil
}

// isEmpty reports whether every cell is the empty string. Cells holding only
// whitespace count as content.
func isEmpty(record []string) bool {
	for _, v := range record {
		if v != "" {
			return false
		}
	}
	return true
}

// lineCounter maps byte offsets to 1-based line numbers. Offsets must be
// queried in increasing order.
type lineCounter struct {
	data   []byte
	offset int64
	line   int
}

func newLineCounter(data []byte) *lineCounter {
	return &lineCounter{data: data, line: 1}
}

func (c *lineCounter) lineAt(offset int64) int {
	if offset > int64(len(c.data)) {
		offset = int64(len(c.data))
	}
	if offset > c.offset {
		c.line += bytes.Count(c.data[c.offset:offset], []byte{'\n'})
		c.offset = offset
	}
	return c.line
}
