// Package sheet reads uploaded CSV and XLSX files into header keyed rows.
package sheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Row maps a normalized header name to the trimmed cell value.
type Row map[string]string

// Get returns the first non-empty value among keys.
func (r Row) Get(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(r[k]); v != "" {
			return v
		}
	}
	return ""
}

// Ptr is Get returning nil for an empty value.
func (r Row) Ptr(keys ...string) *string {
	v := r.Get(keys...)
	if v == "" {
		return nil
	}
	return &v
}

func (r Row) Empty() bool {
	for _, v := range r {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

var ErrUnsupported = errors.New("unsupported file type, upload a .csv or .xlsx file")

// Read dispatches on the file extension. maxRows bounds the data rows read
// (0 means unlimited).
func Read(filename string, r io.Reader, maxRows int) ([]Row, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt":
		return ReadCSV(r, maxRows)
	case ".xlsx", ".xlsm":
		return ReadXLSX(r, maxRows)
	default:
		return nil, ErrUnsupported
	}
}

func ReadCSV(r io.Reader, maxRows int) ([]Row, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return toRows(records, maxRows)
}

func ReadXLSX(r io.Reader, maxRows int) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return toRows(records, maxRows)
}

func toRows(records [][]string, maxRows int) ([]Row, error) {
	if len(records) == 0 {
		return nil, errors.New("file is empty")
	}
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = NormalizeHeader(h)
	}

	body := records[1:]
	if maxRows > 0 && len(body) > maxRows {
		return nil, fmt.Errorf("file has %d rows, the limit is %d", len(body), maxRows)
	}

	rows := make([]Row, 0, len(body))
	for _, rec := range body {
		row := make(Row, len(header))
		for i, h := range header {
			if h == "" {
				continue
			}
			if i < len(rec) {
				row[h] = strings.TrimSpace(rec[i])
			} else {
				row[h] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// NormalizeHeader lowercases a header and joins words with underscores,
// so "Party Code" and "party_code" address the same column.
func NormalizeHeader(h string) string {
	h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	h = strings.ToLower(h)
	h = strings.NewReplacer(" ", "_", "-", "_", ".", "").Replace(h)
	return h
}
