package services

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/Lllllllleong/datasegmentationflow/internal/models"
)

// Inferred column types.
const (
	ColumnTypeInteger = "integer"
	ColumnTypeNumber  = "number"
	ColumnTypeBoolean = "boolean"
	ColumnTypeString  = "string"
)

// Sample is the head of a tabular object: its schema and the first rows.
type Sample struct {
	Schema models.Schema
	Rows   []map[string]string
}

// ReadSample parses at most maxRows data rows out of data. truncated tells the
// reader the bytes stop at a read limit, so the trailing CSV record may be cut.
func ReadSample(data []byte, fileName string, maxRows int, truncated bool) (Sample, error) {
	var (
		header  []string
		records [][]string
		err     error
	)
	switch ext := strings.ToLower(path.Ext(fileName)); ext {
	case ".csv", ".txt", "":
		header, records, err = readCSV(data, maxRows, truncated)
	case ".xlsx", ".xlsm":
		if truncated {
			return Sample{}, errValidation("workbook %q is larger than the sampling limit", fileName)
		}
		header, records, err = readWorkbook(data, maxRows)
	default:
		return Sample{}, errValidation("unsupported file type %q; expected .csv or .xlsx", ext)
	}
	if err != nil {
		return Sample{}, err
	}
	if len(header) == 0 {
		return Sample{}, errValidation("file %q has no header row", fileName)
	}

	rows := make([]map[string]string, 0, len(records))
	for _, rec := range records {
		row := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(rec) {
				row[name] = rec[i]
			} else {
				row[name] = ""
			}
		}
		rows = append(rows, row)
	}

	schema := make(models.Schema, 0, len(header))
	for _, name := range header {
		values := make([]string, 0, len(rows))
		for _, row := range rows {
			values = append(values, row[name])
		}
		schema = append(schema, models.Column{Name: name, Type: inferType(values)})
	}
	return Sample{Schema: schema, Rows: rows}, nil
}

func readCSV(data []byte, maxRows int, truncated bool) ([]string, [][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, nil
		}
		return nil, nil, errValidation("file is not valid CSV: %v", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var records [][]string
	reachedEnd := false
	for len(records) < maxRows {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			reachedEnd = true
			break
		}
		if err != nil {
			if truncated {
				reachedEnd = true
				break
			}
			return nil, nil, errValidation("file is not valid CSV: %v", err)
		}
		records = append(records, rec)
	}
	// The last record before a read limit may be partial.
	if truncated && reachedEnd && len(records) > 0 {
		records = records[:len(records)-1]
	}
	return header, records, nil
}

func readWorkbook(data []byte, maxRows int) ([]string, [][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, errValidation("file is not a valid workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, errValidation("failed to read sheet %q: %v", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}
	header := rows[0]
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	records := rows[1:]
	if len(records) > maxRows {
		records = records[:maxRows]
	}
	return header, records, nil
}

// inferType picks the narrowest type every non-empty value satisfies.
func inferType(values []string) string {
	isInt, isNum, isBool := true, true, true
	seen := false
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		seen = true
		if _, err := strconv.ParseInt(v, 10, 64); err != nil {
			isInt = false
		}
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			isNum = false
		}
		if _, err := strconv.ParseBool(strings.ToLower(v)); err != nil {
			isBool = false
		}
	}
	switch {
	case !seen:
		return ColumnTypeString
	case isInt:
		return ColumnTypeInteger
	case isNum:
		return ColumnTypeNumber
	case isBool:
		return ColumnTypeBoolean
	default:
		return ColumnTypeString
	}
}
