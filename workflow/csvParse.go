package workflow

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/provenroll/enrollfix_backend/utils"
)

// ParseCsv reads an uploaded file into an ordered header list and a row set
// keyed by column name. The first record is the header row. Any read error
// aborts the whole parse; no partial row set is returned.
func ParseCsv(r io.Reader) ([]string, []map[string]string, error) {
	reader := csv.NewReader(r)

	headers, err := reader.Read()
	if err == io.EOF {
		return nil, nil, &utils.ParseError{Err: errors.New("file is empty")}
	}
	if err != nil {
		return nil, nil, wrapCsvError(err)
	}
	// Strip a UTF-8 BOM from the first header; spreadsheet exports often
	// carry one.
	headers[0] = strings.TrimPrefix(headers[0], "\ufeff")

	hasName := false
	seen := make(map[string]bool, len(headers))
	for _, h := range headers {
		if strings.TrimSpace(h) == "" {
			continue
		}
		hasName = true
		if seen[h] {
			// Rows are keyed by column name; a duplicate would silently
			// drop one column's values.
			return nil, nil, &utils.ValidationError{Field: h, Reason: "duplicate column name"}
		}
		seen[h] = true
	}
	if !hasName {
		return nil, nil, &utils.ParseError{Line: 1, Err: errors.New("header row has no column names")}
	}

	var rows []map[string]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, wrapCsvError(err)
		}
		if isBlankRecord(record) {
			continue
		}
		row := make(map[string]string, len(headers))
		for i, h := range headers {
			row[h] = record[i]
		}
		rows = append(rows, row)
	}

	return headers, rows, nil
}

func wrapCsvError(err error) error {
	var perr *csv.ParseError
	if errors.As(err, &perr) {
		return &utils.ParseError{Line: perr.Line, Err: perr.Err}
	}
	return &utils.ParseError{Err: err}
}

func isBlankRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
