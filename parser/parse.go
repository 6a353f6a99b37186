// Package parser reads row-oriented upload files for the batch pipeline.
// It validates structure only (CSV shape, required headers); semantic
// per-row validation belongs to the pipeline so row failures can become
// batch errors instead of aborting the file.
package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"caseflow/models"
)

// Structural errors fail the whole batch before any row is processed.
var (
	ErrEmptyFile        = fmt.Errorf("file is empty")
	ErrMissingHeader    = fmt.Errorf("missing required header")
	ErrUnknownBatchType = fmt.Errorf("unknown batch type")
)

// HeaderError reports which required headers an upload is missing.
type HeaderError struct {
	Missing []string
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("missing required headers: %s", strings.Join(e.Missing, ", "))
}

func (e *HeaderError) Unwrap() error {
	return ErrMissingHeader
}

// Row is one data row keyed by header name. Number is the row's position in
// the file counting the header as row 1, so error reports match what the
// uploader sees in a spreadsheet.
type Row struct {
	Number int
	Values map[string]string
}

// Get returns the trimmed value of a column, or "" when absent.
func (r Row) Get(column string) string {
	return strings.TrimSpace(r.Values[column])
}

// requiredHeaders lists the columns an upload must carry per batch type.
var requiredHeaders = map[models.BatchType][]string{
	models.BatchTypeAllocation:    {"case_id", "primary_agent_id"},
	models.BatchTypeReallocation:  {"case_id", "current_agent_id", "new_agent_id"},
	models.BatchTypeContactUpdate: {"case_id"},
}

// knownHeaders lists every column each format may carry, in canonical order.
// Used by exports so a round-trip reproduces the same layout.
var knownHeaders = map[models.BatchType][]string{
	models.BatchTypeAllocation: {
		"case_id", "external_case_id", "loan_account_number", "customer_name",
		"primary_agent_id", "secondary_agent_id", "allocation_type",
		"allocation_percentage", "geography", "bucket", "priority", "remarks",
	},
	models.BatchTypeReallocation: {
		"case_id", "external_case_id", "loan_account_number", "current_agent_id",
		"new_agent_id", "reallocation_reason", "reallocation_type",
		"effective_date", "priority", "remarks",
	},
	models.BatchTypeContactUpdate: {
		"case_id", "external_case_id", "loan_account_number", "customer_name",
		"mobile_number", "alternate_mobile", "email", "alternate_email",
		"address", "city", "state", "pincode", "update_type", "remarks",
	},
}

// Headers returns the canonical column order for a batch type.
func Headers(batchType models.BatchType) []string {
	return knownHeaders[batchType]
}

// Scanner streams the data rows of an upload one at a time, so a large file
// is never held in memory as a whole. Header validation happens in NewScanner;
// iterate with Scan and check Err once Scan returns false.
type Scanner struct {
	reader  *csv.Reader
	columns []string
	line    int
	row     Row
	err     error
}

// NewScanner validates the header row and returns a Scanner positioned at the
// first data row. The header row is mandatory; a missing required header fails
// with a HeaderError.
func NewScanner(r io.Reader, batchType models.BatchType) (*Scanner, error) {
	required, ok := requiredHeaders[batchType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBatchType, batchType)
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("error reading CSV header: %w", err)
	}

	columns := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		columns[i] = name
		seen[name] = true
	}

	var missing []string
	for _, req := range required {
		if !seen[req] {
			missing = append(missing, req)
		}
	}
	if len(missing) > 0 {
		return nil, &HeaderError{Missing: missing}
	}

	return &Scanner{reader: reader, columns: columns, line: 1}, nil
}

// Scan advances to the next data row, skipping fully blank lines. It returns
// false at end of file or on a read error; Err distinguishes the two. Short
// rows are padded so per-row validation sees empty strings rather than index
// errors; ragged extra cells are dropped.
func (s *Scanner) Scan() bool {
	for {
		record, err := s.reader.Read()
		s.line++
		if err == io.EOF {
			return false
		}
		if err != nil {
			s.err = fmt.Errorf("error reading CSV at line %d: %w", s.line, err)
			return false
		}

		// Skip fully blank lines rather than reporting them as bad rows.
		blank := true
		for _, cell := range record {
			if strings.TrimSpace(cell) != "" {
				blank = false
				break
			}
		}
		if blank {
			continue
		}

		values := make(map[string]string, len(s.columns))
		for i, col := range s.columns {
			if i < len(record) {
				values[col] = record[i]
			} else {
				values[col] = ""
			}
		}
		s.row = Row{Number: s.line, Values: values}
		return true
	}
}

// Row returns the row produced by the last successful Scan.
func (s *Scanner) Row() Row {
	return s.row
}

// Err returns the read error that stopped Scan, if any.
func (s *Scanner) Err() error {
	return s.err
}
