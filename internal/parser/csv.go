// Package parser turns uploaded CSV files into address lists.
package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/route-plotter/backend/internal/models"
)

// ProgressCallback reports the number of rows consumed so far.
type ProgressCallback func(rows int)

// progressInterval controls how often the callback fires.
const progressInterval = 100

// AddressParser reads address CSVs. It accepts three layouts:
//   - a header row with recognized columns (street/city/state/zip/label)
//   - a headerless single-column file, one free-form address per line
//   - a headerless multi-column file, columns joined into one query string
type AddressParser struct {
	mapping *ColumnMapping
}

// NewAddressParser creates a parser with the built-in column aliases.
func NewAddressParser() *AddressParser {
	return &AddressParser{mapping: DefaultMapping()}
}

// NewAddressParserWithMapping creates a parser with a custom column mapping.
func NewAddressParserWithMapping(m *ColumnMapping) *AddressParser {
	if m == nil {
		m = DefaultMapping()
	}
	return &AddressParser{mapping: m}
}

// ParseFile parses a CSV file from disk.
func (p *AddressParser) ParseFile(path string) ([]models.Address, []*models.RowError, error) {
	return p.ParseFileWithProgress(path, nil)
}

// ParseFileWithProgress parses a CSV file, reporting progress as it goes.
func (p *AddressParser) ParseFileWithProgress(path string, cb ProgressCallback) ([]models.Address, []*models.RowError, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening csv: %w", err)
	}
	defer f.Close()

	return p.Parse(f, cb)
}

// Parse parses CSV content from a reader.
func (p *AddressParser) Parse(r io.Reader, cb ProgressCallback) ([]models.Address, []*models.RowError, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	addresses := make([]models.Address, 0)
	rowErrors := make([]*models.RowError, 0)

	var cols columns
	hasHeader := false
	sawFirst := false
	row := 0

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++

		if err != nil {
			rowErrors = append(rowErrors, &models.RowError{
				Row:    row,
				Stage:  "parse",
				Reason: fmt.Sprintf("malformed csv: %v", err),
			})
			continue
		}

		if isBlank(record) {
			continue
		}

		// First non-blank row decides the layout.
		if !sawFirst {
			sawFirst = true
			if c, ok := p.mapping.match(record); ok {
				cols = c
				hasHeader = true
				continue
			}
		}

		addr, rowErr := p.parseRow(row, record, cols, hasHeader)
		if rowErr != nil {
			rowErrors = append(rowErrors, rowErr)
			continue
		}
		addresses = append(addresses, addr)

		if cb != nil && row%progressInterval == 0 {
			cb(row)
		}
	}

	if cb != nil {
		cb(row)
	}

	return addresses, rowErrors, nil
}

func (p *AddressParser) parseRow(row int, record []string, cols columns, hasHeader bool) (models.Address, *models.RowError) {
	if !hasHeader {
		// Headerless mode: whole row becomes one free-form query.
		raw := joinFields(record)
		if raw == "" {
			return models.Address{}, &models.RowError{
				Row:    row,
				Stage:  "parse",
				Reason: "empty address",
			}
		}
		return models.Address{Row: row, Street: raw, Raw: raw}, nil
	}

	addr := models.Address{Row: row}
	addr.Label = field(record, cols.label)
	addr.Street = field(record, cols.street)
	addr.City = field(record, cols.city)
	addr.State = field(record, cols.state)
	addr.Zip = field(record, cols.zip)

	if addr.IsEmpty() {
		return models.Address{}, &models.RowError{
			Row:     row,
			Content: joinFields(record),
			Stage:   "parse",
			Reason:  "row has no street address",
		}
	}

	return addr, nil
}

func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func isBlank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func joinFields(record []string) string {
	parts := make([]string, 0, len(record))
	for _, cell := range record {
		if s := strings.TrimSpace(cell); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}
