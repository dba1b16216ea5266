package parser

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ColumnMapping lists accepted header aliases per address field. Custom
// mappings can be loaded from a YAML file to support exports from CRMs that
// use nonstandard column names.
type ColumnMapping struct {
	Label  []string `yaml:"label"`
	Street []string `yaml:"street"`
	City   []string `yaml:"city"`
	State  []string `yaml:"state"`
	Zip    []string `yaml:"zip"`
}

// DefaultMapping returns the built-in header aliases.
func DefaultMapping() *ColumnMapping {
	return &ColumnMapping{
		Label:  []string{"name", "label", "title", "customer"},
		Street: []string{"address", "street", "street address", "addr", "address1", "address 1", "line1"},
		City:   []string{"city", "town", "locality"},
		State:  []string{"state", "province", "region", "st"},
		Zip:    []string{"zip", "zipcode", "zip code", "postal", "postal code", "postcode"},
	}
}

// LoadMappingFile loads a YAML column mapping and merges it over the defaults.
// Fields left empty in the file keep their built-in aliases.
func LoadMappingFile(path string) (*ColumnMapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading mapping file: %w", err)
	}

	var custom ColumnMapping
	if err := yaml.Unmarshal(data, &custom); err != nil {
		return nil, fmt.Errorf("parsing mapping file: %w", err)
	}

	m := DefaultMapping()
	if len(custom.Label) > 0 {
		m.Label = custom.Label
	}
	if len(custom.Street) > 0 {
		m.Street = custom.Street
	}
	if len(custom.City) > 0 {
		m.City = custom.City
	}
	if len(custom.State) > 0 {
		m.State = custom.State
	}
	if len(custom.Zip) > 0 {
		m.Zip = custom.Zip
	}
	return m, nil
}

// columns maps a header row to field -> column index.
type columns struct {
	label  int
	street int
	city   int
	state  int
	zip    int
}

func newColumns() columns {
	return columns{label: -1, street: -1, city: -1, state: -1, zip: -1}
}

// match resolves a header row against the mapping. The second return value is
// false when no field alias matched at all (the row is data, not a header).
func (m *ColumnMapping) match(header []string) (columns, bool) {
	cols := newColumns()
	matched := false

	for i, cell := range header {
		name := strings.ToLower(strings.TrimSpace(cell))
		switch {
		case cols.street == -1 && contains(m.Street, name):
			cols.street = i
			matched = true
		case cols.city == -1 && contains(m.City, name):
			cols.city = i
			matched = true
		case cols.state == -1 && contains(m.State, name):
			cols.state = i
			matched = true
		case cols.zip == -1 && contains(m.Zip, name):
			cols.zip = i
			matched = true
		case cols.label == -1 && contains(m.Label, name):
			cols.label = i
			matched = true
		}
	}

	return cols, matched
}

func contains(aliases []string, name string) bool {
	for _, a := range aliases {
		if a == name {
			return true
		}
	}
	return false
}
