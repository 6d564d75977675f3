// Package query builds parameterized SELECT statements over a single table.
package query

import (
	"fmt"
	"strings"
)

// ProjectionMap maps API field names to alias-qualified columns of one table
// and records which of those fields may be used for ordering.
type ProjectionMap struct {
	table    string
	alias    string
	columns  map[string]string
	list     []string
	sortable map[string]bool
}

// NewProjectionMap creates a ProjectionMap for schema.table under alias.
func NewProjectionMap(schema, table, alias string) *ProjectionMap {
	return &ProjectionMap{
		table:    schema + "." + table,
		alias:    alias,
		columns:  make(map[string]string),
		sortable: make(map[string]bool),
	}
}

// Project maps field to column. Projected columns are selected in order.
func (p *ProjectionMap) Project(column, field string) *ProjectionMap {
	qualified := p.alias + "." + column
	p.columns[field] = qualified
	p.list = append(p.list, qualified)
	return p
}

// Sortable allows fields in ORDER BY. Unprojected fields are ignored.
func (p *ProjectionMap) Sortable(fields ...string) *ProjectionMap {
	for _, f := range fields {
		if _, ok := p.columns[f]; ok {
			p.sortable[f] = true
		}
	}
	return p
}

// From returns the table reference with its alias.
func (p *ProjectionMap) From() string {
	return p.table + " " + p.alias
}

// Columns returns the projected columns as a select list.
func (p *ProjectionMap) Columns() string {
	return strings.Join(p.list, ", ")
}

// Column returns the qualified column for field.
func (p *ProjectionMap) Column(field string) (string, bool) {
	col, ok := p.columns[field]
	return col, ok
}

// CheckSort returns ErrUnsortable for the first field not marked sortable.
func (p *ProjectionMap) CheckSort(fields []SortField) error {
	for _, f := range fields {
		if !p.sortable[f.Field] {
			return fmt.Errorf("%w: %q", ErrUnsortable, f.Field)
		}
	}
	return nil
}
