package query

import (
	"fmt"
	"strings"
)

// SortField is one ORDER BY term. Field is a projected field name.
type SortField struct {
	Field      string
	Descending bool
}

// ParseSortFields parses a comma-separated sort string such as
// "filename,-created_at". A leading "-" sorts descending.
func ParseSortFields(s string) []SortField {
	if s == "" {
		return nil
	}

	var fields []SortField
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		name, desc := strings.CutPrefix(part, "-")
		fields = append(fields, SortField{Field: name, Descending: desc})
	}

	return fields
}

// Builder accumulates WHERE conditions and ordering for a projection.
// Placeholders are numbered as conditions are added, so the same WHERE
// clause and arguments serve both the count and the page query.
type Builder struct {
	projection  *ProjectionMap
	where       []string
	args        []any
	sort        []SortField
	defaultSort []SortField
}

// NewBuilder creates a Builder ordered by defaultSort unless OrderByFields overrides it.
func NewBuilder(projection *ProjectionMap, defaultSort ...SortField) *Builder {
	return &Builder{
		projection:  projection,
		defaultSort: defaultSort,
	}
}

// BuildCount returns a COUNT(*) query over the current conditions.
func (b *Builder) BuildCount() (string, []any) {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s%s", b.projection.From(), b.whereClause()), b.args
}

// BuildPage returns the page'th page of pageSize rows, counting from 1.
func (b *Builder) BuildPage(page, pageSize int) (string, []any) {
	sql := fmt.Sprintf(
		"SELECT %s FROM %s%s%s LIMIT %d OFFSET %d",
		b.projection.Columns(),
		b.projection.From(),
		b.whereClause(),
		b.orderClause(),
		pageSize,
		(page-1)*pageSize,
	)
	return sql, b.args
}

// BuildSingle returns a query selecting the row whose field equals value.
// Conditions already on the builder are ignored.
func (b *Builder) BuildSingle(field string, value any) (string, []any) {
	sql := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = $1",
		b.projection.Columns(),
		b.projection.From(),
		b.column(field),
	)
	return sql, []any{value}
}

// OrderByFields replaces the default ordering. Fields the projection does
// not mark sortable are dropped.
func (b *Builder) OrderByFields(fields []SortField) *Builder {
	b.sort = fields
	return b
}

// WhereEquals matches field exactly. A nil or empty value adds nothing.
func (b *Builder) WhereEquals(field string, value *string) *Builder {
	if value == nil || *value == "" {
		return b
	}
	b.where = append(b.where, fmt.Sprintf("%s = %s", b.column(field), b.param(*value)))
	return b
}

// WhereContains matches field case-insensitively by substring.
// A nil or empty value adds nothing.
func (b *Builder) WhereContains(field string, value *string) *Builder {
	if value == nil || *value == "" {
		return b
	}
	b.where = append(b.where, fmt.Sprintf("%s ILIKE %s", b.column(field), b.param("%"+*value+"%")))
	return b
}

// WhereIn matches field against any of values, bound as a single array
// parameter. An empty list adds nothing.
func (b *Builder) WhereIn(field string, values []string) *Builder {
	if len(values) == 0 {
		return b
	}
	b.where = append(b.where, fmt.Sprintf("%s = ANY(%s)", b.column(field), b.param(values)))
	return b
}

// WhereSearch matches search by substring against any of fields.
// A nil or empty search adds nothing.
func (b *Builder) WhereSearch(search *string, fields ...string) *Builder {
	if search == nil || *search == "" || len(fields) == 0 {
		return b
	}

	p := b.param("%" + *search + "%")
	clauses := make([]string, len(fields))
	for i, f := range fields {
		clauses[i] = fmt.Sprintf("%s ILIKE %s", b.column(f), p)
	}

	b.where = append(b.where, "("+strings.Join(clauses, " OR ")+")")
	return b
}

func (b *Builder) param(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *Builder) column(field string) string {
	if col, ok := b.projection.Column(field); ok {
		return col
	}
	return field
}

func (b *Builder) whereClause() string {
	if len(b.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.where, " AND ")
}

func (b *Builder) orderClause() string {
	fields := b.sort
	if len(fields) == 0 {
		fields = b.defaultSort
	}

	var parts []string
	for _, f := range fields {
		if !b.projection.sortable[f.Field] {
			continue
		}
		dir := "ASC"
		if f.Descending {
			dir = "DESC"
		}
		parts = append(parts, b.projection.columns[f.Field]+" "+dir)
	}

	if len(parts) == 0 {
		return ""
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}
