package sqldriver

import (
	"encoding/json"
	"fmt"
)

// Dialect holds the SQL that differs between backends. Every collection is
// a table of (seq, id, data) where data is the JSON encoded record.
type Dialect interface {
	// Placeholder returns the bind parameter for the n-th (1 based) argument.
	Placeholder(n int) string

	// CreateTable returns the DDL for a collection table.
	CreateTable(table string) string

	// Filter returns an equality condition on a JSON column and its argument.
	Filter(column string, value any, n int) (string, any, error)

	// OrderExpr returns the expression that sorts by a JSON column.
	OrderExpr(column string) string
}

// Postgres stores records in a JSONB column.
type Postgres struct{}

func (Postgres) Placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

func (Postgres) CreateTable(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
	seq BIGSERIAL PRIMARY KEY,
	id TEXT NOT NULL UNIQUE,
	data JSONB NOT NULL
)`, table)
}

// Filter uses JSONB containment so the value keeps its JSON type.
func (p Postgres) Filter(column string, value any, n int) (string, any, error) {
	doc, err := json.Marshal(map[string]any{column: value})
	if err != nil {
		return "", nil, fmt.Errorf("filter %s: %w", column, err)
	}
	return fmt.Sprintf("data @> %s::jsonb", p.Placeholder(n)), string(doc), nil
}

func (Postgres) OrderExpr(column string) string {
	return fmt.Sprintf("data->'%s'", column)
}

// SQLite stores records as JSON text and reads them with json_extract.
type SQLite struct{}

func (SQLite) Placeholder(int) string {
	return "?"
}

func (SQLite) CreateTable(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	data TEXT NOT NULL
)`, table)
}

// Filter compares with IS so a nil value matches JSON null. json_extract
// yields 1 and 0 for JSON booleans.
func (s SQLite) Filter(column string, value any, n int) (string, any, error) {
	switch v := value.(type) {
	case bool:
		if v {
			value = 1
		} else {
			value = 0
		}
	case map[string]any, []any:
		return "", nil, fmt.Errorf("filter %s: only scalar values are supported", column)
	}
	return fmt.Sprintf("json_extract(data, '$.%s') IS %s", column, s.Placeholder(n)), value, nil
}

func (SQLite) OrderExpr(column string) string {
	return fmt.Sprintf("json_extract(data, '$.%s')", column)
}
