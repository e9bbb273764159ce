package core

import (
	"fmt"
	"strings"
)

// DefaultSchema is the namespace of tables declared without one.
const DefaultSchema = "public"

type ColumnKind int

const (
	UnknownKind ColumnKind = iota
	SmallIntKind
	IntegerKind
	BigIntKind
	DecimalKind
	TextKind
	VarcharKind
	BooleanKind
	TimestampKind
	DateKind
	SerialKind
)

func (kind ColumnKind) String() string {
	switch kind {
	case SmallIntKind:
		return "SMALLINT"
	case IntegerKind:
		return "INTEGER"
	case BigIntKind:
		return "BIGINT"
	case DecimalKind:
		return "DECIMAL"
	case TextKind:
		return "TEXT"
	case VarcharKind:
		return "VARCHAR"
	case BooleanKind:
		return "BOOLEAN"
	case TimestampKind:
		return "TIMESTAMP"
	case DateKind:
		return "DATE"
	case SerialKind:
		return "SERIAL"
	default:
		return "UNKNOWN"
	}
}

// IsInteger reports whether values of this kind must be whole numbers.
func (kind ColumnKind) IsInteger() bool {
	return kind == SmallIntKind || kind == IntegerKind || kind == BigIntKind || kind == SerialKind
}

func (kind ColumnKind) IsNumeric() bool {
	return kind.IsInteger() || kind == DecimalKind
}

func (kind ColumnKind) IsText() bool {
	return kind == TextKind || kind == VarcharKind
}

// ParseColumnKind maps a declared type such as "VARCHAR(255)" or
// "timestamp with time zone" to its kind. The declared text itself is kept
// on the column untouched.
func ParseColumnKind(typeName string) ColumnKind {
	base := strings.ToUpper(strings.TrimSpace(typeName))
	if i := strings.IndexByte(base, '('); i >= 0 {
		base = strings.TrimSpace(base[:i])
	}
	base = strings.Join(strings.Fields(base), " ")

	switch {
	case base == "SMALLINT" || base == "INT2" || base == "TINYINT":
		return SmallIntKind
	case base == "INT" || base == "INTEGER" || base == "INT4" || base == "MEDIUMINT":
		return IntegerKind
	case base == "BIGINT" || base == "INT8":
		return BigIntKind
	case base == "DECIMAL" || base == "NUMERIC" || base == "REAL" || base == "FLOAT" ||
		base == "FLOAT4" || base == "FLOAT8" || base == "DOUBLE" || base == "DOUBLE PRECISION" || base == "MONEY":
		return DecimalKind
	case base == "TEXT" || base == "UUID" || base == "JSON" || base == "JSONB":
		return TextKind
	case base == "VARCHAR" || base == "CHAR" || base == "CHARACTER" || base == "CHARACTER VARYING" ||
		base == "STRING" || base == "NVARCHAR":
		return VarcharKind
	case base == "BOOL" || base == "BOOLEAN":
		return BooleanKind
	case strings.HasPrefix(base, "TIMESTAMP") || base == "TIMESTAMPTZ" || base == "DATETIME":
		return TimestampKind
	case base == "DATE":
		return DateKind
	case base == "SERIAL" || base == "BIGSERIAL" || base == "SMALLSERIAL" || base == "SERIAL4" || base == "SERIAL8":
		return SerialKind
	default:
		return UnknownKind
	}
}

type Column struct {
	Name       string     `json:"name"`
	Type       string     `json:"type"`
	Kind       ColumnKind `json:"kind"`
	Nullable   bool       `json:"nullable"`
	Default    *string    `json:"default,omitempty"`
	PrimaryKey bool       `json:"primaryKey"`
}

// NewColumn builds a nullable column from its declared type.
func NewColumn(name, typeName string) Column {
	return Column{
		Name:     name,
		Type:     typeName,
		Kind:     ParseColumnKind(typeName),
		Nullable: true,
	}
}

type Index struct {
	Name    string   `json:"name"`
	Schema  string   `json:"schema"`
	Table   string   `json:"table"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique"`
}

// Leading returns the first indexed column.
func (index Index) Leading() string {
	if len(index.Columns) == 0 {
		return ""
	}
	return index.Columns[0]
}

// TableKey is the identity of a table or view.
type TableKey struct {
	Schema string
	Name   string
}

func NewTableKey(schema, name string) TableKey {
	if schema == "" {
		schema = DefaultSchema
	}
	return TableKey{Schema: schema, Name: name}
}

func (key TableKey) String() string {
	return key.Schema + "." + key.Name
}

type Table struct {
	Schema      string   `json:"schema"`
	Name        string   `json:"name"`
	Columns     []Column `json:"columns"`
	Indexes     []Index  `json:"indexes,omitempty"`
	Constraints []string `json:"constraints,omitempty"`
	Rows        []Row    `json:"rows,omitempty"`
	// Serial is the last value handed out for serial columns.
	Serial int64 `json:"serial"`
}

func (table *Table) Key() TableKey {
	return NewTableKey(table.Schema, table.Name)
}

// QualifiedName is "schema.name", omitting the default schema.
func (table *Table) QualifiedName() string {
	if table.Schema == "" || table.Schema == DefaultSchema {
		return table.Name
	}
	return table.Schema + "." + table.Name
}

func (table *Table) Column(name string) (*Column, bool) {
	for i := range table.Columns {
		if strings.EqualFold(table.Columns[i].Name, name) {
			return &table.Columns[i], true
		}
	}
	return nil, false
}

func (table *Table) HasColumn(name string) bool {
	_, ok := table.Column(name)
	return ok
}

func (table *Table) ColumnNames() []string {
	names := make([]string, len(table.Columns))
	for i, column := range table.Columns {
		names[i] = column.Name
	}
	return names
}

func (table *Table) PrimaryKey() []string {
	var keys []string
	for _, column := range table.Columns {
		if column.PrimaryKey {
			keys = append(keys, column.Name)
		}
	}
	return keys
}

// Values returns the row's cells in column order.
func (table *Table) Values(row Row) []Value {
	values := make([]Value, len(table.Columns))
	for i, column := range table.Columns {
		values[i] = row.Get(column.Name)
	}
	return values
}

// Normalize enforces the primary key invariant and fills derived fields.
func (table *Table) Normalize() {
	if table.Schema == "" {
		table.Schema = DefaultSchema
	}
	for i := range table.Columns {
		if table.Columns[i].Kind == UnknownKind {
			table.Columns[i].Kind = ParseColumnKind(table.Columns[i].Type)
		}
		if table.Columns[i].PrimaryKey {
			table.Columns[i].Nullable = false
		}
	}
	for i := range table.Indexes {
		table.Indexes[i].Schema = table.Schema
		table.Indexes[i].Table = table.Name
	}
}

// Clone returns a deep copy; rows are copied so the clone can be mutated
// without touching the original. Nil slices stay nil.
func (table *Table) Clone() *Table {
	clone := *table
	if table.Columns != nil {
		clone.Columns = make([]Column, len(table.Columns))
		for i, column := range table.Columns {
			if column.Default != nil {
				def := *column.Default
				column.Default = &def
			}
			clone.Columns[i] = column
		}
	}
	if table.Indexes != nil {
		clone.Indexes = make([]Index, len(table.Indexes))
		for i, index := range table.Indexes {
			index.Columns = append([]string(nil), index.Columns...)
			clone.Indexes[i] = index
		}
	}
	clone.Constraints = append([]string(nil), table.Constraints...)
	if table.Rows != nil {
		clone.Rows = make([]Row, len(table.Rows))
		for i, row := range table.Rows {
			clone.Rows[i] = row.Clone()
		}
	}
	return &clone
}

// AddIndex attaches an index descriptor, rejecting duplicate names.
func (table *Table) AddIndex(index Index) error {
	for _, existing := range table.Indexes {
		if strings.EqualFold(existing.Name, index.Name) {
			return fmt.Errorf("index %s already exists on %s", index.Name, table.Key())
		}
	}
	for _, column := range index.Columns {
		if !table.HasColumn(column) {
			return fmt.Errorf("index %s references unknown column %s", index.Name, column)
		}
	}
	index.Schema = table.Schema
	index.Table = table.Name
	table.Indexes = append(table.Indexes, index)
	return nil
}
