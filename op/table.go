package op

import (
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/nickyhof/SchemaDB/core"
	"github.com/nickyhof/SchemaDB/sql"
)

type TableOp struct {
	Table *core.Table
}

func NewTableOp(table *core.Table) *TableOp {
	return &TableOp{Table: table}
}

func GetTable(model *core.Model, schema string, tableName string) (*TableOp, error) {
	table, ok := model.Table(schema, tableName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrTableNotFound, core.NewTableKey(schema, tableName))
	}
	return &TableOp{Table: table}, nil
}

func (op *TableOp) PrimaryKey() (pk []string, err error) {
	pk = op.Table.PrimaryKey()
	if len(pk) == 0 {
		return nil, errors.New("no primary key found")
	}
	return pk, nil
}

// Constraints parses the table's constraint text. Entries that no longer
// parse are skipped.
func (op *TableOp) Constraints() []sql.Constraint {
	constraints := make([]sql.Constraint, 0, len(op.Table.Constraints))
	for _, text := range op.Table.Constraints {
		constraint, err := sql.ParseConstraint(text)
		if err != nil {
			continue
		}
		constraints = append(constraints, constraint)
	}
	return constraints
}

// Indexes returns the effective indexes in lookup order: explicit indexes,
// then those implied by UNIQUE/INDEX constraints, then the implicit
// primary key index "<table>_pkey".
func (op *TableOp) Indexes() []core.Index {
	indexes := append([]core.Index(nil), op.Table.Indexes...)
	key := op.Table.Key()
	for _, constraint := range op.Constraints() {
		if index, ok := constraint.Index(key); ok {
			indexes = append(indexes, index)
		}
	}
	if pk := op.Table.PrimaryKey(); len(pk) > 0 {
		indexes = append(indexes, core.Index{
			Name:    op.Table.Name + "_pkey",
			Schema:  key.Schema,
			Table:   op.Table.Name,
			Columns: pk,
			Unique:  true,
		})
	}
	return indexes
}

// UniqueIndexes is the subset of Indexes that rejects duplicate keys.
func (op *TableOp) UniqueIndexes() []core.Index {
	var unique []core.Index
	for _, index := range op.Indexes() {
		if index.Unique {
			unique = append(unique, index)
		}
	}
	return unique
}

// IsIndexed reports whether some effective index leads with column.
func (op *TableOp) IsIndexed(column string) bool {
	for _, index := range op.Indexes() {
		if strings.EqualFold(index.Leading(), column) {
			return true
		}
	}
	return false
}

func (op *TableOp) Relationships() []core.Relationship {
	var relationships []core.Relationship
	key := op.Table.Key()
	for _, constraint := range op.Constraints() {
		relationships = append(relationships, constraint.Relationships(key)...)
	}
	return relationships
}

func (op *TableOp) AddConstraint(constraint sql.Constraint) {
	op.Table.Constraints = append(op.Table.Constraints, constraint.String())
}

// RenameReferences points foreign keys that reference from at newName,
// keeping any schema qualifier as written. It returns how many changed.
func (op *TableOp) RenameReferences(from core.TableKey, newName string) int {
	owner := op.Table.Key()
	changed := 0
	for i, text := range op.Table.Constraints {
		constraint, err := sql.ParseConstraint(text)
		if err != nil || constraint.Kind != sql.ForeignKeyConstraint {
			continue
		}
		if !sameKey(constraint.RefKey(owner), from) {
			continue
		}
		constraint.RefTable.Name = newName
		op.Table.Constraints[i] = constraint.String()
		changed++
	}
	return changed
}

func (op *TableOp) Count() int {
	return len(op.Table.Rows)
}

func (op *TableOp) Scan() iter.Seq2[int, core.Row] {
	return op.ScanWithFilter(nil)
}

func (op *TableOp) ScanWithFilter(filter func(row core.Row) bool) iter.Seq2[int, core.Row] {
	return func(yield func(int, core.Row) bool) {
		for i, row := range op.Table.Rows {
			if filter != nil && !filter(row) {
				continue
			}
			if !yield(i, row) {
				return
			}
		}
	}
}

func sameKey(a, b core.TableKey) bool {
	return strings.EqualFold(a.Schema, b.Schema) && strings.EqualFold(a.Name, b.Name)
}
