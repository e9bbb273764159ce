package op

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nickyhof/SchemaDB/core"
	"github.com/nickyhof/SchemaDB/sql"
)

// SchemaOp wraps model-level operations the host performs directly on its
// Schema Model, outside the SQL path.
type SchemaOp struct {
	Model *core.Model
}

func NewSchemaOp(model *core.Model) *SchemaOp {
	return &SchemaOp{Model: model}
}

func (op *SchemaOp) CreateTable(table *core.Table) (*TableOp, error) {
	if err := op.Model.CreateTable(table); err != nil {
		return nil, err
	}
	return &TableOp{Table: table}, nil
}

func (op *SchemaOp) DropTable(schema, name string) error {
	return op.Model.DropTable(schema, name)
}

// Schemas lists every schema that holds a table or view, sorted.
func (op *SchemaOp) Schemas() []string {
	seen := make(map[string]bool)
	var schemas []string
	add := func(schema string) {
		if !seen[schema] {
			seen[schema] = true
			schemas = append(schemas, schema)
		}
	}
	for _, table := range op.Model.Tables {
		add(table.Schema)
	}
	for _, view := range op.Model.Views {
		add(view.Schema)
	}
	sort.Strings(schemas)
	return schemas
}

func (op *SchemaOp) TableNames(schema string) []string {
	if schema == "" {
		schema = core.DefaultSchema
	}
	var names []string
	for _, table := range op.Model.Tables {
		if strings.EqualFold(table.Schema, schema) {
			names = append(names, table.Name)
		}
	}
	return names
}

// Relationships derives every foreign key relationship in table order.
func (op *SchemaOp) Relationships() []core.Relationship {
	var relationships []core.Relationship
	for _, table := range op.Model.Tables {
		relationships = append(relationships, NewTableOp(table).Relationships()...)
	}
	return relationships
}

// RenameTable renames a table in place. Foreign keys and view queries that
// reference it are rewritten to the new name.
func (op *SchemaOp) RenameTable(schema, name, newName string) error {
	table, ok := op.Model.Table(schema, name)
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrTableNotFound, core.NewTableKey(schema, name))
	}
	if strings.EqualFold(name, newName) {
		table.Name = newName
		return nil
	}
	if _, exists := op.Model.Table(table.Schema, newName); exists {
		return fmt.Errorf("%w: %s", core.ErrTableExists, core.NewTableKey(table.Schema, newName))
	}
	if _, exists := op.Model.View(table.Schema, newName); exists {
		return fmt.Errorf("%w: %s", core.ErrViewExists, core.NewTableKey(table.Schema, newName))
	}

	from := table.Key()
	for _, other := range op.Model.Tables {
		NewTableOp(other).RenameReferences(from, newName)
	}
	for _, view := range op.Model.Views {
		op.rewriteViewQuery(view, func(target sql.TableName, resolved core.TableKey) sql.TableName {
			if sameKey(resolved, from) {
				target.Name = newName
			}
			return target
		})
	}

	table.Name = newName
	for i := range table.Indexes {
		table.Indexes[i].Table = newName
	}
	return nil
}

// RenameSchema moves every table and view of one schema to another.
// Schema-qualified references to the old schema, in foreign keys and view
// queries, follow the move.
func (op *SchemaOp) RenameSchema(from, to string) error {
	if from == "" {
		from = core.DefaultSchema
	}
	if to == "" {
		return fmt.Errorf("schema name must not be empty")
	}
	if strings.EqualFold(from, to) {
		return nil
	}

	for _, table := range op.Model.Tables {
		if !strings.EqualFold(table.Schema, from) {
			continue
		}
		if _, exists := op.Model.Table(to, table.Name); exists {
			return fmt.Errorf("%w: %s", core.ErrTableExists, core.NewTableKey(to, table.Name))
		}
	}

	for _, table := range op.Model.Tables {
		for i, text := range table.Constraints {
			constraint, err := sql.ParseConstraint(text)
			if err != nil || constraint.Kind != sql.ForeignKeyConstraint {
				continue
			}
			if strings.EqualFold(constraint.RefTable.Schema, from) {
				constraint.RefTable.Schema = to
				table.Constraints[i] = constraint.String()
			}
		}
	}
	for _, view := range op.Model.Views {
		op.rewriteViewQuery(view, func(target sql.TableName, _ core.TableKey) sql.TableName {
			if strings.EqualFold(target.Schema, from) {
				target.Schema = to
			}
			return target
		})
	}

	for _, table := range op.Model.Tables {
		if strings.EqualFold(table.Schema, from) {
			table.Schema = to
			for i := range table.Indexes {
				table.Indexes[i].Schema = to
			}
		}
	}
	for _, view := range op.Model.Views {
		if strings.EqualFold(view.Schema, from) {
			view.Schema = to
		}
	}
	return nil
}

// rewriteViewQuery re-renders a view's query with its FROM target mapped by
// rewrite. Queries that do not parse are left alone.
func (op *SchemaOp) rewriteViewQuery(view *core.View, rewrite func(target sql.TableName, resolved core.TableKey) sql.TableName) {
	statement, err := sql.Parse(view.Query)
	if err != nil {
		return
	}
	query, ok := statement.(sql.SelectStatement)
	if !ok {
		return
	}
	resolved := query.Table.Key()
	if query.Table.Schema == "" {
		resolved = core.NewTableKey(view.Schema, query.Table.Name)
	}
	rewritten := rewrite(query.Table, resolved)
	if rewritten == query.Table {
		return
	}
	query.Table = rewritten
	view.Query = query.String()
}
