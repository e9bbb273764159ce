package ddl

import (
	"strings"

	"github.com/nickyhof/SchemaDB/core"
	"github.com/nickyhof/SchemaDB/op"
	"github.com/nickyhof/SchemaDB/sql"
)

// DeriveRelationships reads every foreign key declared in the tables'
// constraints, in table then constraint order.
func DeriveRelationships(tables []*core.Table) []core.Relationship {
	var relationships []core.Relationship
	for _, table := range tables {
		relationships = append(relationships, op.NewTableOp(table).Relationships()...)
	}
	return relationships
}

// MergeRelationships returns the relationships passed in followed by any
// derived from the tables that are not already present.
func MergeRelationships(tables []*core.Table, relationships []core.Relationship) []core.Relationship {
	seen := make(map[string]bool)
	var merged []core.Relationship
	add := func(rel core.Relationship) {
		key := relationshipKey(rel)
		if seen[key] {
			return
		}
		seen[key] = true
		merged = append(merged, rel)
	}
	for _, rel := range relationships {
		add(normalizeRelationship(rel))
	}
	for _, rel := range DeriveRelationships(tables) {
		add(rel)
	}
	return merged
}

func normalizeRelationship(rel core.Relationship) core.Relationship {
	rel.FromSchema = rel.From().Schema
	rel.ToSchema = rel.To().Schema
	return rel
}

func relationshipKey(rel core.Relationship) string {
	from, to := rel.From(), rel.To()
	return strings.ToLower(from.String() + "." + rel.FromColumn + ">" + to.String() + "." + rel.ToColumn)
}

// foreignKey regroups relationships into constraints. Consecutive
// relationships sharing a constraint name and both endpoints form one
// composite key.
type foreignKey struct {
	Name       string
	From       core.TableKey
	To         core.TableKey
	Columns    []string
	RefColumns []string
	OnDelete   string
	OnUpdate   string
}

func groupForeignKeys(relationships []core.Relationship) []foreignKey {
	var keys []foreignKey
	for _, rel := range relationships {
		if n := len(keys); n > 0 && rel.Name != "" {
			last := &keys[n-1]
			if last.Name == rel.Name && sameTable(last.From, rel.From()) && sameTable(last.To, rel.To()) {
				last.Columns = append(last.Columns, rel.FromColumn)
				last.RefColumns = append(last.RefColumns, rel.ToColumn)
				continue
			}
		}
		keys = append(keys, foreignKey{
			Name:       rel.Name,
			From:       rel.From(),
			To:         rel.To(),
			Columns:    []string{rel.FromColumn},
			RefColumns: []string{rel.ToColumn},
			OnDelete:   rel.OnDelete,
			OnUpdate:   rel.OnUpdate,
		})
	}
	return keys
}

// Constraint renders the key as written on its owning table. The target is
// qualified only when it lives in another schema.
func (key foreignKey) Constraint() sql.Constraint {
	target := sql.TableName{Name: key.To.Name}
	if !strings.EqualFold(key.To.Schema, key.From.Schema) {
		target.Schema = key.To.Schema
	}
	return sql.Constraint{
		Kind:       sql.ForeignKeyConstraint,
		Name:       key.Name,
		Columns:    key.Columns,
		RefTable:   target,
		RefColumns: key.RefColumns,
		OnDelete:   key.OnDelete,
		OnUpdate:   key.OnUpdate,
	}
}

func sameTable(a, b core.TableKey) bool {
	return strings.EqualFold(a.Schema, b.Schema) && strings.EqualFold(a.Name, b.Name)
}

func findTable(tables []*core.Table, key core.TableKey) *core.Table {
	for _, table := range tables {
		if sameTable(table.Key(), key) {
			return table
		}
	}
	return nil
}

// qualifiedName renders a table reference for DDL output, omitting the
// default schema.
func qualifiedName(key core.TableKey) string {
	if key.Schema == "" || key.Schema == core.DefaultSchema {
		return sql.QuoteIdentifier(key.Name)
	}
	return sql.QuoteIdentifier(key.Schema) + "." + sql.QuoteIdentifier(key.Name)
}
