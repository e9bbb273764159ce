package ddl

import (
	"strings"

	"github.com/nickyhof/SchemaDB/core"
	"github.com/nickyhof/SchemaDB/op"
)

// ExportDiagram renders a Mermaid erDiagram: one entity block per table
// and one relationship line per foreign key column.
func ExportDiagram(tables []*core.Table, relationships []core.Relationship) string {
	relationships = MergeRelationships(tables, relationships)

	var b strings.Builder
	b.WriteString("erDiagram\n")

	for _, table := range tables {
		foreign := make(map[string]bool)
		for _, rel := range relationships {
			if sameTable(rel.From(), table.Key()) {
				foreign[strings.ToLower(rel.FromColumn)] = true
			}
		}
		unique := uniqueColumns(table)

		b.WriteString("    ")
		b.WriteString(entityName(table.Key()))
		b.WriteString(" {\n")
		for _, column := range table.Columns {
			var keys []string
			if column.PrimaryKey {
				keys = append(keys, "PK")
			}
			if foreign[strings.ToLower(column.Name)] {
				keys = append(keys, "FK")
			}
			if unique[strings.ToLower(column.Name)] && !column.PrimaryKey {
				keys = append(keys, "UK")
			}

			b.WriteString("        ")
			b.WriteString(attributeType(column.Type))
			b.WriteString(" ")
			b.WriteString(attributeName(column.Name))
			if len(keys) > 0 {
				b.WriteString(" ")
				b.WriteString(strings.Join(keys, ", "))
			}
			if !column.Nullable && !column.PrimaryKey {
				b.WriteString(` "not null"`)
			}
			b.WriteString("\n")
		}
		b.WriteString("    }\n")
	}

	for _, rel := range relationships {
		parent := "||"
		child := "o{"
		if source := findTable(tables, rel.From()); source != nil {
			if column, ok := source.Column(rel.FromColumn); ok && column.Nullable {
				parent = "|o"
			}
			if uniqueColumns(source)[strings.ToLower(rel.FromColumn)] {
				child = "o|"
			}
		}

		b.WriteString("    ")
		b.WriteString(entityName(rel.To()))
		b.WriteString(" ")
		b.WriteString(parent)
		b.WriteString("--")
		b.WriteString(child)
		b.WriteString(" ")
		b.WriteString(entityName(rel.From()))
		b.WriteString(` : "`)
		b.WriteString(rel.FromColumn)
		b.WriteString(`"`)
		b.WriteString("\n")
	}
	return b.String()
}

// uniqueColumns lists columns that alone carry a unique index.
func uniqueColumns(table *core.Table) map[string]bool {
	unique := make(map[string]bool)
	for _, index := range op.NewTableOp(table).UniqueIndexes() {
		if len(index.Columns) == 1 {
			unique[strings.ToLower(index.Columns[0])] = true
		}
	}
	return unique
}

// entityName flattens schema-qualified names, which Mermaid entity
// identifiers cannot carry.
func entityName(key core.TableKey) string {
	name := key.Name
	if key.Schema != "" && key.Schema != core.DefaultSchema {
		name = key.Schema + "_" + key.Name
	}
	return attributeName(name)
}

func attributeName(name string) string {
	return strings.Map(func(r rune) rune {
		if r == '_' || r == '-' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' {
			return r
		}
		return '_'
	}, name)
}

// attributeType keeps the declared type readable within Mermaid's type
// token grammar: "VARCHAR(255)" stays, "DECIMAL(10, 2)" becomes
// "DECIMAL(10,2)" and spaces elsewhere become underscores.
func attributeType(typeName string) string {
	typeName = strings.ReplaceAll(typeName, ", ", ",")
	return strings.Join(strings.Fields(typeName), "_")
}
