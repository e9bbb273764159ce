package ddl

import (
	"strings"

	"github.com/nickyhof/SchemaDB/core"
	"github.com/nickyhof/SchemaDB/op"
	"github.com/nickyhof/SchemaDB/sql"
)

// ExportSQL renders CREATE TABLE statements in declaration order, then
// CREATE INDEX for explicit indexes, then one ALTER TABLE ... ADD FOREIGN
// KEY per foreign key.
func ExportSQL(tables []*core.Table, relationships []core.Relationship) string {
	var b strings.Builder

	for i, table := range tables {
		if i > 0 {
			b.WriteString("\n")
		}
		writeCreateTable(&b, table)
	}

	var indexes []string
	for _, table := range tables {
		for _, index := range table.Indexes {
			statement := "CREATE "
			if index.Unique {
				statement += "UNIQUE "
			}
			statement += "INDEX " + sql.QuoteIdentifier(index.Name) + " ON " + qualifiedName(table.Key()) +
				" (" + quoteColumns(index.Columns) + ");"
			indexes = append(indexes, statement)
		}
	}
	if len(indexes) > 0 {
		b.WriteString("\n")
		b.WriteString(strings.Join(indexes, "\n"))
		b.WriteString("\n")
	}

	keys := groupForeignKeys(MergeRelationships(tables, relationships))
	if len(keys) > 0 {
		b.WriteString("\n")
		for _, key := range keys {
			b.WriteString("ALTER TABLE ")
			b.WriteString(qualifiedName(key.From))
			b.WriteString(" ADD ")
			b.WriteString(key.Constraint().String())
			b.WriteString(";\n")
		}
	}
	return b.String()
}

func writeCreateTable(b *strings.Builder, table *core.Table) {
	b.WriteString("CREATE TABLE ")
	b.WriteString(qualifiedName(table.Key()))
	b.WriteString(" (\n")

	pk := table.PrimaryKey()
	var lines []string
	for _, column := range table.Columns {
		line := "  " + sql.QuoteIdentifier(column.Name) + " " + column.Type
		if !column.Nullable && !column.PrimaryKey {
			line += " NOT NULL"
		}
		if column.Default != nil {
			line += " DEFAULT " + *column.Default
		}
		if column.PrimaryKey && len(pk) == 1 {
			line += " PRIMARY KEY"
		}
		lines = append(lines, line)
	}
	if len(pk) > 1 {
		lines = append(lines, "  PRIMARY KEY ("+quoteColumns(pk)+")")
	}
	for _, constraint := range op.NewTableOp(table).Constraints() {
		// foreign keys are emitted as ALTER TABLE statements
		if constraint.Kind == sql.ForeignKeyConstraint {
			continue
		}
		lines = append(lines, "  "+constraint.String())
	}

	b.WriteString(strings.Join(lines, ",\n"))
	b.WriteString("\n);\n")
}

func quoteColumns(columns []string) string {
	quoted := make([]string, len(columns))
	for i, column := range columns {
		quoted[i] = sql.QuoteIdentifier(column)
	}
	return strings.Join(quoted, ", ")
}
