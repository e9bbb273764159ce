package ddl

import (
	"strings"

	"github.com/nickyhof/SchemaDB/core"
	"github.com/nickyhof/SchemaDB/op"
	"github.com/nickyhof/SchemaDB/sql"
)

// ExportTableMarkup renders DBML: a Table block per table with field
// settings and an indexes block, then one Ref line per foreign key.
func ExportTableMarkup(tables []*core.Table, relationships []core.Relationship) string {
	var b strings.Builder

	for i, table := range tables {
		if i > 0 {
			b.WriteString("\n")
		}
		writeMarkupTable(&b, table)
	}

	keys := groupForeignKeys(MergeRelationships(tables, relationships))
	if len(keys) > 0 {
		b.WriteString("\n")
	}
	for _, key := range keys {
		b.WriteString("Ref")
		if key.Name != "" {
			b.WriteString(" ")
			b.WriteString(markupName(key.Name))
		}
		b.WriteString(": ")
		b.WriteString(markupEndpoint(key.From, key.Columns))
		b.WriteString(" ")
		b.WriteString(refOperator(tables, key))
		b.WriteString(" ")
		b.WriteString(markupEndpoint(key.To, key.RefColumns))

		var settings []string
		if key.OnDelete != "" {
			settings = append(settings, "delete: "+strings.ToLower(key.OnDelete))
		}
		if key.OnUpdate != "" {
			settings = append(settings, "update: "+strings.ToLower(key.OnUpdate))
		}
		if len(settings) > 0 {
			b.WriteString(" [")
			b.WriteString(strings.Join(settings, ", "))
			b.WriteString("]")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func writeMarkupTable(b *strings.Builder, table *core.Table) {
	tableOp := op.NewTableOp(table)
	pk := table.PrimaryKey()

	// single-column unique constraints become field settings
	unique := make(map[string]bool)
	var blockIndexes []string
	for _, constraint := range tableOp.Constraints() {
		switch {
		case constraint.Kind == sql.UniqueConstraint && len(constraint.Columns) == 1 && constraint.Name == "":
			unique[strings.ToLower(constraint.Columns[0])] = true
		case constraint.Kind == sql.UniqueConstraint || constraint.Kind == sql.IndexConstraint:
			index, _ := constraint.Index(table.Key())
			blockIndexes = append(blockIndexes, markupIndex(index))
		}
	}
	if len(pk) > 1 {
		blockIndexes = append([]string{markupColumns(pk) + " [pk]"}, blockIndexes...)
	}
	for _, index := range table.Indexes {
		blockIndexes = append(blockIndexes, markupIndex(index))
	}

	b.WriteString("Table ")
	b.WriteString(markupTableName(table.Key()))
	b.WriteString(" {\n")
	for _, column := range table.Columns {
		b.WriteString("  ")
		b.WriteString(markupName(column.Name))
		b.WriteString(" ")
		b.WriteString(markupType(column.Type))

		var settings []string
		if column.PrimaryKey && len(pk) == 1 {
			settings = append(settings, "pk")
		}
		if column.Kind == core.SerialKind {
			settings = append(settings, "increment")
		}
		if !column.Nullable && !column.PrimaryKey {
			settings = append(settings, "not null")
		}
		if unique[strings.ToLower(column.Name)] {
			settings = append(settings, "unique")
		}
		if column.Default != nil {
			settings = append(settings, "default: "+markupDefault(*column.Default))
		}
		if len(settings) > 0 {
			b.WriteString(" [")
			b.WriteString(strings.Join(settings, ", "))
			b.WriteString("]")
		}
		b.WriteString("\n")
	}

	if len(blockIndexes) > 0 {
		b.WriteString("\n  indexes {\n")
		for _, index := range blockIndexes {
			b.WriteString("    ")
			b.WriteString(index)
			b.WriteString("\n")
		}
		b.WriteString("  }\n")
	}
	b.WriteString("}\n")
}

func markupIndex(index core.Index) string {
	settings := []string{}
	if index.Unique {
		settings = append(settings, "unique")
	}
	if index.Name != "" {
		settings = append(settings, "name: '"+index.Name+"'")
	}
	text := markupColumns(index.Columns)
	if len(settings) > 0 {
		text += " [" + strings.Join(settings, ", ") + "]"
	}
	return text
}

func markupColumns(columns []string) string {
	if len(columns) == 1 {
		return markupName(columns[0])
	}
	names := make([]string, len(columns))
	for i, column := range columns {
		names[i] = markupName(column)
	}
	return "(" + strings.Join(names, ", ") + ")"
}

func markupEndpoint(key core.TableKey, columns []string) string {
	return markupTableName(key) + "." + markupColumns(columns)
}

func markupTableName(key core.TableKey) string {
	if key.Schema == "" || key.Schema == core.DefaultSchema {
		return markupName(key.Name)
	}
	return markupName(key.Schema) + "." + markupName(key.Name)
}

// markupName double-quotes names DBML cannot take bare.
func markupName(name string) string {
	for i, r := range name {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || i > 0 && r >= '0' && r <= '9') {
			return `"` + name + `"`
		}
	}
	return name
}

// markupType quotes declared types with spaces, e.g. "timestamp with time zone".
func markupType(typeName string) string {
	typeName = strings.ReplaceAll(typeName, ", ", ",")
	if strings.ContainsRune(typeName, ' ') {
		return `"` + typeName + `"`
	}
	return typeName
}

// markupDefault maps a stored default to DBML: literals as they are,
// expressions in backticks.
func markupDefault(expression string) string {
	value, err := sql.ParseLiteral(expression)
	if err != nil {
		return "`" + expression + "`"
	}
	switch value.Kind {
	case core.TextValue:
		return "'" + strings.ReplaceAll(value.Text, "'", `\'`) + "'"
	case core.NullValue:
		return "null"
	default:
		return strings.ToLower(value.SQL())
	}
}

// refOperator is "-" when the referencing columns are themselves unique,
// making the relationship one-to-one, and ">" (many-to-one) otherwise.
func refOperator(tables []*core.Table, key foreignKey) string {
	source := findTable(tables, key.From)
	if source == nil {
		return ">"
	}
	for _, index := range op.NewTableOp(source).UniqueIndexes() {
		if len(index.Columns) != len(key.Columns) {
			continue
		}
		match := true
		for i := range index.Columns {
			if !strings.EqualFold(index.Columns[i], key.Columns[i]) {
				match = false
				break
			}
		}
		if match {
			return "-"
		}
	}
	return ">"
}
