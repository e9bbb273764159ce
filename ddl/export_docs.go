package ddl

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/nickyhof/SchemaDB/core"
	"github.com/nickyhof/SchemaDB/op"
)

// ExportDocs renders Markdown documentation: a title, a table of contents
// and one section per table with its columns, indexes, constraints and
// relationships.
func ExportDocs(tables []*core.Table, relationships []core.Relationship, databaseName string) string {
	relationships = MergeRelationships(tables, relationships)
	if databaseName == "" {
		databaseName = "Database"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", databaseName)
	fmt.Fprintf(&b, "%s, %s.\n\n", plural(len(tables), "table"), plural(len(relationships), "relationship"))

	if len(tables) > 0 {
		b.WriteString("## Tables\n\n")
		for _, t := range tables {
			name := displayTable(t.Key())
			fmt.Fprintf(&b, "- [%s](#%s)\n", name, anchor(name))
		}
	}

	for _, t := range tables {
		b.WriteString("\n")
		writeTableDocs(&b, t, relationships)
	}
	return b.String()
}

func writeTableDocs(b *strings.Builder, t *core.Table, relationships []core.Relationship) {
	tableOp := op.NewTableOp(t)
	fmt.Fprintf(b, "## %s\n\n", displayTable(t.Key()))

	foreign := make(map[string]core.Relationship)
	for _, rel := range relationships {
		if sameTable(rel.From(), t.Key()) {
			foreign[strings.ToLower(rel.FromColumn)] = rel
		}
	}
	unique := uniqueColumns(t)

	b.WriteString("### Columns\n\n")
	columns := table.NewWriter()
	columns.AppendHeader(table.Row{"Column", "Type", "Nullable", "Default", "Key"})
	for _, column := range t.Columns {
		var keys []string
		if column.PrimaryKey {
			keys = append(keys, "PK")
		}
		if rel, ok := foreign[strings.ToLower(column.Name)]; ok {
			keys = append(keys, "FK → "+displayTable(rel.To())+"."+rel.ToColumn)
		}
		if unique[strings.ToLower(column.Name)] && !column.PrimaryKey {
			keys = append(keys, "UNIQUE")
		}
		def := ""
		if column.Default != nil {
			def = "`" + *column.Default + "`"
		}
		columns.AppendRow(table.Row{
			"`" + column.Name + "`",
			column.Type,
			yesNo(column.Nullable),
			def,
			strings.Join(keys, ", "),
		})
	}
	b.WriteString(columns.RenderMarkdown())
	b.WriteString("\n")

	if indexes := tableOp.Indexes(); len(indexes) > 0 {
		b.WriteString("\n### Indexes\n\n")
		list := table.NewWriter()
		list.AppendHeader(table.Row{"Name", "Columns", "Unique"})
		for _, index := range indexes {
			list.AppendRow(table.Row{"`" + index.Name + "`", strings.Join(index.Columns, ", "), yesNo(index.Unique)})
		}
		b.WriteString(list.RenderMarkdown())
		b.WriteString("\n")
	}

	if len(t.Constraints) > 0 {
		b.WriteString("\n### Constraints\n\n")
		for _, constraint := range tableOp.Constraints() {
			fmt.Fprintf(b, "- `%s`\n", constraint)
		}
	}

	var outgoing, incoming []string
	for _, rel := range relationships {
		if sameTable(rel.From(), t.Key()) {
			outgoing = append(outgoing, describeRelationship(rel))
		}
		if sameTable(rel.To(), t.Key()) {
			incoming = append(incoming, describeRelationship(rel))
		}
	}
	if len(outgoing)+len(incoming) > 0 {
		b.WriteString("\n### Relationships\n\n")
		for _, rel := range outgoing {
			fmt.Fprintf(b, "- References: %s\n", rel)
		}
		for _, rel := range incoming {
			fmt.Fprintf(b, "- Referenced by: %s\n", rel)
		}
	}
}

func describeRelationship(rel core.Relationship) string {
	text := "`" + rel.String() + "`"
	var actions []string
	if rel.OnDelete != "" {
		actions = append(actions, "ON DELETE "+rel.OnDelete)
	}
	if rel.OnUpdate != "" {
		actions = append(actions, "ON UPDATE "+rel.OnUpdate)
	}
	if len(actions) > 0 {
		text += " (" + strings.Join(actions, ", ") + ")"
	}
	return text
}

func displayTable(key core.TableKey) string {
	if key.Schema == "" || key.Schema == core.DefaultSchema {
		return key.Name
	}
	return key.String()
}

// anchor follows GitHub's heading slug rules.
func anchor(heading string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(heading) {
		switch {
		case r == ' ':
			b.WriteRune('-')
		case r == '-' || r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z':
			b.WriteRune(r)
		}
	}
	return b.String()
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
