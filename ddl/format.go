package ddl

import (
	"fmt"
	"strings"

	"github.com/nickyhof/SchemaDB/core"
)

type Format string

const (
	FormatSQL      Format = "sql"
	FormatMermaid  Format = "mermaid"
	FormatDBML     Format = "dbml"
	FormatMarkdown Format = "markdown"
)

var Formats = []Format{FormatSQL, FormatMermaid, FormatDBML, FormatMarkdown}

func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sql", "ddl":
		return FormatSQL, nil
	case "mermaid", "diagram", "er":
		return FormatMermaid, nil
	case "dbml", "markup":
		return FormatDBML, nil
	case "markdown", "md", "docs":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unknown export format %q", name)
	}
}

// Extension is the file extension documents of the format use.
func (f Format) Extension() string {
	switch f {
	case FormatMermaid:
		return ".mmd"
	case FormatDBML:
		return ".dbml"
	case FormatMarkdown:
		return ".md"
	default:
		return ".sql"
	}
}

// Export renders tables in format. databaseName only titles Markdown.
func Export(format Format, tables []*core.Table, relationships []core.Relationship, databaseName string) (string, error) {
	switch format {
	case FormatSQL:
		return ExportSQL(tables, relationships), nil
	case FormatMermaid:
		return ExportDiagram(tables, relationships), nil
	case FormatDBML:
		return ExportTableMarkup(tables, relationships), nil
	case FormatMarkdown:
		return ExportDocs(tables, relationships, databaseName), nil
	default:
		return "", fmt.Errorf("unknown export format %q", format)
	}
}
