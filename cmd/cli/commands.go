package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nickyhof/SchemaDB/config"
	"github.com/nickyhof/SchemaDB/core"
	"github.com/nickyhof/SchemaDB/db"
	"github.com/nickyhof/SchemaDB/ddl"
	"github.com/nickyhof/SchemaDB/validate"
)

var (
	errImportFailed     = errors.New("import finished with errors")
	errValidationFailed = errors.New("schema validation failed")
)

func newImportCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <path>...",
		Short: "Import DDL scripts and summarize the resulting schema",
		Long: `Import parses CREATE TABLE, CREATE INDEX and ALTER TABLE ... ADD FOREIGN KEY
statements from each document and lists the tables they declare.

Paths may be local files or file://, http(s):// or s3:// URLs.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, id, err := a.newComponent(cmd.Context(), nil)
			if err != nil {
				return err
			}

			failed := 0
			summaries := make([]importSummary, 0, len(args))
			for _, path := range args {
				result, err := a.importDocument(cmd.Context(), registry, id, path)
				if err != nil {
					return err
				}
				failed += len(result.Errors)
				summaries = append(summaries, summarizeImport(path, result))
				if a.cfg.Output != config.OutputJSON {
					renderImport(cmd.OutOrStdout(), path, result)
				}
			}

			if a.cfg.Output == config.OutputJSON {
				if err := renderJSON(cmd.OutOrStdout(), summaries); err != nil {
					return err
				}
			} else {
				err = registry.With(id, func(engine *db.Engine) error {
					renderTables(cmd.OutOrStdout(), engine.Model.Tables)
					return nil
				})
				if err != nil {
					return err
				}
			}

			if failed > 0 {
				return fmt.Errorf("%w: %d statement(s) failed", errImportFailed, failed)
			}
			return nil
		},
	}
}

func newExportCommand(a *app) *cobra.Command {
	var (
		formatName string
		out        string
	)

	cmd := &cobra.Command{
		Use:   "export <path>...",
		Short: "Import DDL scripts and export the schema in another format",
		Long: `Export imports the given DDL documents and renders the schema as SQL DDL,
a Mermaid ER diagram, DBML or Markdown documentation.

The document is written to --out (a local path or s3:// URL) or to stdout.`,
		Example: `  schemadb export schema.sql --format mermaid
  schemadb export schema.sql --format markdown --out s3://docs/schema.md`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := ddl.ParseFormat(formatName)
			if err != nil {
				return err
			}
			registry, id, err := a.newComponent(cmd.Context(), cmd.ErrOrStderr(), args...)
			if err != nil {
				return err
			}
			document, err := registry.Export(id, format, a.cfg.DatabaseName)
			if err != nil {
				return err
			}

			if out == "" {
				_, err = fmt.Fprint(cmd.OutOrStdout(), document)
				return err
			}
			out = exportTarget(out, a.cfg.DatabaseName, format)
			if err := db.WriteDocument(cmd.Context(), out, a.cfg.Remote(), document); err != nil {
				return err
			}
			a.logger.Info("schema exported", "format", format, "path", out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&formatName, "format", "f", string(ddl.FormatSQL), "Export format (sql|mermaid|dbml|markdown)")
	cmd.Flags().StringVar(&out, "out", "", "Write the document to this path instead of stdout")
	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		names := make([]string, len(ddl.Formats))
		for i, format := range ddl.Formats {
			names[i] = string(format)
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

func newValidateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <path>...",
		Short: "Check a schema for structural problems",
		Long: `Validate imports the given DDL documents and reports errors (tables without
columns or primary key, duplicate tables, broken foreign keys) and warnings
(isolated tables, unindexed text foreign key targets).

Documents are validated together as they were written, so a table declared
twice is reported rather than rejected. Exits non-zero when the schema has
errors.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				tables        []*core.Table
				relationships []core.Relationship
			)
			for _, path := range args {
				script, err := db.ReadDocument(cmd.Context(), path, a.cfg.Remote())
				if err != nil {
					return err
				}
				result := ddl.ImportSchema(script)
				renderImport(cmd.ErrOrStderr(), path, result)
				tables = append(tables, result.Tables...)
				relationships = append(relationships, result.Relationships...)
			}

			report := validate.Validate(tables, relationships)
			if err := renderReport(cmd.OutOrStdout(), report, a.cfg.Output); err != nil {
				return err
			}
			if !report.Valid {
				return errValidationFailed
			}
			return nil
		},
	}
}

// exportTarget names the document when path is a directory such as
// "docs/" or "s3://bucket/schemas/".
func exportTarget(path, databaseName string, format ddl.Format) string {
	if !strings.HasSuffix(path, "/") {
		return path
	}
	name := databaseName
	if name == "" {
		name = "schema"
	}
	return path + strings.ToLower(strings.ReplaceAll(name, " ", "_")) + format.Extension()
}
