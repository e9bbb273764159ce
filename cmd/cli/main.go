// Command schemadb is the interactive shell and batch tool for SchemaDB.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nickyhof/SchemaDB"
	"github.com/nickyhof/SchemaDB/config"
	"github.com/nickyhof/SchemaDB/core"
	"github.com/nickyhof/SchemaDB/db"
	"github.com/nickyhof/SchemaDB/ddl"
)

// Version is set at build time via -ldflags
var Version = "dev"

// app is the state shared by all subcommands of one invocation.
type app struct {
	cfgFile  string
	cfg      *config.Config
	logger   *slog.Logger
	identity core.Identity
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "schemadb",
		Short: "SchemaDB - embedded SQL emulation engine",
		Long: `SchemaDB emulates a relational database in memory.

Import a DDL script, run SQL against it, inspect query plans and export
the schema as SQL, Mermaid ER diagrams, DBML or Markdown.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}
			cfg, err := config.Load(a.cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = cfg.Logger(cmd.ErrOrStderr())
			if cfg.File != "" {
				a.logger.Debug("using config file", "path", cfg.File)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default: ./schemadb.yaml)")
	flags.StringP("output", "o", config.OutputTable, "Output format (table|json)")
	flags.String("log-level", "warn", "Log level (debug|info|warn|error)")
	flags.String("database-name", "", "Database name used to title Markdown exports")
	flags.String("s3-region", "", "S3 region for s3:// documents")
	flags.String("s3-endpoint", "", "S3-compatible endpoint for s3:// documents")
	flags.StringVar(&a.identity.Name, "name", "SchemaDB", "Author name for snapshots")
	flags.StringVar(&a.identity.Email, "email", "cli@schemadb.local", "Author email for snapshots")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{config.OutputTable, config.OutputJSON}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(newShellCommand(a))
	rootCmd.AddCommand(newImportCommand(a))
	rootCmd.AddCommand(newExportCommand(a))
	rootCmd.AddCommand(newValidateCommand(a))

	return rootCmd
}

// newComponent creates a registry with one component and loads the DDL
// documents at paths into it, summarizing each import on w.
func (a *app) newComponent(ctx context.Context, w io.Writer, paths ...string) (*SchemaDB.Registry, string, error) {
	registry := SchemaDB.NewRegistry(SchemaDB.Options{Logger: a.logger, Identity: a.identity})
	id, err := registry.Create("", nil)
	if err != nil {
		return nil, "", err
	}
	for _, path := range paths {
		result, err := a.importDocument(ctx, registry, id, path)
		if err != nil {
			return nil, "", err
		}
		renderImport(w, path, result)
	}
	return registry, id, nil
}

func (a *app) importDocument(ctx context.Context, registry *SchemaDB.Registry, id, path string) (ddl.ImportResult, error) {
	script, err := db.ReadDocument(ctx, path, a.cfg.Remote())
	if err != nil {
		return ddl.ImportResult{}, err
	}
	result, err := registry.Import(id, script)
	if err != nil {
		return result, fmt.Errorf("failed to import %s: %w", path, err)
	}
	return result, nil
}
