package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/nickyhof/SchemaDB"
	"github.com/nickyhof/SchemaDB/config"
	"github.com/nickyhof/SchemaDB/core"
	"github.com/nickyhof/SchemaDB/db"
	"github.com/nickyhof/SchemaDB/ddl"
)

const (
	PromptColor  = "\033[36m" // Cyan
	ErrorColor   = "\033[31m" // Red
	SuccessColor = "\033[32m" // Green
	ResetColor   = "\033[0m"
	BoldColor    = "\033[1m"

	prompt         = "schemadb> "
	continuePrompt = "     ...> "
)

var dotCommands = []string{
	".help", ".tables", ".schema", ".plan", ".import", ".export", ".validate",
	".save", ".history", ".restore", ".clear", ".quit", ".exit",
}

// shell runs SQL and dot commands against one component. Statements may
// span lines and run once a line ends with a semicolon.
type shell struct {
	app      *app
	registry *SchemaDB.Registry
	id       string
	out      io.Writer
	errOut   io.Writer
	buffer   strings.Builder
}

func newShellCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shell [path]...",
		Short: "Start an interactive SQL shell",
		Long: `Shell starts a REPL over an in-memory database, after importing the DDL
documents given as arguments.

Statements end with a semicolon and may span lines. Type .help for the
dot commands.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, id, err := a.newComponent(cmd.Context(), cmd.OutOrStdout(), args...)
			if err != nil {
				return err
			}
			s := &shell{
				app:      a,
				registry: registry,
				id:       id,
				out:      cmd.OutOrStdout(),
				errOut:   cmd.ErrOrStderr(),
			}
			return s.run(cmd.Context())
		},
	}
}

func (s *shell) run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          PromptColor + prompt + ResetColor,
		HistoryFile:     historyPath(),
		AutoComplete:    s.completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
		Stdout:          s.out,
		Stderr:          s.errOut,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize shell: %w", err)
	}
	defer func() { _ = rl.Close() }()

	s.printBanner()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			s.buffer.Reset()
			rl.SetPrompt(PromptColor + prompt + ResetColor)
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if s.handleLine(ctx, line) {
			return nil
		}
		if s.buffer.Len() > 0 {
			rl.SetPrompt(PromptColor + continuePrompt + ResetColor)
		} else {
			rl.SetPrompt(PromptColor + prompt + ResetColor)
		}
	}
}

func (s *shell) printBanner() {
	_, _ = fmt.Fprintf(s.out, "%s%sSchemaDB %s%s (component %s)\n", BoldColor, PromptColor, Version, ResetColor, s.id)
	_, _ = fmt.Fprintln(s.out, "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(s.out)
}

// handleLine consumes one line of input and reports whether the shell
// should exit.
func (s *shell) handleLine(ctx context.Context, line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}

	if s.buffer.Len() == 0 && strings.HasPrefix(trimmed, ".") {
		return s.handleCommand(ctx, trimmed)
	}

	s.buffer.WriteString(line)
	if !strings.HasSuffix(trimmed, ";") {
		s.buffer.WriteString("\n")
		return false
	}

	script := s.buffer.String()
	s.buffer.Reset()
	for _, statement := range ddl.SplitStatements(script) {
		s.execute(statement.Text)
	}
	return false
}

func (s *shell) execute(query string) {
	response := s.registry.Run(s.id, query)
	if !response.Success && s.app.cfg.Output != config.OutputJSON {
		_, _ = fmt.Fprintf(s.errOut, "%s✗ Error: %s%s\n", ErrorColor, response.Error, ResetColor)
		return
	}
	s.report(renderResponse(s.out, response, s.app.cfg.Output))
}

func (s *shell) report(err error) {
	if err != nil {
		_, _ = fmt.Fprintf(s.errOut, "%s✗ Error: %v%s\n", ErrorColor, err, ResetColor)
	}
}

func (s *shell) handleCommand(ctx context.Context, input string) bool {
	parts := strings.Fields(input)
	command := strings.ToLower(parts[0])
	args := parts[1:]
	output := s.app.cfg.Output

	switch command {
	case ".quit", ".exit", ".q":
		_, _ = fmt.Fprintf(s.out, "%sGoodbye!%s\n", SuccessColor, ResetColor)
		return true

	case ".help", ".h", ".?":
		printHelp(s.out)

	case ".tables":
		s.report(s.registry.With(s.id, func(engine *db.Engine) error {
			renderTables(s.out, engine.Model.Tables)
			return nil
		}))

	case ".schema":
		s.report(s.showSchema(args))

	case ".plan":
		// the raw remainder keeps string literals intact
		query := strings.TrimSuffix(strings.TrimSpace(strings.TrimPrefix(input, parts[0])), ";")
		if query == "" {
			s.usage(".plan <statement>")
			break
		}
		var plan db.QueryPlan
		err := s.registry.With(s.id, func(engine *db.Engine) error {
			var err error
			plan, err = engine.Explain(query)
			return err
		})
		if err == nil {
			err = renderPlan(s.out, plan, output)
		}
		s.report(err)

	case ".import":
		if len(args) != 1 {
			s.usage(".import <path>")
			break
		}
		result, err := s.app.importDocument(ctx, s.registry, s.id, args[0])
		if err == nil {
			renderImport(s.out, args[0], result)
		}
		s.report(err)

	case ".export":
		if len(args) == 0 || len(args) > 2 {
			s.usage(".export <sql|mermaid|dbml|markdown> [path]")
			break
		}
		s.report(s.export(ctx, args[0], args[1:]))

	case ".validate":
		report, err := s.registry.Validate(s.id)
		if err == nil {
			err = renderReport(s.out, report, output)
		}
		s.report(err)

	case ".save":
		message := strings.TrimSpace(strings.TrimPrefix(input, parts[0]))
		txn, err := s.registry.Snapshot(s.id, message)
		if err == nil {
			_, _ = fmt.Fprintf(s.out, "%s✓ Saved snapshot %s%s\n", SuccessColor, txn.Short(), ResetColor)
		}
		s.report(err)

	case ".history":
		history, err := s.registry.History(s.id)
		if err == nil {
			err = renderHistory(s.out, history, output)
		}
		s.report(err)

	case ".restore":
		revision := ""
		if len(args) > 0 {
			revision = args[0]
		}
		err := s.registry.Restore(s.id, revision)
		if err == nil {
			_, _ = fmt.Fprintf(s.out, "%s✓ Restored snapshot%s\n", SuccessColor, ResetColor)
		}
		s.report(err)

	case ".clear", ".cls":
		_, _ = fmt.Fprint(s.out, "\033[H\033[2J")

	default:
		_, _ = fmt.Fprintf(s.errOut, "%s✗ Unknown command: %s (type .help for commands)%s\n", ErrorColor, command, ResetColor)
	}

	return false
}

func (s *shell) usage(text string) {
	_, _ = fmt.Fprintf(s.errOut, "%s✗ Usage: %s%s\n", ErrorColor, text, ResetColor)
}

// showSchema prints the DDL of one table, or of every table.
func (s *shell) showSchema(args []string) error {
	return s.registry.With(s.id, func(engine *db.Engine) error {
		tables := engine.Model.Tables
		if len(args) > 0 {
			schema, name, ok := strings.Cut(args[0], ".")
			if !ok {
				schema, name = "", args[0]
			}
			table, found := engine.Model.Table(schema, name)
			if !found {
				return fmt.Errorf("%w: %s", core.ErrTableNotFound, args[0])
			}
			tables = []*core.Table{table}
		}
		_, err := fmt.Fprint(s.out, ddl.ExportSQL(tables, nil))
		return err
	})
}

func (s *shell) export(ctx context.Context, formatName string, path []string) error {
	format, err := ddl.ParseFormat(formatName)
	if err != nil {
		return err
	}
	document, err := s.registry.Export(s.id, format, s.app.cfg.DatabaseName)
	if err != nil {
		return err
	}
	if len(path) == 0 {
		_, err = fmt.Fprint(s.out, document)
		return err
	}
	target := exportTarget(path[0], s.app.cfg.DatabaseName, format)
	if err := db.WriteDocument(ctx, target, s.app.cfg.Remote(), document); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(s.out, "%s✓ Wrote %s%s\n", SuccessColor, target, ResetColor)
	return nil
}

func (s *shell) completer() *readline.PrefixCompleter {
	var items []readline.PrefixCompleterInterface
	for _, command := range dotCommands {
		if command == ".export" {
			formats := make([]readline.PrefixCompleterInterface, len(ddl.Formats))
			for i, format := range ddl.Formats {
				formats[i] = readline.PcItem(string(format))
			}
			items = append(items, readline.PcItem(command, formats...))
			continue
		}
		items = append(items, readline.PcItem(command))
	}
	for _, keyword := range []string{"SELECT", "INSERT INTO", "UPDATE", "DELETE FROM", "CREATE TABLE", "CREATE INDEX", "ALTER TABLE", "DROP TABLE", "BEGIN", "COMMIT", "ROLLBACK"} {
		items = append(items, readline.PcItem(keyword))
	}
	return readline.NewPrefixCompleter(items...)
}

func printHelp(w io.Writer) {
	_, _ = fmt.Fprintf(w, "\n%s%sSpecial Commands:%s\n", BoldColor, PromptColor, ResetColor)
	_, _ = fmt.Fprint(w, `  .help                 Show this help message
  .tables               List tables
  .schema [table]       Show CREATE statements
  .plan <statement>     Show the query plan without running the statement
  .import <path>        Import a DDL document
  .export <fmt> [path]  Export as sql, mermaid, dbml or markdown
  .validate             Check the schema for problems
  .save [message]       Save a snapshot of the database
  .history              List snapshots
  .restore [id]         Restore a snapshot (latest by default)
  .clear                Clear the screen
  .quit, .exit          Exit the shell
`)
	_, _ = fmt.Fprintf(w, "\n%s%sSQL Commands:%s\n", BoldColor, PromptColor, ResetColor)
	_, _ = fmt.Fprint(w, `  CREATE TABLE <table> (<column> <type> [constraints], ...);
  CREATE [UNIQUE] INDEX <name> ON <table> (<columns>);
  ALTER TABLE <table> ADD [CONSTRAINT <name>] FOREIGN KEY (<cols>) REFERENCES <table> (<cols>);
  DROP TABLE <table>;
  INSERT INTO <table> [(<cols>)] VALUES (<vals>);
  SELECT <cols> FROM <table|view> [WHERE <col> <op> <val>];
  UPDATE <table> SET <col> = <val>, ... [WHERE ...];
  DELETE FROM <table> [WHERE ...];
  BEGIN; COMMIT; ROLLBACK;

`)
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".schemadb_history")
}
