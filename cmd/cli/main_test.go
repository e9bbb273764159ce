package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickyhof/SchemaDB/config"
	"github.com/nickyhof/SchemaDB/ddl"
)

const shopDDL = `
CREATE TABLE users (
  id SERIAL PRIMARY KEY,
  email VARCHAR(255) NOT NULL UNIQUE
);
CREATE TABLE orders (
  id SERIAL PRIMARY KEY,
  user_id INTEGER NOT NULL REFERENCES users (id)
);
`

func setupTestShell(t *testing.T, output string) (*shell, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	t.Chdir(t.TempDir())

	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	cfg.Output = output

	a := &app{cfg: cfg, logger: cfg.Logger(&bytes.Buffer{})}
	registry, id, err := a.newComponent(context.Background(), nil)
	require.NoError(t, err)

	var out, errOut bytes.Buffer
	return &shell{app: a, registry: registry, id: id, out: &out, errOut: &errOut}, &out, &errOut
}

func feed(t *testing.T, s *shell, lines ...string) {
	t.Helper()
	for _, line := range lines {
		require.False(t, s.handleLine(context.Background(), line), line)
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Chdir(t.TempDir())

	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestShellMultiLineStatements(t *testing.T) {
	s, out, errOut := setupTestShell(t, config.OutputTable)

	feed(t, s,
		"CREATE TABLE users (",
		"  id SERIAL PRIMARY KEY,",
		"  name TEXT",
	)
	assert.NotZero(t, s.buffer.Len(), "statement is still buffered")
	feed(t, s, ");")
	assert.Zero(t, s.buffer.Len())

	feed(t, s, "INSERT INTO users (name) VALUES ('a;b'); INSERT INTO users (name) VALUES ('c');")
	out.Reset()
	feed(t, s, "SELECT name FROM users WHERE id = 2;")

	assert.Contains(t, out.String(), "c")
	assert.Contains(t, out.String(), "1 rows")
	assert.Contains(t, out.String(), "INDEX SCAN")
	assert.Empty(t, errOut.String())

	feed(t, s, "SELECT * FROM missing;")
	assert.Contains(t, errOut.String(), "Error")
}

func TestShellDotCommands(t *testing.T) {
	s, out, errOut := setupTestShell(t, config.OutputTable)
	path := writeFile(t, "shop.sql", shopDDL)

	tests := []struct {
		input    string
		contains []string
	}{
		{input: ".import " + path, contains: []string{"Imported 2 table(s)"}},
		{input: ".tables", contains: []string{"users", "orders"}},
		{input: ".schema users", contains: []string{"CREATE TABLE users"}},
		{input: ".plan SELECT * FROM orders WHERE id = 1;", contains: []string{"SELECT on public.orders", "INDEX SCAN orders_pkey"}},
		{input: ".export mermaid", contains: []string{"erDiagram", "users ||--o{ orders"}},
		{input: ".validate", contains: []string{"Schema is valid"}},
		{input: ".help", contains: []string{".restore [id]"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			out.Reset()
			feed(t, s, tt.input)
			for _, want := range tt.contains {
				assert.Contains(t, out.String(), want)
			}
			assert.Empty(t, errOut.String())
		})
	}

	feed(t, s, ".frobnicate")
	assert.Contains(t, errOut.String(), "Unknown command: .frobnicate")

	assert.True(t, s.handleLine(context.Background(), ".quit"))
}

func TestShellExportToFile(t *testing.T) {
	s, out, errOut := setupTestShell(t, config.OutputTable)
	feed(t, s, ".import "+writeFile(t, "shop.sql", shopDDL))

	target := filepath.Join(t.TempDir(), "schema.dbml")
	feed(t, s, ".export dbml "+target)
	assert.Empty(t, errOut.String())
	assert.Contains(t, out.String(), "Wrote "+target)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Table users {")

	feed(t, s, ".export pdf")
	assert.Contains(t, errOut.String(), "unknown export format")
}

func TestShellSnapshots(t *testing.T) {
	s, out, errOut := setupTestShell(t, config.OutputTable)

	feed(t, s, ".history")
	assert.Contains(t, out.String(), "No snapshots")

	feed(t, s,
		"CREATE TABLE notes (id SERIAL PRIMARY KEY, body TEXT);",
		"INSERT INTO notes (body) VALUES ('kept');",
		".save first note",
		"INSERT INTO notes (body) VALUES ('lost');",
	)
	assert.Contains(t, out.String(), "Saved snapshot")

	out.Reset()
	feed(t, s, ".history")
	assert.Contains(t, out.String(), "first note")

	feed(t, s, ".restore")
	response := s.registry.Run(s.id, "SELECT * FROM notes")
	require.True(t, response.Success)
	assert.Equal(t, 1, response.RowCount)

	feed(t, s, "BEGIN;", ".restore")
	assert.Contains(t, errOut.String(), "open transaction")
}

func TestShellJSONOutput(t *testing.T) {
	s, out, _ := setupTestShell(t, config.OutputJSON)
	feed(t, s, "CREATE TABLE t (id INT PRIMARY KEY);", "INSERT INTO t VALUES (7);")

	out.Reset()
	feed(t, s, "SELECT * FROM t WHERE id = 7;")

	var response struct {
		Success     bool             `json:"success"`
		RowCount    int              `json:"rowCount"`
		Rows        []map[string]any `json:"rows"`
		IndexesUsed []string         `json:"indexesUsed"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &response))
	assert.True(t, response.Success)
	assert.Equal(t, 1, response.RowCount)
	assert.Equal(t, []string{"t_pkey"}, response.IndexesUsed)

	out.Reset()
	feed(t, s, "SELECT * FROM nope;")
	require.NoError(t, json.Unmarshal(out.Bytes(), &response))
	assert.False(t, response.Success)
}

func TestExportCommand(t *testing.T) {
	path := writeFile(t, "shop.sql", shopDDL)

	out, errOut, err := runCLI(t, "export", path, "--format", "markdown", "--database-name", "Shop")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "# Shop\n"), out)
	assert.Contains(t, errOut, "Imported 2 table(s)")

	target := filepath.Join(t.TempDir(), "schema.sql")
	out, _, err = runCLI(t, "export", path, "-f", "ddl", "--out", target)
	require.NoError(t, err)
	assert.Empty(t, out)
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "REFERENCES users (id)")

	_, _, err = runCLI(t, "export", path, "--format", "yaml")
	assert.ErrorContains(t, err, "unknown export format")
}

func TestImportCommand(t *testing.T) {
	path := writeFile(t, "shop.sql", shopDDL)

	out, _, err := runCLI(t, "import", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 table(s)")
	assert.Contains(t, out, "orders")

	broken := writeFile(t, "broken.sql", shopDDL+"DROP TABLE users;")
	out, _, err = runCLI(t, "import", "--output", "json", broken)
	require.ErrorIs(t, err, errImportFailed)

	var summaries []importSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, []string{"users", "orders"}, summaries[0].Tables)
	assert.Equal(t, []string{"orders.user_id -> users.id"}, summaries[0].Relationships)
	assert.Len(t, summaries[0].Errors, 1)

	_, _, err = runCLI(t, "import", filepath.Join(t.TempDir(), "missing.sql"))
	assert.Error(t, err)
}

func TestValidateCommand(t *testing.T) {
	out, _, err := runCLI(t, "validate", writeFile(t, "shop.sql", shopDDL))
	require.NoError(t, err)
	assert.Contains(t, out, "Schema is valid: 0 error(s)")

	first := writeFile(t, "a.sql", "CREATE TABLE notes (body TEXT);")
	second := writeFile(t, "b.sql", "CREATE TABLE notes (id INT PRIMARY KEY);")
	out, _, err = runCLI(t, "validate", "-o", "json", first, second)
	require.ErrorIs(t, err, errValidationFailed)

	var report struct {
		Valid  bool `json:"valid"`
		Errors []struct {
			Code string `json:"code"`
		} `json:"errors"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.False(t, report.Valid)
	codes := make([]string, len(report.Errors))
	for i, issue := range report.Errors {
		codes[i] = issue.Code
	}
	assert.Contains(t, codes, "no_primary_key")
	assert.Contains(t, codes, "duplicate_table")
}

func TestInvalidConfig(t *testing.T) {
	_, _, err := runCLI(t, "validate", "--output", "xml", "schema.sql")
	assert.ErrorContains(t, err, `invalid output "xml"`)
}

func TestExportTarget(t *testing.T) {
	tests := []struct {
		path     string
		database string
		format   ddl.Format
		want     string
	}{
		{"schema.sql", "Shop", ddl.FormatSQL, "schema.sql"},
		{"docs/", "Shop Front", ddl.FormatMarkdown, "docs/shop_front.md"},
		{"s3://bucket/diagrams/", "", ddl.FormatMermaid, "s3://bucket/diagrams/schema.mmd"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, exportTarget(tt.path, tt.database, tt.format))
		})
	}
}
