package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, DefaultConfigFile)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("output", OutputTable, "")
	flags.String("log-level", "warn", "")
	flags.Int("port", 3306, "")
	flags.String("s3-region", "", "")
	return flags
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "public", cfg.DefaultSchema)
	assert.Equal(t, "Database", cfg.DatabaseName)
	assert.Equal(t, OutputTable, cfg.Output)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 3306, cfg.Server.Port)
	assert.False(t, cfg.Server.AuthEnabled())
	assert.Empty(t, cfg.File)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeConfig(t, dir, `
database_name: Shop
output: json
log_level: info
s3:
  region: eu-west-1
  endpoint: http://localhost:9000
server:
  port: 4000
  jwt_secret: file-secret
`)
	t.Setenv("SCHEMADB_LOG_LEVEL", "debug")
	t.Setenv("SCHEMADB_S3_ACCESS_KEY", "env-key")
	t.Setenv("SCHEMADB_SERVER_PORT", "5000")

	flags := testFlags()
	require.NoError(t, flags.Parse([]string{"--port", "6000", "--s3-region", "us-east-1"}))

	cfg, err := Load("", flags)
	require.NoError(t, err)

	assert.Equal(t, DefaultConfigFile, cfg.File)
	assert.Equal(t, "Shop", cfg.DatabaseName)
	assert.Equal(t, OutputJSON, cfg.Output, "unset flags do not override the file")
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 6000, cfg.Server.Port)
	assert.Equal(t, "file-secret", cfg.Server.JWTSecret)
	assert.True(t, cfg.Server.AuthEnabled())

	remote := cfg.Remote()
	assert.Equal(t, "us-east-1", remote.Region)
	assert.Equal(t, "http://localhost:9000", remote.Endpoint)
	assert.Equal(t, "env-key", remote.AccessKey)
}

func TestLoadExplicitFile(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeConfig(t, t.TempDir(), "default_schema: crm\n")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "crm", cfg.DefaultSchema)
	assert.Equal(t, path, cfg.File)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.ErrorContains(t, err, "error reading config file")
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errStr  string
	}{
		{name: "output", content: "output: xml\n", errStr: `invalid output "xml"`},
		{name: "log level", content: "log_level: loud\n", errStr: `invalid log level "loud"`},
		{name: "port", content: "server:\n  port: 70000\n", errStr: "invalid server port"},
		{name: "schema", content: "default_schema: \"\"\n", errStr: "default_schema must not be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			t.Chdir(dir)
			writeConfig(t, dir, tt.content)

			_, err := Load("", nil)
			assert.ErrorContains(t, err, tt.errStr)
		})
	}
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "log_level", envKey("SCHEMADB_LOG_LEVEL"))
	assert.Equal(t, "s3.secret_key", envKey("SCHEMADB_S3_SECRET_KEY"))
	assert.Equal(t, "server.jwt_secret", envKey("SCHEMADB_SERVER_JWT_SECRET"))
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	level, err = ParseLevel("warning")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}
