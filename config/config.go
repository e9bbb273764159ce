// Package config loads SchemaDB settings from defaults, schemadb.yaml,
// SCHEMADB_ environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/nickyhof/SchemaDB/db"
)

const (
	DefaultConfigFile = "schemadb.yaml"
	EnvPrefix         = "SCHEMADB_"

	OutputTable = "table"
	OutputJSON  = "json"
)

type S3Config struct {
	Region    string `koanf:"region"`
	Endpoint  string `koanf:"endpoint"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
}

type ServerConfig struct {
	Port      int    `koanf:"port"`
	JWTSecret string `koanf:"jwt_secret"`
	Issuer    string `koanf:"issuer"`
	Audience  string `koanf:"audience"`
}

// AuthEnabled reports whether clients must authenticate with a JWT.
func (s ServerConfig) AuthEnabled() bool {
	return s.JWTSecret != ""
}

type Config struct {
	DefaultSchema string       `koanf:"default_schema"`
	DatabaseName  string       `koanf:"database_name"`
	Output        string       `koanf:"output"`
	LogLevel      string       `koanf:"log_level"`
	S3            S3Config     `koanf:"s3"`
	Server        ServerConfig `koanf:"server"`

	// File is the config file that was read, empty when none was.
	File string `koanf:"-"`
}

// flagKeys maps flag names onto nested config keys. Other flags map by
// replacing dashes with underscores.
var flagKeys = map[string]string{
	"port":          "server.port",
	"jwt-secret":    "server.jwt_secret",
	"jwt-issuer":    "server.issuer",
	"jwt-audience":  "server.audience",
	"s3-region":     "s3.region",
	"s3-endpoint":   "s3.endpoint",
	"s3-access-key": "s3.access_key",
	"s3-secret-key": "s3.secret_key",
}

func defaults() map[string]any {
	return map[string]any{
		"default_schema": "public",
		"database_name":  "Database",
		"output":         OutputTable,
		"log_level":      "warn",
		"server.port":    3306,
	}
}

// Load reads the configuration. An empty cfgFile falls back to
// schemadb.yaml in the working directory when it exists. Only flags that
// were set on the command line override other sources.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if cfgFile == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			cfgFile = DefaultConfigFile
		}
	}
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
	}

	// SCHEMADB_S3_ACCESS_KEY -> s3.access_key
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				key = strings.ReplaceAll(f.Name, "-", "_")
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.File = cfgFile

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	for _, section := range []string{"s3_", "server_"} {
		if strings.HasPrefix(key, section) {
			return strings.TrimSuffix(section, "_") + "." + strings.TrimPrefix(key, section)
		}
	}
	return key
}

func (c *Config) Validate() error {
	switch c.Output {
	case OutputTable, OutputJSON:
	default:
		return fmt.Errorf("invalid output %q: must be %s or %s", c.Output, OutputTable, OutputJSON)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.DefaultSchema == "" {
		return fmt.Errorf("default_schema must not be empty")
	}
	return nil
}

// Remote returns the credentials used for s3:// documents.
func (c *Config) Remote() db.RemoteConfig {
	return db.RemoteConfig{
		Region:    c.S3.Region,
		Endpoint:  c.S3.Endpoint,
		AccessKey: c.S3.AccessKey,
		SecretKey: c.S3.SecretKey,
	}
}

func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", level)
	}
}

// Logger builds a text logger at the configured level.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, _ := ParseLevel(c.LogLevel)
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
