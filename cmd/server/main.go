package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nickyhof/SchemaDB"
	"github.com/nickyhof/SchemaDB/config"
	"github.com/nickyhof/SchemaDB/core"
	"github.com/nickyhof/SchemaDB/db"
)

// Version is set at build time via -ldflags
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgFile string
		imports []string
	)

	cmd := &cobra.Command{
		Use:   "schemadb-server",
		Short: "Serve SchemaDB components over TCP",
		Long: `schemadb-server exposes in-memory SchemaDB components over a line-based
TCP protocol. Each line is SQL for the connection's current component, a
JSON request, AUTH JWT <token> or USE <component>. Every request gets one
JSON response line.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			logger := cfg.Logger(cmd.ErrOrStderr())

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			registry := SchemaDB.NewRegistry(SchemaDB.Options{Logger: logger})
			opts := Options{
				Identity: core.Identity{Name: "SchemaDB Server", Email: "server@schemadb.local"},
				Logger:   logger,
			}
			if cfg.Server.AuthEnabled() {
				opts.Auth = &AuthConfig{
					JWTSecret: cfg.Server.JWTSecret,
					Issuer:    cfg.Server.Issuer,
					Audience:  cfg.Server.Audience,
				}
			}
			server, err := NewServer(registry, opts)
			if err != nil {
				return err
			}

			for _, path := range imports {
				if err := preload(ctx, registry, cfg, path); err != nil {
					return err
				}
				logger.Info("schema imported", "path", path, "component", DefaultComponent)
			}

			if err := server.Start(ctx, fmt.Sprintf(":%d", cfg.Server.Port)); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(out)
			_, _ = fmt.Fprintln(out, "╔═══════════════════════════════════════╗")
			_, _ = fmt.Fprintf(out, "║   SchemaDB Server v%-18s ║\n", Version)
			_, _ = fmt.Fprintln(out, "║   Embedded SQL Emulation Engine       ║")
			_, _ = fmt.Fprintln(out, "╚═══════════════════════════════════════╝")
			_, _ = fmt.Fprintln(out)
			_, _ = fmt.Fprintf(out, "Listening on %s\n", server.Addr())
			_, _ = fmt.Fprintln(out, "Send SQL (one statement per line) or JSON requests, 'quit' to disconnect")
			_, _ = fmt.Fprintln(out)

			<-ctx.Done()
			logger.Info("shutting down")
			return server.Stop()
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./schemadb.yaml)")
	flags.Int("port", 3306, "TCP port to listen on")
	flags.String("jwt-secret", "", "Shared secret for HS256 JWT authentication (disabled when empty)")
	flags.String("jwt-issuer", "", "Expected JWT issuer")
	flags.String("jwt-audience", "", "Expected JWT audience")
	flags.String("log-level", "warn", "Log level (debug|info|warn|error)")
	flags.String("s3-region", "", "S3 region for s3:// imports")
	flags.String("s3-endpoint", "", "S3-compatible endpoint for s3:// imports")
	flags.StringArrayVar(&imports, "import", nil, "DDL document to import into the default component (repeatable)")

	return cmd
}

// preload imports the DDL document at path into the default component.
func preload(ctx context.Context, registry *SchemaDB.Registry, cfg *config.Config, path string) error {
	script, err := db.ReadDocument(ctx, path, cfg.Remote())
	if err != nil {
		return err
	}
	result, err := registry.Import(DefaultComponent, script)
	if err != nil {
		return fmt.Errorf("failed to import %s: %w", path, err)
	}
	if !result.OK() {
		return fmt.Errorf("failed to import %s: %w", path, result.Errors[0])
	}
	return nil
}
