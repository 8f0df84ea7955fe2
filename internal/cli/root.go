// Package cli holds the tempmon command tree.
package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/backend"
	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/config"
	db "github.com/sydneycally-inclane-2812/temp-monitor-site/internal/db"
	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/logging"
)

const appName = "tempmon"

type rootOptions struct {
	cfgFile    string
	jsonOutput bool
	version    string
}

// NewRootCmd builds the command tree. version is reported by serve and sent as User-Agent.
func NewRootCmd(version string) *cobra.Command {
	opts := &rootOptions{version: version}

	rootCmd := &cobra.Command{
		Use:   appName,
		Short: "Temperature and power-controller dashboard",
		Long: `Polls the telemetry backend, serves the live dashboard and triggers
the remote power reset.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default is ./.env when present)")
	rootCmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "Output results as JSON")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newSnapshotCmd(opts),
		newWatchCmd(opts),
		newResetCmd(opts),
		newExportCmd(opts),
		newActionsCmd(opts),
		newMigrateCmd(opts),
	)
	return rootCmd
}

// Execute runs the command tree and returns the process exit code.
func Execute(ctx context.Context, version string, stderr io.Writer) int {
	if err := NewRootCmd(version).ExecuteContext(ctx); err != nil {
		_, _ = io.WriteString(stderr, "Error: "+err.Error()+"\n")
		return 1
	}
	return 0
}

// setup loads config and installs a stderr logger for one-shot commands.
func (o *rootOptions) setup(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(o.cfgFile)
	if err != nil {
		return config.Config{}, err
	}
	slog.SetDefault(logging.NewWithWriter(cmd.ErrOrStderr(), cfg, o.version, appName))
	return cfg, nil
}

func (o *rootOptions) client(cfg config.Config) *backend.Client {
	return backend.New(backend.Options{
		BaseURL:   cfg.BackendURL,
		Timeout:   cfg.RequestTimeout,
		UserAgent: appName + "/" + o.version,
	})
}

// openDB opens and migrates the action journal.
func openDB(cfg config.Config) (*sql.DB, error) {
	conn, err := db.Open(cfg)
	if err != nil {
		return nil, err
	}
	if _, err := db.Migrate(conn); err != nil {
		_ = db.Close(conn)
		return nil, err
	}
	return conn, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
