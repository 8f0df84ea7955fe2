package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/app"
	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/config"
	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/logging"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard web service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.cfgFile)
			if err != nil {
				return err
			}

			logger := logging.New(cfg, opts.version, appName)
			slog.SetDefault(logger)

			slog.Info("starting",
				"app", appName,
				"version", opts.version,
				"env", cfg.AppEnv,
				"log_level", cfg.LogLevel.String(),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := app.Run(ctx, cfg, opts.version); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("run failed", "err", err)
				return err
			}

			slog.Info("shutting down")
			return nil
		},
	}
}
