package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	db "github.com/sydneycally-inclane-2812/temp-monitor-site/internal/db"
	controlprompt "github.com/sydneycally-inclane-2812/temp-monitor-site/internal/modules/control/prompt"
	controlrepo "github.com/sydneycally-inclane-2812/temp-monitor-site/internal/modules/control/repository"
	controlservice "github.com/sydneycally-inclane-2812/temp-monitor-site/internal/modules/control/service"
	controltypes "github.com/sydneycally-inclane-2812/temp-monitor-site/internal/modules/control/types"
	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/mqtt"
)

func newResetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Trigger the remote power reset",
		Long: `Sends PUT /api/put_reset. In credentials mode the credential is read from the
terminal without echo (or from piped stdin); Escape, Ctrl-C or EOF cancel without
contacting the backend.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.setup(cmd)
			if err != nil {
				return err
			}

			var repo controlrepo.ActionRepository
			conn, err := openDB(cfg)
			if err != nil {
				slog.Warn("action journal unavailable", "error", err)
			} else {
				defer func() { _ = db.Close(conn) }()
				repo = controlrepo.NewRepository(conn)
			}

			svc := controlservice.NewService(opts.client(cfg), repo, cfg.ControlMode, slog.Default().With("component", "control"))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if cfg.MQTTEnabled() {
				publisher := mqtt.NewPublisher(cfg, slog.Default().With("component", "mqtt"))
				connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				if err := publisher.Connect(connectCtx); err != nil {
					slog.Warn("mqtt connection failed (continuing without mqtt)", "error", err)
				} else {
					svc.AddObserver(publisher)
					defer publisher.Disconnect()
				}
				cancel()
			}

			out := cmd.OutOrStdout()
			var credentials string
			if svc.CredentialsRequired() {
				credentials, err = controlprompt.New(cmd.InOrStdin(), cmd.ErrOrStderr()).Credentials(ctx)
				if errors.Is(err, controlservice.ErrCancelled) {
					fmt.Fprintln(out, "Cancelled.")
					return nil
				}
				if err != nil {
					return err
				}
			}

			action, err := svc.Trigger(ctx, credentials, controltypes.SourceCLI)
			if errors.Is(err, controlservice.ErrEmptyCredentials) {
				fmt.Fprintln(out, controlservice.EmptyCredentials)
				return err
			}
			if err != nil {
				return err
			}

			if opts.jsonOutput {
				if err := printJSON(out, action); err != nil {
					return err
				}
			} else {
				fmt.Fprintln(out, action.Message)
			}
			if !action.Succeeded() {
				return fmt.Errorf("reset %s", action.Outcome)
			}
			return nil
		},
	}
}
