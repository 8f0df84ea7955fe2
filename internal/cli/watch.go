package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/modules/dashboard/service"
	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/modules/dashboard/types"
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll the backend and print every update until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			if interval <= 0 {
				interval = cfg.PollInterval
			}

			out := &watchPrinter{w: cmd.OutOrStdout(), json: opts.jsonOutput}
			poller := service.NewPoller(opts.client(cfg), service.Options{
				Interval: interval,
				Timeout:  cfg.RequestTimeout,
				Location: time.Local,
				Logger:   slog.Default().With("component", "poller"),
				Observer: out,
			})
			poller.AddSink(out)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "poll interval (default POLL_INTERVAL)")
	return cmd
}

// watchPrinter writes one line per applied snapshot and per failed poll.
type watchPrinter struct {
	mu   sync.Mutex
	w    io.Writer
	json bool
}

func (p *watchPrinter) Name() string { return "stdout" }

func (p *watchPrinter) Apply(_ context.Context, _ types.Snapshot, d types.Display) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.json {
		return printJSON(p.w, d)
	}
	line := fmt.Sprintf("%s  records=%d  ping=%s  reset=%s",
		d.UpdatedAt.Format("15:04:05"), d.TotalRecords, d.PingDelta, d.ResetDelta)
	if d.PCStatus != "" {
		line += "  pc=" + d.PCStatus
	}
	if n := len(d.Samples); n > 0 {
		last := d.Samples[n-1]
		line += fmt.Sprintf("  temp=%s  humidity=%s", reading(last.Temperature, "°C"), reading(last.Humidity, "%"))
	}
	_, err := fmt.Fprintln(p.w, line)
	return err
}

func (p *watchPrinter) ObservePoll(ok bool, _ time.Duration) {
	if ok {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.json {
		_ = printJSON(p.w, map[string]string{"error": service.FetchError})
		return
	}
	fmt.Fprintf(p.w, "%s  %s\n", time.Now().Format("15:04:05"), service.FetchError)
}

func (p *watchPrinter) ObserveStale() {}
