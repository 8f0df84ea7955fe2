package cli

import (
	"context"
	"fmt"
	"io"
	"math"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/modules/dashboard/service"
	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/modules/dashboard/types"
)

func newSnapshotCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Fetch and print the current telemetry snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.setup(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.RequestTimeout)
			defer cancel()
			snap, err := opts.client(cfg).FetchSnapshot(ctx)
			if err != nil {
				return fmt.Errorf("%s: %w", service.InitialFetchError, err)
			}

			display := service.FormatSnapshot(snap, time.Local, time.Now())
			if opts.jsonOutput {
				return printJSON(cmd.OutOrStdout(), display)
			}
			return printDisplay(cmd.OutOrStdout(), display)
		},
	}
}

func printDisplay(out io.Writer, d types.Display) error {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "FIELD\tVALUE")
	fmt.Fprintln(w, "-----\t-----")
	fmt.Fprintf(w, "Total records\t%d\n", d.TotalRecords)
	fmt.Fprintf(w, "Last power trigger\t%s\n", d.LastPwrTrigger)
	fmt.Fprintf(w, "Last ping\t%s\n", d.LastPing)
	fmt.Fprintf(w, "Ping delta\t%s\n", d.PingDelta)
	fmt.Fprintf(w, "Reset delta\t%s\n", d.ResetDelta)
	if d.PCStatus != "" {
		fmt.Fprintf(w, "PC status\t%s\n", d.PCStatus)
	}
	if d.LastMotion != "" {
		fmt.Fprintf(w, "Last motion\t%s\n", d.LastMotion)
	}
	fmt.Fprintf(w, "Samples\t%d\n", len(d.Samples))
	if n := len(d.Samples); n > 0 {
		last := d.Samples[n-1]
		fmt.Fprintf(w, "Latest sample\t%s  %s  %s\n",
			last.Time().Local().Format("2006-01-02 15:04:05"),
			reading(last.Temperature, "°C"),
			reading(last.Humidity, "%"))
	}
	return w.Flush()
}

func reading(v float64, unit string) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%s", v, unit)
}
