package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gonum.org/v1/plot/vg"

	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/chart"
)

func newExportCmd(opts *rootOptions) *cobra.Command {
	var (
		format   string
		outPath  string
		widthCM  float64
		heightCM float64
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Render the current samples to a PNG or SVG report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format = strings.ToLower(strings.TrimSpace(format))
			if format == "" {
				format = strings.TrimPrefix(strings.ToLower(filepath.Ext(outPath)), ".")
			}
			if format == "" {
				format = chart.FormatPNG
			}
			if format != chart.FormatPNG && format != chart.FormatSVG {
				return fmt.Errorf("unsupported format %q (allowed: %s, %s)", format, chart.FormatPNG, chart.FormatSVG)
			}
			if outPath == "" {
				outPath = "chart." + format
			}

			cfg, err := opts.setup(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.RequestTimeout)
			defer cancel()
			snap, err := opts.client(cfg).FetchSnapshot(ctx)
			if err != nil {
				return fmt.Errorf("fetch snapshot: %w", err)
			}
			if len(snap.Data) == 0 {
				return chart.ErrNoData
			}

			exportOpts := chart.ExportOptions{
				Width:    vg.Length(widthCM) * vg.Centimeter,
				Height:   vg.Length(heightCM) * vg.Centimeter,
				Location: time.Local,
			}

			if outPath == "-" {
				return chart.Export(cmd.OutOrStdout(), snap.Data, format, exportOpts)
			}
			if err := writeFile(outPath, func(w io.Writer) error {
				return chart.Export(w, snap.Data, format, exportOpts)
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d samples to %s\n", len(snap.Data), outPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "png or svg (default from --out extension, else png)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", `output file, "-" for stdout (default chart.<format>)`)
	cmd.Flags().Float64Var(&widthCM, "width", 0, "width in cm (default 30)")
	cmd.Flags().Float64Var(&heightCM, "height", 0, "height in cm (default width/φ)")
	return cmd
}

// writeFile renders into path, removing the file again when rendering fails.
func writeFile(path string, render func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		closeErr := f.Close()
		if err == nil && closeErr != nil {
			err = fmt.Errorf("close %s: %w", path, closeErr)
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()
	if err := render(f); err != nil {
		return fmt.Errorf("render %s: %w", path, err)
	}
	return nil
}
