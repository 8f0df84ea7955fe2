package chart

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
	"gonum.org/v1/plot/vg/vgsvg"

	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/modules/dashboard/types"
)

// ErrNoData is returned by Export for an empty sample set.
var ErrNoData = errors.New("chart: no samples to plot")

const (
	FormatPNG = "png"
	FormatSVG = "svg"
)

var (
	temperatureRGBA = color.RGBA{R: 0xff, G: 0x6b, B: 0x6b, A: 0xff}
	humidityRGBA    = color.RGBA{R: 0x4e, G: 0xcd, B: 0xc4, A: 0xff}
)

// ExportOptions size the exported report. Zero values default to 30cm by 30cm/φ.
type ExportOptions struct {
	Width    vg.Length
	Height   vg.Length
	Location *time.Location
}

// Export writes a two-panel report of samples (temperature above humidity, sharing the time
// axis) to w as PNG or SVG.
func Export(w io.Writer, samples []types.SamplePoint, format string, opts ExportOptions) error {
	d, ok := ComputeDomains(samples)
	if !ok {
		return ErrNoData
	}
	if opts.Width <= 0 {
		opts.Width = 30 * vg.Centimeter
	}
	if opts.Height <= 0 {
		opts.Height = opts.Width / vg.Length(math.Phi)
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}

	temp, err := panel("Temperature", "Temperature (°C)", samples, func(p types.SamplePoint) float64 { return p.Temperature }, temperatureRGBA, d, d.Temperature, opts.Location)
	if err != nil {
		return err
	}
	hum, err := panel("Humidity", "Humidity (%)", samples, func(p types.SamplePoint) float64 { return p.Humidity }, humidityRGBA, d, d.Humidity, opts.Location)
	if err != nil {
		return err
	}

	const pad = 10
	tiles := draw.Tiles{
		Rows:      2,
		Cols:      1,
		PadTop:    pad,
		PadBottom: pad,
		PadLeft:   pad,
		PadRight:  pad,
		PadY:      pad,
	}
	plots := [][]*plot.Plot{{temp}, {hum}}

	switch format {
	case FormatPNG:
		c := vgimg.New(opts.Width, opts.Height)
		drawPanels(plots, tiles, draw.New(c))
		if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(w); err != nil {
			return fmt.Errorf("chart: write png: %w", err)
		}
	case FormatSVG:
		c := vgsvg.New(opts.Width, opts.Height)
		drawPanels(plots, tiles, draw.New(c))
		if _, err := c.WriteTo(w); err != nil {
			return fmt.Errorf("chart: write svg: %w", err)
		}
	default:
		return fmt.Errorf("chart: unsupported format %q (allowed: %s, %s)", format, FormatPNG, FormatSVG)
	}
	return nil
}

func drawPanels(plots [][]*plot.Plot, tiles draw.Tiles, dc draw.Canvas) {
	canvases := plot.Align(plots, tiles, dc)
	for i := range plots {
		for j := range plots[i] {
			plots[i][j].Draw(canvases[i][j])
		}
	}
}

func panel(title, ylabel string, samples []types.SamplePoint, value func(types.SamplePoint) float64, c color.Color, d Domains, y Domain, loc *time.Location) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = ylabel
	p.X.Tick.Marker = plot.TimeTicks{Format: timeTickFormat, Time: plot.UnixTimeIn(loc)}

	// plotter rejects NaN, so gaps are dropped rather than drawn
	xys := make(plotter.XYs, 0, len(samples))
	for _, s := range samples {
		v := value(s)
		if math.IsNaN(v) {
			continue
		}
		xys = append(xys, plotter.XY{X: float64(s.Timestamp), Y: v})
	}
	if len(xys) > 0 {
		line, err := plotter.NewLine(xys)
		if err != nil {
			return nil, fmt.Errorf("chart: %s line: %w", title, err)
		}
		line.Color = c
		line.Width = vg.Points(2)
		p.Add(line)
	}
	p.Add(plotter.NewGrid())

	p.X.Min, p.X.Max = d.Time.Min, d.Time.Max
	if p.X.Max <= p.X.Min {
		p.X.Min--
		p.X.Max++
	}
	p.Y.Min, p.Y.Max = y.Min, y.Max
	return p, nil
}
