// Package chart draws the dual-axis temperature/humidity chart.
//
// Every Render writes a complete SVG document; there is no incremental update. An empty sample
// set produces only a centered placeholder.
package chart

import (
	"fmt"
	"io"
	"math"
	"time"

	svg "github.com/ajstarks/svgo"
	"gonum.org/v1/plot"

	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/modules/dashboard/types"
)

const (
	TemperaturePad = 1.0
	HumidityPad    = 5.0

	TemperatureColor = "#ff6b6b"
	HumidityColor    = "#4ecdc4"

	Placeholder = "No data available"

	timeTickFormat = "15:04:05"
)

type Margin struct {
	Top, Right, Bottom, Left int
}

type Layout struct {
	Width  int
	Height int
	Margin Margin
}

var DefaultLayout = Layout{
	Width:  800,
	Height: 400,
	Margin: Margin{Top: 20, Right: 80, Bottom: 30, Left: 50},
}

func (l Layout) innerWidth() int  { return l.Width - l.Margin.Left - l.Margin.Right }
func (l Layout) innerHeight() int { return l.Height - l.Margin.Top - l.Margin.Bottom }

// Domain is a closed interval on one axis.
type Domain struct {
	Min, Max float64
}

// Domains are the axis domains for one render. Time is in unix seconds.
type Domains struct {
	Time        Domain
	Temperature Domain
	Humidity    Domain
}

// ComputeDomains returns the axis domains for samples: the time extent, temperature padded by
// TemperaturePad and humidity padded by HumidityPad. NaN readings are ignored. ok is false for
// an empty input.
func ComputeDomains(samples []types.SamplePoint) (d Domains, ok bool) {
	if len(samples) == 0 {
		return Domains{}, false
	}
	d.Time = Domain{Min: math.Inf(1), Max: math.Inf(-1)}
	temp := Domain{Min: math.Inf(1), Max: math.Inf(-1)}
	hum := Domain{Min: math.Inf(1), Max: math.Inf(-1)}
	for _, s := range samples {
		ts := float64(s.Timestamp)
		d.Time.Min = math.Min(d.Time.Min, ts)
		d.Time.Max = math.Max(d.Time.Max, ts)
		if !math.IsNaN(s.Temperature) {
			temp.Min = math.Min(temp.Min, s.Temperature)
			temp.Max = math.Max(temp.Max, s.Temperature)
		}
		if !math.IsNaN(s.Humidity) {
			hum.Min = math.Min(hum.Min, s.Humidity)
			hum.Max = math.Max(hum.Max, s.Humidity)
		}
	}
	d.Temperature = pad(temp, TemperaturePad)
	d.Humidity = pad(hum, HumidityPad)
	return d, true
}

func pad(d Domain, by float64) Domain {
	if math.IsInf(d.Min, 1) {
		// no readings at all on this axis
		return Domain{Min: -by, Max: by}
	}
	return Domain{Min: d.Min - by, Max: d.Max + by}
}

// scale maps v from domain onto [r0, r1]. A degenerate domain maps to the middle of the range.
func scale(v float64, d Domain, r0, r1 float64) float64 {
	if d.Max == d.Min {
		return (r0 + r1) / 2
	}
	return r0 + (v-d.Min)/(d.Max-d.Min)*(r1-r0)
}

// surface is the subset of *svg.SVG the renderer draws with.
type surface interface {
	Start(w int, h int, ns ...string)
	End()
	Gtransform(s string)
	Gend()
	Line(x1 int, y1 int, x2 int, y2 int, s ...string)
	Polyline(x []int, y []int, s ...string)
	Rect(x int, y int, w int, h int, s ...string)
	Text(x int, y int, t string, s ...string)
}

type Renderer struct {
	layout Layout
	loc    *time.Location
}

// NewRenderer returns a renderer drawing with layout; tick labels use loc (time.Local if nil).
func NewRenderer(layout Layout, loc *time.Location) *Renderer {
	if loc == nil {
		loc = time.Local
	}
	return &Renderer{layout: layout, loc: loc}
}

// Render writes a fresh SVG document for samples to w.
func (r *Renderer) Render(w io.Writer, samples []types.SamplePoint) error {
	ew := &errWriter{w: w}
	r.draw(svg.New(ew), samples)
	return ew.err
}

func (r *Renderer) draw(s surface, samples []types.SamplePoint) {
	l := r.layout
	iw, ih := l.innerWidth(), l.innerHeight()

	s.Start(l.Width, l.Height)
	defer s.End()

	d, ok := ComputeDomains(samples)
	if !ok {
		s.Text(iw/2, ih/2, Placeholder, "text-anchor:middle")
		return
	}

	x := func(ts float64) int { return round(scale(ts, d.Time, 0, float64(iw))) }
	yTemp := func(v float64) int { return round(scale(v, d.Temperature, float64(ih), 0)) }
	yHum := func(v float64) int { return round(scale(v, d.Humidity, float64(ih), 0)) }

	s.Gtransform(fmt.Sprintf("translate(%d,%d)", l.Margin.Left, l.Margin.Top))

	// x axis
	s.Gtransform(fmt.Sprintf("translate(0,%d)", ih))
	s.Line(0, 0, iw, 0, axisStyle)
	for _, t := range r.timeTicks(d.Time) {
		px := x(t.Value)
		s.Line(px, 0, px, 6, axisStyle)
		s.Text(px, 18, t.Label, "text-anchor:middle;font-size:10px")
	}
	s.Gend()

	// temperature axis, left
	s.Gtransform("translate(0,0)")
	s.Line(0, 0, 0, ih, axisStyle)
	for _, t := range linearTicks(d.Temperature) {
		py := yTemp(t.Value)
		s.Line(-6, py, 0, py, axisStyle)
		s.Text(-9, py+3, t.Label, "text-anchor:end;font-size:10px")
	}
	s.Text(6, 13, "Temperature (°C)", "text-anchor:start;font-size:10px;fill:"+TemperatureColor)
	s.Gend()

	// humidity axis, right
	s.Gtransform(fmt.Sprintf("translate(%d,0)", iw))
	s.Line(0, 0, 0, ih, axisStyle)
	for _, t := range linearTicks(d.Humidity) {
		py := yHum(t.Value)
		s.Line(0, py, 6, py, axisStyle)
		s.Text(9, py+3, t.Label, "text-anchor:start;font-size:10px")
	}
	s.Text(-6, 13, "Humidity (%)", "text-anchor:end;font-size:10px;fill:"+HumidityColor)
	s.Gend()

	r.series(s, samples, x, yTemp, func(p types.SamplePoint) float64 { return p.Temperature }, TemperatureColor)
	r.series(s, samples, x, yHum, func(p types.SamplePoint) float64 { return p.Humidity }, HumidityColor)

	s.Gtransform(fmt.Sprintf("translate(%d,10)", iw-120))
	s.Rect(-40, 0, 12, 12, "fill:"+TemperatureColor)
	s.Text(-26, 10, "Temperature", "font-size:12px")
	s.Rect(-40, 18, 12, 12, "fill:"+HumidityColor)
	s.Text(-26, 28, "Humidity", "font-size:12px")
	s.Gend()

	s.Gend()
}

const axisStyle = "stroke:currentColor;stroke-width:1"

// series draws one polyline per run of non-NaN values.
func (r *Renderer) series(s surface, samples []types.SamplePoint, x func(float64) int, y func(float64) int, value func(types.SamplePoint) float64, color string) {
	style := "fill:none;stroke-width:2;stroke:" + color
	var xs, ys []int
	flush := func() {
		if len(xs) > 0 {
			s.Polyline(xs, ys, style)
		}
		xs, ys = nil, nil
	}
	for _, p := range samples {
		v := value(p)
		if math.IsNaN(v) {
			flush()
			continue
		}
		xs = append(xs, x(float64(p.Timestamp)))
		ys = append(ys, y(v))
	}
	flush()
}

func (r *Renderer) timeTicks(d Domain) []plot.Tick {
	if d.Max <= d.Min {
		return []plot.Tick{{Value: d.Min, Label: time.Unix(int64(d.Min), 0).In(r.loc).Format(timeTickFormat)}}
	}
	ticker := plot.TimeTicks{
		Ticker: plot.DefaultTicks{},
		Format: timeTickFormat,
		Time:   plot.UnixTimeIn(r.loc),
	}
	return majorTicks(ticker.Ticks(d.Min, d.Max), d)
}

func linearTicks(d Domain) []plot.Tick {
	return majorTicks(plot.DefaultTicks{}.Ticks(d.Min, d.Max), d)
}

// majorTicks keeps labelled ticks inside d.
func majorTicks(ticks []plot.Tick, d Domain) []plot.Tick {
	out := ticks[:0]
	for _, t := range ticks {
		if t.Label == "" || t.Value < d.Min || t.Value > d.Max {
			continue
		}
		out = append(out, t)
	}
	return out
}

func round(v float64) int { return int(math.Round(v)) }

// errWriter remembers the first write error; svgo does not report them.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return len(p), nil
	}
	n, err := e.w.Write(p)
	if err != nil {
		e.err = err
	}
	return n, err
}
