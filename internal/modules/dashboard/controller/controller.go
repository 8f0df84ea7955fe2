package controller

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/modules/dashboard/types"
)

// DisplaySource is the poller as seen by the HTTP layer.
type DisplaySource interface {
	Display() types.Display
	Refresh(ctx context.Context) types.Display
}

type ChartRenderer interface {
	Render(w io.Writer, samples []types.SamplePoint) error
}

type DashboardController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type Options struct {
	CredentialsRequired bool
	PollInterval        time.Duration
	Location            *time.Location
	Version             string
}

type dashboardControllerImpl struct {
	source   DisplaySource
	renderer ChartRenderer
	opts     Options
}

func NewDashboardController(source DisplaySource, renderer ChartRenderer, opts Options) DashboardController {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &dashboardControllerImpl{source: source, renderer: renderer, opts: opts}
}

func (c *dashboardControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /", c.handleDashboard)
	mux.HandleFunc("GET /partials/status", c.handleStatusPartial)
	mux.HandleFunc("POST /refresh", c.handleRefresh)
	mux.HandleFunc("GET /api/snapshot", c.handleSnapshot)
	mux.HandleFunc("GET /chart.svg", c.handleChartSVG)
	mux.HandleFunc("GET /chart.png", c.handleChartPNG)
}
