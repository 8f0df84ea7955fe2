package controller

import (
	"bytes"
	"errors"
	"html/template"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/chart"
	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/modules/dashboard/types"
	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/modules/dashboard/views"
	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/utils"
)

func (c *dashboardControllerImpl) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	status, err := c.statusData(c.source.Display())
	if err != nil {
		slog.Error("dashboard: chart render failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render chart")
		return
	}
	data := views.DashboardData{
		Status:              status,
		CredentialsRequired: c.opts.CredentialsRequired,
		Version:             c.opts.Version,
	}
	var buf bytes.Buffer
	if err := views.RenderDashboard(&buf, &data); err != nil {
		slog.Error("dashboard template render failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render page")
		return
	}
	utils.WriteHTML(w, http.StatusOK, buf.Bytes())
}

func (c *dashboardControllerImpl) handleStatusPartial(w http.ResponseWriter, r *http.Request) {
	c.writeStatus(w, c.source.Display())
}

func (c *dashboardControllerImpl) handleRefresh(w http.ResponseWriter, r *http.Request) {
	display := c.source.Refresh(r.Context())
	if utils.WantsJSON(r) {
		utils.WriteJSON(w, http.StatusOK, display)
		return
	}
	c.writeStatus(w, display)
}

func (c *dashboardControllerImpl) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, c.source.Display())
}

func (c *dashboardControllerImpl) handleChartSVG(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := c.renderer.Render(&buf, c.source.Display().Samples); err != nil {
		slog.Error("chart svg render failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render chart")
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Error("chart svg: write response failed", "error", err)
	}
}

func (c *dashboardControllerImpl) handleChartPNG(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	err := chart.Export(&buf, c.source.Display().Samples, chart.FormatPNG, chart.ExportOptions{Location: c.opts.Location})
	if errors.Is(err, chart.ErrNoData) {
		utils.WriteError(w, http.StatusNotFound, chart.Placeholder)
		return
	}
	if err != nil {
		slog.Error("chart png export failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render chart")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Error("chart png: write response failed", "error", err)
	}
}

func (c *dashboardControllerImpl) writeStatus(w http.ResponseWriter, display types.Display) {
	data, err := c.statusData(display)
	if err != nil {
		slog.Error("status: chart render failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render chart")
		return
	}
	var buf bytes.Buffer
	if err := views.RenderStatusPartial(&buf, &data); err != nil {
		slog.Error("status partial render failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render")
		return
	}
	utils.WriteHTML(w, http.StatusOK, buf.Bytes())
}

// statusData redraws the chart from scratch for display.
func (c *dashboardControllerImpl) statusData(display types.Display) (views.StatusData, error) {
	var svg bytes.Buffer
	if err := c.renderer.Render(&svg, display.Samples); err != nil {
		return views.StatusData{}, err
	}
	return views.StatusData{
		Display: display,
		// renderer output escapes all text content
		Chart:       template.HTML(svg.String()),
		PollSeconds: pollSeconds(c.opts.PollInterval),
	}, nil
}

// pollSeconds rounds d up to whole seconds for hx-trigger, never below 1.
func pollSeconds(d time.Duration) int {
	return max(1, int(math.Ceil(d.Seconds())))
}
