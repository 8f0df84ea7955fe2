package dashboard

import (
	"net/http"

	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/modules/dashboard/controller"
	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/modules/dashboard/service"
)

// RegisterFeature wires the dashboard page, partials and chart routes onto mux.
func RegisterFeature(mux *http.ServeMux, poller *service.Poller, renderer controller.ChartRenderer, opts controller.Options) {
	dashboardController := controller.NewDashboardController(poller, renderer, opts)
	dashboardController.RegisterRoutes(mux)
}
