package control

import (
	"net/http"

	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/modules/control/controller"
	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/modules/control/service"
)

// RegisterFeature wires the reset action and the action journal routes onto mux.
func RegisterFeature(mux *http.ServeMux, svc *service.Service) {
	controlController := controller.NewControlController(svc)
	controlController.RegisterRoutes(mux)
}
