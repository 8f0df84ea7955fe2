package controller

import (
	"context"
	"net/http"

	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/modules/control/types"
)

// Controls is the control service as seen by the HTTP layer.
type Controls interface {
	Trigger(ctx context.Context, credentials string, source string) (types.Action, error)
	Recent(ctx context.Context, limit int) ([]types.Action, error)
}

type ControlController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type controlControllerImpl struct {
	controls Controls
}

func NewControlController(controls Controls) ControlController {
	return &controlControllerImpl{controls: controls}
}

func (c *controlControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /control/reset", c.handleReset)
	mux.HandleFunc("GET /partials/actions", c.handleActionsPartial)
	mux.HandleFunc("GET /api/actions", c.handleActions)
}
