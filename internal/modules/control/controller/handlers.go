package controller

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/modules/control/service"
	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/modules/control/types"
	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/modules/control/views"
	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/utils"
)

const (
	defaultActionsLimit = 10
	maxActionsLimit     = 100
)

func (c *controlControllerImpl) handleReset(w http.ResponseWriter, r *http.Request) {
	asJSON := utils.WantsJSON(r)
	if err := r.ParseForm(); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid form")
		return
	}

	action, err := c.controls.Trigger(r.Context(), r.PostForm.Get("credentials"), types.SourceWeb)
	if errors.Is(err, service.ErrEmptyCredentials) {
		if asJSON {
			utils.WriteError(w, http.StatusBadRequest, service.EmptyCredentials)
			return
		}
		// htmx only swaps 2xx responses
		c.writeResult(w, views.ResultData{Message: service.EmptyCredentials})
		return
	}
	if err != nil {
		slog.Error("control reset failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, service.TransportErrorMessage)
		return
	}

	if asJSON {
		status := http.StatusOK
		if !action.Succeeded() {
			status = http.StatusBadGateway
		}
		utils.WriteJSON(w, status, action)
		return
	}
	c.writeResult(w, views.ResultData{Message: action.Message, OK: action.Succeeded()})
}

func (c *controlControllerImpl) writeResult(w http.ResponseWriter, data views.ResultData) {
	var buf bytes.Buffer
	if err := views.RenderResultPartial(&buf, &data); err != nil {
		slog.Error("control result partial render failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render")
		return
	}
	utils.WriteHTML(w, http.StatusOK, buf.Bytes())
}

func (c *controlControllerImpl) handleActionsPartial(w http.ResponseWriter, r *http.Request) {
	actions, err := c.controls.Recent(r.Context(), defaultActionsLimit)
	if err != nil {
		slog.Error("actions: list failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load actions")
		return
	}
	var buf bytes.Buffer
	if err := views.RenderActionsPartial(&buf, &views.ActionsData{Actions: actions}); err != nil {
		slog.Error("actions partial render failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render")
		return
	}
	utils.WriteHTML(w, http.StatusOK, buf.Bytes())
}

func (c *controlControllerImpl) handleActions(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	actions, err := c.controls.Recent(r.Context(), limit)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.WriteJSON(w, http.StatusOK, actions)
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return defaultActionsLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errors.New("limit must be a positive integer")
	}
	if n > maxActionsLimit {
		n = maxActionsLimit
	}
	return n, nil
}
