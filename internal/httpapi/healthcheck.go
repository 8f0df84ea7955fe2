package httpapi

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/utils"
)

// HealthDetail reports the state of one component, e.g. "connected" or "pending".
// Details are informational; only the database decides the status code.
type HealthDetail func() string

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

type healthchecker interface {
	handleHealthz(w http.ResponseWriter, r *http.Request)
}

type healthcheckerImpl struct {
	db      *sql.DB
	details map[string]HealthDetail
}

func NewHealthchecker(db *sql.DB, details map[string]HealthDetail) healthchecker {
	return &healthcheckerImpl{db: db, details: details}
}

func (h *healthcheckerImpl) handleHealthz(w http.ResponseWriter, r *http.Request) {
	var ok int
	if err := h.db.QueryRowContext(r.Context(), `SELECT 1`).Scan(&ok); err != nil {
		slog.Error("failed to check database connectivity", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to check database connectivity")
		return
	}

	resp := healthResponse{Status: "ok", Checks: map[string]string{"database": "ok"}}
	for name, detail := range h.details {
		resp.Checks[name] = detail()
	}
	utils.WriteJSON(w, http.StatusOK, resp)
}

func registerHealthcheck(mux *http.ServeMux, db *sql.DB, details map[string]HealthDetail) {
	healthchecker := NewHealthchecker(db, details)
	mux.HandleFunc("GET /healthz", healthchecker.handleHealthz)
}
