package httpapi

import (
	"database/sql"
	"net/http"
)

// Routes are optional handlers mounted next to the feature routes.
type Routes struct {
	Live    http.Handler
	Metrics http.Handler
	// Health adds named component states to /healthz.
	Health map[string]HealthDetail
}

func NewMux(db *sql.DB, routes Routes) *http.ServeMux {
	mux := http.NewServeMux()
	registerHealthcheck(mux, db, routes.Health)
	if routes.Live != nil {
		mux.Handle("GET /ws", routes.Live)
	}
	if routes.Metrics != nil {
		mux.Handle("GET /metrics", routes.Metrics)
	}
	return mux
}
