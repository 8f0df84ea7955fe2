package httpapi

import (
	"net/http"
	"time"

	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/config"
)

func NewServer(cfg config.Config, mux *http.ServeMux) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           requestLogger(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
}
