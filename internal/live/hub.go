// Package live pushes dashboard updates to websocket clients.
package live

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	controltypes "github.com/sydneycally-inclane-2812/temp-monitor-site/internal/modules/control/types"
	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/modules/dashboard/types"
)

const writeTimeout = 5 * time.Second

const (
	KindDisplay = "display"
	KindAction  = "action"
)

// Message is one frame sent to clients.
type Message struct {
	Kind    string               `json:"kind"`
	Display *types.Display       `json:"display,omitempty"`
	Action  *controltypes.Action `json:"action,omitempty"`
}

// Hub fans every applied display state and control action out to connected clients. A new
// client immediately receives the latest display state.
type Hub struct {
	logger *slog.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	last    []byte
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{logger: logger, clients: make(map[*websocket.Conn]bool)}
}

func (h *Hub) Name() string { return "websocket" }

// Handler serves the websocket endpoint.
func (h *Hub) Handler() http.Handler {
	return websocket.Handler(h.serve)
}

func (h *Hub) serve(ws *websocket.Conn) {
	h.mu.Lock()
	h.clients[ws] = true
	last := h.last
	if last != nil {
		if err := send(ws, last); err != nil {
			delete(h.clients, ws)
			h.mu.Unlock()
			_ = ws.Close()
			return
		}
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "remote", ws.Request().RemoteAddr, "clients", n)

	// clients never send anything meaningful; block until they go away
	_, _ = io.Copy(io.Discard, ws)

	h.mu.Lock()
	delete(h.clients, ws)
	h.mu.Unlock()
	_ = ws.Close()
	h.logger.Debug("websocket client disconnected", "remote", ws.Request().RemoteAddr)
}

// Apply broadcasts the new display state.
func (h *Hub) Apply(ctx context.Context, snap types.Snapshot, display types.Display) error {
	data, err := json.Marshal(Message{Kind: KindDisplay, Display: &display})
	if err != nil {
		return fmt.Errorf("marshal display: %w", err)
	}
	h.mu.Lock()
	h.last = data
	h.mu.Unlock()
	h.broadcast(data)
	return nil
}

// ActionRecorded broadcasts a control action.
func (h *Hub) ActionRecorded(ctx context.Context, a controltypes.Action) error {
	data, err := json.Marshal(Message{Kind: KindAction, Action: &a})
	if err != nil {
		return fmt.Errorf("marshal action: %w", err)
	}
	h.broadcast(data)
	return nil
}

func (h *Hub) broadcast(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if err := send(c, data); err != nil {
			h.logger.Debug("websocket send failed, dropping client", "error", err)
			_ = c.Close()
			delete(h.clients, c)
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client. The HTTP server does not track hijacked connections.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		_ = c.Close()
		delete(h.clients, c)
	}
}

func send(ws *websocket.Conn, data []byte) error {
	if err := ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return websocket.Message.Send(ws, string(data))
}
