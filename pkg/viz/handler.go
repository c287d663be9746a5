package viz

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/orneryd/munin/pkg/session"
)

// Handler upgrades HTTP requests to graph-subscription WebSockets.
//
// Mount it on the MCP router:
//
//	r.Get("/ws", handler.ServeHTTP)
//
// Clients pick a graph with the `graph` query parameter; omitting it
// subscribes to the default session.
type Handler struct {
	hub      *Hub
	store    *session.Store
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHandler creates a WebSocket handler feeding hub from store. logger may
// be nil.
func NewHandler(hub *Hub, store *session.Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		hub:   hub,
		store: store,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The server is a local agent sidecar; origins are not checked.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// ServeHTTP upgrades the connection and subscribes it to the requested graph.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	graphName := r.URL.Query().Get("graph")
	if graphName == "" {
		graphName = session.DefaultName
	}

	// Subscribing materializes the session so the snapshot always has a
	// graph to describe, mirroring GetOrCreate semantics elsewhere.
	sess := h.store.GetOrCreate(graphName)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("viz upgrade failed", zap.Error(err))
		return
	}

	client := newClient(graphName, h.hub, conn, h.logger)
	client.start()

	// Initial snapshot goes straight to this client, not through the hub,
	// so other subscribers don't receive it again.
	if data, err := json.Marshal(snapshot(sess)); err == nil {
		select {
		case client.send <- data:
		default:
		}
	}
}
