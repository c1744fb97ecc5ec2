package events

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dmitrijs2005/gophdrive/internal/logging"
	"github.com/dmitrijs2005/gophdrive/internal/server/models"
)

// writeWait bounds a single frame write so one stuck client cannot hold the
// hub lock.
const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checks belong to the fronting auth layer.
		return true
	},
}

// Hub implements Publisher over per-owner websocket connection sets.
type Hub struct {
	logger logging.Logger

	mu    sync.Mutex
	conns map[string]map[*websocket.Conn]struct{}
}

var _ Publisher = (*Hub)(nil)

func NewHub(logger logging.Logger) *Hub {
	return &Hub{
		logger: logger.With("component", "events"),
		conns:  make(map[string]map[*websocket.Conn]struct{}),
	}
}

// ServeHTTP upgrades the request and subscribes the connection to the
// owner's channel. The owner identifier arrives already authenticated from
// the fronting layer; here it is read from the query string.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("owner")
	if ownerID == "" {
		http.Error(w, "missing owner", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	h.add(ownerID, conn)
	go h.readLoop(ownerID, conn)
}

// Publish sends the event to every connection of the owner, dropping
// connections that fail to accept the frame in time.
func (h *Hub) Publish(ctx context.Context, ownerID string, event models.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error(ctx, "marshal event", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns[ownerID] {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Warn(ctx, "dropping subscriber", "owner", ownerID, "error", err)
			delete(h.conns[ownerID], conn)
			_ = conn.Close()
		}
	}
}

// Close terminates every connection. Used on shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for owner, conns := range h.conns {
		for conn := range conns {
			_ = conn.Close()
		}
		delete(h.conns, owner)
	}
}

func (h *Hub) add(ownerID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[ownerID] == nil {
		h.conns[ownerID] = make(map[*websocket.Conn]struct{})
	}
	h.conns[ownerID][conn] = struct{}{}
}

func (h *Hub) remove(ownerID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.conns[ownerID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.conns, ownerID)
		}
	}
	_ = conn.Close()
}

// readLoop discards inbound frames; its job is to notice the peer closing.
func (h *Hub) readLoop(ownerID string, conn *websocket.Conn) {
	defer h.remove(ownerID, conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
