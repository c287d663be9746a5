// Package viz streams graph mutations to WebSocket subscribers.
//
// Each client subscribes to one named graph; the hub fans every mutation
// event for that graph out to its subscribers. On connect a client receives
// a full snapshot of the graph so it can render before the first event
// arrives. All labels in messages are canonical — the hub sits behind the
// resolved-mutation layer and never performs resolution itself.
package viz

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/orneryd/munin/pkg/graph"
	"github.com/orneryd/munin/pkg/session"
)

// Message is one event on the wire.
type Message struct {
	Type      string      `json:"type"`
	Graph     string      `json:"graph"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// Hub tracks subscribers per graph name and fans out mutation events.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[*Client]bool // graph name -> clients

	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message

	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
}

// NewHub creates a hub. Call Run in a goroutine to start it.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		subscribers: make(map[string]map[*Client]bool),
		register:    make(chan *Client, 16),
		unregister:  make(chan *Client, 16),
		broadcast:   make(chan *Message, 256),
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger,
	}
}

// Run is the hub event loop. Returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			h.closeAll()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case msg := <-h.broadcast:
			h.fanOut(msg)
		}
	}
}

// Stop shuts the hub down and closes every connection.
func (h *Hub) Stop() {
	h.cancel()
}

// MutationHook adapts the hub to the session store's observer interface.
// Install with store.SetMutationHook(hub.MutationHook).
func (h *Hub) MutationHook(graphName string, event graph.MutationEvent, payload map[string]interface{}) {
	h.Broadcast(graphName, string(event), payload)
}

// Broadcast queues an event for every subscriber of graphName. Drops the
// message when the hub queue is full rather than blocking a mutation.
func (h *Hub) Broadcast(graphName, eventType string, data interface{}) {
	msg := &Message{
		Type:      eventType,
		Graph:     graphName,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("viz broadcast queue full, dropping event",
			zap.String("graph", graphName),
			zap.String("event", eventType))
	}
}

// SubscriberCount returns the number of clients watching graphName.
func (h *Hub) SubscriberCount(graphName string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[graphName])
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	if h.subscribers[client.graph] == nil {
		h.subscribers[client.graph] = make(map[*Client]bool)
	}
	h.subscribers[client.graph][client] = true
	h.mu.Unlock()

	h.logger.Info("viz client subscribed",
		zap.String("graph", client.graph),
		zap.String("client", client.id))
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.subscribers[client.graph]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.subscribers, client.graph)
	}

	h.logger.Info("viz client unsubscribed",
		zap.String("graph", client.graph),
		zap.String("client", client.id))
}

func (h *Hub) fanOut(msg *Message) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.subscribers[msg.Graph]))
	for client := range h.subscribers[msg.Graph] {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("viz marshal failed", zap.Error(err))
		return
	}

	for _, client := range clients {
		select {
		case client.send <- data:
		default:
			// Slow consumer: drop the connection rather than the stream.
			h.logger.Warn("closing slow viz client",
				zap.String("graph", client.graph),
				zap.String("client", client.id))
			go func(c *Client) {
				h.unregister <- c
				c.conn.Close()
			}(client)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for name, clients := range h.subscribers {
		for client := range clients {
			close(client.send)
			client.conn.Close()
		}
		delete(h.subscribers, name)
	}
	h.logger.Info("viz hub stopped")
}

// snapshot builds the initial full-graph message sent to a new subscriber.
func snapshot(sess *session.Session) *Message {
	return &Message{
		Type:      "snapshot",
		Graph:     sess.Name,
		Timestamp: time.Now().Unix(),
		Data: map[string]interface{}{
			"nodes": sess.Graph.Nodes(),
			"edges": sess.Graph.Edges(),
		},
	}
}
