package realtime

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/charlesng35/longevity/pkg/logger"
	"github.com/charlesng35/longevity/pkg/metrics"
)

// Message represents a JSON payload delivered to realtime subscribers.
type Message struct {
	Stream string         `json:"stream"`
	Event  string         `json:"event"`
	Data   any            `json:"data,omitempty"`
	Meta   map[string]any `json:"meta,omitempty"`
}

// topic addresses every socket of one user on one stream.
type topic struct {
	stream string
	userID string
}

// Hub fans realtime messages out to the sockets of a user. Delivery is best effort: a socket
// whose buffer is full is disconnected instead of blocking the publisher.
type Hub struct {
	mu       sync.RWMutex
	topics   map[topic]map[*client]struct{}
	clients  map[*client]struct{}
	closed   bool
	upgrader websocket.Upgrader
	origins  originPolicy
	log      *zap.Logger
}

// NewHub constructs a realtime hub. Origins lists additional browser origins (for example
// the web client dev server) allowed to open sockets.
func NewHub(origins ...string) *Hub {
	h := &Hub{
		topics:  make(map[topic]map[*client]struct{}),
		clients: make(map[*client]struct{}),
		origins: newOriginPolicy(origins),
		log:     logger.WithModule("realtime"),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	return h.origins.allows(r.Header.Get("Origin"), r.Host)
}

// Subscribers reports how many sockets of userID listen on stream.
func (h *Hub) Subscribers(stream, userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic{stream: normalizeStream(stream), userID: userID}])
}

// Connections reports the number of open sockets.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Serve upgrades the request and blocks until the socket closes. allowed restricts the
// streams the client may join; nil permits every stream.
func (h *Hub) Serve(userID string, streams []string, allowed map[string]struct{}, w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, "realtime hub is shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", zap.String("user_id", userID), zap.Error(err))
		return
	}

	c := newClient(h, conn, userID, allowed)
	if !h.register(c) {
		_ = conn.Close()
		return
	}
	h.subscribe(c, streams)

	go c.writeLoop()
	c.readLoop()
}

// BroadcastToUser delivers message to every socket of userID subscribed to stream.
func (h *Hub) BroadcastToUser(stream, userID string, message Message) {
	key := topic{stream: normalizeStream(stream), userID: userID}
	if key.stream == "" || userID == "" {
		return
	}
	message.Stream = key.stream

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.topics[key] {
		h.deliverLocked(c, message)
	}
}

// Close disconnects every socket and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	metrics.RealtimeConnections.Inc()
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	for stream := range c.streams {
		h.dropLocked(c, stream)
	}
	metrics.RealtimeConnections.Dec()
}

// subscribe joins the permitted streams and returns the ones the client now listens on.
func (h *Hub) subscribe(c *client, streams []string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	var joined []string
	for _, stream := range ParseStreams(streams...) {
		if !c.permits(stream) {
			h.log.Debug("ignoring unauthorized stream", zap.String("stream", stream), zap.String("user_id", c.userID))
			continue
		}
		if _, ok := c.streams[stream]; !ok {
			key := topic{stream: stream, userID: c.userID}
			if h.topics[key] == nil {
				h.topics[key] = make(map[*client]struct{})
			}
			h.topics[key][c] = struct{}{}
			c.streams[stream] = struct{}{}
		}
		joined = append(joined, stream)
	}
	return joined
}

func (h *Hub) unsubscribe(c *client, streams []string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	var left []string
	for _, stream := range ParseStreams(streams...) {
		if _, ok := c.streams[stream]; ok {
			h.dropLocked(c, stream)
			left = append(left, stream)
		}
	}
	return left
}

func (h *Hub) dropLocked(c *client, stream string) {
	key := topic{stream: stream, userID: c.userID}
	if members := h.topics[key]; members != nil {
		delete(members, c)
		if len(members) == 0 {
			delete(h.topics, key)
		}
	}
	delete(c.streams, stream)
}

// reply sends a control response to a single client.
func (h *Hub) reply(c *client, message Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; ok {
		h.deliverLocked(c, message)
	}
}

func (h *Hub) deliverLocked(c *client, message Message) {
	select {
	case c.send <- message:
	default:
		metrics.RealtimeDropped.Inc()
		h.log.Warn("dropping slow realtime client", zap.String("user_id", c.userID))
		go c.close()
	}
}
