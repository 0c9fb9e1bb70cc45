package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/hotserve/internal/logging"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings to peer with this period.
	pingPeriod = 54 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// LiveReloadPath is where pages connect for reload notifications.
	LiveReloadPath = "/__hotserve/livereload"
)

// LiveReloadScript is injected before </body> of rendered pages when hot
// reload is enabled. It reloads the page on every reload message and
// reconnects after the server restarts.
const LiveReloadScript = `<script>(function(){` +
	`var u=(location.protocol==="https:"?"wss://":"ws://")+location.host+"` + LiveReloadPath + `";` +
	`function connect(){var ws=new WebSocket(u);` +
	`ws.onmessage=function(e){try{if(JSON.parse(e.data).type==="reload"){location.reload();}}catch(_){}};` +
	`ws.onclose=function(){setTimeout(connect,1000);};}` +
	`connect();})();</script>`

// ReloadMessage is broadcast to every connected page after a successful
// rebuild.
type ReloadMessage struct {
	Type       string    `json:"type"`
	Generation uint64    `json:"generation,omitempty"`
	BuildID    string    `json:"build_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// client is one connected page.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks live-reload connections and fans messages out to them.
type Hub struct {
	clients map[*client]bool
	mu      sync.RWMutex

	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	done       chan struct{}

	logger logging.Logger
}

// NewHub creates a hub. Run must be called before connections are served.
func NewHub(logger logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Hub{
		clients:    make(map[*client]bool),
		register:   make(chan *client, 32),
		unregister: make(chan *client, 32),
		broadcast:  make(chan []byte, 16),
		done:       make(chan struct{}),
		logger:     logger.WithComponent("livereload"),
	}
}

// Run owns the client set until ctx is cancelled, then closes every
// connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug(ctx, "Client connected", "clients", count)

		case c := <-h.unregister:
			h.mu.Lock()
			if h.clients[c] {
				delete(h.clients, c)
				close(c.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug(ctx, "Client disconnected", "clients", count)

		case message := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- message:
				default:
					// slow client, drop it
					delete(h.clients, c)
					close(c.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Clients returns the number of connected pages.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Reload tells every connected page to reload. It never blocks the caller
// for longer than it takes to queue the message.
func (h *Hub) Reload(generation uint64, buildID string) {
	message, err := json.Marshal(ReloadMessage{
		Type:       "reload",
		Generation: generation,
		BuildID:    buildID,
		Timestamp:  time.Now(),
	})
	if err != nil {
		h.logger.Warn(context.Background(), err, "Encoding reload message")
		return
	}

	select {
	case h.broadcast <- message:
	case <-h.done:
	default:
		h.logger.Debug(context.Background(), "Reload broadcast queue full, dropping")
	}
}

// ServeHTTP upgrades the request and holds the connection until the page
// goes away or the hub stops. Cross-origin upgrades are rejected by the
// websocket library.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Debug(r.Context(), "WebSocket upgrade failed", "error", err.Error())
		return
	}
	conn.SetReadLimit(maxMessageSize)

	c := &client{conn: conn, send: make(chan []byte, 8)}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	go c.writePump()
	c.readPump(r.Context())

	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// readPump discards incoming messages; it exists so control frames are
// processed and a closed connection is noticed.
func (c *client) readPump(ctx context.Context) {
	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			return
		}
	}
}

// writePump delivers queued messages and pings until send is closed.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	ctx := context.Background()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
