// internal/live/hub.go
//
// WebSocket fan-out of committed game records.
//
// A client connects to GET /api/game/{gameId}/ws, receives the current record and
// then every record committed for that game by this process. Clients never send
// anything meaningful; the read loop only exists to notice disconnects.
//
// Delivery rules:
//   - The subscriber is registered before the current record is loaded, so a
//     commit can never fall between the load and the subscription.
//   - Each client has a buffered queue drained by its own writer goroutine;
//     Publish never waits on a socket. A client whose queue is full is dropped.
//   - Records older than the last one queued for a client (by lastUpdate, then
//     round) are skipped, so concurrent publishes cannot roll a client back.
//
// The hub is per-process. With several instances behind a load balancer a client
// only sees updates handled by the instance it is connected to and should keep
// polling GET /api/game/{gameId} as well.

package live

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wavelength/internal/game"
)

const (
	writeWait  = 5 * time.Second
	sendBuffer = 16
)

// Loader returns the current record for a game code.
type Loader func(ctx context.Context) (*game.Record, error)

type client struct {
	conn *websocket.Conn
	send chan []byte

	mu         sync.Mutex // guards the fields below and closing send
	closed     bool
	seen       bool
	lastUpdate int64
	round      int
}

func newClient(conn *websocket.Conn) *client {
	return &client{conn: conn, send: make(chan []byte, sendBuffer)}
}

// offer queues data for r. It reports false only when the queue is full.
func (c *client) offer(r *game.Record, data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	if c.seen && (r.LastUpdate < c.lastUpdate || (r.LastUpdate == c.lastUpdate && r.Round < c.round)) {
		return true
	}
	select {
	case c.send <- data:
		c.seen, c.lastUpdate, c.round = true, r.LastUpdate, r.Round
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// writePump is the connection's only writer.
func (c *client) writePump() {
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			_ = c.conn.Close()
			return
		}
	}
}

// Hub tracks subscribers per game code.
type Hub struct {
	mu       sync.Mutex
	groups   map[string]map[*client]struct{}
	upgrader websocket.Upgrader
}

// NewHub builds a hub. allowOrigin decides which browser origins may connect;
// nil accepts every origin.
func NewHub(allowOrigin func(origin string) bool) *Hub {
	h := &Hub{groups: make(map[string]map[*client]struct{})}
	h.upgrader.CheckOrigin = func(r *http.Request) bool {
		if allowOrigin == nil {
			return true
		}
		origin := r.Header.Get("Origin")
		return origin == "" || allowOrigin(origin)
	}
	return h
}

// Serve upgrades the request, subscribes to code, sends the record returned by
// load and then blocks until the client disconnects.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, code string, load Loader) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error.
		return
	}
	code = game.NormalizeCode(code)
	c := newClient(conn)
	h.add(code, c)
	defer h.remove(code, c)
	go c.writePump()

	current, err := load(r.Context())
	if err != nil {
		log.Warn().Err(err).Str("gameId", code).Msg("ws initial state")
		msg := websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "state unavailable")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		return
	}
	data, err := json.Marshal(current)
	if err != nil || !c.offer(current, data) {
		return
	}
	log.Debug().Str("gameId", code).Str("remote", r.RemoteAddr).Msg("ws connected")
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			log.Debug().Str("gameId", code).Err(err).Msg("ws disconnected")
			return
		}
	}
}

// Publish queues r for every subscriber of its game without blocking.
func (h *Hub) Publish(r *game.Record) {
	code := r.GameID
	h.mu.Lock()
	group := h.groups[code]
	clients := make([]*client, 0, len(group))
	for c := range group {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	if len(clients) == 0 {
		return
	}

	data, err := json.Marshal(r)
	if err != nil {
		log.Error().Err(err).Str("gameId", code).Msg("ws encode")
		return
	}
	for _, c := range clients {
		if !c.offer(r, data) {
			log.Warn().Str("gameId", code).Msg("ws client too slow, dropping")
			h.remove(code, c)
		}
	}
}

// Subscribers reports how many connections are watching code.
func (h *Hub) Subscribers(code string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.groups[game.NormalizeCode(code)])
}

func (h *Hub) add(code string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group := h.groups[code]
	if group == nil {
		group = make(map[*client]struct{})
		h.groups[code] = group
	}
	group[c] = struct{}{}
}

func (h *Hub) remove(code string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group := h.groups[code]
	if group == nil {
		return
	}
	if _, ok := group[c]; !ok {
		return
	}
	delete(group, c)
	c.close()
	_ = c.conn.Close()
	if len(group) == 0 {
		delete(h.groups, code)
	}
}
