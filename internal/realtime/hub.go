// Package realtime pushes projection changes to websocket clients.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"donationledger/internal/reconcile"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 32
)

// Message is the frame sent to clients for every change.
type Message struct {
	Type       reconcile.ChangeType `json:"type"`
	CampaignID string               `json:"campaign_id,omitempty"`
	Timestamp  time.Time            `json:"timestamp"`
	Data       any                  `json:"data,omitempty"`
}

// Encoder renders the payload of a change.
type Encoder func(reconcile.Change) any

// Hub fans changes out to connected clients. A client that cannot keep up
// is disconnected and expected to reconnect and re-read snapshots.
type Hub struct {
	logger   zerolog.Logger
	encode   Encoder
	upgrader websocket.Upgrader

	register   chan *client
	unregister chan *client
	done       chan struct{}

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewHub builds a hub. allowedOrigins follows the CORS setting; "*" or an
// empty list accepts any origin.
func NewHub(logger zerolog.Logger, encode Encoder, allowedOrigins []string) *Hub {
	h := &Hub{
		logger:     logger.With().Str("component", "realtime").Logger(),
		encode:     encode,
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		clients:    make(map[*client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

// Run forwards changes until ctx is cancelled or the change stream closes,
// then disconnects every client.
func (h *Hub) Run(ctx context.Context, changes <-chan reconcile.Change) {
	defer func() {
		close(h.done)
		h.mu.Lock()
		for c := range h.clients {
			delete(h.clients, c)
			close(c.send)
		}
		h.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
			h.logger.Debug().Str("remote", c.remote).Msg("realtime: client connected")
		case c := <-h.unregister:
			h.remove(c)
		case change, ok := <-changes:
			if !ok {
				return
			}
			h.broadcast(change)
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and attaches the connection to the hub.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("realtime: upgrade failed")
		return
	}
	c := &client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		remote: r.RemoteAddr,
	}
	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

func (h *Hub) broadcast(change reconcile.Change) {
	msg := Message{
		Type:       change.Type,
		CampaignID: change.CampaignID,
		Timestamp:  change.At,
	}
	if h.encode != nil {
		msg.Data = h.encode(change)
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Str("type", string(change.Type)).Msg("realtime: encode change")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			delete(h.clients, c)
			close(c.send)
			h.logger.Warn().Str("remote", c.remote).Msg("realtime: slow client disconnected")
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		h.logger.Debug().Str("remote", c.remote).Msg("realtime: client disconnected")
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		o = strings.TrimSpace(o)
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		if o != "" {
			set[strings.ToLower(o)] = struct{}{}
		}
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.ToLower(origin)]
		return ok
	}
}
