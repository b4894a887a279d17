// Package stream pushes live leaderboard snapshots to WebSocket clients.
package stream

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/okian/stylewars/internal/domain/types"
	"github.com/okian/stylewars/pkg/logger"
	"github.com/okian/stylewars/pkg/metrics"
)

const (
	defaultTopN  = 10
	sendBuffer   = 8
	writeTimeout = 5 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = pongWait * 9 / 10
)

// MessageType is the only message kind the hub emits.
const MessageType = "leaderboard"

// Message is one leaderboard snapshot.
type Message struct {
	Type    string        `json:"type"`
	Board   string        `json:"board"`
	Entries []types.Entry `json:"entries"`
	At      time.Time     `json:"at"`
}

// TopSource yields the current top rows of a board. Unknown boards should
// yield no rows rather than an error.
type TopSource interface {
	Top(ctx context.Context, boardID string, n int) ([]types.Entry, error)
}

type client struct {
	conn  *websocket.Conn
	send  chan Message
	board string
	once  sync.Once
}

func (c *client) stop() {
	c.once.Do(func() { close(c.send) })
}

// Hub tracks subscribers per board.
type Hub struct {
	source   TopSource
	topN     int
	logger   logger.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	boards  map[string]map[*client]struct{}
	clients int
	closed  bool
}

// NewHub creates a hub reading snapshots from src.
func NewHub(src TopSource, opts ...Option) *Hub {
	h := &Hub{
		source: src,
		topN:   defaultTopN,
		boards: make(map[string]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = logger.Named("stream")
	}
	return h
}

// Handle serves GET /ws/leaderboard/:board.
func (h *Hub) Handle() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		board := ps.ByName("board")
		if board == "" {
			http.Error(w, "missing board id", http.StatusBadRequest)
			return
		}

		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn(r.Context(), "websocket upgrade failed", logger.Error(err))
			return
		}

		c := &client{conn: conn, send: make(chan Message, sendBuffer), board: board}
		// Queue the first snapshot before registering so that Close cannot
		// have closed c.send yet.
		if msg, err := h.snapshot(r.Context(), board); err == nil {
			c.send <- msg
		}
		if !h.register(c) {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(writeTimeout))
			_ = conn.Close()
			return
		}

		go h.writePump(c)
		h.readPump(c)
	}
}

// Publish sends the board's current top rows to its subscribers. Clients
// whose buffers are full are disconnected.
func (h *Hub) Publish(ctx context.Context, board string) {
	h.mu.Lock()
	n := len(h.boards[board])
	h.mu.Unlock()
	if n == 0 {
		return
	}

	msg, err := h.snapshot(ctx, board)
	if err != nil {
		h.logger.Error(ctx, "leaderboard snapshot failed", logger.String("board", board), logger.Error(err))
		metrics.RecordErrorByComponent("stream", "snapshot_error")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.boards[board] {
		select {
		case c.send <- msg:
			metrics.RecordStreamMessage()
		default:
			h.logger.Warn(ctx, "dropping slow client", logger.String("board", board))
			h.removeLocked(c)
		}
	}
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.clients
}

// Close disconnects every subscriber and refuses new ones.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, subs := range h.boards {
		for c := range subs {
			h.removeLocked(c)
		}
	}
	return nil
}

func (h *Hub) snapshot(ctx context.Context, board string) (Message, error) {
	entries, err := h.source.Top(ctx, board, h.topN)
	if err != nil {
		return Message{}, err
	}
	if entries == nil {
		entries = []types.Entry{}
	}
	return Message{Type: MessageType, Board: board, Entries: entries, At: time.Now().UTC()}, nil
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	subs, ok := h.boards[c.board]
	if !ok {
		subs = make(map[*client]struct{})
		h.boards[c.board] = subs
	}
	subs[c] = struct{}{}
	h.clients++
	metrics.UpdateStreamClients(h.clients)
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

// removeLocked must be called with h.mu held.
func (h *Hub) removeLocked(c *client) {
	subs := h.boards[c.board]
	if _, ok := subs[c]; !ok {
		return
	}
	delete(subs, c)
	if len(subs) == 0 {
		delete(h.boards, c.board)
	}
	h.clients--
	metrics.UpdateStreamClients(h.clients)
	c.stop()
}

// readPump only watches for the peer going away; clients send nothing we
// act on.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
