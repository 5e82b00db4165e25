package telemetry

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/atomic"

	"github.com/gdp03/footrig/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4 * 1024
	sendBuffer     = 64
)

// Hub broadcasts events as JSON to every connected websocket client. Slow
// clients lose events rather than stall the publisher. A newly connected
// client first receives the latest cycle summary and halt event, if any.
type Hub struct {
	logger   logging.Logger
	upgrader websocket.Upgrader
	nextID   atomic.Int64

	mu       sync.Mutex
	clients  map[int64]*wsClient
	lastCyc  *Event
	lastHalt *Event
	closed   bool
}

// NewHub returns a hub with no clients.
func NewHub(logger logging.Logger) *Hub {
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: map[int64]*wsClient{},
	}
}

// Publish implements Sink.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	switch ev.Kind {
	case KindCycle:
		h.lastCyc = &ev
	case KindHalt:
		h.lastHalt = &ev
	case KindForce, KindPhase, KindMessage:
	}
	for _, c := range h.clients {
		c.send(ev)
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams events until the client leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnw("websocket upgrade failed", "error", err)
		return
	}
	c := &wsClient{
		id:     h.nextID.Inc(),
		conn:   conn,
		logger: h.logger,
		sendCh: make(chan Event, sendBuffer),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		//nolint:errcheck,gosec
		conn.Close()
		return
	}
	h.clients[c.id] = c
	for _, ev := range []*Event{h.lastCyc, h.lastHalt} {
		if ev != nil {
			c.send(*ev)
		}
	}
	h.mu.Unlock()
	h.logger.Debugw("status client connected", "client", c.id, "remote", r.RemoteAddr)

	go c.writePump()
	c.readPump()

	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()
	h.logger.Debugw("status client disconnected", "client", c.id)
}

// Close disconnects every client and stops accepting new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, c := range h.clients {
		c.close()
	}
}

type wsClient struct {
	id     int64
	conn   *websocket.Conn
	logger logging.Logger
	sendCh chan Event
	done   chan struct{}
	once   sync.Once
}

func (c *wsClient) send(ev Event) {
	select {
	case c.sendCh <- ev:
	case <-c.done:
	default:
		c.logger.Debugw("dropping status event, client is behind", "client", c.id, "kind", ev.Kind)
	}
}

// close asks writePump to send a close frame and drop the connection.
func (c *wsClient) close() {
	c.once.Do(func() {
		close(c.done)
	})
}

// readPump only services control frames; clients do not send commands.
func (c *wsClient) readPump() {
	defer c.close()
	c.conn.SetReadLimit(maxMessageSize)
	//nolint:errcheck,gosec
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debugw("websocket read error", "client", c.id, "error", err)
			}
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
		//nolint:errcheck,gosec
		c.conn.Close()
	}()
	for {
		select {
		case ev := <-c.sendCh:
			//nolint:errcheck,gosec
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				c.logger.Debugw("websocket write error", "client", c.id, "error", err)
				return
			}
		case <-ticker.C:
			//nolint:errcheck,gosec
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			//nolint:errcheck,gosec
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}
