// Package livefeed broadcasts synced-frame summaries to WebSocket
// dashboard clients, gated by a JWT-derived clearance level.
package livefeed

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/clearpath-sim/syncframe/internal/syncengine"
)

// Feed broadcasts FrameSummary messages to connected WebSocket clients.
// It implements dispatcher.DataSink so it plugs into the same fan-out as
// any other sink.
type Feed struct {
	mu      sync.RWMutex
	clients map[*client]bool

	validator *TokenValidator
	upgrader  websocket.Upgrader
	logger    *logrus.Logger

	messagesSent   uint64
	clientsServed  uint64
	currentClients int
}

type client struct {
	conn      *websocket.Conn
	clearance ClearanceLevel
	send      chan *FrameSummary
	id        string
}

// New constructs a Feed. validator may be nil, in which case every
// connection is treated as ClearancePublic.
func New(validator *TokenValidator, logger *logrus.Logger) *Feed {
	if logger == nil {
		logger = logrus.New()
	}
	return &Feed{
		clients:   make(map[*client]bool),
		validator: validator,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Name implements dispatcher.DataSink.
func (f *Feed) Name() string { return "livefeed" }

// Write implements dispatcher.DataSink: it summarizes frame and fans it
// out to every connected client entitled to see it. Write never returns
// an error; a feed with no clients is a no-op broadcast, not a failure.
func (f *Feed) Write(frame syncengine.SyncedFrame) error {
	summary := summarize(frame, time.Now())
	f.broadcast(summary)
	return nil
}

// Flush implements dispatcher.DataSink; the feed has no buffering to
// flush beyond each client's own send queue.
func (f *Feed) Flush() error { return nil }

// Close implements dispatcher.DataSink: it disconnects every client.
func (f *Feed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for c := range f.clients {
		c.conn.Close()
		close(c.send)
		delete(f.clients, c)
	}
	return nil
}

// HandleWebSocket upgrades r to a WebSocket connection and registers a
// new client at the clearance level its X-Clearance-Token header grants.
func (f *Feed) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.WithError(err).Error("livefeed: websocket upgrade failed")
		return
	}

	clearance := ClearancePublic
	if token := r.Header.Get("X-Clearance-Token"); token != "" && f.validator != nil {
		if level, err := f.validator.Validate(token); err == nil {
			clearance = level
		} else {
			f.logger.WithError(err).WithField("remote", r.RemoteAddr).
				Warn("livefeed: clearance token rejected, defaulting to public")
		}
	}

	c := &client{
		conn:      conn,
		clearance: clearance,
		send:      make(chan *FrameSummary, 50),
		id:        r.RemoteAddr,
	}
	f.register(c)

	f.logger.WithFields(logrus.Fields{"client": c.id, "clearance": clearance}).Info("livefeed: client connected")

	ctx, cancel := context.WithCancel(context.Background())
	go f.writePump(ctx, c)
	go f.readPump(ctx, cancel, c)
}

func (f *Feed) register(c *client) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clients[c] = true
	f.clientsServed++
	f.currentClients++
}

func (f *Feed) unregister(c *client) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.clients[c]; ok {
		delete(f.clients, c)
		close(c.send)
		f.currentClients--
		f.logger.WithField("client", c.id).Info("livefeed: client disconnected")
	}
}

func (f *Feed) broadcast(summary *FrameSummary) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for c := range f.clients {
		filtered := filterSummary(summary, c.clearance)
		select {
		case c.send <- filtered:
			f.messagesSent++
		default:
			// client buffer full, skip this frame for it
		}
	}
}

// Stats returns the feed's current client count and lifetime counters.
func (f *Feed) Stats() (clients int, sent, served uint64) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.currentClients, f.messagesSent, f.clientsServed
}

func (f *Feed) writePump(ctx context.Context, c *client) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			data, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (f *Feed) readPump(ctx context.Context, cancel context.CancelFunc, c *client) {
	defer func() {
		cancel()
		f.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				f.logger.WithError(err).Warn("livefeed: read error")
			}
			return
		}
		// Dashboard clients are read-only subscribers; any inbound frame
		// just keeps the read deadline alive via SetPongHandler above.
	}
}
