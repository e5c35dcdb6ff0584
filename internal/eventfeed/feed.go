// Package eventfeed broadcasts territory events to websocket subscribers as
// JSON text frames.
package eventfeed

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cory-johannsen/factions/internal/config"
	"github.com/cory-johannsen/factions/internal/game/event"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Path is the websocket endpoint.
const Path = "/events"

// Feed fans bus events out to connected clients. A client whose buffer is full
// is disconnected rather than slowing the publisher.
type Feed struct {
	cfg      config.FeedConfig
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	srv     *http.Server
	detach  func()
}

type client struct {
	conn    *websocket.Conn
	send    chan *event.Event
	faction string
	once    sync.Once
	done    chan struct{}
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

// wants reports whether c subscribed to e. An empty filter matches everything.
func (c *client) wants(e *event.Event) bool {
	if c.faction == "" {
		return true
	}
	return e.Faction == c.faction || e.Target == c.faction || e.Previous == c.faction
}

// New creates a feed. Call Attach to receive events.
//
// Precondition: logger must be non-nil.
func New(cfg config.FeedConfig, logger *zap.Logger) *Feed {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 64
	}
	return &Feed{
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Attach registers the feed as an observer of bus, so only committed events
// are broadcast.
func (f *Feed) Attach(bus *event.Bus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.detach != nil {
		f.detach()
	}
	f.detach = bus.Observe(f.Broadcast)
}

// Broadcast queues e for every matching client without blocking.
func (f *Feed) Broadcast(e *event.Event) {
	if e.Cancelled() {
		return
	}
	cp := *e
	f.mu.Lock()
	defer f.mu.Unlock()
	for c := range f.clients {
		if !c.wants(&cp) {
			continue
		}
		select {
		case c.send <- &cp:
		default:
			f.logger.Warn("event feed client too slow; disconnecting",
				zap.String("remote", c.conn.RemoteAddr().String()))
			delete(f.clients, c)
			c.close()
		}
	}
}

// Clients returns the number of connected clients.
func (f *Feed) Clients() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

// ServeHTTP upgrades the request and streams events until the client leaves.
// The optional faction query parameter restricts the stream to events
// naming that faction.
func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &client{
		conn:    conn,
		send:    make(chan *event.Event, f.cfg.Buffer),
		faction: r.URL.Query().Get("faction"),
		done:    make(chan struct{}),
	}
	f.mu.Lock()
	f.clients[c] = struct{}{}
	f.mu.Unlock()
	f.logger.Debug("event feed client connected",
		zap.String("remote", conn.RemoteAddr().String()),
		zap.String("faction", c.faction))

	go f.readLoop(c)
	f.writeLoop(c)

	f.mu.Lock()
	delete(f.clients, c)
	f.mu.Unlock()
	_ = conn.Close()
}

// readLoop discards client frames and ends the session on any read error.
func (f *Feed) readLoop(c *client) {
	defer c.close()
	c.conn.SetReadLimit(512)
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

func (f *Feed) writeLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case e := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(e); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

// Start serves the feed on the configured address until Stop.
func (f *Feed) Start() error {
	lis, err := net.Listen("tcp", f.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", f.cfg.Addr(), err)
	}
	mux := http.NewServeMux()
	mux.Handle(Path, f)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	f.mu.Lock()
	f.srv = srv
	f.mu.Unlock()
	f.logger.Info("event feed listening", zap.String("addr", lis.Addr().String()))
	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop detaches from the bus, disconnects clients and shuts the listener.
func (f *Feed) Stop() {
	f.mu.Lock()
	if f.detach != nil {
		f.detach()
		f.detach = nil
	}
	for c := range f.clients {
		c.close()
	}
	srv := f.srv
	f.mu.Unlock()
	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
