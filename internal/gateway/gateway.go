// Package gateway pushes ledger snapshots to browsers over websockets and
// relays their commands back to the attendance engine.
//
// The gateway is a bus observer. OnSnapshot runs on the scan path, so it
// only encodes once and enqueues the payload on each client's bounded send
// buffer; the socket writes happen on per-client goroutines. A client whose
// buffer is full is disconnected rather than allowed to stall scanning.
package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/bus"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/types"
)

// ResetCommand is the only inbound message with its own meaning.
const ResetCommand = "reset_db"

// Commander is the part of the engine the gateway drives. WithSnapshot must
// run fn in the same order as the publishes that reach OnSnapshot.
type Commander interface {
	Reset(ctx context.Context) error
	PublishSnapshot(ctx context.Context) error
	WithSnapshot(ctx context.Context, fn func(types.Snapshot)) error
}

type Config struct {
	SendBuffer   int           // queued payloads per client before it is dropped
	PingInterval time.Duration // keepalive pings
	PongWait     time.Duration // read deadline, extended by every pong
	WriteWait    time.Duration

	// CheckOrigin overrides the upgrader's same-origin check.
	CheckOrigin func(r *http.Request) bool
}

func (c Config) withDefaults() Config {
	if c.SendBuffer <= 0 {
		c.SendBuffer = 16
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.PongWait <= c.PingInterval {
		c.PongWait = 2 * c.PingInterval
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	return c
}

type Gateway struct {
	cmd      Commander
	cfg      Config
	upgrader websocket.Upgrader
	logger   zerolog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

func New(cmd Commander, cfg Config, logger zerolog.Logger) *Gateway {
	cfg = cfg.withDefaults()
	return &Gateway{
		cmd: cmd,
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     cfg.CheckOrigin,
		},
		logger:  logger.With().Str("component", "gateway").Logger(),
		clients: make(map[*client]struct{}),
	}
}

// EncodeSnapshot renders the wire payload: a JSON array of
// {time, card_tag, direction} in snapshot order.
func EncodeSnapshot(snap types.Snapshot) ([]byte, error) {
	return json.Marshal(snap.Records())
}

// OnSnapshot implements bus.Observer.
func (g *Gateway) OnSnapshot(snap types.Snapshot) {
	payload, err := EncodeSnapshot(snap)
	if err != nil {
		g.logger.Error().Err(err).Msg("encode snapshot")
		return
	}

	g.mu.Lock()
	targets := make([]*client, 0, len(g.clients))
	for c := range g.clients {
		targets = append(targets, c)
	}
	g.mu.Unlock()

	for _, c := range targets {
		if !c.enqueue(payload) {
			g.logger.Warn().Str("client_id", c.id).Msg("send buffer full, dropping client")
			g.remove(c)
		}
	}
}

// Clients returns the number of connected clients.
func (g *Gateway) Clients() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.clients)
}

// Close disconnects every client and refuses new ones.
func (g *Gateway) Close() {
	g.mu.Lock()
	g.closed = true
	targets := make([]*client, 0, len(g.clients))
	for c := range g.clients {
		targets = append(targets, c)
	}
	g.mu.Unlock()

	for _, c := range targets {
		g.remove(c)
	}
}

// ServeHTTP upgrades the request and runs the client until it disconnects.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn().
			Err(err).
			Str("remote_addr", r.RemoteAddr).
			Str("origin", r.Header.Get("Origin")).
			Msg("websocket upgrade failed")
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, g.cfg.SendBuffer),
		done: make(chan struct{}),
	}
	log := g.logger.With().Str("client_id", c.id).Str("remote_addr", r.RemoteAddr).Logger()

	// The initial payload is queued and the client registered in one
	// serialized step, so every later publish lands behind it.
	ctx := r.Context()
	registered := false
	err = g.cmd.WithSnapshot(ctx, func(snap types.Snapshot) {
		if payload, err := EncodeSnapshot(snap); err != nil {
			log.Error().Err(err).Msg("encode initial snapshot")
		} else {
			c.enqueue(payload)
		}
		registered = g.add(c)
	})
	if err != nil {
		log.Warn().Err(err).Msg("initial snapshot failed")
		registered = g.add(c)
	}
	if !registered {
		_ = conn.Close()
		return
	}
	log.Info().Msg("client connected")

	go g.writePump(c, log)

	g.readPump(ctx, c, log)
	g.remove(c)
	log.Info().Msg("client disconnected")
}

func (g *Gateway) add(c *client) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return false
	}
	g.clients[c] = struct{}{}
	return true
}

func (g *Gateway) remove(c *client) {
	g.mu.Lock()
	delete(g.clients, c)
	g.mu.Unlock()
	c.stop()
}

func (g *Gateway) readPump(ctx context.Context, c *client, log zerolog.Logger) {
	_ = c.conn.SetReadDeadline(time.Now().Add(g.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(g.cfg.PongWait))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Msg("read failed")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(g.cfg.PongWait))

		if strings.TrimSpace(string(msg)) == ResetCommand {
			log.Info().Msg("reset requested")
			if err := g.cmd.Reset(ctx); err != nil {
				log.Error().Err(err).Msg("reset failed")
			}
			continue
		}
		// Any other message asks for the current state.
		if err := g.cmd.PublishSnapshot(ctx); err != nil {
			log.Warn().Err(err).Msg("publish on request failed")
		}
	}
}

func (g *Gateway) writePump(c *client, log zerolog.Logger) {
	ticker := time.NewTicker(g.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(g.cfg.WriteWait))
			return

		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(g.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Debug().Err(err).Msg("write failed")
				return
			}

		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(g.cfg.WriteWait)); err != nil {
				log.Debug().Err(err).Msg("ping failed")
				return
			}
		}
	}
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

// enqueue never blocks. It reports false when the buffer is full.
func (c *client) enqueue(payload []byte) bool {
	select {
	case <-c.done:
		return true
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *client) stop() {
	c.once.Do(func() { close(c.done) })
}

var (
	_ bus.Observer = (*Gateway)(nil)
	_ http.Handler = (*Gateway)(nil)
)
