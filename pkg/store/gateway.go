package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	gatewayHandshakeTimeout = 10 * time.Second
	gatewayWriteTimeout     = 10 * time.Second
	gatewayPingInterval     = 30 * time.Second
	gatewayReadTimeout      = 120 * time.Second
)

// frame is the gateway wire message. One subscription per connection;
// the server answers a subscribe frame with a push frame for every
// upstream change.
type frame struct {
	Type    string   `json:"type"` // subscribe, push, publish, remove, error
	Path    string   `json:"path,omitempty"`
	Since   int64    `json:"since,omitempty"` // Unix milliseconds
	Limit   int      `json:"limit,omitempty"`
	Records []Record `json:"records,omitempty"`
	Record  *Record  `json:"record,omitempty"`
	ID      string   `json:"id,omitempty"`
	Message string   `json:"message,omitempty"`
}

// GatewayStore talks to a presence gateway over WebSocket. Writes
// (publish/remove) share one control connection; each subscription
// dials its own connection so a dropped feed never affects the others.
type GatewayStore struct {
	url string
	log *slog.Logger

	mu      sync.Mutex // guards control conn and closed flag
	control *websocket.Conn
	closed  bool
}

// NewGatewayStore creates a store for the given websocket URL
// (e.g. wss://presence.example.com/v1). The control connection is
// dialed lazily on the first write.
func NewGatewayStore(url string, logger *slog.Logger) *GatewayStore {
	return &GatewayStore{
		url: url,
		log: logger.With("component", "gateway-store"),
	}
}

func dialGateway(ctx context.Context, url string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: gatewayHandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to presence gateway: %w", err)
	}
	return conn, nil
}

// controlConn returns the shared write connection, dialing it if needed.
// Caller must hold s.mu.
func (s *GatewayStore) controlConn(ctx context.Context) (*websocket.Conn, error) {
	if s.closed {
		return nil, ErrStoreClosed
	}
	if s.control != nil {
		return s.control, nil
	}
	conn, err := dialGateway(ctx, s.url)
	if err != nil {
		return nil, err
	}
	s.control = conn
	return conn, nil
}

// writeControl sends a frame on the control connection. A write
// failure drops the connection so the next call redials.
func (s *GatewayStore) writeControl(ctx context.Context, f frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, err := s.controlConn(ctx)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(gatewayWriteTimeout))
	if err := conn.WriteJSON(f); err != nil {
		_ = conn.Close()
		s.control = nil
		return fmt.Errorf("gateway write: %w", err)
	}
	return nil
}

// Publish upserts the record under its feed path.
func (s *GatewayStore) Publish(ctx context.Context, path string, rec Record) error {
	return s.writeControl(ctx, frame{Type: "publish", Path: path, Record: &rec})
}

// Remove deletes the record for id under the feed path.
func (s *GatewayStore) Remove(ctx context.Context, path, id string) error {
	return s.writeControl(ctx, frame{Type: "remove", Path: path, ID: id})
}

// Subscribe dials a dedicated connection, sends the subscribe frame
// and pumps push frames to onPush until the context ends or the
// connection fails.
func (s *GatewayStore) Subscribe(ctx context.Context, q Query, onPush func([]Record), onError func(error)) (Subscription, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrStoreClosed
	}
	s.mu.Unlock()

	conn, err := dialGateway(ctx, s.url)
	if err != nil {
		return nil, err
	}

	sub := &gatewaySubscription{conn: conn}

	req := frame{Type: "subscribe", Path: q.Path, Limit: q.Limit}
	if !q.Since.IsZero() {
		req.Since = q.Since.UnixMilli()
	}
	conn.SetWriteDeadline(time.Now().Add(gatewayWriteTimeout))
	if err := conn.WriteJSON(req); err != nil {
		sub.Close()
		return nil, fmt.Errorf("gateway subscribe %s: %w", q.Path, err)
	}

	go sub.readPump(q.Path, onPush, onError, s.log)
	go sub.keepAlive()

	return sub, nil
}

// Close shuts the control connection. Subscriptions close individually.
func (s *GatewayStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.control != nil {
		err := s.control.Close()
		s.control = nil
		return err
	}
	return nil
}

type gatewaySubscription struct {
	conn   *websocket.Conn
	connMu sync.Mutex // serializes control-frame writes with pings
	once   sync.Once
	closed bool
}

func (g *gatewaySubscription) Close() {
	g.once.Do(func() {
		g.connMu.Lock()
		g.closed = true
		g.connMu.Unlock()
		_ = g.conn.Close()
	})
}

// readPump dispatches push frames until the connection ends. An error
// frame or a read failure on a live subscription surfaces once via
// onError, matching the no-auto-retry contract.
func (g *gatewaySubscription) readPump(path string, onPush func([]Record), onError func(error), logger *slog.Logger) {
	defer g.Close()

	for {
		g.conn.SetReadDeadline(time.Now().Add(gatewayReadTimeout))
		_, data, err := g.conn.ReadMessage()
		if err != nil {
			g.connMu.Lock()
			closed := g.closed
			g.connMu.Unlock()
			if !closed {
				onError(fmt.Errorf("gateway feed %s: %w", path, err))
			}
			return
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			logger.Warn("bad gateway frame", "path", path, "error", err)
			continue
		}

		switch f.Type {
		case "push":
			onPush(f.Records)
		case "error":
			onError(fmt.Errorf("gateway feed %s: %s", path, f.Message))
			return
		default:
			logger.Debug("ignoring gateway frame", "type", f.Type, "path", path)
		}
	}
}

// keepAlive pings until the connection closes.
func (g *gatewaySubscription) keepAlive() {
	ticker := time.NewTicker(gatewayPingInterval)
	defer ticker.Stop()

	for range ticker.C {
		g.connMu.Lock()
		if g.closed {
			g.connMu.Unlock()
			return
		}
		err := g.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(gatewayWriteTimeout))
		g.connMu.Unlock()
		if err != nil {
			return
		}
	}
}

var _ Store = (*GatewayStore)(nil)
