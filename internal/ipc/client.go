// Package ipc subscribes to the event stream of a running prep-area server.
package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// AllEvents registers a handler for every event type.
const AllEvents = "*"

// Event is one frame received from the server.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// EventHandler handles one event. Handlers run on the read loop in
// arrival order.
type EventHandler func(Event)

// ClientConfig configures a Client.
type ClientConfig struct {
	// URL is the WebSocket endpoint, e.g. ws://127.0.0.1:8787/api/v1/ws.
	URL string

	// ReconnectDelay is the wait between connection attempts. Zero disables
	// reconnecting: Run returns the first connection error.
	ReconnectDelay time.Duration

	Logger *slog.Logger
}

// Client reads events from the server and dispatches them to handlers.
type Client struct {
	url            string
	reconnectDelay time.Duration
	dialer         *websocket.Dialer
	logger         *slog.Logger

	handlersMu sync.RWMutex
	handlers   map[string][]EventHandler

	connected atomic.Bool
}

// NewClient creates a Client.
func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		url:            cfg.URL,
		reconnectDelay: cfg.ReconnectDelay,
		dialer:         &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger:         logger.With("component", "ipc"),
		handlers:       make(map[string][]EventHandler),
	}
}

// On registers handler for eventType, or for every event with AllEvents.
func (c *Client) On(eventType string, handler EventHandler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.handlers[eventType] = append(c.handlers[eventType], handler)
}

// IsConnected reports whether the client currently holds a connection.
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// URL returns the WebSocket endpoint.
func (c *Client) URL() string {
	return c.url
}

// Run connects and dispatches events until ctx is done. It returns nil on
// cancellation and the connection error when reconnecting is disabled.
func (c *Client) Run(ctx context.Context) error {
	for {
		err := c.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if c.reconnectDelay <= 0 {
			return err
		}
		c.logger.Warn("event stream interrupted, reconnecting", "error", err, "delay", c.reconnectDelay)

		timer := time.NewTimer(c.reconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// session runs one connection until it fails or ctx is done.
func (c *Client) session(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.url, err)
	}
	c.connected.Store(true)
	c.logger.Debug("connected", "url", c.url)

	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	})
	defer func() {
		stop()
		c.connected.Store(false)
		_ = conn.Close()
	}()

	for {
		var event Event
		if err := conn.ReadJSON(&event); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return errors.New("server closed the connection")
			}
			return fmt.Errorf("failed to read event: %w", err)
		}
		c.dispatch(event)
	}
}

func (c *Client) dispatch(event Event) {
	c.handlersMu.RLock()
	handlers := append(append([]EventHandler(nil), c.handlers[event.Type]...), c.handlers[AllEvents]...)
	c.handlersMu.RUnlock()

	for _, handler := range handlers {
		handler(event)
	}
}

// DecodeData unmarshals the event payload into T.
func DecodeData[T any](event Event) (T, error) {
	var out T
	if len(event.Data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(event.Data, &out); err != nil {
		return out, fmt.Errorf("failed to decode %s payload: %w", event.Type, err)
	}
	return out, nil
}

// EventURL derives the WebSocket endpoint from a server base URL such as
// http://127.0.0.1:8787 or a bare host:port.
func EventURL(base string) (string, error) {
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid server URL %q: %w", base, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server URL scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("server URL %q has no host", base)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/api/v1/ws"
	}
	return u.String(), nil
}
