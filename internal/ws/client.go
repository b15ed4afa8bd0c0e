// ABOUTME: Persistent channel client with keep-alive and bounded reconnect backoff
// ABOUTME: Publishes typed events on a channel; the session engine is the sole subscriber

package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const (
	// pingInterval is the keep-alive period while connected.
	pingInterval = 30 * time.Second

	// maxReconnectAttempts caps automatic reconnects; past it the caller
	// must call Connect explicitly again.
	maxReconnectAttempts = 5

	// dialTimeout bounds each connection attempt.
	dialTimeout = 10 * time.Second

	// eventBufferSize is the subscriber channel buffer.
	eventBufferSize = 256
)

// ErrNotConnected is returned by outbound operations when the channel is
// not in the connected state. Nothing is queued.
var ErrNotConnected = errors.New("channel not connected")

// Client maintains one long-lived connection to the gateway's /ws
// endpoint. At most one connection is active at a time; a Connect while
// connected is a no-op.
type Client struct {
	mu             sync.Mutex
	conn           *websocket.Conn
	serverURL      string
	token          string
	attempts       int
	reconnectTimer *time.Timer
	pingStop       chan struct{}
	intentional    bool

	events  chan Event
	logger  *slog.Logger
	backoff func(attempt int) time.Duration
}

// NewClient creates a channel client. Pass nil logger for the default.
func NewClient(logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		events:  make(chan Event, eventBufferSize),
		logger:  logger.With("component", "ws"),
		backoff: backoffDelay,
	}
}

// Events returns the channel typed events are published on. Events are
// dropped, with a warning, if the subscriber falls more than the buffer
// behind.
func (c *Client) Events() <-chan Event {
	return c.events
}

// channelURL derives the socket URL from the configured base URL: scheme
// swapped to ws(s), path suffix /ws, optional token query parameter.
func channelURL(serverURL, token string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server URL %q: %w", serverURL, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
		// Already a channel scheme.
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Connect opens the channel to the given server. A connect attempt while
// already connected is a no-op. An explicit Connect re-arms the retry
// budget; a failed attempt schedules an automatic retry under the same
// backoff policy as an unexpected close.
func (c *Client) Connect(ctx context.Context, serverURL, token string) error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		c.logger.Debug("already connected")
		return nil
	}
	c.serverURL = serverURL
	c.token = token
	c.intentional = false
	c.attempts = 0
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.mu.Unlock()

	return c.dial(ctx, serverURL, token)
}

// dial performs one connection attempt. Unlike Connect it never touches
// the attempt counter; only a successful open resets it, so automatic
// retries escalate through the backoff schedule and stop at the ceiling.
func (c *Client) dial(ctx context.Context, serverURL, token string) error {
	wsURL, err := channelURL(serverURL, token)
	if err != nil {
		return err
	}

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	c.logger.Info("connecting", "url", strings.SplitN(wsURL, "?", 2)[0])
	conn, _, err := websocket.Dial(dialCtx, wsURL, nil)
	if err != nil {
		c.logger.Warn("connect failed", "error", err)
		c.scheduleReconnect()
		return fmt.Errorf("dialing channel: %w", err)
	}

	c.mu.Lock()
	if c.conn != nil {
		// Lost a race with another Connect; keep the first connection.
		c.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "duplicate connection")
		return nil
	}
	c.conn = conn
	c.attempts = 0
	stop := make(chan struct{})
	c.pingStop = stop
	c.mu.Unlock()

	c.logger.Info("connected")
	c.publish(Connected{})

	go c.pingLoop(conn, stop)
	go c.readLoop(conn)
	return nil
}

// readLoop decodes inbound frames until the connection closes. Malformed
// frames are dropped with a warning; they never tear down the channel.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(context.Background())
		if err != nil {
			c.handleClose(conn, err)
			return
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.logger.Warn("dropping unparseable frame", "error", err)
			continue
		}
		if env.Type == "" {
			c.logger.Warn("dropping frame without type")
			continue
		}

		ev, err := decodeEvent(env)
		if err != nil {
			c.logger.Warn("dropping malformed frame", "type", env.Type, "error", err)
			continue
		}
		if ev == nil {
			c.logger.Debug("ignoring frame", "type", env.Type)
			continue
		}
		c.publish(ev)
	}
}

// handleClose tears down state for a closed connection and schedules a
// reconnect unless the closure was intentional.
func (c *Client) handleClose(conn *websocket.Conn, err error) {
	c.mu.Lock()
	if c.conn != conn {
		// A newer connection superseded this one; nothing to do.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	if c.pingStop != nil {
		close(c.pingStop)
		c.pingStop = nil
	}
	intentional := c.intentional
	c.mu.Unlock()

	status := websocket.CloseStatus(err)
	c.logger.Info("disconnected", "code", int(status), "error", err)
	c.publish(Disconnected{})

	// Close code 1000 means the peer (or we) closed on purpose.
	if !intentional && status != websocket.StatusNormalClosure {
		c.scheduleReconnect()
	}
}

// backoffDelay computes the reconnect delay for the given attempt number:
// min(1000·2^attempt, 5000) milliseconds.
func backoffDelay(attempt int) time.Duration {
	ms := 1000 * (1 << attempt)
	if ms > 5000 {
		ms = 5000
	}
	return time.Duration(ms) * time.Millisecond
}

// scheduleReconnect arms the reconnect timer if attempts remain. The
// attempt counter is incremented before computing the delay.
func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.intentional || c.attempts >= maxReconnectAttempts {
		return
	}
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
	}

	c.attempts++
	delay := c.backoff(c.attempts)
	serverURL, token := c.serverURL, c.token

	c.logger.Info("scheduling reconnect",
		"attempt", c.attempts,
		"max", maxReconnectAttempts,
		"delay", delay)

	c.reconnectTimer = time.AfterFunc(delay, func() {
		if err := c.dial(context.Background(), serverURL, token); err != nil {
			c.logger.Warn("reconnect attempt failed", "error", err)
		}
	})
}

// pingLoop sends a keep-alive frame every pingInterval until stop closes.
func (c *Client) pingLoop(conn *websocket.Conn, stop chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.write(conn, "ping", struct{}{}); err != nil {
				c.logger.Debug("keep-alive write failed", "error", err)
			}
		case <-stop:
			return
		}
	}
}

// publish delivers an event to the subscriber without blocking the read
// loop. A full buffer drops the event with a warning.
func (c *Client) publish(ev Event) {
	select {
	case c.events <- ev:
	default:
		c.logger.Warn("event buffer full, dropping event", "event", fmt.Sprintf("%T", ev))
	}
}

// Connected reports whether the channel is currently open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// current returns the active connection or nil.
func (c *Client) current() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// write sends one outbound envelope on the given connection.
func (c *Client) write(conn *websocket.Conn, frameType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s payload: %w", frameType, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, envelope{Type: frameType, Payload: data})
}

// SendCommand pushes a command for an agent over the channel. It fails
// immediately when the channel is not connected.
func (c *Client) SendCommand(agentID, command string) error {
	conn := c.current()
	if conn == nil {
		return ErrNotConnected
	}
	payload := struct {
		AgentID string `json:"agentId"`
		Command string `json:"command"`
	}{AgentID: agentID, Command: command}
	return c.write(conn, "send_command", payload)
}

// RequestContextStats asks the gateway to push context-window usage for an
// agent. It fails immediately when the channel is not connected.
func (c *Client) RequestContextStats(agentID string) error {
	conn := c.current()
	if conn == nil {
		return ErrNotConnected
	}
	payload := struct {
		AgentID string `json:"agentId"`
	}{AgentID: agentID}
	return c.write(conn, "request_context_stats", payload)
}

// Disconnect closes the channel on purpose: any pending reconnect is
// cancelled, the attempt counter is pinned to the ceiling, and the
// connection is closed with the reserved normal-closure code. Automatic
// reconnects stay off until Connect is called again.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.intentional = true
	c.attempts = maxReconnectAttempts
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		conn.Close(websocket.StatusNormalClosure, "client disconnect")
	}
}
