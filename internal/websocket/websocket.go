// Package websocket wraps gorilla/websocket with the timeout and proxy
// handling the load generator needs for one-shot echo attempts.
package websocket

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Message represents a WebSocket message to send or receive.
type Message struct {
	Type int // websocket.TextMessage or websocket.BinaryMessage
	Data []byte
}

// Config configures the WebSocket client behavior.
type Config struct {
	URL              string
	Headers          http.Header
	Proxy            *url.URL // nil means honor the environment
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
}

// Client is a single-connection WebSocket client. It is safe for
// concurrent use, though attempts normally own one client each.
type Client struct {
	cfg    Config
	dialer *websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewClient creates a WebSocket client with the given configuration.
func NewClient(cfg Config) *Client {
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = 30 * time.Second
	}

	proxy := http.ProxyFromEnvironment
	if cfg.Proxy != nil {
		proxy = http.ProxyURL(cfg.Proxy)
	}

	return &Client{
		cfg: cfg,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
			Proxy:            proxy,
		},
	}
}

// Connect establishes the connection and returns the handshake status code
// (101 on success, the server's rejection code otherwise).
func (c *Client) Connect(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return 0, fmt.Errorf("already connected")
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.cfg.URL, c.cfg.Headers)
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	if err != nil {
		if status != 0 {
			return status, fmt.Errorf("websocket dial failed with status %d: %w", status, err)
		}
		return 0, fmt.Errorf("websocket dial failed: %w", err)
	}

	c.conn = conn
	return status, nil
}

// Send writes one message, honoring the configured write timeout.
func (c *Client) Send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("not connected")
	}

	if c.cfg.WriteTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
			return err
		}
	}
	if err := c.conn.WriteMessage(msg.Type, msg.Data); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// Receive reads one message, honoring the configured read timeout.
func (c *Client) Receive() (Message, error) {
	c.mu.Lock()
	conn := c.conn
	timeout := c.cfg.ReadTimeout
	c.mu.Unlock()

	if conn == nil {
		return Message{}, fmt.Errorf("not connected")
	}

	if timeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return Message{}, err
		}
	}
	msgType, data, err := conn.ReadMessage()
	if err != nil {
		return Message{}, fmt.Errorf("read message: %w", err)
	}
	return Message{Type: msgType, Data: data}, nil
}

// Close sends a close frame and tears down the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	err := c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(5*time.Second),
	)

	closeErr := c.conn.Close()
	c.conn = nil

	if err != nil {
		return err
	}
	return closeErr
}
