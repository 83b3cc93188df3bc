// Package realtime holds the chat's live connection. The session manager
// only needs Disconnect; hosts dial with Connect once a session is held.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/oauth2"
)

const (
	headerAuthToken = "x-auth-token"
	headerSessionID = "x-session-id"

	maxReadBytes = 1 << 20
	dialTimeout  = 10 * time.Second
)

var (
	ErrNotConnected = errors.New("realtime: not connected")
	// ErrConnectAborted is returned by Connect when Disconnect ran while the
	// dial was in flight.
	ErrConnectAborted = errors.New("realtime: disconnected while connecting")
)

type Handler func(ctx context.Context, typ websocket.MessageType, data []byte)

type Client struct {
	url     string
	tokens  oauth2.TokenSource
	handler Handler
	logger  *slog.Logger

	mu         sync.Mutex
	conn       *websocket.Conn
	cancel     context.CancelFunc
	done       chan struct{}
	generation uint64
	dialCancel context.CancelFunc
}

type Option func(*Client)

func WithHandler(h Handler) Option {
	return func(c *Client) { c.handler = h }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func NewClient(url string, tokens oauth2.TokenSource, opts ...Option) *Client {
	c := &Client{url: url, tokens: tokens, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials the realtime endpoint with the current session credential.
// It is a no-op when already connected. The dial runs unlocked; a Disconnect
// during it cancels the dial and Connect returns ErrConnectAborted.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	gen := c.generation
	dialCtx, cancelDial := context.WithTimeout(ctx, dialTimeout)
	c.dialCancel = cancelDial
	c.mu.Unlock()
	defer cancelDial()

	tok, err := c.tokens.Token()
	if err != nil {
		return fmt.Errorf("realtime credential: %w", err)
	}
	h := http.Header{}
	h.Set(headerAuthToken, tok.AccessToken)
	if sid, ok := tok.Extra("session_id").(string); ok {
		h.Set(headerSessionID, sid)
	}

	conn, resp, err := websocket.Dial(dialCtx, c.url, &websocket.DialOptions{HTTPHeader: h})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	c.mu.Lock()
	aborted := c.generation != gen
	if err != nil {
		c.mu.Unlock()
		if aborted {
			return ErrConnectAborted
		}
		return fmt.Errorf("realtime dial: %w", err)
	}
	if aborted || c.conn != nil {
		c.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "superseded")
		if aborted {
			return ErrConnectAborted
		}
		return nil
	}
	conn.SetReadLimit(maxReadBytes)
	readCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.conn, c.cancel, c.done = conn, cancel, done
	c.mu.Unlock()

	go c.readLoop(readCtx, conn, done)
	c.logger.Info("realtime connected", "url", c.url)
	return nil
}

func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func (c *Client) Send(ctx context.Context, data []byte) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

// Disconnect closes the connection with a normal closure and aborts a dial
// in flight. Calling it without a live connection does nothing.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.generation++
	if c.dialCancel != nil {
		c.dialCancel()
		c.dialCancel = nil
	}
	conn, cancel, done := c.conn, c.cancel, c.done
	c.conn, c.cancel, c.done = nil, nil, nil
	c.mu.Unlock()
	if conn == nil {
		return
	}
	if err := conn.Close(websocket.StatusNormalClosure, "session ended"); err != nil {
		c.logger.Debug("realtime close", "error", err)
	}
	cancel()
	<-done
	c.logger.Info("realtime disconnected")
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				c.logger.Warn("realtime read failed", "error", err)
			}
			c.dropIfCurrent(conn)
			return
		}
		if c.handler != nil {
			c.handler(ctx, typ, data)
		}
	}
}

func (c *Client) dropIfCurrent(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == conn {
		c.cancel()
		c.conn, c.cancel, c.done = nil, nil, nil
	}
}
