package server

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/Tyrowin/roomchat/internal/broadcast"
	"github.com/Tyrowin/roomchat/internal/protocol"
	"github.com/Tyrowin/roomchat/internal/session"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var (
	errClientClosed   = errors.New("server: client closed")
	errSendBufferFull = errors.New("server: send buffer full")
)

// Client is one WebSocket connection. It is the broadcast.Peer for its
// connection id and feeds decoded intents into its session.
type Client struct {
	id             string
	conn           *websocket.Conn
	send           chan []byte
	hub            *Hub
	session        *session.Session
	addr           string
	maxMessageSize int64
	rateLimiter    *rate.Limiter
	rateLimit      RateLimitConfig
	logger         *zap.Logger

	mu     sync.Mutex
	closed bool
}

func newClient(id string, conn *websocket.Conn, hub *Hub, addr string, cfg Config, logger *zap.Logger) *Client {
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	return &Client{
		id:             id,
		conn:           conn,
		send:           make(chan []byte, cfg.SendBufferSize),
		hub:            hub,
		addr:           addr,
		maxMessageSize: cfg.MaxMessageSize,
		rateLimiter:    newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval),
		rateLimit:      cfg.RateLimit,
		logger:         logger.With(zap.String("connectionId", id), zap.String("addr", addr)),
	}
}

// Send queues e for the write pump without blocking. A full buffer closes
// the client: a reader that cannot keep up is disconnected.
func (c *Client) Send(e broadcast.Event) error {
	data, err := protocol.EncodeEvent(e)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errClientClosed
	}

	select {
	case c.send <- data:
		return nil
	default:
		c.logger.Warn("Closing client with full send buffer", zap.Int("buffered", len(c.send)))
		c.closeSendLocked()
		return errSendBufferFull
	}
}

// closeSend stops further sends and lets the write pump finish with a close
// frame.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeSendLocked()
}

func (c *Client) closeSendLocked() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Warn("Error setting initial read deadline", zap.Error(err))
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.logger.Warn("Error setting read deadline in pong handler", zap.Error(err))
		}
		return nil
	})
}

// handleReadError logs the read error at a level matching how expected it is.
func (c *Client) handleReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.logger.Warn("Message exceeded maximum size", zap.Int64("maxMessageSize", c.maxMessageSize))
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.logger.Info("Client disconnected", zap.Error(err))
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		c.logger.Info("Client connection closed", zap.Error(err))
	case websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig):
		c.logger.Warn("Unexpected WebSocket close", zap.Error(err))
	default:
		c.logger.Warn("WebSocket read error", zap.Error(err))
	}
}

// checkRateLimit reports whether the next inbound frame may be processed.
func (c *Client) checkRateLimit() bool {
	if c.rateLimiter != nil && !c.rateLimiter.Allow() {
		c.logger.Warn("Rate limit exceeded; discarding message",
			zap.Int("burst", c.rateLimit.Burst),
			zap.Duration("refillInterval", c.rateLimit.RefillInterval))
		return false
	}
	return true
}

// processMessage decodes a frame and queues it on the session. It returns
// false when the connection should be closed.
func (c *Client) processMessage(raw []byte) bool {
	in, err := protocol.DecodeIntent(raw)
	if err != nil {
		c.logger.Debug("Dropping malformed frame", zap.Error(err))
		return true
	}

	if in.Kind == session.Disconnect {
		return false
	}

	return c.session.Submit(in)
}

func (c *Client) readPump() {
	defer func() {
		c.session.Close()
		c.closeSend()
		c.hub.unregister(c)
	}()

	c.setupReadConnection()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}

		if !c.checkRateLimit() {
			continue
		}

		if !c.processMessage(raw) {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case message, ok := <-c.send:
		return c.handleMessage(message, ok)
	case <-ticker.C:
		return c.handlePing()
	}
}

// closeConnection safely closes the WebSocket connection with proper error handling
func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.logger.Warn("Error closing connection", zap.Error(err))
	}
}

// handleMessage processes outgoing messages and returns false if the connection should be closed
func (c *Client) handleMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Warn("Error setting write deadline", zap.Error(err))
		return false
	}

	if !ok {
		return c.writeCloseMessage()
	}

	// one event per WebSocket message
	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		if !isExpectedCloseError(err) {
			c.logger.Warn("Error writing message", zap.Error(err))
		}
		return false
	}
	return true
}

// writeCloseMessage sends a close message to the client
func (c *Client) writeCloseMessage() bool {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := c.conn.WriteMessage(websocket.CloseMessage, msg); err != nil && !isExpectedCloseError(err) {
		c.logger.Debug("Error writing close message", zap.Error(err))
	}
	return false
}

// handlePing sends a ping message to keep the connection alive
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Warn("Error setting write deadline for ping", zap.Error(err))
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		if !isExpectedCloseError(err) {
			c.logger.Warn("Error writing ping message", zap.Error(err))
		}
		return false
	}
	return true
}
