// Package network carries protocol messages between sender and receiver
// over persistent WebSocket connections.
package network

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/padlink/padlink/pkg/models"
	"github.com/padlink/padlink/pkg/protocol"
)

// Connection status values reported through the client status callback.
const (
	StatusConnecting   = "connecting"
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
	StatusReconnecting = "reconnecting"
	StatusFailed       = "failed"
)

const (
	maxBackoff      = 30 * time.Second
	writeTimeout    = 10 * time.Second
	senderPoll      = time.Second
	notConnectedNap = 100 * time.Millisecond
)

// ClientConfig tunes the WebSocket client.
type ClientConfig struct {
	Host string
	Port int

	// ReconnectInterval is the base delay between reconnection attempts;
	// actual delays grow exponentially up to 30s.
	ReconnectInterval time.Duration

	// MaxReconnectAttempts caps reconnection attempts after a loss.
	// Zero or negative means retry forever.
	MaxReconnectAttempts int

	// PingInterval is how often keepalive pings are sent; PongTimeout is
	// how long the read side waits for traffic before giving up.
	PingInterval time.Duration
	PongTimeout  time.Duration

	// MaxQueueSize bounds the outbound queue. Sends fail fast when full.
	MaxQueueSize int

	// MessageCallback receives every decoded inbound message.
	MessageCallback func(*protocol.Message)

	// StatusCallback receives connection status transitions.
	StatusCallback func(status string)
}

func (c *ClientConfig) normalize() {
	if c.ReconnectInterval <= 0 {
		c.ReconnectInterval = time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 20 * time.Second
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = 60 * time.Second
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = 100
	}
}

// Client maintains one outbound WebSocket connection with automatic
// reconnection and a bounded outbound queue. A full queue rejects sends
// immediately rather than blocking the capture path; callers treat a
// false return as a lost sample.
type Client struct {
	cfg ClientConfig

	mu        sync.Mutex
	running   bool
	connected bool
	conn      *websocket.Conn
	stop      chan struct{}
	wg        sync.WaitGroup

	outbound chan *protocol.Message
}

// NewClient creates a client targeting ws://host:port/ws.
func NewClient(cfg ClientConfig) *Client {
	cfg.normalize()
	return &Client{
		cfg:      cfg,
		outbound: make(chan *protocol.Message, cfg.MaxQueueSize),
	}
}

// URL returns the WebSocket endpoint this client dials.
func (c *Client) URL() string {
	return fmt.Sprintf("ws://%s:%d/ws", c.cfg.Host, c.cfg.Port)
}

// Connected reports whether a connection is currently established.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// QueueLen reports the number of messages waiting to be sent.
func (c *Client) QueueLen() int {
	return len(c.outbound)
}

// Start spawns the connection-management and sender goroutines. Starting
// a running client is a no-op.
func (c *Client) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		log.Warn().Msg("WebSocket client is already running")
		return
	}

	c.running = true
	c.stop = make(chan struct{})

	log.Info().Str("url", c.URL()).Msg("Starting WebSocket client")

	c.wg.Add(2)
	go c.connectionLoop()
	go c.senderLoop()
}

// Stop closes the active connection, waits for all goroutines, and emits
// a final "disconnected" status. Idempotent.
func (c *Client) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stop)
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.mu.Unlock()

	c.wg.Wait()

	c.mu.Lock()
	c.connected = false
	c.conn = nil
	c.mu.Unlock()

	c.notifyStatus(StatusDisconnected)
	log.Info().Msg("WebSocket client stopped")
}

// SendControllerInput enqueues an input sample. Returns false immediately
// when the queue is full or the client is not running.
func (c *Client) SendControllerInput(d *models.ControllerInputData) bool {
	msg, err := protocol.NewControllerInputMessage(d)
	if err != nil {
		log.Error().Err(err).Msg("Failed to build controller input message")
		return false
	}
	return c.Send(msg)
}

// Send enqueues a message. Returns false immediately when the queue is
// full or the client is not running.
func (c *Client) Send(msg *protocol.Message) bool {
	c.mu.Lock()
	running := c.running
	c.mu.Unlock()

	if !running {
		log.Warn().Msg("Cannot send message - client not running")
		return false
	}

	select {
	case c.outbound <- msg:
		return true
	default:
		log.Debug().Str("type", string(msg.MessageType)).Msg("Outbound queue full, message dropped")
		return false
	}
}

func (c *Client) connectionLoop() {
	defer c.wg.Done()

	attempts := 0

	for {
		select {
		case <-c.stop:
			return
		default:
		}

		c.notifyStatus(StatusConnecting)

		dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
		conn, _, err := dialer.Dial(c.URL(), nil)
		if err != nil {
			log.Warn().Err(err).Str("url", c.URL()).Msg("WebSocket connection failed")
		} else {
			c.mu.Lock()
			c.conn = conn
			c.connected = true
			c.mu.Unlock()
			attempts = 0

			log.Info().Str("url", c.URL()).Msg("Connected to WebSocket server")
			c.notifyStatus(StatusConnected)

			closed := make(chan struct{})
			go c.receiver(conn, closed)
			go c.keepalive(conn, closed)

			select {
			case <-c.stop:
				_ = conn.Close()
				<-closed
				return
			case <-closed:
				// The receiver exited on a read error; close the socket so
				// the descriptor is released before redialing.
				_ = conn.Close()
			}

			c.mu.Lock()
			c.connected = false
			c.conn = nil
			c.mu.Unlock()
			c.notifyStatus(StatusDisconnected)
		}

		unlimited := c.cfg.MaxReconnectAttempts <= 0
		if !unlimited && attempts >= c.cfg.MaxReconnectAttempts {
			log.Error().Msg("Max reconnection attempts reached")
			c.notifyStatus(StatusFailed)
			return
		}

		attempts++
		wait := backoff(c.cfg.ReconnectInterval, attempts)
		log.Info().Dur("wait", wait).Int("attempt", attempts).Msg("Reconnecting")
		c.notifyStatus(StatusReconnecting)

		select {
		case <-c.stop:
			return
		case <-time.After(wait):
		}
	}
}

// backoff returns interval * 2^(attempt-1), capped at 30s.
func backoff(interval time.Duration, attempt int) time.Duration {
	wait := interval
	for i := 1; i < attempt; i++ {
		wait *= 2
		if wait >= maxBackoff {
			return maxBackoff
		}
	}
	if wait > maxBackoff {
		return maxBackoff
	}
	return wait
}

func (c *Client) receiver(conn *websocket.Conn, closed chan struct{}) {
	defer close(closed)

	_ = conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Msg("WebSocket connection closed")
			}
			return
		}

		_ = conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))

		msg, err := protocol.FromJSON(data)
		if err != nil {
			log.Error().Err(err).Msg("Failed to parse received message")
			continue
		}

		log.Debug().Str("type", string(msg.MessageType)).Msg("Received message")
		c.invokeMessageCallback(msg)
	}
}

func (c *Client) keepalive(conn *websocket.Conn, closed chan struct{}) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-c.stop:
			return
		case <-ticker.C:
			deadline := time.Now().Add(writeTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				log.Debug().Err(err).Msg("Keepalive ping failed")
				return
			}
		}
	}
}

// senderLoop drains the outbound queue. A dequeued message is held until
// it is either written or the client stops; it is never dropped silently.
func (c *Client) senderLoop() {
	defer c.wg.Done()

	var pending *protocol.Message

	for {
		if pending == nil {
			select {
			case <-c.stop:
				return
			case msg := <-c.outbound:
				pending = msg
			case <-time.After(senderPoll):
				continue
			}
		}

		c.mu.Lock()
		conn := c.conn
		connected := c.connected
		c.mu.Unlock()

		if !connected || conn == nil {
			select {
			case <-c.stop:
				return
			case <-time.After(notConnectedNap):
			}
			continue
		}

		data, err := pending.ToJSON()
		if err != nil {
			log.Error().Err(err).Msg("Failed to encode outbound message")
			pending = nil
			continue
		}

		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Debug().Err(err).Msg("Send failed, holding message for retry")
			select {
			case <-c.stop:
				return
			case <-time.After(notConnectedNap):
			}
			continue
		}

		log.Debug().Str("type", string(pending.MessageType)).Msg("Sent message")
		pending = nil
	}
}

func (c *Client) notifyStatus(status string) {
	if c.cfg.StatusCallback == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Error in status callback")
		}
	}()
	c.cfg.StatusCallback(status)
}

func (c *Client) invokeMessageCallback(msg *protocol.Message) {
	if c.cfg.MessageCallback == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Error in message callback")
		}
	}()
	c.cfg.MessageCallback(msg)
}
