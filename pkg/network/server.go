package network

import (
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/padlink/padlink/pkg/models"
	"github.com/padlink/padlink/pkg/protocol"
)

// ServerConfig tunes the WebSocket server.
type ServerConfig struct {
	Host string
	Port int

	// InputCallback receives every valid controller input sample.
	InputCallback func(*models.ControllerInputData)

	// MessageCallback receives every inbound message with its client id.
	MessageCallback func(*protocol.Message, string)

	// ActiveControllers supplies the count reported in status responses.
	ActiveControllers func() int
}

// Server accepts WebSocket connections on /ws and dispatches inbound
// messages by type. Connections are tracked per id; every write goes
// through a per-connection mutex since the WebSocket implementation
// allows only one concurrent writer.
type Server struct {
	cfg      ServerConfig
	upgrader websocket.Upgrader

	mu       sync.Mutex
	running  bool
	listener net.Listener
	httpSrv  *http.Server
	clients  map[string]*serverClient
}

type serverClient struct {
	id   string
	conn *websocket.Conn

	writeMu sync.Mutex
}

// NewServer creates an unstarted server.
func NewServer(cfg ServerConfig) *Server {
	return &Server{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Clients are trusted hosts on the local network.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[string]*serverClient),
	}
}

// Start binds the listener and begins accepting connections. Starting a
// running server is a no-op.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		log.Warn().Msg("WebSocket server is already running")
		return nil
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.GET("/ws", func(c *gin.Context) {
		s.handleConnection(c.Writer, c.Request)
	})

	s.listener = ln
	s.httpSrv = &http.Server{Handler: engine}
	s.running = true

	go func() {
		if serveErr := s.httpSrv.Serve(ln); serveErr != nil && serveErr != http.ErrServerClosed {
			log.Debug().Err(serveErr).Msg("WebSocket server listener closed")
		}
	}()

	log.Info().Str("address", ln.Addr().String()).Msg("WebSocket server listening")
	return nil
}

// Stop disconnects every tracked client, then closes the listener.
// Idempotent.
func (s *Server) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	ids := make([]string, 0, len(s.clients))
	for id := range s.clients {
		ids = append(ids, id)
	}
	httpSrv := s.httpSrv
	s.mu.Unlock()

	for _, id := range ids {
		s.disconnectClient(id)
	}

	// WebSocket connections are hijacked, so Shutdown would not wait for
	// them anyway; Close releases the listener immediately.
	if httpSrv != nil {
		_ = httpSrv.Close()
	}

	log.Info().Msg("WebSocket server stopped")
}

// Running reports whether the server is accepting connections.
func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Addr returns the bound listen address, useful when Port was 0.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// ClientCount reports the number of tracked connections.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Broadcast sends a message to every tracked connection, best effort. A
// failed send disconnects that one client and does not abort the rest.
// Returns the number of successful sends.
func (s *Server) Broadcast(msg *protocol.Message) int {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		log.Warn().Msg("Cannot broadcast - server not running")
		return 0
	}
	targets := make([]*serverClient, 0, len(s.clients))
	for _, c := range s.clients {
		targets = append(targets, c)
	}
	s.mu.Unlock()

	sent := 0
	for _, c := range targets {
		if err := s.writeMessage(c, msg); err != nil {
			log.Debug().Err(err).Str("client", c.id).Msg("Client dropped during broadcast")
			s.disconnectClient(c.id)
			continue
		}
		sent++
	}
	return sent
}

// SendToClient sends a message to one connection. Returns false when the
// id is unknown or the write fails.
func (s *Server) SendToClient(clientID string, msg *protocol.Message) bool {
	s.mu.Lock()
	c, ok := s.clients[clientID]
	running := s.running
	s.mu.Unlock()

	if !running {
		log.Warn().Msg("Cannot send message - server not running")
		return false
	}
	if !ok {
		log.Warn().Str("client", clientID).Msg("Client not found")
		return false
	}

	if err := s.writeMessage(c, msg); err != nil {
		log.Debug().Err(err).Str("client", clientID).Msg("Client dropped during send")
		s.disconnectClient(clientID)
		return false
	}
	return true
}

func (s *Server) handleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Str("remote", r.RemoteAddr).Msg("Failed to upgrade to WebSocket")
		return
	}

	client := &serverClient{id: uuid.NewString(), conn: conn}

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.clients[client.id] = client
	s.mu.Unlock()

	log.Info().Str("client", client.id).Str("remote", r.RemoteAddr).Msg("Client connected")

	welcome := protocol.NewStatusResponseMessage(s.activeControllers(), "connected")
	if err := s.writeMessage(client, welcome); err != nil {
		log.Debug().Err(err).Str("client", client.id).Msg("Welcome message failed")
	}

	s.readLoop(client)
	s.disconnectClient(client.id)
}

func (s *Server) readLoop(client *serverClient) {
	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Str("client", client.id).Msg("Client read error")
			}
			return
		}

		msg, err := protocol.FromJSON(data)
		if err != nil {
			log.Error().Err(err).Str("client", client.id).Msg("Failed to parse client message")
			s.replyError(client, "INVALID_MESSAGE", err.Error())
			continue
		}

		s.dispatch(client, msg)
	}
}

func (s *Server) dispatch(client *serverClient, msg *protocol.Message) {
	log.Debug().Str("type", string(msg.MessageType)).Str("client", client.id).Msg("Received message")

	s.invokeMessageCallback(msg, client.id)

	switch msg.MessageType {
	case protocol.TypeControllerInput:
		s.handleControllerInput(client, msg)

	case protocol.TypeStatusRequest:
		resp := protocol.NewStatusResponseMessage(s.activeControllers(), "active")
		if err := s.writeMessage(client, resp); err != nil {
			log.Debug().Err(err).Str("client", client.id).Msg("Status response failed")
		}

	case protocol.TypeHeartbeat:
		// Heartbeats are echoed back verbatim.
		if err := s.writeMessage(client, msg); err != nil {
			log.Debug().Err(err).Str("client", client.id).Msg("Heartbeat echo failed")
		}
	}
}

func (s *Server) handleControllerInput(client *serverClient, msg *protocol.Message) {
	if err := protocol.ValidateInputPayload(msg.Payload); err != nil {
		log.Error().Err(err).Str("client", client.id).Msg("Controller input payload rejected")
		s.replyError(client, "INVALID_INPUT", err.Error())
		return
	}

	input, ok := msg.ControllerInput()
	if !ok {
		return
	}

	if s.cfg.InputCallback == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Error in input callback")
		}
	}()
	s.cfg.InputCallback(input)
}

// replyError is best effort; a failed error reply is swallowed.
func (s *Server) replyError(client *serverClient, code, description string) {
	if err := s.writeMessage(client, protocol.NewErrorMessage(code, description)); err != nil {
		log.Debug().Err(err).Str("client", client.id).Msg("Error reply failed")
	}
}

func (s *Server) writeMessage(c *serverClient, msg *protocol.Message) error {
	data, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// disconnectClient removes a connection from tracking and closes it.
// Safe to call more than once for the same id.
func (s *Server) disconnectClient(clientID string) {
	s.mu.Lock()
	c, ok := s.clients[clientID]
	if ok {
		delete(s.clients, clientID)
	}
	s.mu.Unlock()

	if !ok {
		return
	}

	_ = c.conn.Close()
	log.Info().Str("client", clientID).Msg("Client disconnected")
}

func (s *Server) activeControllers() int {
	if s.cfg.ActiveControllers == nil {
		return 0
	}
	return s.cfg.ActiveControllers()
}

func (s *Server) invokeMessageCallback(msg *protocol.Message, clientID string) {
	if s.cfg.MessageCallback == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Error in message callback")
		}
	}()
	s.cfg.MessageCallback(msg, clientID)
}
