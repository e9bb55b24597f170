package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/taskhive/taskhive-api/internal/domain"
	"github.com/taskhive/taskhive-api/internal/events"
	"github.com/taskhive/taskhive-api/internal/service/auth"
)

// TokenVerifier is the slice of the token service the gateway needs to
// authenticate connections.
type TokenVerifier interface {
	ValidateToken(ctx context.Context, tokenString string) (*auth.Claims, error)
}

// Server accepts websocket connections and runs the per-connection protocol
// state machine: Connected until a successful authenticate message, then
// Authenticated until transport close. It implements http.Handler; mount it
// on the route serving the websocket endpoint.
type Server struct {
	hub       *hub
	verifier  TokenVerifier
	upgrader  websocket.Upgrader
	queueSize int
	logger    *slog.Logger
}

// NewServer creates a gateway Server over the given bus and token verifier.
// queueSize bounds each connection's outbound queue.
func NewServer(bus events.Bus, verifier TokenVerifier, queueSize int, log *slog.Logger) (*Server, error) {
	if bus == nil {
		return nil, domain.NewValidationError("bus", "cannot be nil", domain.ErrValidation)
	}
	if verifier == nil {
		return nil, domain.NewValidationError("verifier", "cannot be nil", domain.ErrValidation)
	}
	if queueSize <= 0 {
		return nil, domain.NewValidationError("queueSize", "must be positive", domain.ErrValidation)
	}
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "gateway_server"))

	return &Server{
		hub:      newHub(bus, log),
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		queueSize: queueSize,
		logger:    log,
	}, nil
}

// Start opens the bus subscription and launches the fan-out listener.
// Must be called once before serving connections.
func (s *Server) Start(ctx context.Context) error {
	if err := s.hub.start(ctx); err != nil {
		return fmt.Errorf("failed to start gateway fan-out: %w", err)
	}
	return nil
}

// Stop closes the bus subscription. Open connections wind down as their
// transports close.
func (s *Server) Stop() {
	s.hub.stop()
}

// ServeHTTP upgrades the request and runs the connection until its transport
// closes. Each connection gets one reader (this goroutine) and one writer.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		s.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := newConnection(ws, s.queueSize, s.logger)
	go c.writePump()

	c.enqueue(connectionFrame(c.id))
	s.readLoop(r.Context(), c)

	s.hub.drop(c)
	c.close()
	s.logger.Debug("connection closed", slog.String("connection_id", c.id.String()))
}

func (s *Server) readLoop(ctx context.Context, c *connection) {
	c.ws.SetReadLimit(maxMessageSize)
	if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("transport read ended", slog.String("error", err.Error()))
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.enqueue(errorFrame("malformed message"))
			continue
		}

		s.dispatch(ctx, c, msg)
	}
}

// dispatch applies one inbound message to the connection state machine.
// Protocol errors are answered with an error frame; the connection stays
// open.
func (s *Server) dispatch(ctx context.Context, c *connection, msg clientMessage) {
	switch msg.Type {
	case msgAuthenticate:
		s.handleAuthenticate(ctx, c, msg)
	case msgSubscribe:
		s.handleSubscribe(ctx, c, msg)
	case msgUnsubscribe:
		s.handleUnsubscribe(c, msg)
	case msgPing:
		if !c.authenticated() {
			c.enqueue(errorFrame("authentication required"))
			return
		}
		c.enqueue(pongFrame())
	default:
		c.enqueue(errorFrame(fmt.Sprintf("unknown message type %q", msg.Type)))
	}
}

// handleAuthenticate verifies the token and binds the owner. A failed
// attempt leaves the connection in the Connected state free to retry.
func (s *Server) handleAuthenticate(ctx context.Context, c *connection, msg clientMessage) {
	if c.authenticated() {
		c.enqueue(errorFrame("already authenticated"))
		return
	}

	claims, err := s.verifier.ValidateToken(ctx, msg.Token)
	if err != nil {
		c.logger.Info("authentication rejected", slog.String("error", err.Error()))
		c.enqueue(errorFrame("authentication failed"))
		return
	}

	// When the client states who it is, the token must agree.
	if msg.UserID != "" {
		claimed, err := uuid.Parse(msg.UserID)
		if err != nil || claimed != claims.UserID {
			c.enqueue(errorFrame("authentication failed"))
			return
		}
	}

	if !c.bindOwner(claims.UserID) {
		c.enqueue(errorFrame("already authenticated"))
		return
	}

	c.logger.Info("connection authenticated", slog.String("user_id", claims.UserID.String()))
	c.enqueue(authenticatedFrame(claims.UserID))
}

func (s *Server) handleSubscribe(ctx context.Context, c *connection, msg clientMessage) {
	if !c.authenticated() {
		c.enqueue(errorFrame("authentication required"))
		return
	}
	if len(msg.Channels) == 0 {
		c.enqueue(errorFrame("subscribe requires at least one channel"))
		return
	}

	// All-or-nothing: a request naming any channel the connection may not
	// watch is rejected without side effects.
	for _, channel := range msg.Channels {
		if !s.permitted(c, channel) {
			c.enqueue(errorFrame(fmt.Sprintf("channel %q is not available to this connection", channel)))
			return
		}
	}

	for _, channel := range msg.Channels {
		if err := s.hub.subscribe(ctx, c, channel); err != nil {
			c.logger.Warn("bus subscription grow failed",
				slog.String("channel", channel),
				slog.String("error", err.Error()))
			c.enqueue(errorFrame("subscription temporarily unavailable"))
			return
		}
	}

	c.enqueue(subscribedFrame(msg.Channels))
}

func (s *Server) handleUnsubscribe(c *connection, msg clientMessage) {
	if !c.authenticated() {
		c.enqueue(errorFrame("authentication required"))
		return
	}
	if len(msg.Channels) == 0 {
		c.enqueue(errorFrame("unsubscribe requires at least one channel"))
		return
	}

	for _, channel := range msg.Channels {
		s.hub.unsubscribe(c, channel)
	}
	c.enqueue(unsubscribedFrame(msg.Channels))
}

// permitted reports whether the connection may watch the channel: the global
// feed and the connection owner's own feed.
func (s *Server) permitted(c *connection, channel string) bool {
	if channel == events.GlobalChannel {
		return true
	}
	return channel == events.OwnerChannel(c.ownerID())
}
