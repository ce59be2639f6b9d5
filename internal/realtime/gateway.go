package realtime

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/gorilla/websocket"

	"auth_gateway/internal/config"
	"auth_gateway/internal/http_server/cookies"
	sl "auth_gateway/internal/lib/logger"
	"auth_gateway/internal/middleware/authn"
	"auth_gateway/internal/models"
)

const MessageReady = "ready"

const (
	defaultHandshakeTimeout = 3 * time.Second
	defaultPingInterval     = 30 * time.Second
)

type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (models.Identity, error)
}

type Message struct {
	Type string          `json:"type"`
	User models.Identity `json:"user"`
}

// Gateway authenticates a socket once, at handshake, with the same check as
// HTTP requests. A failed check is answered with a plain HTTP error before
// any upgrade happens.
type Gateway struct {
	log              *slog.Logger
	auth             Authenticator
	hub              *Hub
	upgrader         websocket.Upgrader
	handshakeTimeout time.Duration
	pingInterval     time.Duration
}

func NewGateway(log *slog.Logger, auth Authenticator, hub *Hub, cfg config.Realtime) *Gateway {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: cfg.HandshakeTimeout,
	}

	if len(cfg.AllowedOrigins) > 0 {
		allowed := cfg.AllowedOrigins
		upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(allowed, origin)
		}
	}

	return &Gateway{
		log:              log,
		auth:             auth,
		hub:              hub,
		upgrader:         upgrader,
		handshakeTimeout: cfg.HandshakeTimeout,
		pingInterval:     cfg.PingInterval,
	}
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "realtime.Gateway.ServeHTTP"

	log := g.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	ctx, cancel := context.WithTimeout(r.Context(), g.handshakeTimeout)
	id, err := g.auth.Authenticate(ctx, cookies.Read(r, cookies.Access))
	cancel()

	if err != nil {
		log.Info("handshake rejected", sl.Err(err))
		authn.Reject(w, r, err)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the request.
		log.Info("upgrade failed", sl.Err(err), slog.Int64("uid", id.UserID))
		return
	}

	c := &Client{
		hub:          g.hub,
		conn:         conn,
		identity:     id,
		quit:         make(chan struct{}),
		pingInterval: g.pingInterval,
	}

	// Registered before the greeting, so a ready message means the hub
	// can already disconnect this client.
	if !g.hub.add(c) {
		_ = conn.Close()
		return
	}

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(Message{Type: MessageReady, User: id}); err != nil {
		log.Info("failed to greet connection", sl.Err(err))
		g.hub.remove(c)
		_ = conn.Close()
		return
	}

	log.Info("connection established", slog.Int64("uid", id.UserID))

	go c.writePump()
	go c.readPump()
}
