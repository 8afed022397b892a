package websocket

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/wricardo/arena-relay/game/relay"
)

const (
	DefaultMaxMessageSize = 64 * 1024
	DefaultSendBuffer     = 256
)

// Relay is the part of relay.Server the transport drives
type Relay interface {
	Connect(conn relay.Conn) (string, error)
	Receive(id string, data []byte)
	Disconnect(id string)
}

type Options struct {
	// AllowedOrigins lists accepted Origin headers. Empty or "*" accepts any.
	AllowedOrigins []string
	MaxMessageSize int64
	SendBuffer     int
}

// Handler upgrades HTTP requests and attaches the connections to a relay
type Handler struct {
	relay    Relay
	upgrader websocket.Upgrader
	opts     Options
}

func NewHandler(r Relay, opts Options) *Handler {
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = DefaultMaxMessageSize
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = DefaultSendBuffer
	}

	return &Handler{
		relay: r,
		opts:  opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(opts.AllowedOrigins),
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	client := newClient(conn, h.opts.SendBuffer)
	id, err := h.relay.Connect(client)
	if err != nil {
		log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("rejecting connection")
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}
	client.id = id
	client.logger = log.With().Str("client", id).Logger()

	client.logger.Debug().Str("remote", client.remote).Msg("websocket attached")

	go client.writePump()
	go client.readPump(h.relay, h.opts.MaxMessageSize)
}

func checkOrigin(allowed []string) func(*http.Request) bool {
	for _, a := range allowed {
		if a == "*" {
			allowed = nil
			break
		}
	}
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if strings.EqualFold(strings.TrimSuffix(a, "/"), origin) {
				return true
			}
		}
		log.Warn().Str("origin", origin).Msg("origin not allowed")
		return false
	}
}
