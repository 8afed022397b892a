package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"
	"github.com/wricardo/arena-relay/game/relay"
)

const (
	defaultQRSize = 256
	minQRSize     = 64
	maxQRSize     = 1024

	queryTimeout = 2 * time.Second
)

var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrAdminDisabled = errors.New("admin token not configured")
)

// Relay is the part of relay.Server the API reads and controls
type Relay interface {
	Status(ctx context.Context) (relay.Status, error)
	Roster(ctx context.Context) (relay.Roster, error)
	Stop()
}

type Options struct {
	Name    string
	Version string
	// AdminToken guards POST /api/shutdown. Empty disables the endpoint.
	AdminToken string
	// PublicURL is the WebSocket URL encoded by /qr. When empty it is derived
	// from the request.
	PublicURL string
	WebSocket http.Handler
	MCP       http.Handler
}

// Server represents the HTTP API server
type Server struct {
	relay  Relay
	opts   Options
	router *mux.Router
}

func NewServer(r Relay, opts Options) *Server {
	s := &Server{
		relay:  r,
		opts:   opts,
		router: mux.NewRouter(),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	if s.opts.WebSocket != nil {
		s.router.Handle("/ws", s.opts.WebSocket).Methods("GET")
	}
	if s.opts.MCP != nil {
		s.router.Handle("/mcp", s.opts.MCP).Methods("POST")
	}

	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/version", s.handleVersion).Methods("GET")
	s.router.HandleFunc("/qr", s.handleQR).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/players", s.handlePlayers).Methods("GET")
	api.HandleFunc("/shutdown", s.handleShutdown).Methods("POST")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondRelayError maps relay query failures to HTTP statuses
func respondRelayError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, relay.ErrServerClosed):
		respondError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "relay did not answer in time")
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"name":    s.opts.Name,
		"version": s.opts.Version,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	st, err := s.relay.Status(ctx)
	if err != nil {
		respondRelayError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, st)
}

func (s *Server) handlePlayers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	roster, err := s.relay.Roster(ctx)
	if err != nil {
		respondRelayError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, roster)
}

func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if err := s.authorize(r); err != nil {
		status := http.StatusUnauthorized
		if errors.Is(err, ErrAdminDisabled) {
			status = http.StatusForbidden
		}
		log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("shutdown request rejected")
		respondError(w, status, err.Error())
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	log.Warn().Str("reason", req.Reason).Str("remote", r.RemoteAddr).Msg("shutdown requested over HTTP")
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "shutting down"})
	s.relay.Stop()
}

func (s *Server) authorize(r *http.Request) error {
	if s.opts.AdminToken == "" {
		return ErrAdminDisabled
	}

	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.opts.AdminToken)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

func (s *Server) handleQR(w http.ResponseWriter, r *http.Request) {
	size := defaultQRSize
	if v := r.URL.Query().Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < minQRSize || n > maxQRSize {
			respondError(w, http.StatusBadRequest, "size must be between 64 and 1024")
			return
		}
		size = n
	}

	png, err := qrcode.Encode(s.publicURL(r), qrcode.Medium, size)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(png)
}

// publicURL returns the WebSocket URL clients should dial
func (s *Server) publicURL(r *http.Request) string {
	if s.opts.PublicURL != "" {
		return s.opts.PublicURL
	}

	scheme := "ws"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "wss"
	}
	return scheme + "://" + r.Host + "/ws"
}
