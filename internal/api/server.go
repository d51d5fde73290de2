package api

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// Server is the HTTP API server with WebSocket support.
type Server struct {
	cfg    RouterConfig
	router *chi.Mux
	wsHub  *WebSocketHub
	http   *http.Server
}

// NewServer builds the router and hub.
//
// The hub and broadcast loop do not start until Start is called, so tests
// can construct a Server and use Router without opening listeners.
func NewServer(cfg RouterConfig) *Server {
	if cfg.RateLimiter == nil {
		rlCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rlCfg = *cfg.RateLimitConfig
		}
		cfg.RateLimiter = NewIPRateLimiter(rlCfg)
	}

	s := &Server{
		cfg: cfg,
		wsHub: NewWebSocketHub(HubConfig{
			Host:    cfg.Host,
			Auth:    cfg.Auth,
			Origins: cfg.CORSOrigins,
			Prefs:   cfg.Prefs,
			Motion:  cfg.Motion,
		}),
	}
	s.router = NewRouter(cfg)
	s.router.Get("/ws", s.wsHub.HandleWebSocket)
	s.http = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Hub returns the WebSocket hub so callers can broadcast events.
func (s *Server) Hub() *WebSocketHub {
	return s.wsHub
}

// Router returns the HTTP handler for use with httptest.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the hub and broadcast loop, then serves on addr until
// Shutdown. It returns nil after a clean shutdown.
func (s *Server) Start(addr string) error {
	go s.wsHub.Run()
	s.wsHub.StartBroadcastLoop(s.cfg.Host, s.cfg.Streamer)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	log.Printf("🌐 API server starting on %s", ln.Addr())
	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops background workers and drains HTTP requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.wsHub.Stop()
	s.cfg.RateLimiter.Stop()
	return s.http.Shutdown(ctx)
}
