package api

import (
	"context"
	"net/http"
	"time"

	"ambient-focus/internal/ambient"
	"ambient-focus/internal/host"
	"ambient-focus/internal/streaming"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// HostInterface is the slice of host.Host the API calls. Keep it minimal
// so tests can mock it.
type HostInterface interface {
	Submit(ctx context.Context, cmd ambient.Command) (ambient.Result, error)
	Post(cmd ambient.Command) error
	Snapshot() host.Snapshot
	Stats() host.Stats
	Frames() *streaming.FrameStore
}

// StreamerInterface is implemented by streaming.StreamManager and
// streaming.NoOpStreamer.
type StreamerInterface interface {
	Start() error
	Stop()
	IsStreaming() bool
	GetStats() map[string]interface{}
}

// SoundInterface is implemented by feedback.Player.
type SoundInterface interface {
	Enabled() bool
	SetEnabled(on bool) bool
	TapWAV() ([]byte, error)
}

// PrefsInterface persists applied settings. *prefs.Store implements it.
type PrefsInterface interface {
	Set(key string, value any) error
}

// MotionInterface is the reduced motion preference the host follows.
// *motion.Signal implements it.
type MotionInterface interface {
	ReducedMotion() bool
	Set(reduced bool) bool
}

// DefaultRequestTimeout bounds every /api request.
const DefaultRequestTimeout = 10 * time.Second

// RouterConfig contains everything NewRouter needs. Host and Streamer are
// required; the rest is optional.
//
//	router := api.NewRouter(api.RouterConfig{
//	    Host:     mockHost,
//	    Streamer: streaming.NewNoOpStreamer(),
//	    RateLimitConfig: &api.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
//	})
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	Host     HostInterface
	Streamer StreamerInterface
	Sound    SoundInterface
	Prefs    PrefsInterface

	// Motion, when set, carries reduced motion changes to the host
	// instead of direct commands. The host must be bound to it.
	Motion MotionInterface

	// Auth guards control routes when non-nil.
	Auth *ControlAuth

	// RateLimiter is used as is when set; otherwise one is built from
	// RateLimitConfig or DefaultRateLimitConfig.
	RateLimiter     *IPRateLimiter
	RateLimitConfig *RateLimitConfig

	// CORSOrigins defaults to localhost on any port.
	CORSOrigins []string

	RequestTimeout time.Duration
	DisableLogging bool
}

type routerHandlers struct {
	host     HostInterface
	streamer StreamerInterface
	sound    SoundInterface
	prefs    PrefsInterface
	motion   MotionInterface
	auth     *ControlAuth
	limiter  *IPRateLimiter

	frameCache *streaming.EncodeCache
}

// NewRouter builds the HTTP router. It starts no goroutines beyond the
// rate limiter's cleanup loop and opens no listeners.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	// Rate limiting before CORS to reject early.
	limiter := cfg.RateLimiter
	if limiter == nil {
		rlCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rlCfg = *cfg.RateLimitConfig
		}
		limiter = NewIPRateLimiter(rlCfg)
	}
	r.Use(limiter.Middleware)

	origins := cfg.CORSOrigins
	if origins == nil {
		origins = DefaultCORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Control-Token"},
		ExposedHeaders:   []string{"X-Frame-Seq"},
		AllowCredentials: true,
	}))

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	h := &routerHandlers{
		host:     cfg.Host,
		streamer: cfg.Streamer,
		sound:    cfg.Sound,
		prefs:    cfg.Prefs,
		motion:   cfg.Motion,
		auth:     cfg.Auth,
		limiter:  limiter,

		frameCache: streaming.NewEncodeCache(streaming.DefaultEncodeCacheSize),
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]bool{"ok": true})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(metricsMiddleware)
		r.Use(middleware.Timeout(timeout))

		// Read-only
		r.Get("/state", h.handleGetState)
		r.Get("/stats", h.handleGetStats)
		r.Get("/frame", h.handleGetFrame)
		r.Get("/sound", h.handleGetSound)
		r.Get("/audio/tap.wav", h.handleTapWAV)
		r.Get("/stream/status", h.handleStreamStatus)

		// Session for browser clients
		r.Post("/auth/session", h.handleAuthSession)
		r.Get("/auth/status", h.handleAuthStatus)
		r.Post("/auth/logout", h.handleAuthLogout)

		// Control
		r.Group(func(r chi.Router) {
			r.Use(cfg.Auth.Middleware)

			r.Post("/mode", h.handleSetMode)
			r.Post("/intensity", h.handleSetIntensity)
			r.Post("/star-speed", h.handleSetStarSpeed)
			r.Post("/pause", h.handlePause)
			r.Post("/reset", h.handleReset)
			r.Post("/resize", h.handleResize)
			r.Post("/motion", h.handleMotion)
			r.Post("/pointer", h.handlePointer)
			r.Post("/pointer/leave", h.handlePointerLeave)
			r.Post("/click", h.handleClick)
			r.Post("/command", h.handleCommand)
			r.Post("/sound", h.handleSetSound)

			r.Post("/stream/start", h.handleStreamStart)
			r.Post("/stream/stop", h.handleStreamStop)
		})
	})

	return r
}
