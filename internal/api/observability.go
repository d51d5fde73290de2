package api

import (
	"context"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"strconv"
	"time"

	"ambient-focus/internal/ambient"
	"ambient-focus/internal/config"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics use bounded label values only.
var (
	frameUpdateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ambient_frame_update_seconds",
		Help:    "Time spent in Engine.Update",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.002, 0.005, 0.01},
	})

	frameRenderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ambient_frame_render_seconds",
		Help:    "Time spent rendering a frame",
		Buckets: []float64{0.001, 0.002, 0.005, 0.01, 0.016, 0.033, 0.05},
	})

	frameDelta = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ambient_frame_delta_seconds",
		Help:    "Clamped frame delta passed to Update",
		Buckets: []float64{0.008, 0.016, 0.025, 0.033, 0.05},
	})

	entityCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ambient_entities",
		Help: "Live entities by kind",
	}, []string{"kind"}) // particles, blobs, shooting_stars, ripples

	particleTarget = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ambient_particle_target",
		Help: "Particle count the current settings call for",
	})

	engineParam = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ambient_parameter",
		Help: "Current engine parameters",
	}, []string{"name"}) // intensity, star_speed, paused, reduced_motion

	commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ambient_commands_total",
		Help: "Commands applied to the engine",
	}, []string{"kind", "applied"})

	tapsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ambient_taps_total",
		Help: "Accepted clicks",
	})

	journalEntries = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "journal_entries",
		Help: "Journal entries by state",
	}, []string{"state"}) // total, dropped, pending

	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connection_rejected_total",
		Help: "Requests or connections rejected",
	}, []string{"reason"}) // rate_limit, origin, unauthorized, ws_total_limit, ws_ip_limit

	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"})

	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections_active",
		Help: "Currently active WebSocket connections",
	})

	wsMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_messages_total",
		Help: "Total WebSocket broadcasts sent",
	})

	wsCommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "websocket_commands_total",
		Help: "Inbound WebSocket commands by outcome",
	}, []string{"result"}) // accepted, invalid, rate_limit, unauthorized, queue_full
)

// RecordFrame records one engine frame.
func RecordFrame(t ambient.FrameTiming) {
	frameUpdateDuration.Observe(t.Update.Seconds())
	frameRenderDuration.Observe(t.Render.Seconds())
	frameDelta.Observe(t.Delta)
}

// UpdateEngineGauges mirrors a stats snapshot into gauges.
func UpdateEngineGauges(s ambient.Stats) {
	entityCount.WithLabelValues("particles").Set(float64(s.Particles))
	entityCount.WithLabelValues("blobs").Set(float64(s.Blobs))
	entityCount.WithLabelValues("shooting_stars").Set(float64(s.ShootingStars))
	entityCount.WithLabelValues("ripples").Set(float64(s.Ripples))
	particleTarget.Set(float64(s.ParticleTarget))
	engineParam.WithLabelValues("intensity").Set(s.Intensity)
	engineParam.WithLabelValues("star_speed").Set(s.StarSpeed)
	engineParam.WithLabelValues("paused").Set(boolGauge(s.Paused))
	engineParam.WithLabelValues("reduced_motion").Set(boolGauge(s.ReducedMotion))
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// RecordCommand counts an applied command.
func RecordCommand(kind string, applied bool) {
	commandsTotal.WithLabelValues(kind, strconv.FormatBool(applied)).Inc()
}

// RecordTap counts an accepted click.
func RecordTap() {
	tapsTotal.Inc()
}

// UpdateJournalStats mirrors journal counters into gauges.
func UpdateJournalStats(total, dropped, pending uint64) {
	journalEntries.WithLabelValues("total").Set(float64(total))
	journalEntries.WithLabelValues("dropped").Set(float64(dropped))
	journalEntries.WithLabelValues("pending").Set(float64(pending))
}

// RecordConnectionRejected increments the rejection counter.
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// RecordRequest records HTTP request metrics.
func RecordRequest(method, endpoint string, status int, duration time.Duration) {
	requestLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	requestTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
}

// UpdateWSConnections sets the websocket connection gauge.
func UpdateWSConnections(count int) {
	wsConnectionsActive.Set(float64(count))
}

// IncrementWSMessages counts a websocket broadcast.
func IncrementWSMessages() {
	wsMessagesTotal.Inc()
}

// RecordWSCommand counts an inbound websocket command by outcome.
func RecordWSCommand(result string) {
	wsCommandsTotal.WithLabelValues(result).Inc()
}

// metricsMiddleware labels requests by chi route pattern so the
// endpoint label stays bounded.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				endpoint = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		RecordRequest(r.Method, endpoint, status, time.Since(start))
	})
}

// isLoopback reports whether addr binds to a loopback interface.
func isLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// DebugHandler serves pprof, /metrics and /health.
func DebugHandler(cfg config.ObservabilityConfig) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	if cfg.BasicAuthUser != "" {
		return basicAuthMiddleware(cfg.BasicAuthUser, cfg.BasicAuthPass, mux)
	}
	return mux
}

// StartDebugServer starts the internal observability server. It binds
// to loopback unless AllowExternal is set. The returned shutdown func is
// a no-op when the server is disabled.
func StartDebugServer(cfg config.ObservabilityConfig) (shutdown func(context.Context) error) {
	if !cfg.Enabled {
		log.Println("📊 Debug server disabled")
		return func(context.Context) error { return nil }
	}

	if !isLoopback(cfg.ListenAddr) && !cfg.AllowExternal {
		log.Println("⚠️ Debug server forced to localhost for security")
		cfg.ListenAddr = "127.0.0.1:6060"
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           DebugHandler(cfg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("📊 Debug server starting on %s", cfg.ListenAddr)
		log.Printf("   - pprof:   http://%s/debug/pprof/", cfg.ListenAddr)
		log.Printf("   - metrics: http://%s/metrics", cfg.ListenAddr)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("⚠️ Debug server error: %v", err)
		}
	}()

	return srv.Shutdown
}

func basicAuthMiddleware(user, pass string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || u != user || p != pass {
			w.Header().Set("WWW-Authenticate", `Basic realm="debug"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
