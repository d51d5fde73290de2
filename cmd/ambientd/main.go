package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"ambient-focus/internal/ambient"
	"ambient-focus/internal/api"
	"ambient-focus/internal/config"
	"ambient-focus/internal/feedback"
	"ambient-focus/internal/host"
	"ambient-focus/internal/journal"
	"ambient-focus/internal/motion"
	"ambient-focus/internal/prefs"
	"ambient-focus/internal/streaming"

	"github.com/gopxl/beep"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file from parent directory
	if err := godotenv.Load("../.env"); err != nil {
		if err := godotenv.Load(".env"); err != nil {
			log.Println("💡 No .env file found, using environment variables only")
		}
	} else {
		log.Println("✅ Loaded environment from ../.env")
	}

	log.Println("🌌 ================================")
	log.Println("🌌  AMBIENT FOCUS - HEADLESS ENGINE")
	log.Println("🌌 ================================")

	cfg := config.Load()

	// Preferences override the env defaults for user-facing settings.
	var store *prefs.Store
	if cfg.Prefs.Enabled {
		s, err := prefs.Open(cfg.Prefs.AppName)
		if err != nil {
			log.Printf("⚠️ Preferences unavailable, using memory: %v", err)
			s = prefs.NewStore(prefs.NewMemoryBackend())
		}
		store = s
	} else {
		store = prefs.NewStore(prefs.NewMemoryBackend())
	}
	settings := store.Load(prefs.Settings{
		Mode:         cfg.Engine.Mode,
		Intensity:    cfg.Engine.Intensity,
		StarSpeed:    cfg.Engine.StarSpeed,
		SoundEnabled: cfg.Feedback.SoundEnabled,
	})

	mode, ok := ambient.ParseMode(settings.Mode)
	if !ok {
		log.Printf("⚠️ Unknown mode %q, using %s", settings.Mode, ambient.ModeAmbient)
		mode = ambient.ModeAmbient
	}

	seed := cfg.Engine.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	engineOpts := ambient.Options{
		Mode:          mode,
		Intensity:     settings.Intensity,
		StarSpeed:     settings.StarSpeed,
		ReducedMotion: cfg.Engine.ReducedMotion,
		Viewport: ambient.Viewport{
			Width:  cfg.Viewport.Width,
			Height: cfg.Viewport.Height,
			DPR:    cfg.Viewport.DPR,
		},
		Seed: seed,
	}
	log.Printf("🎨 Config: %s mode, intensity %.2f, star speed %.2f, %gx%g@%g, %d FPS, seed %d",
		mode, settings.Intensity, settings.StarSpeed,
		cfg.Viewport.Width, cfg.Viewport.Height, cfg.Viewport.DPR, cfg.Engine.FPS, seed)

	// Journal
	var recorder *journal.Recorder
	var hostJournal host.Journal
	if cfg.Journal.Path != "" {
		rec, err := journal.Create(cfg.Journal.Path)
		if err != nil {
			log.Printf("⚠️ Journal disabled: %v", err)
		} else {
			rec.Start()
			rec.Session(journal.Session{
				Version:       journal.Version,
				Seed:          engineOpts.Seed,
				Mode:          engineOpts.Mode,
				Intensity:     engineOpts.Intensity,
				StarSpeed:     engineOpts.StarSpeed,
				ReducedMotion: engineOpts.ReducedMotion,
				Viewport:      engineOpts.Viewport,
				StartedAt:     time.Now(),
			})
			recorder = rec
			hostJournal = rec
			log.Printf("📝 Journal: %s", cfg.Journal.Path)
		}
	}

	// The API server owns the websocket hub; the host hooks need it before
	// the server exists, so they go through this indirection.
	var hub *api.WebSocketHub
	broadcast := func(event string, data interface{}) {
		if hub != nil {
			hub.Broadcast(event, data)
		}
	}

	// Headless: the ping is delivered to clients, which fetch the WAV once.
	player := feedback.NewPlayer(feedback.Config{
		Enabled:    settings.SoundEnabled,
		SampleRate: cfg.Feedback.SampleRate,
		Volume:     cfg.Feedback.Volume,
	}, feedback.SinkFunc(func(beep.Streamer) {
		broadcast("ambient:ping", map[string]string{"url": "/api/audio/tap.wav"})
	}))

	h, err := host.New(host.Config{
		FPS:       cfg.Engine.FPS,
		QueueSize: cfg.Engine.QueueSize,
		Engine:    engineOpts,
		Journal:   hostJournal,
		OnTap: func() {
			api.RecordTap()
			player.Tap()
			broadcast("ambient:tap", map[string]int64{"taps": player.Taps()})
		},
		OnFrame: api.RecordFrame,
		OnCommand: func(cmd ambient.Command, res ambient.Result) {
			api.RecordCommand(cmd.Kind(), res.Applied)
		},
	})
	if err != nil {
		log.Fatalf("❌ Failed to create engine host: %v", err)
	}

	reduced := motion.NewSignal(cfg.Engine.ReducedMotion)
	unbindMotion := h.BindMotion(reduced)

	// Restream
	var streamer api.StreamerInterface
	if cfg.Stream.Enabled() {
		streamer = streaming.NewStreamManager(h.Frames(), streaming.StreamConfig{
			FFmpegPath: cfg.Stream.FFmpegPath,
			OutputURL:  cfg.Stream.Output,
			Format:     cfg.Stream.Format,
			FPS:        cfg.Stream.FPS,
			Bitrate:    cfg.Stream.Bitrate,
			Width:      cfg.Stream.Width,
			Height:     cfg.Stream.Height,
		})
		log.Printf("📡 Restream output: %s (start via POST /api/stream/start)", cfg.Stream.Output)
	} else {
		streamer = streaming.NewNoOpStreamer()
		log.Println("💡 Restream disabled (set STREAM_OUTPUT to enable)")
	}

	stopDebug := api.StartDebugServer(cfg.Observability)

	auth := api.NewControlAuth(cfg.Server.ControlToken)
	if auth.Enabled() {
		log.Println("🔐 Control routes require CONTROL_TOKEN")
	} else {
		log.Println("⚠️ Control routes are open (set CONTROL_TOKEN to protect them)")
	}

	server := api.NewServer(api.RouterConfig{
		Host:     h,
		Streamer: streamer,
		Sound:    player,
		Prefs:    store,
		Motion:   reduced,
		Auth:     auth,
		RateLimitConfig: &api.RateLimitConfig{
			RequestsPerSecond: cfg.Server.RateLimitRPS,
			Burst:             cfg.Server.RateLimitBurst,
			CleanupInterval:   api.DefaultRateLimitConfig.CleanupInterval,
		},
		CORSOrigins: cfg.Server.CORSOrigins,
	})
	hub = server.Hub()

	h.Start()
	log.Println("✅ Engine host started")

	if recorder != nil {
		go reportJournal(recorder, h)
	}

	addr := ":" + strconv.Itoa(cfg.Server.Port)
	go func() {
		log.Printf("🌐 API server on http://localhost%s", addr)
		if err := server.Start(addr); err != nil {
			log.Fatalf("❌ Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("✅ Server ready! Press Ctrl+C to stop.")
	<-quit

	log.Println("🛑 Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("⚠️ API shutdown: %v", err)
	}
	streamer.Stop()
	unbindMotion()
	h.Stop()
	if recorder != nil {
		recorder.Stop()
	}
	if err := stopDebug(ctx); err != nil {
		log.Printf("⚠️ Debug server shutdown: %v", err)
	}
	log.Println("👋 Goodbye!")
}

// reportJournal mirrors journal counters into metrics until the host stops.
func reportJournal(rec *journal.Recorder, h *host.Host) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	var lastDropped uint64
	for range ticker.C {
		if !h.Running() {
			return
		}
		s := rec.Stats()
		api.UpdateJournalStats(s.Total, s.Dropped, s.Pending)
		if s.Dropped > lastDropped {
			log.Printf("⚠️ Journal dropped %d entries; replay will diverge", s.Dropped-lastDropped)
			lastDropped = s.Dropped
		}
	}
}
