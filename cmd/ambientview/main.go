package main

import (
	"errors"
	"log"
	"time"

	"ambient-focus/internal/ambient"
	"ambient-focus/internal/canvas"
	"ambient-focus/internal/config"
	"ambient-focus/internal/feedback"
	"ambient-focus/internal/motion"
	"ambient-focus/internal/prefs"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/joho/godotenv"
)

const (
	windowWidth  = 1280
	windowHeight = 720
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("💡 No .env file found, using environment variables only")
	}
	cfg := config.Load()

	store, err := prefs.Open(cfg.Prefs.AppName)
	if err != nil {
		log.Printf("⚠️ Preferences unavailable, using memory: %v", err)
		store = prefs.NewStore(prefs.NewMemoryBackend())
	}
	settings := store.Load(prefs.Settings{
		Mode:         cfg.Engine.Mode,
		Intensity:    cfg.Engine.Intensity,
		StarSpeed:    cfg.Engine.StarSpeed,
		SoundEnabled: cfg.Feedback.SoundEnabled,
	})
	mode, _ := ambient.ParseMode(settings.Mode)

	player := feedback.NewPlayer(feedback.Config{
		Enabled:    settings.SoundEnabled,
		SampleRate: cfg.Feedback.SampleRate,
		Volume:     cfg.Feedback.Volume,
	}, speakerSink(cfg.Feedback.SampleRate))

	dpr := canvas.NormalizeDPR(ebiten.Monitor().DeviceScaleFactor())
	vp := ambient.Viewport{Width: windowWidth, Height: windowHeight, DPR: dpr}
	surface, err := canvas.New(vp.Width, vp.Height, vp.DPR)
	if err != nil {
		log.Fatalf("❌ Failed to create surface: %v", err)
	}

	sched := ambient.NewFrameScheduler(ambient.WallClock())
	engine, err := ambient.New(surface, ambient.Options{
		Mode:      mode,
		Intensity: settings.Intensity,
		StarSpeed: settings.StarSpeed,
		Viewport:  vp,
		Seed:      time.Now().UnixNano(),
		Scheduler: sched,
		OnTap:     player.Tap,
	})
	if err != nil {
		log.Fatalf("❌ Failed to create engine: %v", err)
	}

	reduced := motion.NewSignal(cfg.Engine.ReducedMotion)
	unbind := engine.BindMotionPreference(reduced)
	defer unbind()
	engine.Start()

	g := newViewer(engine, sched, surface, store, player, reduced, vp)

	ebiten.SetWindowSize(windowWidth, windowHeight)
	ebiten.SetWindowTitle("Ambient Focus - space: pause, f/a/n: mode, r: reset, m: motion, s: sound")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	log.Printf("🌌 Viewer started in %s mode", engine.Mode())
	if err := ebiten.RunGame(g); err != nil && !errors.Is(err, ebiten.Termination) {
		log.Fatalf("❌ %v", err)
	}
	log.Println("👋 Goodbye!")
}

// speakerSink plays pings through the default audio device. Without one,
// pings are discarded.
func speakerSink(sampleRate int) feedback.Sink {
	if sampleRate <= 0 {
		sampleRate = 44100
	}
	sr := beep.SampleRate(sampleRate)
	if err := speaker.Init(sr, sr.N(time.Second/30)); err != nil {
		log.Printf("⚠️ Audio output unavailable: %v", err)
		return feedback.SinkFunc(func(beep.Streamer) {})
	}
	return feedback.SinkFunc(func(s beep.Streamer) {
		speaker.Play(s)
	})
}
