package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Server.Port != 3000 {
		t.Errorf("Expected port 3000, got %d", cfg.Server.Port)
	}
	if cfg.Engine.Mode != "ambient" || cfg.Engine.Intensity != 0.65 || cfg.Engine.StarSpeed != 1 {
		t.Errorf("Unexpected engine defaults %+v", cfg.Engine)
	}
	if cfg.Viewport != DefaultViewport() {
		t.Errorf("Expected default viewport, got %+v", cfg.Viewport)
	}
	if cfg.Stream.Enabled() {
		t.Error("Expected restream disabled by default")
	}
	if cfg.Journal.Path != "" {
		t.Error("Expected journal disabled by default")
	}
	if cfg.Observability.ListenAddr != "127.0.0.1:6060" {
		t.Errorf("Expected loopback debug address, got %s", cfg.Observability.ListenAddr)
	}
	if cfg.Prefs.AppName != "pufi_focus" {
		t.Errorf("Expected pufi_focus app name, got %s", cfg.Prefs.AppName)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("CORS_ORIGINS", "http://a.test, ,http://b.test")
	t.Setenv("SHUTDOWN_TIMEOUT", "2s")
	t.Setenv("VIEWPORT_WIDTH", "640.5")
	t.Setenv("VIEWPORT_DPR", "2")
	t.Setenv("AMBIENT_MODE", "night")
	t.Setenv("AMBIENT_SEED", "-12")
	t.Setenv("REDUCED_MOTION", "true")
	t.Setenv("SOUND_ENABLED", "false")
	t.Setenv("STREAM_OUTPUT", "rtmp://example/live")
	t.Setenv("JOURNAL_PATH", "session.jsonl")
	t.Setenv("DISABLE_DEBUG_SERVER", "1")

	cfg := Load()

	if cfg.Server.Port != 8080 {
		t.Errorf("Expected port 8080, got %d", cfg.Server.Port)
	}
	if !reflect.DeepEqual(cfg.Server.CORSOrigins, []string{"http://a.test", "http://b.test"}) {
		t.Errorf("Unexpected origins %v", cfg.Server.CORSOrigins)
	}
	if cfg.Server.ShutdownTimeout != 2*time.Second {
		t.Errorf("Expected 2s shutdown timeout, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Viewport.Width != 640.5 || cfg.Viewport.DPR != 2 || cfg.Viewport.Height != 720 {
		t.Errorf("Unexpected viewport %+v", cfg.Viewport)
	}
	if cfg.Engine.Mode != "night" || cfg.Engine.Seed != -12 || !cfg.Engine.ReducedMotion {
		t.Errorf("Unexpected engine config %+v", cfg.Engine)
	}
	if cfg.Feedback.SoundEnabled {
		t.Error("Expected sound disabled")
	}
	if !cfg.Stream.Enabled() {
		t.Error("Expected restream enabled")
	}
	if cfg.Journal.Path != "session.jsonl" {
		t.Errorf("Unexpected journal path %q", cfg.Journal.Path)
	}
	if cfg.Observability.Enabled {
		t.Error("Expected debug server disabled")
	}
}

func TestInvalidEnvFallsBack(t *testing.T) {
	t.Setenv("PORT", "not-a-port")
	t.Setenv("AMBIENT_FPS", "-5")
	t.Setenv("REDUCED_MOTION", "maybe")
	t.Setenv("SOUND_VOLUME", "abc")

	cfg := Load()

	if cfg.Server.Port != 3000 {
		t.Errorf("Expected default port, got %d", cfg.Server.Port)
	}
	if cfg.Engine.FPS != 60 {
		t.Errorf("Expected default FPS, got %d", cfg.Engine.FPS)
	}
	if cfg.Engine.ReducedMotion {
		t.Error("Expected reduced motion default false")
	}
	if cfg.Feedback.Volume != 1 {
		t.Errorf("Expected default volume, got %v", cfg.Feedback.Volume)
	}
}
