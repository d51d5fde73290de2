// Package config provides centralized configuration management.
// Every binary reads its settings from here; environment variables
// override the defaults.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int
	CORSOrigins     []string
	RateLimitRPS    float64
	RateLimitBurst  int
	ControlToken    string // empty disables auth on control routes
	ShutdownTimeout time.Duration
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:            3000,
		RateLimitRPS:    20, // pointer updates arrive in bursts
		RateLimitBurst:  40,
		ShutdownTimeout: 5 * time.Second,
	}
}

// ServerFromEnv returns server configuration with environment overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if origins := getEnvList("CORS_ORIGINS"); len(origins) > 0 {
		cfg.CORSOrigins = origins
	}
	if rps := getEnvFloat("RATE_LIMIT_RPS", 0); rps > 0 {
		cfg.RateLimitRPS = rps
	}
	if b := getEnvInt("RATE_LIMIT_BURST", 0); b > 0 {
		cfg.RateLimitBurst = b
	}
	cfg.ControlToken = os.Getenv("CONTROL_TOKEN")
	if d := getEnvDuration("SHUTDOWN_TIMEOUT", 0); d > 0 {
		cfg.ShutdownTimeout = d
	}

	return cfg
}

// =============================================================================
// VIEWPORT & ENGINE CONFIGURATION
// =============================================================================

// ViewportConfig is the initial surface size of a headless host.
type ViewportConfig struct {
	Width  float64
	Height float64
	DPR    float64
}

// DefaultViewport returns a 720p viewport at DPR 1.
func DefaultViewport() ViewportConfig {
	return ViewportConfig{Width: 1280, Height: 720, DPR: 1}
}

// ViewportFromEnv returns viewport configuration with environment overrides.
func ViewportFromEnv() ViewportConfig {
	cfg := DefaultViewport()

	if w := getEnvFloat("VIEWPORT_WIDTH", 0); w > 0 {
		cfg.Width = w
	}
	if h := getEnvFloat("VIEWPORT_HEIGHT", 0); h > 0 {
		cfg.Height = h
	}
	if d := getEnvFloat("VIEWPORT_DPR", 0); d > 0 {
		cfg.DPR = d
	}

	return cfg
}

// EngineConfig holds the starting engine parameters. Stored preferences
// take precedence over Mode, Intensity and StarSpeed.
type EngineConfig struct {
	FPS           int
	Mode          string
	Intensity     float64
	StarSpeed     float64
	ReducedMotion bool
	Seed          int64 // 0 picks a time-based seed
	QueueSize     int
}

// DefaultEngine returns the default engine configuration.
func DefaultEngine() EngineConfig {
	return EngineConfig{
		FPS:       60,
		Mode:      "ambient",
		Intensity: 0.65,
		StarSpeed: 1,
		QueueSize: 256,
	}
}

// EngineFromEnv returns engine configuration with environment overrides.
func EngineFromEnv() EngineConfig {
	cfg := DefaultEngine()

	if fps := getEnvInt("AMBIENT_FPS", 0); fps > 0 {
		cfg.FPS = fps
	}
	if m := os.Getenv("AMBIENT_MODE"); m != "" {
		cfg.Mode = m
	}
	if v := getEnvFloat("AMBIENT_INTENSITY", 0); v > 0 {
		cfg.Intensity = v
	}
	if v := getEnvFloat("AMBIENT_STAR_SPEED", 0); v > 0 {
		cfg.StarSpeed = v
	}
	cfg.ReducedMotion = getEnvBool("REDUCED_MOTION", cfg.ReducedMotion)
	if s := getEnvInt64("AMBIENT_SEED", 0); s != 0 {
		cfg.Seed = s
	}
	if q := getEnvInt("COMMAND_QUEUE_SIZE", 0); q > 0 {
		cfg.QueueSize = q
	}

	return cfg
}

// =============================================================================
// FEEDBACK CONFIGURATION
// =============================================================================

// FeedbackConfig holds tap sound settings.
type FeedbackConfig struct {
	SoundEnabled bool
	SampleRate   int
	Volume       float64 // multiplier on the ping volume
}

// DefaultFeedback returns the default feedback configuration.
func DefaultFeedback() FeedbackConfig {
	return FeedbackConfig{
		SoundEnabled: true,
		SampleRate:   44100,
		Volume:       1,
	}
}

// FeedbackFromEnv returns feedback configuration with environment overrides.
func FeedbackFromEnv() FeedbackConfig {
	cfg := DefaultFeedback()

	cfg.SoundEnabled = getEnvBool("SOUND_ENABLED", cfg.SoundEnabled)
	if sr := getEnvInt("SOUND_SAMPLE_RATE", 0); sr > 0 {
		cfg.SampleRate = sr
	}
	if v := getEnvFloat("SOUND_VOLUME", -1); v >= 0 {
		cfg.Volume = v
	}

	return cfg
}

// =============================================================================
// STREAM CONFIGURATION
// =============================================================================

// StreamConfig holds FFmpeg restream settings. An empty Output disables
// the restream.
type StreamConfig struct {
	Output     string
	Format     string
	FFmpegPath string
	FPS        int
	Bitrate    int
	Width      int
	Height     int
}

// DefaultStream returns the default stream configuration.
func DefaultStream() StreamConfig {
	return StreamConfig{
		Format:     "flv",
		FFmpegPath: "ffmpeg",
		FPS:        30,
		Bitrate:    2500,
	}
}

// StreamFromEnv returns stream configuration with environment overrides.
func StreamFromEnv() StreamConfig {
	cfg := DefaultStream()

	cfg.Output = os.Getenv("STREAM_OUTPUT")
	if f := os.Getenv("STREAM_FORMAT"); f != "" {
		cfg.Format = f
	}
	if p := os.Getenv("FFMPEG_PATH"); p != "" {
		cfg.FFmpegPath = p
	}
	if fps := getEnvInt("STREAM_FPS", 0); fps > 0 {
		cfg.FPS = fps
	}
	if br := getEnvInt("STREAM_BITRATE", 0); br > 0 {
		cfg.Bitrate = br
	}
	if w := getEnvInt("STREAM_WIDTH", 0); w > 0 {
		cfg.Width = w
	}
	if h := getEnvInt("STREAM_HEIGHT", 0); h > 0 {
		cfg.Height = h
	}

	return cfg
}

// Enabled reports whether a restream output is configured.
func (c StreamConfig) Enabled() bool {
	return c.Output != ""
}

// =============================================================================
// PERSISTENCE CONFIGURATION
// =============================================================================

// PrefsConfig controls where preferences are stored.
type PrefsConfig struct {
	Enabled bool
	AppName string
}

// DefaultPrefs returns the default preference configuration.
func DefaultPrefs() PrefsConfig {
	return PrefsConfig{Enabled: true, AppName: "pufi_focus"}
}

// PrefsFromEnv returns preference configuration with environment overrides.
func PrefsFromEnv() PrefsConfig {
	cfg := DefaultPrefs()

	cfg.Enabled = getEnvBool("PREFS_ENABLED", cfg.Enabled)
	if n := os.Getenv("PREFS_APP_NAME"); n != "" {
		cfg.AppName = n
	}

	return cfg
}

// JournalConfig controls the replay journal. An empty Path disables it.
type JournalConfig struct {
	Path string
}

// DefaultJournal returns the default journal configuration.
func DefaultJournal() JournalConfig {
	return JournalConfig{}
}

// JournalFromEnv returns journal configuration with environment overrides.
func JournalFromEnv() JournalConfig {
	cfg := DefaultJournal()
	cfg.Path = os.Getenv("JOURNAL_PATH")
	return cfg
}

// =============================================================================
// OBSERVABILITY CONFIGURATION
// =============================================================================

// ObservabilityConfig configures the debug server.
type ObservabilityConfig struct {
	Enabled       bool
	ListenAddr    string // loopback only unless AllowExternal
	AllowExternal bool
	BasicAuthUser string
	BasicAuthPass string
}

// DefaultObservability returns safe defaults.
func DefaultObservability() ObservabilityConfig {
	return ObservabilityConfig{
		Enabled:    true,
		ListenAddr: "127.0.0.1:6060",
	}
}

// ObservabilityFromEnv returns debug server configuration with environment overrides.
func ObservabilityFromEnv() ObservabilityConfig {
	cfg := DefaultObservability()

	if getEnvBool("DISABLE_DEBUG_SERVER", false) {
		cfg.Enabled = false
	}
	if addr := os.Getenv("DEBUG_ADDR"); addr != "" {
		cfg.ListenAddr = addr
	}
	cfg.AllowExternal = getEnvBool("ALLOW_DEBUG_EXTERNAL", false)
	cfg.BasicAuthUser = os.Getenv("DEBUG_USER")
	cfg.BasicAuthPass = os.Getenv("DEBUG_PASS")

	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Server        ServerConfig
	Viewport      ViewportConfig
	Engine        EngineConfig
	Feedback      FeedbackConfig
	Stream        StreamConfig
	Prefs         PrefsConfig
	Journal       JournalConfig
	Observability ObservabilityConfig
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Server:        ServerFromEnv(),
		Viewport:      ViewportFromEnv(),
		Engine:        EngineFromEnv(),
		Feedback:      FeedbackFromEnv(),
		Stream:        StreamFromEnv(),
		Prefs:         PrefsFromEnv(),
		Journal:       JournalFromEnv(),
		Observability: ObservabilityFromEnv(),
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
