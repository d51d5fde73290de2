package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"ambient-focus/internal/ambient"
	"ambient-focus/internal/host"
	"ambient-focus/internal/motion"
	"ambient-focus/internal/prefs"
	"ambient-focus/internal/streaming"
)

// MockStreamer implements StreamerInterface for testing
type MockStreamer struct {
	streaming bool
	startErr  error
}

func (m *MockStreamer) Start() error {
	if m.startErr != nil {
		return m.startErr
	}
	if m.streaming {
		return streaming.ErrAlreadyStreaming
	}
	m.streaming = true
	return nil
}

func (m *MockStreamer) Stop() { m.streaming = false }

func (m *MockStreamer) IsStreaming() bool { return m.streaming }

func (m *MockStreamer) GetStats() map[string]interface{} {
	return map[string]interface{}{"streaming": m.streaming}
}

// MockSound implements SoundInterface for testing
type MockSound struct {
	enabled bool
}

func (m *MockSound) Enabled() bool { return m.enabled }

func (m *MockSound) SetEnabled(on bool) bool {
	m.enabled = on
	return on
}

func (m *MockSound) TapWAV() ([]byte, error) {
	return []byte("RIFF....WAVE"), nil
}

func newTestHost(t *testing.T) *host.Host {
	t.Helper()
	h, err := host.New(host.Config{
		FPS: 30,
		Engine: ambient.Options{
			Viewport: ambient.Viewport{Width: 160, Height: 90, DPR: 1},
			Seed:     7,
		},
	})
	if err != nil {
		t.Fatalf("Failed to create host: %v", err)
	}
	h.Start()
	t.Cleanup(h.Stop)
	return h
}

type testServer struct {
	*httptest.Server
	host     *host.Host
	streamer *MockStreamer
	sound    *MockSound
	prefs    *prefs.Store
}

func newTestServer(t *testing.T, mutate func(cfg *RouterConfig)) *testServer {
	t.Helper()
	ts := &testServer{
		host:     newTestHost(t),
		streamer: &MockStreamer{},
		sound:    &MockSound{enabled: true},
		prefs:    prefs.NewStore(prefs.NewMemoryBackend()),
	}
	cfg := RouterConfig{
		Host:     ts.host,
		Streamer: ts.streamer,
		Sound:    ts.sound,
		Prefs:    ts.prefs,
		RateLimitConfig: &RateLimitConfig{
			RequestsPerSecond: 1000,
			Burst:             1000,
			CleanupInterval:   time.Hour,
		},
		DisableLogging: true,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	ts.Server = httptest.NewServer(NewRouter(cfg))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *testServer) post(t *testing.T, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(ts.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeResult(t *testing.T, resp *http.Response) ambient.Result {
	t.Helper()
	var res ambient.Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return res
}

func TestNewRouterHasNoSideEffects(t *testing.T) {
	router := NewRouter(RouterConfig{
		Host:     newTestHost(t),
		Streamer: &MockStreamer{},
		RateLimitConfig: &RateLimitConfig{
			RequestsPerSecond: 1000,
			Burst:             1000,
			CleanupInterval:   time.Hour,
		},
	})
	if router == nil {
		t.Fatal("Router should not be nil")
	}
}

func TestAPIGetState(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/api/state")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var state struct {
		Engine       ambient.Stats `json:"engine"`
		Streaming    bool          `json:"streaming"`
		SoundEnabled bool          `json:"soundEnabled"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if state.Engine.Mode != ambient.ModeAmbient {
		t.Errorf("Expected mode ambient, got %s", state.Engine.Mode)
	}
	if state.Engine.Particles == 0 {
		t.Error("Expected particles in the initial state")
	}
	if !state.SoundEnabled {
		t.Error("Expected sound enabled")
	}
}

func TestAPISetModePersists(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := ts.post(t, "/api/mode", `{"mode":"night"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	res := decodeResult(t, resp)
	if res.Mode != ambient.ModeNight {
		t.Errorf("Expected night, got %s", res.Mode)
	}
	if got := prefs.Get(ts.prefs, prefs.KeyMode, ""); got != "night" {
		t.Errorf("Expected persisted mode night, got %q", got)
	}

	resp = ts.post(t, "/api/mode", `{"mode":"disco"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown mode, got %d", resp.StatusCode)
	}
}

func TestAPISetIntensityClamps(t *testing.T) {
	ts := newTestServer(t, nil)

	res := decodeResult(t, ts.post(t, "/api/intensity", `{"value":7}`))
	if res.Intensity != 1 {
		t.Errorf("Expected intensity clamped to 1, got %v", res.Intensity)
	}
	if got := prefs.Get(ts.prefs, prefs.KeyIntensity, 0.0); got != 1 {
		t.Errorf("Expected persisted intensity 1, got %v", got)
	}

	resp := ts.post(t, "/api/intensity", `{}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing value, got %d", resp.StatusCode)
	}
}

func TestAPIStarSpeed(t *testing.T) {
	ts := newTestServer(t, nil)

	res := decodeResult(t, ts.post(t, "/api/star-speed", `{"value":0.1}`))
	if res.StarSpeed != 0.4 {
		t.Errorf("Expected star speed clamped to 0.4, got %v", res.StarSpeed)
	}
}

func TestAPIPauseToggle(t *testing.T) {
	ts := newTestServer(t, nil)

	res := decodeResult(t, ts.post(t, "/api/pause", ""))
	if !res.Paused {
		t.Error("Expected empty body to toggle into paused")
	}
	res = decodeResult(t, ts.post(t, "/api/pause", `{"paused":false}`))
	if res.Paused {
		t.Error("Expected explicit resume")
	}
	resp := ts.post(t, "/api/pause", `{"paused":`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad JSON, got %d", resp.StatusCode)
	}
}

func TestAPIResizeValidation(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := ts.post(t, "/api/resize", `{"width":320,"height":200,"dpr":2}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	resp = ts.post(t, "/api/resize", `{"width":-5,"height":200,"dpr":1}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for negative width, got %d", resp.StatusCode)
	}
}

func TestAPIPointerAndClick(t *testing.T) {
	ts := newTestServer(t, nil)

	if resp := ts.post(t, "/api/pointer", `{"x":10}`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 without y, got %d", resp.StatusCode)
	}
	if resp := ts.post(t, "/api/pointer", `{"x":10,"y":20}`); resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
	if resp := ts.post(t, "/api/pointer/leave", ""); resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
	if resp := ts.post(t, "/api/click", `{"x":40,"y":40}`); resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}

	deadline := time.Now().Add(2 * time.Second)
	for ts.host.Snapshot().Stats.Ripples == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Expected a ripple after click")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestAPICommandEnvelope(t *testing.T) {
	ts := newTestServer(t, nil)

	body, err := ambient.EncodeCommand(ambient.SetMode{Mode: ambient.ModeFocus})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	res := decodeResult(t, ts.post(t, "/api/command", string(body)))
	if res.Mode != ambient.ModeFocus {
		t.Errorf("Expected focus, got %s", res.Mode)
	}
	if got := prefs.Get(ts.prefs, prefs.KeyMode, ""); got != "focus" {
		t.Errorf("Expected persisted mode focus, got %q", got)
	}

	resp := ts.post(t, "/api/command", `{"type":"explode"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown command, got %d", resp.StatusCode)
	}
}

func TestAPISoundToggle(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := ts.post(t, "/api/sound", "")
	var out map[string]bool
	json.NewDecoder(resp.Body).Decode(&out)
	if out["enabled"] {
		t.Error("Expected toggle to disable sound")
	}
	if got := prefs.Get(ts.prefs, prefs.KeySoundEnabled, true); got {
		t.Error("Expected persisted sound disabled")
	}

	wav, err := http.Get(ts.URL + "/api/audio/tap.wav")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer wav.Body.Close()
	if ct := wav.Header.Get("Content-Type"); ct != "audio/wav" {
		t.Errorf("Expected audio/wav, got %q", ct)
	}
}

func TestAPISoundUnavailable(t *testing.T) {
	ts := newTestServer(t, func(cfg *RouterConfig) { cfg.Sound = nil })

	resp, err := http.Get(ts.URL + "/api/sound")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp.StatusCode)
	}
}

func TestAPIGetFrame(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/api/frame?width=80")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Frame-Seq") == "" {
		t.Error("Expected X-Frame-Seq header")
	}
	img, err := png.Decode(resp.Body)
	if err != nil {
		t.Fatalf("Expected PNG body: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 80 || b.Dy() != 45 {
		t.Errorf("Expected 80x45 thumbnail, got %dx%d", b.Dx(), b.Dy())
	}

	bad, err := http.Get(ts.URL + "/api/frame?format=gif")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for gif, got %d", bad.StatusCode)
	}
}

func TestAPIStreamControl(t *testing.T) {
	ts := newTestServer(t, nil)

	if resp := ts.post(t, "/api/stream/start", ""); resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
	if !ts.streamer.IsStreaming() {
		t.Error("Streamer should be streaming after start")
	}
	if resp := ts.post(t, "/api/stream/start", ""); resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected 409 when already streaming, got %d", resp.StatusCode)
	}
	if resp := ts.post(t, "/api/stream/stop", ""); resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
	if ts.streamer.IsStreaming() {
		t.Error("Streamer should not be streaming after stop")
	}
}

func TestAPIStreamDisabled(t *testing.T) {
	ts := newTestServer(t, func(cfg *RouterConfig) {
		cfg.Streamer = &MockStreamer{startErr: streaming.ErrNoOutput}
	})
	if resp := ts.post(t, "/api/stream/start", ""); resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", resp.StatusCode)
	}

	ts = newTestServer(t, func(cfg *RouterConfig) {
		cfg.Streamer = &MockStreamer{startErr: errors.New("boom")}
	})
	if resp := ts.post(t, "/api/stream/start", ""); resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", resp.StatusCode)
	}
}

func TestAPIHostStopped(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.host.Stop()

	resp := ts.post(t, "/api/mode", `{"mode":"focus"}`)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 with host stopped, got %d", resp.StatusCode)
	}
}

func TestAPICORSHeaders(t *testing.T) {
	ts := newTestServer(t, func(cfg *RouterConfig) {
		cfg.CORSOrigins = []string{"http://test.example.com"}
	})

	req, _ := http.NewRequest("GET", ts.URL+"/api/state", nil)
	req.Header.Set("Origin", "http://test.example.com")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://test.example.com" {
		t.Errorf("Expected Access-Control-Allow-Origin 'http://test.example.com', got '%s'", got)
	}
}

func TestAPIRateLimiting(t *testing.T) {
	ts := newTestServer(t, func(cfg *RouterConfig) {
		cfg.RateLimitConfig = &RateLimitConfig{
			RequestsPerSecond: 1,
			Burst:             2,
			CleanupInterval:   time.Hour,
		}
	})

	var gotRateLimited bool
	for i := 0; i < 10; i++ {
		resp, err := http.Get(ts.URL + "/api/state")
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			gotRateLimited = true
			break
		}
	}

	if !gotRateLimited {
		t.Error("Expected to be rate limited after burst exceeded")
	}
}

func TestAPIControlRequiresToken(t *testing.T) {
	ts := newTestServer(t, func(cfg *RouterConfig) {
		cfg.Auth = NewControlAuth("s3cret")
	})

	resp := ts.post(t, "/api/mode", `{"mode":"focus"}`)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", resp.StatusCode)
	}

	// Reads stay public.
	state, err := http.Get(ts.URL + "/api/state")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	state.Body.Close()
	if state.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 for state, got %d", state.StatusCode)
	}

	req, _ := http.NewRequest("POST", ts.URL+"/api/mode", bytes.NewBufferString(`{"mode":"focus"}`))
	req.Header.Set("Authorization", "Bearer s3cret")
	authed, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	authed.Body.Close()
	if authed.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 with bearer token, got %d", authed.StatusCode)
	}
}

func TestAPIHealthz(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
}

func TestAPIFrameCacheWhilePaused(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.post(t, "/api/pause", `{"paused":true}`)

	var seqs []string
	for i := 0; i < 2; i++ {
		resp, err := http.Get(ts.URL + "/api/frame?format=jpeg")
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		resp.Body.Close()
		if ct := resp.Header.Get("Content-Type"); ct != "image/jpeg" {
			t.Errorf("Expected image/jpeg, got %q", ct)
		}
		seqs = append(seqs, resp.Header.Get("X-Frame-Seq"))
	}
	if seqs[0] != seqs[1] {
		t.Errorf("Expected the same frame while paused, got %v", seqs)
	}

	resp, err := http.Get(ts.URL + "/api/stats")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()
	var stats struct {
		FrameCache streaming.CacheStats `json:"frameCache"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if stats.FrameCache.Hits != 1 {
		t.Errorf("Expected 1 cache hit, got %+v", stats.FrameCache)
	}
}

func TestAPIMotionGoesThroughSignal(t *testing.T) {
	signal := motion.NewSignal(false)
	ts := newTestServer(t, func(cfg *RouterConfig) { cfg.Motion = signal })
	t.Cleanup(ts.host.BindMotion(signal))

	var notified atomic.Int32
	t.Cleanup(signal.Subscribe(func(bool) { notified.Add(1) }))

	res := decodeResult(t, ts.post(t, "/api/motion", `{"reduced":true}`))
	if !res.ReducedMotion {
		t.Error("Expected reducedMotion true in response")
	}
	if !signal.ReducedMotion() {
		t.Error("Expected the signal to follow /api/motion")
	}
	if !ts.host.Snapshot().Stats.ReducedMotion {
		t.Error("Expected the engine to follow the signal")
	}
	if n := notified.Load(); n != 1 {
		t.Errorf("Expected 1 signal notification, got %d", n)
	}

	res = decodeResult(t, ts.post(t, "/api/command", `{"type":"reduced_motion","reduced":false}`))
	if res.ReducedMotion || signal.ReducedMotion() {
		t.Errorf("Expected reduced motion off via command envelope, got result %v signal %v",
			res.ReducedMotion, signal.ReducedMotion())
	}
	if n := notified.Load(); n != 2 {
		t.Errorf("Expected 2 signal notifications, got %d", n)
	}
}

func TestAPIMotionWithoutSignal(t *testing.T) {
	ts := newTestServer(t, nil)
	res := decodeResult(t, ts.post(t, "/api/motion", `{"reduced":true}`))
	if !res.ReducedMotion || !ts.host.Snapshot().Stats.ReducedMotion {
		t.Error("Expected a direct reduced motion command to apply")
	}
}
