package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"ambient-focus/internal/ambient"
	"ambient-focus/internal/host"
	"ambient-focus/internal/prefs"
	"ambient-focus/internal/streaming"
)

const maxBodyBytes = 64 << 10

// errEmptyBody lets optional-body handlers tell "no body" from bad JSON.
var errEmptyBody = errors.New("empty body")

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

// submit runs cmd on the host and writes an error response on failure.
func (h *routerHandlers) submit(w http.ResponseWriter, r *http.Request, cmd ambient.Command) (ambient.Result, bool) {
	res, err := h.host.Submit(r.Context(), cmd)
	if err != nil {
		writeSubmitError(w, err)
		return res, false
	}
	return res, true
}

func writeSubmitError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, host.ErrNotRunning), errors.Is(err, host.ErrQueueFull):
		writeError(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, "Engine did not respond in time", http.StatusGatewayTimeout)
	default:
		writeError(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *routerHandlers) persist(key string, value any) {
	persistSetting(h.prefs, key, value)
}

func persistSetting(p PrefsInterface, key string, value any) {
	if p == nil {
		return
	}
	if err := p.Set(key, value); err != nil {
		log.Printf("⚠️ Failed to persist %s: %v", key, err)
	}
}

// persistApplied saves the setting cmd changed, using the value the
// engine settled on.
func persistApplied(p PrefsInterface, cmd ambient.Command, res ambient.Result) {
	switch cmd.(type) {
	case ambient.SetMode:
		if res.Applied {
			persistSetting(p, prefs.KeyMode, string(res.Mode))
		}
	case ambient.SetIntensity:
		persistSetting(p, prefs.KeyIntensity, res.Intensity)
	case ambient.SetStarSpeed:
		persistSetting(p, prefs.KeyStarSpeed, res.StarSpeed)
	}
}

const (
	motionSyncTimeout = time.Second
	motionSyncPoll    = 5 * time.Millisecond
)

// setReducedMotion flips the motion signal and waits until the host
// snapshot shows the engine followed it. Without a signal, or when the
// change does not arrive in time, the command is submitted directly.
func (h *routerHandlers) setReducedMotion(ctx context.Context, reduced bool) (ambient.Result, error) {
	direct := ambient.SetReducedMotion{Reduced: reduced}
	if h.motion == nil || !h.host.Stats().Running {
		return h.host.Submit(ctx, direct)
	}

	h.motion.Set(reduced)

	waitCtx, cancel := context.WithTimeout(ctx, motionSyncTimeout)
	defer cancel()
	ticker := time.NewTicker(motionSyncPoll)
	defer ticker.Stop()
	for {
		if stats := h.host.Snapshot().Stats; stats.ReducedMotion == reduced {
			return resultFromStats(stats), nil
		}
		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return ambient.Result{}, ctx.Err()
			}
			log.Printf("⚠️ Reduced motion signal not followed in time, submitting directly")
			return h.host.Submit(ctx, direct)
		case <-ticker.C:
		}
	}
}

func resultFromStats(s ambient.Stats) ambient.Result {
	return ambient.Result{
		Applied:       true,
		Mode:          s.Mode,
		Intensity:     s.Intensity,
		StarSpeed:     s.StarSpeed,
		Paused:        s.Paused,
		ReducedMotion: s.ReducedMotion,
	}
}

func (h *routerHandlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	snap := h.host.Snapshot()
	state := map[string]interface{}{
		"engine":    snap.Stats,
		"sequence":  snap.Sequence,
		"timestamp": snap.Timestamp,
		"streaming": h.streamer.IsStreaming(),
	}
	if h.sound != nil {
		state["soundEnabled"] = h.sound.Enabled()
	}
	writeJSON(w, state)
}

func (h *routerHandlers) handleGetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"host":        h.host.Stats(),
		"rateLimit":   h.limiter.Stats(),
		"frameCache":  h.frameCache.Stats(),
		"streamStats": h.streamer.GetStats(),
	})
}

func (h *routerHandlers) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}
	mode, ok := ambient.ParseMode(req.Mode)
	if !ok {
		writeError(w, "Unknown mode", http.StatusBadRequest)
		return
	}

	res, ok := h.submit(w, r, ambient.SetMode{Mode: mode})
	if !ok {
		return
	}
	h.persist(prefs.KeyMode, string(res.Mode))
	writeJSON(w, res)
}

// valueRequest is shared by the numeric setters; a missing value is an
// error while out-of-range values are clamped by the engine.
type valueRequest struct {
	Value *float64 `json:"value"`
}

func (h *routerHandlers) handleSetIntensity(w http.ResponseWriter, r *http.Request) {
	var req valueRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Value == nil {
		writeError(w, "value is required", http.StatusBadRequest)
		return
	}
	res, ok := h.submit(w, r, ambient.SetIntensity{Value: *req.Value})
	if !ok {
		return
	}
	h.persist(prefs.KeyIntensity, res.Intensity)
	writeJSON(w, res)
}

func (h *routerHandlers) handleSetStarSpeed(w http.ResponseWriter, r *http.Request) {
	var req valueRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Value == nil {
		writeError(w, "value is required", http.StatusBadRequest)
		return
	}
	res, ok := h.submit(w, r, ambient.SetStarSpeed{Value: *req.Value})
	if !ok {
		return
	}
	h.persist(prefs.KeyStarSpeed, res.StarSpeed)
	writeJSON(w, res)
}

func (h *routerHandlers) handlePause(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Paused *bool `json:"paused"`
	}
	err := decodeJSON(w, r, &req)
	if err != nil && !errors.Is(err, errEmptyBody) {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	var cmd ambient.Command = ambient.TogglePause{}
	if req.Paused != nil {
		cmd = ambient.SetPaused{Paused: *req.Paused}
	}
	if res, ok := h.submit(w, r, cmd); ok {
		writeJSON(w, res)
	}
}

func (h *routerHandlers) handleReset(w http.ResponseWriter, r *http.Request) {
	if res, ok := h.submit(w, r, ambient.ResetMotion{}); ok {
		writeJSON(w, res)
	}
}

func (h *routerHandlers) handleResize(w http.ResponseWriter, r *http.Request) {
	var vp ambient.Viewport
	if err := decodeJSON(w, r, &vp); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}
	res, ok := h.submit(w, r, ambient.Resize{Viewport: vp})
	if !ok {
		return
	}
	if res.Error != "" {
		writeError(w, res.Error, http.StatusBadRequest)
		return
	}
	writeJSON(w, res)
}

func (h *routerHandlers) handleMotion(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reduced bool `json:"reduced"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}
	res, err := h.setReducedMotion(r.Context(), req.Reduced)
	if err != nil {
		writeSubmitError(w, err)
		return
	}
	writeJSON(w, res)
}

type pointRequest struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

func (p pointRequest) valid() bool {
	return p.X != nil && p.Y != nil
}

func (h *routerHandlers) handlePointer(w http.ResponseWriter, r *http.Request) {
	var req pointRequest
	if err := decodeJSON(w, r, &req); err != nil || !req.valid() {
		writeError(w, "x and y are required", http.StatusBadRequest)
		return
	}
	if res, ok := h.submit(w, r, ambient.PointerMove{X: *req.X, Y: *req.Y}); ok {
		writeJSON(w, res)
	}
}

func (h *routerHandlers) handlePointerLeave(w http.ResponseWriter, r *http.Request) {
	if res, ok := h.submit(w, r, ambient.PointerLeave{}); ok {
		writeJSON(w, res)
	}
}

func (h *routerHandlers) handleClick(w http.ResponseWriter, r *http.Request) {
	var req pointRequest
	if err := decodeJSON(w, r, &req); err != nil || !req.valid() {
		writeError(w, "x and y are required", http.StatusBadRequest)
		return
	}
	if res, ok := h.submit(w, r, ambient.Click{X: *req.X, Y: *req.Y}); ok {
		writeJSON(w, res)
	}
}

// handleCommand accepts the same envelope as the websocket.
func (h *routerHandlers) handleCommand(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}
	cmd, err := ambient.DecodeCommand(body)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if c, ok := cmd.(ambient.SetReducedMotion); ok {
		res, err := h.setReducedMotion(r.Context(), c.Reduced)
		if err != nil {
			writeSubmitError(w, err)
			return
		}
		writeJSON(w, res)
		return
	}
	res, ok := h.submit(w, r, cmd)
	if !ok {
		return
	}
	persistApplied(h.prefs, cmd, res)
	writeJSON(w, res)
}

func (h *routerHandlers) handleGetSound(w http.ResponseWriter, r *http.Request) {
	if h.sound == nil {
		writeError(w, "Sound not available", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]bool{"enabled": h.sound.Enabled()})
}

func (h *routerHandlers) handleSetSound(w http.ResponseWriter, r *http.Request) {
	if h.sound == nil {
		writeError(w, "Sound not available", http.StatusNotFound)
		return
	}
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	err := decodeJSON(w, r, &req)
	if err != nil && !errors.Is(err, errEmptyBody) {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	next := !h.sound.Enabled()
	if req.Enabled != nil {
		next = *req.Enabled
	}
	applied := h.sound.SetEnabled(next)
	h.persist(prefs.KeySoundEnabled, applied)
	writeJSON(w, map[string]bool{"enabled": applied})
}

func (h *routerHandlers) handleTapWAV(w http.ResponseWriter, r *http.Request) {
	if h.sound == nil {
		writeError(w, "Sound not available", http.StatusNotFound)
		return
	}
	data, err := h.sound.TapWAV()
	if err != nil {
		log.Printf("❌ Tap tone encoding failed: %v", err)
		writeError(w, "Tone unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

func (h *routerHandlers) handleGetFrame(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	format, err := streaming.ParseFormat(q.Get("format"))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	opts := streaming.EncodeOptions{Format: format}
	if v := q.Get("width"); v != "" {
		width, err := strconv.Atoi(v)
		if err != nil || width <= 0 {
			writeError(w, "width must be a positive integer", http.StatusBadRequest)
			return
		}
		opts.MaxWidth = width
	}
	if v := q.Get("quality"); v != "" {
		opts.Quality, _ = strconv.Atoi(v)
	}

	data, seq, err := h.frameCache.EncodeLatest(h.host.Frames(), opts)
	if errors.Is(err, streaming.ErrNoFrame) {
		writeError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Frame-Seq", strconv.FormatUint(seq, 10))
	w.Write(data)
}

func (h *routerHandlers) handleStreamStart(w http.ResponseWriter, r *http.Request) {
	log.Println("📡 Restream start requested via API")
	if err := h.streamer.Start(); err != nil {
		log.Printf("❌ Restream start failed: %v", err)
		switch {
		case errors.Is(err, streaming.ErrNoOutput):
			writeError(w, err.Error(), http.StatusServiceUnavailable)
		case errors.Is(err, streaming.ErrAlreadyStreaming):
			writeError(w, err.Error(), http.StatusConflict)
		default:
			writeError(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, map[string]bool{"success": true})
}

func (h *routerHandlers) handleStreamStop(w http.ResponseWriter, r *http.Request) {
	log.Println("📡 Restream stop requested via API")
	h.streamer.Stop()
	writeJSON(w, map[string]bool{"success": true})
}

func (h *routerHandlers) handleStreamStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.streamer.GetStats())
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
