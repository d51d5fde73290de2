package main

import (
	"log"
	"time"

	"ambient-focus/internal/ambient"
	"ambient-focus/internal/canvas"
	"ambient-focus/internal/feedback"
	"ambient-focus/internal/motion"
	"ambient-focus/internal/prefs"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// resizeDebounce is how long the window size must stay put before the
// engine is resized.
const resizeDebounce = 180 * time.Millisecond

const (
	intensityStep = 0.05
	starSpeedStep = 0.1
)

// debouncer reports a value once it has been stable for delay.
type debouncer[T comparable] struct {
	delay   time.Duration
	current T
	pending T
	since   time.Time
	waiting bool
}

func newDebouncer[T comparable](initial T, delay time.Duration) *debouncer[T] {
	return &debouncer[T]{delay: delay, current: initial}
}

// Observe records v at now and returns the settled value, if any.
func (d *debouncer[T]) Observe(v T, now time.Time) (T, bool) {
	if v == d.current && !d.waiting {
		return v, false
	}
	if !d.waiting || v != d.pending {
		d.pending = v
		d.since = now
		d.waiting = true
		return v, false
	}
	if now.Sub(d.since) < d.delay {
		return v, false
	}
	d.waiting = false
	if v == d.current {
		return v, false
	}
	d.current = v
	return v, true
}

// viewer is the ebiten Game driving one engine on the ebiten goroutine.
type viewer struct {
	engine  *ambient.Engine
	sched   *ambient.FrameScheduler
	surface *canvas.Surface
	store   *prefs.Store
	player  *feedback.Player
	reduced *motion.Signal

	vp      ambient.Viewport
	resize  *debouncer[ambient.Viewport]
	inside  bool
	offscr  *ebiten.Image
	lastPos [2]int
}

func newViewer(e *ambient.Engine, sched *ambient.FrameScheduler, s *canvas.Surface,
	store *prefs.Store, player *feedback.Player, reduced *motion.Signal, vp ambient.Viewport) *viewer {
	return &viewer{
		engine:  e,
		sched:   sched,
		surface: s,
		store:   store,
		player:  player,
		reduced: reduced,
		vp:      vp,
		resize:  newDebouncer(vp, resizeDebounce),
	}
}

func (v *viewer) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	if vp, ok := v.resize.Observe(v.vp, time.Now()); ok {
		v.apply(ambient.Resize{Viewport: vp})
	}

	v.handlePointer()
	v.handleKeys()

	v.sched.Fire()
	return nil
}

// handlePointer converts cursor positions to viewport pixels.
func (v *viewer) handlePointer() {
	cx, cy := ebiten.CursorPosition()
	x := float64(cx) / v.vp.DPR
	y := float64(cy) / v.vp.DPR

	inside := ebiten.IsFocused() && x >= 0 && y >= 0 && x < v.vp.Width && y < v.vp.Height
	switch {
	case inside && (!v.inside || v.lastPos != [2]int{cx, cy}):
		v.apply(ambient.PointerMove{X: x, Y: y})
	case !inside && v.inside:
		v.apply(ambient.PointerLeave{})
	}
	v.inside = inside
	v.lastPos = [2]int{cx, cy}

	if inside && inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		v.apply(ambient.Click{X: x, Y: y})
	}
	for _, id := range inpututil.AppendJustPressedTouchIDs(nil) {
		tx, ty := ebiten.TouchPosition(id)
		v.apply(ambient.Click{X: float64(tx) / v.vp.DPR, Y: float64(ty) / v.vp.DPR})
	}
}

func (v *viewer) handleKeys() {
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeySpace):
		v.apply(ambient.TogglePause{})
	case inpututil.IsKeyJustPressed(ebiten.KeyF):
		v.setMode(ambient.ModeFocus)
	case inpututil.IsKeyJustPressed(ebiten.KeyA):
		v.setMode(ambient.ModeAmbient)
	case inpututil.IsKeyJustPressed(ebiten.KeyN):
		v.setMode(ambient.ModeNight)
	case inpututil.IsKeyJustPressed(ebiten.KeyR):
		v.apply(ambient.ResetMotion{})
	case inpututil.IsKeyJustPressed(ebiten.KeyM):
		v.reduced.Set(!v.reduced.ReducedMotion())
		log.Printf("🎛️ Reduced motion: %v", v.reduced.ReducedMotion())
	case inpututil.IsKeyJustPressed(ebiten.KeyS):
		on := v.player.SetEnabled(!v.player.Enabled())
		v.persist(prefs.KeySoundEnabled, on)
	case inpututil.IsKeyJustPressed(ebiten.KeyUp):
		res := v.apply(ambient.SetIntensity{Value: v.engine.Intensity() + intensityStep})
		v.persist(prefs.KeyIntensity, res.Intensity)
	case inpututil.IsKeyJustPressed(ebiten.KeyDown):
		res := v.apply(ambient.SetIntensity{Value: v.engine.Intensity() - intensityStep})
		v.persist(prefs.KeyIntensity, res.Intensity)
	case inpututil.IsKeyJustPressed(ebiten.KeyRight):
		res := v.apply(ambient.SetStarSpeed{Value: v.engine.StarSpeed() + starSpeedStep})
		v.persist(prefs.KeyStarSpeed, res.StarSpeed)
	case inpututil.IsKeyJustPressed(ebiten.KeyLeft):
		res := v.apply(ambient.SetStarSpeed{Value: v.engine.StarSpeed() - starSpeedStep})
		v.persist(prefs.KeyStarSpeed, res.StarSpeed)
	}
}

func (v *viewer) setMode(m ambient.Mode) {
	if res := v.apply(ambient.SetMode{Mode: m}); res.Applied {
		log.Printf("🎨 Mode: %s", res.Mode)
		v.persist(prefs.KeyMode, string(res.Mode))
	}
}

func (v *viewer) apply(cmd ambient.Command) ambient.Result {
	res := v.engine.Apply(cmd)
	if res.Error != "" {
		log.Printf("⚠️ %s: %s", cmd.Kind(), res.Error)
	}
	return res
}

func (v *viewer) persist(key string, value any) {
	if err := v.store.Set(key, value); err != nil {
		log.Printf("⚠️ Failed to persist %s: %v", key, err)
	}
}

func (v *viewer) Draw(screen *ebiten.Image) {
	w, h := v.surface.PixelSize()
	if v.offscr == nil || v.offscr.Bounds().Dx() != w || v.offscr.Bounds().Dy() != h {
		if v.offscr != nil {
			v.offscr.Deallocate()
		}
		v.offscr = ebiten.NewImage(w, h)
	}
	v.offscr.WritePixels(v.surface.Image().Pix)

	// Until a pending resize settles the surface may not match the screen.
	sw, sh := screen.Bounds().Dx(), screen.Bounds().Dy()
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(float64(sw)/float64(w), float64(sh)/float64(h))
	op.Filter = ebiten.FilterLinear
	screen.DrawImage(v.offscr, op)
}

// Layout renders at device resolution and records the window size for
// the resize debouncer.
func (v *viewer) Layout(outsideWidth, outsideHeight int) (int, int) {
	dpr := canvas.NormalizeDPR(ebiten.Monitor().DeviceScaleFactor())
	v.vp = ambient.Viewport{
		Width:  float64(outsideWidth),
		Height: float64(outsideHeight),
		DPR:    dpr,
	}
	return int(float64(outsideWidth) * dpr), int(float64(outsideHeight) * dpr)
}
