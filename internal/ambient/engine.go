// Package ambient is the animated background engine: a starfield of
// drifting particles over nebula glows and a wavy mesh, with occasional
// shooting stars and click ripples.
//
// An Engine is single-threaded. Every setter, input and frame callback
// must run on the goroutine that owns it.
package ambient

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"slices"
	"time"

	"github.com/fogleman/gg"

	"ambient-focus/internal/canvas"
	"ambient-focus/internal/spatial"
)

// Parameter bounds and limits.
const (
	MinIntensity     = 0.2
	MaxIntensity     = 1.0
	DefaultIntensity = 0.65

	MinStarSpeed     = 0.4
	MaxStarSpeed     = 2.4
	DefaultStarSpeed = 1.0

	MaxShootingStars = 3
	MaxRipples       = 12
	RippleLifetime   = time.Second

	maxFrameDelta     = 0.05
	defaultFrameDelta = 0.016

	// largest click radius: (105 + 1*150) * 1
	clickGridCell = 255.0
)

// ErrNoSurface is returned by New when no drawing surface is supplied.
var ErrNoSurface = errors.New("ambient: no drawing surface")

// Surface is the drawing target the engine renders into.
type Surface interface {
	Resize(width, height, dpr float64) error
	Size() (width, height, dpr float64)
	Begin() *gg.Context
	Lighter(bounds canvas.Rect, draw func(dc *gg.Context))
}

// MotionPreference is the host's "prefers reduced motion" signal.
type MotionPreference interface {
	ReducedMotion() bool
	Subscribe(fn func(reduced bool)) (cancel func())
}

// FrameTiming describes one loop iteration.
type FrameTiming struct {
	Delta  float64 // seconds passed to Update
	Update time.Duration
	Render time.Duration
}

// Options configures a new Engine. Zero Intensity and StarSpeed select
// the defaults; an empty or unknown Mode selects ModeAmbient.
type Options struct {
	Mode          Mode
	Intensity     float64
	StarSpeed     float64
	ReducedMotion bool
	Viewport      Viewport
	Seed          int64

	// Scheduler defaults to a FrameScheduler on the wall clock.
	Scheduler Scheduler

	// OnTap runs once per accepted click.
	OnTap func()

	// OnFrame runs after each loop iteration.
	OnFrame func(FrameTiming)
}

// Engine owns the simulation state, its parameters and the frame loop.
type Engine struct {
	surface Surface
	sched   Scheduler
	rng     *rand.Rand
	onTap   func()
	onFrame func(FrameTiming)
	frameFn FrameFunc

	mode          Mode
	profile       Profile
	intensity     float64
	starSpeed     float64
	reducedMotion bool
	paused        bool
	viewport      Viewport

	particles []Particle
	blobs     []NebulaBlob
	stars     []ShootingStar
	ripples   []Ripple
	pointer   Pointer
	grid      *spatial.Grid

	time           float64
	nextShootingAt time.Duration
	frameID        FrameID
	lastFrame      time.Duration
}

// New creates an engine bound to surface, sizes it to opts.Viewport and
// renders the first frame. The frame loop does not run until Start.
func New(surface Surface, opts Options) (*Engine, error) {
	if surface == nil {
		return nil, ErrNoSurface
	}

	mode, ok := ParseMode(string(opts.Mode))
	if !ok {
		mode = ModeAmbient
	}
	profile, _ := ProfileFor(mode)

	sched := opts.Scheduler
	if sched == nil {
		sched = NewFrameScheduler(WallClock())
	}

	e := &Engine{
		surface:       surface,
		sched:         sched,
		rng:           rand.New(rand.NewSource(opts.Seed)),
		onTap:         opts.OnTap,
		onFrame:       opts.OnFrame,
		mode:          mode,
		profile:       profile,
		intensity:     DefaultIntensity,
		starSpeed:     DefaultStarSpeed,
		reducedMotion: opts.ReducedMotion,
		pointer:       centeredPointer(),
		grid:          spatial.NewGrid(0, 0, clickGridCell, 260),
	}
	e.frameFn = e.frame
	if opts.Intensity != 0 {
		e.intensity = normalizeIntensity(opts.Intensity)
	}
	if opts.StarSpeed != 0 {
		e.starSpeed = normalizeStarSpeed(opts.StarSpeed)
	}

	if err := e.resizeSurface(opts.Viewport); err != nil {
		return nil, fmt.Errorf("ambient: acquire surface: %w", err)
	}
	e.blobs = buildBlobs(e.rng, e.viewport, len(e.profile.Palette.Nebula), e.reducedMotion)
	e.syncParticleCount(true)
	e.scheduleNextShootingStar(e.sched.Now())
	e.Render()
	return e, nil
}

func normalizeIntensity(v float64) float64 {
	if math.IsNaN(v) {
		v = DefaultIntensity
	}
	return clamp(v, MinIntensity, MaxIntensity)
}

func normalizeStarSpeed(v float64) float64 {
	if math.IsNaN(v) {
		v = DefaultStarSpeed
	}
	return clamp(v, MinStarSpeed, MaxStarSpeed)
}

// Start begins the frame loop. It is a no-op while a frame is already
// pending or the engine is paused.
func (e *Engine) Start() {
	if e.frameID != 0 || e.paused {
		return
	}
	e.lastFrame = e.sched.Now()
	e.frameID = e.sched.RequestFrame(e.frameFn)
}

// Running reports whether a frame is scheduled.
func (e *Engine) Running() bool {
	return e.frameID != 0
}

func (e *Engine) frame(now time.Duration) {
	e.frameID = 0

	dt := (now - e.lastFrame).Seconds()
	if dt <= 0 {
		dt = defaultFrameDelta
	}
	dt = math.Min(maxFrameDelta, dt)
	e.lastFrame = now

	start := time.Now()
	e.Update(dt)
	updated := time.Now()
	e.Render()

	if e.onFrame != nil {
		e.onFrame(FrameTiming{
			Delta:  dt,
			Update: updated.Sub(start),
			Render: time.Since(updated),
		})
	}
	e.frameID = e.sched.RequestFrame(e.frameFn)
}

// SetMode switches profile. Unknown modes are ignored and reported as
// false. Existing particles keep their positions but get new drift.
func (e *Engine) SetMode(m Mode) bool {
	profile, ok := ProfileFor(m)
	if !ok {
		return false
	}
	e.mode = m
	e.profile = profile

	for i := range e.particles {
		p := &e.particles[i]
		p.BaseVX, p.BaseVY = randomDrift(e.rng, e.profile.Speed, e.reducedMotion)
	}

	e.blobs = buildBlobs(e.rng, e.viewport, len(e.profile.Palette.Nebula), e.reducedMotion)
	e.syncParticleCount(false)
	e.Render()
	return true
}

// SetIntensity clamps v to [0.2, 1] (NaN selects 0.65) and returns the
// applied value.
func (e *Engine) SetIntensity(v float64) float64 {
	e.intensity = normalizeIntensity(v)
	e.syncParticleCount(false)
	e.Render()
	return e.intensity
}

// SetStarSpeed clamps v to [0.4, 2.4] (NaN selects 1) and returns the
// applied value.
func (e *Engine) SetStarSpeed(v float64) float64 {
	e.starSpeed = normalizeStarSpeed(v)
	e.Render()
	return e.starSpeed
}

// SetReducedMotion re-derives everything that depends on the flag:
// shooting stars are cleared and rescheduled, blobs rebuilt and the
// particle pool resized.
func (e *Engine) SetReducedMotion(reduced bool) {
	e.reducedMotion = reduced
	e.stars = e.stars[:0]
	e.scheduleNextShootingStar(e.sched.Now())
	e.blobs = buildBlobs(e.rng, e.viewport, len(e.profile.Palette.Nebula), e.reducedMotion)
	e.syncParticleCount(false)
	e.Render()
}

// BindMotionPreference applies the current preference and follows its
// changes. The returned func stops following. Notifications must arrive
// on the engine's goroutine.
func (e *Engine) BindMotionPreference(p MotionPreference) (unbind func()) {
	e.SetReducedMotion(p.ReducedMotion())
	return p.Subscribe(e.SetReducedMotion)
}

// SetPaused stops or resumes the loop. Pausing cancels the pending frame
// and renders once; resuming restarts the loop with state untouched.
func (e *Engine) SetPaused(paused bool) {
	if e.paused == paused {
		return
	}
	e.paused = paused
	if paused {
		if e.frameID != 0 {
			e.sched.CancelFrame(e.frameID)
			e.frameID = 0
		}
		e.Render()
		return
	}
	e.Start()
}

// Paused reports the pause state.
func (e *Engine) Paused() bool {
	return e.paused
}

// Resize applies new viewport metrics. Particles are clamped into the new
// bounds and blobs rebuilt. Negative or non-finite sizes are rejected and
// leave the engine unchanged.
func (e *Engine) Resize(vp Viewport) error {
	if err := e.resizeSurface(vp); err != nil {
		return err
	}

	if len(e.particles) == 0 {
		e.syncParticleCount(true)
	} else {
		for i := range e.particles {
			p := &e.particles[i]
			p.X = clamp(p.X, 0, e.viewport.Width)
			p.Y = clamp(p.Y, 0, e.viewport.Height)
		}
	}

	e.blobs = buildBlobs(e.rng, e.viewport, len(e.profile.Palette.Nebula), e.reducedMotion)
	e.Render()
	return nil
}

func (e *Engine) resizeSurface(vp Viewport) error {
	if err := e.surface.Resize(vp.Width, vp.Height, vp.DPR); err != nil {
		return err
	}
	w, h, dpr := e.surface.Size()
	e.viewport = Viewport{Width: w, Height: h, DPR: dpr}
	e.grid.Resize(w, h, len(e.particles))
	return nil
}

// PointerMove sets the pointer target from viewport coordinates. It is
// skipped while the viewport has no area or the input is not a number.
func (e *Engine) PointerMove(x, y float64) {
	if e.viewport.Width == 0 || e.viewport.Height == 0 || math.IsNaN(x) || math.IsNaN(y) {
		return
	}
	e.pointer.TargetX = clamp(x/e.viewport.Width, 0, 1)
	e.pointer.TargetY = clamp(y/e.viewport.Height, 0, 1)
}

// PointerLeave eases the pointer back to the center.
func (e *Engine) PointerLeave() {
	e.pointer.TargetX = 0.5
	e.pointer.TargetY = 0.5
}

// Click records a ripple at (x, y), pushes nearby particles outward and
// notifies the tap callback. It reports false for non-numeric input.
func (e *Engine) Click(x, y float64) bool {
	if math.IsNaN(x) || math.IsNaN(y) {
		return false
	}
	x = clamp(x, 0, e.viewport.Width)
	y = clamp(y, 0, e.viewport.Height)

	e.ripples = append(e.ripples, Ripple{X: x, Y: y, StartedAt: e.sched.Now()})
	if len(e.ripples) > MaxRipples {
		e.ripples = slices.Delete(e.ripples, 0, len(e.ripples)-MaxRipples)
	}

	scale := motionScale(e.reducedMotion, 0.55)
	radius := (105 + e.intensity*150) * scale
	push := (0.4 + e.intensity*0.72) * scale
	e.applyImpulse(x, y, radius, push)

	if e.onTap != nil {
		e.onTap()
	}
	if e.paused {
		e.Render()
	}
	return true
}

// applyImpulse pushes every particle strictly inside radius away from
// (x, y), scaled by how close it is.
func (e *Engine) applyImpulse(x, y, radius, push float64) {
	e.grid.Clear()
	for i := range e.particles {
		e.grid.Insert(uint32(i), e.particles[i].X, e.particles[i].Y)
	}

	for _, idx := range e.grid.QueryRadius(x, y, radius) {
		p := &e.particles[idx]
		dx := p.X - x
		dy := p.Y - y
		dist := math.Hypot(dx, dy)
		if dist <= 0 || dist >= radius {
			continue
		}
		power := (1 - dist/radius) * push
		p.VX += dx / dist * power * 0.28
		p.VY += dy / dist * power * 0.28
	}
}

// ResetMotion re-randomizes particles and blob phases, clears ripples
// and shooting stars and recenters the pointer.
func (e *Engine) ResetMotion() {
	e.ripples = e.ripples[:0]
	e.stars = e.stars[:0]
	e.scheduleNextShootingStar(e.sched.Now())
	e.pointer = centeredPointer()

	for i := range e.particles {
		p := &e.particles[i]
		vx, vy := randomDrift(e.rng, e.profile.Speed, e.reducedMotion)
		p.X = e.rng.Float64() * e.viewport.Width
		p.Y = e.rng.Float64() * e.viewport.Height
		p.BaseVX, p.BaseVY = vx, vy
		p.VX, p.VY = vx, vy
	}
	for i := range e.blobs {
		e.blobs[i].Phase = e.rng.Float64() * math.Pi * 2
	}
	e.Render()
}

// ParticleTarget returns the pool size for the current parameters.
func (e *Engine) ParticleTarget() int {
	return ParticleTarget(e.intensity, e.profile, e.reducedMotion)
}

// syncParticleCount grows the pool by spawning at the tail or shrinks it
// by truncating the tail. force discards the pool first.
func (e *Engine) syncParticleCount(force bool) {
	target := e.ParticleTarget()
	if force {
		e.particles = e.particles[:0]
	}
	for len(e.particles) < target {
		e.particles = append(e.particles, spawnParticle(e.rng, e.viewport, e.profile.Speed, e.reducedMotion))
	}
	if len(e.particles) > target {
		e.particles = e.particles[:target]
	}
}

// Surface returns the drawing surface for attaching host input.
func (e *Engine) Surface() Surface { return e.surface }

// Accessors for the current parameters and pointer.

func (e *Engine) Mode() Mode                    { return e.mode }
func (e *Engine) Profile() Profile              { return e.profile }
func (e *Engine) Intensity() float64            { return e.intensity }
func (e *Engine) StarSpeed() float64            { return e.starSpeed }
func (e *Engine) ReducedMotion() bool           { return e.reducedMotion }
func (e *Engine) Viewport() Viewport            { return e.viewport }
func (e *Engine) Pointer() Pointer              { return e.pointer }
func (e *Engine) Time() float64                 { return e.time }
func (e *Engine) NextShootingAt() time.Duration { return e.nextShootingAt }

// Particles returns a copy of the particle pool in pool order.
func (e *Engine) Particles() []Particle { return slices.Clone(e.particles) }

// Blobs returns a copy of the nebula set.
func (e *Engine) Blobs() []NebulaBlob { return slices.Clone(e.blobs) }

// ShootingStars returns a copy of the live shooting stars, oldest first.
func (e *Engine) ShootingStars() []ShootingStar { return slices.Clone(e.stars) }

// Ripples returns a copy of the live ripples, oldest first.
func (e *Engine) Ripples() []Ripple { return slices.Clone(e.ripples) }
