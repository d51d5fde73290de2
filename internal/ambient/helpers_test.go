package ambient

import (
	"testing"
	"time"

	"ambient-focus/internal/canvas"
)

const frame = 16 * time.Millisecond

// newTestEngine builds an engine on a 320x200 in-memory surface driven by
// a manual clock.
func newTestEngine(t *testing.T, opts Options) (*Engine, *FrameScheduler, *ManualClock) {
	t.Helper()

	clock := &ManualClock{}
	sched := NewFrameScheduler(clock.Now)
	opts.Scheduler = sched
	if opts.Viewport == (Viewport{}) {
		opts.Viewport = Viewport{Width: 320, Height: 200, DPR: 1}
	}
	if opts.Seed == 0 {
		opts.Seed = 42
	}

	surface, err := canvas.New(opts.Viewport.Width, opts.Viewport.Height, opts.Viewport.DPR)
	if err != nil {
		t.Fatalf("Failed to create surface: %v", err)
	}
	e, err := New(surface, opts)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	return e, sched, clock
}

func brightness(e *Engine) int {
	img := e.surface.(*canvas.Surface).Image()
	total := 0
	for i := 0; i < len(img.Pix); i += 4 {
		total += int(img.Pix[i]) + int(img.Pix[i+1]) + int(img.Pix[i+2])
	}
	return total
}

func almostEqual(a, b float64) bool {
	const eps = 1e-9
	d := a - b
	return d < eps && d > -eps
}

type fakePreference struct {
	reduced bool
	subs    []func(bool)
}

func (f *fakePreference) ReducedMotion() bool { return f.reduced }

func (f *fakePreference) Subscribe(fn func(bool)) func() {
	f.subs = append(f.subs, fn)
	return func() { f.subs = nil }
}

func (f *fakePreference) set(v bool) {
	f.reduced = v
	for _, fn := range f.subs {
		fn(v)
	}
}
