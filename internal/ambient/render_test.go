package ambient

import (
	"bytes"
	"slices"
	"testing"

	"ambient-focus/internal/canvas"
)

func TestRenderIsPure(t *testing.T) {
	e, _, clock := newTestEngine(t, Options{})
	e.Click(160, 100)
	e.spawnShootingStar(clock.Now())
	e.Update(0.016)

	stats := e.Stats()
	particles := e.Particles()
	stars := e.ShootingStars()

	e.Render()
	first := bytes.Clone(e.surface.(*canvas.Surface).Image().Pix)
	e.Render()
	second := e.surface.(*canvas.Surface).Image().Pix

	if e.Stats() != stats || !slices.Equal(particles, e.Particles()) || !slices.Equal(stars, e.ShootingStars()) {
		t.Error("Expected Render to leave state untouched")
	}
	if !bytes.Equal(first, second) {
		t.Error("Expected identical frames from identical state")
	}
}

func TestRenderOpaqueBackground(t *testing.T) {
	e, _, _ := newTestEngine(t, Options{Mode: ModeNight})
	img := e.surface.(*canvas.Surface).Image()

	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 255 {
			t.Fatalf("Expected opaque frame, found alpha %d at byte %d", img.Pix[i], i)
		}
	}
}

func TestRenderNebulaBrightens(t *testing.T) {
	e, _, _ := newTestEngine(t, Options{})
	blobs := e.blobs

	e.blobs = nil
	e.Render()
	dark := brightness(e)

	e.blobs = blobs
	e.Render()
	lit := brightness(e)

	if lit <= dark {
		t.Errorf("Expected nebula layer to add light: without=%d with=%d", dark, lit)
	}
}

func TestRenderRipple(t *testing.T) {
	e, _, _ := newTestEngine(t, Options{})
	e.particles = nil
	e.Click(160, 100)

	img := e.surface.(*canvas.Surface).Image()
	e.Render()
	ring := img.RGBAAt(178, 100)

	e.ripples = nil
	e.Render()
	plain := img.RGBAAt(178, 100)

	if int(ring.R)+int(ring.G)+int(ring.B) <= int(plain.R)+int(plain.G)+int(plain.B) {
		t.Errorf("Expected ripple ring to brighten pixel: ring=%v plain=%v", ring, plain)
	}
}

func TestRenderShootingStar(t *testing.T) {
	e, _, clock := newTestEngine(t, Options{})
	e.particles = nil
	e.Render()
	dark := brightness(e)

	e.spawnShootingStar(clock.Now())
	e.Render()

	if brightness(e) <= dark {
		t.Error("Expected shooting star to add light")
	}
}

func TestRenderHighDPR(t *testing.T) {
	e, _, _ := newTestEngine(t, Options{Viewport: Viewport{Width: 160, Height: 90, DPR: 2}})

	w, h := e.surface.(*canvas.Surface).PixelSize()
	if w != 320 || h != 180 {
		t.Errorf("Expected 320x180 device pixels, got %dx%d", w, h)
	}
}

func TestRenderModesDiffer(t *testing.T) {
	e, _, _ := newTestEngine(t, Options{})
	ambient := brightness(e)
	e.SetMode(ModeNight)
	night := brightness(e)

	if night >= ambient {
		t.Errorf("Expected night mode to render darker: ambient=%d night=%d", ambient, night)
	}
}
