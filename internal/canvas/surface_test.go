package canvas

import (
	"errors"
	"image/color"
	"math"
	"testing"

	"github.com/fogleman/gg"
)

func TestResizeDevicePixels(t *testing.T) {
	tests := []struct {
		name         string
		w, h, dpr    float64
		wantW, wantH int
		wantDPR      float64
	}{
		{"unit ratio", 320, 200, 1, 320, 200, 1},
		{"retina", 320.6, 200.2, 2, 641, 400, 2},
		{"capped ratio", 100, 50, 3, 200, 100, 2},
		{"missing ratio", 100, 50, 0, 100, 50, 1},
		{"nan ratio", 100, 50, math.NaN(), 100, 50, 1},
		{"zero viewport", 0, 0, 1, 1, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.w, tt.h, tt.dpr)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			pw, ph := s.PixelSize()
			if pw != tt.wantW || ph != tt.wantH {
				t.Errorf("Expected %dx%d, got %dx%d", tt.wantW, tt.wantH, pw, ph)
			}
			if _, _, dpr := s.Size(); dpr != tt.wantDPR {
				t.Errorf("Expected dpr %v, got %v", tt.wantDPR, dpr)
			}
		})
	}
}

func TestResizeRejectsInvalid(t *testing.T) {
	if _, err := New(-1, 10, 1); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("Expected ErrInvalidSize, got %v", err)
	}
	if _, err := New(math.NaN(), 10, 1); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("Expected ErrInvalidSize, got %v", err)
	}
	if _, err := New(MaxDimension+1, 10, 1); !errors.Is(err, ErrSurfaceTooLarge) {
		t.Errorf("Expected ErrSurfaceTooLarge, got %v", err)
	}
}

func TestResizeKeepsBackingStore(t *testing.T) {
	s, _ := New(100, 100, 1)
	img := s.Image()
	if err := s.Resize(100.4, 100.2, 1); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if s.Image() != img {
		t.Error("Expected backing store reuse when device size is unchanged")
	}
	if err := s.Resize(120, 100, 1); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if s.Image() == img {
		t.Error("Expected new backing store after device size change")
	}
}

func TestLighterAddsChannels(t *testing.T) {
	s, _ := New(10, 10, 1)
	dc := s.Begin()
	dc.SetColor(color.NRGBA{R: 200, G: 10, B: 10, A: 255})
	dc.Clear()

	s.Lighter(Rect{X: 0, Y: 0, W: 10, H: 10}, func(dc *gg.Context) {
		dc.SetColor(color.NRGBA{R: 100, G: 20, B: 0, A: 255})
		dc.DrawRectangle(0, 0, 10, 10)
		dc.Fill()
	})

	px := s.Image().RGBAAt(5, 5)
	if px.R != 255 {
		t.Errorf("Expected red to saturate at 255, got %d", px.R)
	}
	if px.G != 30 {
		t.Errorf("Expected green 30, got %d", px.G)
	}
	if px.B != 10 {
		t.Errorf("Expected blue unchanged at 10, got %d", px.B)
	}
}

func TestLighterOnlyTouchesBounds(t *testing.T) {
	s, _ := New(40, 40, 1)
	dc := s.Begin()
	dc.SetColor(color.Black)
	dc.Clear()

	s.Lighter(Rect{X: 0, Y: 0, W: 10, H: 10}, func(dc *gg.Context) {
		dc.SetColor(color.White)
		dc.DrawRectangle(0, 0, 40, 40)
		dc.Fill()
	})

	if px := s.Image().RGBAAt(5, 5); px.R != 255 {
		t.Errorf("Expected composited pixel inside bounds, got %v", px)
	}
	if px := s.Image().RGBAAt(30, 30); px.R != 0 {
		t.Errorf("Expected untouched pixel outside bounds, got %v", px)
	}
}

func TestParseHex(t *testing.T) {
	c, err := ParseHex("#446388", 0.22)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if c.R != 68 || c.G != 99 || c.B != 136 {
		t.Errorf("Expected rgb(68,99,136), got %v", c)
	}
	if c.A != 56 {
		t.Errorf("Expected alpha 56, got %d", c.A)
	}
	if _, err := ParseHex("nope", 1); err == nil {
		t.Error("Expected error for malformed hex")
	}
}

func TestWithAlpha(t *testing.T) {
	c := WithAlpha(color.NRGBA{R: 1, G: 2, B: 3, A: 255}, 0.5)
	if c.A != 128 {
		t.Errorf("Expected alpha 128, got %d", c.A)
	}
	if c := WithAlpha(c, math.NaN()); c.A != 0 {
		t.Errorf("Expected NaN alpha to clear, got %d", c.A)
	}
}

func TestCopyPixels(t *testing.T) {
	s, _ := New(4, 4, 1)
	buf := s.CopyPixels(nil)
	if len(buf) != 4*4*4 {
		t.Errorf("Expected 64 bytes, got %d", len(buf))
	}
	again := s.CopyPixels(buf)
	if &again[0] != &buf[0] {
		t.Error("Expected buffer reuse")
	}
}
