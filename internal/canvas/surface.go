// Package canvas provides the in-memory drawing surface the ambient engine
// renders into. It wraps a fogleman/gg context sized in device pixels and
// adds the additive ("lighter") compositing gg lacks.
package canvas

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/fogleman/gg"
)

// MaxDPR caps the device pixel ratio.
const MaxDPR = 2.0

// MaxDimension bounds either side of the backing store in device pixels.
const MaxDimension = 8192

var (
	ErrInvalidSize     = errors.New("canvas: invalid size")
	ErrSurfaceTooLarge = errors.New("canvas: surface too large")
)

// Surface is a DPR-aware RGBA drawing target.
//
// Drawing coordinates are CSS pixels; the context transform scales them
// to device pixels. Gradients and line widths are not transformed by gg,
// so callers multiply those by DPR themselves.
type Surface struct {
	width  float64
	height float64
	dpr    float64

	pixelW int
	pixelH int

	img   *image.RGBA
	dc    *gg.Context
	layer *image.RGBA
	ldc   *gg.Context
}

// New allocates a surface for a width×height viewport.
func New(width, height, dpr float64) (*Surface, error) {
	s := &Surface{}
	if err := s.Resize(width, height, dpr); err != nil {
		return nil, err
	}
	return s, nil
}

// NormalizeDPR maps missing or invalid ratios to 1 and caps at MaxDPR.
func NormalizeDPR(dpr float64) float64 {
	if dpr <= 0 || math.IsNaN(dpr) || math.IsInf(dpr, 0) {
		return 1
	}
	return math.Min(dpr, MaxDPR)
}

// Resize sets the viewport. The backing store is reallocated only when the
// device-pixel size changes; otherwise pixels are kept.
func (s *Surface) Resize(width, height, dpr float64) error {
	if !validLength(width) || !validLength(height) {
		return fmt.Errorf("%w: %vx%v", ErrInvalidSize, width, height)
	}
	dpr = NormalizeDPR(dpr)

	pw := max(1, int(math.Floor(width*dpr)))
	ph := max(1, int(math.Floor(height*dpr)))
	if pw > MaxDimension || ph > MaxDimension {
		return fmt.Errorf("%w: %dx%d", ErrSurfaceTooLarge, pw, ph)
	}

	s.width, s.height, s.dpr = width, height, dpr
	if s.img != nil && pw == s.pixelW && ph == s.pixelH {
		return nil
	}

	s.pixelW, s.pixelH = pw, ph
	s.img = image.NewRGBA(image.Rect(0, 0, pw, ph))
	s.dc = gg.NewContextForRGBA(s.img)
	s.layer = image.NewRGBA(image.Rect(0, 0, pw, ph))
	s.ldc = gg.NewContextForRGBA(s.layer)
	return nil
}

func validLength(v float64) bool {
	return v >= 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Begin returns the main context with the DPR transform applied.
func (s *Surface) Begin() *gg.Context {
	s.dc.Identity()
	s.dc.Scale(s.dpr, s.dpr)
	return s.dc
}

// Lighter draws into a transparent scratch layer and adds the result onto
// the main image channel by channel, saturating at 255. Only the device
// pixels inside bounds (CSS coordinates) are cleared and composited.
func (s *Surface) Lighter(bounds Rect, draw func(dc *gg.Context)) {
	r := s.deviceRect(bounds)
	if r.Empty() {
		return
	}

	clearRect(s.layer, r)
	s.ldc.Identity()
	s.ldc.Scale(s.dpr, s.dpr)
	draw(s.ldc)
	s.ldc.ClearPath()

	addRect(s.img, s.layer, r)
}

// Rect is an axis-aligned rectangle in CSS pixels.
type Rect struct {
	X, Y, W, H float64
}

// RectAround returns the square of half-size r centered on (x, y).
func RectAround(x, y, r float64) Rect {
	return Rect{X: x - r, Y: y - r, W: 2 * r, H: 2 * r}
}

func (s *Surface) deviceRect(b Rect) image.Rectangle {
	if math.IsNaN(b.X+b.Y+b.W+b.H) || math.IsInf(b.X+b.Y+b.W+b.H, 0) {
		return image.Rectangle{}
	}
	r := image.Rect(
		int(math.Floor(b.X*s.dpr))-1,
		int(math.Floor(b.Y*s.dpr))-1,
		int(math.Ceil((b.X+b.W)*s.dpr))+1,
		int(math.Ceil((b.Y+b.H)*s.dpr))+1,
	)
	return r.Intersect(s.img.Rect)
}

// clearRect zeroes the pixels of r in img.
func clearRect(img *image.RGBA, r image.Rectangle) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		start := img.PixOffset(r.Min.X, y)
		end := img.PixOffset(r.Max.X, y)
		clear(img.Pix[start:end])
	}
}

// addRect adds src onto dst inside r. Both images hold premultiplied
// alpha, so a saturating per-channel sum is the "lighter" operator.
func addRect(dst, src *image.RGBA, r image.Rectangle) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		i := dst.PixOffset(r.Min.X, y)
		end := dst.PixOffset(r.Max.X, y)
		for ; i < end; i += 4 {
			if src.Pix[i+3] == 0 {
				continue
			}
			dst.Pix[i] = addSat(dst.Pix[i], src.Pix[i])
			dst.Pix[i+1] = addSat(dst.Pix[i+1], src.Pix[i+1])
			dst.Pix[i+2] = addSat(dst.Pix[i+2], src.Pix[i+2])
			dst.Pix[i+3] = addSat(dst.Pix[i+3], src.Pix[i+3])
		}
	}
}

func addSat(a, b uint8) uint8 {
	v := uint16(a) + uint16(b)
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// Image returns the backing image. It is reallocated by Resize.
func (s *Surface) Image() *image.RGBA {
	return s.img
}

// Size returns the viewport in CSS pixels and the applied DPR.
func (s *Surface) Size() (width, height, dpr float64) {
	return s.width, s.height, s.dpr
}

// PixelSize returns the backing store size in device pixels.
func (s *Surface) PixelSize() (int, int) {
	return s.pixelW, s.pixelH
}

// CopyPixels copies the current frame into dst, growing it when needed.
func (s *Surface) CopyPixels(dst []byte) []byte {
	if cap(dst) < len(s.img.Pix) {
		dst = make([]byte, len(s.img.Pix))
	}
	dst = dst[:len(s.img.Pix)]
	copy(dst, s.img.Pix)
	return dst
}
