package canvas

import (
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// MustHex parses a "#rrggbb" color and applies alpha in [0,1].
// It panics on malformed input and is meant for static palettes.
func MustHex(hex string, alpha float64) color.NRGBA {
	c, err := ParseHex(hex, alpha)
	if err != nil {
		panic(err)
	}
	return c
}

// ParseHex parses a "#rrggbb" color and applies alpha in [0,1].
func ParseHex(hex string, alpha float64) (color.NRGBA, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.NRGBA{}, err
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: alphaByte(alpha)}, nil
}

// WithAlpha scales the color's own alpha by a.
func WithAlpha(c color.NRGBA, a float64) color.NRGBA {
	c.A = alphaByte(float64(c.A) / 255 * a)
	return c
}

// Opaque returns c with full alpha.
func Opaque(c color.NRGBA) color.NRGBA {
	c.A = 255
	return c
}

func alphaByte(a float64) uint8 {
	if math.IsNaN(a) || a <= 0 {
		return 0
	}
	if a >= 1 {
		return 255
	}
	return uint8(math.Round(a * 255))
}
