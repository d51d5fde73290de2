package ambient

import (
	"image/color"
	"slices"
	"strings"

	"ambient-focus/internal/canvas"
)

// Mode names a visual profile.
type Mode string

const (
	ModeAmbient Mode = "ambient"
	ModeFocus   Mode = "focus"
	ModeNight   Mode = "night"
)

// Modes lists every known mode in display order.
var Modes = []Mode{ModeAmbient, ModeFocus, ModeNight}

// Palette holds the colors of one profile. Nebula colors carry their own
// alpha; the others are opaque and get alpha at draw time.
type Palette struct {
	Background color.NRGBA
	Nebula     []color.NRGBA
	Mesh       color.NRGBA
	Particle   color.NRGBA
	Ripple     color.NRGBA
}

// Profile is the tuning bundle selected by a Mode.
type Profile struct {
	Speed           float64 // global time scale
	ParticleScale   float64 // multiplier on the particle count target
	ParticleOpacity float64
	MeshOpacity     float64
	NebulaStrength  float64 // alpha of the nebula layer
	Palette         Palette
}

var profiles = map[Mode]Profile{
	ModeAmbient: {
		Speed:           1,
		ParticleScale:   1,
		ParticleOpacity: 0.62,
		MeshOpacity:     0.14,
		NebulaStrength:  0.76,
		Palette: Palette{
			Background: canvas.MustHex("#070c14", 1),
			Nebula: []color.NRGBA{
				canvas.MustHex("#446388", 0.22),
				canvas.MustHex("#2d486c", 0.20),
				canvas.MustHex("#22324c", 0.16),
			},
			Mesh:     canvas.MustHex("#aac4e2", 1),
			Particle: canvas.MustHex("#c5dbf6", 1),
			Ripple:   canvas.MustHex("#cee1f8", 1),
		},
	},
	ModeFocus: {
		Speed:           0.72,
		ParticleScale:   0.82,
		ParticleOpacity: 0.52,
		MeshOpacity:     0.1,
		NebulaStrength:  0.66,
		Palette: Palette{
			Background: canvas.MustHex("#060a11", 1),
			Nebula: []color.NRGBA{
				canvas.MustHex("#3d5474", 0.18),
				canvas.MustHex("#253752", 0.17),
				canvas.MustHex("#1c2940", 0.14),
			},
			Mesh:     canvas.MustHex("#91aaca", 1),
			Particle: canvas.MustHex("#b5ceec", 1),
			Ripple:   canvas.MustHex("#bdd5f3", 1),
		},
	},
	ModeNight: {
		Speed:           0.55,
		ParticleScale:   0.68,
		ParticleOpacity: 0.46,
		MeshOpacity:     0.08,
		NebulaStrength:  0.58,
		Palette: Palette{
			Background: canvas.MustHex("#04070d", 1),
			Nebula: []color.NRGBA{
				canvas.MustHex("#2f4260", 0.15),
				canvas.MustHex("#1d2b42", 0.14),
				canvas.MustHex("#172234", 0.12),
			},
			Mesh:     canvas.MustHex("#798fa9", 1),
			Particle: canvas.MustHex("#a5bdda", 1),
			Ripple:   canvas.MustHex("#adc5e0", 1),
		},
	},
}

// Shooting star colors are shared by every mode.
var (
	starTailColor = canvas.MustHex("#d8e9ff", 1)
	starHeadColor = canvas.MustHex("#e4f0ff", 1)
)

// ProfileFor returns the profile of m. The returned palette is a copy.
func ProfileFor(m Mode) (Profile, bool) {
	p, ok := profiles[m]
	if !ok {
		return Profile{}, false
	}
	p.Palette.Nebula = slices.Clone(p.Palette.Nebula)
	return p, true
}

// ParseMode maps a mode identifier to a Mode, ignoring case and
// surrounding spaces.
func ParseMode(s string) (Mode, bool) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	_, ok := profiles[m]
	return m, ok
}
