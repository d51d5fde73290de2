// Package feedback synthesizes the short ping played when the background
// is tapped.
package feedback

import (
	"math"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
)

// Tone describes a ping: a sine that glides down to 65% of its start
// frequency (never below 180 Hz) under a fast-attack exponential gain.
type Tone struct {
	Frequency float64
	Duration  time.Duration
	Volume    float64
}

// TapTone is played once per accepted click.
var TapTone = Tone{Frequency: 720, Duration: 140 * time.Millisecond, Volume: 0.018}

const (
	gainFloor   = 0.0001
	gainAttack  = 20 * time.Millisecond
	stopPadding = 30 * time.Millisecond
	minGlideHz  = 180.0
)

// NewPing builds a finite mono-duplicated streamer for t.
func NewPing(t Tone, rate beep.SampleRate) beep.Streamer {
	end := math.Max(minGlideHz, t.Frequency*0.65)
	osc := newSweep(t.Frequency, end, t.Duration, t.Duration+stopPadding, rate)
	return newGain(osc, t.Volume, gainAttack, t.Duration, rate)
}

// expRamp interpolates exponentially from a to b; both must be positive.
func expRamp(a, b, progress float64) float64 {
	if progress <= 0 {
		return a
	}
	if progress >= 1 {
		return b
	}
	return a * math.Pow(b/a, progress)
}

// sweep is a sine oscillator whose frequency ramps exponentially from
// start to end over rampSamples, then holds.
type sweep struct {
	start, end  float64
	rampSamples int
	total       int
	position    int
	phase       float64
	rate        beep.SampleRate
}

func newSweep(start, end float64, ramp, total time.Duration, rate beep.SampleRate) *sweep {
	return &sweep{
		start:       start,
		end:         end,
		rampSamples: max(1, rate.N(ramp)),
		total:       rate.N(total),
		rate:        rate,
	}
}

func (s *sweep) Stream(samples [][2]float64) (n int, ok bool) {
	for i := range samples {
		if s.position >= s.total {
			return i, i > 0
		}
		freq := expRamp(s.start, s.end, float64(s.position)/float64(s.rampSamples))
		val := math.Sin(2 * math.Pi * s.phase)
		samples[i][0] = val
		samples[i][1] = val

		s.phase += freq / float64(s.rate)
		s.phase -= math.Floor(s.phase)
		s.position++
	}
	return len(samples), true
}

func (s *sweep) Err() error { return nil }

// gain shapes a stream: gainFloor→peak over attack, then peak→gainFloor
// by release, then gainFloor until the source ends.
type gain struct {
	streamer beep.Streamer
	peak     float64
	attack   int
	release  int
	position int
}

func newGain(s beep.Streamer, peak float64, attack, release time.Duration, rate beep.SampleRate) *gain {
	if peak < gainFloor {
		peak = gainFloor
	}
	return &gain{
		streamer: s,
		peak:     peak,
		attack:   max(1, rate.N(attack)),
		release:  max(2, rate.N(release)),
	}
}

func (g *gain) level(pos int) float64 {
	switch {
	case pos < g.attack:
		return expRamp(gainFloor, g.peak, float64(pos)/float64(g.attack))
	case pos < g.release:
		return expRamp(g.peak, gainFloor, float64(pos-g.attack)/float64(g.release-g.attack))
	default:
		return gainFloor
	}
}

func (g *gain) Stream(samples [][2]float64) (n int, ok bool) {
	n, ok = g.streamer.Stream(samples)
	for i := 0; i < n; i++ {
		v := g.level(g.position)
		samples[i][0] *= v
		samples[i][1] *= v
		g.position++
	}
	return n, ok
}

func (g *gain) Err() error { return g.streamer.Err() }

// newVolume scales s by a linear factor; zero or less is silent.
func newVolume(s beep.Streamer, vol float64) beep.Streamer {
	if vol <= 0 {
		return &effects.Volume{Streamer: s, Base: 2, Volume: 0, Silent: true}
	}
	return &effects.Volume{Streamer: s, Base: 2, Volume: math.Log2(vol)}
}
