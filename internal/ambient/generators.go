package ambient

import (
	"math"
	"math/rand"
	"time"
)

// motionScale returns reduced when reduced motion is on, else 1.
func motionScale(reducedMotion bool, reduced float64) float64 {
	if reducedMotion {
		return reduced
	}
	return 1
}

// randomDrift picks a drift velocity with a uniform random heading.
func randomDrift(rng *rand.Rand, speed float64, reducedMotion bool) (vx, vy float64) {
	magnitude := (0.045 + rng.Float64()*0.09) * speed * motionScale(reducedMotion, 0.35)
	angle := rng.Float64() * math.Pi * 2
	return math.Cos(angle) * magnitude, math.Sin(angle) * magnitude
}

// spawnParticle places a particle uniformly inside the viewport.
func spawnParticle(rng *rand.Rand, vp Viewport, speed float64, reducedMotion bool) Particle {
	vx, vy := randomDrift(rng, speed, reducedMotion)
	return Particle{
		X:      rng.Float64() * vp.Width,
		Y:      rng.Float64() * vp.Height,
		Size:   0.7 + rng.Float64()*1.8,
		Alpha:  0.3 + rng.Float64()*0.65,
		Depth:  0.3 + rng.Float64()*0.9,
		BaseVX: vx,
		BaseVY: vy,
		VX:     vx,
		VY:     vy,
	}
}

// buildBlobs creates the full nebula set: 3 blobs under reduced motion,
// 5 otherwise.
func buildBlobs(rng *rand.Rand, vp Viewport, paletteSize int, reducedMotion bool) []NebulaBlob {
	count := 5
	if reducedMotion {
		count = 3
	}
	if paletteSize < 1 {
		paletteSize = 1
	}
	baseRadius := math.Min(vp.Width, vp.Height) * 0.3

	blobs := make([]NebulaBlob, count)
	for i := range blobs {
		blobs[i] = NebulaBlob{
			BaseX:      0.12 + rng.Float64()*0.76,
			BaseY:      0.12 + rng.Float64()*0.76,
			Radius:     baseRadius * (0.7 + rng.Float64()*0.65),
			DriftX:     vp.Width * (0.01 + rng.Float64()*0.05),
			DriftY:     vp.Height * (0.01 + rng.Float64()*0.05),
			Speed:      0.03 + rng.Float64()*0.06,
			Phase:      rng.Float64() * math.Pi * 2,
			Parallax:   12 + rng.Float64()*20,
			ColorIndex: i % paletteSize,
		}
	}
	return blobs
}

// spawnShootingStar launches a star from the upper-left 72%×32% region,
// heading down and to the right.
func spawnShootingStar(rng *rand.Rand, vp Viewport, reducedMotion bool) ShootingStar {
	x := rng.Float64() * vp.Width * 0.72
	y := rng.Float64() * vp.Height * 0.32
	angle := math.Pi * (0.12 + rng.Float64()*0.24)
	speed := (620 + rng.Float64()*360) * motionScale(reducedMotion, 0.65)

	return ShootingStar{
		X:         x,
		Y:         y,
		VX:        math.Cos(angle) * speed,
		VY:        math.Sin(angle) * speed,
		Length:    58 + rng.Float64()*84,
		Thickness: 0.9 + rng.Float64()*1.2,
		TTL:       0.62 + rng.Float64()*0.42,
	}
}

// shootingStarDelay returns the wait until the next shooting star.
func shootingStarDelay(rng *rand.Rand, reducedMotion bool) time.Duration {
	minDelay, variance := 7800.0, 7000.0
	if reducedMotion {
		minDelay, variance = 15000, 10000
	}
	ms := minDelay + rng.Float64()*variance
	return time.Duration(ms * float64(time.Millisecond))
}

// ParticleTarget returns the particle pool size for the given intensity,
// profile and reduced-motion state. The result lies in [50, 260].
func ParticleTarget(intensity float64, p Profile, reducedMotion bool) int {
	normalized := (intensity - MinIntensity) / (MaxIntensity - MinIntensity)
	base := math.Round(120 + normalized*140)
	scaled := int(math.Round(base * p.ParticleScale))

	if reducedMotion {
		return max(50, int(math.Round(float64(scaled)*0.5)))
	}
	return clampInt(scaled, 120, 260)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
