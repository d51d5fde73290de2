package ambient

import (
	"slices"
	"time"
)

const (
	wrapMargin = 24.0  // particle wrap margin on every edge
	starMargin = 180.0 // shooting stars leaving this far past the viewport are dropped
)

// Update advances the simulation by dt seconds. The frame loop clamps dt
// to 0.05; direct callers are trusted.
func (e *Engine) Update(dt float64) {
	now := e.sched.Now()
	e.time += dt

	e.easePointer()
	e.moveParticles(dt)

	e.ripples = slices.DeleteFunc(e.ripples, func(r Ripple) bool {
		return now-r.StartedAt >= RippleLifetime
	})

	if now >= e.nextShootingAt {
		e.spawnShootingStar(now)
	}
	e.moveShootingStars(dt)
}

func (e *Engine) easePointer() {
	ease := 0.08
	if e.reducedMotion {
		ease = 0.03
	}
	e.pointer.X += (e.pointer.TargetX - e.pointer.X) * ease
	e.pointer.Y += (e.pointer.TargetY - e.pointer.Y) * ease
}

func (e *Engine) moveParticles(dt float64) {
	speedFactor := e.profile.Speed * (0.62 + e.intensity*0.95) *
		motionScale(e.reducedMotion, 0.35) * e.starSpeed
	parallax := 0.03
	if e.reducedMotion {
		parallax = 0.008
	}
	offX := e.pointer.X - 0.5
	offY := e.pointer.Y - 0.5
	w, h := e.viewport.Width, e.viewport.Height
	step := dt * 60 * speedFactor

	for i := range e.particles {
		p := &e.particles[i]
		p.VX += (p.BaseVX - p.VX) * 0.02
		p.VY += (p.BaseVY - p.VY) * 0.02

		p.X += (p.VX + offX*p.Depth*parallax) * step
		p.Y += (p.VY + offY*p.Depth*parallax) * step

		if p.X < -wrapMargin {
			p.X = w + wrapMargin
		}
		if p.X > w+wrapMargin {
			p.X = -wrapMargin
		}
		if p.Y < -wrapMargin {
			p.Y = h + wrapMargin
		}
		if p.Y > h+wrapMargin {
			p.Y = -wrapMargin
		}
	}
}

func (e *Engine) moveShootingStars(dt float64) {
	scale := e.starSpeed * 1.15
	if e.reducedMotion {
		scale = e.starSpeed * 0.7
	}
	w, h := e.viewport.Width, e.viewport.Height

	n := 0
	for _, s := range e.stars {
		s.Life += dt
		s.X += s.VX * dt * scale
		s.Y += s.VY * dt * scale
		if s.Life < s.TTL && s.X < w+starMargin && s.Y < h+starMargin {
			e.stars[n] = s
			n++
		}
	}
	e.stars = e.stars[:n]
}

// spawnShootingStar adds a star, evicting the oldest beyond
// MaxShootingStars, and schedules the next one.
func (e *Engine) spawnShootingStar(now time.Duration) {
	e.stars = append(e.stars, spawnShootingStar(e.rng, e.viewport, e.reducedMotion))
	if len(e.stars) > MaxShootingStars {
		e.stars = slices.Delete(e.stars, 0, len(e.stars)-MaxShootingStars)
	}
	e.scheduleNextShootingStar(now)
}

func (e *Engine) scheduleNextShootingStar(now time.Duration) {
	e.nextShootingAt = now + shootingStarDelay(e.rng, e.reducedMotion)
}
