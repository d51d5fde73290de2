package ambient

import (
	"image/color"
	"math"
	"time"

	"github.com/fogleman/gg"

	"ambient-focus/internal/canvas"
)

// Render paints the current state. It never mutates simulation state and
// may be called at any time, including while paused.
//
// Layer order: background, nebula, mesh, particles, shooting stars, ripples.
func (e *Engine) Render() {
	dc := e.surface.Begin()

	dc.SetColor(canvas.Opaque(e.profile.Palette.Background))
	dc.Clear()

	e.drawNebula()
	e.drawMesh(dc)
	e.drawParticles(dc)
	e.drawShootingStars()
	e.drawRipples(dc, e.sched.Now())
}

// blobPosition returns the on-screen center and radius of b.
func (e *Engine) blobPosition(b NebulaBlob) (x, y, radius float64) {
	drift := motionScale(e.reducedMotion, 0.18)
	t := e.time
	x = b.BaseX*e.viewport.Width +
		math.Sin(t*b.Speed+b.Phase)*b.DriftX*drift +
		(e.pointer.X-0.5)*b.Parallax
	y = b.BaseY*e.viewport.Height +
		math.Cos(t*b.Speed*1.1+b.Phase)*b.DriftY*drift +
		(e.pointer.Y-0.5)*b.Parallax
	radius = b.Radius * (0.92 + math.Sin(t*b.Speed*0.7+b.Phase)*0.08*drift)
	return x, y, radius
}

func (e *Engine) drawNebula() {
	nebula := e.profile.Palette.Nebula
	if len(nebula) == 0 {
		return
	}
	dpr := e.viewport.DPR

	for _, b := range e.blobs {
		x, y, r := e.blobPosition(b)
		if r <= 0 {
			continue
		}
		inner := canvas.WithAlpha(nebula[b.ColorIndex%len(nebula)], e.profile.NebulaStrength)

		e.surface.Lighter(canvas.RectAround(x, y, r), func(dc *gg.Context) {
			// gradients are sampled in device pixels
			g := gg.NewRadialGradient(x*dpr, y*dpr, 0, x*dpr, y*dpr, r*dpr)
			g.AddColorStop(0, inner)
			g.AddColorStop(1, color.NRGBA{})
			dc.SetFillStyle(g)
			dc.DrawRectangle(x-r, y-r, r*2, r*2)
			dc.Fill()
		})
	}
}

func (e *Engine) drawMesh(dc *gg.Context) {
	w, h := e.viewport.Width, e.viewport.Height
	amp := (3 + e.intensity*6) * motionScale(e.reducedMotion, 0.25)
	xStep := math.Max(56, w/14)
	yStep := math.Max(58, h/12)
	t := e.time
	speed := e.profile.Speed
	mesh := e.profile.Palette.Mesh

	dc.SetLineWidth(e.viewport.DPR)

	const rows, cols = 6, 7

	dc.SetColor(canvas.WithAlpha(mesh, e.profile.MeshOpacity))
	for row := 1; row < rows; row++ {
		baseY := float64(row) / rows * h
		for x := -xStep; x <= w+xStep; x += xStep {
			y := baseY + math.Sin(x*0.006+t*0.5*speed+float64(row))*amp
			if x == -xStep {
				dc.MoveTo(x, y)
			} else {
				dc.LineTo(x, y)
			}
		}
		dc.Stroke()
	}

	dc.SetColor(canvas.WithAlpha(mesh, e.profile.MeshOpacity*0.55))
	for col := 1; col < cols; col++ {
		baseX := float64(col) / cols * w
		for y := -yStep; y <= h+yStep; y += yStep {
			x := baseX + math.Sin(y*0.005+t*0.45*speed+float64(col)*1.3)*amp*0.9
			if y == -yStep {
				dc.MoveTo(x, y)
			} else {
				dc.LineTo(x, y)
			}
		}
		dc.Stroke()
	}
}

func (e *Engine) drawParticles(dc *gg.Context) {
	base := e.profile.ParticleOpacity * (0.45 + e.intensity*0.55)
	fill := e.profile.Palette.Particle

	for i := range e.particles {
		p := &e.particles[i]
		dc.SetColor(canvas.WithAlpha(fill, base*p.Alpha))
		dc.DrawCircle(p.X, p.Y, p.Size)
		dc.Fill()
	}
}

func (e *Engine) drawShootingStars() {
	if len(e.stars) == 0 {
		return
	}
	dpr := e.viewport.DPR
	peak := 0.64
	if e.reducedMotion {
		peak = 0.35
	}

	for _, s := range e.stars {
		progress := 0.0
		if s.TTL > 0 {
			progress = clamp(s.Life/s.TTL, 0, 1)
		}
		alpha := (1 - progress) * peak

		norm := math.Hypot(s.VX, s.VY)
		if norm == 0 {
			norm = 1
		}
		tailX := s.X - s.VX/norm*s.Length
		tailY := s.Y - s.VY/norm*s.Length
		headR := s.Thickness + 0.3
		width := s.Thickness * (1 - progress*0.45)

		minX, maxX := math.Min(s.X, tailX), math.Max(s.X, tailX)
		minY, maxY := math.Min(s.Y, tailY), math.Max(s.Y, tailY)
		pad := headR + width
		bounds := canvas.Rect{X: minX - pad, Y: minY - pad, W: maxX - minX + 2*pad, H: maxY - minY + 2*pad}

		e.surface.Lighter(bounds, func(dc *gg.Context) {
			g := gg.NewLinearGradient(s.X*dpr, s.Y*dpr, tailX*dpr, tailY*dpr)
			g.AddColorStop(0, canvas.WithAlpha(starTailColor, alpha))
			g.AddColorStop(1, canvas.WithAlpha(starTailColor, 0))
			dc.SetStrokeStyle(g)
			dc.SetLineWidth(width * dpr)
			dc.MoveTo(s.X, s.Y)
			dc.LineTo(tailX, tailY)
			dc.Stroke()

			dc.SetColor(canvas.WithAlpha(starHeadColor, alpha*0.9))
			dc.DrawCircle(s.X, s.Y, headR)
			dc.Fill()
		})
	}
}

// rippleProgress returns the age of r as a fraction of its lifetime.
func rippleProgress(r Ripple, now time.Duration) float64 {
	return clamp(float64(now-r.StartedAt)/float64(RippleLifetime), 0, 1)
}

func (e *Engine) drawRipples(dc *gg.Context, now time.Duration) {
	if len(e.ripples) == 0 {
		return
	}
	distance := 130 + e.intensity*80
	spread := motionScale(e.reducedMotion, 0.6)
	stroke := e.profile.Palette.Ripple

	for _, r := range e.ripples {
		progress := rippleProgress(r, now)
		radius := 18 + distance*progress*spread

		dc.SetColor(canvas.WithAlpha(stroke, (1-progress)*0.45))
		dc.SetLineWidth((1.7 - progress*0.9) * e.viewport.DPR)
		dc.DrawCircle(r.X, r.Y, radius)
		dc.Stroke()
	}
}
