package ambient

import "time"

// Stats is a point-in-time summary of an engine.
type Stats struct {
	Mode           Mode          `json:"mode"`
	Intensity      float64       `json:"intensity"`
	StarSpeed      float64       `json:"starSpeed"`
	ReducedMotion  bool          `json:"reducedMotion"`
	Paused         bool          `json:"paused"`
	Running        bool          `json:"running"`
	Viewport       Viewport      `json:"viewport"`
	Particles      int           `json:"particles"`
	ParticleTarget int           `json:"particleTarget"`
	Blobs          int           `json:"blobs"`
	ShootingStars  int           `json:"shootingStars"`
	Ripples        int           `json:"ripples"`
	Pointer        Pointer       `json:"pointer"`
	Time           float64       `json:"time"`
	NextShootingIn time.Duration `json:"nextShootingIn"`
}

// Stats summarizes the engine.
func (e *Engine) Stats() Stats {
	next := e.nextShootingAt - e.sched.Now()
	if next < 0 {
		next = 0
	}
	return Stats{
		Mode:           e.mode,
		Intensity:      e.intensity,
		StarSpeed:      e.starSpeed,
		ReducedMotion:  e.reducedMotion,
		Paused:         e.paused,
		Running:        e.frameID != 0,
		Viewport:       e.viewport,
		Particles:      len(e.particles),
		ParticleTarget: e.ParticleTarget(),
		Blobs:          len(e.blobs),
		ShootingStars:  len(e.stars),
		Ripples:        len(e.ripples),
		Pointer:        e.pointer,
		Time:           e.time,
		NextShootingIn: next,
	}
}
