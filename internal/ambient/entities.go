package ambient

import "time"

// Viewport is the host-supplied drawing area in CSS pixels.
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	DPR    float64 `json:"dpr"`
}

// Particle is one pooled star. Velocity eases toward the base drift each
// frame so click impulses decay smoothly.
type Particle struct {
	X, Y   float64
	Size   float64
	Alpha  float64 // fixed at spawn
	Depth  float64 // parallax strength, 0.3..1.2
	BaseVX float64
	BaseVY float64
	VX, VY float64
}

// NebulaBlob is a soft radial glow anchored at a fraction of the viewport.
type NebulaBlob struct {
	BaseX, BaseY   float64 // 0..1 of the viewport
	Radius         float64
	DriftX, DriftY float64 // pixels
	Speed          float64
	Phase          float64
	Parallax       float64
	ColorIndex     int
}

// ShootingStar is a short-lived streak. Life and TTL are seconds.
type ShootingStar struct {
	X, Y      float64
	VX, VY    float64
	Length    float64
	Thickness float64
	Life      float64
	TTL       float64
}

// Ripple is an expanding ring created by a click.
type Ripple struct {
	X, Y      float64
	StartedAt time.Duration
}

// Pointer tracks the normalized pointer. Input moves the target; the
// current position eases toward it in Update.
type Pointer struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	TargetX float64 `json:"targetX"`
	TargetY float64 `json:"targetY"`
}

func centeredPointer() Pointer {
	return Pointer{X: 0.5, Y: 0.5, TargetX: 0.5, TargetY: 0.5}
}
