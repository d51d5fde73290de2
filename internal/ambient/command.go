package ambient

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrUnknownCommand   = errors.New("ambient: unknown command")
	ErrMalformedCommand = errors.New("ambient: malformed command")
)

// Command is one external event. Each maps to exactly one state
// transition applied by Engine.Apply on the engine's goroutine.
type Command interface {
	Kind() string
	apply(e *Engine) error
}

// errNotApplied marks commands that were valid but ignored.
var errNotApplied = errors.New("not applied")

// SetMode selects a mode profile. Unknown modes are ignored.
type SetMode struct {
	Mode Mode `json:"mode"`
}

// SetIntensity sets the density/brightness parameter.
type SetIntensity struct {
	Value float64 `json:"value"`
}

// SetStarSpeed sets the shooting star and particle speed multiplier.
type SetStarSpeed struct {
	Value float64 `json:"value"`
}

// Resize applies new viewport metrics.
type Resize struct {
	Viewport
}

// PointerMove moves the pointer target, in viewport pixels.
type PointerMove struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PointerLeave recenters the pointer target.
type PointerLeave struct{}

// Click creates a ripple and an impulse, in viewport pixels.
type Click struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type SetPaused struct {
	Paused bool `json:"paused"`
}

type TogglePause struct{}

// SetReducedMotion carries the host motion preference.
type SetReducedMotion struct {
	Reduced bool `json:"reduced"`
}

type ResetMotion struct{}

func (SetMode) Kind() string          { return "mode" }
func (SetIntensity) Kind() string     { return "intensity" }
func (SetStarSpeed) Kind() string     { return "star_speed" }
func (Resize) Kind() string           { return "resize" }
func (PointerMove) Kind() string      { return "pointer_move" }
func (PointerLeave) Kind() string     { return "pointer_leave" }
func (Click) Kind() string            { return "click" }
func (SetPaused) Kind() string        { return "pause" }
func (TogglePause) Kind() string      { return "toggle_pause" }
func (SetReducedMotion) Kind() string { return "reduced_motion" }
func (ResetMotion) Kind() string      { return "reset_motion" }

func (c SetMode) apply(e *Engine) error {
	m, ok := ParseMode(string(c.Mode))
	if !ok || !e.SetMode(m) {
		return errNotApplied
	}
	return nil
}

func (c SetIntensity) apply(e *Engine) error {
	e.SetIntensity(c.Value)
	return nil
}

func (c SetStarSpeed) apply(e *Engine) error {
	e.SetStarSpeed(c.Value)
	return nil
}

func (c Resize) apply(e *Engine) error {
	return e.Resize(c.Viewport)
}

func (c PointerMove) apply(e *Engine) error {
	e.PointerMove(c.X, c.Y)
	return nil
}

func (PointerLeave) apply(e *Engine) error {
	e.PointerLeave()
	return nil
}

func (c Click) apply(e *Engine) error {
	if !e.Click(c.X, c.Y) {
		return errNotApplied
	}
	return nil
}

func (c SetPaused) apply(e *Engine) error {
	e.SetPaused(c.Paused)
	return nil
}

func (TogglePause) apply(e *Engine) error {
	e.SetPaused(!e.paused)
	return nil
}

func (c SetReducedMotion) apply(e *Engine) error {
	e.SetReducedMotion(c.Reduced)
	return nil
}

func (ResetMotion) apply(e *Engine) error {
	e.ResetMotion()
	return nil
}

// Result reports the parameters after a command. Callers persist these
// values rather than the ones they sent.
type Result struct {
	Applied       bool    `json:"applied"`
	Error         string  `json:"error,omitempty"`
	Mode          Mode    `json:"mode"`
	Intensity     float64 `json:"intensity"`
	StarSpeed     float64 `json:"starSpeed"`
	Paused        bool    `json:"paused"`
	ReducedMotion bool    `json:"reducedMotion"`
}

// Apply runs c against the engine.
func (e *Engine) Apply(c Command) Result {
	res := Result{Applied: true}
	if err := c.apply(e); err != nil {
		res.Applied = false
		if !errors.Is(err, errNotApplied) {
			res.Error = err.Error()
		}
	}
	res.Mode = e.mode
	res.Intensity = e.intensity
	res.StarSpeed = e.starSpeed
	res.Paused = e.paused
	res.ReducedMotion = e.reducedMotion
	return res
}

func decodeAs[T Command](data []byte) (Command, error) {
	var c T
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return c, nil
}

var commandDecoders = map[string]func([]byte) (Command, error){
	SetMode{}.Kind():          decodeAs[SetMode],
	SetIntensity{}.Kind():     decodeAs[SetIntensity],
	SetStarSpeed{}.Kind():     decodeAs[SetStarSpeed],
	Resize{}.Kind():           decodeAs[Resize],
	PointerMove{}.Kind():      decodeAs[PointerMove],
	PointerLeave{}.Kind():     decodeAs[PointerLeave],
	Click{}.Kind():            decodeAs[Click],
	SetPaused{}.Kind():        decodeAs[SetPaused],
	TogglePause{}.Kind():      decodeAs[TogglePause],
	SetReducedMotion{}.Kind(): decodeAs[SetReducedMotion],
	ResetMotion{}.Kind():      decodeAs[ResetMotion],
}

// DecodeCommand parses a {"type": "...", ...} envelope.
func DecodeCommand(data []byte) (Command, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCommand, err)
	}
	decode, ok := commandDecoders[env.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, env.Type)
	}
	cmd, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedCommand, env.Type, err)
	}
	return cmd, nil
}

// EncodeCommand produces the envelope DecodeCommand accepts.
func EncodeCommand(c Command) ([]byte, error) {
	body, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	typ, _ := json.Marshal(c.Kind())

	out := make([]byte, 0, len(body)+len(typ)+10)
	out = append(out, `{"type":`...)
	out = append(out, typ...)
	if len(body) > 2 {
		out = append(out, ',')
		out = append(out, body[1:]...)
	} else {
		out = append(out, '}')
	}
	return out, nil
}
