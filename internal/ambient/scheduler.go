package ambient

import (
	"sync"
	"time"
)

// FrameID identifies a pending frame request. Zero means none.
type FrameID uint64

// FrameFunc is invoked with the scheduler's monotonic timestamp.
type FrameFunc func(now time.Duration)

// Scheduler supplies monotonic time and one-shot frame callbacks.
type Scheduler interface {
	Now() time.Duration
	RequestFrame(fn FrameFunc) FrameID
	CancelFrame(id FrameID)
}

// FrameScheduler holds at most one pending frame and runs it when the
// host calls Fire. The host decides the cadence: a ticker, a vsync
// callback, or a test stepping a ManualClock.
type FrameScheduler struct {
	clock   func() time.Duration
	nextID  FrameID
	pending FrameID
	fn      FrameFunc
}

// NewFrameScheduler creates a scheduler reading time from clock.
func NewFrameScheduler(clock func() time.Duration) *FrameScheduler {
	return &FrameScheduler{clock: clock}
}

// Now returns the current clock value.
func (s *FrameScheduler) Now() time.Duration {
	return s.clock()
}

// RequestFrame replaces any pending request with fn.
func (s *FrameScheduler) RequestFrame(fn FrameFunc) FrameID {
	s.nextID++
	s.pending = s.nextID
	s.fn = fn
	return s.pending
}

// CancelFrame drops the pending request if id matches it.
func (s *FrameScheduler) CancelFrame(id FrameID) {
	if id != 0 && id == s.pending {
		s.pending = 0
		s.fn = nil
	}
}

// Pending reports whether a frame is waiting to fire.
func (s *FrameScheduler) Pending() bool {
	return s.pending != 0
}

// Fire runs the pending callback, if any, and reports whether it ran.
// The request is consumed before the callback so the callback may
// request the next frame.
func (s *FrameScheduler) Fire() bool {
	if s.pending == 0 {
		return false
	}
	fn := s.fn
	s.pending = 0
	s.fn = nil
	fn(s.clock())
	return true
}

// ManualClock is a settable monotonic clock.
type ManualClock struct {
	mu  sync.Mutex
	now time.Duration
}

// Now returns the clock value.
func (c *ManualClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	c.mu.Unlock()
}

// Set moves the clock to t. Earlier values are ignored.
func (c *ManualClock) Set(t time.Duration) {
	c.mu.Lock()
	if t > c.now {
		c.now = t
	}
	c.mu.Unlock()
}

// WallClock returns a clock measuring monotonic time since it was created.
func WallClock() func() time.Duration {
	start := time.Now()
	return func() time.Duration {
		return time.Since(start)
	}
}
