package main

import (
	"testing"
	"time"
)

func TestDebouncerSettles(t *testing.T) {
	d := newDebouncer(100, resizeDebounce)
	start := time.Unix(0, 0)

	if _, ok := d.Observe(100, start); ok {
		t.Error("Unchanged value should not fire")
	}
	if _, ok := d.Observe(200, start); ok {
		t.Error("New value should wait")
	}
	if _, ok := d.Observe(200, start.Add(100*time.Millisecond)); ok {
		t.Error("Should not fire before the delay")
	}
	v, ok := d.Observe(200, start.Add(resizeDebounce))
	if !ok || v != 200 {
		t.Errorf("Expected 200 to settle, got %d (%v)", v, ok)
	}
	if _, ok := d.Observe(200, start.Add(time.Second)); ok {
		t.Error("Settled value should fire once")
	}
}

func TestDebouncerRestartsOnChange(t *testing.T) {
	d := newDebouncer(100, resizeDebounce)
	start := time.Unix(0, 0)

	d.Observe(200, start)
	d.Observe(300, start.Add(150*time.Millisecond))
	if _, ok := d.Observe(300, start.Add(200*time.Millisecond)); ok {
		t.Error("Timer should restart when the value changes")
	}
	if v, ok := d.Observe(300, start.Add(330*time.Millisecond)); !ok || v != 300 {
		t.Errorf("Expected 300 to settle, got %d (%v)", v, ok)
	}
}

func TestDebouncerReturnToCurrent(t *testing.T) {
	d := newDebouncer(100, resizeDebounce)
	start := time.Unix(0, 0)

	d.Observe(200, start)
	d.Observe(100, start.Add(10*time.Millisecond))
	if _, ok := d.Observe(100, start.Add(time.Second)); ok {
		t.Error("Returning to the current value should not fire")
	}
}
