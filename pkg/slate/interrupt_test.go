package slate

import (
	"errors"
	"testing"
)

func TestInterruptUnknownThread(t *testing.T) {
	withEngine(t)
	if n := Interrupt(1 << 62); n != 0 {
		t.Fatalf("interrupt of unknown thread modified %d state(s)", n)
	}
}

func TestInterruptLatchDoesNotStack(t *testing.T) {
	withEngine(t)
	id := CurrentThreadID()

	if n := Interrupt(id); n != 1 {
		t.Fatalf("first interrupt modified %d state(s), want 1", n)
	}
	// A second request before delivery latches onto the same pending flag.
	if n := Interrupt(id); n != 1 {
		t.Fatalf("second interrupt modified %d state(s), want 1", n)
	}

	gil := NewGILState()
	defer gil.Close()

	_, err := Eval("1 + 1")
	var se *Error
	if !errors.As(err, &se) || !se.IsInterrupt() {
		t.Fatalf("interrupted eval returned %v, want an interrupt error", err)
	}

	// One delivery consumes the latch regardless of how many requests fed it.
	if v, err := Eval("1 + 1"); err != nil {
		t.Fatalf("eval after delivery failed: %v", err)
	} else {
		v.Close()
	}
}

func TestInterruptFromAnotherGoroutine(t *testing.T) {
	withEngine(t)
	id := CurrentThreadID()

	done := make(chan int)
	go func() { done <- Interrupt(id) }()
	if n := <-done; n != 1 {
		t.Fatalf("cross-goroutine interrupt modified %d state(s), want 1", n)
	}

	gil := NewGILState()
	defer gil.Close()
	_, err := Eval("40 + 2")
	var se *Error
	if !errors.As(err, &se) || !se.IsInterrupt() {
		t.Fatalf("got %v, want an interrupt error", err)
	}
}
