package slate

import "github.com/slate-lang/slate/internal/native"

// CurrentThreadID returns the embedded-runtime thread state id of the
// calling goroutine, creating the state on first use. Pass it to Interrupt
// from another goroutine to interrupt this one.
func CurrentThreadID() uint64 {
	return native.EnsureThreadState()
}

// Interrupt latches a keyboard-interrupt-equivalent on the given thread
// state and returns the number of states modified: 0 when the id is
// unknown, 1 otherwise. The interrupt is advisory: the target observes it at
// its next statement boundary. The latch does not stack, so a second call
// before delivery still returns 1.
func Interrupt(threadID uint64) int {
	return native.InterruptThread(threadID)
}
