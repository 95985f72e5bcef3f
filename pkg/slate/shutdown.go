package slate

import "reflect"

// ShutdownHandler is a zero-argument callback run during engine teardown.
// Handlers run in LIFO order relative to registration.
type ShutdownHandler func()

// The handler registry. Mutated only on the lifecycle paths, which already
// hold initialization-time exclusivity, so no locking of its own.
var shutdownHandlers []ShutdownHandler

// AddShutdownHandler appends a handler to the registry. The same handler may
// be added more than once; it will run once per registration.
func AddShutdownHandler(h ShutdownHandler) {
	shutdownHandlers = append(shutdownHandlers, h)
}

// RemoveShutdownHandler removes the most recently added occurrence of h, or
// does nothing when h is not registered.
func RemoveShutdownHandler(h ShutdownHandler) {
	target := reflect.ValueOf(h).Pointer()
	for i := len(shutdownHandlers) - 1; i >= 0; i-- {
		if reflect.ValueOf(shutdownHandlers[i]).Pointer() == target {
			shutdownHandlers = append(shutdownHandlers[:i], shutdownHandlers[i+1:]...)
			return
		}
	}
}

// drainShutdownHandlers pops and invokes handlers from the tail until the
// registry is empty. Handlers must not register new handlers while the drain
// runs. The drain is best-effort: a panicking handler is recovered and
// logged, and the drain continues with the next one.
func drainShutdownHandlers() {
	for len(shutdownHandlers) > 0 {
		n := len(shutdownHandlers)
		h := shutdownHandlers[n-1]
		shutdownHandlers = shutdownHandlers[:n-1]
		safeCall("shutdown handler", h)
	}
}
