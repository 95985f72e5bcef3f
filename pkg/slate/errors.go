package slate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/slate-lang/slate/internal/native"
)

// ErrNotInitialized is returned by bridge operations invoked before the
// engine is running.
var ErrNotInitialized = errors.New("slate: engine not initialized")

// Error carries the embedded runtime's last raised error as a host-level
// error: the (kind, message, traceback) triple fetched from the error slot.
type Error struct {
	Kind      string
	Message   string
	Traceback []string
}

func (e *Error) Error() string {
	if len(e.Traceback) == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s\n%s", e.Kind, e.Message, strings.Join(e.Traceback, "\n"))
}

// IsInterrupt reports whether the error is the asynchronous interrupt
// raised by Interrupt.
func (e *Error) IsInterrupt() bool { return e.Kind == native.ErrKindInterrupt }

// errorFromSlot converts the pending native error into a *Error, clearing
// the slot. Falls back to a generic error when the slot is unexpectedly
// empty.
func errorFromSlot() error {
	kind, msg, tb, ok := native.ErrFetch()
	if !ok {
		return &Error{Kind: native.ErrKindSystem, Message: "native call failed without setting an error"}
	}
	if max := GetConfig().MaxTracebackDepth; max > 0 && len(tb) > max {
		tb = tb[:max]
	}
	return &Error{Kind: kind, Message: msg, Traceback: tb}
}

// restoreError puts a fetched error back into the native error slot, used by
// the re-entrant bootstrap shim to hand a failure to the embedded side
// instead of raising in the host.
func restoreError(err error) {
	var se *Error
	if errors.As(err, &se) {
		native.ErrRestore(se.Kind, se.Message, se.Traceback)
		return
	}
	native.ErrRestore(native.ErrKindSystem, err.Error(), nil)
}
