package native

import "sync"

// Error kind names used by the runtime itself. Hosts compare against these
// when they need to special-case a failure class.
const (
	ErrKindSyntax    = "SyntaxError"
	ErrKindName      = "NameError"
	ErrKindType      = "TypeError"
	ErrKindValue     = "ValueError"
	ErrKindZeroDiv   = "ZeroDivisionError"
	ErrKindInterrupt = "KeyboardInterrupt"
	ErrKindSystem    = "SystemError"
)

// errSlot is the runtime's last-raised-error triple. The slot belongs to
// whichever thread holds the GIL; access without the GIL is a host bug, but
// the mutex keeps the bookkeeping itself coherent.
var errSlot = struct {
	mu        sync.Mutex
	set       bool
	kind      string
	message   string
	traceback []string
}{}

// ErrSet raises an error into the slot, replacing any previous one.
func ErrSet(kind, message string) {
	ErrRestore(kind, message, nil)
}

// ErrSetTraceback raises an error with an explicit traceback.
func ErrSetTraceback(kind, message string, traceback []string) {
	ErrRestore(kind, message, traceback)
}

// ErrOccurred reports whether an error is pending.
func ErrOccurred() bool {
	errSlot.mu.Lock()
	defer errSlot.mu.Unlock()
	return errSlot.set
}

// ErrFetch returns and clears the pending error triple. Returns ok=false
// when no error is pending.
func ErrFetch() (kind, message string, traceback []string, ok bool) {
	errSlot.mu.Lock()
	defer errSlot.mu.Unlock()
	if !errSlot.set {
		return "", "", nil, false
	}
	kind, message, traceback = errSlot.kind, errSlot.message, errSlot.traceback
	errSlot.set = false
	errSlot.kind, errSlot.message, errSlot.traceback = "", "", nil
	return kind, message, traceback, true
}

// ErrRestore puts a previously fetched triple back into the slot.
func ErrRestore(kind, message string, traceback []string) {
	errSlot.mu.Lock()
	defer errSlot.mu.Unlock()
	errSlot.set = true
	errSlot.kind = kind
	errSlot.message = message
	errSlot.traceback = traceback
}

// ErrClear discards any pending error.
func ErrClear() {
	errSlot.mu.Lock()
	defer errSlot.mu.Unlock()
	errSlot.set = false
	errSlot.kind, errSlot.message, errSlot.traceback = "", "", nil
}
