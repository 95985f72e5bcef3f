// Package slate is the public embedding SDK for the slate runtime: engine
// lifecycle, the global interpreter lock, owned/borrowed reference handles,
// the shutdown handler registry and the execution bridge.
package slate

import (
	"fmt"
	"sync/atomic"

	"github.com/slate-lang/slate/internal/native"
)

// Owned wraps a native ref whose holder must release it exactly once.
// Passing an Owned elsewhere transfers that obligation; use Detach to make
// the transfer explicit. Closing twice, or closing a detached handle, is a
// programming error and panics.
type Owned struct {
	ref  native.Ref
	done *atomic.Bool
}

// NewOwned wraps a native ref the caller already owns.
func NewOwned(ref native.Ref) Owned {
	return Owned{ref: ref, done: new(atomic.Bool)}
}

// Ref returns the underlying native ref without transferring ownership.
func (o Owned) Ref() native.Ref {
	if o.done == nil || o.done.Load() {
		panic("slate: use of released or zero Owned handle")
	}
	return o.ref
}

// IsNil reports whether the handle wraps the null ref.
func (o Owned) IsNil() bool { return o.done == nil || o.ref == 0 }

// Close releases the handle's reference. Exactly one Close (or Detach) is
// required per Owned; a second call panics.
func (o Owned) Close() error {
	if o.done == nil {
		return nil
	}
	if o.done.Swap(true) {
		panic("slate: double release of Owned handle")
	}
	native.DecRef(o.ref)
	return nil
}

// Detach transfers ownership of the underlying ref to the caller, neutering
// the handle. The caller becomes responsible for the decref.
func (o Owned) Detach() native.Ref {
	if o.done == nil {
		return 0
	}
	if o.done.Swap(true) {
		panic("slate: detach of released Owned handle")
	}
	return o.ref
}

// Borrow observes the handle without transferring ownership.
func (o Owned) Borrow() Borrowed {
	return Borrowed{ref: o.Ref()}
}

// String renders the referenced object.
func (o Owned) String() string {
	if o.IsNil() {
		return "<nil>"
	}
	return native.Repr(o.ref)
}

// Borrowed wraps a native ref observed without an ownership obligation. It
// must never be released; promote it first when a new owner is needed.
type Borrowed struct {
	ref native.Ref
}

// BorrowRef wraps a native ref as a borrowed handle.
func BorrowRef(ref native.Ref) Borrowed { return Borrowed{ref: ref} }

// Ref returns the underlying native ref.
func (b Borrowed) Ref() native.Ref { return b.ref }

// IsNil reports whether the handle wraps the null ref.
func (b Borrowed) IsNil() bool { return b.ref == 0 }

// Promote creates a new owned reference to the same object by incrementing
// the native refcount. This is the only path from borrowed to owned.
func (b Borrowed) Promote() Owned {
	if b.ref == 0 {
		panic("slate: promote of nil Borrowed handle")
	}
	native.IncRef(b.ref)
	return NewOwned(b.ref)
}

// String renders the referenced object.
func (b Borrowed) String() string {
	if b.ref == 0 {
		return "<nil>"
	}
	return native.Repr(b.ref)
}

// AsInt extracts an integer value from a borrowed handle.
func (b Borrowed) AsInt() (int64, error) {
	if v, ok := native.AsInt(b.ref); ok {
		return v, nil
	}
	return 0, fmt.Errorf("slate: %s is not an int", b)
}

// AsString extracts a string value from a borrowed handle.
func (b Borrowed) AsString() (string, error) {
	if v, ok := native.AsString(b.ref); ok {
		return v, nil
	}
	return "", fmt.Errorf("slate: %s is not a string", b)
}

// AsInt extracts an integer value from an owned handle.
func (o Owned) AsInt() (int64, error) { return o.Borrow().AsInt() }

// AsString extracts a string value from an owned handle.
func (o Owned) AsString() (string, error) { return o.Borrow().AsString() }
