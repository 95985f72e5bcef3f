// Package native implements the embedded slate runtime: a manually
// refcounted object system addressed through opaque uintptr handles, a small
// expression/statement language, the global interpreter lock, per-thread
// states and the error slot.
//
// The package surface is deliberately shaped like a C embedding API: flat
// functions operating on Ref handles, failures reported through the error
// slot rather than Go errors. The host-side SDK in pkg/slate wraps this
// surface with Go-native ownership and error types.
package native

import (
	"fmt"
	"sort"
	"sync"
)

// Ref is an opaque handle to a runtime object. The zero Ref is the null
// handle and never refers to a live object.
type Ref uintptr

type kind uint8

const (
	kindNone kind = iota
	kindBool
	kindInt
	kindFloat
	kindStr
	kindDict
	kindCode
	kindModule
	kindBuiltin
)

func (k kind) String() string {
	switch k {
	case kindNone:
		return "none"
	case kindBool:
		return "bool"
	case kindInt:
		return "int"
	case kindFloat:
		return "float"
	case kindStr:
		return "str"
	case kindDict:
		return "dict"
	case kindCode:
		return "code"
	case kindModule:
		return "module"
	case kindBuiltin:
		return "builtin"
	default:
		return "unknown"
	}
}

// builtinFunc is the signature of native builtin functions. On failure the
// implementation sets the error slot and returns the null ref.
type builtinFunc func(args []Ref) Ref

type object struct {
	kind kind
	refs int64

	b    bool
	i    int64
	f    float64
	s    string
	dict map[string]Ref // dict and module entries; values are held refs
	code *codeObject
	fn   builtinFunc
	name string // module or builtin name
}

// objTable holds every live object. Access is guarded by its own mutex so
// that refcount bookkeeping stays correct even for the few operations that
// legitimately run without the GIL (IncRef on a promoted borrow, LiveObjects
// in tests).
var objTable = struct {
	mu      sync.Mutex
	objects map[Ref]*object
	next    Ref
}{
	objects: make(map[Ref]*object),
	next:    1,
}

func alloc(o *object) Ref {
	objTable.mu.Lock()
	defer objTable.mu.Unlock()
	r := objTable.next
	objTable.next++
	o.refs = 1
	objTable.objects[r] = o
	return r
}

func deref(r Ref) *object {
	objTable.mu.Lock()
	defer objTable.mu.Unlock()
	return objTable.objects[r]
}

// IncRef increments the reference count of r. Incrementing the null ref is a
// no-op, matching the boundary contract.
func IncRef(r Ref) {
	if r == 0 {
		return
	}
	objTable.mu.Lock()
	defer objTable.mu.Unlock()
	if o := objTable.objects[r]; o != nil {
		o.refs++
	}
}

// DecRef decrements the reference count of r and frees the object when it
// reaches zero. Container objects release their entries recursively.
// Decrementing the null ref is a no-op; decrementing a dead ref panics, since
// it means the caller violated the single-release contract.
func DecRef(r Ref) {
	if r == 0 {
		return
	}
	var entries []Ref
	objTable.mu.Lock()
	o := objTable.objects[r]
	if o == nil {
		objTable.mu.Unlock()
		panic(fmt.Sprintf("native: DecRef on dead ref %#x", uintptr(r)))
	}
	o.refs--
	if o.refs < 0 {
		objTable.mu.Unlock()
		panic(fmt.Sprintf("native: refcount underflow on ref %#x (%s)", uintptr(r), o.kind))
	}
	if o.refs == 0 {
		for _, v := range o.dict {
			entries = append(entries, v)
		}
		delete(objTable.objects, r)
	}
	objTable.mu.Unlock()

	for _, v := range entries {
		DecRef(v)
	}
}

// RefCount reports the current reference count of r, or 0 for the null ref
// and dead refs.
func RefCount(r Ref) int64 {
	if r == 0 {
		return 0
	}
	objTable.mu.Lock()
	defer objTable.mu.Unlock()
	if o := objTable.objects[r]; o != nil {
		return o.refs
	}
	return 0
}

// LiveObjects reports the number of live objects in the runtime, including
// the immortal singletons. Useful for leak checks: the count taken before
// and after an operation must match if the operation released everything it
// created.
func LiveObjects() int {
	objTable.mu.Lock()
	defer objTable.mu.Unlock()
	return len(objTable.objects)
}

// ── constructors ──────────────────────────────────────────────

// NewInt returns a new owned int object.
func NewInt(v int64) Ref { return alloc(&object{kind: kindInt, i: v}) }

// NewFloat returns a new owned float object.
func NewFloat(v float64) Ref { return alloc(&object{kind: kindFloat, f: v}) }

// NewStr returns a new owned string object.
func NewStr(v string) Ref { return alloc(&object{kind: kindStr, s: v}) }

// NewBool returns a new owned bool object.
func NewBool(v bool) Ref { return alloc(&object{kind: kindBool, b: v}) }

// DictNew returns a new owned empty mapping.
func DictNew() Ref {
	return alloc(&object{kind: kindDict, dict: make(map[string]Ref)})
}

func newModule(name string) Ref {
	return alloc(&object{kind: kindModule, name: name, dict: make(map[string]Ref)})
}

func newBuiltin(name string, fn builtinFunc) Ref {
	return alloc(&object{kind: kindBuiltin, name: name, fn: fn})
}

// ── accessors ─────────────────────────────────────────────────

// IsNone reports whether r is the None singleton.
func IsNone(r Ref) bool {
	o := deref(r)
	return o != nil && o.kind == kindNone
}

// AsInt returns the integer value of r, or false if r is not an int.
func AsInt(r Ref) (int64, bool) {
	o := deref(r)
	if o == nil || o.kind != kindInt {
		return 0, false
	}
	return o.i, true
}

// AsFloat returns the float value of r, converting ints, or false otherwise.
func AsFloat(r Ref) (float64, bool) {
	o := deref(r)
	if o == nil {
		return 0, false
	}
	switch o.kind {
	case kindFloat:
		return o.f, true
	case kindInt:
		return float64(o.i), true
	}
	return 0, false
}

// AsString returns the string value of r, or false if r is not a string.
func AsString(r Ref) (string, bool) {
	o := deref(r)
	if o == nil || o.kind != kindStr {
		return "", false
	}
	return o.s, true
}

// Repr renders r for display. Dead refs render as <dead>.
func Repr(r Ref) string {
	o := deref(r)
	if o == nil {
		return "<dead>"
	}
	switch o.kind {
	case kindNone:
		return "None"
	case kindBool:
		if o.b {
			return "True"
		}
		return "False"
	case kindInt:
		return fmt.Sprintf("%d", o.i)
	case kindFloat:
		return fmt.Sprintf("%g", o.f)
	case kindStr:
		return fmt.Sprintf("%q", o.s)
	case kindDict:
		return fmt.Sprintf("<dict %d>", len(o.dict))
	case kindCode:
		return fmt.Sprintf("<code %s>", o.code.filename)
	case kindModule:
		return fmt.Sprintf("<module %s>", o.name)
	case kindBuiltin:
		return fmt.Sprintf("<builtin %s>", o.name)
	}
	return "<unknown>"
}

// ── mappings ──────────────────────────────────────────────────

// DictSetItem binds key to v in d, taking its own reference to v. The
// previous binding, if any, is released.
func DictSetItem(d Ref, key string, v Ref) bool {
	o := deref(d)
	if o == nil || o.dict == nil {
		return false
	}
	IncRef(v)
	objTable.mu.Lock()
	old, had := o.dict[key]
	o.dict[key] = v
	objTable.mu.Unlock()
	if had {
		DecRef(old)
	}
	return true
}

// DictGetItem returns the value bound to key as a borrowed ref, or the null
// ref if absent.
func DictGetItem(d Ref, key string) Ref {
	o := deref(d)
	if o == nil || o.dict == nil {
		return 0
	}
	objTable.mu.Lock()
	defer objTable.mu.Unlock()
	return o.dict[key]
}

// DictDelItem removes key from d, releasing the held value. Reports whether
// the key was present.
func DictDelItem(d Ref, key string) bool {
	o := deref(d)
	if o == nil || o.dict == nil {
		return false
	}
	objTable.mu.Lock()
	v, had := o.dict[key]
	delete(o.dict, key)
	objTable.mu.Unlock()
	if had {
		DecRef(v)
	}
	return had
}

// DictKeys returns the keys of d in sorted order.
func DictKeys(d Ref) []string {
	o := deref(d)
	if o == nil || o.dict == nil {
		return nil
	}
	objTable.mu.Lock()
	keys := make([]string, 0, len(o.dict))
	for k := range o.dict {
		keys = append(keys, k)
	}
	objTable.mu.Unlock()
	sort.Strings(keys)
	return keys
}

// DictClear removes every binding from d, releasing the held values.
func DictClear(d Ref) {
	o := deref(d)
	if o == nil || o.dict == nil {
		return
	}
	objTable.mu.Lock()
	vals := make([]Ref, 0, len(o.dict))
	for k, v := range o.dict {
		vals = append(vals, v)
		delete(o.dict, k)
	}
	objTable.mu.Unlock()
	for _, v := range vals {
		DecRef(v)
	}
}

// DictLen reports the number of bindings in d.
func DictLen(d Ref) int {
	o := deref(d)
	if o == nil || o.dict == nil {
		return 0
	}
	objTable.mu.Lock()
	defer objTable.mu.Unlock()
	return len(o.dict)
}
