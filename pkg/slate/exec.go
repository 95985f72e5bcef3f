package slate

import (
	"fmt"

	"github.com/slate-lang/slate/internal/native"
)

// RunMode selects how source text is compiled.
type RunMode = native.RunMode

const (
	// ModeEval compiles a single expression.
	ModeEval = native.ModeEval
	// ModeExec compiles a statement block.
	ModeExec = native.ModeExec
	// ModeSingle compiles one interactive statement.
	ModeSingle = native.ModeSingle
)

type runConfig struct {
	globals native.Ref
	locals  native.Ref
}

// RunOption configures the namespace pair an execution runs against.
type RunOption func(*runConfig)

// WithGlobals sets the globals mapping for the execution.
func WithGlobals(g Borrowed) RunOption {
	return func(c *runConfig) { c.globals = g.Ref() }
}

// WithLocals sets the locals mapping for the execution.
func WithLocals(l Borrowed) RunOption {
	return func(c *runConfig) { c.locals = l.Ref() }
}

// WithScope runs against the scope's mapping as both globals and locals.
func WithScope(s *Scope) RunOption {
	return func(c *runConfig) { c.globals = s.Globals().Ref() }
}

// resolveNamespace applies the defaulting rules: absent locals alias
// globals; absent globals fall back to the active execution frame's globals,
// or a synthesized fresh mapping carrying the builtins binding. The returned
// cleanup releases any synthesized mapping and must run on every exit path.
func resolveNamespace(cfg runConfig) (globals, locals native.Ref, cleanup func()) {
	cleanup = func() {}
	globals, locals = cfg.globals, cfg.locals
	if globals == 0 {
		if fg := native.FrameGlobals(); fg != 0 {
			globals = fg
		} else {
			synth := native.DictNew()
			native.DictSetItem(synth, native.BuiltinsKey, native.Builtins())
			globals = synth
			cleanup = func() { native.DecRef(synth) }
		}
	}
	if locals == 0 {
		locals = globals
	}
	return globals, locals, cleanup
}

// Compile compiles source text under the given mode without executing it.
// The result is an owned code object. Compile requires a running engine and
// the GIL held.
func Compile(source, filename string, mode RunMode) (Owned, error) {
	if !IsInitialized() {
		return Owned{}, ErrNotInitialized
	}
	code := native.Compile(source, filename, mode)
	if code == 0 {
		return Owned{}, errorFromSlot()
	}
	return NewOwned(code), nil
}

// Eval runs source text as a single expression and returns its owned
// result. Requires a running engine and the GIL held.
func Eval(source string, opts ...RunOption) (Owned, error) {
	if !IsInitialized() {
		return Owned{}, ErrNotInitialized
	}
	var cfg runConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	globals, locals, cleanup := resolveNamespace(cfg)
	defer cleanup()

	code := native.Compile(source, "<string>", native.ModeEval)
	if code == 0 {
		return Owned{}, errorFromSlot()
	}
	defer native.DecRef(code)

	res := native.EvalCode(code, globals, locals)
	if res == 0 {
		return Owned{}, errorFromSlot()
	}
	return NewOwned(res), nil
}

// Exec runs source text as a statement block. It succeeds only when the
// block produces no value; a block ending in an expression with a non-None
// value is a contract violation. All intermediate refs are released on every
// path.
func Exec(source string, opts ...RunOption) error {
	if !IsInitialized() {
		return ErrNotInitialized
	}
	var cfg runConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	globals, locals, cleanup := resolveNamespace(cfg)
	defer cleanup()

	code := native.Compile(source, "<string>", native.ModeExec)
	if code == 0 {
		return errorFromSlot()
	}
	defer native.DecRef(code)

	res := native.EvalCode(code, globals, locals)
	if res == 0 {
		return errorFromSlot()
	}
	defer native.DecRef(res)
	if !native.IsNone(res) {
		return fmt.Errorf("slate: exec produced a value (%s); statement blocks must not", native.Repr(res))
	}
	return nil
}

// RunSimpleString runs source text as statements and ignores any produced
// value. Convenience for bootstrap-style snippets.
func RunSimpleString(source string) error {
	if !IsInitialized() {
		return ErrNotInitialized
	}
	globals, locals, cleanup := resolveNamespace(runConfig{})
	defer cleanup()

	code := native.Compile(source, "<string>", native.ModeExec)
	if code == 0 {
		return errorFromSlot()
	}
	defer native.DecRef(code)

	res := native.EvalCode(code, globals, locals)
	if res == 0 {
		return errorFromSlot()
	}
	native.DecRef(res)
	return nil
}

// EvalCode executes a compiled code object against the resolved namespace
// pair and returns the owned result.
func EvalCode(code Owned, opts ...RunOption) (Owned, error) {
	if !IsInitialized() {
		return Owned{}, ErrNotInitialized
	}
	var cfg runConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	globals, locals, cleanup := resolveNamespace(cfg)
	defer cleanup()

	res := native.EvalCode(code.Ref(), globals, locals)
	if res == 0 {
		return Owned{}, errorFromSlot()
	}
	return NewOwned(res), nil
}
