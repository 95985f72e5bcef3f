package native

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// ImportError kind, raised by import statements.
const ErrKindImport = "ImportError"

// ── frames ────────────────────────────────────────────────────

type frame struct {
	code    *codeObject
	globals Ref
	locals  Ref
	line    int
}

var frameStack = struct {
	mu     sync.Mutex
	frames []*frame
}{}

func pushFrame(f *frame) {
	IncRef(f.globals)
	IncRef(f.locals)
	frameStack.mu.Lock()
	frameStack.frames = append(frameStack.frames, f)
	frameStack.mu.Unlock()
}

func popFrame() {
	frameStack.mu.Lock()
	n := len(frameStack.frames)
	f := frameStack.frames[n-1]
	frameStack.frames = frameStack.frames[:n-1]
	frameStack.mu.Unlock()
	DecRef(f.locals)
	DecRef(f.globals)
}

func currentFrame() *frame {
	frameStack.mu.Lock()
	defer frameStack.mu.Unlock()
	if n := len(frameStack.frames); n > 0 {
		return frameStack.frames[n-1]
	}
	return nil
}

// FrameGlobals returns the innermost active frame's globals as a borrowed
// ref, or the null ref when no frame is executing.
func FrameGlobals() Ref {
	if f := currentFrame(); f != nil {
		return f.globals
	}
	return 0
}

// TracebackLines returns the source lines of every active frame's code
// object, innermost frame first. The re-entrant bootstrap shim scans these
// for the import statement that triggered initialization.
func TracebackLines() []string {
	frameStack.mu.Lock()
	defer frameStack.mu.Unlock()
	var out []string
	for i := len(frameStack.frames) - 1; i >= 0; i-- {
		out = append(out, frameStack.frames[i].code.lines...)
	}
	return out
}

func resetFrames() {
	frameStack.mu.Lock()
	defer frameStack.mu.Unlock()
	frameStack.frames = nil
}

func tracebackSnapshot() []string {
	frameStack.mu.Lock()
	defer frameStack.mu.Unlock()
	var tb []string
	for _, f := range frameStack.frames {
		line := ""
		if f.line-1 >= 0 && f.line-1 < len(f.code.lines) {
			line = strings.TrimSpace(f.code.lines[f.line-1])
		}
		tb = append(tb, fmt.Sprintf("File %q, line %d: %s", f.code.filename, f.line, line))
	}
	return tb
}

func raise(kind, format string, args ...interface{}) Ref {
	ErrSetTraceback(kind, fmt.Sprintf(format, args...), tracebackSnapshot())
	return 0
}

// ── compile / eval ────────────────────────────────────────────

// Compile parses source text into a code object without executing it. On
// failure it sets the error slot and returns the null ref.
func Compile(source, filename string, mode RunMode) Ref {
	code, err := parseSource(source, filename, mode)
	if err != nil {
		ErrSet(ErrKindSyntax, err.Error())
		return 0
	}
	return alloc(&object{kind: kindCode, code: code})
}

// CodeMode reports the compile mode of a code object.
func CodeMode(code Ref) (RunMode, bool) {
	o := deref(code)
	if o == nil || o.kind != kindCode {
		return 0, false
	}
	return o.code.mode, true
}

// EvalCode executes a code object against the given namespace pair and
// returns a new (owned) ref to the result: the expression value in eval
// mode, None in exec mode, the statement's value or None in single mode. On
// failure the error slot is set and the null ref returned. The caller must
// hold the GIL.
func EvalCode(code, globals, locals Ref) Ref {
	co := deref(code)
	if co == nil || co.kind != kindCode {
		return raise(ErrKindType, "EvalCode: not a code object")
	}
	if g := deref(globals); g == nil || g.dict == nil {
		return raise(ErrKindType, "EvalCode: globals is not a mapping")
	}
	if l := deref(locals); l == nil || l.dict == nil {
		return raise(ErrKindType, "EvalCode: locals is not a mapping")
	}

	f := &frame{code: co.code, globals: globals, locals: locals}
	pushFrame(f)
	defer popFrame()

	var last Ref // owned value of the last executed expression statement
	for _, st := range co.code.stmts {
		f.line = st.nodeLine()
		if consumePendingInterrupt() {
			DecRef(last)
			return raise(ErrKindInterrupt, "interrupted")
		}
		v, ok := evalStatement(st, f)
		if !ok {
			DecRef(last)
			return 0
		}
		DecRef(last)
		last = v
	}

	if co.code.mode == ModeEval {
		if last == 0 {
			return raise(ErrKindSystem, "eval produced no value")
		}
		return last
	}
	// Exec and single modes surface the last expression statement's value so
	// the host can enforce its "statements must not produce a value"
	// contract (and so a REPL can print results); None when there is none.
	if last != 0 {
		return last
	}
	n := None()
	IncRef(n)
	return n
}

// evalStatement executes one statement. For expression statements it returns
// the owned value; for assignments and imports it returns the null ref with
// ok=true.
func evalStatement(st node, f *frame) (Ref, bool) {
	switch n := st.(type) {
	case assignNode:
		v, ok := evalExpr(n.rhs, f)
		if !ok {
			return 0, false
		}
		DictSetItem(f.locals, n.name, v)
		DecRef(v)
		return 0, true
	case importNode:
		return 0, execImport(n, f)
	default:
		v, ok := evalExpr(st, f)
		if !ok {
			return 0, false
		}
		return v, true
	}
}

func execImport(n importNode, f *frame) bool {
	mod := ModuleRef(n.module)
	if mod == 0 {
		raise(ErrKindImport, "no module named %q", n.module)
		return false
	}
	if n.names == nil {
		DictSetItem(f.locals, n.alias, mod)
		return true
	}
	for _, in := range n.names {
		v := DictGetItem(mod, in.name)
		if v == 0 {
			raise(ErrKindImport, "cannot import %q from %q", in.name, n.module)
			return false
		}
		DictSetItem(f.locals, in.alias, v)
	}
	return true
}

// evalExpr evaluates an expression and returns an owned ref.
func evalExpr(e node, f *frame) (Ref, bool) {
	switch n := e.(type) {
	case litNode:
		switch n.kind {
		case kindInt:
			return NewInt(n.i), true
		case kindFloat:
			return NewFloat(n.f), true
		case kindStr:
			return NewStr(n.s), true
		case kindBool:
			return NewBool(n.b), true
		case kindNone:
			v := None()
			IncRef(v)
			return v, true
		}
	case nameNode:
		f.line = n.line
		v := lookupName(n.name, f)
		if v == 0 {
			raise(ErrKindName, "name %q is not defined", n.name)
			return 0, false
		}
		IncRef(v)
		return v, true
	case unaryNode:
		return evalUnary(n, f)
	case binNode:
		return evalBinary(n, f)
	case callNode:
		return evalCall(n, f)
	}
	raise(ErrKindSystem, "unknown expression node")
	return 0, false
}

// lookupName resolves a name against locals, globals, the namespace's own
// __builtins__ binding, then the runtime builtins. Returns a borrowed ref.
func lookupName(name string, f *frame) Ref {
	if v := DictGetItem(f.locals, name); v != 0 {
		return v
	}
	if v := DictGetItem(f.globals, name); v != 0 {
		return v
	}
	if b := DictGetItem(f.globals, BuiltinsKey); b != 0 {
		if v := DictGetItem(b, name); v != 0 {
			return v
		}
	}
	return DictGetItem(Builtins(), name)
}

func evalUnary(n unaryNode, f *frame) (Ref, bool) {
	x, ok := evalExpr(n.x, f)
	if !ok {
		return 0, false
	}
	defer DecRef(x)
	switch n.op {
	case "-":
		if i, ok := AsInt(x); ok {
			return NewInt(-i), true
		}
		if fl, ok := AsFloat(x); ok {
			return NewFloat(-fl), true
		}
		raise(ErrKindType, "bad operand type for unary -")
		return 0, false
	case "not":
		return NewBool(!truthy(x)), true
	}
	raise(ErrKindSystem, "unknown unary operator %q", n.op)
	return 0, false
}

func truthy(r Ref) bool {
	o := deref(r)
	if o == nil {
		return false
	}
	switch o.kind {
	case kindNone:
		return false
	case kindBool:
		return o.b
	case kindInt:
		return o.i != 0
	case kindFloat:
		return o.f != 0
	case kindStr:
		return o.s != ""
	case kindDict, kindModule:
		return len(o.dict) > 0
	}
	return true
}

func evalBinary(n binNode, f *frame) (Ref, bool) {
	if n.op == "and" || n.op == "or" {
		l, ok := evalExpr(n.l, f)
		if !ok {
			return 0, false
		}
		if (n.op == "and" && !truthy(l)) || (n.op == "or" && truthy(l)) {
			return l, true
		}
		DecRef(l)
		return evalExpr(n.r, f)
	}

	l, ok := evalExpr(n.l, f)
	if !ok {
		return 0, false
	}
	defer DecRef(l)
	r, ok := evalExpr(n.r, f)
	if !ok {
		return 0, false
	}
	defer DecRef(r)

	switch n.op {
	case "==", "!=", "<", "<=", ">", ">=":
		return compare(n.op, l, r)
	}

	if ls, ok := AsString(l); ok {
		rs, ok2 := AsString(r)
		if n.op == "+" && ok2 {
			return NewStr(ls + rs), true
		}
		raise(ErrKindType, "unsupported operand types for %s", n.op)
		return 0, false
	}

	li, lInt := AsInt(l)
	ri, rInt := AsInt(r)
	if lInt && rInt && n.op != "/" {
		switch n.op {
		case "+":
			return NewInt(li + ri), true
		case "-":
			return NewInt(li - ri), true
		case "*":
			return NewInt(li * ri), true
		case "%":
			if ri == 0 {
				raise(ErrKindZeroDiv, "integer modulo by zero")
				return 0, false
			}
			return NewInt(li % ri), true
		}
	}

	lf, lNum := AsFloat(l)
	rf, rNum := AsFloat(r)
	if !lNum || !rNum {
		raise(ErrKindType, "unsupported operand types for %s", n.op)
		return 0, false
	}
	switch n.op {
	case "+":
		return NewFloat(lf + rf), true
	case "-":
		return NewFloat(lf - rf), true
	case "*":
		return NewFloat(lf * rf), true
	case "/":
		if rf == 0 {
			raise(ErrKindZeroDiv, "division by zero")
			return 0, false
		}
		// Integer division stays integral when it divides evenly.
		if lInt && rInt && ri != 0 && li%ri == 0 {
			return NewInt(li / ri), true
		}
		return NewFloat(lf / rf), true
	case "%":
		raise(ErrKindType, "modulo requires integers")
		return 0, false
	}
	raise(ErrKindSystem, "unknown binary operator %q", n.op)
	return 0, false
}

func compare(op string, l, r Ref) (Ref, bool) {
	if ls, ok := AsString(l); ok {
		rs, ok2 := AsString(r)
		if !ok2 {
			if op == "==" {
				return NewBool(false), true
			}
			if op == "!=" {
				return NewBool(true), true
			}
			raise(ErrKindType, "cannot order string and non-string")
			return 0, false
		}
		return NewBool(cmpOrdered(op, strings.Compare(ls, rs))), true
	}
	lf, lNum := AsFloat(l)
	rf, rNum := AsFloat(r)
	if lNum && rNum {
		c := 0
		if lf < rf {
			c = -1
		} else if lf > rf {
			c = 1
		}
		return NewBool(cmpOrdered(op, c)), true
	}
	switch op {
	case "==":
		return NewBool(l == r), true
	case "!=":
		return NewBool(l != r), true
	}
	raise(ErrKindType, "unsupported comparison")
	return 0, false
}

func cmpOrdered(op string, c int) bool {
	switch op {
	case "==":
		return c == 0
	case "!=":
		return c != 0
	case "<":
		return c < 0
	case "<=":
		return c <= 0
	case ">":
		return c > 0
	case ">=":
		return c >= 0
	}
	return false
}

func evalCall(n callNode, f *frame) (Ref, bool) {
	fn, ok := evalExpr(n.fn, f)
	if !ok {
		return 0, false
	}
	defer DecRef(fn)
	o := deref(fn)
	if o == nil || o.kind != kindBuiltin {
		raise(ErrKindType, "%s is not callable", Repr(fn))
		return 0, false
	}

	args := make([]Ref, 0, len(n.args))
	release := func() {
		for _, a := range args {
			DecRef(a)
		}
	}
	for _, an := range n.args {
		a, ok := evalExpr(an, f)
		if !ok {
			release()
			return 0, false
		}
		args = append(args, a)
	}
	defer release()

	res := o.fn(args)
	if res == 0 {
		if !ErrOccurred() {
			raise(ErrKindSystem, "builtin %q failed without setting an error", o.name)
		}
		return 0, false
	}
	return res, true
}

// ── builtins ──────────────────────────────────────────────────

func installBuiltins(dict Ref) {
	install := func(name string, fn builtinFunc) {
		f := newBuiltin(name, fn)
		DictSetItem(dict, name, f)
		DecRef(f)
	}
	install("abs", builtinAbs)
	install("len", builtinLen)
	install("str", builtinStr)
	install("int", builtinInt)
	install("min", builtinMinMax(false))
	install("max", builtinMinMax(true))
	install("eval", builtinEval)
}

func builtinAbs(args []Ref) Ref {
	if len(args) != 1 {
		return raise(ErrKindType, "abs() takes exactly one argument")
	}
	if i, ok := AsInt(args[0]); ok {
		if i < 0 {
			i = -i
		}
		return NewInt(i)
	}
	if fl, ok := AsFloat(args[0]); ok {
		if fl < 0 {
			fl = -fl
		}
		return NewFloat(fl)
	}
	return raise(ErrKindType, "abs() requires a number")
}

func builtinLen(args []Ref) Ref {
	if len(args) != 1 {
		return raise(ErrKindType, "len() takes exactly one argument")
	}
	if s, ok := AsString(args[0]); ok {
		return NewInt(int64(len(s)))
	}
	if o := deref(args[0]); o != nil && o.dict != nil {
		return NewInt(int64(DictLen(args[0])))
	}
	return raise(ErrKindType, "object has no length")
}

func plainStr(r Ref) string {
	if s, ok := AsString(r); ok {
		return s
	}
	return Repr(r)
}

func builtinStr(args []Ref) Ref {
	if len(args) != 1 {
		return raise(ErrKindType, "str() takes exactly one argument")
	}
	return NewStr(plainStr(args[0]))
}

func builtinInt(args []Ref) Ref {
	if len(args) != 1 {
		return raise(ErrKindType, "int() takes exactly one argument")
	}
	if i, ok := AsInt(args[0]); ok {
		return NewInt(i)
	}
	if fl, ok := AsFloat(args[0]); ok {
		return NewInt(int64(fl))
	}
	if s, ok := AsString(args[0]); ok {
		v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return raise(ErrKindValue, "invalid literal for int(): %q", s)
		}
		return NewInt(v)
	}
	return raise(ErrKindType, "int() argument must be a number or string")
}

func builtinMinMax(wantMax bool) builtinFunc {
	return func(args []Ref) Ref {
		if len(args) < 2 {
			return raise(ErrKindType, "min()/max() take at least two arguments")
		}
		best, ok := AsFloat(args[0])
		bestIdx := 0
		if !ok {
			return raise(ErrKindType, "min()/max() require numbers")
		}
		for i := 1; i < len(args); i++ {
			v, ok := AsFloat(args[i])
			if !ok {
				return raise(ErrKindType, "min()/max() require numbers")
			}
			if (wantMax && v > best) || (!wantMax && v < best) {
				best = v
				bestIdx = i
			}
		}
		IncRef(args[bestIdx])
		return args[bestIdx]
	}
}

// builtinEval re-enters the evaluator. When no namespace argument is given
// it runs against the calling frame's globals, which is what makes the
// host-side "active frame" namespace defaulting observable.
func builtinEval(args []Ref) Ref {
	if len(args) < 1 || len(args) > 3 {
		return raise(ErrKindType, "eval() takes one to three arguments")
	}
	src, ok := AsString(args[0])
	if !ok {
		return raise(ErrKindType, "eval() argument must be a string")
	}

	globals := Ref(0)
	if len(args) >= 2 {
		globals = args[1]
	} else {
		globals = FrameGlobals()
	}
	if globals == 0 {
		return raise(ErrKindSystem, "eval() has no globals to run against")
	}
	locals := globals
	if len(args) == 3 {
		locals = args[2]
	}

	code := Compile(src, "<eval>", ModeEval)
	if code == 0 {
		return 0
	}
	defer DecRef(code)
	return EvalCode(code, globals, locals)
}
