package slate

import (
	"errors"
	"strings"
	"testing"

	"github.com/slate-lang/slate/internal/native"
)

func TestExecEvalContract(t *testing.T) {
	withEngine(t)
	gil := NewGILState()
	defer gil.Close()

	g := NewOwned(native.DictNew())
	defer g.Close()

	// Statements succeed and bind.
	if err := Exec("x = 1", WithGlobals(g.Borrow())); err != nil {
		t.Fatal(err)
	}
	v, err := Eval("x", WithGlobals(g.Borrow()))
	if err != nil {
		t.Fatal(err)
	}
	if n, _ := v.AsInt(); n != 1 {
		t.Fatalf("x = %s, want 1", v)
	}
	v.Close()

	// Expressions evaluate to their value.
	v, err = Eval("1 + 1", WithGlobals(g.Borrow()))
	if err != nil {
		t.Fatal(err)
	}
	if n, _ := v.AsInt(); n != 2 {
		t.Fatalf("1 + 1 = %s, want 2", v)
	}
	v.Close()

	// A statement block must not produce a value.
	err = Exec("1 + 1", WithGlobals(g.Borrow()))
	if err == nil {
		t.Fatal("exec of a value-producing expression succeeded")
	}
	if !strings.Contains(err.Error(), "produced a value") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEvalCarriesNativeError(t *testing.T) {
	withEngine(t)
	gil := NewGILState()
	defer gil.Close()

	_, err := Eval("no_such_binding")
	if err == nil {
		t.Fatal("expected a name error")
	}
	var se *Error
	if !errors.As(err, &se) {
		t.Fatalf("error type %T, want *Error", err)
	}
	if se.Kind != native.ErrKindName {
		t.Fatalf("kind = %s, want %s", se.Kind, native.ErrKindName)
	}
	if len(se.Traceback) == 0 {
		t.Fatal("error lost its traceback")
	}
}

func TestNamespaceDefaulting(t *testing.T) {
	withEngine(t)
	gil := NewGILState()
	defer gil.Close()

	g := NewOwned(native.DictNew())
	defer g.Close()
	five := NewOwned(native.NewInt(5))
	native.DictSetItem(g.Ref(), "y", five.Ref())
	five.Close()

	v, err := Eval("y", WithGlobals(g.Borrow()))
	if err != nil {
		t.Fatal(err)
	}
	defer v.Close()
	if n, _ := v.AsInt(); n != 5 {
		t.Fatalf("y = %s, want 5", v)
	}

	// With no namespace and no active frame, a fresh mapping with the
	// builtins binding is synthesized and released afterwards.
	before := native.LiveObjects()
	r, err := Eval("abs(0 - 3)")
	if err != nil {
		t.Fatal(err)
	}
	if n, _ := r.AsInt(); n != 3 {
		t.Fatalf("abs(0 - 3) = %s, want 3", r)
	}
	r.Close()
	if after := native.LiveObjects(); after != before {
		t.Fatalf("synthesized namespace leaked: %d -> %d live objects", before, after)
	}
}

func TestFailedEvalReleasesIntermediates(t *testing.T) {
	withEngine(t)
	gil := NewGILState()
	defer gil.Close()

	before := native.LiveObjects()
	for _, src := range []string{"missing", "1 / 0", "len(42)"} {
		if _, err := Eval(src); err == nil {
			t.Fatalf("eval(%q) unexpectedly succeeded", src)
		}
	}
	if err := Exec("x = missing"); err == nil {
		t.Fatal("exec with undefined name succeeded")
	}
	if after := native.LiveObjects(); after != before {
		t.Fatalf("error paths leaked: %d -> %d live objects", before, after)
	}
}

func TestCompileDoesNotExecute(t *testing.T) {
	withEngine(t)
	gil := NewGILState()
	defer gil.Close()

	scope, err := NewScope("compile-check")
	if err != nil {
		t.Fatal(err)
	}
	defer scope.Close()

	code, err := Compile("x = 99", "<test>", ModeExec)
	if err != nil {
		t.Fatal(err)
	}
	if native.DictGetItem(scope.Globals().Ref(), "x") != 0 {
		t.Fatal("compile executed the source")
	}

	res, err := EvalCode(code, WithScope(scope))
	if err != nil {
		t.Fatal(err)
	}
	res.Close()
	code.Close()
	v := native.DictGetItem(scope.Globals().Ref(), "x")
	if n, _ := native.AsInt(v); n != 99 {
		t.Fatalf("x = %s after run, want 99", native.Repr(v))
	}
}

func TestRunSimpleStringIgnoresResult(t *testing.T) {
	withEngine(t)
	gil := NewGILState()
	defer gil.Close()

	if err := RunSimpleString("1 + 1"); err != nil {
		t.Fatal(err)
	}
	if err := RunSimpleString("boom("); err == nil {
		t.Fatal("syntax error not reported")
	}
}

func TestBridgeRequiresInitializedEngine(t *testing.T) {
	Shutdown()
	if _, err := Eval("1"); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("Eval before init: %v, want ErrNotInitialized", err)
	}
	if err := Exec("x = 1"); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("Exec before init: %v, want ErrNotInitialized", err)
	}
	if _, err := Compile("1", "<t>", ModeEval); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("Compile before init: %v, want ErrNotInitialized", err)
	}
}
