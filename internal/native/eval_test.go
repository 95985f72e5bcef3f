package native

import (
	"strings"
	"testing"
)

// initRuntime brings the runtime up for one test and tears it down after.
func initRuntime(t *testing.T) {
	t.Helper()
	if err := Initialize(Config{}); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { Finalize(FinalizeNormal) })
}

func mustCompile(t *testing.T, src string, mode RunMode) Ref {
	t.Helper()
	code := Compile(src, "<test>", mode)
	if code == 0 {
		_, msg, _, _ := ErrFetch()
		t.Fatalf("compile %q: %s", src, msg)
	}
	return code
}

func mustEval(t *testing.T, src string, ns Ref) Ref {
	t.Helper()
	code := mustCompile(t, src, ModeEval)
	defer DecRef(code)
	res := EvalCode(code, ns, ns)
	if res == 0 {
		kind, msg, _, _ := ErrFetch()
		t.Fatalf("eval %q: %s: %s", src, kind, msg)
	}
	return res
}

func mustExec(t *testing.T, src string, ns Ref) {
	t.Helper()
	code := mustCompile(t, src, ModeExec)
	defer DecRef(code)
	res := EvalCode(code, ns, ns)
	if res == 0 {
		kind, msg, _, _ := ErrFetch()
		t.Fatalf("exec %q: %s: %s", src, kind, msg)
	}
	DecRef(res)
}

// ── expressions ───────────────────────────────────────────────

func TestEvalArithmetic(t *testing.T) {
	initRuntime(t)
	ns := DictNew()
	defer DecRef(ns)

	tests := []struct {
		src  string
		want int64
	}{
		{"1 + 1", 2},
		{"2 * 3 - 1", 5},
		{"7 % 3", 1},
		{"4 / 2", 2},
		{"-5 + 2", -3},
		{"(1 + 2) * 3", 9},
		{"abs(0 - 7)", 7},
		{"min(4, 2, 9)", 2},
		{"max(4, 2, 9)", 9},
		{"len(\"hello\")", 5},
		{"int(\"42\")", 42},
	}
	for _, tc := range tests {
		res := mustEval(t, tc.src, ns)
		got, ok := AsInt(res)
		if !ok || got != tc.want {
			t.Errorf("eval(%q) = %s, want %d", tc.src, Repr(res), tc.want)
		}
		DecRef(res)
	}
}

func TestEvalFloatDivision(t *testing.T) {
	initRuntime(t)
	ns := DictNew()
	defer DecRef(ns)

	res := mustEval(t, "1 / 2", ns)
	defer DecRef(res)
	got, ok := AsFloat(res)
	if !ok || got != 0.5 {
		t.Fatalf("1 / 2 = %s, want 0.5", Repr(res))
	}
}

func TestEvalBoolAndStrings(t *testing.T) {
	initRuntime(t)
	ns := DictNew()
	defer DecRef(ns)

	tests := []struct {
		src  string
		want bool
	}{
		{"1 < 2", true},
		{"2 <= 1", false},
		{"\"a\" == \"a\"", true},
		{"\"a\" != \"b\"", true},
		{"True and False", false},
		{"True or False", true},
		{"not 0", true},
		{"1 == 1 and 2 > 1", true},
	}
	for _, tc := range tests {
		res := mustEval(t, tc.src, ns)
		if truthy(res) != tc.want {
			t.Errorf("eval(%q) = %s, want %v", tc.src, Repr(res), tc.want)
		}
		DecRef(res)
	}

	res := mustEval(t, "\"foo\" + \"bar\"", ns)
	defer DecRef(res)
	if s, _ := AsString(res); s != "foobar" {
		t.Fatalf("string concat = %q, want foobar", s)
	}
}

// ── statements and namespaces ─────────────────────────────────

func TestAssignmentBindsInLocals(t *testing.T) {
	initRuntime(t)
	ns := DictNew()
	defer DecRef(ns)

	mustExec(t, "x = 2\ny = x * 21", ns)
	v := DictGetItem(ns, "y")
	if got, _ := AsInt(v); got != 42 {
		t.Fatalf("y = %s, want 42", Repr(v))
	}
}

func TestNameError(t *testing.T) {
	initRuntime(t)
	ns := DictNew()
	defer DecRef(ns)

	code := mustCompile(t, "missing_name", ModeEval)
	defer DecRef(code)
	if res := EvalCode(code, ns, ns); res != 0 {
		t.Fatalf("expected failure, got %s", Repr(res))
	}
	kind, msg, tb, ok := ErrFetch()
	if !ok || kind != ErrKindName {
		t.Fatalf("error = %s %q, want %s", kind, msg, ErrKindName)
	}
	if len(tb) == 0 || !strings.Contains(tb[0], "<test>") {
		t.Fatalf("traceback missing filename: %v", tb)
	}
}

func TestCompileModes(t *testing.T) {
	initRuntime(t)
	tests := []struct {
		src  string
		mode RunMode
		ok   bool
	}{
		{"1 + 1", ModeEval, true},
		{"x = 1", ModeEval, false},
		{"1 + 1\n2 + 2", ModeEval, false},
		{"x = 1\ny = 2", ModeExec, true},
		{"x = 1", ModeSingle, true},
		{"x = 1\ny = 2", ModeSingle, false},
		{"1 +", ModeExec, false},
		{"\"open", ModeExec, false},
	}
	for _, tc := range tests {
		code := Compile(tc.src, "<test>", tc.mode)
		if tc.ok && code == 0 {
			_, msg, _, _ := ErrFetch()
			t.Errorf("compile(%q, %s) failed: %s", tc.src, tc.mode, msg)
			continue
		}
		if !tc.ok {
			if code != 0 {
				t.Errorf("compile(%q, %s) succeeded, want error", tc.src, tc.mode)
				DecRef(code)
			}
			ErrClear()
			continue
		}
		DecRef(code)
	}
}

func TestEvalBuiltinUsesFrameGlobals(t *testing.T) {
	initRuntime(t)
	ns := DictNew()
	defer DecRef(ns)
	five := NewInt(5)
	DictSetItem(ns, "y", five)
	DecRef(five)

	// The nested eval gets no namespace argument, so it must resolve
	// against the calling frame's globals.
	mustExec(t, "r = eval(\"y\")", ns)
	if got, _ := AsInt(DictGetItem(ns, "r")); got != 5 {
		t.Fatalf("r = %s, want 5", Repr(DictGetItem(ns, "r")))
	}
}

func TestImportHostModule(t *testing.T) {
	initRuntime(t)
	ns := DictNew()
	defer DecRef(ns)

	marker := NewStr("here")
	DictSetItem(ModuleDict(HostModule), "marker", marker)
	DecRef(marker)

	mustExec(t, "import slate.host\nm = eval(\"marker\", host)", ns)
	if got, _ := AsString(DictGetItem(ns, "m")); got != "here" {
		t.Fatalf("m = %q, want here", got)
	}

	mustExec(t, "from slate.host import marker as mk", ns)
	if got, _ := AsString(DictGetItem(ns, "mk")); got != "here" {
		t.Fatalf("mk = %q, want here", got)
	}

	code := mustCompile(t, "import no.such.module", ModeExec)
	defer DecRef(code)
	if res := EvalCode(code, ns, ns); res != 0 {
		t.Fatalf("import of unknown module succeeded: %s", Repr(res))
	}
	if kind, _, _, _ := ErrFetch(); kind != ErrKindImport {
		t.Fatalf("error kind = %s, want %s", kind, ErrKindImport)
	}
}

// ── resource accounting ───────────────────────────────────────

func TestFailedEvalLeaksNothing(t *testing.T) {
	initRuntime(t)
	ns := DictNew()
	defer DecRef(ns)

	before := LiveObjects()
	srcs := []string{
		"1 + missing",
		"abs(\"nope\")",
		"1 / 0",
		"len(1) + len(2)",
	}
	for _, src := range srcs {
		code := mustCompile(t, src, ModeEval)
		if res := EvalCode(code, ns, ns); res != 0 {
			t.Fatalf("eval(%q) succeeded unexpectedly", src)
		}
		ErrClear()
		DecRef(code)
	}
	if after := LiveObjects(); after != before {
		t.Fatalf("live objects %d -> %d, leak on error path", before, after)
	}
}

func TestDictRefcounting(t *testing.T) {
	initRuntime(t)

	d := DictNew()
	v := NewInt(7)
	DictSetItem(d, "k", v)
	if rc := RefCount(v); rc != 2 {
		t.Fatalf("refcount after insert = %d, want 2", rc)
	}
	DecRef(v)
	if got := DictGetItem(d, "k"); RefCount(got) != 1 {
		t.Fatalf("refcount after owner release = %d, want 1", RefCount(got))
	}
	DictClear(d)
	if n := DictLen(d); n != 0 {
		t.Fatalf("dict len after clear = %d", n)
	}
	DecRef(d)
}

// ── interrupts ────────────────────────────────────────────────

func TestInterruptLatch(t *testing.T) {
	initRuntime(t)
	ns := DictNew()
	defer DecRef(ns)

	if n := InterruptThread(999999); n != 0 {
		t.Fatalf("interrupt of unknown id = %d, want 0", n)
	}

	id := EnsureThreadState()
	if n := InterruptThread(id); n != 1 {
		t.Fatalf("interrupt = %d, want 1", n)
	}
	// A second latch before delivery still reports one modified state.
	if n := InterruptThread(id); n != 1 {
		t.Fatalf("second interrupt = %d, want 1", n)
	}

	code := mustCompile(t, "1 + 1", ModeEval)
	defer DecRef(code)
	if res := EvalCode(code, ns, ns); res != 0 {
		t.Fatalf("interrupted eval returned %s", Repr(res))
	}
	if kind, _, _, _ := ErrFetch(); kind != ErrKindInterrupt {
		t.Fatalf("error kind = %s, want %s", kind, ErrKindInterrupt)
	}

	// The latch is consumed: the next run succeeds.
	res := EvalCode(code, ns, ns)
	if res == 0 {
		t.Fatal("eval after interrupt delivery failed")
	}
	DecRef(res)
}
