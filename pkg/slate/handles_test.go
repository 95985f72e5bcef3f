package slate

import (
	"testing"

	"github.com/slate-lang/slate/internal/native"
)

func TestOwnedSingleRelease(t *testing.T) {
	withEngine(t)
	gil := NewGILState()
	defer gil.Close()

	o := NewOwned(native.NewInt(7))
	if o.IsNil() {
		t.Fatal("fresh handle reported nil")
	}
	o.Close()

	defer func() {
		if recover() == nil {
			t.Fatal("double release did not panic")
		}
	}()
	o.Close()
}

func TestOwnedDetachTransfersOwnership(t *testing.T) {
	withEngine(t)
	gil := NewGILState()
	defer gil.Close()

	o := NewOwned(native.NewStr("payload"))
	ref := o.Detach()
	if ref == 0 {
		t.Fatal("detach returned the null ref")
	}
	// The handle is neutered; the raw ref is still live.
	if got := native.RefCount(ref); got != 1 {
		t.Fatalf("refcount after detach = %d, want 1", got)
	}
	native.DecRef(ref)

	defer func() {
		if recover() == nil {
			t.Fatal("use after detach did not panic")
		}
	}()
	o.Ref()
}

func TestPromoteAddsReference(t *testing.T) {
	withEngine(t)
	gil := NewGILState()
	defer gil.Close()

	o := NewOwned(native.NewInt(42))
	defer o.Close()

	p := o.Borrow().Promote()
	if got := native.RefCount(o.Ref()); got != 2 {
		t.Fatalf("refcount after promote = %d, want 2", got)
	}
	p.Close()
	if got := native.RefCount(o.Ref()); got != 1 {
		t.Fatalf("refcount after releasing promoted handle = %d, want 1", got)
	}

	defer func() {
		if recover() == nil {
			t.Fatal("promote of nil handle did not panic")
		}
	}()
	Borrowed{}.Promote()
}

func TestHandleAccessors(t *testing.T) {
	withEngine(t)
	gil := NewGILState()
	defer gil.Close()

	n := NewOwned(native.NewInt(9))
	defer n.Close()
	if v, err := n.AsInt(); err != nil || v != 9 {
		t.Fatalf("AsInt = %d, %v", v, err)
	}
	if _, err := n.AsString(); err == nil {
		t.Fatal("AsString on an int did not fail")
	}

	s := NewOwned(native.NewStr("hi"))
	defer s.Close()
	if v, err := s.AsString(); err != nil || v != "hi" {
		t.Fatalf("AsString = %q, %v", v, err)
	}

	var zero Owned
	if !zero.IsNil() {
		t.Fatal("zero Owned not nil")
	}
	if zero.String() != "<nil>" {
		t.Fatalf("zero Owned String = %q", zero.String())
	}
	if BorrowRef(0).String() != "<nil>" {
		t.Fatalf("nil Borrowed String = %q", BorrowRef(0).String())
	}
}
