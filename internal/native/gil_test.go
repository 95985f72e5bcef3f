package native

import (
	"sync"
	"testing"
	"time"
)

func TestGILRecursiveAcquire(t *testing.T) {
	GILAcquire()
	GILAcquire()
	if !GILOwned() {
		t.Fatal("lock not owned after nested acquire")
	}
	GILRelease()
	if !GILOwned() {
		t.Fatal("lock dropped after releasing one nesting level")
	}
	GILRelease()
	if GILOwned() {
		t.Fatal("lock still owned after balanced release")
	}
}

func TestGILExcludesOtherGoroutines(t *testing.T) {
	GILAcquire()

	acquired := make(chan struct{})
	go func() {
		GILAcquire()
		close(acquired)
		GILRelease()
	}()

	select {
	case <-acquired:
		t.Fatal("second goroutine acquired a held lock")
	case <-time.After(20 * time.Millisecond):
	}

	GILRelease()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("lock never handed over")
	}
}

func TestGILReleaseFromWrongGoroutine(t *testing.T) {
	GILAcquire()
	defer GILRelease()

	var wg sync.WaitGroup
	wg.Add(1)
	panicked := false
	go func() {
		defer wg.Done()
		defer func() { panicked = recover() != nil }()
		GILRelease()
	}()
	wg.Wait()
	if !panicked {
		t.Fatal("release from non-owner goroutine did not panic")
	}
}

func TestGILSaveRestore(t *testing.T) {
	GILAcquire()
	GILAcquire()

	save := GILSaveRelease()
	if GILOwned() {
		t.Fatal("lock still owned after save-release")
	}

	// Another goroutine can take the lock while it is given up.
	done := make(chan struct{})
	go func() {
		GILAcquire()
		GILRelease()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock unavailable during allow-threads window")
	}

	GILRestore(save)
	if !GILOwned() {
		t.Fatal("lock not owned after restore")
	}
	GILRelease()
	GILRelease()

	defer func() {
		if recover() == nil {
			t.Fatal("second restore of the same save state did not panic")
		}
	}()
	GILRestore(save)
}

func TestConfigBufferDiscipline(t *testing.T) {
	t.Cleanup(resetConfigBuffers)

	SetProgramName("one")
	if n := AllocatedBuffers(); n != 1 {
		t.Fatalf("allocated = %d, want 1", n)
	}
	// Replacing must free the previous buffer first.
	SetProgramName("two")
	SetProgramName("three")
	if n := AllocatedBuffers(); n != 1 {
		t.Fatalf("allocated after replacements = %d, want 1", n)
	}
	if got := ProgramName(); got != "three" {
		t.Fatalf("program name = %q, want three", got)
	}

	SetHome("/opt/slate")
	SetModuleSearchPath("/opt/slate/lib")
	if n := AllocatedBuffers(); n != 3 {
		t.Fatalf("allocated = %d, want 3", n)
	}
	resetConfigBuffers()
	if n := AllocatedBuffers(); n != 0 {
		t.Fatalf("allocated after reset = %d, want 0", n)
	}
}
