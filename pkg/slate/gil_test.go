package slate

import (
	"sync"
	"testing"

	"github.com/slate-lang/slate/internal/native"
)

func TestLockTokenSingleUse(t *testing.T) {
	withEngine(t)

	token := AcquireLock()
	ReleaseLock(token)

	defer func() {
		if recover() == nil {
			t.Fatal("second release of the same token did not panic")
		}
	}()
	ReleaseLock(token)
}

func TestAcquireLockInitializesLazily(t *testing.T) {
	Shutdown()
	if IsInitialized() {
		t.Fatal("engine running before test")
	}
	t.Cleanup(func() { Shutdown() })

	token := AcquireLock()
	defer ReleaseLock(token)
	if !IsInitialized() {
		t.Fatal("AcquireLock did not initialize the engine")
	}
}

func TestGILStateCloseIsIdempotent(t *testing.T) {
	withEngine(t)

	s := NewGILState()
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	// The scoped guard absorbs redundant closes.
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestDebugGuardCrossGoroutineReleasePanics(t *testing.T) {
	withEngine(t)

	s := NewGILStateDebug()
	var wg sync.WaitGroup
	wg.Add(1)
	panicked := false
	go func() {
		defer wg.Done()
		defer func() { panicked = recover() != nil }()
		s.Close()
	}()
	wg.Wait()
	if !panicked {
		t.Fatal("cross-goroutine release did not panic")
	}

	// The owning goroutine can still release normally.
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if n := LeakedGuards(); n != 0 {
		t.Fatalf("leaked guards = %d after clean close", n)
	}
}

func TestLeakedDebugGuardPanicsAtShutdown(t *testing.T) {
	Shutdown()
	Initialize()

	// Leak the guard: give the underlying lock back so later tests are
	// not blocked, but never close the guard itself.
	_ = NewGILStateDebug()
	native.GILRelease()
	if n := LeakedGuards(); n != 1 {
		t.Fatalf("leaked guards = %d, want 1", n)
	}

	defer func() {
		if recover() == nil {
			t.Fatal("shutdown with a leaked guard did not panic")
		}
		// The leak registry was drained by the check; finish teardown.
		Shutdown()
	}()
	Shutdown()
}

func TestAllowThreadsWindow(t *testing.T) {
	withEngine(t)

	token := AcquireLock()
	save := BeginAllowThreads()

	// Another goroutine can run interpreter code inside the window.
	done := make(chan struct{})
	go func() {
		other := AcquireLock()
		ReleaseLock(other)
		close(done)
	}()
	<-done

	EndAllowThreads(save)
	ReleaseLock(token)
}
