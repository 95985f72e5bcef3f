package slate

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/slate-lang/slate/internal/native"
)

// LockToken is proof of a GIL acquisition. It is opaque, single use, and
// must be passed back to ReleaseLock from the goroutine that acquired it.
type LockToken struct {
	released *atomic.Bool
}

// AcquireLock acquires the global interpreter lock, blocking until it is
// free. Re-entrant on the same goroutine. If the engine is not running yet
// it is initialized lazily with default options first.
func AcquireLock() LockToken {
	if !IsInitialized() {
		Initialize()
	}
	native.EnsureThreadState()
	native.GILAcquire()
	return LockToken{released: new(atomic.Bool)}
}

// ReleaseLock releases one level of the global interpreter lock. The token
// is consumed; releasing it twice panics, as does releasing from a goroutine
// that does not own the lock.
func ReleaseLock(t LockToken) {
	if t.released == nil || t.released.Swap(true) {
		panic("slate: ReleaseLock with invalid or already-released token")
	}
	native.GILRelease()
}

// GILState is a scoped lock acquisition: the lock is held from construction
// until Close. Close releases exactly once; further calls are no-ops.
type GILState struct {
	mu     sync.Mutex
	token  LockToken
	closed bool
	debug  bool
	owner  uint64
	leakID uint64
}

// NewGILState acquires the lock and returns the scoped guard.
func NewGILState() *GILState {
	return &GILState{token: AcquireLock()}
}

// NewGILStateDebug acquires the lock and returns a guard that additionally
// records the owning goroutine: Close from any other goroutine panics, and a
// guard never closed is reported as leaked when the engine shuts down.
func NewGILStateDebug() *GILState {
	s := &GILState{
		token: AcquireLock(),
		debug: true,
		owner: native.CurrentGoroutine(),
	}
	s.leakID = trackGuard(s)
	return s
}

// Close releases the lock. Safe to call more than once; only the first call
// releases.
func (s *GILState) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if s.debug {
		if g := native.CurrentGoroutine(); g != s.owner {
			panic(fmt.Sprintf("slate: GILState acquired on goroutine %d released on %d", s.owner, g))
		}
		untrackGuard(s.leakID)
	}
	s.closed = true
	ReleaseLock(s.token)
	return nil
}

// ThreadSave is the opaque state returned by BeginAllowThreads.
type ThreadSave = native.ThreadSave

// BeginAllowThreads fully releases the lock around a blocking operation,
// returning the single-use state EndAllowThreads needs to restore it.
func BeginAllowThreads() *ThreadSave {
	return native.GILSaveRelease()
}

// EndAllowThreads reacquires the lock released by BeginAllowThreads.
func EndAllowThreads(save *ThreadSave) {
	native.GILRestore(save)
}

// ── debug guard leak registry ─────────────────────────────────

// Guards created by NewGILStateDebug register here until closed. Shutdown
// checks the registry: a guard still present means the lock was leaked,
// which is a programming error, not a recoverable condition.

var guardRegistry = struct {
	mu   sync.Mutex
	next uint64
	live map[uint64]*GILState
}{live: make(map[uint64]*GILState)}

func trackGuard(s *GILState) uint64 {
	guardRegistry.mu.Lock()
	defer guardRegistry.mu.Unlock()
	guardRegistry.next++
	guardRegistry.live[guardRegistry.next] = s
	return guardRegistry.next
}

func untrackGuard(id uint64) {
	guardRegistry.mu.Lock()
	defer guardRegistry.mu.Unlock()
	delete(guardRegistry.live, id)
}

// checkGuardLeaks panics when debug guards were never released. Called on
// the shutdown path.
func checkGuardLeaks() {
	guardRegistry.mu.Lock()
	n := len(guardRegistry.live)
	guardRegistry.live = make(map[uint64]*GILState)
	guardRegistry.mu.Unlock()
	if n > 0 {
		panic(fmt.Sprintf("slate: %d GIL guard(s) never released", n))
	}
}

// LeakedGuards reports the number of unreleased debug guards.
func LeakedGuards() int {
	guardRegistry.mu.Lock()
	defer guardRegistry.mu.Unlock()
	return len(guardRegistry.live)
}
