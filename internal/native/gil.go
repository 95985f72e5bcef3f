package native

import (
	"bytes"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
)

// The global interpreter lock. Recursive on the acquiring goroutine,
// matching the embedded runtime's own re-entrant lock semantics: nested
// acquires on the owner goroutine succeed immediately and must be balanced
// by the same number of releases.
var gil = struct {
	mu    sync.Mutex
	cond  *sync.Cond
	owner uint64 // goroutine id, 0 when free
	depth int
}{}

func init() {
	gil.cond = sync.NewCond(&gil.mu)
}

// GILAcquire blocks until the calling goroutine holds the global lock.
func GILAcquire() {
	id := goroutineID()
	gil.mu.Lock()
	defer gil.mu.Unlock()
	if gil.owner == id {
		gil.depth++
		return
	}
	for gil.owner != 0 {
		gil.cond.Wait()
	}
	gil.owner = id
	gil.depth = 1
}

// GILRelease releases one level of the global lock. Releasing from a
// goroutine that does not own the lock is a programming error.
func GILRelease() {
	id := goroutineID()
	gil.mu.Lock()
	defer gil.mu.Unlock()
	if gil.owner != id {
		panic(fmt.Sprintf("native: GIL released by goroutine %d, owned by %d", id, gil.owner))
	}
	gil.depth--
	if gil.depth == 0 {
		gil.owner = 0
		gil.cond.Signal()
	}
}

// GILOwned reports whether the calling goroutine holds the global lock.
func GILOwned() bool {
	id := goroutineID()
	gil.mu.Lock()
	defer gil.mu.Unlock()
	return gil.owner == id
}

// ThreadSave is the opaque state returned by GILSaveRelease. Single use.
type ThreadSave struct {
	owner uint64
	depth int
	used  bool
}

// GILSaveRelease fully releases the lock regardless of recursion depth and
// returns the state needed to restore it. The caller must restore with
// GILRestore on the same goroutine before touching runtime objects again.
func GILSaveRelease() *ThreadSave {
	id := goroutineID()
	gil.mu.Lock()
	defer gil.mu.Unlock()
	if gil.owner != id {
		panic(fmt.Sprintf("native: GILSaveRelease by goroutine %d, owned by %d", id, gil.owner))
	}
	save := &ThreadSave{owner: id, depth: gil.depth}
	gil.owner = 0
	gil.depth = 0
	gil.cond.Signal()
	return save
}

// GILRestore reacquires the lock at the saved recursion depth. The save
// state is consumed; restoring twice panics.
func GILRestore(save *ThreadSave) {
	if save == nil || save.used {
		panic("native: GILRestore with nil or already-used save state")
	}
	save.used = true
	id := goroutineID()
	gil.mu.Lock()
	defer gil.mu.Unlock()
	for gil.owner != 0 && gil.owner != id {
		gil.cond.Wait()
	}
	gil.owner = id
	gil.depth = save.depth
}

// ── thread states ─────────────────────────────────────────────

type threadState struct {
	id      uint64
	pending atomic.Bool // interrupt latch, consumed at a statement boundary
}

var threads = struct {
	mu     sync.Mutex
	byID   map[uint64]*threadState
	byGoro map[uint64]uint64 // goroutine id -> thread state id
	next   uint64
}{
	byID:   make(map[uint64]*threadState),
	byGoro: make(map[uint64]uint64),
}

// EnsureThreadState returns the thread state id associated with the calling
// goroutine, creating one on first use.
func EnsureThreadState() uint64 {
	g := goroutineID()
	threads.mu.Lock()
	defer threads.mu.Unlock()
	if id, ok := threads.byGoro[g]; ok {
		return id
	}
	threads.next++
	ts := &threadState{id: threads.next}
	threads.byID[ts.id] = ts
	threads.byGoro[g] = ts.id
	return ts.id
}

// InterruptThread latches a pending interrupt on the given thread state.
// Returns the number of states modified: 0 when the id is unknown, 1
// otherwise. The latch does not stack; interrupting an already-interrupted
// thread still reports 1.
func InterruptThread(id uint64) int {
	threads.mu.Lock()
	ts := threads.byID[id]
	threads.mu.Unlock()
	if ts == nil {
		return 0
	}
	ts.pending.Store(true)
	return 1
}

// consumePendingInterrupt reports and clears the calling goroutine's
// interrupt latch.
func consumePendingInterrupt() bool {
	g := goroutineID()
	threads.mu.Lock()
	id, ok := threads.byGoro[g]
	var ts *threadState
	if ok {
		ts = threads.byID[id]
	}
	threads.mu.Unlock()
	if ts == nil {
		return false
	}
	return ts.pending.Swap(false)
}

func resetThreadStates() {
	threads.mu.Lock()
	defer threads.mu.Unlock()
	threads.byID = make(map[uint64]*threadState)
	threads.byGoro = make(map[uint64]uint64)
	threads.next = 0
}

// CurrentGoroutine returns the calling goroutine's id. The host uses it for
// the debug lock guard's same-goroutine enforcement.
func CurrentGoroutine() uint64 { return goroutineID() }

// goroutineID extracts the current goroutine's id from the runtime stack
// header. The header format ("goroutine N [...]") has been stable across Go
// releases; this is the same technique net/http2 uses for its own
// same-goroutine assertions.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return 0
	}
	id, err := strconv.ParseUint(string(fields[1]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
