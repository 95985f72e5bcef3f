package native

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
)

// Version is the embedded runtime version string.
const Version = "0.4.0"

// HostModule is the well-known module populated by the host bootstrap.
const HostModule = "slate.host"

// BuiltinsKey is the namespace key under which the builtins mapping is bound
// in synthesized global namespaces.
const BuiltinsKey = "__builtins__"

// FinalizeMode selects how Finalize tears the runtime down.
type FinalizeMode int

const (
	// FinalizeNormal drops every object and releases all runtime state.
	FinalizeNormal FinalizeMode = iota
	// FinalizeSoft drops objects but keeps the allocator's tables warm for
	// a fast re-initialize.
	FinalizeSoft
)

// Config carries runtime bring-up options.
type Config struct {
	// InstallSignalHandlers makes the runtime latch a keyboard interrupt on
	// the main thread state when the process receives an interrupt signal.
	InstallSignalHandlers bool
	// Argv is the embedded-side argument vector; may be nil.
	Argv []string
}

var rt = struct {
	mu          sync.Mutex
	initialized bool
	none        Ref
	builtins    Ref
	modules     map[string]Ref
	argv        []string

	sigCh   chan os.Signal
	sigDone chan struct{}

	mainThread uint64
}{}

// Initialize brings the runtime up. Idempotent: a second call while the
// runtime is live returns nil without touching anything.
func Initialize(cfg Config) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.initialized {
		return nil
	}

	rt.none = alloc(&object{kind: kindNone})
	rt.builtins = DictNew()
	installBuiltins(rt.builtins)
	rt.modules = make(map[string]Ref)
	rt.argv = append([]string(nil), cfg.Argv...)

	// The host module exists from bring-up so imports resolve even before
	// the host bootstrap has populated it.
	rt.modules[HostModule] = newModule(HostModule)

	rt.mainThread = EnsureThreadState()
	if cfg.InstallSignalHandlers {
		installSignalHandler()
	}

	rt.initialized = true
	return nil
}

// Initialized reports whether the runtime is live.
func Initialized() bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.initialized
}

// Finalize tears the runtime down. Idempotent. Every live object is dropped;
// refs held by the host become dead and must not be released afterwards.
func Finalize(mode FinalizeMode) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if !rt.initialized {
		return
	}

	removeSignalHandler()
	ErrClear()
	resetFrames()
	resetThreadStates()
	resetConfigBuffers()

	objTable.mu.Lock()
	if mode == FinalizeSoft {
		for r := range objTable.objects {
			delete(objTable.objects, r)
		}
	} else {
		objTable.objects = make(map[Ref]*object)
		objTable.next = 1
	}
	objTable.mu.Unlock()

	rt.none = 0
	rt.builtins = 0
	rt.modules = nil
	rt.argv = nil
	rt.initialized = false
}

// None returns the None singleton as a borrowed ref.
func None() Ref {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.none
}

// Builtins returns the builtins mapping as a borrowed ref.
func Builtins() Ref {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.builtins
}

// ModuleRef returns the named module object as a borrowed ref, or the null
// ref if no such module exists.
func ModuleRef(name string) Ref {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.modules[name]
}

// ModuleDict returns the named module's namespace as a borrowed ref, or the
// null ref if no such module exists. Modules share the dict representation,
// so the module object itself carries the mapping.
func ModuleDict(name string) Ref {
	return ModuleRef(name)
}

// Argv returns a copy of the embedded-side argument vector.
func Argv() []string {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return append([]string(nil), rt.argv...)
}

// SetArgv replaces the embedded-side argument vector.
func SetArgv(argv []string) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.argv = append([]string(nil), argv...)
}

// RegisterHostFunc installs a host-provided callable into the builtins
// mapping under the given name. The runtime must be live.
func RegisterHostFunc(name string, fn func(args []Ref) Ref) error {
	rt.mu.Lock()
	builtins := rt.builtins
	live := rt.initialized
	rt.mu.Unlock()
	if !live {
		return fmt.Errorf("native: runtime not initialized")
	}
	f := newBuiltin(name, builtinFunc(fn))
	DictSetItem(builtins, name, f)
	DecRef(f)
	return nil
}

func installSignalHandler() {
	rt.sigCh = make(chan os.Signal, 1)
	rt.sigDone = make(chan struct{})
	signal.Notify(rt.sigCh, os.Interrupt)
	main := rt.mainThread
	go func(ch chan os.Signal, done chan struct{}) {
		for {
			select {
			case <-ch:
				InterruptThread(main)
			case <-done:
				return
			}
		}
	}(rt.sigCh, rt.sigDone)
}

func removeSignalHandler() {
	if rt.sigCh == nil {
		return
	}
	signal.Stop(rt.sigCh)
	close(rt.sigDone)
	rt.sigCh = nil
	rt.sigDone = nil
}
