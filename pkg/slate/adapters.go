package slate

import (
	"fmt"
	"sync"

	"github.com/slate-lang/slate/internal/native"
)

// HostFunc is a host callable exposed to the embedded runtime. Arguments
// arrive as borrowed handles; the returned handle's ownership transfers to
// the runtime. Returning an error raises it on the embedded side.
type HostFunc func(args []Borrowed) (Owned, error)

// adapterManager adapts host callables into native builtin functions. It is
// a lock-independent singleton constructed before interpreter bring-up, so a
// construction failure cannot leave a half-initialized interpreter behind.
type adapterManager struct {
	mu        sync.Mutex
	adapters  map[string]HostFunc
	installed bool
}

var adapters *adapterManager

func newAdapterManager() *adapterManager {
	return &adapterManager{adapters: make(map[string]HostFunc)}
}

// RegisterHostFunc exposes fn to embedded code under the given builtin
// name. Registration before Initialize is queued and installed at bring-up;
// registration while Running installs immediately.
func RegisterHostFunc(name string, fn HostFunc) error {
	if adapters == nil {
		adapters = newAdapterManager()
	}
	adapters.mu.Lock()
	defer adapters.mu.Unlock()
	if _, dup := adapters.adapters[name]; dup {
		return fmt.Errorf("slate: host function %q already registered", name)
	}
	adapters.adapters[name] = fn
	// Install immediately when the runtime is already live; this covers
	// both the running engine and the embedded-side-first bring-up, where
	// the interpreter exists before the engine does.
	if adapters.installed || native.Initialized() {
		return installAdapter(name, fn)
	}
	return nil
}

// installAll wires every queued adapter into the live runtime.
func (m *adapterManager) installAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, fn := range m.adapters {
		if err := installAdapter(name, fn); err != nil {
			return err
		}
	}
	m.installed = true
	return nil
}

func installAdapter(name string, fn HostFunc) error {
	return native.RegisterHostFunc(name, func(args []native.Ref) native.Ref {
		borrowed := make([]Borrowed, len(args))
		for i, a := range args {
			borrowed[i] = Borrowed{ref: a}
		}
		res, err := fn(borrowed)
		if err != nil {
			restoreError(err)
			return 0
		}
		if res.IsNil() {
			n := native.None()
			native.IncRef(n)
			return n
		}
		return res.Detach()
	})
}

// ── conversion hooks ──────────────────────────────────────────

// Converter is a process-wide value-conversion hook consulted by marshaling
// layers built on top of this core. The registry itself is lifecycle-owned:
// Shutdown resets it.
type Converter interface {
	Name() string
}

var converters = struct {
	mu    sync.Mutex
	hooks []Converter
}{}

// RegisterConverter appends a conversion hook to the process-wide registry.
func RegisterConverter(c Converter) {
	converters.mu.Lock()
	defer converters.mu.Unlock()
	converters.hooks = append(converters.hooks, c)
}

// Converters returns a snapshot of the registered hooks.
func Converters() []Converter {
	converters.mu.Lock()
	defer converters.mu.Unlock()
	return append([]Converter(nil), converters.hooks...)
}

func resetConverters() {
	converters.mu.Lock()
	defer converters.mu.Unlock()
	converters.hooks = nil
}
