package slate

import (
	"fmt"
	"sync"

	"github.com/slate-lang/slate/internal/native"
)

// Config is the process-wide interop configuration. It may only be changed
// while the engine is not running, and Shutdown resets it to defaults.
type Config struct {
	// SoftReinit keeps the runtime's allocator warm across shutdown so a
	// following Initialize is cheap.
	SoftReinit bool
	// MaxTracebackDepth bounds the traceback lines attached to errors
	// crossing the boundary. Zero means unbounded.
	MaxTracebackDepth int
}

// DefaultConfig returns the interop configuration defaults.
func DefaultConfig() Config {
	return Config{}
}

var interop = struct {
	mu  sync.Mutex
	cfg Config
}{cfg: DefaultConfig()}

// GetConfig returns the current interop configuration.
func GetConfig() Config {
	interop.mu.Lock()
	defer interop.mu.Unlock()
	return interop.cfg
}

// SetConfig replaces the interop configuration. Returns an error while the
// engine is running; configuration is immutable between Initialize and
// Shutdown.
func SetConfig(cfg Config) error {
	if IsInitialized() {
		return fmt.Errorf("slate: configuration may not change while the engine is running")
	}
	interop.mu.Lock()
	defer interop.mu.Unlock()
	interop.cfg = cfg
	return nil
}

func resetConfig() {
	interop.mu.Lock()
	defer interop.mu.Unlock()
	interop.cfg = DefaultConfig()
}

// Process-wide string properties backed by native encoded buffers. The
// native side frees the previous buffer before installing a replacement;
// the lifecycle depends on that discipline, so the accessors stay thin.

// ProgramName returns the embedded runtime's program name.
func ProgramName() string { return native.ProgramName() }

// SetProgramName sets the embedded runtime's program name.
func SetProgramName(name string) { native.SetProgramName(name) }

// Home returns the embedded runtime's home path.
func Home() string { return native.Home() }

// SetHome sets the embedded runtime's home path.
func SetHome(home string) { native.SetHome(home) }

// ModuleSearchPath returns the embedded runtime's module search path.
func ModuleSearchPath() string { return native.ModuleSearchPath() }

// SetModuleSearchPath sets the embedded runtime's module search path.
func SetModuleSearchPath(path string) { native.SetModuleSearchPath(path) }
