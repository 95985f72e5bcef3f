package slate

import (
	_ "embed"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/slate-lang/slate/internal/native"
)

// bootstrapSource runs once during Initialize inside a dedicated namespace;
// its public bindings are copied into the slate.host module.
//
//go:embed bootstrap.sl
var bootstrapSource string

// ShutdownMode selects how Shutdown tears the interpreter down.
type ShutdownMode int

const (
	// ShutdownDefault resolves to the mode Initialize was given (Normal
	// when none was).
	ShutdownDefault ShutdownMode = iota
	// ShutdownNormal finalizes the interpreter and drops all state.
	ShutdownNormal
	// ShutdownSoft finalizes but keeps the runtime allocator warm for a
	// fast re-initialize.
	ShutdownSoft
	// ShutdownExtension leaves interpreter finalization to the embedded
	// side, which owns the process. Used by the re-entrant bootstrap path.
	ShutdownExtension
)

func (m ShutdownMode) String() string {
	switch m {
	case ShutdownDefault:
		return "default"
	case ShutdownNormal:
		return "normal"
	case ShutdownSoft:
		return "soft"
	case ShutdownExtension:
		return "extension"
	default:
		return "unknown"
	}
}

// engine is the process-wide lifecycle singleton. The mutex guards the
// idempotency checks; the bulk of bring-up and teardown runs with the caller
// holding initialization-time exclusivity.
var engine = struct {
	mu      sync.Mutex
	running bool
	mode    ShutdownMode

	exitCh   chan os.Signal
	exitDone chan struct{}
}{mode: ShutdownDefault}

type initConfig struct {
	args           []string
	setArgv        bool
	installSignals bool
	mode           ShutdownMode
}

// InitOption configures Initialize.
type InitOption func(*initConfig)

// WithArgs sets the embedded-side argument vector.
func WithArgs(args []string) InitOption {
	return func(c *initConfig) { c.args = args }
}

// WithSetArgv controls whether Initialize populates the argument vector
// (default true).
func WithSetArgv(set bool) InitOption {
	return func(c *initConfig) { c.setArgv = set }
}

// WithSignalHandlers makes the embedded runtime install its own interrupt
// signal handler (default false).
func WithSignalHandlers(install bool) InitOption {
	return func(c *initConfig) { c.installSignals = install }
}

// WithShutdownMode sets the mode a later Shutdown without an explicit mode
// will use.
func WithShutdownMode(mode ShutdownMode) InitOption {
	return func(c *initConfig) { c.mode = mode }
}

// IsInitialized reports whether the engine is running.
func IsInitialized() bool {
	engine.mu.Lock()
	defer engine.mu.Unlock()
	return engine.running
}

// Initialize brings the engine up. Idempotent: a second call while running
// returns immediately. Bring-up failure is fatal — there is no valid partial
// state, so a failed Initialize panics and the process must not use the
// bridge.
//
// Sequence: construct the lock-independent adapter manager, bring up the
// interpreter, install exit triggers, register the scope-clear handler
// (first, so it drains last), populate argv, then run the embedded
// bootstrap and publish its public symbols into the slate.host module.
func Initialize(opts ...InitOption) {
	cfg := initConfig{setArgv: true, mode: ShutdownDefault}
	for _, opt := range opts {
		opt(&cfg)
	}

	engine.mu.Lock()
	defer engine.mu.Unlock()
	if engine.running {
		return
	}

	// The adapter manager must exist before the interpreter comes up: its
	// construction cannot be allowed to fail after bring-up and leave a
	// half-initialized interpreter behind.
	if adapters == nil {
		adapters = newAdapterManager()
	}

	mode := cfg.mode
	if mode == ShutdownDefault {
		mode = ShutdownNormal
	}
	engine.mode = mode

	if err := native.Initialize(native.Config{
		InstallSignalHandlers: cfg.installSignals,
	}); err != nil {
		panic(fmt.Sprintf("slate: interpreter bring-up failed: %v", err))
	}
	engine.running = true
	native.ErrClear()

	installExitTriggers()
	AddShutdownHandler(clearScopes)

	if err := adapters.installAll(); err != nil {
		panic(fmt.Sprintf("slate: host function install failed: %v", err))
	}

	if cfg.setArgv {
		native.SetArgv(cfg.args)
	}

	if err := runBootstrap(); err != nil {
		panic(fmt.Sprintf("slate: bootstrap failed: %v", err))
	}
	log().Info("engine initialized", "shutdown_mode", mode)
}

type shutdownConfig struct {
	mode ShutdownMode
}

// ShutdownOption configures Shutdown.
type ShutdownOption func(*shutdownConfig)

// WithMode overrides the shutdown mode recorded at Initialize.
func WithMode(mode ShutdownMode) ShutdownOption {
	return func(c *shutdownConfig) { c.mode = mode }
}

// Shutdown tears the engine down. Idempotent: a no-op when the engine is not
// running. Teardown is best-effort — every handler and the interpreter
// finalization run even when individual handlers fail.
//
// Sequence: remove the exit triggers (so they cannot re-enter shutdown),
// check the debug lock-guard leak registry, clear the scope registry, drain
// the shutdown handler registry LIFO, finalize the interpreter, reset the
// conversion-hook registry, and reset the interop configuration.
func Shutdown(opts ...ShutdownOption) {
	cfg := shutdownConfig{mode: ShutdownDefault}
	for _, opt := range opts {
		opt(&cfg)
	}

	engine.mu.Lock()
	defer engine.mu.Unlock()
	if !engine.running {
		return
	}
	mode := cfg.mode
	if mode == ShutdownDefault {
		mode = engine.mode
	}

	removeExitTriggers()
	checkGuardLeaks()
	clearScopes()
	drainShutdownHandlers()

	switch {
	case mode == ShutdownExtension:
		// The embedded side owns the interpreter; leave it running.
	case mode == ShutdownSoft || GetConfig().SoftReinit:
		native.Finalize(native.FinalizeSoft)
	default:
		native.Finalize(native.FinalizeNormal)
	}

	resetConverters()
	if adapters != nil {
		// Registrations made before the next Initialize queue again instead
		// of installing into a finalized runtime.
		adapters.mu.Lock()
		adapters.installed = false
		adapters.mu.Unlock()
	}
	engine.running = false
	resetConfig()
	log().Info("engine shut down", "mode", mode)
}

// installExitTriggers registers process-exit teardown: an interrupt or
// terminate signal shuts the engine down. Shutdown removes the triggers
// before draining handlers so a signal during teardown cannot re-enter.
func installExitTriggers() {
	ch := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	engine.exitCh = ch
	engine.exitDone = done
	go func() {
		select {
		case sig := <-ch:
			log().Info("exit signal received, shutting down", "signal", sig)
			Shutdown()
		case <-done:
		}
	}()
}

func removeExitTriggers() {
	if engine.exitCh == nil {
		return
	}
	signal.Stop(engine.exitCh)
	close(engine.exitDone)
	engine.exitCh = nil
	engine.exitDone = nil
}

// runBootstrap executes the embedded bootstrap source in a dedicated
// namespace and copies every public symbol it defines — names without a
// leading underscore, plus __version__ — into the slate.host module dict.
// Every intermediate owned ref is released whether or not the copy loop
// succeeds.
func runBootstrap() error {
	ns := native.DictNew()
	defer native.DecRef(ns)
	native.DictSetItem(ns, native.BuiltinsKey, native.Builtins())

	code := native.Compile(bootstrapSource, "<bootstrap>", native.ModeExec)
	if code == 0 {
		return errorFromSlot()
	}
	defer native.DecRef(code)

	res := native.EvalCode(code, ns, ns)
	if res == 0 {
		return errorFromSlot()
	}
	native.DecRef(res)

	host := native.ModuleDict(native.HostModule)
	if host == 0 {
		return fmt.Errorf("slate: host module %q missing", native.HostModule)
	}
	var firstErr error
	for _, key := range native.DictKeys(ns) {
		if strings.HasPrefix(key, "_") && key != "__version__" {
			continue
		}
		v := native.DictGetItem(ns, key)
		if v == 0 {
			continue
		}
		if !native.DictSetItem(host, key, v) && firstErr == nil {
			firstErr = fmt.Errorf("slate: publishing %q into %s failed", key, native.HostModule)
		}
	}
	return firstErr
}

// HostModuleDict returns the slate.host module namespace as a borrowed
// handle, usable as an execution namespace for host-published bindings.
func HostModuleDict() Borrowed {
	return Borrowed{ref: native.ModuleDict(native.HostModule)}
}

// InitFromRuntime is the re-entrant bootstrap entry point, used when the
// embedded side — not the host — initiates the bridge (the interpreter is
// already running and an import of slate.host is mid-resolution, bypassing
// the freshly installed machinery). It initializes the engine with argv
// population disabled and the extension shutdown mode, then replays the
// triggering import by scanning the active call stack's source text for an
// import-of-the-host-module line and re-executing exactly that line.
//
// On replay failure the error is restored into the runtime's error slot and
// the null ref returned; the host never raises. Returns a new reference to
// the slate.host module on success.
//
// This is a compatibility shim: the pattern match covers only the plain
// import forms of slate.host and is incomplete by construction.
func InitFromRuntime() native.Ref {
	wasRunning := IsInitialized()
	Initialize(WithSetArgv(false), WithShutdownMode(ShutdownExtension))

	if !wasRunning {
		if line, ok := findHostImportLine(); ok {
			if err := replayImportLine(line); err != nil {
				restoreError(err)
				return 0
			}
		}
	}

	mod := native.ModuleRef(native.HostModule)
	if mod == 0 {
		native.ErrSet(native.ErrKindSystem, "host module missing after bootstrap")
		return 0
	}
	native.IncRef(mod)
	return mod
}

func findHostImportLine() (string, bool) {
	for _, raw := range native.TracebackLines() {
		line := strings.TrimSpace(raw)
		if isHostImportLine(line) {
			return line, true
		}
	}
	return "", false
}

func isHostImportLine(line string) bool {
	switch {
	case line == "import "+native.HostModule:
		return true
	case strings.HasPrefix(line, "import "+native.HostModule+" "):
		return true
	case strings.HasPrefix(line, "from "+native.HostModule+" import "):
		return true
	}
	return false
}

func replayImportLine(line string) error {
	globals := native.FrameGlobals()
	if globals == 0 {
		return fmt.Errorf("slate: no active frame to replay %q into", line)
	}
	code := native.Compile(line, "<bootstrap-replay>", native.ModeExec)
	if code == 0 {
		return errorFromSlot()
	}
	defer native.DecRef(code)
	res := native.EvalCode(code, globals, globals)
	if res == 0 {
		return errorFromSlot()
	}
	native.DecRef(res)
	return nil
}
