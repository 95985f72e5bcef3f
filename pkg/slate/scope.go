package slate

import (
	"fmt"
	"sync"

	"github.com/slate-lang/slate/internal/native"
)

// Scope is a named global namespace registered with the engine. Scopes left
// open when the engine shuts down are released by the scope-clear shutdown
// handler, which the lifecycle registers first so it drains last.
type Scope struct {
	name string
	dict native.Ref
	dead bool
}

var scopes = struct {
	mu sync.Mutex
	m  map[string]*Scope
}{m: make(map[string]*Scope)}

// NewScope creates and registers a named scope backed by a fresh mapping.
// The caller must hold the GIL. Scope names are unique per engine.
func NewScope(name string) (*Scope, error) {
	scopes.mu.Lock()
	defer scopes.mu.Unlock()
	if _, exists := scopes.m[name]; exists {
		return nil, fmt.Errorf("slate: scope %q already exists", name)
	}
	s := &Scope{name: name, dict: native.DictNew()}
	scopes.m[name] = s
	return s, nil
}

// GetScope returns the named scope, or nil when absent.
func GetScope(name string) *Scope {
	scopes.mu.Lock()
	defer scopes.mu.Unlock()
	return scopes.m[name]
}

// Name returns the scope's registered name.
func (s *Scope) Name() string { return s.name }

// Globals returns the scope's mapping as a borrowed handle.
func (s *Scope) Globals() Borrowed {
	if s.dead {
		panic("slate: use of closed scope " + s.name)
	}
	return Borrowed{ref: s.dict}
}

// Close unregisters the scope and releases its mapping. Safe to call once;
// further use of the scope panics.
func (s *Scope) Close() error {
	scopes.mu.Lock()
	defer scopes.mu.Unlock()
	return s.closeLocked()
}

func (s *Scope) closeLocked() error {
	if s.dead {
		return nil
	}
	s.dead = true
	delete(scopes.m, s.name)
	native.DictClear(s.dict)
	native.DecRef(s.dict)
	return nil
}

// clearScopes releases every registered scope. Runs as the last shutdown
// handler and again directly on the shutdown path for scopes registered
// after the drain started.
func clearScopes() {
	scopes.mu.Lock()
	defer scopes.mu.Unlock()
	for _, s := range scopes.m {
		_ = s.closeLocked()
	}
}

// ScopeCount reports the number of registered scopes.
func ScopeCount() int {
	scopes.mu.Lock()
	defer scopes.mu.Unlock()
	return len(scopes.m)
}
