package phase

import (
	"sync"
	"time"

	"github.com/thoughtjack/thoughtjack/internal/config"
)

// Scope is the scenario's state_scope setting (§9 design note): Global
// means one PhaseState shared across every connection; PerConnection means
// each connection owns an independent PhaseState.
type Scope string

const (
	ScopeGlobal        Scope = "global"
	ScopePerConnection Scope = "per_connection"
)

// ParseScope defaults to Global when s is empty or unrecognized.
func ParseScope(s string) Scope {
	if s == string(ScopePerConnection) {
		return ScopePerConnection
	}
	return ScopeGlobal
}

// Handle is a Shared(*Engine)/Owned(*Engine) sum type: it carries the scope
// tag alongside the Engine pointer so a caller can tell whether Release
// should tear the engine down (Owned, one per connection) or leave it alone
// (Shared, outlives any single connection).
type Handle struct {
	kind   Scope
	engine *Engine
}

// Engine returns the underlying phase engine regardless of scope kind.
func (h Handle) Engine() *Engine { return h.engine }

// Scope reports whether this handle is Shared or Owned.
func (h Handle) Scope() Scope { return h.kind }

// Release stops the engine's timer goroutine for an Owned handle. A Shared
// handle's engine is process-lifetime and Release is a no-op for it.
func (h Handle) Release() {
	if h.kind == ScopePerConnection && h.engine != nil {
		h.engine.Stop()
	}
}

// Factory produces Handles for a scenario according to its configured
// scope: the same *Engine for every caller under Global, or a freshly
// constructed one per call under PerConnection.
type Factory struct {
	scope            Scope
	baseline         *config.BaselineState
	phases           []config.Phase
	eventCardinality int64
	timerInterval    time.Duration

	mu     sync.Mutex
	shared *Engine
}

// NewFactory builds a Factory. baseline and phases are shared read-only
// across every engine it constructs (each Engine clones baseline lazily
// inside computeEffectiveState, so sharing the pointer here is safe).
func NewFactory(scope Scope, baseline *config.BaselineState, phases []config.Phase, eventCardinality int64, timerInterval time.Duration) *Factory {
	return &Factory{
		scope:            scope,
		baseline:         baseline,
		phases:           phases,
		eventCardinality: eventCardinality,
		timerInterval:    timerInterval,
	}
}

// HandleFor returns the Handle a connection should use. connID is unused
// for Global scope (every connection gets the same shared engine) and is
// accepted only so callers don't need to branch on scope themselves.
func (f *Factory) HandleFor(connID string) Handle {
	if f.scope == ScopePerConnection {
		e := NewEngine(f.baseline, f.phases, f.eventCardinality, f.timerInterval)
		e.StartTimer()
		return Handle{kind: ScopePerConnection, engine: e}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.shared == nil {
		f.shared = NewEngine(f.baseline, f.phases, f.eventCardinality, f.timerInterval)
		f.shared.StartTimer()
	}
	return Handle{kind: ScopeGlobal, engine: f.shared}
}

// StopAll stops the shared engine's timer, if one was ever constructed.
// Owned engines are stopped individually via Handle.Release when their
// connection closes.
func (f *Factory) StopAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.shared != nil {
		f.shared.Stop()
	}
}
