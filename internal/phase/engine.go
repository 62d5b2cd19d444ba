package phase

import (
	"sync"
	"time"

	"github.com/thoughtjack/thoughtjack/internal/config"
)

// Engine owns a scenario's phase diffs and drives transitions against a
// State. It memoizes EffectiveState per phase index (§3: "memoized cache of
// (phase_index, EffectiveState), invalidated on successful CAS") and runs a
// 100ms timer task that polls time- and timeout-based triggers, since
// nothing on the request path would otherwise notice a clock-only
// condition elapsing (§4.4).
type Engine struct {
	State    *State
	baseline *config.BaselineState
	phases   []config.Phase

	cacheMu    sync.Mutex
	cacheIndex int
	cacheValid bool
	cacheState *EffectiveState

	matchMu sync.Mutex

	// MatchCondition evaluates a Trigger's content condition (When/WhenField)
	// against the in-flight request. Wired by the server, since only it has
	// the decoded request in hand.
	MatchCondition func(field string, cond *config.Condition) bool

	// onAdvance, if set, runs synchronously right after a winning CAS, before
	// the cache is repopulated. Used by the server to fire a phase's
	// on_enter actions exactly once per transition, whether the CAS was won
	// from a request-triggered check or the background timer. advanceMu
	// guards installation: a Global-scope engine is shared by every
	// connection, and each one installs this callback when it starts.
	advanceMu sync.Mutex
	onAdvance func(newIndex int, newPhase *config.Phase)

	timerInterval time.Duration
	stopOnce      sync.Once
	stopCh        chan struct{}
}

// NewEngine constructs an Engine over baseline and phases. eventCardinality
// caps the number of distinct event names State will track (§3's
// cardinality cap); timerInterval is normally 100ms (§4.4) but is
// parameterized for tests.
func NewEngine(baseline *config.BaselineState, phases []config.Phase, eventCardinality int64, timerInterval time.Duration) *Engine {
	return &Engine{
		State:         NewState(len(phases), eventCardinality),
		baseline:      baseline,
		phases:        phases,
		cacheIndex:    -1,
		timerInterval: timerInterval,
		stopCh:        make(chan struct{}),
	}
}

// Effective returns the EffectiveState for the current phase index, from
// cache when the index hasn't changed since the last computation.
func (e *Engine) Effective() *EffectiveState {
	idx := e.State.Index()

	e.cacheMu.Lock()
	if e.cacheValid && e.cacheIndex == idx {
		st := e.cacheState
		e.cacheMu.Unlock()
		return st
	}
	e.cacheMu.Unlock()

	st := computeEffectiveState(e.baseline, e.phases, idx)

	e.cacheMu.Lock()
	e.cacheIndex = idx
	e.cacheState = st
	e.cacheValid = true
	e.cacheMu.Unlock()

	return st
}

// invalidate drops the memoized EffectiveState. Called after a winning CAS.
func (e *Engine) invalidate() {
	e.cacheMu.Lock()
	e.cacheValid = false
	e.cacheMu.Unlock()
}

// currentPhase returns the config.Phase at the current index, or nil if the
// engine has no phases or the index has run past the end.
func (e *Engine) currentPhase() *config.Phase {
	idx := e.State.Index()
	if idx < 0 || idx >= len(e.phases) {
		return nil
	}
	return &e.phases[idx]
}

// CurrentPhaseName returns the name of the phase at the current index, or
// "baseline" before the first phase exists or once the index has run past
// the end of phases — both cases mean there is no named Phase backing the
// effective state right now.
func (e *Engine) CurrentPhaseName() string {
	if p := e.currentPhase(); p != nil {
		return p.Name
	}
	return "baseline"
}

// CurrentPhase exposes currentPhase to callers outside the package (the
// server loop, to run a newly-entered phase's on_enter actions).
func (e *Engine) CurrentPhase() *config.Phase {
	return e.currentPhase()
}

// Index returns the phase engine's current index, for template/event
// context callers that need it outside the package.
func (e *Engine) Index() int {
	return e.State.Index()
}

// SetOnAdvance installs the callback a winning CAS runs, replacing whatever
// was installed before. Safe to call from multiple goroutines (every
// connection sharing a Global-scope engine calls this once at startup) as
// long as installers tolerate a later caller's callback winning — they're
// expected to be functionally equivalent for a shared engine.
func (e *Engine) SetOnAdvance(fn func(newIndex int, newPhase *config.Phase)) {
	e.advanceMu.Lock()
	e.onAdvance = fn
	e.advanceMu.Unlock()
}

func (e *Engine) runOnAdvance(idx int, p *config.Phase) {
	e.advanceMu.Lock()
	fn := e.onAdvance
	e.advanceMu.Unlock()
	if fn != nil {
		fn(idx, p)
	}
}

// triggerContext builds a Context for evaluating the current phase's
// Advance trigger.
func (e *Engine) triggerContext(now time.Time) Context {
	return Context{
		EventCount:     e.State.EventCount,
		PhaseEnteredAt: e.State.PhaseEntryInstant(),
		Now:            now,
		MatchCondition: e.MatchCondition,
	}
}

// CheckAdvanceOnEvent re-evaluates the current phase's Advance trigger after
// an event of the given name has just been incremented, and attempts a CAS
// transition if it fires. Per §8: "the count observed by the trigger is the
// count after the triggering request's increment" — callers must call
// State.IncrementEvent before calling this, not after. Timeout conditions
// are deliberately not checked here: §4.4 requires timeouts be evaluated
// only by the timer task, to avoid double-firing entry actions.
func (e *Engine) CheckAdvanceOnEvent(eventName string) bool {
	return e.checkAdvance(time.Now(), false)
}

// CheckAdvanceOnEventWithMatch is CheckAdvanceOnEvent for a phase whose
// advance trigger is content-based (When/WhenField): it installs matchFn as
// MatchCondition and evaluates under matchMu, so two connections sharing a
// Global-scope engine can't race setting MatchCondition out from under each
// other's checkAdvance call.
func (e *Engine) CheckAdvanceOnEventWithMatch(eventName string, matchFn func(field string, cond *config.Condition) bool) bool {
	e.matchMu.Lock()
	defer e.matchMu.Unlock()
	e.MatchCondition = matchFn
	return e.checkAdvance(time.Now(), false)
}

// CheckAdvanceOnTick is called by the timer task to evaluate time and
// timeout triggers, which nothing on the request path observes.
func (e *Engine) CheckAdvanceOnTick() bool {
	return e.checkAdvance(time.Now(), true)
}

func (e *Engine) checkAdvance(now time.Time, includeTimeout bool) bool {
	if e.State.IsTerminal() {
		return false
	}
	idx := e.State.Index()
	p := e.currentPhase()
	if p == nil || p.Advance == nil {
		return false
	}

	ctx := e.triggerContext(now)
	if Evaluate(p.Advance, ctx) {
		return e.tryAdvanceTo(idx, idx+1)
	}

	if !includeTimeout || !p.Advance.IsTimeoutTrigger() || !EvaluateTimeout(p.Advance, ctx) {
		return false
	}

	if p.Advance.OnTimeout == "abort" {
		e.State.SetTerminal()
		e.runOnAdvance(idx, nil)
		return true
	}

	target := idx + 1
	if dest, ok := timeoutDestination(e.phases, p.Advance.OnTimeout); ok {
		target = dest
	}
	return e.tryAdvanceTo(idx, target)
}

// timeoutDestination resolves a Trigger.OnTimeout phase name to its index.
func timeoutDestination(phases []config.Phase, name string) (int, bool) {
	if name == "" {
		return 0, false
	}
	for i, p := range phases {
		if p.Name == name {
			return i, true
		}
	}
	return 0, false
}

func (e *Engine) tryAdvanceTo(from, to int) bool {
	if !e.State.TryAdvance(from, to) {
		return false
	}
	e.invalidate()

	if to >= 0 && to < len(e.phases) && e.phases[to].Advance == nil {
		e.State.SetTerminal()
	}

	var np *config.Phase
	if to >= 0 && to < len(e.phases) {
		np = &e.phases[to]
	}
	e.runOnAdvance(to, np)
	return true
}

// StartTimer launches the background tick loop that polls time/timeout
// triggers every timerInterval. Stop must be called to release it.
func (e *Engine) StartTimer() {
	interval := e.timerInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-e.stopCh:
				return
			case <-ticker.C:
				e.CheckAdvanceOnTick()
			}
		}
	}()
}

// Stop terminates the timer goroutine. Safe to call multiple times.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
}
