package phase

import (
	"sync"
	"sync/atomic"
	"time"
)

// State is the concurrency core from §3/§4.4: an atomic current phase
// index, an atomic terminal flag, the cardinality-capped event map, a
// mutex-guarded phase-entry instant, and an immutable server-start
// instant.
type State struct {
	index      atomic.Int32
	terminal   atomic.Bool
	events     *eventMap
	phaseCount int

	entryMu  sync.Mutex
	enteredAt time.Time

	startedAt time.Time
}

// NewState creates PhaseState for a scenario with phaseCount phases. If
// phaseCount is 0, the state starts terminal immediately (§8's "Empty
// phases array" boundary behavior).
func NewState(phaseCount int, eventCardinalityCap int64) *State {
	s := &State{
		events:     newEventMap(eventCardinalityCap),
		phaseCount: phaseCount,
		enteredAt:  time.Now(),
		startedAt:  time.Now(),
	}
	if phaseCount == 0 {
		s.terminal.Store(true)
	}
	return s
}

// Index returns the current phase index.
func (s *State) Index() int {
	return int(s.index.Load())
}

// IsTerminal reports whether the phase engine will never advance again.
func (s *State) IsTerminal() bool {
	return s.terminal.Load()
}

// SetTerminal marks the state terminal. Idempotent; once set it is never
// cleared (§3 invariant: "Once terminal, phase never advances").
func (s *State) SetTerminal() {
	s.terminal.Store(true)
}

// PhaseEntryInstant returns when the current phase was entered.
func (s *State) PhaseEntryInstant() time.Time {
	s.entryMu.Lock()
	defer s.entryMu.Unlock()
	return s.enteredAt
}

// ServerStartInstant returns the immutable process-wide server-start time.
func (s *State) ServerStartInstant() time.Time {
	return s.startedAt
}

// IncrementEvent bumps the named event counter and returns the new count
// (0 if dropped due to the cardinality cap). Event counters persist across
// phase transitions (§3, F-003) — they live on State, not on any
// per-phase structure.
func (s *State) IncrementEvent(name string) uint64 {
	return s.events.Increment(name)
}

// EventCount returns the current count for an event name without
// incrementing it.
func (s *State) EventCount(name string) uint64 {
	return s.events.Get(name)
}

// TryAdvance performs the CAS-based transition from §4.4: "Exactly one
// caller wins under contention." On success it resets the phase-entry
// timer and, if to is past the last declared phase index, marks the state
// terminal; landing on a declared phase leaves terminal to the Engine.
// Returns true iff this call won the race.
func (s *State) TryAdvance(from, to int) bool {
	if !s.index.CompareAndSwap(int32(from), int32(to)) {
		return false
	}

	s.entryMu.Lock()
	s.enteredAt = time.Now()
	s.entryMu.Unlock()

	if to >= s.phaseCount-1 {
		// The caller (Engine) is responsible for checking whether the new
		// phase has its own advance trigger; Engine.tryAdvanceTo sets
		// terminal explicitly for the "no advance trigger" case. Reaching
		// past the last declared phase index is always terminal.
		if to >= s.phaseCount {
			s.terminal.Store(true)
		}
	}
	return true
}
