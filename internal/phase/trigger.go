package phase

import (
	"time"

	"github.com/thoughtjack/thoughtjack/internal/config"
)

// Context carries the values an advance Trigger is evaluated against: the
// event counter lookup, phase timing, and (for content triggers) a
// caller-supplied condition matcher against the in-flight request. Keeping
// the matcher as an injected function avoids this package depending on the
// match package's compiled-pattern machinery; the engine wires the two
// together.
type Context struct {
	EventCount        func(name string) uint64
	PhaseEnteredAt    time.Time
	Now               time.Time
	MatchCondition    func(field string, cond *config.Condition) bool
}

// Evaluate reports whether t fires given ctx. A Trigger is a disjunction: an
// event-count condition (On/Count), a time-since-phase-entry condition
// (After), and a content condition (When/WhenField) can all be present, and
// per §3 any one of them firing is sufficient. Timeout triggers
// (Timeout/OnTimeout) are evaluated separately by the timer task via
// EvaluateTimeout, not here — they race against, rather than gate, the
// primary trigger.
func Evaluate(t *config.Trigger, ctx Context) bool {
	if t == nil {
		return false
	}

	if t.On != "" && t.Count > 0 {
		if ctx.EventCount == nil {
			return false
		}
		if ctx.EventCount(t.On) >= uint64(t.Count) {
			return true
		}
	}

	if t.IsTimeTrigger() {
		d, err := time.ParseDuration(t.After)
		if err == nil && !ctx.PhaseEnteredAt.IsZero() {
			if ctx.Now.Sub(ctx.PhaseEnteredAt) >= d {
				return true
			}
		}
	}

	if t.When != nil && t.WhenField != "" && ctx.MatchCondition != nil {
		if ctx.MatchCondition(t.WhenField, t.When) {
			return true
		}
	}

	return false
}

// EvaluateTimeout reports whether t's Timeout has elapsed between phase
// entry and ctx.Now; it does not look at event counts. Timeout triggers
// (§3/§4.4) fire when On has not occurred within Timeout of phase entry —
// they are polled by the 100ms timer task rather than on the request path,
// since the absence of an event can't itself wake a check.
func EvaluateTimeout(t *config.Trigger, ctx Context) bool {
	if t == nil || !t.IsTimeoutTrigger() {
		return false
	}
	d, err := time.ParseDuration(t.Timeout)
	if err != nil {
		return false
	}
	if ctx.PhaseEnteredAt.IsZero() {
		return false
	}
	return ctx.Now.Sub(ctx.PhaseEnteredAt) >= d
}
