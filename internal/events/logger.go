// Package events implements the JSONL event emitter (§4.8, §6.4): one
// JSON object per line, a monotonic sequence number, a type tag, and
// type-specific fields flattened into the same object. Observability must
// never crash the server, so every write failure here is silently
// discarded rather than returned.
package events

import (
	"encoding/json"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// Emitter writes one JSONL event per emit call as a single Write on the
// underlying writer, under a mutex. Nothing is buffered, so each line
// reaches the writer as soon as it is emitted.
type Emitter struct {
	mu       sync.Mutex
	w        io.Writer
	sequence atomic.Uint64
	now      func() time.Time
}

// NewEmitter wraps w. Pass io.Discard to disable event emission entirely.
func NewEmitter(w io.Writer) *Emitter {
	return &Emitter{w: w, now: time.Now}
}

func (e *Emitter) emit(eventType string, fields map[string]interface{}) {
	seq := e.sequence.Add(1) - 1

	out := map[string]interface{}{
		"sequence":  seq,
		"type":      eventType,
		"timestamp": e.now().UTC().Format(time.RFC3339),
	}
	for k, v := range fields {
		out[k] = v
	}

	line, err := json.Marshal(out)
	if err != nil {
		return
	}
	line = append(line, '\n')

	e.mu.Lock()
	defer e.mu.Unlock()
	_, _ = e.w.Write(line) // observability failures are silently discarded (§4.8)
}

// ServerStarted records process startup.
func (e *Emitter) ServerStarted(scenario string) {
	e.emit("ServerStarted", map[string]interface{}{"scenario": scenario})
}

// ServerStopped records a clean or triggered shutdown.
func (e *Emitter) ServerStopped(reason, summary string) {
	fields := map[string]interface{}{"reason": reason}
	if summary != "" {
		fields["summary"] = summary
	}
	e.emit("ServerStopped", fields)
}

// PhaseEntered records a completed transition. trigger is the event or
// trigger kind that caused it; an empty trigger is left out of the event.
func (e *Emitter) PhaseEntered(name string, index int, trigger string) {
	fields := map[string]interface{}{"name": name, "index": index}
	if trigger != "" {
		fields["trigger"] = trigger
	}
	e.emit("PhaseEntered", fields)
}

// AttackTriggered records one adversarial behavior firing: a delivery
// kind or side effect kind, with free-form details and the phase it fired
// under.
func (e *Emitter) AttackTriggered(attackType, details, phase string) {
	e.emit("AttackTriggered", map[string]interface{}{
		"attack_type": attackType,
		"details":     details,
		"phase":       phase,
	})
}

// RequestReceived records an inbound JSON-RPC message.
func (e *Emitter) RequestReceived(method string, id interface{}) {
	e.emit("RequestReceived", map[string]interface{}{
		"method": method,
		"id":     id,
	})
}

// ResponseSent records the outcome of delivering a response.
func (e *Emitter) ResponseSent(success bool, durationMs int64) {
	e.emit("ResponseSent", map[string]interface{}{
		"success":     success,
		"duration_ms": durationMs,
	})
}

// SideEffectTriggered records one side effect firing.
func (e *Emitter) SideEffectTriggered(kind, trigger string) {
	e.emit("SideEffectTriggered", map[string]interface{}{
		"kind":    kind,
		"trigger": trigger,
	})
}

// Noop returns an Emitter that discards every event, for scenarios run
// with events disabled.
func Noop() *Emitter {
	return NewEmitter(io.Discard)
}
