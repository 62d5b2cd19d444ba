// Package generators implements ThoughtJack's deterministic payload
// generators (§4.2): garbage bytes, nested JSON, notification batches,
// duplicate-key objects, and ANSI escape sequences. Every generator
// derives its output solely from its parameters and seed, so the same
// inputs always produce byte-identical payloads.
package generators

import "fmt"

// Limits bounds what a generator may construct, checked at construction
// time so a misconfigured scenario fails fast rather than exhausting
// memory mid-response.
type Limits struct {
	MaxPayloadBytes int
	MaxBatchSize    int
	MaxNestDepth    int
}

// DefaultLimits mirrors the scenario-validation defaults; callers with a
// loaded configuration should override these from it.
var DefaultLimits = Limits{
	MaxPayloadBytes: 64 * 1024 * 1024,
	MaxBatchSize:    1_000_000,
	MaxNestDepth:    10_000,
}

// LimitExceededError reports a construction-time parameter that exceeds
// Limits (§8: "Generator payload size above max_payload_bytes at
// construction ⇒ LimitExceeded").
type LimitExceededError struct {
	Generator string
	Field     string
	Value     int
	Limit     int
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("generators: %s.%s = %d exceeds limit %d", e.Generator, e.Field, e.Value, e.Limit)
}
