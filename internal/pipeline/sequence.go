package pipeline

import "fmt"

// ErrSequenceExhausted is raised by ResolveSequenceIndex when a sequence
// runs out and on_exhausted is "error", or the sequence is empty.
var ErrSequenceExhausted = fmt.Errorf("pipeline: sequence exhausted")

// ResolveSequenceIndex implements §4.3's "Sequence resolution": given a
// sequence of length l and a 1-indexed callCount, returns the 0-indexed
// entry to use. onExhausted selects the policy once callCount exceeds l:
// "cycle" wraps, "last" pins to the final entry, "error" (the default)
// raises ErrSequenceExhausted.
func ResolveSequenceIndex(l int, callCount int, onExhausted string) (int, error) {
	if l == 0 {
		return 0, ErrSequenceExhausted
	}
	if callCount <= l {
		return callCount - 1, nil
	}
	switch onExhausted {
	case "cycle":
		return (callCount - 1) % l, nil
	case "last":
		return l - 1, nil
	default:
		return 0, ErrSequenceExhausted
	}
}
