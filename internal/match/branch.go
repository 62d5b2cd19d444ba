package match

import "github.com/thoughtjack/thoughtjack/internal/config"

// Index returns the index of the first branch in branches that matches
// against resolver, or -1 if none match (§4.3: "resolve match block ->
// index of first matching branch (or None)"). A branch's When map is an
// AND of all its field conditions. A Default branch always matches; config
// validation enforces it appears last, so first-match-wins still selects
// it correctly even without special-casing it here.
func Index(branches []config.MatchBranch, resolver Resolver) int {
	for i := range branches {
		if branchMatches(&branches[i], resolver) {
			return i
		}
	}
	return -1
}

func branchMatches(b *config.MatchBranch, resolver Resolver) bool {
	if b.Default {
		return true
	}
	if len(b.When) == 0 {
		return false
	}
	for field, cond := range b.When {
		c := cond
		if !EvaluateField(field, &c, resolver) {
			return false
		}
	}
	return true
}
