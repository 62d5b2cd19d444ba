// Package match compiles scenario match conditions (§4.3) into reusable
// predicates and evaluates them against request-derived values. Bare
// string patterns compile to a glob (github.com/bmatcuk/doublestar/v4,
// grounded on the mock-server manifest in the retrieval pack) unless
// prefixed "regex:", in which case they compile to a regexp.Regexp capped
// at 1 MB of pattern source to keep matching linear-time by construction.
package match

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const maxPatternBytes = 1 << 20

// Pattern is a compiled bare string pattern: either a glob or a regex.
type Pattern struct {
	raw   string
	isRe  bool
	re    *regexp.Regexp
	glob  string
}

// Compile compiles a bare pattern string. "regex:" prefixed patterns
// compile to a regexp; everything else compiles to a doublestar glob.
func Compile(pattern string) (*Pattern, error) {
	if len(pattern) > maxPatternBytes {
		return nil, fmt.Errorf("match: pattern exceeds %d byte compile cap", maxPatternBytes)
	}
	if rest, ok := strings.CutPrefix(pattern, "regex:"); ok {
		re, err := regexp.Compile(rest)
		if err != nil {
			return nil, fmt.Errorf("match: invalid regex %q: %w", rest, err)
		}
		return &Pattern{raw: pattern, isRe: true, re: re}, nil
	}
	if _, err := doublestar.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("match: invalid glob %q: %w", pattern, err)
	}
	return &Pattern{raw: pattern, glob: pattern}, nil
}

// MatchString reports whether s satisfies the compiled pattern.
func (p *Pattern) MatchString(s string) bool {
	if p.isRe {
		return p.re.MatchString(s)
	}
	ok, _ := doublestar.Match(p.glob, s)
	return ok
}

// String returns the original pattern text.
func (p *Pattern) String() string { return p.raw }
