package match

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/thoughtjack/thoughtjack/internal/config"
)

// Evaluate reports whether cond holds for a resolved (value, exists) pair.
// A field absent from context (exists == false) matches only an
// exists:false predicate, per §4.3: "fields absent from context match only
// the exists: false predicate." Every other operator requires exists to be
// true.
func Evaluate(cond *config.Condition, value interface{}, exists bool) bool {
	if cond == nil {
		return false
	}

	if cond.Exists != nil {
		return exists == *cond.Exists
	}
	if !exists {
		return false
	}

	if len(cond.AnyOf) > 0 {
		for i := range cond.AnyOf {
			if Evaluate(&cond.AnyOf[i], value, exists) {
				return true
			}
		}
		return false
	}

	s := toString(value)

	if cond.Contains != nil {
		return strings.Contains(s, *cond.Contains)
	}
	if cond.Prefix != nil {
		return strings.HasPrefix(s, *cond.Prefix)
	}
	if cond.Suffix != nil {
		return strings.HasSuffix(s, *cond.Suffix)
	}
	if cond.Gt != nil {
		n, ok := toFloat(value)
		return ok && n > *cond.Gt
	}
	if cond.Lt != nil {
		n, ok := toFloat(value)
		return ok && n < *cond.Lt
	}
	if cond.Pattern != "" {
		p, err := Compile(cond.Pattern)
		if err != nil {
			return false
		}
		return p.MatchString(s)
	}

	return false
}

// EvaluateField resolves field against resolver and evaluates cond
// against the result.
func EvaluateField(field string, cond *config.Condition, resolver Resolver) bool {
	v, ok := resolver.Resolve(field)
	return Evaluate(cond, v, ok)
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		n, err := strconv.ParseFloat(t, 64)
		return n, err == nil
	default:
		return 0, false
	}
}
