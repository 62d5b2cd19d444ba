package template

import (
	"os"
	"strconv"
	"strings"
)

// navigate walks a dotted path with optional [n]/[-n] indexing (§4.3:
// "args.* ... supports dotted paths and [n] / negative indexing") against
// an already-decoded JSON-ish value tree (map[string]interface{},
// []interface{}, and scalars).
func navigate(root interface{}, path string) (interface{}, bool) {
	cur := root
	for _, segment := range strings.Split(path, ".") {
		field, indices, ok := parseSegment(segment)
		if !ok {
			return nil, false
		}
		if field != "" {
			m, ok := cur.(map[string]interface{})
			if !ok {
				return nil, false
			}
			cur, ok = m[field]
			if !ok {
				return nil, false
			}
		}
		for _, idx := range indices {
			arr, ok := cur.([]interface{})
			if !ok {
				return nil, false
			}
			i := idx
			if i < 0 {
				i += len(arr)
			}
			if i < 0 || i >= len(arr) {
				return nil, false
			}
			cur = arr[i]
		}
	}
	return cur, true
}

// parseSegment splits "name[0][-1]" into its field name ("name") and its
// ordered index list ([0, -1]).
func parseSegment(segment string) (field string, indices []int, ok bool) {
	i := strings.IndexByte(segment, '[')
	if i < 0 {
		return segment, nil, true
	}
	field = segment[:i]
	rest := segment[i:]
	for len(rest) > 0 {
		if rest[0] != '[' {
			return "", nil, false
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return "", nil, false
		}
		n, err := strconv.Atoi(rest[1:end])
		if err != nil {
			return "", nil, false
		}
		indices = append(indices, n)
		rest = rest[end+1:]
	}
	return field, indices, true
}

// envLookup returns process environment variables, resolving to empty
// string (not a missing-variable) when unset, per §4.3: "env.* (process
// environment, empty if unset)".
func envLookup(name string) (interface{}, bool) {
	return os.Getenv(name), true
}
