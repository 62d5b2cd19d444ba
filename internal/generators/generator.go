package generators

import "fmt"

// Generator is the capability set every payload generator implements
// (§9's re-expression of the polymorphic generator trait): Generate
// produces the payload, EstimatedSize supports limit preflight before
// Generate runs, and ProducesJSON tells callers whether the result needs
// a mimeType of application/json.
type Generator interface {
	Name() string
	EstimatedSize() int
	ProducesJSON() bool
	Generate() (Payload, error)
}

// Descriptor is the $generate: {type, params} directive shape a response
// config embeds (§4.6). Params is kept as a generic map since each kind
// has its own parameter set.
type Descriptor struct {
	Type   string
	Params map[string]interface{}
}

// Build constructs the Generator named by d.Type, validating its
// parameters against limits. Unknown types return an error.
func Build(d Descriptor, limits Limits) (Generator, error) {
	switch d.Type {
	case "garbage":
		return NewGarbage(parseGarbageParams(d.Params), limits)
	case "nested_json":
		return NewNestedJSON(parseNestedJSONParams(d.Params), limits)
	case "batch_notifications":
		return NewBatchNotifications(parseBatchParams(d.Params), limits)
	case "repeated_keys":
		return NewRepeatedKeys(parseRepeatedKeysParams(d.Params), limits)
	case "ansi_escape":
		return NewAnsiEscape(parseAnsiParams(d.Params), limits)
	default:
		return nil, fmt.Errorf("generators: unknown generator type %q", d.Type)
	}
}

func paramString(p map[string]interface{}, key, def string) string {
	if v, ok := p[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

func paramInt(p map[string]interface{}, key string, def int) int {
	if v, ok := p[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case float64:
			return int(n)
		}
	}
	return def
}

func paramUint64(p map[string]interface{}, key string, def uint64) uint64 {
	if v, ok := p[key]; ok {
		switch n := v.(type) {
		case int:
			return uint64(n)
		case int64:
			return uint64(n)
		case float64:
			return uint64(n)
		case uint64:
			return n
		}
	}
	return def
}

func paramStringSlice(p map[string]interface{}, key string) []string {
	v, ok := p[key]
	if !ok {
		return nil
	}
	switch s := v.(type) {
	case []string:
		return s
	case []interface{}:
		out := make([]string, 0, len(s))
		for _, e := range s {
			if str, ok := e.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

func paramMap(p map[string]interface{}, key string) map[string]interface{} {
	v, ok := p[key]
	if !ok {
		return nil
	}
	m, _ := v.(map[string]interface{})
	return m
}
