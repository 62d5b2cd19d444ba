package generators

import "encoding/json"

// NestedJSONParams configures the nested_json generator (§4.2).
type NestedJSONParams struct {
	Depth     int
	Structure string
	Key       string
	Inner     interface{}
}

func parseNestedJSONParams(p map[string]interface{}) NestedJSONParams {
	inner := p["inner"]
	if inner == nil {
		inner = ""
	}
	return NestedJSONParams{
		Depth:     paramInt(p, "depth", 0),
		Structure: paramString(p, "structure", "object"),
		Key:       paramString(p, "key", "data"),
		Inner:     inner,
	}
}

// NestedJSON builds an iteratively-nested JSON value, avoiding stack
// recursion so arbitrarily deep configs can't blow the goroutine stack
// (§4.2: "Iteratively built nested JSON; no stack recursion").
type NestedJSON struct {
	params NestedJSONParams
}

func NewNestedJSON(params NestedJSONParams, limits Limits) (*NestedJSON, error) {
	if params.Depth > limits.MaxNestDepth {
		return nil, &LimitExceededError{Generator: "nested_json", Field: "depth", Value: params.Depth, Limit: limits.MaxNestDepth}
	}
	return &NestedJSON{params: params}, nil
}

func (n *NestedJSON) Name() string       { return "nested_json" }
func (n *NestedJSON) ProducesJSON() bool { return true }

func (n *NestedJSON) EstimatedSize() int {
	b, err := json.Marshal(n.build())
	if err != nil {
		return 0
	}
	return len(b)
}

func (n *NestedJSON) Generate() (Payload, error) {
	b, err := json.Marshal(n.build())
	if err != nil {
		return Payload{}, err
	}
	return bufferedOrStreamed(b), nil
}

func (n *NestedJSON) build() interface{} {
	return WrapNested(n.params.Inner, n.params.Depth, n.params.Key, n.params.Structure)
}

// WrapNested wraps inner in depth levels of container, per structure
// ("object" | "array" | "mixed", alternating object/array per level).
// Depth 0 returns inner unchanged (§8: "nested_json with depth 0 ⇒ output
// = inner literal"). Shared with the behavior package's nested_json
// delivery wrapping, which applies the same iterative construction to a
// full response envelope rather than a generator's inner value.
func WrapNested(inner interface{}, depth int, key, structure string) interface{} {
	cur := inner
	for i := 0; i < depth; i++ {
		switch structure {
		case "array":
			cur = []interface{}{cur}
		case "mixed":
			if i%2 == 0 {
				cur = map[string]interface{}{key: cur}
			} else {
				cur = []interface{}{cur}
			}
		default:
			cur = map[string]interface{}{key: cur}
		}
	}
	return cur
}
