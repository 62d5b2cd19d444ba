package mcp

import "encoding/json"

// SpecificName extracts the argument a method's "specific" event is keyed
// on — a tool or prompt name, or a resource uri — without depending on any
// package's private param-decoding structs. Used by the server loop ahead
// of dispatch, since §4.7 step 4 counts both the generic and specific event
// before step 6 hands the request to the dispatcher. Returns "" for methods
// with no specific event, or when params don't decode.
func SpecificName(method string, params json.RawMessage) string {
	if len(params) == 0 {
		return ""
	}
	switch method {
	case MethodToolsCall, MethodPromptsGet:
		var v struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(params, &v); err != nil {
			return ""
		}
		return v.Name
	case MethodResourcesRead:
		var v struct {
			URI string `json:"uri"`
		}
		if err := json.Unmarshal(params, &v); err != nil {
			return ""
		}
		return v.URI
	default:
		return ""
	}
}

// GenericArguments decodes the "arguments" object carried by tools/call and
// prompts/get params, for building a pre-dispatch match.Resolver without
// depending on handlers' private param structs. Returns nil for methods
// that carry no arguments, or when params don't decode.
func GenericArguments(method string, params json.RawMessage) map[string]interface{} {
	if len(params) == 0 {
		return nil
	}
	switch method {
	case MethodToolsCall, MethodPromptsGet:
		var v struct {
			Arguments map[string]interface{} `json:"arguments"`
		}
		if err := json.Unmarshal(params, &v); err != nil {
			return nil
		}
		return v.Arguments
	default:
		return nil
	}
}
