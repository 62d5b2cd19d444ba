// Package mcp defines the wire-level MCP/JSON-RPC 2.0 types and protocol
// constants shared by the transport, handler, and pipeline packages.
package mcp

const (
	// ProtocolVersion is the MCP protocol version ThoughtJack advertises on
	// initialize when the client's request names none; a protocolVersion
	// sent by the client is echoed back instead.
	ProtocolVersion = "2024-11-05"

	ServerName = "thoughtjack"
)

// UnknownMethodPolicy governs how the dispatcher responds to a method it
// does not recognize.
type UnknownMethodPolicy string

const (
	UnknownMethodError  UnknownMethodPolicy = "error"
	UnknownMethodIgnore UnknownMethodPolicy = "ignore"
	UnknownMethodDrop   UnknownMethodPolicy = "drop"
)

// ParseUnknownMethodPolicy parses a scenario-configured policy string,
// defaulting to "error" for anything unrecognized.
func ParseUnknownMethodPolicy(s string) UnknownMethodPolicy {
	switch UnknownMethodPolicy(s) {
	case UnknownMethodIgnore:
		return UnknownMethodIgnore
	case UnknownMethodDrop:
		return UnknownMethodDrop
	default:
		return UnknownMethodError
	}
}

// Known JSON-RPC error codes used by the handler dispatcher (§7).
const (
	ErrParse          = -32700
	ErrInvalidRequest = -32600
	ErrMethodNotFound = -32601
	ErrInvalidParams  = -32602
	ErrInternal       = -32603
)

// Method names the dispatcher recognizes. Used by the metrics package's
// label-sanitization allowlist as well as the handler switch.
const (
	MethodInitialize           = "initialize"
	MethodPing                 = "ping"
	MethodToolsList            = "tools/list"
	MethodToolsCall            = "tools/call"
	MethodResourcesList        = "resources/list"
	MethodResourcesRead        = "resources/read"
	MethodResourcesSubscribe   = "resources/subscribe"
	MethodResourcesUnsubscribe = "resources/unsubscribe"
	MethodPromptsList          = "prompts/list"
	MethodPromptsGet           = "prompts/get"
	MethodCompletionComplete   = "completion/complete"
	MethodLoggingSetLevel      = "logging/setLevel"
)

// KnownMethods is the allowlist used to sanitize method labels before they
// reach a Prometheus metric (§4.8).
var KnownMethods = map[string]bool{
	MethodInitialize:           true,
	MethodPing:                 true,
	MethodToolsList:            true,
	MethodToolsCall:            true,
	MethodResourcesList:        true,
	MethodResourcesRead:        true,
	MethodResourcesSubscribe:   true,
	MethodResourcesUnsubscribe: true,
	MethodPromptsList:          true,
	MethodPromptsGet:           true,
	MethodCompletionComplete:   true,
	MethodLoggingSetLevel:      true,
}

// EventNameForMethod returns the generic event name counted for a method
// (§4.7 step 4), and whether that method also has a "specific" sub-event
// keyed by an argument (tool name, resource uri, prompt name).
func EventNameForMethod(method string) (generic string, hasSpecific bool) {
	switch method {
	case MethodToolsCall:
		return MethodToolsCall, true
	case MethodPromptsGet:
		return MethodPromptsGet, true
	case MethodResourcesRead:
		return MethodResourcesRead, true
	default:
		return method, false
	}
}
