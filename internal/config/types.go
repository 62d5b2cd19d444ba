// Package config defines ThoughtJack's scenario data model (§3) — the
// declarative YAML shape and its normalization into a baseline plus an
// ordered list of phases. Loading and schema validation of the YAML file
// itself is an external collaborator (§1); this package owns the struct
// definitions, defaulting, and the simple/phased normalization step.
package config

import "encoding/json"

// ServerConfig is the root scenario document. It is either a "simple" form
// (top-level Tools/Resources/Prompts) or a "phased" form (Baseline +
// Phases). Normalize reduces either shape to (BaselineState, []Phase).
type ServerConfig struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`

	// Simple form.
	Tools     map[string]ToolPattern     `yaml:"tools,omitempty" json:"tools,omitempty"`
	Resources map[string]ResourcePattern `yaml:"resources,omitempty" json:"resources,omitempty"`
	Prompts   map[string]PromptPattern   `yaml:"prompts,omitempty" json:"prompts,omitempty"`

	// Phased form.
	Baseline *BaselineState `yaml:"baseline,omitempty" json:"baseline,omitempty"`
	Phases   []Phase        `yaml:"phases,omitempty" json:"phases,omitempty"`

	Capabilities    map[string]interface{} `yaml:"capabilities,omitempty" json:"capabilities,omitempty"`
	Behavior        *Behavior              `yaml:"behavior,omitempty" json:"behavior,omitempty"`
	UnknownMethods  string                 `yaml:"unknown_methods,omitempty" json:"unknown_methods,omitempty"`
	StateScope      string                 `yaml:"state_scope,omitempty" json:"state_scope,omitempty"`
}

// BaselineState is the server's capability set before any phase diff is
// applied (§3).
type BaselineState struct {
	Tools        map[string]ToolPattern     `yaml:"tools,omitempty" json:"tools,omitempty"`
	Resources    map[string]ResourcePattern `yaml:"resources,omitempty" json:"resources,omitempty"`
	Prompts      map[string]PromptPattern   `yaml:"prompts,omitempty" json:"prompts,omitempty"`
	Capabilities map[string]interface{}     `yaml:"capabilities,omitempty" json:"capabilities,omitempty"`
	Behavior     *Behavior                  `yaml:"behavior,omitempty" json:"behavior,omitempty"`
}

// Clone returns a deep-enough copy for effective-state computation: new
// top-level maps, but pattern values are copied by value (they contain no
// further mutable references beyond maps/slices which are themselves
// re-sliced/re-mapped by the caller as needed).
func (b *BaselineState) Clone() *BaselineState {
	if b == nil {
		return &BaselineState{
			Tools:     map[string]ToolPattern{},
			Resources: map[string]ResourcePattern{},
			Prompts:   map[string]PromptPattern{},
		}
	}
	out := &BaselineState{
		Tools:     make(map[string]ToolPattern, len(b.Tools)),
		Resources: make(map[string]ResourcePattern, len(b.Resources)),
		Prompts:   make(map[string]PromptPattern, len(b.Prompts)),
	}
	for k, v := range b.Tools {
		out.Tools[k] = v
	}
	for k, v := range b.Resources {
		out.Resources[k] = v
	}
	for k, v := range b.Prompts {
		out.Prompts[k] = v
	}
	if b.Capabilities != nil {
		out.Capabilities = deepCopyMap(b.Capabilities)
	}
	out.Behavior = b.Behavior
	return out
}

// ToolPattern describes one tool's advertised schema and response config.
type ToolPattern struct {
	Description string          `yaml:"description,omitempty" json:"description,omitempty"`
	InputSchema json.RawMessage `yaml:"input_schema,omitempty" json:"input_schema,omitempty"`
	Response    ResponseConfig  `yaml:"response,omitempty" json:"response,omitempty"`
	Behavior    *Behavior       `yaml:"behavior,omitempty" json:"behavior,omitempty"`
}

// ResourcePattern describes one resource's metadata and content config.
type ResourcePattern struct {
	Name        string         `yaml:"name,omitempty" json:"name,omitempty"`
	Description string         `yaml:"description,omitempty" json:"description,omitempty"`
	MimeType    string         `yaml:"mime_type,omitempty" json:"mime_type,omitempty"`
	Content     ResponseConfig `yaml:"content,omitempty" json:"content,omitempty"`
	Behavior    *Behavior      `yaml:"behavior,omitempty" json:"behavior,omitempty"`
}

// PromptPattern describes one prompt's arguments and message config.
type PromptPattern struct {
	Description string               `yaml:"description,omitempty" json:"description,omitempty"`
	Arguments   []mcpPromptArgument  `yaml:"arguments,omitempty" json:"arguments,omitempty"`
	Messages    ResponseConfig       `yaml:"messages,omitempty" json:"messages,omitempty"`
	Behavior    *Behavior            `yaml:"behavior,omitempty" json:"behavior,omitempty"`
}

type mcpPromptArgument struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Required    bool   `yaml:"required,omitempty" json:"required,omitempty"`
}

// ResponseConfig is the shared shape for ToolPattern.Response,
// ResourcePattern.Content, and PromptPattern.Messages (§3's
// "ResponseConfig / PromptResponse / ResourceResponse"). Content holds
// whatever the YAML "content" field decoded to: a plain string (template
// text), a map with a "$generate" key (a generator directive), or a map
// with a "$file" key (a restricted relative file reference) — §4.6's
// "Content values may be literal strings, generator descriptors, or file
// references." The pipeline package interprets the decoded shape.
type ResponseConfig struct {
	Content     interface{}     `yaml:"content,omitempty" json:"content,omitempty"`
	Match       []MatchBranch   `yaml:"match,omitempty" json:"match,omitempty"`
	Sequence    []SequenceEntry `yaml:"sequence,omitempty" json:"sequence,omitempty"`
	Handler     *HandlerConfig  `yaml:"handler,omitempty" json:"handler,omitempty"`
	OnExhausted string          `yaml:"on_exhausted,omitempty" json:"on_exhausted,omitempty"`
	IsError     bool            `yaml:"is_error,omitempty" json:"is_error,omitempty"`
}

// SequenceEntry is one entry of a ResponseConfig.Sequence.
type SequenceEntry struct {
	Content interface{}    `yaml:"content,omitempty" json:"content,omitempty"`
	Handler *HandlerConfig `yaml:"handler,omitempty" json:"handler,omitempty"`
	IsError bool           `yaml:"is_error,omitempty" json:"is_error,omitempty"`
}

// MatchBranch is one branch of ResponseConfig.Match: a map field-path ->
// Condition (all ANDed), with either Content/Handler/Sequence as its
// produced value, or Default to mark the catch-all branch (must be last).
type MatchBranch struct {
	Default  bool                 `yaml:"default,omitempty" json:"default,omitempty"`
	When     map[string]Condition `yaml:"when,omitempty" json:"when,omitempty"`
	Content  interface{}          `yaml:"content,omitempty" json:"content,omitempty"`
	Handler  *HandlerConfig       `yaml:"handler,omitempty" json:"handler,omitempty"`
	Sequence []SequenceEntry      `yaml:"sequence,omitempty" json:"sequence,omitempty"`
	IsError  bool                 `yaml:"is_error,omitempty" json:"is_error,omitempty"`
}

// Condition is a single match-field condition. Exactly one operator field
// (or a bare Pattern string) should be set; the match package interprets
// whichever is present.
type Condition struct {
	// Pattern, when non-empty and no operator field is set, is matched as a
	// glob, or (if prefixed "regex:") a regular expression.
	Pattern string `yaml:"-" json:"-"`

	Contains *string      `yaml:"contains,omitempty" json:"contains,omitempty"`
	Prefix   *string      `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	Suffix   *string      `yaml:"suffix,omitempty" json:"suffix,omitempty"`
	Exists   *bool        `yaml:"exists,omitempty" json:"exists,omitempty"`
	Gt       *float64     `yaml:"gt,omitempty" json:"gt,omitempty"`
	Lt       *float64     `yaml:"lt,omitempty" json:"lt,omitempty"`
	AnyOf    []Condition  `yaml:"any_of,omitempty" json:"any_of,omitempty"`
}

// HandlerConfig describes an external handler invocation (§4.3).
type HandlerConfig struct {
	URL     string            `yaml:"url,omitempty" json:"url,omitempty"`
	Command []string          `yaml:"command,omitempty" json:"command,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Env     map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	Dir     string            `yaml:"dir,omitempty" json:"dir,omitempty"`
	Timeout string            `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// IsHTTP reports whether this handler invokes an HTTP URL rather than a
// subprocess command.
func (h *HandlerConfig) IsHTTP() bool {
	return h != nil && h.URL != ""
}

// Phase is a named diff applied on top of the baseline (§3).
type Phase struct {
	Name                 string                     `yaml:"name" json:"name"`
	ReplaceTools         map[string]ToolPattern     `yaml:"replace_tools,omitempty" json:"replace_tools,omitempty"`
	AddTools             map[string]ToolPattern     `yaml:"add_tools,omitempty" json:"add_tools,omitempty"`
	RemoveTools          []string                   `yaml:"remove_tools,omitempty" json:"remove_tools,omitempty"`
	ReplaceResources     map[string]ResourcePattern `yaml:"replace_resources,omitempty" json:"replace_resources,omitempty"`
	AddResources         map[string]ResourcePattern `yaml:"add_resources,omitempty" json:"add_resources,omitempty"`
	RemoveResources      []string                   `yaml:"remove_resources,omitempty" json:"remove_resources,omitempty"`
	ReplacePrompts       map[string]PromptPattern   `yaml:"replace_prompts,omitempty" json:"replace_prompts,omitempty"`
	AddPrompts           map[string]PromptPattern   `yaml:"add_prompts,omitempty" json:"add_prompts,omitempty"`
	RemovePrompts        []string                   `yaml:"remove_prompts,omitempty" json:"remove_prompts,omitempty"`
	ReplaceCapabilities  map[string]interface{}     `yaml:"replace_capabilities,omitempty" json:"replace_capabilities,omitempty"`
	Behavior             *Behavior                  `yaml:"behavior,omitempty" json:"behavior,omitempty"`
	OnEnter              []Action                   `yaml:"on_enter,omitempty" json:"on_enter,omitempty"`
	Advance              *Trigger                   `yaml:"advance,omitempty" json:"advance,omitempty"`
}

// Action is one entry point of Phase.OnEnter: a notification, a
// server-initiated request, or a log line (§3).
type Action struct {
	Notification string                 `yaml:"notification,omitempty" json:"notification,omitempty"`
	Request      string                 `yaml:"request,omitempty" json:"request,omitempty"`
	Log          string                 `yaml:"log,omitempty" json:"log,omitempty"`
	Params       map[string]interface{} `yaml:"params,omitempty" json:"params,omitempty"`
}

// Trigger is a disjunction of event/time/content/timeout conditions (§3).
type Trigger struct {
	On        string     `yaml:"on,omitempty" json:"on,omitempty"`
	Count     int        `yaml:"count,omitempty" json:"count,omitempty"`
	After     string     `yaml:"after,omitempty" json:"after,omitempty"`
	Timeout   string     `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	OnTimeout string     `yaml:"on_timeout,omitempty" json:"on_timeout,omitempty"`
	When      *Condition `yaml:"when,omitempty" json:"when,omitempty"`
	WhenField string     `yaml:"when_field,omitempty" json:"when_field,omitempty"`
}

// IsTimeTrigger reports whether this trigger fires on elapsed phase-entry
// time rather than an event.
func (t *Trigger) IsTimeTrigger() bool {
	return t != nil && t.After != "" && t.On == ""
}

// IsTimeoutTrigger reports whether this trigger is a timeout-on-inactivity
// trigger, evaluated only by the timer task (§4.4).
func (t *Trigger) IsTimeoutTrigger() bool {
	return t != nil && t.Timeout != "" && t.On != ""
}

// Behavior is the delivery + side-effects configuration attachable at
// baseline, phase, or per-tool/resource/prompt scope (§4.5).
type Behavior struct {
	Delivery     *DeliveryConfig  `yaml:"delivery,omitempty" json:"delivery,omitempty"`
	SideEffects  []SideEffectConfig `yaml:"side_effects,omitempty" json:"side_effects,omitempty"`
}

// DeliveryConfig configures exactly one of the five delivery kinds (§4.5).
type DeliveryConfig struct {
	Kind         string `yaml:"kind" json:"kind"`
	ChunkSize    int    `yaml:"chunk_size,omitempty" json:"chunk_size,omitempty"`
	ByteDelayMs  int    `yaml:"byte_delay_ms,omitempty" json:"byte_delay_ms,omitempty"`
	TargetBytes  int    `yaml:"target_bytes,omitempty" json:"target_bytes,omitempty"`
	PaddingChar  string `yaml:"padding_char,omitempty" json:"padding_char,omitempty"`
	Depth        int    `yaml:"depth,omitempty" json:"depth,omitempty"`
	Key          string `yaml:"key,omitempty" json:"key,omitempty"`
	DelayMs      int    `yaml:"delay_ms,omitempty" json:"delay_ms,omitempty"`
}

// SideEffectConfig configures one side effect and the trigger it fires on
// (§4.5).
type SideEffectConfig struct {
	Kind         string  `yaml:"kind" json:"kind"`
	Trigger      string  `yaml:"trigger" json:"trigger"`
	RatePerSec   float64 `yaml:"rate_per_sec,omitempty" json:"rate_per_sec,omitempty"`
	Duration     string  `yaml:"duration,omitempty" json:"duration,omitempty"`
	Method       string  `yaml:"method,omitempty" json:"method,omitempty"`
	AmplifyCount int     `yaml:"amplify_count,omitempty" json:"amplify_count,omitempty"`
	IDCount      int     `yaml:"id_count,omitempty" json:"id_count,omitempty"`
}

func deepCopyMap(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		if nested, ok := v.(map[string]interface{}); ok {
			out[k] = deepCopyMap(nested)
		} else {
			out[k] = v
		}
	}
	return out
}
