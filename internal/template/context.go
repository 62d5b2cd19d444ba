// Package template implements the single-pass ${path} substitution engine
// described in §4.3: variable interpolation over a request-derived
// context plus a small set of pure built-in functions, with no recursive
// interpolation of function or variable output.
package template

// ToolContext carries the tool.* namespace for one tools/call dispatch.
type ToolContext struct {
	Name      string
	CallCount uint64
}

// ResourceContext carries the resource.* namespace for one resources/read.
type ResourceContext struct {
	URI       string
	Name      string
	MimeType  string
	CallCount uint64
}

// PromptContext carries the prompt.* namespace for one prompts/get.
type PromptContext struct {
	Name      string
	CallCount uint64
}

// PhaseContext carries the phase.* namespace.
type PhaseContext struct {
	Name  string
	Index int
}

// RequestContext carries the request.* namespace.
type RequestContext struct {
	ID     interface{}
	Method string
}

// Context is the full TemplateContext a request resolves variables
// against. Any of Tool/Resource/Prompt may be nil when not applicable to
// the current dispatch (e.g. Tool is nil while handling resources/read).
type Context struct {
	Args         map[string]interface{}
	Tool         *ToolContext
	Resource     *ResourceContext
	Prompt       *PromptContext
	Phase        *PhaseContext
	Request      *RequestContext
	ConnectionID string
}

// Resolve looks up a dotted variable path and reports whether it exists.
// It implements the same signature as match.Resolver (structurally, with
// no import needed) so the same Context serves both match-condition
// evaluation and template interpolation.
func (c *Context) Resolve(path string) (interface{}, bool) {
	if c == nil {
		return nil, false
	}
	ns, rest, hasDot := cutFirst(path, '.')

	switch ns {
	case "args":
		if !hasDot {
			return c.Args, true
		}
		if c.Args == nil {
			return nil, false
		}
		return navigate(c.Args, rest)
	case "tool":
		if c.Tool == nil {
			return nil, false
		}
		switch rest {
		case "name":
			return c.Tool.Name, true
		case "call_count":
			return c.Tool.CallCount, true
		}
	case "resource":
		if c.Resource == nil {
			return nil, false
		}
		switch rest {
		case "uri":
			return c.Resource.URI, true
		case "name":
			return c.Resource.Name, true
		case "mimeType":
			return c.Resource.MimeType, true
		case "call_count":
			return c.Resource.CallCount, true
		}
	case "prompt":
		if c.Prompt == nil {
			return nil, false
		}
		switch rest {
		case "name":
			return c.Prompt.Name, true
		case "call_count":
			return c.Prompt.CallCount, true
		}
	case "phase":
		if c.Phase == nil {
			return nil, false
		}
		switch rest {
		case "name":
			return c.Phase.Name, true
		case "index":
			return c.Phase.Index, true
		}
	case "request":
		if c.Request == nil {
			return nil, false
		}
		switch rest {
		case "id":
			return c.Request.ID, true
		case "method":
			return c.Request.Method, true
		}
	case "connection":
		if rest == "id" {
			return c.ConnectionID, true
		}
	case "env":
		return envLookup(rest)
	}
	return nil, false
}

// cutFirst splits s at the first occurrence of sep, reporting whether sep
// was found.
func cutFirst(s string, sep byte) (before, after string, found bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}
