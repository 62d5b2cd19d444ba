package config

// Normalize reduces either the simple or the phased ServerConfig form to
// (BaselineState, []Phase) per §3: "Normalized internally to
// (BaselineState, [Phase])."
func (c *ServerConfig) Normalize() (*BaselineState, []Phase) {
	if c.Baseline != nil || len(c.Phases) > 0 {
		baseline := c.Baseline
		if baseline == nil {
			baseline = &BaselineState{}
		}
		if baseline.Capabilities == nil {
			baseline.Capabilities = c.Capabilities
		}
		if baseline.Behavior == nil {
			baseline.Behavior = c.Behavior
		}
		return baseline.Clone(), c.Phases
	}

	return &BaselineState{
		Tools:        cloneToolMap(c.Tools),
		Resources:    cloneResourceMap(c.Resources),
		Prompts:      clonePromptMap(c.Prompts),
		Capabilities: c.Capabilities,
		Behavior:     c.Behavior,
	}, nil
}

func cloneToolMap(in map[string]ToolPattern) map[string]ToolPattern {
	out := make(map[string]ToolPattern, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneResourceMap(in map[string]ResourcePattern) map[string]ResourcePattern {
	out := make(map[string]ResourcePattern, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func clonePromptMap(in map[string]PromptPattern) map[string]PromptPattern {
	out := make(map[string]PromptPattern, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
