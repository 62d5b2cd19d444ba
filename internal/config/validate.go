package config

import "fmt"

// ValidationError describes one structural problem found by Validate,
// following the teacher's pattern of a typed error carrying an Op/context
// field (here: the path within the scenario document).
type ValidationError struct {
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

// Validate performs the structural checks that §8's boundary behaviors call
// out as observable: add_* identifiers colliding with the baseline, and a
// default match branch that is not last on a baseline tool/resource/prompt.
// It does not report an empty Phases slice or a first phase with no Advance
// trigger — both are legal boundary conditions; IsEmptyPhases and
// FirstPhaseHasNoAdvance report them so the caller can log a warning.
func (c *ServerConfig) Validate() []error {
	var errs []error

	baseline, phases := c.Normalize()

	for _, p := range phases {
		for name := range p.AddTools {
			if _, exists := baseline.Tools[name]; exists {
				errs = append(errs, &ValidationError{
					Path:   fmt.Sprintf("phases[%s].add_tools[%s]", p.Name, name),
					Reason: "add_tools collides with an existing tool identifier",
				})
			}
		}
		for name := range p.AddResources {
			if _, exists := baseline.Resources[name]; exists {
				errs = append(errs, &ValidationError{
					Path:   fmt.Sprintf("phases[%s].add_resources[%s]", p.Name, name),
					Reason: "add_resources collides with an existing resource identifier",
				})
			}
		}
		for name := range p.AddPrompts {
			if _, exists := baseline.Prompts[name]; exists {
				errs = append(errs, &ValidationError{
					Path:   fmt.Sprintf("phases[%s].add_prompts[%s]", p.Name, name),
					Reason: "add_prompts collides with an existing prompt identifier",
				})
			}
		}
	}

	checkBranches := func(path string, branches []MatchBranch) {
		for i, b := range branches {
			if b.Default && i != len(branches)-1 {
				errs = append(errs, &ValidationError{
					Path:   fmt.Sprintf("%s.match[%d]", path, i),
					Reason: "default branch must be last",
				})
			}
		}
	}
	for name, t := range baseline.Tools {
		checkBranches(fmt.Sprintf("baseline.tools[%s].response", name), t.Response.Match)
	}
	for name, r := range baseline.Resources {
		checkBranches(fmt.Sprintf("baseline.resources[%s].content", name), r.Content.Match)
	}
	for name, p := range baseline.Prompts {
		checkBranches(fmt.Sprintf("baseline.prompts[%s].messages", name), p.Messages.Match)
	}

	return errs
}

// IsEmptyPhases reports the §8 boundary condition: an empty phases array
// means the server is immediately terminal.
func (c *ServerConfig) IsEmptyPhases() bool {
	_, phases := c.Normalize()
	return len(phases) == 0
}

// FirstPhaseHasNoAdvance reports the §8 boundary condition that warrants a
// startup warning: the first configured phase has no advance trigger, so
// the engine is terminal from boot.
func (c *ServerConfig) FirstPhaseHasNoAdvance() bool {
	_, phases := c.Normalize()
	return len(phases) > 0 && phases[0].Advance == nil
}
