package config

import (
	"regexp"

	"gopkg.in/yaml.v3"
)

// shorthandFn recognizes the "contains(secret)" function-call shorthand a
// scenario author can write directly as a condition's scalar value, instead
// of the structured `{contains: secret}` operator form. Both forms compile
// to the identical Condition.
var shorthandFn = regexp.MustCompile(`^(contains|prefix|suffix)\((.*)\)$`)

// UnmarshalYAML lets a Condition be written either as a bare scalar (a glob
// pattern, a "regex:"-prefixed pattern, or a "contains(x)"/"prefix(x)"/
// "suffix(x)" shorthand) or as a mapping with explicit operator keys.
func (c *Condition) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		if m := shorthandFn.FindStringSubmatch(s); m != nil {
			v := m[2]
			switch m[1] {
			case "contains":
				c.Contains = &v
			case "prefix":
				c.Prefix = &v
			case "suffix":
				c.Suffix = &v
			}
			return nil
		}
		c.Pattern = s
		return nil
	}

	type rawCondition Condition
	var raw rawCondition
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*c = Condition(raw)
	return nil
}
