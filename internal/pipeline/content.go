// Package pipeline implements the dynamic response pipeline (§4.3): match
// branch selection, sequence resolution, external handler delegation, and
// the final content resolution (literal/generator/file) with template
// interpolation applied last.
package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/thoughtjack/thoughtjack/internal/generators"
	"github.com/thoughtjack/thoughtjack/internal/template"
)

// resolveContentValue interprets a decoded "content" field (§4.6): a bare
// string is template-interpolated; a map with a "$generate" key builds
// and runs a generator; a map with a "$file" key reads a restricted
// relative file. Generator and file output are treated as already-final
// text and are not template-interpolated (only literal string content is,
// per §4.3: "apply template interpolation to the resulting content (not
// to handler output)" — the same non-interpolation applies to generator
// and file content, since both are themselves already-resolved payloads).
func resolveContentValue(v interface{}, ctx *template.Context, limits generators.Limits, fileRoot string) (string, bool, error) {
	switch t := v.(type) {
	case nil:
		return "", false, nil
	case string:
		return template.Interpolate(t, ctx), false, nil
	case map[string]interface{}:
		if g, ok := t["$generate"]; ok {
			s, err := resolveGenerate(g, limits)
			return s, true, err
		}
		if f, ok := t["$file"]; ok {
			s, err := resolveFile(f, fileRoot)
			return s, true, err
		}
		return "", false, fmt.Errorf("pipeline: content map has neither $generate nor $file")
	default:
		return fmt.Sprint(t), false, nil
	}
}

func resolveGenerate(v interface{}, limits generators.Limits) (string, error) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("pipeline: $generate must be a mapping")
	}
	typ, _ := m["type"].(string)
	g, err := generators.Build(generators.Descriptor{Type: typ, Params: m}, limits)
	if err != nil {
		return "", err
	}
	payload, err := g.Generate()
	if err != nil {
		return "", err
	}
	if !payload.IsStreamed() {
		return string(payload.Bytes()), nil
	}
	var b strings.Builder
	for {
		chunk, ok := payload.Chunks().Next()
		if !ok {
			break
		}
		b.Write(chunk)
	}
	return b.String(), nil
}

// resolveFile reads a $file reference, restricted to relative,
// non-traversal paths (§4.6).
func resolveFile(v interface{}, root string) (string, error) {
	rel, _ := v.(string)
	if rel == "" {
		return "", fmt.Errorf("pipeline: $file requires a path")
	}
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("pipeline: $file path must be relative: %q", rel)
	}
	clean := filepath.Clean(rel)
	if clean == ".." || strings.HasPrefix(clean, "../") || strings.HasPrefix(clean, string(filepath.Separator)) {
		return "", fmt.Errorf("pipeline: $file path escapes root: %q", rel)
	}
	return readFile(filepath.Join(root, clean))
}
