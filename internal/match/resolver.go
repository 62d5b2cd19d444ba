package match

// Resolver looks up a dotted variable path (e.g. "args.query") against
// whatever context a caller is matching requests against. It mirrors the
// variable namespaces the template engine resolves (§4.3), but match only
// needs the single resolved value and whether the path existed at all —
// fields absent from context are distinct from fields present with an
// empty value (exists:false only matches the former).
type Resolver interface {
	Resolve(path string) (value interface{}, exists bool)
}

// MapResolver resolves paths directly against a flat map, with no dotted
// traversal. Tests and simple callers can use this directly; request-path
// callers use the template package's richer context resolver instead.
type MapResolver map[string]interface{}

func (m MapResolver) Resolve(path string) (interface{}, bool) {
	v, ok := m[path]
	return v, ok
}
