package template

import (
	"fmt"
	"strings"
)

// Interpolate performs the single-pass ${path} substitution described in
// §4.3. "$${...}" is an escape that resolves to the literal text
// "${...}" with its contents left unresolved. Missing variables resolve
// to empty string. The result is never itself re-scanned for further
// "${}" sequences.
func Interpolate(s string, ctx *Context) string {
	var b strings.Builder
	i := 0
	for i < len(s) {
		if i+2 < len(s) && s[i] == '$' && s[i+1] == '$' && s[i+2] == '{' {
			end := strings.IndexByte(s[i+3:], '}')
			if end < 0 {
				b.WriteByte(s[i])
				i++
				continue
			}
			inner := s[i+3 : i+3+end]
			b.WriteString("${")
			b.WriteString(inner)
			b.WriteString("}")
			i = i + 3 + end + 1
			continue
		}
		if i+1 < len(s) && s[i] == '$' && s[i+1] == '{' {
			end := strings.IndexByte(s[i+2:], '}')
			if end < 0 {
				b.WriteByte(s[i])
				i++
				continue
			}
			expr := s[i+2 : i+2+end]
			b.WriteString(resolveExpr(expr, ctx))
			i = i + 2 + end + 1
			continue
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

// resolveExpr resolves one "${...}" body: either a fn.name(args...) call
// or a bare variable path.
func resolveExpr(expr string, ctx *Context) string {
	if rest, ok := cutPrefix(expr, "fn."); ok {
		return resolveCall(rest, ctx)
	}
	v, ok := ctx.Resolve(expr)
	if !ok {
		return ""
	}
	return stringify(v)
}

func cutPrefix(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && s[:len(prefix)] == prefix {
		return s[len(prefix):], true
	}
	return "", false
}

// resolveCall parses "name(arg1, arg2)" and dispatches to a built-in.
// Unknown functions resolve to empty string (§4.3: "Unknown function ->
// None -> empty string").
func resolveCall(expr string, ctx *Context) string {
	open := strings.IndexByte(expr, '(')
	if open < 0 || !strings.HasSuffix(expr, ")") {
		return ""
	}
	name := expr[:open]
	argExpr := expr[open+1 : len(expr)-1]

	var args []string
	if strings.TrimSpace(argExpr) != "" {
		for _, raw := range splitArgs(argExpr) {
			args = append(args, resolveArg(strings.TrimSpace(raw), ctx))
		}
	}

	fn, ok := builtins[name]
	if !ok {
		return ""
	}
	return fn(args)
}

// splitArgs splits a function-call argument list on top-level commas
// (not nested inside parens), since a default(...) argument may itself be
// another fn.* call.
func splitArgs(s string) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// resolveArg resolves one function argument: first as a variable path
// (which may itself be a nested fn.* call), falling back to the bare
// token with surrounding quotes stripped (§4.3: "Function arguments are
// first resolved as variables; if variable resolution fails, the bare
// token (quotes stripped) is the argument").
func resolveArg(tok string, ctx *Context) string {
	if rest, ok := cutPrefix(tok, "fn."); ok {
		return resolveCall(rest, ctx)
	}
	if v, ok := ctx.Resolve(tok); ok {
		return stringify(v)
	}
	return unquote(tok)
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}
