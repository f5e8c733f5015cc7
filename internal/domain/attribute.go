package domain

import (
	"strings"

	m "rads.dev/pkg/rads/internal/model"
)

const unsafeCodeLint = "unsafe_code"

// rustAttr is the textual shape of a Rust attribute: #[path(args)] or #[path = value].
type rustAttr struct {
	Inner    bool
	Path     string
	Args     []string
	HasValue bool
}

// parseAttribute decodes the source text of an attribute_item or
// inner_attribute_item node. Unknown shapes yield an attribute with only a path.
func parseAttribute(text string) rustAttr {
	var attr rustAttr

	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "#")
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "!") {
		attr.Inner = true
		text = strings.TrimSpace(text[1:])
	}

	text = strings.TrimPrefix(text, "[")
	text = strings.TrimSuffix(text, "]")
	text = strings.TrimSpace(text)

	cut := strings.IndexAny(text, "(=")
	if cut < 0 {
		attr.Path = normalizePath(text)
		return attr
	}

	attr.Path = normalizePath(text[:cut])

	rest := strings.TrimSpace(text[cut:])
	if strings.HasPrefix(rest, "=") {
		attr.HasValue = true
		return attr
	}

	if end := strings.LastIndex(rest, ")"); end > 0 {
		attr.Args = splitTopLevel(rest[1:end])
	}

	return attr
}

func normalizePath(p string) string {
	return strings.Join(strings.Fields(p), "")
}

// splitTopLevel splits on commas that are not nested in parentheses.
func splitTopLevel(s string) []string {
	var (
		out   []string
		depth int
		start int
	)

	for i, r := range s {
		switch r {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				if part := strings.TrimSpace(s[start:i]); part != "" {
					out = append(out, part)
				}

				start = i + 1
			}
		}
	}

	if part := strings.TrimSpace(s[start:]); part != "" {
		out = append(out, part)
	}

	return out
}

// hasArg reports whether name is one of the top-level arguments.
func (a rustAttr) hasArg(name string) bool {
	for _, arg := range a.Args {
		if normalizePath(arg) == name {
			return true
		}
	}

	return false
}

// lintState returns the scope state an unsafe_code lint attribute requests.
// ok is false when the attribute does not touch the unsafe_code lint.
func (a rustAttr) lintState() (m.ScopeState, bool) {
	if !a.hasArg(unsafeCodeLint) {
		return m.ScopePermitted, false
	}

	switch a.Path {
	case "forbid":
		return m.ScopeForbidden, true
	case "allow", "warn", "expect":
		return m.ScopePermitted, true
	}

	return m.ScopePermitted, false
}

// isTest matches #[test].
func (a rustAttr) isTest() bool {
	return a.Path == "test"
}

// isCfgTest matches #[cfg(test)] and #[cfg(test, ...)].
func (a rustAttr) isCfgTest() bool {
	return a.Path == "cfg" && a.hasArg("test")
}

// exportsSymbol matches attributes that make a function callable from foreign
// code without a safety check: no_mangle and export_name, bare or wrapped in unsafe(...).
func (a rustAttr) exportsSymbol() bool {
	switch a.Path {
	case "no_mangle", "export_name":
		return true
	case "unsafe":
		for _, arg := range a.Args {
			inner := parseAttribute("#[" + arg + "]")
			if inner.Path == "no_mangle" || inner.Path == "export_name" {
				return true
			}
		}
	}

	return false
}

// applyLints folds unsafe_code lint attributes over state in source order.
func applyLints(state m.ScopeState, attrs []rustAttr) m.ScopeState {
	for _, a := range attrs {
		if next, ok := a.lintState(); ok {
			state = next
		}
	}

	return state
}

func anyAttr(attrs []rustAttr, pred func(rustAttr) bool) bool {
	for _, a := range attrs {
		if pred(a) {
			return true
		}
	}

	return false
}
