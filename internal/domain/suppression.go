package domain

import (
	sitter "github.com/smacker/go-tree-sitter"
	m "rads.dev/pkg/rads/internal/model"
)

// suppressionTracker records the unsafe_code policy of each module scope in a file.
//
// The file root starts at the entry state supplied by the caller and is switched by
// inner #![forbid(unsafe_code)] / #![allow(unsafe_code)] attributes. An inline module
// copies its parent's state, then applies its own outer attributes followed by the
// inner attributes at the top of its body.
type suppressionTracker struct {
	entry   m.ScopeState
	root    m.ScopeState
	modules map[string]m.ScopeState
}

func newSuppressionTracker(entry m.ScopeState) *suppressionTracker {
	return &suppressionTracker{
		entry:   entry,
		root:    entry,
		modules: make(map[string]m.ScopeState),
	}
}

func (t *suppressionTracker) enterRoot(inner []rustAttr) m.ScopeState {
	t.root = applyLints(t.entry, inner)
	return t.root
}

func (t *suppressionTracker) enterModule(path string, parent m.ScopeState, outer, inner []rustAttr) m.ScopeState {
	state := applyLints(applyLints(parent, outer), inner)
	t.modules[path] = state

	return state
}

func (t *suppressionTracker) result() m.Suppression {
	s := m.Suppression{Root: t.root}
	if len(t.modules) > 0 {
		s.Modules = t.modules
	}

	return s
}

// trackSuppression walks only the module structure of a file. It is the cheap path
// used when counting is not required.
func trackSuppression(root *sitter.Node, src []byte, entry m.ScopeState) m.Suppression {
	tracker := newSuppressionTracker(entry)
	state := tracker.enterRoot(innerAttributes(root, src))

	type pending struct {
		container *sitter.Node
		module    string
		state     m.ScopeState
	}

	stack := []pending{{container: root, state: state}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		var outer []rustAttr

		for i := 0; i < int(top.container.ChildCount()); i++ {
			child := top.container.Child(i)

			switch child.Type() {
			case "attribute_item":
				outer = append(outer, parseAttribute(child.Content(src)))
				continue
			case "line_comment", "block_comment":
				continue
			case "mod_item":
				body := child.ChildByFieldName("body")
				path := joinModule(top.module, moduleName(child, src))
				childState := tracker.enterModule(path, top.state, outer, innerAttributes(body, src))

				if body != nil {
					stack = append(stack, pending{container: body, module: path, state: childState})
				}
			}

			outer = nil
		}
	}

	return tracker.result()
}

// innerAttributes collects the #![...] attributes directly under container.
func innerAttributes(container *sitter.Node, src []byte) []rustAttr {
	if container == nil {
		return nil
	}

	var attrs []rustAttr

	for i := 0; i < int(container.ChildCount()); i++ {
		child := container.Child(i)
		if child.Type() == "inner_attribute_item" {
			attrs = append(attrs, parseAttribute(child.Content(src)))
		}
	}

	return attrs
}

func moduleName(node *sitter.Node, src []byte) string {
	if name := node.ChildByFieldName("name"); name != nil {
		return name.Content(src)
	}

	return "_"
}

func joinModule(parent, name string) string {
	if parent == "" {
		return name
	}

	return parent + "::" + name
}
