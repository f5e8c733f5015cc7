package domain

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	sitter "github.com/smacker/go-tree-sitter"
	"go.opentelemetry.io/otel/attribute"
	"rads.dev/pkg/rads/internal/adapter"
	m "rads.dev/pkg/rads/internal/model"
)

// Scanner counts unsafe usage in a single Rust source file.
type Scanner interface {
	// Scan parses src and returns its counters and module suppression states.
	// A file that does not parse yields a *ParseFailedError together with
	// metrics flagged as failed; callers decide whether to skip or abort.
	// When the syntax errors are confined to some items, the intact items are
	// counted and the metrics carry the diagnostic without being failed.
	Scan(ctx context.Context, path m.Path, src []byte, entry m.ScopeState) (m.FileMetrics, error)

	// Suppression only evaluates the unsafe_code lint attributes of src.
	Suppression(ctx context.Context, path m.Path, src []byte, entry m.ScopeState) (m.Suppression, error)
}

// ScanOption configures a Scanner.
type ScanOption func(*scanConfig)

type scanConfig struct {
	includeTests bool
}

// WithIncludeTests makes the scanner count #[test] functions and #[cfg(test)] modules.
func WithIncludeTests(include bool) ScanOption {
	return func(c *scanConfig) {
		c.includeTests = include
	}
}

type scanner struct {
	rustAdapter adapter.RustFileAdapter
	config      scanConfig
}

// NewScanner creates a Scanner that parses with rustAdapter.
func NewScanner(rustAdapter adapter.RustFileAdapter, opts ...ScanOption) Scanner {
	s := &scanner{rustAdapter: rustAdapter}
	for _, opt := range opts {
		opt(&s.config)
	}

	return s
}

func (s *scanner) Scan(ctx context.Context, path m.Path, src []byte, entry m.ScopeState) (m.FileMetrics, error) {
	ctx, span := tracer.Start(ctx, "domain.Scan")
	defer span.End()

	span.SetAttributes(attribute.String("path", string(path)), attribute.Int("size", len(src)))

	start := time.Now()
	metrics := m.FileMetrics{Path: path, Suppression: m.Suppression{Root: entry}}

	tree, text, diagnostic, err := s.parse(ctx, path, src)
	if err != nil {
		metrics.Failed = true
		metrics.Diagnostic = diagnosticOf(err)
		recordScan(ctx, time.Since(start), true)
		span.RecordError(err)

		return metrics, err
	}
	defer tree.Close()

	v := &visitor{
		src:          text,
		includeTests: s.config.includeTests,
		tracker:      newSuppressionTracker(entry),
	}
	v.visitFile(tree.RootNode())

	metrics.Counters = v.counters
	metrics.Suppression = v.tracker.result()
	metrics.Diagnostic = diagnostic

	if diagnostic != "" {
		slog.Warn("Recovered from syntax errors", "path", path, "diagnostic", diagnostic)
	}

	recordScan(ctx, time.Since(start), false)
	slog.Debug("scanned file", "path", path, "unsafe", metrics.Counters.HasUnsafe(), "root", metrics.Suppression.Root)

	return metrics, nil
}

func (s *scanner) Suppression(ctx context.Context, path m.Path, src []byte, entry m.ScopeState) (m.Suppression, error) {
	tree, text, _, err := s.parse(ctx, path, src)
	if err != nil {
		return m.Suppression{Root: entry}, err
	}
	defer tree.Close()

	return trackSuppression(tree.RootNode(), text, entry), nil
}

// parse returns the tree of src. A tree with syntax errors is kept when at
// least one item is intact; its errors come back as the diagnostic.
func (s *scanner) parse(ctx context.Context, path m.Path, src []byte) (*sitter.Tree, []byte, string, error) {
	tree, text, err := s.rustAdapter.Parse(ctx, src)
	if err != nil {
		return nil, nil, "", &ParseFailedError{Path: path, Diagnostic: err.Error()}
	}

	errs := s.rustAdapter.SyntaxErrors(tree.RootNode(), text)
	if len(errs) == 0 {
		return tree, text, "", nil
	}

	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, e.String())
	}

	diagnostic := strings.Join(parts, "; ")

	if !hasIntactItem(tree.RootNode()) {
		tree.Close()
		return nil, nil, "", &ParseFailedError{Path: path, Diagnostic: diagnostic}
	}

	return tree, text, diagnostic, nil
}

// hasIntactItem reports whether any top-level item of root survives error recovery.
func hasIntactItem(root *sitter.Node) bool {
	if root == nil || root.IsError() {
		return false
	}

	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)

		switch child.Type() {
		case "line_comment", "block_comment", "attribute_item", "inner_attribute_item":
			continue
		}

		if usable(child) {
			return true
		}
	}

	return false
}

// usable reports whether an item can be visited: it has no syntax errors, or
// they all sit inside its body.
func usable(item *sitter.Node) bool {
	if item.IsError() || item.IsMissing() {
		return false
	}

	if !item.HasError() {
		return true
	}

	body := item.ChildByFieldName("body")
	if body == nil {
		return false
	}

	for i := 0; i < int(item.ChildCount()); i++ {
		child := item.Child(i)
		if sameSpan(child, body) {
			continue
		}

		if child.IsError() || child.IsMissing() || child.HasError() {
			return false
		}
	}

	return true
}

func diagnosticOf(err error) string {
	var pf *ParseFailedError
	if errors.As(err, &pf) {
		return pf.Diagnostic
	}

	return err.Error()
}

type itemOwner int

const (
	ownerFree itemOwner = iota
	ownerImpl
	ownerTrait
)

type frame struct {
	module string
	state  m.ScopeState
	owner  itemOwner
}

// visitor walks one syntax tree. unsafeScopes is the number of enclosing scopes
// marked unsafe; a construct is unsafe when it is greater than zero.
type visitor struct {
	src          []byte
	includeTests bool
	unsafeScopes int
	counters     m.CounterBlock
	tracker      *suppressionTracker
}

// expressionKinds are the node kinds counted as one expression each.
// Paths, literals and the unsafe block itself are deliberately absent.
var expressionKinds = map[string]bool{
	"array_expression":         true,
	"assignment_expression":    true,
	"async_block":              true,
	"await_expression":         true,
	"binary_expression":        true,
	"break_expression":         true,
	"call_expression":          true,
	"closure_expression":       true,
	"compound_assignment_expr": true,
	"const_block":              true,
	"continue_expression":      true,
	"field_expression":         true,
	"for_expression":           true,
	"gen_block":                true,
	"if_expression":            true,
	"index_expression":         true,
	"let_condition":            true,
	"loop_expression":          true,
	"match_expression":         true,
	"parenthesized_expression": true,
	"range_expression":         true,
	"reference_expression":     true,
	"return_expression":        true,
	"struct_expression":        true,
	"try_block":                true,
	"try_expression":           true,
	"tuple_expression":         true,
	"type_cast_expression":     true,
	"unary_expression":         true,
	"unit_expression":          true,
	"while_expression":         true,
	"yield_expression":         true,
}

// statementBlockParents own a block that is part of their syntax rather than an
// expression of its own.
var statementBlockParents = map[string]bool{
	"function_item":    true,
	"unsafe_block":     true,
	"async_block":      true,
	"const_block":      true,
	"gen_block":        true,
	"try_block":        true,
	"if_expression":    true,
	"while_expression": true,
	"loop_expression":  true,
	"for_expression":   true,
}

func (v *visitor) enterUnsafe() { v.unsafeScopes++ }

func (v *visitor) exitUnsafe() { v.unsafeScopes-- }

func (v *visitor) inUnsafe() bool { return v.unsafeScopes > 0 }

func (v *visitor) visitFile(root *sitter.Node) {
	state := v.tracker.enterRoot(innerAttributes(root, v.src))
	v.visitItems(root, frame{state: state})
}

// visitItems visits the children of a file, module body or block, handing each
// item the outer attributes that precede it.
func (v *visitor) visitItems(container *sitter.Node, f frame) {
	var attrs []rustAttr

	for i := 0; i < int(container.ChildCount()); i++ {
		child := container.Child(i)

		switch child.Type() {
		case "attribute_item":
			attrs = append(attrs, parseAttribute(child.Content(v.src)))
			continue
		case "line_comment", "block_comment":
			continue
		case "inner_attribute_item", "{", "}":
			attrs = nil
			continue
		}

		if !usable(child) {
			attrs = nil
			continue
		}

		v.visitNode(child, attrs, f)
		attrs = nil
	}
}

func (v *visitor) visitChildren(node *sitter.Node, f frame) {
	for i := 0; i < int(node.ChildCount()); i++ {
		v.visitNode(node.Child(i), nil, f)
	}
}

//nolint:cyclop // One case per syntax construct keeps the counting rules in one place.
func (v *visitor) visitNode(node *sitter.Node, attrs []rustAttr, f frame) {
	switch node.Type() {
	case "function_item":
		v.visitFunction(node, attrs, f)
	case "impl_item":
		v.visitImpl(node, f)
	case "trait_item":
		v.visitTrait(node, f)
	case "mod_item":
		v.visitModule(node, attrs, f)
	case "unsafe_block":
		v.enterUnsafe()
		v.visitChildren(node, f)
		v.exitUnsafe()
	case "macro_invocation":
		// Token trees are not expanded.
		if !isItemContainer(node.Parent()) {
			v.counters.Exprs.Record(v.inUnsafe())
		}
	case "attribute_item", "inner_attribute_item", "macro_definition",
		"function_signature_item", "line_comment", "block_comment":
		return
	case "block":
		if parent := node.Parent(); parent == nil || !statementBlockParents[parent.Type()] {
			v.counters.Exprs.Record(v.inUnsafe())
		}

		v.visitItems(node, f)
	case "declaration_list":
		v.visitItems(node, f)
	default:
		if expressionKinds[node.Type()] && !isCallee(node) {
			v.counters.Exprs.Record(v.inUnsafe())
		}

		v.visitChildren(node, f)
	}
}

func (v *visitor) visitFunction(node *sitter.Node, attrs []rustAttr, f frame) {
	if !v.includeTests && anyAttr(attrs, rustAttr.isTest) {
		return
	}

	unsafeFn := hasUnsafeModifier(node, v.src)

	switch f.owner {
	case ownerImpl:
		v.counters.Methods.Record(unsafeFn)
	case ownerTrait:
		// Trait default methods are not counted, but an unsafe one is still an unsafe scope.
	case ownerFree:
		unsafeFn = unsafeFn || anyAttr(attrs, rustAttr.exportsSymbol)
		v.counters.Functions.Record(unsafeFn)
	}

	body := node.ChildByFieldName("body")
	if body == nil || body.HasError() {
		return
	}

	if unsafeFn {
		v.enterUnsafe()
		defer v.exitUnsafe()
	}

	v.visitItems(body, frame{module: f.module, state: f.state, owner: ownerFree})
}

func (v *visitor) visitImpl(node *sitter.Node, f frame) {
	unsafeImpl := hasUnsafeToken(node)
	v.counters.ItemImpls.Record(unsafeImpl)

	v.visitBody(node, unsafeImpl, frame{module: f.module, state: f.state, owner: ownerImpl})
}

func (v *visitor) visitTrait(node *sitter.Node, f frame) {
	unsafeTrait := hasUnsafeToken(node)
	v.counters.ItemTraits.Record(unsafeTrait)

	v.visitBody(node, unsafeTrait, frame{module: f.module, state: f.state, owner: ownerTrait})
}

func (v *visitor) visitBody(node *sitter.Node, unsafeScope bool, f frame) {
	body := node.ChildByFieldName("body")
	if body == nil {
		return
	}

	if unsafeScope {
		v.enterUnsafe()
		defer v.exitUnsafe()
	}

	v.visitItems(body, f)
}

func (v *visitor) visitModule(node *sitter.Node, attrs []rustAttr, f frame) {
	body := node.ChildByFieldName("body")
	path := joinModule(f.module, moduleName(node, v.src))
	state := v.tracker.enterModule(path, f.state, attrs, innerAttributes(body, v.src))

	if body == nil {
		return
	}

	if !v.includeTests && anyAttr(attrs, rustAttr.isCfgTest) {
		return
	}

	v.visitItems(body, frame{module: path, state: state, owner: ownerFree})
}

// hasUnsafeModifier reports whether a function signature carries the unsafe keyword.
func hasUnsafeModifier(fn *sitter.Node, src []byte) bool {
	for i := 0; i < int(fn.ChildCount()); i++ {
		child := fn.Child(i)

		switch child.Type() {
		case "unsafe":
			return true
		case "function_modifiers":
			for _, word := range strings.Fields(child.Content(src)) {
				if word == "unsafe" {
					return true
				}
			}
		case "block", "parameters":
			return false
		}
	}

	return false
}

// hasUnsafeToken reports whether an impl or trait item is declared unsafe.
func hasUnsafeToken(node *sitter.Node) bool {
	for i := 0; i < int(node.ChildCount()); i++ {
		switch node.Child(i).Type() {
		case "unsafe":
			return true
		case "impl", "trait":
			return false
		}
	}

	return false
}

func isItemContainer(node *sitter.Node) bool {
	if node == nil {
		return true
	}

	switch node.Type() {
	case "source_file", "declaration_list":
		return true
	}

	return false
}

// isCallee reports whether node is the callee of a call, so that a method call
// a.f() counts once rather than as a call plus a field access.
func isCallee(node *sitter.Node) bool {
	if node.Type() != "field_expression" {
		return false
	}

	parent := node.Parent()
	if parent != nil && parent.Type() == "generic_function" && sameSpan(parent.ChildByFieldName("function"), node) {
		node = parent
		parent = parent.Parent()
	}

	if parent == nil || parent.Type() != "call_expression" {
		return false
	}

	return sameSpan(parent.ChildByFieldName("function"), node)
}

func sameSpan(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return false
	}

	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}
