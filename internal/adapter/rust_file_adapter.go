package adapter

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"
)

// maxSyntaxErrors bounds the diagnostics collected from a heavily malformed file.
const maxSyntaxErrors = 20

// SyntaxError is one ERROR or MISSING node found in a parsed file.
type SyntaxError struct {
	Line    int
	Column  int
	Message string
}

// String formats the error as "line:col: message".
func (e SyntaxError) String() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Message)
}

// RustFileAdapter encapsulates Rust parsing so the domain layer can walk a
// syntax tree without knowing how it is produced.
type RustFileAdapter interface {
	// Parse builds a syntax tree for src. Invalid UTF-8 is replaced before
	// parsing; the returned bytes are the text the tree refers to.
	Parse(ctx context.Context, src []byte) (*sitter.Tree, []byte, error)

	// SyntaxErrors collects the ERROR and MISSING nodes under root.
	SyntaxErrors(root *sitter.Node, src []byte) []SyntaxError
}

// LocalRustFileAdapter is a RustFileAdapter backed by tree-sitter.
type LocalRustFileAdapter struct{}

// NewLocalRustFileAdapter constructs a LocalRustFileAdapter.
func NewLocalRustFileAdapter() *LocalRustFileAdapter {
	return &LocalRustFileAdapter{}
}

// Parse builds a syntax tree. A fresh parser is used per call since tree-sitter
// parsers must not be shared between goroutines.
func (a *LocalRustFileAdapter) Parse(ctx context.Context, src []byte) (*sitter.Tree, []byte, error) {
	if !utf8.Valid(src) {
		src = []byte(strings.ToValidUTF8(string(src), string(utf8.RuneError)))
	}

	parser := sitter.NewParser()
	defer parser.Close()

	parser.SetLanguage(rust.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, nil, fmt.Errorf("parse rust source: %w", err)
	}

	return tree, src, nil
}

// SyntaxErrors walks the tree and reports ERROR and MISSING nodes in source order.
func (a *LocalRustFileAdapter) SyntaxErrors(root *sitter.Node, src []byte) []SyntaxError {
	if root == nil || !root.HasError() {
		return nil
	}

	var errs []SyntaxError

	stack := []*sitter.Node{root}
	for len(stack) > 0 && len(errs) < maxSyntaxErrors {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if node.IsError() || node.IsMissing() {
			errs = append(errs, newSyntaxError(node, src))
			continue
		}

		if !node.HasError() {
			continue
		}

		for i := int(node.ChildCount()) - 1; i >= 0; i-- {
			stack = append(stack, node.Child(i))
		}
	}

	return errs
}

func newSyntaxError(node *sitter.Node, src []byte) SyntaxError {
	point := node.StartPoint()

	msg := "syntax error"
	if node.IsMissing() {
		msg = fmt.Sprintf("missing %s", node.Type())
	} else {
		start, end := node.StartByte(), node.EndByte()
		if end > uint32(len(src)) {
			end = uint32(len(src))
		}

		if end > start {
			snippet := strings.TrimSpace(string(src[start:end]))
			if len(snippet) > 40 {
				snippet = snippet[:40] + "..."
			}

			msg = fmt.Sprintf("unexpected %q", snippet)
		}
	}

	return SyntaxError{
		Line:    int(point.Row) + 1,
		Column:  int(point.Column) + 1,
		Message: msg,
	}
}
