package adapter

import (
	"context"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalRustFileAdapter_Parse(t *testing.T) {
	adapter := NewLocalRustFileAdapter()

	t.Run("valid source", func(t *testing.T) {
		src := []byte("pub unsafe fn f() {}\n")

		tree, text, err := adapter.Parse(context.Background(), src)
		require.NoError(t, err)
		require.NotNil(t, tree)
		defer tree.Close()

		root := tree.RootNode()
		assert.Equal(t, "source_file", root.Type())
		assert.False(t, root.HasError())
		assert.Equal(t, src, text)
		assert.Empty(t, adapter.SyntaxErrors(root, text))
	})

	t.Run("invalid utf8 is replaced", func(t *testing.T) {
		src := []byte("fn f() { let s = \"\xff\"; }\n")

		tree, text, err := adapter.Parse(context.Background(), src)
		require.NoError(t, err)
		defer tree.Close()

		assert.True(t, utf8.Valid(text))
		assert.Contains(t, string(text), string(utf8.RuneError))
	})
}

func TestLocalRustFileAdapter_SyntaxErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr bool
	}{
		{name: "well formed", src: "mod a { fn b() {} }\n"},
		{name: "unclosed parameter list", src: "fn f( {\n", wantErr: true},
		{name: "stray token", src: "fn f() {}\n}}}\n", wantErr: true},
	}

	adapter := NewLocalRustFileAdapter()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, text, err := adapter.Parse(context.Background(), []byte(tt.src))
			require.NoError(t, err)
			defer tree.Close()

			errs := adapter.SyntaxErrors(tree.RootNode(), text)
			if !tt.wantErr {
				assert.Empty(t, errs)
				return
			}

			require.NotEmpty(t, errs)
			for _, e := range errs {
				assert.GreaterOrEqual(t, e.Line, 1)
				assert.GreaterOrEqual(t, e.Column, 1)
				assert.NotEmpty(t, e.Message)
			}
		})
	}
}

func TestLocalRustFileAdapter_SyntaxErrorsNilRoot(t *testing.T) {
	assert.Nil(t, NewLocalRustFileAdapter().SyntaxErrors(nil, nil))
}

func TestSyntaxError_String(t *testing.T) {
	e := SyntaxError{Line: 3, Column: 7, Message: "missing )"}
	assert.Equal(t, "3:7: missing )", e.String())
}
