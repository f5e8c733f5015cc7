package adapter

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	m "rads.dev/pkg/rads/internal/model"
)

func TestParseDepInfo(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want []string
	}{
		{
			name: "rule with phony targets",
			doc: "/w/target/debug/deps/app-1.rmeta: /w/src/lib.rs /w/src/a.rs\n\n" +
				"/w/src/lib.rs:\n/w/src/a.rs:\n",
			want: []string{"/w/src/lib.rs", "/w/src/a.rs"},
		},
		{
			name: "escaped spaces",
			doc:  "out.d: /my\\ dir/lib.rs /other.rs\n",
			want: []string{"/my dir/lib.rs", "/other.rs"},
		},
		{
			name: "windows drive letters",
			doc:  "C:\\w\\target\\app.d: C:\\w\\src\\lib.rs\n",
			want: []string{"C:\\w\\src\\lib.rs"},
		},
		{
			name: "comments and env lines",
			doc:  "# env-dep:CARGO_PKG_NAME=app\nx.rmeta: a.rs\n",
			want: []string{"a.rs"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDepInfo(strings.NewReader(tt.doc))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDepInfoAdapter_UsedFiles(t *testing.T) {
	t.Run("collects rust sources from dep-info files", func(t *testing.T) {
		target := t.TempDir()
		deps := filepath.Join(target, "debug", "deps")
		require.NoError(t, os.MkdirAll(deps, 0o750))
		require.NoError(t, os.MkdirAll(filepath.Join(target, "debug", ".fingerprint"), 0o750))

		write := func(path, content string) {
			require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		}

		write(filepath.Join(deps, "app-1.d"), "/w/app.rmeta: /w/src/lib.rs /w/src/./a.rs /w/build/gen.txt\n")
		write(filepath.Join(deps, "dep-2.d"), "/w/dep.rmeta: /r/dep/src/lib.rs\n")
		write(filepath.Join(target, "debug", ".fingerprint", "skip.d"), "x: /never.rs\n")

		used, err := NewDepInfoAdapter().UsedFiles(context.Background(), m.Path(target))
		require.NoError(t, err)

		assert.Equal(t, map[m.Path]struct{}{
			"/w/src/lib.rs":     {},
			"/w/src/a.rs":       {},
			"/r/dep/src/lib.rs": {},
		}, used)
	})

	t.Run("missing directory means no filter", func(t *testing.T) {
		used, err := NewDepInfoAdapter().UsedFiles(context.Background(), m.Path(filepath.Join(t.TempDir(), "absent")))
		require.NoError(t, err)
		assert.Empty(t, used)
	})

	t.Run("cancelled context", func(t *testing.T) {
		target := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(target, "a.d"), []byte("x: a.rs\n"), 0o600))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := NewDepInfoAdapter().UsedFiles(ctx, m.Path(target))
		require.ErrorIs(t, err, context.Canceled)
	})
}

// writeFakeCargo installs a cargo stand-in that records its arguments and emits
// dep-info the way `cargo check` does: test targets only when asked to build them.
func writeFakeCargo(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	script := filepath.Join(dir, "cargo")
	body := `#!/bin/sh
echo "$@" > "$PWD/cargo-args"
mkdir -p target/debug/deps
echo "target/debug/deps/app.rmeta: $PWD/src/lib.rs" > target/debug/deps/app-1.d
for arg in "$@"; do
  case "$arg" in
    --all-targets|--tests)
      echo "target/debug/deps/helpers.rmeta: $PWD/tests/helpers.rs" > target/debug/deps/helpers-2.d
      ;;
  esac
done
`
	require.NoError(t, os.WriteFile(script, []byte(body), 0o700))

	return script
}

func TestDepInfoAdapter_Build(t *testing.T) {
	t.Run("integration test sources are not used", func(t *testing.T) {
		t.Setenv("CARGO", writeFakeCargo(t))

		crate := t.TempDir()
		manifest := filepath.Join(crate, "Cargo.toml")
		require.NoError(t, os.WriteFile(manifest, []byte("[package]\nname = \"app\"\n"), 0o600))

		a := NewDepInfoAdapter()
		require.NoError(t, a.Build(context.Background(), ResolveArgs{ManifestPath: m.Path(manifest), Package: "app"}))

		used, err := a.UsedFiles(context.Background(), m.Path(filepath.Join(crate, "target")))
		require.NoError(t, err)

		assert.Contains(t, used, m.Path(filepath.Join(crate, "src", "lib.rs")))
		assert.NotContains(t, used, m.Path(filepath.Join(crate, "tests", "helpers.rs")))

		args, err := os.ReadFile(filepath.Join(crate, "cargo-args"))
		require.NoError(t, err)
		assert.Equal(t, "check --message-format short --manifest-path "+manifest+" --package app", strings.TrimSpace(string(args)))
	})

	t.Run("target triple is forwarded unless all targets are kept", func(t *testing.T) {
		t.Setenv("CARGO", writeFakeCargo(t))

		crate := t.TempDir()
		manifest := filepath.Join(crate, "Cargo.toml")

		a := NewDepInfoAdapter()

		require.NoError(t, a.Build(context.Background(), ResolveArgs{ManifestPath: m.Path(manifest), FilterPlatform: "x86_64-pc-windows-msvc"}))
		args, err := os.ReadFile(filepath.Join(crate, "cargo-args"))
		require.NoError(t, err)
		assert.Contains(t, string(args), "--target x86_64-pc-windows-msvc")

		require.NoError(t, a.Build(context.Background(), ResolveArgs{ManifestPath: m.Path(manifest), FilterPlatform: "x86_64-pc-windows-msvc", AllTargets: true}))
		args, err = os.ReadFile(filepath.Join(crate, "cargo-args"))
		require.NoError(t, err)
		assert.NotContains(t, string(args), "--target")
	})

	t.Run("failure reports stderr", func(t *testing.T) {
		t.Setenv("CARGO", filepath.Join(t.TempDir(), "no-such-cargo"))

		err := NewDepInfoAdapter().Build(context.Background(), ResolveArgs{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cargo check")
	})
}
