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

var linuxCfgs = []string{
	`debug_assertions`,
	`panic="unwind"`,
	`target_arch="x86_64"`,
	`target_endian="little"`,
	`target_env="gnu"`,
	`target_family="unix"`,
	`target_os="linux"`,
	`target_pointer_width="64"`,
	`unix`,
}

func TestPlatform_Matches(t *testing.T) {
	linux := NewPlatform("x86_64-unknown-linux-gnu", linuxCfgs)

	tests := []struct {
		name    string
		target  string
		want    bool
		wantErr bool
	}{
		{name: "no target", target: "", want: true},
		{name: "same triple", target: "x86_64-unknown-linux-gnu", want: true},
		{name: "other triple", target: "x86_64-pc-windows-msvc", want: false},
		{name: "flag cfg", target: "cfg(unix)", want: true},
		{name: "missing flag cfg", target: "cfg(windows)", want: false},
		{name: "key value", target: `cfg(target_os = "linux")`, want: true},
		{name: "other key value", target: `cfg(target_os="macos")`, want: false},
		{name: "not", target: "cfg(not(windows))", want: true},
		{name: "all", target: `cfg(all(unix, target_pointer_width = "64"))`, want: true},
		{name: "all with a miss", target: `cfg(all(unix, target_arch = "wasm32"))`, want: false},
		{name: "any", target: `cfg(any(windows, target_os = "linux"))`, want: true},
		{name: "empty any", target: "cfg(any())", want: false},
		{name: "nested", target: `cfg(all(not(target_env = "msvc"), any(unix, windows)))`, want: true},
		{name: "unknown predicate", target: "cfg(maybe(unix))", wantErr: true},
		{name: "not with two args", target: "cfg(not(unix, windows))", wantErr: true},
		{name: "unterminated", target: "cfg(unix", wantErr: true},
		{name: "unterminated string", target: `cfg(target_os = "linux)`, wantErr: true},
		{name: "trailing input", target: "cfg(unix windows)", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := linux.Matches(tt.target)
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseHostTriple(t *testing.T) {
	out := "rustc 1.82.0 (f6e511eec 2024-10-15)\nbinary: rustc\nhost: aarch64-apple-darwin\nrelease: 1.82.0\n"

	host, err := ParseHostTriple(strings.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "aarch64-apple-darwin", host)

	_, err = ParseHostTriple(strings.NewReader("rustc 1.82.0\n"))
	require.ErrorIs(t, err, ErrNoHostTriple)
}

func TestParseCfgs(t *testing.T) {
	cfgs, err := ParseCfgs(strings.NewReader("unix\n\ntarget_os=\"linux\"\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"unix", `target_os="linux"`}, cfgs)
}

const platformDoc = `{
  "packages": [
    {"id": "app 0.1.0 (path+file:///w/app)", "name": "app", "version": "0.1.0", "source": null, "manifest_path": "/w/app/Cargo.toml", "targets": []},
    {"id": "winapi 0.3.9", "name": "winapi", "version": "0.3.9", "source": "registry+https://github.com/rust-lang/crates.io-index", "manifest_path": "/r/winapi/Cargo.toml", "targets": []},
    {"id": "libc 0.2.150", "name": "libc", "version": "0.2.150", "source": "registry+https://github.com/rust-lang/crates.io-index", "manifest_path": "/r/libc/Cargo.toml", "targets": []}
  ],
  "workspace_members": ["app 0.1.0 (path+file:///w/app)"],
  "workspace_root": "/w/app",
  "target_directory": "/w/app/target",
  "resolve": {
    "root": "app 0.1.0 (path+file:///w/app)",
    "nodes": [
      {"id": "app 0.1.0 (path+file:///w/app)", "dependencies": [], "features": [], "deps": [
        {"name": "winapi", "pkg": "winapi 0.3.9", "dep_kinds": [{"kind": null, "target": "cfg(windows)"}]},
        {"name": "libc", "pkg": "libc 0.2.150", "dep_kinds": [{"kind": null, "target": "cfg(unix)"}]}
      ]},
      {"id": "winapi 0.3.9", "dependencies": [], "deps": [], "features": []},
      {"id": "libc 0.2.150", "dependencies": [], "deps": [], "features": []}
    ]
  }
}`

func edgeTargets(graph *m.Graph) []string {
	var names []string
	for _, e := range graph.Edges {
		names = append(names, e.To.Name)
	}

	return names
}

func TestDecodeMetadata_PlatformFilter(t *testing.T) {
	linux := NewPlatform("x86_64-unknown-linux-gnu", linuxCfgs)
	windows := NewPlatform("x86_64-pc-windows-msvc", []string{"windows", `target_os="windows"`})

	matcher := func(p Platform) PlatformMatcher {
		return func(target string) bool {
			ok, err := p.Matches(target)
			return err == nil && ok
		}
	}

	tests := []struct {
		name string
		opts []DecodeOption
		want []string
	}{
		{name: "linux host", opts: []DecodeOption{WithPlatformFilter(matcher(linux))}, want: []string{"libc"}},
		{name: "windows target", opts: []DecodeOption{WithPlatformFilter(matcher(windows))}, want: []string{"winapi"}},
		{name: "no filter", want: []string{"winapi", "libc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			graph, err := DecodeMetadata(strings.NewReader(platformDoc), "", tt.opts...)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, edgeTargets(graph))
		})
	}
}

// writeFakeRustc installs a rustc stand-in reporting a linux host.
func writeFakeRustc(t *testing.T) {
	t.Helper()

	script := filepath.Join(t.TempDir(), "rustc")
	body := `#!/bin/sh
case "$1" in
  -vV)
    printf 'rustc 1.82.0\nhost: x86_64-unknown-linux-gnu\n'
    ;;
  --print)
    printf 'unix\ntarget_os="linux"\ntarget_family="unix"\n'
    ;;
esac
`
	require.NoError(t, os.WriteFile(script, []byte(body), 0o700))
	t.Setenv("RUSTC", script)
}

func TestLocalMetadataAdapter_ResolvePlatform(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.json")
	require.NoError(t, os.WriteFile(path, []byte(platformDoc), 0o600))

	tests := []struct {
		name  string
		rustc bool
		args  ResolveArgs
		want  []string
	}{
		{name: "host platform by default", rustc: true, args: ResolveArgs{}, want: []string{"libc"}},
		{name: "all targets", rustc: true, args: ResolveArgs{AllTargets: true}, want: []string{"winapi", "libc"}},
		{name: "rustc unavailable keeps every platform", args: ResolveArgs{}, want: []string{"winapi", "libc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.rustc {
				writeFakeRustc(t)
			} else {
				t.Setenv("RUSTC", filepath.Join(t.TempDir(), "no-such-rustc"))
			}

			args := tt.args
			args.MetadataFile = m.Path(path)

			graph, err := NewLocalMetadataAdapter().Resolve(context.Background(), args)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, edgeTargets(graph))
		})
	}
}

func TestLocalMetadataAdapter_HostTriple(t *testing.T) {
	writeFakeRustc(t)

	a := NewLocalMetadataAdapter()

	host, err := a.hostTriple(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "x86_64-unknown-linux-gnu", host)

	platform, err := a.platform(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "x86_64-unknown-linux-gnu", platform.Triple)

	ok, err := platform.Matches(`cfg(target_os = "linux")`)
	require.NoError(t, err)
	assert.True(t, ok)
}
