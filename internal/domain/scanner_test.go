package domain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"rads.dev/pkg/rads/internal/adapter"
	m "rads.dev/pkg/rads/internal/model"
)

const mixedLibSource = `use std::io::Write;

pub unsafe fn f() {
    unimplemented!()
}

pub fn g() {
    std::io::stdout().write_all(unsafe {
        std::str::from_utf8_unchecked(b"binarystring")
    }.as_bytes()).unwrap();
}

#[no_mangle]
pub fn h() {
    unimplemented!()
}

#[export_name = "exported_g"]
pub fn g() {
    unimplemented!()
}

#[cfg(test)]
mod tests {
    use super::*;

    #[test]
    fn test_1() {
        unsafe {
            println!("Inside unsafe");
        }
    }
}
`

func newTestScanner(opts ...ScanOption) Scanner {
	return NewScanner(adapter.NewLocalRustFileAdapter(), opts...)
}

func scanString(t *testing.T, src string, opts ...ScanOption) m.FileMetrics {
	t.Helper()

	metrics, err := newTestScanner(opts...).Scan(context.Background(), "lib.rs", []byte(src), m.ScopePermitted)
	require.NoError(t, err)

	return metrics
}

func TestScanner_Scan_Counters(t *testing.T) {
	tests := []struct {
		name           string
		src            string
		includeTests   bool
		want           m.CounterBlock
		wantDiagnostic bool
	}{
		{
			name: "unsafe block in safe function counts expressions only",
			src:  "fn f() { unsafe { g(); h(); } }",
			want: m.CounterBlock{
				Functions: m.Count{Safe: 1},
				Exprs:     m.Count{Unsafe: 2},
			},
		},
		{
			name: "nested unsafe blocks count an expression once",
			src:  "fn f() { unsafe { unsafe { g(); } } }",
			want: m.CounterBlock{
				Functions: m.Count{Safe: 1},
				Exprs:     m.Count{Unsafe: 1},
			},
		},
		{
			name: "unsafe block inside unsafe function counts once",
			src:  "unsafe fn f() { unsafe { g(); } }",
			want: m.CounterBlock{
				Functions: m.Count{Unsafe: 1},
				Exprs:     m.Count{Unsafe: 1},
			},
		},
		{
			name: "method call is one expression",
			src:  "fn f(a: A) { a.b(); a.c::<u8>(); }",
			want: m.CounterBlock{
				Functions: m.Count{Safe: 1},
				Exprs:     m.Count{Safe: 2},
			},
		},
		{
			name: "paths and literals are not expressions",
			src:  "fn f() -> u32 { let x = 3; x }",
			want: m.CounterBlock{
				Functions: m.Count{Safe: 1},
			},
		},
		{
			name: "impls and methods",
			src: `struct S;
unsafe impl Send for S {}
impl S {
    unsafe fn m(&self) {}
    fn n(&self) {}
}`,
			want: m.CounterBlock{
				ItemImpls: m.Count{Safe: 1, Unsafe: 1},
				Methods:   m.Count{Safe: 1, Unsafe: 1},
			},
		},
		{
			name: "traits and default methods",
			src: `unsafe trait T {}
trait U {
    fn d(&self) { g(); }
    unsafe fn e(&self) { g(); }
    fn r(&self);
}`,
			want: m.CounterBlock{
				ItemTraits: m.Count{Safe: 1, Unsafe: 1},
				Exprs:      m.Count{Safe: 1, Unsafe: 1},
			},
		},
		{
			name: "unsafe impl body is an unsafe scope",
			src:  "unsafe impl Foo for S { fn bar(&self) { a.b(); } }",
			want: m.CounterBlock{
				ItemImpls: m.Count{Unsafe: 1},
				Methods:   m.Count{Safe: 1},
				Exprs:     m.Count{Unsafe: 1},
			},
		},
		{
			name: "unsafe trait body is an unsafe scope",
			src:  "unsafe trait T { fn d(&self) { a.b(); } }",
			want: m.CounterBlock{
				ItemTraits: m.Count{Unsafe: 1},
				Exprs:      m.Count{Unsafe: 1},
			},
		},
		{
			name: "safe impl body is not an unsafe scope",
			src:  "impl Foo for S { fn bar(&self) { a.b(); } }",
			want: m.CounterBlock{
				ItemImpls: m.Count{Safe: 1},
				Methods:   m.Count{Safe: 1},
				Exprs:     m.Count{Safe: 1},
			},
		},
		{
			name: "unsafe extern block with safe items keeps the other items",
			src: `fn f() { unsafe { g(); } }
unsafe extern "C" {
    pub safe fn abs(x: i32) -> i32;
}
`,
			want: m.CounterBlock{
				Functions: m.Count{Safe: 1},
				Exprs:     m.Count{Unsafe: 1},
			},
			wantDiagnostic: true,
		},
		{
			name: "async closure keeps the enclosing function",
			src: `fn k() { unsafe { g(); } }
fn f() { let c = async || { g() }; }
`,
			want: m.CounterBlock{
				Functions: m.Count{Safe: 2},
				Exprs:     m.Count{Unsafe: 1},
			},
			wantDiagnostic: true,
		},
		{
			name: "test module skipped by default",
			src: `mod a { fn b() {3} }
#[cfg(test)]
mod c { fn d() {4} }`,
			want: m.CounterBlock{
				Functions: m.Count{Safe: 1},
			},
		},
		{
			name:         "test module counted when requested",
			includeTests: true,
			src: `mod a { fn b() {3} }
#[cfg(test)]
mod c { fn d() {4} }`,
			want: m.CounterBlock{
				Functions: m.Count{Safe: 2},
			},
		},
		{
			name:         "cast and unsafe tail expression",
			includeTests: true,
			src: `fn main() {
    let address = 0x01234usize;
    let r = address as *mut i32;
    unsafe { std::slice::from_raw_parts_mut(r, 10000) }
}
mod a { fn b() {3} }
#[cfg(test)]
mod c { fn d() {4} }`,
			want: m.CounterBlock{
				Functions: m.Count{Safe: 3},
				Exprs:     m.Count{Safe: 1, Unsafe: 1},
			},
		},
		{
			name: "item level macros are not expressions",
			src:  "lazy_static! { static ref X: u8 = 1; }\nfn f() { println!(\"x\"); }",
			want: m.CounterBlock{
				Functions: m.Count{Safe: 1},
				Exprs:     m.Count{Safe: 1},
			},
		},
		{
			name:         "mixed library with tests",
			src:          mixedLibSource,
			includeTests: true,
			want: m.CounterBlock{
				Functions: m.Count{Safe: 2, Unsafe: 3},
				Exprs:     m.Count{Safe: 4, Unsafe: 5},
			},
		},
		{
			name: "mixed library without tests",
			src:  mixedLibSource,
			want: m.CounterBlock{
				Functions: m.Count{Safe: 1, Unsafe: 3},
				Exprs:     m.Count{Safe: 4, Unsafe: 4},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := scanString(t, tt.src, WithIncludeTests(tt.includeTests))

			assert.Equal(t, tt.want, metrics.Counters)
			assert.False(t, metrics.Failed)

			if tt.wantDiagnostic {
				assert.NotEmpty(t, metrics.Diagnostic)
			} else {
				assert.Empty(t, metrics.Diagnostic)
			}
		})
	}
}

func TestScanner_Scan_ExportedFunctionDoesNotLeakScope(t *testing.T) {
	src := `#[no_mangle]
pub extern "C" fn exported() {}

fn after() { g(); }`

	metrics := scanString(t, src)

	assert.Equal(t, m.Count{Safe: 1, Unsafe: 1}, metrics.Counters.Functions)
	assert.Equal(t, m.Count{Safe: 1}, metrics.Counters.Exprs)
}

func TestScanner_Scan_Idempotent(t *testing.T) {
	scanner := newTestScanner(WithIncludeTests(true))

	first, err := scanner.Scan(context.Background(), "lib.rs", []byte(mixedLibSource), m.ScopePermitted)
	require.NoError(t, err)

	second, err := scanner.Scan(context.Background(), "lib.rs", []byte(mixedLibSource), m.ScopePermitted)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestScanner_Scan_ParseFailure(t *testing.T) {
	metrics, err := newTestScanner().Scan(context.Background(), "broken.rs", []byte("fn f( {"), m.ScopePermitted)
	require.Error(t, err)

	var parseErr *ParseFailedError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, m.Path("broken.rs"), parseErr.Path)
	assert.NotEmpty(t, parseErr.Diagnostic)
	assert.True(t, metrics.Failed)
	assert.Equal(t, parseErr.Diagnostic, metrics.Diagnostic)
	assert.Equal(t, m.CounterBlock{}, metrics.Counters)
}

func TestScanner_Scan_InvalidUTF8IsReplaced(t *testing.T) {
	src := []byte("fn f() { let s = \"\xff\xfe\"; g(); }")

	metrics, err := newTestScanner().Scan(context.Background(), "lossy.rs", src, m.ScopePermitted)
	require.NoError(t, err)

	assert.Equal(t, m.Count{Safe: 1}, metrics.Counters.Exprs)
}

func TestScanner_Scan_Suppression(t *testing.T) {
	src := `#![forbid(unsafe_code)]
mod a {
    mod b {}
}
#[allow(unsafe_code)]
mod c {
    mod d {}
}
mod e {
    #![allow(unsafe_code)]
}
mod f;
`

	metrics := scanString(t, src)

	assert.Equal(t, m.ScopeForbidden, metrics.Suppression.Root)
	assert.Equal(t, map[string]m.ScopeState{
		"a":    m.ScopeForbidden,
		"a::b": m.ScopeForbidden,
		"c":    m.ScopePermitted,
		"c::d": m.ScopePermitted,
		"e":    m.ScopePermitted,
		"f":    m.ScopeForbidden,
	}, metrics.Suppression.Modules)
}

func TestScanner_Scan_SuppressionDoesNotVetoCounting(t *testing.T) {
	metrics := scanString(t, "#![forbid(unsafe_code)]\nfn f() { unsafe { g(); } }")

	assert.Equal(t, m.ScopeForbidden, metrics.Suppression.Root)
	assert.Equal(t, uint64(1), metrics.Counters.Exprs.Unsafe)
}

func TestScanner_Suppression(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		entry m.ScopeState
		want  m.ScopeState
	}{
		{name: "no attribute keeps permitted entry", src: "fn f() {}", entry: m.ScopePermitted, want: m.ScopePermitted},
		{name: "no attribute keeps forbidden entry", src: "fn f() {}", entry: m.ScopeForbidden, want: m.ScopeForbidden},
		{name: "forbid", src: "#![forbid(unsafe_code)]", entry: m.ScopePermitted, want: m.ScopeForbidden},
		{name: "forbid among other lints", src: "#![forbid(missing_docs, unsafe_code)]", entry: m.ScopePermitted, want: m.ScopeForbidden},
		{name: "forbid of another lint", src: "#![forbid(missing_docs)]", entry: m.ScopePermitted, want: m.ScopePermitted},
		{name: "outer forbid does not apply to the file", src: "#[forbid(unsafe_code)]\nfn f() {}", entry: m.ScopePermitted, want: m.ScopePermitted},
		{name: "allow re-permits", src: "#![allow(unsafe_code)]", entry: m.ScopeForbidden, want: m.ScopePermitted},
		{name: "deny leaves state", src: "#![deny(unsafe_code)]", entry: m.ScopePermitted, want: m.ScopePermitted},
	}

	scanner := newTestScanner()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := scanner.Suppression(context.Background(), "lib.rs", []byte(tt.src), tt.entry)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Root)

			metrics, err := scanner.Scan(context.Background(), "lib.rs", []byte(tt.src), tt.entry)
			require.NoError(t, err)
			assert.Equal(t, got, metrics.Suppression)
		})
	}
}
