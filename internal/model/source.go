package model

// Path represents a file system path.
type Path string

// ScopeState is the unsafe-code policy of a module scope.
type ScopeState int

const (
	// ScopePermitted allows unsafe code (the compiler default).
	ScopePermitted ScopeState = iota
	// ScopeForbidden means the scope carries forbid(unsafe_code).
	ScopeForbidden
)

// String returns a lowercase label for the state.
func (s ScopeState) String() string {
	if s == ScopeForbidden {
		return "forbidden"
	}

	return "permitted"
}

// Suppression is the scope state of a file root and each inline module in it.
// Module keys are "::"-joined paths relative to the file root.
type Suppression struct {
	Root    ScopeState            `json:"root" yaml:"root"`
	Modules map[string]ScopeState `json:"modules,omitempty" yaml:"modules,omitempty"`
}

// File represents a Rust source file belonging to a package.
type File struct {
	Path       Path
	Hash       string
	Package    PackageID
	EntryPoint bool
	// Used is true when the build compiled the file, or when no build filter is available.
	Used bool
}

// FileMetrics is the scan result of one file.
type FileMetrics struct {
	Path        Path         `json:"path" yaml:"path"`
	PackageKey  string       `json:"-" yaml:"-"`
	EntryPoint  bool         `json:"entry_point" yaml:"entry_point"`
	Used        bool         `json:"used" yaml:"used"`
	Counters    CounterBlock `json:"counters" yaml:"counters"`
	Suppression Suppression  `json:"suppression" yaml:"suppression"`
	Failed      bool         `json:"failed,omitempty" yaml:"failed,omitempty"`
	Diagnostic  string       `json:"diagnostic,omitempty" yaml:"diagnostic,omitempty"`
}
