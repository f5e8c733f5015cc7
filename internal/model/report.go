package model

import "strings"

// Classification is the safety verdict of a package.
type Classification int

const (
	// CleanUnforbidden means no unsafe usage was found but unsafe code is not forbidden.
	CleanUnforbidden Classification = iota
	// Forbidden means no unsafe usage and every entry point forbids unsafe code.
	Forbidden
	// UnsafeFound means at least one unsafe usage was found in compiled code.
	UnsafeFound
)

// String returns a label for the classification.
func (c Classification) String() string {
	switch c {
	case Forbidden:
		return "forbidden"
	case UnsafeFound:
		return "unsafe"
	case CleanUnforbidden:
		return "clean"
	}

	return "clean"
}

// MarshalText implements encoding.TextMarshaler.
func (c Classification) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Classification) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "forbidden":
		*c = Forbidden
	case "unsafe":
		*c = UnsafeFound
	default:
		*c = CleanUnforbidden
	}

	return nil
}

// PackageReport aggregates the scan results of one package.
type PackageReport struct {
	ID             PackageID      `json:"id" yaml:"id"`
	Used           CounterBlock   `json:"used" yaml:"used"`
	Unused         CounterBlock   `json:"unused" yaml:"unused"`
	Counters       UnsafeCounters `json:"counters" yaml:"counters"`
	ForbidsUnsafe  bool           `json:"forbids_unsafe" yaml:"forbids_unsafe"`
	Classification Classification `json:"classification" yaml:"classification"`
	FilesScanned   int            `json:"files_scanned" yaml:"files_scanned"`
	FailedFiles    []Path         `json:"failed_files,omitempty" yaml:"failed_files,omitempty"`
}

// Incomplete reports whether some files of the package could not be parsed.
func (r PackageReport) Incomplete() bool {
	return len(r.FailedFiles) > 0
}

// DisplayNode is one line of the rendered dependency tree.
type DisplayNode struct {
	ID        PackageID      `json:"id" yaml:"id"`
	Kinds     KindSet        `json:"-" yaml:"-"`
	KindNames string         `json:"kinds,omitempty" yaml:"kinds,omitempty"`
	Depth     int            `json:"depth" yaml:"depth"`
	Truncated bool           `json:"truncated,omitempty" yaml:"truncated,omitempty"`
	Children  []*DisplayNode `json:"children,omitempty" yaml:"children,omitempty"`
}

// Count returns the number of nodes in the subtree, root included.
func (n *DisplayNode) Count() int {
	if n == nil {
		return 0
	}

	total := 1
	for _, c := range n.Children {
		total += c.Count()
	}

	return total
}

// Totals summarizes a set of package reports.
type Totals struct {
	Counters         UnsafeCounters `json:"counters" yaml:"counters"`
	Forbidden        int            `json:"forbidden" yaml:"forbidden"`
	CleanUnforbidden int            `json:"clean_unforbidden" yaml:"clean_unforbidden"`
	UnsafeFound      int            `json:"unsafe_found" yaml:"unsafe_found"`
	Incomplete       int            `json:"incomplete" yaml:"incomplete"`
	Status           Classification `json:"status" yaml:"status"`
}

// SafetyReport is the full outcome of a scan run.
type SafetyReport struct {
	RunID                  string          `json:"run_id" yaml:"run_id"`
	Root                   PackageID       `json:"root" yaml:"root"`
	Packages               []PackageReport `json:"packages" yaml:"packages"`
	PackagesWithoutMetrics []PackageID     `json:"packages_without_metrics,omitempty" yaml:"packages_without_metrics,omitempty"`
	UsedButNotScannedFiles []Path          `json:"used_but_not_scanned_files,omitempty" yaml:"used_but_not_scanned_files,omitempty"`
	Tree                   *DisplayNode    `json:"tree,omitempty" yaml:"tree,omitempty"`
	Totals                 Totals          `json:"totals" yaml:"totals"`
}

// PackageReport finds the report for id.
func (r *SafetyReport) PackageReport(id PackageID) (PackageReport, bool) {
	for _, p := range r.Packages {
		if p.ID.Key() == id.Key() {
			return p, true
		}
	}

	return PackageReport{}, false
}
