package model

import (
	"fmt"
	"sort"
	"strings"
)

// SourceKind identifies where a package comes from.
type SourceKind string

const (
	// SourceRegistry is a package downloaded from a registry such as crates.io.
	SourceRegistry SourceKind = "registry"
	// SourceGit is a package checked out from a git repository.
	SourceGit SourceKind = "git"
	// SourcePath is a local path package (workspace members included).
	SourcePath SourceKind = "path"
)

// Source describes a package origin.
type Source struct {
	Kind SourceKind `json:"kind" yaml:"kind"`
	URL  string     `json:"url,omitempty" yaml:"url,omitempty"`
	Rev  string     `json:"rev,omitempty" yaml:"rev,omitempty"`
}

// String renders the source the way it is shown next to non-registry packages.
func (s Source) String() string {
	switch s.Kind {
	case SourceGit:
		if s.Rev != "" {
			return fmt.Sprintf("(%s#%s)", s.URL, s.Rev)
		}

		return fmt.Sprintf("(%s)", s.URL)
	case SourcePath:
		return fmt.Sprintf("(%s)", s.URL)
	case SourceRegistry:
		return ""
	}

	return ""
}

// PackageID uniquely identifies a package by name, version and source.
// Two ids with equal name and version but different sources are distinct.
type PackageID struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
	Source  Source `json:"source" yaml:"source"`
}

// Key returns a stable map key for the id.
func (id PackageID) Key() string {
	return strings.Join([]string{id.Name, id.Version, string(id.Source.Kind), id.Source.URL, id.Source.Rev}, "\x00")
}

// String returns "name version" followed by the source for non-registry packages.
func (id PackageID) String() string {
	src := id.Source.String()
	if src == "" {
		return fmt.Sprintf("%s %s", id.Name, id.Version)
	}

	return fmt.Sprintf("%s %s %s", id.Name, id.Version, src)
}

// DependencyKind is the kind of a dependency edge.
type DependencyKind int

const (
	// KindNormal is a regular dependency.
	KindNormal DependencyKind = iota
	// KindBuild is a build-script dependency.
	KindBuild
	// KindDevelopment is a dev-only dependency (tests, examples, benches).
	KindDevelopment
)

// String returns the cargo spelling of the kind.
func (k DependencyKind) String() string {
	switch k {
	case KindBuild:
		return "build"
	case KindDevelopment:
		return "dev"
	case KindNormal:
		return "normal"
	}

	return "normal"
}

// ParseDependencyKind decodes the cargo metadata spelling of a kind.
// Unknown values fall back to KindNormal and report ok=false.
func ParseDependencyKind(value string) (DependencyKind, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "normal":
		return KindNormal, true
	case "build":
		return KindBuild, true
	case "dev", "development":
		return KindDevelopment, true
	}

	return KindNormal, false
}

// KindSet is a set of dependency kinds.
type KindSet uint8

// Common kind sets.
const (
	KindSetNormal KindSet = 1 << KindNormal
	KindSetBuild  KindSet = 1 << KindBuild
	KindSetDev    KindSet = 1 << KindDevelopment
	KindSetAll            = KindSetNormal | KindSetBuild | KindSetDev
)

// KindSetOf builds a set from kinds.
func KindSetOf(kinds ...DependencyKind) KindSet {
	var s KindSet
	for _, k := range kinds {
		s |= 1 << k
	}

	return s
}

// Has reports membership.
func (s KindSet) Has(k DependencyKind) bool {
	return s&(1<<k) != 0
}

// Kinds lists the members in declaration order.
func (s KindSet) Kinds() []DependencyKind {
	var out []DependencyKind

	for _, k := range []DependencyKind{KindNormal, KindBuild, KindDevelopment} {
		if s.Has(k) {
			out = append(out, k)
		}
	}

	return out
}

// String joins member names with commas.
func (s KindSet) String() string {
	kinds := s.Kinds()

	names := make([]string, 0, len(kinds))
	for _, k := range kinds {
		names = append(names, k.String())
	}

	return strings.Join(names, ",")
}

// Edge is a directed dependency from one package to another.
type Edge struct {
	From   PackageID      `json:"from" yaml:"from"`
	To     PackageID      `json:"to" yaml:"to"`
	Kind   DependencyKind `json:"kind" yaml:"kind"`
	Target string         `json:"target,omitempty" yaml:"target,omitempty"`
}

// TargetKind is a cargo target kind such as lib, bin, proc-macro or custom-build.
type TargetKind string

// Target is one compilation unit of a package. SrcPath is its entry point.
type Target struct {
	Name    string       `json:"name" yaml:"name"`
	Kinds   []TargetKind `json:"kinds" yaml:"kinds"`
	SrcPath Path         `json:"src_path" yaml:"src_path"`
}

// Package is a node of the dependency graph.
type Package struct {
	ID           PackageID `json:"id" yaml:"id"`
	ManifestPath Path      `json:"manifest_path" yaml:"manifest_path"`
	Features     []string  `json:"features,omitempty" yaml:"features,omitempty"`
	Targets      []Target  `json:"targets" yaml:"targets"`
}

// Root returns the directory containing the package manifest.
func (p Package) Root() Path {
	s := string(p.ManifestPath)
	if i := strings.LastIndexAny(s, `/\`); i >= 0 {
		return Path(s[:i])
	}

	return Path(".")
}

// EntryPoints returns the target source paths, deduplicated and sorted.
func (p Package) EntryPoints() []Path {
	seen := make(map[Path]struct{}, len(p.Targets))
	out := make([]Path, 0, len(p.Targets))

	for _, t := range p.Targets {
		if t.SrcPath == "" {
			continue
		}

		if _, ok := seen[t.SrcPath]; ok {
			continue
		}

		seen[t.SrcPath] = struct{}{}
		out = append(out, t.SrcPath)
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

// Graph is the resolved dependency graph of a build.
type Graph struct {
	Root          PackageID
	Packages      map[string]*Package
	Edges         []Edge
	WorkspaceRoot Path
	// TargetDir is the build output directory, where dep-info files live.
	TargetDir Path
}

// NewGraph creates an empty graph rooted at root.
func NewGraph(root PackageID) *Graph {
	return &Graph{
		Root:     root,
		Packages: make(map[string]*Package),
	}
}

// AddPackage inserts or replaces a package node.
func (g *Graph) AddPackage(pkg *Package) {
	g.Packages[pkg.ID.Key()] = pkg
}

// AddEdge appends an edge.
func (g *Graph) AddEdge(edge Edge) {
	g.Edges = append(g.Edges, edge)
}

// Package looks up a node by id.
func (g *Graph) Package(id PackageID) (*Package, bool) {
	pkg, ok := g.Packages[id.Key()]
	return pkg, ok
}

// Dependencies returns the edges leaving id.
func (g *Graph) Dependencies(id PackageID) []Edge {
	key := id.Key()

	var out []Edge

	for _, e := range g.Edges {
		if e.From.Key() == key {
			out = append(out, e)
		}
	}

	return out
}

// Dependents returns the edges entering id.
func (g *Graph) Dependents(id PackageID) []Edge {
	key := id.Key()

	var out []Edge

	for _, e := range g.Edges {
		if e.To.Key() == key {
			out = append(out, e)
		}
	}

	return out
}
