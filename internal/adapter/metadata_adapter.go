package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	m "rads.dev/pkg/rads/internal/model"
)

// ErrNoRootPackage is returned when the metadata names no root package and
// the workspace member selection is ambiguous.
var ErrNoRootPackage = errors.New("no root package")

// ResolveArgs controls how the dependency graph of a build is resolved.
type ResolveArgs struct {
	// ManifestPath points at the Cargo.toml of the package to audit.
	ManifestPath m.Path
	// MetadataFile, when set, is read instead of invoking cargo.
	MetadataFile m.Path
	// Package selects a workspace member by name when the manifest is a virtual workspace.
	Package           string
	Features          []string
	AllFeatures       bool
	NoDefaultFeatures bool
	// FilterPlatform restricts platform specific dependencies to one target
	// triple. Empty means the host triple reported by rustc.
	FilterPlatform string
	// AllTargets keeps dependencies of every platform.
	AllTargets bool
	Offline    bool
}

// MetadataAdapter resolves the dependency graph of a cargo build.
type MetadataAdapter interface {
	Resolve(ctx context.Context, args ResolveArgs) (*m.Graph, error)
}

// LocalMetadataAdapter shells out to `cargo metadata`.
type LocalMetadataAdapter struct {
	cargo string
	rustc string
}

// NewLocalMetadataAdapter creates an adapter using the cargo and rustc binaries
// found on PATH, or the ones named by the CARGO and RUSTC environment variables.
func NewLocalMetadataAdapter() *LocalMetadataAdapter {
	return &LocalMetadataAdapter{
		cargo: envOr("CARGO", "cargo"),
		rustc: envOr("RUSTC", "rustc"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

// Resolve runs cargo metadata (or reads a saved metadata document) and builds the graph.
// Unless AllTargets is set, dependencies of other platforms are dropped: cargo filters
// them itself, a saved document is filtered against the cfg values rustc reports.
func (a *LocalMetadataAdapter) Resolve(ctx context.Context, args ResolveArgs) (*m.Graph, error) {
	if args.MetadataFile != "" {
		out, err := os.ReadFile(string(args.MetadataFile))
		if err != nil {
			return nil, fmt.Errorf("read metadata file: %w", err)
		}

		var opts []DecodeOption
		if !args.AllTargets {
			opts = append(opts, WithPlatformFilter(a.platformMatcher(ctx, args.FilterPlatform)))
		}

		return DecodeMetadata(bytes.NewReader(out), args.Package, opts...)
	}

	if !args.AllTargets && args.FilterPlatform == "" {
		host, err := a.hostTriple(ctx)
		if err != nil {
			slog.Warn("could not determine host triple, keeping dependencies of all platforms", "error", err)
		}

		args.FilterPlatform = host
	}

	out, err := a.run(ctx, args)
	if err != nil {
		return nil, err
	}

	return DecodeMetadata(bytes.NewReader(out), args.Package)
}

// PlatformMatcher reports whether a dependency target expression applies to the build.
type PlatformMatcher func(target string) bool

// platformMatcher defers the rustc lookup until a target specific dependency is seen.
func (a *LocalMetadataAdapter) platformMatcher(ctx context.Context, triple string) PlatformMatcher {
	var (
		once     sync.Once
		platform *Platform
	)

	return func(target string) bool {
		once.Do(func() {
			p, err := a.platform(ctx, triple)
			if err != nil {
				slog.Warn("could not resolve target platform, keeping dependencies of all platforms", "error", err)
				return
			}

			platform = &p
		})

		if platform == nil {
			return true
		}

		ok, err := platform.Matches(target)
		if err != nil {
			slog.Warn("unparseable dependency target, keeping it", "target", target, "error", err)
			return true
		}

		return ok
	}
}

func (a *LocalMetadataAdapter) run(ctx context.Context, args ResolveArgs) ([]byte, error) {
	cmdArgs := []string{"metadata", "--format-version", "1"}

	if args.ManifestPath != "" {
		cmdArgs = append(cmdArgs, "--manifest-path", string(args.ManifestPath))
	}

	if len(args.Features) > 0 {
		cmdArgs = append(cmdArgs, "--features", strings.Join(args.Features, ","))
	}

	if args.AllFeatures {
		cmdArgs = append(cmdArgs, "--all-features")
	}

	if args.NoDefaultFeatures {
		cmdArgs = append(cmdArgs, "--no-default-features")
	}

	if !args.AllTargets && args.FilterPlatform != "" {
		cmdArgs = append(cmdArgs, "--filter-platform", args.FilterPlatform)
	}

	if args.Offline {
		cmdArgs = append(cmdArgs, "--offline")
	}

	// #nosec G204 - arguments are built from validated flags
	cmd := exec.CommandContext(ctx, a.cargo, cmdArgs...)
	if args.ManifestPath != "" {
		cmd.Dir = filepath.Dir(string(args.ManifestPath))
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	slog.Debug("running cargo metadata", "args", cmdArgs, "dir", cmd.Dir)

	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, fmt.Errorf("cargo metadata: %w", err)
		}

		return nil, fmt.Errorf("cargo metadata: %w: %s", err, msg)
	}

	return out, nil
}

type cargoMetadata struct {
	Packages         []cargoPackage `json:"packages"`
	WorkspaceMembers []string       `json:"workspace_members"`
	Resolve          *cargoResolve  `json:"resolve"`
	WorkspaceRoot    string         `json:"workspace_root"`
	TargetDirectory  string         `json:"target_directory"`
}

type cargoPackage struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Version      string        `json:"version"`
	Source       *string       `json:"source"`
	ManifestPath string        `json:"manifest_path"`
	Targets      []cargoTarget `json:"targets"`
}

type cargoTarget struct {
	Name    string   `json:"name"`
	Kind    []string `json:"kind"`
	SrcPath string   `json:"src_path"`
}

type cargoResolve struct {
	Nodes []cargoNode `json:"nodes"`
	Root  *string     `json:"root"`
}

type cargoNode struct {
	ID           string     `json:"id"`
	Dependencies []string   `json:"dependencies"`
	Deps         []cargoDep `json:"deps"`
	Features     []string   `json:"features"`
}

type cargoDep struct {
	Name     string         `json:"name"`
	Pkg      string         `json:"pkg"`
	DepKinds []cargoDepKind `json:"dep_kinds"`
}

type cargoDepKind struct {
	Kind   *string `json:"kind"`
	Target *string `json:"target"`
}

// DecodeOption configures DecodeMetadata.
type DecodeOption func(*decodeConfig)

type decodeConfig struct {
	platform PlatformMatcher
}

// WithPlatformFilter drops dependency edges whose target does not match.
func WithPlatformFilter(match PlatformMatcher) DecodeOption {
	return func(c *decodeConfig) {
		c.platform = match
	}
}

// DecodeMetadata builds a graph from a `cargo metadata --format-version 1` document.
// member selects the root among workspace members when the document has no resolve root.
func DecodeMetadata(r io.Reader, member string, opts ...DecodeOption) (*m.Graph, error) {
	var cfg decodeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	var meta cargoMetadata

	dec := json.NewDecoder(r)
	if err := dec.Decode(&meta); err != nil {
		return nil, fmt.Errorf("decode cargo metadata: %w", err)
	}

	if meta.Resolve == nil {
		return nil, errors.New("cargo metadata has no resolve section")
	}

	ids := make(map[string]m.PackageID, len(meta.Packages))
	packages := make(map[string]*m.Package, len(meta.Packages))

	for _, p := range meta.Packages {
		id := m.PackageID{
			Name:    p.Name,
			Version: p.Version,
			Source:  parseSource(p.Source, p.ManifestPath),
		}
		ids[p.ID] = id

		pkg := &m.Package{ID: id, ManifestPath: m.Path(p.ManifestPath)}
		for _, t := range p.Targets {
			kinds := make([]m.TargetKind, 0, len(t.Kind))
			for _, k := range t.Kind {
				kinds = append(kinds, m.TargetKind(k))
			}

			pkg.Targets = append(pkg.Targets, m.Target{Name: t.Name, Kinds: kinds, SrcPath: m.Path(t.SrcPath)})
		}

		packages[p.ID] = pkg
	}

	rootID, err := selectRoot(meta, packages, member)
	if err != nil {
		return nil, err
	}

	graph := m.NewGraph(ids[rootID])
	graph.WorkspaceRoot = m.Path(meta.WorkspaceRoot)
	graph.TargetDir = m.Path(meta.TargetDirectory)

	for _, node := range meta.Resolve.Nodes {
		pkg, ok := packages[node.ID]
		if !ok {
			return nil, fmt.Errorf("resolve node %q has no package entry", node.ID)
		}

		pkg.Features = node.Features
		graph.AddPackage(pkg)
	}

	for _, node := range meta.Resolve.Nodes {
		from := ids[node.ID]

		if len(node.Deps) == 0 {
			// Older cargo releases only list dependency ids without kinds.
			for _, dep := range node.Dependencies {
				to, ok := ids[dep]
				if !ok {
					return nil, fmt.Errorf("dependency %q of %s has no package entry", dep, from)
				}

				graph.AddEdge(m.Edge{From: from, To: to, Kind: m.KindNormal})
			}

			continue
		}

		for _, dep := range node.Deps {
			to, ok := ids[dep.Pkg]
			if !ok {
				return nil, fmt.Errorf("dependency %q of %s has no package entry", dep.Pkg, from)
			}

			if len(dep.DepKinds) == 0 {
				graph.AddEdge(m.Edge{From: from, To: to, Kind: m.KindNormal})
				continue
			}

			for _, dk := range dep.DepKinds {
				if dk.Target != nil && cfg.platform != nil && !cfg.platform(*dk.Target) {
					slog.Debug("skipping dependency of another platform", "from", from.String(), "to", to.String(), "target", *dk.Target)
					continue
				}

				kind, ok := m.ParseDependencyKind(deref(dk.Kind))
				if !ok {
					slog.Warn("unknown dependency kind, treating as normal", "kind", deref(dk.Kind), "from", from.String(), "to", to.String())
				}

				graph.AddEdge(m.Edge{From: from, To: to, Kind: kind, Target: deref(dk.Target)})
			}
		}
	}

	return graph, nil
}

func selectRoot(meta cargoMetadata, packages map[string]*m.Package, member string) (string, error) {
	if member != "" {
		for _, id := range meta.WorkspaceMembers {
			if pkg, ok := packages[id]; ok && pkg.ID.Name == member {
				return id, nil
			}
		}

		return "", fmt.Errorf("%w: %q is not a workspace member", ErrNoRootPackage, member)
	}

	if meta.Resolve.Root != nil && *meta.Resolve.Root != "" {
		if _, ok := packages[*meta.Resolve.Root]; !ok {
			return "", fmt.Errorf("%w: root %q has no package entry", ErrNoRootPackage, *meta.Resolve.Root)
		}

		return *meta.Resolve.Root, nil
	}

	if len(meta.WorkspaceMembers) == 1 {
		return meta.WorkspaceMembers[0], nil
	}

	return "", fmt.Errorf("%w: virtual workspace with %d members, select one with --package", ErrNoRootPackage, len(meta.WorkspaceMembers))
}

// parseSource decodes cargo source strings such as
// "registry+https://github.com/rust-lang/crates.io-index" or
// "git+https://github.com/org/repo?branch=main#abc123". Path packages have no
// source and are identified by their manifest directory.
func parseSource(source *string, manifestPath string) m.Source {
	if source == nil || *source == "" {
		return m.Source{Kind: m.SourcePath, URL: filepath.Dir(manifestPath)}
	}

	scheme, rest, found := strings.Cut(*source, "+")
	if !found {
		return m.Source{Kind: m.SourceRegistry, URL: *source}
	}

	switch scheme {
	case "git":
		url, rev, _ := strings.Cut(rest, "#")
		url, _, _ = strings.Cut(url, "?")

		return m.Source{Kind: m.SourceGit, URL: url, Rev: rev}
	case "path":
		return m.Source{Kind: m.SourcePath, URL: rest}
	default:
		return m.Source{Kind: m.SourceRegistry, URL: rest}
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}
