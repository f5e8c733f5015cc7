package domain

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/mod/semver"
	m "rads.dev/pkg/rads/internal/model"
)

// WalkOptions selects how the dependency graph is turned into a tree.
type WalkOptions struct {
	// Invert follows edges towards dependents instead of dependencies.
	Invert bool
	// Kinds filters edges by dependency kind. The zero value means normal only.
	Kinds m.KindSet
	// All expands every occurrence of a package instead of truncating repeats.
	// Cycles are still truncated.
	All bool
	// MaxDepth stops expansion below the given depth when positive.
	MaxDepth int
}

func (o WalkOptions) kinds() m.KindSet {
	if o.Kinds == 0 {
		return m.KindSetNormal
	}

	return o.Kinds
}

// Walker renders a resolved dependency graph as a deduplicated display tree.
type Walker interface {
	// Render builds the display tree rooted at root with a pre-order traversal.
	// The first occurrence of a package is expanded, later ones are truncated.
	Render(graph *m.Graph, root m.PackageID, opts WalkOptions) (*m.DisplayNode, error)

	// Reachable returns the packages reachable from root, root included, keyed by PackageID.Key.
	Reachable(graph *m.Graph, root m.PackageID, opts WalkOptions) (map[string]m.PackageID, error)
}

type walker struct{}

// NewWalker creates a Walker.
func NewWalker() Walker {
	return &walker{}
}

type neighbor struct {
	id    m.PackageID
	kinds m.KindSet
}

type expansion struct {
	node     *m.DisplayNode
	children []neighbor
	next     int
}

func (w *walker) Render(graph *m.Graph, root m.PackageID, opts WalkOptions) (*m.DisplayNode, error) {
	if _, ok := graph.Package(root); !ok {
		return nil, fmt.Errorf("%w: %s", ErrRootNotFound, root)
	}

	adjacency := buildAdjacency(graph, opts)

	expanded := map[string]bool{root.Key(): true}
	active := map[string]bool{root.Key(): true}

	rootNode := &m.DisplayNode{ID: root}
	stack := []*expansion{{node: rootNode, children: adjacency[root.Key()]}}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top.next >= len(top.children) {
			delete(active, top.node.ID.Key())
			stack = stack[:len(stack)-1]

			continue
		}

		next := top.children[top.next]
		top.next++

		key := next.id.Key()
		child := &m.DisplayNode{
			ID:        next.id,
			Kinds:     next.kinds,
			KindNames: kindAnnotation(next.kinds),
			Depth:     top.node.Depth + 1,
		}
		top.node.Children = append(top.node.Children, child)

		switch {
		case active[key]:
			slog.Debug("dependency cycle detected", "package", next.id.String(), "parent", top.node.ID.String())

			child.Truncated = true
		case expanded[key] && !opts.All:
			child.Truncated = true
		case opts.MaxDepth > 0 && child.Depth >= opts.MaxDepth:
			// Depth limited nodes are neither expanded nor truncated.
		default:
			expanded[key] = true
			active[key] = true
			stack = append(stack, &expansion{node: child, children: adjacency[key]})
		}
	}

	return rootNode, nil
}

func (w *walker) Reachable(graph *m.Graph, root m.PackageID, opts WalkOptions) (map[string]m.PackageID, error) {
	if _, ok := graph.Package(root); !ok {
		return nil, fmt.Errorf("%w: %s", ErrRootNotFound, root)
	}

	adjacency := buildAdjacency(graph, opts)

	seen := map[string]m.PackageID{root.Key(): root}
	queue := []m.PackageID{root}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		for _, n := range adjacency[id.Key()] {
			if _, ok := seen[n.id.Key()]; ok {
				continue
			}

			seen[n.id.Key()] = n.id
			queue = append(queue, n.id)
		}
	}

	return seen, nil
}

// buildAdjacency indexes the filtered edges by their start node. Parallel edges
// between the same pair collapse into one neighbor carrying the union of kinds.
func buildAdjacency(graph *m.Graph, opts WalkOptions) map[string][]neighbor {
	filter := opts.kinds()
	merged := make(map[string]map[string]*neighbor)

	for _, e := range graph.Edges {
		if !filter.Has(e.Kind) {
			continue
		}

		from, to := e.From, e.To
		if opts.Invert {
			from, to = to, from
		}

		targets, ok := merged[from.Key()]
		if !ok {
			targets = make(map[string]*neighbor)
			merged[from.Key()] = targets
		}

		if n, ok := targets[to.Key()]; ok {
			n.kinds |= m.KindSetOf(e.Kind)
			continue
		}

		targets[to.Key()] = &neighbor{id: to, kinds: m.KindSetOf(e.Kind)}
	}

	adjacency := make(map[string][]neighbor, len(merged))
	for key, targets := range merged {
		list := make([]neighbor, 0, len(targets))
		for _, n := range targets {
			list = append(list, *n)
		}

		sort.Slice(list, func(i, j int) bool {
			return comparePackageIDs(list[i].id, list[j].id) < 0
		})

		adjacency[key] = list
	}

	return adjacency
}

// comparePackageIDs orders by name, then semantic version, then source.
func comparePackageIDs(a, b m.PackageID) int {
	if c := strings.Compare(a.Name, b.Name); c != 0 {
		return c
	}

	if c := compareVersions(a.Version, b.Version); c != 0 {
		return c
	}

	if c := strings.Compare(string(a.Source.Kind), string(b.Source.Kind)); c != 0 {
		return c
	}

	if c := strings.Compare(a.Source.URL, b.Source.URL); c != 0 {
		return c
	}

	return strings.Compare(a.Source.Rev, b.Source.Rev)
}

func compareVersions(a, b string) int {
	va, vb := "v"+a, "v"+b
	if semver.IsValid(va) && semver.IsValid(vb) {
		if c := semver.Compare(va, vb); c != 0 {
			return c
		}
	}

	return strings.Compare(a, b)
}

// kindAnnotation names the non-normal kinds of an edge, empty for plain normal edges.
func kindAnnotation(kinds m.KindSet) string {
	if kinds == m.KindSetNormal {
		return ""
	}

	return kinds.String()
}
