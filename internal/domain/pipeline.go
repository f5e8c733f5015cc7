package domain

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	"rads.dev/pkg/rads/internal/adapter"
	m "rads.dev/pkg/rads/internal/model"
	"rads.dev/pkg/rads/pkg"
)

type scanFunc func(ctx context.Context, f m.File) (m.FileMetrics, error)

// collectFiles lists the files to scan per package. With entryPointsOnly only
// target roots are listed. Packages whose sources cannot be listed are
// returned separately and get no metrics.
func (w *workflow) collectFiles(packages []*m.Package, used map[m.Path]struct{}, entryPointsOnly bool) ([]m.File, []m.PackageID) {
	var (
		files          []m.File
		withoutMetrics []m.PackageID
	)

	for _, p := range packages {
		entries := make(map[m.Path]bool)
		for _, e := range p.EntryPoints() {
			entries[cleanPath(e)] = true
		}

		var paths []m.Path

		if entryPointsOnly {
			for e := range entries {
				paths = append(paths, e)
			}
		} else {
			listed, err := w.RustFiles(p.Root())
			if err != nil {
				slog.Warn("Failed to list package sources", "package", p.ID.String(), "error", err)
				withoutMetrics = append(withoutMetrics, p.ID)

				continue
			}

			seen := make(map[m.Path]bool, len(listed))
			for _, l := range listed {
				c := cleanPath(l)
				seen[c] = true
				paths = append(paths, c)
			}

			// Entry points may live outside the package directory.
			for e := range entries {
				if !seen[e] {
					paths = append(paths, e)
				}
			}
		}

		sort.Slice(paths, func(i, j int) bool { return paths[i] < paths[j] })

		for _, path := range paths {
			_, compiled := used[path]

			files = append(files, m.File{
				Path:       path,
				Package:    p.ID,
				EntryPoint: entries[path],
				Used:       used == nil || compiled,
			})
		}
	}

	return files, withoutMetrics
}

// runScans fans the files out to a bounded worker pool. Results are funnelled
// through a channel into a single collector that spools them to disk; the
// returned spill is complete once runScans returns.
func (w *workflow) runScans(ctx context.Context, files []m.File, workers int, scan scanFunc) (pkg.FileSpill[m.FileMetrics], error) {
	spill, err := pkg.NewFileSpill[m.FileMetrics](pkg.WithDir(w.spillDir))
	if err != nil {
		return nil, fmt.Errorf("create result spill: %w", err)
	}

	threads := defaultWorkers(workers)
	results := make(chan m.FileMetrics, threads)
	collected := make(chan error, 1)

	go func() {
		var collectErr error

		for fm := range results {
			if collectErr != nil {
				continue
			}

			collectErr = spill.Append(fm)
		}

		collected <- collectErr
	}()

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(threads)

	for _, file := range files {
		current := file

		group.Go(func() error {
			metrics, err := scan(groupCtx, current)
			if err != nil {
				return err
			}

			metrics.PackageKey = current.Package.Key()
			metrics.EntryPoint = current.EntryPoint
			metrics.Used = current.Used

			w.DisplayFileScanned(groupCtx, metrics)

			select {
			case <-groupCtx.Done():
				return groupCtx.Err()
			case results <- metrics:
			}

			return nil
		})
	}

	scanErr := group.Wait()

	close(results)

	collectErr := <-collected

	if scanErr == nil {
		scanErr = collectErr
	}

	if scanErr != nil {
		_ = spill.Close()
		return nil, scanErr
	}

	return spill, nil
}

// scanFile reads and scans one file, consulting the cache first. Parse failures
// come back as failed metrics unless failFast is set.
func (w *workflow) scanFile(ctx context.Context, f m.File, includeTests, failFast bool) (m.FileMetrics, error) {
	src, err := w.ReadFile(f.Path)
	if err != nil {
		slog.Warn("Failed to read source file", "path", f.Path, "error", err)
		return m.FileMetrics{Path: f.Path, Failed: true, Diagnostic: err.Error()}, nil
	}

	key := adapter.ScanCacheKey(adapter.HashBytes(src), includeTests)

	if cached, ok, err := w.cache.Get(ctx, key); err != nil {
		slog.Debug("Scan cache lookup failed", "path", f.Path, "error", err)
	} else if ok {
		recordCacheHit(ctx)

		return m.FileMetrics{Path: f.Path, Counters: cached.Counters, Suppression: cached.Suppression}, nil
	}

	metrics, err := w.scanner.Scan(ctx, f.Path, src, m.ScopePermitted)
	if err != nil {
		return w.handleScanError(ctx, metrics, err, failFast)
	}

	if metrics.Diagnostic != "" {
		w.DisplayWarning(ctx, fmt.Sprintf("%s: counted around syntax errors: %s", f.Path, metrics.Diagnostic))
		return metrics, nil
	}

	if err := w.cache.Put(ctx, key, adapter.CachedScan{Counters: metrics.Counters, Suppression: metrics.Suppression}); err != nil {
		slog.Debug("Scan cache store failed", "path", f.Path, "error", err)
	}

	return metrics, nil
}

// checkEntryPoint evaluates only the unsafe_code lint of an entry point.
func (w *workflow) checkEntryPoint(ctx context.Context, f m.File, failFast bool) (m.FileMetrics, error) {
	metrics := m.FileMetrics{Path: f.Path}

	src, err := w.ReadFile(f.Path)
	if err != nil {
		slog.Warn("Failed to read entry point", "path", f.Path, "error", err)

		metrics.Failed = true
		metrics.Diagnostic = err.Error()

		return metrics, nil
	}

	suppression, err := w.scanner.Suppression(ctx, f.Path, src, m.ScopePermitted)
	if err != nil {
		metrics.Failed = true
		metrics.Diagnostic = diagnosticOf(err)

		return w.handleScanError(ctx, metrics, err, failFast)
	}

	metrics.Suppression = suppression

	return metrics, nil
}

func (w *workflow) handleScanError(ctx context.Context, metrics m.FileMetrics, err error, failFast bool) (m.FileMetrics, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return metrics, ctxErr
	}

	if !isParseFailure(err) || failFast {
		return metrics, err
	}

	slog.Warn("Skipping file that failed to parse", "path", metrics.Path, "error", err)
	w.DisplayWarning(ctx, err.Error())

	metrics.Failed = true

	return metrics, nil
}

// buildReport reduces the spooled results into per-package reports and renders the tree.
func (w *workflow) buildReport(
	ctx context.Context,
	graph *m.Graph,
	packages []*m.Package,
	withoutMetrics []m.PackageID,
	results pkg.FileSpill[m.FileMetrics],
	used map[m.Path]struct{},
	walk WalkOptions,
) (*m.SafetyReport, error) {
	byPackage := make(map[string][]m.FileMetrics, len(packages))
	scanned := make(map[m.Path]struct{}, results.Len())

	err := results.Range(func(_ uint64, fm m.FileMetrics) error {
		byPackage[fm.PackageKey] = append(byPackage[fm.PackageKey], fm)
		scanned[fm.Path] = struct{}{}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read scan results: %w", err)
	}

	skipped := make(map[string]bool, len(withoutMetrics))
	for _, id := range withoutMetrics {
		skipped[id.Key()] = true
	}

	reports := make([]m.PackageReport, 0, len(packages))

	for _, p := range packages {
		if skipped[p.ID.Key()] {
			continue
		}

		report := Aggregate(p.ID, byPackage[p.ID.Key()])
		recordClassification(ctx, report.Classification.String())

		reports = append(reports, report)
	}

	tree, err := w.walker.Render(graph, graph.Root, walk)
	if err != nil {
		return nil, fmt.Errorf("render dependency tree: %w", err)
	}

	return &m.SafetyReport{
		RunID:                  newRunID(),
		Root:                   graph.Root,
		Packages:               reports,
		PackagesWithoutMetrics: withoutMetrics,
		UsedButNotScannedFiles: usedButNotScanned(used, scanned),
		Tree:                   tree,
		Totals:                 Summarize(reports),
	}, nil
}

func usedButNotScanned(used, scanned map[m.Path]struct{}) []m.Path {
	var out []m.Path

	for path := range used {
		if _, ok := scanned[path]; !ok {
			out = append(out, path)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

func cleanPath(p m.Path) m.Path {
	return m.Path(filepath.Clean(string(p)))
}
