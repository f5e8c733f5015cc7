package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"rads.dev/pkg/rads/internal/adapter"
	"rads.dev/pkg/rads/internal/controller"
	m "rads.dev/pkg/rads/internal/model"
)

// ScanArgs contains the arguments of a dependency scan.
type ScanArgs struct {
	Resolve adapter.ResolveArgs
	Walk    WalkOptions
	// Workers bounds concurrent file scans. Zero means GOMAXPROCS.
	Workers  int `validate:"gte=0,lte=1024"`
	FailFast bool
	// IncludeTests must match the scanner's WithIncludeTests option; it is part of the cache key.
	IncludeTests bool
	// UseBuild enables the dep-info filter that separates used from unused files.
	UseBuild bool
	// RunBuild runs `cargo check` before reading dep-info files.
	RunBuild bool
	// ReportPath saves the report to a JSON or YAML file when set.
	ReportPath m.Path
}

// FilesArgs contains the arguments of a standalone file scan.
type FilesArgs struct {
	Paths        []m.Path `validate:"required,min=1"`
	Workers      int      `validate:"gte=0,lte=1024"`
	FailFast     bool
	IncludeTests bool
}

// Workflow runs the scan modes of rads.
type Workflow interface {
	// Scan resolves the dependency graph, scans every reachable package and displays the report.
	Scan(ctx context.Context, args ScanArgs) (*m.SafetyReport, error)
	// Forbid only checks whether the entry points of each package forbid unsafe code.
	Forbid(ctx context.Context, args ScanArgs) (*m.SafetyReport, error)
	// ScanFiles scans individual files or directories outside of any dependency graph.
	ScanFiles(ctx context.Context, args FilesArgs) ([]m.FileMetrics, error)
}

// WorkflowOption configures optional collaborators of a Workflow.
type WorkflowOption func(*workflow)

// WithBuildInterceptor enables the used/unused split through dep-info files.
func WithBuildInterceptor(b adapter.BuildInterceptor) WorkflowOption {
	return func(w *workflow) {
		w.build = b
	}
}

// WithScanCache serves repeated file contents from cache.
func WithScanCache(c adapter.ScanCache) WorkflowOption {
	return func(w *workflow) {
		w.cache = c
	}
}

// WithReportStore persists reports when ScanArgs.ReportPath is set.
func WithReportStore(s adapter.ReportStore) WorkflowOption {
	return func(w *workflow) {
		w.reports = s
	}
}

// WithObjectStore uploads saved reports.
func WithObjectStore(s adapter.ObjectStore) WorkflowOption {
	return func(w *workflow) {
		w.objects = s
	}
}

// WithHistoryStore records every finished run.
func WithHistoryStore(s adapter.HistoryStore) WorkflowOption {
	return func(w *workflow) {
		w.history = s
	}
}

// WithSpillDir keeps intermediate scan results under dir instead of the system temp directory.
func WithSpillDir(dir string) WorkflowOption {
	return func(w *workflow) {
		w.spillDir = dir
	}
}

type workflow struct {
	adapter.SourceFSAdapter
	adapter.MetadataAdapter
	controller.UI

	scanner Scanner
	walker  Walker

	build   adapter.BuildInterceptor
	cache   adapter.ScanCache
	reports adapter.ReportStore
	objects adapter.ObjectStore
	history adapter.HistoryStore

	spillDir string
}

var validate = validator.New()

// NewWorkflow creates a new Workflow instance with the provided dependencies.
func NewWorkflow(
	fsAdapter adapter.SourceFSAdapter,
	metadataAdapter adapter.MetadataAdapter,
	ui controller.UI,
	scanner Scanner,
	walker Walker,
	opts ...WorkflowOption,
) Workflow {
	w := &workflow{
		SourceFSAdapter: fsAdapter,
		MetadataAdapter: metadataAdapter,
		UI:              ui,
		scanner:         scanner,
		walker:          walker,
		cache:           adapter.NopScanCache{},
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

func (w *workflow) Scan(ctx context.Context, args ScanArgs) (*m.SafetyReport, error) {
	ctx, span := tracer.Start(ctx, "domain.Workflow.Scan")
	defer span.End()

	if err := validate.Struct(args); err != nil {
		return nil, fmt.Errorf("invalid scan arguments: %w", err)
	}

	args.Resolve = w.locateManifest(args.Resolve)

	if err := w.Start(ctx, controller.WithScanMode()); err != nil {
		slog.Error("Failed to start workflow UI", "error", err)
		return nil, err
	}
	defer w.Close(ctx)

	graph, packages, err := w.resolve(ctx, args)
	if err != nil {
		return nil, err
	}

	used := w.usedFiles(ctx, graph, args)

	files, withoutMetrics := w.collectFiles(packages, used, false)
	w.DisplayGraphResolved(ctx, len(packages), len(files))

	span.SetAttributes(attribute.Int("packages", len(packages)), attribute.Int("files", len(files)))

	results, err := w.runScans(ctx, files, args.Workers, func(ctx context.Context, f m.File) (m.FileMetrics, error) {
		return w.scanFile(ctx, f, args.IncludeTests, args.FailFast)
	})
	if err != nil {
		return nil, fmt.Errorf("scan files: %w", err)
	}
	defer func() {
		_ = results.Close()
	}()

	report, err := w.buildReport(ctx, graph, packages, withoutMetrics, results, used, args.Walk)
	if err != nil {
		return nil, err
	}

	return report, w.finish(ctx, report, args, graph.WorkspaceRoot)
}

func (w *workflow) Forbid(ctx context.Context, args ScanArgs) (*m.SafetyReport, error) {
	ctx, span := tracer.Start(ctx, "domain.Workflow.Forbid")
	defer span.End()

	if err := validate.Struct(args); err != nil {
		return nil, fmt.Errorf("invalid scan arguments: %w", err)
	}

	args.Resolve = w.locateManifest(args.Resolve)

	if err := w.Start(ctx, controller.WithForbidMode()); err != nil {
		slog.Error("Failed to start workflow UI", "error", err)
		return nil, err
	}
	defer w.Close(ctx)

	graph, packages, err := w.resolve(ctx, args)
	if err != nil {
		return nil, err
	}

	files, withoutMetrics := w.collectFiles(packages, nil, true)
	w.DisplayGraphResolved(ctx, len(packages), len(files))

	results, err := w.runScans(ctx, files, args.Workers, func(ctx context.Context, f m.File) (m.FileMetrics, error) {
		return w.checkEntryPoint(ctx, f, args.FailFast)
	})
	if err != nil {
		return nil, fmt.Errorf("scan files: %w", err)
	}
	defer func() {
		_ = results.Close()
	}()

	report, err := w.buildReport(ctx, graph, packages, withoutMetrics, results, nil, args.Walk)
	if err != nil {
		return nil, err
	}

	return report, w.finish(ctx, report, args, graph.WorkspaceRoot)
}

func (w *workflow) ScanFiles(ctx context.Context, args FilesArgs) ([]m.FileMetrics, error) {
	ctx, span := tracer.Start(ctx, "domain.Workflow.ScanFiles")
	defer span.End()

	if err := validate.Struct(args); err != nil {
		return nil, fmt.Errorf("invalid file arguments: %w", err)
	}

	if err := w.Start(ctx, controller.WithFilesMode()); err != nil {
		slog.Error("Failed to start workflow UI", "error", err)
		return nil, err
	}
	defer w.Close(ctx)

	var files []m.File

	for _, path := range args.Paths {
		info, err := w.FileInfo(path)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}

		if !info.IsDir() {
			files = append(files, m.File{Path: path, EntryPoint: true, Used: true})
			continue
		}

		listed, err := w.RustFiles(path)
		if err != nil {
			return nil, err
		}

		for _, p := range listed {
			files = append(files, m.File{Path: p, Used: true})
		}
	}

	w.DisplayGraphResolved(ctx, 0, len(files))

	results, err := w.runScans(ctx, files, args.Workers, func(ctx context.Context, f m.File) (m.FileMetrics, error) {
		return w.scanFile(ctx, f, args.IncludeTests, args.FailFast)
	})
	if err != nil {
		return nil, fmt.Errorf("scan files: %w", err)
	}
	defer func() {
		_ = results.Close()
	}()

	metrics := make([]m.FileMetrics, 0, results.Len())
	if err := results.Range(func(_ uint64, fm m.FileMetrics) error {
		metrics = append(metrics, fm)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("read scan results: %w", err)
	}

	sort.Slice(metrics, func(i, j int) bool { return metrics[i].Path < metrics[j].Path })

	if err := w.DisplayFileMetrics(ctx, metrics); err != nil {
		return nil, fmt.Errorf("display: %w", err)
	}

	return metrics, nil
}

// resolve loads the graph and selects the packages reachable under the walk options.
func (w *workflow) resolve(ctx context.Context, args ScanArgs) (*m.Graph, []*m.Package, error) {
	graph, err := w.Resolve(ctx, args.Resolve)
	if err != nil {
		slog.Error("Failed to resolve dependency graph", "error", err)
		return nil, nil, fmt.Errorf("%w: %w", ErrGraphResolution, err)
	}

	reachable, err := w.walker.Reachable(graph, graph.Root, args.Walk)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrGraphResolution, err)
	}

	packages := make([]*m.Package, 0, len(reachable))

	for _, id := range reachable {
		pkg, ok := graph.Package(id)
		if !ok {
			return nil, nil, fmt.Errorf("%w: dependency %s has no package entry", ErrGraphResolution, id)
		}

		packages = append(packages, pkg)
	}

	sort.Slice(packages, func(i, j int) bool {
		return comparePackageIDs(packages[i].ID, packages[j].ID) < 0
	})

	slog.Info("Resolved dependency graph", "root", graph.Root.String(), "packages", len(packages))

	return graph, packages, nil
}

// usedFiles returns the set of files compiled by the build, or nil when no filter applies.
func (w *workflow) usedFiles(ctx context.Context, graph *m.Graph, args ScanArgs) map[m.Path]struct{} {
	if w.build == nil || !args.UseBuild {
		return nil
	}

	if args.RunBuild {
		if err := w.build.Build(ctx, args.Resolve); err != nil {
			slog.Warn("Build failed, counting every file as used", "error", err)
			w.DisplayWarning(ctx, fmt.Sprintf("build failed, counting every file as used: %v", err))

			return nil
		}
	}

	used, err := w.build.UsedFiles(ctx, graph.TargetDir)
	if err != nil {
		slog.Warn("Reading dep-info files failed, counting every file as used", "error", err)
		w.DisplayWarning(ctx, fmt.Sprintf("reading dep-info files failed: %v", err))

		return nil
	}

	if len(used) == 0 {
		slog.Debug("No dep-info files found, counting every file as used", "target_dir", graph.TargetDir)
		return nil
	}

	return used
}

func (w *workflow) finish(ctx context.Context, report *m.SafetyReport, args ScanArgs, workspaceRoot m.Path) error {
	for _, id := range report.PackagesWithoutMetrics {
		w.DisplayWarning(ctx, fmt.Sprintf("no metrics available for %s", id))
	}

	for _, pkg := range report.Packages {
		if pkg.Incomplete() {
			w.DisplayWarning(ctx, fmt.Sprintf("%s: %d file(s) could not be parsed: %s",
				pkg.ID, len(pkg.FailedFiles), w.displayPaths(string(workspaceRoot), pkg.FailedFiles)))
		}
	}

	if n := len(report.UsedButNotScannedFiles); n > 0 {
		w.DisplayWarning(ctx, fmt.Sprintf("%d file(s) compiled by the build were not scanned: %s",
			n, w.displayPaths(string(workspaceRoot), report.UsedButNotScannedFiles)))
	}

	if err := w.DisplayReport(ctx, report); err != nil {
		return fmt.Errorf("display: %w", err)
	}

	if err := w.publish(ctx, report, args.ReportPath); err != nil {
		return fmt.Errorf("publish report: %w", err)
	}

	return nil
}

// maxListedPaths bounds the file names spelled out in a single warning.
const maxListedPaths = 5

// displayPaths lists paths for a warning, relative to root when they lie below it.
func (w *workflow) displayPaths(root string, paths []m.Path) string {
	shown := make([]string, 0, min(len(paths), maxListedPaths))

	for _, p := range paths[:min(len(paths), maxListedPaths)] {
		if root != "" {
			if rel, err := w.RelPath(m.Path(root), p); err == nil && !strings.HasPrefix(string(rel), "..") {
				shown = append(shown, string(rel))
				continue
			}
		}

		shown = append(shown, string(p))
	}

	if extra := len(paths) - len(shown); extra > 0 {
		shown = append(shown, fmt.Sprintf("and %d more", extra))
	}

	return strings.Join(shown, ", ")
}

// locateManifest points cargo at the nearest Cargo.toml above the working
// directory when neither a manifest nor a saved metadata document was given.
func (w *workflow) locateManifest(args adapter.ResolveArgs) adapter.ResolveArgs {
	if args.ManifestPath != "" || args.MetadataFile != "" {
		return args
	}

	root, err := w.FindProjectRoot(".")
	if err != nil {
		slog.Debug("No manifest found above the working directory", "error", err)
		return args
	}

	args.ManifestPath = m.Path(filepath.Join(string(root), "Cargo.toml"))

	return args
}

func newRunID() string {
	return uuid.NewString()
}

func defaultWorkers(workers int) int {
	if workers > 0 {
		return workers
	}

	return runtime.GOMAXPROCS(0)
}

// isParseFailure reports whether err is a recoverable parse failure.
func isParseFailure(err error) bool {
	var pf *ParseFailedError
	return errors.As(err, &pf)
}
