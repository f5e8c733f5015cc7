package domain

import (
	"sort"

	m "rads.dev/pkg/rads/internal/model"
)

// Aggregate folds the per-file scan results of one package into its report.
//
// Counters of files compiled by the build land in Used, the rest in Unused.
// Files that failed to parse contribute nothing and are listed in FailedFiles.
// The result does not depend on the order of files.
func Aggregate(id m.PackageID, files []m.FileMetrics) m.PackageReport {
	report := m.PackageReport{ID: id}

	entryPoints := 0
	forbiddenEntryPoints := 0

	for _, f := range files {
		if f.EntryPoint {
			entryPoints++

			if !f.Failed && f.Suppression.Root == m.ScopeForbidden {
				forbiddenEntryPoints++
			}
		}

		if f.Failed {
			report.FailedFiles = append(report.FailedFiles, f.Path)
			continue
		}

		report.FilesScanned++

		if f.Used {
			report.Used = report.Used.Add(f.Counters)
		} else {
			report.Unused = report.Unused.Add(f.Counters)
		}
	}

	sort.Slice(report.FailedFiles, func(i, j int) bool {
		return report.FailedFiles[i] < report.FailedFiles[j]
	})

	report.Counters = m.NewUnsafeCounters(report.Used, report.Unused)
	report.ForbidsUnsafe = entryPoints > 0 && forbiddenEntryPoints == entryPoints
	report.Classification = classify(report.Counters, report.ForbidsUnsafe)

	return report
}

// classify applies the verdict rules: any used unsafe count wins over suppression.
func classify(counters m.UnsafeCounters, forbidsUnsafe bool) m.Classification {
	switch {
	case counters.AnyUsed():
		return m.UnsafeFound
	case forbidsUnsafe:
		return m.Forbidden
	default:
		return m.CleanUnforbidden
	}
}

// Summarize totals a set of package reports.
func Summarize(reports []m.PackageReport) m.Totals {
	var totals m.Totals

	for _, r := range reports {
		totals.Counters = totals.Counters.Add(r.Counters)

		switch r.Classification {
		case m.Forbidden:
			totals.Forbidden++
		case m.UnsafeFound:
			totals.UnsafeFound++
		case m.CleanUnforbidden:
			totals.CleanUnforbidden++
		}

		if r.Incomplete() {
			totals.Incomplete++
		}
	}

	switch {
	case totals.UnsafeFound > 0:
		totals.Status = m.UnsafeFound
	case len(reports) > 0 && totals.Forbidden == len(reports):
		totals.Status = m.Forbidden
	default:
		totals.Status = m.CleanUnforbidden
	}

	return totals
}
