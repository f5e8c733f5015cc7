package controller

import (
	"fmt"
	"io"

	"rads.dev/pkg/rads/internal/adapter"
	m "rads.dev/pkg/rads/internal/model"
)

// writeReport writes a report as text, JSON or YAML.
func writeReport(w io.Writer, report *m.SafetyReport, opts RenderOptions) error {
	switch opts.Format {
	case OutputJSON:
		return adapter.Encode(w, report, adapter.FormatJSON)
	case OutputYAML:
		return adapter.Encode(w, report, adapter.FormatYAML)
	case OutputText, "":
	}

	if err := NewTreeRenderer(opts).Render(w, report); err != nil {
		return fmt.Errorf("render report: %w", err)
	}

	if opts.ForbidOnly {
		return nil
	}

	_, err := io.WriteString(w, RenderSummaryTable(report.Totals))

	return err
}

// writeFileMetrics writes per-file results as a table, JSON or YAML.
func writeFileMetrics(w io.Writer, files []m.FileMetrics, opts RenderOptions) error {
	switch opts.Format {
	case OutputJSON:
		return adapter.Encode(w, files, adapter.FormatJSON)
	case OutputYAML:
		return adapter.Encode(w, files, adapter.FormatYAML)
	case OutputText, "":
	}

	_, err := io.WriteString(w, RenderFileTable(files, opts.Charset))

	return err
}
