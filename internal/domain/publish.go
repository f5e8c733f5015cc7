package domain

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"rads.dev/pkg/rads/internal/adapter"
	m "rads.dev/pkg/rads/internal/model"
)

// publish hands a finished report to the configured sinks: the report file, the
// object store and the run history. Without a report path an upload goes through
// a temporary JSON file.
func (w *workflow) publish(ctx context.Context, report *m.SafetyReport, reportPath m.Path) error {
	path := reportPath

	if path == "" && w.objects != nil {
		dir, err := os.MkdirTemp("", "rads-report-*")
		if err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
		defer func() {
			_ = os.RemoveAll(dir)
		}()

		path = m.Path(filepath.Join(dir, report.RunID+"."+string(adapter.FormatJSON)))
	}

	if path != "" {
		store := w.reports
		if store == nil {
			store = adapter.NewFileReportStore()
		}

		if err := store.SaveReport(path, report); err != nil {
			return fmt.Errorf("save report: %w", err)
		}

		slog.Info("Saved report", "path", path, "run_id", report.RunID)
	}

	if w.objects != nil {
		format := adapter.FormatForPath(path)
		key := adapter.ReportObjectKey(report.RunID, report.Root, format)

		if err := w.objects.Upload(ctx, key, string(path), adapter.ContentType(format)); err != nil {
			return err
		}

		slog.Info("Uploaded report", "key", key, "run_id", report.RunID)
	}

	if w.history != nil {
		if err := w.history.RecordRun(ctx, report, time.Now().UTC()); err != nil {
			return fmt.Errorf("record run: %w", err)
		}

		slog.Info("Recorded run", "run_id", report.RunID, "status", report.Totals.Status.String())
	}

	return nil
}
