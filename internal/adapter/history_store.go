package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	m "rads.dev/pkg/rads/internal/model"
)

const historyBatchSize = 100

// HistoryStore records finished scan runs.
type HistoryStore interface {
	EnsureSchema(ctx context.Context) error
	RecordRun(ctx context.Context, report *m.SafetyReport, finishedAt time.Time) error
	Close()
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type historyTx interface {
	execer
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type historyDB interface {
	execer
	begin(ctx context.Context) (historyTx, error)
}

type poolDB struct {
	*pgxpool.Pool
}

func (p poolDB) begin(ctx context.Context) (historyTx, error) {
	return p.BeginTx(ctx, pgx.TxOptions{})
}

// PostgresHistoryStore writes runs into PostgreSQL.
type PostgresHistoryStore struct {
	db    historyDB
	close func()
}

// OpenHistoryStore connects to the database at url.
func OpenHistoryStore(ctx context.Context, url string) (*PostgresHistoryStore, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}

	return &PostgresHistoryStore{db: poolDB{pool}, close: pool.Close}, nil
}

// Close releases the connection pool.
func (s *PostgresHistoryStore) Close() {
	if s.close != nil {
		s.close()
	}
}

// EnsureSchema creates the history tables when missing.
func (s *PostgresHistoryStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
CREATE TABLE IF NOT EXISTS scan_runs (
  id UUID PRIMARY KEY,
  root_name TEXT NOT NULL,
  root_version TEXT NOT NULL,
  status TEXT NOT NULL CHECK (status IN ('forbidden','clean','unsafe')),
  forbidden INTEGER NOT NULL,
  clean_unforbidden INTEGER NOT NULL,
  unsafe_found INTEGER NOT NULL,
  incomplete INTEGER NOT NULL,
  totals JSONB NOT NULL DEFAULT '{}'::jsonb,
  finished_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS scan_run_packages (
  id BIGSERIAL PRIMARY KEY,
  run_id UUID NOT NULL REFERENCES scan_runs(id) ON DELETE CASCADE,
  name TEXT NOT NULL,
  version TEXT NOT NULL,
  source TEXT NOT NULL,
  classification TEXT NOT NULL,
  counters JSONB NOT NULL DEFAULT '{}'::jsonb,
  failed_files INTEGER NOT NULL DEFAULT 0,
  UNIQUE(run_id, name, version, source)
);

CREATE INDEX IF NOT EXISTS idx_scan_runs_root ON scan_runs (root_name, finished_at);
CREATE INDEX IF NOT EXISTS idx_scan_run_packages_name ON scan_run_packages (name, version);
`)
	if err != nil {
		return fmt.Errorf("ensure history schema: %w", err)
	}

	return nil
}

// RecordRun inserts the run and its package rows in one transaction.
func (s *PostgresHistoryStore) RecordRun(ctx context.Context, report *m.SafetyReport, finishedAt time.Time) error {
	totalsJSON, err := json.Marshal(report.Totals)
	if err != nil {
		return fmt.Errorf("encode totals: %w", err)
	}

	tx, err := s.db.begin(ctx)
	if err != nil {
		return fmt.Errorf("begin history transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
INSERT INTO scan_runs (
  id, root_name, root_version, status, forbidden, clean_unforbidden, unsafe_found, incomplete, totals, finished_at
) VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10)
ON CONFLICT (id) DO NOTHING`,
		report.RunID,
		report.Root.Name,
		report.Root.Version,
		report.Totals.Status.String(),
		report.Totals.Forbidden,
		report.Totals.CleanUnforbidden,
		report.Totals.UnsafeFound,
		report.Totals.Incomplete,
		string(totalsJSON),
		finishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert scan run: %w", err)
	}

	for start := 0; start < len(report.Packages); start += historyBatchSize {
		end := min(start+historyBatchSize, len(report.Packages))

		sql, args, err := packageInsert(report.RunID, report.Packages[start:end])
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("insert scan run packages: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit history transaction: %w", err)
	}

	return nil
}

// packageInsert builds one multi-value INSERT for a chunk of package reports.
func packageInsert(runID string, chunk []m.PackageReport) (string, []any, error) {
	const colCount = 7

	var sb strings.Builder

	sb.WriteString(`
INSERT INTO scan_run_packages (
  run_id, name, version, source, classification, counters, failed_files
) VALUES `)

	args := make([]any, 0, len(chunk)*colCount)

	for i, pkg := range chunk {
		if i > 0 {
			sb.WriteString(", ")
		}

		countersJSON, err := json.Marshal(pkg.Counters)
		if err != nil {
			return "", nil, fmt.Errorf("encode counters of %s: %w", pkg.ID, err)
		}

		base := i*colCount + 1
		fmt.Fprintf(&sb, "($%d::uuid, $%d, $%d, $%d, $%d, $%d::jsonb, $%d)",
			base, base+1, base+2, base+3, base+4, base+5, base+6)

		args = append(args,
			runID,
			pkg.ID.Name,
			pkg.ID.Version,
			sourceColumn(pkg.ID.Source),
			pkg.Classification.String(),
			string(countersJSON),
			len(pkg.FailedFiles),
		)
	}

	sb.WriteString(`
ON CONFLICT (run_id, name, version, source) DO UPDATE SET
  classification = EXCLUDED.classification,
  counters = EXCLUDED.counters,
  failed_files = EXCLUDED.failed_files`)

	return sb.String(), args, nil
}

func sourceColumn(src m.Source) string {
	if src.Rev != "" {
		return fmt.Sprintf("%s+%s#%s", src.Kind, src.URL, src.Rev)
	}

	return fmt.Sprintf("%s+%s", src.Kind, src.URL)
}
