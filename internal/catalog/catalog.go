package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	n2errors "github.com/n2edm/n2read/internal/errors"
	"github.com/n2edm/n2read/internal/logger"
	"github.com/n2edm/n2read/pkg/types"
)

// Catalog is a SQLite cache of run spans. Writes go through a single
// connection; reads use a separate read-only pool.
type Catalog struct {
	db     *sql.DB
	readDB *sql.DB
	dbPath string
	mu     sync.Mutex

	log zerolog.Logger
}

// ScanRecord describes one refresh.
type ScanRecord struct {
	ScanID      string
	Root        string
	Layout      string
	Subsystem   string
	StartedAt   time.Time
	FinishedAt  time.Time
	RunsScanned int
	RunsSkipped int
	RunsFailed  int
}

// Open opens or creates the catalog database at dbPath.
func Open(dbPath string) (*Catalog, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, n2errors.NewCatalogError("failed to open database", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	c := &Catalog{
		db:     db,
		dbPath: dbPath,
		log:    logger.Get("catalog"),
	}
	if err := c.initSchema(); err != nil {
		db.Close()
		return nil, n2errors.NewCatalogError("failed to initialize schema", err)
	}

	// the file exists now, so the read-only pool can open it
	readDB, err := sql.Open("sqlite3", "file:"+dbPath+"?mode=ro&_busy_timeout=5000")
	if err != nil {
		db.Close()
		return nil, n2errors.NewCatalogError("failed to open read database", err)
	}
	readDB.SetMaxOpenConns(4)
	readDB.SetMaxIdleConns(4)
	readDB.SetConnMaxLifetime(5 * time.Minute)
	c.readDB = readDB

	return c, nil
}

func (c *Catalog) initSchema() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, stmt := range AllSchemaSQL() {
		if _, err := c.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// Close closes both connections.
func (c *Catalog) Close() error {
	var errs []error
	if c.readDB != nil {
		errs = append(errs, c.readDB.Close())
	}
	errs = append(errs, c.db.Close())
	return errors.Join(errs...)
}

// Path returns the database file path.
func (c *Catalog) Path() string { return c.dbPath }

// storedRun is a runs row together with its fingerprints: the first and
// last header, then the subsystem list.
type storedRun struct {
	span   types.RunSpan
	status string
	fp     [3]uint64
}

// upsertRuns writes spans and subsystem filters in one transaction.
func (c *Catalog) upsertRuns(ctx context.Context, scanID string, results []runResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	runStmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO runs
			(run, subsystem, start_ns, end_ns, min_cycle, max_cycle, status, error,
			 first_fp, last_fp, subs_fp, scan_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare run insert: %w", err)
	}
	defer runStmt.Close()

	now := time.Now().Unix()
	for _, r := range results {
		if r.skipped {
			continue
		}
		var errText sql.NullString
		if r.span.Err != nil {
			errText = sql.NullString{String: r.span.Err.Error(), Valid: true}
		}
		if _, err := runStmt.ExecContext(ctx,
			r.span.Run, r.span.Subsystem, r.span.StartNs, r.span.EndNs,
			r.span.MinCycle, r.span.MaxCycle, spanStatus(r.span), errText,
			int64(r.fp[0]), int64(r.fp[1]), int64(r.fp[2]), scanID, now,
		); err != nil {
			return fmt.Errorf("failed to store run %d: %w", r.span.Run, err)
		}
		if len(r.subsystems) > 0 {
			if err := upsertSubsystems(ctx, tx, r.span.Run, r.subsystems, now); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// recordScan stores the outcome of a refresh.
func (c *Catalog) recordScan(ctx context.Context, rec *ScanRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO scans
			(scan_id, root, layout, subsystem, started_at, finished_at,
			 runs_scanned, runs_skipped, runs_failed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ScanID, rec.Root, rec.Layout, rec.Subsystem,
		rec.StartedAt.UnixNano(), rec.FinishedAt.UnixNano(),
		rec.RunsScanned, rec.RunsSkipped, rec.RunsFailed,
	)
	if err != nil {
		return fmt.Errorf("failed to record scan: %w", err)
	}
	return nil
}

func spanStatus(s types.RunSpan) string {
	if s.StartNs <= 0 {
		return types.SpanStatus(s.StartNs)
	}
	return types.SpanStatus(s.EndNs)
}

const runColumns = `run, subsystem, start_ns, end_ns, min_cycle, max_cycle, status, error, first_fp, last_fp, subs_fp`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*storedRun, error) {
	var (
		r       storedRun
		errText sql.NullString
		fp0     int64
		fp1     int64
		fp2     int64
	)
	if err := row.Scan(&r.span.Run, &r.span.Subsystem, &r.span.StartNs, &r.span.EndNs,
		&r.span.MinCycle, &r.span.MaxCycle, &r.status, &errText, &fp0, &fp1, &fp2); err != nil {
		return nil, err
	}
	if errText.Valid {
		r.span.Err = errors.New(errText.String)
	}
	r.fp = [3]uint64{uint64(fp0), uint64(fp1), uint64(fp2)}
	return &r, nil
}

func (c *Catalog) queryRuns(ctx context.Context, query string, args ...any) ([]*storedRun, error) {
	rows, err := c.readDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, n2errors.NewCatalogError("failed to query runs", err)
	}
	defer rows.Close()

	var out []*storedRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, n2errors.NewCatalogError("failed to scan run", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, n2errors.NewCatalogError("failed to iterate runs", err)
	}
	return out, nil
}

// Spans returns every cached span ordered by run.
func (c *Catalog) Spans(ctx context.Context) ([]types.RunSpan, error) {
	stored, err := c.queryRuns(ctx, `SELECT `+runColumns+` FROM runs ORDER BY run`)
	if err != nil {
		return nil, err
	}
	spans := make([]types.RunSpan, len(stored))
	for i, r := range stored {
		spans[i] = r.span
	}
	return spans, nil
}

// Span returns the cached span of one run. The boolean is false when the
// run is not in the catalog.
func (c *Catalog) Span(ctx context.Context, run int32) (types.RunSpan, bool, error) {
	r, err := scanRun(c.readDB.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run = ?`, run))
	if errors.Is(err, sql.ErrNoRows) {
		return types.RunSpan{}, false, nil
	}
	if err != nil {
		return types.RunSpan{}, false, n2errors.NewCatalogError(fmt.Sprintf("failed to get run %d", run), err)
	}
	return r.span, true, nil
}

// RunsBetween returns the runs whose valid span intersects
// [startNs, endNs], ascending. A zero bound is open.
func (c *Catalog) RunsBetween(ctx context.Context, startNs, endNs int64) ([]int32, error) {
	rows, err := c.readDB.QueryContext(ctx, `
		SELECT run FROM runs
		WHERE start_ns > 0 AND end_ns > 0
		  AND (? = 0 OR end_ns >= ?)
		  AND (? = 0 OR start_ns <= ?)
		ORDER BY run`,
		startNs, startNs, endNs, endNs)
	if err != nil {
		return nil, n2errors.NewCatalogError("failed to query runs between dates", err)
	}
	defer rows.Close()

	var runs []int32
	for rows.Next() {
		var run int32
		if err := rows.Scan(&run); err != nil {
			return nil, n2errors.NewCatalogError("failed to scan run", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// LastScan returns the most recent refresh, or nil when none was recorded.
func (c *Catalog) LastScan(ctx context.Context) (*ScanRecord, error) {
	var rec ScanRecord
	var started, finished int64
	err := c.readDB.QueryRowContext(ctx, `
		SELECT scan_id, root, layout, subsystem, started_at, finished_at,
		       runs_scanned, runs_skipped, runs_failed
		FROM scans ORDER BY finished_at DESC LIMIT 1`,
	).Scan(&rec.ScanID, &rec.Root, &rec.Layout, &rec.Subsystem, &started, &finished,
		&rec.RunsScanned, &rec.RunsSkipped, &rec.RunsFailed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, n2errors.NewCatalogError("failed to get last scan", err)
	}
	rec.StartedAt = time.Unix(0, started)
	rec.FinishedAt = time.Unix(0, finished)
	return &rec, nil
}

// knownRuns loads the stored fingerprints keyed by run.
func (c *Catalog) knownRuns(ctx context.Context) (map[int32]*storedRun, error) {
	stored, err := c.queryRuns(ctx, `SELECT `+runColumns+` FROM runs`)
	if err != nil {
		return nil, err
	}
	known := make(map[int32]*storedRun, len(stored))
	for _, r := range stored {
		known[r.span.Run] = r
	}
	return known, nil
}
