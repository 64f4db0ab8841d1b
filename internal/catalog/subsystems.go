package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/n2edm/n2read/internal/bloom"
	n2errors "github.com/n2edm/n2read/internal/errors"
)

// upsertSubsystems stores the subsystem filter of one run inside tx.
func upsertSubsystems(ctx context.Context, tx *sql.Tx, run int32, subsystems []string, now int64) error {
	f := bloom.ForSubsystems(subsystems)
	data, err := f.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to serialize subsystem filter of run %d: %w", run, err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO run_subsystems
			(run, bloom_data, num_bits, num_hashes, item_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run, data, f.NumBits(), f.NumHashes(), len(subsystems), now)
	if err != nil {
		return fmt.Errorf("failed to store subsystem filter of run %d: %w", run, err)
	}
	return nil
}

// SubsystemFilter returns the stored filter of one run, or nil when the run
// has none.
func (c *Catalog) SubsystemFilter(ctx context.Context, run int32) (*bloom.Filter, error) {
	var data []byte
	err := c.readDB.QueryRowContext(ctx,
		`SELECT bloom_data FROM run_subsystems WHERE run = ?`, run).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, n2errors.NewCatalogError(fmt.Sprintf("failed to get subsystem filter of run %d", run), err)
	}
	f, err := bloom.Unmarshal(data)
	if err != nil {
		return nil, n2errors.NewCatalogError(fmt.Sprintf("corrupt subsystem filter of run %d", run), err)
	}
	return f, nil
}

// RunsWithSubsystem returns, ascending, the runs whose filter may contain
// subsystem. Filters can give false positives, so callers must still list
// the run before reading it.
func (c *Catalog) RunsWithSubsystem(ctx context.Context, subsystem string) ([]int32, error) {
	rows, err := c.readDB.QueryContext(ctx, `SELECT run, bloom_data FROM run_subsystems ORDER BY run`)
	if err != nil {
		return nil, n2errors.NewCatalogError("failed to query subsystem filters", err)
	}
	defer rows.Close()

	var runs []int32
	for rows.Next() {
		var run int32
		var data []byte
		if err := rows.Scan(&run, &data); err != nil {
			return nil, n2errors.NewCatalogError("failed to scan subsystem filter", err)
		}
		f, err := bloom.Unmarshal(data)
		if err != nil {
			c.log.Warn().Err(err).Int32("run", run).Msg("Skipping corrupt subsystem filter")
			continue
		}
		if f.ContainsString(subsystem) {
			runs = append(runs, run)
		}
	}
	return runs, rows.Err()
}
