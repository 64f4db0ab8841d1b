// Package catalog caches run time spans and per-run subsystem filters in a
// SQLite database so that span and date-range queries do not rescan the
// data root.
package catalog

// CreateRunsTableSQL holds one row per run. start_ns and end_ns carry the
// span sentinels when a bound could not be established. first_fp and
// last_fp fingerprint the two headers the bounds were read from, subs_fp
// the sorted subsystem list behind run_subsystems.
const CreateRunsTableSQL = `
CREATE TABLE IF NOT EXISTS runs (
    run INTEGER PRIMARY KEY,
    subsystem TEXT NOT NULL,
    start_ns INTEGER NOT NULL,
    end_ns INTEGER NOT NULL,
    min_cycle INTEGER NOT NULL,
    max_cycle INTEGER NOT NULL,
    status TEXT NOT NULL,
    error TEXT,
    first_fp INTEGER NOT NULL DEFAULT 0,
    last_fp INTEGER NOT NULL DEFAULT 0,
    subs_fp INTEGER NOT NULL DEFAULT 0,
    scan_id TEXT NOT NULL,
    updated_at INTEGER NOT NULL
)`

// CreateRunsIndexesSQL supports date-range lookups.
var CreateRunsIndexesSQL = []string{
	`CREATE INDEX IF NOT EXISTS idx_runs_start ON runs(start_ns)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_end ON runs(end_ns)`,
}

// CreateRunSubsystemsTableSQL stores a snappy-compressed bloom filter of
// the subsystem names found in each run directory.
const CreateRunSubsystemsTableSQL = `
CREATE TABLE IF NOT EXISTS run_subsystems (
    run INTEGER PRIMARY KEY,
    bloom_data BLOB NOT NULL,
    num_bits INTEGER NOT NULL,
    num_hashes INTEGER NOT NULL,
    item_count INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
)`

// CreateScansTableSQL records one row per refresh.
const CreateScansTableSQL = `
CREATE TABLE IF NOT EXISTS scans (
    scan_id TEXT PRIMARY KEY,
    root TEXT NOT NULL,
    layout TEXT NOT NULL,
    subsystem TEXT NOT NULL,
    started_at INTEGER NOT NULL,
    finished_at INTEGER NOT NULL,
    runs_scanned INTEGER NOT NULL,
    runs_skipped INTEGER NOT NULL,
    runs_failed INTEGER NOT NULL
)`

// AllSchemaSQL returns the statements that initialize a catalog.
func AllSchemaSQL() []string {
	statements := []string{
		CreateRunsTableSQL,
		CreateRunSubsystemsTableSQL,
		CreateScansTableSQL,
	}
	return append(statements, CreateRunsIndexesSQL...)
}
