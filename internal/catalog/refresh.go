package catalog

import (
	"context"
	"os"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	n2errors "github.com/n2edm/n2read/internal/errors"
	"github.com/n2edm/n2read/internal/index"
	"github.com/n2edm/n2read/pkg/types"
)

// DefaultWorkers is the refresh parallelism when none is given.
const DefaultWorkers = 4

// RefreshOptions controls Refresh.
type RefreshOptions struct {
	// Subsystem whose headers give the bounds; empty picks the first one
	// listed in each run.
	Subsystem string

	// StartFromRun skips lower run numbers.
	StartFromRun int32

	// Workers is the number of runs scanned in parallel.
	Workers int

	// Force rescans runs whose fingerprints are unchanged.
	Force bool
}

// ScanResult summarizes a refresh.
type ScanResult struct {
	ScanID   string
	Scanned  int
	Skipped  int
	Failed   int
	Duration time.Duration
}

type runResult struct {
	span       types.RunSpan
	fp         [3]uint64
	subsystems []string
	skipped    bool
}

// Refresh rescans the runs of the scanner's root and stores their spans.
// Runs whose boundary headers are unchanged since the last refresh are
// skipped. A span that could not be established is stored with its
// sentinel and counted as failed.
func (c *Catalog) Refresh(ctx context.Context, s *index.Scanner, opts RefreshOptions) (*ScanResult, error) {
	started := time.Now()
	scanID := uuid.NewString()
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	runs, err := s.ListRuns(opts.StartFromRun)
	if err != nil {
		return nil, err
	}
	known, err := c.knownRuns(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]runResult, len(runs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, run := range runs {
		i, run := i, run
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = scanOne(s, run, opts.Subsystem, known[run], opts.Force)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := c.upsertRuns(ctx, scanID, results); err != nil {
		return nil, n2errors.NewCatalogError("failed to store spans", err)
	}

	res := &ScanResult{ScanID: scanID}
	for _, r := range results {
		switch {
		case r.skipped:
			res.Skipped++
		case !r.span.Valid():
			res.Failed++
			res.Scanned++
		default:
			res.Scanned++
		}
	}
	res.Duration = time.Since(started)

	rec := &ScanRecord{
		ScanID:      scanID,
		Root:        s.Root,
		Layout:      s.Layout.String(),
		Subsystem:   opts.Subsystem,
		StartedAt:   started,
		FinishedAt:  time.Now(),
		RunsScanned: res.Scanned,
		RunsSkipped: res.Skipped,
		RunsFailed:  res.Failed,
	}
	if err := c.recordScan(ctx, rec); err != nil {
		return nil, n2errors.NewCatalogError("failed to record scan", err)
	}

	c.log.Info().
		Str("scan_id", scanID).
		Int("runs", len(runs)).
		Int("scanned", res.Scanned).
		Int("skipped", res.Skipped).
		Int("failed", res.Failed).
		Dur("duration", res.Duration).
		Msg("Catalog refreshed")
	return res, nil
}

// scanOne computes the span of one run unless its fingerprints match prev.
func scanOne(s *index.Scanner, run int32, subsystem string, prev *storedRun, force bool) runResult {
	subs, _ := s.ListSubsystems(run)
	sub := subsystem
	if sub == "" && len(subs) > 0 {
		sub = subs[0]
	}

	var fp [3]uint64
	if sub != "" {
		if lo, hi, n, _ := s.MinMaxCycles(run, sub); n > 0 {
			fp[0] = fingerprint(s.ConfigPath(run, lo, sub))
			fp[1] = fingerprint(s.ConfigPath(run, hi, sub))
		}
	}
	fp[2] = subsystemsFingerprint(subs)

	if !force && prev != nil && fp[0] != 0 && fp[1] != 0 &&
		prev.span.Subsystem == sub && prev.fp == fp {
		return runResult{span: prev.span, fp: fp, skipped: true}
	}

	return runResult{
		span:       s.RunSpan(run, sub),
		fp:         fp,
		subsystems: subs,
	}
}

// subsystemsFingerprint hashes a sorted subsystem list.
func subsystemsFingerprint(subs []string) uint64 {
	h := xxhash.New()
	for _, sub := range subs {
		h.WriteString(sub)
		h.Write([]byte{0})
	}
	return h.Sum64()
}

// fingerprint hashes a header's path and contents, or returns 0 when the
// file cannot be read.
func fingerprint(path string) uint64 {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	h := xxhash.New()
	h.WriteString(path)
	h.Write(data)
	return h.Sum64()
}
