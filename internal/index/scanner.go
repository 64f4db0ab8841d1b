// Package index enumerates the runs, subsystems and cycles stored under an
// N2 EDM data root and computes the time span of every run.
package index

import (
	"context"
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/n2edm/n2read/internal/dataset"
	n2errors "github.com/n2edm/n2read/internal/errors"
	"github.com/n2edm/n2read/internal/logger"
	"github.com/n2edm/n2read/internal/naming"
	"github.com/n2edm/n2read/pkg/types"
)

// Scanner lists the datasets of a data root. Cache and Reader may be nil;
// a nil Cache disables memoization and a nil Reader is replaced by a
// default one. Methods may be called concurrently as long as the fields
// are not modified.
type Scanner struct {
	Root   string
	Layout types.Layout
	Cache  *Cache
	Reader *dataset.Reader

	once   sync.Once
	log    zerolog.Logger
	reader *dataset.Reader
}

// NewScanner creates a scanner with a fresh cache and reader.
func NewScanner(root string, layout types.Layout) *Scanner {
	return &Scanner{
		Root:   root,
		Layout: layout,
		Cache:  NewCache(),
		Reader: dataset.NewReader(),
	}
}

func (s *Scanner) init() {
	s.once.Do(func() {
		s.log = logger.Get("index")
		s.reader = s.Reader
		if s.reader == nil {
			s.reader = dataset.NewReader()
		}
	})
}

func (s *Scanner) logger() *zerolog.Logger {
	s.init()
	return &s.log
}

// readDir lists dir through the cache.
func (s *Scanner) readDir(dir string) ([]Entry, error) {
	return s.Cache.Get(dir, func(dir string) ([]Entry, error) {
		des, err := os.ReadDir(dir)
		if err != nil {
			return nil, n2errors.NewStorageError(n2errors.CodeDirectoryScan, "cannot read directory "+dir, err)
		}
		entries := make([]Entry, len(des))
		for i, de := range des {
			entries[i] = Entry{Name: de.Name(), IsDir: de.IsDir()}
		}
		return entries, nil
	})
}

// ListRuns returns the run numbers >= startFromRun, ascending and without
// duplicates. In the flat layout runs come from header file names; in the
// sharded layout from the two levels of three-digit directories.
func (s *Scanner) ListRuns(startFromRun int32) ([]int32, error) {
	top, err := s.readDir(s.Root)
	if err != nil {
		return nil, err
	}

	var runs []int32
	if s.Layout == types.Flat {
		for _, e := range top {
			if e.IsDir {
				continue
			}
			if h, ok := naming.ParseHeaderName(e.Name); ok && h.Run >= startFromRun {
				runs = append(runs, h.Run)
			}
		}
	} else {
		for _, k := range top {
			thousands, ok := naming.IsShardDir(k.Name)
			if !ok || !k.IsDir || thousands < startFromRun/1000 {
				continue
			}
			sub, err := s.readDir(s.Root + string(os.PathSeparator) + k.Name)
			if err != nil {
				return nil, err
			}
			for _, u := range sub {
				units, ok := naming.IsShardDir(u.Name)
				if !ok || !u.IsDir {
					continue
				}
				if run := thousands*1000 + units; run >= startFromRun {
					runs = append(runs, run)
				}
			}
		}
	}

	slices.Sort(runs)
	return slices.Compact(runs), nil
}

// headers returns the parsed header names found in the directory of run
// that belong to run.
func (s *Scanner) headers(run int32) ([]naming.Header, error) {
	entries, err := s.readDir(naming.RunDir(s.Root, s.Layout, run))
	if err != nil {
		return nil, err
	}
	var out []naming.Header
	for _, e := range entries {
		if e.IsDir {
			continue
		}
		if h, ok := naming.ParseHeaderName(e.Name); ok && h.Run == run && h.Subsystem != "" {
			out = append(out, h)
		}
	}
	return out, nil
}

// ListSubsystems returns the subsystems of run, sorted and without
// duplicates.
func (s *Scanner) ListSubsystems(run int32) ([]string, error) {
	hs, err := s.headers(run)
	if err != nil {
		return nil, err
	}
	subs := make([]string, 0, len(hs))
	for _, h := range hs {
		subs = append(subs, h.Subsystem)
	}
	slices.Sort(subs)
	subs = slices.Compact(subs)
	if len(subs) == 0 {
		s.logger().Warn().Int32("run", run).Msg("No subsystem found")
	}
	return subs, nil
}

// ListCycles returns the cycles of run for subsystem, ascending and without
// duplicates.
func (s *Scanner) ListCycles(run int32, subsystem string) ([]int32, error) {
	hs, err := s.headers(run)
	if err != nil {
		return nil, err
	}
	var cycles []int32
	for _, h := range hs {
		if h.Subsystem == subsystem {
			cycles = append(cycles, h.Cycle)
		}
	}
	slices.Sort(cycles)
	cycles = slices.Compact(cycles)
	if len(cycles) == 0 {
		s.logger().Warn().Int32("run", run).Str("subsystem", subsystem).Msg("No cycle found")
	}
	return cycles, nil
}

// MinMaxRuns returns the lowest and highest run >= startFromRun and the
// number of runs. An empty root yields zeros.
func (s *Scanner) MinMaxRuns(startFromRun int32) (lo, hi int32, n int, err error) {
	runs, err := s.ListRuns(startFromRun)
	if err != nil || len(runs) == 0 {
		return 0, 0, 0, err
	}
	return runs[0], runs[len(runs)-1], len(runs), nil
}

// MinMaxCycles returns the lowest and highest cycle of run for subsystem
// and the number of cycles.
func (s *Scanner) MinMaxCycles(run int32, subsystem string) (lo, hi int32, n int, err error) {
	cycles, err := s.ListCycles(run, subsystem)
	if err != nil || len(cycles) == 0 {
		return 0, 0, 0, err
	}
	return cycles[0], cycles[len(cycles)-1], len(cycles), nil
}

// ConfigPath returns the path of the size index 0, version 0 header of a
// cycle.
func (s *Scanner) ConfigPath(run, cycle int32, subsystem string) string {
	return naming.ConfigPath(s.Root, s.Layout, run, cycle, 0, subsystem, 0)
}

// Location returns the dataset location of a cycle with size index 0 and
// header version 0.
func (s *Scanner) Location(run, cycle int32, subsystem string) dataset.Location {
	return dataset.Location{
		Root:      s.Root,
		Layout:    s.Layout,
		Run:       run,
		Cycle:     cycle,
		Subsystem: subsystem,
	}
}

// RunSpan computes the time span of one run. The subsystem defaults to the
// first one listed. Failures are reported through the span sentinels.
func (s *Scanner) RunSpan(run int32, subsystem string) types.RunSpan {
	span := types.RunSpan{Run: run, Subsystem: subsystem}

	if span.Subsystem == "" {
		subs, err := s.ListSubsystems(run)
		if len(subs) == 0 {
			span.StartNs, span.EndNs, span.Err = types.SpanNoSubsystem, types.SpanNoSubsystem, err
			return span
		}
		span.Subsystem = subs[0]
	}

	lo, hi, n, err := s.MinMaxCycles(run, span.Subsystem)
	if n == 0 {
		span.StartNs, span.EndNs, span.Err = types.SpanNoCycles, types.SpanNoCycles, err
		return span
	}
	span.MinCycle, span.MaxCycle = lo, hi

	span.StartNs = s.spanBound(run, lo, span.Subsystem, &span.Err, func(ds *dataset.Dataset) int64 {
		return ds.FirstTimestampNs
	})
	span.EndNs = s.spanBound(run, hi, span.Subsystem, &span.Err, func(ds *dataset.Dataset) int64 {
		return ds.LastTimestampNs
	})

	s.logger().Debug().
		Int32("run", run).
		Str("subsystem", span.Subsystem).
		Int32("min_cycle", lo).
		Int32("max_cycle", hi).
		Int64("start", span.StartNs).
		Int64("end", span.EndNs).
		Msg("Run span")
	return span
}

// spanBound quick-parses one cycle header and extracts a bound from it.
// The first parse error is kept in errp.
func (s *Scanner) spanBound(run, cycle int32, subsystem string, errp *error, bound func(*dataset.Dataset) int64) int64 {
	s.init()
	ds, err := s.reader.ParseConfig(s.ConfigPath(run, cycle, subsystem), true)
	if err != nil {
		if *errp == nil {
			*errp = err
		}
		return types.SpanConfigUnreadable
	}
	if len(ds.Schema) == 0 {
		return types.SpanNoColumns
	}
	return bound(ds)
}

// RunTimeSpans returns the span of every run >= startFromRun. An
// unreadable root fails the whole call. The scan reads two headers per run
// and can be slow; catalog.Catalog caches its result.
func (s *Scanner) RunTimeSpans(ctx context.Context, subsystem string, startFromRun int32) ([]types.RunSpan, error) {
	runs, err := s.ListRuns(startFromRun)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	spans := make([]types.RunSpan, 0, len(runs))
	for _, run := range runs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		spans = append(spans, s.RunSpan(run, subsystem))
	}
	return spans, nil
}
