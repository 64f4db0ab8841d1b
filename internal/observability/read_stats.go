// Package observability tracks per-subsystem read statistics.
package observability

import (
	"sort"
	"sync"
	"time"
)

// ReadStats accumulates what has been read per subsystem.
type ReadStats struct {
	mu         sync.RWMutex
	subsystems map[string]*SubsystemStats
	window     time.Duration
	now        func() time.Time
}

// SubsystemStats holds the counters of one subsystem.
type SubsystemStats struct {
	Subsystem         string
	Files             int64
	Rows              int64
	IntegrityWarnings int64
	ShortFiles        int64
	LastSeen          time.Time
	Runs              map[int32]int // run → files read
}

// NewReadStats creates a new read statistics tracker.
// window: age after which Prune drops a subsystem (0 keeps everything)
func NewReadStats(window time.Duration) *ReadStats {
	return &ReadStats{
		subsystems: make(map[string]*SubsystemStats),
		window:     window,
		now:        time.Now,
	}
}

// RecordRead records one data file read.
// short: fewer rows were read than the file size promised
// This method is O(1) and thread-safe.
func (s *ReadStats) RecordRead(subsystem string, run int32, rows, warnings int, short bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats, exists := s.subsystems[subsystem]
	if !exists {
		stats = &SubsystemStats{
			Subsystem: subsystem,
			Runs:      make(map[int32]int),
		}
		s.subsystems[subsystem] = stats
	}

	stats.Files++
	stats.Rows += int64(rows)
	stats.IntegrityWarnings += int64(warnings)
	if short {
		stats.ShortFiles++
	}
	stats.LastSeen = s.now()
	stats.Runs[run]++
}

// Get returns a copy of the counters of one subsystem.
func (s *ReadStats) Get(subsystem string) (SubsystemStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats, ok := s.subsystems[subsystem]
	if !ok {
		return SubsystemStats{}, false
	}
	return stats.copy(), true
}

// Top returns the n subsystems with the most rows read, descending.
func (s *ReadStats) Top(n int) []SubsystemStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 || len(s.subsystems) == 0 {
		return []SubsystemStats{}
	}

	stats := make([]SubsystemStats, 0, len(s.subsystems))
	for _, st := range s.subsystems {
		stats = append(stats, st.copy())
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Rows != stats[j].Rows {
			return stats[i].Rows > stats[j].Rows
		}
		return stats[i].Subsystem < stats[j].Subsystem
	})

	if n > len(stats) {
		n = len(stats)
	}
	return stats[:n]
}

// Totals sums the counters of every subsystem. Runs is left nil.
func (s *ReadStats) Totals() SubsystemStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total SubsystemStats
	for _, st := range s.subsystems {
		total.Files += st.Files
		total.Rows += st.Rows
		total.IntegrityWarnings += st.IntegrityWarnings
		total.ShortFiles += st.ShortFiles
		if st.LastSeen.After(total.LastSeen) {
			total.LastSeen = st.LastSeen
		}
	}
	return total
}

// Prune removes subsystems not read within the window.
func (s *ReadStats) Prune() {
	if s.window <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	threshold := s.now().Add(-s.window)
	for name, st := range s.subsystems {
		if st.LastSeen.Before(threshold) {
			delete(s.subsystems, name)
		}
	}
}

// Reset drops every counter.
func (s *ReadStats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subsystems = make(map[string]*SubsystemStats)
}

func (st *SubsystemStats) copy() SubsystemStats {
	cp := *st
	cp.Runs = make(map[int32]int, len(st.Runs))
	for run, n := range st.Runs {
		cp.Runs[run] = n
	}
	return cp
}
