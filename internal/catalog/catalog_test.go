package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/n2edm/n2read/internal/dataset"
	"github.com/n2edm/n2read/internal/index"
	"github.com/n2edm/n2read/internal/naming"
	"github.com/n2edm/n2read/internal/record"
	"github.com/n2edm/n2read/pkg/types"
)

const testFirst = int64(1577836800000000000)

// runStart is the first timestamp written for a run: one hour per run.
func runStart(run int32) int64 {
	return testFirst + int64(run)*3600e9
}

// writeRun writes cycles 1..cycles of subsystem for run, ten seconds each,
// one row per second.
func writeRun(t *testing.T, root string, run int32, subsystem string, cycles int32) {
	t.Helper()
	for c := int32(1); c <= cycles; c++ {
		ds := &dataset.Dataset{
			Name:      subsystem,
			Subsystem: subsystem,
			EOL:       0xDEADBEEF,
			Run:       run,
			Cycle:     c,
			Schema: types.Schema{
				{Name: "t", DataType: "uint64"},
				{Name: "v", DataType: "uint64"},
			},
			Rows: dataset.NewRowSet(),
		}
		if err := ds.Rows.Allocate(10); err != nil {
			t.Fatalf("Allocate failed: %v", err)
		}
		base := runStart(run) + int64(c-1)*10e9
		for i := int64(0); i < 10; i++ {
			if err := ds.Rows.Append(base+i*1e9, record.Row{0, uint64(i)}); err != nil {
				t.Fatalf("Append failed: %v", err)
			}
		}
		if _, err := dataset.Write(ds, root, types.Sharded); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
}

func runEnd(run, cycles int32) int64 {
	return runStart(run) + int64(cycles-1)*10e9 + 9e9
}

func openCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("failed to open catalog: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCatalog_RefreshAndSpans(t *testing.T) {
	root := t.TempDir()
	writeRun(t, root, 1, "coils", 3)
	writeRun(t, root, 2, "coils", 1)
	writeRun(t, root, 2, "pumps", 2)
	if err := os.MkdirAll(naming.RunDir(root, types.Sharded, 3), 0755); err != nil {
		t.Fatal(err)
	}

	c := openCatalog(t)
	s := index.NewScanner(root, types.Sharded)
	ctx := context.Background()

	res, err := c.Refresh(ctx, s, RefreshOptions{Workers: 2})
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if res.Scanned != 3 || res.Skipped != 0 || res.Failed != 1 {
		t.Errorf("unexpected result %+v", res)
	}
	if res.ScanID == "" {
		t.Errorf("expected a scan id")
	}

	spans, err := c.Spans(ctx)
	if err != nil {
		t.Fatalf("Spans failed: %v", err)
	}
	if len(spans) != 3 {
		t.Fatalf("expected 3 spans, got %d", len(spans))
	}
	if spans[0].StartNs != runStart(1) || spans[0].EndNs != runEnd(1, 3) {
		t.Errorf("run 1 span mismatch: %+v", spans[0])
	}
	if spans[0].MinCycle != 1 || spans[0].MaxCycle != 3 {
		t.Errorf("run 1 cycles mismatch: %+v", spans[0])
	}
	if spans[1].Subsystem != "coils" {
		t.Errorf("expected first subsystem coils for run 2, got %q", spans[1].Subsystem)
	}
	if spans[2].StartNs != types.SpanNoSubsystem {
		t.Errorf("expected no-subsystem sentinel for run 3, got %d", spans[2].StartNs)
	}

	span, ok, err := c.Span(ctx, 2)
	if err != nil || !ok {
		t.Fatalf("Span(2) failed: ok=%v err=%v", ok, err)
	}
	if span.EndNs != runEnd(2, 1) {
		t.Errorf("run 2 end mismatch: got %d", span.EndNs)
	}
	if _, ok, _ := c.Span(ctx, 99); ok {
		t.Errorf("expected run 99 to be absent")
	}

	last, err := c.LastScan(ctx)
	if err != nil || last == nil {
		t.Fatalf("LastScan failed: %v", err)
	}
	if last.ScanID != res.ScanID || last.RunsScanned != 3 || last.Root != root {
		t.Errorf("unexpected scan record %+v", last)
	}
}

func TestCatalog_RefreshSkipsUnchangedRuns(t *testing.T) {
	root := t.TempDir()
	writeRun(t, root, 1, "coils", 2)
	writeRun(t, root, 2, "coils", 2)

	c := openCatalog(t)
	s := index.NewScanner(root, types.Sharded)
	ctx := context.Background()

	if _, err := c.Refresh(ctx, s, RefreshOptions{}); err != nil {
		t.Fatalf("first Refresh failed: %v", err)
	}

	// a new cycle changes run 2's last header
	writeRun(t, root, 2, "coils", 3)
	s.Cache.Reset()

	res, err := c.Refresh(ctx, s, RefreshOptions{})
	if err != nil {
		t.Fatalf("second Refresh failed: %v", err)
	}
	if res.Skipped != 1 || res.Scanned != 1 {
		t.Errorf("expected 1 skipped and 1 scanned, got %+v", res)
	}
	span, _, _ := c.Span(ctx, 2)
	if span.MaxCycle != 3 || span.EndNs != runEnd(2, 3) {
		t.Errorf("run 2 not rescanned: %+v", span)
	}

	res, err = c.Refresh(ctx, s, RefreshOptions{Force: true})
	if err != nil {
		t.Fatalf("forced Refresh failed: %v", err)
	}
	if res.Skipped != 0 || res.Scanned != 2 {
		t.Errorf("forced refresh must rescan everything, got %+v", res)
	}
}

func TestCatalog_RefreshPicksUpNewSubsystem(t *testing.T) {
	root := t.TempDir()
	writeRun(t, root, 1, "coils", 2)

	c := openCatalog(t)
	s := index.NewScanner(root, types.Sharded)
	ctx := context.Background()
	if _, err := c.Refresh(ctx, s, RefreshOptions{Subsystem: "coils"}); err != nil {
		t.Fatalf("first Refresh failed: %v", err)
	}

	// the coils headers are untouched, only the subsystem list changes
	writeRun(t, root, 1, "pumps", 1)
	s.Cache.Reset()

	res, err := c.Refresh(ctx, s, RefreshOptions{Subsystem: "coils"})
	if err != nil {
		t.Fatalf("second Refresh failed: %v", err)
	}
	if res.Skipped != 0 || res.Scanned != 1 {
		t.Errorf("expected run 1 rescanned, got %+v", res)
	}
	runs, err := c.RunsWithSubsystem(ctx, "pumps")
	if err != nil {
		t.Fatalf("RunsWithSubsystem failed: %v", err)
	}
	if len(runs) != 1 || runs[0] != 1 {
		t.Errorf("expected run 1 to carry pumps, got %v", runs)
	}

	res, err = c.Refresh(ctx, s, RefreshOptions{Subsystem: "coils"})
	if err != nil {
		t.Fatalf("third Refresh failed: %v", err)
	}
	if res.Skipped != 1 {
		t.Errorf("expected run 1 skipped once unchanged, got %+v", res)
	}
}

func TestCatalog_RunsBetween(t *testing.T) {
	root := t.TempDir()
	for run := int32(1); run <= 4; run++ {
		writeRun(t, root, run, "coils", 1)
	}

	c := openCatalog(t)
	ctx := context.Background()
	if _, err := c.Refresh(ctx, index.NewScanner(root, types.Sharded), RefreshOptions{}); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	tests := []struct {
		name       string
		start, end int64
		want       []int32
	}{
		{"open", 0, 0, []int32{1, 2, 3, 4}},
		{"inside run 2", runStart(2) + 1e9, runStart(2) + 2e9, []int32{2}},
		{"spanning 2 and 3", runStart(2) + 5e9, runStart(3) + 5e9, []int32{2, 3}},
		{"from run 3", runStart(3), 0, []int32{3, 4}},
		{"until run 1", 0, runStart(1), []int32{1}},
		{"gap", runStart(1) + 100e9, runStart(2) - 1, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.RunsBetween(ctx, tt.start, tt.end)
			if err != nil {
				t.Fatalf("RunsBetween failed: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestCatalog_RunsWithSubsystem(t *testing.T) {
	root := t.TempDir()
	writeRun(t, root, 1, "coils", 1)
	writeRun(t, root, 2, "pumps", 1)
	writeRun(t, root, 3, "coils", 1)
	writeRun(t, root, 3, "pumps", 1)

	c := openCatalog(t)
	ctx := context.Background()
	if _, err := c.Refresh(ctx, index.NewScanner(root, types.Sharded), RefreshOptions{}); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	runs, err := c.RunsWithSubsystem(ctx, "pumps")
	if err != nil {
		t.Fatalf("RunsWithSubsystem failed: %v", err)
	}
	// filters have no false negatives
	found := map[int32]bool{}
	for _, r := range runs {
		found[r] = true
	}
	if !found[2] || !found[3] {
		t.Errorf("expected runs 2 and 3 in %v", runs)
	}

	f, err := c.SubsystemFilter(ctx, 1)
	if err != nil || f == nil {
		t.Fatalf("SubsystemFilter failed: %v", err)
	}
	if !f.ContainsString("coils") || f.Count() != 1 {
		t.Errorf("unexpected filter for run 1")
	}
	if f, _ := c.SubsystemFilter(ctx, 42); f != nil {
		t.Errorf("expected no filter for run 42")
	}
}

func TestCatalog_RefreshUnreadableRoot(t *testing.T) {
	c := openCatalog(t)
	s := index.NewScanner(filepath.Join(t.TempDir(), "missing"), types.Sharded)
	if _, err := c.Refresh(context.Background(), s, RefreshOptions{}); err == nil {
		t.Fatalf("expected error for missing root")
	}
	last, err := c.LastScan(context.Background())
	if err != nil {
		t.Fatalf("LastScan failed: %v", err)
	}
	if last != nil {
		t.Errorf("a failed refresh must not be recorded")
	}
}

func TestRefresher_IntervalLoop(t *testing.T) {
	root := t.TempDir()
	writeRun(t, root, 1, "coils", 1)

	c := openCatalog(t)
	r, err := NewRefresher(c, index.NewScanner(root, types.Sharded), RefresherConfig{Interval: time.Hour})
	if err != nil {
		t.Fatalf("NewRefresher failed: %v", err)
	}
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := r.Start(context.Background()); err == nil {
		t.Errorf("expected error starting twice")
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		if res, _ := r.Last(); res != nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("initial refresh did not run")
		}
		time.Sleep(10 * time.Millisecond)
	}
	r.Stop()
	r.Stop()

	spans, err := c.Spans(context.Background())
	if err != nil || len(spans) != 1 {
		t.Errorf("expected one cached span, got %d (%v)", len(spans), err)
	}
}

func TestRefresher_Config(t *testing.T) {
	c := openCatalog(t)
	s := index.NewScanner(t.TempDir(), types.Sharded)

	if _, err := NewRefresher(c, s, RefresherConfig{}); err == nil {
		t.Errorf("expected error without schedule or interval")
	}
	if _, err := NewRefresher(c, s, RefresherConfig{Schedule: "not a schedule"}); err == nil {
		t.Errorf("expected error for invalid schedule")
	}
	r, err := NewRefresher(c, s, RefresherConfig{Schedule: "*/5 * * * *"})
	if err != nil {
		t.Fatalf("NewRefresher failed: %v", err)
	}
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	r.Stop()

	if _, err := r.RunOnce(canceledContext()); err == nil {
		t.Errorf("expected error for canceled context")
	}
}

func canceledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}
