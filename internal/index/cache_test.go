package index

import (
	"errors"
	"sync"
	"testing"

	"github.com/n2edm/n2read/pkg/types"
)

func TestCacheHitsAndMisses(t *testing.T) {
	c := NewCache()
	loads := 0
	load := func(dir string) ([]Entry, error) {
		loads++
		return []Entry{{Name: dir + "-x"}}, nil
	}

	for i := 0; i < 3; i++ {
		got, err := c.Get("a", load)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if len(got) != 1 || got[0].Name != "a-x" {
			t.Errorf("unexpected entries %v", got)
		}
	}
	if loads != 1 {
		t.Errorf("expected 1 load, got %d", loads)
	}
	hits, misses := c.Stats()
	if hits != 2 || misses != 1 {
		t.Errorf("expected 2 hits and 1 miss, got %d and %d", hits, misses)
	}

	c.Invalidate("a")
	if _, err := c.Get("a", load); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if loads != 2 {
		t.Errorf("expected reload after Invalidate, got %d loads", loads)
	}

	c.Reset()
	if c.Len() != 0 {
		t.Errorf("expected empty cache after Reset, got %d", c.Len())
	}
	hits, misses = c.Stats()
	if hits != 0 || misses != 0 {
		t.Errorf("expected zero counters after Reset, got %d and %d", hits, misses)
	}
}

func TestCacheDoesNotKeepErrors(t *testing.T) {
	c := NewCache()
	boom := errors.New("boom")
	if _, err := c.Get("a", func(string) ([]Entry, error) { return nil, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected load error, got %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("failed load must not be cached")
	}
}

func TestNilCacheAlwaysLoads(t *testing.T) {
	var c *Cache
	loads := 0
	for i := 0; i < 2; i++ {
		c.Get("a", func(string) ([]Entry, error) { loads++; return nil, nil })
	}
	if loads != 2 {
		t.Errorf("expected 2 loads, got %d", loads)
	}
	c.Reset()
	c.Invalidate("a")
	if c.Len() != 0 {
		t.Errorf("nil cache must be empty")
	}
}

func TestCacheConcurrent(t *testing.T) {
	c := NewCache()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Get("a", func(string) ([]Entry, error) { return []Entry{{Name: "x"}}, nil })
			}
		}()
	}
	wg.Wait()
	hits, misses := c.Stats()
	if hits+misses != 1600 {
		t.Errorf("expected 1600 lookups, got %d", hits+misses)
	}
}

func TestScannerUsesCache(t *testing.T) {
	root := t.TempDir()
	writeCycle(t, root, types.Sharded, 1, 1, "coils")

	s := NewScanner(root, types.Sharded)
	if _, err := s.ListSubsystems(1); err != nil {
		t.Fatalf("ListSubsystems failed: %v", err)
	}
	if _, err := s.ListCycles(1, "coils"); err != nil {
		t.Fatalf("ListCycles failed: %v", err)
	}
	hits, _ := s.Cache.Stats()
	if hits == 0 {
		t.Errorf("expected the run directory listing to be reused")
	}
}
