package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	n2errors "github.com/n2edm/n2read/internal/errors"
	"github.com/n2edm/n2read/internal/logger"
	"github.com/n2edm/n2read/internal/naming"
	"github.com/n2edm/n2read/pkg/types"
)

// DefaultConcurrency is the number of parallel transfers when none is set.
const DefaultConcurrency = 4

// Stager downloads archived runs into a local data root, keeping the
// root's layout so the index and reader can use the files in place.
type Stager struct {
	storage     ObjectStorage
	root        string
	layout      types.Layout
	concurrency int
	log         zerolog.Logger
}

// StageResult is the outcome of StageRun.
type StageResult struct {
	Run       int32
	Staged    []string // local paths, downloaded or already present
	Downloads int
	CacheHits int
	Bytes     int64
	Errors    map[string]error // by object key
}

// NewStager creates a stager writing under root.
func NewStager(store ObjectStorage, root string, layout types.Layout, concurrency int) *Stager {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Stager{
		storage:     store,
		root:        root,
		layout:      layout,
		concurrency: concurrency,
		log:         logger.Get("storage"),
	}
}

// runFile reports whether an object key names a header or data file of run,
// restricted to subsystem when it is not empty.
func runFile(key string, layout types.Layout, run int32, subsystem string) bool {
	prefix := naming.RunPrefix(layout, run)
	if !strings.HasPrefix(key, prefix) {
		return false
	}
	name := path.Base(key)
	if layout == types.Sharded && key != prefix+name {
		return false
	}
	if layout == types.Flat && strings.Contains(key, "/") {
		return false
	}
	if h, ok := naming.ParseHeaderName(name); ok {
		return h.Run == run && (subsystem == "" || h.Subsystem == subsystem)
	}
	if d, ok := naming.ParseDataName(name); ok {
		return d.Run == run && (subsystem == "" || d.Subsystem == subsystem)
	}
	return false
}

// StageRun downloads the header and data files of run, or only those of
// subsystem when it is not empty. Files already present locally with the
// stored size are not downloaded again. A run with no stored files fails
// with OBJECT_NOT_FOUND; individual download failures are collected in
// the result and summarized in the returned error.
func (s *Stager) StageRun(ctx context.Context, run int32, subsystem string) (*StageResult, error) {
	objects, err := s.storage.ListObjects(ctx, naming.RunPrefix(s.layout, run))
	if err != nil {
		return nil, n2errors.NewStorageError(n2errors.CodeDownloadFailed, fmt.Sprintf("list run %d", run), err)
	}

	result := &StageResult{Run: run, Errors: make(map[string]error)}
	var queue []ObjectInfo
	for _, obj := range objects {
		if !runFile(obj.Key, s.layout, run, subsystem) {
			continue
		}
		local := filepath.Join(s.root, filepath.FromSlash(obj.Key))
		if info, err := os.Stat(local); err == nil && info.Size() == obj.Size {
			result.Staged = append(result.Staged, local)
			result.CacheHits++
			continue
		}
		queue = append(queue, obj)
	}
	if len(queue) == 0 && result.CacheHits == 0 {
		return nil, n2errors.NewStorageError(n2errors.CodeObjectNotFound,
			fmt.Sprintf("no files for run %d subsystem %q", run, subsystem), nil)
	}

	sem := semaphore.NewWeighted(int64(s.concurrency))
	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, obj := range queue {
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			result.Errors[obj.Key] = err
			mu.Unlock()
			continue
		}
		wg.Add(1)
		go func(obj ObjectInfo) {
			defer sem.Release(1)
			defer wg.Done()

			local := filepath.Join(s.root, filepath.FromSlash(obj.Key))
			err := s.storage.Download(ctx, obj.Key, local)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors[obj.Key] = err
				return
			}
			result.Staged = append(result.Staged, local)
			result.Downloads++
			result.Bytes += obj.Size
		}(obj)
	}
	wg.Wait()

	s.log.Info().
		Int32("run", run).
		Str("subsystem", subsystem).
		Int("downloads", result.Downloads).
		Int("cache_hits", result.CacheHits).
		Int64("bytes", result.Bytes).
		Int("errors", len(result.Errors)).
		Msg("Run staged")

	if len(result.Errors) > 0 {
		return result, n2errors.NewStorageError(n2errors.CodeDownloadFailed,
			fmt.Sprintf("run %d: %d of %d downloads failed", run, len(result.Errors), len(queue)), nil)
	}
	return result, nil
}
