package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/n2edm/n2read/internal/logger"
	"github.com/n2edm/n2read/internal/naming"
	"github.com/n2edm/n2read/pkg/types"
)

// Publisher uploads locally written runs, such as exported series, to an
// object store under the same relative keys the Stager reads.
type Publisher struct {
	storage     ObjectStorage
	root        string
	layout      types.Layout
	concurrency int
	log         zerolog.Logger
}

// PublishResult is the outcome of PublishRun.
type PublishResult struct {
	Run      int32
	Uploaded []string // object keys
	Bytes    int64
}

// NewPublisher creates a publisher reading from root.
func NewPublisher(store ObjectStorage, root string, layout types.Layout, concurrency int) *Publisher {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Publisher{
		storage:     store,
		root:        root,
		layout:      layout,
		concurrency: concurrency,
		log:         logger.Get("storage"),
	}
}

// ObjectKey returns the key of a run file in the store.
func ObjectKey(layout types.Layout, run int32, name string) string {
	if layout == types.Flat {
		return name
	}
	return naming.RunPrefix(layout, run) + name
}

type upload struct {
	local string
	key   string
	size  int64
}

// PublishRun uploads every header and data file of run. Data files go
// first so that a listed header always has its data.
func (p *Publisher) PublishRun(ctx context.Context, run int32) (*PublishResult, error) {
	dir := naming.RunDir(p.root, p.layout, run)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("publish run %d: %w", run, err)
	}

	var data, headers []upload
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("publish run %d: %w", run, err)
		}
		u := upload{
			local: filepath.Join(dir, e.Name()),
			key:   ObjectKey(p.layout, run, e.Name()),
			size:  info.Size(),
		}
		if h, ok := naming.ParseHeaderName(e.Name()); ok && h.Run == run {
			headers = append(headers, u)
		} else if d, ok := naming.ParseDataName(e.Name()); ok && d.Run == run {
			data = append(data, u)
		}
	}
	if len(data)+len(headers) == 0 {
		return nil, fmt.Errorf("publish run %d: no files in %s", run, dir)
	}

	result := &PublishResult{Run: run}
	for _, batch := range [][]upload{data, headers} {
		if err := p.uploadAll(ctx, batch); err != nil {
			return nil, err
		}
		for _, u := range batch {
			result.Uploaded = append(result.Uploaded, u.key)
			result.Bytes += u.size
		}
	}
	sort.Strings(result.Uploaded)

	p.log.Info().
		Int32("run", run).
		Int("files", len(result.Uploaded)).
		Int64("bytes", result.Bytes).
		Msg("Run published")
	return result, nil
}

func (p *Publisher) uploadAll(ctx context.Context, batch []upload) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for _, u := range batch {
		u := u
		g.Go(func() error {
			return p.storage.Upload(gctx, u.local, u.key)
		})
	}
	return g.Wait()
}
