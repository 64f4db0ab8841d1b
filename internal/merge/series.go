package merge

import (
	"context"
	"errors"
	"fmt"

	"github.com/n2edm/n2read/internal/dataset"
	n2errors "github.com/n2edm/n2read/internal/errors"
	"github.com/n2edm/n2read/internal/logger"
	"github.com/n2edm/n2read/pkg/types"
)

// ErrNoCycles is returned when a run has no readable cycle in range.
var ErrNoCycles = errors.New("no cycles to read")

// Source lists the cycles of a run and locates their files.
// index.Scanner implements it.
type Source interface {
	ListCycles(run int32, subsystem string) ([]int32, error)
	Location(run, cycle int32, subsystem string) dataset.Location
}

// SeriesRequest selects the cycles of one run and subsystem.
type SeriesRequest struct {
	Run       int32
	Subsystem string

	// CycleFrom and CycleTo bound the cycles read, inclusive. A CycleTo
	// of 0 is unbounded.
	CycleFrom int32
	CycleTo   int32

	Filter types.FilterSpec
}

// Series is the merged result of ReadRunSeries.
type Series struct {
	Dataset *dataset.Dataset

	// Cycles lists the cycles merged, Skipped those whose config was
	// missing or unusable
	Cycles  []int32
	Skipped []int32

	Reports   []*dataset.ReadReport
	Remaining uint32
}

// ReadRunSeries reads the cycles of a run in order and merges them into one
// dataset. Every cycle is read with the first cycle's first timestamp as
// time origin so the relative time axis is continuous. Cycles whose config
// cannot be used are skipped; the context is checked between files.
func ReadRunSeries(ctx context.Context, reader *dataset.Reader, src Source, req SeriesRequest) (*Series, error) {
	log := logger.Get("merge")

	cycles, err := src.ListCycles(req.Run, req.Subsystem)
	if err != nil {
		return nil, fmt.Errorf("list cycles of run %d: %w", req.Run, err)
	}

	series := &Series{}
	session := NewSession(req.Filter)
	var origin int64

	for _, cycle := range cycles {
		if cycle < req.CycleFrom || (req.CycleTo != 0 && cycle > req.CycleTo) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if session.Full() {
			log.Debug().Int32("run", req.Run).Int32("cycle", cycle).Msg("MaxRows reached, stopping")
			break
		}

		loc := src.Location(req.Run, cycle, req.Subsystem)
		ds, report, err := reader.ReadDataset(loc, origin)
		if err != nil {
			if n2errors.GetCategory(err) == n2errors.ErrCategoryConfig || errors.Is(err, types.ErrEmptySchema) {
				log.Warn().Err(err).Int32("run", req.Run).Int32("cycle", cycle).Msg("Skipping cycle")
				series.Skipped = append(series.Skipped, cycle)
				continue
			}
			return nil, err
		}
		if origin == 0 {
			origin = ds.FirstTimestampNs
		}

		if _, err := session.Add(ds); err != nil {
			return nil, err
		}
		series.Cycles = append(series.Cycles, cycle)
		series.Reports = append(series.Reports, report)
		ds.Clear()
	}

	if session.Result() == nil {
		return nil, fmt.Errorf("run %d subsystem %s: %w", req.Run, req.Subsystem, ErrNoCycles)
	}
	series.Dataset = session.Result()
	series.Remaining = session.Remaining()

	log.Info().
		Int32("run", req.Run).
		Str("subsystem", req.Subsystem).
		Int("cycles", len(series.Cycles)).
		Int("skipped", len(series.Skipped)).
		Int("rows", series.Dataset.Len()).
		Msg("Run series read")
	return series, nil
}
