// Package merge concatenates the rows of several datasets under a
// decimation, time-window and row-count filter.
//
// Decimation is continuous across sources: the number of rows left over
// since the last kept row of one source is carried to the next one, so
// merging a run cycle by cycle keeps exactly the rows a merge of the
// concatenated cycles would keep.
package merge

import (
	"fmt"

	"github.com/n2edm/n2read/internal/dataset"
	n2errors "github.com/n2edm/n2read/internal/errors"
	"github.com/n2edm/n2read/pkg/types"
)

const (
	// GrowthSlack is added to the needed capacity when dst has to grow.
	GrowthSlack = 1000

	// MaxMergeCapacity is the largest row count a merge target may reach.
	MaxMergeCapacity = dataset.MaxCapacity
)

// maxCapacity is the limit grow enforces; tests lower it.
var maxCapacity = MaxMergeCapacity

// Merge moves the rows of src selected by spec into dst and returns how
// many were appended.
//
// Rows src[i] with i = start, start+d, ... are candidates, where d is the
// effective decimation and start = (d - remaining%d) % d. A candidate inside
// the time window is taken out of src; it is appended to dst unless dst
// already holds spec.MaxRows rows, in which case it is dropped. remaining
// is always advanced to (len(src) + remaining) % d, even when nothing is
// appended. A failure to grow dst returns OUT_OF_MEMORY and leaves rows
// appended by earlier calls in place.
func Merge(dst, src *dataset.RowSet, spec types.FilterSpec, remaining *uint32) (int, error) {
	var rem uint32
	if remaining == nil {
		remaining = &rem
	}
	d := spec.EffectiveDecimation()
	n := src.Len()

	start := int((d - *remaining%d) % d)
	*remaining = uint32((uint64(n) + uint64(*remaining)) % uint64(d))

	var selected []int
	for i := start; i < n; i += int(d) {
		if spec.InWindow(src.Timestamp(i)) {
			selected = append(selected, i)
		}
	}
	if len(selected) == 0 {
		return 0, nil
	}

	incoming := len(selected)
	if spec.MaxRows > 0 {
		room := int(spec.MaxRows) - dst.Len()
		if room < 0 {
			room = 0
		}
		if incoming > room {
			incoming = room
		}
	}

	if need := dst.Len() + incoming; incoming > 0 && dst.Cap() < need {
		if err := grow(dst, need+GrowthSlack); err != nil {
			return 0, err
		}
	}

	added := 0
	for _, i := range selected {
		row := src.Take(i)
		if spec.Capped(dst.Len()) {
			continue
		}
		if err := dst.Append(src.Timestamp(i), row); err != nil {
			return added, n2errors.NewInternalError(fmt.Sprintf("append row %d", i), err)
		}
		added++
	}
	return added, nil
}

// grow reserves capacity for n rows, clamped to maxCapacity when the
// slack alone would exceed it.
func grow(dst *dataset.RowSet, n int) error {
	if n > maxCapacity && n-GrowthSlack <= maxCapacity {
		n = maxCapacity
	}
	if n > maxCapacity {
		return n2errors.NewOutOfMemory(fmt.Sprintf("merge needs %d rows", n-GrowthSlack), nil).
			WithDetails(map[string]interface{}{"requested": n - GrowthSlack, "max": maxCapacity})
	}
	return dst.Reserve(n)
}
