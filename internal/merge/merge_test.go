package merge

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/n2edm/n2read/internal/dataset"
	n2errors "github.com/n2edm/n2read/internal/errors"
	"github.com/n2edm/n2read/internal/record"
	"github.com/n2edm/n2read/pkg/types"
)

// rowSet builds a RowSet whose timestamps are base, base+1, ... and whose
// slot 1 repeats the timestamp.
func rowSet(t testing.TB, base int64, n int) *dataset.RowSet {
	s := dataset.NewRowSet()
	if err := s.Allocate(n); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	for i := 0; i < n; i++ {
		ts := base + int64(i)
		if err := s.Append(ts, record.Row{0, uint64(ts)}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	return s
}

func TestMergeRoundTrip(t *testing.T) {
	src := rowSet(t, 100, 7)
	dst := dataset.NewRowSet()
	var rem uint32

	n, err := Merge(dst, src, types.FilterSpec{}, &rem)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Equal(t, uint32(0), rem)
	for i := 0; i < 7; i++ {
		assert.Equal(t, int64(100+i), dst.Timestamp(i))
		assert.Equal(t, uint64(100+i), dst.Row(i).Uint64(1))
		assert.Nil(t, src.Row(i), "row %d still owned by source", i)
	}
	assert.Equal(t, 7+GrowthSlack, dst.Cap())
}

func TestMergeDecimation(t *testing.T) {
	tests := []struct {
		name    string
		rows    int
		dec     uint32
		rem     uint32
		wantTS  []int64
		wantRem uint32
	}{
		{"ceil of 10/3", 10, 3, 0, []int64{0, 3, 6, 9}, 1},
		{"fewer rows than step", 2, 5, 0, []int64{0}, 2},
		{"carried remainder", 6, 4, 3, []int64{1, 5}, 1},
		{"remainder reaches past source", 2, 5, 1, nil, 3},
		{"zero decimation is one", 3, 0, 0, []int64{0, 1, 2}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := rowSet(t, 0, tt.rows)
			dst := dataset.NewRowSet()
			rem := tt.rem

			n, err := Merge(dst, src, types.FilterSpec{Decimation: tt.dec}, &rem)
			require.NoError(t, err)
			assert.Equal(t, len(tt.wantTS), n)
			if len(tt.wantTS) == 0 {
				assert.Empty(t, dst.Timestamps())
			} else {
				assert.Equal(t, tt.wantTS, dst.Timestamps())
			}
			assert.Equal(t, tt.wantRem, rem)
		})
	}
}

func TestMergeWindow(t *testing.T) {
	src := rowSet(t, 10, 10) // 10..19
	dst := dataset.NewRowSet()
	var rem uint32

	n, err := Merge(dst, src, types.FilterSpec{StartTimestampNs: 12, EndTimestampNs: 15}, &rem)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []int64{12, 13, 14, 15}, dst.Timestamps())
	assert.NotNil(t, src.Row(0), "rows outside the window stay in the source")
	assert.Nil(t, src.Row(2))
}

func TestMergeMaxRows(t *testing.T) {
	spec := types.FilterSpec{Decimation: 2, MaxRows: 3}
	dst := dataset.NewRowSet()
	var rem uint32

	n, err := Merge(dst, rowSet(t, 0, 5), spec, &rem)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, uint32(1), rem)

	src := rowSet(t, 5, 5)
	n, err = Merge(dst, src, spec, &rem)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 3, dst.Len())
	assert.Equal(t, uint32(0), rem, "remaining advances even when capped")
	assert.Nil(t, src.Row(1), "selected rows beyond the cap are released")
}

func TestMergeEmptySource(t *testing.T) {
	dst := dataset.NewRowSet()
	rem := uint32(7)
	n, err := Merge(dst, dataset.NewRowSet(), types.FilterSpec{Decimation: 5}, &rem)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, uint32(2), rem)
}

func TestMergeKeepsExistingRows(t *testing.T) {
	dst := rowSet(t, 0, 2)
	var rem uint32
	n, err := Merge(dst, rowSet(t, 2, 3), types.FilterSpec{}, &rem)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []int64{0, 1, 2, 3, 4}, dst.Timestamps())
	assert.Equal(t, 5+GrowthSlack, dst.Cap())
}

func TestSession(t *testing.T) {
	spec := types.FilterSpec{Decimation: 3}
	s := NewSession(spec)
	assert.Nil(t, s.Result())

	first := &dataset.Dataset{Name: "coils", Run: 2, Cycle: 1, FirstTimestampNs: 1, LastTimestampNs: 4, Rows: rowSet(t, 0, 4)}
	second := &dataset.Dataset{Name: "coils", Run: 2, Cycle: 2, FirstTimestampNs: 5, LastTimestampNs: 9, Rows: rowSet(t, 4, 5)}

	n, err := s.Add(first)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, uint32(1), s.Remaining())

	n, err = s.Add(second)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	res := s.Result()
	assert.Equal(t, []int64{0, 3, 6}, res.Rows.Timestamps())
	assert.Equal(t, int32(1), res.Cycle)
	assert.Equal(t, int64(9), res.LastTimestampNs)
	assert.Equal(t, spec, res.Filter)
	assert.Equal(t, 2, s.Files())
	assert.False(t, s.Full())
}

func TestSessionFull(t *testing.T) {
	s := NewSession(types.FilterSpec{MaxRows: 2})
	_, err := s.Add(&dataset.Dataset{Rows: rowSet(t, 0, 5)})
	require.NoError(t, err)
	assert.True(t, s.Full())
	assert.Equal(t, 2, s.Result().Len())
}

func TestMergeOutOfMemoryKeepsRows(t *testing.T) {
	saved := maxCapacity
	maxCapacity = 10
	t.Cleanup(func() { maxCapacity = saved })

	dst := dataset.NewRowSet()
	var rem uint32
	n, err := Merge(dst, rowSet(t, 0, 8), types.FilterSpec{}, &rem)
	require.NoError(t, err)
	require.Equal(t, 8, n)
	assert.Equal(t, 10, dst.Cap(), "slack clamped to the limit")

	src := rowSet(t, 100, 5)
	n, err = Merge(dst, src, types.FilterSpec{}, &rem)
	require.Error(t, err)
	assert.True(t, errors.Is(err, n2errors.ErrOutOfMemory))
	assert.Equal(t, 0, n)

	// no rollback: earlier rows stay, the source keeps its rows
	require.Equal(t, 8, dst.Len())
	for i := 0; i < 8; i++ {
		assert.Equal(t, int64(i), dst.Timestamp(i))
		assert.NotNil(t, dst.Row(i))
	}
	for i := 0; i < 5; i++ {
		assert.NotNil(t, src.Row(i), "row %d taken from source", i)
	}
}
