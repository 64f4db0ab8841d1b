package dataset

import (
	"errors"
	"testing"

	n2errors "github.com/n2edm/n2read/internal/errors"
	"github.com/n2edm/n2read/internal/record"
)

func TestRowSetAppendAndTake(t *testing.T) {
	s := NewRowSet()
	if err := s.Allocate(2); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if s.Cap() != 2 || s.Len() != 0 {
		t.Fatalf("Cap = %d, Len = %d", s.Cap(), s.Len())
	}

	for i := 0; i < 2; i++ {
		if err := s.Append(int64(i), record.Row{0, uint64(i)}); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}
	if err := s.Append(3, record.Row{0, 3}); !errors.Is(err, ErrFull) {
		t.Errorf("expected ErrFull, got %v", err)
	}
	if err := s.Allocate(4); !errors.Is(err, ErrNotEmpty) {
		t.Errorf("expected ErrNotEmpty, got %v", err)
	}

	row := s.Take(1)
	if row.Uint64(1) != 1 {
		t.Errorf("Take returned %v", row)
	}
	if s.Row(1) != nil {
		t.Error("taken slot should be nil")
	}
	if s.Len() != 2 {
		t.Errorf("Take must not shrink the set, Len = %d", s.Len())
	}

	if err := s.Reserve(10); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if s.Cap() < 10 || s.Len() != 2 || s.Timestamp(0) != 0 || s.Timestamp(1) != 1 {
		t.Errorf("Reserve lost rows: cap=%d len=%d", s.Cap(), s.Len())
	}

	s.Clear()
	if s.Len() != 0 || s.Cap() != 0 {
		t.Errorf("Clear left len=%d cap=%d", s.Len(), s.Cap())
	}
}

func TestRowSetReserveTooLarge(t *testing.T) {
	s := NewRowSet()
	err := s.Reserve(MaxCapacity + 1)
	if !errors.Is(err, n2errors.ErrOutOfMemory) {
		t.Fatalf("expected OutOfMemory, got %v", err)
	}
	if s.Cap() != 0 {
		t.Errorf("failed Reserve changed capacity to %d", s.Cap())
	}
}

func TestNilRowSet(t *testing.T) {
	var s *RowSet
	if s.Len() != 0 || s.Cap() != 0 || s.Timestamps() != nil {
		t.Error("nil RowSet should be empty")
	}
	s.Clear()
}
