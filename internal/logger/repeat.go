package logger

import (
	"bytes"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// RepeatFilter is an io.Writer placed under zerolog that swallows
// identical log lines seen among the last N distinct messages. A swallowed
// message is written again, tagged with a "repeat" count, once enough
// repeats accumulate, once the interval expires, when its slot is evicted,
// or on Flush.
type RepeatFilter struct {
	mu          sync.Mutex
	out         io.Writer
	slots       []repeatSlot
	maxCount    int
	maxInterval time.Duration
	now         func() time.Time
}

type repeatSlot struct {
	key     string
	line    []byte
	pending int
	first   time.Time
	last    time.Time
}

// NewRepeatFilter wraps out. lastN <= 0 passes every line through.
func NewRepeatFilter(out io.Writer, lastN, maxCount int, maxInterval time.Duration) *RepeatFilter {
	if lastN < 0 {
		lastN = 0
	}
	return &RepeatFilter{
		out:         out,
		slots:       make([]repeatSlot, lastN),
		maxCount:    maxCount,
		maxInterval: maxInterval,
		now:         time.Now,
	}
}

// messageKey identifies a line by every field except the timestamp, so
// the same message about a different file is a different message.
func messageKey(p []byte) string {
	body := bytes.TrimRight(p, "\n")
	if !gjson.ValidBytes(body) {
		return string(body)
	}
	key, err := sjson.DeleteBytes(append([]byte(nil), body...), zerolog.TimestampFieldName)
	if err != nil {
		return string(body)
	}
	return string(key)
}

// Write implements io.Writer.
func (f *RepeatFilter) Write(p []byte) (int, error) {
	if len(f.slots) == 0 {
		return f.out.Write(p)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	key := messageKey(p)

	for i := range f.slots {
		s := &f.slots[i]
		if s.line == nil || s.key != key {
			continue
		}
		s.last = now
		s.pending++
		s.line = append(s.line[:0], p...)
		if (f.maxCount > 0 && s.pending >= f.maxCount) ||
			(f.maxInterval > 0 && now.Sub(s.first) >= f.maxInterval) {
			if err := f.emit(s); err != nil {
				return 0, err
			}
			s.first = now
		}
		return len(p), nil
	}

	idx := f.freeSlot()
	if idx < 0 {
		idx = f.oldestSlot()
		if err := f.emit(&f.slots[idx]); err != nil {
			return 0, err
		}
	}
	f.slots[idx] = repeatSlot{
		key:   key,
		line:  append([]byte(nil), p...),
		first: now,
		last:  now,
	}
	return f.out.Write(p)
}

func (f *RepeatFilter) freeSlot() int {
	for i := range f.slots {
		if f.slots[i].line == nil {
			return i
		}
	}
	return -1
}

func (f *RepeatFilter) oldestSlot() int {
	oldest := 0
	for i := range f.slots {
		if f.slots[i].last.Before(f.slots[oldest].last) {
			oldest = i
		}
	}
	return oldest
}

// emit writes the pending repeat count of a slot, if any.
func (f *RepeatFilter) emit(s *repeatSlot) error {
	if s.pending == 0 {
		return nil
	}
	body := bytes.TrimRight(s.line, "\n")
	line, err := sjson.SetBytes(append([]byte(nil), body...), "repeat", s.pending)
	if err != nil {
		line = append([]byte(nil), body...)
	}
	line = append(line, '\n')
	s.pending = 0
	_, err = f.out.Write(line)
	return err
}

// Flush writes every pending repeat, oldest first, and empties the filter.
func (f *RepeatFilter) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for {
		idx := -1
		for i := range f.slots {
			if f.slots[i].line == nil {
				continue
			}
			if idx < 0 || f.slots[i].last.Before(f.slots[idx].last) {
				idx = i
			}
		}
		if idx < 0 {
			return nil
		}
		if err := f.emit(&f.slots[idx]); err != nil {
			return err
		}
		f.slots[idx] = repeatSlot{}
	}
}
