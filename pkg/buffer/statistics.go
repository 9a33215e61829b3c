package buffer

import (
	"sync/atomic"
	"time"
)

// Statistics tracks buffer activity counters. All methods are safe for
// concurrent use.
type Statistics struct {
	writes    atomic.Int64
	reads     atomic.Int64
	overflows atomic.Int64
	drops     atomic.Int64

	currentSize atomic.Int64
	highWater   atomic.Int64

	startTime time.Time
}

// NewStatistics creates a new statistics tracker.
func NewStatistics() *Statistics {
	return &Statistics{startTime: time.Now()}
}

// Write records a buffer write.
func (s *Statistics) Write() {
	s.writes.Add(1)
}

// Read records a buffer read.
func (s *Statistics) Read() {
	s.reads.Add(1)
}

// Overflow records a write that found the buffer full.
func (s *Statistics) Overflow() {
	s.overflows.Add(1)
}

// Drop records an item discarded by the overflow policy.
func (s *Statistics) Drop() {
	s.drops.Add(1)
}

// UpdateSize records the current buffer size and tracks the high-water mark.
func (s *Statistics) UpdateSize(size int64) {
	s.currentSize.Store(size)
	for {
		high := s.highWater.Load()
		if size <= high || s.highWater.CompareAndSwap(high, size) {
			return
		}
	}
}

// Writes returns the total number of writes.
func (s *Statistics) Writes() int64 { return s.writes.Load() }

// Reads returns the total number of reads.
func (s *Statistics) Reads() int64 { return s.reads.Load() }

// Overflows returns the total number of overflow events.
func (s *Statistics) Overflows() int64 { return s.overflows.Load() }

// Drops returns the total number of dropped items.
func (s *Statistics) Drops() int64 { return s.drops.Load() }

// CurrentSize returns the current number of buffered items.
func (s *Statistics) CurrentSize() int64 { return s.currentSize.Load() }

// HighWater returns the most items the buffer has held.
func (s *Statistics) HighWater() int64 { return s.highWater.Load() }

// Uptime returns the elapsed time since the buffer was created.
func (s *Statistics) Uptime() time.Duration { return time.Since(s.startTime) }
