// Package buffer provides a generic, thread-safe ring buffer with bounded
// capacity and configurable overflow policies.
//
// The ring buffer backs the capture engine's keystroke history and the
// aggregator's emotion sample history: fixed capacity, oldest entries
// overwritten in place (slot reuse, no per-item heap churn), and cheap
// windowed snapshots for analysis passes. Statistics are always collected;
// Prometheus metrics are optional via WithMetrics().
package buffer

import (
	"github.com/Kojaewoong0504/VibeMusic-sub000/metric"
)

// Buffer is a bounded FIFO ring parameterized by item type T.
// All implementations are safe for concurrent use.
type Buffer[T any] interface {
	// Write adds an item. When the buffer is full the overflow policy
	// decides whether the oldest or the new item is dropped.
	Write(item T) error

	// Read retrieves and removes the oldest item.
	// Returns the zero value and false when the buffer is empty.
	Read() (T, bool)

	// Last returns the most recently written item without removing it.
	Last() (T, bool)

	// Snapshot returns a copy of the buffered items, oldest first.
	// The returned slice is owned by the caller.
	Snapshot() []T

	// Size returns the current number of buffered items.
	Size() int

	// Capacity returns the fixed maximum number of items.
	Capacity() int

	// IsFull reports whether the buffer is at capacity.
	IsFull() bool

	// IsEmpty reports whether the buffer holds no items.
	IsEmpty() bool

	// Clear removes all items and resets slot contents for GC.
	Clear()

	// Stats returns buffer statistics (always collected).
	Stats() *Statistics

	// Close shuts down the buffer. Further writes fail.
	Close() error
}

// OverflowPolicy defines behavior when a write hits a full buffer.
type OverflowPolicy int

const (
	// DropOldest overwrites the oldest item to make room (FIFO eviction).
	DropOldest OverflowPolicy = iota

	// DropNewest discards the incoming item when the buffer is full.
	DropNewest
)

// String returns a human-readable representation of the overflow policy.
func (p OverflowPolicy) String() string {
	switch p {
	case DropOldest:
		return "DropOldest"
	case DropNewest:
		return "DropNewest"
	default:
		return "Unknown"
	}
}

// EvictCallback is invoked with each item removed by the overflow policy
// or by Clear. It runs outside the buffer lock.
type EvictCallback[T any] func(item T)

// Option configures buffer behavior using the functional options pattern.
type Option[T any] func(*options[T])

type options[T any] struct {
	overflowPolicy OverflowPolicy
	evictCallback  EvictCallback[T]
	metricsReg     *metric.Registry
	metricsPrefix  string
}

// WithOverflowPolicy sets the overflow behavior. Defaults to DropOldest.
func WithOverflowPolicy[T any](policy OverflowPolicy) Option[T] {
	return func(o *options[T]) {
		o.overflowPolicy = policy
	}
}

// WithEvictCallback sets a callback invoked for every evicted item.
func WithEvictCallback[T any](cb EvictCallback[T]) Option[T] {
	return func(o *options[T]) {
		o.evictCallback = cb
	}
}

// WithMetrics enables Prometheus export of buffer statistics.
// Ignored when registry is nil or prefix is empty.
func WithMetrics[T any](registry *metric.Registry, prefix string) Option[T] {
	return func(o *options[T]) {
		if registry != nil && prefix != "" {
			o.metricsReg = registry
			o.metricsPrefix = prefix
		}
	}
}

func applyOptions[T any](opts ...Option[T]) *options[T] {
	o := &options[T]{
		overflowPolicy: DropOldest,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// NewRing creates a ring buffer with the given capacity and options.
// Returns an error if metrics registration fails when metrics are requested.
func NewRing[T any](capacity int, opts ...Option[T]) (Buffer[T], error) {
	return newRing(capacity, applyOptions(opts...))
}
