// Package syncx provides extended synchronization primitives
package syncx

import "sync"

// Slot is a single-value hand-off between one producer and one consumer.
// Publishing never blocks: an unconsumed value is overwritten (drop-oldest),
// so the consumer always observes the newest value and never a backlog.
type Slot[T any] struct {
	mu       sync.Mutex
	value    T
	pending  bool
	pubCount uint64
	dropped  uint64
}

// NewSlot creates an empty slot.
func NewSlot[T any]() *Slot[T] {
	return &Slot[T]{}
}

// Publish stores v, replacing any unconsumed value.
// Returns true if a pending value was overwritten.
func (s *Slot[T]) Publish(v T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	overwrote := s.pending
	if overwrote {
		s.dropped++
	}
	s.value = v
	s.pending = true
	s.pubCount++
	return overwrote
}

// Take returns the pending value and marks it consumed.
// ok is false when nothing new was published since the last Take.
func (s *Slot[T]) Take() (v T, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.pending {
		var zero T
		return zero, false
	}
	s.pending = false
	return s.value, true
}

// Peek returns the latest value without consuming it.
// ok is false if nothing was ever published.
func (s *Slot[T]) Peek() (v T, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pubCount == 0 {
		var zero T
		return zero, false
	}
	return s.value, true
}

// Dropped returns how many values were overwritten before being consumed.
func (s *Slot[T]) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}
