package ledger

import (
	"fmt"
	"iter"

	"tradeledger/internal/ports"
)

// DefaultInitialCapacity is the backing-store size of a new Sequence.
const DefaultInitialCapacity = 2

// Sequence is an append-only dynamic array. The backing store doubles when full
// and existing elements are copied across in order.
type Sequence[T any] struct {
	items []T
	count int
}

// NewSequence creates an empty sequence. Capacities below the default are raised to it.
func NewSequence[T any](initialCapacity int) *Sequence[T] {
	if initialCapacity < DefaultInitialCapacity {
		initialCapacity = DefaultInitialCapacity
	}
	return &Sequence[T]{items: make([]T, initialCapacity)}
}

// Append adds value to the end in amortized O(1).
func (s *Sequence[T]) Append(value T) {
	if s.count == len(s.items) {
		s.resize(2 * len(s.items))
	}
	s.items[s.count] = value
	s.count++
}

func (s *Sequence[T]) resize(newCapacity int) {
	grown := make([]T, newCapacity)
	for i := 0; i < s.count; i++ {
		grown[i] = s.items[i]
	}
	s.items = grown
}

// Get returns the element at index.
func (s *Sequence[T]) Get(index int) (T, error) {
	if index < 0 || index >= s.count {
		var zero T
		return zero, fmt.Errorf("get index %d of sequence with length %d: %w", index, s.count, ports.ErrIndexOutOfRange)
	}
	return s.items[index], nil
}

// Set replaces the element at index.
func (s *Sequence[T]) Set(index int, value T) error {
	if index < 0 || index >= s.count {
		return fmt.Errorf("set index %d of sequence with length %d: %w", index, s.count, ports.ErrIndexOutOfRange)
	}
	s.items[index] = value
	return nil
}

// Len returns the number of stored elements.
func (s *Sequence[T]) Len() int {
	return s.count
}

// Cap returns the size of the backing store.
func (s *Sequence[T]) Cap() int {
	return len(s.items)
}

// All yields index/value pairs in insertion order. The sequence can be ranged
// over any number of times; it reflects the length at the moment iteration starts.
func (s *Sequence[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		n := s.count
		for i := 0; i < n; i++ {
			if !yield(i, s.items[i]) {
				return
			}
		}
	}
}
