package kdtree

import (
	"iter"
	"math"
	"sort"
)

// BoundedSortedArray keeps the entries with the smallest keys seen so far, up
// to a fixed capacity, in ascending key order. Entries with equal keys keep
// their insertion order. Backing storage is allocated once by
// [NewBoundedSortedArray]; Insert and Clear never reallocate.
type BoundedSortedArray[T any] struct {
	keys   []float64
	values []T
}

// NewBoundedSortedArray returns an empty array holding at most capacity
// entries. Panics if capacity is negative.
func NewBoundedSortedArray[T any](capacity int) *BoundedSortedArray[T] {
	if capacity < 0 {
		panic("kdtree: BoundedSortedArray capacity must be >= 0")
	}
	return &BoundedSortedArray[T]{
		keys:   make([]float64, 0, capacity),
		values: make([]T, 0, capacity),
	}
}

func (a *BoundedSortedArray[T]) Capacity() int { return cap(a.keys) }
func (a *BoundedSortedArray[T]) Len() int      { return len(a.keys) }
func (a *BoundedSortedArray[T]) IsFull() bool  { return len(a.keys) == cap(a.keys) }

// Clear empties the array without releasing its storage.
func (a *BoundedSortedArray[T]) Clear() {
	var zero T
	for i := range a.values {
		a.values[i] = zero
	}
	a.keys = a.keys[:0]
	a.values = a.values[:0]
}

// MaxKey returns the largest key held, or +Inf when empty.
func (a *BoundedSortedArray[T]) MaxKey() float64 {
	if len(a.keys) == 0 {
		return math.Inf(1)
	}
	return a.keys[len(a.keys)-1]
}

// MinKey returns the smallest key held, or -Inf when empty.
func (a *BoundedSortedArray[T]) MinKey() float64 {
	if len(a.keys) == 0 {
		return math.Inf(-1)
	}
	return a.keys[0]
}

// Key returns the i-th smallest key.
func (a *BoundedSortedArray[T]) Key(i int) float64 { return a.keys[i] }

// Value returns the payload of the i-th smallest key.
func (a *BoundedSortedArray[T]) Value(i int) T { return a.values[i] }

// IsInsertable reports whether Insert(key, ...) would modify the array.
func (a *BoundedSortedArray[T]) IsInsertable(key float64) bool {
	if cap(a.keys) == 0 {
		return false
	}
	return !a.IsFull() || key < a.keys[len(a.keys)-1]
}

// Insert adds (key, v) if the array is not full or key is strictly less than
// the current maximum, evicting the maximum in the latter case. It reports
// whether the entry was stored.
func (a *BoundedSortedArray[T]) Insert(key float64, v T) bool {
	if !a.IsInsertable(key) {
		return false
	}

	// Upper bound keeps equal keys in insertion order.
	n := len(a.keys)
	pos := sort.Search(n, func(i int) bool { return a.keys[i] > key })

	if n < cap(a.keys) {
		a.keys = a.keys[:n+1]
		a.values = a.values[:n+1]
	}
	// When full the last entry falls off the end.
	copy(a.keys[pos+1:], a.keys[pos:])
	copy(a.values[pos+1:], a.values[pos:])
	a.keys[pos] = key
	a.values[pos] = v
	return true
}

// All iterates over (key, value) pairs in ascending key order.
func (a *BoundedSortedArray[T]) All() iter.Seq2[float64, T] {
	return func(yield func(float64, T) bool) {
		for i := range a.keys {
			if !yield(a.keys[i], a.values[i]) {
				return
			}
		}
	}
}

// Values returns a copy of the payloads in ascending key order.
func (a *BoundedSortedArray[T]) Values() []T {
	out := make([]T, len(a.values))
	copy(out, a.values)
	return out
}
