// Package topk keeps the k best-ranked items of a stream without sorting the
// whole stream. A Selector is backed by a bounded max-heap whose apex is the
// worst retained item, so each Offer costs O(log k) and n offers cost
// O(n log k) total with O(k) memory.
package topk

import "container/heap"

// Selector retains the k items that rank best under less. less(a, b)
// reports whether a ranks better than b. The selector imposes no tie-break
// of its own: an item only replaces the worst retained item when it ranks
// strictly better.
//
// A Selector is not safe for concurrent use.
type Selector[T any] struct {
	k    int
	less func(a, b T) bool
	h    *boundedHeap[T]
}

// New creates a Selector with capacity k. A capacity of zero or less yields
// a selector that never retains anything.
func New[T any](k int, less func(a, b T) bool) *Selector[T] {
	if k < 0 {
		k = 0
	}
	initial := k
	if initial > 1024 {
		initial = 1024
	}
	return &Selector[T]{
		k:    k,
		less: less,
		h: &boundedHeap[T]{
			items: make([]T, 0, initial),
			less:  less,
		},
	}
}

// Offer considers item for retention.
func (s *Selector[T]) Offer(item T) {
	if s.k == 0 {
		return
	}
	if s.h.Len() < s.k {
		heap.Push(s.h, item)
		return
	}
	if s.less(item, s.h.items[0]) {
		s.h.items[0] = item
		heap.Fix(s.h, 0)
	}
}

// Drain returns the retained items ordered best to worst and empties the
// selector.
func (s *Selector[T]) Drain() []T {
	result := make([]T, s.h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(s.h).(T)
	}
	return result
}

// Peek returns the worst retained item, the one the next better Offer would
// evict.
func (s *Selector[T]) Peek() (T, bool) {
	if s.h.Len() == 0 {
		var zero T
		return zero, false
	}
	return s.h.items[0], true
}

// Len returns the number of retained items.
func (s *Selector[T]) Len() int {
	return s.h.Len()
}

// Cap returns the selector's capacity.
func (s *Selector[T]) Cap() int {
	return s.k
}

// boundedHeap is a max-heap under less: the root is the item that ranks
// worst.
type boundedHeap[T any] struct {
	items []T
	less  func(a, b T) bool
}

func (h *boundedHeap[T]) Len() int { return len(h.items) }

func (h *boundedHeap[T]) Less(i, j int) bool {
	return h.less(h.items[j], h.items[i])
}

func (h *boundedHeap[T]) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *boundedHeap[T]) Push(x any) {
	h.items = append(h.items, x.(T))
}

func (h *boundedHeap[T]) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	var zero T
	old[n-1] = zero
	h.items = old[:n-1]
	return item
}
