package ledger

// Heap is a binary heap ordered by a caller-supplied comparison.
// moreExtreme(a, b) reports whether a belongs nearer the root than b, so the
// same type serves as a max-heap or a min-heap.
type Heap[T any] struct {
	data        []T
	moreExtreme func(a, b T) bool
}

// NewHeap creates an empty heap using the given comparison strategy.
func NewHeap[T any](moreExtreme func(a, b T) bool) *Heap[T] {
	return &Heap[T]{moreExtreme: moreExtreme}
}

// Len returns the number of elements in the heap.
func (h *Heap[T]) Len() int {
	return len(h.data)
}

// Push inserts item in O(log n).
func (h *Heap[T]) Push(item T) {
	h.data = append(h.data, item)
	h.siftUp(len(h.data) - 1)
}

// Peek returns the root without removing it.
func (h *Heap[T]) Peek() (T, bool) {
	if len(h.data) == 0 {
		var zero T
		return zero, false
	}
	return h.data[0], true
}

// pop removes and returns the root.
func (h *Heap[T]) pop() (T, bool) {
	if len(h.data) == 0 {
		var zero T
		return zero, false
	}
	root := h.data[0]
	last := len(h.data) - 1
	h.data[0] = h.data[last]
	var zero T
	h.data[last] = zero
	h.data = h.data[:last]
	h.siftDown(0)
	return root, true
}

// clone copies the heap layout so it can be drained without touching the original.
func (h *Heap[T]) clone() *Heap[T] {
	data := make([]T, len(h.data))
	copy(data, h.data)
	return &Heap[T]{data: data, moreExtreme: h.moreExtreme}
}

func (h *Heap[T]) siftUp(index int) {
	for index > 0 {
		parent := (index - 1) / 2
		if !h.moreExtreme(h.data[index], h.data[parent]) {
			return
		}
		h.data[index], h.data[parent] = h.data[parent], h.data[index]
		index = parent
	}
}

func (h *Heap[T]) siftDown(index int) {
	n := len(h.data)
	for {
		left := 2*index + 1
		right := left + 1
		candidate := index
		if left < n && h.moreExtreme(h.data[left], h.data[candidate]) {
			candidate = left
		}
		if right < n && h.moreExtreme(h.data[right], h.data[candidate]) {
			candidate = right
		}
		if candidate == index {
			return
		}
		h.data[index], h.data[candidate] = h.data[candidate], h.data[index]
		index = candidate
	}
}
