package ledger

import "tradeledger/internal/domain"

// MetricFunc resolves the current performance metric of a trade handle.
type MetricFunc func(ref domain.TradeRef) float64

// Tracker keeps a best heap and a worst heap over trade handles.
//
// Entries are handles into mutable trades, so a price change after a push can
// leave either heap out of order. The tracker never repairs itself; the owner
// must Reset and re-push every trade before trusting Best or Worst again.
type Tracker struct {
	metric MetricFunc
	best   *Heap[domain.TradeRef]
	worst  *Heap[domain.TradeRef]
}

// NewTracker creates an empty tracker reading metrics through metric.
func NewTracker(metric MetricFunc) *Tracker {
	t := &Tracker{metric: metric}
	t.Reset()
	return t
}

// Reset discards both heaps.
func (t *Tracker) Reset() {
	t.best = NewHeap(func(a, b domain.TradeRef) bool { return t.metric(a) > t.metric(b) })
	t.worst = NewHeap(func(a, b domain.TradeRef) bool { return t.metric(a) < t.metric(b) })
}

// Push adds ref to both heaps.
func (t *Tracker) Push(ref domain.TradeRef) {
	t.best.Push(ref)
	t.worst.Push(ref)
}

// Len returns the number of tracked handles.
func (t *Tracker) Len() int {
	return t.best.Len()
}

// Best returns the handle with the greatest metric as of the last push order.
func (t *Tracker) Best() (domain.TradeRef, bool) {
	return t.best.Peek()
}

// Worst returns the handle with the least metric as of the last push order.
func (t *Tracker) Worst() (domain.TradeRef, bool) {
	return t.worst.Peek()
}

// TopN returns up to n handles from the best heap in ranking order.
func (t *Tracker) TopN(n int) []domain.TradeRef {
	return drain(t.best, n)
}

// BottomN returns up to n handles from the worst heap in ranking order.
func (t *Tracker) BottomN(n int) []domain.TradeRef {
	return drain(t.worst, n)
}

func drain(h *Heap[domain.TradeRef], n int) []domain.TradeRef {
	if n <= 0 {
		return nil
	}
	if n > h.Len() {
		n = h.Len()
	}
	c := h.clone()
	out := make([]domain.TradeRef, 0, n)
	for len(out) < n {
		ref, ok := c.pop()
		if !ok {
			break
		}
		out = append(out, ref)
	}
	return out
}
