package executor

import (
	"container/heap"
	"sync"

	"solana-arb/internal/domain"
)

// Queue is a bounded priority queue of opportunities waiting for a free
// submission slot, ordered by descending net profit with ties broken by
// earliest discovery. When full, pushing a better opportunity evicts
// the worst; pushing a worse one is refused.
type Queue struct {
	mu    sync.Mutex
	items oppHeap
	cap   int
}

// NewQueue creates a queue holding at most capacity opportunities.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 16
	}
	return &Queue{cap: capacity}
}

// Push adds an opportunity. When the queue is full a better
// opportunity replaces the current worst, which is returned so the
// caller can release its claims; a worse one is refused. accepted
// reports whether opp entered the queue.
func (q *Queue) Push(opp *domain.Opportunity) (evicted *domain.Opportunity, accepted bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) < q.cap {
		heap.Push(&q.items, opp)
		return nil, true
	}

	worst := q.worstIndex()
	if !better(opp, q.items[worst]) {
		return nil, false
	}
	evicted = q.items[worst]
	q.items[worst] = opp
	heap.Fix(&q.items, worst)
	return evicted, true
}

// Pop removes and returns the best opportunity, nil when empty.
func (q *Queue) Pop() *domain.Opportunity {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}
	return heap.Pop(&q.items).(*domain.Opportunity)
}

// Len returns the number of queued opportunities.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// worstIndex scans the heap for the weakest entry. The heap stays
// small (bounded capacity), so a linear scan is fine.
func (q *Queue) worstIndex() int {
	worst := 0
	for i := 1; i < len(q.items); i++ {
		if better(q.items[worst], q.items[i]) {
			worst = i
		}
	}
	return worst
}

// better reports whether a outranks b.
func better(a, b *domain.Opportunity) bool {
	if a.NetProfit != b.NetProfit {
		return a.NetProfit > b.NetProfit
	}
	return a.DiscoveredAt.Before(b.DiscoveredAt)
}

// oppHeap is a max-heap by better().
type oppHeap []*domain.Opportunity

func (h oppHeap) Len() int            { return len(h) }
func (h oppHeap) Less(i, j int) bool  { return better(h[i], h[j]) }
func (h oppHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *oppHeap) Push(x interface{}) { *h = append(*h, x.(*domain.Opportunity)) }

func (h *oppHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
