package scheduler

import "sync"

// queueEntry is one piece of deferred text input.
type queueEntry struct {
	text   string
	source string
	order  int64
}

// boundedQueue is a FIFO with a hard capacity. Pushing past capacity evicts
// the oldest entry. A buffered signal channel wakes the drain goroutine;
// coalesced signals are fine because the drain re-checks emptiness.
type boundedQueue struct {
	mu       sync.Mutex
	entries  []queueEntry
	capacity int
	next     int64
	signal   chan struct{}
}

func newBoundedQueue(capacity int) *boundedQueue {
	return &boundedQueue{
		capacity: capacity,
		signal:   make(chan struct{}, 1),
	}
}

// push appends an entry, evicting the oldest when full. It returns the
// evicted entry (if any) and the resulting queue length.
func (q *boundedQueue) push(text, source string) (evicted *queueEntry, size int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) >= q.capacity {
		old := q.entries[0]
		q.entries = q.entries[1:]
		evicted = &old
	}
	q.next++
	q.entries = append(q.entries, queueEntry{text: text, source: source, order: q.next})

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return evicted, len(q.entries)
}

// pop removes and returns the oldest entry.
func (q *boundedQueue) pop() (queueEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return queueEntry{}, false
	}
	e := q.entries[0]
	q.entries = q.entries[1:]
	return e, true
}

// len returns the current queue length.
func (q *boundedQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// discard empties the queue and returns how many entries were dropped.
func (q *boundedQueue) discard() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.entries)
	q.entries = nil
	return n
}
