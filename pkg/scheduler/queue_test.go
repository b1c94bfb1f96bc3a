package scheduler

import "testing"

func TestQueuePushPop(t *testing.T) {
	q := newBoundedQueue(3)

	q.push("a", "text")
	q.push("b", "text")
	if q.len() != 2 {
		t.Fatalf("expected 2, got %d", q.len())
	}

	e, ok := q.pop()
	if !ok || e.text != "a" {
		t.Errorf("expected oldest entry a, got %v %v", e.text, ok)
	}
	e, ok = q.pop()
	if !ok || e.text != "b" {
		t.Errorf("expected b, got %v %v", e.text, ok)
	}
	if _, ok := q.pop(); ok {
		t.Error("expected empty queue")
	}
}

func TestQueueEvictsOldest(t *testing.T) {
	q := newBoundedQueue(2)

	q.push("a", "text")
	q.push("b", "text")
	evicted, size := q.push("c", "text")

	if evicted == nil || evicted.text != "a" {
		t.Fatalf("expected a evicted, got %v", evicted)
	}
	if size != 2 {
		t.Errorf("expected size to stay at capacity, got %d", size)
	}

	e, _ := q.pop()
	if e.text != "b" {
		t.Errorf("expected b first after eviction, got %s", e.text)
	}
	e, _ = q.pop()
	if e.text != "c" {
		t.Errorf("expected c, got %s", e.text)
	}
}

func TestQueueSignal(t *testing.T) {
	q := newBoundedQueue(2)

	q.push("a", "text")
	select {
	case <-q.signal:
	default:
		t.Fatal("expected a wakeup signal after push")
	}

	// Coalesced pushes must not block.
	q.push("b", "text")
	q.push("c", "text")
}

func TestQueueDiscard(t *testing.T) {
	q := newBoundedQueue(5)

	q.push("a", "text")
	q.push("b", "text")
	if n := q.discard(); n != 2 {
		t.Errorf("expected 2 discarded, got %d", n)
	}
	if q.len() != 0 {
		t.Errorf("expected empty queue, got %d", q.len())
	}
}

func TestQueueArrivalOrder(t *testing.T) {
	q := newBoundedQueue(3)

	q.push("a", "text")
	q.push("b", "text")
	e1, _ := q.pop()
	e2, _ := q.pop()
	if e2.order <= e1.order {
		t.Errorf("arrival order must increase: %d then %d", e1.order, e2.order)
	}
}
