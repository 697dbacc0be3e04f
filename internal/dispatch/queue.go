package dispatch

import (
	"container/heap"
	"sort"
	"time"
)

// entry is a queued notification together with its insertion sequence.
type entry struct {
	notification Notification
	seq          uint64
}

func less(a, b entry) bool {
	if a.notification.Priority != b.notification.Priority {
		return a.notification.Priority < b.notification.Priority
	}
	return a.seq < b.seq
}

type entryHeap []entry

func (h entryHeap) Len() int           { return len(h) }
func (h entryHeap) Less(i, j int) bool { return less(h[i], h[j]) }
func (h entryHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x any) {
	*h = append(*h, x.(entry))
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = entry{}
	*h = old[:n-1]
	return item
}

// Queue is a min-priority queue of pending notifications. Equal priorities
// leave in insertion order. Queue is not safe for concurrent use; Engine
// serialises access to it.
type Queue struct {
	items   entryHeap
	nextSeq uint64
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Len returns the number of pending notifications.
func (q *Queue) Len() int {
	return q.items.Len()
}

// Push appends n behind every queued notification of the same priority.
func (q *Queue) Push(n Notification) {
	q.pushEntry(entry{notification: n, seq: q.nextSeq})
	q.nextSeq++
}

func (q *Queue) pushEntry(e entry) {
	heap.Push(&q.items, e)
}

// Pop removes and returns the most urgent notification.
func (q *Queue) Pop() (Notification, bool) {
	e, ok := q.popEntry()
	return e.notification, ok
}

func (q *Queue) popEntry() (entry, bool) {
	if q.items.Len() == 0 {
		return entry{}, false
	}
	return heap.Pop(&q.items).(entry), true
}

// Peek returns the most urgent notification without removing it.
func (q *Queue) Peek() (Notification, bool) {
	if q.items.Len() == 0 {
		return Notification{}, false
	}
	return q.items[0].notification, true
}

// RemoveOlderThan drops every notification whose residency at now strictly
// exceeds maxResidency and returns the removed notifications in queue order.
func (q *Queue) RemoveOlderThan(now time.Time, maxResidency time.Duration) []Notification {
	kept := q.items[:0]
	var removed []entry
	for _, e := range q.items {
		if now.Sub(e.notification.CreatedAt) > maxResidency {
			removed = append(removed, e)
			continue
		}
		kept = append(kept, e)
	}
	if len(removed) == 0 {
		return nil
	}

	for i := len(kept); i < len(q.items); i++ {
		q.items[i] = entry{}
	}
	q.items = kept
	heap.Init(&q.items)

	sort.Slice(removed, func(i, j int) bool { return less(removed[i], removed[j]) })
	out := make([]Notification, len(removed))
	for i, e := range removed {
		out[i] = e.notification
	}
	return out
}

// Snapshot returns the queued notifications in pop order without modifying the queue.
func (q *Queue) Snapshot() []Notification {
	ordered := make([]entry, len(q.items))
	copy(ordered, q.items)
	sort.Slice(ordered, func(i, j int) bool { return less(ordered[i], ordered[j]) })

	out := make([]Notification, len(ordered))
	for i, e := range ordered {
		out[i] = e.notification
	}
	return out
}
