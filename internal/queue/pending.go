package queue

import (
	"sync"

	"mailtriage/internal/model"
	"mailtriage/pkg/metrics"
)

// PendingQueue holds emails waiting for human review, in arrival order.
// It is shared by the poller and the approval handlers; a single mutex
// guards every read and every read-modify-write.
//
// An id taken out by Remove stays claimed until Complete or Restore, so a
// poll that still sees the message unread cannot queue it a second time.
type PendingQueue struct {
	mu        sync.Mutex
	items     []model.PendingItem
	claimed   map[string]struct{}
	dismissed map[string]struct{}
}

func NewPendingQueue() *PendingQueue {
	return &PendingQueue{
		claimed:   make(map[string]struct{}),
		dismissed: make(map[string]struct{}),
	}
}

// Enqueue appends item. It returns false and changes nothing when an item
// with the same id is already queued, claimed by an approval in flight, or
// already handled.
func (q *PendingQueue) Enqueue(item model.PendingItem) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.dismissed[item.ID]; ok {
		return false
	}
	if _, ok := q.claimed[item.ID]; ok {
		return false
	}
	if q.indexOf(item.ID) >= 0 {
		return false
	}
	q.items = append(q.items, item)
	q.updateGauge()
	return true
}

// List returns a snapshot copy of the queue.
func (q *PendingQueue) List() []model.PendingItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]model.PendingItem, len(q.items))
	copy(out, q.items)
	return out
}

// Remove takes out the first item with id and claims the id. The caller
// must follow up with Complete or Restore.
func (q *PendingQueue) Remove(id string) (model.PendingItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.indexOf(id)
	if i < 0 {
		return model.PendingItem{}, false
	}
	item := q.items[i]
	q.items = append(q.items[:i], q.items[i+1:]...)
	q.claimed[id] = struct{}{}
	q.updateGauge()
	return item, true
}

// Complete releases the claim on id and marks it handled: later Enqueue
// calls for it are ignored for the lifetime of the process.
func (q *PendingQueue) Complete(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.claimed, id)
	q.dismissed[id] = struct{}{}
}

// RemoveAll takes out every item with id and returns how many were removed.
// When something was removed the id is dismissed: later Enqueue calls for
// it are ignored for the lifetime of the process.
func (q *PendingQueue) RemoveAll(id string) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.items[:0]
	removed := 0
	for _, it := range q.items {
		if it.ID == id {
			removed++
			continue
		}
		kept = append(kept, it)
	}
	// drop references held by the tail
	for i := len(kept); i < len(q.items); i++ {
		q.items[i] = model.PendingItem{}
	}
	q.items = kept

	if removed > 0 {
		q.dismissed[id] = struct{}{}
		q.updateGauge()
	}
	return removed
}

// Restore releases the claim on item.ID and puts item back at the end of
// the queue after a failed approval. Dismissal is not checked: the item was
// never rejected.
func (q *PendingQueue) Restore(item model.PendingItem) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.claimed, item.ID)

	if q.indexOf(item.ID) >= 0 {
		return false
	}
	q.items = append(q.items, item)
	q.updateGauge()
	return true
}

// Len returns the number of queued items.
func (q *PendingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *PendingQueue) indexOf(id string) int {
	for i, it := range q.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func (q *PendingQueue) updateGauge() {
	metrics.SetPendingQueueSize(len(q.items))
}
