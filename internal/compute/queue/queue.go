package queue

import (
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/immutable"
	"github.com/pkg/errors"

	"github.com/G-Research/armada-compute/internal/common/armadacontext"
	"github.com/G-Research/armada-compute/internal/common/armadaerrors"
)

// QueueOverflowError is returned when an insert would take the queue past its capacity.
type QueueOverflowError struct {
	// Number of entries the rejected insert tried to add.
	Attempted int
	// Queue size at the time of the insert.
	Size int
	// Capacity at the time of the insert.
	Capacity int
}

func (e *QueueOverflowError) Error() string {
	return fmt.Sprintf(
		"compute queue overflow when tried to insert %d element(s) to queue; current queue size %d, max queue size %d",
		e.Attempted, e.Size, e.Capacity,
	)
}

// As matches an overflow against *armadaerrors.ErrResourceExhausted.
func (e *QueueOverflowError) As(target any) bool {
	t, ok := target.(**armadaerrors.ErrResourceExhausted)
	if !ok {
		return false
	}
	*t = &armadaerrors.ErrResourceExhausted{Resource: "compute queue", Message: e.Error()}
	return true
}

// Item is a queued value together with the key it is addressed by and its priority.
type Item[K comparable, V any] struct {
	Key      K
	Value    V
	Priority int64
}

type entry[K comparable, V any] struct {
	Item[K, V]
	seq uint64
}

// entryComparer orders entries by descending priority, then by insertion order.
type entryComparer[K comparable, V any] struct{}

func (entryComparer[K, V]) Compare(a, b *entry[K, V]) int {
	if a.Priority != b.Priority {
		if a.Priority > b.Priority {
			return -1
		}
		return 1
	}
	if a.seq < b.seq {
		return -1
	} else if a.seq > b.seq {
		return 1
	}
	return 0
}

// BoundedPriorityQueue is a priority queue whose capacity is read from a provider on every insert.
// An insert of n entries succeeds iff size+n <= capacity; lowering the capacity never evicts queued entries.
// All methods are safe for concurrent use.
type BoundedPriorityQueue[K comparable, V any] struct {
	capacity func() int

	mu      sync.Mutex
	entries immutable.SortedSet[*entry[K, V]]
	byKey   map[K]*entry[K, V]
	seq     uint64
	// Closed and replaced whenever entries are added, waking blocked takers.
	added chan struct{}
}

func New[K comparable, V any](capacity func() int) *BoundedPriorityQueue[K, V] {
	return &BoundedPriorityQueue[K, V]{
		capacity: capacity,
		entries:  immutable.NewSortedSet[*entry[K, V]](entryComparer[K, V]{}),
		byKey:    make(map[K]*entry[K, V]),
		added:    make(chan struct{}),
	}
}

// Offer inserts a single item.
func (q *BoundedPriorityQueue[K, V]) Offer(item Item[K, V]) error {
	return q.OfferAll([]Item[K, V]{item})
}

// OfferAll inserts all items or none of them.
func (q *BoundedPriorityQueue[K, V]) OfferAll(items []Item[K, V]) error {
	return q.offerAll(items, nil)
}

// OfferWith inserts item if it fits and admit returns nil. admit runs under the queue lock after the capacity check,
// so no other queue operation can observe the item before admit has returned.
func (q *BoundedPriorityQueue[K, V]) OfferWith(item Item[K, V], admit func() error) error {
	return q.offerAll([]Item[K, V]{item}, admit)
}

func (q *BoundedPriorityQueue[K, V]) offerAll(items []Item[K, V], admit func() error) error {
	if len(items) == 0 {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	capacity := q.capacity()
	size := len(q.byKey)
	if len(items) > capacity-size {
		return errors.WithStack(&QueueOverflowError{Attempted: len(items), Size: size, Capacity: capacity})
	}
	seen := make(map[K]bool, len(items))
	for _, item := range items {
		if _, ok := q.byKey[item.Key]; ok || seen[item.Key] {
			return errors.WithStack(&armadaerrors.ErrAlreadyExists{
				Type:  "queue entry",
				Value: fmt.Sprintf("%v", item.Key),
			})
		}
		seen[item.Key] = true
	}
	if admit != nil {
		if err := admit(); err != nil {
			return err
		}
	}
	for _, item := range items {
		q.insertLocked(item)
	}
	close(q.added)
	q.added = make(chan struct{})
	return nil
}

func (q *BoundedPriorityQueue[K, V]) insertLocked(item Item[K, V]) {
	q.seq++
	e := &entry[K, V]{Item: item, seq: q.seq}
	q.entries = q.entries.Add(e)
	q.byKey[item.Key] = e
}

func (q *BoundedPriorityQueue[K, V]) deleteLocked(e *entry[K, V]) {
	q.entries = q.entries.Delete(e)
	delete(q.byKey, e.Key)
}

func (q *BoundedPriorityQueue[K, V]) headLocked() (*entry[K, V], bool) {
	it := q.entries.Iterator()
	if it.Done() {
		return nil, false
	}
	return it.Next()
}

// Poll removes and returns the highest-priority item, if any.
func (q *BoundedPriorityQueue[K, V]) Poll() (Item[K, V], bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.headLocked()
	if !ok {
		return Item[K, V]{}, false
	}
	q.deleteLocked(e)
	return e.Item, true
}

// Peek returns the highest-priority item without removing it.
func (q *BoundedPriorityQueue[K, V]) Peek() (Item[K, V], bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.headLocked()
	if !ok {
		return Item[K, V]{}, false
	}
	return e.Item, true
}

// Take blocks until an item is available or ctx is done.
func (q *BoundedPriorityQueue[K, V]) Take(ctx *armadacontext.Context) (Item[K, V], error) {
	for {
		q.mu.Lock()
		e, ok := q.headLocked()
		if ok {
			q.deleteLocked(e)
			q.mu.Unlock()
			return e.Item, nil
		}
		added := q.added
		q.mu.Unlock()

		select {
		case <-added:
		case <-ctx.Done():
			return Item[K, V]{}, ctx.Err()
		}
	}
}

// PollTimeout waits up to timeout for an item. It returns false if none arrived in time.
func (q *BoundedPriorityQueue[K, V]) PollTimeout(ctx *armadacontext.Context, timeout time.Duration) (Item[K, V], bool, error) {
	timeoutCtx, cancel := armadacontext.WithTimeout(ctx, timeout)
	defer cancel()
	item, err := q.Take(timeoutCtx)
	if err == nil {
		return item, true, nil
	}
	if ctx.Err() != nil {
		return Item[K, V]{}, false, ctx.Err()
	}
	return Item[K, V]{}, false, nil
}

// Remove removes the item with the given key.
func (q *BoundedPriorityQueue[K, V]) Remove(key K) (Item[K, V], bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.byKey[key]
	if !ok {
		return Item[K, V]{}, false
	}
	q.deleteLocked(e)
	return e.Item, true
}

// RemoveIf removes every item matching pred and returns them in queue order.
func (q *BoundedPriorityQueue[K, V]) RemoveIf(pred func(Item[K, V]) bool) []Item[K, V] {
	q.mu.Lock()
	defer q.mu.Unlock()
	var removed []*entry[K, V]
	it := q.entries.Iterator()
	for !it.Done() {
		e, _ := it.Next()
		if pred(e.Item) {
			removed = append(removed, e)
		}
	}
	items := make([]Item[K, V], len(removed))
	for i, e := range removed {
		q.deleteLocked(e)
		items[i] = e.Item
	}
	return items
}

// ChangePriority moves a queued item to a new priority. The item is ordered after existing items of equal priority.
// It returns false if no item has the given key.
func (q *BoundedPriorityQueue[K, V]) ChangePriority(key K, priority int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.byKey[key]
	if !ok {
		return false
	}
	q.deleteLocked(e)
	item := e.Item
	item.Priority = priority
	q.insertLocked(item)
	return true
}

func (q *BoundedPriorityQueue[K, V]) Contains(key K) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.byKey[key]
	return ok
}

func (q *BoundedPriorityQueue[K, V]) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.byKey)
}

// RemainingCapacity returns how many more items can be inserted under the current capacity.
func (q *BoundedPriorityQueue[K, V]) RemainingCapacity() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	remaining := q.capacity() - len(q.byKey)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// DrainTo removes up to max items in queue order. A non-positive max drains everything.
func (q *BoundedPriorityQueue[K, V]) DrainTo(max int) []Item[K, V] {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.byKey)
	if max > 0 && max < n {
		n = max
	}
	items := make([]Item[K, V], 0, n)
	for len(items) < n {
		e, _ := q.headLocked()
		q.deleteLocked(e)
		items = append(items, e.Item)
	}
	return items
}

// Clear removes all items and returns how many were removed.
func (q *BoundedPriorityQueue[K, V]) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.byKey)
	q.entries = immutable.NewSortedSet[*entry[K, V]](entryComparer[K, V]{})
	q.byKey = make(map[K]*entry[K, V])
	return n
}

// Snapshot returns the queued items in the order they would be dequeued.
func (q *BoundedPriorityQueue[K, V]) Snapshot() []Item[K, V] {
	q.mu.Lock()
	entries := q.entries
	q.mu.Unlock()

	items := make([]Item[K, V], 0, entries.Len())
	it := entries.Iterator()
	for !it.Done() {
		e, _ := it.Next()
		items = append(items, e.Item)
	}
	return items
}
