// Implements the PendingQueue, which holds every request a node has accepted
// but not yet released. Entries mature at their ExecuteAt tick.

package sim

import (
	"container/heap"
	"fmt"
	"sort"
	"strings"
)

// PendingEntry pairs a request with the tick at which it becomes due.
type PendingEntry struct {
	Request   *Request
	ExecuteAt int64

	seq uint64 // insertion sequence, tie-breaker among equal ExecuteAt
}

type pendingItem struct {
	entry PendingEntry
	index int
}

// pendingHeap implements heap.Interface ordered by ExecuteAt, then insertion sequence.
type pendingHeap []*pendingItem

func (h pendingHeap) Len() int { return len(h) }
func (h pendingHeap) Less(i, j int) bool {
	if h[i].entry.ExecuteAt != h[j].entry.ExecuteAt {
		return h[i].entry.ExecuteAt < h[j].entry.ExecuteAt
	}
	return h[i].entry.seq < h[j].entry.seq
}
func (h pendingHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *pendingHeap) Push(x any) {
	item := x.(*pendingItem)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *pendingHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[0 : n-1]
	return item
}

// PendingQueue is a per-node collection of pending entries keyed by request ID.
//
// Adding an entry whose request ID is already present replaces the stored
// entry (new ExecuteAt, new insertion position); a request is never held
// twice by the same queue. The zero value is ready to use.
//
// Thread-safety: NOT thread-safe. Must be called from single goroutine.
type PendingQueue struct {
	items   pendingHeap
	byID    map[string]*pendingItem
	nextSeq uint64
}

// NewPendingQueue creates an empty PendingQueue.
func NewPendingQueue() *PendingQueue {
	return &PendingQueue{byID: make(map[string]*pendingItem)}
}

// Add inserts the entry, replacing any entry for the same request ID.
func (pq *PendingQueue) Add(entry PendingEntry) {
	if entry.Request == nil {
		panic("PendingQueue.Add: entry.Request must not be nil")
	}
	if pq.byID == nil {
		pq.byID = make(map[string]*pendingItem)
	}
	pq.nextSeq++
	entry.seq = pq.nextSeq
	if item, ok := pq.byID[entry.Request.ID]; ok {
		item.entry = entry
		heap.Fix(&pq.items, item.index)
		return
	}
	item := &pendingItem{entry: entry}
	heap.Push(&pq.items, item)
	pq.byID[entry.Request.ID] = item
}

// Remove deletes the entry holding the same request ID. Removing a
// non-member is a no-op.
func (pq *PendingQueue) Remove(entry PendingEntry) {
	if entry.Request == nil {
		return
	}
	pq.RemoveRequest(entry.Request.ID)
}

// RemoveRequest deletes the entry for the given request ID and reports whether it was present.
func (pq *PendingQueue) RemoveRequest(id string) bool {
	item, ok := pq.byID[id]
	if !ok {
		return false
	}
	heap.Remove(&pq.items, item.index)
	delete(pq.byID, id)
	return true
}

// Contains reports whether a request with the given ID is queued.
func (pq *PendingQueue) Contains(id string) bool {
	_, ok := pq.byID[id]
	return ok
}

// Due returns every entry with ExecuteAt <= tick without removing it.
// The result is a snapshot: callers remove processed entries afterwards.
// Entries are returned by ExecuteAt, then insertion order; callers must not
// depend on any order among entries due at the same tick.
func (pq *PendingQueue) Due(tick int64) []PendingEntry {
	var due []PendingEntry
	// heap property: once a node is not due, none of its descendants are
	stack := []int{0}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if i >= len(pq.items) || pq.items[i].entry.ExecuteAt > tick {
			continue
		}
		due = append(due, pq.items[i].entry)
		stack = append(stack, 2*i+1, 2*i+2)
	}
	sortEntries(due)
	return due
}

// Peek returns the earliest entry without removing it.
func (pq *PendingQueue) Peek() (PendingEntry, bool) {
	if len(pq.items) == 0 {
		return PendingEntry{}, false
	}
	return pq.items[0].entry, true
}

// Len returns the number of queued entries.
func (pq *PendingQueue) Len() int {
	return len(pq.items)
}

// Entries returns a snapshot of all queued entries in maturation order.
func (pq *PendingQueue) Entries() []PendingEntry {
	entries := make([]PendingEntry, 0, len(pq.items))
	for _, item := range pq.items {
		entries = append(entries, item.entry)
	}
	sortEntries(entries)
	return entries
}

// DrainAll removes and returns every queued entry in maturation order.
func (pq *PendingQueue) DrainAll() []PendingEntry {
	entries := pq.Entries()
	pq.items = nil
	pq.byID = make(map[string]*pendingItem)
	return entries
}

func (pq *PendingQueue) String() string {
	var sb strings.Builder
	sb.WriteString("[")
	for i, e := range pq.Entries() {
		if i > 0 {
			sb.WriteString(" ")
		}
		fmt.Fprintf(&sb, "%s@%d", e.Request.ID, e.ExecuteAt)
	}
	sb.WriteString("]")
	return sb.String()
}

func sortEntries(entries []PendingEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].ExecuteAt != entries[j].ExecuteAt {
			return entries[i].ExecuteAt < entries[j].ExecuteAt
		}
		return entries[i].seq < entries[j].seq
	})
}
