package timer

import (
	"container/heap"

	"github.com/streamforge/microbatch/element"
)

// timerQueue is a priority queue sorted from smallest to largest target
// timestamp, with ties broken by key, namespace and domain so that the pop
// order is deterministic for a given set. identities tracks the current
// target time per timer identity so that re-setting a timer replaces it
// instead of duplicating it.
type timerQueue struct {
	items      []TimerData
	identities map[timerIdentity]element.Timestamp
	nil_       TimerData
}

func newTimerQueue() *timerQueue {
	return &timerQueue{identities: map[timerIdentity]element.Timestamp{}}
}

// less is the queue's total order: target timestamp first, then key,
// namespace and domain to keep the order deterministic for a given set.
func less(left, right TimerData) bool {
	if left.Timestamp != right.Timestamp {
		return left.Timestamp < right.Timestamp
	}
	if left.Key != right.Key {
		return left.Key < right.Key
	}
	if left.Namespace != right.Namespace {
		return left.Namespace < right.Namespace
	}
	return left.Domain < right.Domain
}

//---------------------------------------------------------------------------------
//Warning: do not call directly, expose the functions only for the heap package to use
//---------------------------------------------------------------------------------

func (t *timerQueue) Less(i, j int) bool {
	return less(t.items[i], t.items[j])
}

func (t *timerQueue) Swap(i, j int) {
	t.items[i], t.items[j] = t.items[j], t.items[i]
}

func (t *timerQueue) Push(x any) {
	t.items = append(t.items, x.(TimerData))
}

func (t *timerQueue) Pop() any {
	old := t.items
	n := len(old)
	x := old[n-1]
	t.items = old[0 : n-1]
	return x
}

//---------------------------------------------------------------------------------

func (t *timerQueue) Len() int {
	return len(t.items)
}

func (t *timerQueue) PushTimer(item TimerData) {
	id := item.identity()
	if current, ok := t.identities[id]; ok {
		if current == item.Timestamp {
			return
		}
		//re-setting an existing timer replaces its target time
		t.removeAt(t.index(TimerData{Key: item.Key, Namespace: item.Namespace, Domain: item.Domain, Timestamp: current}))
	}
	t.identities[id] = item.Timestamp
	heap.Push(t, item)
}

func (t *timerQueue) PopTimer() TimerData {
	if len(t.items) == 0 {
		return t.nil_
	}
	item := heap.Pop(t).(TimerData)
	delete(t.identities, item.identity())
	return item
}

func (t *timerQueue) PeekTimer() TimerData {
	return t.items[0]
}

// Remove deletes the exact timer record, a record whose target time does not
// match the pending one is left alone.
func (t *timerQueue) Remove(item TimerData) bool {
	if current, ok := t.identities[item.identity()]; !ok || current != item.Timestamp {
		return false
	}
	return t.removeAt(t.index(item))
}

func (t *timerQueue) removeAt(index int) bool {
	if index == -1 {
		return false
	}
	item := t.items[index]
	delete(t.identities, item.identity())
	heap.Remove(t, index)
	return true
}

func (t *timerQueue) index(item TimerData) int {
	for index, candidate := range t.items {
		if candidate == item {
			return index
		}
	}
	return -1
}
