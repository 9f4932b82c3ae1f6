package server

import (
	"container/list"

	rt "github.com/gearhulk/gearhulk/pkg/runtime"
)

// functionEntry is the per-function-name record (spec §3 *Function
// entry*): one FIFO per priority, the set of workers registered for this
// function, and the subset of those workers currently sleeping on it.
type functionEntry struct {
	name string

	// queues[rt.JobLow], queues[rt.JobNormal], queues[rt.JobHigh].
	queues [3]*list.List

	workers  map[*Connection]struct{}
	sleeping *sleepQueue

	maxQueue int // 0 means unbounded; set by the admin "maxqueue" verb
}

func newFunctionEntry(name string) *functionEntry {
	fe := &functionEntry{
		name:     name,
		workers:  make(map[*Connection]struct{}),
		sleeping: newSleepQueue(),
	}
	for i := range fe.queues {
		fe.queues[i] = list.New()
	}
	return fe
}

// sleepQueue holds the workers asleep on a function in the order they
// called PRE_SLEEP, so wakeupOneWorker can honor the spec §4.3 tie-break
// "FIFO by sleep order" instead of an arbitrary map iteration. The
// element index gives add/remove/pop-front all O(1).
type sleepQueue struct {
	order *list.List
	index map[*Connection]*list.Element
}

func newSleepQueue() *sleepQueue {
	return &sleepQueue{order: list.New(), index: make(map[*Connection]*list.Element)}
}

// add records conn as asleep, leaving it in place if it was already
// there (PRE_SLEEP is idempotent and doesn't reorder an existing sleeper).
func (q *sleepQueue) add(conn *Connection) {
	if _, ok := q.index[conn]; ok {
		return
	}
	q.index[conn] = q.order.PushBack(conn)
}

// remove drops conn from the sleep queue if present; a no-op otherwise.
func (q *sleepQueue) remove(conn *Connection) {
	e, ok := q.index[conn]
	if !ok {
		return
	}
	q.order.Remove(e)
	delete(q.index, conn)
}

func (q *sleepQueue) len() int {
	return q.order.Len()
}

// popFront removes and returns the earliest-slept worker, or nil if empty.
func (q *sleepQueue) popFront() *Connection {
	e := q.order.Front()
	if e == nil {
		return nil
	}
	conn := e.Value.(*Connection)
	q.order.Remove(e)
	delete(q.index, conn)
	return conn
}

// enqueue appends j to the back of its priority's FIFO (normal
// submission order).
func (fe *functionEntry) enqueue(j *Job) {
	j.elem = fe.queues[j.Priority].PushBack(j)
	j.State = jobQueued
}

// enqueueFront re-inserts j at the head of its priority's FIFO, used
// when a worker disconnects mid-job (spec §4.3 "position preservation").
func (fe *functionEntry) enqueueFront(j *Job) {
	j.elem = fe.queues[j.Priority].PushFront(j)
	j.State = jobQueued
}

// dequeueFirst pops the earliest-submitted job from the
// highest non-empty priority (spec §4.3 GRAB_JOB tie-break: strictly
// priority-descending, then FIFO).
func (fe *functionEntry) dequeueFirst() *Job {
	for p := int(rt.JobHigh); p >= int(rt.JobLow); p-- {
		if e := fe.queues[p].Front(); e != nil {
			j := e.Value.(*Job)
			fe.queues[p].Remove(e)
			j.elem = nil
			return j
		}
	}
	return nil
}

// removeQueued removes j from its FIFO without regard to position,
// e.g. when its owning client disconnects before it is assigned.
func (fe *functionEntry) removeQueued(j *Job) {
	if j.elem == nil {
		return
	}
	fe.queues[j.Priority].Remove(j.elem)
	j.elem = nil
}

func (fe *functionEntry) queueLen() int {
	n := 0
	for _, q := range fe.queues {
		n += q.Len()
	}
	return n
}

func (fe *functionEntry) empty() bool {
	return fe.queueLen() == 0
}

// functionRegistry maps function name to its functionEntry.
type functionRegistry struct {
	entries map[string]*functionEntry
}

func newFunctionRegistry() *functionRegistry {
	return &functionRegistry{entries: make(map[string]*functionEntry)}
}

func (r *functionRegistry) get(name string) *functionEntry {
	return r.entries[name]
}

func (r *functionRegistry) getOrCreate(name string) *functionEntry {
	fe, ok := r.entries[name]
	if !ok {
		fe = newFunctionEntry(name)
		r.entries[name] = fe
	}
	return fe
}
