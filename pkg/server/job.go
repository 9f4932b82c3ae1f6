package server

import (
	"container/list"
	"time"
)

// jobState is a Job's place in its lifecycle (spec §3 *Job* invariant:
// exactly one of queued/running/terminal at any time).
type jobState int

const (
	jobQueued jobState = iota
	jobRunning
	jobComplete
	jobFailed
)

// Job is one submission: a function name, a priority, an opaque payload,
// and the bookkeeping needed to route status/result frames back to
// whichever client (if any) is still attached.
type Job struct {
	Handle     string
	Function   string
	Priority   byte
	UniqueID   string
	Payload    []byte
	Background bool

	Numerator   uint64
	Denominator uint64

	Worker *Connection // nil unless State == jobRunning
	Client *Connection // nil for background jobs once submitted, or once the client detaches

	State       jobState
	SubmittedAt time.Time // set at SUBMIT_JOB time, used for the end-to-end latency histogram
	StartedAt   time.Time // set when State transitions to jobRunning

	elem *list.Element // non-nil iff State == jobQueued; owned by the function's FIFO
}

// jobTable indexes every live Job by handle. Ownership of a Job lives
// here (spec §3 "Ownership"); Connections only hold references into it.
type jobTable struct {
	byHandle map[string]*Job
}

func newJobTable() *jobTable {
	return &jobTable{byHandle: make(map[string]*Job)}
}

func (t *jobTable) add(j *Job) {
	t.byHandle[j.Handle] = j
}

func (t *jobTable) get(handle string) (*Job, bool) {
	j, ok := t.byHandle[handle]
	return j, ok
}

func (t *jobTable) remove(handle string) {
	delete(t.byHandle, handle)
}

func (t *jobTable) count() int {
	return len(t.byHandle)
}
