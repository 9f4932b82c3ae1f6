package server

import (
	"testing"

	rt "github.com/gearhulk/gearhulk/pkg/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJob(handle string, priority byte) *Job {
	return &Job{Handle: handle, Priority: priority, State: jobQueued}
}

func TestFunctionEntryStrictPriorityOrdering(t *testing.T) {
	fe := newFunctionEntry("reverse")

	low := newTestJob("low-1", rt.JobLow)
	normal := newTestJob("normal-1", rt.JobNormal)
	high := newTestJob("high-1", rt.JobHigh)

	fe.enqueue(low)
	fe.enqueue(normal)
	fe.enqueue(high)

	got := fe.dequeueFirst()
	require.NotNil(t, got)
	assert.Equal(t, "high-1", got.Handle)

	got = fe.dequeueFirst()
	require.NotNil(t, got)
	assert.Equal(t, "normal-1", got.Handle)

	got = fe.dequeueFirst()
	require.NotNil(t, got)
	assert.Equal(t, "low-1", got.Handle)

	assert.Nil(t, fe.dequeueFirst())
}

func TestFunctionEntryFIFOWithinPriority(t *testing.T) {
	fe := newFunctionEntry("reverse")

	first := newTestJob("first", rt.JobNormal)
	second := newTestJob("second", rt.JobNormal)
	fe.enqueue(first)
	fe.enqueue(second)

	assert.Equal(t, "first", fe.dequeueFirst().Handle)
	assert.Equal(t, "second", fe.dequeueFirst().Handle)
}

func TestFunctionEntryEnqueueFrontPreservesPosition(t *testing.T) {
	fe := newFunctionEntry("reverse")

	queued := newTestJob("queued", rt.JobNormal)
	fe.enqueue(queued)

	requeued := newTestJob("requeued", rt.JobNormal)
	fe.enqueueFront(requeued)

	assert.Equal(t, "requeued", fe.dequeueFirst().Handle)
	assert.Equal(t, "queued", fe.dequeueFirst().Handle)
}

func TestFunctionEntryRemoveQueued(t *testing.T) {
	fe := newFunctionEntry("reverse")

	j := newTestJob("gone", rt.JobNormal)
	fe.enqueue(j)
	fe.removeQueued(j)

	assert.True(t, fe.empty())
	assert.Nil(t, j.elem)
}

func TestFunctionRegistryGetOrCreate(t *testing.T) {
	r := newFunctionRegistry()
	assert.Nil(t, r.get("reverse"))

	fe := r.getOrCreate("reverse")
	require.NotNil(t, fe)
	assert.Same(t, fe, r.getOrCreate("reverse"))
}
