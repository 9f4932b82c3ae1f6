package server

import (
	"bufio"
	"net"
	"sync/atomic"
	"testing"
	"time"

	rt "github.com/gearhulk/gearhulk/pkg/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestConn wires a Connection to an in-memory net.Pipe so handlers can
// enqueue packets without a real listener; the paired end lets a test
// read back whatever the server wrote.
func newTestConn(t *testing.T, s *Server) (*Connection, net.Conn) {
	t.Helper()
	server, peer := net.Pipe()
	c := newConnection(1, server, s, s.threads[0])
	go c.writeLoop()
	t.Cleanup(func() { c.markDead() })
	return c, peer
}

func readPacket(t *testing.T, conn net.Conn) *rt.Packet {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(time.Second))
	pkt, err := rt.DecodePacket(bufio.NewReader(conn))
	require.NoError(t, err)
	return pkt
}

func newTestServer() *Server {
	cfg := DefaultConfig()
	cfg.SweepInterval = 0
	cfg.WebAddress = ""
	return NewServer(cfg)
}

func TestHandleSubmitJobAssignsHandleAndQueues(t *testing.T) {
	s := newTestServer()
	client, clientPeer := newTestConn(t, s)
	defer clientPeer.Close()

	s.mu.Lock()
	s.handlePacket(client, rt.NewPacket(rt.PT_SubmitJob, []byte("reverse"), []byte(""), []byte("hello")))
	s.mu.Unlock()

	resp := readPacket(t, clientPeer)
	assert.Equal(t, rt.PT_JobCreated, resp.Type)
	handle := string(resp.RawBody)
	assert.NotEmpty(t, handle)

	s.mu.Lock()
	fe := s.functions.get("reverse")
	require.NotNil(t, fe)
	assert.Equal(t, 1, fe.queueLen())
	s.mu.Unlock()
}

func TestGrabJobAssignsQueuedWork(t *testing.T) {
	s := newTestServer()
	client, clientPeer := newTestConn(t, s)
	defer clientPeer.Close()
	worker, workerPeer := newTestConn(t, s)
	defer workerPeer.Close()

	s.mu.Lock()
	s.handlePacket(client, rt.NewPacket(rt.PT_SubmitJob, []byte("reverse"), []byte(""), []byte("hello")))
	s.mu.Unlock()
	created := readPacket(t, clientPeer)
	handle := string(created.RawBody)

	s.mu.Lock()
	s.handlePacket(worker, rt.NewPacket(rt.PT_CanDo, []byte("reverse")))
	s.handlePacket(worker, rt.NewPacket(rt.PT_GrabJob))
	s.mu.Unlock()

	assign := readPacket(t, workerPeer)
	require.Equal(t, rt.PT_JobAssign, assign.Type)
	parts := rt.JoinArgsMax(assign.RawBody, 3)
	assert.Equal(t, handle, string(parts[0]))
	assert.Equal(t, "reverse", string(parts[1]))
	assert.Equal(t, "hello", string(parts[2]))
}

func TestGrabJobReturnsNoJobWhenEmpty(t *testing.T) {
	s := newTestServer()
	worker, workerPeer := newTestConn(t, s)
	defer workerPeer.Close()

	s.mu.Lock()
	s.handlePacket(worker, rt.NewPacket(rt.PT_CanDo, []byte("reverse")))
	s.handlePacket(worker, rt.NewPacket(rt.PT_GrabJob))
	s.mu.Unlock()

	resp := readPacket(t, workerPeer)
	assert.Equal(t, rt.PT_NoJob, resp.Type)
}

func TestWorkCompleteRelaysToClientAndRemovesJob(t *testing.T) {
	s := newTestServer()
	client, clientPeer := newTestConn(t, s)
	defer clientPeer.Close()
	worker, workerPeer := newTestConn(t, s)
	defer workerPeer.Close()

	s.mu.Lock()
	s.handlePacket(client, rt.NewPacket(rt.PT_SubmitJob, []byte("reverse"), []byte(""), []byte("hello")))
	s.mu.Unlock()
	handle := string(readPacket(t, clientPeer).RawBody)

	s.mu.Lock()
	s.handlePacket(worker, rt.NewPacket(rt.PT_CanDo, []byte("reverse")))
	s.handlePacket(worker, rt.NewPacket(rt.PT_GrabJob))
	s.mu.Unlock()
	readPacket(t, workerPeer)

	s.mu.Lock()
	s.handlePacket(worker, rt.NewPacket(rt.PT_WorkComplete, []byte(handle), []byte("olleh")))
	s.mu.Unlock()

	resp := readPacket(t, clientPeer)
	require.Equal(t, rt.PT_WorkComplete, resp.Type)
	parts := rt.JoinArgsMax(resp.RawBody, 2)
	assert.Equal(t, "olleh", string(parts[1]))

	s.mu.Lock()
	_, ok := s.jobs.get(handle)
	s.mu.Unlock()
	assert.False(t, ok, "a terminal WORK_* frame removes the job from the table")
}

func TestWorkerDisconnectRequeuesAtFront(t *testing.T) {
	s := newTestServer()
	client, clientPeer := newTestConn(t, s)
	defer clientPeer.Close()
	worker, workerPeer := newTestConn(t, s)
	defer workerPeer.Close()

	s.mu.Lock()
	s.handlePacket(client, rt.NewPacket(rt.PT_SubmitJob, []byte("reverse"), []byte(""), []byte("first")))
	s.mu.Unlock()
	readPacket(t, clientPeer)

	s.mu.Lock()
	s.handlePacket(client, rt.NewPacket(rt.PT_SubmitJob, []byte("reverse"), []byte(""), []byte("second")))
	s.mu.Unlock()
	readPacket(t, clientPeer)

	s.mu.Lock()
	s.handlePacket(worker, rt.NewPacket(rt.PT_CanDo, []byte("reverse")))
	s.handlePacket(worker, rt.NewPacket(rt.PT_GrabJob))
	s.mu.Unlock()
	assigned := readPacket(t, workerPeer)
	parts := rt.JoinArgsMax(assigned.RawBody, 3)
	assert.Equal(t, "first", string(parts[2]))

	s.mu.Lock()
	s.reapConnection(worker)
	s.mu.Unlock()

	next, nextPeer := newTestConn(t, s)
	defer nextPeer.Close()

	s.mu.Lock()
	s.handlePacket(next, rt.NewPacket(rt.PT_CanDo, []byte("reverse")))
	s.handlePacket(next, rt.NewPacket(rt.PT_GrabJob))
	s.mu.Unlock()
	reassigned := readPacket(t, nextPeer)
	parts = rt.JoinArgsMax(reassigned.RawBody, 3)
	assert.Equal(t, "first", string(parts[2]), "the in-flight job must return to the head of the queue, ahead of jobs submitted after it")
}

func TestClientDisconnectRemovesStillQueuedJob(t *testing.T) {
	s := newTestServer()
	client, clientPeer := newTestConn(t, s)
	defer clientPeer.Close()

	s.mu.Lock()
	s.handlePacket(client, rt.NewPacket(rt.PT_SubmitJob, []byte("reverse"), []byte(""), []byte("hello")))
	s.mu.Unlock()
	handle := string(readPacket(t, clientPeer).RawBody)

	s.mu.Lock()
	s.reapConnection(client)
	_, stillThere := s.jobs.get(handle)
	fe := s.functions.get("reverse")
	s.mu.Unlock()

	assert.False(t, stillThere, "a still-queued job must be removed outright on client disconnect")
	assert.Equal(t, 0, fe.queueLen())
}

func TestClientDisconnectOrphansRunningJob(t *testing.T) {
	s := newTestServer()
	client, clientPeer := newTestConn(t, s)
	defer clientPeer.Close()
	worker, workerPeer := newTestConn(t, s)
	defer workerPeer.Close()

	s.mu.Lock()
	s.handlePacket(client, rt.NewPacket(rt.PT_SubmitJob, []byte("reverse"), []byte(""), []byte("hello")))
	s.mu.Unlock()
	handle := string(readPacket(t, clientPeer).RawBody)

	s.mu.Lock()
	s.handlePacket(worker, rt.NewPacket(rt.PT_CanDo, []byte("reverse")))
	s.handlePacket(worker, rt.NewPacket(rt.PT_GrabJob))
	s.mu.Unlock()
	readPacket(t, workerPeer)

	s.mu.Lock()
	s.reapConnection(client)
	j, ok := s.jobs.get(handle)
	s.mu.Unlock()

	require.True(t, ok, "a running job outlives its disconnected client")
	assert.Nil(t, j.Client)
	assert.Equal(t, jobRunning, j.State)

	// The worker's eventual report must not panic or resurrect a client.
	s.mu.Lock()
	s.handlePacket(worker, rt.NewPacket(rt.PT_WorkComplete, []byte(handle), []byte("olleh")))
	s.mu.Unlock()
}

func TestSweepTimedOutJobsMarksWorkerDead(t *testing.T) {
	s := newTestServer()
	client, clientPeer := newTestConn(t, s)
	defer clientPeer.Close()
	worker, workerPeer := newTestConn(t, s)
	defer workerPeer.Close()

	s.mu.Lock()
	s.handlePacket(client, rt.NewPacket(rt.PT_SubmitJob, []byte("reverse"), []byte(""), []byte("hello")))
	s.mu.Unlock()
	readPacket(t, clientPeer)

	s.mu.Lock()
	s.handlePacket(worker, rt.NewPacket(rt.PT_CanDoTimeout, []byte("reverse"), []byte("1")))
	s.handlePacket(worker, rt.NewPacket(rt.PT_GrabJob))
	s.mu.Unlock()
	readPacket(t, workerPeer)

	s.mu.Lock()
	worker.job.StartedAt = time.Now().Add(-2 * time.Second)
	s.mu.Unlock()

	s.sweepTimedOutJobs()

	assert.True(t, worker.isDead(), "a worker past its CAN_DO_TIMEOUT must be treated as dead")
}

func TestSubmitJobRejectsEmptyFunctionName(t *testing.T) {
	s := newTestServer()
	client, clientPeer := newTestConn(t, s)
	defer clientPeer.Close()

	s.mu.Lock()
	s.handlePacket(client, rt.NewPacket(rt.PT_SubmitJob, []byte(""), []byte(""), []byte("payload")))
	s.mu.Unlock()

	resp := readPacket(t, clientPeer)
	assert.Equal(t, rt.PT_Error, resp.Type)

	s.mu.Lock()
	_, exists := s.functions.entries[""]
	s.mu.Unlock()
	assert.False(t, exists, "an empty function name must not manufacture a function entry")
}

func TestWakeupHonorsFIFOSleepOrder(t *testing.T) {
	s := newTestServer()
	client, clientPeer := newTestConn(t, s)
	defer clientPeer.Close()
	first, firstPeer := newTestConn(t, s)
	defer firstPeer.Close()
	second, secondPeer := newTestConn(t, s)
	defer secondPeer.Close()

	s.mu.Lock()
	s.handlePacket(first, rt.NewPacket(rt.PT_CanDo, []byte("reverse")))
	s.handlePacket(first, rt.NewPacket(rt.PT_PreSleep))
	s.handlePacket(second, rt.NewPacket(rt.PT_CanDo, []byte("reverse")))
	s.handlePacket(second, rt.NewPacket(rt.PT_PreSleep))
	s.handlePacket(client, rt.NewPacket(rt.PT_SubmitJob, []byte("reverse"), []byte(""), []byte("x")))
	s.mu.Unlock()

	woke := readPacket(t, firstPeer)
	assert.Equal(t, rt.PT_Noop, woke.Type, "the earliest sleeper must be the one woken")
}

func TestGrabJobClearsSleepingAcrossAllRegisteredFunctions(t *testing.T) {
	s := newTestServer()
	client, clientPeer := newTestConn(t, s)
	defer clientPeer.Close()
	worker, workerPeer := newTestConn(t, s)
	defer workerPeer.Close()

	s.mu.Lock()
	s.handlePacket(worker, rt.NewPacket(rt.PT_CanDo, []byte("alpha")))
	s.handlePacket(worker, rt.NewPacket(rt.PT_CanDo, []byte("beta")))
	s.handlePacket(worker, rt.NewPacket(rt.PT_PreSleep))
	s.mu.Unlock()

	// Submitting to alpha wakes the worker via alpha's sleeping queue only;
	// beta's sleeping membership is untouched until GrabJob runs.
	s.mu.Lock()
	s.handlePacket(client, rt.NewPacket(rt.PT_SubmitJob, []byte("alpha"), []byte(""), []byte("x")))
	s.mu.Unlock()
	readPacket(t, clientPeer)
	readPacket(t, workerPeer) // the NOOP wakeup

	s.mu.Lock()
	s.handlePacket(worker, rt.NewPacket(rt.PT_GrabJob))
	s.mu.Unlock()
	readPacket(t, workerPeer)

	s.mu.Lock()
	betaFE := s.functions.get("beta")
	require.NotNil(t, betaFE)
	stillSleeping := betaFE.sleeping.len()
	s.mu.Unlock()

	assert.Equal(t, 0, stillSleeping, "a worker holding a job must not remain asleep on any other function it registered for")
}

func TestWorkCompleteDuplicateFrameIsIgnored(t *testing.T) {
	s := newTestServer()
	client, clientPeer := newTestConn(t, s)
	defer clientPeer.Close()
	worker, workerPeer := newTestConn(t, s)
	defer workerPeer.Close()

	s.mu.Lock()
	s.handlePacket(client, rt.NewPacket(rt.PT_SubmitJob, []byte("reverse"), []byte(""), []byte("hello")))
	s.mu.Unlock()
	handle := string(readPacket(t, clientPeer).RawBody)

	s.mu.Lock()
	s.handlePacket(worker, rt.NewPacket(rt.PT_CanDo, []byte("reverse")))
	s.handlePacket(worker, rt.NewPacket(rt.PT_GrabJob))
	s.mu.Unlock()
	readPacket(t, workerPeer)

	s.mu.Lock()
	j, _ := s.jobs.get(handle)
	s.handlePacket(worker, rt.NewPacket(rt.PT_WorkComplete, []byte(handle), []byte("olleh")))
	s.mu.Unlock()
	readPacket(t, clientPeer)

	s.mu.Lock()
	stateAfterFirst := j.State
	s.handlePacket(worker, rt.NewPacket(rt.PT_WorkComplete, []byte(handle), []byte("olleh")))
	client.outMu.Lock()
	pending := len(client.outbox)
	client.outMu.Unlock()
	s.mu.Unlock()

	assert.Equal(t, jobComplete, stateAfterFirst)
	assert.Equal(t, 0, pending, "a duplicate terminal frame for an already-terminal job must not be re-forwarded")
}

func TestHandleSubmitJobRejectedWhileShuttingDown(t *testing.T) {
	s := newTestServer()
	client, clientPeer := newTestConn(t, s)
	defer clientPeer.Close()

	atomic.StoreInt32(&s.shuttingDown, 1)

	s.mu.Lock()
	s.handlePacket(client, rt.NewPacket(rt.PT_SubmitJob, []byte("reverse"), []byte(""), []byte("hello")))
	s.mu.Unlock()

	resp := readPacket(t, clientPeer)
	assert.Equal(t, rt.PT_Error, resp.Type)
	parts := rt.JoinArgsMax(resp.RawBody, 2)
	assert.Equal(t, codeFor(ErrShutdown), string(parts[0]))

	s.mu.Lock()
	fe := s.functions.get("reverse")
	s.mu.Unlock()
	assert.Nil(t, fe, "a rejected submission must not create a queue entry")
}

func TestWaitForDrainBlocksUntilRunningJobTerminates(t *testing.T) {
	s := newTestServer()
	client, clientPeer := newTestConn(t, s)
	defer clientPeer.Close()
	worker, workerPeer := newTestConn(t, s)
	defer workerPeer.Close()

	s.mu.Lock()
	s.handlePacket(client, rt.NewPacket(rt.PT_SubmitJob, []byte("reverse"), []byte(""), []byte("hello")))
	s.mu.Unlock()
	handle := string(readPacket(t, clientPeer).RawBody)

	s.mu.Lock()
	s.handlePacket(worker, rt.NewPacket(rt.PT_CanDo, []byte("reverse")))
	s.handlePacket(worker, rt.NewPacket(rt.PT_GrabJob))
	s.mu.Unlock()
	readPacket(t, workerPeer)

	done := make(chan struct{})
	go func() {
		s.mu.Lock()
		s.waitForDrain()
		s.mu.Unlock()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("waitForDrain returned before the running job reached a terminal state")
	case <-time.After(100 * time.Millisecond):
	}

	s.mu.Lock()
	s.handlePacket(worker, rt.NewPacket(rt.PT_WorkComplete, []byte(handle), []byte("olleh")))
	s.mu.Unlock()
	readPacket(t, clientPeer)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waitForDrain did not return after the job reached a terminal state")
	}
}

func TestPreSleepWakesOnSubmit(t *testing.T) {
	s := newTestServer()
	client, clientPeer := newTestConn(t, s)
	defer clientPeer.Close()
	worker, workerPeer := newTestConn(t, s)
	defer workerPeer.Close()

	s.mu.Lock()
	s.handlePacket(worker, rt.NewPacket(rt.PT_CanDo, []byte("reverse")))
	s.handlePacket(worker, rt.NewPacket(rt.PT_PreSleep))
	s.handlePacket(client, rt.NewPacket(rt.PT_SubmitJob, []byte("reverse"), []byte(""), []byte("x")))
	s.mu.Unlock()

	woke := readPacket(t, workerPeer)
	assert.Equal(t, rt.PT_Noop, woke.Type)
}
