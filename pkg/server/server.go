package server

import (
	"net"
	"sync"
	"sync/atomic"

	rt "github.com/gearhulk/gearhulk/pkg/runtime"
)

// Server is the whole dispatch engine: the job table, the function
// registry, and the pool of I/O threads feeding it (spec §3 *Server*,
// §5 concurrency model). Every field below that the dispatcher touches
// is guarded by mu; the outbound side of each Connection has its own
// lock precisely so a slow peer can't block dispatch of everyone else's
// commands.
type Server struct {
	cfg Config

	mu        sync.Mutex
	jobs      *jobTable
	functions *functionRegistry
	handles   *handleGenerator

	threads   []*Thread
	nextConn  uint64
	nextThrd  uint32
	listener  net.Listener

	// non-nil only when cfg.ThreadCount > 1: packets and dead-connection
	// notices are funneled through these to a single dispatcher goroutine
	// instead of being handled inline by the reader (see dispatcher.go).
	inbound   chan inboundPacket
	deadConns chan deadNotice

	store   *jobStore // nil if cfg.Storage == ""
	sweeper *sweeper  // nil if cfg.SweepInterval <= 0
	reap    *reaper

	shuttingDown int32
	// drainCond is signalled every time a job leaves the queued/running
	// set (terminates, or is dropped outright on client disconnect), so
	// a graceful Stop can block until none remain (spec §5 "Shutdown").
	// Bound to mu: callers must hold mu before Wait'ing on it.
	drainCond *sync.Cond

	log Logger
}

// NewServer builds a Server from cfg but does not start listening; call
// Start for that.
func NewServer(cfg Config) *Server {
	s := &Server{
		cfg:       cfg,
		jobs:      newJobTable(),
		functions: newFunctionRegistry(),
		handles:   newHandleGenerator(),
		log:       newLogger(cfg.LogVerbosity),
	}
	s.drainCond = sync.NewCond(&s.mu)
	if cfg.ThreadCount > 1 {
		s.inbound = make(chan inboundPacket, cfg.Backlog)
		s.deadConns = make(chan deadNotice, cfg.Backlog)
	}
	for i := 0; i < maxInt(cfg.ThreadCount, 1); i++ {
		s.threads = append(s.threads, newThread(i, s))
	}
	return s
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Start opens the listener, restores persisted background jobs if
// configured, and begins accepting connections. It returns once the
// listener is up; accept/dispatch run in background goroutines.
func (s *Server) Start() error {
	ln, err := net.Listen(rt.Network, s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	s.listener = ln

	if s.cfg.Storage != "" {
		store, err := openJobStore(s.cfg.Storage)
		if err != nil {
			return err
		}
		s.store = store
		s.restoreBackgroundJobs()
	}

	if s.inbound != nil {
		go s.runDispatcher()
	}
	go s.acceptLoop()
	s.startSweep()
	s.startWeb()
	s.startReaper()
	return nil
}

func (s *Server) acceptLoop() {
	i := 0
	for {
		nc, err := s.listener.Accept()
		if err != nil {
			if atomic.LoadInt32(&s.shuttingDown) != 0 {
				return
			}
			continue
		}
		id := atomic.AddUint64(&s.nextConn, 1)
		th := s.threads[i%len(s.threads)]
		i++

		c := newConnection(id, nc, s, th)
		th.add(c)
		connectionsTotal.Inc()
		activeConnections.Inc()

		go c.writeLoop()
		go c.readLoop()
	}
}

// Stop shuts the server down. When graceful is true it stops accepting
// new jobs (handleSubmitJob starts replying ERROR "shutdown" the instant
// shuttingDown flips) and new connections, notifies every worker with
// ALL_YOURS, then blocks until every queued/running job has reached a
// terminal state (spec §5 "Shutdown": "stop accepting new jobs, wait for
// all running and queued jobs to terminate, then close") before tearing
// down sockets. graceful=false skips the wait and tears down immediately.
func (s *Server) Stop(graceful bool) {
	if !atomic.CompareAndSwapInt32(&s.shuttingDown, 0, 1) {
		return
	}
	s.listener.Close()

	if graceful {
		s.mu.Lock()
		for _, th := range s.threads {
			th.mu.Lock()
			for _, c := range th.conns {
				if c.role == roleWorker {
					c.enqueue(rt.NewResponse(rt.PT_AllYours))
				}
			}
			th.mu.Unlock()
		}
		s.waitForDrain()
		s.mu.Unlock()
	}

	for _, th := range s.threads {
		th.mu.Lock()
		for _, c := range th.conns {
			c.markDead()
		}
		th.mu.Unlock()
	}
	if s.inbound != nil {
		close(s.inbound)
		close(s.deadConns)
	}
	s.stopSweep()
	if s.store != nil {
		s.store.Close()
	}
}

// waitForDrain blocks until no Job is queued or running (spec §4.4(5)
// "report graceful-shutdown completion when all jobs are terminal").
// Must be called with s.mu held; it releases the lock while waiting and
// reacquires it before returning, same contract as sync.Cond.Wait.
func (s *Server) waitForDrain() {
	for s.hasOutstandingJobs() {
		s.drainCond.Wait()
	}
}

// hasOutstandingJobs reports whether any Job is still queued or running.
// Must be called with s.mu held.
func (s *Server) hasOutstandingJobs() bool {
	for _, j := range s.jobs.byHandle {
		if j.State == jobQueued || j.State == jobRunning {
			return true
		}
	}
	return false
}

// reapConnection removes every trace of a dead connection from the data
// model: its worker registrations, any job it was running (requeued at
// the front of its FIFO, per spec §4.3), and any foreground jobs a
// disconnecting client owned. Must be called with s.mu held.
func (s *Server) reapConnection(c *Connection) {
	c.thread.remove(c)
	activeConnections.Dec()

	if c.role == roleWorker {
		if j := c.job; j != nil {
			j.Worker = nil
			j.State = jobQueued
			jobsRunning.WithLabelValues(j.Function).Dec()
			fe := s.functions.getOrCreate(j.Function)
			fe.enqueueFront(j)
			queueDepth.WithLabelValues(j.Function).Set(float64(fe.queueLen()))
			s.wakeupOneWorker(j.Function)
		}
		s.unregisterWorkerAll(c)
	}

	if c.role == roleClient {
		for handle, j := range c.jobs {
			j.Client = nil
			switch j.State {
			case jobQueued:
				// Spec §3 "Ownership": a still-queued foreground job is
				// removed outright on client disconnect, not orphaned.
				if fe := s.functions.get(j.Function); fe != nil {
					fe.removeQueued(j)
					queueDepth.WithLabelValues(j.Function).Set(float64(fe.queueLen()))
				}
				s.jobs.remove(handle)
			case jobRunning:
				// Orphaned: the worker's eventual report is dropped
				// because j.Client is now nil.
			default:
				s.jobs.remove(handle)
			}
		}
	}
	s.drainCond.Broadcast()
}

// wakeupOneWorker nudges up to cfg.WakeupCount sleeping workers
// registered for fn so one of them re-issues GRAB_JOB (spec §4.4
// "wakeup count" tuning knob: how many sleepers to disturb per
// newly-queued job rather than always broadcasting to all of them).
// Must be called with s.mu held.
func (s *Server) wakeupOneWorker(fn string) {
	fe := s.functions.get(fn)
	if fe == nil {
		return
	}
	n := s.cfg.WakeupCount
	if n <= 0 {
		n = 1
	}
	for woke := 0; woke < n; woke++ {
		conn := fe.sleeping.popFront()
		if conn == nil {
			return
		}
		conn.enqueue(rt.NewResponse(rt.PT_Noop))
	}
}
