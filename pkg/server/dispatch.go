package server

import (
	"bytes"
	"strconv"
	"sync/atomic"
	"time"

	rt "github.com/gearhulk/gearhulk/pkg/runtime"
)

// handlePacket executes one inbound packet against the data model. It is
// the only place that reads pkt.RawBody; every command splits it
// according to its own argument count rather than relying on a single
// blanket split, since only the command knows whether a trailing
// argument may itself contain embedded NULs (a job payload, say).
//
// Must be called with s.mu held (by deliver, either directly or via the
// dispatcher goroutine).
func (s *Server) handlePacket(c *Connection, pkt *rt.Packet) {
	commandsTotal.WithLabelValues(pkt.Type.String()).Inc()
	switch pkt.Type {
	case rt.PT_SubmitJob, rt.PT_SubmitJobBG,
		rt.PT_SubmitJobHigh, rt.PT_SubmitJobHighBG,
		rt.PT_SubmitJobLow, rt.PT_SubmitJobLowBG:
		s.handleSubmitJob(c, pkt)
	case rt.PT_GetStatus:
		s.handleGetStatus(c, pkt)
	case rt.PT_OptionReq:
		s.handleOptionReq(c, pkt)
	case rt.PT_EchoReq:
		c.enqueue(rt.NewResponse(rt.PT_EchoRes, pkt.RawBody))
	case rt.PT_CanDo:
		c.role = roleWorker
		s.registerWorkerFunc(c, string(pkt.RawBody), 0)
	case rt.PT_CanDoTimeout:
		s.handleCanDoTimeout(c, pkt)
	case rt.PT_CantDo:
		s.unregisterWorkerFunc(c, string(pkt.RawBody))
	case rt.PT_ResetAbilities:
		s.unregisterWorkerAll(c)
	case rt.PT_PreSleep:
		s.handlePreSleep(c)
	case rt.PT_GrabJob:
		s.handleGrabJob(c, false)
	case rt.PT_GrabJobUniq:
		s.handleGrabJob(c, true)
	case rt.PT_WorkStatus:
		s.handleWorkStatus(c, pkt)
	case rt.PT_WorkData:
		s.handleWorkRelay(c, pkt, rt.PT_WorkData)
	case rt.PT_WorkWarning:
		s.handleWorkRelay(c, pkt, rt.PT_WorkWarning)
	case rt.PT_WorkComplete:
		s.handleWorkTerminal(c, pkt, rt.PT_WorkComplete, jobComplete)
	case rt.PT_WorkFail:
		s.handleWorkTerminal(c, pkt, rt.PT_WorkFail, jobFailed)
	case rt.PT_WorkException:
		s.handleWorkTerminal(c, pkt, rt.PT_WorkException, jobFailed)
	case rt.PT_SetClientId:
		c.role = roleWorker
	default:
		c.enqueue(rt.NewResponse(rt.PT_Error, []byte(codeFor(ErrUnknownCommand)), []byte(ErrUnknownCommand.Error())))
	}
}

func submitPriority(t rt.PT) (priority byte, background bool) {
	switch t {
	case rt.PT_SubmitJob:
		return rt.JobNormal, false
	case rt.PT_SubmitJobBG:
		return rt.JobNormal, true
	case rt.PT_SubmitJobHigh:
		return rt.JobHigh, false
	case rt.PT_SubmitJobHighBG:
		return rt.JobHigh, true
	case rt.PT_SubmitJobLow:
		return rt.JobLow, false
	case rt.PT_SubmitJobLowBG:
		return rt.JobLow, true
	}
	return rt.JobNormal, false
}

func (s *Server) handleSubmitJob(c *Connection, pkt *rt.Packet) {
	if atomic.LoadInt32(&s.shuttingDown) != 0 {
		c.enqueue(rt.NewResponse(rt.PT_Error, []byte(codeFor(ErrShutdown)), []byte(ErrShutdown.Error())))
		return
	}
	parts := rt.JoinArgsMax(pkt.RawBody, 3)
	if len(parts) < 3 {
		c.enqueue(rt.NewResponse(rt.PT_Error, []byte(codeFor(ErrInvalidArgument)), []byte(ErrInvalidArgument.Error())))
		return
	}
	fn, uniq, payload := string(parts[0]), string(parts[1]), parts[2]
	if fn == "" {
		c.enqueue(rt.NewResponse(rt.PT_Error, []byte(codeFor(ErrInvalidArgument)), []byte(ErrInvalidArgument.Error())))
		return
	}
	priority, background := submitPriority(pkt.Type)

	if fe := s.functions.get(fn); fe != nil && fe.maxQueue > 0 && fe.queueLen() >= fe.maxQueue {
		c.enqueue(rt.NewResponse(rt.PT_Error, []byte(codeFor(ErrMemory)), []byte(ErrMemory.Error())))
		return
	}

	c.role = roleClient
	j := &Job{
		Handle:      s.handles.next(),
		Function:    fn,
		Priority:    priority,
		UniqueID:    uniq,
		Payload:     payload,
		Background:  background,
		State:       jobQueued,
		SubmittedAt: time.Now(),
	}
	s.jobs.add(j)
	if !background {
		j.Client = c
		c.jobs[j.Handle] = j
	} else if s.store != nil {
		s.store.Put(j)
	}

	fe := s.functions.getOrCreate(fn)
	fe.enqueue(j)
	s.wakeupOneWorker(fn)

	jobsSubmittedTotal.WithLabelValues(fn).Inc()
	queueDepth.WithLabelValues(fn).Set(float64(fe.queueLen()))

	c.enqueue(rt.NewResponse(rt.PT_JobCreated, []byte(j.Handle)))
}

func (s *Server) handleGetStatus(c *Connection, pkt *rt.Packet) {
	handle := string(pkt.RawBody)
	j, ok := s.jobs.get(handle)
	known, running := byte('0'), byte('0')
	var num, den uint64
	if ok {
		known = '1'
		if j.State == jobRunning {
			running = '1'
		}
		num, den = j.Numerator, j.Denominator
	}
	c.enqueue(rt.NewResponse(rt.PT_StatusRes,
		[]byte(handle),
		[]byte{known},
		[]byte{running},
		[]byte(strconv.FormatUint(num, 10)),
		[]byte(strconv.FormatUint(den, 10)),
	))
}

func (s *Server) handleOptionReq(c *Connection, pkt *rt.Packet) {
	opt := string(pkt.RawBody)
	switch opt {
	case "exceptions":
		c.wantExceptions = true
		c.enqueue(rt.NewResponse(rt.PT_OptionRes, pkt.RawBody))
	default:
		c.enqueue(rt.NewResponse(rt.PT_Error, []byte(codeFor(ErrInvalidArgument)), []byte("unknown option: "+opt)))
	}
}

func (s *Server) handleCanDoTimeout(c *Connection, pkt *rt.Packet) {
	parts := rt.JoinArgsMax(pkt.RawBody, 2)
	name := string(parts[0])
	var timeout uint32
	if len(parts) == 2 {
		if v, err := strconv.ParseUint(string(parts[1]), 10, 32); err == nil {
			timeout = uint32(v)
		}
	}
	c.role = roleWorker
	s.registerWorkerFunc(c, name, timeout)
}

func (s *Server) handlePreSleep(c *Connection) {
	for name := range c.funcs {
		fe := s.functions.getOrCreate(name)
		if !fe.empty() {
			c.enqueue(rt.NewResponse(rt.PT_Noop))
			return
		}
		fe.sleeping.add(c)
	}
}

// handleGrabJob assigns the first eligible queued job across everything c
// is registered for. Per spec §3, a worker holding a job must not remain
// in any function's sleeping set, so grabbing clears c from every one of
// its functions' sleeping sets up front rather than only the ones
// iterated before a match — otherwise a function visited after the match
// would keep a busy worker marked asleep.
func (s *Server) handleGrabJob(c *Connection, uniq bool) {
	for name := range c.funcs {
		if fe := s.functions.get(name); fe != nil {
			fe.sleeping.remove(c)
		}
	}
	for name := range c.funcs {
		fe := s.functions.get(name)
		if fe == nil {
			continue
		}
		if j := fe.dequeueFirst(); j != nil {
			j.Worker = c
			j.State = jobRunning
			j.StartedAt = time.Now()
			c.job = j
			jobsRunning.WithLabelValues(j.Function).Inc()
			queueDepth.WithLabelValues(j.Function).Set(float64(fe.queueLen()))
			if uniq {
				c.enqueue(rt.NewResponse(rt.PT_JobAssignUniq, []byte(j.Handle), []byte(j.Function), []byte(j.UniqueID), j.Payload))
			} else {
				c.enqueue(rt.NewResponse(rt.PT_JobAssign, []byte(j.Handle), []byte(j.Function), j.Payload))
			}
			return
		}
	}
	c.enqueue(rt.NewResponse(rt.PT_NoJob))
}

func (s *Server) handleWorkStatus(c *Connection, pkt *rt.Packet) {
	parts := rt.JoinArgsMax(pkt.RawBody, 3)
	if len(parts) < 3 {
		return
	}
	j, ok := s.jobs.get(string(parts[0]))
	if !ok {
		return
	}
	num, _ := strconv.ParseUint(string(parts[1]), 10, 64)
	den, _ := strconv.ParseUint(string(parts[2]), 10, 64)
	j.Numerator, j.Denominator = num, den
	if j.Client != nil {
		j.Client.enqueue(rt.NewResponse(rt.PT_WorkStatus, parts[0], parts[1], parts[2]))
	}
}

// handleWorkRelay forwards WORK_DATA/WORK_WARNING straight through to the
// owning client without touching job state — both are informational.
func (s *Server) handleWorkRelay(c *Connection, pkt *rt.Packet, t rt.PT) {
	parts := rt.JoinArgsMax(pkt.RawBody, 2)
	if len(parts) < 1 {
		return
	}
	j, ok := s.jobs.get(string(parts[0]))
	if !ok || j.Client == nil {
		return
	}
	if len(parts) == 2 {
		j.Client.enqueue(rt.NewResponse(t, parts[0], parts[1]))
	} else {
		j.Client.enqueue(rt.NewResponse(t, parts[0]))
	}
}

func (s *Server) handleWorkTerminal(c *Connection, pkt *rt.Packet, t rt.PT, final jobState) {
	parts := rt.JoinArgsMax(pkt.RawBody, 2)
	handle := string(parts[0])
	j, ok := s.jobs.get(handle)
	if !ok {
		return
	}
	if j.State != jobRunning {
		// Already terminal: a duplicate/late WORK_COMPLETE, WORK_FAIL or
		// WORK_EXCEPTION for a handle that already finished. Re-running
		// the body below would double-decrement jobsRunning and
		// re-forward the frame to a client that already got its result.
		return
	}
	j.State = final
	j.Worker = nil
	jobsRunning.WithLabelValues(j.Function).Dec()
	if !j.SubmittedAt.IsZero() {
		jobLatencySeconds.WithLabelValues(j.Function).Observe(time.Since(j.SubmittedAt).Seconds())
	}
	if c.job == j {
		c.job = nil
	}
	if j.Client != nil {
		if t == rt.PT_WorkException && !j.Client.wantExceptions {
			j.Client = nil
		} else if len(parts) == 2 {
			j.Client.enqueue(rt.NewResponse(t, parts[0], bytes.Clone(parts[1])))
		} else {
			j.Client.enqueue(rt.NewResponse(t, parts[0]))
		}
	}
	s.jobs.remove(handle)
	if j.Background && s.store != nil {
		s.store.Delete(handle)
	}
	s.drainCond.Broadcast()
}
