package server

import (
	"fmt"
	"time"

	cron "gopkg.in/robfig/cron.v2"
)

// sweeper periodically scans for CAN_DO_TIMEOUT workers that have been
// holding a job longer than the timeout they registered (spec §6 Open
// Question: per-function worker timeouts). It does nothing else. Driven by
// robfig/cron.v2 rather than a bare time.Ticker, matching how the rest
// of this stack favors a declarative scheduling library over hand-rolled
// timer loops.
type sweeper struct {
	cron *cron.Cron
}

func (s *Server) startSweep() {
	if s.cfg.SweepInterval <= 0 {
		return
	}
	c := cron.New()
	spec := fmt.Sprintf("@every %s", s.cfg.SweepInterval)
	if _, err := c.AddFunc(spec, s.sweepTimedOutJobs); err != nil {
		s.log.Errorf("gearhulk: failed to schedule sweep: %v", err)
		return
	}
	c.Start()
	s.sweeper = &sweeper{cron: c}
}

func (s *Server) stopSweep() {
	if s.sweeper != nil {
		s.sweeper.cron.Stop()
	}
}

// sweepTimedOutJobs treats any worker holding a job past its registered
// CAN_DO_TIMEOUT as dead (spec §5 "Cancellation & timeouts"). It only
// marks the connection dead; the ordinary dead-connection path (the
// read loop erroring out and calling connDied) does the actual
// teardown and re-queues the job at the head of its FIFO exactly as on
// an unannounced worker disconnect, so there is a single place that
// ever reaps a connection.
func (s *Server) sweepTimedOutJobs() {
	s.mu.Lock()
	var timedOut []*Connection
	for _, j := range s.jobs.byHandle {
		if j.State != jobRunning || j.Worker == nil {
			continue
		}
		timeout, ok := j.Worker.funcs[j.Function]
		if !ok || timeout == 0 {
			continue
		}
		if time.Since(j.StartedAt) < time.Duration(timeout)*time.Second {
			continue
		}
		timedOut = append(timedOut, j.Worker)
	}
	s.mu.Unlock()

	for _, w := range timedOut {
		w.markDead()
	}
}
