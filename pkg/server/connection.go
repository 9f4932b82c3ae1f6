package server

import (
	"bufio"
	"net"
	"sync"
	"time"

	rt "github.com/gearhulk/gearhulk/pkg/runtime"
)

// role is a Connection's place in the per-connection protocol state
// machine (spec §4.2).
type role int

const (
	roleUnset role = iota
	roleClient
	roleWorker
	roleAdmin
)

func (r role) String() string {
	switch r {
	case roleClient:
		return "client"
	case roleWorker:
		return "worker"
	case roleAdmin:
		return "admin"
	default:
		return "unset"
	}
}

// Connection is a live transport endpoint plus protocol state (spec §3
// *Connection*). The outbound queue and its "exactly one NOOP pending"
// invariant are guarded by their own mutex+cond rather than the server's
// global lock, so a slow peer never stalls command dispatch on other
// connections — only the append/pop of this connection's own queue.
type Connection struct {
	id     uint64
	conn   net.Conn
	server *Server
	thread *Thread

	role role

	// worker-role state, guarded by Server.mu
	funcs map[string]uint32 // function name -> timeout (0 = none)
	job   *Job              // job currently assigned to this worker, if any

	// client-role state, guarded by Server.mu
	jobs           map[string]*Job // foreground jobs this client owns
	wantExceptions bool

	// outbound delivery, guarded by outMu/outCond
	outMu      sync.Mutex
	outCond    *sync.Cond
	outbox     []*rt.Packet
	noopQueued bool
	dead       bool
}

func newConnection(id uint64, nc net.Conn, srv *Server, th *Thread) *Connection {
	c := &Connection{
		id:     id,
		conn:   nc,
		server: srv,
		thread: th,
		funcs:  make(map[string]uint32),
		jobs:   make(map[string]*Job),
	}
	c.outCond = sync.NewCond(&c.outMu)
	return c
}

// enqueue appends pkt to the outbound queue in delivery order. A NOOP is
// coalesced: if one is already pending delivery, a second is dropped
// (spec §3 "noop-queued is true iff exactly one NOOP sits in the
// outbound queue").
func (c *Connection) enqueue(pkt *rt.Packet) {
	c.outMu.Lock()
	if pkt.Type == rt.PT_Noop {
		if c.noopQueued {
			c.outMu.Unlock()
			return
		}
		c.noopQueued = true
	}
	c.outbox = append(c.outbox, pkt)
	c.outCond.Signal()
	c.outMu.Unlock()
}

// markDead flags the connection dead and wakes its writer so it can exit.
// Safe to call more than once and from any goroutine.
func (c *Connection) markDead() {
	c.outMu.Lock()
	already := c.dead
	c.dead = true
	c.outMu.Unlock()
	if !already {
		c.outCond.Broadcast()
		c.conn.Close()
	}
}

func (c *Connection) isDead() bool {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	return c.dead
}

// writeLoop drains the outbound queue in order until the connection dies.
func (c *Connection) writeLoop() {
	for {
		c.outMu.Lock()
		for len(c.outbox) == 0 && !c.dead {
			c.outCond.Wait()
		}
		if len(c.outbox) == 0 && c.dead {
			c.outMu.Unlock()
			return
		}
		pkt := c.outbox[0]
		c.outbox = c.outbox[1:]
		if pkt.Type == rt.PT_Noop {
			c.noopQueued = false
		}
		c.outMu.Unlock()

		if err := pkt.Encode(c.conn); err != nil {
			c.markDead()
			return
		}
	}
}

// readLoop decodes inbound packets and feeds them to the server, either
// inline (single-threaded mode) or via the dispatcher's channel. A
// connection's very first byte decides its fate: binary packets always
// start with the NUL of "\0REQ", so anything else marks this as an
// admin-protocol connection speaking plain text lines instead (spec §8
// *Administrative protocol*), for the rest of its life.
func (c *Connection) readLoop() {
	r := bufio.NewReader(c.conn)
	first, err := r.Peek(1)
	if err != nil {
		c.server.connDied(c)
		return
	}
	if first[0] != 0 {
		c.role = roleAdmin
		c.adminLoop(r)
		return
	}
	for {
		if c.isDead() {
			return
		}
		if to := c.server.cfg.ProtocolTimeout; to > 0 {
			c.conn.SetReadDeadline(time.Now().Add(to))
		}
		pkt, err := rt.DecodePacket(r)
		if err != nil {
			c.server.connDied(c)
			return
		}
		c.server.deliver(c, pkt)
	}
}
