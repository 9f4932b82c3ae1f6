package server

import rt "github.com/gearhulk/gearhulk/pkg/runtime"

// inboundPacket pairs a decoded frame with the connection it arrived on,
// the unit of work handed to the dispatcher goroutine when
// Config.ThreadCount > 1.
type inboundPacket struct {
	conn *Connection
	pkt  *rt.Packet
}

// deadNotice signals that a connection's read loop has exited and the
// connection needs teardown. Collected on its own channel rather than
// torn down inline by the reader: the dispatcher is the only goroutine
// allowed to mutate the data model, and a reader racing its own teardown
// against a command still in flight for the same connection would
// invalidate whatever the dispatcher is mid-iteration over (spec §9,
// "connection cleanup must not run interleaved with dispatch").
type deadNotice struct {
	conn *Connection
}

// deliver is the single entry point every Connection.readLoop calls with
// a freshly decoded packet. In inline mode (ThreadCount == 1) it runs the
// command synchronously on the calling (reader) goroutine, still under
// s.mu; in dispatcher mode it hands the packet to the dedicated
// dispatcher goroutine via a channel and returns immediately, decoupling
// read throughput from command-processing latency.
func (s *Server) deliver(c *Connection, pkt *rt.Packet) {
	if s.inbound == nil {
		s.mu.Lock()
		s.handlePacket(c, pkt)
		s.mu.Unlock()
		return
	}
	s.inbound <- inboundPacket{conn: c, pkt: pkt}
}

// connDied is called by a Connection's read loop when its socket errors
// or EOFs. In dispatcher mode it only queues a deadNotice; in inline mode
// (ThreadCount == 1) it reaps the connection itself under s.mu.
func (s *Server) connDied(c *Connection) {
	c.markDead()
	if s.deadConns == nil {
		s.mu.Lock()
		s.reapConnection(c)
		s.mu.Unlock()
		return
	}
	s.deadConns <- deadNotice{conn: c}
}

// runDispatcher is the dispatcher goroutine's body in multi-threaded
// mode: it is the only goroutine that runs command handlers, each one
// under s.mu (spec §5 "a single data-model lock, held only while a
// command executes"). The sweep, the admin and web handlers and Stop
// also take s.mu for their own reads and updates.
//
// Dead-connection teardown uses a two-pass collect-then-mutate scheme:
// pending notices are drained into a local slice first, and only once
// the channel is empty does the loop acquire s.mu and reap each one.
// Reaping while new notices could still be arriving would let a
// just-reaped connection's handle reappear in a notice processed one
// iteration later against data structures that no longer reference it.
func (s *Server) runDispatcher() {
	for {
		select {
		case ib, ok := <-s.inbound:
			if !ok {
				return
			}
			s.mu.Lock()
			s.handlePacket(ib.conn, ib.pkt)
			s.mu.Unlock()
		case dn, ok := <-s.deadConns:
			if !ok {
				return
			}
			pending := []deadNotice{dn}
		drain:
			for {
				select {
				case more := <-s.deadConns:
					pending = append(pending, more)
				default:
					break drain
				}
			}
			s.mu.Lock()
			for _, p := range pending {
				s.reapConnection(p.conn)
			}
			s.mu.Unlock()
		}
	}
}
