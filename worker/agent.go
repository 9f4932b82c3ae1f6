package worker

import (
	"net"
	"sync"

	rt "github.com/gearhulk/gearhulk/pkg/runtime"
)

// agent is a worker's connection to a single Gearman job server. A Worker
// holds one agent per AddServer call and broadcasts registrations to all
// of them; a job's status and result frames go only to the agent the job
// arrived on.
type agent struct {
	sync.Mutex
	conn      net.Conn
	worker    *Worker
	net, addr string
	buf       []byte
}

// newAgent creates an unconnected agent for network/addr. Connect must be
// called before it is usable.
func newAgent(network, addr string, w *Worker) (a *agent, err error) {
	a = &agent{worker: w, net: network, addr: addr}
	return
}

// Connect dials the job server and starts the agent's read loop.
func (a *agent) Connect() (err error) {
	conn, err := net.Dial(a.net, a.addr)
	if err != nil {
		return err
	}
	a.Lock()
	a.conn = conn
	a.buf = a.buf[:0]
	a.Unlock()
	go a.readLoop(conn)
	return nil
}

// reconnect tears down the current connection (if any) and redials,
// re-registering every function the worker has added so far.
func (a *agent) reconnect() (err error) {
	a.Close()
	if err = a.Connect(); err != nil {
		return err
	}
	a.worker.reRegisterFuncsForAgent(a)
	return nil
}

// Close shuts down the agent's connection. Safe to call more than once.
func (a *agent) Close() {
	a.Lock()
	conn := a.conn
	a.conn = nil
	a.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// Grab asks the server for an assignment.
func (a *agent) Grab() {
	outpack := getOutPack()
	outpack.dataType = rt.PT_GrabJobUniq
	a.write(outpack)
}

// PreSleep tells the server this agent has nothing left to do right now.
func (a *agent) PreSleep() {
	outpack := getOutPack()
	outpack.dataType = rt.PT_PreSleep
	a.write(outpack)
}

// Write sends an already-built outPack. Worker.exec uses it to report a
// job's final result.
func (a *agent) Write(outpack *outPack) error {
	return a.write(outpack)
}

func (a *agent) write(outpack *outPack) error {
	a.Lock()
	conn := a.conn
	a.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	pkt := rt.NewPacket(outpack.dataType, outpack.data)
	if outpack.handle != "" {
		if len(outpack.data) > 0 {
			pkt = rt.NewPacket(outpack.dataType, []byte(outpack.handle), outpack.data)
		} else {
			pkt = rt.NewPacket(outpack.dataType, []byte(outpack.handle))
		}
	}
	return pkt.Encode(conn)
}

// readLoop decodes inPacks off the wire and hands them to the worker's
// dispatch channel until the connection errors or closes.
func (a *agent) readLoop(conn net.Conn) {
	tmp := make([]byte, 4096)
	for {
		n, err := conn.Read(tmp)
		if err != nil {
			a.worker.err(&WorkerDisconnectError{err: err, agent: a})
			return
		}

		a.Lock()
		a.buf = append(a.buf, tmp[:n]...)
		buf := a.buf
		a.Unlock()

		for {
			inpack, consumed, derr := decodeInPack(buf)
			if derr != nil {
				break
			}
			inpack.a = a
			buf = buf[consumed:]
			a.worker.in <- inpack
		}

		a.Lock()
		a.buf = append(a.buf[:0], buf...)
		a.Unlock()
	}
}
