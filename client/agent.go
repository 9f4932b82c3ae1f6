package client

import (
	"net"
	"sync"

	rt "github.com/gearhulk/gearhulk/pkg/runtime"
)

// agent is a Client's connection to one Gearman job server.
type agent struct {
	sync.Mutex
	conn      net.Conn
	client    *Client
	net, addr string
	buf       []byte
}

func newAgent(network, addr string, c *Client) (a *agent, err error) {
	a = &agent{client: c, net: network, addr: addr}
	return
}

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

func (a *agent) Close() {
	a.Lock()
	conn := a.conn
	a.conn = nil
	a.Unlock()
	if conn != nil {
		conn.Close()
	}
}

func (a *agent) write(outpack *outPack) error {
	a.Lock()
	conn := a.conn
	a.Unlock()
	if conn == nil {
		return ErrConnection
	}
	pkt := rt.NewPacket(outpack.dataType, outpack.data)
	return pkt.Encode(conn)
}

func (a *agent) readLoop(conn net.Conn) {
	tmp := make([]byte, 4096)
	for {
		n, err := conn.Read(tmp)
		if err != nil {
			a.client.handleDisconnect(err)
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
			a.client.handleInPack(inpack)
		}

		a.Lock()
		a.buf = append(a.buf[:0], buf...)
		a.Unlock()
	}
}
