// Package client lets a Go program submit jobs to a Gearman job server
// and receive their results.
package client

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	rt "github.com/gearhulk/gearhulk/pkg/runtime"
)

// ResponseHandler is invoked for every WORK_* frame the server forwards
// back for a submitted job.
type ResponseHandler func(*Response)

// Response is one WORK_STATUS/WORK_DATA/WORK_WARNING/WORK_COMPLETE/
// WORK_FAIL/WORK_EXCEPTION frame for a job this Client submitted.
type Response struct {
	Handle   string
	DataType rt.PT
	Data     []byte
}

// Client submits jobs to a single Gearman job server and routes its
// replies back to the caller that submitted each one.
type Client struct {
	sync.Mutex
	agent           *agent
	seq             uint64
	submitQueue     []chan string
	statusQueue     []chan *Status
	handlers        map[string]ResponseHandler
	ResponseTimeout time.Duration
	ErrorHandler    ErrorHandler
}

// New dials a Gearman job server at addr over network ("tcp" in
// practice) and returns a ready-to-use Client.
func New(network, addr string) (c *Client, err error) {
	c = &Client{
		handlers:        make(map[string]ResponseHandler),
		ResponseTimeout: 10 * time.Second,
	}
	c.agent, err = newAgent(network, addr, c)
	if err != nil {
		return nil, err
	}
	if err = c.agent.Connect(); err != nil {
		return nil, err
	}
	return c, nil
}

// Close disconnects from the server.
func (c *Client) Close() {
	c.agent.Close()
}

func (c *Client) err(e error) {
	if c.ErrorHandler != nil {
		c.ErrorHandler(e)
	}
}

func (c *Client) handleDisconnect(err error) {
	c.Lock()
	pending := c.submitQueue
	c.submitQueue = nil
	statusPending := c.statusQueue
	c.statusQueue = nil
	c.Unlock()
	for _, ch := range pending {
		close(ch)
	}
	for _, ch := range statusPending {
		close(ch)
	}
	c.err(fmt.Errorf("client: disconnected: %w", err))
}

func submitType(priority byte, background bool) rt.PT {
	switch {
	case priority == rt.JobHigh && background:
		return rt.PT_SubmitJobHighBG
	case priority == rt.JobLow && background:
		return rt.PT_SubmitJobLowBG
	case background:
		return rt.PT_SubmitJobBG
	case priority == rt.JobHigh:
		return rt.PT_SubmitJobHigh
	case priority == rt.JobLow:
		return rt.PT_SubmitJobLow
	default:
		return rt.PT_SubmitJob
	}
}

// Do submits a foreground job of the given priority, returning the handle
// the server assigned it. h, if non-nil, is called for every subsequent
// WORK_* frame the server reports for this job.
func (c *Client) Do(funcname string, data []byte, priority byte, h ResponseHandler) (handle string, err error) {
	return c.submit(funcname, data, priority, false, h)
}

// DoBackground submits a background job: the caller does not wait for or
// receive completion notifications.
func (c *Client) DoBackground(funcname string, data []byte, priority byte) (handle string, err error) {
	return c.submit(funcname, data, priority, true, nil)
}

func (c *Client) submit(funcname string, data []byte, priority byte, background bool, h ResponseHandler) (handle string, err error) {
	if funcname == "" {
		return "", ErrNoneFunction
	}

	id := strconv.FormatUint(atomic.AddUint64(&c.seq, 1), 10)
	body := rt.NewBuffer(len(funcname) + len(id) + len(data) + 2)
	n := copy(body, funcname)
	body[n] = 0
	n++
	n += copy(body[n:], id)
	body[n] = 0
	n++
	copy(body[n:], data)

	outpack := getOutPack()
	outpack.dataType = submitType(priority, background)
	outpack.data = body

	waiter := make(chan string, 1)
	c.Lock()
	c.submitQueue = append(c.submitQueue, waiter)
	c.Unlock()

	if err = c.agent.write(outpack); err != nil {
		return "", err
	}

	select {
	case handle, ok := <-waiter:
		if !ok {
			return "", ErrConnection
		}
		if !background && h != nil {
			c.Lock()
			c.handlers[handle] = h
			c.Unlock()
		}
		return handle, nil
	case <-time.After(c.ResponseTimeout):
		return "", ErrTimeOut
	}
}

// Status synchronously asks the server for a job's current status.
func (c *Client) Status(handle string) (*Status, error) {
	outpack := getOutPack()
	outpack.dataType = rt.PT_GetStatus
	outpack.data = []byte(handle)

	waiter := make(chan *Status, 1)
	c.Lock()
	c.statusQueue = append(c.statusQueue, waiter)
	c.Unlock()

	if err := c.agent.write(outpack); err != nil {
		return nil, err
	}

	select {
	case st, ok := <-waiter:
		if !ok {
			return nil, ErrConnection
		}
		return st, nil
	case <-time.After(c.ResponseTimeout):
		return nil, ErrTimeOut
	}
}

// Echo sends an ECHO_REQ carrying data to the server. It returns once the
// request is written; the server's ECHO_RES reply is not waited for.
func (c *Client) Echo(data []byte) error {
	outpack := getOutPack()
	outpack.dataType = rt.PT_EchoReq
	outpack.data = data
	return c.agent.write(outpack)
}

// handleInPack routes one decoded reply frame to whichever waiter or
// handler is responsible for it.
func (c *Client) handleInPack(inpack *inPack) {
	switch inpack.dataType {
	case rt.PT_JobCreated:
		c.Lock()
		var waiter chan string
		if len(c.submitQueue) > 0 {
			waiter = c.submitQueue[0]
			c.submitQueue = c.submitQueue[1:]
		}
		c.Unlock()
		if waiter != nil {
			waiter <- inpack.handle
		}
	case rt.PT_StatusRes:
		c.Lock()
		var waiter chan *Status
		if len(c.statusQueue) > 0 {
			waiter = c.statusQueue[0]
			c.statusQueue = c.statusQueue[1:]
		}
		c.Unlock()
		if waiter != nil {
			waiter <- decodeStatus(inpack.data)
		}
	case rt.PT_WorkStatus:
		n, d := numeratorDenominator(inpack.data, 0)
		c.dispatch(inpack.handle, &Response{Handle: inpack.handle, DataType: inpack.dataType, Data: []byte(fmt.Sprintf("%d/%d", n, d))})
	case rt.PT_WorkComplete, rt.PT_WorkFail, rt.PT_WorkException, rt.PT_WorkData, rt.PT_WorkWarning:
		c.dispatch(inpack.handle, &Response{Handle: inpack.handle, DataType: inpack.dataType, Data: inpack.data})
		if inpack.dataType == rt.PT_WorkComplete || inpack.dataType == rt.PT_WorkFail || inpack.dataType == rt.PT_WorkException {
			c.Lock()
			delete(c.handlers, inpack.handle)
			c.Unlock()
		}
	case rt.PT_Error:
		c.err(getError(inpack.data))
	}
}

func (c *Client) dispatch(handle string, resp *Response) {
	c.Lock()
	h := c.handlers[handle]
	c.Unlock()
	if h != nil {
		h(resp)
	}
}

// decodeStatus parses a STATUS_RES body: handle\0known\0running\0num\0denom.
func decodeStatus(data []byte) *Status {
	parts := rt.JoinArgsMax(data, 5)
	st := &Status{}
	if len(parts) >= 1 {
		st.Handle = string(parts[0])
	}
	if len(parts) >= 2 {
		st.Known = parts[1][0] == '1'
	}
	if len(parts) >= 3 {
		st.Running = parts[2][0] == '1'
	}
	if len(parts) >= 4 {
		st.Numerator, _ = strconv.ParseUint(string(parts[3]), 10, 64)
	}
	if len(parts) >= 5 {
		st.Denominator, _ = strconv.ParseUint(string(parts[4]), 10, 64)
	}
	return st
}
