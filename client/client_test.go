package client

import (
	"bytes"
	"testing"

	rt "github.com/gearhulk/gearhulk/pkg/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeStatus(t *testing.T) {
	body := []byte("H:host:1\x001\x001\x003\x0010")
	st := decodeStatus(body)

	assert.Equal(t, "H:host:1", st.Handle)
	assert.True(t, st.Known)
	assert.True(t, st.Running)
	assert.Equal(t, uint64(3), st.Numerator)
	assert.Equal(t, uint64(10), st.Denominator)
}

func TestDecodeStatusUnknownJob(t *testing.T) {
	body := []byte("H:host:9\x000\x000\x000\x000")
	st := decodeStatus(body)

	assert.False(t, st.Known)
	assert.False(t, st.Running)
}

func TestSubmitQueueDeliversHandleToWaiter(t *testing.T) {
	c := &Client{handlers: make(map[string]ResponseHandler)}

	waiter := make(chan string, 1)
	c.submitQueue = append(c.submitQueue, waiter)

	c.handleInPack(&inPack{dataType: rt.PT_JobCreated, handle: "H:host:42"})

	select {
	case got := <-waiter:
		assert.Equal(t, "H:host:42", got)
	default:
		t.Fatal("expected the JOB_CREATED reply to be delivered to the waiting submit call")
	}
}

func TestHandleInPackDispatchesWorkCompleteAndClearsHandler(t *testing.T) {
	c := &Client{handlers: make(map[string]ResponseHandler)}

	var got *Response
	c.handlers["H:host:1"] = func(r *Response) { got = r }

	c.handleInPack(&inPack{dataType: rt.PT_WorkComplete, handle: "H:host:1", data: []byte("done")})

	require.NotNil(t, got)
	assert.Equal(t, "done", string(got.Data))

	c.Lock()
	_, stillRegistered := c.handlers["H:host:1"]
	c.Unlock()
	assert.False(t, stillRegistered, "a terminal WORK_* frame must drop the handler for its handle")
}

func TestHandleInPackKeepsHandlerAcrossWorkStatus(t *testing.T) {
	c := &Client{handlers: make(map[string]ResponseHandler)}

	calls := 0
	c.handlers["H:host:1"] = func(r *Response) { calls++ }

	c.handleInPack(&inPack{dataType: rt.PT_WorkStatus, handle: "H:host:1", data: []byte("H:host:1\x005\x0010")})

	assert.Equal(t, 1, calls)
	c.Lock()
	_, stillRegistered := c.handlers["H:host:1"]
	c.Unlock()
	assert.True(t, stillRegistered)
}

func TestDecodeInPackJobCreated(t *testing.T) {
	pkt := rt.NewResponse(rt.PT_JobCreated, []byte("H:host:7"))
	raw := encodePacketBytes(t, pkt)
	inpack, consumed, err := decodeInPack(raw)
	require.NoError(t, err)
	assert.Equal(t, len(raw), consumed)
	assert.Equal(t, "H:host:7", inpack.handle)
}

func encodePacketBytes(t *testing.T, pkt *rt.Packet) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, pkt.Encode(&buf))
	return buf.Bytes()
}
