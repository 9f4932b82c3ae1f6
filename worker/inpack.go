package worker

import (
	"encoding/binary"
	"fmt"
	"strconv"

	rt "github.com/gearhulk/gearhulk/pkg/runtime"
)

// inPack is one assignment or notification a job server pushed to this
// worker: a job to run (JOB_ASSIGN/JOB_ASSIGN_UNIQ) or anything else the
// agent's read loop decodes off the wire (NOOP, ERROR, ...).
type inPack struct {
	dataType             rt.PT
	data                 []byte
	handle, uniqueId, fn string
	a                    *agent
}

func getInPack() *inPack {
	return &inPack{}
}

func (inpack *inPack) Data() []byte {
	return inpack.data
}

func (inpack *inPack) Fn() string {
	return inpack.fn
}

func (inpack *inPack) Handle() string {
	return inpack.handle
}

func (inpack *inPack) UniqueId() string {
	return inpack.uniqueId
}

func (inpack *inPack) Err() error {
	if inpack.dataType == rt.PT_Error {
		return getError(inpack.data)
	}
	return nil
}

// SendData streams partial results to the client while the job runs.
func (inpack *inPack) SendData(data []byte) {
	outpack := getOutPack()
	outpack.dataType = rt.PT_WorkData
	hl := len(inpack.handle)
	l := hl + len(data) + 1
	outpack.data = rt.NewBuffer(l)
	copy(outpack.data, []byte(inpack.handle))
	copy(outpack.data[hl+1:], data)
	inpack.a.write(outpack)
}

func (inpack *inPack) SendWarning(data []byte) {
	outpack := getOutPack()
	outpack.dataType = rt.PT_WorkWarning
	hl := len(inpack.handle)
	l := hl + len(data) + 1
	outpack.data = rt.NewBuffer(l)
	copy(outpack.data, []byte(inpack.handle))
	copy(outpack.data[hl+1:], data)
	inpack.a.write(outpack)
}

// UpdateStatus reports numerator/denominator progress for GET_STATUS polls.
func (inpack *inPack) UpdateStatus(numerator, denominator int) {
	n := []byte(strconv.Itoa(numerator))
	d := []byte(strconv.Itoa(denominator))
	outpack := getOutPack()
	outpack.dataType = rt.PT_WorkStatus
	hl := len(inpack.handle)
	nl := len(n)
	dl := len(d)
	outpack.data = rt.NewBuffer(hl + nl + dl + 2)
	copy(outpack.data, []byte(inpack.handle))
	copy(outpack.data[hl+1:], n)
	copy(outpack.data[hl+nl+2:], d)
	inpack.a.write(outpack)
}

// decodeInPack pulls one complete frame off the front of data, the way
// agent.readLoop's growing byte buffer needs: unlike rt.DecodePacket it
// must never block waiting for more bytes, so it re-checks the header
// length itself and reports "not enough data yet" as an error the caller
// treats as "try again once more bytes arrive". Once a frame's body is in
// hand, splitting it into arguments is delegated to rt.JoinArgsMax, the
// same helper the dispatch server's command handlers use, so the two
// sides of the wire agree on how a trailing payload may hide embedded NULs.
func decodeInPack(data []byte) (inpack *inPack, consumed int, err error) {
	if len(data) < rt.MinPacketLength {
		err = fmt.Errorf("worker: short header: %d bytes", len(data))
		return
	}
	bodyLen := int(binary.BigEndian.Uint32(data[8:12]))
	frameLen := bodyLen + rt.MinPacketLength
	if len(data) < frameLen {
		err = fmt.Errorf("worker: incomplete frame: have %d, want %d", len(data), frameLen)
		return
	}
	body := data[rt.MinPacketLength:frameLen]

	inpack = getInPack()
	inpack.dataType, err = rt.NewPT(binary.BigEndian.Uint32(data[4:8]))
	if err != nil {
		return
	}

	switch inpack.dataType {
	case rt.PT_JobAssign:
		if parts := rt.JoinArgsMax(body, 3); len(parts) == 3 {
			inpack.handle, inpack.fn, inpack.data = string(parts[0]), string(parts[1]), parts[2]
		}
	case rt.PT_JobAssignUniq:
		if parts := rt.JoinArgsMax(body, 4); len(parts) == 4 {
			inpack.handle, inpack.fn, inpack.uniqueId, inpack.data = string(parts[0]), string(parts[1]), string(parts[2]), parts[3]
		}
	default:
		inpack.data = body
	}
	consumed = frameLen
	return
}
