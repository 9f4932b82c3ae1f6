package client

import (
	"encoding/binary"
	"fmt"
	"strconv"

	rt "github.com/gearhulk/gearhulk/pkg/runtime"
)

// Client-side reply packet: a decoded frame from the server, still tagged
// with which agent (server connection) it arrived on.
type inPack struct {
	dataType rt.PT
	handle   string
	data     []byte
	a        *agent
}

func getInPack() *inPack {
	return &inPack{}
}

// decodeInPack mirrors worker.decodeInPack: it parses the first complete
// frame at the front of data and returns it plus how many bytes it
// consumed; the caller loops to decode any further frames.
func decodeInPack(data []byte) (inpack *inPack, l int, err error) {
	if len(data) < rt.MinPacketLength {
		err = fmt.Errorf("client: not enough data: %d bytes", len(data))
		return
	}
	dl := int(binary.BigEndian.Uint32(data[8:12]))
	if len(data) < dl+rt.MinPacketLength {
		err = fmt.Errorf("client: not enough data: need %d, have %d", dl+rt.MinPacketLength, len(data))
		return
	}
	dt := data[rt.MinPacketLength : dl+rt.MinPacketLength]

	inpack = getInPack()
	inpack.dataType, err = rt.NewPT(binary.BigEndian.Uint32(data[4:8]))
	if err != nil {
		return
	}

	switch inpack.dataType {
	case rt.PT_JobCreated:
		inpack.handle = string(dt)
	case rt.PT_WorkStatus:
		s := rt.JoinArgsMax(dt, 3)
		if len(s) == 3 {
			inpack.handle = string(s[0])
			inpack.data = dt
		}
	case rt.PT_WorkComplete, rt.PT_WorkFail, rt.PT_WorkException,
		rt.PT_WorkData, rt.PT_WorkWarning:
		s := rt.JoinArgsMax(dt, 2)
		inpack.handle = string(s[0])
		if len(s) == 2 {
			inpack.data = s[1]
		}
	case rt.PT_StatusRes:
		inpack.data = dt
		s := rt.JoinArgsMax(dt, 2)
		if len(s) >= 1 {
			inpack.handle = string(s[0])
		}
	default:
		inpack.data = dt
	}
	l = dl + rt.MinPacketLength
	return
}

// numeratorDenominator splits a WORK_STATUS / STATUS_RES body after the
// handle into its numeric fields.
func numeratorDenominator(data []byte, skip int) (uint64, uint64) {
	parts := rt.JoinArgsMax(data, skip+3)
	if len(parts) < skip+3 {
		return 0, 0
	}
	n, _ := strconv.ParseUint(string(parts[skip+1]), 10, 64)
	d, _ := strconv.ParseUint(string(parts[skip+2]), 10, 64)
	return n, d
}
