package worker

import (
	rt "github.com/gearhulk/gearhulk/pkg/runtime"
)

// Worker-side outgoing packet. Unlike inPack, an outPack's data is usually
// already a fully-built body (handle+NUL+payload and the like); agent.write
// ships it verbatim rather than re-joining arguments. When handle is set,
// agent.write puts the handle and a NUL in front of data.
type outPack struct {
	dataType rt.PT
	handle   string
	data     []byte
}

// Create a new outgoing packet.
func getOutPack() *outPack {
	return &outPack{}
}
