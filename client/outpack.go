package client

import (
	rt "github.com/gearhulk/gearhulk/pkg/runtime"
)

// outPack is a client-side outgoing packet; like worker's, its data is a
// fully pre-built body rather than a list of arguments still needing a
// NUL-join.
type outPack struct {
	dataType rt.PT
	data     []byte
}

func getOutPack() *outPack {
	return &outPack{}
}
