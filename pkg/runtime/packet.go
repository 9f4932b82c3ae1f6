package runtime

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Packet is one binary frame: magic + type + body. RawBody is always the
// source of truth for what a command handler reads, whether the packet
// arrived over the wire (DecodePacket) or was built in-process by
// NewPacket/NewResponse: how many NUL-separated arguments a body holds,
// and whether the last one may itself contain raw NULs (a job payload
// can), is a property of the command rather than of the codec, so
// decoders split RawBody themselves with JoinArgsMax. Args is kept
// alongside purely as the human-readable list the constructor was
// called with.
type Packet struct {
	Magic   [4]byte
	Type    PT
	Args    [][]byte // the arguments NewPacket/NewResponse NUL-joined into RawBody
	RawBody []byte   // the body every handler and Encode reads
}

// NewPacket builds a request packet (client/worker -> server magic) for
// the given type and arguments.
func NewPacket(t PT, args ...[]byte) *Packet {
	return &Packet{Magic: MagicReq, Type: t, Args: args, RawBody: bytes.Join(args, []byte{0})}
}

// NewResponse builds a response packet (server -> client/worker magic).
func NewResponse(t PT, args ...[]byte) *Packet {
	return &Packet{Magic: MagicRes, Type: t, Args: args, RawBody: bytes.Join(args, []byte{0})}
}

// Encode writes the packet's wire representation to w.
func (p *Packet) Encode(w io.Writer) error {
	body := p.RawBody
	header := make([]byte, MinPacketLength)
	copy(header[0:4], p.Magic[:])
	binary.BigEndian.PutUint32(header[4:8], uint32(p.Type))
	binary.BigEndian.PutUint32(header[8:12], uint32(len(body)))
	if _, err := w.Write(header); err != nil {
		return err
	}
	if len(body) > 0 {
		if _, err := w.Write(body); err != nil {
			return err
		}
	}
	return nil
}

// DecodePacket reads exactly one complete binary packet from r. It blocks
// until a full frame is available or the underlying reader errors/EOFs;
// callers that want a non-blocking "would it block" contract run this in
// its own goroutine (see pkg/server/connection.go).
func DecodePacket(r *bufio.Reader) (*Packet, error) {
	header := make([]byte, MinPacketLength)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}
	var magic [4]byte
	copy(magic[:], header[0:4])
	if magic != MagicReq && magic != MagicRes {
		return nil, fmt.Errorf("runtime: bad magic %v", magic)
	}
	pt, err := NewPT(binary.BigEndian.Uint32(header[4:8]))
	if err != nil {
		return nil, err
	}
	bodyLen := binary.BigEndian.Uint32(header[8:12])
	body := make([]byte, bodyLen)
	if bodyLen > 0 {
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, err
		}
	}
	return &Packet{Magic: magic, Type: pt, RawBody: body}, nil
}

// JoinArgsMax splits body into at most n arguments, the last one
// swallowing any remaining NULs verbatim — used to decode commands like
// SUBMIT_JOB or JOB_ASSIGN where the trailing workload may itself
// contain NUL bytes.
func JoinArgsMax(body []byte, n int) [][]byte {
	return bytes.SplitN(body, []byte{0}, n)
}
