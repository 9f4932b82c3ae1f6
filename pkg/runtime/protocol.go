// Package runtime holds the values shared by every side of the Gearman
// wire protocol: the client, the worker and the server. None of it talks
// to a socket directly; it is the common vocabulary the other packages
// build on.
package runtime

import "fmt"

//go:generate stringer -type=PT protocol.go

// PT is a Gearman packet type (what the protocol calls a "command").
type PT uint32

// Packet types, numbered per the standard Gearman protocol.
const (
	PT_CanDo PT = iota + 1
	PT_CantDo
	PT_ResetAbilities
	PT_PreSleep
	pt_unused5
	PT_Noop
	PT_SubmitJob
	PT_JobCreated
	PT_GrabJob
	PT_NoJob
	PT_JobAssign
	PT_WorkStatus
	PT_WorkComplete
	PT_WorkFail
	PT_GetStatus
	PT_EchoReq
	PT_EchoRes
	PT_SubmitJobBG
	PT_Error
	PT_StatusRes
	PT_SubmitJobHigh
	PT_SetClientId
	PT_CanDoTimeout
	PT_AllYours
	PT_WorkException
	PT_OptionReq
	PT_OptionRes
	PT_WorkData
	PT_WorkWarning
	PT_GrabJobUniq
	PT_JobAssignUniq
	PT_SubmitJobHighBG
	PT_SubmitJobLow
	PT_SubmitJobLowBG
	PT_SubmitJobSched
	PT_SubmitJobEpoch
)

// NewPT validates a wire command id and returns the corresponding PT.
func NewPT(v uint32) (PT, error) {
	pt := PT(v)
	switch pt {
	case PT_CanDo, PT_CantDo, PT_ResetAbilities, PT_PreSleep, PT_Noop,
		PT_SubmitJob, PT_JobCreated, PT_GrabJob, PT_NoJob, PT_JobAssign,
		PT_WorkStatus, PT_WorkComplete, PT_WorkFail, PT_GetStatus,
		PT_EchoReq, PT_EchoRes, PT_SubmitJobBG, PT_Error, PT_StatusRes,
		PT_SubmitJobHigh, PT_SetClientId, PT_CanDoTimeout, PT_AllYours,
		PT_WorkException, PT_OptionReq, PT_OptionRes, PT_WorkData,
		PT_WorkWarning, PT_GrabJobUniq, PT_JobAssignUniq,
		PT_SubmitJobHighBG, PT_SubmitJobLow, PT_SubmitJobLowBG,
		PT_SubmitJobSched, PT_SubmitJobEpoch:
		return pt, nil
	}
	return 0, fmt.Errorf("runtime: unknown packet type: %d", v)
}

// Priority levels for SUBMIT_JOB*.
const (
	JobLow byte = iota
	JobNormal
	JobHigh
)

// Network is the transport gearhulk dials/listens on by default.
const Network = "tcp"

// QueueSize bounds the buffered channel depth used between a worker
// agent's read loop and its owning Worker.
const QueueSize = 8

// MinPacketLength is magic(4) + type(4) + body-length(4).
const MinPacketLength = 12

// MagicReq and MagicRes are the two wire magic prefixes: requests sent by
// a client/worker, and responses/assignments sent by the server.
var (
	MagicReq = [4]byte{0, 'R', 'E', 'Q'}
	MagicRes = [4]byte{0, 'R', 'E', 'S'}
)

// NewBuffer allocates a zeroed byte slice of length l. It exists so the
// packet-building helpers in client/worker read the same way the rest of
// the codebase does, and so a pooled allocator can be dropped in later
// without touching call sites.
func NewBuffer(l int) []byte {
	return make([]byte, l)
}
