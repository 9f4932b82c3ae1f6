package worker

import (
	"testing"

	rt "github.com/gearhulk/gearhulk/pkg/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeFrame(t *testing.T, pt rt.PT, args ...[]byte) []byte {
	t.Helper()
	pkt := rt.NewResponse(pt, args...)
	var buf bufWriter
	require.NoError(t, pkt.Encode(&buf))
	return buf.b
}

type bufWriter struct{ b []byte }

func (w *bufWriter) Write(p []byte) (int, error) {
	w.b = append(w.b, p...)
	return len(p), nil
}

func TestDecodeInPackJobAssign(t *testing.T) {
	raw := encodeFrame(t, rt.PT_JobAssign, []byte("H:host:1"), []byte("reverse"), []byte("payload"))

	inpack, consumed, err := decodeInPack(raw)
	require.NoError(t, err)
	assert.Equal(t, len(raw), consumed)
	assert.Equal(t, "H:host:1", inpack.Handle())
	assert.Equal(t, "reverse", inpack.Fn())
	assert.Equal(t, []byte("payload"), inpack.Data())
}

func TestDecodeInPackJobAssignUniq(t *testing.T) {
	raw := encodeFrame(t, rt.PT_JobAssignUniq, []byte("H:host:2"), []byte("reverse"), []byte("uniq-1"), []byte("payload"))

	inpack, _, err := decodeInPack(raw)
	require.NoError(t, err)
	assert.Equal(t, "H:host:2", inpack.Handle())
	assert.Equal(t, "reverse", inpack.Fn())
	assert.Equal(t, "uniq-1", inpack.UniqueId())
	assert.Equal(t, []byte("payload"), inpack.Data())
}

func TestDecodeInPackIncompleteFrame(t *testing.T) {
	raw := encodeFrame(t, rt.PT_Noop)
	_, _, err := decodeInPack(raw[:rt.MinPacketLength-1])
	assert.Error(t, err)
}

func TestInPackErrTranslatesErrorPacket(t *testing.T) {
	raw := encodeFrame(t, rt.PT_Error, []byte("unknown-command"), []byte("boom"))
	inpack, _, err := decodeInPack(raw)
	require.NoError(t, err)

	assert.Error(t, inpack.Err())
}
