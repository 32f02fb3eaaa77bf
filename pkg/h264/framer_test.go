package h264

import (
	"testing"

	"github.com/stretchr/testify/require"

	"mp4demux/pkg/mp4log"
)

func lengthPrefixed(nalus ...[]byte) []byte {
	var out []byte
	for _, n := range nalus {
		size := len(n)
		out = append(out, byte(size>>24), byte(size>>16), byte(size>>8), byte(size))
		out = append(out, n...)
	}
	return out
}

func TestFrameNALUs(t *testing.T) {
	idr := []byte{0x65, 0xaa, 0xbb}
	nonIDR := []byte{0x61, 0xcc}
	data := lengthPrefixed(idr, nonIDR)

	nalus, isKeyframe, ok := FrameNALUs(data, 4, 1000, mp4log.Discard())
	require.True(t, ok)
	require.True(t, isKeyframe)
	require.Len(t, nalus, 2)
	require.Equal(t, NALUTypeIDR, nalus[0].Type)
	require.Equal(t, NALUTypeNonIDR, nalus[1].Type)
	require.Equal(t, data, append(append([]byte{}, nalus[0].Data...), nalus[1].Data...))
}

func TestFrameNALUsNotKeyframe(t *testing.T) {
	nonIDR := []byte{0x61, 0xcc}
	data := lengthPrefixed(nonIDR)

	_, isKeyframe, ok := FrameNALUs(data, 4, 1000, mp4log.Discard())
	require.True(t, ok)
	require.False(t, isKeyframe)
}

func TestFrameNALUsThreeByteLength(t *testing.T) {
	idr := []byte{0x65, 0xaa}
	size := len(idr)
	data := append([]byte{byte(size >> 16), byte(size >> 8), byte(size)}, idr...)

	nalus, isKeyframe, ok := FrameNALUs(data, 3, 1000, mp4log.Discard())
	require.True(t, ok)
	require.True(t, isKeyframe)
	require.Len(t, nalus, 1)
}

func TestFrameNALUsTruncated(t *testing.T) {
	idr := []byte{0x65, 0xaa, 0xbb, 0xcc}
	data := lengthPrefixed(idr)
	data = data[:len(data)-1] // drop the last payload byte

	nalus, isKeyframe, ok := FrameNALUs(data, 4, 1000, mp4log.Discard())
	require.False(t, ok)
	require.False(t, isKeyframe)
	require.Nil(t, nalus)
}
