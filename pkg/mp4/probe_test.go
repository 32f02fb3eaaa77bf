package mp4

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProbeMatch(t *testing.T) {
	ftyp := box(TypeFtyp, []byte("isom\x00\x00\x02\x00isomiso4"))
	moov := box(TypeMoov, []byte("vide soun"))
	buf := append(append([]byte{}, ftyp...), moov...)

	result := Probe(buf)
	require.True(t, result.Match)
	require.Equal(t, len(ftyp), result.DataOffset)
	require.Equal(t, 0, result.RawDataSize)
	require.Equal(t, len(ftyp), result.InfoOffset)
	require.True(t, result.HasVideo)
	require.True(t, result.HasAudio)
}

func TestProbeSkipsFreeBoxBeforeMoov(t *testing.T) {
	ftyp := box(TypeFtyp, []byte("isom"))
	free := box(BoxType{'f', 'r', 'e', 'e'}, []byte{1, 2, 3, 4})
	moov := box(TypeMoov, []byte("vide"))
	buf := append(append(append([]byte{}, ftyp...), free...), moov...)

	result := Probe(buf)
	require.True(t, result.Match)
	require.Equal(t, len(free), result.RawDataSize)
	require.Equal(t, len(ftyp)+len(free), result.InfoOffset)
	require.True(t, result.HasVideo)
	require.False(t, result.HasAudio)
}

func TestProbeNoMatchWithoutFtyp(t *testing.T) {
	buf := box(TypeMoov, []byte("vide"))
	result := Probe(buf)
	require.False(t, result.Match)
}

func TestProbeTooShort(t *testing.T) {
	result := Probe([]byte{0, 0, 0})
	require.False(t, result.Match)
}
