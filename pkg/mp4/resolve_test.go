package mp4

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildSampleTableConstantSize(t *testing.T) {
	stsc := &Stsc{Entries: []StscEntry{{FirstChunk: 1, SamplesPerChunk: 2, SampleDescriptionIndex: 1}}}
	stsz := &Stsz{SampleSize: 100, SampleCount: 4}
	stco := &Stco{Entries: []uint32{1000, 2000}}

	table, err := BuildSampleTable(stsc, stsz, stco)
	require.NoError(t, err)
	require.Len(t, table, 4)

	require.Equal(t, uint64(1000), table[0].FileOffset)
	require.Equal(t, uint64(1100), table[1].FileOffset)
	require.Equal(t, uint64(2000), table[2].FileOffset)
	require.Equal(t, uint64(2100), table[3].FileOffset)
	for _, s := range table {
		require.Equal(t, uint32(100), s.Size)
	}
}

func TestBuildSampleTableVariableSize(t *testing.T) {
	stsc := &Stsc{Entries: []StscEntry{{FirstChunk: 1, SamplesPerChunk: 3, SampleDescriptionIndex: 1}}}
	stsz := &Stsz{SampleCount: 3, Sizes: []uint32{10, 20, 30}}
	stco := &Stco{Entries: []uint32{0}}

	table, err := BuildSampleTable(stsc, stsz, stco)
	require.NoError(t, err)
	require.Equal(t, []uint32{10, 20, 30}, []uint32{table[0].Size, table[1].Size, table[2].Size})
	require.Equal(t, uint64(0), table[0].FileOffset)
	require.Equal(t, uint64(10), table[1].FileOffset)
	require.Equal(t, uint64(30), table[2].FileOffset)
}

func TestBuildSampleTableMultipleStscRuns(t *testing.T) {
	stsc := &Stsc{Entries: []StscEntry{
		{FirstChunk: 1, SamplesPerChunk: 1, SampleDescriptionIndex: 1},
		{FirstChunk: 2, SamplesPerChunk: 2, SampleDescriptionIndex: 1},
	}}
	stsz := &Stsz{SampleSize: 10, SampleCount: 5}
	stco := &Stco{Entries: []uint32{0, 10, 20}}

	table, err := BuildSampleTable(stsc, stsz, stco)
	require.NoError(t, err)
	require.Len(t, table, 5)
	require.Equal(t, 0, table[0].ChunkIndex)
	require.Equal(t, 1, table[1].ChunkIndex)
	require.Equal(t, 1, table[2].ChunkIndex)
	require.Equal(t, 2, table[3].ChunkIndex)
	require.Equal(t, 2, table[4].ChunkIndex)
}

func TestBuildSampleTableSampleCountMismatch(t *testing.T) {
	stsc := &Stsc{Entries: []StscEntry{{FirstChunk: 1, SamplesPerChunk: 2, SampleDescriptionIndex: 1}}}
	stsz := &Stsz{SampleSize: 10, SampleCount: 1}
	stco := &Stco{Entries: []uint32{0}}

	_, err := BuildSampleTable(stsc, stsz, stco)
	require.ErrorIs(t, err, ErrSampleCountMismatch)
}

func TestBuildSampleTableEmptyStsc(t *testing.T) {
	stsc := &Stsc{}
	stsz := &Stsz{SampleSize: 10, SampleCount: 1}
	stco := &Stco{Entries: []uint32{0}}

	_, err := BuildSampleTable(stsc, stsz, stco)
	require.ErrorIs(t, err, ErrMalformedBox)
}
