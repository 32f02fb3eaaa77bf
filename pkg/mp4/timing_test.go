package mp4

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEditStartOffsetNil(t *testing.T) {
	require.Equal(t, int64(0), EditStartOffset(nil, 1000, 1000))
}

func TestEditStartOffsetEmpty(t *testing.T) {
	require.Equal(t, int64(0), EditStartOffset(&Elst{}, 1000, 1000))
}

func TestEditStartOffsetScalesByTimescale(t *testing.T) {
	elst := &Elst{Entries: []ElstEntry{{MediaTime: 2000}}}
	require.Equal(t, int64(1000), EditStartOffset(elst, 2000, 1000))
}

func TestAssignTimestamps(t *testing.T) {
	table := make([]FlatSample, 4)
	stts := &Stts{Entries: []SttsEntry{
		{SampleCount: 2, SampleDelta: 1000},
		{SampleCount: 2, SampleDelta: 500},
	}}

	AssignTimestamps(table, stts, 0)

	require.Equal(t, int64(0), table[0].DTS)
	require.Equal(t, int64(1000), table[1].DTS)
	require.Equal(t, int64(2000), table[2].DTS)
	require.Equal(t, int64(2500), table[3].DTS)
	for _, s := range table {
		require.Equal(t, s.DTS, s.PTS)
	}
}

func TestAssignTimestampsWithStartOffset(t *testing.T) {
	table := make([]FlatSample, 2)
	stts := &Stts{Entries: []SttsEntry{{SampleCount: 2, SampleDelta: 1000}}}

	AssignTimestamps(table, stts, 500)

	require.Equal(t, int64(-500), table[0].DTS)
	require.Equal(t, int64(500), table[1].DTS)
}

func TestAssignTimestampsFewerTableEntriesThanStts(t *testing.T) {
	table := make([]FlatSample, 1)
	stts := &Stts{Entries: []SttsEntry{{SampleCount: 5, SampleDelta: 1000}}}

	require.NotPanics(t, func() { AssignTimestamps(table, stts, 0) })
	require.Equal(t, int64(0), table[0].DTS)
}
