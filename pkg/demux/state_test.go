package demux

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateIdleAwaitingHeader: "IdleAwaitingHeader",
		StateFtypParsed:         "FtypParsed",
		StateMoovParsing:        "MoovParsing",
		StateTrackTablesReady:   "TrackTablesReady",
		StateDispatching:        "Dispatching",
		StateComplete:           "Complete",
		StateError:              "Error",
		State(255):              "Unknown",
	}
	for state, want := range cases {
		require.Equal(t, want, state.String())
	}
}

func TestDiscardSink(t *testing.T) {
	var s DiscardSink
	require.NotPanics(t, func() {
		s.OnError(0, "x")
		s.OnMediaInfo(MediaInfo{})
		s.OnTrackMetadata("video", VideoMeta{})
		s.OnDataAvailable(nil, nil)
	})
}
