package demux

import "mp4demux/pkg/mp4"

// Sink receives the four event kinds a demux session can emit,
// delivered synchronously during ParseChunks. This re-expresses
// spec.md's four callback slots as a single interface the host
// implements once, rather than four independently-wired closures.
type Sink interface {
	OnError(kind mp4.ErrorKind, info string)
	OnMediaInfo(info MediaInfo)
	OnTrackMetadata(kind string, meta VideoMeta)
	OnDataAvailable(audio *AudioTrack, video *VideoTrack)
}

// DiscardSink implements Sink by dropping every event. Useful as an
// embeddable zero-value default.
type DiscardSink struct{}

func (DiscardSink) OnError(mp4.ErrorKind, string)          {}
func (DiscardSink) OnMediaInfo(MediaInfo)                  {}
func (DiscardSink) OnTrackMetadata(string, VideoMeta)      {}
func (DiscardSink) OnDataAvailable(*AudioTrack, *VideoTrack) {}
