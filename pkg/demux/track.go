// Package demux implements the streaming MP4 box-tree driver: it
// receives growing byte buffers, walks moov/trak, resolves the sample
// tables, frames NAL units, and delivers media info, track metadata
// and samples to a Sink.
package demux

import (
	"mp4demux/pkg/h264"
	"mp4demux/pkg/mp4"
)

// VideoMeta is the accumulated video-metadata record, populated
// incrementally as boxes are parsed and only considered final once
// the avcC configuration has been validated.
type VideoMeta struct {
	TrackID uint32

	Timescale     uint32
	Duration      uint32
	TimescaleMdhd uint32
	DurationMdhd  uint32

	CodecWidth    int
	CodecHeight   int
	PresentWidth  int
	PresentHeight int

	Profile      uint8
	Level        uint8
	BitDepth     uint8
	ChromaFormat uint32

	SarWidth  uint16
	SarHeight uint16

	FrameRate h264.FrameRate

	// RefSampleDuration is timescale * (fps.Den / fps.Num), in
	// timescale ticks, i.e. the nominal duration of one sample.
	RefSampleDuration int64

	AVCC  []byte
	Codec string
}

// MediaInfo is the record delivered to Sink.OnMediaInfo once every
// required field is populated.
type MediaInfo struct {
	MimeType         string
	Duration         uint32
	HasAudio         bool
	HasVideo         bool
	Width            int
	Height           int
	Fps              float64
	VideoCodec       string
	AudioCodec       string
	MajorBrand       string
	MinorVersion     uint32
	CompatibleBrands []string
}

// complete reports whether every field OnMediaInfo requires has been
// populated: width, height, fps and video codec, plus audio codec if
// HasAudio is set.
func (m MediaInfo) complete() bool {
	if m.Width == 0 || m.Height == 0 || m.Fps == 0 || m.VideoCodec == "" {
		return false
	}
	if m.HasAudio && m.AudioCodec == "" {
		return false
	}
	return true
}

// Sample is one decoded video access unit: its timestamps, keyframe
// flag and constituent NAL units, framed per §4.G.
type Sample struct {
	DTS        int64
	PTS        int64
	CTS        int64
	IsKeyframe bool
	Length     int
	NALUs      []h264.NALUnit
}

// VideoTrack accumulates samples for the video track between
// dispatches. Samples grows monotonically until the driver hands it to
// the sink, at which point it is drained (reset to empty).
type VideoTrack struct {
	ID      uint32
	Samples []Sample
}

// AudioTrack is always empty: audio track handling is out of scope,
// but the callback shape from spec.md §6 carries a slot for it.
type AudioTrack struct {
	ID      uint32
	Samples []Sample
}

// trakAccum collects everything parsed out of one trak subtree before
// the driver decides whether it is the video track.
type trakAccum struct {
	trackID uint32
	hasTkhd bool

	mdhd *mp4.Mdhd
	elst *mp4.Elst

	avc1     *mp4.Avc1
	avcCBody []byte

	stsc *mp4.Stsc
	stsz *mp4.Stsz
	stco *mp4.Stco
	stts *mp4.Stts
}

// isVideo reports whether this trak carried a usable avc1 sample
// entry, the signal this implementation uses to identify the video
// track (see DESIGN.md for why tkhd/mvhd id matching was dropped).
func (t *trakAccum) isVideo() bool {
	return t.avc1 != nil
}
