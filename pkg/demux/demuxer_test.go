package demux

import (
	"testing"

	"github.com/stretchr/testify/require"

	"mp4demux/pkg/mp4"
)

var sps640x480 = []byte{
	103, 100, 0, 22, 172, 217, 64, 164,
	59, 228, 136, 192, 68, 0, 0, 3,
	0, 4, 0, 0, 3, 0, 96, 60,
	88, 182, 88,
}

var pps640x480 = []byte{0x68, 0xeb, 0xe3, 0xcb, 0x22, 0xc0}

func box(typ mp4.BoxType, body []byte) []byte {
	size := 8 + len(body)
	out := []byte{byte(size >> 24), byte(size >> 16), byte(size >> 8), byte(size)}
	out = append(out, typ[:]...)
	return append(out, body...)
}

func fullBox(rest ...byte) []byte {
	return append([]byte{0, 0, 0, 0}, rest...)
}

func avcCBox() []byte {
	body := []byte{1, sps640x480[1], sps640x480[2], sps640x480[3], 0xfc | 3, 0xe0 | 1}
	body = append(body, byte(len(sps640x480)>>8), byte(len(sps640x480)))
	body = append(body, sps640x480...)
	body = append(body, 1)
	body = append(body, byte(len(pps640x480)>>8), byte(len(pps640x480)))
	body = append(body, pps640x480...)
	return box(mp4.TypeAvcC, body)
}

func avc1Entry() []byte {
	fixed := make([]byte, 78)
	fixed[24], fixed[25] = 0x02, 0x80 // width 640
	fixed[26], fixed[27] = 0x01, 0xe0 // height 480
	body := append(fixed, avcCBox()...)
	return box(mp4.TypeAvc1, body)
}

// buildFile assembles a minimal one-sample ftyp+moov+mdat stream with a
// single avc1 video track, given the absolute file offset of the
// sample data (for stco).
func buildFile(sampleOffset uint32, sampleSize uint32) []byte {
	ftyp := box(mp4.TypeFtyp, append([]byte("isom\x00\x00\x00\x00"), "isom"...))

	mvhd := box(mp4.TypeMvhd, append(fullBox(0, 0, 0, 0, 0, 0, 0, 0), 0, 0, 0x03, 0xe8, 0, 0, 0x27, 0x10))
	tkhd := box(mp4.TypeTkhd, append(fullBox(0, 0, 0, 0, 0, 0, 0, 0), 0, 0, 0, 1))
	mdhd := box(mp4.TypeMdhd, append(fullBox(0, 0, 0, 0, 0, 0, 0, 0), 0, 0, 0x03, 0xe8, 0, 0, 0x03, 0xe8))

	stsd := box(mp4.TypeStsd, append(append(fullBox(), 0, 0, 0, 1), avc1Entry()...))
	stsc := box(mp4.TypeStsc, append(fullBox(0, 0, 0, 1), 0, 0, 0, 1, 0, 0, 0, 1, 0, 0, 0, 1))
	stsz := box(mp4.TypeStsz, append(fullBox(0, 0, 0, 0), 0, 0, 0, 1, byte(sampleSize>>24), byte(sampleSize>>16), byte(sampleSize>>8), byte(sampleSize)))
	stco := box(mp4.TypeStco, append(fullBox(0, 0, 0, 1), byte(sampleOffset>>24), byte(sampleOffset>>16), byte(sampleOffset>>8), byte(sampleOffset)))
	stts := box(mp4.TypeStts, append(fullBox(0, 0, 0, 1), 0, 0, 0, 1, 0, 0, 0x03, 0xe8))

	stbl := box(mp4.TypeStbl, concat(stsd, stsc, stsz, stco, stts))
	minf := box(mp4.TypeMinf, stbl)
	mdia := box(mp4.TypeMdia, concat(mdhd, minf))
	trak := box(mp4.TypeTrak, concat(tkhd, mdia))
	moov := box(mp4.TypeMoov, concat(mvhd, trak))

	return concat(ftyp, moov)
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func buildSample() []byte {
	payload := []byte{0x65, 0, 0, 0} // IDR NAL
	prefix := []byte{0, 0, 0, byte(len(payload))}
	return append(prefix, payload...)
}

func fullStream() []byte {
	sample := buildSample()
	head := buildFile(0, uint32(len(sample)))
	offset := uint32(len(head)) + 8 // + mdat header
	head = buildFile(offset, uint32(len(sample)))
	mdat := box(mp4.TypeMdat, sample)
	return append(head, mdat...)
}

type recordingSink struct {
	errs      []string
	mediaInfo []MediaInfo
	metas     []VideoMeta
	samples   []Sample
}

func (r *recordingSink) OnError(kind mp4.ErrorKind, info string) {
	r.errs = append(r.errs, info)
}
func (r *recordingSink) OnMediaInfo(info MediaInfo) { r.mediaInfo = append(r.mediaInfo, info) }
func (r *recordingSink) OnTrackMetadata(kind string, meta VideoMeta) {
	r.metas = append(r.metas, meta)
}
func (r *recordingSink) OnDataAvailable(audio *AudioTrack, video *VideoTrack) {
	if video != nil {
		r.samples = append(r.samples, video.Samples...)
	}
}

func TestDemuxerFullStream(t *testing.T) {
	buf := fullStream()

	sink := &recordingSink{}
	d := New(sink, Options{}, nil)

	consumed := d.ParseChunks(buf, 0)

	require.Empty(t, sink.errs)
	require.Equal(t, len(buf), consumed)
	require.Equal(t, StateComplete, d.State())

	require.Len(t, sink.metas, 1)
	require.Equal(t, 640, sink.metas[0].CodecWidth)
	require.Equal(t, 480, sink.metas[0].CodecHeight)

	// OnMediaInfo only fires once every required field, including fps,
	// is known; ParseConfig substitutes a default frame rate when the
	// SPS carries no usable VUI timing info, so fps is always known here.
	require.Len(t, sink.mediaInfo, 1)
	require.Equal(t, 640, sink.mediaInfo[0].Width)
	require.Equal(t, 480, sink.mediaInfo[0].Height)
	require.Equal(t, "isom", sink.mediaInfo[0].MajorBrand)

	require.Len(t, sink.samples, 1)
	require.True(t, sink.samples[0].IsKeyframe)
	require.Len(t, sink.samples[0].NALUs, 1)
}

func TestDemuxerIncompleteHeaderWaitsForMoreData(t *testing.T) {
	buf := fullStream()

	sink := &recordingSink{}
	d := New(sink, Options{}, nil)

	consumed := d.ParseChunks(buf[:20], 0)
	require.Equal(t, 0, consumed)
	require.Equal(t, StateIdleAwaitingHeader, d.State())
	require.Empty(t, sink.errs)
}

func TestDemuxerRejectsNonMP4(t *testing.T) {
	sink := &recordingSink{}
	d := New(sink, Options{}, nil)

	buf := make([]byte, 64)
	copy(buf[4:8], "free")

	d.ParseChunks(buf, 0)
	require.Equal(t, StateError, d.State())
	require.Len(t, sink.errs, 1)
}

func TestDemuxerDestroyIgnoresFurtherChunks(t *testing.T) {
	sink := &recordingSink{}
	d := New(sink, Options{}, nil)
	d.Destroy()

	consumed := d.ParseChunks(fullStream(), 0)
	require.Equal(t, 0, consumed)
	require.Equal(t, StateComplete, d.State())
}

func TestDemuxerOverriddenOptionsApplied(t *testing.T) {
	buf := fullStream()

	sink := &recordingSink{}
	d := New(sink, Options{OverriddenDuration: 999, TimestampBase: 5000}, nil)
	d.ParseChunks(buf, 0)

	if len(sink.mediaInfo) == 1 {
		require.Equal(t, uint32(999), sink.mediaInfo[0].Duration)
	}
	require.Len(t, sink.samples, 1)
	require.Equal(t, int64(5000), sink.samples[0].DTS)
}
