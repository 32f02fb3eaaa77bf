package demux

import (
	"fmt"

	"mp4demux/pkg/h264"
	"mp4demux/pkg/mp4"
	"mp4demux/pkg/mp4log"
)

const minFirstChunkSize = 36

// Demuxer is the streaming MP4 driver (component H): it owns one
// session's worth of accumulated state and is driven by repeated
// ParseChunks calls from a loader.
//
// A Demuxer is not safe for concurrent use; spec.md's concurrency
// model is single-threaded, cooperative, driven entirely by the
// owner's calls into ParseChunks.
type Demuxer struct {
	opts Options
	log  *mp4log.Logger
	sink Sink

	state State
	buf   []byte

	probe mp4.ProbeResult
	ftyp  *mp4.Ftyp
	mvhd  *mp4.Mvhd

	trackID  uint32
	mdhd     *mp4.Mdhd
	elst     *mp4.Elst
	avc1     *mp4.Avc1
	avcCBody []byte
	config   *h264.Config

	stsc *mp4.Stsc
	stsz *mp4.Stsz
	stco *mp4.Stco
	stts *mp4.Stts

	flatTable []mp4.FlatSample

	meta           VideoMeta
	metaDispatched bool

	mediaInfo           MediaInfo
	mediaInfoDispatched bool

	videoTrack    VideoTrack
	nextSampleIdx int

	destroyed bool
}

// New builds a Demuxer that reports to sink using log for advisory
// messages. A nil log discards them.
func New(sink Sink, opts Options, log *mp4log.Logger) *Demuxer {
	if log == nil {
		log = mp4log.Discard()
	}
	if sink == nil {
		sink = DiscardSink{}
	}
	return &Demuxer{
		opts: opts,
		log:  log,
		sink: sink,
		state: StateIdleAwaitingHeader,
	}
}

// State reports the driver's current lifecycle position.
func (d *Demuxer) State() State { return d.state }

// FlatTable returns the resolved flat sample table, non-nil once the
// driver has reached StateDispatching or later.
func (d *Demuxer) FlatTable() []mp4.FlatSample { return d.flatTable }

// AVCConfig returns the decoded AVC configuration and its raw avcC
// body, non-nil once the driver has reached StateTrackTablesReady or
// later.
func (d *Demuxer) AVCConfig() (*h264.Config, []byte) { return d.config, d.avcCBody }

// Destroy releases all accumulators. A destroyed Demuxer ignores
// further ParseChunks calls.
func (d *Demuxer) Destroy() {
	*d = Demuxer{opts: d.opts, log: d.log, sink: d.sink, state: StateComplete, destroyed: true}
}

// ParseChunks feeds a growing byte buffer to the driver. chunk is
// merged into the session's internal buffer at byteStart: a loader
// that re-sends the whole stream so far on every call (this module's
// pkg/loader does) should always pass byteStart 0; a loader that sends
// only newly-arrived bytes should pass the absolute offset of chunk[0].
// It returns how much of the session's buffer has been consumed so far,
// counted from the start of the stream: 0 while the header is still
// awaited or after an error, the ftyp size while moov is incomplete,
// and the whole buffer length once moov has been parsed.
func (d *Demuxer) ParseChunks(chunk []byte, byteStart uint64) int {
	if d.destroyed || d.state == StateError || d.state == StateComplete {
		return 0
	}

	d.mergeChunk(chunk, byteStart)

	if d.state == StateIdleAwaitingHeader {
		if !d.parseHeader() {
			return 0
		}
	}

	if d.state == StateFtypParsed {
		d.state = StateMoovParsing
	}

	if d.state == StateMoovParsing {
		if !d.parseMoov() {
			return d.probe.DataOffset
		}
	}

	if d.state == StateTrackTablesReady {
		if err := d.buildTables(); err != nil {
			d.fail(mp4.FormatError, err.Error())
			return 0
		}
		d.state = StateDispatching
	}

	if d.state == StateDispatching {
		d.dispatchSamples()
		if d.nextSampleIdx >= len(d.flatTable) {
			d.state = StateComplete
		}
	}

	return len(d.buf)
}

func (d *Demuxer) mergeChunk(chunk []byte, byteStart uint64) {
	switch {
	case byteStart == 0 && len(chunk) >= len(d.buf):
		d.buf = chunk
	case int(byteStart) == len(d.buf):
		d.buf = append(d.buf, chunk...)
	default:
		// Overlapping or out-of-order chunk: ignore, the loader is
		// expected to retry with the correct offset.
	}
}

// parseHeader runs the static probe and decodes ftyp. Returns false if
// more data is needed or a fatal error was reported.
func (d *Demuxer) parseHeader() bool {
	if len(d.buf) <= minFirstChunkSize {
		return false
	}

	probe := mp4.Probe(d.buf)
	if !probe.Match {
		d.fail(mp4.FormatError, "MP4: could not find ftyp box")
		return false
	}
	d.probe = probe

	ftyp, err := mp4.UnmarshalFtyp(d.buf[8:probe.DataOffset])
	if err != nil {
		d.fail(mp4.FormatError, fmt.Sprintf("MP4: malformed ftyp: %v", err))
		return false
	}
	d.ftyp = ftyp

	if d.opts.OverriddenHasAudio {
		d.probe.HasAudio = true
	}
	if d.opts.OverriddenHasVideo {
		d.probe.HasVideo = true
	}

	d.state = StateFtypParsed
	return true
}

// parseMoov waits for the full moov box to have arrived, then walks
// it. Returns false if more data is still needed or a fatal error was
// reported.
func (d *Demuxer) parseMoov() bool {
	const boxHeaderSize = 8

	if len(d.buf) < d.probe.InfoOffset+boxHeaderSize {
		return false
	}

	moovSize, err := mp4.ReadUint32(d.buf, d.probe.InfoOffset)
	if err != nil {
		d.fail(mp4.Exception, err.Error())
		return false
	}
	moovType, err := mp4.ReadFourCC(d.buf, d.probe.InfoOffset+4)
	if err != nil {
		d.fail(mp4.Exception, err.Error())
		return false
	}
	if moovType != mp4.TypeMoov {
		d.fail(mp4.FormatError, fmt.Sprintf("MP4: expected moov at %d, found %s", d.probe.InfoOffset, moovType))
		return false
	}

	moovEnd := d.probe.InfoOffset + int(moovSize)
	if len(d.buf) < moovEnd {
		return false
	}

	if err := d.walkMoov(d.probe.InfoOffset+boxHeaderSize, moovEnd); err != nil {
		d.fail(mp4.FormatError, err.Error())
		return false
	}

	if d.avc1 == nil {
		d.fail(mp4.CodecUnsupported, "MP4: no usable avc1 video track found")
		return false
	}

	config, err := h264.ParseConfig(d.avcCBody, d.log)
	if err != nil {
		d.fail(mp4.FormatError, err.Error())
		return false
	}
	d.config = config

	d.state = StateTrackTablesReady
	return true
}

func (d *Demuxer) fail(kind mp4.ErrorKind, info string) {
	d.state = StateError
	d.sink.OnError(kind, info)
}
