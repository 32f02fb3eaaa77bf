package demux

import (
	"fmt"

	"mp4demux/pkg/h264"
	"mp4demux/pkg/mp4"
)

// buildTables runs the sample-to-chunk resolver (§4.D) and timing
// resolver (§4.E) over the committed video trak's tables, then
// assembles and dispatches the video metadata and (once complete)
// media info records.
func (d *Demuxer) buildTables() error {
	if d.stsc == nil || d.stsz == nil || d.stco == nil || d.stts == nil {
		return fmt.Errorf("%w: video trak missing one of stsc/stsz/stco/stts", mp4.ErrMalformedBox)
	}

	table, err := mp4.BuildSampleTable(d.stsc, d.stsz, d.stco)
	if err != nil {
		return err
	}

	var sttsTotal uint64
	for _, e := range d.stts.Entries {
		sttsTotal += uint64(e.SampleCount)
	}
	if sttsTotal != uint64(len(table)) {
		return fmt.Errorf("%w: stts covers %d samples, stsz.sampleCount is %d",
			mp4.ErrSampleCountMismatch, sttsTotal, len(table))
	}

	mvhdTimescale := uint32(0)
	if d.mvhd != nil {
		mvhdTimescale = d.mvhd.Timescale
	}
	mdhdTimescale := uint32(0)
	if d.mdhd != nil {
		mdhdTimescale = d.mdhd.Timescale
	}

	startOffset := mp4.EditStartOffset(d.elst, mvhdTimescale, mdhdTimescale)
	mp4.AssignTimestamps(table, d.stts, startOffset)
	d.flatTable = table

	d.buildVideoMeta(mvhdTimescale, mdhdTimescale)
	d.videoTrack.ID = d.trackID

	d.sink.OnTrackMetadata("video", d.meta)
	d.metaDispatched = true

	d.buildMediaInfo()
	if !d.mediaInfoDispatched && d.mediaInfo.complete() {
		d.sink.OnMediaInfo(d.mediaInfo)
		d.mediaInfoDispatched = true
	}

	return nil
}

func (d *Demuxer) buildVideoMeta(mvhdTimescale, mdhdTimescale uint32) {
	fr := d.config.FrameRate

	var refSampleDuration int64
	if fr.Num != 0 {
		refSampleDuration = int64(mvhdTimescale) * int64(fr.Den) / int64(fr.Num)
	}

	var duration, durationMdhd uint32
	if d.mvhd != nil {
		duration = d.mvhd.Duration
	}
	if d.mdhd != nil {
		durationMdhd = d.mdhd.Duration
	}

	d.meta = VideoMeta{
		TrackID:           d.trackID,
		Timescale:         mvhdTimescale,
		Duration:          duration,
		TimescaleMdhd:     mdhdTimescale,
		DurationMdhd:      durationMdhd,
		CodecWidth:        d.config.Width,
		CodecHeight:       d.config.Height,
		PresentWidth:      d.config.Width,
		PresentHeight:     d.config.Height,
		Profile:           d.config.Profile,
		Level:             d.config.Level,
		BitDepth:          uint8(8 + d.config.SPS.BitDepthLumaMinus8),
		ChromaFormat:      d.config.SPS.ChromeFormatIdc,
		FrameRate:         fr,
		RefSampleDuration: refSampleDuration,
		AVCC:              d.avcCBody,
		Codec:             d.config.Codec,
	}

	if d.config.SPS.VUI != nil {
		d.meta.SarWidth = d.config.SPS.VUI.SarWidth
		d.meta.SarHeight = d.config.SPS.VUI.SarHeight
	}
}

func (d *Demuxer) buildMediaInfo() {
	duration := d.meta.Duration
	if d.opts.OverriddenDuration != 0 {
		duration = d.opts.OverriddenDuration
	}

	hasAudio := d.probe.HasAudio
	hasVideo := true
	if d.opts.OverriddenHasAudio {
		hasAudio = true
	}
	if d.opts.OverriddenHasVideo {
		hasVideo = true
	}

	compatible := make([]string, 0, len(d.ftyp.CompatibleBrands))
	for _, b := range d.ftyp.CompatibleBrands {
		compatible = append(compatible, b.String())
	}

	d.mediaInfo = MediaInfo{
		MimeType:         `video/mp4; codecs="` + d.config.Codec + `"`,
		Duration:         duration,
		HasAudio:         hasAudio,
		HasVideo:         hasVideo,
		Width:            d.config.Width,
		Height:           d.config.Height,
		Fps:              d.config.FrameRate.Float(),
		VideoCodec:       d.config.Codec,
		MajorBrand:       d.ftyp.MajorBrand.String(),
		MinorVersion:     d.ftyp.MinorVersion,
		CompatibleBrands: compatible,
	}
}

// dispatchSamples frames as many pending samples as the currently
// buffered bytes allow, advancing nextSampleIdx, and emits
// OnDataAvailable once for whatever batch it produced.
func (d *Demuxer) dispatchSamples() {
	produced := false

	for d.nextSampleIdx < len(d.flatTable) {
		flat := d.flatTable[d.nextSampleIdx]
		end := flat.FileOffset + uint64(flat.Size)
		if end > uint64(len(d.buf)) {
			break // wait for more bytes to arrive
		}

		data := d.buf[flat.FileOffset:end]
		nalus, isKeyframe, ok := h264.FrameNALUs(data, d.config.NaluLengthSize, flat.DTS, d.log)
		d.nextSampleIdx++
		if !ok {
			continue // malformed sample dropped per §4.G
		}

		d.videoTrack.Samples = append(d.videoTrack.Samples, Sample{
			DTS:        flat.DTS + int64(d.opts.TimestampBase),
			PTS:        flat.PTS + int64(d.opts.TimestampBase),
			CTS:        flat.CTS,
			IsKeyframe: isKeyframe,
			Length:     int(flat.Size),
			NALUs:      nalus,
		})
		produced = true
	}

	if produced && d.metaDispatched {
		video := d.videoTrack
		d.sink.OnDataAvailable(nil, &video)
		d.videoTrack.Samples = nil
	}
}
