package mp4

import "fmt"

// FullBox holds the version/flags header shared by every "full box":
// mvhd, tkhd, mdhd, elst, stsd, stsc, stsz, stco, stts.
type FullBox struct {
	Version uint8
	Flags   [3]byte
}

// UnmarshalFullBox reads the 4 byte version+flags header at the start of
// buf and returns the number of bytes consumed (always 4).
func UnmarshalFullBox(buf []byte) (FullBox, int, error) {
	if len(buf) < 4 {
		return FullBox{}, 0, ErrBufferUnderflow
	}
	return FullBox{
		Version: buf[0],
		Flags:   [3]byte{buf[1], buf[2], buf[3]},
	}, 4, nil
}

/*************************** ftyp ****************************/

// Ftyp is the file type / compatibility box.
type Ftyp struct {
	MajorBrand       BoxType
	MinorVersion     uint32
	CompatibleBrands []BoxType
}

// UnmarshalFtyp decodes an ftyp body.
func UnmarshalFtyp(buf []byte) (*Ftyp, error) {
	major, err := ReadFourCC(buf, 0)
	if err != nil {
		return nil, err
	}
	minor, err := ReadUint32(buf, 4)
	if err != nil {
		return nil, err
	}

	b := &Ftyp{MajorBrand: major, MinorVersion: minor}
	for pos := 8; pos+4 <= len(buf); pos += 4 {
		brand, err := ReadFourCC(buf, pos)
		if err != nil {
			return nil, err
		}
		b.CompatibleBrands = append(b.CompatibleBrands, brand)
	}
	return b, nil
}

/*************************** mvhd ****************************/

// Mvhd is the movie header box (version 0 only).
type Mvhd struct {
	FullBox
	Timescale uint32
	Duration  uint32
}

// UnmarshalMvhd decodes an mvhd body.
func UnmarshalMvhd(buf []byte) (*Mvhd, error) {
	full, pos, err := UnmarshalFullBox(buf)
	if err != nil {
		return nil, err
	}
	if full.Version != 0 {
		return nil, fmt.Errorf("%w: mvhd version %d unsupported", ErrMalformedBox, full.Version)
	}

	pos += 8 // creation_time, modification_time

	timescale, err := ReadUint32(buf, pos)
	if err != nil {
		return nil, err
	}
	pos += 4

	duration, err := ReadUint32(buf, pos)
	if err != nil {
		return nil, err
	}

	return &Mvhd{FullBox: full, Timescale: timescale, Duration: duration}, nil
}

/*************************** tkhd ****************************/

// Tkhd is the track header box.
type Tkhd struct {
	FullBox
	TrackID uint32
}

// UnmarshalTkhd decodes a tkhd body and returns the track id. Offset of
// the track id field depends on version: 12 for v0, 20 for v1.
func UnmarshalTkhd(buf []byte) (*Tkhd, error) {
	full, _, err := UnmarshalFullBox(buf)
	if err != nil {
		return nil, err
	}

	idOffset := 12
	if full.Version == 1 {
		idOffset = 20
	}

	trackID, err := ReadUint32(buf, idOffset)
	if err != nil {
		return nil, err
	}

	return &Tkhd{FullBox: full, TrackID: trackID}, nil
}

/*************************** mdhd ****************************/

// Mdhd is the media header box (version 0 only).
type Mdhd struct {
	FullBox
	Timescale uint32
	Duration  uint32
}

// UnmarshalMdhd decodes an mdhd body.
func UnmarshalMdhd(buf []byte) (*Mdhd, error) {
	full, pos, err := UnmarshalFullBox(buf)
	if err != nil {
		return nil, err
	}
	if full.Version != 0 {
		return nil, fmt.Errorf("%w: mdhd version %d unsupported", ErrMalformedBox, full.Version)
	}

	pos += 8 // creation_time, modification_time

	timescale, err := ReadUint32(buf, pos)
	if err != nil {
		return nil, err
	}
	pos += 4

	duration, err := ReadUint32(buf, pos)
	if err != nil {
		return nil, err
	}

	return &Mdhd{FullBox: full, Timescale: timescale, Duration: duration}, nil
}

/*************************** elst ****************************/

// ElstEntry is a single edit-list entry.
type ElstEntry struct {
	SegmentDuration uint32
	MediaTime       uint32
	MediaRateInt    uint16
	MediaRateFrac   uint16
}

// Elst is the edit list box. Only the first entry is consulted by the
// timing resolver, per spec.
type Elst struct {
	FullBox
	Entries []ElstEntry
}

// UnmarshalElst decodes an elst body.
func UnmarshalElst(buf []byte) (*Elst, error) {
	full, pos, err := UnmarshalFullBox(buf)
	if err != nil {
		return nil, err
	}

	count, err := ReadUint32(buf, pos)
	if err != nil {
		return nil, err
	}
	pos += 4

	entries := make([]ElstEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		segDur, err := ReadUint32(buf, pos)
		if err != nil {
			return nil, err
		}
		mediaTime, err := ReadUint32(buf, pos+4)
		if err != nil {
			return nil, err
		}
		rateInt, err := ReadUint16(buf, pos+8)
		if err != nil {
			return nil, err
		}
		rateFrac, err := ReadUint16(buf, pos+10)
		if err != nil {
			return nil, err
		}
		entries = append(entries, ElstEntry{
			SegmentDuration: segDur,
			MediaTime:       mediaTime,
			MediaRateInt:    rateInt,
			MediaRateFrac:   rateFrac,
		})
		pos += 12
	}

	return &Elst{FullBox: full, Entries: entries}, nil
}

/*************************** stsc ****************************/

// StscEntry is one run-length entry of the sample-to-chunk table.
type StscEntry struct {
	FirstChunk             uint32
	SamplesPerChunk        uint32
	SampleDescriptionIndex uint32
}

// Stsc is the sample-to-chunk box.
type Stsc struct {
	FullBox
	Entries []StscEntry
}

// UnmarshalStsc decodes an stsc body. Entries must be strictly ascending
// by FirstChunk.
func UnmarshalStsc(buf []byte) (*Stsc, error) {
	full, pos, err := UnmarshalFullBox(buf)
	if err != nil {
		return nil, err
	}

	count, err := ReadUint32(buf, pos)
	if err != nil {
		return nil, err
	}
	pos += 4

	entries := make([]StscEntry, 0, count)
	var prevFirstChunk uint32
	for i := uint32(0); i < count; i++ {
		firstChunk, err := ReadUint32(buf, pos)
		if err != nil {
			return nil, err
		}
		samplesPerChunk, err := ReadUint32(buf, pos+4)
		if err != nil {
			return nil, err
		}
		sdIndex, err := ReadUint32(buf, pos+8)
		if err != nil {
			return nil, err
		}
		if i > 0 && firstChunk <= prevFirstChunk {
			return nil, fmt.Errorf("%w: stsc firstChunk not strictly ascending", ErrMalformedBox)
		}
		prevFirstChunk = firstChunk
		entries = append(entries, StscEntry{
			FirstChunk:             firstChunk,
			SamplesPerChunk:        samplesPerChunk,
			SampleDescriptionIndex: sdIndex,
		})
		pos += 12
	}

	return &Stsc{FullBox: full, Entries: entries}, nil
}

/*************************** stsz ****************************/

// Stsz is the sample size box. SampleSize != 0 means every sample has
// that constant size and Sizes is empty.
type Stsz struct {
	FullBox
	SampleSize  uint32
	SampleCount uint32
	Sizes       []uint32
}

// UnmarshalStsz decodes an stsz body.
func UnmarshalStsz(buf []byte) (*Stsz, error) {
	full, pos, err := UnmarshalFullBox(buf)
	if err != nil {
		return nil, err
	}

	sampleSize, err := ReadUint32(buf, pos)
	if err != nil {
		return nil, err
	}
	pos += 4

	sampleCount, err := ReadUint32(buf, pos)
	if err != nil {
		return nil, err
	}
	pos += 4

	s := &Stsz{FullBox: full, SampleSize: sampleSize, SampleCount: sampleCount}
	if sampleSize == 0 {
		s.Sizes = make([]uint32, 0, sampleCount)
		for i := uint32(0); i < sampleCount; i++ {
			size, err := ReadUint32(buf, pos)
			if err != nil {
				return nil, err
			}
			s.Sizes = append(s.Sizes, size)
			pos += 4
		}
	}

	return s, nil
}

/*************************** stco ****************************/

// Stco is the chunk offset box (32 bit offsets only).
type Stco struct {
	FullBox
	Entries []uint32
}

// UnmarshalStco decodes an stco body.
func UnmarshalStco(buf []byte) (*Stco, error) {
	full, pos, err := UnmarshalFullBox(buf)
	if err != nil {
		return nil, err
	}

	count, err := ReadUint32(buf, pos)
	if err != nil {
		return nil, err
	}
	pos += 4

	entries := make([]uint32, 0, count)
	for i := uint32(0); i < count; i++ {
		offset, err := ReadUint32(buf, pos)
		if err != nil {
			return nil, err
		}
		entries = append(entries, offset)
		pos += 4
	}

	return &Stco{FullBox: full, Entries: entries}, nil
}

/*************************** stts ****************************/

// SttsEntry is one run-length entry of the decode-time-to-sample table.
type SttsEntry struct {
	SampleCount uint32
	SampleDelta uint32
}

// Stts is the decode-time-to-sample box.
type Stts struct {
	FullBox
	Entries []SttsEntry
}

// UnmarshalStts decodes an stts body.
func UnmarshalStts(buf []byte) (*Stts, error) {
	full, pos, err := UnmarshalFullBox(buf)
	if err != nil {
		return nil, err
	}

	count, err := ReadUint32(buf, pos)
	if err != nil {
		return nil, err
	}
	pos += 4

	entries := make([]SttsEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		sampleCount, err := ReadUint32(buf, pos)
		if err != nil {
			return nil, err
		}
		sampleDelta, err := ReadUint32(buf, pos+4)
		if err != nil {
			return nil, err
		}
		entries = append(entries, SttsEntry{SampleCount: sampleCount, SampleDelta: sampleDelta})
		pos += 8
	}

	return &Stts{FullBox: full, Entries: entries}, nil
}

/*************************** stsd / avc1 ****************************/

// Avc1 is the avc1 AVC visual sample entry, minus its nested avcC box.
type Avc1 struct {
	DataReferenceIndex uint16
	Width              uint16
	Height             uint16
	FrameCount         uint16
	Depth              uint16
	// AvcCStart/AvcCSize describe the nested avcC box within the
	// sample-entry body passed to UnmarshalAvc1, so the caller can slice
	// out its raw bytes and hand them to h264.ParseConfig.
	AvcCStart int
	AvcCSize  int
}

const sampleEntryReservedSize = 6

// UnmarshalStsd decodes an stsd body down to its single avc1 entry,
// returning the Avc1 record and the raw bytes of the avc1 entry (needed
// so AvcCStart/AvcCSize index correctly).
func UnmarshalStsd(buf []byte) (*Avc1, []byte, error) {
	full, pos, err := UnmarshalFullBox(buf)
	if err != nil {
		return nil, nil, err
	}
	_ = full

	entryCount, err := ReadUint32(buf, pos)
	if err != nil {
		return nil, nil, err
	}
	pos += 4
	if entryCount == 0 {
		return nil, nil, fmt.Errorf("%w: stsd has no sample entries", ErrUnsupportedCodec)
	}

	entrySize, err := ReadUint32(buf, pos)
	if err != nil {
		return nil, nil, err
	}
	entryType, err := ReadFourCC(buf, pos+4)
	if err != nil {
		return nil, nil, err
	}
	if entryType != TypeAvc1 {
		return nil, nil, fmt.Errorf("%w: sample entry %q is not avc1", ErrUnsupportedCodec, entryType)
	}

	entryBodyStart := pos + boxHeaderSize
	entryBodyEnd := pos + int(entrySize)
	if entryBodyEnd > len(buf) {
		return nil, nil, ErrBufferUnderflow
	}
	body, err := Slice(buf, entryBodyStart, entryBodyEnd)
	if err != nil {
		return nil, nil, err
	}

	avc1, err := UnmarshalAvc1(body)
	if err != nil {
		return nil, nil, err
	}

	return avc1, body, nil
}

// UnmarshalAvc1 decodes the fixed fields of an avc1 sample entry body
// (everything up to, but not including, the nested avcC box) per
// ISO/IEC 14496-15.
func UnmarshalAvc1(body []byte) (*Avc1, error) {
	pos := sampleEntryReservedSize

	dataRefIdx, err := ReadUint16(body, pos)
	if err != nil {
		return nil, err
	}
	pos += 2
	pos += 2  // pre_defined
	pos += 2  // reserved
	pos += 12 // pre_defined[3]

	width, err := ReadUint16(body, pos)
	if err != nil {
		return nil, err
	}
	pos += 2

	height, err := ReadUint16(body, pos)
	if err != nil {
		return nil, err
	}
	pos += 2

	pos += 4 // horizresolution
	pos += 4 // vertresolution
	pos += 4 // reserved

	frameCount, err := ReadUint16(body, pos)
	if err != nil {
		return nil, err
	}
	pos += 2
	pos += 32 // compressorname

	depth, err := ReadUint16(body, pos)
	if err != nil {
		return nil, err
	}
	pos += 2
	pos += 2 // pre_defined

	return &Avc1{
		DataReferenceIndex: dataRefIdx,
		Width:              width,
		Height:             height,
		FrameCount:         frameCount,
		Depth:              depth,
		AvcCStart:          pos,
		AvcCSize:           len(body) - pos,
	}, nil
}

