package mp4

import "bytes"

// ProbeResult is the outcome of a static probe over the initial bytes of
// a stream.
type ProbeResult struct {
	Match       bool
	DataOffset  int // byte past the ftyp box
	RawDataSize int // bytes between ftyp and moov
	InfoOffset  int // DataOffset + RawDataSize: start of moov
	HasAudio    bool
	HasVideo    bool
}

var (
	handlerSoun = []byte("soun")
	handlerVide = []byte("vide")
	fourCCMoov  = []byte("moov")
)

// Probe inspects the first bytes of a stream for a leading ftyp box
// followed eventually by a moov box, without fully parsing either. It
// returns Match=false if buf doesn't begin with ftyp.
func Probe(buf []byte) ProbeResult {
	if len(buf) < boxHeaderSize {
		return ProbeResult{}
	}

	size, err := ReadUint32(buf, 0)
	if err != nil {
		return ProbeResult{}
	}
	typ, err := ReadFourCC(buf, 4)
	if err != nil || typ != TypeFtyp {
		return ProbeResult{}
	}
	if int(size) < boxHeaderSize || int(size) > len(buf) {
		return ProbeResult{}
	}

	dataOffset := int(size)

	// moov isn't necessarily contiguous with ftyp: free/wide/skip boxes
	// or a preceding mdat may sit in between in a non-fast-start file.
	// Scan forward for the first top-level moov box header.
	rawDataSize := 0
	offset := dataOffset
	for offset+boxHeaderSize <= len(buf) {
		boxSize, err := ReadUint32(buf, offset)
		if err != nil {
			break
		}
		boxType, err := ReadFourCC(buf, offset+4)
		if err != nil {
			break
		}
		if boxType == TypeMoov {
			rawDataSize = offset - dataOffset
			break
		}
		if boxSize < boxHeaderSize {
			break
		}
		offset += int(boxSize)
	}

	result := ProbeResult{
		Match:       true,
		DataOffset:  dataOffset,
		RawDataSize: rawDataSize,
		InfoOffset:  dataOffset + rawDataSize,
	}

	// hasAudio/hasVideo are a cheap advisory scan for handler-type tags
	// within whatever of moov has arrived so far; Options.OverriddenHasAudio
	// / OverriddenHasVideo always take precedence downstream.
	result.HasAudio = bytes.Contains(buf[result.InfoOffset:], handlerSoun)
	result.HasVideo = bytes.Contains(buf[result.InfoOffset:], handlerVide)

	return result
}
