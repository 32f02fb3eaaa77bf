// Package h264 implements the AVC collaborators the demuxer depends on:
// an AVCDecoderConfigurationRecord parser, a length-prefixed NAL unit
// framer with keyframe detection, and an Exp-Golomb SPS parser.
package h264

// NALUType is the 5 bit nal_unit_type field of a NAL unit header.
type NALUType uint8

// NAL unit types relevant to this module.
const (
	NALUTypeNonIDR NALUType = 1
	NALUTypeIDR    NALUType = 5
	NALUTypeSEI    NALUType = 6
	NALUTypeSPS    NALUType = 7
	NALUTypePPS    NALUType = 8
)

func (t NALUType) String() string {
	switch t {
	case NALUTypeNonIDR:
		return "non-IDR"
	case NALUTypeIDR:
		return "IDR"
	case NALUTypeSEI:
		return "SEI"
	case NALUTypeSPS:
		return "SPS"
	case NALUTypePPS:
		return "PPS"
	default:
		return "other"
	}
}

// MaxNALUSize is an upper bound for a single NAL unit's payload size.
// FrameNALUs does not consult it: it slices NAL units out of the sample
// without allocating, and checks declared sizes only against the bytes
// remaining in the sample.
const MaxNALUSize = 20 * 1024 * 1024

// RemoveEmulationPrevention strips Annex B emulation-prevention bytes
// (any 0x03 that follows two or more 0x00 bytes, whatever byte comes
// after it) from a raw NAL unit payload, as required before
// bitstream-level parsing such as an SPS's Exp-Golomb fields.
func RemoveEmulationPrevention(buf []byte) []byte {
	out := make([]byte, 0, len(buf))
	zeroRun := 0

	for _, b := range buf {
		if zeroRun >= 2 && b == 0x03 {
			zeroRun = 0
			continue
		}
		if b == 0 {
			zeroRun++
		} else {
			zeroRun = 0
		}
		out = append(out, b)
	}

	return out
}

// Type returns the nal_unit_type of a raw (non length-prefixed) NAL
// unit, i.e. the low 5 bits of its first byte.
func Type(nalu []byte) NALUType {
	if len(nalu) == 0 {
		return 0
	}
	return NALUType(nalu[0] & 0x1f)
}
