package h264

import (
	"encoding/binary"

	"mp4demux/pkg/mp4log"
)

// NALUnit is one NAL unit as it appears inside an AVCC-framed sample:
// Data includes the original length prefix followed by the raw NAL
// payload, unchanged from the source bytes.
type NALUnit struct {
	Type NALUType
	Data []byte
}

// FrameNALUs splits one AVCC-framed sample (a run of
// naluLengthSize-byte length prefixes each followed by that many bytes
// of NAL payload) into individual NAL units. naluLengthSize must be 3
// or 4, as validated by ParseConfig.
//
// If a declared NAL size exceeds the bytes remaining in data, the
// sample is malformed: FrameNALUs logs a warning tagged with dts and
// returns ok=false, dropping whatever NAL units were already framed
// rather than returning a partial sample.
func FrameNALUs(data []byte, naluLengthSize int, dts int64, log *mp4log.Logger) (nalus []NALUnit, isKeyframe bool, ok bool) {
	pos := 0
	for pos < len(data) {
		if len(data)-pos < naluLengthSize {
			logTruncated(log, dts)
			return nil, false, false
		}

		var naluSize int
		switch naluLengthSize {
		case 3:
			naluSize = int(binary.BigEndian.Uint32(append([]byte{0}, data[pos:pos+3]...)))
		case 4:
			naluSize = int(binary.BigEndian.Uint32(data[pos : pos+4]))
		}

		dataStart := pos + naluLengthSize
		if len(data)-dataStart < naluSize {
			logTruncated(log, dts)
			return nil, false, false
		}

		nalu := data[pos : dataStart+naluSize]
		payload := data[dataStart : dataStart+naluSize]
		typ := Type(payload)
		if typ == NALUTypeIDR {
			isKeyframe = true
		}

		nalus = append(nalus, NALUnit{Type: typ, Data: nalu})
		pos = dataStart + naluSize
	}

	return nalus, isKeyframe, true
}

func logTruncated(log *mp4log.Logger, dts int64) {
	if log == nil {
		return
	}
	log.Warn().Src("h264").Msgf("Malformed Nalus near timestamp %d, NaluSize > DataSize!", dts)
}
