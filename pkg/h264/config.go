package h264

import (
	"encoding/binary"
	"errors"
	"fmt"

	"mp4demux/pkg/mp4log"
)

// Sentinel errors for ParseConfig, carrying the exact messages spec'd
// for the corresponding AVCDecoderConfigurationRecord violations so a
// wrapped %w error's text matches what gets surfaced to a sink
// verbatim.
var (
	ErrInvalidAVCC           = errors.New("MP4: Invalid AVCDecoderConfigurationRecord")
	ErrStrangeNaluLengthSize = errors.New("MP4: Strange NaluLengthSizeMinusOne")
	ErrNoSPS                 = errors.New("MP4: Invalid AVCDecoderConfigurationRecord: No SPS")
	ErrNoPPS                 = errors.New("MP4: Invalid AVCDecoderConfigurationRecord: No PPS")
	ErrMalformedAVCC         = errors.New("h264: malformed AVCDecoderConfigurationRecord")
)

// defaultFrameRate substitutes for an SPS that doesn't declare a fixed,
// usable frame rate.
var defaultFrameRate = FrameRate{Fixed: true, Num: 23976, Den: 1000}

// Config is the decoded, validated form of an AVCDecoderConfigurationRecord
// together with the profile/level/resolution/framerate carried by its
// first SPS.
type Config struct {
	ConfigurationVersion uint8
	Profile              uint8
	ProfileCompatibility uint8
	Level                uint8
	NaluLengthSize       int

	SPS SPS
	PPS []byte

	Width     int
	Height    int
	FrameRate FrameRate

	// Codec is the avc1.XXYYZZ RFC 6381 codec string built from the
	// first SPS's profile/compatibility/level bytes.
	Codec string
}

// ParseConfig validates and decodes a raw AVCDecoderConfigurationRecord
// (the payload of an avcC box). log receives the warning emitted when
// more than one SPS is present; only the first is used.
func ParseConfig(buf []byte, log *mp4log.Logger) (*Config, error) {
	if len(buf) < 6 {
		return nil, fmt.Errorf("%w: too short", ErrMalformedAVCC)
	}

	version := buf[0]
	profile := buf[1]
	profileCompat := buf[2]
	level := buf[3]

	if version != 1 || profile == 0 {
		return nil, ErrInvalidAVCC
	}

	lengthSizeMinusOne := buf[4] & 0x03
	naluLengthSize := int(lengthSizeMinusOne) + 1
	if naluLengthSize != 3 && naluLengthSize != 4 {
		return nil, fmt.Errorf("%w: %d", ErrStrangeNaluLengthSize, lengthSizeMinusOne)
	}

	pos := 5
	numSPS := int(buf[pos] & 0x1f)
	pos++
	if numSPS == 0 {
		return nil, ErrNoSPS
	}
	if numSPS > 1 && log != nil {
		log.Warn().Src("h264").Msgf("AVCDecoderConfigurationRecord: %d SPS present, using only the first", numSPS)
	}

	var firstSPSBytes []byte
	for i := 0; i < numSPS; i++ {
		if pos+2 > len(buf) {
			return nil, fmt.Errorf("%w: SPS length prefix truncated", ErrMalformedAVCC)
		}
		spsLen := int(binary.BigEndian.Uint16(buf[pos : pos+2]))
		pos += 2
		if pos+spsLen > len(buf) {
			return nil, fmt.Errorf("%w: SPS body truncated", ErrMalformedAVCC)
		}
		if i == 0 {
			firstSPSBytes = buf[pos : pos+spsLen]
		}
		pos += spsLen
	}

	if pos >= len(buf) {
		return nil, fmt.Errorf("%w: truncated before PPS count", ErrMalformedAVCC)
	}
	numPPS := int(buf[pos])
	pos++
	if numPPS == 0 {
		return nil, ErrNoPPS
	}

	var firstPPS []byte
	for i := 0; i < numPPS; i++ {
		if pos+2 > len(buf) {
			return nil, fmt.Errorf("%w: PPS length prefix truncated", ErrMalformedAVCC)
		}
		ppsLen := int(binary.BigEndian.Uint16(buf[pos : pos+2]))
		pos += 2
		if pos+ppsLen > len(buf) {
			return nil, fmt.Errorf("%w: PPS body truncated", ErrMalformedAVCC)
		}
		if i == 0 {
			firstPPS = buf[pos : pos+ppsLen]
		}
		pos += ppsLen
	}

	var sps SPS
	if err := sps.Unmarshal(firstSPSBytes); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAVCC, err)
	}

	fr := sps.FrameRate()
	if !fr.Fixed || fr.Num == 0 || fr.Den == 0 {
		fr = defaultFrameRate
	}

	return &Config{
		ConfigurationVersion: version,
		Profile:              profile,
		ProfileCompatibility: profileCompat,
		Level:                level,
		NaluLengthSize:       naluLengthSize,
		SPS:                  sps,
		PPS:                  firstPPS,
		Width:                sps.Width(),
		Height:               sps.Height(),
		FrameRate:            fr,
		Codec:                codecString(firstSPSBytes),
	}, nil
}

// codecString builds the RFC 6381 avc1.XXYYZZ codec string from the
// three profile/compatibility/level bytes at SPS offsets 1..4.
func codecString(sps []byte) string {
	if len(sps) < 4 {
		return "avc1"
	}
	return fmt.Sprintf("avc1.%02x%02x%02x", sps[1], sps[2], sps[3])
}
