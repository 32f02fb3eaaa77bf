package h264

import (
	"testing"

	"github.com/stretchr/testify/require"

	"mp4demux/pkg/mp4log"
)

var pps640x480 = []byte{0x68, 0xeb, 0xe3, 0xcb, 0x22, 0xc0}

func buildAVCC(t *testing.T, numSPS, numPPS int, lengthSizeMinusOne byte) []byte {
	t.Helper()

	buf := []byte{
		1,                  // configurationVersion
		sps640x480[1],      // profile
		sps640x480[2],      // profile compatibility
		sps640x480[3],      // level
		0xfc | lengthSizeMinusOne,
		0xe0 | byte(numSPS),
	}
	for i := 0; i < numSPS; i++ {
		buf = append(buf, byte(len(sps640x480)>>8), byte(len(sps640x480)))
		buf = append(buf, sps640x480...)
	}
	buf = append(buf, byte(numPPS))
	for i := 0; i < numPPS; i++ {
		buf = append(buf, byte(len(pps640x480)>>8), byte(len(pps640x480)))
		buf = append(buf, pps640x480...)
	}
	return buf
}

func TestParseConfig(t *testing.T) {
	raw := buildAVCC(t, 1, 1, 3) // lengthSizeMinusOne=3 -> naluLengthSize=4

	cfg, err := ParseConfig(raw, mp4log.Discard())
	require.NoError(t, err)
	require.Equal(t, 640, cfg.Width)
	require.Equal(t, 480, cfg.Height)
	require.Equal(t, 4, cfg.NaluLengthSize)
	require.Equal(t, "avc1.640016", cfg.Codec)
	require.Equal(t, pps640x480, cfg.PPS)
}

func TestParseConfigMultipleSPSUsesFirst(t *testing.T) {
	raw := buildAVCC(t, 2, 1, 3)
	cfg, err := ParseConfig(raw, mp4log.Discard())
	require.NoError(t, err)
	require.Equal(t, 640, cfg.Width)
}

func TestParseConfigNoSPS(t *testing.T) {
	raw := buildAVCC(t, 0, 1, 3)
	_, err := ParseConfig(raw, mp4log.Discard())
	require.ErrorIs(t, err, ErrNoSPS)
}

func TestParseConfigNoPPS(t *testing.T) {
	raw := buildAVCC(t, 1, 0, 3)
	_, err := ParseConfig(raw, mp4log.Discard())
	require.ErrorIs(t, err, ErrNoPPS)
}

func TestParseConfigStrangeNaluLengthSize(t *testing.T) {
	raw := buildAVCC(t, 1, 1, 1) // naluLengthSize=2, unsupported
	_, err := ParseConfig(raw, mp4log.Discard())
	require.ErrorIs(t, err, ErrStrangeNaluLengthSize)
}

func TestParseConfigTooShort(t *testing.T) {
	_, err := ParseConfig([]byte{1, 2, 3}, mp4log.Discard())
	require.ErrorIs(t, err, ErrMalformedAVCC)
}

func TestParseConfigVersionZero(t *testing.T) {
	raw := buildAVCC(t, 1, 1, 3)
	raw[0] = 0
	_, err := ParseConfig(raw, mp4log.Discard())
	require.ErrorIs(t, err, ErrInvalidAVCC)
}

func TestCodecString(t *testing.T) {
	require.Equal(t, "avc1.640016", codecString(sps640x480))
	require.Equal(t, "avc1", codecString([]byte{1, 2}))
}
