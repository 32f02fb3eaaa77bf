package mp4

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadPrimitives(t *testing.T) {
	buf := []byte{0x01, 0x02, 0x03, 0x04, 0x05}

	u8, err := ReadUint8(buf, 0)
	require.NoError(t, err)
	require.Equal(t, uint8(0x01), u8)

	u16, err := ReadUint16(buf, 0)
	require.NoError(t, err)
	require.Equal(t, uint16(0x0102), u16)

	u24, err := ReadUint24(buf, 0)
	require.NoError(t, err)
	require.Equal(t, uint32(0x010203), u24)

	u32, err := ReadUint32(buf, 0)
	require.NoError(t, err)
	require.Equal(t, uint32(0x01020304), u32)

	_, err = ReadUint32(buf, 2)
	require.ErrorIs(t, err, ErrBufferUnderflow)
}

func TestReadFourCC(t *testing.T) {
	buf := []byte("ftypmoov")
	typ, err := ReadFourCC(buf, 0)
	require.NoError(t, err)
	require.Equal(t, TypeFtyp, typ)
	require.Equal(t, "ftyp", typ.String())

	_, err = ReadFourCC(buf, 6)
	require.ErrorIs(t, err, ErrBufferUnderflow)
}

func TestSlice(t *testing.T) {
	buf := []byte{1, 2, 3, 4}
	s, err := Slice(buf, 1, 3)
	require.NoError(t, err)
	require.Equal(t, []byte{2, 3}, s)

	_, err = Slice(buf, 3, 1)
	require.ErrorIs(t, err, ErrBufferUnderflow)

	_, err = Slice(buf, 0, 10)
	require.ErrorIs(t, err, ErrBufferUnderflow)
}
