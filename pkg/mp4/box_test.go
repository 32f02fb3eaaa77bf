package mp4

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func box(typ BoxType, body []byte) []byte {
	size := boxHeaderSize + len(body)
	out := []byte{byte(size >> 24), byte(size >> 16), byte(size >> 8), byte(size)}
	out = append(out, typ[:]...)
	out = append(out, body...)
	return out
}

func TestWalkLeafBoxes(t *testing.T) {
	buf := append(box(TypeFtyp, []byte("isom")), box(TypeMdat, []byte{1, 2, 3})...)

	var seen []BoxType
	err := Walk(buf, 0, len(buf), func(typ BoxType, bodyStart, bodySize int) (bool, error) {
		seen = append(seen, typ)
		return false, nil
	})
	require.NoError(t, err)
	require.Equal(t, []BoxType{TypeFtyp, TypeMdat}, seen)
}

func TestWalkRecursesIntoContainer(t *testing.T) {
	tkhd := box(TypeTkhd, []byte{0, 0, 0, 0})
	trak := box(TypeTrak, tkhd)
	moov := box(TypeMoov, trak)

	var seen []BoxType
	err := Walk(moov, 0, len(moov), func(typ BoxType, bodyStart, bodySize int) (bool, error) {
		seen = append(seen, typ)
		return true, nil
	})
	require.NoError(t, err)
	require.Equal(t, []BoxType{TypeMoov, TypeTrak, TypeTkhd}, seen)
}

func TestWalkDoesNotRecurseWithoutRequest(t *testing.T) {
	tkhd := box(TypeTkhd, []byte{0, 0, 0, 0})
	trak := box(TypeTrak, tkhd)

	var seen []BoxType
	err := Walk(trak, 0, len(trak), func(typ BoxType, bodyStart, bodySize int) (bool, error) {
		seen = append(seen, typ)
		return false, nil
	})
	require.NoError(t, err)
	require.Equal(t, []BoxType{TypeTrak}, seen)
}

func TestWalkTruncatedHeader(t *testing.T) {
	buf := []byte{0, 0, 0}
	err := Walk(buf, 0, len(buf), func(BoxType, int, int) (bool, error) { return false, nil })
	require.ErrorIs(t, err, ErrMalformedBox)
}

func TestWalkSizeOverrunsParent(t *testing.T) {
	buf := box(TypeFtyp, []byte("isom"))
	err := Walk(buf, 0, len(buf)-1, func(BoxType, int, int) (bool, error) { return false, nil })
	require.ErrorIs(t, err, ErrMalformedBox)
}

func TestWalkSizeBelowHeader(t *testing.T) {
	buf := []byte{0, 0, 0, 4, 'f', 't', 'y', 'p'}
	err := Walk(buf, 0, len(buf), func(BoxType, int, int) (bool, error) { return false, nil })
	require.ErrorIs(t, err, ErrMalformedBox)
}

func TestIsContainer(t *testing.T) {
	require.True(t, IsContainer(TypeMoov))
	require.True(t, IsContainer(TypeTrak))
	require.False(t, IsContainer(TypeMdat))
	require.False(t, IsContainer(TypeFtyp))
}
