package mp4

import "fmt"

// BoxType is a 4 byte ASCII box type tag.
type BoxType [4]byte

func (t BoxType) String() string {
	return string(t[:])
}

// Recognized box types.
var (
	TypeFtyp = BoxType{'f', 't', 'y', 'p'}
	TypeMoov = BoxType{'m', 'o', 'o', 'v'}
	TypeMvhd = BoxType{'m', 'v', 'h', 'd'}
	TypeTrak = BoxType{'t', 'r', 'a', 'k'}
	TypeTkhd = BoxType{'t', 'k', 'h', 'd'}
	TypeEdts = BoxType{'e', 'd', 't', 's'}
	TypeElst = BoxType{'e', 'l', 's', 't'}
	TypeMdia = BoxType{'m', 'd', 'i', 'a'}
	TypeMdhd = BoxType{'m', 'd', 'h', 'd'}
	TypeMinf = BoxType{'m', 'i', 'n', 'f'}
	TypeStbl = BoxType{'s', 't', 'b', 'l'}
	TypeStsd = BoxType{'s', 't', 's', 'd'}
	TypeStsc = BoxType{'s', 't', 's', 'c'}
	TypeStsz = BoxType{'s', 't', 's', 'z'}
	TypeStco = BoxType{'s', 't', 'c', 'o'}
	TypeStts = BoxType{'s', 't', 't', 's'}
	TypeAvc1 = BoxType{'a', 'v', 'c', '1'}
	TypeAvcC = BoxType{'a', 'v', 'c', 'C'}
	TypeMdat = BoxType{'m', 'd', 'a', 't'}
)

// containerTypes are the boxes the walker recurses into. All others are
// dispatched as leaves.
var containerTypes = map[BoxType]bool{
	TypeMoov: true,
	TypeTrak: true,
	TypeMdia: true,
	TypeMinf: true,
	TypeStbl: true,
	TypeEdts: true,
}

// IsContainer reports whether t holds child boxes rather than a typed
// payload.
func IsContainer(t BoxType) bool {
	return containerTypes[t]
}

const boxHeaderSize = 8

// Visitor is invoked once per box encountered by Walk. bodyStart and
// bodySize describe the box's payload, excluding the 8 byte header.
// Returning recurse=true on a container box tells Walk to descend into
// it instead of skipping its body.
type Visitor func(typ BoxType, bodyStart, bodySize int) (recurse bool, err error)

// Walk iterates the type+size tagged boxes in buf[start:end], invoking
// visitor for each one and advancing by the box's total size. It
// recurses into a box's body when the visitor asks it to by returning
// recurse=true, which only makes sense for container boxes.
//
// Walk fails with ErrMalformedBox if a box's declared size is smaller
// than the 8 byte header or would overrun end.
func Walk(buf []byte, start, end int, visitor Visitor) error {
	offset := start

	for offset < end {
		if offset+boxHeaderSize > end {
			return fmt.Errorf("%w: truncated box header at %d", ErrMalformedBox, offset)
		}

		size, err := ReadUint32(buf, offset)
		if err != nil {
			return err
		}

		typ, err := ReadFourCC(buf, offset+4)
		if err != nil {
			return err
		}

		if size < boxHeaderSize {
			return fmt.Errorf("%w: %s size %d below header size", ErrMalformedBox, typ, size)
		}

		boxEnd := offset + int(size)
		if boxEnd > end {
			return fmt.Errorf("%w: %s overruns parent at %d", ErrMalformedBox, typ, offset)
		}

		bodyStart := offset + boxHeaderSize
		bodySize := int(size) - boxHeaderSize

		recurse, err := visitor(typ, bodyStart, bodySize)
		if err != nil {
			return err
		}

		if recurse && IsContainer(typ) {
			if err := Walk(buf, bodyStart, bodyStart+bodySize, visitor); err != nil {
				return err
			}
		}

		offset = boxEnd
	}

	return nil
}
