package demux

import (
	"errors"
	"fmt"

	"mp4demux/pkg/mp4"
)

// walkMoov visits every trak under moov (the REDESIGN FLAG fix: the
// original source only ever inspected the first) and commits the
// first one carrying a usable avc1 sample entry as the video track.
func (d *Demuxer) walkMoov(start, end int) error {
	var traks []*trakAccum

	err := mp4.Walk(d.buf, start, end, func(typ mp4.BoxType, bodyStart, bodySize int) (bool, error) {
		switch typ {
		case mp4.TypeMvhd:
			mvhd, err := mp4.UnmarshalMvhd(d.buf[bodyStart : bodyStart+bodySize])
			if err != nil {
				return false, err
			}
			d.mvhd = mvhd
			return false, nil

		case mp4.TypeTrak:
			ts, err := d.walkTrak(bodyStart, bodyStart+bodySize)
			if err != nil {
				return false, err
			}
			traks = append(traks, ts)
			return false, nil

		default:
			return false, nil
		}
	})
	if err != nil {
		return err
	}

	if d.mvhd == nil {
		return fmt.Errorf("%w: moov has no mvhd", mp4.ErrMalformedBox)
	}

	for _, ts := range traks {
		if ts.isVideo() {
			d.commitVideoTrak(ts)
			break
		}
	}

	return nil
}

func (d *Demuxer) commitVideoTrak(ts *trakAccum) {
	d.trackID = ts.trackID
	d.mdhd = ts.mdhd
	d.elst = ts.elst
	d.avc1 = ts.avc1
	d.avcCBody = ts.avcCBody
	d.stsc = ts.stsc
	d.stsz = ts.stsz
	d.stco = ts.stco
	d.stts = ts.stts
}

func (d *Demuxer) walkTrak(start, end int) (*trakAccum, error) {
	ts := &trakAccum{}

	err := mp4.Walk(d.buf, start, end, func(typ mp4.BoxType, bodyStart, bodySize int) (bool, error) {
		switch typ {
		case mp4.TypeTkhd:
			tkhd, err := mp4.UnmarshalTkhd(d.buf[bodyStart : bodyStart+bodySize])
			if err != nil {
				return false, err
			}
			ts.trackID = tkhd.TrackID
			ts.hasTkhd = true
			return false, nil

		case mp4.TypeEdts:
			return false, d.walkEdts(bodyStart, bodyStart+bodySize, ts)

		case mp4.TypeMdia:
			return false, d.walkMdia(bodyStart, bodyStart+bodySize, ts)

		default:
			return false, nil
		}
	})

	return ts, err
}

func (d *Demuxer) walkEdts(start, end int, ts *trakAccum) error {
	return mp4.Walk(d.buf, start, end, func(typ mp4.BoxType, bodyStart, bodySize int) (bool, error) {
		if typ != mp4.TypeElst {
			return false, nil
		}
		elst, err := mp4.UnmarshalElst(d.buf[bodyStart : bodyStart+bodySize])
		if err != nil {
			return false, err
		}
		ts.elst = elst
		return false, nil
	})
}

func (d *Demuxer) walkMdia(start, end int, ts *trakAccum) error {
	return mp4.Walk(d.buf, start, end, func(typ mp4.BoxType, bodyStart, bodySize int) (bool, error) {
		switch typ {
		case mp4.TypeMdhd:
			mdhd, err := mp4.UnmarshalMdhd(d.buf[bodyStart : bodyStart+bodySize])
			if err != nil {
				return false, err
			}
			ts.mdhd = mdhd
			return false, nil

		case mp4.TypeMinf:
			return false, d.walkMinf(bodyStart, bodyStart+bodySize, ts)

		default:
			return false, nil
		}
	})
}

func (d *Demuxer) walkMinf(start, end int, ts *trakAccum) error {
	return mp4.Walk(d.buf, start, end, func(typ mp4.BoxType, bodyStart, bodySize int) (bool, error) {
		if typ != mp4.TypeStbl {
			return false, nil
		}
		return false, d.walkStbl(bodyStart, bodyStart+bodySize, ts)
	})
}

func (d *Demuxer) walkStbl(start, end int, ts *trakAccum) error {
	return mp4.Walk(d.buf, start, end, func(typ mp4.BoxType, bodyStart, bodySize int) (bool, error) {
		body := d.buf[bodyStart : bodyStart+bodySize]

		switch typ {
		case mp4.TypeStsd:
			return false, d.parseStsd(body, ts)

		case mp4.TypeStsc:
			stsc, err := mp4.UnmarshalStsc(body)
			if err != nil {
				return false, err
			}
			ts.stsc = stsc
			return false, nil

		case mp4.TypeStsz:
			stsz, err := mp4.UnmarshalStsz(body)
			if err != nil {
				return false, err
			}
			ts.stsz = stsz
			return false, nil

		case mp4.TypeStco:
			stco, err := mp4.UnmarshalStco(body)
			if err != nil {
				return false, err
			}
			ts.stco = stco
			return false, nil

		case mp4.TypeStts:
			stts, err := mp4.UnmarshalStts(body)
			if err != nil {
				return false, err
			}
			ts.stts = stts
			return false, nil

		default:
			return false, nil
		}
	})
}

// parseStsd decodes the avc1 sample entry and locates the nested avcC
// box within it, storing its raw body for the AVC configuration
// parser (§4.F) to validate later. A non-avc1 sample entry is not an
// error here: it just means this trak isn't the video track.
func (d *Demuxer) parseStsd(body []byte, ts *trakAccum) error {
	avc1, avc1Body, err := mp4.UnmarshalStsd(body)
	if err != nil {
		if errors.Is(err, mp4.ErrUnsupportedCodec) {
			return nil
		}
		return err
	}

	if avc1.AvcCStart+8 > len(avc1Body) {
		return fmt.Errorf("%w: avc1 entry has no room for avcC", mp4.ErrMalformedBox)
	}

	avcCSize, err := mp4.ReadUint32(avc1Body, avc1.AvcCStart)
	if err != nil {
		return err
	}
	avcCType, err := mp4.ReadFourCC(avc1Body, avc1.AvcCStart+4)
	if err != nil {
		return err
	}
	if avcCType != mp4.TypeAvcC {
		return fmt.Errorf("%w: avc1 entry missing nested avcC, found %s", mp4.ErrMalformedBox, avcCType)
	}

	avcCBody, err := mp4.Slice(avc1Body, avc1.AvcCStart+8, avc1.AvcCStart+int(avcCSize))
	if err != nil {
		return err
	}

	ts.avc1 = avc1
	ts.avcCBody = avcCBody
	return nil
}
