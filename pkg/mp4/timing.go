package mp4

// EditStartOffset computes the DTS shift implied by the first edit-list
// entry, in mdhd-timescale ticks. Returns 0 when elst is nil or empty,
// per spec (only the first entry is consulted; entries beyond it are
// ignored).
func EditStartOffset(elst *Elst, timescaleMvhd, timescaleMdhd uint32) int64 {
	if elst == nil || len(elst.Entries) == 0 || timescaleMvhd == 0 {
		return 0
	}
	mediaTime := int64(elst.Entries[0].MediaTime)
	return mediaTime * int64(timescaleMdhd) / int64(timescaleMvhd)
}

// AssignTimestamps fills in DTS/PTS (CTS stays 0; ctts offsets are
// unsupported) for each sample in table, in place, using the stts
// run-length table and the edit-list shift computed by
// EditStartOffset. table must already be in decode order, one entry per
// sample, matching stts's total sample count.
func AssignTimestamps(table []FlatSample, stts *Stts, startOffset int64) {
	cumulative := int64(0)
	sampleIndex := 0

	for _, run := range stts.Entries {
		for j := uint32(0); j < run.SampleCount; j++ {
			if sampleIndex >= len(table) {
				return
			}
			dts := cumulative + int64(run.SampleDelta)*int64(j) - startOffset
			table[sampleIndex].DTS = dts
			table[sampleIndex].PTS = dts
			sampleIndex++
		}
		cumulative += int64(run.SampleDelta) * int64(run.SampleCount)
	}
}
