package mp4

import "fmt"

// FlatSample is one entry of the resolved flat sample table: the
// per-sample byte range within the file plus its position within its
// chunk. Timestamps are filled in later by AssignTimestamps.
type FlatSample struct {
	ChunkIndex   int
	IndexInChunk int
	FileOffset   uint64
	Size         uint32
	DTS          int64
	PTS          int64
	CTS          int64 // always 0: ctts composition offsets are unsupported.
}

// chunkRun describes how many samples (and which sample-description
// index) a chunk carries, indexed zero-based by chunk number.
type chunkRun struct {
	samplesPerChunk        uint32
	sampleDescriptionIndex uint32
}

// BuildSampleTable combines stsc, stsz and stco into a flat, per-sample
// table in decode order. This is the algorithmic heart of the
// demuxer: stsc is a run-length encoding of "how many samples per
// chunk", stco gives the file offset of each chunk's first sample, and
// stsz gives each sample's size (or one constant size for all samples).
func BuildSampleTable(stsc *Stsc, stsz *Stsz, stco *Stco) ([]FlatSample, error) {
	runs, err := expandStsc(stsc, len(stco.Entries))
	if err != nil {
		return nil, err
	}

	table := make([]FlatSample, 0, stsz.SampleCount)
	globalIndex := uint32(0)

	for chunkIndex, chunkOffset := range stco.Entries {
		run := runs[chunkIndex]
		cursor := uint64(chunkOffset)

		for i := uint32(0); i < run.samplesPerChunk; i++ {
			if globalIndex >= stsz.SampleCount {
				return nil, fmt.Errorf("%w: stsc implies more samples than stsz.sampleCount (%d)",
					ErrSampleCountMismatch, stsz.SampleCount)
			}

			size := stsz.SampleSize
			if size == 0 {
				size = stsz.Sizes[globalIndex]
			}

			table = append(table, FlatSample{
				ChunkIndex:   chunkIndex,
				IndexInChunk: int(i),
				FileOffset:   cursor,
				Size:         size,
			})

			cursor += uint64(size)
			globalIndex++
		}
	}

	if globalIndex != stsz.SampleCount || uint32(len(table)) != stsz.SampleCount {
		return nil, fmt.Errorf("%w: resolved %d samples, stsz.sampleCount is %d",
			ErrSampleCountMismatch, globalIndex, stsz.SampleCount)
	}

	return table, nil
}

// expandStsc builds a per-chunk array of length chunkCount (the number
// of chunks stco declares) by walking stsc's run-length entries from
// last to first: entry i applies to the zero-based chunk range
// [firstChunk[i]-1, nextFirstChunk-1), where nextFirstChunk is the
// firstChunk of entry i+1, or chunkCount+1 for the last entry.
func expandStsc(stsc *Stsc, chunkCount int) ([]chunkRun, error) {
	if len(stsc.Entries) == 0 {
		return nil, fmt.Errorf("%w: stsc has no entries", ErrMalformedBox)
	}

	runs := make([]chunkRun, chunkCount)

	for i := len(stsc.Entries) - 1; i >= 0; i-- {
		entry := stsc.Entries[i]

		nextFirstChunk := uint32(chunkCount) + 1
		if i+1 < len(stsc.Entries) {
			nextFirstChunk = stsc.Entries[i+1].FirstChunk
		}

		if entry.FirstChunk == 0 {
			return nil, fmt.Errorf("%w: stsc firstChunk is 1-based, got 0", ErrMalformedBox)
		}

		start := int(entry.FirstChunk) - 1
		end := int(nextFirstChunk) - 1
		if end > chunkCount {
			end = chunkCount
		}

		for c := start; c < end; c++ {
			if c < 0 || c >= chunkCount {
				continue
			}
			runs[c] = chunkRun{
				samplesPerChunk:        entry.SamplesPerChunk,
				sampleDescriptionIndex: entry.SampleDescriptionIndex,
			}
		}
	}

	return runs, nil
}
