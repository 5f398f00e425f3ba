// Package audio implements the WAV-only preprocessing pipeline: decode,
// downmix, resample to 48 kHz, overlapping segmentation, mel spectrogram,
// and fixed-length reshape/pad. The result is one MelSpec per segment, ready
// for the batched embedder.
package audio

// ProcessedSegment pairs a segment's starting timestamp with its
// reshaped/padded mel spectrogram.
type ProcessedSegment struct {
	StartingTimestamp float64
	Mel               MelSpec
}

// Process runs the full pipeline on the WAV file at path, returning one
// ProcessedSegment per overlapping analysis window.
func Process(path string) ([]ProcessedSegment, error) {
	dec, err := decodeWAV(path)
	if err != nil {
		return nil, err
	}

	mono := downmix(dec.samples, dec.numChans)

	resampled, err := resample(mono, dec.sampleRate)
	if err != nil {
		return nil, err
	}

	segments := segmentSignal(resampled)

	out := make([]ProcessedSegment, 0, len(segments))
	for _, seg := range segments {
		mel := melSpectrogram(seg.Samples)
		reshaped, err := reshapePad(path, mel)
		if err != nil {
			return nil, err
		}
		out = append(out, ProcessedSegment{
			StartingTimestamp: seg.StartingTimestamp,
			Mel:               reshaped,
		})
	}
	return out, nil
}
