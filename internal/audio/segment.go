package audio

// Segment is one overlapping analysis window cut from a resampled signal.
type Segment struct {
	StartingTimestamp float64 // seconds
	Samples           []float64
}

// segmentSignal slices samples (at TargetSampleRate) into overlapping
// windows of SegmentLength seconds, stepping SegmentStep seconds at a time.
// A signal too short for even one full window still yields exactly one
// segment spanning the whole thing.
func segmentSignal(samples []float64) []Segment {
	n := len(samples)
	stepSamples := int(SegmentStep * TargetSampleRate)
	lengthSamples := int(SegmentLength * TargetSampleRate)

	if stepSamples <= 0 || n < lengthSamples {
		return []Segment{{StartingTimestamp: 0, Samples: samples}}
	}

	numSegments := n / stepSamples
	segments := make([]Segment, 0, numSegments)
	for i := 0; i < numSegments; i++ {
		start := i * stepSamples
		end := start + lengthSamples
		if end > n-1 {
			end = n - 1
		}
		if end <= start {
			break
		}
		segments = append(segments, Segment{
			StartingTimestamp: float64(start) / TargetSampleRate,
			Samples:           samples[start:end],
		})
	}

	if len(segments) == 0 {
		return []Segment{{StartingTimestamp: 0, Samples: samples}}
	}
	return segments
}
