package audio

import "fmt"

// UnsupportedFormatError is returned when a file's extension identifies it
// as something other than WAV (the only format this pipeline understands).
type UnsupportedFormatError struct {
	Path string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("audio: unsupported format for %s (only .wav is supported)", e.Path)
}

// DecodeError wraps a failure to parse a WAV file's header or PCM data.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("audio: decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ResamplerConstructionError is returned when the FFT resampler cannot be
// built for the given source/target rate pair (e.g. a degenerate ratio).
type ResamplerConstructionError struct {
	SourceRate, TargetRate int
}

func (e *ResamplerConstructionError) Error() string {
	return fmt.Sprintf("audio: cannot construct resampler for %d -> %d Hz", e.SourceRate, e.TargetRate)
}

// ResamplingDriftError is returned when the resampled signal's duration
// diverges from the source duration by more than the allowed tolerance.
type ResamplingDriftError struct {
	SourceSeconds, ResampledSeconds float64
}

func (e *ResamplingDriftError) Error() string {
	return fmt.Sprintf("audio: resampling drift %.3fs -> %.3fs exceeds tolerance", e.SourceSeconds, e.ResampledSeconds)
}

// EmptyMelSpectrogramError is returned when a segment produces zero mel
// frames, which happens only for a segment with no samples (any non-empty
// segment yields at least one frame).
type EmptyMelSpectrogramError struct {
	Path string
}

func (e *EmptyMelSpectrogramError) Error() string {
	return fmt.Sprintf("audio: empty mel spectrogram for %s", e.Path)
}
