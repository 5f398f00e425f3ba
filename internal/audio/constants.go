package audio

const (
	// TargetSampleRate is the rate every decoded signal is resampled to
	// before segmentation.
	TargetSampleRate = 48000

	// SegmentLength and SegmentStep define the overlapping analysis windows
	// (10s windows, 50% overlap).
	SegmentLength = 10.0
	SegmentStep   = 5.0

	// Mel spectrogram configuration.
	fftSize     = 1024
	hopSize     = 480
	nMels       = 64
	melSampleHz = 48000

	// TargetLength is the fixed mel-frame count every segment is
	// padded/truncated to before being handed to the embedder.
	TargetLength = 1001

	// resampleChunkSizeIn is the input block size fed to the FFT resampler
	// per processing step.
	resampleChunkSizeIn = 1024
	// resampleDesiredSubchunks controls the resampler's internal FFT
	// granularity.
	resampleDesiredSubchunks = 2

	// maxResampleDriftSeconds is the allowed duration divergence between
	// the pre- and post-resample signal.
	maxResampleDriftSeconds = 0.1
)
