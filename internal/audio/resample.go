package audio

import "math"

// fftResampler is a fixed-input-block FFT resampler: every call processes a
// bounded number of input samples, splitting each call's block into
// subChunks sub-blocks for the actual spectral resample. This mirrors
// rubato's FftFixedIn shape (fixed input chunk size, internal subchunking)
// without depending on it, since no such library exists in the dependency
// pack available to this module.
type fftResampler struct {
	sourceRate, targetRate int
	ratio                  float64
	chunkSizeIn            int
	subChunks              int
}

func newFFTResampler(sourceRate, targetRate int) (*fftResampler, error) {
	if sourceRate <= 0 || targetRate <= 0 {
		return nil, &ResamplerConstructionError{SourceRate: sourceRate, TargetRate: targetRate}
	}
	return &fftResampler{
		sourceRate: sourceRate,
		targetRate: targetRate,
		ratio:      float64(targetRate) / float64(sourceRate),
		chunkSizeIn: resampleChunkSizeIn,
		subChunks:   resampleDesiredSubchunks,
	}, nil
}

// process resamples in completely, feeding full chunkSizeIn blocks to
// processChunk and any final short block through the same path (the
// resampler's "partial-process" tail).
func (r *fftResampler) process(in []float64) []float64 {
	var out []float64
	for off := 0; off < len(in); off += r.chunkSizeIn {
		end := off + r.chunkSizeIn
		if end > len(in) {
			end = len(in)
		}
		out = append(out, r.processChunk(in[off:end])...)
	}
	return out
}

// processChunk splits one input block into subChunks sub-blocks and
// resamples each independently via FFT bandlimited interpolation.
func (r *fftResampler) processChunk(block []float64) []float64 {
	if len(block) == 0 {
		return nil
	}
	subLen := len(block) / r.subChunks
	if subLen < 1 {
		subLen = len(block)
	}

	var out []float64
	for off := 0; off < len(block); off += subLen {
		end := off + subLen
		if end > len(block) {
			end = len(block)
		}
		out = append(out, resampleBlock(block[off:end], r.ratio)...)
	}
	return out
}

// resampleBlock resamples a single real-valued block by taking its FFT,
// truncating or zero-padding the spectrum to the power of two at or above
// the target length, inverse-transforming, and reading each output sample
// from its source-time position with linear interpolation.
func resampleBlock(in []float64, ratio float64) []float64 {
	if len(in) == 0 {
		return nil
	}
	outN := int(math.Round(float64(len(in)) * ratio))
	if outN <= 0 {
		return nil
	}

	oldLen := nextPow2(len(in))
	spec := realFFT(in)

	newLen := nextPow2(int(math.Ceil(float64(oldLen) * ratio)))
	if newLen < 1 {
		newLen = 1
	}
	newSpec := make([]complex128, newLen)
	copyBandlimitedSpectrum(spec, newSpec, oldLen, newLen)

	ifft(newSpec)

	// newSpec now holds the block at scale times the source rate; output
	// sample i sits at source sample i/ratio.
	scale := float64(newLen) / float64(oldLen)
	result := make([]float64, outN)
	for i := 0; i < outN; i++ {
		pos := float64(i) / ratio * scale
		j := int(pos)
		frac := pos - float64(j)
		a := real(newSpec[j%newLen])
		b := real(newSpec[(j+1)%newLen])
		result[i] = (a + (b-a)*frac) * scale
	}
	return result
}

// copyBandlimitedSpectrum copies the low-frequency bins (both the positive
// band and the mirrored negative band near the end) from a spectrum of
// length oldLen into one of length newLen, preserving the signal's
// bandlimited content under truncation or zero-padding.
func copyBandlimitedSpectrum(spec, newSpec []complex128, oldLen, newLen int) {
	minLen := oldLen
	if newLen < minLen {
		minLen = newLen
	}
	half := minLen / 2

	for i := 0; i <= half; i++ {
		newSpec[i] = spec[i]
	}
	for i := 1; i < half; i++ {
		newSpec[newLen-i] = spec[oldLen-i]
	}
}

// resample brings samples at sourceRate to TargetSampleRate, verifying the
// resampled duration stays within tolerance of the source duration.
func resample(samples []float64, sourceRate int) ([]float64, error) {
	if sourceRate == TargetSampleRate {
		return samples, nil
	}

	r, err := newFFTResampler(sourceRate, TargetSampleRate)
	if err != nil {
		return nil, err
	}
	out := r.process(samples)

	srcDuration := float64(len(samples)) / float64(sourceRate)
	outDuration := float64(len(out)) / float64(TargetSampleRate)
	if math.Abs(srcDuration-outDuration) > maxResampleDriftSeconds {
		return nil, &ResamplingDriftError{SourceSeconds: srcDuration, ResampledSeconds: outDuration}
	}
	return out, nil
}
