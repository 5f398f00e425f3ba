package audio

import "math"

func hzToMel(hz float64) float64 {
	return 2595 * math.Log10(1+hz/700)
}

func melToHz(mel float64) float64 {
	return 700 * (math.Pow(10, mel/2595) - 1)
}

// melFilterbank builds nMelsOut overlapping triangular filters spanning the
// first nFFT/2+1 frequency bins, evenly spaced on the mel scale.
func melFilterbank(nFFT, sampleRate, nMelsOut int) [][]float64 {
	nBins := nFFT/2 + 1
	melMin, melMax := hzToMel(0), hzToMel(float64(sampleRate)/2)

	melPoints := make([]float64, nMelsOut+2)
	for i := range melPoints {
		melPoints[i] = melMin + float64(i)*(melMax-melMin)/float64(nMelsOut+1)
	}

	binPoints := make([]int, len(melPoints))
	for i, m := range melPoints {
		hz := melToHz(m)
		binPoints[i] = int(math.Floor(hz / float64(sampleRate) * float64(nFFT)))
	}

	fb := make([][]float64, nMelsOut)
	for m := 0; m < nMelsOut; m++ {
		fb[m] = make([]float64, nBins)
		left, center, right := binPoints[m], binPoints[m+1], binPoints[m+2]
		for k := left; k < center && k < nBins; k++ {
			if k >= 0 && center > left {
				fb[m][k] = float64(k-left) / float64(center-left)
			}
		}
		for k := center; k < right && k < nBins; k++ {
			if k >= 0 && right > center {
				fb[m][k] = float64(right-k) / float64(right-center)
			}
		}
	}
	return fb
}

func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// melSpectrogram computes a log-power mel spectrogram of shape (nMels, T)
// from a mono signal at melSampleHz, framed with fftSize/hopSize.
func melSpectrogram(samples []float64) [][]float64 {
	if len(samples) == 0 {
		return nil
	}

	window := hannWindow(fftSize)
	fb := melFilterbank(fftSize, melSampleHz, nMels)
	nBins := fftSize/2 + 1

	numFrames := 1
	if len(samples) >= fftSize {
		numFrames = 1 + (len(samples)-fftSize)/hopSize
	}

	power := make([][]float64, numFrames)
	for t := 0; t < numFrames; t++ {
		start := t * hopSize
		frame := make([]complex128, fftSize)
		for i := 0; i < fftSize; i++ {
			idx := start + i
			var s float64
			if idx < len(samples) {
				s = samples[idx] * window[i]
			}
			frame[i] = complex(s, 0)
		}
		fft(frame)

		p := make([]float64, nBins)
		for k := 0; k < nBins; k++ {
			re, im := real(frame[k]), imag(frame[k])
			p[k] = re*re + im*im
		}
		power[t] = p
	}

	mel := make([][]float64, nMels)
	for m := range mel {
		mel[m] = make([]float64, numFrames)
		for t, p := range power {
			var sum float64
			for k, coeff := range fb[m] {
				if coeff != 0 {
					sum += coeff * p[k]
				}
			}
			mel[m][t] = math.Log(sum + 1e-6)
		}
	}
	return mel
}
