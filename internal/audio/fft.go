package audio

import "math/cmplx"

// nextPow2 returns the smallest power of two >= n (minimum 1).
func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// fft computes the discrete Fourier transform of x in place using an
// iterative radix-2 Cooley-Tukey algorithm. len(x) must be a power of two.
func fft(x []complex128) {
	fftImpl(x, false)
}

// ifft computes the inverse discrete Fourier transform of x in place.
// len(x) must be a power of two.
func ifft(x []complex128) {
	fftImpl(x, true)
	n := complex(float64(len(x)), 0)
	for i := range x {
		x[i] /= n
	}
}

func fftImpl(x []complex128, inverse bool) {
	n := len(x)
	if n <= 1 {
		return
	}

	// bit-reversal permutation
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j ^= bit
		if i < j {
			x[i], x[j] = x[j], x[i]
		}
	}

	sign := -1.0
	if inverse {
		sign = 1.0
	}

	for length := 2; length <= n; length <<= 1 {
		ang := sign * 2 * 3.141592653589793 / float64(length)
		wLen := cmplx.Exp(complex(0, ang))
		for i := 0; i < n; i += length {
			w := complex(1.0, 0.0)
			half := length / 2
			for j := 0; j < half; j++ {
				u := x[i+j]
				v := x[i+j+half] * w
				x[i+j] = u + v
				x[i+j+half] = u - v
				w *= wLen
			}
		}
	}
}

// realFFT zero-pads real to the next power of two, runs a forward FFT, and
// returns the complex spectrum at that size.
func realFFT(real []float64) []complex128 {
	n := nextPow2(len(real))
	buf := make([]complex128, n)
	for i, v := range real {
		buf[i] = complex(v, 0)
	}
	fft(buf)
	return buf
}
