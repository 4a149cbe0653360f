package dsp

import "github.com/mjibson/go-dsp/fft"

// InverseRealFourierTransform turns a half-complex spectrum into a real
// signal of the same length. The spectrum is laid out the way the wave
// generators build it: wave[i] holds the cosine (real) amplitude of harmonic
// i for 0 <= i <= n/2, and wave[n-i] holds the sine (imaginary) amplitude of
// harmonic i for 0 < i < n/2. The result is written back into wave.
//
// The result is the plain sum of sinusoids
//
//	x[t] = sum(re[k]*cos(2*pi*k*t/n) + im[k]*sin(2*pi*k*t/n))
func InverseRealFourierTransform(wave []float64) {
	n := len(wave)
	if n == 0 || n&(n-1) != 0 {
		panic("dsp: inverse FFT length must be a power of two")
	}
	spectrum := make([]complex128, n)
	spectrum[0] = complex(wave[0], 0)
	half := n / 2
	spectrum[half] = complex(wave[half], 0)
	for i := 1; i < half; i++ {
		re := wave[i]
		im := wave[n-i]
		spectrum[i] = complex(re*0.5, -im*0.5)
		spectrum[n-i] = complex(re*0.5, im*0.5)
	}
	// fft.IFFT divides by n.
	signal := fft.IFFT(spectrum)
	scale := float64(n)
	for i := range wave {
		wave[i] = real(signal[i]) * scale
	}
}
