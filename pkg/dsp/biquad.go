package dsp

import "math"

// Epsilon is the magnitude below which recursive filter state is flushed to
// zero to keep denormals out of the hot loops.
const Epsilon = 1.0e-24

// DynamicBiquad is a second order filter whose coefficients glide from a
// start set to an end set over a run of samples.
type DynamicBiquad struct {
	A1, A2, B0, B1, B2                 float64
	A1Delta, A2Delta                   float64
	B0Delta, B1Delta, B2Delta          float64
	Input1, Input2                     float64
	Output1, Output2                   float64
	UseMultiplicativeInputCoefficients bool
}

// NewDynamicBiquad returns a pass-through filter.
func NewDynamicBiquad() DynamicBiquad {
	return DynamicBiquad{B0: 1}
}

// Reset clears the filter history.
func (d *DynamicBiquad) Reset() {
	d.Input1, d.Input2 = 0, 0
	d.Output1, d.Output2 = 0, 0
}

// LoadCoefficientsWithGradient sets the filter to start at start and reach
// end after 1/deltaRate samples. Multiplicative interpolation of the input
// coefficients is smoother for gain-only changes but must only be used when
// none of the b coefficients change sign.
func (d *DynamicBiquad) LoadCoefficientsWithGradient(start, end *FilterCoefficients, deltaRate float64, multiplicative bool) {
	if start.Order != 2 || end.Order != 2 {
		panic("dsp: dynamic biquad requires second order coefficients")
	}
	d.A1 = start.A[1]
	d.A2 = start.A[2]
	d.B0 = start.B[0]
	d.B1 = start.B[1]
	d.B2 = start.B[2]
	d.A1Delta = (end.A[1] - start.A[1]) * deltaRate
	d.A2Delta = (end.A[2] - start.A[2]) * deltaRate
	if multiplicative {
		d.B0Delta = math.Pow(end.B[0]/start.B[0], deltaRate)
		d.B1Delta = math.Pow(end.B[1]/start.B[1], deltaRate)
		d.B2Delta = math.Pow(end.B[2]/start.B[2], deltaRate)
	} else {
		d.B0Delta = (end.B[0] - start.B[0]) * deltaRate
		d.B1Delta = (end.B[1] - start.B[1]) * deltaRate
		d.B2Delta = (end.B[2] - start.B[2]) * deltaRate
	}
	d.UseMultiplicativeInputCoefficients = multiplicative
}

// Process filters one sample and steps the coefficients towards their end
// values.
func (d *DynamicBiquad) Process(x float64) float64 {
	y := d.B0*x + d.B1*d.Input1 + d.B2*d.Input2 - d.A1*d.Output1 - d.A2*d.Output2
	d.Input2 = d.Input1
	d.Input1 = x
	d.Output2 = d.Output1
	d.Output1 = y
	d.A1 += d.A1Delta
	d.A2 += d.A2Delta
	if d.UseMultiplicativeInputCoefficients {
		d.B0 *= d.B0Delta
		d.B1 *= d.B1Delta
		d.B2 *= d.B2Delta
	} else {
		d.B0 += d.B0Delta
		d.B1 += d.B1Delta
		d.B2 += d.B2Delta
	}
	return y
}

// Sanitize snaps non-finite and negligible history values to zero.
func (d *DynamicBiquad) Sanitize() {
	d.Input1 = Sanitize(d.Input1)
	d.Input2 = Sanitize(d.Input2)
	d.Output1 = Sanitize(d.Output1)
	d.Output2 = Sanitize(d.Output2)
}

// Sanitize returns 0 for NaN, infinities and values smaller than Epsilon.
func Sanitize(x float64) float64 {
	if !(x > Epsilon || x < -Epsilon) || math.IsInf(x, 0) {
		return 0
	}
	return x
}

// SanitizeSlice applies Sanitize to every element of buf.
func SanitizeSlice(buf []float64) {
	for i, x := range buf {
		buf[i] = Sanitize(x)
	}
}
