package dsp

import (
	"math"
	"math/cmplx"
)

// FilterCoefficients holds the coefficients of an IIR filter of order 0 to 2.
// A[0] is always 1 and the remaining output coefficients are stored negated,
// so a sample is computed as
//
//	y0 = B[0]*x0 + B[1]*x1 + B[2]*x2 - A[1]*y1 - A[2]*y2
type FilterCoefficients struct {
	A     [3]float64
	B     [3]float64
	Order int
}

// NewFilterCoefficients returns unity gain coefficients.
func NewFilterCoefficients() FilterCoefficients {
	return FilterCoefficients{A: [3]float64{1, 0, 0}, B: [3]float64{1, 0, 0}}
}

func (f *FilterCoefficients) clear() {
	f.A = [3]float64{1, 0, 0}
	f.B = [3]float64{0, 0, 0}
}

// LinearGain0thOrder is a plain gain stage.
func (f *FilterCoefficients) LinearGain0thOrder(linearGain float64) {
	f.clear()
	f.B[0] = linearGain
	f.Order = 0
}

// LowPass1stOrderButterworth designs a first order low-pass.
func (f *FilterCoefficients) LowPass1stOrderButterworth(cornerRadiansPerSample float64) {
	f.clear()
	g := 1.0 / math.Tan(cornerRadiansPerSample*0.5)
	a0 := 1.0 + g
	f.A[1] = (1.0 - g) / a0
	f.B[0] = 1.0 / a0
	f.B[1] = 1.0 / a0
	f.Order = 1
}

// LowPass1stOrderSimplified is the cheap one-pole smoother used by the old
// chip filters.
func (f *FilterCoefficients) LowPass1stOrderSimplified(cornerRadiansPerSample float64) {
	f.clear()
	g := 2.0 * math.Sin(cornerRadiansPerSample*0.5)
	f.A[1] = g - 1.0
	f.B[0] = g
	f.B[1] = 0
	f.Order = 1
}

// HighPass1stOrderButterworth designs a first order high-pass.
func (f *FilterCoefficients) HighPass1stOrderButterworth(cornerRadiansPerSample float64) {
	f.clear()
	g := 1.0 / math.Tan(cornerRadiansPerSample*0.5)
	a0 := 1.0 + g
	f.A[1] = (1.0 - g) / a0
	f.B[0] = g / a0
	f.B[1] = -g / a0
	f.Order = 1
}

// HighShelf1stOrder boosts or cuts everything above the corner by
// shelfLinearGain.
func (f *FilterCoefficients) HighShelf1stOrder(cornerRadiansPerSample, shelfLinearGain float64) {
	f.clear()
	tan := math.Tan(cornerRadiansPerSample * 0.5)
	sqrtGain := math.Sqrt(shelfLinearGain)
	g := (tan*sqrtGain - 1) / (tan*sqrtGain + 1.0)
	f.A[1] = g
	f.B[0] = (1.0 + g + shelfLinearGain*(1.0-g)) / 2.0
	f.B[1] = (1.0 + g - shelfLinearGain*(1.0-g)) / 2.0
	f.Order = 1
}

// AllPass1stOrderInvertPhaseAbove shifts the phase of frequencies above the
// corner towards a half-cycle inversion without changing their volume.
func (f *FilterCoefficients) AllPass1stOrderInvertPhaseAbove(cornerRadiansPerSample float64) {
	f.clear()
	g := (math.Sin(cornerRadiansPerSample) - 1.0) / math.Cos(cornerRadiansPerSample)
	f.A[1] = g
	f.B[0] = g
	f.B[1] = 1.0
	f.Order = 1
}

// AllPass1stOrderFractionalDelay approximates a delay of a fraction of a
// sample at low frequencies.
func (f *FilterCoefficients) AllPass1stOrderFractionalDelay(delay float64) {
	f.clear()
	g := (1.0 - delay) / (1.0 + delay)
	f.A[1] = g
	f.B[0] = g
	f.B[1] = 1.0
	f.Order = 1
}

// LowPass2ndOrderButterworth designs a resonant low-pass. peakLinearGain is
// the gain at the corner; 1/sqrt(2) is a flat Butterworth response.
func (f *FilterCoefficients) LowPass2ndOrderButterworth(cornerRadiansPerSample, peakLinearGain float64) {
	alpha := math.Sin(cornerRadiansPerSample) / (2.0 * peakLinearGain)
	cos := math.Cos(cornerRadiansPerSample)
	a0 := 1.0 + alpha
	f.A[0] = 1
	f.A[1] = -2.0 * cos / a0
	f.A[2] = (1 - alpha) / a0
	f.B[0] = (1 - cos) / (2.0 * a0)
	f.B[1] = (1 - cos) / a0
	f.B[2] = f.B[0]
	f.Order = 2
}

// LowPass2ndOrderSimplified is the two-pole version of the simplified
// smoother, with resonance feedback.
func (f *FilterCoefficients) LowPass2ndOrderSimplified(cornerRadiansPerSample, peakLinearGain float64) {
	g := 2.0 * math.Sin(cornerRadiansPerSample/2.0)
	resonance := 1.0 - 1.0/(2.0*peakLinearGain)
	feedback := resonance + resonance/(1.0-g)
	f.A[0] = 1
	f.A[1] = 2.0*g + (g-1.0)*g*feedback - 2.0
	f.A[2] = (g - 1.0) * (g - g*feedback - 1.0)
	f.B[0] = g * g
	f.B[1] = 0
	f.B[2] = 0
	f.Order = 2
}

// HighPass2ndOrderButterworth designs a resonant high-pass.
func (f *FilterCoefficients) HighPass2ndOrderButterworth(cornerRadiansPerSample, peakLinearGain float64) {
	alpha := math.Sin(cornerRadiansPerSample) / (2 * peakLinearGain)
	cos := math.Cos(cornerRadiansPerSample)
	a0 := 1.0 + alpha
	f.A[0] = 1
	f.A[1] = -2.0 * cos / a0
	f.A[2] = (1.0 - alpha) / a0
	f.B[0] = (1.0 + cos) / (2.0 * a0)
	f.B[1] = -(1.0 + cos) / a0
	f.B[2] = f.B[0]
	f.Order = 2
}

// Peak2ndOrder boosts or cuts a band around the corner frequency.
func (f *FilterCoefficients) Peak2ndOrder(cornerRadiansPerSample, peakLinearGain, bandWidthScale float64) {
	sqrtGain := math.Sqrt(peakLinearGain)
	scale := sqrtGain
	if sqrtGain < 1 {
		scale = 1 / sqrtGain
	}
	bandWidth := bandWidthScale * cornerRadiansPerSample / scale
	alpha := math.Tan(bandWidth * 0.5)
	a0 := 1.0 + alpha/sqrtGain
	f.A[0] = 1
	f.B[0] = (1.0 + alpha*sqrtGain) / a0
	f.A[1] = -2.0 * math.Cos(cornerRadiansPerSample) / a0
	f.B[1] = f.A[1]
	f.B[2] = (1.0 - alpha*sqrtGain) / a0
	f.A[2] = (1.0 - alpha/sqrtGain) / a0
	f.Order = 2
}

// Poles returns the roots of the denominator polynomial. A filter is stable
// when every pole lies strictly inside the unit circle.
func (f *FilterCoefficients) Poles() []complex128 {
	switch f.Order {
	case 0:
		return nil
	case 1:
		return []complex128{complex(-f.A[1], 0)}
	}
	// z^2 + a1*z + a2 = 0
	disc := cmplx.Sqrt(complex(f.A[1]*f.A[1]-4*f.A[2], 0))
	return []complex128{
		(complex(-f.A[1], 0) + disc) / 2,
		(complex(-f.A[1], 0) - disc) / 2,
	}
}

// IsStable reports whether every pole lies inside the unit circle.
func (f *FilterCoefficients) IsStable() bool {
	for _, p := range f.Poles() {
		if cmplx.Abs(p) >= 1 {
			return false
		}
	}
	return true
}

// FrequencyResponse is the transfer function of a filter evaluated at one
// frequency.
type FrequencyResponse struct {
	Real  float64
	Imag  float64
	Denom float64
}

// Analyze evaluates the filter at radiansPerSample.
func (r *FrequencyResponse) Analyze(f *FilterCoefficients, radiansPerSample float64) {
	r.AnalyzeComplex(f, math.Cos(radiansPerSample), math.Sin(radiansPerSample))
}

// AnalyzeComplex evaluates the filter at the point (real, imag) on the
// complex plane.
func (r *FrequencyResponse) AnalyzeComplex(f *FilterCoefficients, real, imag float64) {
	realZ1 := real
	imagZ1 := -imag
	realNum := f.B[0] + f.B[1]*realZ1
	imagNum := f.B[1] * imagZ1
	realDenom := 1.0 + f.A[1]*realZ1
	imagDenom := f.A[1] * imagZ1
	realZ := realZ1
	imagZ := imagZ1
	for i := 2; i <= f.Order; i++ {
		realTemp := realZ*realZ1 - imagZ*imagZ1
		imagTemp := realZ*imagZ1 + imagZ*realZ1
		realZ = realTemp
		imagZ = imagTemp
		realNum += f.B[i] * realZ
		imagNum += f.B[i] * imagZ
		realDenom += f.A[i] * realZ
		imagDenom += f.A[i] * imagZ
	}
	r.Denom = realDenom*realDenom + imagDenom*imagDenom
	r.Real = realNum*realDenom + imagNum*imagDenom
	r.Imag = imagNum*realDenom - realNum*imagDenom
}

// Magnitude is the linear gain at the analyzed frequency.
func (r *FrequencyResponse) Magnitude() float64 {
	return math.Sqrt(r.Real*r.Real+r.Imag*r.Imag) / r.Denom
}

// Angle is the phase shift in radians at the analyzed frequency.
func (r *FrequencyResponse) Angle() float64 {
	return math.Atan2(r.Imag, r.Real)
}
