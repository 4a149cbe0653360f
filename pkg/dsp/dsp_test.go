package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecondOrderDesignsAreStable(t *testing.T) {
	for corner := 0.001; corner < math.Pi; corner *= 1.3 {
		for _, gain := range []float64{0.1, 0.5, math.Sqrt2 / 2, 1, 4, 16, 64} {
			var f FilterCoefficients
			f.LowPass2ndOrderButterworth(corner, gain)
			assert.True(t, f.IsStable(), "low-pass corner=%v gain=%v", corner, gain)
			f.HighPass2ndOrderButterworth(corner, gain)
			assert.True(t, f.IsStable(), "high-pass corner=%v gain=%v", corner, gain)
			f.Peak2ndOrder(corner, gain, 1)
			assert.True(t, f.IsStable(), "peak corner=%v gain=%v", corner, gain)
		}
	}
}

func TestLowPassResponse(t *testing.T) {
	var f FilterCoefficients
	f.LowPass2ndOrderButterworth(0.1, math.Sqrt2/2)
	var r FrequencyResponse

	r.Analyze(&f, 0.0001)
	assert.InDelta(t, 1.0, r.Magnitude(), 1e-3)

	r.Analyze(&f, 0.1)
	assert.InDelta(t, math.Sqrt2/2, r.Magnitude(), 1e-2)

	r.Analyze(&f, 2.5)
	assert.Less(t, r.Magnitude(), 0.01)
}

func TestAllPassKeepsMagnitude(t *testing.T) {
	var f FilterCoefficients
	f.AllPass1stOrderInvertPhaseAbove(0.3)
	var r FrequencyResponse
	for w := 0.01; w < math.Pi; w += 0.1 {
		r.Analyze(&f, w)
		assert.InDelta(t, 1.0, r.Magnitude(), 1e-9)
	}
	r.Analyze(&f, 0.0001)
	assert.InDelta(t, 0, r.Angle(), 1e-3)
}

func TestFractionalDelayPhase(t *testing.T) {
	var f FilterCoefficients
	f.AllPass1stOrderFractionalDelay(0.5)
	var r FrequencyResponse
	w := 0.01
	r.Analyze(&f, w)
	// Phase delay in samples at low frequencies approaches the requested delay.
	assert.InDelta(t, 0.5, -r.Angle()/w, 1e-3)
}

func TestHighShelfGain(t *testing.T) {
	var f FilterCoefficients
	f.HighShelf1stOrder(0.5, 0.25)
	var r FrequencyResponse
	r.Analyze(&f, 0.0001)
	assert.InDelta(t, 1.0, r.Magnitude(), 1e-3)
	r.Analyze(&f, math.Pi-0.0001)
	assert.InDelta(t, 0.25, r.Magnitude(), 1e-3)
}

func TestDynamicBiquadMatchesStaticFilter(t *testing.T) {
	var f FilterCoefficients
	f.LowPass2ndOrderButterworth(0.2, 1)
	d := NewDynamicBiquad()
	d.LoadCoefficientsWithGradient(&f, &f, 1.0/64, false)

	x1, x2, y1, y2 := 0.0, 0.0, 0.0, 0.0
	for i := 0; i < 64; i++ {
		x := math.Sin(float64(i) * 0.3)
		want := f.B[0]*x + f.B[1]*x1 + f.B[2]*x2 - f.A[1]*y1 - f.A[2]*y2
		x2, x1 = x1, x
		y2, y1 = y1, want
		got := d.Process(x)
		require.InDelta(t, want, got, 1e-12)
	}
}

func TestDynamicBiquadGlidesToEnd(t *testing.T) {
	var start, end FilterCoefficients
	start.Peak2ndOrder(0.2, 0.5, 1)
	end.Peak2ndOrder(0.2, 2, 1)
	d := NewDynamicBiquad()
	d.LoadCoefficientsWithGradient(&start, &end, 1.0/100, true)
	for i := 0; i < 100; i++ {
		d.Process(0)
	}
	assert.InDelta(t, end.B[0], d.B0, 1e-9)
	assert.InDelta(t, end.B[1], d.B1, 1e-9)
	assert.InDelta(t, end.B[2], d.B2, 1e-9)
	assert.InDelta(t, end.A[1], d.A1, 1e-9)
	assert.InDelta(t, end.A[2], d.A2, 1e-9)
}

func TestDynamicBiquadLowPassGlideKeepsInputSigns(t *testing.T) {
	var start, end FilterCoefficients
	start.LowPass2ndOrderButterworth(0.05, 2)
	end.LowPass2ndOrderButterworth(1.2, 0.7)
	d := NewDynamicBiquad()
	d.LoadCoefficientsWithGradient(&start, &end, 1.0/64, true)
	require.True(t, d.UseMultiplicativeInputCoefficients)
	for i := 0; i < 64; i++ {
		d.Process(1)
		require.Positive(t, d.B0)
		require.Positive(t, d.B1)
		require.Positive(t, d.B2)
	}
	assert.InEpsilon(t, end.B[0], d.B0, 1e-9)
	assert.InEpsilon(t, end.B[1], d.B1, 1e-9)
	assert.InEpsilon(t, end.B[2], d.B2, 1e-9)
}

func TestDynamicBiquadRejectsFirstOrder(t *testing.T) {
	var f FilterCoefficients
	f.LowPass1stOrderButterworth(0.2)
	d := NewDynamicBiquad()
	assert.Panics(t, func() { d.LoadCoefficientsWithGradient(&f, &f, 1, false) })
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, 0.0, Sanitize(math.NaN()))
	assert.Equal(t, 0.0, Sanitize(math.Inf(1)))
	assert.Equal(t, 0.0, Sanitize(1e-30))
	assert.Equal(t, 0.5, Sanitize(0.5))
	assert.Equal(t, -0.5, Sanitize(-0.5))
}

func TestDeque(t *testing.T) {
	var d Deque[int]
	for i := 0; i < 10; i++ {
		d.PushBack(i)
	}
	d.PushFront(-1)
	require.Equal(t, 11, d.Len())
	assert.Equal(t, -1, d.PeekFront())
	assert.Equal(t, 9, d.PeekBack())
	assert.Equal(t, 3, d.Get(4))

	d.Remove(4)
	assert.Equal(t, 4, d.Get(4))
	d.Remove(8)
	assert.Equal(t, 9, d.Get(8))
	assert.Equal(t, 9, d.Len())

	assert.Equal(t, -1, d.PopFront())
	assert.Equal(t, 9, d.PopBack())
	d.Clear()
	assert.Equal(t, 0, d.Len())
	assert.Panics(t, func() { d.PopFront() })
}

func TestInverseRealFourierTransform(t *testing.T) {
	const n = 64
	wave := make([]float64, n)
	wave[3] = 1     // cosine at harmonic 3
	wave[n-5] = 0.5 // sine at harmonic 5
	InverseRealFourierTransform(wave)
	for i := 0; i < n; i++ {
		phase := 2 * math.Pi * float64(i) / n
		want := math.Cos(3*phase) + 0.5*math.Sin(5*phase)
		assert.InDelta(t, want, wave[i], 1e-9)
	}
}
