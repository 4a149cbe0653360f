package synth

import (
	"math"

	"github.com/olivierh59500/beepsynth/pkg/dsp"
	"github.com/olivierh59500/beepsynth/pkg/song"
)

// stringDecayRate shapes how quickly high partials die out.
const stringDecayRate = 0.12

// pickedString is a waveguide: a delay line one period long whose output
// passes through a dispersion all-pass and a decay shelf before being fed
// back in.
type pickedString struct {
	delayLine        []float64
	delayIndex       int
	delayResetOffset int
	delayLength      float64
	delayLengthDelta float64

	allPassG, allPassGDelta     float64
	shelfA1, shelfA1Delta       float64
	shelfB0, shelfB0Delta       float64
	shelfB1, shelfB1Delta       float64
	allPassSample               float64
	allPassPrevInput            float64
	shelfSample, shelfPrevInput float64
	fractionalDelaySample       float64
}

func (s *pickedString) reset() {
	s.delayIndex = -1
	s.delayLength = -1
	s.allPassSample = 0
	s.allPassPrevInput = 0
	s.shelfSample = 0
	s.shelfPrevInput = 0
	s.fractionalDelaySample = 0
	s.delayResetOffset = 0
}

func (s *pickedString) sanitize() {
	s.allPassSample = dsp.Sanitize(s.allPassSample)
	s.allPassPrevInput = dsp.Sanitize(s.allPassPrevInput)
	s.shelfSample = dsp.Sanitize(s.shelfSample)
	s.shelfPrevInput = dsp.Sanitize(s.shelfPrevInput)
	s.fractionalDelaySample = dsp.Sanitize(s.fractionalDelaySample)
}

// update retunes the string for the coming tick. The delay line is shorter
// than a period by the phase delay of the loop filters, measured at the
// second harmonic, so the string sounds at the requested pitch. A new note
// or a pitch jump plucks the string again with one period of the impulse
// wave.
func (s *pickedString) update(sampleRate, samplesPerTick float64, phaseDeltaStart, phaseDeltaScale, decayStart, decayEnd float64, impulse []float64) {
	allPassCenter := 2 * math.Pi * song.PickedStringDispersionCenterFreq / sampleRate
	shelfRadians := 2 * math.Pi * song.PickedStringShelfHz / sampleRate
	decayCurveStart := (math.Pow(100, decayStart) - 1) / 99
	decayCurveEnd := (math.Pow(100, decayEnd) - 1) / 99
	prevDelayLength := s.delayLength

	phaseDeltaEnd := phaseDeltaStart * math.Pow(phaseDeltaScale, samplesPerTick)
	radiansStart := 2 * math.Pi * phaseDeltaStart
	radiansEnd := 2 * math.Pi * phaseDeltaEnd
	centerHarmonicStart := radiansStart * 2
	centerHarmonicEnd := radiansEnd * 2

	allPassRadiansStart := math.Min(math.Pi, radiansStart*song.PickedStringDispersionFreqMult*math.Pow(allPassCenter/radiansStart, song.PickedStringDispersionFreqScale))
	allPassRadiansEnd := math.Min(math.Pi, radiansEnd*song.PickedStringDispersionFreqMult*math.Pow(allPassCenter/radiansEnd, song.PickedStringDispersionFreqScale))

	decayRateStart := math.Pow(0.5, decayCurveStart*shelfRadians/radiansStart)
	decayRateEnd := math.Pow(0.5, decayCurveEnd*shelfRadians/radiansEnd)
	shelfGainStart := math.Pow(decayRateStart, stringDecayRate)
	shelfGainEnd := math.Pow(decayRateEnd, stringDecayRate)
	expressionDecayStart := math.Pow(decayRateStart, 0.002)
	expressionDecayEnd := math.Pow(decayRateEnd, 0.002)

	var coeffs dsp.FilterCoefficients
	var response dsp.FrequencyResponse

	coeffs.AllPass1stOrderInvertPhaseAbove(allPassRadiansStart)
	response.Analyze(&coeffs, centerHarmonicStart)
	allPassGStart := coeffs.B[0]
	allPassPhaseDelayStart := -response.Angle() / centerHarmonicStart

	coeffs.AllPass1stOrderInvertPhaseAbove(allPassRadiansEnd)
	response.Analyze(&coeffs, centerHarmonicEnd)
	allPassGEnd := coeffs.B[0]
	allPassPhaseDelayEnd := -response.Angle() / centerHarmonicEnd

	coeffs.HighShelf1stOrder(shelfRadians, shelfGainStart)
	response.Analyze(&coeffs, centerHarmonicStart)
	shelfA1Start := coeffs.A[1]
	shelfB0Start := coeffs.B[0] * expressionDecayStart
	shelfB1Start := coeffs.B[1] * expressionDecayStart
	shelfPhaseDelayStart := -response.Angle() / centerHarmonicStart

	coeffs.HighShelf1stOrder(shelfRadians, shelfGainEnd)
	response.Analyze(&coeffs, centerHarmonicEnd)
	shelfA1End := coeffs.A[1]
	shelfB0End := coeffs.B[0] * expressionDecayEnd
	shelfB1End := coeffs.B[1] * expressionDecayEnd
	shelfPhaseDelayEnd := -response.Angle() / centerHarmonicEnd

	periodStart := 1 / phaseDeltaStart
	periodEnd := 1 / phaseDeltaEnd
	minBufferLength := int(math.Ceil(math.Max(periodStart, periodEnd) * 2))
	delayLength := periodStart - allPassPhaseDelayStart - shelfPhaseDelayStart
	delayLengthEnd := periodEnd - allPassPhaseDelayEnd - shelfPhaseDelayEnd

	s.delayLength = delayLength
	s.delayLengthDelta = (delayLengthEnd - delayLength) / samplesPerTick
	s.allPassG = allPassGStart
	s.shelfA1 = shelfA1Start
	s.shelfB0 = shelfB0Start
	s.shelfB1 = shelfB1Start
	s.allPassGDelta = (allPassGEnd - allPassGStart) / samplesPerTick
	s.shelfA1Delta = (shelfA1End - shelfA1Start) / samplesPerTick
	s.shelfB0Delta = (shelfB0End - shelfB0Start) / samplesPerTick
	s.shelfB1Delta = (shelfB1End - shelfB1Start) / samplesPerTick

	pitchChanged := prevDelayLength > 0 && math.Abs(math.Log2(delayLength/prevDelayLength)) > 0.01
	reinitialize := s.delayIndex == -1 || pitchChanged

	if len(s.delayLine) <= minBufferLength {
		// Start big enough for most notes since slots get reused
		likelyMaximum := int(math.Ceil(2 * sampleRate / song.FrequencyFromPitch(12)))
		delayLine := make([]float64, fittingPowerOfTwo(max(likelyMaximum, minBufferLength+1)))
		if !reinitialize && s.delayLine != nil {
			// Keep the ringing string when a bend outgrows the buffer
			oldMask := len(s.delayLine) - 1
			from := s.delayIndex + s.delayResetOffset
			s.delayIndex = len(s.delayLine) - s.delayResetOffset
			for i := range s.delayLine {
				delayLine[i] = s.delayLine[(from+i)&oldMask]
			}
		}
		s.delayLine = delayLine
	}
	if !reinitialize {
		return
	}

	delayLine := s.delayLine
	mask := len(delayLine) - 1
	s.delayIndex = 0
	s.allPassSample = 0
	s.allPassPrevInput = 0
	s.shelfSample = 0
	s.shelfPrevInput = 0
	s.fractionalDelaySample = 0

	// Clear the region the impulse is written to and the region ahead of
	// the write head
	impulseFrom := -delayLength
	zerosFrom := int(math.Floor(impulseFrom - periodStart/2))
	zerosTo := int(math.Ceil(float64(zerosFrom) + periodStart*2))
	s.delayResetOffset = zerosTo
	for i := zerosFrom; i <= zerosTo; i++ {
		delayLine[i&mask] = 0
	}

	waveLength := float64(len(impulse) - 1)
	impulsePhaseDelta := waveLength / periodStart
	fadeDuration := math.Min(periodStart*0.2, sampleRate*0.003)
	firstSample := int(math.Ceil(impulseFrom))
	impulseTo := impulseFrom + periodStart + fadeDuration
	impulsePhase := (float64(firstSample) - impulseFrom) * impulsePhaseDelta
	prevIntegral := 0.0
	for i := firstSample; float64(i) <= impulseTo; i++ {
		phaseInt := int(impulsePhase)
		index := phaseInt % int(waveLength)
		nextIntegral := impulse[index] + (impulse[index+1]-impulse[index])*(impulsePhase-float64(phaseInt))
		sample := (nextIntegral - prevIntegral) / impulsePhaseDelta
		fadeIn := math.Min(1, (float64(i)-impulseFrom)/fadeDuration)
		fadeOut := math.Min(1, (impulseTo-float64(i))/fadeDuration)
		fade := fadeIn * fadeOut
		delayLine[i&mask] += sample * fade * fade * (3 - 2*fade)
		prevIntegral = nextIntegral
		impulsePhase += impulsePhaseDelta
	}
}

// next advances the string by one sample and returns its output.
func (s *pickedString) next() float64 {
	delayLine := s.delayLine
	mask := len(delayLine) - 1

	// The small offset keeps the interpolating all-pass stable
	target := float64(s.delayIndex) - s.delayLength
	lower := int(math.Floor(target + 0.125))
	upper := lower + 1
	fractionalDelay := float64(upper) - target
	g := (1 - fractionalDelay) / (1 + fractionalDelay)
	prevInput := delayLine[lower&mask]
	input := delayLine[upper&mask]
	s.fractionalDelaySample = g*input + prevInput - g*s.fractionalDelaySample

	s.allPassSample = s.fractionalDelaySample*s.allPassG + s.allPassPrevInput - s.allPassG*s.allPassSample
	s.allPassPrevInput = s.fractionalDelaySample
	s.shelfSample = s.shelfB0*s.allPassSample + s.shelfB1*s.shelfPrevInput - s.shelfA1*s.shelfSample
	s.shelfPrevInput = s.allPassSample

	delayLine[s.delayIndex&mask] += s.shelfSample
	delayLine[(s.delayIndex+s.delayResetOffset)&mask] = 0
	s.delayIndex++

	s.delayLength += s.delayLengthDelta
	s.allPassG += s.allPassGDelta
	s.shelfA1 += s.shelfA1Delta
	s.shelfB0 += s.shelfB0Delta
	s.shelfB1 += s.shelfB1Delta
	return s.shelfSample
}

// fittingPowerOfTwo rounds x up to a power of two.
func fittingPowerOfTwo(x int) int {
	n := 1
	for n < x {
		n <<= 1
	}
	return n
}
