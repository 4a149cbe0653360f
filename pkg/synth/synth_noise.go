package synth

import (
	"math"

	"github.com/olivierh59500/beepsynth/pkg/song"
)

// renderNoise steps through a chip noise table, smoothing harder at low
// pitches.
func renderNoise(data []float64, t *Tone, wave []float64, pitchFilterMult float64) {
	const length = song.ChipNoiseLength
	phase := t.phases[0]
	delta := t.phaseDeltas[0]
	scale := t.phaseDeltaScales[0]
	noiseSample := t.noiseSample
	expression := t.expression
	expressionDelta := t.expressionDelta

	for i := range data {
		filter := math.Min(1, delta*pitchFilterMult)
		noiseSample += (wave[int(phase)] - noiseSample) * filter
		data[i] += t.applyFilters(noiseSample) * expression

		phase += delta
		if phase >= length {
			phase -= length
		}
		delta *= scale
		expression += expressionDelta
	}

	t.phases[0] = phase
	t.phaseDeltas[0] = delta
	t.noiseSample = noiseSample
	t.expression = expression
}

// renderSpectrum plays a spectrum noise table. The table holds 128 cycles
// of the base pitch.
func renderSpectrum(data []float64, t *Tone, wave []float64) {
	const length = song.SpectrumNoiseLength
	phase := t.phases[0]
	delta := t.phaseDeltas[0]
	scale := t.phaseDeltaScales[0]
	noiseSample := t.noiseSample
	expression := t.expression
	expressionDelta := t.expressionDelta

	for i := range data {
		step := delta * (1 << 7)
		filter := math.Min(1, step)
		noiseSample += (tableAt(wave, phase) - noiseSample) * filter
		data[i] += t.applyFilters(noiseSample) * expression

		phase += step
		for phase >= length {
			phase -= length
		}
		delta *= scale
		expression += expressionDelta
	}

	t.phases[0] = phase
	t.phaseDeltas[0] = delta
	t.noiseSample = noiseSample
	t.expression = expression
}

// renderDrumset plays the table of the tone's drum at a speed relative to
// the drum's reference pitch.
func renderDrumset(data []float64, t *Tone, wave []float64) {
	const length = song.SpectrumNoiseLength
	reference := song.DrumsetIndexReferenceDelta(t.drumsetPitch)
	phase := t.phases[0]
	delta := t.phaseDeltas[0]
	scale := t.phaseDeltaScales[0]
	expression := t.expression
	expressionDelta := t.expressionDelta

	for i := range data {
		data[i] += t.applyFilters(tableAt(wave, phase)) * expression

		phase += delta / reference
		for phase >= length {
			phase -= length
		}
		delta *= scale
		expression += expressionDelta
	}

	t.phases[0] = phase
	t.phaseDeltas[0] = delta
	t.expression = expression
}
