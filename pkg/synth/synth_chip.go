package synth

import "math"

// renderChip plays two unison voices over an integrated single-cycle wave.
// The difference of two integral lookups divided by the phase step is the
// average of the wave over the step, which keeps high notes from aliasing.
// Harmonics instruments use the same routine with a drawn wave.
func renderChip(data []float64, t *Tone, wave []float64) {
	n := float64(len(wave) - 1)
	phaseA := t.phases[0]
	phaseB := t.phases[1]
	deltaA := t.phaseDeltas[0]
	deltaB := t.phaseDeltas[1]
	scaleA := t.phaseDeltaScales[0]
	scaleB := t.phaseDeltaScales[1]
	expression := t.expression
	expressionDelta := t.expressionDelta
	sign := t.unisonSign

	prevA := tableAt(wave, phaseA*n)
	prevB := tableAt(wave, phaseB*n)

	for i := range data {
		phaseA += deltaA
		phaseB += deltaB
		phaseA -= math.Floor(phaseA)
		phaseB -= math.Floor(phaseB)

		nextA := tableAt(wave, phaseA*n)
		nextB := tableAt(wave, phaseB*n)
		sampleA := (nextA - prevA) / (deltaA * n)
		sampleB := (nextB - prevB) / (deltaB * n)
		prevA = nextA
		prevB = nextB

		sample := t.applyFilters(sampleA + sampleB*sign)
		data[i] += sample * expression

		deltaA *= scaleA
		deltaB *= scaleB
		expression += expressionDelta
	}

	t.phases[0] = phaseA
	t.phases[1] = phaseB
	t.phaseDeltas[0] = deltaA
	t.phaseDeltas[1] = deltaB
	t.expression = expression
}

// tableAt interpolates a wave table at a fractional index.
func tableAt(wave []float64, pos float64) float64 {
	i := int(pos)
	return wave[i] + (wave[i+1]-wave[i])*(pos-float64(i))
}
