package synth

import "math"

// renderPWM subtracts two sawtooth waves offset by the pulse width, with a
// PolyBLEP correction at each saw's reset to keep the edges band limited.
func renderPWM(data []float64, t *Tone) {
	phase := t.phases[0]
	delta := t.phaseDeltas[0]
	scale := t.phaseDeltaScales[0]
	pulseWidth := t.pulseWidth
	pulseWidthDelta := t.pulseWidthDelta
	expression := t.expression
	expressionDelta := t.expressionDelta

	for i := range data {
		sawA := phase
		sawB := phase + pulseWidth
		sawB -= math.Floor(sawB)
		pulse := sawB - sawA
		pulse += polyBLEP(sawA, delta)
		pulse -= polyBLEP(sawB, delta)

		data[i] += t.applyFilters(pulse) * expression

		phase += delta
		phase -= math.Floor(phase)
		delta *= scale
		pulseWidth += pulseWidthDelta
		expression += expressionDelta
	}

	t.phases[0] = phase
	t.phaseDeltas[0] = delta
	t.pulseWidth = pulseWidth
	t.expression = expression
}

// polyBLEP is the residual that rounds off a saw's reset at phase 0.
func polyBLEP(phase, delta float64) float64 {
	switch {
	case phase < delta:
		x := phase / delta
		return (x + x - x*x - 1) * 0.5
	case phase > 1-delta:
		x := (phase - 1) / delta
		return (x + x + x*x + 1) * 0.5
	}
	return 0
}
