package synth

import (
	"math"

	"github.com/olivierh59500/beepsynth/pkg/song"
)

type fmKey struct {
	algorithm int
	feedback  int
}

// fmRoutine is one operator graph. Operators are evaluated from the last to
// the first so every modulator is ready before the operator it feeds.
// Feedback always reads the previous sample.
type fmRoutine struct {
	carrierCount int
	modulatedBy  [song.OperatorCount][]int
	feedback     [song.OperatorCount][]int
}

// getFMRoutine returns the routine of an algorithm and feedback pair,
// building it on first use.
func getFMRoutine(algorithm, feedback int) *fmRoutine {
	key := fmKey{algorithm, feedback}
	if cached, ok := fmRoutines.Load(key); ok {
		return cached.(*fmRoutine)
	}
	routine, _ := fmRoutines.LoadOrStore(key, newFMRoutine(algorithm, feedback))
	return routine.(*fmRoutine)
}

func newFMRoutine(algorithm, feedback int) *fmRoutine {
	a := song.Algorithms[algorithm]
	f := song.Feedbacks[feedback]
	r := &fmRoutine{carrierCount: a.CarrierCount}
	for i := 0; i < song.OperatorCount; i++ {
		for _, m := range a.ModulatedBy[i] {
			r.modulatedBy[i] = append(r.modulatedBy[i], m-1)
		}
		for _, m := range f.Indices[i] {
			r.feedback[i] = append(r.feedback[i], m-1)
		}
	}
	return r
}

func (r *fmRoutine) render(data []float64, t *Tone) {
	var phases, deltas, scales, expressions, expressionDeltas, outputs, scaled [song.OperatorCount]float64
	phases = t.phases
	deltas = t.phaseDeltas
	scales = t.phaseDeltaScales
	expressions = t.operatorExpressions
	expressionDeltas = t.operatorExpressionDeltas
	outputs = t.feedbackOutputs
	feedbackMult := t.feedbackMult
	feedbackDelta := t.feedbackDelta
	expression := t.expression
	expressionDelta := t.expressionDelta

	for i := range data {
		prev := outputs
		for op := song.OperatorCount - 1; op >= 0; op-- {
			phase := phases[op]
			for _, m := range r.modulatedBy[op] {
				phase += scaled[m]
			}
			for _, f := range r.feedback[op] {
				phase += prev[f] * feedbackMult
			}
			outputs[op] = sineAt(phase)
			scaled[op] = outputs[op] * expressions[op]
		}

		sample := 0.0
		for op := 0; op < r.carrierCount; op++ {
			sample += scaled[op]
		}
		data[i] += t.applyFilters(sample) * expression

		for op := range phases {
			phases[op] += deltas[op]
			phases[op] -= math.Floor(phases[op])
			deltas[op] *= scales[op]
			expressions[op] += expressionDeltas[op]
		}
		feedbackMult += feedbackDelta
		expression += expressionDelta
	}

	t.phases = phases
	t.phaseDeltas = deltas
	t.operatorExpressions = expressions
	t.feedbackOutputs = outputs
	t.feedbackMult = feedbackMult
	t.expression = expression
}

// sineAt looks up the sine table at a phase in cycles.
func sineAt(phase float64) float64 {
	pos := (phase - math.Floor(phase)) * song.SineWaveLength
	i := int(pos)
	return sineWave[i] + (sineWave[i+1]-sineWave[i])*(pos-float64(i))
}
