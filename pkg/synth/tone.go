package synth

import (
	"github.com/olivierh59500/beepsynth/pkg/dsp"
	"github.com/olivierh59500/beepsynth/pkg/song"
)

// Tone is one sounding voice. Per-sample values are stored as a current
// value plus a per-sample delta (or scale) so a tick can be rendered across
// several output buffers.
type Tone struct {
	instrumentIndex int
	pitches         [song.MaxChordSize]int
	pitchCount      int
	chordSize       int
	drumsetPitch    int

	note, prevNote, nextNote *song.Note
	prevNotePitchIndex       int
	nextNotePitchIndex       int
	noteStartPart            int
	noteEndPart              int

	freshlyAllocated     bool
	atNoteStart          bool
	isOnLastTick         bool
	forceContinueAtStart bool
	forceContinueAtEnd   bool
	ticksSinceReleased   int
	lastInterval         float64
	lastFadeExpression   float64

	phases           [song.OperatorCount]float64
	phaseDeltas      [song.OperatorCount]float64
	phaseDeltaScales [song.OperatorCount]float64
	expression       float64
	expressionDelta  float64

	operatorExpressions      [song.OperatorCount]float64
	operatorExpressionDeltas [song.OperatorCount]float64
	feedbackOutputs          [song.OperatorCount]float64
	feedbackMult             float64
	feedbackDelta            float64

	pulseWidth      float64
	pulseWidthDelta float64

	noiseSample float64

	// Second voice of two-voice unison and custom interval chords
	unisonSign             float64
	specialIntervalMult    float64
	intervalExpressionMult float64

	noteFilters     [song.FilterMaxPoints + 1]dsp.DynamicBiquad
	noteFilterCount int

	pickedStrings [2]pickedString

	envelopeComputer EnvelopeComputer
}

// reset prepares a slot for a new note.
func (t *Tone) reset() {
	for i := range t.phases {
		t.phases[i] = 0
		t.phaseDeltas[i] = 0
		t.phaseDeltaScales[i] = 1
		t.operatorExpressions[i] = 0
		t.operatorExpressionDeltas[i] = 0
		t.feedbackOutputs[i] = 0
	}
	t.expression = 0
	t.expressionDelta = 0
	t.feedbackMult = 0
	t.feedbackDelta = 0
	t.pulseWidth = 0
	t.pulseWidthDelta = 0
	t.noiseSample = 0
	t.noteFilterCount = 0
	for i := range t.noteFilters {
		t.noteFilters[i].Reset()
	}
	for i := range t.pickedStrings {
		t.pickedStrings[i].reset()
	}
	t.envelopeComputer.Reset()

	t.note, t.prevNote, t.nextNote = nil, nil, nil
	t.freshlyAllocated = true
	t.atNoteStart = false
	t.isOnLastTick = false
	t.forceContinueAtStart = false
	t.forceContinueAtEnd = false
	t.ticksSinceReleased = 0
	t.lastInterval = 0
	t.lastFadeExpression = 1
	t.drumsetPitch = -1
	t.unisonSign = 1
	t.specialIntervalMult = 1
	t.intervalExpressionMult = 1
}

// sanitize flushes denormals and non-finite values out of recursive state.
func (t *Tone) sanitize() {
	for i := 0; i < t.noteFilterCount; i++ {
		t.noteFilters[i].Sanitize()
	}
	for i := range t.feedbackOutputs {
		t.feedbackOutputs[i] = dsp.Sanitize(t.feedbackOutputs[i])
	}
	t.noiseSample = dsp.Sanitize(t.noiseSample)
	for i := range t.pickedStrings {
		t.pickedStrings[i].sanitize()
	}
}

// applyFilters runs a sample through the tone's note filters in order.
func (t *Tone) applyFilters(sample float64) float64 {
	for i := 0; i < t.noteFilterCount; i++ {
		sample = t.noteFilters[i].Process(sample)
	}
	return sample
}
