package synth

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/olivierh59500/beepsynth/pkg/song"
)

func TestComputeEnvelope(t *testing.T) {
	byName := func(name string) song.Envelope {
		for _, e := range song.Envelopes {
			if e.Name == name {
				return e
			}
		}
		t.Fatalf("no envelope %q", name)
		return song.Envelope{}
	}

	assert.Equal(t, 1.0, computeEnvelope(byName("none"), 3, 1, 0))
	assert.Equal(t, song.NoteSizeToVolumeMult(2), computeEnvelope(byName("note size"), 0, 0, 2))
	assert.Equal(t, 2.0, computeEnvelope(byName("punch"), 0, 0, 3))
	assert.Equal(t, 1.0, computeEnvelope(byName("punch"), 1, 0, 3))
	assert.InDelta(t, 0.5, computeEnvelope(byName("twang 2"), 1.0/8, 0, 3), 1e-12)
	assert.InDelta(t, 0.5, computeEnvelope(byName("swell 2"), 1.0/8, 0, 3), 1e-12)
	assert.InDelta(t, 0.5, computeEnvelope(byName("decay 1"), 0.1, 0, 3), 1e-12)
	assert.InDelta(t, 0, computeEnvelope(byName("tremolo1"), 0, 0, 3), 1e-12)
	assert.InDelta(t, 1, computeEnvelope(byName("tremolo1"), 0, 0.125, 3), 1e-12)

	flare := byName("flare 2")
	attack := 0.25 / math.Sqrt(flare.Speed)
	assert.InDelta(t, 0.5, computeEnvelope(flare, attack/2, 0, 3), 1e-12)
	assert.InDelta(t, 1, computeEnvelope(flare, attack, 0, 3), 1e-12)
}

func TestEnvelopeComputerAdvancesPerTick(t *testing.T) {
	ins := song.NewInstrument(song.Chip, false)
	ins.Envelopes = []song.EnvelopeSettings{{Target: song.TargetNoteVolume, Envelope: 7}}

	var tone Tone
	tone.reset()
	tone.note = song.NewNote(48, 0, 24, 3)
	tone.atNoteStart = true

	const secondsPerTick = 0.01
	e := &tone.envelopeComputer
	e.ComputeEnvelopes(ins, 0, 0, secondsPerTick, &tone, false)
	assert.Equal(t, 0.0, e.NoteSecondsStart)
	assert.InDelta(t, secondsPerTick, e.NoteSecondsEnd, 1e-12)
	assert.Equal(t, 1.0, e.Starts[song.NoteVolume])
	assert.Less(t, e.Ends[song.NoteVolume], 1.0)

	tone.atNoteStart = false
	e.ComputeEnvelopes(ins, 0, 1, secondsPerTick, &tone, false)
	assert.InDelta(t, secondsPerTick, e.NoteSecondsStart, 1e-12)
	assert.InDelta(t, 2*secondsPerTick, e.NoteSecondsEnd, 1e-12)
}
