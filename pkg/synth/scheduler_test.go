package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olivierh59500/beepsynth/pkg/song"
)

func chordNote(start, end int, pitches ...int) *song.Note {
	n := song.NewNote(pitches[0], start, end, 3)
	n.Pitches = pitches
	return n
}

func TestToneCountFollowsChordMode(t *testing.T) {
	for _, tc := range []struct {
		chord     int
		wantTones int
		wantPitch int
	}{
		{song.ChordSimultaneous, 3, 1},
		{song.ChordArpeggio, 1, 3},
		{song.ChordCustom, 1, 3},
	} {
		t.Run(song.Chords[tc.chord].Name, func(t *testing.T) {
			ins := song.NewInstrument(song.Chip, false)
			ins.Effects = ins.Effects.With(song.EffectChordType)
			ins.Chord = tc.chord
			syn := newTestSynth(t, testSong(ins, chordNote(0, 24, 48, 52, 55)))
			render(syn, samplesPerTestTick)

			st := syn.channels[0][0]
			require.Equal(t, tc.wantTones, st.activeTones.Len())
			assert.Equal(t, tc.wantPitch, syn.pool.get(st.activeTones.Get(0)).pitchCount)
		})
	}
}

func TestStrumStartsVoicesInTurn(t *testing.T) {
	ins := song.NewInstrument(song.Chip, false)
	ins.Effects = ins.Effects.With(song.EffectChordType)
	ins.Chord = song.ChordStrum
	syn := newTestSynth(t, testSong(ins, chordNote(0, 24, 48, 52, 55)))
	st := syn.channels[0][0]

	render(syn, samplesPerTestTick)
	assert.Equal(t, 1, st.activeTones.Len())

	// One part is two ticks
	render(syn, 2*samplesPerTestTick)
	assert.Equal(t, 2, st.activeTones.Len())

	render(syn, 2*samplesPerTestTick)
	require.Equal(t, 3, st.activeTones.Len())
	for i, pitch := range []int{48, 52, 55} {
		assert.Equal(t, pitch, syn.pool.get(st.activeTones.Get(i)).pitches[0])
	}
}

func TestContinueTransitionKeepsTone(t *testing.T) {
	ins := song.NewInstrument(song.Chip, false)
	ins.Effects = ins.Effects.With(song.EffectTransitionType)
	ins.Transition = 2
	ins.ChipWave = 1
	require.True(t, ins.GetTransition().Continues)
	syn := newTestSynth(t, testSong(ins, song.NewNote(48, 0, 24, 3), song.NewNote(50, 24, 48, 3)))
	st := syn.channels[0][0]

	steady, _ := render(syn, samplesPerTestBeat/2)
	require.Equal(t, 1, st.activeTones.Len())
	first := st.activeTones.Get(0)

	l, _ := render(syn, samplesPerTestBeat)
	require.Equal(t, 1, st.activeTones.Len())
	assert.Equal(t, first, st.activeTones.Get(0))
	assert.Zero(t, st.releasedTones.Len())

	tone := syn.pool.get(first)
	assert.Equal(t, 50, tone.pitches[0])
	assert.InDelta(t, 0.75, tone.envelopeComputer.NoteSecondsEnd, 0.02)

	// The wave carries on through the note change without a click
	bound := maxStep(steady[samplesPerTestBeat/4:])
	require.Greater(t, bound, 0.0)
	seam := samplesPerTestBeat / 2
	assert.LessOrEqual(t, maxStep(l[seam-2*samplesPerTestTick:seam+2*samplesPerTestTick]), 1.5*bound)
}

func TestNormalTransitionRestartsEnvelopes(t *testing.T) {
	ins := song.NewInstrument(song.Chip, false)
	syn := newTestSynth(t, testSong(ins, song.NewNote(48, 0, 24, 3), song.NewNote(50, 24, 48, 3)))
	st := syn.channels[0][0]

	render(syn, samplesPerTestBeat+samplesPerTestBeat/2)
	require.Equal(t, 1, st.activeTones.Len())
	tone := syn.pool.get(st.activeTones.Get(0))
	assert.Equal(t, 50, tone.pitches[0])
	assert.InDelta(t, 0.25, tone.envelopeComputer.NoteSecondsEnd, 0.02)
	assert.Equal(t, 1, syn.pool.inUse())
}

func TestNormalTransitionReleasesPreviousTone(t *testing.T) {
	ins := song.NewInstrument(song.Chip, false)
	ins.FadeOut = 8
	syn := newTestSynth(t, testSong(ins, song.NewNote(48, 0, 24, 3), song.NewNote(55, 24, 48, 3)))
	st := syn.channels[0][0]

	render(syn, samplesPerTestBeat+samplesPerTestTick)
	assert.Equal(t, 1, st.activeTones.Len())
	assert.Equal(t, 1, st.releasedTones.Len())
	assert.Equal(t, 55, syn.pool.get(st.activeTones.Get(0)).pitches[0])
	assert.Equal(t, 48, syn.pool.get(st.releasedTones.Get(0)).pitches[0])
}

func TestSlideMatchesVoicesByPitch(t *testing.T) {
	ins := song.NewInstrument(song.Chip, false)
	ins.Effects = ins.Effects.With(song.EffectTransitionType)
	ins.Transition = 3
	require.True(t, ins.GetTransition().Slides)

	// The upper voice of the first chord lines up with the lower pitch of
	// the second
	syn := newTestSynth(t, testSong(ins, chordNote(0, 24, 48, 55), chordNote(24, 48, 55, 60)))
	st := syn.channels[0][0]

	render(syn, samplesPerTestTick)
	require.Equal(t, 2, st.activeTones.Len())
	low, high := st.activeTones.Get(0), st.activeTones.Get(1)

	render(syn, samplesPerTestBeat)
	require.Equal(t, 2, st.activeTones.Len())
	assert.Equal(t, high, st.activeTones.Get(0))
	assert.Equal(t, low, st.activeTones.Get(1))
	assert.Equal(t, 1, syn.pool.get(high).prevNotePitchIndex)
	assert.Equal(t, 0, syn.pool.get(low).prevNotePitchIndex)
}

func TestNoteContinuesAcrossBars(t *testing.T) {
	ins := song.NewInstrument(song.Chip, false)
	ins.Effects = ins.Effects.With(song.EffectTransitionType)
	ins.Transition = 2
	s := testSong(ins, song.NewNote(48, 72, 96, 3))
	next := song.NewNote(48, 0, 24, 3)
	next.ContinuesLastPattern = true
	s.PatternsPerChannel = 2
	s.Channels[0].Patterns = append(s.Channels[0].Patterns, &song.Pattern{Notes: []*song.Note{next}, Instruments: []int{0}})
	s.Channels[0].Bars = []int{1, 2}
	s.Normalize()

	syn := newTestSynth(t, s)
	st := syn.channels[0][0]
	render(syn, samplesPerTestBar-samplesPerTestTick)
	require.Equal(t, 1, st.activeTones.Len())
	id := st.activeTones.Get(0)
	assert.False(t, syn.pool.get(id).isOnLastTick)

	render(syn, samplesPerTestBeat/2)
	require.Equal(t, 1, st.activeTones.Len())
	assert.Equal(t, id, st.activeTones.Get(0))
	assert.Zero(t, st.releasedTones.Len())
}

func TestNoteContinuesAcrossLoopSeam(t *testing.T) {
	ins := song.NewInstrument(song.Chip, false)
	ins.Effects = ins.Effects.With(song.EffectTransitionType)
	ins.Transition = 2
	ins.ChipWave = 1
	held := song.NewNote(48, 0, 96, 3)
	held.ContinuesLastPattern = true
	s := testSong(ins, held)
	s.Channels[0].Bars = []int{1, 1}
	s.Normalize()

	syn := newTestSynth(t, s)
	syn.SetLoopRepeatCount(2)
	st := syn.channels[0][0]

	steady, _ := render(syn, samplesPerTestBeat/2)
	require.Equal(t, 1, st.activeTones.Len())
	id := st.activeTones.Get(0)

	render(syn, 2*samplesPerTestBar-samplesPerTestBeat)
	require.Equal(t, 1, syn.Bar())
	assert.False(t, syn.pool.get(id).isOnLastTick)

	l, _ := render(syn, samplesPerTestBeat)
	require.Zero(t, syn.Bar())
	assert.Equal(t, 1, syn.LoopRepeatCount())
	require.Equal(t, 1, st.activeTones.Len())
	assert.Equal(t, id, st.activeTones.Get(0))
	assert.Zero(t, st.releasedTones.Len())
	assert.Greater(t, syn.pool.get(id).envelopeComputer.NoteSecondsEnd, 4.0)

	bound := maxStep(steady[samplesPerTestBeat/4:])
	require.Greater(t, bound, 0.0)
	seam := samplesPerTestBeat / 2
	assert.LessOrEqual(t, maxStep(l[seam-2*samplesPerTestTick:seam+2*samplesPerTestTick]), 1.5*bound)
}

func TestNoteEndsWhenLoopRunsOut(t *testing.T) {
	ins := song.NewInstrument(song.Chip, false)
	ins.Effects = ins.Effects.With(song.EffectTransitionType)
	ins.Transition = 2
	held := song.NewNote(48, 0, 96, 3)
	held.ContinuesLastPattern = true
	s := testSong(ins, held)
	s.Channels[0].Bars = []int{1, 1}
	s.Normalize()

	syn := newTestSynth(t, s)
	syn.SetLoopRepeatCount(1)
	render(syn, 3*samplesPerTestBar+samplesPerTestBeat)
	require.Equal(t, 1, syn.Bar())
	require.Zero(t, syn.LoopRepeatCount())
	assert.Equal(t, 2, syn.nextBar())
	assert.False(t, syn.wrappedToLoopStart)
	assert.Equal(t, 0, syn.prevBar())

	render(syn, samplesPerTestBar)
	assert.True(t, syn.Ended())
}

func TestMutedChannelIsSilent(t *testing.T) {
	s := testSong(song.NewInstrument(song.Chip, false), song.NewNote(48, 0, 24, 3))
	s.Channels[0].Muted = true
	syn := newTestSynth(t, s)
	l, _ := render(syn, samplesPerTestBeat)
	assert.Zero(t, peak(l))
}

func TestLiveInput(t *testing.T) {
	syn, err := New(testSong(song.NewInstrument(song.Chip, false)), testSampleRate)
	require.NoError(t, err)

	syn.StartLiveInput(LiveInput{Channel: 0, Pitches: []int{48, 52}})
	assert.True(t, syn.LiveInputActive())
	l, _ := render(syn, samplesPerTestBeat/4)
	assert.Greater(t, peak(l), 0.0)
	assert.Equal(t, 2, syn.channels[0][0].liveTones.Len())
	assert.Zero(t, syn.Playhead())

	syn.StopLiveInput()
	assert.False(t, syn.LiveInputActive())
	l, _ = render(syn, samplesPerTestBeat/4)
	assert.Zero(t, peak(l[len(l)/2:]))
	assert.Zero(t, syn.pool.inUse())
}

func TestLiveInputTimesOut(t *testing.T) {
	syn, err := New(testSong(song.NewInstrument(song.Chip, false)), testSampleRate, WithLiveInputTimeout(0.1))
	require.NoError(t, err)

	syn.StartLiveInput(LiveInput{Channel: 0, Pitches: []int{48}})
	render(syn, 5*samplesPerTestTick)
	assert.True(t, syn.LiveInputActive())
	render(syn, 5*samplesPerTestTick)
	assert.False(t, syn.LiveInputActive())
}

func TestLiveInputIgnoresExtraPitches(t *testing.T) {
	syn, err := New(testSong(song.NewInstrument(song.Chip, false)), testSampleRate)
	require.NoError(t, err)

	pitches := make([]int, song.MaxChordSize+3)
	for i := range pitches {
		pitches[i] = 40 + i
	}
	syn.StartLiveInput(LiveInput{Channel: 0, Pitches: pitches})
	pitches[0] = 0
	render(syn, samplesPerTestTick)

	st := syn.channels[0][0]
	require.Equal(t, song.MaxChordSize, st.liveTones.Len())
	assert.Equal(t, 40, syn.pool.get(st.liveTones.Get(0)).pitches[0])
}

func TestReleasedTonesAreCapped(t *testing.T) {
	ins := song.NewInstrument(song.Chip, false)
	ins.FadeOut = len(song.FadeOutTicks) - 1
	var notes []*song.Note
	for part := 0; part < 96; part += 2 {
		notes = append(notes, song.NewNote(48+part%12, part, part+2, 3))
	}
	syn := newTestSynth(t, testSong(ins, notes...))
	render(syn, samplesPerTestBar)
	assert.LessOrEqual(t, syn.pool.inUse(), song.MaximumTonesPerChannel+1)
}

func TestTonePool(t *testing.T) {
	var p tonePool
	a := p.alloc()
	b := p.alloc()
	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, p.inUse())

	p.get(a).ticksSinceReleased = 7
	p.release(a)
	assert.Equal(t, 1, p.inUse())

	c := p.alloc()
	assert.Equal(t, a, c)
	assert.Zero(t, p.get(c).ticksSinceReleased)
	assert.Equal(t, 2, p.inUse())
}

func TestAdjacentNotesHaveMatchingPitches(t *testing.T) {
	bent := song.NewNote(48, 0, 24, 3)
	bent.Pins[1].Interval = 2
	assert.True(t, adjacentNotesHaveMatchingPitches(bent, song.NewNote(50, 0, 24, 3)))
	assert.False(t, adjacentNotesHaveMatchingPitches(bent, song.NewNote(48, 0, 24, 3)))
	assert.False(t, adjacentNotesHaveMatchingPitches(bent, chordNote(0, 24, 50, 54)))
}
