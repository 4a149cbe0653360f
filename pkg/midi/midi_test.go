package midi

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/olivierh59500/beepsynth/pkg/song"
)

func exportSong() *song.Song {
	s := song.New()
	s.Title = "export"
	s.Tempo = 120
	s.BeatsPerBar = 4
	s.BarCount = 2
	s.PatternsPerChannel = 1
	s.LoopStart = 0
	s.LoopLength = 2
	s.PitchChannelCount = 1
	s.NoiseChannelCount = 1
	s.Normalize()

	chord := song.NewNote(0, 0, 24, 3)
	chord.Pitches = []int{0, 4}
	s.Channels[0].Patterns[0] = &song.Pattern{Notes: []*song.Note{chord, song.NewNote(0, 24, 48, 1)}, Instruments: []int{0}}
	s.Channels[0].Bars = []int{1, 1}
	s.Channels[1].Patterns[0] = &song.Pattern{Notes: []*song.Note{song.NewNote(1, 0, 12, 3)}, Instruments: []int{0}}
	s.Channels[1].Bars = []int{0, 1}
	return s
}

type noteEvent struct {
	tick    uint32
	on      bool
	channel uint8
	key     uint8
	vel     uint8
}

func notes(track smf.Track) []noteEvent {
	var out []noteEvent
	var tick uint32
	for _, ev := range track {
		tick += ev.Delta
		var ch, key, vel uint8
		msg := midi.Message(ev.Message)
		switch {
		case msg.GetNoteStart(&ch, &key, &vel):
			out = append(out, noteEvent{tick, true, ch, key, vel})
		case msg.GetNoteEnd(&ch, &key):
			out = append(out, noteEvent{tick, false, ch, key, 0})
		}
	}
	return out
}

func TestExportSMF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportSMF(exportSong(), &buf))

	file, err := smf.ReadFrom(&buf)
	require.NoError(t, err)
	require.Len(t, file.Tracks, 3)
	assert.Equal(t, smf.MetricTicks(96), file.TimeFormat)

	var bpm float64
	var foundTempo bool
	for _, ev := range file.Tracks[0] {
		if ev.Message.GetMetaTempo(&bpm) {
			foundTempo = true
		}
	}
	require.True(t, foundTempo)
	assert.InDelta(t, 120, bpm, 0.01)

	const bar = 4 * 24 * TicksPerPart
	c := song.Keys[0].BasePitch
	assert.Equal(t, []noteEvent{
		{0, true, 0, uint8(c), 127},
		{0, true, 0, uint8(c + 4), 127},
		{96, false, 0, uint8(c), 0},
		{96, false, 0, uint8(c + 4), 0},
		{96, true, 0, uint8(c), Velocity(1)},
		{192, false, 0, uint8(c), 0},
		{bar, true, 0, uint8(c), 127},
		{bar, true, 0, uint8(c + 4), 127},
		{bar + 96, false, 0, uint8(c), 0},
		{bar + 96, false, 0, uint8(c + 4), 0},
		{bar + 96, true, 0, uint8(c), Velocity(1)},
		{bar + 192, false, 0, uint8(c), 0},
	}, notes(file.Tracks[1]))

	assert.Equal(t, []noteEvent{
		{bar, true, DrumChannel, 36, 127},
		{bar + 48, false, DrumChannel, 36, 0},
	}, notes(file.Tracks[2]))
}

func TestExportSkipsMutedChannels(t *testing.T) {
	s := exportSong()
	s.Channels[1].Muted = true

	var buf bytes.Buffer
	require.NoError(t, ExportSMF(s, &buf))
	file, err := smf.ReadFrom(&buf)
	require.NoError(t, err)
	assert.Len(t, file.Tracks, 2)
}

func TestChannelMapping(t *testing.T) {
	s := song.New()
	s.PitchChannelCount = 10
	s.NoiseChannelCount = 2
	s.Normalize()

	assert.Equal(t, uint8(0), MIDIChannel(s, 0))
	assert.Equal(t, uint8(8), MIDIChannel(s, 8))
	assert.Equal(t, uint8(10), MIDIChannel(s, 9))
	assert.Equal(t, uint8(DrumChannel), MIDIChannel(s, 10))
	assert.Equal(t, uint8(DrumChannel), MIDIChannel(s, 11))
}

func TestVelocity(t *testing.T) {
	assert.Equal(t, uint8(127), Velocity(song.NoteSizeMax))
	assert.Equal(t, uint8(1), Velocity(0))
	assert.Less(t, Velocity(1), Velocity(2))
}

type fakeInstrument struct {
	channel int
	pitches []int
	offs    int
}

func (f *fakeInstrument) NoteOn(channel int, pitches ...int) {
	f.channel = channel
	f.pitches = append([]int(nil), pitches...)
}

func (f *fakeInstrument) NoteOff() {
	f.pitches = nil
	f.offs++
}

func TestKeyboard(t *testing.T) {
	target := &fakeInstrument{}
	k := NewKeyboard(target, 1, 12)

	k.Handle(midi.NoteOn(0, 60, 100))
	assert.Equal(t, 1, target.channel)
	assert.Equal(t, []int{48}, target.pitches)

	k.Handle(midi.NoteOn(0, 64, 100))
	assert.Equal(t, []int{48, 52}, target.pitches)

	// A second press of a held key changes nothing
	k.Press(60)
	assert.Equal(t, []int{48, 52}, k.Held())

	// Note on with zero velocity is a release
	k.Handle(midi.NoteOn(0, 60, 0))
	assert.Equal(t, []int{52}, target.pitches)

	k.SetChannel(2)
	assert.Equal(t, 2, target.channel)

	k.Handle(midi.NoteOff(0, 64))
	assert.Nil(t, target.pitches)
	assert.Equal(t, 1, target.offs)

	// Keys below pitch 0 and unrelated messages are ignored
	k.Handle(midi.NoteOn(0, 5, 100))
	k.Handle(midi.ControlChange(0, 7, 100))
	assert.Empty(t, k.Held())
	assert.Equal(t, 1, target.offs)
}

func TestKeyboardBasePitch(t *testing.T) {
	target := &fakeInstrument{}
	k := NewKeyboard(target, 0, 12)
	k.Press(60)
	require.Equal(t, []int{48}, target.pitches)

	k.SetBasePitch(14)
	assert.Empty(t, k.Held())
	assert.Equal(t, 1, target.offs)

	k.Press(60)
	assert.Equal(t, []int{46}, target.pitches)
}
