package song

import (
	"math"
	"testing"

	"github.com/Southclaws/fault/ftag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSong() *Song {
	s := New()
	s.Tempo = 120
	s.Key = 9
	s.Scale = 6
	s.BeatsPerBar = 4
	s.BarCount = 4
	s.PatternsPerChannel = 2
	s.LoopStart = 1
	s.LoopLength = 2
	s.PitchChannelCount = 2
	s.NoiseChannelCount = 1
	s.LayeredInstruments = true
	s.PatternInstruments = true

	chip := NewInstrument(Chip, false)
	chip.ChipWave = 5
	chip.Volume = -3
	chip.Pan = 60
	chip.Effects = EffectMask(0).With(EffectReverb).With(EffectTransitionType)
	chip.Transition = 2
	chip.EQFilter.Points = []FilterControlPoint{{Type: LowPass, Freq: 20, Gain: 5}}
	chip.Envelopes = []EnvelopeSettings{{Target: TargetNoteVolume, Index: 0, Envelope: 18}}

	fm := NewInstrument(FM, false)
	fm.Algorithm = 4
	fm.FeedbackType = 3
	fm.FeedbackAmplitude = 5
	fm.Operators[2] = Operator{Frequency: 4, Amplitude: 9}

	harmonics := NewInstrument(Harmonics, false)
	harmonics.Harmonics.Points[10] = 3
	harmonics.Effects = EffectMask(0).With(EffectChordType).With(EffectVibrato)
	harmonics.Chord = ChordArpeggio
	harmonics.Vibrato = 2

	pwm := NewInstrument(PWM, false)
	pwm.PulseWidth = 20
	pwm.NoteFilter.Points = []FilterControlPoint{{Type: Peak, Freq: 12, Gain: 10}, {Type: HighPass, Freq: 3, Gain: 7}}

	noise := NewInstrument(Noise, true)
	noise.ChipNoise = 3
	drums := NewInstrument(Drumset, true)
	drums.Drumset[5].Envelope = 10
	drums.Drumset[5].Spectrum.Points[4] = 1
	spectrum := NewInstrument(Spectrum, true)
	spectrum.Spectrum.Points[0] = 2

	chord := &Note{
		Pitches:              []int{48, 52},
		Pins:                 []NotePin{{0, 0, 3}, {2, 6, 2}, {2, 12, 1}},
		Start:                0,
		End:                  12,
		ContinuesLastPattern: true,
	}
	s.Channels = []*Channel{
		{
			Octave:      3,
			Instruments: []*Instrument{chip, fm},
			Patterns: []*Pattern{
				{Notes: []*Note{chord, NewNote(55, 24, 48, 3)}, Instruments: []int{0, 1}},
				{Notes: []*Note{NewNote(48, 0, 96, 2)}, Instruments: []int{1}},
			},
			Bars: []int{1, 2, 0, 1},
		},
		{
			Octave:      2,
			Instruments: []*Instrument{harmonics, pwm},
			Patterns: []*Pattern{
				{Notes: []*Note{{Pitches: []int{36, 40, 43, 47}, Pins: []NotePin{{0, 0, 3}, {0, 48, 3}}, Start: 0, End: 48}}, Instruments: []int{0}},
				{Notes: []*Note{NewNote(60, 12, 24, 1), NewNote(60, 24, 36, 1)}, Instruments: []int{1}},
			},
			Bars: []int{1, 1, 2, 2},
		},
		{
			Instruments: []*Instrument{noise, drums, spectrum},
			Patterns: []*Pattern{
				{Notes: []*Note{NewNote(4, 0, 6, 3), NewNote(9, 48, 54, 2)}, Instruments: []int{1, 2}},
				NewPattern(),
			},
			Bars: []int{1, 0, 1, 1},
		},
	}
	s.Normalize()
	return s
}

func TestCompactRoundTrip(t *testing.T) {
	s := testSong()
	require.NoError(t, s.Validate())

	encoded := MarshalCompact(s)
	decoded, err := UnmarshalCompact(encoded)
	require.NoError(t, err)
	assert.Equal(t, s, decoded)

	again, err := UnmarshalCompact(MarshalCompact(decoded))
	require.NoError(t, err)
	assert.Equal(t, decoded, again)
	assert.Equal(t, encoded, MarshalCompact(again))
}

func TestCompactAcceptsURLFragment(t *testing.T) {
	s := testSong()
	decoded, err := UnmarshalCompact("#" + MarshalCompact(s))
	require.NoError(t, err)
	assert.Equal(t, s, decoded)
}

func TestCompactVersion1(t *testing.T) {
	s := New()
	s.BarCount = 2
	s.PatternInstruments = true
	s.Channels[0].Patterns[0].Notes = []*Note{NewNote(36, 0, 24, 3), NewNote(43, 24, 72, 2)}
	s.Channels[0].Bars[0] = 1
	s.Channels[3].Patterns[0].Notes = []*Note{NewNote(2, 12, 24, 3)}
	s.Channels[3].Bars[1] = 1
	s.Normalize()

	encoded := string(encodeCompact(s, 1))
	require.Equal(t, byte('1'), encoded[0])
	decoded, err := UnmarshalCompact(encoded)
	require.NoError(t, err)
	assert.Equal(t, s, decoded)
}

func TestJSONMatchesCompact(t *testing.T) {
	s := testSong()
	data, err := MarshalJSON(s)
	require.NoError(t, err)

	fromJSON, err := UnmarshalJSON(data)
	require.NoError(t, err)
	fromCompact, err := UnmarshalCompact(MarshalCompact(s))
	require.NoError(t, err)

	assert.Equal(t, fromCompact, fromJSON)
	assert.Equal(t, s, fromJSON)
}

func TestJSONKeepsTitle(t *testing.T) {
	s := testSong()
	s.Title = "Overworld"
	data, err := MarshalJSON(s)
	require.NoError(t, err)
	decoded, err := UnmarshalJSON(data)
	require.NoError(t, err)
	assert.Equal(t, "Overworld", decoded.Title)
}

func TestDecodeErrors(t *testing.T) {
	valid := MarshalCompact(testSong())
	tests := []struct {
		name string
		data string
		kind ftag.Kind
	}{
		{"empty", "", ErrUnknownFormat},
		{"newer version", "9n31", ErrUnsupportedVersion},
		{"unknown tag", "2n31Y", ErrCorrupt},
		{"truncated", valid[:len(valid)-3], ErrCorrupt},
		{"bad character", "2n3!", ErrCorrupt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalCompact(tt.data)
			require.Error(t, err)
			assert.Equal(t, tt.kind, ftag.Get(err))
		})
	}

	_, err := UnmarshalJSON([]byte("{not json"))
	require.Error(t, err)
	assert.Equal(t, ErrCorrupt, ftag.Get(err))
}

func TestDetect(t *testing.T) {
	compact := MarshalCompact(testSong())
	data, err := MarshalJSON(testSong())
	require.NoError(t, err)

	assert.Equal(t, FormatCompact, Detect([]byte(compact)))
	assert.Equal(t, FormatCompact, Detect([]byte("#"+compact)))
	assert.Equal(t, FormatURL, Detect([]byte("https://example.com/player/#"+compact)))
	assert.Equal(t, FormatJSON, Detect(data))
	assert.Equal(t, FormatUnknown, Detect([]byte("hello world")))
	assert.Equal(t, FormatUnknown, Detect(nil))

	s, err := Parse([]byte("https://example.com/#" + compact))
	require.NoError(t, err)
	assert.Equal(t, testSong(), s)

	format, version, err := Describe([]byte(compact))
	require.NoError(t, err)
	assert.Equal(t, FormatCompact, format)
	assert.Equal(t, LatestVersion, version)

	_, err = Parse([]byte("zzz"))
	assert.Equal(t, ErrUnsupportedVersion, ftag.Get(err))
	_, err = Parse([]byte("?"))
	assert.Equal(t, ErrUnknownFormat, ftag.Get(err))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/song.json")
	require.Error(t, err)
	assert.Equal(t, ftag.NotFound, ftag.Get(err))
}

func TestNormalizeClamps(t *testing.T) {
	s := New()
	s.Tempo = 1000
	s.BeatsPerBar = 0
	s.LoopStart = 99
	s.LoopLength = 99
	ins := s.Channels[0].Instruments[0]
	ins.Type = Drumset
	ins.Volume = 999
	ins.Pan = -5
	ins.Transition = 42
	ins.Detune = 1000
	ins.EQFilter.Points = make([]FilterControlPoint, 12)
	ins.Envelopes = []EnvelopeSettings{{Target: 99}, {Target: TargetOperatorAmplitude, Index: 0, Envelope: 2}, {Target: TargetNoteVolume, Envelope: 99}}
	s.Channels[0].Bars[0] = 77
	s.Channels[3].Patterns[0].Notes = []*Note{NewNote(40, 0, 12, 3)}
	s.Channels[0].Patterns[0].Notes = []*Note{NewNote(200, 0, 12000, 3), NewNote(200, 0, 12, 3)}

	s.Normalize()

	assert.Equal(t, TempoMax, s.Tempo)
	assert.Equal(t, BeatsPerBarMin, s.BeatsPerBar)
	assert.Equal(t, s.BarCount-1, s.LoopStart)
	assert.Equal(t, 1, s.LoopLength)
	assert.Equal(t, Chip, ins.Type)
	assert.Equal(t, VolumeRange/2, ins.Volume)
	assert.Equal(t, 0, ins.Pan)
	assert.Equal(t, len(Transitions)-1, ins.Transition)
	assert.Equal(t, DetuneMax, ins.Detune)
	assert.Len(t, ins.EQFilter.Points, FilterMaxPoints)
	require.Len(t, ins.Envelopes, 1)
	assert.Equal(t, len(Envelopes)-1, ins.Envelopes[0].Envelope)
	assert.Equal(t, s.PatternsPerChannel, s.Channels[0].Bars[0])
	assert.Equal(t, DrumCount-1, s.Channels[3].Patterns[0].Notes[0].Pitches[0])
	require.Len(t, s.Channels[0].Patterns[0].Notes, 1, "notes past the bar end are dropped")
	assert.Equal(t, MaxPitch, s.Channels[0].Patterns[0].Notes[0].Pitches[0])
}

func TestNoteValidate(t *testing.T) {
	tests := []struct {
		name  string
		note  *Note
		valid bool
	}{
		{"flat", NewNote(10, 0, 12, 3), true},
		{"bent", &Note{Pitches: []int{10}, Pins: []NotePin{{0, 0, 3}, {4, 6, 1}, {-2, 12, 0}}, Start: 0, End: 12}, true},
		{"no pitches", &Note{Pins: []NotePin{{0, 0, 3}, {0, 12, 3}}, End: 12}, false},
		{"one pin", &Note{Pitches: []int{1}, Pins: []NotePin{{0, 0, 3}}, End: 12}, false},
		{"first pin bent", &Note{Pitches: []int{1}, Pins: []NotePin{{2, 0, 3}, {0, 12, 3}}, End: 12}, false},
		{"unordered", &Note{Pitches: []int{1}, Pins: []NotePin{{0, 0, 3}, {0, 8, 3}, {0, 4, 3}, {0, 12, 3}}, End: 12}, false},
		{"short last pin", &Note{Pitches: []int{1}, Pins: []NotePin{{0, 0, 3}, {0, 6, 3}}, End: 12}, false},
		{"big size", &Note{Pitches: []int{1}, Pins: []NotePin{{0, 0, 4}, {0, 12, 3}}, End: 12}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.note.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}

	p := &Pattern{Notes: []*Note{NewNote(1, 0, 12, 3), NewNote(1, 6, 18, 3)}}
	assert.Error(t, p.Validate())
}

func TestPinIndexAt(t *testing.T) {
	n := &Note{Pitches: []int{1}, Pins: []NotePin{{0, 0, 3}, {0, 6, 3}, {0, 12, 3}}, Start: 24, End: 36}
	assert.Equal(t, 0, n.PinIndexAt(20))
	assert.Equal(t, 1, n.PinIndexAt(24))
	assert.Equal(t, 2, n.PinIndexAt(30))
	assert.Equal(t, 3, n.PinIndexAt(36))
}

func TestFilterControlPoint(t *testing.T) {
	p := FilterControlPoint{Type: LowPass, Freq: FilterFreqReferenceSetting, Gain: FilterGainCenter}
	assert.InDelta(t, 8000, p.Hz(), 1e-9)
	p.Freq = FilterFreqRange - 1
	assert.InDelta(t, FilterFreqMaxHz, p.Hz(), 1e-9)

	peak := FilterControlPoint{Type: Peak, Freq: 10, Gain: FilterGainCenter}
	assert.InDelta(t, 1.0, peak.LinearGain(1), 1e-12)
	peak.Gain = FilterGainCenter + 2
	assert.InDelta(t, 2.0, peak.LinearGain(1), 1e-12)
	assert.InDelta(t, 1.0, peak.LinearGain(0), 1e-12)

	for f := 0; f < FilterFreqRange; f++ {
		for g := 0; g < FilterGainRange; g++ {
			for typ := LowPass; typ < FilterTypeCount; typ++ {
				v := FilterControlPoint{Type: typ, Freq: f, Gain: g}.VolumeCompensationMult()
				assert.False(t, math.IsNaN(v) || math.IsInf(v, 0) || v <= 0)
			}
		}
	}
}

func TestBitFieldLongTail(t *testing.T) {
	w := &BitFieldWriter{}
	values := []int{1, 2, 7, 8, 9, 100, 1000, 65535}
	for _, v := range values {
		w.WritePartDuration(v)
		w.WritePitchInterval(-v)
		w.Write(5, v&31)
	}
	r, err := NewBitFieldReader(string(w.EncodeBase64(nil)))
	require.NoError(t, err)
	for _, v := range values {
		assert.Equal(t, v, r.ReadPartDuration())
		assert.Equal(t, -v, r.ReadPitchInterval())
		assert.Equal(t, v&31, r.Read(5))
	}
	assert.False(t, r.Truncated())
	r.Read(64)
	assert.True(t, r.Truncated())
}

func TestTotalSeconds(t *testing.T) {
	s := testSong()
	// 1 intro bar, 2 loop bars played twice, 1 outro bar, 2 seconds per bar.
	assert.Equal(t, 6, s.TotalBars(true, true, 1))
	assert.InDelta(t, 12.0, s.TotalSeconds(1), 1e-9)
	assert.Equal(t, 2, s.TotalBars(false, false, 0))
}

func TestArpeggioPitchIndex(t *testing.T) {
	assert.Equal(t, 0, ArpeggioPitchIndex(1, 1, 5))
	assert.Equal(t, []int{0, 0, 1, 1, 0}, []int{
		ArpeggioPitchIndex(2, 1, 0), ArpeggioPitchIndex(2, 1, 1), ArpeggioPitchIndex(2, 1, 2),
		ArpeggioPitchIndex(2, 1, 3), ArpeggioPitchIndex(2, 1, 4),
	})
	assert.Equal(t, 3, ArpeggioPitchIndex(4, 1, 3))
}
