package synth

import (
	"fmt"
	"math"
	"testing"

	"github.com/Southclaws/fault/ftag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olivierh59500/beepsynth/pkg/song"
)

const testSampleRate = 48000

// At 120 bpm and 48 kHz a tick is 500 samples, a beat 24000 and a bar of
// four beats 96000.
const (
	samplesPerTestTick = 500
	samplesPerTestBeat = 24000
	samplesPerTestBar  = 96000
)

// testSong builds a two bar song at 120 bpm with four beats per bar. ins
// plays notes in the first bar; the second bar is empty.
func testSong(ins *song.Instrument, notes ...*song.Note) *song.Song {
	s := song.New()
	s.Tempo = 120
	s.BeatsPerBar = 4
	s.BarCount = 2
	s.PatternsPerChannel = 1
	s.LoopStart = 0
	s.LoopLength = 2
	s.PitchChannelCount = 1
	s.NoiseChannelCount = 1
	s.Channels = []*song.Channel{
		{Instruments: []*song.Instrument{song.NewInstrument(song.Chip, false)}},
		{Instruments: []*song.Instrument{song.NewInstrument(song.Noise, true)}},
	}
	c := testChannel(ins)
	s.Channels[c].Instruments[0] = ins
	s.Channels[c].Patterns = []*song.Pattern{{Notes: notes, Instruments: []int{0}}}
	s.Channels[c].Bars = []int{1, 0}
	s.Normalize()
	return s
}

func testChannel(ins *song.Instrument) int {
	if ins.Type == song.Noise || ins.Type == song.Drumset {
		return 1
	}
	return 0
}

func newTestSynth(t *testing.T, s *song.Song, opts ...Option) *Synth {
	t.Helper()
	syn, err := New(s, testSampleRate, opts...)
	require.NoError(t, err)
	syn.SetLoopRepeatCount(0)
	syn.Play()
	return syn
}

func render(syn *Synth, n int) ([]float32, []float32) {
	l := make([]float32, n)
	r := make([]float32, n)
	syn.Synthesize(l, r)
	return l, r
}

// renderChunks renders n samples, cycling through the chunk sizes.
func renderChunks(syn *Synth, n int, sizes []int) ([]float32, []float32) {
	l := make([]float32, n)
	r := make([]float32, n)
	for done, i := 0, 0; done < n; i++ {
		size := min(sizes[i%len(sizes)], n-done)
		syn.Synthesize(l[done:done+size], r[done:done+size])
		done += size
	}
	return l, r
}

func peak(buf []float32) float64 {
	p := 0.0
	for _, v := range buf {
		p = math.Max(p, math.Abs(float64(v)))
	}
	return p
}

// maxStep is the largest jump between neighbouring samples.
func maxStep(buf []float32) float64 {
	step := 0.0
	for i := 1; i < len(buf); i++ {
		step = math.Max(step, math.Abs(float64(buf[i]-buf[i-1])))
	}
	return step
}

func sumAbs(buf []float32) float64 {
	sum := 0.0
	for _, v := range buf {
		sum += math.Abs(float64(v))
	}
	return sum
}

func requireFinite(t *testing.T, buf []float32) {
	t.Helper()
	for i, v := range buf {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			require.Failf(t, "non-finite sample", "sample %d is %v", i, v)
		}
	}
}

// richInstrument enables every effect and a few tone shaping settings.
func richInstrument() *song.Instrument {
	ins := song.NewInstrument(song.Chip, false)
	for _, e := range []song.Effect{
		song.EffectReverb, song.EffectChorus, song.EffectPanning, song.EffectDistortion,
		song.EffectBitcrusher, song.EffectNoteFilter, song.EffectEcho, song.EffectVibrato,
		song.EffectChordType,
	} {
		ins.Effects = ins.Effects.With(e)
	}
	ins.Chord = song.ChordStrum
	ins.Vibrato = 1
	ins.Pan = 70
	ins.EchoDelay = 2
	ins.EQFilter.Points = []song.FilterControlPoint{{Type: song.LowPass, Freq: 20, Gain: 6}}
	ins.NoteFilter.Points = []song.FilterControlPoint{{Type: song.Peak, Freq: 14, Gain: 10}}
	return ins
}

func richSong() *song.Song {
	chord := song.NewNote(36, 0, 36, 3)
	chord.Pitches = []int{36, 40, 43}
	chord.Pins = []song.NotePin{{Interval: 0, Time: 0, Size: 3}, {Interval: 2, Time: 24, Size: 2}, {Interval: 2, Time: 36, Size: 3}}
	return testSong(richInstrument(), chord, song.NewNote(48, 48, 72, 2), song.NewNote(31, 72, 96, 3))
}

func TestNewRejectsBadArguments(t *testing.T) {
	_, err := New(nil, testSampleRate)
	require.Error(t, err)
	assert.Equal(t, ftag.InvalidArgument, ftag.Get(err))

	_, err = New(song.New(), 8000)
	require.Error(t, err)
	assert.Equal(t, ftag.InvalidArgument, ftag.Get(err))

	syn, err := New(song.New(), MinSampleRate)
	require.NoError(t, err)
	assert.Equal(t, MinSampleRate, syn.SampleRate())
	assert.False(t, syn.IsPlaying())
	assert.Equal(t, -1, syn.LoopRepeatCount())
}

func TestEmptySongIsSilent(t *testing.T) {
	syn := newTestSynth(t, testSong(song.NewInstrument(song.Chip, false)))
	l, r := render(syn, samplesPerTestBar)
	assert.Zero(t, peak(l))
	assert.Zero(t, peak(r))
}

func TestSingleNoteTiming(t *testing.T) {
	ins := song.NewInstrument(song.Chip, false)
	syn := newTestSynth(t, testSong(ins, song.NewNote(48, 0, 24, 3)))
	l, _ := render(syn, 2*samplesPerTestBeat)

	for start := 0; start < samplesPerTestBeat; start += 50 {
		require.Greaterf(t, peak(l[start:start+50]), 0.0, "window at %d is silent", start)
	}
	assert.LessOrEqual(t, peak(l[samplesPerTestBeat+samplesPerTestTick:]), 1e-9)
}

func TestReleasedToneFadesOut(t *testing.T) {
	ins := song.NewInstrument(song.Chip, false)
	ins.FadeOut = 6 // 12 ticks
	require.Equal(t, 12, ins.GetFadeOutTicks())
	syn := newTestSynth(t, testSong(ins, song.NewNote(48, 0, 24, 3)))
	l, _ := render(syn, 2*samplesPerTestBeat)

	fadeEnd := samplesPerTestBeat + 12*samplesPerTestTick
	assert.Greater(t, peak(l[samplesPerTestBeat:fadeEnd-samplesPerTestTick]), 0.0)
	assert.LessOrEqual(t, peak(l[fadeEnd+samplesPerTestTick:]), 1e-9)
	assert.Zero(t, syn.pool.inUse())
}

func TestRenderIsDeterministic(t *testing.T) {
	a := newTestSynth(t, richSong())
	b := newTestSynth(t, richSong())
	al, ar := render(a, samplesPerTestBar)
	bl, br := render(b, samplesPerTestBar)
	requireFinite(t, al)
	requireFinite(t, ar)
	assert.Equal(t, al, bl)
	assert.Equal(t, ar, br)
	assert.Greater(t, peak(al), 0.01)
}

func TestRenderIndependentOfBufferSplit(t *testing.T) {
	whole := newTestSynth(t, richSong())
	split := newTestSynth(t, richSong())
	n := samplesPerTestBar + samplesPerTestBeat

	wl, wr := render(whole, n)
	sl, sr := renderChunks(split, n, []int{1, 7, 64, 500, 333, 4096, 2})

	require.Len(t, sl, n)
	for i := range wl {
		if math.Abs(float64(wl[i]-sl[i])) > 1e-6 || math.Abs(float64(wr[i]-sr[i])) > 1e-6 {
			require.Failf(t, "split render differs", "sample %d: %v/%v vs %v/%v", i, wl[i], wr[i], sl[i], sr[i])
		}
	}
	assert.InDelta(t, whole.Playhead(), split.Playhead(), 1e-12)
}

func TestEveryInstrumentTypeSounds(t *testing.T) {
	for typ := song.InstrumentType(0); typ < song.InstrumentTypeCount; typ++ {
		t.Run(typ.String(), func(t *testing.T) {
			isNoise := typ == song.Noise || typ == song.Drumset
			ins := song.NewInstrument(typ, isNoise)
			pitch := 48
			if isNoise {
				pitch = 4
			}
			syn := newTestSynth(t, testSong(ins, song.NewNote(pitch, 0, 24, 3)))
			l, r := render(syn, samplesPerTestBeat)
			requireFinite(t, l)
			requireFinite(t, r)
			assert.Greater(t, peak(l), 1e-3)
		})
	}
}

// hannWindow tapers signal so that the strongest partial stands clear of
// its neighbours' leakage.
func hannWindow(signal []float32) []float64 {
	n := len(signal)
	out := make([]float64, n)
	for i, v := range signal {
		out[i] = float64(v) * (0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return out
}

// dtftPower evaluates the power of signal at angular frequency w in
// radians per sample.
func dtftPower(signal []float64, w float64) float64 {
	step := complex(math.Cos(w), -math.Sin(w))
	phasor := complex(1, 0)
	var sum complex128
	for _, v := range signal {
		sum += complex(v, 0) * phasor
		phasor *= step
	}
	return real(sum)*real(sum) + imag(sum)*imag(sum)
}

// centsOff scans the spectrum within half a semitone of want and returns how
// far the strongest frequency lies from it, in cents.
func centsOff(signal []float64, sampleRate, want float64) float64 {
	scan := func(from, to, step float64) float64 {
		best, bestPower := from, -1.0
		for cents := from; cents <= to; cents += step {
			w := 2 * math.Pi * want * math.Pow(2, cents/1200) / sampleRate
			if p := dtftPower(signal, w); p > bestPower {
				best, bestPower = cents, p
			}
		}
		return best
	}
	coarse := scan(-50, 50, 1)
	return scan(coarse-1, coarse+1, 0.01)
}

func TestPitchIsInTune(t *testing.T) {
	const (
		skip     = 4800
		length   = 1 << 15
		maxCents = 3.0
	)
	for _, typ := range []song.InstrumentType{song.Chip, song.PickedString} {
		for pitch := 12; pitch <= 84; pitch += 12 {
			t.Run(fmt.Sprintf("%s/%d", typ, pitch), func(t *testing.T) {
				ins := song.NewInstrument(typ, false)
				ins.Unison = 0
				ins.StringSustain = song.StringSustainRange - 1
				syn := newTestSynth(t, testSong(ins, song.NewNote(pitch, 0, 96, 3)))
				l, _ := render(syn, skip+length)
				requireFinite(t, l)

				want := song.FrequencyFromPitch(float64(song.Keys[0].BasePitch + pitch))
				off := centsOff(hannWindow(l[skip:]), testSampleRate, want)
				assert.LessOrEqualf(t, math.Abs(off), maxCents, "%.2f Hz is %.2f cents off", want, off)
			})
		}
	}
}

func TestPanningFavoursOneSide(t *testing.T) {
	ins := song.NewInstrument(song.Chip, false)
	ins.Effects = ins.Effects.With(song.EffectPanning)
	ins.Pan = song.PanMax
	syn := newTestSynth(t, testSong(ins, song.NewNote(48, 0, 24, 3)))
	l, r := render(syn, samplesPerTestBeat)
	assert.Less(t, sumAbs(l), 1e-3*sumAbs(r))

	centered := newTestSynth(t, testSong(song.NewInstrument(song.Chip, false), song.NewNote(48, 0, 24, 3)))
	l, r = render(centered, samplesPerTestBeat)
	assert.Equal(t, l, r)
}

func TestVolume(t *testing.T) {
	syn := newTestSynth(t, testSong(song.NewInstrument(song.Chip, false), song.NewNote(48, 0, 24, 3)))
	syn.SetVolume(-1)
	assert.Zero(t, syn.Volume())
	l, _ := render(syn, samplesPerTestBeat)
	assert.Zero(t, peak(l))
}

func TestLoopRepeatCount(t *testing.T) {
	syn := newTestSynth(t, testSong(song.NewInstrument(song.Chip, false), song.NewNote(48, 0, 24, 3)))
	syn.SetLoopRepeatCount(1)

	render(syn, 4*samplesPerTestBar-1)
	assert.False(t, syn.Ended())
	assert.Equal(t, 1, syn.Bar())
	assert.Zero(t, syn.LoopRepeatCount())

	render(syn, 1)
	assert.True(t, syn.Ended())
	assert.False(t, syn.IsPlaying())

	syn.Play()
	assert.False(t, syn.Ended())
	assert.Zero(t, syn.Bar())
	assert.Zero(t, syn.Playhead())
}

func TestLoopForever(t *testing.T) {
	syn := newTestSynth(t, testSong(song.NewInstrument(song.Chip, false), song.NewNote(48, 0, 24, 3)))
	syn.SetLoopRepeatCount(-5)
	assert.Equal(t, -1, syn.LoopRepeatCount())

	render(syn, 5*samplesPerTestBar)
	assert.False(t, syn.Ended())
	assert.True(t, syn.IsPlaying())
	assert.Equal(t, 1, syn.Bar())
}

func TestPlayhead(t *testing.T) {
	syn := newTestSynth(t, testSong(song.NewInstrument(song.Chip, false)))
	render(syn, samplesPerTestBar+samplesPerTestBar/2)
	assert.InDelta(t, 1.5, syn.Playhead(), 1e-9)

	render(syn, samplesPerTestTick/2)
	assert.InDelta(t, 1.5+0.5/192, syn.Playhead(), 1e-9)

	syn.SetPlayhead(0.25)
	assert.InDelta(t, 0.25, syn.Playhead(), 1e-9)
	assert.Zero(t, syn.Bar())
}

func TestSeekingReleasesTones(t *testing.T) {
	ins := song.NewInstrument(song.Chip, false)
	syn := newTestSynth(t, testSong(ins, song.NewNote(48, 0, 96, 3)))
	render(syn, samplesPerTestBeat)
	st := syn.channels[0][0]
	require.Equal(t, 1, st.activeTones.Len())

	syn.GoToBar(1)
	assert.Zero(t, st.activeTones.Len())
	assert.Equal(t, 1, st.releasedTones.Len())
	assert.Equal(t, 1, syn.Bar())

	render(syn, samplesPerTestBeat)
	assert.Zero(t, syn.pool.inUse())
}

func TestBarNavigation(t *testing.T) {
	syn := newTestSynth(t, testSong(song.NewInstrument(song.Chip, false)))
	syn.GoToBar(99)
	assert.Equal(t, 1, syn.Bar())
	syn.GoToBar(-3)
	assert.Equal(t, 0, syn.Bar())
	syn.NextBar()
	assert.Equal(t, 1, syn.Bar())
	syn.NextBar()
	assert.Equal(t, 0, syn.Bar())
	syn.PrevBar()
	assert.Equal(t, 1, syn.Bar())
}

func TestPauseLetsTonesFade(t *testing.T) {
	syn := newTestSynth(t, testSong(song.NewInstrument(song.Chip, false), song.NewNote(48, 0, 96, 3)))
	render(syn, 10*samplesPerTestTick)
	syn.Pause()
	playhead := syn.Playhead()

	l, _ := render(syn, samplesPerTestBeat)
	assert.Equal(t, playhead, syn.Playhead())
	assert.Greater(t, peak(l[:samplesPerTestTick]), 0.0)
	assert.Zero(t, peak(l[samplesPerTestBeat/2:]))
	assert.Zero(t, syn.pool.inUse())
}

func TestResetMatchesFreshSynth(t *testing.T) {
	ins := song.NewInstrument(song.Chip, false)
	ins.Effects = ins.Effects.With(song.EffectReverb).With(song.EffectEcho).With(song.EffectDistortion)
	s := testSong(ins, song.NewNote(48, 0, 48, 3), song.NewNote(55, 48, 96, 2))

	fresh := newTestSynth(t, s)
	want, _ := render(fresh, samplesPerTestBar)

	syn := newTestSynth(t, s)
	render(syn, samplesPerTestBar/3)
	syn.Reset()
	assert.False(t, syn.IsPlaying())
	syn.Play()
	got, _ := render(syn, samplesPerTestBar)
	assert.Equal(t, want, got)
}

func TestNoiseSeedIsRepeatable(t *testing.T) {
	s := testSong(song.NewInstrument(song.Noise, true), song.NewNote(4, 0, 24, 3), song.NewNote(4, 48, 72, 3))
	fresh := newTestSynth(t, s)
	want, _ := render(fresh, samplesPerTestBar)
	require.Greater(t, peak(want), 0.0)

	syn := newTestSynth(t, s)
	render(syn, samplesPerTestBar)
	syn.Reset()
	syn.Play()
	got, _ := render(syn, samplesPerTestBar)
	assert.Equal(t, want, got)

	other := newTestSynth(t, s, WithSeed(DefaultSeed+1))
	reseeded, _ := render(other, samplesPerTestBar)
	assert.NotEqual(t, want, reseeded)
}

func TestUnknownInstrumentTypePanics(t *testing.T) {
	ins := song.NewInstrument(song.Chip, false)
	s := testSong(ins, song.NewNote(48, 0, 24, 3))
	ins.Type = song.InstrumentType(99)
	syn := newTestSynth(t, s)
	assert.Panics(t, func() { render(syn, samplesPerTestTick) })
}
