package synth

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olivierh59500/beepsynth/pkg/dsp"
	"github.com/olivierh59500/beepsynth/pkg/song"
)

func TestEffectTailsRingOutThenSleep(t *testing.T) {
	for _, e := range []song.Effect{song.EffectReverb, song.EffectEcho, song.EffectChorus, song.EffectPanning} {
		t.Run(song.EffectNames[e], func(t *testing.T) {
			ins := song.NewInstrument(song.Chip, false)
			ins.Effects = ins.Effects.With(e)
			syn := newTestSynth(t, testSong(ins, song.NewNote(48, 0, 24, 3)))
			st := syn.channels[0][0]

			render(syn, samplesPerTestBeat)
			require.True(t, st.awake)

			tail, _ := render(syn, 4*samplesPerTestTick)
			if e != song.EffectPanning {
				assert.Greater(t, peak(tail), 0.0, "no tail after the note")
			}

			ticks := 0
			for st.awake && ticks < 4000 {
				render(syn, samplesPerTestTick)
				ticks++
			}
			require.False(t, st.awake, "still ringing after %d ticks", ticks)

			l, r := render(syn, samplesPerTestBeat)
			assert.Zero(t, peak(l))
			assert.Zero(t, peak(r))
		})
	}
}

func TestWakingUpStartsFromSilence(t *testing.T) {
	ins := song.NewInstrument(song.Chip, false)
	ins.Effects = ins.Effects.With(song.EffectEcho).With(song.EffectReverb)
	ins.EchoDelay = 0
	syn := newTestSynth(t, testSong(ins, song.NewNote(48, 0, 24, 3)))
	st := syn.channels[0][0]

	render(syn, samplesPerTestBar)
	require.False(t, st.awake)
	for _, line := range [][]float64{st.echoDelayLineL, st.echoDelayLineR, st.reverbDelayLine} {
		for _, v := range line {
			require.Zero(t, v)
		}
	}
}

func TestRingOutEstimate(t *testing.T) {
	st := newInstrumentState()
	assert.Equal(t, 188, st.estimateRingOut(testSampleRate))

	ins := song.NewInstrument(song.Chip, false)
	ins.Effects = ins.Effects.With(song.EffectEcho)
	st.compute(ins, testSampleRate, 0, samplesPerTestTick)
	delay := echoDelaySamples(ins, samplesPerTestTick)
	assert.Greater(t, st.ringOutSamples, delay)

	ins.Effects = ins.Effects.With(song.EffectReverb)
	st.compute(ins, testSampleRate, 0, samplesPerTestTick)
	assert.GreaterOrEqual(t, st.ringOutSamples, song.ReverbDelayBufferSize)
}

func TestHalfLife(t *testing.T) {
	assert.InDelta(t, 100, halfLife(100, 0.5), 1e-9)
	assert.InDelta(t, 200, halfLife(100, math.Sqrt(0.5)), 1e-6)
	assert.Zero(t, halfLife(100, 0))
	assert.Less(t, halfLife(100, 2), 1e6)
}

func TestGrowRingKeepsHistoryOrder(t *testing.T) {
	line := []float64{1, 2, 3, 4}
	grown, pos := growRing(line, 2, 8)
	assert.Equal(t, []float64{3, 4, 1, 2, 0, 0, 0, 0}, grown)
	assert.Equal(t, 4, pos)

	fresh, pos := growRing(nil, 0, 4)
	assert.Len(t, fresh, 4)
	assert.Zero(t, pos)
}

func TestDelayTap(t *testing.T) {
	line := []float64{0, 10, 20, 30}
	assert.InDelta(t, 20, delayTap(line, 3, 3, 1), 1e-12)
	assert.InDelta(t, 15, delayTap(line, 3, 3, 1.5), 1e-12)
	assert.InDelta(t, 30, delayTap(line, 3, 0, 1), 1e-12)
}

func TestRamps(t *testing.T) {
	var r ramp
	r.load(1, 4, true)
	assert.Equal(t, ramp{value: 1, delta: 0, target: 1}, r)
	r.load(3, 4, false)
	assert.Equal(t, ramp{value: 1, delta: 0.5, target: 3}, r)

	var e expRamp
	e.load(2, 4, false)
	assert.InDelta(t, 2, e.value, 1e-12)
	assert.InDelta(t, 1, e.scale, 1e-12)
	e.load(32, 4, false)
	assert.InDelta(t, 2, e.value, 1e-12)
	assert.InDelta(t, 2, e.scale, 1e-12)
}

func TestFilterDesignsAreStable(t *testing.T) {
	for _, sampleRate := range []float64{MinSampleRate, 44100, 48000, 96000} {
		for typ := song.FilterType(0); typ < song.FilterTypeCount; typ++ {
			for freq := 0; freq < song.FilterFreqRange; freq++ {
				for gain := 0; gain < song.FilterGainRange; gain++ {
					var c dsp.FilterCoefficients
					point := song.FilterControlPoint{Type: typ, Freq: freq, Gain: gain}
					filterCoefficients(&c, point, sampleRate, 1, 1)
					require.Truef(t, c.IsStable(), "%s at %d/%d, %v Hz", song.FilterTypeNames[typ], freq, gain, sampleRate)
				}
			}
		}
	}
}

func TestDistortionIsBounded(t *testing.T) {
	st := newInstrumentState()
	for _, x := range []float64{-100, -1, -0.1, 0, 0.1, 1, 100} {
		y := st.distort(x, 0.01)
		assert.LessOrEqual(t, math.Abs(y), song.DistortionBaseVolume/0.99+1e-12)
	}
}

func TestLowPassFiltersGlideMultiplicatively(t *testing.T) {
	ins := song.NewInstrument(song.Chip, false)
	ins.Effects = ins.Effects.With(song.EffectNoteFilter)
	ins.NoteFilter.Points = []song.FilterControlPoint{{Type: song.LowPass, Freq: 10, Gain: 6}, {Type: song.Peak, Freq: 14, Gain: 10}}
	ins.EQFilter.Points = []song.FilterControlPoint{{Type: song.HighPass, Freq: 4, Gain: 6}, {Type: song.LowPass, Freq: 20, Gain: 6}}
	syn := newTestSynth(t, testSong(ins, song.NewNote(48, 0, 24, 3)))
	render(syn, 4*samplesPerTestTick)

	st := syn.channels[0][0]
	require.Equal(t, 1, st.activeTones.Len())
	tone := syn.pool.get(st.activeTones.Get(0))
	require.Equal(t, 2, tone.noteFilterCount)
	assert.True(t, tone.noteFilters[0].UseMultiplicativeInputCoefficients)
	assert.False(t, tone.noteFilters[1].UseMultiplicativeInputCoefficients)

	require.Equal(t, 2, st.eqFilterCount)
	assert.False(t, st.eqFilters[0].UseMultiplicativeInputCoefficients)
	assert.True(t, st.eqFilters[1].UseMultiplicativeInputCoefficients)
}
