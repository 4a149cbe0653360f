// Package synth renders songs to stereo audio. A Synth pulls samples on
// demand: every call to Synthesize advances the transport by exactly the
// number of samples requested, and the output does not depend on how the
// samples are split between calls.
package synth

import (
	"log/slog"
	"math"
	"math/rand/v2"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"

	"github.com/olivierh59500/beepsynth/pkg/dsp"
	"github.com/olivierh59500/beepsynth/pkg/song"
)

// MinSampleRate is the lowest sample rate the effect filters are designed
// for.
const MinSampleRate = 16001

// DefaultSeed seeds the noise start phases so renders are repeatable.
const DefaultSeed = 0x0beeb0c5

// Synth plays a song. It is not safe for concurrent use.
type Synth struct {
	song       *song.Song
	sampleRate float64
	log        *slog.Logger
	seed       int64
	pcg        *rand.PCG
	rng        *rand.Rand

	playing         bool
	ended           bool
	bar             int
	beat            int
	part            int
	tick            int
	loopRepeatCount int
	volume          float64
	limit           float64

	// The current bar was reached by jumping back from the end of the loop
	wrappedToLoopStart bool

	tickSampleCountdown int
	samplesPerTick      int
	tickComputed        bool

	// channels[c][i] is the state of instrument i of channel c
	channels [][]*instrumentState
	pool     tonePool

	tempMono         []float64
	mixL             []float64
	mixR             []float64
	tempMatchedTones []toneID

	liveInput        LiveInput
	livePressed      bool
	liveHeldSamples  int
	liveInputTimeout float64
}

// Option configures a Synth.
type Option func(*Synth)

// WithLogger sets the logger used for playback events.
func WithLogger(l *slog.Logger) Option {
	return func(s *Synth) {
		if l != nil {
			s.log = l
		}
	}
}

// WithLiveInputTimeout sets how many seconds a live note is held before it
// is released on its own. Zero or less disables the timeout.
func WithLiveInputTimeout(seconds float64) Option {
	return func(s *Synth) {
		s.liveInputTimeout = seconds
	}
}

// WithSeed sets the seed of the noise start phases.
func WithSeed(seed int64) Option {
	return func(s *Synth) {
		s.seed = seed
	}
}

// New creates a paused synth for sng at the given sample rate.
func New(sng *song.Song, sampleRate int, opts ...Option) (*Synth, error) {
	if sng == nil {
		return nil, fault.New("nil song", ftag.With(ftag.InvalidArgument), fmsg.WithDesc("nil song", "No song to play."))
	}
	if sampleRate < MinSampleRate {
		return nil, fault.New("sample rate too low",
			ftag.With(ftag.InvalidArgument),
			fmsg.WithDesc("sample rate too low", "The sample rate must be at least 16001 Hz."))
	}
	s := &Synth{
		sampleRate:       float64(sampleRate),
		log:              slog.Default(),
		seed:             DefaultSeed,
		loopRepeatCount:  -1,
		volume:           1,
		liveInputTimeout: DefaultLiveInputTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.pcg = rand.NewPCG(uint64(s.seed), 0)
	s.rng = rand.New(s.pcg)
	s.SetSong(sng)
	return s, nil
}

// SetSong replaces the song. Every tone and effect tail is cut and the
// playhead is kept when it still fits the new song.
func (s *Synth) SetSong(sng *song.Song) {
	s.FreeAllTones()
	s.song = sng
	s.channels = make([][]*instrumentState, len(sng.Channels))
	for c, ch := range sng.Channels {
		states := make([]*instrumentState, len(ch.Instruments))
		for i := range states {
			states[i] = newInstrumentState()
		}
		s.channels[c] = states
	}
	if s.bar >= sng.BarCount || s.beat >= sng.BeatsPerBar {
		s.SnapToStart()
	}
	s.ended = false
	s.log.Debug("song loaded", "title", sng.Title, "channels", len(sng.Channels), "bars", sng.BarCount, "tempo", sng.Tempo)
}

// Song returns the song being played.
func (s *Synth) Song() *song.Song {
	return s.song
}

// SampleRate returns the output sample rate in Hz.
func (s *Synth) SampleRate() int {
	return int(s.sampleRate)
}

// Play starts or resumes playback. A song that ended starts over.
func (s *Synth) Play() {
	if s.ended {
		s.SnapToStart()
		s.ended = false
	}
	s.playing = true
}

// Pause stops the transport. Sounding tones fade out and live input keeps
// playing.
func (s *Synth) Pause() {
	s.playing = false
}

// IsPlaying reports whether the transport is running.
func (s *Synth) IsPlaying() bool {
	return s.playing
}

// Ended reports whether playback ran past the last bar.
func (s *Synth) Ended() bool {
	return s.ended
}

// SnapToStart moves the playhead to the first bar.
func (s *Synth) SnapToStart() {
	s.bar = 0
	s.SnapToBar()
}

// SnapToBar moves the playhead to the start of the current bar.
func (s *Synth) SnapToBar() {
	s.wrappedToLoopStart = false
	s.beat = 0
	s.part = 0
	s.tick = 0
	s.tickComputed = false
	s.tickSampleCountdown = 0
	s.releaseActiveTones()
}

// GoToBar moves the playhead to the start of bar, clamped to the song.
func (s *Synth) GoToBar(bar int) {
	s.bar = min(max(bar, 0), s.song.BarCount-1)
	s.ended = false
	s.SnapToBar()
}

// NextBar moves to the next bar, wrapping to the loop start after the end
// of the song.
func (s *Synth) NextBar() {
	bar := s.bar + 1
	if bar >= s.song.BarCount {
		bar = s.song.LoopStart
	}
	s.GoToBar(bar)
}

// PrevBar moves to the previous bar, wrapping to the end of the loop
// before the first bar.
func (s *Synth) PrevBar() {
	bar := s.bar - 1
	if bar < 0 {
		bar = s.song.LoopStart + s.song.LoopLength - 1
	}
	s.GoToBar(bar)
}

// Bar returns the current bar.
func (s *Synth) Bar() int {
	return s.bar
}

// Playhead returns the position in bars, including the fraction of the
// current bar.
func (s *Synth) Playhead() float64 {
	tick := float64(s.tick)
	if s.tickComputed && s.samplesPerTick > 0 {
		tick += 1 - float64(s.tickSampleCountdown)/float64(s.samplesPerTick)
	}
	return (((tick/song.TicksPerPart+float64(s.part))/song.PartsPerBeat+float64(s.beat))/float64(s.song.BeatsPerBar) + float64(s.bar))
}

// SetPlayhead moves to a position in bars, rounded down to a tick.
func (s *Synth) SetPlayhead(bars float64) {
	bars = math.Max(0, math.Min(bars, float64(s.song.BarCount)-1e-9))
	bar := math.Floor(bars)
	ticks := int(math.Floor((bars - bar) * float64(s.song.BeatsPerBar*song.PartsPerBeat*song.TicksPerPart)))
	s.bar = int(bar)
	s.beat = ticks / (song.PartsPerBeat * song.TicksPerPart)
	s.part = ticks / song.TicksPerPart % song.PartsPerBeat
	s.tick = ticks % song.TicksPerPart
	s.wrappedToLoopStart = false
	s.tickComputed = false
	s.tickSampleCountdown = 0
	s.ended = false
	s.releaseActiveTones()
}

// LoopRepeatCount returns how many more times the loop plays. -1 loops
// forever.
func (s *Synth) LoopRepeatCount() int {
	return s.loopRepeatCount
}

// SetLoopRepeatCount sets how many more times the loop plays. -1 loops
// forever, 0 plays through to the end of the song.
func (s *Synth) SetLoopRepeatCount(n int) {
	s.loopRepeatCount = max(n, -1)
}

// Volume returns the linear output volume.
func (s *Synth) Volume() float64 {
	return s.volume
}

// SetVolume sets the linear output volume.
func (s *Synth) SetVolume(v float64) {
	s.volume = math.Max(0, v)
}

// FreeAllTones stops every tone at once.
func (s *Synth) FreeAllTones() {
	for _, states := range s.channels {
		for _, st := range states {
			for _, q := range [...]*dsp.Deque[toneID]{&st.activeTones, &st.releasedTones, &st.liveTones} {
				for q.Len() > 0 {
					s.pool.release(q.PopBack())
				}
			}
		}
	}
}

// ResetEffects silences every effect tail and the limiter.
func (s *Synth) ResetEffects() {
	for _, states := range s.channels {
		for _, st := range states {
			st.resetAllEffects()
		}
	}
	s.limit = 0
}

// Reset returns to the state of a freshly created synth: the playhead is at
// the start, nothing sounds and the noise generator is reseeded.
func (s *Synth) Reset() {
	s.playing = false
	s.ended = false
	s.livePressed = false
	s.FreeAllTones()
	s.ResetEffects()
	s.SnapToStart()
	s.pcg.Seed(uint64(s.seed), 0)
}

// releaseActiveTones lets every song tone fade out, for seeking.
func (s *Synth) releaseActiveTones() {
	for _, states := range s.channels {
		for _, st := range states {
			s.releaseAll(st, &st.activeTones)
		}
	}
}

// computeSamplesPerTick is the length of a tick at the song tempo.
func (s *Synth) computeSamplesPerTick() int {
	ticksPerSecond := float64(s.song.Tempo) / 60 * song.PartsPerBeat * song.TicksPerPart
	return max(1, int(math.Floor(s.sampleRate/ticksPerSecond)))
}

// Synthesize renders len(outL) stereo samples. Both buffers must have the
// same length.
func (s *Synth) Synthesize(outL, outR []float32) {
	n := min(len(outL), len(outR))
	if cap(s.mixL) < n {
		s.mixL = make([]float64, n)
		s.mixR = make([]float64, n)
	}
	mixL := s.mixL[:n]
	mixR := s.mixR[:n]
	clear(mixL)
	clear(mixR)

	for done := 0; done < n; {
		if !s.tickComputed {
			s.beginTick()
		}
		run := min(s.tickSampleCountdown, n-done)
		s.renderRun(mixL[done:done+run], mixR[done:done+run])
		s.tickSampleCountdown -= run
		done += run
		if s.tickSampleCountdown == 0 {
			s.endTick()
		}
	}

	s.applyLimiter(mixL, mixR, outL[:n], outR[:n])
}

// beginTick schedules tones and loads every ramp for the coming tick.
func (s *Synth) beginTick() {
	spt := s.computeSamplesPerTick()
	s.samplesPerTick = spt
	s.tickSampleCountdown = spt
	s.tickComputed = true
	if len(s.tempMono) < spt {
		s.tempMono = make([]float64, spt)
	}

	s.determineLiveInputTones()
	for c, states := range s.channels {
		s.determineCurrentActiveTones(c, s.playing)
		for i, st := range states {
			ins := s.song.Channels[c].Instruments[i]
			s.freeReleasedTones(st, ins)
			st.beginTick()
			if !st.awake {
				continue
			}
			st.compute(ins, s.sampleRate, s.song.Key, spt)

			held := st.activeTones.Len() + st.liveTones.Len()
			for j := 0; j < st.activeTones.Len(); j++ {
				s.computeTone(c, spt, s.pool.get(st.activeTones.Get(j)), false, false)
			}
			for j := 0; j < st.liveTones.Len(); j++ {
				s.computeTone(c, spt, s.pool.get(st.liveTones.Get(j)), false, false)
			}
			for j := 0; j < st.releasedTones.Len(); j++ {
				fast := j+held >= song.MaximumTonesPerChannel
				s.computeTone(c, spt, s.pool.get(st.releasedTones.Get(j)), true, fast)
			}
		}
	}
}

// renderRun renders every tone of the tick for len(outL) samples and mixes
// each instrument through its effects.
func (s *Synth) renderRun(outL, outR []float64) {
	mono := s.tempMono[:len(outL)]
	for c, states := range s.channels {
		for i, st := range states {
			if !st.awake {
				continue
			}
			ins := s.song.Channels[c].Instruments[i]
			for j := 0; j < st.activeTones.Len(); j++ {
				s.renderTone(ins, s.pool.get(st.activeTones.Get(j)), mono)
			}
			for j := 0; j < st.liveTones.Len(); j++ {
				s.renderTone(ins, s.pool.get(st.liveTones.Get(j)), mono)
			}
			for j := 0; j < st.releasedTones.Len(); j++ {
				s.renderTone(ins, s.pool.get(st.releasedTones.Get(j)), mono)
			}
			st.applyEffects(mono, outL, outR)
		}
	}
}

// renderTone adds one run of t to data with the routine of its instrument
// type.
func (s *Synth) renderTone(ins *song.Instrument, t *Tone, data []float64) {
	switch ins.Type {
	case song.Chip:
		renderChip(data, t, chipWaves[ins.ChipWave])
	case song.Harmonics:
		renderChip(data, t, harmonicsWave(&ins.Harmonics))
	case song.FM:
		getFMRoutine(ins.Algorithm, ins.FeedbackType).render(data, t)
	case song.Noise:
		renderNoise(data, t, chipNoiseWaves()[ins.ChipNoise], song.ChipNoises[ins.ChipNoise].PitchFilterMult)
	case song.Spectrum:
		renderSpectrum(data, t, spectrumWave(&ins.Spectrum, spectrumLowestOctave))
	case song.Drumset:
		renderDrumset(data, t, drumsetWave(ins, t.drumsetPitch))
	case song.PWM:
		renderPWM(data, t)
	case song.PickedString:
		renderPickedString(data, t)
	default:
		panic("synth: unknown instrument type " + ins.Type.String())
	}
	t.sanitize()
}

// endTick ages released tones and advances the transport by a tick.
func (s *Synth) endTick() {
	spt := s.samplesPerTick
	for _, states := range s.channels {
		for _, st := range states {
			held := st.activeTones.Len() + st.liveTones.Len()
			for j := st.releasedTones.Len() - 1; j >= 0; j-- {
				id := st.releasedTones.Get(j)
				if j+held >= song.MaximumTonesPerChannel {
					st.releasedTones.Remove(j)
					s.pool.release(id)
					continue
				}
				s.pool.get(id).ticksSinceReleased++
			}
			st.endTick(spt)
		}
	}
	s.holdLiveInput(spt)
	s.tickComputed = false

	if !s.playing {
		return
	}
	s.tick++
	if s.tick < song.TicksPerPart {
		return
	}
	s.tick = 0
	s.part++
	if s.part < song.PartsPerBeat {
		return
	}
	s.part = 0
	s.beat++
	if s.beat < s.song.BeatsPerBar {
		return
	}
	s.beat = 0
	s.bar++
	s.wrappedToLoopStart = false
	if s.loopRepeatCount != 0 && s.bar == s.song.LoopStart+s.song.LoopLength {
		s.bar = s.song.LoopStart
		s.wrappedToLoopStart = true
		if s.loopRepeatCount > 0 {
			s.loopRepeatCount--
		}
	}
	if s.bar >= s.song.BarCount {
		s.bar = s.song.BarCount
		s.ended = true
		s.playing = false
		s.log.Debug("song ended", "title", s.song.Title)
	}
}

// applyLimiter follows the peak level with a fast attack and slow release
// and scales the mix down when it gets loud.
func (s *Synth) applyLimiter(mixL, mixR []float64, outL, outR []float32) {
	limitDecay := 1 - math.Pow(0.5, 4/s.sampleRate)
	limitRise := 1 - math.Pow(0.5, 4000/s.sampleRate)
	limit := s.limit
	for i := range mixL {
		l, r := mixL[i], mixR[i]
		peak := math.Max(math.Abs(l), math.Abs(r))
		if limit < peak {
			limit += (peak - limit) * limitRise
		} else {
			limit += (peak - limit) * limitDecay
		}
		var mult float64
		if limit >= 1 {
			mult = s.volume / (limit * 1.05)
		} else {
			mult = s.volume / (limit*0.8 + 0.25)
		}
		outL[i] = float32(l * mult)
		outR[i] = float32(r * mult)
	}
	s.limit = limit
}
