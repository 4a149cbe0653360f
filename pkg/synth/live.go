package synth

import (
	"slices"

	"github.com/olivierh59500/beepsynth/pkg/song"
)

// DefaultLiveInputTimeout is how long, in seconds, a live note may be held
// before it is released automatically.
const DefaultLiveInputTimeout = 10.0

// LiveInput is a set of pitches played by hand on top of the song.
type LiveInput struct {
	Channel int
	Pitches []int

	// Instruments of the channel to play. Empty means the instruments of
	// the pattern under the playhead.
	Instruments []int
}

// StartLiveInput starts playing in, replacing any pitches held before.
// Pitches beyond the largest chord are ignored.
func (s *Synth) StartLiveInput(in LiveInput) {
	if len(in.Pitches) > song.MaxChordSize {
		in.Pitches = in.Pitches[:song.MaxChordSize]
	}
	s.liveInput = LiveInput{
		Channel:     in.Channel,
		Pitches:     slices.Clone(in.Pitches),
		Instruments: slices.Clone(in.Instruments),
	}
	s.livePressed = len(in.Pitches) > 0
	s.liveHeldSamples = 0
	s.log.Debug("live input started", "channel", in.Channel, "pitches", in.Pitches)
}

// StopLiveInput releases the live pitches. They fade out like song notes.
func (s *Synth) StopLiveInput() {
	if s.livePressed {
		s.log.Debug("live input stopped", "channel", s.liveInput.Channel)
	}
	s.livePressed = false
}

// LiveInputActive reports whether live pitches are held.
func (s *Synth) LiveInputActive() bool {
	return s.livePressed
}

// holdLiveInput counts how long the live pitches have been held and lets
// go of them once the timeout passes.
func (s *Synth) holdLiveInput(samples int) {
	if !s.livePressed || s.liveInputTimeout <= 0 {
		return
	}
	s.liveHeldSamples += samples
	if float64(s.liveHeldSamples) >= s.liveInputTimeout*s.sampleRate {
		s.log.Debug("live input timed out", "channel", s.liveInput.Channel, "seconds", s.liveInputTimeout)
		s.livePressed = false
	}
}

// determineLiveInputTones keeps one live tone per held pitch, or a single
// tone for chords that play as one, on every instrument being played.
func (s *Synth) determineLiveInputTones() {
	for channel, states := range s.channels {
		var instruments []int
		if s.livePressed && channel == s.liveInput.Channel {
			instruments = s.liveInput.Instruments
			if len(instruments) == 0 {
				instruments = s.song.PatternInstrumentsAt(channel, s.bar)
			}
		}

		for index, st := range states {
			if !slices.Contains(instruments, index) {
				s.releaseAll(st, &st.liveTones)
				continue
			}
			s.syncLiveTones(st, index, s.song.Channels[channel].Instruments[index])
		}
	}
}

func (s *Synth) syncLiveTones(st *instrumentState, instrumentIndex int, ins *song.Instrument) {
	pitches := s.liveInput.Pitches
	transition := ins.GetTransition()
	chord := ins.GetChord()
	toneCount := len(pitches)
	if chord.SingleTone {
		toneCount = 1
	}

	for i := 0; i < toneCount; i++ {
		var id toneID
		switch {
		case st.liveTones.Len() <= i:
			id = s.pool.alloc()
			st.liveTones.PushBack(id)
		case !transition.IsSeamless && s.pool.get(st.liveTones.Get(i)).pitches[0] != pitches[i]:
			// A new pitch on this voice restarts it
			s.releaseOrFree(st, st.liveTones.Get(i))
			id = s.pool.alloc()
			st.liveTones.Set(i, id)
		default:
			id = st.liveTones.Get(i)
		}

		t := s.pool.get(id)
		t.instrumentIndex = instrumentIndex
		if chord.SingleTone {
			t.pitchCount = copy(t.pitches[:], pitches)
			t.chordSize = 1
		} else {
			t.pitches[0] = pitches[i]
			t.pitchCount = 1
			t.chordSize = len(pitches)
		}
		t.note, t.prevNote, t.nextNote = nil, nil, nil
		t.atNoteStart = false
		t.isOnLastTick = false
		t.forceContinueAtStart = false
		t.forceContinueAtEnd = false
	}

	for st.liveTones.Len() > toneCount {
		s.releaseOrFree(st, st.liveTones.PopBack())
	}
}
