package song

import (
	"strconv"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
)

// NotePin is an interior control point of a note. Time is in parts relative
// to the note start, Interval is in semitones relative to the first pitch.
type NotePin struct {
	Interval int
	Time     int
	Size     int
}

// Note is one or more simultaneous pitches with a pitch bend and loudness
// shape described by its pins.
type Note struct {
	Pitches              []int
	Pins                 []NotePin
	Start                int
	End                  int
	ContinuesLastPattern bool
}

// NewNote creates a note with a flat shape.
func NewNote(pitch, start, end, size int) *Note {
	return &Note{
		Pitches: []int{pitch},
		Pins:    []NotePin{{0, 0, size}, {0, end - start, size}},
		Start:   start,
		End:     end,
	}
}

// PinIndexAt returns the index of the first pin whose absolute time is
// after part, or len(Pins) if there is none.
func (n *Note) PinIndexAt(part int) int {
	for i, pin := range n.Pins {
		if pin.Time+n.Start > part {
			return i
		}
	}
	return len(n.Pins)
}

// LastInterval is the pitch offset of the final pin.
func (n *Note) LastInterval() int {
	return n.Pins[len(n.Pins)-1].Interval
}

// MainInterval is the interval the note holds longest. Notes that never
// hold still use the interval of their loudest pin.
func (n *Note) MainInterval() int {
	longest := 0
	main := 0
	for i := 1; i < len(n.Pins); i++ {
		a, b := n.Pins[i-1], n.Pins[i]
		if a.Interval == b.Interval && b.Time-a.Time > longest {
			longest = b.Time - a.Time
			main = a.Interval
		}
	}
	if longest == 0 {
		loudest := 0
		for _, pin := range n.Pins {
			if pin.Size > loudest {
				loudest = pin.Size
				main = pin.Interval
			}
		}
	}
	return main
}

// Clone returns a deep copy of the note.
func (n *Note) Clone() *Note {
	c := *n
	c.Pitches = append([]int(nil), n.Pitches...)
	c.Pins = append([]NotePin(nil), n.Pins...)
	return &c
}

// Validate checks the pin sequence of the note.
func (n *Note) Validate() error {
	if len(n.Pitches) < 1 || len(n.Pitches) > MaxChordSize {
		return fault.New("note has an invalid pitch count", fmsg.WithDesc("bad pitch count", "A note must have between 1 and 4 pitches."))
	}
	if n.End <= n.Start {
		return fault.New("note ends before it starts", fmsg.WithDesc("bad note length", "A note must be at least one part long."))
	}
	if len(n.Pins) < 2 {
		return fault.New("note has fewer than two pins", fmsg.WithDesc("bad pin count", "A note must have at least two pins."))
	}
	if n.Pins[0].Time != 0 || n.Pins[0].Interval != 0 {
		return fault.New("first pin must be at time and interval zero", fmsg.WithDesc("bad first pin", "The first pin of a note must start the note unbent."))
	}
	for i := 1; i < len(n.Pins); i++ {
		if n.Pins[i].Time <= n.Pins[i-1].Time {
			return fault.New("pin times are not increasing", fmsg.WithDesc("bad pin order", "Pins of a note must be in time order."))
		}
	}
	if n.Pins[len(n.Pins)-1].Time != n.End-n.Start {
		return fault.New("last pin does not end the note", fmsg.WithDesc("bad last pin", "The last pin of a note must be at the note end."))
	}
	for _, pin := range n.Pins {
		if pin.Size < 0 || pin.Size > NoteSizeMax {
			return fault.New("pin size out of range", fmsg.WithDesc("bad pin size", "Pin sizes range from 0 to 3."))
		}
	}
	return nil
}

// Pattern is a bar's worth of notes played by one or more instruments of
// its channel.
type Pattern struct {
	Notes       []*Note
	Instruments []int
}

// NewPattern returns an empty pattern played by the first instrument.
func NewPattern() *Pattern {
	return &Pattern{Instruments: []int{0}}
}

// Validate checks that notes are valid, sorted and don't overlap.
func (p *Pattern) Validate() error {
	end := 0
	for _, n := range p.Notes {
		if err := n.Validate(); err != nil {
			return err
		}
		if n.Start < end {
			return fault.New("notes overlap", fmsg.WithDesc("overlapping notes", "Notes in a pattern must be sorted and must not overlap."))
		}
		end = n.End
	}
	return nil
}

// Channel is a pitched or noise track.
type Channel struct {
	Octave      int
	Instruments []*Instrument
	Patterns    []*Pattern
	Bars        []int
	Muted       bool
}

// Song is the complete description of a piece of music.
type Song struct {
	Title              string
	Scale              int
	Key                int
	Tempo              int
	BeatsPerBar        int
	BarCount           int
	PatternsPerChannel int
	Rhythm             int
	LayeredInstruments bool
	PatternInstruments bool
	LoopStart          int
	LoopLength         int
	PitchChannelCount  int
	NoiseChannelCount  int
	Channels           []*Channel
}

// New returns the default song: three pitch channels, one noise channel,
// sixteen empty bars.
func New() *Song {
	s := &Song{
		Scale:              0,
		Key:                0,
		Tempo:              150,
		BeatsPerBar:        8,
		BarCount:           16,
		PatternsPerChannel: 8,
		Rhythm:             1,
		LoopStart:          0,
		LoopLength:         4,
		PitchChannelCount:  3,
		NoiseChannelCount:  1,
	}
	for c := 0; c < s.ChannelCount(); c++ {
		isNoise := s.IsNoiseChannel(c)
		ch := &Channel{Octave: 3 - c}
		if isNoise {
			ch.Octave = 0
			ch.Instruments = []*Instrument{NewInstrument(Noise, true)}
		} else {
			ch.Instruments = []*Instrument{NewInstrument(Chip, false)}
		}
		s.Channels = append(s.Channels, ch)
	}
	s.Normalize()
	return s
}

// ChannelCount returns the number of pitch and noise channels.
func (s *Song) ChannelCount() int {
	return s.PitchChannelCount + s.NoiseChannelCount
}

// IsNoiseChannel reports whether channel is a noise channel. Noise channels
// come after every pitch channel.
func (s *Song) IsNoiseChannel(channel int) bool {
	return channel >= s.PitchChannelCount
}

// PartsPerBar is the length of a bar in parts.
func (s *Song) PartsPerBar() int {
	return s.BeatsPerBar * PartsPerBeat
}

// GetPattern returns the pattern of channel at bar, or nil for empty bars.
func (s *Song) GetPattern(channel, bar int) *Pattern {
	if channel < 0 || channel >= len(s.Channels) || bar < 0 || bar >= s.BarCount {
		return nil
	}
	ch := s.Channels[channel]
	if bar >= len(ch.Bars) {
		return nil
	}
	index := ch.Bars[bar]
	if index <= 0 || index > len(ch.Patterns) {
		return nil
	}
	return ch.Patterns[index-1]
}

// PatternInstrumentsAt returns the instruments of channel playing at bar.
func (s *Song) PatternInstrumentsAt(channel, bar int) []int {
	p := s.GetPattern(channel, bar)
	if p == nil {
		return []int{0}
	}
	return p.Instruments
}

// TotalBars counts the bars played by a full playback including loop
// repeats and the outro. With loopRepeats < 0 the song never ends and only
// the intro and one loop are counted.
func (s *Song) TotalBars(includeIntro, includeOutro bool, loopRepeats int) int {
	bars := s.LoopLength * (max(loopRepeats, 0) + 1)
	if includeIntro {
		bars += s.LoopStart
	}
	if includeOutro {
		bars += s.BarCount - (s.LoopStart + s.LoopLength)
	}
	return bars
}

// SecondsPerBar is the duration of a bar at the song tempo.
func (s *Song) SecondsPerBar() float64 {
	return float64(s.BeatsPerBar) * 60.0 / float64(s.Tempo)
}

// TotalSeconds is the duration of a full playback with loopRepeats repeats.
func (s *Song) TotalSeconds(loopRepeats int) float64 {
	return float64(s.TotalBars(true, true, loopRepeats)) * s.SecondsPerBar()
}

// Validate checks every pattern of the song.
func (s *Song) Validate() error {
	if len(s.Channels) != s.ChannelCount() {
		return fault.New("channel count mismatch", fmsg.WithDesc("bad channel count", "The song lists a different number of channels than it declares."))
	}
	for c, ch := range s.Channels {
		if len(ch.Instruments) == 0 {
			return fault.New("channel without instruments", fmsg.WithDesc("missing instrument", "Every channel needs at least one instrument."))
		}
		for _, p := range ch.Patterns {
			if err := p.Validate(); err != nil {
				return fault.Wrap(err, fmsg.With("channel "+strconv.Itoa(c)))
			}
			for _, n := range p.Notes {
				if n.End > s.PartsPerBar() {
					return fault.New("note extends past the end of its bar", fmsg.WithDesc("note too long", "A note must end within its bar."))
				}
			}
		}
	}
	return nil
}

// Clone returns a deep copy of the song.
func (s *Song) Clone() *Song {
	c := *s
	c.Channels = make([]*Channel, len(s.Channels))
	for i, ch := range s.Channels {
		nc := *ch
		nc.Bars = append([]int(nil), ch.Bars...)
		nc.Instruments = make([]*Instrument, len(ch.Instruments))
		for j, ins := range ch.Instruments {
			nc.Instruments[j] = ins.Clone()
		}
		nc.Patterns = make([]*Pattern, len(ch.Patterns))
		for j, p := range ch.Patterns {
			np := &Pattern{Instruments: append([]int(nil), p.Instruments...)}
			for _, n := range p.Notes {
				np.Notes = append(np.Notes, n.Clone())
			}
			nc.Patterns[j] = np
		}
		c.Channels[i] = &nc
	}
	return &c
}
