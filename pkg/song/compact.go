package song

import (
	"strings"
)

// Compact format versions. Version 1 lacks envelope lists, per-channel
// instrument counts, multi-instrument patterns and the note continuation
// flag; it is still read.
const (
	LatestVersion = 2
	OldestVersion = 1
)

const (
	maxRecentShapes  = 10
	maxRecentPitches = 8
)

var (
	pitchChannelRecentPitches = []int{12, 19, 24, 31, 36, 7, 0}
	noiseChannelRecentPitches = []int{4, 6, 7, 2, 3, 8, 0, 10}
)

// MarshalCompact encodes s in the latest compact text format.
func MarshalCompact(s *Song) string {
	return string(encodeCompact(s, LatestVersion))
}

type compactEncoder struct {
	buf     []byte
	version int
}

func (e *compactEncoder) tag(t byte, digits ...int) {
	e.buf = append(e.buf, t)
	for _, d := range digits {
		e.buf = append(e.buf, base64Alphabet[d&0x3f])
	}
}

func two(v int) []int {
	return []int{(v >> 6) & 0x3f, v & 0x3f}
}

func neededBits(count int) int {
	bits := 0
	for 1<<bits < count {
		bits++
	}
	return bits
}

func encodeCompact(s *Song, version int) []byte {
	e := &compactEncoder{version: version}
	e.buf = append(e.buf, base64Alphabet[version])

	e.tag('n', s.PitchChannelCount, s.NoiseChannelCount)
	e.tag('s', s.Scale)
	e.tag('k', s.Key)
	e.tag('l', two(s.LoopStart)...)
	e.tag('e', two(s.LoopLength-1)...)
	e.tag('t', two(s.Tempo)...)
	e.tag('a', s.BeatsPerBar-1)
	e.tag('g', two(s.BarCount-1)...)
	e.tag('j', s.PatternsPerChannel-1)
	e.tag('r', s.Rhythm)

	octaves := make([]int, len(s.Channels))
	for c, ch := range s.Channels {
		octaves[c] = ch.Octave
	}
	e.tag('o', octaves...)

	instrumentCounts := make([]int, len(s.Channels))
	maxInstruments := 1
	for c, ch := range s.Channels {
		instrumentCounts[c] = len(ch.Instruments)
		maxInstruments = max(maxInstruments, len(ch.Instruments))
	}
	if version >= 2 {
		flags := 0
		if s.LayeredInstruments {
			flags |= 2
		}
		if s.PatternInstruments {
			flags |= 1
		}
		digits := []int{flags}
		for _, n := range instrumentCounts {
			digits = append(digits, n-1)
		}
		e.tag('i', digits...)
	} else {
		e.tag('i', maxInstruments-1)
	}

	for _, ch := range s.Channels {
		count := len(ch.Instruments)
		if version < 2 {
			count = maxInstruments
		}
		for i := 0; i < count; i++ {
			ins := ch.Instruments[min(i, len(ch.Instruments)-1)]
			e.instrument(ins)
		}
	}

	// Bars.
	bits := &BitFieldWriter{}
	barBits := neededBits(s.PatternsPerChannel + 1)
	for _, ch := range s.Channels {
		for b := 0; b < s.BarCount; b++ {
			bits.Write(barBits, ch.Bars[b])
		}
	}
	e.buf = append(e.buf, 'b')
	e.buf = bits.EncodeBase64(e.buf)

	// Patterns.
	bits = &BitFieldWriter{}
	for c, ch := range s.Channels {
		encodeChannelPatterns(bits, s, c, ch, version, maxInstruments)
	}
	e.buf = append(e.buf, 'p')
	length := bits.LengthBase64()
	var lengthDigits []int
	for length > 0 {
		lengthDigits = append([]int{length & 0x3f}, lengthDigits...)
		length >>= 6
	}
	e.tag(base64Alphabet[len(lengthDigits)], lengthDigits...)
	e.buf = bits.EncodeBase64(e.buf)
	return e.buf
}

func (e *compactEncoder) instrument(ins *Instrument) {
	e.tag('T', int(ins.Type))
	e.tag('v', ins.Volume+VolumeRange/2)
	e.tag('L', two(ins.Pan)...)
	e.tag('q', two(int(ins.Effects))...)
	e.filter('f', ins.EQFilter)
	e.filter('G', ins.NoteFilter)
	e.tag('d', ins.Transition)
	e.tag('C', ins.Chord)
	e.tag('c', ins.Vibrato)
	e.tag('h', ins.Unison)
	e.tag('F', ins.FadeIn, ins.FadeOut)
	e.tag('x', ins.PitchShift)
	e.tag('y', two(ins.Detune-DetuneMin)...)
	e.tag('D', ins.Distortion)
	e.tag('R', ins.BitcrusherFreq, ins.BitcrusherQuantization)
	e.tag('U', ins.Chorus)
	e.tag('E', ins.EchoSustain, ins.EchoDelay)
	e.tag('m', ins.Reverb)
	switch ins.Type {
	case Chip:
		e.tag('w', ins.ChipWave)
	case Noise:
		e.tag('w', ins.ChipNoise)
	case FM:
		e.tag('A', ins.Algorithm)
		var ops []int
		for _, op := range ins.Operators {
			ops = append(ops, op.Frequency, op.Amplitude)
		}
		e.tag('B', ops...)
		e.tag('V', ins.FeedbackType, ins.FeedbackAmplitude)
	case Spectrum:
		e.tag('S', ins.Spectrum.Points[:]...)
	case Drumset:
		var digits []int
		for _, drum := range ins.Drumset {
			digits = append(digits, drum.Envelope)
			digits = append(digits, drum.Spectrum.Points[:]...)
		}
		e.tag('z', digits...)
	case Harmonics:
		e.tag('H', ins.Harmonics.Points[:]...)
	case PWM:
		e.tag('W', ins.PulseWidth)
	case PickedString:
		e.tag('H', ins.Harmonics.Points[:]...)
		e.tag('I', ins.StringSustain)
	}
	if e.version >= 2 {
		digits := []int{len(ins.Envelopes)}
		for _, env := range ins.Envelopes {
			digits = append(digits, env.Target, env.Index, env.Envelope)
		}
		e.tag('N', digits...)
	}
}

func (e *compactEncoder) filter(t byte, f FilterSettings) {
	digits := []int{len(f.Points)}
	for _, p := range f.Points {
		digits = append(digits, int(p.Type), p.Freq, p.Gain)
	}
	e.tag(t, digits...)
}

func encodeChannelPatterns(bits *BitFieldWriter, s *Song, c int, ch *Channel, version, maxInstruments int) {
	isNoise := s.IsNoiseChannel(c)
	octaveOffset := 0
	if !isNoise {
		octaveOffset = ch.Octave * PitchesPerOctave
	}
	lastPitch := 12 + octaveOffset
	seeds := pitchChannelRecentPitches
	if isNoise {
		lastPitch = 4
		seeds = noiseChannelRecentPitches
	}
	recentPitches := make([]int, len(seeds))
	for i, p := range seeds {
		recentPitches[i] = p + octaveOffset
	}
	var recentShapes []string
	instrumentCount := len(ch.Instruments)
	if version < 2 {
		instrumentCount = maxInstruments
	}
	instrumentBits := neededBits(instrumentCount)
	partsPerBar := s.PartsPerBar()
	shapeBits := &BitFieldWriter{}

	for _, pattern := range ch.Patterns {
		if version >= 2 {
			if s.PatternInstruments {
				bits.WritePinCount(len(pattern.Instruments))
				for _, i := range pattern.Instruments {
					bits.Write(instrumentBits, i)
				}
			}
		} else {
			bits.Write(instrumentBits, pattern.Instruments[0])
		}
		if len(pattern.Notes) == 0 {
			bits.Write(1, 0)
			continue
		}
		bits.Write(1, 1)
		curPart := 0
		for _, note := range pattern.Notes {
			if note.Start > curPart {
				bits.Write(2, 0)
				bits.WritePartDuration(note.Start - curPart)
			}
			shapeBits.Clear()
			for i := 1; i < len(note.Pitches); i++ {
				shapeBits.Write(1, 1)
			}
			if len(note.Pitches) < MaxChordSize {
				shapeBits.Write(1, 0)
			}
			shapeBits.WritePinCount(len(note.Pins) - 1)
			shapeBits.Write(2, note.Pins[0].Size)
			shapePart := 0
			startPitch := note.Pitches[0]
			currentPitch := startPitch
			var pitchBends []int
			for _, pin := range note.Pins[1:] {
				nextPitch := startPitch + pin.Interval
				if currentPitch != nextPitch {
					shapeBits.Write(1, 1)
					pitchBends = append(pitchBends, nextPitch)
					currentPitch = nextPitch
				} else {
					shapeBits.Write(1, 0)
				}
				shapeBits.WritePartDuration(pin.Time - shapePart)
				shapePart = pin.Time
				shapeBits.Write(2, pin.Size)
			}

			key := shapeBits.Key()
			shapeIndex := indexOf(recentShapes, key)
			if shapeIndex == -1 {
				bits.Write(2, 1)
				bits.Concat(shapeBits)
			} else {
				bits.Write(1, 1)
				bits.WriteLongTail(0, 0, shapeIndex)
				recentShapes = removeAt(recentShapes, shapeIndex)
			}
			recentShapes = pushFront(recentShapes, key, maxRecentShapes)

			allPitches := append(append([]int(nil), note.Pitches...), pitchBends...)
			for i, pitch := range allPitches {
				pitchIndex := indexOf(recentPitches, pitch)
				if pitchIndex == -1 {
					interval := 0
					iter := lastPitch
					for iter < pitch {
						iter++
						if indexOf(recentPitches, iter) == -1 {
							interval++
						}
					}
					for iter > pitch {
						iter--
						if indexOf(recentPitches, iter) == -1 {
							interval--
						}
					}
					bits.Write(1, 0)
					bits.WritePitchInterval(interval)
				} else {
					bits.Write(1, 1)
					bits.Write(3, pitchIndex)
					recentPitches = removeAt(recentPitches, pitchIndex)
				}
				recentPitches = pushFront(recentPitches, pitch, maxRecentPitches)
				if i == len(note.Pitches)-1 {
					lastPitch = note.Pitches[0]
				} else {
					lastPitch = pitch
				}
			}
			if version >= 2 && note.Start == 0 {
				if note.ContinuesLastPattern {
					bits.Write(1, 1)
				} else {
					bits.Write(1, 0)
				}
			}
			curPart = note.End
		}
		if curPart < partsPerBar {
			bits.Write(2, 0)
			bits.WritePartDuration(partsPerBar - curPart)
		}
	}
}

func indexOf[T comparable](list []T, v T) int {
	for i, x := range list {
		if x == v {
			return i
		}
	}
	return -1
}

func removeAt[T any](list []T, i int) []T {
	return append(list[:i], list[i+1:]...)
}

func pushFront[T any](list []T, v T, limit int) []T {
	list = append(list, v)
	copy(list[1:], list)
	list[0] = v
	if len(list) > limit {
		list = list[:limit]
	}
	return list
}

// UnmarshalCompact decodes a compact song string. A leading '#' is ignored
// so that URL fragments can be passed directly.
func UnmarshalCompact(data string) (*Song, error) {
	data = strings.TrimSpace(data)
	data = strings.TrimPrefix(data, "#")
	if data == "" {
		return nil, unknownFormat("empty song string")
	}
	version := base64Value(data[0])
	if version < 0 {
		return nil, unknownFormat("song string doesn't start with a version")
	}
	if version < OldestVersion || version > LatestVersion {
		return nil, unsupportedVersion("unsupported compact song version")
	}
	d := &compactDecoder{src: data, pos: 1, version: version, song: New(), ch: -1}
	d.song.Title = ""
	if err := d.decode(); err != nil {
		return nil, err
	}
	s := d.song
	if version < 2 {
		s.PatternInstruments = true
		s.LayeredInstruments = false
	}
	s.Normalize()
	if err := s.Validate(); err != nil {
		return nil, invalid(err)
	}
	return s, nil
}

type compactDecoder struct {
	src        string
	pos        int
	version    int
	song       *Song
	ch, ins    int
	instrument *Instrument
	err        error
}

func (d *compactDecoder) fail(msg string) {
	if d.err == nil {
		d.err = corruptf(msg)
	}
}

func (d *compactDecoder) digit() int {
	if d.pos >= len(d.src) {
		d.fail("song string ends unexpectedly")
		return 0
	}
	v := base64Value(d.src[d.pos])
	if v < 0 {
		d.fail("invalid character in song string")
		return 0
	}
	d.pos++
	return v
}

func (d *compactDecoder) digits2() int {
	return d.digit()<<6 | d.digit()
}

func (d *compactDecoder) current() *Instrument {
	if d.instrument == nil {
		d.fail("instrument setting before instrument type")
		return &Instrument{}
	}
	return d.instrument
}

func (d *compactDecoder) decode() error {
	s := d.song
	for d.pos < len(d.src) && d.err == nil {
		tag := d.src[d.pos]
		d.pos++
		switch tag {
		case 'n':
			s.PitchChannelCount = clamp(d.digit(), PitchChannelCountMin, PitchChannelCountMax)
			s.NoiseChannelCount = clamp(d.digit(), NoiseChannelCountMin, NoiseChannelCountMax)
			s.Channels = make([]*Channel, s.ChannelCount())
			for c := range s.Channels {
				s.Channels[c] = &Channel{Instruments: d.defaultInstruments(c, 1)}
			}
		case 's':
			s.Scale = d.digit()
		case 'k':
			s.Key = d.digit()
		case 'l':
			s.LoopStart = d.digits2()
		case 'e':
			s.LoopLength = d.digits2() + 1
		case 't':
			s.Tempo = d.digits2()
		case 'a':
			s.BeatsPerBar = d.digit() + 1
		case 'g':
			s.BarCount = d.digits2() + 1
		case 'j':
			s.PatternsPerChannel = d.digit() + 1
		case 'r':
			s.Rhythm = d.digit()
		case 'o':
			for _, ch := range s.Channels {
				ch.Octave = d.digit()
			}
		case 'i':
			if d.version >= 2 {
				flags := d.digit()
				s.LayeredInstruments = flags&2 != 0
				s.PatternInstruments = flags&1 != 0
				for c, ch := range s.Channels {
					ch.Instruments = d.defaultInstruments(c, d.digit()+1)
				}
			} else {
				n := d.digit() + 1
				for c, ch := range s.Channels {
					ch.Instruments = d.defaultInstruments(c, n)
				}
			}
		case 'T':
			d.nextInstrument()
		case 'v':
			d.current().Volume = d.digit() - VolumeRange/2
		case 'L':
			d.current().Pan = d.digits2()
		case 'q':
			d.current().Effects = EffectMask(d.digits2())
		case 'f':
			d.current().EQFilter = d.filter()
		case 'G':
			d.current().NoteFilter = d.filter()
		case 'd':
			d.current().Transition = d.digit()
		case 'C':
			d.current().Chord = d.digit()
		case 'c':
			d.current().Vibrato = d.digit()
		case 'h':
			d.current().Unison = d.digit()
		case 'F':
			ins := d.current()
			ins.FadeIn = d.digit()
			ins.FadeOut = d.digit()
		case 'x':
			d.current().PitchShift = d.digit()
		case 'y':
			d.current().Detune = d.digits2() + DetuneMin
		case 'D':
			d.current().Distortion = d.digit()
		case 'R':
			ins := d.current()
			ins.BitcrusherFreq = d.digit()
			ins.BitcrusherQuantization = d.digit()
		case 'U':
			d.current().Chorus = d.digit()
		case 'E':
			ins := d.current()
			ins.EchoSustain = d.digit()
			ins.EchoDelay = d.digit()
		case 'm':
			d.current().Reverb = d.digit()
		case 'w':
			ins := d.current()
			if ins.Type == Noise {
				ins.ChipNoise = d.digit()
			} else {
				ins.ChipWave = d.digit()
			}
		case 'A':
			d.current().Algorithm = d.digit()
		case 'B':
			ins := d.current()
			for i := range ins.Operators {
				ins.Operators[i].Frequency = d.digit()
				ins.Operators[i].Amplitude = d.digit()
			}
		case 'V':
			ins := d.current()
			ins.FeedbackType = d.digit()
			ins.FeedbackAmplitude = d.digit()
		case 'S':
			ins := d.current()
			for i := range ins.Spectrum.Points {
				ins.Spectrum.Points[i] = d.digit()
			}
		case 'z':
			ins := d.current()
			for i := range ins.Drumset {
				ins.Drumset[i].Envelope = d.digit()
				for j := range ins.Drumset[i].Spectrum.Points {
					ins.Drumset[i].Spectrum.Points[j] = d.digit()
				}
			}
		case 'H':
			ins := d.current()
			for i := range ins.Harmonics.Points {
				ins.Harmonics.Points[i] = d.digit()
			}
		case 'W':
			d.current().PulseWidth = d.digit()
		case 'I':
			d.current().StringSustain = d.digit()
		case 'N':
			if d.version < 2 {
				d.fail("envelope list in a version 1 song")
				break
			}
			ins := d.current()
			n := d.digit()
			if n > MaxEnvelopeCount {
				d.fail("too many envelopes")
				break
			}
			ins.Envelopes = nil
			if n > 0 {
				ins.Envelopes = make([]EnvelopeSettings, n)
			}
			for i := range ins.Envelopes {
				ins.Envelopes[i] = EnvelopeSettings{Target: d.digit(), Index: d.digit(), Envelope: d.digit()}
			}
		case 'b':
			d.bars()
		case 'p':
			d.patterns()
		default:
			d.fail("unknown tag in song string")
		}
	}
	return d.err
}

func (d *compactDecoder) defaultInstruments(channel, n int) []*Instrument {
	isNoise := d.song.IsNoiseChannel(channel)
	t := Chip
	if isNoise {
		t = Noise
	}
	list := make([]*Instrument, n)
	for i := range list {
		list[i] = NewInstrument(t, isNoise)
		if d.version < 2 {
			list[i].Envelopes = nil
		}
	}
	return list
}

func (d *compactDecoder) nextInstrument() {
	s := d.song
	if d.ch < 0 {
		d.ch, d.ins = 0, 0
	} else {
		d.ins++
	}
	for d.ch < len(s.Channels) && d.ins >= len(s.Channels[d.ch].Instruments) {
		d.ch++
		d.ins = 0
	}
	if d.ch >= len(s.Channels) {
		d.fail("more instruments than channels")
		return
	}
	t := InstrumentType(d.digit())
	if t >= InstrumentTypeCount {
		d.fail("unknown instrument type")
		return
	}
	ins := s.Channels[d.ch].Instruments[d.ins]
	ins.Reset(t, s.IsNoiseChannel(d.ch))
	if d.version < 2 {
		ins.Envelopes = nil
	}
	d.instrument = ins
}

func (d *compactDecoder) filter() FilterSettings {
	n := d.digit()
	if n > FilterMaxPoints {
		d.fail("too many filter points")
		return FilterSettings{}
	}
	var f FilterSettings
	if n > 0 {
		f.Points = make([]FilterControlPoint, n)
	}
	for i := range f.Points {
		f.Points[i] = FilterControlPoint{Type: FilterType(d.digit()), Freq: d.digit(), Gain: d.digit()}
	}
	return f
}

func (d *compactDecoder) bars() {
	s := d.song
	s.Normalize()
	barBits := neededBits(s.PatternsPerChannel + 1)
	length := (s.ChannelCount()*s.BarCount*barBits + 5) / 6
	if d.pos+length > len(d.src) {
		d.fail("bar list ends unexpectedly")
		return
	}
	r, err := NewBitFieldReader(d.src[d.pos : d.pos+length])
	if err != nil {
		d.err = err
		return
	}
	d.pos += length
	for _, ch := range s.Channels {
		ch.Bars = make([]int, s.BarCount)
		for b := range ch.Bars {
			ch.Bars[b] = r.Read(barBits)
		}
	}
}

type shapePin struct {
	pitchBend bool
	time      int
	size      int
}

type noteShape struct {
	pitchCount  int
	initialSize int
	pins        []shapePin
	bendCount   int
	length      int
}

func (d *compactDecoder) patterns() {
	digitCount := d.digit()
	length := 0
	for i := 0; i < digitCount; i++ {
		length = length<<6 | d.digit()
	}
	if d.err != nil {
		return
	}
	if d.pos+length > len(d.src) {
		d.fail("pattern data ends unexpectedly")
		return
	}
	r, err := NewBitFieldReader(d.src[d.pos : d.pos+length])
	if err != nil {
		d.err = err
		return
	}
	d.pos += length

	s := d.song
	s.Normalize()
	for c, ch := range s.Channels {
		if !d.channelPatterns(r, c, ch) {
			return
		}
	}
}

func (d *compactDecoder) channelPatterns(r *BitFieldReader, c int, ch *Channel) bool {
	s := d.song
	isNoise := s.IsNoiseChannel(c)
	octaveOffset := 0
	if !isNoise {
		octaveOffset = ch.Octave * PitchesPerOctave
	}
	lastPitch := 12 + octaveOffset
	seeds := pitchChannelRecentPitches
	if isNoise {
		lastPitch = 4
		seeds = noiseChannelRecentPitches
	}
	recentPitches := make([]int, len(seeds))
	for i, p := range seeds {
		recentPitches[i] = p + octaveOffset
	}
	var recentShapes []noteShape
	instrumentBits := neededBits(len(ch.Instruments))
	partsPerBar := s.PartsPerBar()

	readPitch := func() (int, bool) {
		if r.Read(1) == 1 {
			index := r.Read(3)
			if index >= len(recentPitches) {
				d.fail("recent pitch index out of range")
				return 0, false
			}
			pitch := recentPitches[index]
			recentPitches = removeAt(recentPitches, index)
			return pitch, true
		}
		interval := r.ReadPitchInterval()
		if interval > MaxPitch+maxRecentPitches || interval < -MaxPitch-maxRecentPitches {
			d.fail("pitch interval out of range")
			return 0, false
		}
		pitch := lastPitch
		for ; interval > 0; interval-- {
			pitch++
			for indexOf(recentPitches, pitch) != -1 {
				pitch++
			}
		}
		for ; interval < 0; interval++ {
			pitch--
			for indexOf(recentPitches, pitch) != -1 {
				pitch--
			}
		}
		return pitch, true
	}

	for p := range ch.Patterns {
		pattern := NewPattern()
		ch.Patterns[p] = pattern
		if d.version >= 2 {
			if s.PatternInstruments {
				n := r.ReadPinCount()
				if n > InstrumentsPerChannel {
					d.fail("too many pattern instruments")
					return false
				}
				pattern.Instruments = make([]int, n)
				for i := range pattern.Instruments {
					pattern.Instruments[i] = r.Read(instrumentBits)
				}
			}
		} else {
			pattern.Instruments = []int{r.Read(instrumentBits)}
		}
		if r.Read(1) == 0 {
			continue
		}

		curPart := 0
		for curPart < partsPerBar {
			if r.Truncated() {
				d.fail("pattern data ends unexpectedly")
				return false
			}
			var shape noteShape
			if r.Read(1) == 1 {
				index := r.ReadLongTail(0, 0)
				if index >= len(recentShapes) {
					d.fail("recent shape index out of range")
					return false
				}
				shape = recentShapes[index]
				recentShapes = removeAt(recentShapes, index)
			} else {
				if r.Read(1) == 0 {
					curPart += r.ReadPartDuration()
					continue
				}
				shape.pitchCount = 1
				for shape.pitchCount < MaxChordSize && r.Read(1) == 1 {
					shape.pitchCount++
				}
				pinCount := r.ReadPinCount()
				if pinCount > partsPerBar {
					d.fail("too many pins")
					return false
				}
				shape.initialSize = r.Read(2)
				shape.pins = make([]shapePin, pinCount)
				for i := range shape.pins {
					pin := &shape.pins[i]
					pin.pitchBend = r.Read(1) == 1
					if pin.pitchBend {
						shape.bendCount++
					}
					shape.length += r.ReadPartDuration()
					pin.time = shape.length
					pin.size = r.Read(2)
				}
			}
			recentShapes = pushFront(recentShapes, shape, maxRecentShapes)

			note := &Note{Start: curPart, End: curPart + shape.length}
			var bends []int
			for i := 0; i < shape.pitchCount+shape.bendCount; i++ {
				pitch, ok := readPitch()
				if !ok {
					return false
				}
				if i < shape.pitchCount {
					note.Pitches = append(note.Pitches, pitch)
				} else {
					bends = append(bends, pitch)
				}
				recentPitches = pushFront(recentPitches, pitch, maxRecentPitches)
				if i == shape.pitchCount-1 {
					lastPitch = note.Pitches[0]
				} else {
					lastPitch = pitch
				}
			}

			note.Pins = append(note.Pins, NotePin{Interval: 0, Time: 0, Size: shape.initialSize})
			interval := 0
			bendIndex := 0
			for _, sp := range shape.pins {
				if sp.pitchBend {
					interval = bends[bendIndex] - note.Pitches[0]
					bendIndex++
				}
				note.Pins = append(note.Pins, NotePin{Interval: interval, Time: sp.time, Size: sp.size})
			}
			if d.version >= 2 && note.Start == 0 {
				note.ContinuesLastPattern = r.Read(1) == 1
			}
			if note.End > partsPerBar {
				d.fail("note extends past the end of its bar")
				return false
			}
			pattern.Notes = append(pattern.Notes, note)
			curPart = note.End
		}
	}
	if r.Truncated() {
		d.fail("pattern data ends unexpectedly")
		return false
	}
	return true
}
