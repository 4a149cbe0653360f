package song

// Normalize clamps every field of the song into range and resizes channel,
// pattern and bar lists to the declared counts. Decoders call it so the
// engine never sees out of range values.
func (s *Song) Normalize() {
	s.Scale = clampIndex(s.Scale, len(Scales))
	s.Key = clampIndex(s.Key, len(Keys))
	s.Tempo = clamp(s.Tempo, TempoMin, TempoMax)
	s.BeatsPerBar = clamp(s.BeatsPerBar, BeatsPerBarMin, BeatsPerBarMax)
	s.BarCount = clamp(s.BarCount, BarCountMin, BarCountMax)
	s.PatternsPerChannel = clamp(s.PatternsPerChannel, PatternsPerChannelMin, PatternsPerChannelMax)
	s.Rhythm = clampIndex(s.Rhythm, len(Rhythms))
	s.PitchChannelCount = clamp(s.PitchChannelCount, PitchChannelCountMin, PitchChannelCountMax)
	s.NoiseChannelCount = clamp(s.NoiseChannelCount, NoiseChannelCountMin, NoiseChannelCountMax)
	s.LoopStart = clamp(s.LoopStart, 0, s.BarCount-1)
	s.LoopLength = clamp(s.LoopLength, 1, s.BarCount-s.LoopStart)

	count := s.ChannelCount()
	for len(s.Channels) < count {
		s.Channels = append(s.Channels, &Channel{})
	}
	s.Channels = s.Channels[:count]
	for c, ch := range s.Channels {
		if ch == nil {
			ch = &Channel{}
			s.Channels[c] = ch
		}
		s.normalizeChannel(ch, s.IsNoiseChannel(c))
	}
}

func (s *Song) normalizeChannel(ch *Channel, isNoise bool) {
	if isNoise {
		ch.Octave = 0
	} else {
		ch.Octave = clamp(ch.Octave, 0, ScrollableOctaves)
	}

	if len(ch.Instruments) == 0 {
		t := Chip
		if isNoise {
			t = Noise
		}
		ch.Instruments = []*Instrument{NewInstrument(t, isNoise)}
	}
	if len(ch.Instruments) > InstrumentsPerChannel {
		ch.Instruments = ch.Instruments[:InstrumentsPerChannel]
	}
	for i, ins := range ch.Instruments {
		if ins == nil {
			ins = &Instrument{}
			ch.Instruments[i] = ins
		}
		ins.Normalize(isNoise)
	}

	for len(ch.Patterns) < s.PatternsPerChannel {
		ch.Patterns = append(ch.Patterns, NewPattern())
	}
	ch.Patterns = ch.Patterns[:s.PatternsPerChannel]
	for i, p := range ch.Patterns {
		if p == nil {
			p = NewPattern()
			ch.Patterns[i] = p
		}
		s.normalizePattern(p, len(ch.Instruments), isNoise)
	}

	for len(ch.Bars) < s.BarCount {
		ch.Bars = append(ch.Bars, 0)
	}
	ch.Bars = ch.Bars[:s.BarCount]
	for i := range ch.Bars {
		ch.Bars[i] = clamp(ch.Bars[i], 0, len(ch.Patterns))
	}
}

func (s *Song) normalizePattern(p *Pattern, instrumentCount int, isNoise bool) {
	var instruments []int
	seen := make(map[int]bool, len(p.Instruments))
	for _, i := range p.Instruments {
		if i >= 0 && i < instrumentCount && !seen[i] {
			seen[i] = true
			instruments = append(instruments, i)
		}
	}
	switch {
	case !s.PatternInstruments && s.LayeredInstruments:
		instruments = instruments[:0]
		for i := 0; i < instrumentCount; i++ {
			instruments = append(instruments, i)
		}
	case !s.PatternInstruments:
		instruments = nil
	case !s.LayeredInstruments && len(instruments) > 1:
		instruments = instruments[:1]
	}
	if len(instruments) == 0 {
		instruments = []int{0}
	}
	p.Instruments = instruments

	maxPitch := MaxPitch
	if isNoise {
		maxPitch = DrumCount - 1
	}
	partsPerBar := s.PartsPerBar()
	notes := p.Notes[:0]
	for _, n := range p.Notes {
		if n == nil || n.Start < 0 || n.End > partsPerBar || n.Start >= n.End || len(n.Pitches) == 0 || len(n.Pins) < 2 {
			continue
		}
		if len(n.Pitches) > MaxChordSize {
			n.Pitches = n.Pitches[:MaxChordSize]
		}
		for i := range n.Pitches {
			n.Pitches[i] = clamp(n.Pitches[i], 0, maxPitch)
		}
		if n.Start != 0 {
			n.ContinuesLastPattern = false
		}
		for i := range n.Pins {
			n.Pins[i].Size = clamp(n.Pins[i].Size, 0, NoteSizeMax)
		}
		notes = append(notes, n)
	}
	p.Notes = notes
}
