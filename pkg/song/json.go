package song

import (
	"encoding/json"
	"math"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
)

// JSONFormatName identifies song documents.
const JSONFormatName = "BeepBox"

type jsonSong struct {
	Format             string        `json:"format"`
	Version            int           `json:"version"`
	Name               string        `json:"name,omitempty"`
	Scale              string        `json:"scale"`
	Key                string        `json:"key"`
	IntroBars          int           `json:"introBars"`
	LoopBars           int           `json:"loopBars"`
	BeatsPerBar        int           `json:"beatsPerBar"`
	TicksPerBeat       int           `json:"ticksPerBeat"`
	BeatsPerMinute     int           `json:"beatsPerMinute"`
	LayeredInstruments bool          `json:"layeredInstruments"`
	PatternInstruments *bool         `json:"patternInstruments,omitempty"`
	Channels           []jsonChannel `json:"channels"`
}

type jsonChannel struct {
	Type            string           `json:"type"`
	OctaveScrollBar int              `json:"octaveScrollBar"`
	Instruments     []jsonInstrument `json:"instruments"`
	Patterns        []jsonPattern    `json:"patterns"`
	Sequence        []int            `json:"sequence"`
}

type jsonPattern struct {
	Instrument  int        `json:"instrument"`
	Instruments []int      `json:"instruments,omitempty"`
	Notes       []jsonNote `json:"notes"`
}

type jsonNote struct {
	Pitches              []int       `json:"pitches"`
	Points               []jsonPoint `json:"points"`
	ContinuesLastPattern bool        `json:"continuesLastPattern,omitempty"`
}

type jsonPoint struct {
	Tick      int `json:"tick"`
	PitchBend int `json:"pitchBend"`
	Volume    int `json:"volume"`
}

type jsonFilterPoint struct {
	Type       string  `json:"type"`
	CutoffHz   float64 `json:"cutoffHz"`
	LinearGain float64 `json:"linearGain"`
}

type jsonOperator struct {
	Frequency string `json:"frequency"`
	Amplitude int    `json:"amplitude"`
}

type jsonDrum struct {
	FilterEnvelope string `json:"filterEnvelope"`
	Spectrum       []int  `json:"spectrum"`
}

type jsonEnvelope struct {
	Target   string `json:"target"`
	Index    int    `json:"index,omitempty"`
	Envelope string `json:"envelope"`
}

type jsonInstrument struct {
	Type                   string            `json:"type"`
	Volume                 int               `json:"volume"`
	Pan                    int               `json:"pan"`
	Effects                []string          `json:"effects"`
	EQFilter               []jsonFilterPoint `json:"eqFilter"`
	NoteFilter             []jsonFilterPoint `json:"noteFilter"`
	Transition             string            `json:"transition"`
	Chord                  string            `json:"chord"`
	Vibrato                string            `json:"vibrato"`
	Unison                 string            `json:"unison,omitempty"`
	FadeInSeconds          float64           `json:"fadeInSeconds"`
	FadeOutTicks           int               `json:"fadeOutTicks"`
	PitchShiftSemitones    int               `json:"pitchShiftSemitones"`
	DetuneCents            int               `json:"detuneCents"`
	Distortion             int               `json:"distortion"`
	BitcrusherOctave       float64           `json:"bitcrusherOctave"`
	BitcrusherQuantization int               `json:"bitcrusherQuantization"`
	Chorus                 int               `json:"chorus"`
	EchoSustain            int               `json:"echoSustain"`
	EchoDelayBeats         float64           `json:"echoDelayBeats"`
	Reverb                 int               `json:"reverb"`
	Wave                   string            `json:"wave,omitempty"`
	PulseWidth             int               `json:"pulseWidth,omitempty"`
	StringSustain          int               `json:"stringSustain,omitempty"`
	Algorithm              string            `json:"algorithm,omitempty"`
	FeedbackType           string            `json:"feedbackType,omitempty"`
	FeedbackAmplitude      int               `json:"feedbackAmplitude,omitempty"`
	Operators              []jsonOperator    `json:"operators,omitempty"`
	Spectrum               []int             `json:"spectrum,omitempty"`
	Harmonics              []int             `json:"harmonics,omitempty"`
	Drums                  []jsonDrum        `json:"drums,omitempty"`
	Envelopes              []jsonEnvelope    `json:"envelopes"`
}

// MarshalJSON encodes s as an indented JSON document.
func MarshalJSON(s *Song) ([]byte, error) {
	doc := jsonSong{
		Format:             JSONFormatName,
		Version:            LatestVersion,
		Name:               s.Title,
		Scale:              Scales[s.Scale].Name,
		Key:                Keys[s.Key].Name,
		IntroBars:          s.LoopStart,
		LoopBars:           s.LoopLength,
		BeatsPerBar:        s.BeatsPerBar,
		TicksPerBeat:       Rhythms[s.Rhythm].StepsPerBeat,
		BeatsPerMinute:     s.Tempo,
		LayeredInstruments: s.LayeredInstruments,
		PatternInstruments: &s.PatternInstruments,
	}
	for c, ch := range s.Channels {
		isNoise := s.IsNoiseChannel(c)
		jc := jsonChannel{Type: "pitch", OctaveScrollBar: ch.Octave, Sequence: append([]int{}, ch.Bars...)}
		if isNoise {
			jc.Type = "drum"
		}
		for _, ins := range ch.Instruments {
			jc.Instruments = append(jc.Instruments, instrumentToJSON(ins))
		}
		for _, p := range ch.Patterns {
			jp := jsonPattern{Instrument: p.Instruments[0] + 1, Notes: []jsonNote{}}
			for _, i := range p.Instruments {
				jp.Instruments = append(jp.Instruments, i+1)
			}
			for _, n := range p.Notes {
				jn := jsonNote{Pitches: append([]int{}, n.Pitches...), ContinuesLastPattern: n.ContinuesLastPattern}
				for _, pin := range n.Pins {
					jn.Points = append(jn.Points, jsonPoint{
						Tick:      pin.Time + n.Start,
						PitchBend: pin.Interval,
						Volume:    int(math.Round(float64(pin.Size) * 100 / NoteSizeMax)),
					})
				}
				jp.Notes = append(jp.Notes, jn)
			}
			jc.Patterns = append(jc.Patterns, jp)
		}
		doc.Channels = append(doc.Channels, jc)
	}
	data, err := json.MarshalIndent(doc, "", "\t")
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("encode song json"))
	}
	return data, nil
}

func filterToJSON(f FilterSettings) []jsonFilterPoint {
	points := []jsonFilterPoint{}
	for _, p := range f.Points {
		points = append(points, jsonFilterPoint{
			Type:       FilterTypeNames[p.Type],
			CutoffHz:   math.Round(p.Hz()*100) / 100,
			LinearGain: math.Round(p.LinearGain(1)*10000) / 10000,
		})
	}
	return points
}

func spectrumToJSON(points []int, maxValue int) []int {
	out := make([]int, len(points))
	for i, v := range points {
		out[i] = int(math.Round(100 * float64(v) / float64(maxValue)))
	}
	return out
}

func instrumentToJSON(ins *Instrument) jsonInstrument {
	j := jsonInstrument{
		Type:                   ins.Type.String(),
		Volume:                 ins.Volume,
		Pan:                    (ins.Pan - PanCenter) * 100 / PanCenter,
		Effects:                []string{},
		EQFilter:               filterToJSON(ins.EQFilter),
		NoteFilter:             filterToJSON(ins.NoteFilter),
		Transition:             Transitions[ins.Transition].Name,
		Chord:                  Chords[ins.Chord].Name,
		Vibrato:                Vibratos[ins.Vibrato].Name,
		Unison:                 Unisons[ins.Unison].Name,
		FadeInSeconds:          math.Round(FadeInSeconds(ins.FadeIn)*10000) / 10000,
		FadeOutTicks:           FadeOutTicks[ins.FadeOut],
		PitchShiftSemitones:    ins.PitchShift - PitchShiftCenter,
		DetuneCents:            ins.Detune,
		Distortion:             ins.Distortion,
		BitcrusherOctave:       float64(BitcrusherFreqRange-1-ins.BitcrusherFreq) * BitcrusherOctaveStep,
		BitcrusherQuantization: ins.BitcrusherQuantization,
		Chorus:                 ins.Chorus,
		EchoSustain:            ins.EchoSustain,
		EchoDelayBeats:         echoDelayBeats(ins.EchoDelay),
		Reverb:                 ins.Reverb,
		Envelopes:              []jsonEnvelope{},
	}
	for e := Effect(0); e < EffectCount; e++ {
		if ins.Effect(e) {
			j.Effects = append(j.Effects, EffectNames[e])
		}
	}
	for _, env := range ins.Envelopes {
		j.Envelopes = append(j.Envelopes, jsonEnvelope{
			Target:   AutomationTargets[env.Target].Name,
			Index:    env.Index,
			Envelope: Envelopes[env.Envelope].Name,
		})
	}
	switch ins.Type {
	case Chip:
		j.Wave = ChipWaves[ins.ChipWave].Name
	case Noise:
		j.Wave = ChipNoises[ins.ChipNoise].Name
	case FM:
		j.Algorithm = Algorithms[ins.Algorithm].Name
		j.FeedbackType = Feedbacks[ins.FeedbackType].Name
		j.FeedbackAmplitude = ins.FeedbackAmplitude
		for _, op := range ins.Operators {
			j.Operators = append(j.Operators, jsonOperator{Frequency: OperatorFrequencies[op.Frequency].Name, Amplitude: op.Amplitude})
		}
	case Spectrum:
		j.Spectrum = spectrumToJSON(ins.Spectrum.Points[:], SpectrumMax)
	case Drumset:
		for _, drum := range ins.Drumset {
			j.Drums = append(j.Drums, jsonDrum{
				FilterEnvelope: Envelopes[drum.Envelope].Name,
				Spectrum:       spectrumToJSON(drum.Spectrum.Points[:], SpectrumMax),
			})
		}
	case Harmonics:
		j.Harmonics = spectrumToJSON(ins.Harmonics.Points[:], HarmonicsMax)
	case PWM:
		j.PulseWidth = ins.PulseWidth
	case PickedString:
		j.Harmonics = spectrumToJSON(ins.Harmonics.Points[:], HarmonicsMax)
		j.StringSustain = ins.StringSustain
	}
	return j
}

func echoDelayBeats(setting int) float64 {
	return float64((setting+1)*EchoDelayStepTicks) / (TicksPerPart * PartsPerBeat)
}

// UnmarshalJSON decodes a JSON song document.
func UnmarshalJSON(data []byte) (*Song, error) {
	var doc jsonSong
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fault.Wrap(err, ftag.With(ErrCorrupt), fmsg.WithDesc("decode song json", "The song file is not valid JSON."))
	}
	if doc.Version > LatestVersion {
		return nil, unsupportedVersion("song json is from a newer version")
	}

	s := New()
	s.Title = doc.Name
	s.Scale = findName(len(Scales), func(i int) string { return Scales[i].Name }, doc.Scale, len(Scales)-1)
	s.Key = findName(len(Keys), func(i int) string { return Keys[i].Name }, doc.Key, 0)
	s.LoopStart = doc.IntroBars
	s.LoopLength = doc.LoopBars
	s.BeatsPerBar = doc.BeatsPerBar
	s.Tempo = doc.BeatsPerMinute
	s.Rhythm = 1
	for i, r := range Rhythms {
		if r.StepsPerBeat == doc.TicksPerBeat {
			s.Rhythm = i
		}
	}
	s.LayeredInstruments = doc.LayeredInstruments
	s.PatternInstruments = true
	if doc.PatternInstruments != nil {
		s.PatternInstruments = *doc.PatternInstruments
	}

	var pitchChannels, noiseChannels []jsonChannel
	for _, jc := range doc.Channels {
		if jc.Type == "drum" {
			noiseChannels = append(noiseChannels, jc)
		} else {
			pitchChannels = append(pitchChannels, jc)
		}
	}
	s.PitchChannelCount = len(pitchChannels)
	s.NoiseChannelCount = len(noiseChannels)
	s.BarCount = 1
	s.PatternsPerChannel = 1
	s.Channels = nil
	for c, jc := range append(pitchChannels, noiseChannels...) {
		isNoise := c >= len(pitchChannels)
		ch := &Channel{Octave: jc.OctaveScrollBar, Bars: append([]int(nil), jc.Sequence...)}
		s.BarCount = max(s.BarCount, len(jc.Sequence))
		s.PatternsPerChannel = max(s.PatternsPerChannel, len(jc.Patterns))
		for _, ji := range jc.Instruments {
			ch.Instruments = append(ch.Instruments, instrumentFromJSON(ji, isNoise))
		}
		for _, jp := range jc.Patterns {
			p := &Pattern{}
			if len(jp.Instruments) > 0 {
				for _, i := range jp.Instruments {
					p.Instruments = append(p.Instruments, i-1)
				}
			} else {
				p.Instruments = []int{jp.Instrument - 1}
			}
			for _, jn := range jp.Notes {
				if len(jn.Points) < 2 {
					continue
				}
				start := jn.Points[0].Tick
				n := &Note{
					Pitches:              append([]int(nil), jn.Pitches...),
					Start:                start,
					End:                  jn.Points[len(jn.Points)-1].Tick,
					ContinuesLastPattern: jn.ContinuesLastPattern,
				}
				for _, pt := range jn.Points {
					size := int(math.Round(float64(pt.Volume) * NoteSizeMax / 100))
					n.Pins = append(n.Pins, NotePin{
						Interval: pt.PitchBend - jn.Points[0].PitchBend,
						Time:     pt.Tick - start,
						Size:     clamp(size, 0, NoteSizeMax),
					})
				}
				p.Notes = append(p.Notes, n)
			}
			ch.Patterns = append(ch.Patterns, p)
		}
		s.Channels = append(s.Channels, ch)
	}

	s.Normalize()
	if err := s.Validate(); err != nil {
		return nil, invalid(err)
	}
	return s, nil
}

func findName(n int, name func(int) string, want string, fallback int) int {
	for i := 0; i < n; i++ {
		if name(i) == want {
			return i
		}
	}
	return fallback
}

func filterFromJSON(points []jsonFilterPoint) FilterSettings {
	var f FilterSettings
	for _, jp := range points {
		p := FilterControlPoint{Type: FilterType(findName(int(FilterTypeCount), func(i int) string { return FilterTypeNames[i] }, jp.Type, 0))}
		if jp.CutoffHz > 0 {
			p.Freq = int(math.Round(math.Log2(jp.CutoffHz/FilterFreqMaxHz)/FilterFreqStep)) + FilterFreqRange - 1
		}
		if jp.LinearGain > 0 {
			p.Gain = int(math.Round(math.Log2(jp.LinearGain)/FilterGainStep)) + FilterGainCenter
		} else {
			p.Gain = FilterGainCenter
		}
		f.Points = append(f.Points, p)
	}
	return f
}

func spectrumFromJSON(values []int, points []int, maxValue int) {
	for i := range points {
		if i < len(values) {
			points[i] = int(math.Round(float64(maxValue) * float64(values[i]) / 100))
		}
	}
}

func instrumentFromJSON(j jsonInstrument, isNoise bool) *Instrument {
	t := InstrumentType(findName(int(InstrumentTypeCount), func(i int) string { return InstrumentTypeNames[i] }, j.Type, 0))
	if j.Type == "" && isNoise {
		t = Noise
	}
	ins := NewInstrument(t, isNoise)
	ins.Volume = j.Volume
	ins.Pan = int(math.Round(PanCenter + float64(j.Pan)*PanCenter/100))
	for _, name := range j.Effects {
		for e := Effect(0); e < EffectCount; e++ {
			if EffectNames[e] == name {
				ins.Effects = ins.Effects.With(e)
			}
		}
	}
	ins.EQFilter = filterFromJSON(j.EQFilter)
	ins.NoteFilter = filterFromJSON(j.NoteFilter)
	ins.Transition = findName(len(Transitions), func(i int) string { return Transitions[i].Name }, j.Transition, ins.Transition)
	ins.Chord = findName(len(Chords), func(i int) string { return Chords[i].Name }, j.Chord, ins.Chord)
	ins.Vibrato = findName(len(Vibratos), func(i int) string { return Vibratos[i].Name }, j.Vibrato, ins.Vibrato)
	ins.Unison = findName(len(Unisons), func(i int) string { return Unisons[i].Name }, j.Unison, ins.Unison)
	ins.FadeIn = nearest(FadeInRange, func(i int) float64 { return FadeInSeconds(i) }, j.FadeInSeconds)
	ins.FadeOut = nearest(len(FadeOutTicks), func(i int) float64 { return float64(FadeOutTicks[i]) }, float64(j.FadeOutTicks))
	ins.PitchShift = j.PitchShiftSemitones + PitchShiftCenter
	ins.Detune = j.DetuneCents
	ins.Distortion = j.Distortion
	ins.BitcrusherFreq = BitcrusherFreqRange - 1 - int(math.Round(j.BitcrusherOctave/BitcrusherOctaveStep))
	ins.BitcrusherQuantization = j.BitcrusherQuantization
	ins.Chorus = j.Chorus
	ins.EchoSustain = j.EchoSustain
	ins.EchoDelay = int(math.Round(j.EchoDelayBeats*TicksPerPart*PartsPerBeat/EchoDelayStepTicks)) - 1
	ins.Reverb = j.Reverb
	if j.Envelopes != nil {
		ins.Envelopes = nil
		for _, je := range j.Envelopes {
			ins.Envelopes = append(ins.Envelopes, EnvelopeSettings{
				Target:   findName(len(AutomationTargets), func(i int) string { return AutomationTargets[i].Name }, je.Target, 0),
				Index:    je.Index,
				Envelope: findName(len(Envelopes), func(i int) string { return Envelopes[i].Name }, je.Envelope, 0),
			})
		}
	}
	switch t {
	case Chip:
		ins.ChipWave = findName(len(ChipWaves), func(i int) string { return ChipWaves[i].Name }, j.Wave, ins.ChipWave)
	case Noise:
		ins.ChipNoise = findName(len(ChipNoises), func(i int) string { return ChipNoises[i].Name }, j.Wave, ins.ChipNoise)
	case FM:
		ins.Algorithm = findName(len(Algorithms), func(i int) string { return Algorithms[i].Name }, j.Algorithm, 0)
		ins.FeedbackType = findName(len(Feedbacks), func(i int) string { return Feedbacks[i].Name }, j.FeedbackType, 0)
		ins.FeedbackAmplitude = j.FeedbackAmplitude
		for i, op := range j.Operators {
			if i >= OperatorCount {
				break
			}
			ins.Operators[i].Frequency = findName(len(OperatorFrequencies), func(k int) string { return OperatorFrequencies[k].Name }, op.Frequency, 0)
			ins.Operators[i].Amplitude = op.Amplitude
		}
	case Spectrum:
		spectrumFromJSON(j.Spectrum, ins.Spectrum.Points[:], SpectrumMax)
	case Drumset:
		for i, drum := range j.Drums {
			if i >= DrumCount {
				break
			}
			ins.Drumset[i].Envelope = findName(len(Envelopes), func(k int) string { return Envelopes[k].Name }, drum.FilterEnvelope, EnvelopeIndexTwang2)
			spectrumFromJSON(drum.Spectrum, ins.Drumset[i].Spectrum.Points[:], SpectrumMax)
		}
	case Harmonics:
		spectrumFromJSON(j.Harmonics, ins.Harmonics.Points[:], HarmonicsMax)
	case PWM:
		ins.PulseWidth = j.PulseWidth
	case PickedString:
		spectrumFromJSON(j.Harmonics, ins.Harmonics.Points[:], HarmonicsMax)
		ins.StringSustain = j.StringSustain
	}
	return ins
}

func nearest(n int, value func(int) float64, want float64) int {
	best := 0
	for i := 1; i < n; i++ {
		if math.Abs(value(i)-want) < math.Abs(value(best)-want) {
			best = i
		}
	}
	return best
}
