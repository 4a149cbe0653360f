package song

import "math"

// FilterControlPoint is one band of a filter.
type FilterControlPoint struct {
	Type FilterType
	Freq int
	Gain int
}

// Hz is the corner frequency of the point.
func (p FilterControlPoint) Hz() float64 {
	return FilterFreqMaxHz * math.Pow(2, float64(p.Freq-(FilterFreqRange-1))*FilterFreqStep)
}

// LinearGain is the gain of the point. peakMult scales the gain towards the
// neutral value of the filter type in log space.
func (p FilterControlPoint) LinearGain(peakMult float64) float64 {
	power := float64(p.Gain-FilterGainCenter) * FilterGainStep
	neutral := -0.5
	if p.Type == Peak {
		neutral = 0
	}
	return math.Pow(2, neutral+(power-neutral)*peakMult)
}

// VolumeCompensationMult estimates how much louder or quieter the point makes
// a typical sound and returns the multiplier that undoes it.
func (p FilterControlPoint) VolumeCompensationMult() float64 {
	octave := float64(p.Freq-FilterFreqReferenceSetting) * FilterFreqStep
	gainPow := float64(p.Gain-FilterGainCenter) * FilterGainStep
	switch p.Type {
	case LowPass:
		freqRelativeTo8khz := math.Pow(2, octave)
		warpedFreq := (math.Sqrt(1+4*freqRelativeTo8khz) - 1) / 2
		warpedOctave := math.Log2(warpedFreq)
		return math.Pow(0.5, 0.2*math.Max(0, gainPow+1)+math.Min(0, math.Max(-3, 0.595*warpedOctave+0.35*math.Min(0, gainPow+1))))
	case HighPass:
		return math.Pow(0.5, 0.125*math.Max(0, gainPow+1)+math.Min(0, 0.3*(octave-1)+0.2*math.Min(0, gainPow+1)))
	case Peak:
		distanceFromCenter := octave + 2
		freqLoudness := math.Pow(1/(1+math.Pow(distanceFromCenter/3, 2)), 2)
		return math.Pow(0.5, 0.125*math.Max(0, gainPow)*freqLoudness+math.Min(0, 0.1*gainPow))
	}
	panic("song: unknown filter type")
}

// FilterSettings is an ordered list of up to FilterMaxPoints bands.
type FilterSettings struct {
	Points []FilterControlPoint
}

// Clone returns a copy that doesn't share the point slice.
func (s FilterSettings) Clone() FilterSettings {
	return FilterSettings{Points: append([]FilterControlPoint(nil), s.Points...)}
}

// EnvelopeSettings binds an envelope preset to an automation target.
type EnvelopeSettings struct {
	Target   int
	Index    int
	Envelope int
}

// Operator is one FM operator.
type Operator struct {
	Frequency int
	Amplitude int
}

// SpectrumWave is a noise spectrum drawn with one control point per
// seventh of an octave.
type SpectrumWave struct {
	Points [SpectrumControlPoints]int
}

// Reset restores the default spectrum for the channel kind.
func (w *SpectrumWave) Reset(isNoiseChannel bool) {
	for i := range w.Points {
		if isNoiseChannel {
			w.Points[i] = int(math.Round(SpectrumMax / math.Sqrt(1+float64(i)/3)))
		} else {
			isHarmonic := i == 0 || i == 7 || i == 11 || i == 14 || i == 16 || i == 18 || i == 21 || i == 23 || i >= 25
			if isHarmonic {
				w.Points[i] = max(0, int(math.Round(SpectrumMax*(1-float64(i)/30))))
			} else {
				w.Points[i] = 0
			}
		}
	}
}

// HarmonicsWave is a waveform drawn as harmonic amplitudes.
type HarmonicsWave struct {
	Points [HarmonicsControlPoints]int
}

// Reset restores the default harmonics.
func (w *HarmonicsWave) Reset() {
	for i := range w.Points {
		w.Points[i] = 0
	}
	w.Points[0] = HarmonicsMax
	w.Points[3] = HarmonicsMax
	w.Points[6] = HarmonicsMax
}

// DrumsetSettings is the sound of one drumset key.
type DrumsetSettings struct {
	Envelope int
	Spectrum SpectrumWave
}

// Instrument holds every setting of one instrument. Only the fields
// relevant to Type are used by the engine.
type Instrument struct {
	Type                   InstrumentType
	Volume                 int
	Pan                    int
	EQFilter               FilterSettings
	NoteFilter             FilterSettings
	Effects                EffectMask
	Transition             int
	Chord                  int
	Vibrato                int
	Unison                 int
	FadeIn                 int
	FadeOut                int
	PitchShift             int
	Detune                 int
	Distortion             int
	BitcrusherFreq         int
	BitcrusherQuantization int
	Chorus                 int
	EchoSustain            int
	EchoDelay              int
	Reverb                 int
	ChipWave               int
	ChipNoise              int
	PulseWidth             int
	StringSustain          int
	Algorithm              int
	FeedbackType           int
	FeedbackAmplitude      int
	Operators              [OperatorCount]Operator
	Spectrum               SpectrumWave
	Harmonics              HarmonicsWave
	Drumset                [DrumCount]DrumsetSettings
	Envelopes              []EnvelopeSettings
}

// NewInstrument returns an instrument of the given type with default
// settings.
func NewInstrument(t InstrumentType, isNoiseChannel bool) *Instrument {
	ins := &Instrument{}
	ins.Reset(t, isNoiseChannel)
	return ins
}

// Reset changes the type of the instrument and restores every setting to
// its default.
func (ins *Instrument) Reset(t InstrumentType, isNoiseChannel bool) {
	*ins = Instrument{
		Type:                   t,
		Volume:                 0,
		Pan:                    PanCenter,
		Transition:             TransitionNormal,
		Chord:                  ChordArpeggio,
		FadeOut:                FadeOutNeutral,
		PitchShift:             PitchShiftCenter,
		BitcrusherFreq:         BitcrusherFreqRange / 2,
		BitcrusherQuantization: BitcrusherQuantizationRange / 2,
		Chorus:                 ChorusRange - 1,
		EchoSustain:            3,
		EchoDelay:              11,
		Reverb:                 ReverbRange / 4,
		Distortion:             DistortionRange / 2,
		ChipWave:               2,
		ChipNoise:              1,
		PulseWidth:             PulseWidthRange,
		StringSustain:          10,
	}
	if t == Chip || t == Harmonics || t == PickedString {
		ins.Chord = ChordSimultaneous
	}
	for i := range ins.Operators {
		ins.Operators[i] = Operator{Frequency: 0}
		if i <= 1 {
			ins.Operators[i].Amplitude = OperatorAmplitudeMax
		}
	}
	if t == FM {
		ins.Operators[1].Frequency = 2
		ins.Envelopes = []EnvelopeSettings{{Target: TargetOperatorAmplitude, Index: 1, Envelope: EnvelopeIndexNoteSize}}
	}
	ins.Spectrum.Reset(isNoiseChannel)
	ins.Harmonics.Reset()
	for i := range ins.Drumset {
		ins.Drumset[i].Envelope = EnvelopeIndexTwang2
		ins.Drumset[i].Spectrum.Reset(isNoiseChannel)
	}
	if t == PickedString {
		ins.Unison = 8
	}
}

// Clone returns a deep copy of the instrument.
func (ins *Instrument) Clone() *Instrument {
	c := *ins
	c.EQFilter = ins.EQFilter.Clone()
	c.NoteFilter = ins.NoteFilter.Clone()
	c.Envelopes = append([]EnvelopeSettings(nil), ins.Envelopes...)
	return &c
}

// Effect reports whether the effect is enabled.
func (ins *Instrument) Effect(e Effect) bool {
	return ins.Effects.Has(e)
}

// GetTransition returns the active transition.
func (ins *Instrument) GetTransition() Transition {
	if ins.Effect(EffectTransitionType) {
		return Transitions[ins.Transition]
	}
	return Transitions[TransitionNormal]
}

// GetChord returns the active chord mode.
func (ins *Instrument) GetChord() Chord {
	if ins.Effect(EffectChordType) {
		return Chords[ins.Chord]
	}
	return Chords[ChordSimultaneous]
}

// GetFadeInSeconds returns the attack time.
func (ins *Instrument) GetFadeInSeconds() float64 {
	if ins.Type == Drumset {
		return 0
	}
	return FadeInSeconds(ins.FadeIn)
}

// GetFadeOutTicks returns the release time. Negative values mean the fade
// starts before the note ends.
func (ins *Instrument) GetFadeOutTicks() int {
	if ins.Type == Drumset {
		return FadeOutTicks[len(FadeOutTicks)-1]
	}
	return FadeOutTicks[ins.FadeOut]
}

// GetVibrato returns the active vibrato preset.
func (ins *Instrument) GetVibrato() Vibrato {
	if ins.Effect(EffectVibrato) {
		return Vibratos[ins.Vibrato]
	}
	return Vibratos[0]
}

// UsesNoteSizeEnvelope reports whether an envelope consumes the note size,
// in which case note size doesn't also drive note volume.
func (ins *Instrument) UsesNoteSizeEnvelope() bool {
	for _, e := range ins.Envelopes {
		if e.Envelope == EnvelopeIndexNoteSize {
			return true
		}
	}
	return false
}

// Normalize clamps every setting into its valid range. Types that can't be
// played on the kind of channel are replaced.
func (ins *Instrument) Normalize(isNoiseChannel bool) {
	if ins.Type < 0 || ins.Type >= InstrumentTypeCount {
		ins.Type = Chip
	}
	if isNoiseChannel && ins.Type != Noise && ins.Type != Spectrum && ins.Type != Drumset {
		ins.Type = Noise
	}
	if !isNoiseChannel && (ins.Type == Noise || ins.Type == Drumset) {
		ins.Type = Chip
	}
	ins.Volume = clamp(ins.Volume, -VolumeRange/2, VolumeRange/2)
	ins.Pan = clamp(ins.Pan, 0, PanMax)
	ins.Effects &= 1<<EffectCount - 1
	ins.Transition = clampIndex(ins.Transition, len(Transitions))
	ins.Chord = clampIndex(ins.Chord, len(Chords))
	ins.Vibrato = clampIndex(ins.Vibrato, len(Vibratos))
	ins.Unison = clampIndex(ins.Unison, len(Unisons))
	ins.FadeIn = clampIndex(ins.FadeIn, FadeInRange)
	ins.FadeOut = clampIndex(ins.FadeOut, len(FadeOutTicks))
	ins.PitchShift = clampIndex(ins.PitchShift, PitchShiftRange)
	ins.Detune = clamp(ins.Detune, DetuneMin, DetuneMax)
	ins.Distortion = clampIndex(ins.Distortion, DistortionRange)
	ins.BitcrusherFreq = clampIndex(ins.BitcrusherFreq, BitcrusherFreqRange)
	ins.BitcrusherQuantization = clampIndex(ins.BitcrusherQuantization, BitcrusherQuantizationRange)
	ins.Chorus = clampIndex(ins.Chorus, ChorusRange)
	ins.EchoSustain = clampIndex(ins.EchoSustain, EchoSustainRange)
	ins.EchoDelay = clampIndex(ins.EchoDelay, EchoDelayRange)
	ins.Reverb = clampIndex(ins.Reverb, ReverbRange)
	ins.ChipWave = clampIndex(ins.ChipWave, len(ChipWaves))
	ins.ChipNoise = clampIndex(ins.ChipNoise, len(ChipNoises))
	ins.PulseWidth = clamp(ins.PulseWidth, 1, PulseWidthRange)
	ins.StringSustain = clampIndex(ins.StringSustain, StringSustainRange)
	ins.Algorithm = clampIndex(ins.Algorithm, len(Algorithms))
	ins.FeedbackType = clampIndex(ins.FeedbackType, len(Feedbacks))
	ins.FeedbackAmplitude = clamp(ins.FeedbackAmplitude, 0, FeedbackAmplitudeMax)
	for i := range ins.Operators {
		ins.Operators[i].Frequency = clampIndex(ins.Operators[i].Frequency, len(OperatorFrequencies))
		ins.Operators[i].Amplitude = clamp(ins.Operators[i].Amplitude, 0, OperatorAmplitudeMax)
	}
	normalizeFilter(&ins.EQFilter)
	normalizeFilter(&ins.NoteFilter)
	normalizeSpectrum(&ins.Spectrum)
	for i := range ins.Harmonics.Points {
		ins.Harmonics.Points[i] = clamp(ins.Harmonics.Points[i], 0, HarmonicsMax)
	}
	for i := range ins.Drumset {
		ins.Drumset[i].Envelope = clampIndex(ins.Drumset[i].Envelope, len(Envelopes))
		normalizeSpectrum(&ins.Drumset[i].Spectrum)
	}
	envelopes := ins.Envelopes[:0]
	for _, e := range ins.Envelopes {
		if len(envelopes) >= MaxEnvelopeCount {
			break
		}
		if e.Target <= 0 || e.Target >= len(AutomationTargets) {
			continue
		}
		target := AutomationTargets[e.Target]
		if e.Index < 0 || e.Index >= target.MaxCount || !target.compatibleWith(ins.Type) {
			continue
		}
		e.Envelope = clampIndex(e.Envelope, len(Envelopes))
		envelopes = append(envelopes, e)
	}
	ins.Envelopes = envelopes
}

func (t AutomationTarget) compatibleWith(typ InstrumentType) bool {
	if t.Compatible == nil {
		return true
	}
	for _, c := range t.Compatible {
		if c == typ {
			return true
		}
	}
	return false
}

func normalizeFilter(f *FilterSettings) {
	if len(f.Points) > FilterMaxPoints {
		f.Points = f.Points[:FilterMaxPoints]
	}
	for i := range f.Points {
		p := &f.Points[i]
		if p.Type < 0 || p.Type >= FilterTypeCount {
			p.Type = LowPass
		}
		p.Freq = clampIndex(p.Freq, FilterFreqRange)
		p.Gain = clampIndex(p.Gain, FilterGainRange)
	}
}

func normalizeSpectrum(w *SpectrumWave) {
	for i := range w.Points {
		w.Points[i] = clamp(w.Points[i], 0, SpectrumMax)
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampIndex(v, length int) int {
	return clamp(v, 0, length-1)
}
