package song

import "math"

// Time base. A beat is split into parts, and a part into ticks. Notes start
// and end on parts, the engine refreshes parameters once per tick.
const (
	PartsPerBeat = 24
	TicksPerPart = 2
)

// Song level ranges.
const (
	TempoMin               = 30
	TempoMax               = 300
	BeatsPerBarMin         = 1
	BeatsPerBarMax         = 16
	BarCountMin            = 1
	BarCountMax            = 1024
	PatternsPerChannelMin  = 1
	PatternsPerChannelMax  = 64
	PitchChannelCountMin   = 1
	PitchChannelCountMax   = 10
	NoiseChannelCountMin   = 0
	NoiseChannelCountMax   = 5
	InstrumentsPerChannel  = 10
	MaxChordSize           = 4
	MaximumTonesPerChannel = MaxChordSize * 2
	PitchesPerOctave       = 12
	PitchOctaves           = 8
	MaxPitch               = PitchOctaves * PitchesPerOctave
	DrumCount              = 12
	NoiseInterval          = 6
	OperatorCount          = 4
	MaxEnvelopeCount       = 12
	ScrollableOctaves      = 5
	NoteSizeMax            = 3
)

// Instrument ranges.
const (
	VolumeRange                 = 50
	VolumeLogScale              = 0.1428
	PanCenter                   = 50
	PanMax                      = PanCenter * 2
	PanDelaySecondsMax          = 0.001
	DistortionRange             = 8
	BitcrusherFreqRange         = 14
	BitcrusherOctaveStep        = 0.5
	BitcrusherQuantizationRange = 8
	ChorusRange                 = 8
	ChorusPeriodSeconds         = 2.0
	ChorusDelayRange            = 0.0034
	EchoSustainRange            = 8
	EchoDelayRange              = 24
	EchoDelayStepTicks          = 4
	EchoShelfHz                 = 4000.0
	EchoShelfGain               = 0.5
	ReverbRange                 = 32
	ReverbShelfHz               = 8000.0
	ReverbShelfGain             = 0.5
	ReverbDelayBufferSize       = 16384
	ReverbDelayBufferMask       = ReverbDelayBufferSize - 1
	FadeInRange                 = 10
	FadeOutNeutral              = 4
	PitchShiftRange             = 25
	PitchShiftCenter            = PitchShiftRange >> 1
	DetuneMin                   = -200
	DetuneMax                   = 200
	PulseWidthRange             = 50
	StringSustainRange          = 15
	OperatorAmplitudeMax        = 15
	FeedbackAmplitudeMax        = 15
	SpectrumControlPoints       = 30
	SpectrumControlPointsPerOct = 7
	SpectrumControlPointBits    = 3
	SpectrumMax                 = (1 << SpectrumControlPointBits) - 1
	HarmonicsControlPoints      = 28
	HarmonicsRendered           = 64
	HarmonicsControlPointBits   = 3
	HarmonicsMax                = (1 << HarmonicsControlPointBits) - 1
	HarmonicsWavelength         = 1 << 11
	ChipNoiseLength             = 1 << 15
	SpectrumNoiseLength         = 1 << 15
	SpectrumBasePitch           = 24
	SineWaveLength              = 1 << 8
	SineWaveMask                = SineWaveLength - 1
)

// Filter ranges. Frequency settings are quarter octaves below
// FilterFreqMaxHz, gain settings are half octaves around FilterGainCenter.
const (
	FilterFreqRange            = 33
	FilterFreqStep             = 1.0 / 4.0
	FilterFreqMaxHz            = 16000.0
	FilterFreqMinHz            = 8.0
	FilterFreqReferenceSetting = 28
	FilterGainRange            = 15
	FilterGainCenter           = 7
	FilterGainStep             = 1.0 / 2.0
	FilterMaxPoints            = 8
)

// Picked string waveguide tuning.
const (
	PickedStringDispersionCenterFreq = 6000.0
	PickedStringDispersionFreqScale  = 0.3
	PickedStringDispersionFreqMult   = 4.0
	PickedStringShelfHz              = 4000.0
)

// InstrumentType selects the synthesis algorithm of an instrument.
type InstrumentType int

const (
	Chip InstrumentType = iota
	FM
	Noise
	Spectrum
	Drumset
	Harmonics
	PWM
	PickedString
	InstrumentTypeCount
)

// InstrumentTypeNames are the display and JSON names of the instrument types.
var InstrumentTypeNames = [InstrumentTypeCount]string{"chip", "FM", "noise", "spectrum", "drumset", "harmonics", "PWM", "Picked String"}

func (t InstrumentType) String() string {
	if t < 0 || t >= InstrumentTypeCount {
		return "unknown"
	}
	return InstrumentTypeNames[t]
}

// FilterType is the response shape of a filter control point.
type FilterType int

const (
	LowPass FilterType = iota
	HighPass
	Peak
	FilterTypeCount
)

var FilterTypeNames = [FilterTypeCount]string{"low-pass", "high-pass", "peak"}

// EnvelopeType is the curve family of an envelope preset.
type EnvelopeType int

const (
	EnvelopeNoteSize EnvelopeType = iota
	EnvelopeNone
	EnvelopePunch
	EnvelopeFlare
	EnvelopeTwang
	EnvelopeSwell
	EnvelopeTremolo
	EnvelopeTremolo2
	EnvelopeDecay
)

// Effect is a bit in an instrument's effect mask.
type Effect uint

const (
	EffectReverb Effect = iota
	EffectChorus
	EffectPanning
	EffectDistortion
	EffectBitcrusher
	EffectNoteFilter
	EffectEcho
	EffectPitchShift
	EffectDetune
	EffectVibrato
	EffectTransitionType
	EffectChordType
	EffectCount
)

var EffectNames = [EffectCount]string{"reverb", "chorus", "panning", "distortion", "bitcrusher", "note filter", "echo", "pitch shift", "detune", "vibrato", "transition type", "chord type"}

// EffectMask is a set of enabled effects.
type EffectMask uint16

// Has reports whether e is enabled.
func (m EffectMask) Has(e Effect) bool {
	return m&(1<<e) != 0
}

// With returns the mask with e enabled.
func (m EffectMask) With(e Effect) EffectMask {
	return m | 1<<e
}

// Without returns the mask with e disabled.
func (m EffectMask) Without(e Effect) EffectMask {
	return m &^ (1 << e)
}

// EnvelopeComputeIndex addresses one slot of the per-tone envelope table.
type EnvelopeComputeIndex int

const (
	NoteVolume EnvelopeComputeIndex = iota
	NoteFilterAllFreqs
	PulseWidthIndex
	StringSustainIndex
	UnisonIndex
	OperatorFrequency0
	OperatorFrequency1
	OperatorFrequency2
	OperatorFrequency3
	OperatorAmplitude0
	OperatorAmplitude1
	OperatorAmplitude2
	OperatorAmplitude3
	FeedbackAmplitudeIndex
	PitchShiftIndex
	DetuneIndex
	VibratoDepthIndex
	NoteFilterFreq0
	NoteFilterGain0 = NoteFilterFreq0 + FilterMaxPoints
	EnvelopeComputeIndexCount = NoteFilterGain0 + FilterMaxPoints
)

// Scale lists which of the twelve semitones above the key are in the scale.
type Scale struct {
	Name     string
	RealName string
	Flags    [12]bool
}

var Scales = []Scale{
	{"easy :)", "pentatonic major", scaleFlags("101010010100")},
	{"easy :(", "pentatonic minor", scaleFlags("100101010010")},
	{"island :)", "ryukyu", scaleFlags("100011010001")},
	{"island :(", "pelog selisir", scaleFlags("110100011000")},
	{"blues :)", "blues major", scaleFlags("101110010100")},
	{"blues :(", "blues", scaleFlags("100101110010")},
	{"normal :)", "ionian", scaleFlags("101011010101")},
	{"normal :(", "aeolian", scaleFlags("101101011010")},
	{"dbl harmonic :)", "double harmonic major", scaleFlags("110011011001")},
	{"dbl harmonic :(", "double harmonic minor", scaleFlags("101100111001")},
	{"strange", "whole tone", scaleFlags("101010101010")},
	{"expert", "chromatic", scaleFlags("111111111111")},
}

// Key is a tonic; C0 has pitch 12 on the MIDI scale.
type Key struct {
	Name       string
	IsWhiteKey bool
	BasePitch  int
}

var Keys = []Key{
	{"C", true, 12}, {"C♯", false, 13}, {"D", true, 14}, {"D♯", false, 15},
	{"E", true, 16}, {"F", true, 17}, {"F♯", false, 18}, {"G", true, 19},
	{"G♯", false, 20}, {"A", true, 21}, {"A♯", false, 22}, {"B", true, 23},
}

// Rhythm is the grid a song snaps to, which also drives arpeggio speed.
type Rhythm struct {
	Name             string
	StepsPerBeat     int
	TicksPerArpeggio int
	ArpeggioPatterns [][]int
}

var Rhythms = []Rhythm{
	{"÷3 (triplets)", 3, 4, [][]int{{0}, {0, 0, 1, 1}, {0, 1, 2, 1}}},
	{"÷4 (standard)", 4, 3, [][]int{{0}, {0, 0, 1, 1}, {0, 1, 2, 1}}},
	{"÷6", 6, 4, [][]int{{0}, {0, 1}, {0, 1, 2, 1}}},
	{"÷8", 8, 3, [][]int{{0}, {0, 1}, {0, 1, 2, 1}}},
	{"freehand", 24, 3, [][]int{{0}, {0, 1}, {0, 1, 2, 1}}},
}

// ArpeggioPitchIndex picks which pitch of a chord sounds on the given
// arpeggio step.
func ArpeggioPitchIndex(pitchCount, rhythm, arpeggio int) int {
	patterns := Rhythms[rhythm].ArpeggioPatterns
	if pitchCount-1 < len(patterns) {
		pattern := patterns[pitchCount-1]
		return pattern[arpeggio%len(pattern)]
	}
	return arpeggio % pitchCount
}

// ChipWave is a short single-cycle waveform. Samples are raw; the engine
// centers and integrates them.
type ChipWave struct {
	Name       string
	Expression float64
	Samples    []float64
}

var ChipWaves = []ChipWave{
	{"rounded", 0.94, []float64{0.0, 0.2, 0.4, 0.5, 0.6, 0.7, 0.8, 0.85, 0.9, 0.95, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 0.95, 0.9, 0.85, 0.8, 0.7, 0.6, 0.5, 0.4, 0.2, 0.0, -0.2, -0.4, -0.5, -0.6, -0.7, -0.8, -0.85, -0.9, -0.95, -1.0, -1.0, -1.0, -1.0, -1.0, -1.0, -1.0, -1.0, -1.0, -1.0, -1.0, -0.95, -0.9, -0.85, -0.8, -0.7, -0.6, -0.5, -0.4, -0.2}},
	{"triangle", 1.0, steps(15, []float64{1, 3, 5, 7, 9, 11, 13, 15, 15, 13, 11, 9, 7, 5, 3, 1, -1, -3, -5, -7, -9, -11, -13, -15, -15, -13, -11, -9, -7, -5, -3, -1})},
	{"square", 0.5, []float64{1.0, -1.0}},
	{"1/4 pulse", 0.5, []float64{1.0, -1.0, -1.0, -1.0}},
	{"1/8 pulse", 0.5, []float64{1.0, -1.0, -1.0, -1.0, -1.0, -1.0, -1.0, -1.0}},
	{"sawtooth", 0.65, steps(31, []float64{1, 3, 5, 7, 9, 11, 13, 15, 17, 19, 21, 23, 25, 27, 29, 31, -31, -29, -27, -25, -23, -21, -19, -17, -15, -13, -11, -9, -7, -5, -3, -1})},
	{"double saw", 0.5, []float64{0.0, -0.2, -0.4, -0.6, -0.8, -1.0, 1.0, -0.8, -0.6, -0.4, -0.2, 1.0, 0.8, 0.6, 0.4, 0.2}},
	{"double pulse", 0.4, []float64{1.0, 1.0, 1.0, 1.0, 1.0, -1.0, -1.0, -1.0, 1.0, 1.0, 1.0, 1.0, -1.0, -1.0, -1.0, -1.0}},
	{"spiky", 0.4, []float64{1.0, -1.0, 1.0, -1.0, 1.0, 0.0}},
}

func scaleFlags(bits string) [12]bool {
	var flags [12]bool
	for i := range flags {
		flags[i] = bits[i] == '1'
	}
	return flags
}

func steps(denominator float64, numerators []float64) []float64 {
	out := make([]float64, len(numerators))
	for i, n := range numerators {
		out[i] = n / denominator
	}
	return out
}

// ChipNoise describes one of the noise generators of noise channels.
type ChipNoise struct {
	Name            string
	Expression      float64
	BasePitch       float64
	PitchFilterMult float64
	IsSoft          bool
}

var ChipNoises = []ChipNoise{
	{"retro", 0.25, 69, 1024.0, false},
	{"white", 1.0, 69, 8.0, true},
	{"clang", 0.4, 69, 1024.0, false},
	{"buzz", 0.3, 69, 1024.0, false},
	{"hollow", 1.5, 96, 1.0, true},
}

// Transition decides whether consecutive notes share a tone.
type Transition struct {
	Name                    string
	IsSeamless              bool
	Continues               bool
	Slides                  bool
	SlideTicks              int
	IncludeAdjacentPatterns bool
}

var Transitions = []Transition{
	{"normal", false, false, false, 3, false},
	{"interrupt", true, false, false, 3, true},
	{"continue", true, true, false, 3, true},
	{"slide", true, false, true, 3, true},
	{"slide in pattern", true, false, true, 3, false},
}

// TransitionNormal is used when the transition effect is disabled.
const TransitionNormal = 0

// Chord decides how the pitches of a note become tones.
type Chord struct {
	Name           string
	CustomInterval bool
	Arpeggiates    bool
	StrumParts     int
	SingleTone     bool
}

var Chords = []Chord{
	{"simultaneous", false, false, 0, false},
	{"strum", false, false, 1, false},
	{"arpeggio", false, true, 0, true},
	{"custom interval", true, false, 0, true},
}

const (
	ChordSimultaneous = 0
	ChordStrum        = 1
	ChordArpeggio     = 2
	ChordCustom       = 3
)

// Vibrato is a pitch LFO preset.
type Vibrato struct {
	Name           string
	Amplitude      float64
	PeriodsSeconds []float64
	DelayTicks     int
}

var Vibratos = []Vibrato{
	{"none", 0.0, []float64{0.14}, 0},
	{"light", 0.15, []float64{0.14}, 0},
	{"delayed", 0.3, []float64{0.14}, 37},
	{"heavy", 0.45, []float64{0.14}, 0},
	{"shaky", 0.1, []float64{0.11, 1.618 * 0.11, 3 * 0.11}, 0},
}

// Unison detunes a second oscillator against the first.
type Unison struct {
	Name       string
	Spread     float64
	Offset     float64
	Expression float64
	Sign       float64
}

var Unisons = []Unison{
	{"none", 0.0, 0.0, 0.7, 1.0},
	{"shimmer", 0.018, 0.0, 0.8, 1.0},
	{"hum", 0.045, 0.0, 1.0, 1.0},
	{"honky tonk", 0.09, 0.0, 1.0, 1.0},
	{"dissonant", 0.25, 0.0, 0.9, 1.0},
	{"fifth", 3.5, 3.5, 0.9, 1.0},
	{"octave", 6.0, 6.0, 0.8, 1.0},
	{"bowed", 0.02, 0.0, 1.0, -1.0},
	{"piano", 0.01, 0.0, 1.0, 0.7},
}

// Algorithm is an FM operator topology. Operator indices are 1-based.
type Algorithm struct {
	Name              string
	CarrierCount      int
	AssociatedCarrier [OperatorCount]int
	ModulatedBy       [OperatorCount][]int
}

var Algorithms = []Algorithm{
	{"1←(2 3 4)", 1, [4]int{1, 1, 1, 1}, [4][]int{{2, 3, 4}, {}, {}, {}}},
	{"1←(2 3←4)", 1, [4]int{1, 1, 1, 1}, [4][]int{{2, 3}, {}, {4}, {}}},
	{"1←2←(3 4)", 1, [4]int{1, 1, 1, 1}, [4][]int{{2}, {3, 4}, {}, {}}},
	{"1←(2 3)←4", 1, [4]int{1, 1, 1, 1}, [4][]int{{2, 3}, {4}, {4}, {}}},
	{"1←2←3←4", 1, [4]int{1, 1, 1, 1}, [4][]int{{2}, {3}, {4}, {}}},
	{"1←3 2←4", 2, [4]int{1, 2, 1, 2}, [4][]int{{3}, {4}, {}, {}}},
	{"1 2←(3 4)", 2, [4]int{1, 2, 2, 2}, [4][]int{{}, {3, 4}, {}, {}}},
	{"1 2←3←4", 2, [4]int{1, 2, 2, 2}, [4][]int{{}, {3}, {4}, {}}},
	{"(1 2)←3←4", 2, [4]int{1, 2, 2, 2}, [4][]int{{3}, {3}, {4}, {}}},
	{"(1 2)←(3 4)", 2, [4]int{1, 2, 2, 2}, [4][]int{{3, 4}, {3, 4}, {}, {}}},
	{"1 2 3←4", 3, [4]int{1, 2, 3, 3}, [4][]int{{}, {}, {4}, {}}},
	{"(1 2 3)←4", 3, [4]int{1, 2, 3, 3}, [4][]int{{4}, {4}, {4}, {}}},
	{"1 2 3 4", 4, [4]int{1, 2, 3, 4}, [4][]int{{}, {}, {}, {}}},
}

// OperatorCarrierIntervals slightly detune each carrier so that stacked
// carriers don't phase-cancel.
var OperatorCarrierIntervals = [OperatorCount]float64{0.0, 0.04, -0.073, 0.091}

// OperatorFrequency is a frequency ratio of an FM operator.
type OperatorFrequency struct {
	Name          string
	Mult          float64
	HzOffset      float64
	AmplitudeSign float64
}

var OperatorFrequencies = []OperatorFrequency{
	{"1×", 1.0, 0.0, 1.0},
	{"~1×", 1.0, 1.5, -1.0},
	{"2×", 2.0, 0.0, 1.0},
	{"~2×", 2.0, -1.3, -1.0},
	{"3×", 3.0, 0.0, 1.0},
	{"4×", 4.0, 0.0, 1.0},
	{"5×", 5.0, 0.0, 1.0},
	{"6×", 6.0, 0.0, 1.0},
	{"7×", 7.0, 0.0, 1.0},
	{"8×", 8.0, 0.0, 1.0},
	{"9×", 9.0, 0.0, 1.0},
	{"11×", 11.0, 0.0, 1.0},
	{"13×", 13.0, 0.0, 1.0},
	{"16×", 16.0, 0.0, 1.0},
	{"20×", 20.0, 0.0, 1.0},
}

// Feedback is an FM feedback routing; Indices[i] lists the operators whose
// previous output modulates operator i+1.
type Feedback struct {
	Name    string
	Indices [OperatorCount][]int
}

var Feedbacks = []Feedback{
	{"1⟲", [4][]int{{1}, {}, {}, {}}},
	{"2⟲", [4][]int{{}, {2}, {}, {}}},
	{"3⟲", [4][]int{{}, {}, {3}, {}}},
	{"4⟲", [4][]int{{}, {}, {}, {4}}},
	{"1⟲ 2⟲", [4][]int{{1}, {2}, {}, {}}},
	{"3⟲ 4⟲", [4][]int{{}, {}, {3}, {4}}},
	{"1⟲ 2⟲ 3⟲", [4][]int{{1}, {2}, {3}, {}}},
	{"2⟲ 3⟲ 4⟲", [4][]int{{}, {2}, {3}, {4}}},
	{"1⟲ 2⟲ 3⟲ 4⟲", [4][]int{{1}, {2}, {3}, {4}}},
	{"1→2", [4][]int{{}, {1}, {}, {}}},
	{"1→3", [4][]int{{}, {}, {1}, {}}},
	{"1→4", [4][]int{{}, {}, {}, {1}}},
	{"2→3", [4][]int{{}, {}, {2}, {}}},
	{"2→4", [4][]int{{}, {}, {}, {2}}},
	{"3→4", [4][]int{{}, {}, {}, {3}}},
	{"1→3 2→4", [4][]int{{}, {}, {1}, {2}}},
	{"1→4 2→3", [4][]int{{}, {}, {2}, {1}}},
	{"1→2→3→4", [4][]int{{}, {1}, {2}, {3}}},
}

// Envelope is a named envelope preset.
type Envelope struct {
	Name  string
	Type  EnvelopeType
	Speed float64
}

var Envelopes = []Envelope{
	{"none", EnvelopeNone, 0.0},
	{"note size", EnvelopeNoteSize, 0.0},
	{"punch", EnvelopePunch, 0.0},
	{"flare 1", EnvelopeFlare, 32.0},
	{"flare 2", EnvelopeFlare, 8.0},
	{"flare 3", EnvelopeFlare, 2.0},
	{"twang 1", EnvelopeTwang, 32.0},
	{"twang 2", EnvelopeTwang, 8.0},
	{"twang 3", EnvelopeTwang, 2.0},
	{"swell 1", EnvelopeSwell, 32.0},
	{"swell 2", EnvelopeSwell, 8.0},
	{"swell 3", EnvelopeSwell, 2.0},
	{"tremolo1", EnvelopeTremolo, 4.0},
	{"tremolo2", EnvelopeTremolo, 2.0},
	{"tremolo3", EnvelopeTremolo, 1.0},
	{"tremolo4", EnvelopeTremolo2, 4.0},
	{"tremolo5", EnvelopeTremolo2, 2.0},
	{"tremolo6", EnvelopeTremolo2, 1.0},
	{"decay 1", EnvelopeDecay, 10.0},
	{"decay 2", EnvelopeDecay, 7.0},
	{"decay 3", EnvelopeDecay, 4.0},
}

// Frequently used envelope indices.
const (
	EnvelopeIndexNone     = 0
	EnvelopeIndexNoteSize = 1
	EnvelopeIndexTwang2   = 7
)

// AutomationTarget is something an envelope can modulate.
type AutomationTarget struct {
	Name         string
	ComputeIndex EnvelopeComputeIndex // -1 for "none"
	MaxCount     int
	Effect       Effect // EffectCount when no effect is required
	IsFilter     bool
	Compatible   []InstrumentType // nil means every type
}

var AutomationTargets = []AutomationTarget{
	{"none", -1, 1, EffectCount, false, nil},
	{"note volume", NoteVolume, 1, EffectCount, false, nil},
	{"pulse width", PulseWidthIndex, 1, EffectCount, false, []InstrumentType{PWM}},
	{"sustain", StringSustainIndex, 1, EffectCount, false, []InstrumentType{PickedString}},
	{"unison", UnisonIndex, 1, EffectCount, false, []InstrumentType{Chip, Harmonics, PickedString}},
	{"operator frequency", OperatorFrequency0, OperatorCount, EffectCount, false, []InstrumentType{FM}},
	{"operator amplitude", OperatorAmplitude0, OperatorCount, EffectCount, false, []InstrumentType{FM}},
	{"feedback amplitude", FeedbackAmplitudeIndex, 1, EffectCount, false, []InstrumentType{FM}},
	{"pitch shift", PitchShiftIndex, 1, EffectPitchShift, false, nil},
	{"detune", DetuneIndex, 1, EffectDetune, false, nil},
	{"vibrato depth", VibratoDepthIndex, 1, EffectVibrato, false, nil},
	{"note filter all freqs", NoteFilterAllFreqs, 1, EffectNoteFilter, true, nil},
	{"note filter freq", NoteFilterFreq0, FilterMaxPoints, EffectNoteFilter, true, nil},
}

// Automation target indices.
const (
	TargetNone              = 0
	TargetNoteVolume        = 1
	TargetNoteFilterAll     = 11
	TargetNoteFilterFreq    = 12
	TargetOperatorAmplitude = 6
)

// FadeOutTicks is the release length for each fade out setting. Negative
// values start fading before the note ends.
var FadeOutTicks = []int{-24, -12, -6, -3, -1, 6, 12, 24, 48, 72, 96}

// FadeInSeconds converts a fade in setting to seconds.
func FadeInSeconds(setting int) float64 {
	s := float64(setting)
	return 0.0125 * (0.95*s + 0.05*s*s)
}

// Base expressions per instrument type, before pitch damping.
const (
	ChipBaseExpression         = 0.03375
	FMBaseExpression           = 0.03
	NoiseBaseExpression        = 0.19
	SpectrumBaseExpression     = 0.3
	DrumsetBaseExpression      = 0.45
	HarmonicsBaseExpression    = 0.025
	PWMBaseExpression          = 0.04725
	PickedStringBaseExpression = 0.025
	DistortionBaseVolume       = 0.0125
	BitcrusherBaseVolume       = 0.010
)

// FrequencyFromPitch converts a MIDI style pitch to Hz.
func FrequencyFromPitch(pitch float64) float64 {
	return 440.0 * math.Pow(2.0, (pitch-69.0)/12.0)
}

// DrumsetIndexReferenceDelta is the phase increment, relative to a 44.1kHz
// sample rate, of the reference pitch of a drumset key.
func DrumsetIndexReferenceDelta(index int) float64 {
	return FrequencyFromPitch(float64(SpectrumBasePitch+index*6)) / 44100.0
}

// DrumsetIndexToSpectrumOctave is the lowest octave a drumset spectrum is
// drawn from.
func DrumsetIndexToSpectrumOctave(index int) float64 {
	return 15 + math.Log2(DrumsetIndexReferenceDelta(index))
}

// PulseWidthRatio converts a pulse width setting to a duty ratio in (0, 0.5].
func PulseWidthRatio(setting float64) float64 {
	return setting / (PulseWidthRange * 2)
}

// NoteSizeToVolumeMult maps a note size (0..3) to a volume multiplier.
func NoteSizeToVolumeMult(size float64) float64 {
	return math.Pow(math.Max(0.0, size)/NoteSizeMax, 1.5)
}

// InstrumentVolumeToVolumeMult maps an instrument volume setting to a
// multiplier; the lowest setting is silent.
func InstrumentVolumeToVolumeMult(volume int) float64 {
	if volume <= -VolumeRange/2 {
		return 0
	}
	return math.Pow(2, VolumeLogScale*float64(volume))
}

// OperatorAmplitudeCurve maps an FM amplitude setting to a linear amplitude.
func OperatorAmplitudeCurve(amplitude float64) float64 {
	return (math.Pow(16.0, amplitude/15.0) - 1.0) / 15.0
}

// ChordExpression is the volume of each tone when n tones share a chord.
func ChordExpression(chordSize float64) float64 {
	return 1.0 / ((chordSize-1)*0.25 + 1.0)
}
