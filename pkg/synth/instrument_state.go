package synth

import (
	"math"

	"github.com/olivierh59500/beepsynth/pkg/dsp"
	"github.com/olivierh59500/beepsynth/pkg/song"
)

// Reverb feedback delay network taps, in samples from the write head.
const (
	reverbTap1 = 3041
	reverbTap2 = 6426
	reverbTap3 = 10907
)

// Chorus taps: three per side, as multiples of the chorus range, and their
// LFO phase offsets in radians.
var (
	chorusTapOffsets = [6]float64{1.51, 2.10, 3.35, 1.47, 2.15, 3.25}
	chorusTapPhases  = [6]float64{0, 2.1, 4.2, 3.2, 5.3, 1.0}
)

// distortionFractionalDelayG holds the all-pass gains that read the input a
// quarter, half and three quarters of a sample late.
var distortionFractionalDelayG = func() (g [3]float64) {
	var c dsp.FilterCoefficients
	for i, d := range [3]float64{0.25, 0.5, 0.75} {
		c.AllPass1stOrderFractionalDelay(d)
		g[i] = c.B[0]
	}
	return g
}()

// ramp is a value gliding linearly to a target over one tick.
type ramp struct {
	value, delta, target float64
}

// load glides from the previous target to target, or jumps there.
func (r *ramp) load(target, samplesPerTick float64, jump bool) {
	start := r.target
	if jump {
		start = target
	}
	r.value = start
	r.delta = (target - start) / samplesPerTick
	r.target = target
}

// expRamp is a strictly positive value gliding geometrically.
type expRamp struct {
	value, scale, target float64
}

func (r *expRamp) load(target, samplesPerTick float64, jump bool) {
	start := r.target
	if jump || start <= 0 {
		start = target
	}
	r.value = start
	r.scale = math.Pow(target/start, 1/samplesPerTick)
	r.target = target
}

// instrumentState is the runtime side of one instrument of one channel: its
// tones and the state of its effects chain.
type instrumentState struct {
	activeTones   dsp.Deque[toneID]
	releasedTones dsp.Deque[toneID]
	liveTones     dsp.Deque[toneID]

	// Ring out bookkeeping. An instrument stays awake after its last tone
	// until its effect tails have died down.
	awake                   bool
	fresh                   bool
	flushedSamples          int
	ringOutSamples          int
	deactivateAfterThisTick bool
	attenuation             ramp

	effects song.EffectMask

	mixVolume ramp

	eqFilters      [song.FilterMaxPoints]dsp.DynamicBiquad
	eqCoefficients [song.FilterMaxPoints]dsp.FilterCoefficients
	eqFilterCount  int
	eqFilterVolume ramp

	distortion           ramp
	distortionDrive      ramp
	distortionFractional [3]float64
	distortionPrevInput  float64

	bitcrusherPhase         float64
	bitcrusherPhaseDelta    expRamp
	bitcrusherScale         expRamp
	bitcrusherFoldLevel     expRamp
	bitcrusherPrevInput     float64
	bitcrusherCurrentOutput float64

	panningDelayLine []float64
	panningDelayPos  int
	panningVolumeL   ramp
	panningVolumeR   ramp
	panningDelayL    ramp
	panningDelayR    ramp

	chorusDelayLineL []float64
	chorusDelayLineR []float64
	chorusDelayPos   int
	chorusPhase      float64
	chorusTapDelays  [6]float64
	chorusTapDeltas  [6]float64
	chorusVoiceMult  ramp
	chorusCombined   ramp

	echoDelayLineL      []float64
	echoDelayLineR      []float64
	echoDelayPos        int
	echoDelayStart      int
	echoDelayEnd        int
	echoDelayRatio      float64
	echoDelayRatioDelta float64
	echoMult            ramp
	echoShelfA1         float64
	echoShelfB0         float64
	echoShelfB1         float64
	echoShelfSampleL    float64
	echoShelfSampleR    float64
	echoShelfPrevInputL float64
	echoShelfPrevInputR float64

	reverbDelayLine       []float64
	reverbDelayPos        int
	reverbMult            ramp
	reverbShelfA1         float64
	reverbShelfB0         float64
	reverbShelfB1         float64
	reverbShelfSamples    [4]float64
	reverbShelfPrevInputs [4]float64

	// Delay lines written since the last reset
	panningDirty bool
	chorusDirty  bool
	echoDirty    bool
	reverbDirty  bool
}

func newInstrumentState() *instrumentState {
	st := &instrumentState{}
	st.resetAllEffects()
	return st
}

// toneCount is the number of tones feeding the instrument this tick.
func (st *instrumentState) toneCount() int {
	return st.activeTones.Len() + st.releasedTones.Len() + st.liveTones.Len()
}

// compute loads the effect parameters of ins for the coming tick.
func (st *instrumentState) compute(ins *song.Instrument, sampleRate float64, key, samplesPerTick int) {
	spt := float64(samplesPerTick)
	jump := st.fresh
	st.fresh = false
	st.effects = ins.Effects

	st.allocateNecessaryBuffers(ins, sampleRate, samplesPerTick)

	st.mixVolume.load(song.InstrumentVolumeToVolumeMult(ins.Volume), spt, jump)
	if st.deactivateAfterThisTick {
		st.attenuation.load(0, spt, jump)
	} else {
		st.attenuation.load(1, spt, jump)
	}

	// EQ. Coefficients glide from last tick's when the point count matches.
	eqVolume := 1.0
	points := ins.EQFilter.Points
	matching := !jump && len(points) == st.eqFilterCount
	for i, point := range points {
		var end dsp.FilterCoefficients
		filterCoefficients(&end, point, sampleRate, 1, 1)
		start := end
		if matching {
			start = st.eqCoefficients[i]
		} else {
			st.eqFilters[i].Reset()
		}
		st.eqFilters[i].LoadCoefficientsWithGradient(&start, &end, 1/spt, point.Type == song.LowPass)
		st.eqCoefficients[i] = end
		eqVolume *= point.VolumeCompensationMult()
	}
	st.eqFilterCount = len(points)
	st.eqFilterVolume.load(eqVolume, spt, jump)

	if ins.Effect(song.EffectDistortion) {
		slider := math.Min(1, float64(ins.Distortion)/(song.DistortionRange-1))
		d := 1 - 0.895*(math.Pow(20, slider)-1)/19
		st.distortion.load(d*d, spt, jump)
		st.distortionDrive.load((1+2*slider)/song.DistortionBaseVolume, spt, jump)
	}

	if ins.Effect(song.EffectBitcrusher) {
		basePitch := float64(song.Keys[key].BasePitch)
		freq := song.FrequencyFromPitch(basePitch+60) * math.Pow(2, float64(song.BitcrusherFreqRange-1-ins.BitcrusherFreq)*song.BitcrusherOctaveStep)
		st.bitcrusherPhaseDelta.load(math.Min(1, freq/sampleRate), spt, jump)
		q := float64(ins.BitcrusherQuantization)
		st.bitcrusherScale.load(song.BitcrusherBaseVolume*math.Pow(2, q-song.BitcrusherQuantizationRange/2), spt, jump)
		st.bitcrusherFoldLevel.load(2*song.BitcrusherBaseVolume*math.Pow(1.5, song.BitcrusherQuantizationRange-1-q), spt, jump)
	}

	if ins.Effect(song.EffectPanning) {
		pan := math.Max(-1, math.Min(1, float64(ins.Pan-song.PanCenter)/song.PanCenter))
		maxDelay := song.PanDelaySecondsMax * sampleRate
		st.panningVolumeL.load(math.Cos((1+pan)*math.Pi*0.25)*1.414, spt, jump)
		st.panningVolumeR.load(math.Cos((1-pan)*math.Pi*0.25)*1.414, spt, jump)
		st.panningDelayL.load(math.Max(0, pan)*maxDelay, spt, jump)
		st.panningDelayR.load(math.Max(0, -pan)*maxDelay, spt, jump)
	}

	if ins.Effect(song.EffectChorus) {
		c := math.Min(1, float64(ins.Chorus)/(song.ChorusRange-1))
		st.chorusVoiceMult.load(c, spt, jump)
		st.chorusCombined.load(1/math.Sqrt(3*c*c+1), spt, jump)
		chorusRange := song.ChorusDelayRange * sampleRate
		angle := 2 * math.Pi / (song.ChorusPeriodSeconds * sampleRate)
		phaseEnd := st.chorusPhase + angle*spt
		for i := range st.chorusTapDelays {
			start := chorusRange * (chorusTapOffsets[i] + math.Sin(st.chorusPhase+chorusTapPhases[i]))
			end := chorusRange * (chorusTapOffsets[i] + math.Sin(phaseEnd+chorusTapPhases[i]))
			st.chorusTapDelays[i] = start
			st.chorusTapDeltas[i] = (end - start) / spt
		}
		st.chorusPhase = math.Mod(phaseEnd, 2*math.Pi)
	}

	if ins.Effect(song.EffectEcho) {
		sustain := float64(ins.EchoSustain) / song.EchoSustainRange
		st.echoMult.load(math.Min(1, math.Pow(sustain, 1.1))*0.9, spt, jump)
		delay := echoDelaySamples(ins, samplesPerTick)
		if jump {
			st.echoDelayStart = delay
		} else {
			st.echoDelayStart = st.echoDelayEnd
		}
		st.echoDelayEnd = delay
		st.echoDelayRatio = 0
		st.echoDelayRatioDelta = 1 / spt
		var shelf dsp.FilterCoefficients
		shelf.HighShelf1stOrder(2*math.Pi*song.EchoShelfHz/sampleRate, song.EchoShelfGain)
		st.echoShelfA1 = shelf.A[1]
		st.echoShelfB0 = shelf.B[0]
		st.echoShelfB1 = shelf.B[1]
	}

	if ins.Effect(song.EffectReverb) {
		st.reverbMult.load(math.Min(1, math.Pow(float64(ins.Reverb)/song.ReverbRange, 0.667))*0.425, spt, jump)
		var shelf dsp.FilterCoefficients
		shelf.HighShelf1stOrder(2*math.Pi*song.ReverbShelfHz/sampleRate, song.ReverbShelfGain)
		st.reverbShelfA1 = shelf.A[1]
		st.reverbShelfB0 = shelf.B[0]
		st.reverbShelfB1 = shelf.B[1]
	}

	st.ringOutSamples = st.estimateRingOut(sampleRate)
}

func echoDelaySamples(ins *song.Instrument, samplesPerTick int) int {
	return (ins.EchoDelay + 1) * song.EchoDelayStepTicks * samplesPerTick
}

// allocateNecessaryBuffers makes sure every enabled delay line is long
// enough. Lines that grow keep their history.
func (st *instrumentState) allocateNecessaryBuffers(ins *song.Instrument, sampleRate float64, samplesPerTick int) {
	if ins.Effect(song.EffectPanning) {
		size := fittingPowerOfTwo(int(math.Ceil(song.PanDelaySecondsMax*sampleRate)) + 2)
		if len(st.panningDelayLine) < size {
			st.panningDelayLine, st.panningDelayPos = growRing(st.panningDelayLine, st.panningDelayPos, size)
		}
	}
	if ins.Effect(song.EffectChorus) {
		maxOffset := 0.0
		for _, o := range chorusTapOffsets {
			maxOffset = math.Max(maxOffset, o)
		}
		size := fittingPowerOfTwo(int(math.Ceil(song.ChorusDelayRange*sampleRate*(maxOffset+1))) + 2)
		if len(st.chorusDelayLineL) < size {
			pos := st.chorusDelayPos
			st.chorusDelayLineL, st.chorusDelayPos = growRing(st.chorusDelayLineL, pos, size)
			st.chorusDelayLineR, _ = growRing(st.chorusDelayLineR, pos, size)
		}
	}
	if ins.Effect(song.EffectEcho) {
		needed := max(echoDelaySamples(ins, samplesPerTick), st.echoDelayEnd) + 1
		if len(st.echoDelayLineL) < needed {
			size := fittingPowerOfTwo(needed)
			pos := st.echoDelayPos
			st.echoDelayLineL, st.echoDelayPos = growRing(st.echoDelayLineL, pos, size)
			st.echoDelayLineR, _ = growRing(st.echoDelayLineR, pos, size)
		}
	}
	if ins.Effect(song.EffectReverb) && st.reverbDelayLine == nil {
		st.reverbDelayLine = make([]float64, song.ReverbDelayBufferSize)
		st.reverbDelayPos = 0
	}
}

// growRing copies a ring buffer into a larger one, oldest sample first, and
// returns it with the new write position.
func growRing(line []float64, pos, size int) ([]float64, int) {
	grown := make([]float64, size)
	if len(line) == 0 {
		return grown, 0
	}
	mask := len(line) - 1
	for i := range line {
		grown[i] = line[(pos+i)&mask]
	}
	return grown, len(line)
}

// estimateRingOut returns how many silent samples the effects need before
// their output is negligible. Feedback effects are given eight half lives.
func (st *instrumentState) estimateRingOut(sampleRate float64) int {
	ringOut := sampleRate / 256
	if st.effects.Has(song.EffectPanning) {
		ringOut = math.Max(ringOut, float64(len(st.panningDelayLine)))
	}
	if st.effects.Has(song.EffectChorus) {
		ringOut = math.Max(ringOut, float64(len(st.chorusDelayLineL)))
	}
	if st.effects.Has(song.EffectEcho) {
		delay := float64(max(st.echoDelayStart, st.echoDelayEnd))
		ringOut = math.Max(ringOut, delay+halfLife(delay, st.echoMult.target)*8)
	}
	if st.effects.Has(song.EffectReverb) {
		// The unnormalized Hadamard matrix doubles the loop gain
		const averageDelay = song.ReverbDelayBufferSize / 4
		ringOut = math.Max(ringOut, song.ReverbDelayBufferSize+halfLife(averageDelay, 2*st.reverbMult.target)*8)
	}
	return int(math.Ceil(ringOut))
}

// halfLife is the time for a feedback loop of the given delay and gain to
// lose half its level.
func halfLife(delay, mult float64) float64 {
	if mult <= 0 {
		return 0
	}
	mult = math.Min(mult, 0.999)
	return delay * math.Log(0.5) / math.Log(mult)
}

// beginTick updates the ring out state before the effects are computed.
func (st *instrumentState) beginTick() {
	if st.toneCount() > 0 {
		if !st.awake {
			st.fresh = true
		}
		st.awake = true
		st.flushedSamples = 0
		st.deactivateAfterThisTick = false
		return
	}
	if st.awake && st.flushedSamples >= st.ringOutSamples {
		st.deactivateAfterThisTick = true
	}
}

// endTick counts silent samples and puts the instrument to sleep once its
// tail has been faded out.
func (st *instrumentState) endTick(samplesPerTick int) {
	if !st.awake {
		return
	}
	if st.toneCount() == 0 {
		st.flushedSamples += samplesPerTick
	}
	if st.deactivateAfterThisTick {
		st.resetAllEffects()
	}
}

// resetAllEffects silences the instrument: filter history is cleared and
// every delay line that was written is zeroed.
func (st *instrumentState) resetAllEffects() {
	st.awake = false
	st.fresh = true
	st.flushedSamples = 0
	st.deactivateAfterThisTick = false
	st.attenuation = ramp{value: 1, target: 1}

	for i := range st.eqFilters {
		st.eqFilters[i].Reset()
	}
	st.eqFilterCount = 0
	st.distortionFractional = [3]float64{}
	st.distortionPrevInput = 0
	st.bitcrusherPhase = 1
	st.bitcrusherPrevInput = 0
	st.bitcrusherCurrentOutput = 0
	st.echoShelfSampleL, st.echoShelfSampleR = 0, 0
	st.echoShelfPrevInputL, st.echoShelfPrevInputR = 0, 0
	st.reverbShelfSamples = [4]float64{}
	st.reverbShelfPrevInputs = [4]float64{}

	if st.panningDirty {
		clear(st.panningDelayLine)
		st.panningDirty = false
	}
	if st.chorusDirty {
		clear(st.chorusDelayLineL)
		clear(st.chorusDelayLineR)
		st.chorusDirty = false
	}
	if st.echoDirty {
		clear(st.echoDelayLineL)
		clear(st.echoDelayLineR)
		st.echoDirty = false
	}
	if st.reverbDirty {
		clear(st.reverbDelayLine)
		st.reverbDirty = false
	}
	st.chorusPhase = 0
}
