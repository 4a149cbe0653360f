package synth

import (
	"math"

	"github.com/olivierh59500/beepsynth/pkg/dsp"
	"github.com/olivierh59500/beepsynth/pkg/song"
)

// Drumsets get an extra low-pass point at 8kHz with half gain, shaped by the
// drum's own envelope.
var drumsetFilterPoint = song.FilterControlPoint{Type: song.LowPass, Freq: 28, Gain: 5}

// computeTone refreshes every per-sample ramp of t for the coming tick.
// Nothing here depends on how the tick is later split into runs.
func (s *Synth) computeTone(channel, samplesPerTick int, t *Tone, released, shouldFadeOutFast bool) {
	ins := s.song.Channels[channel].Instruments[t.instrumentIndex]
	isNoiseChannel := s.song.IsNoiseChannel(channel)
	transition := ins.GetTransition()
	chord := ins.GetChord()
	spt := float64(samplesPerTick)
	sampleTime := 1 / s.sampleRate
	secondsPerTick := spt * sampleTime

	currentPart := s.beat*song.PartsPerBeat + s.part
	tickTimeStart := float64(currentPart*song.TicksPerPart + s.tick)
	tickTimeEnd := tickTimeStart + 1

	for i := range t.phaseDeltas {
		t.phaseDeltas[i] = 0
		t.phaseDeltaScales[i] = 1
		t.operatorExpressions[i] = 0
		t.operatorExpressionDeltas[i] = 0
	}
	t.expression = 0
	t.expressionDelta = 0

	env := &t.envelopeComputer
	env.ComputeEnvelopes(ins, currentPart, tickTimeStart, secondsPerTick, t, released)
	starts := &env.Starts
	ends := &env.Ends

	var basePitch, referencePitch, pitchDamping, baseExpression float64
	keyPitch := float64(song.Keys[s.song.Key].BasePitch)
	switch ins.Type {
	case song.Chip:
		basePitch, referencePitch, pitchDamping = keyPitch, 16, 48
		baseExpression = song.ChipBaseExpression * song.ChipWaves[ins.ChipWave].Expression
	case song.Harmonics:
		basePitch, referencePitch, pitchDamping = keyPitch, 16, 48
		baseExpression = song.HarmonicsBaseExpression
	case song.PWM:
		basePitch, referencePitch, pitchDamping = keyPitch, 16, 48
		baseExpression = song.PWMBaseExpression
	case song.PickedString:
		basePitch, referencePitch, pitchDamping = keyPitch, 16, 48
		baseExpression = song.PickedStringBaseExpression
	case song.FM:
		basePitch, referencePitch, pitchDamping = keyPitch, 16, 48
		baseExpression = song.FMBaseExpression
	case song.Noise:
		noise := song.ChipNoises[ins.ChipNoise]
		basePitch, referencePitch = noise.BasePitch, noise.BasePitch
		pitchDamping = 60
		if noise.IsSoft {
			pitchDamping = 24
		}
		baseExpression = song.NoiseBaseExpression * noise.Expression
	case song.Spectrum:
		basePitch, referencePitch, pitchDamping = keyPitch, song.SpectrumBasePitch, 28
		baseExpression = song.SpectrumBaseExpression
		if isNoiseChannel {
			basePitch = song.SpectrumBasePitch
			baseExpression *= 2
		}
	case song.Drumset:
		basePitch, referencePitch, pitchDamping = song.SpectrumBasePitch, song.SpectrumBasePitch, 48
		baseExpression = song.DrumsetBaseExpression
	default:
		panic("synth: unknown instrument type " + ins.Type.String())
	}
	intervalScale := 1.0
	if isNoiseChannel {
		intervalScale = song.NoiseInterval
	}

	intervalStart, intervalEnd := 0.0, 0.0
	fadeExpressionStart, fadeExpressionEnd := 1.0, 1.0
	chordExpression := 1.0
	if !chord.SingleTone {
		chordExpression = song.ChordExpression(float64(t.chordSize))
	}

	fadeOutTicks := ins.GetFadeOutTicks()
	switch {
	case released:
		ticks := math.Abs(float64(fadeOutTicks))
		sinceStart := float64(t.ticksSinceReleased)
		sinceEnd := sinceStart + 1
		intervalStart, intervalEnd = t.lastInterval, t.lastInterval
		fadeExpressionStart = t.lastFadeExpression * song.NoteSizeToVolumeMult((1-sinceStart/ticks)*song.NoteSizeMax)
		fadeExpressionEnd = t.lastFadeExpression * song.NoteSizeToVolumeMult((1-sinceEnd/ticks)*song.NoteSizeMax)
		if shouldFadeOutFast {
			fadeExpressionEnd = 0
		}
	case t.note == nil:
		// Live input holds its pitch until it is released
		t.lastInterval = 0
		t.ticksSinceReleased = 0
	default:
		note := t.note
		endPinIndex := min(max(note.PinIndexAt(currentPart), 1), len(note.Pins)-1)
		startPin := note.Pins[endPinIndex-1]
		endPin := note.Pins[endPinIndex]
		pinStart := float64((note.Start + startPin.Time) * song.TicksPerPart)
		pinEnd := float64((note.Start + endPin.Time) * song.TicksPerPart)
		ratioStart := (tickTimeStart - pinStart) / (pinEnd - pinStart)
		ratioEnd := (tickTimeEnd - pinStart) / (pinEnd - pinStart)
		intervalStart = float64(startPin.Interval) + float64(endPin.Interval-startPin.Interval)*ratioStart
		intervalEnd = float64(startPin.Interval) + float64(endPin.Interval-startPin.Interval)*ratioEnd
		t.lastInterval = float64(note.LastInterval())
		t.ticksSinceReleased = 0

		if transition.Slides {
			lastInterval := float64(note.LastInterval())
			if prev := t.prevNote; prev != nil {
				prevPitch := float64(prev.Pitches[min(t.prevNotePitchIndex, len(prev.Pitches)-1)] + prev.LastInterval())
				diff := prevPitch - float64(t.pitches[0])
				if env.PrevSlideStart {
					intervalStart += diff * env.PrevSlideRatioStart
				}
				if env.PrevSlideEnd {
					intervalEnd += diff * env.PrevSlideRatioEnd
				}
			}
			if next := t.nextNote; next != nil {
				nextPitch := float64(next.Pitches[min(t.nextNotePitchIndex, len(next.Pitches)-1)])
				diff := nextPitch - (float64(t.pitches[0]) + lastInterval)
				if env.NextSlideStart {
					intervalStart += diff * env.NextSlideRatioStart
				}
				if env.NextSlideEnd {
					intervalEnd += diff * env.NextSlideRatioEnd
				}
			}
		}

		// A negative fade out ends the note early unless another note picks
		// up the tone
		continuesSeamlessly := t.forceContinueAtEnd || (transition.IsSeamless && t.nextNote != nil)
		if fadeOutTicks < 0 && !continuesSeamlessly {
			noteEndTick := float64(t.noteEndPart * song.TicksPerPart)
			ticks := float64(-fadeOutTicks)
			fadeExpressionStart *= math.Max(0, math.Min(1, (noteEndTick-tickTimeStart)/ticks))
			fadeExpressionEnd *= math.Max(0, math.Min(1, (noteEndTick-tickTimeEnd)/ticks))
		}
	}

	if !released {
		if fadeIn := ins.GetFadeInSeconds(); fadeIn > 0 {
			fadeExpressionStart *= math.Min(1, env.NoteSecondsStart/fadeIn)
			fadeExpressionEnd *= math.Min(1, env.NoteSecondsEnd/fadeIn)
		}
		t.lastFadeExpression = fadeExpressionEnd
	}

	if ins.Type == song.Drumset && (!released || t.drumsetPitch < 0) {
		t.drumsetPitch = t.pitches[0]
		if t.note != nil {
			t.drumsetPitch += t.note.MainInterval()
		}
		t.drumsetPitch = min(max(t.drumsetPitch, 0), song.DrumCount-1)
	}

	if ins.Effect(song.EffectPitchShift) {
		shift := float64(ins.PitchShift - song.PitchShiftCenter)
		intervalStart += shift * starts[song.PitchShiftIndex]
		intervalEnd += shift * ends[song.PitchShiftIndex]
	}
	if ins.Effect(song.EffectDetune) {
		detune := float64(ins.Detune) / 100
		intervalStart += detune * starts[song.DetuneIndex]
		intervalEnd += detune * ends[song.DetuneIndex]
	}
	if ins.Effect(song.EffectVibrato) {
		vibrato := ins.GetVibrato()
		vibratoStart := vibrato.Amplitude * vibratoLFO(vibrato, env.NoteSecondsStart) * starts[song.VibratoDepthIndex]
		vibratoEnd := vibrato.Amplitude * vibratoLFO(vibrato, env.NoteSecondsEnd) * ends[song.VibratoDepthIndex]
		if vibrato.DelayTicks > 0 {
			// Fade the vibrato in over two ticks once the delay has passed
			delay := float64(vibrato.DelayTicks)
			vibratoStart *= math.Max(0, math.Min(1, 1-(delay-env.NoteTicksStart)/2))
			vibratoEnd *= math.Max(0, math.Min(1, 1-(delay-env.NoteTicksEnd)/2))
		}
		intervalStart += vibratoStart
		intervalEnd += vibratoEnd
	}

	// Note filters
	noteFilterExpression := env.LowpassCutoffDecayVolumeCompensation
	t.noteFilterCount = 0
	if ins.Effect(song.EffectNoteFilter) {
		var startCoeffs, endCoeffs dsp.FilterCoefficients
		for i, point := range ins.NoteFilter.Points {
			freqStart := starts[song.NoteFilterAllFreqs] * starts[song.NoteFilterFreq0+song.EnvelopeComputeIndex(i)]
			freqEnd := ends[song.NoteFilterAllFreqs] * ends[song.NoteFilterFreq0+song.EnvelopeComputeIndex(i)]
			peakStart := starts[song.NoteFilterGain0+song.EnvelopeComputeIndex(i)]
			peakEnd := ends[song.NoteFilterGain0+song.EnvelopeComputeIndex(i)]
			filterCoefficients(&startCoeffs, point, s.sampleRate, freqStart, peakStart)
			filterCoefficients(&endCoeffs, point, s.sampleRate, freqEnd, peakEnd)
			t.noteFilters[t.noteFilterCount].LoadCoefficientsWithGradient(&startCoeffs, &endCoeffs, 1/spt, point.Type == song.LowPass)
			t.noteFilterCount++
			noteFilterExpression *= point.VolumeCompensationMult()
		}
	}
	if ins.Type == song.Drumset {
		drumEnvelope := song.Envelopes[ins.Drumset[t.drumsetPitch].Envelope]
		noteFilterExpression *= lowpassCutoffDecayVolumeCompensation(drumEnvelope)
		const beatsPerTick = 1.0 / (song.TicksPerPart * song.PartsPerBeat)
		drumStart := computeEnvelope(drumEnvelope, env.NoteSecondsStart, beatsPerTick*tickTimeStart, env.NoteSizeStart)
		drumEnd := computeEnvelope(drumEnvelope, env.NoteSecondsEnd, beatsPerTick*tickTimeEnd, env.NoteSizeEnd)
		var startCoeffs, endCoeffs dsp.FilterCoefficients
		filterCoefficients(&startCoeffs, drumsetFilterPoint, s.sampleRate, drumStart*(1+drumStart), 1)
		filterCoefficients(&endCoeffs, drumsetFilterPoint, s.sampleRate, drumEnd*(1+drumEnd), 1)
		t.noteFilters[t.noteFilterCount].LoadCoefficientsWithGradient(&startCoeffs, &endCoeffs, 1/spt, drumsetFilterPoint.Type == song.LowPass)
		t.noteFilterCount++
	}

	expressionStart := baseExpression * fadeExpressionStart * chordExpression * starts[song.NoteVolume] * noteFilterExpression
	expressionEnd := baseExpression * fadeExpressionEnd * chordExpression * ends[song.NoteVolume] * noteFilterExpression

	// Arpeggios step through the chord on the rhythm's grid
	arpeggio := (s.part*song.TicksPerPart + s.tick) / song.Rhythms[s.song.Rhythm].TicksPerArpeggio

	if ins.Type == song.FM {
		s.computeOperators(ins, t, chord, arpeggio, basePitch, referencePitch, pitchDamping, intervalScale, intervalStart, intervalEnd, spt)

		feedback := 0.3 * float64(ins.FeedbackAmplitude) / song.FeedbackAmplitudeMax
		t.feedbackMult = feedback * starts[song.FeedbackAmplitudeIndex]
		t.feedbackDelta = (feedback*ends[song.FeedbackAmplitudeIndex] - t.feedbackMult) / spt

		boost := fmSineExpressionBoost(ins)
		expressionStart *= boost
		expressionEnd *= boost
		t.expression = expressionStart
		t.expressionDelta = (expressionEnd - expressionStart) / spt
		t.freshlyAllocated = false
		return
	}

	pitch := float64(t.pitches[0])
	t.specialIntervalMult = 1
	t.intervalExpressionMult = 1
	if t.pitchCount > 1 {
		if chord.CustomInterval {
			index := song.ArpeggioPitchIndex(t.pitchCount-1, s.song.Rhythm, arpeggio)
			offset := float64(t.pitches[1+index] - t.pitches[0])
			t.specialIntervalMult = math.Pow(2, offset/12)
			t.intervalExpressionMult = math.Pow(2, -offset/pitchDamping)
		} else if chord.Arpeggiates {
			pitch = float64(t.pitches[song.ArpeggioPitchIndex(t.pitchCount, s.song.Rhythm, arpeggio)])
		}
	}

	startPitch := basePitch + (pitch+intervalStart)*intervalScale
	endPitch := basePitch + (pitch+intervalEnd)*intervalScale
	freqStart := song.FrequencyFromPitch(startPitch)
	freqEnd := song.FrequencyFromPitch(endPitch)
	expressionStart *= math.Pow(2, -(startPitch-referencePitch)/pitchDamping)
	expressionEnd *= math.Pow(2, -(endPitch-referencePitch)/pitchDamping)

	switch ins.Type {
	case song.Chip, song.Harmonics, song.PickedString:
		unison := song.Unisons[ins.Unison]
		unisonStart := starts[song.UnisonIndex]
		unisonEnd := ends[song.UnisonIndex]
		aStart := math.Pow(2, (unison.Offset+unison.Spread)*unisonStart/12)
		aEnd := math.Pow(2, (unison.Offset+unison.Spread)*unisonEnd/12)
		bStart := math.Pow(2, (unison.Offset-unison.Spread)*unisonStart/12) * t.specialIntervalMult
		bEnd := math.Pow(2, (unison.Offset-unison.Spread)*unisonEnd/12) * t.specialIntervalMult
		t.phaseDeltas[0] = freqStart * sampleTime * aStart
		t.phaseDeltas[1] = freqStart * sampleTime * bStart
		t.phaseDeltaScales[0] = deltaScale(freqStart*aStart, freqEnd*aEnd, spt)
		t.phaseDeltaScales[1] = deltaScale(freqStart*bStart, freqEnd*bEnd, spt)
		t.unisonSign = unison.Sign * t.intervalExpressionMult
		expressionStart *= unison.Expression
		expressionEnd *= unison.Expression

		if ins.Type == song.PickedString {
			sustain := float64(ins.StringSustain) / (song.StringSustainRange - 1)
			decayStart := 1 - math.Min(1, sustain*starts[song.StringSustainIndex])
			decayEnd := 1 - math.Min(1, sustain*ends[song.StringSustainIndex])
			impulse := chipWaves[ins.ChipWave]
			for i := range t.pickedStrings {
				t.pickedStrings[i].update(s.sampleRate, spt, t.phaseDeltas[i], t.phaseDeltaScales[i], decayStart, decayEnd, impulse)
			}
		}
	case song.PWM:
		t.phaseDeltas[0] = freqStart * sampleTime
		t.phaseDeltaScales[0] = deltaScale(freqStart, freqEnd, spt)
		pulseWidth := float64(ins.PulseWidth)
		t.pulseWidth = song.PulseWidthRatio(pulseWidth * starts[song.PulseWidthIndex])
		t.pulseWidthDelta = (song.PulseWidthRatio(pulseWidth*ends[song.PulseWidthIndex]) - t.pulseWidth) / spt
	case song.Noise, song.Spectrum, song.Drumset:
		t.phaseDeltas[0] = freqStart * sampleTime
		t.phaseDeltaScales[0] = deltaScale(freqStart, freqEnd, spt)
		if t.freshlyAllocated {
			s.randomizeNoisePhase(ins, t)
		}
	}

	t.expression = expressionStart
	t.expressionDelta = (expressionEnd - expressionStart) / spt
	t.freshlyAllocated = false
}

// computeOperators sets the phase and amplitude ramps of the four FM
// operators.
func (s *Synth) computeOperators(ins *song.Instrument, t *Tone, chord song.Chord, arpeggio int, basePitch, referencePitch, pitchDamping, intervalScale, intervalStart, intervalEnd, spt float64) {
	starts := &t.envelopeComputer.Starts
	ends := &t.envelopeComputer.Ends
	algorithm := song.Algorithms[ins.Algorithm]
	sampleTime := 1 / s.sampleRate

	arpeggioInterval := 0.0
	if t.pitchCount > 1 && !chord.CustomInterval {
		index := song.ArpeggioPitchIndex(t.pitchCount, s.song.Rhythm, arpeggio)
		arpeggioInterval = float64(t.pitches[index] - t.pitches[0])
	}

	for i := 0; i < song.OperatorCount; i++ {
		carrier := algorithm.AssociatedCarrier[i] - 1
		pitch := t.pitches[0]
		if chord.CustomInterval {
			switch {
			case i < t.pitchCount:
				pitch = t.pitches[i]
			case carrier < t.pitchCount:
				pitch = t.pitches[carrier]
			}
		}
		op := ins.Operators[i]
		freq := song.OperatorFrequencies[op.Frequency]
		interval := song.OperatorCarrierIntervals[carrier] + arpeggioInterval
		startPitch := basePitch + (float64(pitch)+intervalStart)*intervalScale + interval
		endPitch := basePitch + (float64(pitch)+intervalEnd)*intervalScale + interval
		freqStart := (freq.Mult*song.FrequencyFromPitch(startPitch) + freq.HzOffset) * starts[song.OperatorFrequency0+song.EnvelopeComputeIndex(i)]
		freqEnd := (freq.Mult*song.FrequencyFromPitch(endPitch) + freq.HzOffset) * ends[song.OperatorFrequency0+song.EnvelopeComputeIndex(i)]
		t.phaseDeltas[i] = freqStart * sampleTime
		t.phaseDeltaScales[i] = deltaScale(freqStart, freqEnd, spt)

		amplitude := song.OperatorAmplitudeCurve(float64(op.Amplitude)) * freq.AmplitudeSign
		expressionStart := amplitude * starts[song.OperatorAmplitude0+song.EnvelopeComputeIndex(i)]
		expressionEnd := amplitude * ends[song.OperatorAmplitude0+song.EnvelopeComputeIndex(i)]
		if i < algorithm.CarrierCount {
			expressionStart *= math.Pow(2, -(startPitch-referencePitch)/pitchDamping)
			expressionEnd *= math.Pow(2, -(endPitch-referencePitch)/pitchDamping)
		} else {
			// Modulator depth is measured in cycles of phase offset
			expressionStart *= 1.5
			expressionEnd *= 1.5
		}
		t.operatorExpressions[i] = expressionStart
		t.operatorExpressionDeltas[i] = (expressionEnd - expressionStart) / spt
	}
}

// fmSineExpressionBoost makes near-pure sines as loud as brighter FM
// sounds.
func fmSineExpressionBoost(ins *song.Instrument) float64 {
	algorithm := song.Algorithms[ins.Algorithm]
	boost := 1.0
	totalCarrier := 0.0
	for i := 0; i < song.OperatorCount; i++ {
		amplitude := float64(ins.Operators[i].Amplitude)
		if i < algorithm.CarrierCount {
			totalCarrier += song.OperatorAmplitudeCurve(amplitude)
		} else {
			boost *= 1 - math.Min(1, amplitude/song.OperatorAmplitudeMax)
		}
	}
	boost *= (math.Pow(2, 2-1.4*float64(ins.FeedbackAmplitude)/song.FeedbackAmplitudeMax) - 1) / 3
	boost *= 1 - math.Min(1, math.Max(0, totalCarrier-1)/2)
	return 1 + boost*3
}

// randomizeNoisePhase starts a noise tone somewhere random in its table.
// Spectrum tables start at a zero crossing so the attack doesn't click.
func (s *Synth) randomizeNoisePhase(ins *song.Instrument, t *Tone) {
	switch ins.Type {
	case song.Noise:
		t.phases[0] = s.rng.Float64() * song.ChipNoiseLength
		t.noiseSample = 0
	case song.Spectrum:
		wave := spectrumWave(&ins.Spectrum, spectrumLowestOctave)
		t.phases[0] = wrapPhase(findRandomZeroCrossing(s.rng, wave), song.SpectrumNoiseLength)
	case song.Drumset:
		wave := drumsetWave(ins, t.drumsetPitch)
		t.phases[0] = wrapPhase(findRandomZeroCrossing(s.rng, wave), song.SpectrumNoiseLength)
	}
}

func wrapPhase(phase, length float64) float64 {
	for phase >= length {
		phase -= length
	}
	return phase
}

// vibratoLFO sums the preset's sine periods at the given note age.
func vibratoLFO(v song.Vibrato, seconds float64) float64 {
	effect := 0.0
	for _, period := range v.PeriodsSeconds {
		effect += math.Sin(2 * math.Pi * seconds / period)
	}
	return effect
}

// deltaScale is the per-sample factor that takes a phase delta from start
// to end over one tick.
func deltaScale(start, end, samplesPerTick float64) float64 {
	if start <= 0 || end <= 0 {
		return 1
	}
	return math.Pow(end/start, 1/samplesPerTick)
}

// filterCoefficients designs the biquad of one filter control point.
// freqMult and peakMult come from envelopes.
func filterCoefficients(c *dsp.FilterCoefficients, point song.FilterControlPoint, sampleRate, freqMult, peakMult float64) {
	hz := math.Max(song.FilterFreqMinHz, math.Min(point.Hz()*freqMult, math.Min(song.FilterFreqMaxHz, 0.45*sampleRate)))
	radians := 2 * math.Pi * hz / sampleRate
	gain := point.LinearGain(peakMult)
	switch point.Type {
	case song.LowPass:
		c.LowPass2ndOrderButterworth(radians, gain)
	case song.HighPass:
		c.HighPass2ndOrderButterworth(radians, gain)
	case song.Peak:
		c.Peak2ndOrder(radians, gain, 1)
	default:
		panic("synth: unknown filter type")
	}
}
