package synth

import (
	"math"

	"github.com/olivierh59500/beepsynth/pkg/dsp"
	"github.com/olivierh59500/beepsynth/pkg/song"
)

// applyEffects runs the instrument's mono signal through its effects chain
// and adds the stereo result to outL and outR. The input is zeroed on the
// way through so the buffer can be reused by the next instrument.
//
// The chain order is distortion, bitcrusher, EQ, volume, panning, chorus,
// echo and reverb.
func (st *instrumentState) applyEffects(input, outL, outR []float64) {
	useDistortion := st.effects.Has(song.EffectDistortion)
	useBitcrusher := st.effects.Has(song.EffectBitcrusher)
	usePanning := st.effects.Has(song.EffectPanning)
	useChorus := st.effects.Has(song.EffectChorus)
	useEcho := st.effects.Has(song.EffectEcho)
	useReverb := st.effects.Has(song.EffectReverb)

	distortion := st.distortion.value
	distortionDelta := st.distortion.delta
	distortionDrive := st.distortionDrive.value
	distortionDriveDelta := st.distortionDrive.delta

	bitcrusherPhase := st.bitcrusherPhase
	bitcrusherPhaseDelta := st.bitcrusherPhaseDelta.value
	bitcrusherScale := st.bitcrusherScale.value
	bitcrusherFoldLevel := st.bitcrusherFoldLevel.value

	eqFilterVolume := st.eqFilterVolume.value
	eqFilterVolumeDelta := st.eqFilterVolume.delta
	mixVolume := st.mixVolume.value
	mixVolumeDelta := st.mixVolume.delta
	attenuation := st.attenuation.value
	attenuationDelta := st.attenuation.delta

	panningMask := len(st.panningDelayLine) - 1
	panningVolumeL := st.panningVolumeL.value
	panningVolumeR := st.panningVolumeR.value
	panningDelayL := st.panningDelayL.value
	panningDelayR := st.panningDelayR.value

	chorusMask := len(st.chorusDelayLineL) - 1
	chorusVoiceMult := st.chorusVoiceMult.value
	chorusCombined := st.chorusCombined.value
	chorusTaps := st.chorusTapDelays

	echoMask := len(st.echoDelayLineL) - 1
	echoMult := st.echoMult.value
	echoRatio := st.echoDelayRatio

	reverbMask := len(st.reverbDelayLine) - 1
	reverbMult := st.reverbMult.value

	panningStart := st.panningDelayPos
	chorusStart := st.chorusDelayPos
	echoStart := st.echoDelayPos
	reverbStart := st.reverbDelayPos

	for i := range input {
		sample := input[i]
		input[i] = 0

		if useDistortion {
			sample = st.distort(sample*distortionDrive, distortion)
			distortion += distortionDelta
			distortionDrive += distortionDriveDelta
		}

		if useBitcrusher {
			bitcrusherPhase += bitcrusherPhaseDelta
			if bitcrusherPhase < 1 {
				st.bitcrusherPrevInput = sample
				sample = st.bitcrusherCurrentOutput
			} else {
				bitcrusherPhase -= math.Floor(bitcrusherPhase)
				ratio := bitcrusherPhase / bitcrusherPhaseDelta
				lerped := sample + (st.bitcrusherPrevInput-sample)*ratio
				st.bitcrusherPrevInput = sample

				wrapLevel := bitcrusherFoldLevel * 4
				wrapped := math.Mod(math.Mod(lerped+bitcrusherFoldLevel, wrapLevel)+wrapLevel, wrapLevel)
				folded := bitcrusherFoldLevel - math.Abs(bitcrusherFoldLevel*2-wrapped)
				scaled := folded / bitcrusherScale
				if scaled > 0 {
					scaled++
				}
				oldValue := st.bitcrusherCurrentOutput
				newValue := (math.Trunc(scaled) - 0.5) * bitcrusherScale
				sample = oldValue + (newValue-oldValue)*ratio
				st.bitcrusherCurrentOutput = newValue
			}
			bitcrusherPhaseDelta *= st.bitcrusherPhaseDelta.scale
			bitcrusherScale *= st.bitcrusherScale.scale
			bitcrusherFoldLevel *= st.bitcrusherFoldLevel.scale
		}

		for f := 0; f < st.eqFilterCount; f++ {
			sample = st.eqFilters[f].Process(sample)
		}
		sample *= eqFilterVolume * mixVolume
		eqFilterVolume += eqFilterVolumeDelta
		mixVolume += mixVolumeDelta

		sampleL, sampleR := sample, sample
		if usePanning {
			pos := st.panningDelayPos
			st.panningDelayLine[pos] = sample
			sampleL = delayTap(st.panningDelayLine, panningMask, pos, panningDelayL) * panningVolumeL
			sampleR = delayTap(st.panningDelayLine, panningMask, pos, panningDelayR) * panningVolumeR
			st.panningDelayPos = (pos + 1) & panningMask
			panningVolumeL += st.panningVolumeL.delta
			panningVolumeR += st.panningVolumeR.delta
			panningDelayL += st.panningDelayL.delta
			panningDelayR += st.panningDelayR.delta
		}

		if useChorus {
			pos := st.chorusDelayPos
			st.chorusDelayLineL[pos] = sampleL
			st.chorusDelayLineR[pos] = sampleR
			tap0 := delayTap(st.chorusDelayLineL, chorusMask, pos, chorusTaps[0])
			tap1 := delayTap(st.chorusDelayLineL, chorusMask, pos, chorusTaps[1])
			tap2 := delayTap(st.chorusDelayLineL, chorusMask, pos, chorusTaps[2])
			tap3 := delayTap(st.chorusDelayLineR, chorusMask, pos, chorusTaps[3])
			tap4 := delayTap(st.chorusDelayLineR, chorusMask, pos, chorusTaps[4])
			tap5 := delayTap(st.chorusDelayLineR, chorusMask, pos, chorusTaps[5])
			sampleL = chorusCombined * (sampleL + chorusVoiceMult*(tap1-tap0-tap2))
			sampleR = chorusCombined * (sampleR + chorusVoiceMult*(tap4-tap3-tap5))
			st.chorusDelayPos = (pos + 1) & chorusMask
			for k := range chorusTaps {
				chorusTaps[k] += st.chorusTapDeltas[k]
			}
			chorusVoiceMult += st.chorusVoiceMult.delta
			chorusCombined += st.chorusCombined.delta
		}

		if useEcho {
			pos := st.echoDelayPos
			startIndex := (pos - st.echoDelayStart) & echoMask
			endIndex := (pos - st.echoDelayEnd) & echoMask
			startL, startR := st.echoDelayLineL[startIndex], st.echoDelayLineR[startIndex]
			endL, endR := st.echoDelayLineL[endIndex], st.echoDelayLineR[endIndex]
			tapL := (startL + (endL-startL)*echoRatio) * echoMult
			tapR := (startR + (endR-startR)*echoRatio) * echoMult

			st.echoShelfSampleL = st.echoShelfB0*tapL + st.echoShelfB1*st.echoShelfPrevInputL - st.echoShelfA1*st.echoShelfSampleL
			st.echoShelfSampleR = st.echoShelfB0*tapR + st.echoShelfB1*st.echoShelfPrevInputR - st.echoShelfA1*st.echoShelfSampleR
			st.echoShelfPrevInputL = tapL
			st.echoShelfPrevInputR = tapR
			sampleL += st.echoShelfSampleL
			sampleR += st.echoShelfSampleR

			st.echoDelayLineL[pos] = sampleL
			st.echoDelayLineR[pos] = sampleR
			st.echoDelayPos = (pos + 1) & echoMask
			echoRatio = math.Min(1, echoRatio+st.echoDelayRatioDelta)
			echoMult += st.echoMult.delta
		}

		if useReverb {
			line := st.reverbDelayLine
			pos0 := st.reverbDelayPos
			pos1 := (pos0 + reverbTap1) & reverbMask
			pos2 := (pos0 + reverbTap2) & reverbMask
			pos3 := (pos0 + reverbTap3) & reverbMask
			s0, s1, s2, s3 := line[pos0], line[pos1], line[pos2], line[pos3]

			temp0 := -(s0 + sampleL) + s1
			temp1 := -(s0 + sampleR) - s1
			temp2 := -s2 + s3
			temp3 := -s2 - s3
			in := [4]float64{
				(temp0 + temp2) * reverbMult,
				(temp1 + temp3) * reverbMult,
				(temp0 - temp2) * reverbMult,
				(temp1 - temp3) * reverbMult,
			}
			for k := range in {
				st.reverbShelfSamples[k] = st.reverbShelfB0*in[k] + st.reverbShelfB1*st.reverbShelfPrevInputs[k] - st.reverbShelfA1*st.reverbShelfSamples[k]
				st.reverbShelfPrevInputs[k] = in[k]
			}
			line[pos1] = st.reverbShelfSamples[0]
			line[pos2] = st.reverbShelfSamples[1]
			line[pos3] = st.reverbShelfSamples[2]
			line[pos0] = st.reverbShelfSamples[3]
			st.reverbDelayPos = (pos0 + 1) & reverbMask

			sampleL += s1 + s2 + s3
			sampleR += s0 + s2 - s3
			reverbMult += st.reverbMult.delta
		}

		outL[i] += sampleL * attenuation
		outR[i] += sampleR * attenuation
		attenuation += attenuationDelta
	}

	st.distortion.value = distortion
	st.distortionDrive.value = distortionDrive
	st.bitcrusherPhase = bitcrusherPhase
	st.bitcrusherPhaseDelta.value = bitcrusherPhaseDelta
	st.bitcrusherScale.value = bitcrusherScale
	st.bitcrusherFoldLevel.value = bitcrusherFoldLevel
	st.eqFilterVolume.value = eqFilterVolume
	st.mixVolume.value = mixVolume
	st.attenuation.value = attenuation
	st.panningVolumeL.value = panningVolumeL
	st.panningVolumeR.value = panningVolumeR
	st.panningDelayL.value = panningDelayL
	st.panningDelayR.value = panningDelayR
	st.chorusTapDelays = chorusTaps
	st.chorusVoiceMult.value = chorusVoiceMult
	st.chorusCombined.value = chorusCombined
	st.echoDelayRatio = echoRatio
	st.echoMult.value = echoMult
	st.reverbMult.value = reverbMult

	// Flush denormals from everything with feedback
	n := len(input)
	for f := 0; f < st.eqFilterCount; f++ {
		st.eqFilters[f].Sanitize()
	}
	st.bitcrusherPrevInput = dsp.Sanitize(st.bitcrusherPrevInput)
	st.bitcrusherCurrentOutput = dsp.Sanitize(st.bitcrusherCurrentOutput)
	for k := range st.distortionFractional {
		st.distortionFractional[k] = dsp.Sanitize(st.distortionFractional[k])
	}
	st.distortionPrevInput = dsp.Sanitize(st.distortionPrevInput)
	if usePanning {
		sanitizeRing(st.panningDelayLine, panningStart, n)
		st.panningDirty = true
	}
	if useChorus {
		sanitizeRing(st.chorusDelayLineL, chorusStart, n)
		sanitizeRing(st.chorusDelayLineR, chorusStart, n)
		st.chorusDirty = true
	}
	if useEcho {
		st.echoShelfSampleL = dsp.Sanitize(st.echoShelfSampleL)
		st.echoShelfSampleR = dsp.Sanitize(st.echoShelfSampleR)
		sanitizeRing(st.echoDelayLineL, echoStart, n)
		sanitizeRing(st.echoDelayLineR, echoStart, n)
		st.echoDirty = true
	}
	if useReverb {
		for k := range st.reverbShelfSamples {
			st.reverbShelfSamples[k] = dsp.Sanitize(st.reverbShelfSamples[k])
		}
		// Reverb writes ahead of its head, so sweep each tap's span
		for _, offset := range [4]int{0, reverbTap1, reverbTap2, reverbTap3} {
			sanitizeRing(st.reverbDelayLine, reverbStart+offset, n)
		}
		st.reverbDirty = true
	}
}

// distort soft clips x and three fractionally delayed copies of it, and
// averages them.
func (st *instrumentState) distort(x, d float64) float64 {
	reverse := 1 - d
	out := x / (reverse*math.Abs(x) + d)
	for k, g := range distortionFractionalDelayG {
		frac := g*x + st.distortionPrevInput - g*st.distortionFractional[k]
		st.distortionFractional[k] = frac
		out += frac / (reverse*math.Abs(frac) + d)
	}
	st.distortionPrevInput = x
	return out * 0.25 * song.DistortionBaseVolume
}

// delayTap reads a ring buffer delay samples behind pos, interpolating
// between neighbours.
func delayTap(line []float64, mask, pos int, delay float64) float64 {
	at := float64(pos) - delay
	lower := math.Floor(at)
	i := int(lower)
	a := line[i&mask]
	b := line[(i+1)&mask]
	return a + (b-a)*(at-lower)
}

// sanitizeRing flushes count samples of a ring buffer starting at from.
func sanitizeRing(line []float64, from, count int) {
	mask := len(line) - 1
	count = min(count, len(line))
	for i := 0; i < count; i++ {
		j := (from + i) & mask
		line[j] = dsp.Sanitize(line[j])
	}
}
