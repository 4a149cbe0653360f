package synth

import (
	"math"

	"github.com/olivierh59500/beepsynth/pkg/song"
)

// EnvelopeComputer tracks how long a tone's note has sounded and evaluates
// the instrument's envelopes at the start and end of each tick. Values for
// the same target multiply.
type EnvelopeComputer struct {
	NoteSecondsStart float64
	NoteSecondsEnd   float64
	NoteTicksStart   float64
	NoteTicksEnd     float64
	NoteSizeStart    float64
	NoteSizeEnd      float64

	PrevNoteSecondsStart float64
	PrevNoteSecondsEnd   float64
	PrevNoteTicksStart   float64
	PrevNoteTicksEnd     float64

	PrevSlideStart      bool
	PrevSlideEnd        bool
	NextSlideStart      bool
	NextSlideEnd        bool
	PrevSlideRatioStart float64
	PrevSlideRatioEnd   float64
	NextSlideRatioStart float64
	NextSlideRatioEnd   float64

	Starts [song.EnvelopeComputeIndexCount]float64
	Ends   [song.EnvelopeComputeIndexCount]float64

	LowpassCutoffDecayVolumeCompensation float64

	noteSizeFinal     float64
	prevNoteSizeFinal float64
}

// Reset forgets the note history, for a tone starting from silence.
func (e *EnvelopeComputer) Reset() {
	e.NoteSecondsEnd = 0
	e.NoteTicksEnd = 0
	e.noteSizeFinal = song.NoteSizeMax
	e.PrevNoteSecondsEnd = 0
	e.PrevNoteTicksEnd = 0
	e.prevNoteSizeFinal = song.NoteSizeMax
	e.ClearEnvelopes()
}

// ClearEnvelopes sets every target back to the neutral value 1.
func (e *EnvelopeComputer) ClearEnvelopes() {
	for i := range e.Starts {
		e.Starts[i] = 1
		e.Ends[i] = 1
	}
}

// ComputeEnvelopes advances the note clock by one tick and fills Starts
// and Ends. currentPart and tickTimeStart are measured from the start of
// the bar.
func (e *EnvelopeComputer) ComputeEnvelopes(ins *song.Instrument, currentPart int, tickTimeStart, secondsPerTick float64, t *Tone, released bool) {
	transition := ins.GetTransition()
	if t != nil && t.atNoteStart && !transition.Continues && !t.forceContinueAtStart {
		e.PrevNoteSecondsEnd = e.NoteSecondsEnd
		e.PrevNoteTicksEnd = e.NoteTicksEnd
		e.prevNoteSizeFinal = e.noteSizeFinal
		e.NoteSecondsEnd = 0
		e.NoteTicksEnd = 0
	}
	if t != nil && !released {
		if t.note != nil {
			e.noteSizeFinal = float64(t.note.Pins[len(t.note.Pins)-1].Size)
		} else {
			e.noteSizeFinal = song.NoteSizeMax
		}
	}

	tickTimeEnd := tickTimeStart + 1
	noteSecondsStart := e.NoteSecondsEnd
	noteSecondsEnd := noteSecondsStart + secondsPerTick
	noteTicksStart := e.NoteTicksEnd
	noteTicksEnd := noteTicksStart + 1
	prevNoteSecondsStart := e.PrevNoteSecondsEnd
	prevNoteSecondsEnd := prevNoteSecondsStart + secondsPerTick
	prevNoteTicksStart := e.PrevNoteTicksEnd
	prevNoteTicksEnd := prevNoteTicksStart + 1

	const beatsPerTick = 1.0 / (song.TicksPerPart * song.PartsPerBeat)
	beatTimeStart := beatsPerTick * tickTimeStart
	beatTimeEnd := beatsPerTick * tickTimeEnd

	noteSizeStart := e.noteSizeFinal
	noteSizeEnd := e.noteSizeFinal
	prevNoteSize := e.prevNoteSizeFinal
	nextNoteSize := 0.0
	prevSlideStart, prevSlideEnd := false, false
	nextSlideStart, nextSlideEnd := false, false
	prevSlideRatioStart, prevSlideRatioEnd := 0.0, 0.0
	nextSlideRatioStart, nextSlideRatioEnd := 0.0, 0.0

	if t != nil && t.note != nil && !released {
		note := t.note
		endPinIndex := min(max(note.PinIndexAt(currentPart), 1), len(note.Pins)-1)
		startPin := note.Pins[endPinIndex-1]
		endPin := note.Pins[endPinIndex]
		startPinTick := float64((note.Start + startPin.Time) * song.TicksPerPart)
		endPinTick := float64((note.Start + endPin.Time) * song.TicksPerPart)
		ratioStart := (tickTimeStart - startPinTick) / (endPinTick - startPinTick)
		ratioEnd := (tickTimeEnd - startPinTick) / (endPinTick - startPinTick)
		noteSizeStart = float64(startPin.Size) + float64(endPin.Size-startPin.Size)*ratioStart
		noteSizeEnd = float64(startPin.Size) + float64(endPin.Size-startPin.Size)*ratioEnd

		if transition.Slides {
			noteStartTick := float64(t.noteStartPart * song.TicksPerPart)
			noteEndTick := float64(t.noteEndPart * song.TicksPerPart)
			noteLengthTicks := noteEndTick - noteStartTick
			slideTicks := math.Min(noteLengthTicks*0.5, float64(transition.SlideTicks))
			if t.prevNote != nil && !t.forceContinueAtStart {
				if tickTimeStart-noteStartTick < slideTicks {
					prevSlideStart = true
					prevSlideRatioStart = 0.5 * (1 - (tickTimeStart-noteStartTick)/slideTicks)
				}
				if tickTimeEnd-noteStartTick < slideTicks {
					prevSlideEnd = true
					prevSlideRatioEnd = 0.5 * (1 - (tickTimeEnd-noteStartTick)/slideTicks)
				}
			}
			if t.nextNote != nil && !t.forceContinueAtEnd {
				nextNoteSize = float64(t.nextNote.Pins[0].Size)
				if noteEndTick-tickTimeStart < slideTicks {
					nextSlideStart = true
					nextSlideRatioStart = 0.5 * (1 - (noteEndTick-tickTimeStart)/slideTicks)
				}
				if noteEndTick-tickTimeEnd < slideTicks {
					nextSlideEnd = true
					nextSlideRatioEnd = 0.5 * (1 - (noteEndTick-tickTimeEnd)/slideTicks)
				}
			}
		}
	}

	e.ClearEnvelopes()
	compensation := 1.0
	usedNoteSize := false
	for i := 0; i <= len(ins.Envelopes); i++ {
		var target song.AutomationTarget
		var targetIndex int
		var envelope song.Envelope
		if i == len(ins.Envelopes) {
			if usedNoteSize {
				break
			}
			// Note size drives note volume unless an envelope claims it
			target = song.AutomationTargets[song.TargetNoteVolume]
			targetIndex = 0
			envelope = song.Envelopes[song.EnvelopeIndexNoteSize]
		} else {
			settings := ins.Envelopes[i]
			target = song.AutomationTargets[settings.Target]
			targetIndex = settings.Index
			envelope = song.Envelopes[settings.Envelope]
			if envelope.Type == song.EnvelopeNoteSize {
				usedNoteSize = true
			}
		}
		if target.ComputeIndex < 0 {
			continue
		}
		if target.Effect != song.EffectCount && !ins.Effect(target.Effect) {
			continue
		}
		computeIndex := target.ComputeIndex + song.EnvelopeComputeIndex(targetIndex)

		start := computeEnvelope(envelope, noteSecondsStart, beatTimeStart, noteSizeStart)
		end := computeEnvelope(envelope, noteSecondsEnd, beatTimeEnd, noteSizeEnd)
		if prevSlideStart {
			other := computeEnvelope(envelope, prevNoteSecondsStart, beatTimeStart, prevNoteSize)
			start += (other - start) * prevSlideRatioStart
		}
		if prevSlideEnd {
			other := computeEnvelope(envelope, prevNoteSecondsEnd, beatTimeEnd, prevNoteSize)
			end += (other - end) * prevSlideRatioEnd
		}
		if nextSlideStart {
			other := computeEnvelope(envelope, 0, beatTimeStart, nextNoteSize)
			start += (other - start) * nextSlideRatioStart
		}
		if nextSlideEnd {
			other := computeEnvelope(envelope, 0, beatTimeEnd, nextNoteSize)
			end += (other - end) * nextSlideRatioEnd
		}
		e.Starts[computeIndex] *= start
		e.Ends[computeIndex] *= end

		if target.IsFilter && ins.Effect(song.EffectNoteFilter) {
			points := ins.NoteFilter.Points
			if targetIndex < len(points) && points[targetIndex].Type == song.LowPass {
				compensation = math.Max(compensation, lowpassCutoffDecayVolumeCompensation(envelope))
			}
		}
	}

	e.NoteSecondsStart = noteSecondsStart
	e.NoteSecondsEnd = noteSecondsEnd
	e.NoteTicksStart = noteTicksStart
	e.NoteTicksEnd = noteTicksEnd
	e.NoteSizeStart = noteSizeStart
	e.NoteSizeEnd = noteSizeEnd
	e.PrevNoteSecondsStart = prevNoteSecondsStart
	e.PrevNoteSecondsEnd = prevNoteSecondsEnd
	e.PrevNoteTicksStart = prevNoteTicksStart
	e.PrevNoteTicksEnd = prevNoteTicksEnd
	e.PrevSlideStart = prevSlideStart
	e.PrevSlideEnd = prevSlideEnd
	e.NextSlideStart = nextSlideStart
	e.NextSlideEnd = nextSlideEnd
	e.PrevSlideRatioStart = prevSlideRatioStart
	e.PrevSlideRatioEnd = prevSlideRatioEnd
	e.NextSlideRatioStart = nextSlideRatioStart
	e.NextSlideRatioEnd = nextSlideRatioEnd
	e.LowpassCutoffDecayVolumeCompensation = compensation
}

// computeEnvelope evaluates one envelope curve. seconds is the age of the
// note, beats the position in the bar.
func computeEnvelope(envelope song.Envelope, seconds, beats, noteSize float64) float64 {
	switch envelope.Type {
	case song.EnvelopeNoteSize:
		return song.NoteSizeToVolumeMult(noteSize)
	case song.EnvelopeNone:
		return 1
	case song.EnvelopeTwang:
		return 1 / (1 + seconds*envelope.Speed)
	case song.EnvelopeSwell:
		return 1 - 1/(1+seconds*envelope.Speed)
	case song.EnvelopeTremolo:
		return 0.5 - math.Cos(beats*2*math.Pi*envelope.Speed)*0.5
	case song.EnvelopeTremolo2:
		return 0.75 - math.Cos(beats*2*math.Pi*envelope.Speed)*0.25
	case song.EnvelopePunch:
		return math.Max(1, 2-seconds*10)
	case song.EnvelopeFlare:
		attack := 0.25 / math.Sqrt(envelope.Speed)
		if seconds < attack {
			return seconds / attack
		}
		return 1 / (1 + (seconds-attack)*envelope.Speed)
	case song.EnvelopeDecay:
		return math.Pow(2, -envelope.Speed*seconds)
	}
	panic("synth: unknown envelope type")
}

// lowpassCutoffDecayVolumeCompensation boosts tones whose low-pass cutoff
// falls over time, which would otherwise sound quieter.
func lowpassCutoffDecayVolumeCompensation(envelope song.Envelope) float64 {
	switch envelope.Type {
	case song.EnvelopeDecay:
		return 1.25 + 0.025*envelope.Speed
	case song.EnvelopeTwang:
		return 1 + 0.02*envelope.Speed
	}
	return 1
}
