package synth

import (
	"slices"

	"github.com/olivierh59500/beepsynth/pkg/dsp"
	"github.com/olivierh59500/beepsynth/pkg/song"
)

// noteLinks are the notes surrounding the current position of a channel.
// prev and next are only set when they touch the current note.
type noteLinks struct {
	note, prev, next *song.Note

	prevInOtherBar bool

	// The adjacent note sits in another bar and continues into this one
	forceContinueAtStart bool
	forceContinueAtEnd   bool
}

// determineCurrentActiveTones brings the active tones of every instrument
// of channel in line with the song at the current tick. Tones that are no
// longer needed are released, or freed when they already faded out.
func (s *Synth) determineCurrentActiveTones(channel int, playSong bool) {
	ch := s.song.Channels[channel]
	states := s.channels[channel]
	currentPart := s.beat*song.PartsPerBeat + s.part

	var links noteLinks
	pattern := s.song.GetPattern(channel, s.bar)
	if playSong && pattern != nil && !ch.Muted {
		links = s.findNotes(channel, pattern, currentPart)
	}
	instruments := s.song.PatternInstrumentsAt(channel, s.bar)

	for index, st := range states {
		if links.note == nil || !slices.Contains(instruments, index) {
			s.releaseAll(st, &st.activeTones)
			continue
		}
		s.syncTones(st, index, ch.Instruments[index], links, currentPart)
	}
}

// findNotes scans a time sorted pattern for the notes around part, looking
// into the neighbouring bars when the note touches a bar line.
func (s *Synth) findNotes(channel int, pattern *song.Pattern, part int) noteLinks {
	var links noteLinks
	for _, n := range pattern.Notes {
		if n.End <= part {
			links.prev = n
		} else if n.Start <= part && n.End > part {
			links.note = n
		} else if n.Start > part {
			links.next = n
			break
		}
	}
	note := links.note
	if note == nil {
		return links
	}
	if links.prev != nil && links.prev.End != note.Start {
		links.prev = nil
	}
	if links.next != nil && links.next.Start != note.End {
		links.next = nil
	}

	partsPerBar := s.song.PartsPerBar()
	if links.prev == nil && note.Start == 0 {
		if prev := s.adjacentBarNote(channel, s.prevBar(), pattern, false); prev != nil && prev.End == partsPerBar {
			links.prev = prev
			links.prevInOtherBar = true
			links.forceContinueAtStart = note.ContinuesLastPattern && adjacentNotesHaveMatchingPitches(prev, note)
		}
	}
	if links.next == nil && note.End == partsPerBar {
		if next := s.adjacentBarNote(channel, s.nextBar(), pattern, true); next != nil && next.Start == 0 {
			links.next = next
			links.forceContinueAtEnd = next.ContinuesLastPattern && adjacentNotesHaveMatchingPitches(note, next)
		}
	}
	return links
}

// prevBar is the bar that played before the current one, which is the end
// of the loop right after jumping back to its start.
func (s *Synth) prevBar() int {
	if s.wrappedToLoopStart {
		return s.song.LoopStart + s.song.LoopLength - 1
	}
	return s.bar - 1
}

// nextBar is the bar that will play after the current one, following the
// same loop rule as the transport.
func (s *Synth) nextBar() int {
	if s.loopRepeatCount != 0 && s.bar+1 == s.song.LoopStart+s.song.LoopLength {
		return s.song.LoopStart
	}
	return s.bar + 1
}

// adjacentBarNote returns the first (or last) note of the pattern at bar
// when its instruments can carry a note across the bar line from pattern.
func (s *Synth) adjacentBarNote(channel, bar int, pattern *song.Pattern, first bool) *song.Note {
	other := s.song.GetPattern(channel, bar)
	if other == nil || len(other.Notes) == 0 {
		return nil
	}
	if !s.adjacentPatternHasCompatibleInstrumentTransition(channel, pattern, other) {
		return nil
	}
	if first {
		return other.Notes[0]
	}
	return other.Notes[len(other.Notes)-1]
}

// adjacentPatternHasCompatibleInstrumentTransition reports whether notes
// can flow between two patterns: both lead instruments must reach across
// patterns and agree on sliding.
func (s *Synth) adjacentPatternHasCompatibleInstrumentTransition(channel int, pattern, other *song.Pattern) bool {
	instruments := s.song.Channels[channel].Instruments
	if len(pattern.Instruments) == 0 || len(other.Instruments) == 0 {
		return false
	}
	a := instruments[pattern.Instruments[0]].GetTransition()
	b := instruments[other.Instruments[0]].GetTransition()
	return a.IncludeAdjacentPatterns && b.IncludeAdjacentPatterns && a.Slides == b.Slides
}

// adjacentNotesHaveMatchingPitches reports whether second starts on exactly
// the pitches first ends on.
func adjacentNotesHaveMatchingPitches(first, second *song.Note) bool {
	if len(first.Pitches) != len(second.Pitches) {
		return false
	}
	interval := first.LastInterval()
	for _, p := range second.Pitches {
		if !slices.Contains(first.Pitches, p-interval) {
			return false
		}
	}
	return true
}

// syncTones assigns the current note to the instrument's active tones.
func (s *Synth) syncTones(st *instrumentState, instrumentIndex int, ins *song.Instrument, links noteLinks, currentPart int) {
	transition := ins.GetTransition()
	chord := ins.GetChord()
	note := links.note
	partsPerBar := s.song.PartsPerBar()
	fadeOutTicks := ins.GetFadeOutTicks()
	tickTimeEnd := currentPart*song.TicksPerPart + s.tick + 1

	toneCount := len(note.Pitches)
	strumParts := chord.StrumParts
	if chord.SingleTone {
		toneCount = 1
		strumParts = 0
	}

	seamlessStart := (transition.IsSeamless || links.forceContinueAtStart) && links.prev != nil
	// Voices are paired by pitch on every seamless start, sliding or not
	matched := seamlessStart && !chord.SingleTone && currentPart == note.Start && s.tick == 0
	if matched {
		s.matchTonesByPitch(st, links.prev, note, toneCount)
	}

	started := 0
	for i := 0; i < toneCount; i++ {
		strumOffset := i * strumParts
		noteForTone := note
		prevForTone := links.prev
		nextForTone := links.next
		if !chord.SingleTone {
			if prevForTone != nil && len(prevForTone.Pitches) <= i {
				prevForTone = nil
			}
			if nextForTone != nil && len(nextForTone.Pitches) <= i {
				nextForTone = nil
			}
		}
		forceStart := links.forceContinueAtStart
		forceEnd := links.forceContinueAtEnd
		noteStart := noteForTone.Start + strumOffset

		if noteStart > currentPart {
			// A strummed voice that has not started yet keeps playing the
			// previous note when the transition is seamless
			if st.activeTones.Len() > i && prevForTone != nil && !links.prevInOtherBar && (transition.IsSeamless || forceStart) {
				nextForTone = noteForTone
				noteForTone = prevForTone
				prevForTone = nil
				forceEnd = forceStart
				forceStart = false
				noteStart = noteForTone.Start + strumOffset
			} else {
				break
			}
		}

		noteEnd := noteForTone.End
		if (transition.IsSeamless || forceEnd) && nextForTone != nil {
			noteEnd = min(partsPerBar, noteEnd+strumOffset)
		}
		atNoteStart := noteStart == currentPart && s.tick == 0
		continues := prevForTone != nil && (transition.IsSeamless || forceStart)

		var id toneID
		reused := false
		switch {
		case st.activeTones.Len() <= i:
			id = s.pool.alloc()
			st.activeTones.PushBack(id)
		case atNoteStart && !continues:
			s.releaseOrFree(st, st.activeTones.Get(i))
			id = s.pool.alloc()
			st.activeTones.Set(i, id)
		default:
			id = st.activeTones.Get(i)
			reused = true
		}
		started++

		t := s.pool.get(id)
		t.instrumentIndex = instrumentIndex
		if chord.SingleTone {
			t.pitchCount = copy(t.pitches[:], noteForTone.Pitches)
			t.chordSize = 1
		} else {
			t.pitches[0] = noteForTone.Pitches[i]
			t.pitchCount = 1
			t.chordSize = len(noteForTone.Pitches)
		}
		t.note = noteForTone
		t.prevNote = prevForTone
		t.nextNote = nextForTone
		if !matched || !reused {
			t.prevNotePitchIndex = i
		}
		t.nextNotePitchIndex = i
		t.noteStartPart = noteStart
		t.noteEndPart = noteEnd
		t.atNoteStart = atNoteStart
		t.forceContinueAtStart = forceStart
		t.forceContinueAtEnd = forceEnd

		noteEndTick := noteEnd * song.TicksPerPart
		seamlessEnd := forceEnd || (transition.IsSeamless && nextForTone != nil)
		t.isOnLastTick = fadeOutTicks < 0 && !seamlessEnd && tickTimeEnd >= noteEndTick
	}

	for st.activeTones.Len() > started {
		s.releaseOrFree(st, st.activeTones.PopBack())
	}
}

// matchTonesByPitch reorders the leading active tones so that each one
// carries on with the voice of note that starts where the tone ended. The
// index of the tone's pitch in prev is kept for sliding.
func (s *Synth) matchTonesByPitch(st *instrumentState, prev, note *song.Note, toneCount int) {
	n := min(st.activeTones.Len(), toneCount, len(note.Pitches))
	matched := s.tempMatchedTones[:0]
	for i := 0; i < n; i++ {
		matched = append(matched, -1)
	}
	interval := prev.LastInterval()
	for i := 0; i < n; i++ {
		id := st.activeTones.Get(i)
		t := s.pool.get(id)
		t.prevNotePitchIndex = max(0, slices.Index(prev.Pitches, t.pitches[0]))
		for j := 0; j < n; j++ {
			if matched[j] < 0 && note.Pitches[j] == t.pitches[0]+interval {
				matched[j] = id
				break
			}
		}
	}

	// Unmatched tones fill the remaining slots in order
	next := 0
	for i := 0; i < n; i++ {
		id := st.activeTones.Get(i)
		if slices.Contains(matched, id) {
			continue
		}
		for matched[next] >= 0 {
			next++
		}
		matched[next] = id
	}
	for i, id := range matched {
		st.activeTones.Set(i, id)
	}
	s.tempMatchedTones = matched
}

// releaseOrFree hands a tone to the released queue to fade out, unless it
// has already faded out on its last tick.
func (s *Synth) releaseOrFree(st *instrumentState, id toneID) {
	t := s.pool.get(id)
	if t.isOnLastTick {
		s.pool.release(id)
		return
	}
	t.ticksSinceReleased = 0
	st.releasedTones.PushFront(id)
}

// releaseAll empties a tone queue into the released queue.
func (s *Synth) releaseAll(st *instrumentState, tones *dsp.Deque[toneID]) {
	for tones.Len() > 0 {
		s.releaseOrFree(st, tones.PopBack())
	}
}

// freeReleasedTones frees released tones that have finished fading out.
func (s *Synth) freeReleasedTones(st *instrumentState, ins *song.Instrument) {
	fadeOut := abs(ins.GetFadeOutTicks())
	for i := 0; i < st.releasedTones.Len(); i++ {
		id := st.releasedTones.Get(i)
		if s.pool.get(id).ticksSinceReleased >= fadeOut {
			st.releasedTones.Remove(i)
			s.pool.release(id)
			i--
		}
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
