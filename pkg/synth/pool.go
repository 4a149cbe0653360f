package synth

import "github.com/olivierh59500/beepsynth/pkg/dsp"

// toneID is the index of a tone slot in a tonePool.
type toneID int

// tonePool is an arena of tone slots. Slots are never returned to the
// garbage collector; freed slots are recycled through a free list.
type tonePool struct {
	tones []*Tone
	free  dsp.Deque[toneID]
}

// get returns the tone stored in slot id.
func (p *tonePool) get(id toneID) *Tone {
	return p.tones[id]
}

// alloc takes a slot from the free list, or grows the arena, and resets it.
func (p *tonePool) alloc() toneID {
	var id toneID
	if p.free.Len() > 0 {
		id = p.free.PopBack()
	} else {
		id = toneID(len(p.tones))
		p.tones = append(p.tones, &Tone{})
	}
	p.tones[id].reset()
	return id
}

// release returns a slot to the free list.
func (p *tonePool) release(id toneID) {
	p.free.PushBack(id)
}

// inUse counts slots that are not on the free list.
func (p *tonePool) inUse() int {
	return len(p.tones) - p.free.Len()
}
