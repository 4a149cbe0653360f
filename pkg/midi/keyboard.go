package midi

import (
	"log/slog"
	"slices"
	"sync"

	"gitlab.com/gomidi/midi/v2"
)

// Instrument receives the chord currently held on a keyboard
type Instrument interface {
	NoteOn(channel int, pitches ...int)
	NoteOff()
}

// Keyboard turns MIDI note messages into held chords. Keys are converted
// to song pitches by subtracting the base pitch of the song key.
type Keyboard struct {
	target    Instrument
	channel   int
	basePitch int
	held      []int
	mu        sync.Mutex
}

var logger = slog.Default()

// NewKeyboard plays on channel of target. basePitch is the MIDI key of
// song pitch 0.
func NewKeyboard(target Instrument, channel, basePitch int) *Keyboard {
	return &Keyboard{target: target, channel: channel, basePitch: basePitch}
}

// SetChannel moves the keyboard to another song channel
func (k *Keyboard) SetChannel(channel int) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.channel = channel
	k.update()
}

// SetBasePitch follows a change of song key. Held keys are let go, since
// their pitches no longer match.
func (k *Keyboard) SetBasePitch(basePitch int) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.basePitch = basePitch
	if len(k.held) > 0 {
		k.held = k.held[:0]
		k.update()
	}
}

// Handle processes one MIDI message. Everything except note on and note
// off is ignored.
func (k *Keyboard) Handle(msg midi.Message) {
	var ch, key, vel uint8
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		k.Press(int(key))
	case msg.GetNoteEnd(&ch, &key):
		k.Release(int(key))
	}
}

// Press adds a key to the held chord
func (k *Keyboard) Press(key int) {
	k.mu.Lock()
	defer k.mu.Unlock()
	pitch := key - k.basePitch
	if pitch < 0 || slices.Contains(k.held, pitch) {
		return
	}
	k.held = append(k.held, pitch)
	k.update()
}

// Release removes a key from the held chord
func (k *Keyboard) Release(key int) {
	k.mu.Lock()
	defer k.mu.Unlock()
	i := slices.Index(k.held, key-k.basePitch)
	if i < 0 {
		return
	}
	k.held = slices.Delete(k.held, i, i+1)
	k.update()
}

// Held returns the held pitches in the order they were pressed
func (k *Keyboard) Held() []int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return slices.Clone(k.held)
}

func (k *Keyboard) update() {
	if len(k.held) == 0 {
		k.target.NoteOff()
		return
	}
	logger.Debug("keyboard chord", "channel", k.channel, "pitches", k.held)
	k.target.NoteOn(k.channel, k.held...)
}
