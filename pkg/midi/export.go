// Package midi connects songs to the MIDI world: songs export as Standard
// MIDI Files, and a MIDI keyboard can play the synth live.
package midi

import (
	"io"
	"math"
	"slices"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/olivierh59500/beepsynth/pkg/song"
)

// TicksPerPart is the MIDI resolution of one song part.
const TicksPerPart = 4

// DrumChannel is the General MIDI percussion channel, zero based.
const DrumChannel = 9

// lowestDrumKey is the GM key noise pitch 0 maps to (acoustic bass drum)
const lowestDrumKey = 35

// programs picks a General MIDI program for each pitched instrument type
var programs = map[song.InstrumentType]uint8{
	song.Chip:         80, // square lead
	song.FM:           4,  // electric piano
	song.Harmonics:    19, // church organ
	song.PWM:          81, // sawtooth lead
	song.PickedString: 24, // nylon guitar
}

type event struct {
	tick uint32
	off  bool
	msg  midi.Message
}

// ExportSMF writes s as a format 1 Standard MIDI File: a conductor track
// with tempo and meter, then one track per unmuted channel. Every bar is
// written once, in order. Pitch bends inside notes are not exported.
func ExportSMF(s *song.Song, w io.Writer) error {
	file := smf.New()
	file.TimeFormat = smf.MetricTicks(song.PartsPerBeat * TicksPerPart)

	var conductor smf.Track
	conductor.Add(0, smf.MetaTrackSequenceName(s.Title))
	conductor.Add(0, smf.MetaMeter(uint8(s.BeatsPerBar), 4))
	conductor.Add(0, smf.MetaTempo(float64(s.Tempo)))
	conductor.Close(0)
	if err := file.Add(conductor); err != nil {
		return fault.Wrap(err, fmsg.With("add conductor track"))
	}

	for c, ch := range s.Channels {
		if ch.Muted {
			continue
		}
		track := channelTrack(s, c)
		if err := file.Add(track); err != nil {
			return fault.Wrap(err, fmsg.With("add channel track"))
		}
	}

	if _, err := file.WriteTo(w); err != nil {
		return fault.Wrap(err, fmsg.WithDesc("write midi file", "The MIDI file could not be written."))
	}
	return nil
}

// MIDIChannel returns the MIDI channel a song channel plays on. Noise
// channels share the drum channel and pitch channels step over it.
func MIDIChannel(s *song.Song, channel int) uint8 {
	if s.IsNoiseChannel(channel) {
		return DrumChannel
	}
	if channel >= DrumChannel {
		return uint8(channel + 1)
	}
	return uint8(channel)
}

// Key returns the MIDI key of a song pitch on channel
func Key(s *song.Song, channel, pitch int) uint8 {
	key := lowestDrumKey + pitch
	if !s.IsNoiseChannel(channel) {
		key = song.Keys[s.Key].BasePitch + pitch
	}
	return uint8(min(max(key, 0), 127))
}

// Velocity maps a note size to a MIDI velocity
func Velocity(size int) uint8 {
	v := math.Round(127 * song.NoteSizeToVolumeMult(float64(size)))
	return uint8(min(max(v, 1), 127))
}

func channelTrack(s *song.Song, c int) smf.Track {
	var track smf.Track
	mch := MIDIChannel(s, c)
	isNoise := s.IsNoiseChannel(c)

	name := "channel"
	if isNoise {
		name = "noise"
	}
	track.Add(0, smf.MetaTrackSequenceName(name))
	if program, ok := programs[s.Channels[c].Instruments[0].Type]; ok && !isNoise {
		track.Add(0, midi.ProgramChange(mch, program))
	}

	var events []event
	partsPerBar := s.PartsPerBar()
	for bar := 0; bar < s.BarCount; bar++ {
		p := s.GetPattern(c, bar)
		if p == nil {
			continue
		}
		barStart := bar * partsPerBar
		for _, n := range p.Notes {
			on := uint32((barStart + n.Start) * TicksPerPart)
			off := uint32((barStart + n.End) * TicksPerPart)
			vel := Velocity(n.Pins[0].Size)
			for _, pitch := range n.Pitches {
				key := Key(s, c, pitch)
				events = append(events,
					event{tick: on, msg: midi.NoteOn(mch, key, vel)},
					event{tick: off, off: true, msg: midi.NoteOff(mch, key)})
			}
		}
	}

	// Note offs go first so a repeated key is released before it restarts
	slices.SortStableFunc(events, func(a, b event) int {
		if a.tick != b.tick {
			if a.tick < b.tick {
				return -1
			}
			return 1
		}
		switch {
		case a.off && !b.off:
			return -1
		case !a.off && b.off:
			return 1
		}
		return 0
	})

	var last uint32
	for _, e := range events {
		track.Add(e.tick-last, e.msg)
		last = e.tick
	}
	track.Close(0)
	return track
}
