// Package player is the playback API shared by the command line and GUI
// front ends: it owns a song and the synth playing it, and guards both with
// a mutex so an audio goroutine and a UI goroutine can drive it together.
package player

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"

	"github.com/olivierh59500/beepsynth/pkg/song"
	"github.com/olivierh59500/beepsynth/pkg/synth"
)

// Info describes the loaded song.
type Info struct {
	Title       string
	Channels    int
	Pitch       int
	Noise       int
	Bars        int
	Tempo       int
	BeatsPerBar int
	LoopStart   int
	LoopLength  int
	Duration    time.Duration
}

// Player plays one song at a time.
type Player struct {
	mu     sync.Mutex
	song   *song.Song
	synth  *synth.Synth
	log    *slog.Logger
	loop   bool
	repeat int

	bufL []float32
	bufR []float32
}

// Create returns a player with an empty song, ready to load one.
func Create(sampleRate int, opts ...synth.Option) (*Player, error) {
	sng := song.New()
	syn, err := synth.New(sng, sampleRate, opts...)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("create player"))
	}
	p := &Player{
		song:  sng,
		synth: syn,
		log:   slog.Default(),
	}
	p.applyLoop()
	return p, nil
}

// SetLogger sets the logger used for load events.
func (p *Player) SetLogger(l *slog.Logger) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l != nil {
		p.log = l
	}
}

// Load reads a song file from disk
func (p *Player) Load(fileName string) error {
	sng, err := song.Load(fileName)
	if err != nil {
		return err
	}
	p.LoadSong(sng)
	return nil
}

// LoadMemory decodes a song held in memory
func (p *Player) LoadMemory(data []byte) error {
	sng, err := song.Parse(data)
	if err != nil {
		return fault.Wrap(err, fmsg.With("load song from memory"))
	}
	p.LoadSong(sng)
	return nil
}

// LoadSong replaces the song being played. Playback stops and the playhead
// goes back to the start.
func (p *Player) LoadSong(sng *song.Song) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.song = sng
	p.synth.SetSong(sng)
	p.synth.Pause()
	p.synth.SnapToStart()
	p.applyLoop()
	p.log.Debug("player loaded song", "title", sng.Title, "bars", sng.BarCount)
}

// Compute renders len(buffer)/2 interleaved stereo frames. It returns false
// once the song has ended.
func (p *Player) Compute(buffer []int16) bool {
	frames := len(buffer) / 2
	p.mu.Lock()
	defer p.mu.Unlock()

	if cap(p.bufL) < frames {
		p.bufL = make([]float32, frames)
		p.bufR = make([]float32, frames)
	}
	l, r := p.bufL[:frames], p.bufR[:frames]
	p.synth.Synthesize(l, r)
	for i := 0; i < frames; i++ {
		buffer[2*i] = toInt16(l[i])
		buffer[2*i+1] = toInt16(r[i])
	}
	return !p.synth.Ended()
}

// ComputeFloat renders into separate channel buffers. It returns false once
// the song has ended.
func (p *Player) ComputeFloat(left, right []float32) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.synth.Synthesize(left, right)
	return !p.synth.Ended()
}

func toInt16(v float32) int16 {
	s := math.Round(float64(v) * math.MaxInt16)
	return int16(math.Max(math.MinInt16, math.Min(math.MaxInt16, s)))
}

// SetLoopMode makes the loop section repeat forever
func (p *Player) SetLoopMode(loop bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loop = loop
	p.applyLoop()
}

// SetLoopRepeats sets how many extra times the loop section plays when
// loop mode is off.
func (p *Player) SetLoopRepeats(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.repeat = max(n, 0)
	p.applyLoop()
}

func (p *Player) applyLoop() {
	if p.loop {
		p.synth.SetLoopRepeatCount(-1)
		return
	}
	p.synth.SetLoopRepeatCount(p.repeat)
}

// GetInfo returns song information
func (p *Player) GetInfo() Info {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.song
	info := Info{
		Title:       s.Title,
		Channels:    s.ChannelCount(),
		Pitch:       s.PitchChannelCount,
		Noise:       s.NoiseChannelCount,
		Bars:        s.BarCount,
		Tempo:       s.Tempo,
		BeatsPerBar: s.BeatsPerBar,
		LoopStart:   s.LoopStart,
		LoopLength:  s.LoopLength,
	}
	if !p.loop {
		info.Duration = time.Duration(s.TotalSeconds(p.repeat) * float64(time.Second))
	}
	return info
}

// Play starts playback. A song that ended starts over with the full loop
// count.
func (p *Player) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.synth.Ended() {
		p.applyLoop()
	}
	p.synth.Play()
}

// Pause pauses playback
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.synth.Pause()
}

// Stop pauses and rewinds to the start
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.synth.Pause()
	p.synth.SnapToStart()
	p.applyLoop()
}

// IsPlaying reports whether the transport runs
func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.synth.IsPlaying()
}

// IsOver checks if the song has finished
func (p *Player) IsOver() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.synth.Ended()
}

// GetPos returns the playhead position in milliseconds from the start of
// the song.
func (p *Player) GetPos() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return uint32(p.synth.Playhead() * p.song.SecondsPerBar() * 1000)
}

// Seek moves the playhead to a time in milliseconds
func (p *Player) Seek(timeInMs uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.synth.SetPlayhead(float64(timeInMs) / 1000 / p.song.SecondsPerBar())
}

// Bar returns the bar under the playhead
func (p *Player) Bar() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.synth.Bar()
}

// GoToBar moves to the start of a bar
func (p *Player) GoToBar(bar int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.synth.GoToBar(bar)
}

// NextBar skips forward one bar
func (p *Player) NextBar() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.synth.NextBar()
}

// PrevBar skips back one bar
func (p *Player) PrevBar() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.synth.PrevBar()
}

// Restart plays the song again from the beginning with cold effects
func (p *Player) Restart() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.synth.Reset()
	p.applyLoop()
	p.synth.Play()
}

// SetVolume sets the linear output volume
func (p *Player) SetVolume(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.synth.SetVolume(v)
}

// Volume returns the linear output volume
func (p *Player) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.synth.Volume()
}

// NoteOn holds pitches on a channel on top of the song. Pitches are song
// pitches, not MIDI keys.
func (p *Player) NoteOn(channel int, pitches ...int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if channel < 0 || channel >= p.song.ChannelCount() {
		return
	}
	p.synth.StartLiveInput(synth.LiveInput{Channel: channel, Pitches: pitches})
}

// NoteOff releases the held pitches
func (p *Player) NoteOff() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.synth.StopLiveInput()
}

// Song returns the loaded song. It must not be modified while playing.
func (p *Player) Song() *song.Song {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.song
}

// Synth returns the engine. Calls on it bypass the player lock, so use it
// only while nothing is rendering.
func (p *Player) Synth() *synth.Synth {
	return p.synth
}

// SampleRate returns the output sample rate in Hz
func (p *Player) SampleRate() int {
	return p.synth.SampleRate()
}
