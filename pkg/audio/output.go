// Package audio moves rendered samples to a sound card, a file or memory.
// Every output takes interleaved signed 16-bit stereo frames.
package audio

import (
	"log/slog"
	"sync"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
)

// Channels is the channel count every output is opened with.
const Channels = 2

// Output interface for audio output implementations
type Output interface {
	Open(sampleRate, channels, bufferSize int) error
	Close() error
	Write(samples []int16) error
	IsPlaying() bool
}

// Source produces interleaved stereo samples. Compute returns false once
// there is nothing more to play.
type Source interface {
	Compute(buffer []int16) bool
}

// Player pumps a source into an output from its own goroutine
type Player struct {
	source     Source
	output     Output
	log        *slog.Logger
	sampleRate int
	bufferSize int
	playing    bool
	paused     bool
	mu         sync.Mutex
	done       chan struct{}
	finished   chan struct{}
}

// NewPlayer creates a new audio player
func NewPlayer(source Source, output Output) *Player {
	return &Player{
		source: source,
		output: output,
		log:    slog.Default(),
	}
}

// Start opens the output and starts pumping. bufferSize is in frames.
func (p *Player) Start(sampleRate, bufferSize int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.playing {
		return fault.New("audio player already running")
	}

	p.sampleRate = sampleRate
	p.bufferSize = bufferSize

	if err := p.output.Open(sampleRate, Channels, bufferSize); err != nil {
		return fault.Wrap(err, fmsg.With("open audio output"))
	}

	p.playing = true
	p.done = make(chan struct{})
	p.finished = make(chan struct{})
	go p.audioLoop(p.done, p.finished)

	return nil
}

// Stop stops the pump and closes the output
func (p *Player) Stop() error {
	p.mu.Lock()
	if p.done == nil {
		p.mu.Unlock()
		return nil
	}
	p.playing = false
	done := p.done
	p.done = nil
	p.mu.Unlock()

	// Wait for audio loop to finish
	<-done

	return p.output.Close()
}

// Done is closed when the source runs out. It is nil before Start.
func (p *Player) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.finished
}

// Pause writes silence instead of pulling from the source
func (p *Player) Pause() {
	p.mu.Lock()
	p.paused = true
	p.mu.Unlock()
}

// Resume resumes playback
func (p *Player) Resume() {
	p.mu.Lock()
	p.paused = false
	p.mu.Unlock()
}

// IsPaused returns true if paused
func (p *Player) IsPaused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// IsRunning reports whether the pump goroutine is alive
func (p *Player) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// audioLoop is the main audio processing loop
func (p *Player) audioLoop(done, finished chan struct{}) {
	defer close(done)

	buffer := make([]int16, p.bufferSize*Channels)
	for {
		p.mu.Lock()
		if !p.playing {
			p.mu.Unlock()
			return
		}
		paused := p.paused
		p.mu.Unlock()

		more := true
		if paused {
			clear(buffer)
		} else {
			more = p.source.Compute(buffer)
		}

		if err := p.output.Write(buffer); err != nil {
			p.log.Warn("audio write failed", "error", err)
			p.mu.Lock()
			p.playing = false
			p.mu.Unlock()
			close(finished)
			return
		}

		if !more {
			p.mu.Lock()
			p.playing = false
			p.mu.Unlock()
			close(finished)
			return
		}
	}
}

// BufferOutput is a simple buffer-based output for testing
type BufferOutput struct {
	buffer     []int16
	sampleRate int
	channels   int
	mu         sync.Mutex
}

// NewBufferOutput creates a new buffer output
func NewBufferOutput() *BufferOutput {
	return &BufferOutput{}
}

// Open opens the buffer output
func (b *BufferOutput) Open(sampleRate, channels, bufferSize int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.sampleRate = sampleRate
	b.channels = channels
	b.buffer = make([]int16, 0, sampleRate*channels)
	return nil
}

// Close keeps the samples so they can be read afterwards
func (b *BufferOutput) Close() error {
	return nil
}

// Write appends samples to the buffer
func (b *BufferOutput) Write(samples []int16) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.buffer == nil {
		return fault.New("buffer output not open")
	}
	b.buffer = append(b.buffer, samples...)
	return nil
}

// IsPlaying always returns true for buffer output
func (b *BufferOutput) IsPlaying() bool {
	return true
}

// GetBuffer returns a copy of the accumulated samples
func (b *BufferOutput) GetBuffer() []int16 {
	b.mu.Lock()
	defer b.mu.Unlock()

	result := make([]int16, len(b.buffer))
	copy(result, b.buffer)
	return result
}

// Clear clears the buffer
func (b *BufferOutput) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buffer = b.buffer[:0]
}

// NullOutput discards everything as fast as it arrives
type NullOutput struct{}

func (NullOutput) Open(sampleRate, channels, bufferSize int) error { return nil }
func (NullOutput) Close() error                                    { return nil }
func (NullOutput) Write(samples []int16) error                     { return nil }
func (NullOutput) IsPlaying() bool                                 { return true }
