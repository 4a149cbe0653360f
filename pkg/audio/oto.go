package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/ebitengine/oto/v3"
)

var (
	// oto allows one context per process
	otoMu         sync.Mutex
	otoContext    *oto.Context
	otoSampleRate int
)

// otoContextFor returns the process wide context, creating it on first use.
func otoContextFor(sampleRate, bufferSize int) (*oto.Context, error) {
	otoMu.Lock()
	defer otoMu.Unlock()

	if otoContext != nil {
		if otoSampleRate != sampleRate {
			return nil, fault.New(fmt.Sprintf("oto already runs at %d Hz", otoSampleRate))
		}
		return otoContext, nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   time.Duration(bufferSize) * time.Second / time.Duration(sampleRate),
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.WithDesc("create oto context", "The sound card could not be opened."))
	}
	<-ready

	otoContext = ctx
	otoSampleRate = sampleRate
	return ctx, nil
}

// OtoOutput streams to the sound card through oto. Writes block once the
// device buffer is full, which paces the caller in real time.
type OtoOutput struct {
	player  *oto.Player
	writer  *io.PipeWriter
	reader  *io.PipeReader
	scratch []byte
	mu      sync.Mutex
	closed  bool
}

// NewOtoOutput creates an oto output. The device is opened by Open.
func NewOtoOutput() *OtoOutput {
	return &OtoOutput{closed: true}
}

// Open opens the stream
func (s *OtoOutput) Open(sampleRate, channels, bufferSize int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		return fault.New("oto stream already open")
	}
	if channels != Channels {
		return fault.New(fmt.Sprintf("oto output needs %d channels, got %d", Channels, channels))
	}

	ctx, err := otoContextFor(sampleRate, bufferSize)
	if err != nil {
		return err
	}

	s.reader, s.writer = io.Pipe()
	s.player = ctx.NewPlayer(s.reader)
	s.player.Play()
	s.closed = false
	return nil
}

// Close ends the stream and lets the device drain
func (s *OtoOutput) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	s.writer.Close()

	// The player keeps reading buffered audio for a moment after EOF
	time.Sleep(100 * time.Millisecond)

	err := s.player.Close()
	s.reader.Close()
	s.player, s.reader, s.writer = nil, nil, nil
	if err != nil {
		return fault.Wrap(err, fmsg.With("close oto player"))
	}
	return nil
}

// Write converts samples to little endian bytes and pushes them to the
// device.
func (s *OtoOutput) Write(samples []int16) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fault.New("oto stream not open")
	}
	writer := s.writer
	if cap(s.scratch) < len(samples)*2 {
		s.scratch = make([]byte, len(samples)*2)
	}
	data := s.scratch[:len(samples)*2]
	s.mu.Unlock()

	for i, v := range samples {
		binary.LittleEndian.PutUint16(data[2*i:], uint16(v))
	}
	if _, err := writer.Write(data); err != nil {
		return fault.Wrap(err, fmsg.With("write to oto"))
	}
	return nil
}

// IsPlaying returns true while the stream is open
func (s *OtoOutput) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.player.IsPlaying()
}

// FallbackOutput discards samples but sleeps for their duration, so
// playback keeps real time on machines without a sound card.
type FallbackOutput struct {
	sampleRate int
	channels   int
	closed     bool
	mu         sync.Mutex
}

func NewFallbackOutput() *FallbackOutput {
	return &FallbackOutput{closed: true}
}

func (f *FallbackOutput) Open(sampleRate, channels, bufferSize int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sampleRate = sampleRate
	f.channels = channels
	f.closed = false
	return nil
}

func (f *FallbackOutput) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	return nil
}

func (f *FallbackOutput) Write(samples []int16) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return fault.New("fallback output closed")
	}
	frames := len(samples) / f.channels
	sampleRate := f.sampleRate
	f.mu.Unlock()

	time.Sleep(time.Duration(frames) * time.Second / time.Duration(sampleRate))
	return nil
}

func (f *FallbackOutput) IsPlaying() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.closed
}
