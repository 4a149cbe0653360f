//go:build portaudio

package audio

import (
	"sync"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	pa "github.com/gordonklaus/portaudio"
)

func init() {
	backends["portaudio"] = func() Output { return NewPortAudioOutput() }
}

// PortAudioOutput writes to the default device with PortAudio's blocking
// API. The stream buffer has a fixed size, so writes are cut into blocks
// of that size.
type PortAudioOutput struct {
	stream *pa.Stream
	block  []int16
	fill   int
	mu     sync.Mutex
}

func NewPortAudioOutput() *PortAudioOutput {
	return &PortAudioOutput{}
}

func (p *PortAudioOutput) Open(sampleRate, channels, bufferSize int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream != nil {
		return fault.New("portaudio stream already open")
	}
	if err := pa.Initialize(); err != nil {
		return fault.Wrap(err, fmsg.WithDesc("init portaudio", "PortAudio could not be started."))
	}
	p.block = make([]int16, bufferSize*channels)
	p.fill = 0
	stream, err := pa.OpenDefaultStream(0, channels, float64(sampleRate), bufferSize, p.block)
	if err != nil {
		pa.Terminate()
		return fault.Wrap(err, fmsg.WithDesc("open portaudio stream", "The default output device could not be opened."))
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		pa.Terminate()
		return fault.Wrap(err, fmsg.With("start portaudio stream"))
	}
	p.stream = stream
	return nil
}

func (p *PortAudioOutput) Write(samples []int16) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return fault.New("portaudio stream not open")
	}
	for len(samples) > 0 {
		n := copy(p.block[p.fill:], samples)
		p.fill += n
		samples = samples[n:]
		if p.fill < len(p.block) {
			break
		}
		if err := p.stream.Write(); err != nil {
			return fault.Wrap(err, fmsg.With("write portaudio stream"))
		}
		p.fill = 0
	}
	return nil
}

func (p *PortAudioOutput) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return nil
	}
	if p.fill > 0 {
		clear(p.block[p.fill:])
		p.stream.Write()
	}
	p.stream.Stop()
	err := p.stream.Close()
	p.stream = nil
	pa.Terminate()
	if err != nil {
		return fault.Wrap(err, fmsg.With("close portaudio stream"))
	}
	return nil
}

func (p *PortAudioOutput) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stream != nil
}
