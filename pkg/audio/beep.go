package audio

import (
	"math"
	"sync"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
)

// FloatSource renders separate left and right channels. ComputeFloat
// returns false once there is nothing more to play.
type FloatSource interface {
	ComputeFloat(left, right []float32) bool
}

// Streamer adapts a FloatSource to beep, so songs can be mixed, sequenced
// and resampled with the rest of the beep toolbox.
type Streamer struct {
	src   FloatSource
	left  []float32
	right []float32
	ended bool
}

// NewStreamer returns a beep streamer reading from src
func NewStreamer(src FloatSource) *Streamer {
	return &Streamer{src: src}
}

// Stream fills samples. It drains once the source has ended.
func (s *Streamer) Stream(samples [][2]float64) (n int, ok bool) {
	if s.ended {
		return 0, false
	}
	if cap(s.left) < len(samples) {
		s.left = make([]float32, len(samples))
		s.right = make([]float32, len(samples))
	}
	l, r := s.left[:len(samples)], s.right[:len(samples)]
	s.ended = !s.src.ComputeFloat(l, r)
	for i := range samples {
		samples[i][0] = float64(l[i])
		samples[i][1] = float64(r[i])
	}
	return len(samples), true
}

// Err never fails
func (s *Streamer) Err() error {
	return nil
}

var (
	speakerMu   sync.Mutex
	speakerRate int
)

// initSpeaker opens the beep speaker once per process
func initSpeaker(sampleRate, bufferSize int) error {
	speakerMu.Lock()
	defer speakerMu.Unlock()

	if speakerRate != 0 {
		if speakerRate != sampleRate {
			return fault.New("beep speaker already opened at another sample rate")
		}
		return nil
	}
	sr := beep.SampleRate(sampleRate)
	if bufferSize <= 0 {
		bufferSize = sr.N(time.Second / 10)
	}
	if err := speaker.Init(sr, bufferSize); err != nil {
		return fault.Wrap(err, fmsg.WithDesc("init beep speaker", "The sound card could not be opened."))
	}
	speakerRate = sampleRate
	return nil
}

// PlayOnSpeaker plays src through the beep speaker and calls done from the
// audio thread when it ends.
func PlayOnSpeaker(src FloatSource, sampleRate, bufferSize int, done func()) error {
	if err := initSpeaker(sampleRate, bufferSize); err != nil {
		return err
	}
	speaker.Play(beep.Seq(NewStreamer(src), beep.Callback(done)))
	return nil
}

// BeepOutput is an Output on top of the beep speaker. Writes queue blocks
// for the speaker and block while the queue is full.
type BeepOutput struct {
	queue chan []float64
	mu    sync.Mutex
	open  bool
}

func NewBeepOutput() *BeepOutput {
	return &BeepOutput{}
}

func (b *BeepOutput) Open(sampleRate, channels, bufferSize int) error {
	if channels != Channels {
		return fault.New("beep output is stereo only")
	}
	if err := initSpeaker(sampleRate, bufferSize); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.open {
		return fault.New("beep output already open")
	}
	b.queue = make(chan []float64, 4)
	b.open = true
	speaker.Play(&queueStreamer{queue: b.queue})
	return nil
}

func (b *BeepOutput) Write(samples []int16) error {
	b.mu.Lock()
	queue, open := b.queue, b.open
	b.mu.Unlock()
	if !open {
		return fault.New("beep output not open")
	}

	block := make([]float64, len(samples))
	for i, v := range samples {
		block[i] = float64(v) / math.MaxInt16
	}
	queue <- block
	return nil
}

// Close stops feeding the speaker. Queued audio still plays out.
func (b *BeepOutput) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return nil
	}
	b.open = false
	close(b.queue)
	return nil
}

func (b *BeepOutput) IsPlaying() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}

// queueStreamer plays interleaved blocks from a channel on the speaker
// goroutine. An empty queue plays silence and a closed one drains.
type queueStreamer struct {
	queue   chan []float64
	pending []float64
}

func (q *queueStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	for n < len(samples) {
		if len(q.pending) < 2 {
			select {
			case block, more := <-q.queue:
				if !more {
					return n, n > 0
				}
				q.pending = block
				continue
			default:
				for ; n < len(samples); n++ {
					samples[n] = [2]float64{}
				}
				return n, true
			}
		}
		samples[n] = [2]float64{q.pending[0], q.pending[1]}
		q.pending = q.pending[2:]
		n++
	}
	return n, true
}

func (q *queueStreamer) Err() error {
	return nil
}
