package audio

import (
	"io"
	"os"
	"sync"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	wav "github.com/youpy/go-wav"
)

// WAVOutput writes audio to a 16-bit stereo WAV file. The header needs the
// final length, so frames are kept in memory until Close.
type WAVOutput struct {
	filename   string
	sampleRate int
	frames     []wav.Sample
	open       bool
	mu         sync.Mutex
}

func NewWAVOutput(filename string) *WAVOutput {
	return &WAVOutput{filename: filename}
}

func (w *WAVOutput) Open(sampleRate, channels, bufferSize int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if channels != Channels {
		return fault.New("wav output is stereo only")
	}
	w.sampleRate = sampleRate
	w.frames = w.frames[:0]
	w.open = true
	return nil
}

func (w *WAVOutput) Write(samples []int16) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.open {
		return fault.New("wav output not open")
	}
	for i := 0; i+1 < len(samples); i += 2 {
		w.frames = append(w.frames, wav.Sample{Values: [2]int{int(samples[i]), int(samples[i+1])}})
	}
	return nil
}

// Close writes the file
func (w *WAVOutput) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.open {
		return nil
	}
	w.open = false

	f, err := os.Create(w.filename)
	if err != nil {
		return fault.Wrap(err, fmsg.WithDesc("create wav file", "The WAV file could not be created."))
	}
	if err := writeWAV(f, w.sampleRate, w.frames); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fault.Wrap(err, fmsg.With("close wav file"))
	}
	return nil
}

func (w *WAVOutput) IsPlaying() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.open
}

// Frames returns how many stereo frames have been written since Open
func (w *WAVOutput) Frames() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.frames)
}

func writeWAV(out io.Writer, sampleRate int, frames []wav.Sample) error {
	writer := wav.NewWriter(out, uint32(len(frames)), Channels, uint32(sampleRate), 16)
	if err := writer.WriteSamples(frames); err != nil {
		return fault.Wrap(err, fmsg.With("write wav samples"))
	}
	return nil
}

// RenderWAV renders src offline, as fast as it can, into out. It stops when
// the source ends or after maxFrames frames, whichever comes first, and
// returns the number of frames written. progress, if not nil, is called
// after every block with the frames rendered so far.
func RenderWAV(out io.Writer, src Source, sampleRate, maxFrames int, progress func(frames int)) (int, error) {
	const block = 4096
	buf := make([]int16, block*Channels)
	frames := make([]wav.Sample, 0, min(maxFrames, sampleRate*60))

	for len(frames) < maxFrames {
		n := min(block, maxFrames-len(frames))
		more := src.Compute(buf[:n*Channels])
		for i := 0; i < n; i++ {
			frames = append(frames, wav.Sample{Values: [2]int{int(buf[2*i]), int(buf[2*i+1])}})
		}
		if progress != nil {
			progress(len(frames))
		}
		if !more {
			break
		}
	}

	if err := writeWAV(out, sampleRate, frames); err != nil {
		return 0, err
	}
	return len(frames), nil
}

// WithTail keeps src going for tail more frames after it reports the end,
// so release and reverb tails make it into a render.
func WithTail(src Source, tail int) Source {
	return &tailSource{src: src, left: tail}
}

type tailSource struct {
	src  Source
	left int
}

func (t *tailSource) Compute(buf []int16) bool {
	if t.src.Compute(buf) {
		return true
	}
	t.left -= len(buf) / Channels
	return t.left > 0
}
