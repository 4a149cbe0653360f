package audio

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Southclaws/fault/ftag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	wav "github.com/youpy/go-wav"
)

// rampSource counts up from 1 on the left and down from -1 on the right
// and stops after limit frames.
type rampSource struct {
	frames int
	limit  int
}

func (r *rampSource) Compute(buf []int16) bool {
	for i := 0; i+1 < len(buf); i += 2 {
		r.frames++
		if r.frames > r.limit {
			buf[i], buf[i+1] = 0, 0
			continue
		}
		buf[i] = int16(r.frames)
		buf[i+1] = -int16(r.frames)
	}
	return r.frames < r.limit
}

func (r *rampSource) ComputeFloat(left, right []float32) bool {
	for i := range left {
		r.frames++
		left[i] = 0.5
		right[i] = -0.5
	}
	return r.frames < r.limit
}

func TestPlayerPumpsUntilSourceEnds(t *testing.T) {
	out := NewBufferOutput()
	src := &rampSource{limit: 1000}
	p := NewPlayer(src, out)
	require.NoError(t, p.Start(48000, 256))

	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("player never finished")
	}
	require.NoError(t, p.Stop())
	assert.False(t, p.IsRunning())

	got := out.GetBuffer()
	require.Len(t, got, 4*256*Channels)
	for i := 0; i < 1000; i++ {
		require.Equal(t, int16(i+1), got[2*i])
		require.Equal(t, -int16(i+1), got[2*i+1])
	}
	assert.Zero(t, got[2*1000])
}

func TestPlayerPauseWritesSilence(t *testing.T) {
	out := NewBufferOutput()
	src := &rampSource{limit: 1 << 30}
	p := NewPlayer(src, out)
	p.Pause()
	assert.True(t, p.IsPaused())
	require.NoError(t, p.Start(48000, 64))

	require.Eventually(t, func() bool { return len(out.GetBuffer()) > 0 }, 5*time.Second, time.Millisecond)
	require.NoError(t, p.Stop())

	assert.Zero(t, src.frames)
	for _, v := range out.GetBuffer() {
		require.Zero(t, v)
	}

	// Stopping twice is harmless
	assert.NoError(t, p.Stop())
}

func TestPlayerRejectsDoubleStart(t *testing.T) {
	p := NewPlayer(&rampSource{limit: 1 << 30}, NullOutput{})
	require.NoError(t, p.Start(48000, 64))
	assert.Error(t, p.Start(48000, 64))
	require.NoError(t, p.Stop())
}

func TestBufferOutput(t *testing.T) {
	b := NewBufferOutput()
	assert.Error(t, b.Write([]int16{1}))

	require.NoError(t, b.Open(48000, Channels, 64))
	require.NoError(t, b.Write([]int16{1, 2}))
	require.NoError(t, b.Write([]int16{3, 4}))
	assert.Equal(t, []int16{1, 2, 3, 4}, b.GetBuffer())

	b.Clear()
	assert.Empty(t, b.GetBuffer())
}

func readWAV(t *testing.T, r io.Reader) (format *wav.WavFormat, frames [][2]int) {
	t.Helper()
	data, err := io.ReadAll(r)
	require.NoError(t, err)

	reader := wav.NewReader(bytes.NewReader(data))
	format, err = reader.Format()
	require.NoError(t, err)
	for {
		samples, err := reader.ReadSamples()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		for _, s := range samples {
			frames = append(frames, s.Values)
		}
	}
	return format, frames
}

func TestRenderWAV(t *testing.T) {
	var buf bytes.Buffer
	var calls int
	n, err := RenderWAV(&buf, &rampSource{limit: 100}, 22050, 50, func(int) { calls++ })
	require.NoError(t, err)
	assert.Equal(t, 50, n)
	assert.Equal(t, 1, calls)

	format, frames := readWAV(t, &buf)
	assert.Equal(t, uint32(22050), format.SampleRate)
	assert.Equal(t, uint16(Channels), format.NumChannels)
	assert.Equal(t, uint16(16), format.BitsPerSample)
	require.Len(t, frames, 50)
	assert.Equal(t, [2]int{1, -1}, frames[0])
	assert.Equal(t, [2]int{50, -50}, frames[49])
}

func TestRenderWAVStopsWithSource(t *testing.T) {
	var buf bytes.Buffer
	n, err := RenderWAV(&buf, &rampSource{limit: 10}, 48000, 48000, nil)
	require.NoError(t, err)

	// The block that reached the end is kept whole
	assert.Equal(t, 4096, n)
}

func TestWAVOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	w := NewWAVOutput(path)
	assert.Error(t, w.Write([]int16{1, 2}))
	assert.Error(t, w.Open(48000, 1, 64))

	require.NoError(t, w.Open(48000, Channels, 64))
	assert.True(t, w.IsPlaying())
	require.NoError(t, w.Write([]int16{100, -100, 200, -200}))
	assert.Equal(t, 2, w.Frames())
	require.NoError(t, w.Close())
	assert.False(t, w.IsPlaying())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	format, frames := readWAV(t, f)
	assert.Equal(t, uint32(48000), format.SampleRate)
	assert.Equal(t, [][2]int{{100, -100}, {200, -200}}, frames)
}

func TestStreamer(t *testing.T) {
	s := NewStreamer(&rampSource{limit: 8})
	samples := make([][2]float64, 4)

	n, ok := s.Stream(samples)
	assert.True(t, ok)
	assert.Equal(t, 4, n)
	assert.Equal(t, [2]float64{0.5, -0.5}, samples[3])

	n, ok = s.Stream(samples)
	assert.True(t, ok)
	assert.Equal(t, 4, n)

	n, ok = s.Stream(samples)
	assert.False(t, ok)
	assert.Zero(t, n)
	assert.NoError(t, s.Err())
}

func TestQueueStreamer(t *testing.T) {
	q := &queueStreamer{queue: make(chan []float64, 2)}
	samples := make([][2]float64, 3)

	// Nothing queued yet
	n, ok := q.Stream(samples)
	assert.True(t, ok)
	assert.Equal(t, 3, n)
	assert.Equal(t, [2]float64{}, samples[0])

	q.queue <- []float64{1, -1, 0.5, -0.5}
	q.queue <- []float64{0.25, -0.25}
	n, ok = q.Stream(samples)
	assert.True(t, ok)
	assert.Equal(t, 3, n)
	assert.Equal(t, [][2]float64{{1, -1}, {0.5, -0.5}, {0.25, -0.25}}, samples)

	close(q.queue)
	n, ok = q.Stream(samples)
	assert.False(t, ok)
	assert.Zero(t, n)
}

func TestFallbackOutputKeepsTime(t *testing.T) {
	f := NewFallbackOutput()
	assert.Error(t, f.Write(make([]int16, 2)))

	require.NoError(t, f.Open(1000, Channels, 64))
	start := time.Now()
	require.NoError(t, f.Write(make([]int16, 2*50)))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	require.NoError(t, f.Close())
	assert.False(t, f.IsPlaying())
}

func TestNew(t *testing.T) {
	out, err := New("NULL")
	require.NoError(t, err)
	assert.Equal(t, NullOutput{}, out)

	_, err = New("jukebox")
	require.Error(t, err)
	assert.Equal(t, ftag.InvalidArgument, ftag.Get(err))

	assert.Contains(t, Backends(), "oto")
	assert.Contains(t, Backends(), "beep")
}

func TestWithTail(t *testing.T) {
	src := WithTail(&rampSource{limit: 100}, 1000)
	buf := make([]int16, 2*100)
	assert.True(t, src.Compute(buf))
	assert.True(t, src.Compute(buf))

	small := make([]int16, 2*600)
	assert.True(t, src.Compute(small))
	assert.False(t, src.Compute(small))
}
