package player

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Southclaws/fault/ftag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olivierh59500/beepsynth/pkg/song"
)

const testRate = 48000

// oneNoteSong is two 4/4 bars at 120 bpm with a single beat long note.
func oneNoteSong() *song.Song {
	s := song.New()
	s.Title = "one note"
	s.Tempo = 120
	s.BeatsPerBar = 4
	s.BarCount = 2
	s.PatternsPerChannel = 1
	s.LoopStart = 0
	s.LoopLength = 2
	s.PitchChannelCount = 1
	s.NoiseChannelCount = 1
	s.Normalize()
	s.Channels[0].Patterns[0] = &song.Pattern{Notes: []*song.Note{song.NewNote(36, 0, 24, 3)}, Instruments: []int{0}}
	s.Channels[0].Bars = []int{1, 0}
	return s
}

func newTestPlayer(t *testing.T) *Player {
	t.Helper()
	p, err := Create(testRate)
	require.NoError(t, err)
	p.LoadSong(oneNoteSong())
	return p
}

func TestCreate(t *testing.T) {
	p, err := Create(testRate)
	require.NoError(t, err)
	assert.Equal(t, testRate, p.SampleRate())
	assert.False(t, p.IsPlaying())

	_, err = Create(8000)
	assert.Error(t, err)
}

func TestComputeInterleavesStereo(t *testing.T) {
	p := newTestPlayer(t)
	p.Play()

	buf := make([]int16, 2*4800)
	require.True(t, p.Compute(buf))

	var loud bool
	for i := 0; i < len(buf); i += 2 {
		assert.Equal(t, buf[i], buf[i+1], "centred note differs at frame %d", i/2)
		if buf[i] != 0 {
			loud = true
		}
	}
	assert.True(t, loud)
}

func TestComputeReportsEnd(t *testing.T) {
	p := newTestPlayer(t)
	p.Play()

	// Two bars at 120 bpm
	buf := make([]int16, 2*testRate)
	for i := 0; i < 3; i++ {
		require.True(t, p.Compute(buf))
	}
	assert.False(t, p.Compute(buf))
	assert.True(t, p.IsOver())

	p.Restart()
	assert.False(t, p.IsOver())
	assert.True(t, p.Compute(buf))
}

func TestLoopMode(t *testing.T) {
	p := newTestPlayer(t)
	p.SetLoopMode(true)
	p.Play()

	buf := make([]int16, 2*testRate)
	for i := 0; i < 10; i++ {
		require.True(t, p.Compute(buf))
	}
	assert.Zero(t, p.GetInfo().Duration)

	p.SetLoopMode(false)
	p.SetLoopRepeats(1)
	assert.Equal(t, 8*time.Second, p.GetInfo().Duration)
}

func TestPlayAfterEndKeepsLoopRepeats(t *testing.T) {
	p := newTestPlayer(t)
	p.SetLoopRepeats(1)

	// One second per call, eight seconds with the loop played twice
	buf := make([]int16, 2*testRate)
	secondsUntilEnd := func() int {
		n := 0
		for p.Compute(buf) {
			n++
			require.Less(t, n, 20, "song never ended")
		}
		return n
	}

	p.Play()
	assert.Equal(t, 7, secondsUntilEnd())
	require.True(t, p.IsOver())

	p.Play()
	assert.False(t, p.IsOver())
	assert.Equal(t, 7, secondsUntilEnd())
}

func TestGetInfo(t *testing.T) {
	p := newTestPlayer(t)
	info := p.GetInfo()
	assert.Equal(t, "one note", info.Title)
	assert.Equal(t, 2, info.Channels)
	assert.Equal(t, 1, info.Pitch)
	assert.Equal(t, 1, info.Noise)
	assert.Equal(t, 2, info.Bars)
	assert.Equal(t, 120, info.Tempo)
	assert.Equal(t, 4*time.Second, info.Duration)
}

func TestSeekAndPosition(t *testing.T) {
	p := newTestPlayer(t)
	assert.Zero(t, p.GetPos())

	p.Seek(3000)
	assert.InDelta(t, 3000, float64(p.GetPos()), 1)
	assert.Equal(t, 1, p.Bar())

	p.GoToBar(0)
	assert.Zero(t, p.Bar())
	p.NextBar()
	assert.Equal(t, 1, p.Bar())
	p.PrevBar()
	assert.Zero(t, p.Bar())
}

func TestStopRewinds(t *testing.T) {
	p := newTestPlayer(t)
	p.Play()
	p.Compute(make([]int16, 2*testRate))
	assert.NotZero(t, p.GetPos())

	p.Stop()
	assert.False(t, p.IsPlaying())
	assert.Zero(t, p.GetPos())
}

func TestVolume(t *testing.T) {
	p := newTestPlayer(t)
	p.SetVolume(0)
	assert.Zero(t, p.Volume())
	p.Play()

	buf := make([]int16, 2*4800)
	p.Compute(buf)
	for _, v := range buf {
		require.Zero(t, v)
	}
}

func TestLiveNotes(t *testing.T) {
	p, err := Create(testRate)
	require.NoError(t, err)

	p.NoteOn(0, 48)
	buf := make([]int16, 2*2400)
	p.Compute(buf)
	assert.NotZero(t, peak(buf))
	assert.False(t, p.IsPlaying())

	p.NoteOff()
	for i := 0; i < 3; i++ {
		p.Compute(buf)
	}
	assert.Zero(t, peak(buf))

	// Out of range channels are ignored
	p.NoteOn(42, 48)
	p.Compute(buf)
	assert.Zero(t, peak(buf))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	data, err := song.MarshalJSON(oneNoteSong())
	require.NoError(t, err)
	path := filepath.Join(dir, "one.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	p, err := Create(testRate)
	require.NoError(t, err)
	require.NoError(t, p.Load(path))
	assert.Equal(t, "one note", p.GetInfo().Title)

	err = p.Load(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
	assert.Equal(t, ftag.NotFound, ftag.Get(err))

	require.NoError(t, p.LoadMemory([]byte(song.MarshalCompact(oneNoteSong()))))
	assert.Equal(t, 2, p.GetInfo().Bars)

	err = p.LoadMemory([]byte("!not a song"))
	require.Error(t, err)
	assert.Equal(t, song.ErrUnknownFormat, ftag.Get(err))
}

func peak(buf []int16) int {
	m := 0
	for _, v := range buf {
		a := int(v)
		if a < 0 {
			a = -a
		}
		m = max(m, a)
	}
	return m
}
