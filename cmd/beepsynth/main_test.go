package main

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olivierh59500/beepsynth/pkg/midi"
	"github.com/olivierh59500/beepsynth/pkg/player"
	"github.com/olivierh59500/beepsynth/pkg/song"
)

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "00:00", formatDuration(999))
	assert.Equal(t, "01:05", formatDuration(65000))
	assert.Equal(t, "61:00", formatDuration(3660000))
}

func TestMakeProgressBar(t *testing.T) {
	assert.Equal(t, ">         ", makeProgressBar(0, 10))
	assert.Equal(t, "=====>    ", makeProgressBar(50, 10))
	assert.Equal(t, "==========", makeProgressBar(150, 10))
}

func TestReadSongPassesHashesThrough(t *testing.T) {
	data, err := readSong("#9n31s0k0l00e03t2m")
	require.NoError(t, err)
	assert.Equal(t, "#9n31s0k0l00e03t2m", string(data))

	_, err = readSong("/does/not/exist.json")
	assert.ErrorContains(t, err, "file not found")
}

type recorder struct {
	on  [][]int
	off int
}

func (r *recorder) NoteOn(channel int, pitches ...int) { r.on = append(r.on, pitches) }
func (r *recorder) NoteOff()                           { r.off++ }

func TestLiveModelPlaysAndReleases(t *testing.T) {
	p, err := player.Create(48000)
	require.NoError(t, err)
	rec := &recorder{}
	base := song.Keys[p.Song().Key].BasePitch
	m := newLiveModel(p, midi.NewKeyboard(rec, 0, base))

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("a")})
	require.NotNil(t, cmd)
	m = next.(liveModel)
	require.Len(t, rec.on, 1)
	assert.Equal(t, []int{4 * song.PitchesPerOctave}, rec.on[0])
	assert.Equal(t, "C4", m.lastNote)

	// A release from an older press is ignored
	next, _ = m.Update(releaseMsg{press: 0})
	m = next.(liveModel)
	assert.Zero(t, rec.off)

	next, _ = m.Update(releaseMsg{press: m.press})
	m = next.(liveModel)
	assert.Equal(t, 1, rec.off)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	m = next.(liveModel)
	assert.Equal(t, 5, m.octave)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")})
	m = next.(liveModel)
	assert.True(t, p.IsPlaying())

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}
