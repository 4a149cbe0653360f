package playlist

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

func sample() *Playlist {
	pl := New("test")
	pl.Add(&Item{Path: "/songs/b.json", Title: "beta", Duration: 30 * time.Second})
	pl.Add(&Item{Path: "/songs/a.json", Title: "Alpha", Duration: 90 * time.Second})
	pl.Add(&Item{Path: "/songs/c.json", Title: "gamma", Duration: 10 * time.Second})
	return pl
}

func titles(pl *Playlist) []string {
	var out []string
	for _, item := range pl.Items {
		out = append(out, item.Title)
	}
	return out
}

func TestEditing(t *testing.T) {
	pl := sample()
	assert.Equal(t, 3, pl.Size())
	assert.Equal(t, 130*time.Second, pl.TotalDuration())

	require.NoError(t, pl.MoveUp(2))
	assert.Equal(t, []string{"beta", "gamma", "Alpha"}, titles(pl))
	require.NoError(t, pl.MoveDown(0))
	assert.Equal(t, []string{"gamma", "beta", "Alpha"}, titles(pl))
	assert.Error(t, pl.MoveUp(0))
	assert.Error(t, pl.MoveDown(2))

	require.NoError(t, pl.Remove(1))
	assert.Equal(t, []string{"gamma", "Alpha"}, titles(pl))

	_, err := pl.Get(5)
	assert.Equal(t, ftag.InvalidArgument, ftag.Get(err))

	pl.Clear()
	assert.Zero(t, pl.Size())
}

func TestSort(t *testing.T) {
	pl := sample()
	pl.Sort(SortByTitle)
	assert.Equal(t, []string{"Alpha", "beta", "gamma"}, titles(pl))
	pl.Sort(SortByDuration)
	assert.Equal(t, []string{"gamma", "beta", "Alpha"}, titles(pl))
	pl.Sort(SortByPath)
	assert.Equal(t, []string{"Alpha", "beta", "gamma"}, titles(pl))
}

func TestShuffleKeepsItems(t *testing.T) {
	pl := sample()
	pl.Shuffle()
	assert.ElementsMatch(t, []string{"Alpha", "beta", "gamma"}, titles(pl))
}

func TestJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list.json")
	require.NoError(t, sample().Save(path))

	pl, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, sample(), pl)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Equal(t, ftag.NotFound, ftag.Get(err))
}

func TestM3URoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list.m3u")
	require.NoError(t, sample().SaveM3U(path))

	pl, err := LoadM3U(path)
	require.NoError(t, err)
	assert.Equal(t, "test", pl.Name)
	assert.Equal(t, sample().Items, pl.Items)
}

func TestLoadM3UWithoutExtInf(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plain.m3u")
	require.NoError(t, os.WriteFile(path, []byte("# comment\n\nsongs/tune.json\n/abs/other.txt\n"), 0o644))

	pl, err := LoadM3U(path)
	require.NoError(t, err)
	assert.Equal(t, "plain", pl.Name)
	require.Equal(t, 2, pl.Size())
	assert.Equal(t, filepath.Join(dir, "songs", "tune.json"), pl.Items[0].Path)
	assert.Equal(t, "tune", pl.Items[0].Title)
	assert.Equal(t, "/abs/other.txt", pl.Items[1].Path)
	assert.Zero(t, pl.Items[1].Duration)
}

func TestItemFromFile(t *testing.T) {
	s := song.New()
	s.Tempo = 120
	s.BeatsPerBar = 4
	s.BarCount = 2
	s.LoopStart = 0
	s.LoopLength = 2
	s.Normalize()
	data, err := song.MarshalJSON(s)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "untitled.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	item, err := ItemFromFile(path, 0)
	require.NoError(t, err)
	assert.Equal(t, "untitled", item.Title)
	assert.Equal(t, 2, item.Bars)
	assert.Equal(t, 4*time.Second, item.Duration)

	endless, err := ItemFromFile(path, -1)
	require.NoError(t, err)
	assert.Zero(t, endless.Duration)

	_, err = ItemFromFile(filepath.Join(t.TempDir(), "nope.json"), 0)
	assert.Error(t, err)
}

func TestIsSongFile(t *testing.T) {
	assert.True(t, IsSongFile("tune.JSON"))
	assert.True(t, IsSongFile("tune.txt"))
	assert.False(t, IsSongFile("tune.ym"))
}
