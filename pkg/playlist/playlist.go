// Package playlist keeps an ordered list of song files with the details
// shown next to them, and reads and writes it as JSON or M3U.
package playlist

import (
	"bufio"
	"cmp"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"

	"github.com/olivierh59500/beepsynth/pkg/song"
)

// Extensions lists the file types a folder scan picks up
var Extensions = []string{".json", ".txt", ".beepbox"}

// Item is a single song in the playlist
type Item struct {
	Path     string        `json:"path"`
	Title    string        `json:"title"`
	Duration time.Duration `json:"duration"`
	Bars     int           `json:"bars,omitempty"`
	Tempo    int           `json:"tempo,omitempty"`
}

// Playlist is an ordered collection of songs
type Playlist struct {
	Name  string  `json:"name"`
	Items []*Item `json:"items"`
}

// SortBy selects the field Sort orders by
type SortBy int

const (
	SortByTitle SortBy = iota
	SortByDuration
	SortByPath
)

var errIndex = fault.New("index out of range", ftag.With(ftag.InvalidArgument))

// New creates an empty playlist
func New(name string) *Playlist {
	return &Playlist{Name: name, Items: make([]*Item, 0)}
}

// ItemFromFile loads the song at path to fill in its details. Songs
// without a title are named after the file.
func ItemFromFile(path string, loopRepeats int) (*Item, error) {
	s, err := song.Load(path)
	if err != nil {
		return nil, err
	}
	return ItemFromSong(path, s, loopRepeats), nil
}

// ItemFromSong describes an already loaded song
func ItemFromSong(path string, s *song.Song, loopRepeats int) *Item {
	item := &Item{
		Path:  path,
		Title: s.Title,
		Bars:  s.BarCount,
		Tempo: s.Tempo,
	}
	if loopRepeats >= 0 {
		item.Duration = time.Duration(s.TotalSeconds(loopRepeats) * float64(time.Second))
	}
	if item.Title == "" {
		item.Title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return item
}

// IsSongFile reports whether a folder scan should add name
func IsSongFile(name string) bool {
	return slices.Contains(Extensions, strings.ToLower(filepath.Ext(name)))
}

func (p *Playlist) Add(item *Item) {
	p.Items = append(p.Items, item)
}

// Remove removes the item at index
func (p *Playlist) Remove(index int) error {
	if index < 0 || index >= len(p.Items) {
		return errIndex
	}
	p.Items = slices.Delete(p.Items, index, index+1)
	return nil
}

// MoveUp swaps the item at index with the one before it
func (p *Playlist) MoveUp(index int) error {
	if index <= 0 || index >= len(p.Items) {
		return fault.New("cannot move item up", ftag.With(ftag.InvalidArgument))
	}
	p.Items[index], p.Items[index-1] = p.Items[index-1], p.Items[index]
	return nil
}

// MoveDown swaps the item at index with the one after it
func (p *Playlist) MoveDown(index int) error {
	if index < 0 || index >= len(p.Items)-1 {
		return fault.New("cannot move item down", ftag.With(ftag.InvalidArgument))
	}
	p.Items[index], p.Items[index+1] = p.Items[index+1], p.Items[index]
	return nil
}

func (p *Playlist) Clear() {
	p.Items = make([]*Item, 0)
}

func (p *Playlist) Size() int {
	return len(p.Items)
}

// Get returns the item at index
func (p *Playlist) Get(index int) (*Item, error) {
	if index < 0 || index >= len(p.Items) {
		return nil, errIndex
	}
	return p.Items[index], nil
}

// TotalDuration adds up the items of known length
func (p *Playlist) TotalDuration() time.Duration {
	var total time.Duration
	for _, item := range p.Items {
		total += item.Duration
	}
	return total
}

// Shuffle randomizes the order of the items
func (p *Playlist) Shuffle() {
	rand.Shuffle(len(p.Items), func(i, j int) {
		p.Items[i], p.Items[j] = p.Items[j], p.Items[i]
	})
}

// Sort orders the items by a field, keeping the current order among equal
// ones.
func (p *Playlist) Sort(by SortBy) {
	slices.SortStableFunc(p.Items, func(a, b *Item) int {
		switch by {
		case SortByDuration:
			return cmp.Compare(a.Duration, b.Duration)
		case SortByPath:
			return strings.Compare(a.Path, b.Path)
		default:
			return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		}
	})
}

// Save writes the playlist to a JSON file
func (p *Playlist) Save(filename string) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fault.Wrap(err, fmsg.With("encode playlist"))
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fault.Wrap(err, fmsg.With("write playlist"))
	}
	return nil
}

// Load reads a playlist from a JSON file
func Load(filename string) (*Playlist, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fault.Wrap(err, ftag.With(ftag.NotFound), fmsg.With("read playlist"))
		}
		return nil, fault.Wrap(err, fmsg.With("read playlist"))
	}

	var pl Playlist
	if err := json.Unmarshal(data, &pl); err != nil {
		return nil, fault.Wrap(err,
			ftag.With(ftag.InvalidArgument),
			fmsg.WithDesc("decode playlist", "The playlist file is not valid JSON."))
	}
	if pl.Items == nil {
		pl.Items = make([]*Item, 0)
	}
	return &pl, nil
}

// SaveM3U writes the playlist as an extended M3U file
func (p *Playlist) SaveM3U(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fault.Wrap(err, fmsg.With("create playlist"))
	}

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, "#EXTM3U")
	fmt.Fprintf(w, "#PLAYLIST:%s\n", p.Name)
	for _, item := range p.Items {
		seconds := -1
		if item.Duration > 0 {
			seconds = int(item.Duration / time.Second)
		}
		fmt.Fprintf(w, "#EXTINF:%d,%s\n", seconds, item.Title)
		fmt.Fprintln(w, item.Path)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fault.Wrap(err, fmsg.With("write playlist"))
	}
	return f.Close()
}

// LoadM3U reads an M3U file. Titles and lengths come from #EXTINF lines
// when present. Relative paths are resolved against the playlist's
// directory.
func LoadM3U(filename string) (*Playlist, error) {
	f, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fault.Wrap(err, ftag.With(ftag.NotFound), fmsg.With("open playlist"))
		}
		return nil, fault.Wrap(err, fmsg.With("open playlist"))
	}
	defer f.Close()

	pl := New(strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename)))
	dir := filepath.Dir(filename)

	var pending *Item
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case strings.HasPrefix(line, "#PLAYLIST:"):
			pl.Name = strings.TrimPrefix(line, "#PLAYLIST:")
		case strings.HasPrefix(line, "#EXTINF:"):
			pending = parseExtInf(strings.TrimPrefix(line, "#EXTINF:"))
		case strings.HasPrefix(line, "#"):
		default:
			item := pending
			if item == nil {
				item = &Item{}
			}
			pending = nil
			item.Path = line
			if !filepath.IsAbs(line) {
				item.Path = filepath.Join(dir, line)
			}
			if item.Title == "" {
				item.Title = strings.TrimSuffix(filepath.Base(line), filepath.Ext(line))
			}
			pl.Add(item)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fault.Wrap(err, fmsg.With("read playlist"))
	}
	return pl, nil
}

// parseExtInf reads "seconds,title"
func parseExtInf(s string) *Item {
	item := &Item{}
	length, title, _ := strings.Cut(s, ",")
	item.Title = strings.TrimSpace(title)
	if seconds, err := strconv.Atoi(strings.TrimSpace(length)); err == nil && seconds > 0 {
		item.Duration = time.Duration(seconds) * time.Second
	}
	return item
}
