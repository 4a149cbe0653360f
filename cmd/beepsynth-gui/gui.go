//go:build gui

package main

import (
	"fmt"
	"image/color"
	"log/slog"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/olivierh59500/beepsynth/pkg/audio"
	"github.com/olivierh59500/beepsynth/pkg/config"
	"github.com/olivierh59500/beepsynth/pkg/midi"
	"github.com/olivierh59500/beepsynth/pkg/player"
	"github.com/olivierh59500/beepsynth/pkg/playlist"
	"github.com/olivierh59500/beepsynth/pkg/song"
	"github.com/olivierh59500/beepsynth/pkg/synth"
)

// Every field below is only touched on the fyne main goroutine. The
// refresh ticker hands its work over with fyne.Do.
type BeepSynthGUI struct {
	app    fyne.App
	window fyne.Window

	cfg     config.Config
	cfgPath string

	player   *player.Player
	out      *audio.Player
	keyboard *midi.Keyboard
	stopMIDI func()
	loaded   bool
	active   bool

	playlist   *playlist.Playlist
	current    int
	selected   int
	shuffle    bool
	repeatMode RepeatMode

	titleLabel   *widget.Label
	detailsLabel *widget.Label
	keyLabel     *widget.Label
	loopLabel    *widget.Label
	timeLabel    *widget.Label
	barLabel     *widget.Label
	statusLabel  *widget.Label
	progressBar  *widget.ProgressBar
	barSlider    *widget.Slider
	volumeSlider *widget.Slider
	loopSelect   *widget.Select
	playButton   *widget.Button
	pauseButton  *widget.Button
	stopButton   *widget.Button
	prevButton   *widget.Button
	nextButton   *widget.Button
	repeatButton *widget.Button

	playlistWidget *widget.List
	playlistLabel  *widget.Label
	removeButton   *widget.Button
	moveUpButton   *widget.Button
	moveDownButton *widget.Button

	// syncing is set while refresh moves the bar slider, dragging while
	// the user does.
	syncing  bool
	dragging bool

	ticker *time.Ticker
	done   chan struct{}
}

// RepeatMode is what happens when a song of the playlist ends
type RepeatMode int

const (
	RepeatNone RepeatMode = iota
	RepeatOne
	RepeatAll
)

func (r RepeatMode) String() string {
	switch r {
	case RepeatOne:
		return "Repeat: One"
	case RepeatAll:
		return "Repeat: All"
	default:
		return "Repeat: Off"
	}
}

// loopChoices are the entries of the loop selector, paired with the
// number of extra passes through the loop section.
var loopChoices = []struct {
	label   string
	repeats int
}{
	{"Play once", 0},
	{"Repeat loop once", 1},
	{"Repeat loop twice", 2},
	{"Repeat loop 4 times", 4},
	{"Loop forever", -1},
}

type synthTheme struct{}

func (synthTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	if variant == theme.VariantLight {
		switch name {
		case theme.ColorNameBackground:
			return color.NRGBA{247, 245, 250, 255}
		case theme.ColorNamePrimary:
			return color.NRGBA{124, 77, 255, 255}
		case theme.ColorNameButton:
			return color.NRGBA{236, 232, 244, 255}
		}
		return theme.DefaultTheme().Color(name, variant)
	}
	switch name {
	case theme.ColorNameBackground:
		return color.NRGBA{22, 20, 30, 255}
	case theme.ColorNamePrimary:
		return color.NRGBA{179, 136, 255, 255}
	case theme.ColorNameButton:
		return color.NRGBA{44, 40, 58, 255}
	case theme.ColorNameInputBackground:
		return color.NRGBA{34, 31, 46, 255}
	case theme.ColorNameHover:
		return color.NRGBA{64, 58, 84, 255}
	}
	return theme.DefaultTheme().Color(name, variant)
}

func (synthTheme) Font(style fyne.TextStyle) fyne.Resource {
	return theme.DefaultTheme().Font(style)
}

func (synthTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return theme.DefaultTheme().Icon(name)
}

func (synthTheme) Size(name fyne.ThemeSizeName) float32 {
	if name == theme.SizeNamePadding {
		return 6
	}
	return theme.DefaultTheme().Size(name)
}

// liveSource keeps the audio output running between songs, so ending a
// song leaves the output open for the next one.
type liveSource struct {
	player *player.Player
}

func (l liveSource) Compute(buf []int16) bool {
	l.player.Compute(buf)
	return true
}

func NewBeepSynthGUI(cfg config.Config, cfgPath string) (*BeepSynthGUI, error) {
	p, err := player.Create(cfg.SampleRate, synth.WithLiveInputTimeout(cfg.LiveTimeout))
	if err != nil {
		return nil, err
	}
	p.SetLoopMode(cfg.Loop < 0)
	p.SetLoopRepeats(cfg.Loop)
	p.SetVolume(cfg.Volume)

	g := &BeepSynthGUI{
		app:      app.NewWithID("io.github.olivierh59500.beepsynth"),
		cfg:      cfg,
		cfgPath:  cfgPath,
		player:   p,
		playlist: playlist.New("Default"),
		current:  -1,
		selected: -1,
		done:     make(chan struct{}),
	}
	g.keyboard = midi.NewKeyboard(p, 0, song.Keys[p.Song().Key].BasePitch)

	if cfg.Playlist != "" {
		if pl, err := readPlaylist(cfg.Playlist); err != nil {
			slog.Warn("failed to restore playlist", "path", cfg.Playlist, "error", err)
		} else {
			g.playlist = pl
		}
	}

	g.app.Settings().SetTheme(synthTheme{})
	g.createUI()

	if cfg.MIDIPort != "" {
		g.listenMIDI(cfg.MIDIPort)
	}
	return g, nil
}

func (g *BeepSynthGUI) createUI() {
	g.window = g.app.NewWindow("beepsynth")
	g.window.Resize(fyne.NewSize(920, 640))

	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("Add Files...", g.addFiles),
		fyne.NewMenuItem("Add Folder...", g.addFolder),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Save Playlist...", g.savePlaylist),
		fyne.NewMenuItem("Load Playlist...", g.loadPlaylist),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Export to WAV...", g.exportWAV),
		fyne.NewMenuItem("Export to MIDI...", g.exportMIDI),
	)

	playlistMenu := fyne.NewMenu("Playlist",
		fyne.NewMenuItem("Clear All", g.clearPlaylist),
		fyne.NewMenuItem("Sort by Title", func() { g.sortPlaylist(playlist.SortByTitle) }),
		fyne.NewMenuItem("Sort by Duration", func() { g.sortPlaylist(playlist.SortByDuration) }),
		fyne.NewMenuItem("Sort by File", func() { g.sortPlaylist(playlist.SortByPath) }),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Shuffle", g.shufflePlaylist),
	)

	helpMenu := fyne.NewMenu("Help",
		fyne.NewMenuItem("About", g.showAbout),
	)

	g.window.SetMainMenu(fyne.NewMainMenu(fileMenu, playlistMenu, helpMenu))

	split := container.NewHSplit(g.createMainContent(), g.createPlaylistContent())
	split.SetOffset(0.6)

	g.window.SetContent(split)
	g.window.SetOnClosed(g.cleanup)

	g.updatePlaylistLabel()
	g.updateButtons()
	g.startRefresh()
}

func (g *BeepSynthGUI) createMainContent() fyne.CanvasObject {
	g.titleLabel = widget.NewLabel("No song loaded")
	g.titleLabel.TextStyle = fyne.TextStyle{Bold: true}
	g.detailsLabel = widget.NewLabel("")
	g.keyLabel = widget.NewLabel("")
	g.loopLabel = widget.NewLabel("")

	infoCard := widget.NewCard("Now Playing", "", container.NewVBox(
		g.titleLabel,
		g.detailsLabel,
		g.keyLabel,
		g.loopLabel,
	))

	g.timeLabel = widget.NewLabel("00:00 / 00:00")
	g.timeLabel.Alignment = fyne.TextAlignCenter
	g.progressBar = widget.NewProgressBar()
	g.progressBar.TextFormatter = func() string { return "" }

	g.barLabel = widget.NewLabel("Bar 1 / 1")
	g.barSlider = widget.NewSlider(0, 1)
	g.barSlider.Step = 1
	g.barSlider.OnChanged = func(float64) {
		if !g.syncing {
			g.dragging = true
		}
	}
	g.barSlider.OnChangeEnded = func(v float64) {
		g.dragging = false
		if g.loaded {
			g.player.GoToBar(int(v))
		}
	}
	seekContainer := container.NewBorder(nil, nil, widget.NewLabel("Seek:"), g.barLabel, g.barSlider)

	g.prevButton = widget.NewButtonWithIcon("", theme.MediaSkipPreviousIcon(), g.playPrevious)
	g.playButton = widget.NewButtonWithIcon("", theme.MediaPlayIcon(), g.play)
	g.pauseButton = widget.NewButtonWithIcon("", theme.MediaPauseIcon(), g.pause)
	g.stopButton = widget.NewButtonWithIcon("", theme.MediaStopIcon(), g.stop)
	g.nextButton = widget.NewButtonWithIcon("", theme.MediaSkipNextIcon(), g.playNext)

	buttonContainer := container.NewHBox(
		layout.NewSpacer(),
		g.prevButton,
		g.playButton,
		g.pauseButton,
		g.stopButton,
		g.nextButton,
		layout.NewSpacer(),
	)

	volumeLabel := widget.NewLabel(fmt.Sprintf("%.0f%%", g.cfg.Volume*100))
	g.volumeSlider = widget.NewSlider(0, 2)
	g.volumeSlider.Step = 0.01
	g.volumeSlider.Value = min(g.cfg.Volume, 2)
	g.volumeSlider.OnChanged = func(v float64) {
		g.player.SetVolume(v)
		g.cfg.Volume = v
		volumeLabel.SetText(fmt.Sprintf("%.0f%%", v*100))
	}
	volumeContainer := container.NewBorder(
		nil, nil,
		container.NewHBox(widget.NewIcon(theme.VolumeUpIcon()), widget.NewLabel("Volume:")),
		volumeLabel,
		g.volumeSlider,
	)

	labels := make([]string, len(loopChoices))
	for i, c := range loopChoices {
		labels[i] = c.label
	}
	g.loopSelect = widget.NewSelect(labels, g.setLoop)
	g.loopSelect.SetSelected(loopLabelFor(g.cfg.Loop))

	shuffleCheck := widget.NewCheck("Shuffle", func(checked bool) {
		g.shuffle = checked
	})
	g.repeatButton = widget.NewButton(g.repeatMode.String(), g.toggleRepeatMode)

	optionsContainer := container.NewHBox(
		g.loopSelect,
		widget.NewSeparator(),
		shuffleCheck,
		g.repeatButton,
	)

	tipCard := widget.NewCard("", "", widget.NewLabelWithStyle(
		"Tip: add BeepBox song files (.json or song text) from the File menu",
		fyne.TextAlignCenter,
		fyne.TextStyle{Italic: true},
	))

	g.statusLabel = widget.NewLabel("Ready")
	statusBar := container.NewBorder(widget.NewSeparator(), nil, nil, g.statusLabel, nil)

	content := container.NewVBox(
		infoCard,
		widget.NewSeparator(),
		container.NewVBox(g.progressBar, g.timeLabel),
		buttonContainer,
		seekContainer,
		widget.NewSeparator(),
		volumeContainer,
		optionsContainer,
		layout.NewSpacer(),
		tipCard,
		statusBar,
	)
	return container.NewPadded(content)
}

func (g *BeepSynthGUI) createPlaylistContent() fyne.CanvasObject {
	g.playlistLabel = widget.NewLabel("")
	g.playlistLabel.TextStyle = fyne.TextStyle{Bold: true}

	g.playlistWidget = widget.NewList(
		func() int {
			return g.playlist.Size()
		},
		func() fyne.CanvasObject {
			title := widget.NewLabel("")
			title.Truncation = fyne.TextTruncateEllipsis
			return container.NewBorder(nil, nil, nil, widget.NewLabel(""), title)
		},
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			box := obj.(*fyne.Container)
			title := box.Objects[0].(*widget.Label)
			length := box.Objects[1].(*widget.Label)

			item, err := g.playlist.Get(id)
			if err != nil {
				return
			}
			title.SetText(item.Title)
			if item.Duration > 0 {
				length.SetText(formatTime(item.Duration))
			} else {
				length.SetText(fmt.Sprintf("%d bars", item.Bars))
			}
			title.TextStyle = fyne.TextStyle{Bold: id == g.current}
			title.Refresh()
		},
	)
	g.playlistWidget.OnSelected = func(id widget.ListItemID) {
		g.selected = id
		g.updateButtons()
		if id != g.current || !g.active {
			g.playFromIndex(id)
		}
	}
	g.playlistWidget.OnUnselected = func(widget.ListItemID) {
		g.selected = -1
		g.updateButtons()
	}

	addButton := widget.NewButtonWithIcon("Add", theme.ContentAddIcon(), g.addFiles)
	g.removeButton = widget.NewButtonWithIcon("Remove", theme.ContentRemoveIcon(), g.removeSelected)
	clearButton := widget.NewButtonWithIcon("Clear", theme.DeleteIcon(), g.clearPlaylist)
	g.moveUpButton = widget.NewButtonWithIcon("", theme.MoveUpIcon(), g.moveSelectedUp)
	g.moveDownButton = widget.NewButtonWithIcon("", theme.MoveDownIcon(), g.moveSelectedDown)

	buttonBar := container.NewHBox(
		addButton,
		g.removeButton,
		clearButton,
		layout.NewSpacer(),
		g.moveUpButton,
		g.moveDownButton,
	)

	return widget.NewCard("", "", container.NewBorder(
		container.NewVBox(g.playlistLabel, widget.NewSeparator()),
		buttonBar,
		nil, nil,
		container.NewScroll(g.playlistWidget),
	))
}

func (g *BeepSynthGUI) startRefresh() {
	g.ticker = time.NewTicker(100 * time.Millisecond)
	go func() {
		for {
			select {
			case <-g.ticker.C:
				fyne.Do(g.refresh)
			case <-g.done:
				return
			}
		}
	}()
}

// refresh moves the song on when it ends and brings the transport
// widgets up to date.
func (g *BeepSynthGUI) refresh() {
	if !g.loaded {
		return
	}
	if g.active && g.player.IsOver() {
		g.songEnded()
	}

	info := g.player.GetInfo()
	pos := time.Duration(g.player.GetPos()) * time.Millisecond
	bar := g.player.Bar()

	if info.Duration > 0 {
		g.progressBar.SetValue(min(float64(pos)/float64(info.Duration), 1))
		g.timeLabel.SetText(fmt.Sprintf("%s / %s", formatTime(pos), formatTime(info.Duration)))
	} else {
		g.progressBar.SetValue(float64(bar) / float64(max(info.Bars, 1)))
		g.timeLabel.SetText(formatTime(pos) + " / endless")
	}

	g.barLabel.SetText(fmt.Sprintf("Bar %d / %d", bar+1, info.Bars))
	if !g.dragging {
		g.syncing = true
		g.barSlider.SetValue(float64(bar))
		g.syncing = false
	}

	switch {
	case g.player.IsPlaying():
		g.statusLabel.SetText("Playing")
	case g.active:
		g.statusLabel.SetText("Paused")
	default:
		g.statusLabel.SetText("Ready")
	}
}

func (g *BeepSynthGUI) songEnded() {
	size := g.playlist.Size()
	switch {
	case g.repeatMode == RepeatOne:
		g.player.Restart()
	case size == 0:
		g.stop()
	case g.shuffle:
		g.playFromIndex(rand.IntN(size))
	case g.current+1 < size:
		g.playFromIndex(g.current + 1)
	case g.repeatMode == RepeatAll:
		g.playFromIndex(0)
	default:
		g.stop()
	}
}

func (g *BeepSynthGUI) addFiles() {
	dialog.ShowFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		reader.Close()
		g.addFileToPlaylist(reader.URI().Path())
	}, g.window)
}

func (g *BeepSynthGUI) addFolder() {
	dialog.ShowFolderOpen(func(uri fyne.ListableURI, err error) {
		if err != nil || uri == nil {
			return
		}
		files, err := uri.List()
		if err != nil {
			dialog.ShowError(err, g.window)
			return
		}

		added := 0
		for _, file := range files {
			if playlist.IsSongFile(file.Name()) && g.addFileToPlaylist(file.Path()) {
				added++
			}
		}
		if added > 0 {
			dialog.ShowInformation("Files Added",
				fmt.Sprintf("Added %d songs to the playlist", added), g.window)
		}
	}, g.window)
}

// addFileToPlaylist appends the song at path, reporting whether it could
// be read.
func (g *BeepSynthGUI) addFileToPlaylist(path string) bool {
	item, err := playlist.ItemFromFile(path, g.cfg.Loop)
	if err != nil {
		slog.Warn("failed to add song", "path", path, "error", err)
		return false
	}
	g.playlist.Add(item)
	g.playlistChanged()
	return true
}

// loadIndex loads the song at index of the playlist without starting it
func (g *BeepSynthGUI) loadIndex(index int) bool {
	item, err := g.playlist.Get(index)
	if err != nil {
		return false
	}
	s, err := song.Load(item.Path)
	if err != nil {
		dialog.ShowError(err, g.window)
		return false
	}

	g.player.LoadSong(s)
	g.keyboard.SetBasePitch(song.Keys[s.Key].BasePitch)
	g.keyboard.SetChannel(0)
	g.current = index
	g.loaded = true
	g.active = false
	g.showSong(s, item)
	g.playlistWidget.Refresh()
	g.updateButtons()
	return true
}

func (g *BeepSynthGUI) showSong(s *song.Song, item *playlist.Item) {
	title := s.Title
	if title == "" {
		title = item.Title
	}
	g.titleLabel.SetText(title)
	g.detailsLabel.SetText(fmt.Sprintf("%d pitch + %d noise channels • %d bpm • %d beats per bar",
		s.PitchChannelCount, s.NoiseChannelCount, s.Tempo, s.BeatsPerBar))
	g.keyLabel.SetText(fmt.Sprintf("Key of %s, %s scale", song.Keys[s.Key].Name, song.Scales[s.Scale].Name))
	g.loopLabel.SetText(fmt.Sprintf("%d bars, loop on bars %d-%d",
		s.BarCount, s.LoopStart+1, s.LoopStart+s.LoopLength))

	g.barSlider.Max = float64(max(s.BarCount-1, 1))
	g.syncing = true
	g.barSlider.SetValue(0)
	g.syncing = false
	g.progressBar.SetValue(0)
}

// ensureOutput opens the audio output the first time something plays
func (g *BeepSynthGUI) ensureOutput() bool {
	if g.out != nil {
		return true
	}
	out, err := audio.StartWithFallback(liveSource{g.player}, g.cfg.Output, g.cfg.SampleRate, g.cfg.BufferSize)
	if err != nil {
		dialog.ShowError(err, g.window)
		return false
	}
	g.out = out
	return true
}

func (g *BeepSynthGUI) play() {
	if !g.loaded && !g.loadIndex(max(g.current, 0)) {
		return
	}
	if !g.ensureOutput() {
		return
	}
	g.player.Play()
	g.active = true
	g.updateButtons()
}

func (g *BeepSynthGUI) pause() {
	if !g.active {
		return
	}
	if g.player.IsPlaying() {
		g.player.Pause()
		g.pauseButton.SetIcon(theme.MediaPlayIcon())
	} else {
		g.player.Play()
		g.pauseButton.SetIcon(theme.MediaPauseIcon())
	}
}

func (g *BeepSynthGUI) stop() {
	g.player.Stop()
	g.active = false
	g.progressBar.SetValue(0)
	g.updateButtons()
}

func (g *BeepSynthGUI) playFromIndex(index int) {
	g.stop()
	if g.loadIndex(index) {
		g.play()
	}
}

func (g *BeepSynthGUI) playNext() {
	size := g.playlist.Size()
	if size == 0 {
		return
	}
	if g.shuffle {
		g.playFromIndex(rand.IntN(size))
		return
	}
	g.playFromIndex((g.current + 1) % size)
}

func (g *BeepSynthGUI) playPrevious() {
	size := g.playlist.Size()
	if size == 0 {
		return
	}
	prev := g.current - 1
	if prev < 0 {
		prev = size - 1
	}
	g.playFromIndex(prev)
}

func (g *BeepSynthGUI) setLoop(label string) {
	for _, c := range loopChoices {
		if c.label == label {
			g.cfg.Loop = c.repeats
			g.player.SetLoopMode(c.repeats < 0)
			g.player.SetLoopRepeats(c.repeats)
			return
		}
	}
}

func loopLabelFor(repeats int) string {
	for _, c := range loopChoices {
		if c.repeats == repeats {
			return c.label
		}
	}
	if repeats < 0 {
		return loopChoices[len(loopChoices)-1].label
	}
	return loopChoices[0].label
}

func (g *BeepSynthGUI) toggleRepeatMode() {
	g.repeatMode = (g.repeatMode + 1) % 3
	g.repeatButton.SetText(g.repeatMode.String())
}

func (g *BeepSynthGUI) removeSelected() {
	index := g.selected
	if err := g.playlist.Remove(index); err != nil {
		return
	}
	switch {
	case index == g.current:
		g.stop()
		g.current = -1
		g.loaded = false
		g.titleLabel.SetText("No song loaded")
	case index < g.current:
		g.current--
	}
	g.selected = -1
	g.playlistWidget.UnselectAll()
	g.playlistChanged()
}

func (g *BeepSynthGUI) moveSelectedUp() {
	if g.playlist.MoveUp(g.selected) != nil {
		return
	}
	g.current = swapped(g.current, g.selected, g.selected-1)
	g.selected--
	g.playlistChanged()
}

func (g *BeepSynthGUI) moveSelectedDown() {
	if g.playlist.MoveDown(g.selected) != nil {
		return
	}
	g.current = swapped(g.current, g.selected, g.selected+1)
	g.selected++
	g.playlistChanged()
}

// swapped follows index through a swap of a and b
func swapped(index, a, b int) int {
	switch index {
	case a:
		return b
	case b:
		return a
	}
	return index
}

func (g *BeepSynthGUI) clearPlaylist() {
	dialog.ShowConfirm("Clear Playlist",
		"Are you sure you want to clear the entire playlist?",
		func(ok bool) {
			if !ok {
				return
			}
			g.stop()
			g.playlist.Clear()
			g.current = -1
			g.selected = -1
			g.playlistChanged()
		}, g.window)
}

func (g *BeepSynthGUI) savePlaylist() {
	dialog.ShowFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil || writer == nil {
			return
		}
		writer.Close()

		path := writer.URI().Path()
		if strings.EqualFold(filepath.Ext(path), ".m3u") {
			err = g.playlist.SaveM3U(path)
		} else {
			if filepath.Ext(path) != ".json" {
				path += ".json"
			}
			err = g.playlist.Save(path)
		}
		if err != nil {
			dialog.ShowError(err, g.window)
			return
		}
		g.cfg.Playlist = path
		dialog.ShowInformation("Playlist Saved", filepath.Base(path), g.window)
	}, g.window)
}

func (g *BeepSynthGUI) loadPlaylist() {
	dialog.ShowFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		reader.Close()

		path := reader.URI().Path()
		pl, err := readPlaylist(path)
		if err != nil {
			dialog.ShowError(err, g.window)
			return
		}

		g.stop()
		g.playlist = pl
		g.current = -1
		g.selected = -1
		g.loaded = false
		g.cfg.Playlist = path
		g.playlistChanged()
	}, g.window)
}

func readPlaylist(path string) (*playlist.Playlist, error) {
	if strings.EqualFold(filepath.Ext(path), ".m3u") {
		return playlist.LoadM3U(path)
	}
	return playlist.Load(path)
}

func (g *BeepSynthGUI) sortPlaylist(by playlist.SortBy) {
	g.rememberCurrent(func() { g.playlist.Sort(by) })
}

func (g *BeepSynthGUI) shufflePlaylist() {
	g.rememberCurrent(g.playlist.Shuffle)
}

// rememberCurrent keeps the current song marked through a reorder
func (g *BeepSynthGUI) rememberCurrent(reorder func()) {
	var cur *playlist.Item
	if item, err := g.playlist.Get(g.current); err == nil {
		cur = item
	}
	reorder()
	g.current = -1
	for i, item := range g.playlist.Items {
		if item == cur {
			g.current = i
		}
	}
	g.selected = -1
	g.playlistWidget.UnselectAll()
	g.playlistChanged()
}

func (g *BeepSynthGUI) playlistChanged() {
	g.updatePlaylistLabel()
	g.playlistWidget.Refresh()
	g.updateButtons()
}

func (g *BeepSynthGUI) updatePlaylistLabel() {
	g.playlistLabel.SetText(fmt.Sprintf("Playlist (%d songs, %s)",
		g.playlist.Size(), formatTime(g.playlist.TotalDuration())))
}

func (g *BeepSynthGUI) updateButtons() {
	enable := func(b *widget.Button, on bool) {
		if on {
			b.Enable()
		} else {
			b.Disable()
		}
	}
	size := g.playlist.Size()
	enable(g.playButton, (g.loaded || size > 0) && !g.active)
	enable(g.pauseButton, g.active)
	enable(g.stopButton, g.active)
	enable(g.prevButton, size > 1)
	enable(g.nextButton, size > 1)
	enable(g.removeButton, g.selected >= 0)
	enable(g.moveUpButton, g.selected > 0)
	enable(g.moveDownButton, g.selected >= 0 && g.selected < size-1)
	if !g.active {
		g.pauseButton.SetIcon(theme.MediaPauseIcon())
	}
}

func (g *BeepSynthGUI) listenMIDI(port string) {
	stop, err := midi.Listen(port, g.keyboard)
	if err != nil {
		slog.Warn("midi input unavailable", "port", port, "error", err)
		return
	}
	g.stopMIDI = stop
	if !g.ensureOutput() {
		return
	}
	slog.Info("listening to midi input", "port", port)
}

func (g *BeepSynthGUI) showAbout() {
	content := container.NewVBox(
		widget.NewLabelWithStyle("beepsynth", fyne.TextAlignCenter, fyne.TextStyle{Bold: true}),
		widget.NewLabel(""),
		widget.NewLabel("A player for BeepBox songs"),
		widget.NewLabel("Reads BeepBox JSON files and song text in every"),
		widget.NewLabel("compact version the synth understands."),
		widget.NewLabel(""),
		widget.NewLabel("• Playlists in JSON and M3U • WAV and MIDI export"),
		widget.NewLabel("• Play along from a MIDI keyboard"),
	)
	dialog.ShowCustom("About beepsynth", "OK", content, g.window)
}

func (g *BeepSynthGUI) cleanup() {
	if g.ticker != nil {
		g.ticker.Stop()
		close(g.done)
	}
	if g.stopMIDI != nil {
		g.stopMIDI()
	}
	g.player.Pause()
	if g.out != nil {
		if err := g.out.Stop(); err != nil {
			slog.Warn("failed to close audio output", "error", err)
		}
	}
	if g.cfgPath != "" {
		g.cfg.Validate()
		if err := g.cfg.Save(g.cfgPath); err != nil {
			slog.Warn("failed to save settings", "path", g.cfgPath, "error", err)
		}
	}
}

func (g *BeepSynthGUI) Run() {
	g.window.ShowAndRun()
}

func formatTime(d time.Duration) string {
	seconds := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
