package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/olivierh59500/beepsynth/pkg/midi"
	"github.com/olivierh59500/beepsynth/pkg/player"
	"github.com/olivierh59500/beepsynth/pkg/song"
)

// Terminals report key presses but not releases, so a note is let go
// after noteHold unless the same key repeats.
const noteHold = 350 * time.Millisecond

// pianoKeys maps the home row and the row above it to semitones, like a
// piano keyboard.
var pianoKeys = map[string]int{
	"a": 0, "w": 1, "s": 2, "e": 3, "d": 4, "f": 5, "t": 6,
	"g": 7, "y": 8, "h": 9, "u": 10, "j": 11, "k": 12, "o": 13, "l": 14,
}

func Key(help string, keyboardKey ...string) key.Binding {
	return key.NewBinding(key.WithKeys(keyboardKey...), key.WithHelp(keyboardKey[0], help))
}

type keyMap struct {
	Play       key.Binding
	NextBar    key.Binding
	PrevBar    key.Binding
	VolumeUp   key.Binding
	VolumeDown key.Binding
	OctaveUp   key.Binding
	OctaveDown key.Binding
	Channel    key.Binding
	Help       key.Binding
	Quit       key.Binding
}

var keys = keyMap{
	Play:       key.NewBinding(key.WithKeys(" ", "space"), key.WithHelp("space", "play/pause")),
	NextBar:    Key("next bar", "right"),
	PrevBar:    Key("previous bar", "left"),
	VolumeUp:   Key("louder", "+", "="),
	VolumeDown: Key("softer", "-"),
	OctaveUp:   Key("octave up", "x"),
	OctaveDown: Key("octave down", "z"),
	Channel:    Key("next channel", "tab"),
	Help:       Key("help", "?"),
	Quit:       Key("quit", "q", "ctrl+c", "esc"),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Play, k.OctaveDown, k.OctaveUp, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Play, k.PrevBar, k.NextBar},
		{k.VolumeDown, k.VolumeUp},
		{k.OctaveDown, k.OctaveUp, k.Channel},
		{k.Help, k.Quit},
	}
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "240", Dark: "245"})
	noteStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	statusStyle = lipgloss.NewStyle().Padding(0, 1).Border(lipgloss.RoundedBorder())
)

type refreshMsg time.Time

type releaseMsg struct {
	press int
}

type liveModel struct {
	player   *player.Player
	keyboard *midi.Keyboard
	help     help.Model
	channel  int
	octave   int
	held     int
	press    int
	lastNote string
}

func newLiveModel(p *player.Player, k *midi.Keyboard) liveModel {
	return liveModel{
		player:   p,
		keyboard: k,
		help:     help.New(),
		octave:   4,
		held:     -1,
	}
}

func refresh() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg { return refreshMsg(t) })
}

func (m liveModel) Init() tea.Cmd {
	return refresh()
}

func (m liveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case refreshMsg:
		return m, refresh()

	case releaseMsg:
		if msg.press == m.press && m.held >= 0 {
			m.keyboard.Release(m.held)
			m.held = -1
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.releaseHeld()
			return m, tea.Quit
		case key.Matches(msg, keys.Play):
			if m.player.IsPlaying() {
				m.player.Pause()
			} else {
				m.player.Play()
			}
		case key.Matches(msg, keys.NextBar):
			m.player.NextBar()
		case key.Matches(msg, keys.PrevBar):
			m.player.PrevBar()
		case key.Matches(msg, keys.VolumeUp):
			m.player.SetVolume(min(m.player.Volume()+0.1, 4))
		case key.Matches(msg, keys.VolumeDown):
			m.player.SetVolume(max(m.player.Volume()-0.1, 0))
		case key.Matches(msg, keys.OctaveUp):
			m.octave = min(m.octave+1, song.PitchOctaves-1)
		case key.Matches(msg, keys.OctaveDown):
			m.octave = max(m.octave-1, 0)
		case key.Matches(msg, keys.Channel):
			m.channel = (m.channel + 1) % m.player.Song().ChannelCount()
			m.keyboard.SetChannel(m.channel)
		case key.Matches(msg, keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		default:
			if semitone, ok := pianoKeys[msg.String()]; ok {
				return m.play(semitone)
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
	}
	return m, nil
}

// play holds one key at a time on the keyboard, and lets go of it once
// the key stops repeating.
func (m liveModel) play(semitone int) (tea.Model, tea.Cmd) {
	base := song.Keys[m.player.Song().Key].BasePitch
	k := base + m.octave*song.PitchesPerOctave + semitone
	if k != m.held {
		m.releaseHeld()
		m.keyboard.Press(k)
		m.held = k
	}
	m.press++
	pitch := k - base
	m.lastNote = fmt.Sprintf("%s%d", song.Keys[pitch%song.PitchesPerOctave].Name, pitch/song.PitchesPerOctave)

	press := m.press
	return m, tea.Tick(noteHold, func(time.Time) tea.Msg { return releaseMsg{press: press} })
}

func (m *liveModel) releaseHeld() {
	if m.held >= 0 {
		m.keyboard.Release(m.held)
		m.held = -1
	}
}

func (m liveModel) View() string {
	info := m.player.GetInfo()
	state := "paused"
	switch {
	case m.player.IsOver():
		state = "ended"
	case m.player.IsPlaying():
		state = "playing"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(info.Title) + "\n\n")
	status := fmt.Sprintf("%s %-8s %s %d/%d   %s %3.0f%%\n%s %d   %s %d   %s %s",
		labelStyle.Render("transport"), state,
		labelStyle.Render("bar"), m.player.Bar()+1, info.Bars,
		labelStyle.Render("volume"), m.player.Volume()*100,
		labelStyle.Render("channel"), m.channel+1,
		labelStyle.Render("octave"), m.octave,
		labelStyle.Render("note"), noteStyle.Render(m.lastNote))
	b.WriteString(statusStyle.Render(status) + "\n\n")
	b.WriteString(m.help.View(keys))
	return b.String()
}

// runLive plays along with the song on the computer keyboard until the
// user quits.
func runLive(p *player.Player, k *midi.Keyboard) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("--live needs an interactive terminal")
	}
	_, err := tea.NewProgram(newLiveModel(p, k), tea.WithAltScreen()).Run()
	return err
}
