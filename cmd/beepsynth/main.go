package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/Southclaws/fault/fmsg"
	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/olivierh59500/beepsynth/pkg/audio"
	"github.com/olivierh59500/beepsynth/pkg/config"
	"github.com/olivierh59500/beepsynth/pkg/midi"
	"github.com/olivierh59500/beepsynth/pkg/player"
	"github.com/olivierh59500/beepsynth/pkg/song"
	"github.com/olivierh59500/beepsynth/pkg/synth"
)

var (
	sampleRate = pflag.IntP("rate", "r", 48000, "Sample rate (Hz)")
	bufferSize = pflag.Int("buffer", 2048, "Buffer size in frames")
	loop       = pflag.IntP("loop", "l", 0, "Extra passes through the loop section, -1 loops forever")
	volume     = pflag.Float64P("volume", "v", 1.0, "Volume (0.0 to 4.0)")
	info       = pflag.BoolP("info", "i", false, "Show song info only")
	output     = pflag.StringP("output", "o", "oto", "Output backend ("+strings.Join(audio.Backends(), ", ")+")")
	wavFile    = pflag.String("wav", "", "Render to a WAV file instead of playing")
	configFile = pflag.String("config", "", "Settings file (default: user config directory)")
	startBar   = pflag.Int("bar", 0, "Bar to start playing from")
	live       = pflag.Bool("live", false, "Play along on the computer keyboard")
	midiIn     = pflag.String("midi-in", "", "Play along on a MIDI input (needs the rtmidi build tag)")
	dump       = pflag.Bool("dump", false, "Dump the decoded song")
	exportMIDI = pflag.String("export-midi", "", "Write the song as a MIDI file")
	debug      = pflag.Bool("debug", false, "Debug logging")
)

// wavTail is how long a WAV render keeps going after the last bar
const wavTail = 2 * time.Second

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <song file | #song | url>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "beepsynth - play BeepBox songs\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	level := slog.LevelWarn
	if *debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if pflag.NArg() < 1 {
		pflag.Usage()
		os.Exit(1)
	}

	if err := run(pflag.Arg(0)); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	msg := fmsg.GetIssue(err)
	if msg == "" {
		msg = err.Error()
	}
	fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	slog.Debug("failure", "error", err)
	os.Exit(1)
}

// settings merges the settings file with the flags given on the command line
func settings() (config.Config, error) {
	path := *configFile
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return config.Default(), nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	if pflag.CommandLine.Changed("rate") {
		cfg.SampleRate = *sampleRate
	}
	if pflag.CommandLine.Changed("buffer") {
		cfg.BufferSize = *bufferSize
	}
	if pflag.CommandLine.Changed("loop") {
		cfg.Loop = *loop
	}
	if pflag.CommandLine.Changed("volume") {
		cfg.Volume = *volume
	}
	if pflag.CommandLine.Changed("output") {
		cfg.Output = *output
	}
	if pflag.CommandLine.Changed("midi-in") {
		cfg.MIDIPort = *midiIn
	}
	cfg.Validate()
	return cfg, nil
}

// readSong returns the raw song data of a file, or the argument itself
// when it is a song hash or link.
func readSong(arg string) ([]byte, error) {
	if strings.HasPrefix(arg, "#") || strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
		return []byte(arg), nil
	}
	data, err := os.ReadFile(arg)
	if err != nil {
		if _, statErr := os.Stat(arg); os.IsNotExist(statErr) {
			return nil, fmt.Errorf("file not found: %s", arg)
		}
		return nil, err
	}
	return data, nil
}

func run(arg string) error {
	cfg, err := settings()
	if err != nil {
		return err
	}

	data, err := readSong(arg)
	if err != nil {
		return err
	}
	format, version, err := song.Describe(data)
	if err != nil {
		return err
	}
	fmt.Printf("Song format: %s (version %d)\n", format, version)

	p, err := player.Create(cfg.SampleRate, synth.WithLiveInputTimeout(cfg.LiveTimeout))
	if err != nil {
		return err
	}
	if err := p.LoadMemory(data); err != nil {
		return err
	}

	p.SetLoopMode(cfg.Loop < 0)
	p.SetLoopRepeats(cfg.Loop)
	p.SetVolume(cfg.Volume)

	songInfo := p.GetInfo()
	printInfo(songInfo, p.Song())

	if *dump {
		spew.Dump(p.Song())
	}
	if *exportMIDI != "" {
		if err := writeMIDI(*exportMIDI, p.Song()); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", *exportMIDI)
	}
	if *info {
		return nil
	}

	if *startBar > 0 {
		p.GoToBar(*startBar)
	}

	if *wavFile != "" {
		return renderWAV(p, songInfo, cfg.SampleRate, *wavFile)
	}

	p.Play()
	out, err := audio.StartWithFallback(p, cfg.Output, cfg.SampleRate, cfg.BufferSize)
	if err != nil {
		return err
	}
	defer out.Stop()

	if *live || cfg.MIDIPort != "" {
		keyboard := midi.NewKeyboard(p, 0, song.Keys[p.Song().Key].BasePitch)
		if cfg.MIDIPort != "" {
			stop, err := midi.Listen(cfg.MIDIPort, keyboard)
			if err != nil {
				return err
			}
			defer stop()
		}
		if *live {
			return runLive(p, keyboard)
		}
	}

	return playWithProgress(p, out, songInfo)
}

func printInfo(info player.Info, s *song.Song) {
	fmt.Printf("\n")
	fmt.Printf("Title:    %s\n", info.Title)
	fmt.Printf("Channels: %d pitch, %d noise\n", info.Pitch, info.Noise)
	fmt.Printf("Tempo:    %d bpm, %d beats per bar\n", info.Tempo, info.BeatsPerBar)
	fmt.Printf("Key:      %s %s\n", song.Keys[s.Key].Name, song.Scales[s.Scale].Name)
	fmt.Printf("Bars:     %d (loop %d-%d)\n", info.Bars, info.LoopStart+1, info.LoopStart+info.LoopLength)
	if info.Duration > 0 {
		fmt.Printf("Duration: %s\n", formatDuration(uint32(info.Duration.Milliseconds())))
	} else {
		fmt.Printf("Duration: endless\n")
	}
	fmt.Printf("\n")
}

func writeMIDI(path string, s *song.Song) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := midi.ExportSMF(s, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func renderWAV(p *player.Player, info player.Info, rate int, path string) error {
	if info.Duration == 0 {
		return fmt.Errorf("an endless loop can't be rendered, set --loop to 0 or more")
	}
	if filepath.Ext(path) == "" {
		path += ".wav"
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	total := int((info.Duration + wavTail).Seconds() * float64(rate))
	tty := term.IsTerminal(int(os.Stdout.Fd()))
	fmt.Printf("Rendering %s...\n", filepath.Base(path))

	p.Play()
	src := audio.WithTail(p, int(wavTail.Seconds()*float64(rate)))
	frames, err := audio.RenderWAV(f, src, rate, total, func(done int) {
		if tty {
			percent := float64(done) / float64(total) * 100
			fmt.Printf("\r[%s] %.1f%%", makeProgressBar(percent, 30), percent)
		}
	})
	if err != nil {
		return err
	}
	fmt.Printf("\nWrote %s of audio\n", formatDuration(uint32(frames*1000/rate)))
	return nil
}

func playWithProgress(p *player.Player, out *audio.Player, info player.Info) error {
	fmt.Printf("Playing... (Press Ctrl+C to stop)\n")
	if info.Duration == 0 {
		fmt.Printf("Looping forever\n")
	}
	fmt.Printf("\n")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	tty := term.IsTerminal(int(os.Stdout.Fd()))
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-sigChan:
			fmt.Printf("\n\nStopping...\n")
			return nil

		case <-out.Done():
			fmt.Printf("\n\nPlayback finished.\n")
			return nil

		case <-ticker.C:
			if !tty {
				continue
			}
			pos := p.GetPos()
			if info.Duration > 0 {
				total := uint32(info.Duration.Milliseconds())
				percent := min(float64(pos)/float64(total)*100, 100)
				fmt.Printf("\r[%s] %s / %s (%.1f%%)  bar %d",
					makeProgressBar(percent, 30),
					formatDuration(pos),
					formatDuration(total),
					percent,
					p.Bar()+1)
			} else {
				fmt.Printf("\r%s  bar %d   ", formatDuration(pos), p.Bar()+1)
			}
		}
	}
}

func formatDuration(ms uint32) string {
	seconds := ms / 1000
	minutes := seconds / 60
	seconds %= 60
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

func makeProgressBar(percent float64, width int) string {
	filled := int(percent / 100 * float64(width))
	if filled > width {
		filled = width
	}

	bar := strings.Repeat("=", filled)
	if filled < width {
		bar += ">"
		bar += strings.Repeat(" ", width-filled-1)
	}

	return bar
}
