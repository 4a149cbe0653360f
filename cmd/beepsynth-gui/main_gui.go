//go:build gui

package main

import (
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/olivierh59500/beepsynth/pkg/config"
)

var (
	configFile = pflag.String("config", "", "Settings file (default: user config directory)")
	debug      = pflag.Bool("debug", false, "Debug logging")
)

func main() {
	pflag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	path := *configFile
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			slog.Warn("no settings directory, using defaults", "error", err)
		}
	}
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			slog.Warn("failed to read settings, using defaults", "path", path, "error", err)
		}
	}

	gui, err := NewBeepSynthGUI(cfg, path)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}

	// Songs given on the command line go to the playlist, and the first
	// one is loaded.
	for _, arg := range pflag.Args() {
		gui.addFileToPlaylist(arg)
	}
	if pflag.NArg() > 0 {
		gui.loadIndex(0)
	}

	gui.Run()
}
