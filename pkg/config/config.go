// Package config holds the player settings saved between runs.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"

	"github.com/olivierh59500/beepsynth/pkg/synth"
)

// FileName is the settings file name inside the user config directory
const FileName = "beepsynth.toml"

// Config is the persisted player configuration
type Config struct {
	SampleRate int     `toml:"sample_rate"`
	BufferSize int     `toml:"buffer_size"`
	Output     string  `toml:"output"`
	Volume     float64 `toml:"volume"`

	// Loop repeats after the first pass. -1 loops forever.
	Loop int `toml:"loop"`

	// Seconds a live note may be held before it is released. 0 never
	// releases.
	LiveTimeout float64 `toml:"live_timeout"`

	Playlist string `toml:"playlist,omitempty"`
	MIDIPort string `toml:"midi_port,omitempty"`
}

// Default returns the built in settings
func Default() Config {
	return Config{
		SampleRate:  48000,
		BufferSize:  2048,
		Output:      "oto",
		Volume:      1,
		Loop:        0,
		LiveTimeout: synth.DefaultLiveInputTimeout,
	}
}

// DefaultPath returns the settings file in the user config directory
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fault.Wrap(err, fmsg.With("find config directory"))
	}
	return filepath.Join(dir, "beepsynth", FileName), nil
}

// Load reads settings from path. A missing file gives the defaults, and
// keys absent from the file keep their default value.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return Default(), fault.Wrap(err,
			ftag.With(ftag.InvalidArgument),
			fmsg.WithDesc("decode "+path, "The settings file is not valid TOML."))
	}
	cfg.Validate()
	return cfg, nil
}

// Save writes settings to path, creating its directory
func (c Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fault.Wrap(err, fmsg.With("create config directory"))
	}
	f, err := os.Create(path)
	if err != nil {
		return fault.Wrap(err, fmsg.With("create config file"))
	}
	if err := toml.NewEncoder(f).Encode(c); err != nil {
		f.Close()
		return fault.Wrap(err, fmsg.With("encode config"))
	}
	return f.Close()
}

// Validate clamps every setting into its usable range
func (c *Config) Validate() {
	def := Default()
	if c.SampleRate < synth.MinSampleRate {
		c.SampleRate = def.SampleRate
	}
	c.SampleRate = min(c.SampleRate, 384000)
	if c.BufferSize <= 0 {
		c.BufferSize = def.BufferSize
	}
	c.BufferSize = min(max(c.BufferSize, 64), 65536)
	if c.Output == "" {
		c.Output = def.Output
	}
	c.Volume = min(max(c.Volume, 0), 4)
	c.Loop = max(c.Loop, -1)
	c.LiveTimeout = max(c.LiveTimeout, 0)
}
