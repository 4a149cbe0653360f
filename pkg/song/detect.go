package song

import (
	"bytes"
	"encoding/json"
	"net/url"
	"os"
	"strings"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
)

var utf8BOM = []byte("\xef\xbb\xbf")

// Format is a song serialization.
type Format int

const (
	FormatUnknown Format = iota
	FormatCompact
	FormatURL
	FormatJSON
)

func (f Format) String() string {
	switch f {
	case FormatCompact:
		return "compact"
	case FormatURL:
		return "url"
	case FormatJSON:
		return "json"
	}
	return "unknown"
}

// Detect guesses the format of data without decoding it
func Detect(data []byte) Format {
	text := strings.TrimSpace(string(bytes.TrimPrefix(data, utf8BOM)))
	if text == "" {
		return FormatUnknown
	}

	// JSON documents are objects
	if text[0] == '{' {
		return FormatJSON
	}

	// Links carry the song in the fragment
	if strings.HasPrefix(text, "http://") || strings.HasPrefix(text, "https://") {
		if u, err := url.Parse(text); err == nil && u.Fragment != "" {
			return FormatURL
		}
		return FormatUnknown
	}

	text = strings.TrimPrefix(text, "#")
	if text == "" {
		return FormatUnknown
	}
	v := base64Value(text[0])
	if v < OldestVersion || v > LatestVersion {
		return FormatUnknown
	}
	for i := 1; i < len(text); i++ {
		if base64Value(text[i]) < 0 {
			return FormatUnknown
		}
	}
	return FormatCompact
}

// Parse decodes a song in any supported format
func Parse(data []byte) (*Song, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	switch Detect(data) {
	case FormatJSON:
		return UnmarshalJSON(data)
	case FormatCompact:
		return UnmarshalCompact(string(data))
	case FormatURL:
		u, err := url.Parse(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, fault.Wrap(err, ftag.With(ErrUnknownFormat), fmsg.With("parse song url"))
		}
		return UnmarshalCompact(u.Fragment)
	}

	// Versions we don't know still deserve a precise error
	text := strings.TrimPrefix(strings.TrimSpace(string(data)), "#")
	if text != "" && base64Value(text[0]) > LatestVersion {
		return nil, unsupportedVersion("song was saved by a newer version")
	}
	return nil, unknownFormat("unrecognized song data")
}

// Load reads a song file from disk
func Load(filename string) (*Song, error) {
	// Read file
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fault.Wrap(err, ftag.With(ftag.NotFound), fmsg.WithDesc("read song file", "The song file doesn't exist."))
		}
		return nil, fault.Wrap(err, fmsg.With("read song file"))
	}

	s, err := Parse(data)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With(filename))
	}
	return s, nil
}

// Describe returns the format and version of data without full decoding
func Describe(data []byte) (format Format, version int, err error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	format = Detect(data)
	switch format {
	case FormatJSON:
		var header struct {
			Version int `json:"version"`
		}
		if err := json.Unmarshal(data, &header); err != nil {
			return format, 0, fault.Wrap(err, ftag.With(ErrCorrupt), fmsg.With("read song json header"))
		}
		return format, header.Version, nil
	case FormatCompact:
		text := strings.TrimPrefix(strings.TrimSpace(string(data)), "#")
		return format, base64Value(text[0]), nil
	case FormatURL:
		u, _ := url.Parse(strings.TrimSpace(string(data)))
		return format, base64Value(u.Fragment[0]), nil
	}
	return FormatUnknown, 0, unknownFormat("unrecognized song data")
}
