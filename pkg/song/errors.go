package song

import (
	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
)

// Error kinds attached to decoding failures. Use ftag.Get to read them.
const (
	ErrCorrupt            ftag.Kind = "corrupt_song"
	ErrUnsupportedVersion ftag.Kind = "unsupported_version"
	ErrUnknownFormat      ftag.Kind = "unknown_format"
)

func corruptf(msg string) error {
	return fault.New(msg, ftag.With(ErrCorrupt), fmsg.WithDesc(msg, "The song data is damaged or incomplete."))
}

func unsupportedVersion(msg string) error {
	return fault.New(msg, ftag.With(ErrUnsupportedVersion), fmsg.WithDesc(msg, "The song was saved by a version this player can't read."))
}

func unknownFormat(msg string) error {
	return fault.New(msg, ftag.With(ErrUnknownFormat), fmsg.WithDesc(msg, "This doesn't look like a song."))
}

// invalid wraps a validation failure as corrupt song data.
func invalid(err error) error {
	return fault.Wrap(err, ftag.With(ErrCorrupt), fmsg.With("invalid song"))
}
