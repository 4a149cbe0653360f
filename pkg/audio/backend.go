package audio

import (
	"log/slog"
	"slices"
	"strings"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
)

// backends maps output names to constructors. Optional back-ends register
// themselves from files behind build tags.
var backends = map[string]func() Output{
	"oto":      func() Output { return NewOtoOutput() },
	"beep":     func() Output { return NewBeepOutput() },
	"fallback": func() Output { return NewFallbackOutput() },
	"null":     func() Output { return NullOutput{} },
}

// Backends lists the output names New accepts
func Backends() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// New returns the output registered under name
func New(name string) (Output, error) {
	create, ok := backends[strings.ToLower(name)]
	if !ok {
		return nil, fault.New("unknown output "+name,
			ftag.With(ftag.InvalidArgument),
			fmsg.WithDesc("unknown output "+name, "Available outputs: "+strings.Join(Backends(), ", ")+"."))
	}
	return create(), nil
}

// StartWithFallback starts pumping source into the named output. When the
// device can't be opened it plays silently in real time instead.
func StartWithFallback(source Source, name string, sampleRate, bufferSize int) (*Player, error) {
	out, err := New(name)
	if err != nil {
		return nil, err
	}
	player := NewPlayer(source, out)
	if err := player.Start(sampleRate, bufferSize); err != nil {
		slog.Warn("audio output unavailable, playing silently", "output", name, "error", err)
		player = NewPlayer(source, NewFallbackOutput())
		if err := player.Start(sampleRate, bufferSize); err != nil {
			return nil, err
		}
	}
	return player, nil
}
