//go:build !rtmidi

package midi

import (
	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
)

func errNoDriver() error {
	return fault.New("built without rtmidi",
		fmsg.WithDesc("no midi driver", "MIDI input needs a build with the rtmidi tag."))
}

// Ports lists the MIDI inputs
func Ports() ([]string, error) {
	return nil, errNoDriver()
}

// Listen feeds the named MIDI input to the keyboard until stop is called.
func Listen(portName string, k *Keyboard) (stop func(), err error) {
	return nil, errNoDriver()
}
