//go:build rtmidi

package midi

import (
	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// Ports lists the MIDI inputs
func Ports() ([]string, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("open rtmidi driver"))
	}
	ins, err := drv.Ins()
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("list midi inputs"))
	}
	names := make([]string, len(ins))
	for i, in := range ins {
		names[i] = in.String()
	}
	return names, nil
}

// Listen feeds the named MIDI input to the keyboard until stop is called.
// An empty name picks the first input.
func Listen(portName string, k *Keyboard) (stop func(), err error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("open rtmidi driver"))
	}
	ins, err := drv.Ins()
	if err != nil {
		drv.Close()
		return nil, fault.Wrap(err, fmsg.With("list midi inputs"))
	}

	var found drivers.In
	for _, in := range ins {
		if portName == "" || in.String() == portName {
			found = in
			break
		}
	}
	if found == nil {
		drv.Close()
		return nil, fault.New("midi input not found",
			ftag.With(ftag.NotFound),
			fmsg.WithDesc("midi input "+portName+" not found", "Check that the MIDI device is connected."))
	}
	if err := found.Open(); err != nil {
		drv.Close()
		return nil, fault.Wrap(err, fmsg.With("open midi input "+found.String()))
	}

	logger.Info("MIDI input connected", "device", found.String())
	stopListening, err := midi.ListenTo(found, func(msg midi.Message, _ int32) {
		k.Handle(msg)
	}, midi.HandleError(func(listenErr error) {
		logger.Warn("MIDI listener error", "device", found.String(), "err", listenErr)
	}))
	if err != nil {
		found.Close()
		drv.Close()
		return nil, fault.Wrap(err, fmsg.With("listen to midi input"))
	}

	return func() {
		stopListening()
		found.Close()
		drv.Close()
		logger.Info("MIDI input closed", "device", found.String())
	}, nil
}
