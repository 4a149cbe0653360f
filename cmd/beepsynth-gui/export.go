//go:build gui

package main

import (
	"fmt"
	"log/slog"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/olivierh59500/beepsynth/pkg/audio"
	"github.com/olivierh59500/beepsynth/pkg/midi"
	"github.com/olivierh59500/beepsynth/pkg/player"
	"github.com/olivierh59500/beepsynth/pkg/synth"
)

// exportTail is how long a WAV export keeps going after the last bar
const exportTail = 2 * time.Second

func (g *BeepSynthGUI) exportWAV() {
	if !g.loaded {
		dialog.ShowInformation("No song loaded", "Please load a song first", g.window)
		return
	}
	if g.cfg.Loop < 0 {
		dialog.ShowInformation("Endless loop", "Choose a loop count before exporting", g.window)
		return
	}

	save := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil || writer == nil {
			return
		}

		bar := widget.NewProgressBar()
		status := widget.NewLabel("Rendering...")
		progress := dialog.NewCustomWithoutButtons("Exporting to WAV", container.NewVBox(status, bar), g.window)
		progress.Show()

		// The export renders a copy of the song on its own synth, so
		// playback carries on meanwhile.
		s := g.player.Song().Clone()
		loop := g.cfg.Loop
		rate := g.cfg.SampleRate
		go func() {
			defer writer.Close()
			exporter, err := player.Create(rate, synth.WithLogger(slog.Default()))
			if err == nil {
				exporter.LoadSong(s)
				exporter.SetLoopRepeats(loop)
				exporter.Play()

				total := int((time.Duration(s.TotalSeconds(loop)*float64(time.Second)) + exportTail).Seconds() * float64(rate))
				tail := int(exportTail.Seconds() * float64(rate))
				var frames int
				frames, err = audio.RenderWAV(writer, audio.WithTail(exporter, tail), rate, total, func(done int) {
					fyne.Do(func() { bar.SetValue(float64(done) / float64(total)) })
				})
				if err == nil {
					slog.Info("exported wav", "path", writer.URI().Path(), "frames", frames)
				}
			}

			fyne.Do(func() {
				progress.Hide()
				if err != nil {
					dialog.ShowError(err, g.window)
					return
				}
				dialog.ShowInformation("Export Complete",
					fmt.Sprintf("Wrote %s", writer.URI().Name()), g.window)
			})
		}()
	}, g.window)
	save.SetFileName(g.exportName(".wav"))
	save.Show()
}

func (g *BeepSynthGUI) exportMIDI() {
	if !g.loaded {
		dialog.ShowInformation("No song loaded", "Please load a song first", g.window)
		return
	}

	save := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil || writer == nil {
			return
		}
		err = midi.ExportSMF(g.player.Song(), writer)
		if closeErr := writer.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			dialog.ShowError(err, g.window)
			return
		}
		dialog.ShowInformation("Export Complete", fmt.Sprintf("Wrote %s", writer.URI().Name()), g.window)
	}, g.window)
	save.SetFileName(g.exportName(".mid"))
	save.Show()
}

// exportName suggests a file name after the current playlist entry
func (g *BeepSynthGUI) exportName(ext string) string {
	if item, err := g.playlist.Get(g.current); err == nil {
		return item.Title + ext
	}
	return "song" + ext
}
