package ui

import (
	"errors"
	"sync"
	"time"

	"camshell/internal/backend"
	"camshell/internal/client"
	"camshell/internal/config"
	"camshell/internal/ui/cwidget"
	"camshell/processing/stream"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

type ShellApp struct {
	fyneApp fyne.App
	mainWin fyne.Window

	config *config.Config
	sup    *backend.Supervisor
	client *client.Client

	videoCanvas *canvas.Image
	statusLabel *widget.Label
	streamBtn   *widget.Button
	detectCheck *widget.Check

	// syncing suppresses the check's callback while the state loop writes
	// the backend's answer back into it.
	syncing bool

	streamer   stream.VideoStreamer
	playerStop chan struct{}

	uiStop   chan struct{}
	stopOnce sync.Once
}

func CreateApp(sup *backend.Supervisor, cl *client.Client, cfg *config.Config) *ShellApp {
	a := app.New()
	w := a.NewWindow("Camera Shell")

	w.Resize(fyne.NewSize(1000, 600))

	return &ShellApp{
		fyneApp: a,
		mainWin: w,
		sup:     sup,
		client:  cl,
		config:  cfg,
		uiStop:  make(chan struct{}),
	}
}

func (a *ShellApp) Run() {
	a.statusLabel = widget.NewLabel("Backend: connecting...")

	a.videoCanvas = canvas.NewImageFromImage(nil)
	a.videoCanvas.FillMode = canvas.ImageFillContain
	a.videoCanvas.SetMinSize(fyne.NewSize(640, 480))

	a.streamBtn = widget.NewButtonWithIcon("Start Stream", theme.MediaPlayIcon(), a.onStreamButton)
	a.streamBtn.Disable()

	a.detectCheck = widget.NewCheck("Object detection", a.onDetectToggle)
	a.detectCheck.Disable()

	portInput := cwidget.NewIntInput(
		"Backend Port",
		"Enter integer",
		a.config.Port,
		func(i int) {
			a.config.Port = i
		},
	)

	settingsLabel := widget.NewLabelWithStyle("Backend", fyne.TextAlignLeading, fyne.TextStyle{Bold: true})

	sidebar := container.NewVBox(
		settingsLabel,
		widget.NewSeparator(),
		a.statusLabel,
		widget.NewSeparator(),
		portInput,
		widget.NewSeparator(),
		a.streamBtn,
		a.detectCheck,
	)

	split := container.NewHSplit(
		container.NewPadded(sidebar),
		container.NewPadded(a.videoCanvas),
	)
	split.SetOffset(0.3)

	a.mainWin.SetContent(split)

	a.mainWin.SetCloseIntercept(func() {
		a.shutdown()
		a.config.SaveByDefault()
		a.mainWin.Close()
	})

	go a.connectLoop()
	go a.runStateLoop()

	a.mainWin.CenterOnScreen()
	a.mainWin.ShowAndRun()
}

// connectLoop waits for the backend to come up, then reads the detection
// flags once. A timeout just leaves the status line on "disconnected".
func (a *ShellApp) connectLoop() {
	if err := a.client.AwaitHealthy(); err != nil {
		return
	}

	a.client.RefreshDetectionStatus()
}

// runStateLoop re-renders the sidebar from the client snapshot and restarts
// the feed reader whenever the media URL changes (new stream or a detection
// toggle re-versioned it).
func (a *ShellApp) runStateLoop() {
	uiTicker := time.NewTicker(time.Millisecond * 200)
	defer uiTicker.Stop()

	var lastURL string

	for {
		select {
		case <-uiTicker.C:
			snap := a.client.Snapshot()

			if snap.MediaURL != lastURL {
				lastURL = snap.MediaURL
				a.restartStreamer(snap.MediaURL)
			}

			fyne.Do(func() {
				a.applySnapshot(snap)
			})

		case <-a.uiStop:
			return
		}
	}
}

func (a *ShellApp) applySnapshot(snap client.Snapshot) {
	switch {
	case snap.Connected:
		a.statusLabel.SetText("Backend: connected")
	case snap.SystemStarting:
		a.statusLabel.SetText("Backend: connecting...")
	default:
		a.statusLabel.SetText("Backend: disconnected")
	}

	if snap.Streaming {
		a.streamBtn.SetText("Stop Stream")
		a.streamBtn.SetIcon(theme.MediaStopIcon())
	} else {
		a.streamBtn.SetText("Start Stream")
		a.streamBtn.SetIcon(theme.MediaPlayIcon())
	}

	if snap.Connected && !snap.SystemStarting {
		a.streamBtn.Enable()
	} else {
		a.streamBtn.Disable()
	}

	a.syncing = true
	a.detectCheck.SetChecked(snap.DetectionEnabled)
	a.syncing = false

	if snap.Connected && snap.DetectionAvailable {
		a.detectCheck.Enable()
	} else {
		a.detectCheck.Disable()
	}
}

func (a *ShellApp) onStreamButton() {
	if a.client.Streaming() {
		go func() {
			if err := a.client.StopStream(); err != nil {
				fyne.Do(func() {
					dialog.ShowError(err, a.mainWin)
				})
			}
		}()
		return
	}

	go func() {
		err := a.client.StartStream()
		if errors.Is(err, client.ErrStartTimeout) {
			fyne.Do(func() {
				dialog.ShowError(err, a.mainWin)
			})
		}
	}()
}

func (a *ShellApp) onDetectToggle(on bool) {
	if a.syncing {
		return
	}

	go func() {
		var err error
		if on {
			err = a.client.EnableDetection()
		} else {
			err = a.client.DisableDetection()
		}

		// The state loop writes the confirmed flags back into the check.
		if err != nil {
			fyne.Do(func() {
				dialog.ShowError(err, a.mainWin)
			})
		}
	}()
}

func (a *ShellApp) restartStreamer(url string) {
	if a.streamer != nil {
		a.streamer.Stop()
		a.streamer = nil
	}
	if a.playerStop != nil {
		close(a.playerStop)
		a.playerStop = nil
	}

	if url == "" {
		fyne.Do(func() {
			a.videoCanvas.Image = nil
			a.videoCanvas.Refresh()
		})
		return
	}

	streamer := stream.NewMJPEGStreamer(url)
	if err := streamer.Start(); err != nil {
		fyne.Do(func() {
			dialog.ShowError(err, a.mainWin)
		})
		return
	}

	a.streamer = streamer
	a.playerStop = make(chan struct{})
	go a.runPlayerLoop(streamer, a.playerStop)
}

func (a *ShellApp) runPlayerLoop(streamer stream.VideoStreamer, stopChan chan struct{}) {
	displayTicker := time.NewTicker(time.Second / 30)
	defer displayTicker.Stop()

	var lastFrame = a.videoCanvas.Image

	for {
		select {
		case frame, ok := <-streamer.FrameChan():
			if !ok {
				return
			}
			if frame != nil {
				lastFrame = frame
			}

		case <-displayTicker.C:
			if lastFrame != nil {
				frame := lastFrame
				fyne.Do(func() {
					a.videoCanvas.Image = frame
					a.videoCanvas.Refresh()
				})
			}

		case <-stopChan:
			return
		}
	}
}

// shutdown runs the exit contract: stop the feed, best-effort stream stop,
// then Stop before Sweep on the supervisor.
func (a *ShellApp) shutdown() {
	a.stopOnce.Do(func() {
		close(a.uiStop)
	})

	if a.streamer != nil {
		a.streamer.Stop()
	}

	if a.client.Streaming() {
		_ = a.client.StopStream()
	}

	_ = a.sup.Stop()
	_ = a.sup.Sweep()
}
