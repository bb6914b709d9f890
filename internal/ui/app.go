package ui

import (
	"context"
	"fmt"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"liveview/internal/config"
	"liveview/internal/log"
	"liveview/internal/ui/cwidget"
	"liveview/processing/capture"
	"liveview/processing/loop"
	"liveview/processing/overlay"
)

const (
	loadingCameras  = "Loading cameras..."
	noCamerasFound  = "No cameras found"
	camerasError    = "Error listing cameras"
	statRefreshRate = 200 * time.Millisecond
)

type DetectApp struct {
	fyneApp fyne.App
	mainWin fyne.Window

	config    *config.Config
	loop      *loop.Loop
	feed      *capture.Feed
	scheduler *loop.FrameScheduler
	surface   *overlay.Canvas

	view *videoView
	list *detectionList

	dynamicSettings *fyne.Container
	staticSettings  *fyne.Container

	toggleBtn     *widget.Button
	maxInput      *cwidget.Input[int]
	fpsInput      *cwidget.Input[int]
	sourceLabel   *widget.Label
	latencyLabel  *widget.Label
	fpsLabel      *widget.Label
	failuresLabel *widget.Label
}

// CreateApp builds the window and the detection loop that draws into it.
func CreateApp(cfg *config.Config, det loop.Detector, sched *loop.FrameScheduler, feed *capture.Feed) (*DetectApp, error) {
	a := app.NewWithID("liveview")
	w := a.NewWindow("Live Detection")
	w.Resize(fyne.NewSize(1200, 700))

	da := &DetectApp{
		fyneApp:   a,
		mainWin:   w,
		config:    cfg,
		feed:      feed,
		scheduler: sched,
		surface:   overlay.NewCanvas(1, 1),
		view:      newVideoView(),
		list:      newDetectionList(),
	}

	lp, err := loop.New(loop.Options{
		Detector:   det,
		Video:      videoSource{Feed: feed, view: da.view},
		Surface:    da.surface,
		List:       da.list,
		Scheduler:  sched,
		MaxResults: cfg.GetMaxResults(),
		OnRendered: da.onRendered,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create loop")
	}
	da.loop = lp

	feed.OnError(func(err error) {
		fyne.Do(func() {
			da.sourceLabel.SetText("Source: stopped")
			da.view.Clear()
			dialog.ShowError(err, da.mainWin)
		})
	})
	return da, nil
}

// Loop is the detection loop driving this window.
func (a *DetectApp) Loop() *loop.Loop { return a.loop }

// Run shows the window and blocks until it is closed.
func (a *DetectApp) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.dynamicSettings = container.NewVBox()

	sourceTypeSelect := widget.NewSelect(config.SourcesList[:], func(s string) {
		a.config.SetSource(config.SourceType(s))
		a.refreshSettingsUI(s)
	})

	settingsLabel := widget.NewLabelWithStyle("Configuration", fyne.TextAlignLeading, fyne.TextStyle{Bold: true})
	detectionsLabel := widget.NewLabelWithStyle("Detections", fyne.TextAlignLeading, fyne.TextStyle{Bold: true})

	a.sourceLabel = widget.NewLabel("Source: none")
	a.latencyLabel = widget.NewLabel(a.formatLatency(0))
	a.fpsLabel = widget.NewLabel(a.formatFPS(0))
	a.failuresLabel = widget.NewLabel(a.formatFailures(0))

	a.toggleBtn = widget.NewButtonWithIcon("", theme.MediaPauseIcon(), func() {
		a.setToggleState(a.loop.Toggle())
	})
	a.setToggleState(a.loop.IsRunning())

	videoContainer := container.NewBorder(
		container.NewHBox(a.fpsLabel, widget.NewSeparator(), a.latencyLabel, widget.NewSeparator(), a.failuresLabel),
		nil, nil, nil,
		a.view,
	)

	a.setupConfigSettings()

	sidebar := container.NewBorder(
		container.NewVBox(
			settingsLabel,
			widget.NewSeparator(),
			widget.NewLabel("Source Type:"),
			sourceTypeSelect,
			widget.NewSeparator(),
			a.dynamicSettings,
			a.staticSettings,
			widget.NewSeparator(),
			a.sourceLabel,
			a.toggleBtn,
			widget.NewSeparator(),
			detectionsLabel,
		),
		nil, nil, nil,
		a.list.list,
	)

	split := container.NewHSplit(
		container.NewPadded(sidebar),
		container.NewPadded(videoContainer),
	)
	split.SetOffset(0.3)

	a.mainWin.SetContent(split)

	sourceTypeSelect.SetSelected(string(a.config.GetSource()))

	a.mainWin.SetCloseIntercept(func() {
		if err := a.config.Persist(); err != nil {
			log.Warn("failed to save config", "error", err)
		}
		a.loop.Stop()
		a.feed.Close()
		a.mainWin.Close()
	})

	a.scheduler.Start()
	a.loop.Start(ctx)
	go a.runPlayerLoop(ctx)
	go a.runStatLoop(ctx)

	a.mainWin.CenterOnScreen()
	a.mainWin.ShowAndRun()
}

// SyncToggle updates the button after the loop was toggled elsewhere.
func (a *DetectApp) SyncToggle(running bool) {
	fyne.Do(func() { a.setToggleState(running) })
}

// ApplyConfig pushes hot-reloadable settings into the running app.
func (a *DetectApp) ApplyConfig(next *config.Config) {
	maxResults := next.GetMaxResults()
	fps := next.GetFPS()

	a.config.SetMaxResults(maxResults)
	a.config.SetFPS(fps)
	a.loop.SetMaxResults(maxResults)
	a.scheduler.SetFPS(fps)

	fyne.Do(func() {
		a.maxInput.SetValue(maxResults)
		a.fpsInput.SetValue(int(fps))
	})
}

func (a *DetectApp) setToggleState(running bool) {
	if running {
		a.toggleBtn.SetText("Pause")
		a.toggleBtn.SetIcon(theme.MediaPauseIcon())
	} else {
		a.toggleBtn.SetText("Resume")
		a.toggleBtn.SetIcon(theme.MediaPlayIcon())
	}
}

func (a *DetectApp) onRendered(loop.Stats) {
	snap := a.surface.Snapshot()
	fyne.Do(func() {
		a.view.SetOverlay(snap)
	})
}

func (a *DetectApp) runStatLoop(ctx context.Context) {
	uiTicker := time.NewTicker(statRefreshRate)
	defer uiTicker.Stop()

	for {
		select {
		case <-uiTicker.C:
			st := a.loop.Stats()
			fyne.Do(func() {
				a.latencyLabel.SetText(a.formatLatency(st.Latency))
				a.fpsLabel.SetText(a.formatFPS(st.FPS))
				a.failuresLabel.SetText(a.formatFailures(st.Failures))
			})
		case <-ctx.Done():
			return
		}
	}
}

func (a *DetectApp) formatFPS(v uint) string {
	return fmt.Sprintf("FPS: %d", v)
}

func (a *DetectApp) formatLatency(v time.Duration) string {
	return fmt.Sprintf("Latency: %d ms", v.Milliseconds())
}

func (a *DetectApp) formatFailures(v uint64) string {
	return fmt.Sprintf("Failures: %d", v)
}

// runPlayerLoop shows the latest feed frame at the configured rate,
// independently of detection.
func (a *DetectApp) runPlayerLoop(ctx context.Context) {
	fps := max(a.config.GetFPS(), 1)
	displayTicker := time.NewTicker(time.Second / time.Duration(fps))
	defer displayTicker.Stop()

	for {
		select {
		case <-displayTicker.C:
			if want := max(a.config.GetFPS(), 1); want != fps {
				fps = want
				displayTicker.Reset(time.Second / time.Duration(fps))
			}
			if frame := a.feed.Frame(); frame != nil {
				fyne.Do(func() {
					a.view.SetFrame(frame)
				})
			}

		case <-ctx.Done():
			return
		}
	}
}

// restartSource swaps the feed to the source currently in the config.
func (a *DetectApp) restartSource() {
	streamer, err := capture.NewStreamer(a.config)
	if errors.Is(err, capture.ErrNoSource) {
		_ = a.feed.Swap(nil)
		a.view.Clear()
		a.sourceLabel.SetText("Source: none")
		return
	}
	if err != nil {
		dialog.ShowError(err, a.mainWin)
		return
	}

	a.sourceLabel.SetText("Source: starting...")
	go func() {
		err := a.feed.Swap(streamer)
		fyne.Do(func() {
			a.view.SetOverlay(nil)
			if err != nil {
				a.sourceLabel.SetText("Source: failed")
				dialog.ShowError(err, a.mainWin)
				return
			}
			a.sourceLabel.SetText("Source: live")
		})
	}()
}

func (a *DetectApp) setupConfigSettings() {
	a.staticSettings = container.NewVBox()

	a.maxInput = cwidget.NewIntInput(
		"Max results",
		"Enter integer",
		a.config.GetMaxResults(),
		1,
		func(i int) {
			a.config.SetMaxResults(i)
			a.loop.SetMaxResults(i)
		},
	)

	a.fpsInput = cwidget.NewIntInput(
		"FPS",
		"Enter integer",
		int(a.config.GetFPS()),
		1,
		func(i int) {
			a.config.SetFPS(uint(i))
			a.scheduler.SetFPS(uint(i))
		},
	)

	widthInput := cwidget.NewIntInput(
		"Width",
		"Enter integer",
		a.config.GetWidth(),
		1,
		func(i int) {
			a.config.SetWidth(i)
		},
	)

	heightInput := cwidget.NewIntInput(
		"Height",
		"Enter integer",
		a.config.GetHeight(),
		1,
		func(i int) {
			a.config.SetHeight(i)
		},
	)

	applyCfg := widget.NewButton("Restart source", a.restartSource)

	a.staticSettings.Add(a.maxInput)
	a.staticSettings.Add(a.fpsInput)
	a.staticSettings.Add(widthInput)
	a.staticSettings.Add(heightInput)
	a.staticSettings.Add(applyCfg)
}

func (a *DetectApp) refreshSettingsUI(sourceType string) {
	a.dynamicSettings.Objects = nil

	switch config.SourceType(sourceType) {
	case config.SourceLocal:
		pathEntry := widget.NewEntry()
		pathEntry.SetPlaceHolder("/path/to/video.mp4")
		pathEntry.SetText(a.config.GetLocalPath())

		pathEntry.OnChanged = func(s string) {
			a.config.SetLocalPath(s)
		}

		fileBtn := widget.NewButtonWithIcon("Open File", theme.FolderOpenIcon(), func() {
			dialog.ShowFileOpen(func(reader fyne.URIReadCloser, err error) {
				if err == nil && reader != nil {
					defer reader.Close()
					pathEntry.SetText(reader.URI().Path())
					a.restartSource()
				}
			}, a.mainWin)
		})

		a.dynamicSettings.Add(widget.NewLabel("Video Path:"))
		a.dynamicSettings.Add(container.NewBorder(nil, nil, nil, fileBtn, pathEntry))
		a.restartSource()

	case config.SourceWebcam:
		deviceSelect := widget.NewSelect([]string{loadingCameras}, nil)
		deviceSelect.SetSelected(loadingCameras)
		deviceSelect.Disable()

		a.dynamicSettings.Add(widget.NewLabel("Select Camera:"))
		a.dynamicSettings.Add(deviceSelect)

		go a.loadCameras(deviceSelect)
	}

	a.dynamicSettings.Refresh()
}

func (a *DetectApp) loadCameras(deviceSelect *widget.Select) {
	devices, err := capture.ListCameras()

	fyne.Do(func() {
		switch {
		case err != nil:
			dialog.ShowError(err, a.mainWin)
			deviceSelect.Options = []string{camerasError}
			deviceSelect.SetSelected(camerasError)
			a.config.SetDeviceID("")
			a.restartSource()

		case len(devices) == 0:
			deviceSelect.Options = []string{noCamerasFound}
			deviceSelect.SetSelected(noCamerasFound)
			a.config.SetDeviceID("")
			a.restartSource()

		default:
			deviceSelect.Options = devices
			deviceSelect.OnChanged = func(s string) {
				if s == a.config.GetDeviceID() && a.feed.HasSource() {
					return
				}
				a.config.SetDeviceID(s)
				a.restartSource()
			}
			deviceSelect.Enable()

			selected, _ := capture.PreferredCamera(devices)
			if id := a.config.GetDeviceID(); id != "" && lo.Contains(devices, id) {
				selected = id
			}
			deviceSelect.SetSelected(selected)
		}
		deviceSelect.Refresh()
	})
}
