package ui

import (
	"image"
	"image/color"
	"math"
	"sync/atomic"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"

	"liveview/processing/capture"
)

// videoView stacks the overlay image on top of the video image. Both are
// stretched to the view, so the view's size is the display size boxes are
// mapped into.
type videoView struct {
	widget.BaseWidget

	video   *canvas.Image
	overlay *canvas.Image

	width  atomic.Int32
	height atomic.Int32
}

func newVideoView() *videoView {
	v := &videoView{
		video:   canvas.NewImageFromImage(nil),
		overlay: canvas.NewImageFromImage(nil),
	}
	v.video.FillMode = canvas.ImageFillStretch
	v.overlay.FillMode = canvas.ImageFillStretch
	v.ExtendBaseWidget(v)
	return v
}

// DisplaySize is the last laid out size in physical pixels, so the overlay
// is drawn at the screen's full resolution.
func (v *videoView) DisplaySize() (int, int) {
	return int(v.width.Load()), int(v.height.Load())
}

// SetFrame must be called on the fyne goroutine.
func (v *videoView) SetFrame(img image.Image) {
	v.video.Image = img
	v.video.Refresh()
}

// SetOverlay must be called on the fyne goroutine.
func (v *videoView) SetOverlay(img image.Image) {
	v.overlay.Image = img
	v.overlay.Refresh()
}

// Clear blanks both layers.
func (v *videoView) Clear() {
	v.SetFrame(nil)
	v.SetOverlay(nil)
}

// canvasScale is the pixel density of the canvas showing v, 1 when it is
// not shown yet.
func (v *videoView) canvasScale() float32 {
	a := fyne.CurrentApp()
	if a == nil {
		return 1
	}
	c := a.Driver().CanvasForObject(v)
	if c == nil {
		return 1
	}
	return c.Scale()
}

func pixelSize(size fyne.Size, scale float32) (int32, int32) {
	if scale <= 0 {
		scale = 1
	}
	return int32(math.Round(float64(size.Width * scale))), int32(math.Round(float64(size.Height * scale)))
}

func (v *videoView) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(color.Black)
	return &videoViewRenderer{
		view:    v,
		objects: []fyne.CanvasObject{bg, v.video, v.overlay},
	}
}

type videoViewRenderer struct {
	view    *videoView
	objects []fyne.CanvasObject
}

func (r *videoViewRenderer) Layout(size fyne.Size) {
	for _, o := range r.objects {
		o.Move(fyne.NewPos(0, 0))
		o.Resize(size)
	}
	w, h := pixelSize(size, r.view.canvasScale())
	r.view.width.Store(w)
	r.view.height.Store(h)
}

func (r *videoViewRenderer) MinSize() fyne.Size {
	return fyne.NewSize(640, 480)
}

func (r *videoViewRenderer) Refresh() {
	for _, o := range r.objects {
		o.Refresh()
	}
}

func (r *videoViewRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

func (r *videoViewRenderer) Destroy() {}

// videoSource is the feed as seen through the on-screen view.
type videoSource struct {
	*capture.Feed
	view *videoView
}

func (s videoSource) DisplaySize() (int, int) {
	return s.view.DisplaySize()
}
