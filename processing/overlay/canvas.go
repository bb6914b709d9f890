package overlay

import (
	"image"
	"image/color"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"liveview/internal/models"
)

var regular *truetype.Font

func init() {
	var err error
	regular, err = truetype.Parse(goregular.TTF)
	if err != nil {
		panic(err)
	}
}

// Canvas is an offscreen RGBA Surface backed by a gg context.
type Canvas struct {
	mu          sync.Mutex
	dc          *gg.Context
	faces       map[float64]font.Face
	currentSize float64
}

// NewCanvas returns a transparent canvas of w x h pixels.
func NewCanvas(w, h int) *Canvas {
	c := &Canvas{faces: make(map[float64]font.Face)}
	c.dc = gg.NewContext(clampDim(w), clampDim(h))
	return c
}

func clampDim(v int) int {
	if v < 1 {
		return 1
	}
	return v
}

// Resize reallocates the backing image when the size changes.
func (c *Canvas) Resize(w, h int) {
	w, h = clampDim(w), clampDim(h)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dc.Width() == w && c.dc.Height() == h {
		return
	}
	c.dc = gg.NewContext(w, h)
	if c.currentSize > 0 {
		c.setFontSizeLocked(c.currentSize)
	}
}

func (c *Canvas) Size() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dc.Width(), c.dc.Height()
}

func (c *Canvas) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dc.SetColor(color.Transparent)
	c.dc.Clear()
}

func (c *Canvas) FillRect(r models.Box, col color.Color) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dc.SetColor(col)
	c.dc.DrawRectangle(r.X, r.Y, r.Width, r.Height)
	c.dc.Fill()
}

func (c *Canvas) StrokeRect(r models.Box, col color.Color, width float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dc.SetColor(col)
	c.dc.SetLineWidth(width)
	c.dc.DrawRectangle(r.X, r.Y, r.Width, r.Height)
	c.dc.Stroke()
}

func (c *Canvas) SetFontSize(px float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setFontSizeLocked(px)
}

func (c *Canvas) setFontSizeLocked(px float64) {
	face, ok := c.faces[px]
	if !ok {
		face = truetype.NewFace(regular, &truetype.Options{Size: px})
		c.faces[px] = face
	}
	c.currentSize = px
	c.dc.SetFontFace(face)
}

func (c *Canvas) MeasureText(s string) (float64, float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dc.MeasureString(s)
}

func (c *Canvas) DrawText(s string, x, y float64, col color.Color) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dc.SetColor(col)
	c.dc.DrawString(s, x, y)
}

// Snapshot copies the current pixels. The copy is safe to hand to the UI
// while the next cycle draws.
func (c *Canvas) Snapshot() *image.RGBA {
	c.mu.Lock()
	defer c.mu.Unlock()
	src, ok := c.dc.Image().(*image.RGBA)
	if !ok {
		return nil
	}
	dst := image.NewRGBA(src.Rect)
	copy(dst.Pix, src.Pix)
	return dst
}
