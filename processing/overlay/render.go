package overlay

import (
	"fmt"
	"image/color"
	"math"

	"github.com/samber/lo"

	"liveview/internal/models"
)

// Style controls how the box layer looks. Line width and font size scale
// with the surface width and never go below their floors.
type Style struct {
	Stroke    color.Color
	Fill      color.Color
	ChipFill  color.Color
	ChipText  color.Color
	LineScale float64
	MinLine   float64
	FontScale float64
	MinFont   float64
	PadX      float64
	PadY      float64
}

// DefaultStyle is a blue box with a translucent fill and a white-on-blue chip.
func DefaultStyle() Style {
	blue := color.RGBA{R: 0x0b, G: 0x6d, B: 0xf0, A: 0xff}
	return Style{
		Stroke:    blue,
		Fill:      color.NRGBA{R: 0x0b, G: 0x6d, B: 0xf0, A: 38},
		ChipFill:  blue,
		ChipText:  color.White,
		LineScale: 0.005,
		MinLine:   2,
		FontScale: 0.03,
		MinFont:   12,
		PadX:      8,
		PadY:      6,
	}
}

// LineWidth returns the stroke width for a surface of the given width.
func (s Style) LineWidth(surfaceW int) float64 {
	return math.Max(s.MinLine, math.Round(float64(surfaceW)*s.LineScale))
}

// FontSize returns the label font size for a surface of the given width.
func (s Style) FontSize(surfaceW int) float64 {
	return math.Max(s.MinFont, math.Round(float64(surfaceW)*s.FontScale))
}

// Renderer draws the box layer and fills the label list.
type Renderer struct {
	Style Style
}

// NewRenderer returns a renderer using DefaultStyle.
func NewRenderer() *Renderer {
	return &Renderer{Style: DefaultStyle()}
}

// FormatChip renders the on-box label, e.g. "cat 92%".
func FormatChip(label string, confidence float64) string {
	return fmt.Sprintf("%s %d%%", label, int(math.Round(confidence*100)))
}

// FormatListItem renders one list row with a one-decimal percentage.
func FormatListItem(e models.AggregatedEntry) ListItem {
	return ListItem{
		Label:      e.Label,
		Confidence: fmt.Sprintf("%.1f%%", e.Confidence*100),
	}
}

// Chip is the computed placement of a label chip.
type Chip struct {
	Text  string
	Rect  models.Box
	TextX float64
	TextY float64
}

// PlaceChip positions the chip for box b so that it sits on top of the box
// and never extends above the top of the surface.
func (r *Renderer) PlaceChip(b models.Box, text string, textW, fontPx float64) Chip {
	h := fontPx + r.Style.PadY
	y := math.Max(0, b.Y-h)
	return Chip{
		Text:  text,
		Rect:  models.Box{X: b.X, Y: y, Width: textW + r.Style.PadX, Height: h},
		TextX: b.X + r.Style.PadX/2,
		TextY: y + h - r.Style.PadY/2 - 1,
	}
}

// Draw clears the surface and draws every detection with its label chip.
func (r *Renderer) Draw(s Surface, dets []models.DisplayDetection) {
	s.Clear()

	w, _ := s.Size()
	line := r.Style.LineWidth(w)
	font := r.Style.FontSize(w)
	s.SetFontSize(font)

	for _, d := range dets {
		s.FillRect(d.Box, r.Style.Fill)
		s.StrokeRect(d.Box, r.Style.Stroke, line)

		text := FormatChip(d.Label, d.Confidence)
		tw, _ := s.MeasureText(text)
		chip := r.PlaceChip(d.Box, text, tw, font)
		s.FillRect(chip.Rect, r.Style.ChipFill)
		s.DrawText(chip.Text, chip.TextX, chip.TextY, r.Style.ChipText)
	}
}

// List replaces the view contents with one row per aggregated entry.
// Entries are expected in descending confidence order, as Aggregate returns them.
func (r *Renderer) List(v ListView, entries []models.AggregatedEntry) {
	v.Replace(lo.Map(entries, func(e models.AggregatedEntry, _ int) ListItem {
		return FormatListItem(e)
	}))
}
