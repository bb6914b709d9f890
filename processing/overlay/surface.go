package overlay

import (
	"image/color"

	"liveview/internal/models"
)

// Surface is the pixel canvas the box layer is drawn onto.
type Surface interface {
	// Resize sets the surface to w x h pixels.
	Resize(w, h int)
	Size() (w, h int)

	// Clear wipes the whole surface to transparent.
	Clear()
	FillRect(r models.Box, c color.Color)
	StrokeRect(r models.Box, c color.Color, width float64)

	// SetFontSize selects the text size in pixels for later text calls.
	SetFontSize(px float64)
	MeasureText(s string) (w, h float64)
	// DrawText draws s with its baseline starting at (x, y).
	DrawText(s string, x, y float64, c color.Color)
}

// ListItem is one row of the ranked label list.
type ListItem struct {
	Label      string `json:"label"`
	Confidence string `json:"confidence"`
}

// ListView is a list whose contents are always replaced as a whole.
type ListView interface {
	Replace(items []ListItem)
}
