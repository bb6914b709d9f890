package overlay

import (
	"github.com/pkg/errors"

	"liveview/internal/models"
)

// ErrDegenerateGeometry is returned when the native frame size is not yet
// known, so no scale factor can be derived.
var ErrDegenerateGeometry = errors.New("overlay: native frame size is zero")

// Scale holds the horizontal and vertical factors from native frame pixels
// to display pixels.
type Scale struct {
	X float64
	Y float64
}

// NewScale derives the factors displayW/nativeW and displayH/nativeH.
func NewScale(displayW, displayH, nativeW, nativeH int) (Scale, error) {
	if nativeW <= 0 || nativeH <= 0 {
		return Scale{}, ErrDegenerateGeometry
	}
	return Scale{
		X: float64(displayW) / float64(nativeW),
		Y: float64(displayH) / float64(nativeH),
	}, nil
}

// MapBox scales x and width by X, y and height by Y.
func (s Scale) MapBox(b models.Box) models.Box {
	return b.Scale(s.X, s.Y)
}

// MapAll remaps every detection into display space.
func (s Scale) MapAll(dets []models.RawDetection) []models.DisplayDetection {
	out := make([]models.DisplayDetection, len(dets))
	for i, d := range dets {
		d.Box = s.MapBox(d.Box)
		out[i] = models.DisplayDetection{RawDetection: d}
	}
	return out
}
