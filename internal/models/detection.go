package models

import (
	"encoding/json"
	"fmt"
)

// Box is an axis-aligned rectangle given by its top-left corner and size.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Scale returns the box with x and width multiplied by sx, y and height by sy.
func (b Box) Scale(sx, sy float64) Box {
	return Box{
		X:      b.X * sx,
		Y:      b.Y * sy,
		Width:  b.Width * sx,
		Height: b.Height * sy,
	}
}

// RawDetection is one labeled box produced by a detector for a single frame,
// in the frame's native pixel coordinates.
type RawDetection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
}

type wireDetection struct {
	Label      string     `json:"label"`
	Confidence float64    `json:"confidence"`
	Box        [4]float64 `json:"box"`
}

// MarshalJSON encodes the box as [x, y, width, height].
func (d RawDetection) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireDetection{
		Label:      d.Label,
		Confidence: d.Confidence,
		Box:        [4]float64{d.Box.X, d.Box.Y, d.Box.Width, d.Box.Height},
	})
}

// UnmarshalJSON accepts the box as [x, y, width, height], as an object, or
// flattened into the detection itself.
func (d *RawDetection) UnmarshalJSON(data []byte) error {
	var raw struct {
		Label      string          `json:"label"`
		Class      string          `json:"class"`
		Confidence *float64        `json:"confidence"`
		Score      float64         `json:"score"`
		Box        json.RawMessage `json:"box"`
		BBox       json.RawMessage `json:"bbox"`

		X      float64 `json:"x"`
		Y      float64 `json:"y"`
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	d.Label = raw.Label
	if d.Label == "" {
		d.Label = raw.Class
	}
	d.Confidence = raw.Score
	if raw.Confidence != nil {
		d.Confidence = *raw.Confidence
	}

	if len(raw.Box) == 0 {
		raw.Box = raw.BBox
	}
	if len(raw.Box) == 0 {
		d.Box = Box{X: raw.X, Y: raw.Y, Width: raw.Width, Height: raw.Height}
		return nil
	}
	if raw.Box[0] == '[' {
		var arr []float64
		if err := json.Unmarshal(raw.Box, &arr); err != nil {
			return err
		}
		if len(arr) != 4 {
			return fmt.Errorf("box: want 4 values, got %d", len(arr))
		}
		d.Box = Box{X: arr[0], Y: arr[1], Width: arr[2], Height: arr[3]}
		return nil
	}
	return json.Unmarshal(raw.Box, &d.Box)
}

// DisplayDetection is a RawDetection whose box has been remapped to
// display-surface pixels.
type DisplayDetection struct {
	RawDetection
}

// AggregatedEntry is the best detection observed for one label in a cycle.
type AggregatedEntry struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
}
