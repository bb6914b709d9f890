package capture

import (
	"image"
)

// VideoStreamer produces decoded RGBA frames until stopped or failed.
// Both channels are closed when the stream ends.
type VideoStreamer interface {
	Start() error
	Stop()
	FrameChan() <-chan image.Image
	ErrorChan() <-chan error
}
