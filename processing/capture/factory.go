package capture

import (
	"github.com/pkg/errors"

	"liveview/internal/config"
)

// NewStreamer builds the stream for the configured source. It returns
// ErrNoSource when the source has nothing selected.
func NewStreamer(cfg *config.Config) (VideoStreamer, error) {
	switch cfg.GetSource() {
	case config.SourceWebcam:
		device := cfg.GetDeviceID()
		if device == "" {
			return nil, ErrNoSource
		}
		return NewWebcamStreamer(device, cfg.GetFPS(), cfg.GetWidth(), cfg.GetHeight()), nil
	case config.SourceLocal:
		if cfg.GetLocalPath() == "" {
			return nil, ErrNoSource
		}
		return NewFileStreamer(cfg.GetLocalPath(), cfg.GetFPS(), cfg.GetWidth(), cfg.GetHeight())
	default:
		return nil, errors.Errorf("unknown source: %s", cfg.GetSource())
	}
}
