package capture

import (
	"image"
	"sync"

	"github.com/pkg/errors"

	"liveview/internal/log"
)

// ErrNoSource means no camera or file is currently attached to the feed.
var ErrNoSource = errors.New("capture: no video source")

// Feed keeps the most recent frame of the active stream. The stream can be
// swapped at any time; the feed is not ready again until the new stream
// delivers its first frame.
type Feed struct {
	mu     sync.RWMutex
	stream VideoStreamer
	frame  image.Image
	err    error
	gen    uint64

	onError func(error)
}

// NewFeed returns a feed in the no-source state.
func NewFeed() *Feed {
	return &Feed{err: ErrNoSource}
}

// OnError registers a callback for stream failures. It runs on the pump
// goroutine.
func (f *Feed) OnError(fn func(error)) {
	f.mu.Lock()
	f.onError = fn
	f.mu.Unlock()
}

// Swap stops the current stream and starts s. A nil s puts the feed in the
// no-source state.
func (f *Feed) Swap(s VideoStreamer) error {
	f.mu.Lock()
	old := f.stream
	f.gen++
	gen := f.gen
	f.stream = nil
	f.frame = nil
	f.err = ErrNoSource
	f.mu.Unlock()

	if old != nil {
		old.Stop()
	}
	if s == nil {
		return nil
	}

	if err := s.Start(); err != nil {
		f.mu.Lock()
		if f.gen == gen {
			f.err = err
		}
		f.mu.Unlock()
		return errors.Wrap(err, "start stream")
	}

	f.mu.Lock()
	if f.gen != gen {
		f.mu.Unlock()
		s.Stop()
		return nil
	}
	f.stream = s
	f.err = nil
	f.mu.Unlock()

	go f.pump(gen, s)
	return nil
}

func (f *Feed) pump(gen uint64, s VideoStreamer) {
	frames, errs := s.FrameChan(), s.ErrorChan()
	for frames != nil {
		select {
		case img, ok := <-frames:
			if !ok {
				frames = nil
				continue
			}
			if img == nil {
				continue
			}
			f.mu.Lock()
			if f.gen == gen {
				f.frame = img
			}
			f.mu.Unlock()

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			f.fail(gen, err)
		}
	}
}

func (f *Feed) fail(gen uint64, err error) {
	f.mu.Lock()
	if f.gen != gen {
		f.mu.Unlock()
		return
	}
	f.frame = nil
	f.err = err
	cb := f.onError
	f.mu.Unlock()

	log.Warn("video stream failed", "error", err)
	if cb != nil {
		cb(err)
	}
}

// Ready reports whether a frame is available.
func (f *Feed) Ready() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.frame != nil
}

func (f *Feed) Frame() image.Image {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.frame
}

// NativeSize is the size of the latest frame, or 0x0 when there is none.
func (f *Feed) NativeSize() (int, int) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.frame == nil {
		return 0, 0
	}
	b := f.frame.Bounds()
	return b.Dx(), b.Dy()
}

// HasSource reports whether a stream is attached and running.
func (f *Feed) HasSource() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.stream != nil
}

// Err returns ErrNoSource when nothing is attached, the last stream error,
// or nil while healthy.
func (f *Feed) Err() error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.err
}

// Close stops the active stream.
func (f *Feed) Close() {
	_ = f.Swap(nil)
}
