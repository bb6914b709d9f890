package capture

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/pkg/errors"

	"liveview/internal/log"
)

const bytesPerPixel = 4

// ffmpegStreamer runs ffmpeg with rawvideo rgba output on stdout and cuts
// the byte stream into frames of width x height.
type ffmpegStreamer struct {
	stopOnce sync.Once
	killOnce sync.Once

	name   string
	args   []string
	width  int
	height int
	// pace, when non-zero, limits reads to one frame per interval
	pace time.Duration
	// dropLate discards frames nobody is waiting for instead of blocking
	dropLate bool

	cmd       *exec.Cmd
	stderr    bytes.Buffer
	frameChan chan image.Image
	errChan   chan error
	stopChan  chan struct{}
}

func newFFmpegStreamer(name string, input []string, fps uint, width, height int) *ffmpegStreamer {
	if fps == 0 {
		fps = standardFps
	}
	args := append([]string{}, input...)
	args = append(args,
		"-vf", fmt.Sprintf("fps=%d,scale=%d:%d", fps, width, height),
		"-f", "image2pipe",
		"-pix_fmt", "rgba",
		"-vcodec", "rawvideo",
		"-",
	)

	return &ffmpegStreamer{
		name:      name,
		args:      args,
		width:     width,
		height:    height,
		frameChan: make(chan image.Image, 1),
		errChan:   make(chan error, 1),
		stopChan:  make(chan struct{}),
	}
}

func (s *ffmpegStreamer) Start() error {
	if s.width <= 0 || s.height <= 0 {
		return errors.Errorf("%s: invalid frame size %dx%d", s.name, s.width, s.height)
	}

	s.cmd = exec.Command("ffmpeg", s.args...)
	s.cmd.Stderr = &s.stderr

	stdout, err := s.cmd.StdoutPipe()
	if err != nil {
		return errors.Wrap(err, "ffmpeg stdout")
	}

	if err := s.cmd.Start(); err != nil {
		return errors.Wrapf(err, "ffmpeg start (%s)", s.stderr.String())
	}

	log.Info("capture started", "source", s.name, "width", s.width, "height", s.height)
	go s.readLoop(stdout)

	return nil
}

func (s *ffmpegStreamer) readLoop(stdout io.ReadCloser) {
	defer close(s.frameChan)
	defer close(s.errChan)
	defer stdout.Close()
	defer s.stopCmdOut()

	frameSize := s.width * s.height * bytesPerPixel
	buffer := make([]byte, frameSize)

	var ticker *time.Ticker
	if s.pace > 0 {
		ticker = time.NewTicker(s.pace)
		defer ticker.Stop()
	}

	for {
		if ticker != nil {
			select {
			case <-s.stopChan:
				return
			case <-ticker.C:
			}
		} else {
			select {
			case <-s.stopChan:
				return
			default:
			}
		}

		if _, err := io.ReadFull(stdout, buffer); err != nil {
			select {
			case <-s.stopChan:
			default:
				s.errChan <- errors.Wrapf(err, "%s: read frame", s.name)
			}
			return
		}

		pixelData := make([]byte, frameSize)
		copy(pixelData, buffer)

		img := &image.RGBA{
			Pix:    pixelData,
			Stride: s.width * bytesPerPixel,
			Rect:   image.Rect(0, 0, s.width, s.height),
		}

		if s.dropLate {
			select {
			case s.frameChan <- img:
			default:
			}
			continue
		}

		select {
		case s.frameChan <- img:
		case <-s.stopChan:
			return
		}
	}
}

func (s *ffmpegStreamer) stopCmdOut() {
	s.killOnce.Do(func() {
		if s.cmd != nil && s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
			_ = s.cmd.Wait()
		}
	})
}

func (s *ffmpegStreamer) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.stopCmdOut()
	})
}

func (s *ffmpegStreamer) FrameChan() <-chan image.Image { return s.frameChan }
func (s *ffmpegStreamer) ErrorChan() <-chan error       { return s.errChan }
