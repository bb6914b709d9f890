package main

import (
	"context"
	"reflect"
	"sync"

	"github.com/pkg/errors"

	"liveview/internal/config"
	"liveview/internal/log"
	"liveview/processing/capture"
	"liveview/processing/loop"
	"liveview/processing/overlay"
)

// headlessVideo draws the overlay at the frame's own resolution.
type headlessVideo struct {
	*capture.Feed
}

func (v headlessVideo) DisplaySize() (int, int) {
	return v.NativeSize()
}

// logList logs the detection list whenever its content changes.
type logList struct {
	mu   sync.Mutex
	last []overlay.ListItem
}

func (l *logList) Replace(items []overlay.ListItem) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if reflect.DeepEqual(items, l.last) || (len(items) == 0 && len(l.last) == 0) {
		return
	}
	l.last = items
	log.Info("detections", "items", items)
}

func newHeadlessLoop(cfg *config.Config, det loop.Detector, sched loop.Scheduler, feed *capture.Feed) (*loop.Loop, error) {
	lp, err := loop.New(loop.Options{
		Detector:   det,
		Video:      headlessVideo{Feed: feed},
		Surface:    overlay.NewCanvas(1, 1),
		List:       &logList{},
		Scheduler:  sched,
		MaxResults: cfg.GetMaxResults(),
	})
	return lp, errors.Wrap(err, "create loop")
}

func runHeadless(ctx context.Context, cfg *config.Config, lp *loop.Loop, sched *loop.FrameScheduler, feed *capture.Feed) error {
	streamer, err := capture.NewStreamer(cfg)
	if err != nil {
		return errors.Wrap(err, "open video source")
	}

	streamErr := make(chan error, 1)
	feed.OnError(func(err error) {
		select {
		case streamErr <- err:
		default:
		}
	})
	if err := feed.Swap(streamer); err != nil {
		return err
	}

	sched.Start()
	lp.Start(ctx)
	defer lp.Stop()

	select {
	case <-ctx.Done():
		log.Info("shutting down", "stats", lp.Stats())
		return nil
	case err := <-streamErr:
		return errors.Wrap(err, "video stream")
	}
}
