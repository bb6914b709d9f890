package loop

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/pkg/errors"

	"liveview/internal/log"
	"liveview/internal/models"
	"liveview/processing/overlay"
)

const DefaultMaxResults = 10

// Detector maps one frame to labeled boxes in the frame's native pixels.
type Detector interface {
	Detect(ctx context.Context, frame image.Image, maxResults int) ([]models.RawDetection, error)
}

// VideoSource is the live video the overlay is drawn over.
type VideoSource interface {
	// Ready reports whether a frame can be read right now.
	Ready() bool
	Frame() image.Image
	// NativeSize is the pixel size of the captured frames.
	NativeSize() (w, h int)
	// DisplaySize is the current on-screen size of the video view.
	DisplaySize() (w, h int)
}

type Options struct {
	Detector  Detector
	Video     VideoSource
	Surface   overlay.Surface
	List      overlay.ListView
	Scheduler Scheduler
	Renderer  *overlay.Renderer

	// MaxResults caps detections per frame. Zero means DefaultMaxResults.
	MaxResults int

	// OnRendered is called after every rendered cycle.
	OnRendered func(Stats)
}

// Stats are the loop counters shown in the status bar.
type Stats struct {
	Running   bool
	FPS       uint
	Latency   time.Duration
	Cycles    uint64
	Failures  uint64
	LastError string
}

// Loop pulls a frame, runs the detector and redraws the overlay once per
// frame tick while it is running.
type Loop struct {
	opts  Options
	state *State

	mu         sync.Mutex
	ctx        context.Context
	cancel     context.CancelFunc
	active     bool
	maxResults int
	latest     []models.AggregatedEntry

	stats         Stats
	frameCount    uint
	lastFpsUpdate time.Time
	failing       bool
}

func New(opts Options) (*Loop, error) {
	switch {
	case opts.Detector == nil:
		return nil, errors.New("loop: detector is required")
	case opts.Video == nil:
		return nil, errors.New("loop: video source is required")
	case opts.Surface == nil:
		return nil, errors.New("loop: surface is required")
	case opts.List == nil:
		return nil, errors.New("loop: list view is required")
	case opts.Scheduler == nil:
		return nil, errors.New("loop: scheduler is required")
	}
	if opts.Renderer == nil {
		opts.Renderer = overlay.NewRenderer()
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultMaxResults
	}

	return &Loop{
		opts:       opts,
		state:      NewState(),
		maxResults: opts.MaxResults,
	}, nil
}

// Start begins cycling if the loop is in the Running state. ctx bounds
// every detector call; cancelling it stops the loop.
func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	l.ctx, l.cancel = context.WithCancel(ctx)
	l.lastFpsUpdate = time.Now()
	l.mu.Unlock()

	if l.state.IsRunning() {
		l.kick()
	}
}

// Stop cancels any in-flight detector call and ends the loop.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
	}
}

// Toggle flips between Running and Paused. Resuming starts a new cycle
// unless one is already scheduled or in flight.
func (l *Loop) Toggle() bool {
	running := l.state.Toggle()
	log.Info("detection loop toggled", "state", l.state.String())
	if running {
		l.kick()
	}
	return running
}

func (l *Loop) IsRunning() bool {
	return l.state.IsRunning()
}

func (l *Loop) SetMaxResults(n int) {
	if n <= 0 {
		n = DefaultMaxResults
	}
	l.mu.Lock()
	l.maxResults = n
	l.mu.Unlock()
}

func (l *Loop) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.stats
	s.Running = l.state.IsRunning()
	return s
}

// Latest returns the aggregated entries of the last rendered cycle.
func (l *Loop) Latest() []models.AggregatedEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.AggregatedEntry, len(l.latest))
	copy(out, l.latest)
	return out
}

func (l *Loop) kick() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active || l.ctx == nil || l.ctx.Err() != nil {
		return
	}
	l.active = l.opts.Scheduler.Schedule(l.cycle)
}

// next reschedules the cycle while running. Otherwise, or when the
// scheduler refuses the task, the loop is marked idle so the next resume
// can start it again.
func (l *Loop) next() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.active = l.state.IsRunning() && l.ctx.Err() == nil && l.opts.Scheduler.Schedule(l.cycle)
}

func (l *Loop) cycle() {
	l.mu.Lock()
	ctx := l.ctx
	maxResults := l.maxResults
	l.mu.Unlock()

	if !l.state.IsRunning() || ctx.Err() != nil {
		l.next()
		return
	}

	video := l.opts.Video
	if !video.Ready() {
		l.next()
		return
	}
	frame := video.Frame()
	nativeW, nativeH := video.NativeSize()
	displayW, displayH := video.DisplaySize()
	scale, err := overlay.NewScale(displayW, displayH, nativeW, nativeH)
	if frame == nil || err != nil || displayW <= 0 || displayH <= 0 {
		log.Debug("frame not ready", "native_w", nativeW, "native_h", nativeH, "display_w", displayW, "display_h", displayH)
		l.next()
		return
	}

	start := time.Now()
	l.opts.Surface.Resize(displayW, displayH)

	dets, err := l.opts.Detector.Detect(ctx, frame, maxResults)
	if err != nil {
		l.recordFailure(err)
		l.next()
		return
	}

	entries := overlay.Aggregate(dets)
	l.opts.Renderer.Draw(l.opts.Surface, scale.MapAll(dets))
	l.opts.Renderer.List(l.opts.List, entries)

	stats := l.recordSuccess(entries, time.Since(start))
	if l.opts.OnRendered != nil {
		l.opts.OnRendered(stats)
	}

	l.next()
}

func (l *Loop) recordFailure(err error) {
	l.mu.Lock()
	l.stats.Failures++
	l.stats.LastError = err.Error()
	first := !l.failing
	l.failing = true
	l.mu.Unlock()

	if errors.Is(err, context.Canceled) {
		return
	}
	if first {
		log.Warn("detector call failed, retrying next frame", "error", err)
	} else {
		log.Debug("detector call failed", "error", err)
	}
}

func (l *Loop) recordSuccess(entries []models.AggregatedEntry, latency time.Duration) Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.failing {
		log.Info("detector recovered", "failures", l.stats.Failures)
		l.failing = false
	}

	l.latest = entries
	l.stats.Latency = latency
	l.stats.Cycles++

	l.frameCount++
	if time.Since(l.lastFpsUpdate) >= time.Second {
		l.stats.FPS = l.frameCount
		l.frameCount = 0
		l.lastFpsUpdate = time.Now()
	}

	s := l.stats
	s.Running = l.state.IsRunning()
	return s
}
