package loop

import (
	"context"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"liveview/internal/log"
	"liveview/internal/models"
	"liveview/processing/overlay"
)

func init() {
	log.Set(zap.NewNop().Sugar())
}

type manualScheduler struct {
	mu     sync.Mutex
	queue  []func()
	closed bool
}

func (s *manualScheduler) Schedule(task func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.queue = append(s.queue, task)
	return true
}

// Close makes every later Schedule call fail and drops queued tasks.
func (s *manualScheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.queue = nil
	s.mu.Unlock()
}

func (s *manualScheduler) Reopen() {
	s.mu.Lock()
	s.closed = false
	s.mu.Unlock()
}

func (s *manualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Tick runs every task queued before the call.
func (s *manualScheduler) Tick() {
	s.mu.Lock()
	tasks := s.queue
	s.queue = nil
	s.mu.Unlock()
	for _, task := range tasks {
		task()
	}
}

type fakeVideo struct {
	mu               sync.Mutex
	ready            bool
	nativeW, nativeH int
	displayW         int
	displayH         int
}

func (v *fakeVideo) Ready() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ready
}

func (v *fakeVideo) Frame() image.Image {
	v.mu.Lock()
	defer v.mu.Unlock()
	return image.NewRGBA(image.Rect(0, 0, v.nativeW, v.nativeH))
}

func (v *fakeVideo) NativeSize() (int, int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.nativeW, v.nativeH
}

func (v *fakeVideo) DisplaySize() (int, int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.displayW, v.displayH
}

type fakeDetector struct {
	mu      sync.Mutex
	calls   int
	max     int
	results []models.RawDetection
	err     error
	block   chan struct{}
	entered chan struct{}
}

func (d *fakeDetector) Detect(ctx context.Context, _ image.Image, maxResults int) ([]models.RawDetection, error) {
	d.mu.Lock()
	d.calls++
	d.max = maxResults
	block, entered := d.block, d.entered
	d.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.results, d.err
}

func (d *fakeDetector) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

type fakeSurface struct {
	mu      sync.Mutex
	w, h    int
	clears  int
	strokes []models.Box
}

func (s *fakeSurface) Resize(w, h int) {
	s.mu.Lock()
	s.w, s.h = w, h
	s.mu.Unlock()
}

func (s *fakeSurface) Size() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w, s.h
}

func (s *fakeSurface) Clear() {
	s.mu.Lock()
	s.clears++
	s.strokes = nil
	s.mu.Unlock()
}

func (s *fakeSurface) FillRect(models.Box, color.Color) {}

func (s *fakeSurface) StrokeRect(r models.Box, _ color.Color, _ float64) {
	s.mu.Lock()
	s.strokes = append(s.strokes, r)
	s.mu.Unlock()
}

func (s *fakeSurface) SetFontSize(float64)                            {}
func (s *fakeSurface) MeasureText(t string) (float64, float64)        { return float64(len(t)) * 6, 12 }
func (s *fakeSurface) DrawText(string, float64, float64, color.Color) {}

func (s *fakeSurface) Clears() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clears
}

type fakeList struct {
	mu    sync.Mutex
	calls int
	items []overlay.ListItem
}

func (l *fakeList) Replace(items []overlay.ListItem) {
	l.mu.Lock()
	l.calls++
	l.items = items
	l.mu.Unlock()
}

func (l *fakeList) Snapshot() (int, []overlay.ListItem) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls, l.items
}

type harness struct {
	loop    *Loop
	sched   *manualScheduler
	video   *fakeVideo
	det     *fakeDetector
	surface *fakeSurface
	list    *fakeList
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		sched:   &manualScheduler{},
		video:   &fakeVideo{ready: true, nativeW: 320, nativeH: 240, displayW: 800, displayH: 600},
		det:     &fakeDetector{},
		surface: &fakeSurface{},
		list:    &fakeList{},
	}
	l, err := New(Options{
		Detector:  h.det,
		Video:     h.video,
		Surface:   h.surface,
		List:      h.list,
		Scheduler: h.sched,
	})
	require.NoError(t, err)
	h.loop = l
	return h
}

func catsAndDog() []models.RawDetection {
	return []models.RawDetection{
		{Label: "cat", Confidence: 0.81, Box: models.Box{X: 10, Y: 10, Width: 50, Height: 50}},
		{Label: "cat", Confidence: 0.92, Box: models.Box{X: 12, Y: 12, Width: 48, Height: 48}},
		{Label: "dog", Confidence: 0.70, Box: models.Box{X: 100, Y: 100, Width: 40, Height: 40}},
	}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)

	_, err = New(Options{Detector: &fakeDetector{}, Video: &fakeVideo{}, Surface: &fakeSurface{}, List: &fakeList{}})
	assert.ErrorContains(t, err, "scheduler")
}

func TestLoop_InitialStateRunning(t *testing.T) {
	h := newHarness(t)
	assert.True(t, h.loop.IsRunning())

	h.loop.Start(context.Background())
	assert.Equal(t, 1, h.sched.Pending())
}

func TestLoop_RendersAggregatedCycle(t *testing.T) {
	h := newHarness(t)
	h.det.results = catsAndDog()
	h.loop.Start(context.Background())

	h.sched.Tick()

	assert.Equal(t, 1, h.det.Calls())
	assert.Equal(t, DefaultMaxResults, h.det.max)

	w, hh := h.surface.Size()
	assert.Equal(t, 800, w)
	assert.Equal(t, 600, hh)

	require.Len(t, h.surface.strokes, 3)
	assert.Equal(t, models.Box{X: 25, Y: 25, Width: 125, Height: 125}, h.surface.strokes[0])

	_, items := h.list.Snapshot()
	assert.Equal(t, []overlay.ListItem{{Label: "cat", Confidence: "92.0%"}, {Label: "dog", Confidence: "70.0%"}}, items)

	latest := h.loop.Latest()
	require.Len(t, latest, 2)
	assert.Equal(t, 0.92, latest[0].Confidence)

	// rescheduled for the next frame
	assert.Equal(t, 1, h.sched.Pending())
	assert.Equal(t, uint64(1), h.loop.Stats().Cycles)
}

func TestLoop_NotReadySkipsWork(t *testing.T) {
	h := newHarness(t)
	h.video.ready = false
	h.loop.Start(context.Background())

	h.sched.Tick()
	h.sched.Tick()

	assert.Equal(t, 0, h.det.Calls())
	assert.Equal(t, 0, h.surface.Clears())
	calls, _ := h.list.Snapshot()
	assert.Equal(t, 0, calls)
	assert.Equal(t, 1, h.sched.Pending())
}

func TestLoop_DegenerateNativeSizeSkipsWork(t *testing.T) {
	h := newHarness(t)
	h.video.nativeW, h.video.nativeH = 0, 0
	h.loop.Start(context.Background())

	h.sched.Tick()

	assert.Equal(t, 0, h.det.Calls())
	assert.Equal(t, 1, h.sched.Pending())

	// frame becomes available on a later tick
	h.video.mu.Lock()
	h.video.nativeW, h.video.nativeH = 320, 240
	h.video.mu.Unlock()
	h.sched.Tick()
	assert.Equal(t, 1, h.det.Calls())
}

func TestLoop_PauseStopsRescheduling(t *testing.T) {
	h := newHarness(t)
	h.loop.Start(context.Background())

	assert.False(t, h.loop.Toggle())
	h.sched.Tick()

	assert.Equal(t, 0, h.det.Calls())
	assert.Equal(t, 0, h.sched.Pending())

	assert.True(t, h.loop.Toggle())
	assert.Equal(t, 1, h.sched.Pending())
	h.sched.Tick()
	assert.Equal(t, 1, h.det.Calls())
}

func TestLoop_RapidToggleKeepsSingleLoop(t *testing.T) {
	h := newHarness(t)
	h.loop.Start(context.Background())

	h.loop.Toggle()
	h.loop.Toggle()
	h.loop.Toggle()
	h.loop.Toggle()

	assert.True(t, h.loop.IsRunning())
	assert.Equal(t, 1, h.sched.Pending())

	for i := 0; i < 3; i++ {
		h.sched.Tick()
		assert.Equal(t, 1, h.sched.Pending())
	}
	assert.Equal(t, 3, h.det.Calls())
}

func TestLoop_RapidToggleAfterIdle(t *testing.T) {
	h := newHarness(t)
	h.loop.Start(context.Background())
	h.loop.Toggle()
	h.sched.Tick()
	require.Equal(t, 0, h.sched.Pending())

	h.loop.Toggle()
	h.loop.Toggle()
	h.loop.Toggle()

	assert.True(t, h.loop.IsRunning())
	assert.Equal(t, 1, h.sched.Pending())
}

func TestLoop_PauseDuringDetectStillRenders(t *testing.T) {
	h := newHarness(t)
	h.det.results = catsAndDog()
	h.det.block = make(chan struct{})
	h.det.entered = make(chan struct{}, 1)
	h.loop.Start(context.Background())

	done := make(chan struct{})
	go func() {
		h.sched.Tick()
		close(done)
	}()

	<-h.det.entered
	assert.False(t, h.loop.Toggle())
	// resume and pause again while the call is still pending
	assert.True(t, h.loop.Toggle())
	assert.False(t, h.loop.Toggle())
	close(h.det.block)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("cycle did not finish")
	}

	calls, items := h.list.Snapshot()
	assert.Equal(t, 1, calls)
	assert.Len(t, items, 2)
	assert.Equal(t, 0, h.sched.Pending())

	h.det.mu.Lock()
	h.det.block = nil
	h.det.entered = nil
	h.det.mu.Unlock()

	h.loop.Toggle()
	assert.Equal(t, 1, h.sched.Pending())
}

func TestLoop_ResumeDuringDetectDoesNotDuplicate(t *testing.T) {
	h := newHarness(t)
	h.det.block = make(chan struct{})
	h.det.entered = make(chan struct{}, 1)
	h.loop.Start(context.Background())

	done := make(chan struct{})
	go func() {
		h.sched.Tick()
		close(done)
	}()

	<-h.det.entered
	h.loop.Toggle()
	h.loop.Toggle()
	assert.Equal(t, 0, h.sched.Pending())
	close(h.det.block)
	<-done

	assert.Equal(t, 1, h.sched.Pending())
}

func TestLoop_DetectorFailureRetriesNextTick(t *testing.T) {
	h := newHarness(t)
	h.det.results = catsAndDog()
	h.loop.Start(context.Background())
	h.sched.Tick()

	h.det.mu.Lock()
	h.det.err = errors.New("model unavailable")
	h.det.mu.Unlock()
	h.sched.Tick()
	h.sched.Tick()

	stats := h.loop.Stats()
	assert.Equal(t, uint64(2), stats.Failures)
	assert.Equal(t, "model unavailable", stats.LastError)
	assert.Equal(t, 1, h.sched.Pending())

	// previous overlay left untouched
	calls, items := h.list.Snapshot()
	assert.Equal(t, 1, calls)
	assert.Len(t, items, 2)

	h.det.mu.Lock()
	h.det.err = nil
	h.det.mu.Unlock()
	h.sched.Tick()
	calls, _ = h.list.Snapshot()
	assert.Equal(t, 2, calls)
}

func TestLoop_StopEndsLoop(t *testing.T) {
	h := newHarness(t)
	h.loop.Start(context.Background())
	h.loop.Stop()

	h.sched.Tick()
	assert.Equal(t, 0, h.det.Calls())
	assert.Equal(t, 0, h.sched.Pending())

	h.loop.Toggle()
	h.loop.Toggle()
	assert.Equal(t, 0, h.sched.Pending())
}

func TestLoop_MaxResultsAndHook(t *testing.T) {
	h := newHarness(t)
	var got []Stats
	h.loop.opts.OnRendered = func(s Stats) { got = append(got, s) }
	h.loop.SetMaxResults(3)
	h.loop.Start(context.Background())

	h.sched.Tick()

	assert.Equal(t, 3, h.det.max)
	require.Len(t, got, 1)
	assert.True(t, got[0].Running)
	assert.Equal(t, uint64(1), got[0].Cycles)

	h.loop.SetMaxResults(0)
	h.sched.Tick()
	assert.Equal(t, DefaultMaxResults, h.det.max)
}

func TestLoop_TracksDisplayResize(t *testing.T) {
	h := newHarness(t)
	h.det.results = catsAndDog()[:1]
	h.loop.Start(context.Background())
	h.sched.Tick()

	h.video.mu.Lock()
	h.video.displayW, h.video.displayH = 640, 480
	h.video.mu.Unlock()
	h.sched.Tick()

	w, hh := h.surface.Size()
	assert.Equal(t, 640, w)
	assert.Equal(t, 480, hh)
	require.Len(t, h.surface.strokes, 1)
	assert.Equal(t, models.Box{X: 20, Y: 20, Width: 100, Height: 100}, h.surface.strokes[0])
}

func TestLoop_RejectedScheduleLeavesLoopIdle(t *testing.T) {
	h := newHarness(t)
	h.sched.Close()
	h.loop.Start(context.Background())
	assert.Equal(t, 0, h.sched.Pending())

	// once the scheduler accepts tasks again a resume must start a cycle
	h.sched.Reopen()
	require.False(t, h.loop.Toggle())
	require.True(t, h.loop.Toggle())
	assert.Equal(t, 1, h.sched.Pending())
}

func TestLoop_SchedulerClosedMidRun(t *testing.T) {
	h := newHarness(t)
	h.loop.Start(context.Background())
	require.Equal(t, 1, h.sched.Pending())

	// the cycle's reschedule is rejected, so the loop goes idle
	tasks := h.sched.queue
	h.sched.Close()
	tasks[0]()
	assert.Equal(t, 0, h.sched.Pending())

	h.sched.Reopen()
	h.loop.Toggle()
	h.loop.Toggle()
	assert.Equal(t, 1, h.sched.Pending())
}
