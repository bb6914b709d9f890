package loop

import (
	"sync"
	"time"
)

// Scheduler runs a task once on the next frame tick. Schedule reports
// false when the task was not queued and will never run.
type Scheduler interface {
	Schedule(task func()) bool
}

const defaultFPS uint = 60

// FrameScheduler is a Scheduler driven by a fixed display refresh rate.
// Tasks submitted while a tick is being processed run on the following
// tick, so a task that reschedules itself never nests.
type FrameScheduler struct {
	mu     sync.Mutex
	queue  []func()
	ticker *time.Ticker

	stopOnce sync.Once
	stopChan chan struct{}
}

func NewFrameScheduler(fps uint) *FrameScheduler {
	return &FrameScheduler{
		ticker:   time.NewTicker(frameInterval(fps)),
		stopChan: make(chan struct{}),
	}
}

func frameInterval(fps uint) time.Duration {
	if fps == 0 {
		fps = defaultFPS
	}
	return time.Second / time.Duration(fps)
}

// Start launches the tick goroutine.
func (s *FrameScheduler) Start() {
	go s.run()
}

func (s *FrameScheduler) run() {
	defer s.ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-s.ticker.C:
			s.mu.Lock()
			tasks := s.queue
			s.queue = nil
			s.mu.Unlock()

			for _, task := range tasks {
				task()
			}
		}
	}
}

// Schedule queues task for the next tick. It returns false once the
// scheduler is stopped.
func (s *FrameScheduler) Schedule(task func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.stopChan:
		return false
	default:
	}
	s.queue = append(s.queue, task)
	return true
}

// SetFPS changes the tick rate.
func (s *FrameScheduler) SetFPS(fps uint) {
	s.ticker.Reset(frameInterval(fps))
}

// Pending returns the number of tasks waiting for the next tick.
func (s *FrameScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *FrameScheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		close(s.stopChan)
		s.queue = nil
		s.mu.Unlock()
	})
}
