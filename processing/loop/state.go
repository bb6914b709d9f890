package loop

import "sync"

// State is the play/pause switch of the detection loop. It starts Running
// and only changes through Toggle.
type State struct {
	mu      sync.Mutex
	running bool
}

func NewState() *State {
	return &State{running: true}
}

// Toggle flips Running and Paused and reports whether the loop is now running.
func (s *State) Toggle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = !s.running
	return s.running
}

func (s *State) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *State) String() string {
	if s.IsRunning() {
		return "Running"
	}
	return "Paused"
}
