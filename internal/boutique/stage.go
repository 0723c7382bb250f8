package boutique

import (
	"sync"
	"time"
)

// LoadDelay is the artificial delay before the grid leaves the loading stage.
const LoadDelay = 1000 * time.Millisecond

// StageState is the lifecycle of the loading stage.
type StageState int

const (
	// StageIdle means Start has not been called yet; the grid still shows placeholders.
	StageIdle StageState = iota
	StageLoading
	StageReady
	// StageStopped means the stage was torn down before it became ready.
	StageStopped
)

func (s StageState) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageLoading:
		return "loading"
	case StageReady:
		return "ready"
	case StageStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Stage flips from Loading to Ready once, after a fixed delay, unless it is
// stopped first.
type Stage struct {
	clock Clock
	delay time.Duration

	mu    sync.Mutex
	state StageState
	timer Timer
}

// NewStage builds an idle stage. A nil clock uses SystemClock and a
// non-positive delay uses LoadDelay.
func NewStage(clock Clock, delay time.Duration) *Stage {
	if clock == nil {
		clock = SystemClock
	}
	if delay <= 0 {
		delay = LoadDelay
	}
	return &Stage{clock: clock, delay: delay}
}

// Start schedules the Loading -> Ready transition. onReady runs at most once,
// after the state is Ready, and never if Stop takes effect first. Once the
// state is Ready, Stop is a no-op: it can return while onReady is still
// running, so callers that must not observe the callback after teardown
// serialize around it themselves (View does). Start reports false when the
// stage was already started or stopped.
func (s *Stage) Start(onReady func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StageIdle {
		return false
	}
	s.state = StageLoading
	s.timer = s.clock.AfterFunc(s.delay, func() { s.fire(onReady) })
	return true
}

func (s *Stage) fire(onReady func()) {
	s.mu.Lock()
	if s.state != StageLoading {
		s.mu.Unlock()
		return
	}
	s.state = StageReady
	s.timer = nil
	s.mu.Unlock()
	if onReady != nil {
		onReady()
	}
}

// Stop cancels a pending transition. It reports whether a scheduled
// callback was cancelled; false after Ready.
func (s *Stage) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StageIdle:
		s.state = StageStopped
		return false
	case StageLoading:
		s.state = StageStopped
		if s.timer != nil {
			stopped := s.timer.Stop()
			s.timer = nil
			return stopped
		}
		return false
	default:
		return false
	}
}

// State returns the current lifecycle state.
func (s *Stage) State() StageState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Loading reports whether the grid should still show placeholders.
func (s *Stage) Loading() bool {
	return s.State() != StageReady
}
