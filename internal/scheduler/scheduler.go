// Package scheduler drives poll cycles at a fixed interval until cancelled.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rileyhilliard/gpumon/internal/gpu"
	"github.com/rileyhilliard/gpumon/internal/logger"
)

// State is the scheduler lifecycle state.
type State int

const (
	Idle State = iota
	Running
	Stopped
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// CycleFunc produces one snapshot. It receives a context that is never
// cancelled by the scheduler, so a cycle always runs to completion.
type CycleFunc func(ctx context.Context) gpu.ClusterSnapshot

// Scheduler runs CycleFunc immediately and then once per Interval,
// handing each snapshot to OnSnapshot. Cycles never overlap; ticks that
// fire while a cycle is running are dropped.
type Scheduler struct {
	Interval   time.Duration
	Cycle      CycleFunc
	OnSnapshot func(gpu.ClusterSnapshot)

	// Preflight runs before the first cycle and before every later one.
	// An error moves the scheduler to Failed and is returned from Run.
	Preflight func() error

	Log logger.Logger

	mu     sync.RWMutex
	state  State
	cycles uint64
}

// New returns an Idle scheduler.
func New(interval time.Duration, cycle CycleFunc, onSnapshot func(gpu.ClusterSnapshot)) *Scheduler {
	return &Scheduler{
		Interval:   interval,
		Cycle:      cycle,
		OnSnapshot: onSnapshot,
		Log:        logger.Default(),
	}
}

// State returns the current state. Safe for concurrent use.
func (s *Scheduler) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Cycles returns the number of completed cycles.
func (s *Scheduler) Cycles() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cycles
}

func (s *Scheduler) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Run blocks until ctx is cancelled (returns nil, state Stopped) or a
// preflight check fails (returns the error, state Failed). Cancellation is
// observed only between cycles: an in-flight cycle finishes and its
// snapshot is delivered before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	s.setState(Running)
	log := s.Log
	if log == nil {
		log = logger.Noop()
	}

	interval := s.Interval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	cycleCtx := context.WithoutCancel(ctx)

	for {
		if s.Preflight != nil {
			if err := s.Preflight(); err != nil {
				log.Error("preflight failed: %v", err)
				s.setState(Failed)
				return err
			}
		}

		snap := s.Cycle(cycleCtx)

		s.mu.Lock()
		s.cycles++
		snap.Cycle = s.cycles
		s.mu.Unlock()

		if s.OnSnapshot != nil {
			s.OnSnapshot(snap)
		}
		log.Debug("cycle %d done", snap.Cycle)

		if ctx.Err() != nil {
			s.setState(Stopped)
			return nil
		}

		select {
		case <-ctx.Done():
			s.setState(Stopped)
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce performs a single cycle after preflight, without changing State.
func (s *Scheduler) RunOnce(ctx context.Context) (gpu.ClusterSnapshot, error) {
	if s.Preflight != nil {
		if err := s.Preflight(); err != nil {
			return gpu.ClusterSnapshot{}, err
		}
	}
	snap := s.Cycle(context.WithoutCancel(ctx))

	s.mu.Lock()
	s.cycles++
	snap.Cycle = s.cycles
	s.mu.Unlock()

	return snap, nil
}
