package dashboard

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nwchenyw/tw-live-frontend/internal/logger"
	"github.com/nwchenyw/tw-live-frontend/internal/metrics"
)

// TickFunc is one refresh attempt. It is never invoked while a previous
// invocation is still running.
type TickFunc func(ctx context.Context)

// Scheduler owns the recurring refresh timer.
//
// Every arm bumps a generation number; a timer goroutine only fires while its
// generation is current, so a re-armed or stopped timer can never deliver a
// late tick. Ticks that arrive while one is in flight are dropped, not queued.
type Scheduler struct {
	logger logger.Logger

	mu       sync.Mutex
	gen      uint64
	interval time.Duration
	tick     TickFunc
	running  bool
	runCtx   context.Context
	stopRun  context.CancelFunc
	stopLoop context.CancelFunc

	inFlight atomic.Bool
	wg       sync.WaitGroup
}

func NewScheduler(log logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NewNullLogger()
	}
	return &Scheduler{logger: log.WithField("component", "scheduler")}
}

// Start arms the timer at interval and remembers fn for manual triggers. A
// non-positive interval arms nothing; Trigger still works. Calling Start on a
// running scheduler replaces fn and re-arms.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration, fn TickFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.stopRun()
	}
	s.runCtx, s.stopRun = context.WithCancel(ctx)
	s.tick = fn
	s.running = true
	s.armLocked(interval)
}

// Reconfigure re-arms the timer with a new period. The elapsed part of the old
// period is discarded. Setting the current period again is a no-op.
func (s *Scheduler) Reconfigure(interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if interval < 0 {
		interval = 0
	}
	if !s.running {
		s.interval = interval
		return
	}
	if interval == s.interval {
		return
	}
	s.armLocked(interval)
}

// Stop cancels the timer and the context handed to running ticks. It is
// idempotent and waits for the timer goroutine, but not for an in-flight
// tick, to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.gen++
	if s.stopLoop != nil {
		s.stopLoop()
		s.stopLoop = nil
	}
	s.stopRun()
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Debug("Scheduler stopped")
}

// Trigger runs one tick now, on the caller's goroutine, sharing the in-flight
// guard with timer ticks. It returns false without doing anything when the
// scheduler is stopped or a tick is already running.
func (s *Scheduler) Trigger(ctx context.Context) bool {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return false
	}
	fn := s.tick
	if !s.inFlight.CompareAndSwap(false, true) {
		s.mu.Unlock()
		metrics.IncrementSuppressedTicks()
		return false
	}
	s.mu.Unlock()

	defer s.inFlight.Store(false)
	fn(ctx)
	return true
}

// Interval returns the configured period.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// InFlight reports whether a tick is executing.
func (s *Scheduler) InFlight() bool {
	return s.inFlight.Load()
}

func (s *Scheduler) armLocked(interval time.Duration) {
	s.gen++
	if s.stopLoop != nil {
		s.stopLoop()
		s.stopLoop = nil
	}
	s.interval = interval
	if interval <= 0 {
		s.logger.Debug("Auto refresh disabled")
		return
	}

	loopCtx, cancel := context.WithCancel(s.runCtx)
	s.stopLoop = cancel
	s.wg.Add(1)
	go s.loop(loopCtx, s.gen, interval)

	s.logger.WithField("interval", interval.String()).Debug("Scheduler armed")
}

func (s *Scheduler) loop(ctx context.Context, gen uint64, interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.fire(gen) {
				return
			}
		}
	}
}

// fire starts a tick if gen is still current. It returns false once the loop
// has been superseded.
func (s *Scheduler) fire(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen || !s.running {
		return false
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		metrics.IncrementSuppressedTicks()
		s.logger.Debug("Tick suppressed, previous refresh still running")
		return true
	}

	fn, ctx := s.tick, s.runCtx
	go func() {
		defer s.inFlight.Store(false)
		fn(ctx)
	}()
	return true
}
