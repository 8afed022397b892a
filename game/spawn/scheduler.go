// Package spawn provides the cancelable fixed-interval scheduler that drives
// item spawning.
//
// The scheduler does not call its tick function directly. Each tick is handed
// to a post function, which in the relay server enqueues it on the event
// loop, so the tick runs with exclusive access to the registries. Ticks that
// were already queued when the scheduler is stopped or restarted are dropped
// when they reach the loop.
package spawn

import (
	"time"

	"github.com/sasha-s/go-deadlock"
)

// DefaultInterval between item spawns
const DefaultInterval = 5 * time.Second

// PostFunc hands fn to the goroutine that owns the ticked state. It reports
// false when that goroutine is gone or cancel is closed while waiting.
type PostFunc func(fn func(), cancel <-chan struct{}) bool

// Scheduler runs tick every interval until stopped
type Scheduler struct {
	interval time.Duration
	post     PostFunc
	tick     func()

	mu   deadlock.Mutex
	gen  uint64
	stop chan struct{}
}

// New creates a stopped scheduler
func New(interval time.Duration, post PostFunc, tick func()) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		interval: interval,
		post:     post,
		tick:     tick,
	}
}

// Start begins ticking. A running activation is canceled and replaced.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	s.gen++
	stop := make(chan struct{})
	s.stop = stop

	go s.run(s.gen, stop)
}

// Stop cancels the current activation. Stopping a stopped scheduler is a
// no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
}

// Running reports whether an activation is live
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stop != nil
}

// Interval between ticks, after defaulting
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

func (s *Scheduler) stopLocked() {
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
}

func (s *Scheduler) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stop != nil && s.gen == gen
}

func (s *Scheduler) run(gen uint64, stop <-chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ok := s.post(func() {
				if s.current(gen) {
					s.tick()
				}
			}, stop)
			if !ok {
				return
			}
		}
	}
}
