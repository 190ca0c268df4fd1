package scheduler

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

var _ Scheduler = &Timer{}

// Timer is a Scheduler on wall-clock timers. Delays go through cron's
// constant-delay schedule, so they are at least one second and fire on a
// whole second.
type Timer struct {
	mu     sync.Mutex
	last   Handle
	timers map[Handle]*time.Timer
}

func NewTimer() *Timer {
	return &Timer{timers: make(map[Handle]*time.Timer)}
}

func (s *Timer) Schedule(d time.Duration, fn func()) Handle {
	now := time.Now()
	next := cron.Every(d).Next(now)
	wait := next.Sub(now)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.last++
	h := s.last
	s.timers[h] = time.AfterFunc(wait, func() {
		s.mu.Lock()
		_, live := s.timers[h]
		delete(s.timers, h)
		s.mu.Unlock()

		if !live {
			return
		}
		fn()
	})

	logrus.WithFields(logrus.Fields{
		"handle":  h,
		"fireAt":  next.Format(time.DateTime),
		"waitSec": int(wait.Seconds()),
	}).Trace("scheduled timer")

	return h
}

func (s *Timer) Cancel(h Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[h]; ok {
		t.Stop()
		delete(s.timers, h)
	}
}

// Len returns the number of pending runs.
func (s *Timer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels every pending run.
func (s *Timer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for h, t := range s.timers {
		t.Stop()
		delete(s.timers, h)
	}
}
