package scheduler

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// delaySchedule fires once after initial, then every interval. It keeps
// sub-second precision, unlike cron.Every.
type delaySchedule struct {
	initial  time.Duration
	interval time.Duration

	mu    sync.Mutex
	fired bool
}

var _ cron.Schedule = (*delaySchedule)(nil)

func (s *delaySchedule) Next(t time.Time) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.fired {
		s.fired = true
		return t.Add(s.initial)
	}
	return t.Add(s.interval)
}
