package store

import "time"

// Scheduler runs deferred tasks. AfterFunc returns a stop function that
// reports whether it prevented the task from running.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) (stop func() bool)
}

// SystemScheduler schedules tasks on the wall clock.
type SystemScheduler struct{}

// AfterFunc implements Scheduler
func (SystemScheduler) AfterFunc(d time.Duration, fn func()) func() bool {
	return time.AfterFunc(d, fn).Stop
}
