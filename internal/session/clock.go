package session

import "time"

// Clock abstracts the wall-clock and timer source so the countdown and
// per-unit timing can be driven deterministically in tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) *time.Timer
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) *time.Timer {
	return time.AfterFunc(d, f)
}

// NewRealClock returns the production wall-clock source.
func NewRealClock() Clock { return realClock{} }
