package clock

import "time"

// Clock lets scan and backoff logic run against a controlled time in tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func New() Clock {
	return realClock{}
}
