package clock

import "time"

// Clock is the single source of server time for all deadline math.
// Client-supplied timestamps are never used for correctness decisions;
// every component that needs "now" receives a Clock so the session state
// machine stays deterministic under test.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// System returns a Clock backed by the OS wall clock.
func System() Clock { return systemClock{} }
