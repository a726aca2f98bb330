package domain

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// clock is the package-level time source used for default windows.
// Tests freeze it via SetClock.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Now returns the current instant at one-second resolution, as a
// calendar-naive UTC value.
func Now() time.Time {
	return clock.Now().UTC().Truncate(time.Second)
}
