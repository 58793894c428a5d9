package service

import "time"

// Clock provides time to the service layer. Using an interface keeps
// departure/arrival timestamps deterministic in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock returns the current wall-clock time.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// WireTimeFormat is the 24-hour layout used for departure and arrival
// timestamps on the wire.
const WireTimeFormat = "15:04"
