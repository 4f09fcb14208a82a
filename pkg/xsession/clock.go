package xsession

import "time"

// Clock returns nanoseconds. Probe send stamps and the delay computed on
// the echo must come from the same Clock.
type Clock func() uint64

var clockBase = time.Now()

// MonotonicWallClock reads as unix nanoseconds but only ever advances by
// the monotonic clock, so wall clock steps never bend a delay.
func MonotonicWallClock() uint64 {
	return uint64(clockBase.UnixNano() + int64(time.Since(clockBase)))
}
