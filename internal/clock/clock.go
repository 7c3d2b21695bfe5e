// Package clock provides the monotonic nanosecond reader and the
// absolute-time sleep helper the scheduler and calibration workers use.
// Kept as an interface so the scheduler can be driven by a deterministic
// stub clock in tests (spec.md §8's "stub clock ticking at 250 Hz").
package clock

import "time"

// Clock abstracts time.Now()/time.Sleep() so the periodic control loop
// can be exercised against a fake clock in tests.
type Clock interface {
	NowNano() int64
	Sleep(d time.Duration)
}

// Real is the production Clock, backed by the monotonic runtime clock.
type Real struct{}

// epoch anchors Real's readings; time.Since uses the monotonic reading
// carried by time.Now, so wall-clock adjustments do not affect it.
var epoch = time.Now()

// NowNano returns a monotonic nanosecond timestamp, counted from
// package initialization.
func (Real) NowNano() int64 { return int64(time.Since(epoch)) }

// Sleep blocks for d.
func (Real) Sleep(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}

// SleepUntil performs an absolute-time sleep to the given deadline,
// avoiding the cumulative drift of repeatedly sleeping for a fixed
// duration (spec.md §4.5: "absolute-time sleeps to avoid drift").
func SleepUntil(c Clock, deadlineNano int64) {
	now := c.NowNano()
	if deadlineNano > now {
		c.Sleep(time.Duration(deadlineNano - now))
	}
}
