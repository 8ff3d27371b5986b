package kernel

import (
	"errors"
	"fmt"
	"time"
)

// SimTime is an absolute point in virtual time, nanosecond resolution,
// measured from an arbitrary reference (typically 0 at the start of a
// run). It is independent of wall-clock time.
type SimTime int64

// Add returns t plus a signed nanosecond duration.
func (t SimTime) Add(deltaNs int64) SimTime {
	return t + SimTime(deltaNs)
}

// Sub returns the nanosecond duration between two SimTimes (t - u).
func (t SimTime) Sub(u SimTime) int64 {
	return int64(t - u)
}

// Nanos returns the raw nanosecond count.
func (t SimTime) Nanos() int64 { return int64(t) }

// Duration converts to a time.Duration for display purposes only.
func (t SimTime) Duration() time.Duration { return time.Duration(t) }

func (t SimTime) String() string {
	return fmt.Sprintf("%dns", int64(t))
}

// ErrTimeInPast is returned by SetWakeup when the requested time precedes
// the kernel's current time. SetWakeup always requires an explicit time;
// there is no "now" default.
var ErrTimeInPast = errors.New("kernel: requested time is in the past")
