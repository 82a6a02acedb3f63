// Package interval defines the time interval value type used for clip playback time.
package interval

import (
	"fmt"
	"time"
)

// Interval is a span of timeline time. Start is always <= End.
type Interval struct {
	Start time.Duration
	End   time.Duration
}

// New returns the interval between start and end, swapping them if needed.
func New(start, end time.Duration) Interval {
	if start > end {
		start, end = end, start
	}
	return Interval{Start: start, End: end}
}

// Duration returns End - Start.
func (i Interval) Duration() time.Duration {
	return i.End - i.Start
}

// Contains reports whether t lies in the half-open interval [Start, End).
func (i Interval) Contains(t time.Duration) bool {
	return i.Start <= t && t < i.End
}

// ContainedBy reports whether the interval lies entirely within [start, end].
func (i Interval) ContainedBy(start, end time.Duration) bool {
	return start <= i.Start && end >= i.End
}

// Next returns the interval of length d that immediately follows this one.
func (i Interval) Next(d time.Duration) Interval {
	return New(i.End, i.End+d)
}

// Translate shifts the interval by d.
func (i Interval) Translate(d time.Duration) Interval {
	return Interval{Start: i.Start + d, End: i.End + d}
}

// String implements fmt.Stringer.
func (i Interval) String() string {
	return fmt.Sprintf("[%s, %s)", i.Start, i.End)
}
