package sb

import (
	"time"

	"github.com/GriffinCanCode/softbus/internal/shared/msg"
)

// MissionEpoch is the default time origin for telemetry stamps.
var MissionEpoch = time.Date(1980, time.January, 6, 0, 0, 0, 0, time.UTC)

// Clock supplies mission time.
type Clock interface {
	Now() msg.Time
}

// SystemClock derives mission time from the host clock. Elapsed time is
// measured monotonically from construction, so wall clock steps do not
// move stamps backwards.
type SystemClock struct {
	base  time.Duration
	start time.Time
}

// NewSystemClock returns a clock counting from epoch.
func NewSystemClock(epoch time.Time) *SystemClock {
	now := time.Now()
	return &SystemClock{base: now.Sub(epoch), start: now}
}

// Now implements Clock.
func (c *SystemClock) Now() msg.Time {
	return ToMsgTime(c.base + time.Since(c.start))
}

// ToMsgTime converts an offset from the epoch to header time. Subseconds
// are units of 2^-16 seconds.
func ToMsgTime(d time.Duration) msg.Time {
	if d < 0 {
		d = 0
	}
	secs := d / time.Second
	frac := d % time.Second
	return msg.Time{
		Seconds:    uint32(secs),
		Subseconds: uint16((uint64(frac) << 16) / uint64(time.Second)),
	}
}

// FromMsgTime converts header time back to an offset from the epoch.
func FromMsgTime(t msg.Time) time.Duration {
	return time.Duration(t.Seconds)*time.Second +
		time.Duration((uint64(t.Subseconds)*uint64(time.Second))>>16)
}

// TimeStampMsg writes the current mission time into a telemetry header.
func (b *Bus) TimeStampMsg(m []byte) error {
	return msg.SetMsgTime(m, b.clock.Now())
}
