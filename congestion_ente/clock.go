package congestion_ente

import (
	"time"

	"github.com/sagernet/quic-go/monotime"
)

// Clock provides the current time.
type Clock interface {
	Now() monotime.Time
}

// DefaultClock is a clock that returns the current monotonic time, or the
// time from TimeFunc when one is set.
type DefaultClock struct {
	TimeFunc func() time.Time
}

func (c DefaultClock) Now() monotime.Time {
	if c.TimeFunc != nil {
		return monotime.Time(c.TimeFunc().UnixNano())
	}
	return monotime.Now()
}
