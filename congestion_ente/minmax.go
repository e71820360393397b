package congestion_ente

import (
	"time"

	"golang.org/x/exp/constraints"
)

func Max[T constraints.Ordered](a, b T) T {
	if a < b {
		return b
	}
	return a
}

func Min[T constraints.Ordered](a, b T) T {
	if a < b {
		return a
	}
	return b
}

// Clamp limits v to [lo, hi].
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	return Min(Max(v, lo), hi)
}

// DurationMicros converts d into whole microseconds, saturating at the uint32
// range and never returning zero.
func DurationMicros(d time.Duration) uint32 {
	micros := d.Microseconds()
	if micros <= 0 {
		return 1
	}
	return uint32(Min(micros, int64(^uint32(0))))
}
