package congestion_ente

import "math"

// InfiniteSlowStartThreshold leaves slow start unbounded.
const InfiniteSlowStartThreshold = 0x7fffffff

// Socket is the host side of one connection as a strategy sees it. Windows
// are counted in segments.
type Socket struct {
	// Cwnd is the congestion window.
	Cwnd uint32
	// CwndCount accumulates additive-increase credits.
	CwndCount uint32
	// CwndClamp is the largest window the host allows.
	CwndClamp uint32
	// SlowStartThreshold separates slow start from congestion avoidance.
	SlowStartThreshold uint32
	// SmoothedRTT is the host's smoothed RTT in microseconds.
	SmoothedRTT uint32
	// AppLimited is set while the sender does not fill its window.
	AppLimited bool
}

// NewSocket returns a socket with the given initial window, no threshold and
// no clamp.
func NewSocket(initialCwnd uint32) Socket {
	return Socket{
		Cwnd:               initialCwnd,
		CwndClamp:          math.MaxUint32,
		SlowStartThreshold: InfiniteSlowStartThreshold,
	}
}

func (s *Socket) InSlowStart() bool {
	return s.Cwnd < s.SlowStartThreshold
}

// SlowStart grows the window by acked segments without crossing the
// threshold and returns the acks left over for congestion avoidance.
func (s *Socket) SlowStart(acked uint32) uint32 {
	if !s.InSlowStart() {
		return acked
	}
	cwnd := Min(s.Cwnd+acked, s.SlowStartThreshold)
	acked -= cwnd - s.Cwnd
	s.Cwnd = Min(cwnd, s.CwndClamp)
	return acked
}

// CongAvoidAI credits acked segments and grows the window by one segment
// for every w credits.
func (s *Socket) CongAvoidAI(w, acked uint32) {
	w = Max(w, 1)
	// credits earned at a larger window are applied gently
	if s.CwndCount >= w {
		s.CwndCount = 0
		s.Cwnd++
	}
	s.CwndCount += acked
	if s.CwndCount >= w {
		delta := s.CwndCount / w
		s.CwndCount -= delta * w
		s.Cwnd += delta
	}
	s.Cwnd = Min(s.Cwnd, s.CwndClamp)
}

// RenoCongAvoid is the standard additive-increase step: slow start below the
// threshold, then one segment per window of acknowledged segments. It does
// nothing while the sender is application limited.
func (s *Socket) RenoCongAvoid(acked uint32) {
	if s.AppLimited {
		return
	}
	if s.InSlowStart() {
		acked = s.SlowStart(acked)
		if acked == 0 {
			return
		}
	}
	s.CongAvoidAI(s.Cwnd, acked)
}
