// Package congestion_ente implements ENTE, an entropy-classified congestion
// control strategy.
//
// ENTE keeps a short window of smoothed RTT samples per connection and scores
// how random their distribution is. Random variation is read as link noise
// (wireless jitter, handoff) and answered with faster growth and a gentler
// reduction on loss; ordered variation is read as queue buildup and answered
// with slower growth. Until a window has been scored the strategy behaves
// like Reno.
package congestion_ente

import (
	"math"
	"time"
)

const (
	// Name is the token ENTE is registered under.
	Name = "ente_tcp"
	// Version of the strategy.
	Version = "1.0"

	// NoiseAggression is the congestion-avoidance gain on noise, per mille.
	NoiseAggression = 1500
	// CongestionConserve is the congestion-avoidance gain on congestion, per mille.
	CongestionConserve = 500

	// NoiseReductionFactor shrinks the window to 2/3 on a loss during noise.
	NoiseReductionFactor = 3
	// CongestionReductionFactor halves the window on any other loss.
	CongestionReductionFactor = 2

	// MinSlowStartThreshold is the smallest threshold a loss can produce.
	MinSlowStartThreshold = 2
)

// Phase is the growth phase of the window controller.
type Phase uint8

const (
	PhaseSlowStart Phase = iota
	PhaseCongestionAvoidance
)

func (p Phase) String() string {
	switch p {
	case PhaseSlowStart:
		return "slow_start"
	case PhaseCongestionAvoidance:
		return "congestion_avoidance"
	default:
		return "unknown"
	}
}

// State is the per-connection ENTE state. The zero value is not ready for
// use; call Init first.
type State struct {
	minRTT    uint32
	priorCwnd uint32
	ssthresh  uint32

	history        History
	entropy        uint16
	ackedSinceCalc uint32

	rttVariance uint32
	avgRTT      uint32

	classification Classification
	inSlowStart    bool
	lossPending    bool
}

var _ Strategy = (*State)(nil)

// NewState returns a Strategy for one ENTE connection.
func NewState() Strategy {
	return &State{}
}

// Name returns the registered name of the strategy.
func (s *State) Name() string {
	return Name
}

// Init resets the state for a new connection. The host threshold in effect
// becomes the internal one, then the host threshold is lifted.
func (s *State) Init(sk *Socket) {
	*s = State{
		minRTT:      math.MaxUint32,
		priorCwnd:   sk.Cwnd,
		ssthresh:    sk.SlowStartThreshold,
		inSlowStart: true,
	}
	sk.SlowStartThreshold = InfiniteSlowStartThreshold
}

// CongestionAvoid records an RTT sample and grows the window for acked
// segments.
func (s *State) CongestionAvoid(sk *Socket, ack uint32, acked uint32) {
	if acked == 0 {
		return
	}
	s.ackedSinceCalc += acked
	s.observe(sk.SmoothedRTT)
	if s.ackedSinceCalc >= CalcInterval {
		s.recompute()
	}

	s.inSlowStart = sk.Cwnd < s.ssthresh
	if s.inSlowStart {
		if s.classification == ClassificationCongestion {
			sk.SlowStart(acked / 2)
		} else {
			sk.SlowStart(acked)
		}
		return
	}
	switch s.classification {
	case ClassificationCongestion:
		sk.CongAvoidAI(sk.Cwnd, avoidanceDelta(acked, sk.Cwnd, CongestionConserve))
	case ClassificationNoise:
		sk.CongAvoidAI(sk.Cwnd, avoidanceDelta(acked, sk.Cwnd, NoiseAggression))
	default:
		sk.RenoCongAvoid(acked)
	}
}

func (s *State) observe(rttMicros uint32) {
	rttMicros = Max(rttMicros, 1)
	s.minRTT = Min(s.minRTT, rttMicros)
	s.history.Push(rttMicros)
}

func (s *State) recompute() {
	s.entropy = Entropy(&s.history)
	if stats, ok := ComputeStatistics(&s.history); ok {
		s.avgRTT = stats.AvgRTT
		s.rttVariance = stats.Variance
	}
	s.ackedSinceCalc = 0
	// a window too short to score has entropy 0 and classifies as congestion
	s.classification = Classify(s.entropy)
	s.lossPending = false
}

// avoidanceDelta scales the acknowledged segments by gain per mille of the
// window, never returning less than one credit.
func avoidanceDelta(acked, cwnd, gain uint32) uint32 {
	delta := uint64(acked) * uint64(gain) / (uint64(Max(cwnd, 1)) * 1000)
	return uint32(Clamp(delta, 1, math.MaxUint32))
}

// SlowStartThreshold returns the threshold to apply after a loss.
func (s *State) SlowStartThreshold(sk *Socket) uint32 {
	s.lossPending = true
	divisor := uint32(CongestionReductionFactor)
	if s.classification == ClassificationNoise {
		divisor = NoiseReductionFactor
	}
	s.ssthresh = Max(sk.Cwnd/divisor, MinSlowStartThreshold)
	s.priorCwnd = sk.Cwnd
	return s.ssthresh
}

// UndoCwnd restores the window in effect before the last reduction.
func (s *State) UndoCwnd(sk *Socket) uint32 {
	sk.Cwnd = Max(sk.Cwnd, s.priorCwnd)
	s.inSlowStart = sk.Cwnd < s.ssthresh
	return sk.Cwnd
}

// CwndEvent handles a window event signaled by the host.
func (s *State) CwndEvent(sk *Socket, event Event) {
	switch event {
	case EventLoss:
		s.lossPending = true
	case EventCwndRestart:
		s.history.Reset()
		s.classification = ClassificationNoData
	}
}

// GetInfo reports the entropy diagnostics.
func (s *State) GetInfo(ext InfoRequest) (Info, bool) {
	if ext&InfoRequestVegas == 0 {
		return Info{}, false
	}
	return Info{
		Entropy:        s.entropy,
		Samples:        uint16(s.history.Len()),
		AvgRTT:         time.Duration(s.avgRTT) * time.Microsecond,
		Classification: s.classification,
	}, true
}

// SetState handles a congestion-state change signaled by the host.
func (s *State) SetState(sk *Socket, state CAState) {
	if state == CAStateLoss {
		s.lossPending = true
	}
}

// Classification returns the current verdict.
func (s *State) Classification() Classification {
	return s.classification
}

// Phase returns the growth phase decided on the last acknowledgment.
func (s *State) Phase() Phase {
	if s.inSlowStart {
		return PhaseSlowStart
	}
	return PhaseCongestionAvoidance
}

// MinRTT returns the smallest smoothed RTT observed, or zero before the first
// sample.
func (s *State) MinRTT() time.Duration {
	if s.minRTT == math.MaxUint32 {
		return 0
	}
	return time.Duration(s.minRTT) * time.Microsecond
}

// Entropy returns the last computed score.
func (s *State) Entropy() uint16 {
	return s.entropy
}

// RTTVariance returns the variance of the last scored window in ms².
func (s *State) RTTVariance() uint32 {
	return s.rttVariance
}

// LossPending reports whether a loss was signaled since the last recompute.
func (s *State) LossPending() bool {
	return s.lossPending
}

// History returns the RTT history.
func (s *State) History() *History {
	return &s.history
}
