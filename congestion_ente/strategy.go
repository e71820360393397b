package congestion_ente

import "time"

// Strategy is the callback contract between a host transport and a
// congestion-control strategy. A Strategy value holds the state of exactly
// one connection; the host serializes all calls against it.
type Strategy interface {
	// Name returns the token the strategy is registered under.
	Name() string
	// Init prepares the strategy for a new connection.
	Init(sk *Socket)
	// SlowStartThreshold returns the threshold to use after a loss.
	SlowStartThreshold(sk *Socket) uint32
	// CongestionAvoid advances the window for acked newly acknowledged segments.
	CongestionAvoid(sk *Socket, ack uint32, acked uint32)
	// UndoCwnd restores the window after a loss turned out to be spurious.
	UndoCwnd(sk *Socket) uint32
	// CwndEvent reports a window-related host event.
	CwndEvent(sk *Socket, event Event)
	// GetInfo returns diagnostics for the requested extensions.
	GetInfo(ext InfoRequest) (Info, bool)
	// SetState reports a change of the host's congestion state.
	SetState(sk *Socket, state CAState)
}

// Event is a window-related host event.
type Event uint8

const (
	// EventTxStart is the first transmission when nothing is in flight.
	EventTxStart Event = iota
	// EventCwndRestart is a transmission after an idle period.
	EventCwndRestart
	// EventCompleteCwr is the end of window reduction.
	EventCompleteCwr
	// EventLoss is a retransmission timeout.
	EventLoss
	// EventECNNoCE is an ECT packet received without CE.
	EventECNNoCE
	// EventECNIsCE is a packet received with CE.
	EventECNIsCE
)

func (e Event) String() string {
	switch e {
	case EventTxStart:
		return "tx_start"
	case EventCwndRestart:
		return "cwnd_restart"
	case EventCompleteCwr:
		return "complete_cwr"
	case EventLoss:
		return "loss"
	case EventECNNoCE:
		return "ecn_no_ce"
	case EventECNIsCE:
		return "ecn_is_ce"
	default:
		return "unknown"
	}
}

// CAState is the host's congestion state.
type CAState uint8

const (
	CAStateOpen CAState = iota
	CAStateDisorder
	CAStateCWR
	CAStateRecovery
	CAStateLoss
)

func (s CAState) String() string {
	switch s {
	case CAStateOpen:
		return "open"
	case CAStateDisorder:
		return "disorder"
	case CAStateCWR:
		return "cwr"
	case CAStateRecovery:
		return "recovery"
	case CAStateLoss:
		return "loss"
	default:
		return "unknown"
	}
}

// InfoRequest is a bitmask of diagnostic extensions.
type InfoRequest uint32

// InfoRequestVegas asks for the RTT-oriented extension that carries the
// entropy diagnostics.
const InfoRequestVegas InfoRequest = 1 << (inetDiagVegasInfo - 1)

const inetDiagVegasInfo = 3

// Info is a read-only diagnostic snapshot.
type Info struct {
	Entropy        uint16         `json:"entropy"`
	Samples        uint16         `json:"samples"`
	AvgRTT         time.Duration  `json:"avg_rtt"`
	Classification Classification `json:"classification"`
}
