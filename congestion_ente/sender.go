package congestion_ente

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/sagernet/quic-go/congestion"
	"github.com/sagernet/quic-go/monotime"
	"github.com/sagernet/sing/common/logger"
)

const (
	// InitialCongestionWindow is the initial window in packets.
	InitialCongestionWindow = 32
	// MaxCongestionWindow is the largest window in packets.
	MaxCongestionWindow = 10000
	// MinCongestionWindow is the smallest window in packets.
	MinCongestionWindow = MinSlowStartThreshold

	// minRestartIdle is the shortest idle period treated as a restart.
	minRestartIdle = 200 * time.Millisecond
	// defaultInitialRTT stands in for the smoothed RTT before the first sample.
	defaultInitialRTT = 100 * time.Millisecond

	invalidPacketNumber congestion.PacketNumber = -1
)

// SenderOptions configures a Sender.
type SenderOptions struct {
	// InitialCongestionWindow is the initial window in packets.
	InitialCongestionWindow uint32
	// MaxCongestionWindow is the largest window in packets.
	MaxCongestionWindow uint32
	Logger              logger.Logger
}

func DefaultSenderOptions() SenderOptions {
	return SenderOptions{
		InitialCongestionWindow: InitialCongestionWindow,
		MaxCongestionWindow:     MaxCongestionWindow,
	}
}

// rttSource is the part of quic-go's RTT statistics the sender reads.
type rttSource interface {
	SmoothedRTT() time.Duration
}

// Sender drives a Strategy from quic-go's congestion-control callbacks.
// The window is kept in packets on a Socket and exposed in bytes.
type Sender struct {
	clock    Clock
	rttStats rttSource
	logger   logger.Logger
	strategy Strategy
	socket   Socket
	pacer    *Pacer

	initialCongestionWindow uint32
	maxDatagramSize         congestion.ByteCount
	// acknowledged bytes not yet worth a full packet
	ackedBytesRemainder congestion.ByteCount

	largestSentPacketNumber  congestion.PacketNumber
	largestAckedPacketNumber congestion.PacketNumber
	largestSentAtLastCutback congestion.PacketNumber
	lastSentTime             monotime.Time

	classification Classification
	snapshot       snapshot
}

var _ congestion.CongestionControl = (*Sender)(nil)

// NewSender creates a Sender around a freshly created strategy.
func NewSender(
	clock Clock,
	initialMaxDatagramSize congestion.ByteCount,
	strategy Strategy,
	options SenderOptions,
) *Sender {
	if options.InitialCongestionWindow == 0 {
		options.InitialCongestionWindow = InitialCongestionWindow
	}
	if options.MaxCongestionWindow == 0 {
		options.MaxCongestionWindow = MaxCongestionWindow
	}
	if options.Logger == nil {
		options.Logger = logger.NOP()
	}
	if clock == nil {
		clock = DefaultClock{}
	}
	s := &Sender{
		clock:                    clock,
		logger:                   options.Logger,
		strategy:                 strategy,
		socket:                   NewSocket(options.InitialCongestionWindow),
		initialCongestionWindow:  options.InitialCongestionWindow,
		maxDatagramSize:          initialMaxDatagramSize,
		largestSentPacketNumber:  invalidPacketNumber,
		largestAckedPacketNumber: invalidPacketNumber,
		largestSentAtLastCutback: invalidPacketNumber,
	}
	s.socket.CwndClamp = options.MaxCongestionWindow
	s.strategy.Init(&s.socket)
	s.pacer = NewPacer(s.bandwidthEstimate)
	s.pacer.SetMaxDatagramSize(initialMaxDatagramSize)
	s.publish()
	return s
}

// Strategy returns the driven strategy.
func (s *Sender) Strategy() Strategy {
	return s.strategy
}

// SetRTTStatsProvider sets the RTT stats provider.
func (s *Sender) SetRTTStatsProvider(provider congestion.RTTStatsProvider) {
	s.rttStats = provider
}

// TimeUntilSend returns when the next packet should be sent.
func (s *Sender) TimeUntilSend(bytesInFlight congestion.ByteCount) monotime.Time {
	return s.pacer.TimeUntilSend()
}

// HasPacingBudget reports whether the pacer allows a full packet now.
func (s *Sender) HasPacingBudget(now monotime.Time) bool {
	return s.pacer.Budget(now) >= s.maxDatagramSize
}

// OnPacketSent is called when a packet is sent.
func (s *Sender) OnPacketSent(
	sentTime monotime.Time,
	bytesInFlight congestion.ByteCount,
	packetNumber congestion.PacketNumber,
	bytes congestion.ByteCount,
	isRetransmittable bool,
) {
	s.pacer.OnPacketSent(sentTime, bytes)
	if !isRetransmittable {
		return
	}
	if bytesInFlight == 0 && !s.lastSentTime.IsZero() && sentTime.Sub(s.lastSentTime) > s.restartIdle() {
		s.restart()
	}
	s.lastSentTime = sentTime
	s.largestSentPacketNumber = packetNumber
}

func (s *Sender) restartIdle() time.Duration {
	return Max(2*s.smoothedRTT(), minRestartIdle)
}

// restart applies the restart window after an idle period.
func (s *Sender) restart() {
	s.strategy.CwndEvent(&s.socket, EventCwndRestart)
	s.socket.Cwnd = Max(Min(s.socket.Cwnd, s.initialCongestionWindow), MinCongestionWindow)
	s.socket.CwndCount = 0
	s.logger.Debug("congestion control ", s.strategy.Name(), ": restart after idle, window ", s.socket.Cwnd)
	s.publish()
}

// CanSend reports whether the window has room for more bytes in flight.
func (s *Sender) CanSend(bytesInFlight congestion.ByteCount) bool {
	return bytesInFlight < s.GetCongestionWindow()
}

// MaybeExitSlowStart is a no-op; the strategy decides the phase on each ack.
func (s *Sender) MaybeExitSlowStart() {}

// OnPacketAcked is called when a packet is acknowledged.
func (s *Sender) OnPacketAcked(
	number congestion.PacketNumber,
	ackedBytes congestion.ByteCount,
	priorInFlight congestion.ByteCount,
	eventTime monotime.Time,
) {
	s.largestAckedPacketNumber = Max(number, s.largestAckedPacketNumber)
	if s.InRecovery() {
		return
	}
	s.socket.SmoothedRTT = DurationMicros(s.smoothedRTT())
	s.socket.AppLimited = !s.isCwndLimited(priorInFlight)
	s.ackedBytesRemainder += ackedBytes
	acked := s.ackedBytesRemainder / s.maxDatagramSize
	s.ackedBytesRemainder -= acked * s.maxDatagramSize
	s.strategy.CongestionAvoid(&s.socket, uint32(number), uint32(Min(acked, math.MaxUint32)))
	s.publish()
}

func (s *Sender) isCwndLimited(bytesInFlight congestion.ByteCount) bool {
	congestionWindow := s.GetCongestionWindow()
	if bytesInFlight >= congestionWindow {
		return true
	}
	availableBytes := congestionWindow - bytesInFlight
	slowStartLimited := s.InSlowStart() && bytesInFlight > congestionWindow/2
	return slowStartLimited || availableBytes <= maxBurstPackets*s.maxDatagramSize
}

// OnCongestionEvent is called when a packet is declared lost.
func (s *Sender) OnCongestionEvent(number congestion.PacketNumber, lostBytes congestion.ByteCount, priorInFlight congestion.ByteCount) {
	// one reduction per window of sent packets
	if number <= s.largestSentAtLastCutback {
		return
	}
	s.largestSentAtLastCutback = s.largestSentPacketNumber
	s.strategy.SetState(&s.socket, CAStateRecovery)
	s.reduce()
	s.logger.Debug("congestion control ", s.strategy.Name(), ": loss of packet ", number, ", window ", s.socket.Cwnd)
	s.publish()
}

func (s *Sender) reduce() {
	ssthresh := s.strategy.SlowStartThreshold(&s.socket)
	s.socket.SlowStartThreshold = ssthresh
	s.socket.Cwnd = Max(ssthresh, MinCongestionWindow)
	s.socket.CwndCount = 0
	s.ackedBytesRemainder = 0
}

// OnRetransmissionTimeout is called on a retransmission timeout.
func (s *Sender) OnRetransmissionTimeout(packetsRetransmitted bool) {
	s.largestSentAtLastCutback = invalidPacketNumber
	if !packetsRetransmitted {
		return
	}
	s.strategy.SetState(&s.socket, CAStateLoss)
	s.strategy.CwndEvent(&s.socket, EventLoss)
	s.reduce()
	s.socket.Cwnd = MinCongestionWindow
	s.logger.Debug("congestion control ", s.strategy.Name(), ": retransmission timeout, threshold ", s.socket.SlowStartThreshold)
	s.publish()
}

// OnSpuriousLoss restores the window after the last reduction turned out to
// be caused by a spurious loss, and leaves recovery.
//
// quic-go does not report spurious losses to its congestion controller, so
// this is only reached by callers holding the Sender directly.
func (s *Sender) OnSpuriousLoss() {
	s.strategy.UndoCwnd(&s.socket)
	s.largestSentAtLastCutback = invalidPacketNumber
	s.strategy.SetState(&s.socket, CAStateOpen)
	s.publish()
}

// SetMaxDatagramSize sets the max datagram size. It panics if the size shrinks.
func (s *Sender) SetMaxDatagramSize(size congestion.ByteCount) {
	if size < s.maxDatagramSize {
		panic("cannot decrease max datagram size")
	}
	s.maxDatagramSize = size
	s.pacer.SetMaxDatagramSize(size)
}

// InSlowStart reports whether the window is below the slow start threshold.
func (s *Sender) InSlowStart() bool {
	return s.socket.InSlowStart()
}

// InRecovery reports whether the sender is recovering from the last reduction.
func (s *Sender) InRecovery() bool {
	return s.largestAckedPacketNumber != invalidPacketNumber && s.largestAckedPacketNumber <= s.largestSentAtLastCutback
}

// GetCongestionWindow returns the congestion window in bytes.
func (s *Sender) GetCongestionWindow() congestion.ByteCount {
	return congestion.ByteCount(s.socket.Cwnd) * s.maxDatagramSize
}

// Socket returns a copy of the host-side window state.
func (s *Sender) Socket() Socket {
	return s.socket
}

func (s *Sender) smoothedRTT() time.Duration {
	if s.rttStats == nil {
		return 0
	}
	return s.rttStats.SmoothedRTT()
}

// bandwidthEstimate paces at 5/4 of the window per smoothed RTT, in bytes per second.
func (s *Sender) bandwidthEstimate() congestion.ByteCount {
	srtt := s.smoothedRTT()
	if srtt <= 0 {
		srtt = defaultInitialRTT
	}
	bandwidth := s.GetCongestionWindow() * congestion.ByteCount(time.Second) / congestion.ByteCount(srtt)
	return bandwidth * 5 / 4
}

// Snapshot is the last published diagnostic state of a Sender.
type Snapshot struct {
	Strategy           string
	Info               Info
	HasInfo            bool
	CongestionWindow   uint32
	SlowStartThreshold uint32
	// UpdatedAt is when the snapshot was published.
	UpdatedAt monotime.Time
}

// snapshot holds diagnostics published for readers on other goroutines.
type snapshot struct {
	entropy            atomic.Uint32
	samples            atomic.Uint32
	avgRTT             atomic.Int64
	classification     atomic.Uint32
	hasInfo            atomic.Bool
	congestionWindow   atomic.Uint32
	slowStartThreshold atomic.Uint32
	updatedAt          atomic.Int64
}

func (s *Sender) publish() {
	info, hasInfo := s.strategy.GetInfo(InfoRequestVegas)
	s.snapshot.entropy.Store(uint32(info.Entropy))
	s.snapshot.samples.Store(uint32(info.Samples))
	s.snapshot.avgRTT.Store(int64(info.AvgRTT))
	s.snapshot.classification.Store(uint32(info.Classification))
	s.snapshot.hasInfo.Store(hasInfo)
	s.snapshot.congestionWindow.Store(s.socket.Cwnd)
	s.snapshot.slowStartThreshold.Store(s.socket.SlowStartThreshold)
	s.snapshot.updatedAt.Store(int64(s.clock.Now()))
	if hasInfo && info.Classification != s.classification {
		s.logger.Debug("congestion control ", s.strategy.Name(), ": ", s.classification, " -> ", info.Classification, " (entropy ", info.Entropy, ")")
		s.classification = info.Classification
	}
}

// Snapshot returns the last published diagnostics. It is safe to call from
// any goroutine.
func (s *Sender) Snapshot() Snapshot {
	return Snapshot{
		Strategy: s.strategy.Name(),
		Info: Info{
			Entropy:        uint16(s.snapshot.entropy.Load()),
			Samples:        uint16(s.snapshot.samples.Load()),
			AvgRTT:         time.Duration(s.snapshot.avgRTT.Load()),
			Classification: Classification(s.snapshot.classification.Load()),
		},
		HasInfo:            s.snapshot.hasInfo.Load(),
		CongestionWindow:   s.snapshot.congestionWindow.Load(),
		SlowStartThreshold: s.snapshot.slowStartThreshold.Load(),
		UpdatedAt:          monotime.Time(s.snapshot.updatedAt.Load()),
	}
}
