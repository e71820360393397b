package congestion_ente

import (
	"math/bits"
	"time"

	"github.com/sagernet/quic-go/congestion"
	"github.com/sagernet/quic-go/monotime"
)

const (
	// maxBurstPackets is the maximum number of packets that can be sent in a burst.
	maxBurstPackets = 10
	// maxBurstPacingDelayMultiplier bounds a burst to this many pacing delays.
	maxBurstPacingDelayMultiplier = 4
)

// Pacer implements a token bucket based pacing algorithm.
type Pacer struct {
	budgetAtLastSent congestion.ByteCount
	maxDatagramSize  congestion.ByteCount
	lastSentTime     monotime.Time
	getBandwidth     func() congestion.ByteCount // bytes per second
}

// NewPacer creates a new Pacer paced at the rate getBandwidth reports.
func NewPacer(getBandwidth func() congestion.ByteCount) *Pacer {
	return &Pacer{
		budgetAtLastSent: maxBurstPackets * congestion.InitialPacketSize,
		maxDatagramSize:  congestion.InitialPacketSize,
		getBandwidth:     getBandwidth,
	}
}

// SetMaxDatagramSize sets the maximum datagram size.
func (p *Pacer) SetMaxDatagramSize(size congestion.ByteCount) {
	p.maxDatagramSize = size
}

// OnPacketSent is called when a packet is sent.
func (p *Pacer) OnPacketSent(sentTime monotime.Time, size congestion.ByteCount) {
	budget := p.Budget(sentTime)
	if size > budget {
		p.budgetAtLastSent = 0
	} else {
		p.budgetAtLastSent = budget - size
	}
	p.lastSentTime = sentTime
}

// Budget returns the number of bytes that can be sent at the given time.
func (p *Pacer) Budget(now monotime.Time) congestion.ByteCount {
	maxBurstSize := p.maxBurstSize()
	if p.lastSentTime.IsZero() {
		return maxBurstSize
	}
	budget := p.budgetAtLastSent + bytesForInterval(p.getBandwidth(), now.Sub(p.lastSentTime), maxBurstSize)
	return Min(maxBurstSize, budget)
}

func (p *Pacer) maxBurstSize() congestion.ByteCount {
	return Max(
		bytesForInterval(p.getBandwidth(), maxBurstPacingDelayMultiplier*congestion.MinPacingDelay, maxBurstBytes),
		maxBurstPackets*p.maxDatagramSize,
	)
}

// maxBurstBytes caps a burst well below the ByteCount range, so adding a
// burst to a budget cannot overflow.
const maxBurstBytes = congestion.ByteCount(1<<62 - 1)

// bytesForInterval returns the bytes a bandwidth in bytes per second allows
// over interval, saturating at limit.
func bytesForInterval(bandwidth congestion.ByteCount, interval time.Duration, limit congestion.ByteCount) congestion.ByteCount {
	if bandwidth <= 0 || interval <= 0 {
		return 0
	}
	hi, lo := bits.Mul64(uint64(bandwidth), uint64(interval))
	if hi >= uint64(time.Second) {
		return limit
	}
	bytes, _ := bits.Div64(hi, lo, uint64(time.Second))
	if bytes > uint64(limit) {
		return limit
	}
	return congestion.ByteCount(bytes)
}

// TimeUntilSend returns when the next packet should be sent.
// It returns zero if a packet can be sent immediately.
func (p *Pacer) TimeUntilSend() monotime.Time {
	if p.budgetAtLastSent >= p.maxDatagramSize {
		return 0
	}
	bandwidth := uint64(p.getBandwidth())
	if bandwidth == 0 {
		return 0
	}
	diff := 1e9 * uint64(p.maxDatagramSize-p.budgetAtLastSent)
	d := diff / bandwidth
	// round up, so the budget covers a full datagram when the timer fires
	if diff%bandwidth > 0 {
		d++
	}
	return p.lastSentTime.Add(Max(congestion.MinPacingDelay, time.Duration(d)))
}
