package congestion_ente

import "math"

const (
	// HistorySize is the number of RTT samples kept per connection.
	HistorySize = 16

	// RTT samples are stored in whole milliseconds within [minHistoryMillis, maxHistoryMillis].
	minHistoryMillis = 1
	maxHistoryMillis = math.MaxUint16
)

// History is a fixed-capacity ring of recent RTT samples in milliseconds.
// Once full, each write evicts the oldest sample.
type History struct {
	samples [HistorySize]uint16
	next    int
	count   int
}

// Push stores an RTT given in microseconds, truncated to milliseconds and
// clamped into [1, 65535].
func (h *History) Push(rttMicros uint32) {
	h.samples[h.next] = Clamp(uint16(Min(rttMicros/1000, maxHistoryMillis)), minHistoryMillis, maxHistoryMillis)
	h.next = (h.next + 1) % HistorySize
	if h.count < HistorySize {
		h.count++
	}
}

// Len returns the number of valid samples.
func (h *History) Len() int {
	return h.count
}

// Index returns the slot the next sample will be written to.
func (h *History) Index() int {
	return h.next
}

// Sample returns the i-th valid sample, oldest first.
func (h *History) Sample(i int) uint16 {
	start := h.next - h.count + HistorySize
	return h.samples[(start+i)%HistorySize]
}

// Range returns the smallest and largest valid sample.
// It returns zeros when the ring is empty.
func (h *History) Range() (lo, hi uint16) {
	if h.count == 0 {
		return 0, 0
	}
	lo = h.Sample(0)
	hi = lo
	for i := 1; i < h.count; i++ {
		v := h.Sample(i)
		lo = Min(lo, v)
		hi = Max(hi, v)
	}
	return
}

// Reset forgets all samples. The write position is kept, so stale slots are
// overwritten in the usual order.
func (h *History) Reset() {
	h.count = 0
}
