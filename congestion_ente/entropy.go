package congestion_ente

import "math/bits"

const (
	// CalcInterval is the number of acknowledged segments between two
	// entropy recomputations.
	CalcInterval = 8

	// HistogramBins is the number of bins the RTT window is spread over.
	HistogramBins = 16

	// MaxEntropy is the score of a maximally random window.
	MaxEntropy = 1000

	minEntropySamples = 8
	minStatsSamples   = 4

	// probabilityScale is the fixed-point scale of a bin probability (ppm).
	probabilityScale = 1_000_000
	// entropyBits is log2(HistogramBins), the entropy of 16 equiprobable bins.
	entropyBits = 4
)

// log2Permille approximates the logarithm of a probability given in ppm.
//
// The probability is reduced to permille and the result is its bit length
// scaled by 1000, i.e. 1000 * (floor(log2(permille)) + 1). For any permille
// value x >= 1 the result r satisfies 1000*log2(x) < r <= 1000*(log2(x)+1),
// so the error is under one bit. Probabilities below one permille yield 0.
func log2Permille(ppm uint64) uint64 {
	return uint64(bits.Len64(ppm/1000)) * 1000
}

// Entropy scores the distribution of the samples in h within [0, MaxEntropy].
//
// Windows with fewer than 8 samples or without any spread score 0. Otherwise
// the samples are binned linearly between the window minimum and maximum and
// the per-bin terms p*log2(p) are accumulated in fixed point, normalized by
// log2(HistogramBins) and clamped.
func Entropy(h *History) uint16 {
	count := h.Len()
	if count < minEntropySamples {
		return 0
	}
	lo, hi := h.Range()
	if lo == hi {
		return 0
	}
	span := uint32(hi - lo)
	var histogram [HistogramBins]uint32
	for i := 0; i < count; i++ {
		bin := uint32(h.Sample(i)-lo) * (HistogramBins - 1) / span
		histogram[Min(bin, HistogramBins-1)]++
	}
	var accumulated uint64
	for _, n := range histogram {
		if n == 0 {
			continue
		}
		p := uint64(n) * probabilityScale / uint64(count)
		accumulated += p * log2Permille(p) / probabilityScale
	}
	return uint16(Min(accumulated/entropyBits, MaxEntropy))
}

// Statistics is the mean and variance of an RTT window.
type Statistics struct {
	// AvgRTT is the mean in microseconds.
	AvgRTT uint32
	// Variance is the mean squared deviation in ms².
	Variance uint32
}

// ComputeStatistics returns the statistics of h, or false when it holds
// fewer than 4 samples.
func ComputeStatistics(h *History) (Statistics, bool) {
	count := h.Len()
	if count < minStatsSamples {
		return Statistics{}, false
	}
	var sum uint32
	for i := 0; i < count; i++ {
		sum += uint32(h.Sample(i))
	}
	avg := sum / uint32(count)
	var squares uint64
	for i := 0; i < count; i++ {
		diff := int64(h.Sample(i)) - int64(avg)
		squares += uint64(diff * diff)
	}
	return Statistics{
		AvgRTT:   avg * 1000,
		Variance: uint32(squares / uint64(count)),
	}, true
}
