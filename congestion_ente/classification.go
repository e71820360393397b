package congestion_ente

const (
	// Entropy above NoiseThreshold is read as random jitter.
	NoiseThreshold = 700
	// Entropy below CongestionThreshold is read as queue buildup.
	CongestionThreshold = 400
)

// Classification is the verdict on recent RTT variation.
type Classification uint8

const (
	// ClassificationNoData means no sufficient RTT window has been scored yet.
	ClassificationNoData Classification = iota
	// ClassificationNoise means RTT variation looks random (wireless jitter, handoff).
	ClassificationNoise
	// ClassificationCongestion means RTT variation looks like queueing.
	ClassificationCongestion
	// ClassificationNeutral means the score is inconclusive.
	ClassificationNeutral
)

// Classifications lists every classification in declaration order.
var Classifications = [...]Classification{
	ClassificationNoData,
	ClassificationNoise,
	ClassificationCongestion,
	ClassificationNeutral,
}

func (c Classification) String() string {
	switch c {
	case ClassificationNoData:
		return "no_data"
	case ClassificationNoise:
		return "noise"
	case ClassificationCongestion:
		return "congestion"
	case ClassificationNeutral:
		return "neutral"
	default:
		return "unknown"
	}
}

// Classify maps an entropy score to a verdict.
func Classify(entropy uint16) Classification {
	switch {
	case entropy > NoiseThreshold:
		return ClassificationNoise
	case entropy < CongestionThreshold:
		return ClassificationCongestion
	default:
		return ClassificationNeutral
	}
}

func (c Classification) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}
