package congestion_ente

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestState(cwnd uint32) (*State, *Socket) {
	sk := NewSocket(cwnd)
	st := &State{}
	st.Init(&sk)
	return st, &sk
}

func ackEach(st *State, sk *Socket, millis ...uint32) {
	for _, ms := range millis {
		sk.SmoothedRTT = ms * 1000
		st.CongestionAvoid(sk, 0, 1)
	}
}

func TestState_Init(t *testing.T) {
	st, sk := newTestState(10)
	assert.Equal(t, uint32(InfiniteSlowStartThreshold), sk.SlowStartThreshold)
	assert.Equal(t, ClassificationNoData, st.Classification())
	assert.Equal(t, time.Duration(0), st.MinRTT())
	assert.Equal(t, 0, st.History().Len())
	assert.Equal(t, PhaseSlowStart, st.Phase())
	assert.Equal(t, Name, st.Name())
}

func TestState_IdenticalSamplesClassifyAsCongestion(t *testing.T) {
	st, sk := newTestState(10)
	ackEach(st, sk, 10, 10, 10, 10, 10, 10, 10)
	assert.Equal(t, ClassificationNoData, st.Classification())
	assert.Equal(t, uint32(17), sk.Cwnd)

	ackEach(st, sk, 10)
	assert.Equal(t, uint16(0), st.Entropy())
	assert.Equal(t, ClassificationCongestion, st.Classification())
	// half-speed slow start: one acked segment grows nothing
	assert.Equal(t, uint32(17), sk.Cwnd)

	assert.Equal(t, uint32(8), st.SlowStartThreshold(sk))
	assert.True(t, st.LossPending())
}

func TestState_AlternatingSamplesClassifyAsNoise(t *testing.T) {
	st, sk := newTestState(10)
	ackEach(st, sk, 5, 50, 5, 50, 5, 50, 5, 50)
	assert.Equal(t, uint16(MaxEntropy), st.Entropy())
	assert.Equal(t, ClassificationNoise, st.Classification())
	assert.Equal(t, uint32(18), sk.Cwnd)

	ssthresh := st.SlowStartThreshold(sk)
	assert.Equal(t, uint32(6), ssthresh)

	sk.SlowStartThreshold = ssthresh
	sk.Cwnd = ssthresh
	sk.SmoothedRTT = 5000
	st.CongestionAvoid(sk, 0, 40)
	require.Equal(t, ClassificationNoise, st.Classification())
	assert.Equal(t, PhaseCongestionAvoidance, st.Phase())
	// 40*1500/(6*1000) = 10 credits at window 6
	assert.Equal(t, uint32(7), sk.Cwnd)
	assert.Equal(t, uint32(4), sk.CwndCount)
}

func TestState_CongestionAvoidanceGains(t *testing.T) {
	tests := []struct {
		name           string
		classification Classification
		cwnd           uint32
		count          uint32
	}{
		{"congestion", ClassificationCongestion, 2, 1},
		{"noise", ClassificationNoise, 4, 1},
		{"neutral", ClassificationNeutral, 5, 1},
		{"no data", ClassificationNoData, 5, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, sk := newTestState(2)
			st.ssthresh = 2
			sk.SlowStartThreshold = 2
			st.classification = tt.classification
			sk.SmoothedRTT = 10_000
			st.CongestionAvoid(sk, 0, 7)
			require.Equal(t, tt.classification, st.Classification())
			assert.Equal(t, PhaseCongestionAvoidance, st.Phase())
			assert.Equal(t, tt.cwnd, sk.Cwnd)
			assert.Equal(t, tt.count, sk.CwndCount)
		})
	}
}

func TestState_SingleSampleWindowIsCongestion(t *testing.T) {
	st, sk := newTestState(6)
	st.classification = ClassificationNoise
	sk.SmoothedRTT = 10_000
	st.CongestionAvoid(sk, 0, 40)
	assert.Equal(t, uint16(0), st.Entropy())
	assert.Equal(t, ClassificationCongestion, st.Classification())
	assert.Equal(t, uint32(0), st.ackedSinceCalc)
	// half-speed slow start from the first recompute
	assert.Equal(t, uint32(26), sk.Cwnd)
}

func TestState_ShortWindowSlowsSlowStart(t *testing.T) {
	st, sk := newTestState(10)
	sk.SmoothedRTT = 10_000
	st.CongestionAvoid(sk, 0, 8)
	require.Equal(t, 1, st.History().Len())
	assert.Equal(t, ClassificationCongestion, st.Classification())
	assert.Equal(t, uint32(14), sk.Cwnd)

	st.CongestionAvoid(sk, 0, 8)
	assert.Equal(t, ClassificationCongestion, st.Classification())
	assert.Equal(t, uint32(18), sk.Cwnd)
}

func TestState_InitKeepsHostThreshold(t *testing.T) {
	sk := NewSocket(10)
	sk.SlowStartThreshold = 12
	st := &State{}
	st.Init(&sk)
	assert.Equal(t, uint32(12), st.ssthresh)
	assert.Equal(t, uint32(InfiniteSlowStartThreshold), sk.SlowStartThreshold)

	sk.SmoothedRTT = 10_000
	st.CongestionAvoid(&sk, 0, 1)
	assert.Equal(t, PhaseSlowStart, st.Phase())
	sk.Cwnd = 12
	st.CongestionAvoid(&sk, 0, 1)
	assert.Equal(t, PhaseCongestionAvoidance, st.Phase())
}

func TestAvoidanceDelta(t *testing.T) {
	assert.Equal(t, uint32(6), avoidanceDelta(40, 10, NoiseAggression))
	assert.Equal(t, uint32(2), avoidanceDelta(40, 10, CongestionConserve))
	assert.Equal(t, uint32(1), avoidanceDelta(1, 10, NoiseAggression))
	assert.Equal(t, uint32(1), avoidanceDelta(1, 0, CongestionConserve))
	assert.Equal(t, uint32(1500), avoidanceDelta(1_000_000, 1000, NoiseAggression))
}

func TestState_SlowStartThresholdDivisors(t *testing.T) {
	tests := []struct {
		classification Classification
		cwnd           uint32
		want           uint32
	}{
		{ClassificationNoise, 30, 10},
		{ClassificationNoise, 5, 2},
		{ClassificationCongestion, 30, 15},
		{ClassificationNeutral, 30, 15},
		{ClassificationNoData, 30, 15},
		{ClassificationNoData, 3, 2},
		{ClassificationNoData, 0, 2},
	}
	for _, tt := range tests {
		st, sk := newTestState(tt.cwnd)
		st.classification = tt.classification
		assert.Equal(t, tt.want, st.SlowStartThreshold(sk), "%s cwnd %d", tt.classification, tt.cwnd)
		assert.True(t, st.LossPending())
	}
}

func TestState_UndoCwnd(t *testing.T) {
	st, sk := newTestState(30)
	ssthresh := st.SlowStartThreshold(sk)
	sk.Cwnd = ssthresh
	assert.Equal(t, uint32(30), st.UndoCwnd(sk))
	assert.Equal(t, uint32(30), sk.Cwnd)
	assert.Equal(t, PhaseCongestionAvoidance, st.Phase())

	sk.Cwnd = 45
	assert.Equal(t, uint32(45), st.UndoCwnd(sk))
	assert.Equal(t, uint32(45), sk.Cwnd)
}

func TestState_UndoCwndNeverShrinks(t *testing.T) {
	random := rand.New(rand.NewSource(7))
	st, sk := newTestState(10)
	for round := 0; round < 500; round++ {
		sk.Cwnd = uint32(random.Intn(1000) + 1)
		if random.Intn(2) == 0 {
			st.SlowStartThreshold(sk)
		}
		sk.Cwnd = uint32(random.Intn(1000) + 1)
		before := sk.Cwnd
		assert.GreaterOrEqual(t, st.UndoCwnd(sk), before)
	}
}

func TestState_RestartKeepsMinRTT(t *testing.T) {
	st, sk := newTestState(10)
	ackEach(st, sk, 5, 50, 5, 50, 5, 50, 5, 50)
	require.Equal(t, ClassificationNoise, st.Classification())
	minRTT := st.MinRTT()
	assert.Equal(t, 5*time.Millisecond, minRTT)

	st.CwndEvent(sk, EventCwndRestart)
	assert.Equal(t, 0, st.History().Len())
	assert.Equal(t, ClassificationNoData, st.Classification())
	assert.Equal(t, minRTT, st.MinRTT())
}

func TestState_InsufficientWindowClassifiesAsCongestion(t *testing.T) {
	st, sk := newTestState(10)
	for i := 0; i < 4; i++ {
		sk.SmoothedRTT = 10_000
		st.CongestionAvoid(sk, 0, 2)
	}
	assert.Equal(t, 4, st.History().Len())
	assert.Equal(t, uint16(0), st.Entropy())
	assert.Equal(t, ClassificationCongestion, st.Classification())
	// statistics only need four samples
	info, ok := st.GetInfo(InfoRequestVegas)
	require.True(t, ok)
	assert.Equal(t, 10*time.Millisecond, info.AvgRTT)
}

func TestState_RecomputeEveryEightSegments(t *testing.T) {
	st, sk := newTestState(10)
	ackEach(st, sk, 10, 10, 10, 10, 10, 10, 10, 10)
	require.Equal(t, ClassificationCongestion, st.Classification())

	// a spread window is only scored once eight more segments are acknowledged
	ackEach(st, sk, 50, 5, 50, 5, 50, 5, 50)
	assert.Equal(t, ClassificationCongestion, st.Classification())
	assert.Equal(t, uint32(7), st.ackedSinceCalc)
	ackEach(st, sk, 50)
	assert.Equal(t, ClassificationNoise, st.Classification())
	assert.Equal(t, uint32(0), st.ackedSinceCalc)
}

func TestState_LossPendingClearedByRecompute(t *testing.T) {
	st, sk := newTestState(10)
	st.SetState(sk, CAStateRecovery)
	assert.False(t, st.LossPending())
	st.SetState(sk, CAStateLoss)
	assert.True(t, st.LossPending())

	ackEach(st, sk, 10, 10, 10, 10, 10, 10, 10)
	assert.True(t, st.LossPending())
	ackEach(st, sk, 10)
	assert.False(t, st.LossPending())

	st.CwndEvent(sk, EventLoss)
	assert.True(t, st.LossPending())
}

func TestState_OtherEventsAreNoOps(t *testing.T) {
	st, sk := newTestState(10)
	ackEach(st, sk, 5, 50, 5, 50, 5, 50, 5, 50)
	before := *st
	for _, event := range []Event{EventTxStart, EventCompleteCwr, EventECNNoCE, EventECNIsCE} {
		st.CwndEvent(sk, event)
	}
	assert.Equal(t, before, *st)
}

func TestState_ZeroAckedIsNoOp(t *testing.T) {
	st, sk := newTestState(10)
	ackEach(st, sk, 5, 50, 5)
	sk.SmoothedRTT = 1
	stateBefore, socketBefore := *st, *sk
	st.CongestionAvoid(sk, 1234, 0)
	assert.Equal(t, stateBefore, *st)
	assert.Equal(t, socketBefore, *sk)
}

func TestState_MinRTTNonIncreasing(t *testing.T) {
	random := rand.New(rand.NewSource(3))
	st, sk := newTestState(10)
	last := time.Duration(1<<63 - 1)
	for i := 0; i < 1000; i++ {
		sk.SmoothedRTT = uint32(random.Intn(200_000))
		st.CongestionAvoid(sk, 0, uint32(random.Intn(4)))
		if i%97 == 0 {
			st.CwndEvent(sk, EventCwndRestart)
		}
		if minRTT := st.MinRTT(); minRTT != 0 {
			assert.LessOrEqual(t, minRTT, last)
			last = minRTT
		}
		assert.LessOrEqual(t, st.History().Len(), HistorySize)
		assert.LessOrEqual(t, st.Entropy(), uint16(MaxEntropy))
		assert.Contains(t, Classifications[:], st.Classification())
	}
}

func TestState_ZeroRTTIsCoerced(t *testing.T) {
	st, sk := newTestState(10)
	sk.SmoothedRTT = 0
	st.CongestionAvoid(sk, 0, 1)
	assert.Equal(t, time.Microsecond, st.MinRTT())
	assert.Equal(t, uint16(1), st.History().Sample(0))
}

func TestState_GetInfo(t *testing.T) {
	st, sk := newTestState(10)
	_, ok := st.GetInfo(0)
	assert.False(t, ok)

	ackEach(st, sk, 10, 10, 10, 10, 10, 10, 10, 10)
	before := *st
	info, ok := st.GetInfo(InfoRequestVegas)
	require.True(t, ok)
	assert.Equal(t, Info{
		Entropy:        0,
		Samples:        8,
		AvgRTT:         10 * time.Millisecond,
		Classification: ClassificationCongestion,
	}, info)
	assert.Equal(t, uint32(0), st.RTTVariance())
	assert.Equal(t, before, *st)
}
