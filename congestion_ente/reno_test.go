package congestion_ente

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReno(t *testing.T) {
	sk := NewSocket(10)
	r := NewReno()
	r.Init(&sk)
	assert.Equal(t, uint32(InfiniteSlowStartThreshold), sk.SlowStartThreshold)

	r.CongestionAvoid(&sk, 0, 4)
	assert.Equal(t, uint32(14), sk.Cwnd)

	sk.SlowStartThreshold = r.SlowStartThreshold(&sk)
	assert.Equal(t, uint32(7), sk.SlowStartThreshold)
	sk.Cwnd = sk.SlowStartThreshold
	r.CongestionAvoid(&sk, 0, 7)
	assert.Equal(t, uint32(8), sk.Cwnd)

	assert.Equal(t, uint32(14), r.UndoCwnd(&sk))
	_, ok := r.GetInfo(InfoRequestVegas)
	assert.False(t, ok)
}
