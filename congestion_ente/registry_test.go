package congestion_ente

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Builtin(t *testing.T) {
	assert.Subset(t, Names(), []string{Name, RenoName})

	strategy, err := New(Name)
	require.NoError(t, err)
	assert.IsType(t, &State{}, strategy)

	strategy, err = New(RenoName)
	require.NoError(t, err)
	assert.IsType(t, &Reno{}, strategy)
}

func TestRegistry_NewReturnsFreshState(t *testing.T) {
	first, err := New(Name)
	require.NoError(t, err)
	second, err := New(Name)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}

func TestRegistry_Unknown(t *testing.T) {
	_, err := New("bbr")
	assert.EqualError(t, err, "unknown congestion control algorithm: bbr")
}

func TestRegistry_Register(t *testing.T) {
	assert.Error(t, Register("", NewReno))
	assert.Error(t, Register("broken", nil))
	assert.Error(t, Register("broken", func() Strategy { return nil }))
	assert.Error(t, Register(Name, NewState))
	assert.NotContains(t, Names(), "broken")

	require.NoError(t, Register("reno_copy", NewReno))
	assert.Contains(t, Names(), "reno_copy")
	_, err := New("reno_copy")
	assert.NoError(t, err)

	Unregister("reno_copy")
	assert.NotContains(t, Names(), "reno_copy")
	_, err = New("reno_copy")
	assert.Error(t, err)
}

func TestRegistry_MustRegisterPanics(t *testing.T) {
	assert.Panics(t, func() { MustRegister(RenoName, NewReno) })
}

func TestRegistry_NamesSorted(t *testing.T) {
	require.NoError(t, Register("aaa", NewReno))
	defer Unregister("aaa")
	names := Names()
	assert.Equal(t, "aaa", names[0])
	assert.IsNonDecreasing(t, names)
}
