package settle

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReentrancyGuard(t *testing.T) {
	var g reentrancyGuard

	require.NoError(t, g.enter(true), "first entry")
	require.ErrorIs(t, g.enter(true), ErrNoReentrantCalls, "nested entry")
	g.exit()
	require.NoError(t, g.enter(false), "entry after exit")
	g.exit()
}

func TestReentrancyGuardNativeAcceptance(t *testing.T) {
	var g reentrancyGuard

	require.NoError(t, g.enter(true), "entering in native-accepting mode")
	require.NoError(t, g.receiveNative(big.NewInt(3)), "native accepted")
	require.NoError(t, g.receiveNative(big.NewInt(4)), "native accumulates")
	require.Equal(t, big.NewInt(7), g.drainReceived(), "credited value drained")
	require.Equal(t, big.NewInt(0), g.drainReceived(), "drain resets the accumulator")
	g.exit()

	require.NoError(t, g.enter(false), "entering in native-rejecting mode")
	require.ErrorIs(t, g.receiveNative(big.NewInt(1)), ErrInvalidMsgValue, "native rejected")
	g.exit()

	require.ErrorIs(t, g.receiveNative(big.NewInt(1)), ErrInvalidMsgValue, "native rejected while idle")
}
