package settle

import (
	"math/big"
	"sync"
)

// reentrancyGuard protects the settlement pipeline from nested entry. A
// second enter while a call is in flight fails immediately with
// ErrNoReentrantCalls rather than queueing; callbacks into zones and
// contract offerers run with the guard held, so any attempt by a callee to
// re-enter a guarded entrypoint is rejected. The secondary mode records
// whether the in-flight call accepts native value, and accumulates native
// value paid back to the settlement contract while it holds the lock.
type reentrancyGuard struct {
	mu           sync.Mutex
	entered      bool
	acceptNative bool
	received     *big.Int
}

func (g *reentrancyGuard) enter(acceptNative bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.entered {
		return ErrNoReentrantCalls
	}
	g.entered = true
	g.acceptNative = acceptNative
	g.received = nil
	return nil
}

func (g *reentrancyGuard) exit() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entered = false
	g.acceptNative = false
	g.received = nil
}

// receiveNative credits native value paid back mid-execution. It fails with
// ErrInvalidMsgValue unless the in-flight call was entered in
// native-accepting mode.
func (g *reentrancyGuard) receiveNative(amount *big.Int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.entered || !g.acceptNative {
		return ErrInvalidMsgValue
	}
	if g.received == nil {
		g.received = new(big.Int)
	}
	g.received.Add(g.received, amount)
	return nil
}

// drainReceived returns the native value credited during the in-flight call
// and resets the accumulator.
func (g *reentrancyGuard) drainReceived() *big.Int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.received == nil {
		return new(big.Int)
	}
	out := g.received
	g.received = nil
	return out
}
