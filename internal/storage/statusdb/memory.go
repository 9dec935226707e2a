package statusdb

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/marinerlabs/goseaport/internal/core/order"
	"github.com/marinerlabs/goseaport/internal/core/settle"
)

// Memory is an in-process settle.StatusStore for tests and ephemeral nodes.
type Memory struct {
	mu       sync.Mutex
	statuses map[common.Hash]order.Status
	counters map[common.Address]*big.Int
	nonces   map[common.Address]*big.Int
}

func NewMemory() *Memory {
	return &Memory{
		statuses: make(map[common.Hash]order.Status),
		counters: make(map[common.Address]*big.Int),
		nonces:   make(map[common.Address]*big.Int),
	}
}

func (m *Memory) OrderStatus(hash common.Hash) (order.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statuses[hash], nil
}

func (m *Memory) Counter(offerer common.Address) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.counters[offerer]; ok {
		return new(big.Int).Set(c), nil
	}
	return new(big.Int), nil
}

func (m *Memory) IncrementCounter(offerer common.Address) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := new(big.Int)
	if cur, ok := m.counters[offerer]; ok {
		c.Set(cur)
	}
	c.Add(c, big.NewInt(1))
	m.counters[offerer] = c
	return new(big.Int).Set(c), nil
}

func (m *Memory) ContractNonce(offerer common.Address) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.nonces[offerer]; ok {
		return new(big.Int).Set(n), nil
	}
	return new(big.Int), nil
}

func (m *Memory) Apply(changes settle.StateChanges) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for hash, status := range changes.Statuses {
		m.statuses[hash] = status
	}
	for offerer, nonce := range changes.ContractNonces {
		m.nonces[offerer] = new(big.Int).Set(nonce)
	}
	return nil
}
