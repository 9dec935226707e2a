package settle

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/marinerlabs/goseaport/internal/core/order"
)

// stateTable overlays staged status and nonce writes on top of the status
// store. A settlement batch reads through the overlay, stages every write,
// and commits the whole set atomically only once the batch has fully
// succeeded, so a failed batch leaves no trace.
type stateTable struct {
	store    StatusStore
	statuses map[common.Hash]order.Status
	nonces   map[common.Address]*big.Int
}

func newStateTable(store StatusStore) *stateTable {
	return &stateTable{
		store:    store,
		statuses: make(map[common.Hash]order.Status),
		nonces:   make(map[common.Address]*big.Int),
	}
}

func (t *stateTable) orderStatus(hash common.Hash) (order.Status, error) {
	if s, ok := t.statuses[hash]; ok {
		return s, nil
	}
	return t.store.OrderStatus(hash)
}

func (t *stateTable) putStatus(hash common.Hash, s order.Status) {
	t.statuses[hash] = s
}

// nextContractNonce returns the offerer's next unused nonce and stages the
// increment.
func (t *stateTable) nextContractNonce(offerer common.Address) (*big.Int, error) {
	var current *big.Int
	if staged, ok := t.nonces[offerer]; ok {
		current = staged
	} else {
		stored, err := t.store.ContractNonce(offerer)
		if err != nil {
			return nil, err
		}
		current = stored
	}
	t.nonces[offerer] = new(big.Int).Add(current, big.NewInt(1))
	return new(big.Int).Set(current), nil
}

func (t *stateTable) commit() error {
	if len(t.statuses) == 0 && len(t.nonces) == 0 {
		return nil
	}
	return t.store.Apply(StateChanges{
		Statuses:       t.statuses,
		ContractNonces: t.nonces,
	})
}
