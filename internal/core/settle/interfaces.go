package settle

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/marinerlabs/goseaport/internal/core/order"
)

// Executor performs the actual token movements for resolved executions. The
// engine treats transfer failures opaquely and aborts the batch with the
// executor's reason.
type Executor interface {
	Transfer(ctx context.Context, item order.ReceivedItem, from common.Address, conduitKey common.Hash) error
}

// ZoneParameters is the context handed to zone callbacks.
type ZoneParameters struct {
	OrderHash     common.Hash
	Fulfiller     common.Address
	Offerer       common.Address
	Offer         []order.SpentItem
	Consideration []order.ReceivedItem
	ExtraData     []byte
	OrderHashes   []common.Hash
	StartTime     *big.Int
	EndTime       *big.Int
	ZoneHash      common.Hash
}

// Zone approves fills of restricted orders. Both callbacks must echo their
// magic value; anything else is a validation failure.
type Zone interface {
	AuthorizeOrder(ctx context.Context, zp ZoneParameters) ([4]byte, error)
	ValidateOrder(ctx context.Context, zp ZoneParameters) ([4]byte, error)
}

// ContractOfferer generates and ratifies contract orders at fulfillment time.
type ContractOfferer interface {
	// GenerateOrder returns the actual offer and consideration for the
	// requested minimumReceived/maximumSpent context.
	GenerateOrder(ctx context.Context, fulfiller common.Address,
		minimumReceived []order.SpentItem, maximumSpent []order.SpentItem,
		extraData []byte) (offer []order.SpentItem, consideration []order.ReceivedItem, err error)

	// RatifyOrder confirms the settled order after execution.
	RatifyOrder(ctx context.Context, offer []order.SpentItem,
		consideration []order.ReceivedItem, extraData []byte,
		orderHashes []common.Hash, contractNonce *big.Int) ([4]byte, error)
}

// Registry resolves zone and contract-offerer addresses to their callback
// implementations.
type Registry interface {
	Zone(addr common.Address) (Zone, bool)
	ContractOfferer(addr common.Address) (ContractOfferer, bool)
}

// Magic return values expected from callbacks, derived from the callback
// selector the way the on-chain protocol does.
var (
	MagicAuthorizeOrder = selector("authorizeOrder(ZoneParameters)")
	MagicValidateOrder  = selector("validateOrder(ZoneParameters)")
	MagicRatifyOrder    = selector("ratifyOrder(SpentItem[],ReceivedItem[],bytes,bytes32[],uint256)")
)

func selector(sig string) [4]byte {
	var out [4]byte
	copy(out[:], crypto.Keccak256([]byte(sig))[:4])
	return out
}

// StateChanges is the atomic write set a settlement batch commits.
type StateChanges struct {
	// Statuses maps order hashes to their new fill status.
	Statuses map[common.Hash]order.Status

	// ContractNonces maps contract offerers to their new nonce values.
	ContractNonces map[common.Address]*big.Int
}

// StatusStore is the durable home of per-order fill status, per-offerer
// counters and contract-offerer nonces. The engine is its only writer.
type StatusStore interface {
	// OrderStatus returns the stored status for an order hash; the zero
	// value for orders never seen.
	OrderStatus(hash common.Hash) (order.Status, error)

	// Counter returns the offerer's current signing counter.
	Counter(offerer common.Address) (*big.Int, error)

	// IncrementCounter bumps and returns the offerer's counter, atomically.
	IncrementCounter(offerer common.Address) (*big.Int, error)

	// ContractNonce returns the next unused contract-offerer nonce.
	ContractNonce(offerer common.Address) (*big.Int, error)

	// Apply commits a batch of changes atomically.
	Apply(changes StateChanges) error
}

// HistoryRecorder archives the executions of a settled batch.
type HistoryRecorder interface {
	RecordBatch(ctx context.Context, orderHashes []common.Hash, executions []order.Execution) error
}
