// Package settle implements the settlement core: order validation, fill
// fraction derivation, criteria resolution, fulfillment aggregation and the
// batch pipeline that turns signed orders into a minimal, fully verified set
// of transfer executions.
package settle

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/marinerlabs/goseaport/internal/core/order"
)

// Engine drives the settlement pipeline. The status store is only ever
// written by the engine; staged writes commit atomically at the end of a
// successful batch.
type Engine struct {
	store    StatusStore
	hasher   *order.Hasher
	executor Executor
	registry Registry
	history  HistoryRecorder
	log      *zap.Logger
	now      func() *big.Int
	guard    reentrancyGuard
}

// Options carries the optional collaborators of an Engine.
type Options struct {
	// Logger defaults to a no-op logger.
	Logger *zap.Logger

	// History, when set, archives every settled batch's executions.
	History HistoryRecorder

	// Now overrides the clock; defaults to wall time in unix seconds.
	Now func() *big.Int

	// Registry resolves zone and contract-offerer addresses; defaults to
	// an empty registry that knows none.
	Registry Registry
}

// NewEngine creates a settlement engine over the given status store, hash
// domain and transfer executor.
func NewEngine(store StatusStore, hasher *order.Hasher, executor Executor, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = func() *big.Int { return big.NewInt(time.Now().Unix()) }
	}
	registry := opts.Registry
	if registry == nil {
		registry = emptyRegistry{}
	}
	return &Engine{
		store:    store,
		hasher:   hasher,
		executor: executor,
		registry: registry,
		history:  opts.History,
		log:      logger,
		now:      now,
	}
}

type emptyRegistry struct{}

func (emptyRegistry) Zone(common.Address) (Zone, bool)                       { return nil, false }
func (emptyRegistry) ContractOfferer(common.Address) (ContractOfferer, bool) { return nil, false }

// FulfillAvailableRequest is a batch fulfillment that tolerates individually
// invalid orders: they are skipped and reported unavailable instead of
// aborting the call.
type FulfillAvailableRequest struct {
	Orders                    []order.AdvancedOrder
	Resolvers                 []order.CriteriaResolver
	OfferFulfillments         [][]order.FulfillmentComponent
	ConsiderationFulfillments [][]order.FulfillmentComponent
	Fulfiller                 common.Address
	// Recipient receives aggregated offer items and unspent offer sweeps;
	// zero defaults to the fulfiller.
	Recipient           common.Address
	FulfillerConduitKey common.Hash
	// MaximumFulfilled caps how many orders are accepted; zero means no cap.
	MaximumFulfilled uint64
	// NativeValue is the native budget supplied with the call.
	NativeValue *big.Int
}

// FulfillOrderRequest settles a single advanced order; any failure aborts.
type FulfillOrderRequest struct {
	Order               order.AdvancedOrder
	Resolvers           []order.CriteriaResolver
	Fulfiller           common.Address
	Recipient           common.Address
	FulfillerConduitKey common.Hash
	NativeValue         *big.Int
}

// MatchRequest settles a set of orders against each other; every order must
// be valid and every consideration leg must be covered by the supplied
// fulfillment pairings.
type MatchRequest struct {
	Orders       []order.AdvancedOrder
	Resolvers    []order.CriteriaResolver
	Fulfillments []order.Fulfillment
	Fulfiller    common.Address
	// Recipient receives unspent offer sweeps; zero defaults to the fulfiller.
	Recipient   common.Address
	NativeValue *big.Int
}

// Result reports a settled batch: per-order availability, the executions
// performed, and any unspent native value owed back to the caller.
type Result struct {
	OrderHashes  []common.Hash
	Available    []bool
	Executions   []order.Execution
	NativeRefund *big.Int
}

// settleParams is the shared configuration of the batch pipeline.
type settleParams struct {
	orders                    []order.AdvancedOrder
	resolvers                 []order.CriteriaResolver
	offerFulfillments         [][]order.FulfillmentComponent
	considerationFulfillments [][]order.FulfillmentComponent
	matchFulfillments         []order.Fulfillment

	// matching selects the match pipeline: native offer items become legal
	// and fulfillments pair offers directly against considerations.
	matching bool

	// revertOnInvalid aborts the batch on the first order-level violation
	// instead of skipping the order.
	revertOnInvalid bool

	maximumFulfilled    uint64
	fulfiller           common.Address
	recipient           common.Address
	fulfillerConduitKey common.Hash
	nativeValue         *big.Int
}

// FulfillAvailableOrders validates, resolves, aggregates and executes as
// many of the supplied orders as remain valid, skipping the rest.
func (e *Engine) FulfillAvailableOrders(ctx context.Context, req FulfillAvailableRequest) (*Result, error) {
	return e.settle(ctx, settleParams{
		orders:                    req.Orders,
		resolvers:                 req.Resolvers,
		offerFulfillments:         req.OfferFulfillments,
		considerationFulfillments: req.ConsiderationFulfillments,
		revertOnInvalid:           false,
		maximumFulfilled:          req.MaximumFulfilled,
		fulfiller:                 req.Fulfiller,
		recipient:                 req.Recipient,
		fulfillerConduitKey:       req.FulfillerConduitKey,
		nativeValue:               req.NativeValue,
	})
}

// FulfillOrder settles a single advanced order, pairing each of its items
// into its own execution. Any violation aborts the call.
func (e *Engine) FulfillOrder(ctx context.Context, req FulfillOrderRequest) (*Result, error) {
	offerGroups := make([][]order.FulfillmentComponent, len(req.Order.Parameters.Offer))
	for i := range offerGroups {
		offerGroups[i] = []order.FulfillmentComponent{{OrderIndex: 0, ItemIndex: uint64(i)}}
	}
	considerationGroups := make([][]order.FulfillmentComponent, len(req.Order.Parameters.Consideration))
	for i := range considerationGroups {
		considerationGroups[i] = []order.FulfillmentComponent{{OrderIndex: 0, ItemIndex: uint64(i)}}
	}

	return e.settle(ctx, settleParams{
		orders:                    []order.AdvancedOrder{req.Order},
		resolvers:                 req.Resolvers,
		offerFulfillments:         offerGroups,
		considerationFulfillments: considerationGroups,
		revertOnInvalid:           true,
		maximumFulfilled:          1,
		fulfiller:                 req.Fulfiller,
		recipient:                 req.Recipient,
		fulfillerConduitKey:       req.FulfillerConduitKey,
		nativeValue:               req.NativeValue,
	})
}

// MatchOrders settles a set of orders against each other. All orders must
// be valid; native offer items are permitted since matched orders can
// balance native flows internally.
func (e *Engine) MatchOrders(ctx context.Context, req MatchRequest) (*Result, error) {
	return e.settle(ctx, settleParams{
		orders:            req.Orders,
		resolvers:         req.Resolvers,
		matchFulfillments: req.Fulfillments,
		matching:          true,
		revertOnInvalid:   true,
		fulfiller:         req.Fulfiller,
		recipient:         req.Recipient,
		nativeValue:       req.NativeValue,
	})
}

// ReceiveNative accepts native value paid back to the settlement core while
// a batch is executing, as happens when a transfer to an external recipient
// triggers a callback that pays native tokens back. The value joins the
// caller's refund. Outside a native-accepting call it fails with
// ErrInvalidMsgValue.
func (e *Engine) ReceiveNative(amount *big.Int) error {
	return e.guard.receiveNative(amount)
}

func (e *Engine) settle(ctx context.Context, params settleParams) (*Result, error) {
	if err := e.guard.enter(true); err != nil {
		return nil, err
	}
	defer e.guard.exit()

	if len(params.orders) == 0 {
		return nil, ErrNoSpecifiedOrdersAvailable
	}
	if params.recipient == (common.Address{}) {
		params.recipient = params.fulfiller
	}

	st := newStateTable(e.store)

	// Stage 1: per-order validation, fraction derivation and item
	// resolution.
	wos := make([]*workingOrder, len(params.orders))
	for i := range params.orders {
		wos[i] = &workingOrder{adv: &params.orders[i]}
		if err := e.validateOrderAndDetermineFraction(ctx, st, wos[i], params.fulfiller, params.revertOnInvalid); err != nil {
			return nil, err
		}
	}

	// Native offer items are only legal on contract orders outside the
	// match entrypoints.
	if !params.matching {
		for _, wo := range wos {
			if !wo.available() || wo.adv.Parameters.OrderType == order.Contract {
				continue
			}
			for i := range wo.offer {
				if wo.offer[i].itemType == order.Native {
					return nil, ErrInvalidNativeOfferItem
				}
			}
		}
	}

	// Stage 2: criteria resolution across the whole batch.
	if err := applyCriteriaResolvers(wos, params.resolvers); err != nil {
		return nil, err
	}

	orderHashes := make([]common.Hash, len(wos))
	for i, wo := range wos {
		orderHashes[i] = wo.orderHash
	}

	// Stage 3: authorization and status updates, capped at
	// maximumFulfilled accepted orders.
	accepted := uint64(0)
	for _, wo := range wos {
		if !wo.available() {
			continue
		}
		if params.maximumFulfilled > 0 && accepted >= params.maximumFulfilled {
			wo.skip()
			continue
		}

		p := &wo.adv.Parameters
		if p.OrderType == order.Contract {
			accepted++
			continue
		}

		if p.OrderType.IsRestricted() && params.fulfiller != p.Zone {
			if err := e.authorizeOrder(ctx, wo, params, orderHashes); err != nil {
				return nil, err
			}
			if !wo.available() {
				continue
			}
		}

		// A zone that already authorized an order must not have its
		// authorization silently wasted by a skipped status update.
		mandatoryRevert := p.OrderType.IsRestricted() && params.fulfiller != p.Zone
		ok, err := e.updateStatus(st, wo, params.revertOnInvalid, mandatoryRevert)
		if err != nil {
			return nil, err
		}
		if !ok {
			wo.skip()
			continue
		}
		accepted++
	}

	if accepted == 0 {
		return nil, ErrNoSpecifiedOrdersAvailable
	}

	// Stage 4: aggregate fulfillments into executions.
	executions, err := e.aggregate(wos, params)
	if err != nil {
		return nil, err
	}

	// Stage 5: execute transfers, tracking the caller's native budget.
	nativeRemaining := new(big.Int)
	if params.nativeValue != nil {
		nativeRemaining.Set(params.nativeValue)
	}
	for i := range executions {
		exec := &executions[i]
		if exec.Item.ItemType == order.Native && exec.Offerer == params.fulfiller {
			if nativeRemaining.Cmp(exec.Item.Amount) < 0 {
				return nil, ErrInsufficientNativeTokensSupplied
			}
			nativeRemaining.Sub(nativeRemaining, exec.Item.Amount)
		}
		if err := e.executor.Transfer(ctx, exec.Item, exec.Offerer, exec.ConduitKey); err != nil {
			return nil, fmt.Errorf("execute transfer: %w", err)
		}
	}

	// Stage 6: sweep unspent offer amounts and verify every consideration
	// reached exactly zero remainder.
	if err := e.finalize(ctx, wos, params.recipient); err != nil {
		return nil, err
	}

	// Stage 7: post-execution zone and contract-offerer checks.
	if err := e.postChecks(ctx, wos, params, orderHashes); err != nil {
		return nil, err
	}

	// Stage 8: commit staged status writes.
	if err := st.commit(); err != nil {
		return nil, fmt.Errorf("commit order status: %w", err)
	}

	available := make([]bool, len(wos))
	for i, wo := range wos {
		available[i] = wo.available()
	}

	if e.history != nil {
		if err := e.history.RecordBatch(ctx, orderHashes, executions); err != nil {
			e.log.Warn("failed to archive batch", zap.Error(err))
		}
	}

	e.log.Info("batch settled",
		zap.Int("orders", len(wos)),
		zap.Uint64("accepted", accepted),
		zap.Int("executions", len(executions)))

	// Native value paid back during execution joins the caller's refund.
	nativeRemaining.Add(nativeRemaining, e.guard.drainReceived())

	return &Result{
		OrderHashes:  orderHashes,
		Available:    available,
		Executions:   executions,
		NativeRefund: nativeRemaining,
	}, nil
}

// authorizeOrder asks the order's zone to approve the fill before execution.
// A refusal skips the order or aborts the batch per revertOnInvalid.
func (e *Engine) authorizeOrder(ctx context.Context, wo *workingOrder, params settleParams, orderHashes []common.Hash) error {
	p := &wo.adv.Parameters

	fail := func(reason error) error {
		if params.revertOnInvalid {
			return &CallbackError{Kind: ErrInvalidRestrictedOrder, OrderHash: wo.orderHash, Reason: reason}
		}
		e.log.Debug("restricted order skipped",
			zap.Stringer("orderHash", wo.orderHash), zap.Error(reason))
		wo.skip()
		return nil
	}

	zone, ok := e.registry.Zone(p.Zone)
	if !ok {
		return fail(fmt.Errorf("no zone registered at %s", p.Zone))
	}

	magic, err := zone.AuthorizeOrder(ctx, e.zoneParameters(wo, params, orderHashes))
	if err != nil {
		return fail(err)
	}
	if magic != MagicAuthorizeOrder {
		return fail(fmt.Errorf("zone %s returned wrong magic value", p.Zone))
	}

	wo.zoneInvoked = true
	return nil
}

func (e *Engine) zoneParameters(wo *workingOrder, params settleParams, orderHashes []common.Hash) ZoneParameters {
	p := &wo.adv.Parameters
	return ZoneParameters{
		OrderHash:     wo.orderHash,
		Fulfiller:     params.fulfiller,
		Offerer:       p.Offerer,
		Offer:         wo.spentItems(),
		Consideration: wo.receivedItems(),
		ExtraData:     wo.adv.ExtraData,
		OrderHashes:   orderHashes,
		StartTime:     p.StartTime,
		EndTime:       p.EndTime,
		ZoneHash:      p.ZoneHash,
	}
}

func (e *Engine) aggregate(wos []*workingOrder, params settleParams) ([]order.Execution, error) {
	var executions []order.Execution

	if params.matching {
		for i := range params.matchFulfillments {
			exec, err := applyFulfillment(wos, params.matchFulfillments[i])
			if err != nil {
				return nil, fmt.Errorf("fulfillment %d: %w", i, err)
			}
			if exec.Item.Amount.Sign() > 0 {
				executions = append(executions, exec)
			}
		}
		return executions, nil
	}

	for i, group := range params.offerFulfillments {
		exec, err := aggregateAvailable(wos, order.SideOffer, group,
			params.recipient, params.fulfiller, params.fulfillerConduitKey)
		if err != nil {
			return nil, fmt.Errorf("offer fulfillment %d: %w", i, err)
		}
		if exec.Item.Amount.Sign() > 0 {
			executions = append(executions, exec)
		}
	}
	for i, group := range params.considerationFulfillments {
		exec, err := aggregateAvailable(wos, order.SideConsideration, group,
			params.recipient, params.fulfiller, params.fulfillerConduitKey)
		if err != nil {
			return nil, fmt.Errorf("consideration fulfillment %d: %w", i, err)
		}
		if exec.Item.Amount.Sign() > 0 {
			executions = append(executions, exec)
		}
	}
	return executions, nil
}

// finalize sweeps unspent offer remainders to the recipient and enforces the
// zero-remainder invariant on every consideration item.
func (e *Engine) finalize(ctx context.Context, wos []*workingOrder, recipient common.Address) error {
	for orderIndex, wo := range wos {
		if !wo.available() {
			continue
		}
		p := &wo.adv.Parameters

		for i := range wo.offer {
			item := &wo.offer[i]
			if item.remaining.Sign() == 0 {
				continue
			}
			sweep := order.ReceivedItem{
				ItemType:   item.itemType,
				Token:      item.token,
				Identifier: new(big.Int).Set(item.identifier),
				Amount:     new(big.Int).Set(item.remaining),
				Recipient:  recipient,
			}
			if err := e.executor.Transfer(ctx, sweep, p.Offerer, p.ConduitKey); err != nil {
				return fmt.Errorf("sweep unspent offer: %w", err)
			}
			item.remaining = new(big.Int)
		}

		for i := range wo.consideration {
			item := &wo.consideration[i]
			if item.remaining.Sign() != 0 {
				return &ConsiderationNotMetError{
					OrderIndex: uint64(orderIndex),
					ItemIndex:  uint64(i),
					Shortfall:  new(big.Int).Set(item.remaining),
				}
			}
		}
	}
	return nil
}

// postChecks runs the post-execution zone validations and contract-offerer
// ratifications. Failures always abort the batch.
func (e *Engine) postChecks(ctx context.Context, wos []*workingOrder, params settleParams, orderHashes []common.Hash) error {
	for _, wo := range wos {
		if !wo.available() {
			continue
		}
		p := &wo.adv.Parameters

		switch {
		case wo.zoneInvoked:
			zone, ok := e.registry.Zone(p.Zone)
			if !ok {
				return &CallbackError{Kind: ErrInvalidRestrictedOrder, OrderHash: wo.orderHash,
					Reason: fmt.Errorf("no zone registered at %s", p.Zone)}
			}
			magic, err := zone.ValidateOrder(ctx, e.zoneParameters(wo, params, orderHashes))
			if err != nil {
				return &CallbackError{Kind: ErrInvalidRestrictedOrder, OrderHash: wo.orderHash, Reason: err}
			}
			if magic != MagicValidateOrder {
				return &CallbackError{Kind: ErrInvalidRestrictedOrder, OrderHash: wo.orderHash,
					Reason: fmt.Errorf("zone %s returned wrong magic value", p.Zone)}
			}

		case p.OrderType == order.Contract:
			offerer, ok := e.registry.ContractOfferer(p.Offerer)
			if !ok {
				return &CallbackError{Kind: ErrInvalidContractOrder, OrderHash: wo.orderHash,
					Reason: fmt.Errorf("no contract offerer registered at %s", p.Offerer)}
			}
			magic, err := offerer.RatifyOrder(ctx, wo.spentItems(), wo.receivedItems(),
				wo.adv.ExtraData, orderHashes, wo.contractNonce)
			if err != nil {
				return &CallbackError{Kind: ErrInvalidContractOrder, OrderHash: wo.orderHash, Reason: err}
			}
			if magic != MagicRatifyOrder {
				return &CallbackError{Kind: ErrInvalidContractOrder, OrderHash: wo.orderHash,
					Reason: fmt.Errorf("contract offerer %s returned wrong magic value", p.Offerer)}
			}
		}
	}
	return nil
}
