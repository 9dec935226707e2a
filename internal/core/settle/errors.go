package settle

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Business-rule violations. Batch entrypoints with revertOnInvalid=false skip
// the offending order instead of failing; with revertOnInvalid=true the first
// violation aborts the whole call.
var (
	// ErrInvalidTime is returned when the current time falls outside an
	// order's [startTime, endTime) window, or the window itself is empty.
	ErrInvalidTime = errors.New("order time window is not active")

	// ErrBadFraction is returned for a requested fill fraction that is not
	// 0 < numerator <= denominator, or not 1/1 on a contract order.
	ErrBadFraction = errors.New("bad fill fraction")

	// ErrPartialFillsNotEnabledForOrder is returned when a partial fill is
	// requested on a full-only order type.
	ErrPartialFillsNotEnabledForOrder = errors.New("partial fills not enabled for order")

	// ErrOrderIsCancelled is returned when filling or validating a
	// cancelled order.
	ErrOrderIsCancelled = errors.New("order is cancelled")

	// ErrOrderAlreadyFilled is returned when a fill request lands on an
	// order with no remaining fillable fraction.
	ErrOrderAlreadyFilled = errors.New("order already filled")

	// ErrCannotCancelOrder is returned when the canceller is neither
	// offerer nor zone of every order in the batch, or a contract order is
	// included.
	ErrCannotCancelOrder = errors.New("cannot cancel order")

	// ErrConsiderationLengthNotEqualToTotalOriginal is returned when an
	// order's consideration array length disagrees with its declared
	// totalOriginalConsiderationItems.
	ErrConsiderationLengthNotEqualToTotalOriginal = errors.New(
		"consideration length does not equal total original consideration items")

	// ErrOrderCriteriaResolverOutOfRange is returned when a resolver's
	// order index exceeds the batch size.
	ErrOrderCriteriaResolverOutOfRange = errors.New("criteria resolver order index out of range")

	// ErrOfferCriteriaResolverOutOfRange is returned when a resolver's item
	// index exceeds the target order's offer array.
	ErrOfferCriteriaResolverOutOfRange = errors.New("criteria resolver offer index out of range")

	// ErrConsiderationCriteriaResolverOutOfRange is returned when a
	// resolver's item index exceeds the target order's consideration array.
	ErrConsiderationCriteriaResolverOutOfRange = errors.New(
		"criteria resolver consideration index out of range")

	// ErrCriteriaNotEnabledForItem is returned when a resolver targets an
	// item that is not a criteria-based type.
	ErrCriteriaNotEnabledForItem = errors.New("criteria not enabled for item")

	// ErrMismatchedComponents is returned when a fulfillment group
	// aggregates items with differing identities.
	ErrMismatchedComponents = errors.New(
		"mismatched fulfillment offer and consideration components")

	// ErrNoSpecifiedOrdersAvailable is returned when every order in a batch
	// ended up skipped.
	ErrNoSpecifiedOrdersAvailable = errors.New("no specified orders available")

	// ErrInvalidNativeOfferItem is returned when a non-contract order
	// offers a native item outside the match entrypoints.
	ErrInvalidNativeOfferItem = errors.New("invalid native offer item")

	// ErrInvalidRestrictedOrder is returned when a zone refuses or fails to
	// approve a restricted order.
	ErrInvalidRestrictedOrder = errors.New("invalid restricted order")

	// ErrInvalidContractOrder is returned when a contract offerer fails to
	// generate or ratify an order, or generates an incompatible one.
	ErrInvalidContractOrder = errors.New("invalid contract order")
)

// Fatal violations: never downgraded to a skip.
var (
	// ErrNoReentrantCalls is returned on any nested call into a guarded
	// entrypoint while another is in flight.
	ErrNoReentrantCalls = errors.New("no reentrant calls")

	// ErrInvalidMsgValue is returned when native value arrives outside the
	// lock mode that accepts it.
	ErrInvalidMsgValue = errors.New("invalid msg value")

	// ErrFractionOverflow is returned when a combined fill fraction cannot
	// be reduced below the fixed-width storage bound. It signals an
	// unrepresentable state and always aborts the batch.
	ErrFractionOverflow = errors.New("fill fraction exceeds storage bound")

	// ErrInexactFraction is returned when scaling an item amount by the
	// fill fraction does not divide exactly.
	ErrInexactFraction = errors.New("inexact fraction")

	// ErrInsufficientNativeTokensSupplied is returned when native
	// executions exceed the supplied native value.
	ErrInsufficientNativeTokensSupplied = errors.New("insufficient native tokens supplied")
)

// UnresolvedOfferCriteriaError reports a criteria offer item left unresolved
// after all resolvers were applied.
type UnresolvedOfferCriteriaError struct {
	OrderIndex uint64
	ItemIndex  uint64
}

func (e *UnresolvedOfferCriteriaError) Error() string {
	return fmt.Sprintf("unresolved offer criteria on order %d item %d", e.OrderIndex, e.ItemIndex)
}

// UnresolvedConsiderationCriteriaError reports a criteria consideration item
// left unresolved after all resolvers were applied.
type UnresolvedConsiderationCriteriaError struct {
	OrderIndex uint64
	ItemIndex  uint64
}

func (e *UnresolvedConsiderationCriteriaError) Error() string {
	return fmt.Sprintf("unresolved consideration criteria on order %d item %d",
		e.OrderIndex, e.ItemIndex)
}

// ConsiderationNotMetError reports a consideration item whose owed amount was
// not fully covered by the batch's executions.
type ConsiderationNotMetError struct {
	OrderIndex uint64
	ItemIndex  uint64
	Shortfall  *big.Int
}

func (e *ConsiderationNotMetError) Error() string {
	return fmt.Sprintf("consideration not met on order %d item %d: short %s",
		e.OrderIndex, e.ItemIndex, e.Shortfall)
}

// CallbackError wraps a failure from an external zone or contract-offerer
// callback, preserving the callee's reason verbatim.
type CallbackError struct {
	Kind      error // ErrInvalidRestrictedOrder or ErrInvalidContractOrder
	OrderHash common.Hash
	Reason    error
}

func (e *CallbackError) Error() string {
	if e.Reason != nil {
		return fmt.Sprintf("%v (order %s): %v", e.Kind, e.OrderHash, e.Reason)
	}
	return fmt.Sprintf("%v (order %s)", e.Kind, e.OrderHash)
}

func (e *CallbackError) Unwrap() error {
	return e.Kind
}
