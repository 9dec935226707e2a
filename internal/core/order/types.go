// Package order defines the data model of the settlement protocol: offer and
// consideration items, order parameters, fill-status records, criteria
// resolvers, fulfillment components and resolved executions.
package order

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ItemType identifies the asset class of an offer or consideration item.
type ItemType uint8

const (
	// Native is the chain-native currency (no token contract).
	Native ItemType = iota
	// ERC20 is a fungible token identified by its contract address.
	ERC20
	// ERC721 is a non-fungible token identified by contract and id.
	ERC721
	// ERC1155 is a semi-fungible token identified by contract and id.
	ERC1155
	// ERC721WithCriteria carries a Merkle root over acceptable ERC721 ids.
	ERC721WithCriteria
	// ERC1155WithCriteria carries a Merkle root over acceptable ERC1155 ids.
	ERC1155WithCriteria
)

// String returns a string representation of the item type.
func (t ItemType) String() string {
	switch t {
	case Native:
		return "NATIVE"
	case ERC20:
		return "ERC20"
	case ERC721:
		return "ERC721"
	case ERC1155:
		return "ERC1155"
	case ERC721WithCriteria:
		return "ERC721_WITH_CRITERIA"
	case ERC1155WithCriteria:
		return "ERC1155_WITH_CRITERIA"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// IsCriteria reports whether the item type is a criteria-based variant.
func (t ItemType) IsCriteria() bool {
	return t == ERC721WithCriteria || t == ERC1155WithCriteria
}

// WithoutCriteria maps a criteria item type to its concrete equivalent.
// Non-criteria types map to themselves.
func (t ItemType) WithoutCriteria() ItemType {
	switch t {
	case ERC721WithCriteria:
		return ERC721
	case ERC1155WithCriteria:
		return ERC1155
	default:
		return t
	}
}

// Side selects the offer or consideration array of an order.
type Side uint8

const (
	SideOffer Side = iota
	SideConsideration
)

// String returns a string representation of the side.
func (s Side) String() string {
	switch s {
	case SideOffer:
		return "OFFER"
	case SideConsideration:
		return "CONSIDERATION"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// OrderType determines partial-fill eligibility and authorization rules.
type OrderType uint8

const (
	// FullOpen orders must be filled entirely and need no zone approval.
	FullOpen OrderType = iota
	// PartialOpen orders may be filled partially and need no zone approval.
	PartialOpen
	// FullRestricted orders must be filled entirely and require zone approval.
	FullRestricted
	// PartialRestricted orders may be filled partially and require zone approval.
	PartialRestricted
	// Contract orders are generated dynamically by a contract offerer.
	Contract
)

// String returns a string representation of the order type.
func (t OrderType) String() string {
	switch t {
	case FullOpen:
		return "FULL_OPEN"
	case PartialOpen:
		return "PARTIAL_OPEN"
	case FullRestricted:
		return "FULL_RESTRICTED"
	case PartialRestricted:
		return "PARTIAL_RESTRICTED"
	case Contract:
		return "CONTRACT"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// AllowsPartialFills reports whether the order type permits filling a
// fraction smaller than the whole order.
func (t OrderType) AllowsPartialFills() bool {
	return t == PartialOpen || t == PartialRestricted
}

// IsRestricted reports whether fills of this order type must be approved by
// the order's zone.
func (t OrderType) IsRestricted() bool {
	return t == FullRestricted || t == PartialRestricted
}

// OfferItem is a single item an order gives up.
type OfferItem struct {
	ItemType ItemType

	// Token is the token contract address (zero for native items).
	Token common.Address

	// IdentifierOrCriteria is the token id, or for criteria item types the
	// Merkle root over acceptable ids (zero meaning "any id").
	IdentifierOrCriteria *big.Int

	// StartAmount and EndAmount bound the linear amount interpolation over
	// the order's [startTime, endTime] window.
	StartAmount *big.Int
	EndAmount   *big.Int
}

// ConsiderationItem is a single item an order demands in return.
type ConsiderationItem struct {
	ItemType             ItemType
	Token                common.Address
	IdentifierOrCriteria *big.Int
	StartAmount          *big.Int
	EndAmount            *big.Int

	// Recipient receives the item when the order is filled.
	Recipient common.Address
}

// Parameters describes a complete order as signed by its offerer.
type Parameters struct {
	Offerer       common.Address
	Zone          common.Address
	Offer         []OfferItem
	Consideration []ConsiderationItem
	OrderType     OrderType
	StartTime     *big.Int
	EndTime       *big.Int
	ZoneHash      common.Hash
	Salt          *big.Int
	ConduitKey    common.Hash

	// TotalOriginalConsiderationItems must equal len(Consideration) at
	// validation time; a signed order's consideration may only be extended
	// by tips beyond this count, never shortened.
	TotalOriginalConsiderationItems uint64
}

// Order is a signed order requesting a full fill.
type Order struct {
	Parameters Parameters
	Signature  []byte
}

// AdvancedOrder is a signed order together with the fraction of it the
// caller wants to fill in this call and optional extra data handed to zones
// and contract offerers.
type AdvancedOrder struct {
	Parameters  Parameters
	Numerator   *big.Int
	Denominator *big.Int
	Signature   []byte
	ExtraData   []byte
}

// Components identifies an order for hashing and cancellation: the order
// parameters minus the original consideration count, plus the offerer's
// counter the order was signed against.
type Components struct {
	Parameters Parameters
	Counter    *big.Int
}

// Status is the persistent per-order fill state, keyed by order hash.
// The zero value is the state of an order that has never been touched.
type Status struct {
	// Validated is set once the order's signature has been verified or the
	// offerer validated it explicitly.
	Validated bool

	// Cancelled is terminal; a cancelled order can never be filled or
	// re-validated.
	Cancelled bool

	// Numerator/Denominator track the total filled fraction. Nil means
	// nothing filled yet.
	Numerator   *big.Int
	Denominator *big.Int
}

// FilledFraction returns the filled numerator/denominator, substituting 0/1
// when nothing has been filled.
func (s Status) FilledFraction() (num, den *big.Int) {
	if s.Numerator == nil || s.Denominator == nil || s.Denominator.Sign() == 0 {
		return new(big.Int), big.NewInt(1)
	}
	return s.Numerator, s.Denominator
}

// IsFullyFilled reports whether the stored fraction equals one.
func (s Status) IsFullyFilled() bool {
	num, den := s.FilledFraction()
	return num.Sign() != 0 && num.Cmp(den) == 0
}

// CriteriaResolver designates a criteria item of a specific order and
// supplies the concrete identifier plus the Merkle proof of its inclusion
// under the item's criteria root.
type CriteriaResolver struct {
	OrderIndex uint64
	Side       Side
	Index      uint64
	Identifier *big.Int
	Proof      []common.Hash
}

// FulfillmentComponent references one item of one order inside a batch.
type FulfillmentComponent struct {
	OrderIndex uint64
	ItemIndex  uint64
}

// Fulfillment pairs offer components against consideration components for
// the order-matching path.
type Fulfillment struct {
	OfferComponents         []FulfillmentComponent
	ConsiderationComponents []FulfillmentComponent
}

// SpentItem is a fully resolved offer item at its final amount.
type SpentItem struct {
	ItemType   ItemType
	Token      common.Address
	Identifier *big.Int
	Amount     *big.Int
}

// ReceivedItem is a fully resolved consideration item at its final amount.
type ReceivedItem struct {
	ItemType   ItemType
	Token      common.Address
	Identifier *big.Int
	Amount     *big.Int
	Recipient  common.Address
}

// Execution is a single minimal transfer instruction produced by aggregating
// matching items across orders.
type Execution struct {
	Item       ReceivedItem
	Offerer    common.Address
	ConduitKey common.Hash
}

// ToComponents pairs the order's parameters with the given counter for
// hashing or cancellation.
func (p Parameters) ToComponents(counter *big.Int) Components {
	return Components{Parameters: p, Counter: counter}
}
