package settle

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/marinerlabs/goseaport/internal/core/order"
)

// resolvedItem is the explicit intermediate record threaded from validation
// through aggregation to the final zero-remainder check. amount is the
// fraction-adjusted, time-interpolated amount for this call; remaining is
// the accumulator aggregation draws down — for offers any leftover is swept
// to the recipient, for considerations it must reach exactly zero.
type resolvedItem struct {
	itemType   order.ItemType
	token      common.Address
	identifier *big.Int
	amount     *big.Int
	remaining  *big.Int
	recipient  common.Address // consideration only
}

func (r *resolvedItem) toSpent() order.SpentItem {
	return order.SpentItem{
		ItemType:   r.itemType,
		Token:      r.token,
		Identifier: new(big.Int).Set(r.identifier),
		Amount:     new(big.Int).Set(r.amount),
	}
}

func (r *resolvedItem) toReceived() order.ReceivedItem {
	return order.ReceivedItem{
		ItemType:   r.itemType,
		Token:      r.token,
		Identifier: new(big.Int).Set(r.identifier),
		Amount:     new(big.Int).Set(r.amount),
		Recipient:  r.recipient,
	}
}

// workingOrder carries one order's transient settlement state through the
// pipeline. A nil or zero numerator marks the order unavailable; unavailable
// orders are excluded from every later stage.
type workingOrder struct {
	adv           *order.AdvancedOrder
	orderHash     common.Hash
	numerator     *big.Int
	denominator   *big.Int
	offer         []resolvedItem
	consideration []resolvedItem

	// contractNonce is set for generated (contract) orders.
	contractNonce *big.Int

	// zoneInvoked records that the zone's authorizeOrder approved this
	// order, which obliges the matching post-execution validateOrder call.
	zoneInvoked bool
}

func (w *workingOrder) available() bool {
	return w.numerator != nil && w.numerator.Sign() > 0
}

func (w *workingOrder) skip() {
	w.numerator = new(big.Int)
	w.denominator = big.NewInt(1)
	w.offer = nil
	w.consideration = nil
}

// resolveItems scales the order's offer and consideration by the applied
// fraction and interpolates each amount at now. Offers round down,
// considerations round up.
func (w *workingOrder) resolveItems(now *big.Int) error {
	p := &w.adv.Parameters

	w.offer = make([]resolvedItem, len(p.Offer))
	for i := range p.Offer {
		item := &p.Offer[i]
		amount, err := ApplyFraction(w.numerator, w.denominator,
			item.StartAmount, item.EndAmount, p.StartTime, p.EndTime, now, false)
		if err != nil {
			return err
		}
		w.offer[i] = resolvedItem{
			itemType:   item.ItemType,
			token:      item.Token,
			identifier: new(big.Int).Set(item.IdentifierOrCriteria),
			amount:     amount,
			remaining:  new(big.Int).Set(amount),
		}
	}

	w.consideration = make([]resolvedItem, len(p.Consideration))
	for i := range p.Consideration {
		item := &p.Consideration[i]
		amount, err := ApplyFraction(w.numerator, w.denominator,
			item.StartAmount, item.EndAmount, p.StartTime, p.EndTime, now, true)
		if err != nil {
			return err
		}
		w.consideration[i] = resolvedItem{
			itemType:   item.ItemType,
			token:      item.Token,
			identifier: new(big.Int).Set(item.IdentifierOrCriteria),
			amount:     amount,
			remaining:  new(big.Int).Set(amount),
			recipient:  item.Recipient,
		}
	}

	return nil
}

// setGenerated installs the offer and consideration returned by a contract
// offerer, whose amounts are final and need no interpolation.
func (w *workingOrder) setGenerated(offer []order.SpentItem, consideration []order.ReceivedItem) {
	w.offer = make([]resolvedItem, len(offer))
	for i := range offer {
		w.offer[i] = resolvedItem{
			itemType:   offer[i].ItemType,
			token:      offer[i].Token,
			identifier: new(big.Int).Set(offer[i].Identifier),
			amount:     new(big.Int).Set(offer[i].Amount),
			remaining:  new(big.Int).Set(offer[i].Amount),
		}
	}
	w.consideration = make([]resolvedItem, len(consideration))
	for i := range consideration {
		w.consideration[i] = resolvedItem{
			itemType:   consideration[i].ItemType,
			token:      consideration[i].Token,
			identifier: new(big.Int).Set(consideration[i].Identifier),
			amount:     new(big.Int).Set(consideration[i].Amount),
			remaining:  new(big.Int).Set(consideration[i].Amount),
			recipient:  consideration[i].Recipient,
		}
	}
}

func (w *workingOrder) spentItems() []order.SpentItem {
	out := make([]order.SpentItem, len(w.offer))
	for i := range w.offer {
		out[i] = w.offer[i].toSpent()
	}
	return out
}

func (w *workingOrder) receivedItems() []order.ReceivedItem {
	out := make([]order.ReceivedItem, len(w.consideration))
	for i := range w.consideration {
		out[i] = w.consideration[i].toReceived()
	}
	return out
}
