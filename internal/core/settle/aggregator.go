package settle

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/marinerlabs/goseaport/internal/core/order"
)

// aggregation accumulates one side of a fulfillment group: the item identity
// established by the first valid component, the running total, and the first
// contributing item (which reabsorbs any match-path excess).
type aggregation struct {
	itemType   order.ItemType
	token      common.Address
	identifier *big.Int
	offerer    common.Address // offer side: the paying offerer
	conduitKey common.Hash    // offer side: the order's conduit
	recipient  common.Address // consideration side: the item's recipient
	total      *big.Int
	firstItem  *resolvedItem
}

func (a *aggregation) valid() bool {
	return a.firstItem != nil
}

// aggregateOfferComponents folds a component group over the orders' offer
// items. Components referencing unavailable orders or out-of-range indices
// are skipped; every contributing item must share item identity, offerer and
// conduit key with the first.
func aggregateOfferComponents(orders []*workingOrder, components []order.FulfillmentComponent) (*aggregation, error) {
	agg := &aggregation{total: new(big.Int)}

	for _, c := range components {
		if c.OrderIndex >= uint64(len(orders)) {
			continue
		}
		wo := orders[c.OrderIndex]
		if !wo.available() || c.ItemIndex >= uint64(len(wo.offer)) {
			continue
		}
		item := &wo.offer[c.ItemIndex]
		p := &wo.adv.Parameters

		if !agg.valid() {
			agg.itemType = item.itemType
			agg.token = item.token
			agg.identifier = new(big.Int).Set(item.identifier)
			agg.offerer = p.Offerer
			agg.conduitKey = p.ConduitKey
			agg.firstItem = item
		} else if item.itemType != agg.itemType ||
			item.token != agg.token ||
			item.identifier.Cmp(agg.identifier) != 0 ||
			p.Offerer != agg.offerer ||
			p.ConduitKey != agg.conduitKey {
			return nil, ErrMismatchedComponents
		}

		agg.total.Add(agg.total, item.remaining)
		item.remaining = new(big.Int)
	}

	return agg, nil
}

// aggregateConsiderationComponents folds a component group over the orders'
// consideration items. Every contributing item must share item identity and
// recipient with the first.
func aggregateConsiderationComponents(orders []*workingOrder, components []order.FulfillmentComponent) (*aggregation, error) {
	agg := &aggregation{total: new(big.Int)}

	for _, c := range components {
		if c.OrderIndex >= uint64(len(orders)) {
			continue
		}
		wo := orders[c.OrderIndex]
		if !wo.available() || c.ItemIndex >= uint64(len(wo.consideration)) {
			continue
		}
		item := &wo.consideration[c.ItemIndex]

		if !agg.valid() {
			agg.itemType = item.itemType
			agg.token = item.token
			agg.identifier = new(big.Int).Set(item.identifier)
			agg.recipient = item.recipient
			agg.firstItem = item
		} else if item.itemType != agg.itemType ||
			item.token != agg.token ||
			item.identifier.Cmp(agg.identifier) != 0 ||
			item.recipient != agg.recipient {
			return nil, ErrMismatchedComponents
		}

		agg.total.Add(agg.total, item.remaining)
		item.remaining = new(big.Int)
	}

	return agg, nil
}

// aggregateAvailable reduces a single-side component group to one Execution.
// Offer-side executions pay from the shared offerer to the caller-chosen
// recipient through the order's conduit; consideration-side executions pay
// from the fulfiller to the items' shared recipient through the fulfiller's
// conduit. A group with no valid component yields a zero-amount Execution
// for the caller to skip.
func aggregateAvailable(orders []*workingOrder, side order.Side,
	components []order.FulfillmentComponent, recipient common.Address,
	fulfiller common.Address, fulfillerConduitKey common.Hash) (order.Execution, error) {

	switch side {
	case order.SideOffer:
		agg, err := aggregateOfferComponents(orders, components)
		if err != nil {
			return order.Execution{}, err
		}
		if !agg.valid() {
			return zeroExecution(), nil
		}
		return order.Execution{
			Item: order.ReceivedItem{
				ItemType:   agg.itemType,
				Token:      agg.token,
				Identifier: agg.identifier,
				Amount:     agg.total,
				Recipient:  recipient,
			},
			Offerer:    agg.offerer,
			ConduitKey: agg.conduitKey,
		}, nil

	case order.SideConsideration:
		agg, err := aggregateConsiderationComponents(orders, components)
		if err != nil {
			return order.Execution{}, err
		}
		if !agg.valid() {
			return zeroExecution(), nil
		}
		return order.Execution{
			Item: order.ReceivedItem{
				ItemType:   agg.itemType,
				Token:      agg.token,
				Identifier: agg.identifier,
				Amount:     agg.total,
				Recipient:  agg.recipient,
			},
			Offerer:    fulfiller,
			ConduitKey: fulfillerConduitKey,
		}, nil

	default:
		return order.Execution{}, fmt.Errorf("unknown side %d", side)
	}
}

// applyFulfillment reconciles an offer component group against a
// consideration component group for the match path: both sides must share
// item identity, the execution moves the lesser of the two totals, and the
// excess is credited back to the first item on the larger side — leftover
// offer is swept at the end, leftover consideration must be covered by a
// later fulfillment or the batch fails the final check.
func applyFulfillment(orders []*workingOrder, f order.Fulfillment) (order.Execution, error) {
	offerAgg, err := aggregateOfferComponents(orders, f.OfferComponents)
	if err != nil {
		return order.Execution{}, err
	}
	considerationAgg, err := aggregateConsiderationComponents(orders, f.ConsiderationComponents)
	if err != nil {
		return order.Execution{}, err
	}
	if !offerAgg.valid() || !considerationAgg.valid() {
		return zeroExecution(), nil
	}

	if offerAgg.itemType != considerationAgg.itemType ||
		offerAgg.token != considerationAgg.token ||
		offerAgg.identifier.Cmp(considerationAgg.identifier) != 0 {
		return order.Execution{}, ErrMismatchedComponents
	}

	amount := new(big.Int).Set(offerAgg.total)
	switch offerAgg.total.Cmp(considerationAgg.total) {
	case 1:
		amount.Set(considerationAgg.total)
		excess := new(big.Int).Sub(offerAgg.total, considerationAgg.total)
		offerAgg.firstItem.remaining = excess
	case -1:
		excess := new(big.Int).Sub(considerationAgg.total, offerAgg.total)
		considerationAgg.firstItem.remaining = excess
	}

	return order.Execution{
		Item: order.ReceivedItem{
			ItemType:   offerAgg.itemType,
			Token:      offerAgg.token,
			Identifier: offerAgg.identifier,
			Amount:     amount,
			Recipient:  considerationAgg.recipient,
		},
		Offerer:    offerAgg.offerer,
		ConduitKey: offerAgg.conduitKey,
	}, nil
}

func zeroExecution() order.Execution {
	return order.Execution{
		Item: order.ReceivedItem{
			Identifier: new(big.Int),
			Amount:     new(big.Int),
		},
	}
}
