package settle

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/marinerlabs/goseaport/internal/core/merkle"
	"github.com/marinerlabs/goseaport/internal/core/order"
)

// applyCriteriaResolvers rewrites criteria items to their concrete types and
// identifiers using the supplied resolvers, then verifies no unresolved
// criteria item remains on any available order. Wildcard (zero-root) items
// on contract orders are exempt from the final scan; their offerer resolves
// them during generation.
func applyCriteriaResolvers(orders []*workingOrder, resolvers []order.CriteriaResolver) error {
	for i := range resolvers {
		r := &resolvers[i]

		if r.OrderIndex >= uint64(len(orders)) {
			return fmt.Errorf("resolver %d: %w", i, ErrOrderCriteriaResolverOutOfRange)
		}
		wo := orders[r.OrderIndex]
		if !wo.available() {
			continue
		}

		var item *resolvedItem
		switch r.Side {
		case order.SideOffer:
			if r.Index >= uint64(len(wo.offer)) {
				return fmt.Errorf("resolver %d: %w", i, ErrOfferCriteriaResolverOutOfRange)
			}
			item = &wo.offer[r.Index]
		case order.SideConsideration:
			if r.Index >= uint64(len(wo.consideration)) {
				return fmt.Errorf("resolver %d: %w", i, ErrConsiderationCriteriaResolverOutOfRange)
			}
			item = &wo.consideration[r.Index]
		default:
			return fmt.Errorf("resolver %d: unknown side %d", i, r.Side)
		}

		if !item.itemType.IsCriteria() {
			return fmt.Errorf("resolver %d: %w", i, ErrCriteriaNotEnabledForItem)
		}

		if err := verifyCriteria(item.identifier, r.Identifier, r.Proof); err != nil {
			return fmt.Errorf("resolver %d: %w", i, err)
		}

		item.itemType = item.itemType.WithoutCriteria()
		item.identifier = new(big.Int).Set(r.Identifier)
	}

	// Every remaining criteria item on an available order is an error,
	// except contract-order wildcards.
	for orderIndex, wo := range orders {
		if !wo.available() {
			continue
		}
		isContract := wo.adv.Parameters.OrderType == order.Contract

		for itemIndex := range wo.offer {
			item := &wo.offer[itemIndex]
			if item.itemType.IsCriteria() && !(isContract && item.identifier.Sign() == 0) {
				return &UnresolvedOfferCriteriaError{
					OrderIndex: uint64(orderIndex),
					ItemIndex:  uint64(itemIndex),
				}
			}
		}
		for itemIndex := range wo.consideration {
			item := &wo.consideration[itemIndex]
			if item.itemType.IsCriteria() && !(isContract && item.identifier.Sign() == 0) {
				return &UnresolvedConsiderationCriteriaError{
					OrderIndex: uint64(orderIndex),
					ItemIndex:  uint64(itemIndex),
				}
			}
		}
	}

	return nil
}

// verifyCriteria checks the resolved identifier against the item's stored
// criteria root. A zero root accepts any identifier but only with an empty
// proof; a nonzero root requires a valid inclusion proof.
func verifyCriteria(root, identifier *big.Int, proof []common.Hash) error {
	if root.Sign() == 0 {
		if len(proof) != 0 {
			return merkle.ErrInvalidProof
		}
		return nil
	}
	return merkle.VerifyProof(common.BigToHash(root), identifier, proof)
}
