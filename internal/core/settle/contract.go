package settle

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/marinerlabs/goseaport/internal/core/order"
)

// contractOrderHash composes a synthetic hash for a generated order:
// nonce XOR (offerer << 96).
func contractOrderHash(offerer common.Address, nonce *big.Int) common.Hash {
	shifted := new(big.Int).Lsh(new(big.Int).SetBytes(offerer.Bytes()), 96)
	return common.BigToHash(new(big.Int).Xor(shifted, nonce))
}

// getGeneratedOrder asks the contract offerer to generate the actual order
// for the caller's context and checks the result is compatible with what the
// caller asked for: offer amounts may only grow, consideration amounts may
// only shrink, and item identities must hold except where the original item
// was a zero-root criteria wildcard. Generation failure either bubbles or
// skips the order per revertOnInvalid.
func (e *Engine) getGeneratedOrder(ctx context.Context, st *stateTable, wo *workingOrder, fulfiller common.Address, revertOnInvalid bool) error {
	p := &wo.adv.Parameters
	now := e.now()
	one := big.NewInt(1)

	// The caller's view of the order at the current time: the least it will
	// receive and the most it will spend.
	minimumReceived := make([]order.SpentItem, len(p.Offer))
	for i := range p.Offer {
		item := &p.Offer[i]
		minimumReceived[i] = order.SpentItem{
			ItemType:   item.ItemType,
			Token:      item.Token,
			Identifier: new(big.Int).Set(item.IdentifierOrCriteria),
			Amount: LocateCurrentAmount(item.StartAmount, item.EndAmount,
				p.StartTime, p.EndTime, now, false),
		}
	}
	maximumSpent := make([]order.ReceivedItem, len(p.Consideration))
	for i := range p.Consideration {
		item := &p.Consideration[i]
		maximumSpent[i] = order.ReceivedItem{
			ItemType:   item.ItemType,
			Token:      item.Token,
			Identifier: new(big.Int).Set(item.IdentifierOrCriteria),
			Amount: LocateCurrentAmount(item.StartAmount, item.EndAmount,
				p.StartTime, p.EndTime, now, true),
			Recipient: item.Recipient,
		}
	}

	nonce, err := st.nextContractNonce(p.Offerer)
	if err != nil {
		return fmt.Errorf("contract nonce for %s: %w", p.Offerer, err)
	}
	hash := contractOrderHash(p.Offerer, nonce)

	fail := func(reason error) error {
		if revertOnInvalid {
			return &CallbackError{Kind: ErrInvalidContractOrder, OrderHash: hash, Reason: reason}
		}
		e.log.Debug("contract order skipped",
			zap.Stringer("offerer", p.Offerer), zap.Error(reason))
		wo.skip()
		return nil
	}

	offerer, ok := e.registry.ContractOfferer(p.Offerer)
	if !ok {
		return fail(fmt.Errorf("no contract offerer registered at %s", p.Offerer))
	}

	maxSpent := make([]order.SpentItem, len(maximumSpent))
	for i := range maximumSpent {
		maxSpent[i] = order.SpentItem{
			ItemType:   maximumSpent[i].ItemType,
			Token:      maximumSpent[i].Token,
			Identifier: maximumSpent[i].Identifier,
			Amount:     maximumSpent[i].Amount,
		}
	}

	genOffer, genConsideration, err := offerer.GenerateOrder(
		ctx, fulfiller, minimumReceived, maxSpent, wo.adv.ExtraData)
	if err != nil {
		return fail(err)
	}

	if err := compareGenerated(minimumReceived, maximumSpent, genOffer, genConsideration); err != nil {
		return fail(err)
	}

	wo.orderHash = hash
	wo.numerator = one
	wo.denominator = one
	wo.contractNonce = nonce
	wo.setGenerated(genOffer, genConsideration)
	return nil
}

// compareGenerated validates a generated order against the caller's context.
func compareGenerated(minimumReceived []order.SpentItem, maximumSpent []order.ReceivedItem,
	offer []order.SpentItem, consideration []order.ReceivedItem) error {

	// The offerer may extend the offer but never shorten it, and each
	// original item's amount may only grow.
	if len(offer) < len(minimumReceived) {
		return fmt.Errorf("generated offer has %d items, caller required %d",
			len(offer), len(minimumReceived))
	}
	for i := range minimumReceived {
		orig, gen := &minimumReceived[i], &offer[i]
		if err := compareItemIdentity(orig.ItemType, orig.Token, orig.Identifier,
			gen.ItemType, gen.Token, gen.Identifier); err != nil {
			return fmt.Errorf("offer item %d: %w", i, err)
		}
		if gen.Amount.Cmp(orig.Amount) < 0 {
			return fmt.Errorf("offer item %d amount %s below minimum %s",
				i, gen.Amount, orig.Amount)
		}
	}

	// The offerer may drop consideration items but never add demands, and
	// each remaining amount may only shrink.
	if len(consideration) > len(maximumSpent) {
		return fmt.Errorf("generated consideration has %d items, caller allowed %d",
			len(consideration), len(maximumSpent))
	}
	for i := range consideration {
		orig, gen := &maximumSpent[i], &consideration[i]
		if err := compareItemIdentity(orig.ItemType, orig.Token, orig.Identifier,
			gen.ItemType, gen.Token, gen.Identifier); err != nil {
			return fmt.Errorf("consideration item %d: %w", i, err)
		}
		if gen.Amount.Cmp(orig.Amount) > 0 {
			return fmt.Errorf("consideration item %d amount %s above maximum %s",
				i, gen.Amount, orig.Amount)
		}
		if orig.Recipient != (common.Address{}) && gen.Recipient != orig.Recipient {
			return fmt.Errorf("consideration item %d recipient %s does not match required %s",
				i, gen.Recipient, orig.Recipient)
		}
	}

	return nil
}

// compareItemIdentity checks a generated item against the original. A
// zero-root criteria original is a wildcard the offerer may resolve to any
// identifier of the corresponding concrete type.
func compareItemIdentity(origType order.ItemType, origToken common.Address, origID *big.Int,
	genType order.ItemType, genToken common.Address, genID *big.Int) error {

	if origToken != genToken {
		return fmt.Errorf("token %s does not match %s", genToken, origToken)
	}

	if origType.IsCriteria() && origID.Sign() == 0 {
		if genType != origType.WithoutCriteria() && genType != origType {
			return fmt.Errorf("item type %s does not resolve wildcard %s", genType, origType)
		}
		return nil
	}

	if genType != origType {
		return fmt.Errorf("item type %s does not match %s", genType, origType)
	}
	if genID.Cmp(origID) != 0 {
		return fmt.Errorf("identifier %s does not match %s", genID, origID)
	}
	return nil
}
