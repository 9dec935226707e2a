package settle

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/marinerlabs/goseaport/internal/core/order"
	"github.com/marinerlabs/goseaport/internal/core/signer"
)

// deriveOrderHash hashes the order parameters against the offerer's current
// counter.
func (e *Engine) deriveOrderHash(p *order.Parameters) (common.Hash, error) {
	counter, err := e.store.Counter(p.Offerer)
	if err != nil {
		return common.Hash{}, fmt.Errorf("read counter for %s: %w", p.Offerer, err)
	}
	return e.hasher.OrderHash(p.ToComponents(counter)), nil
}

// checkTime verifies now falls within [startTime, endTime).
func checkTime(p *order.Parameters, now *big.Int) error {
	if p.StartTime == nil || p.EndTime == nil || p.StartTime.Cmp(p.EndTime) >= 0 {
		return ErrInvalidTime
	}
	if now.Cmp(p.StartTime) < 0 || now.Cmp(p.EndTime) >= 0 {
		return ErrInvalidTime
	}
	return nil
}

// validateOrderAndDetermineFraction runs the per-order validation stage:
// time window, fraction sanity, order-status rules, signature verification,
// and the combination of the requested fraction with the already-filled
// fraction. On success the working order carries the capped fraction and its
// resolved, fraction-adjusted items. Orders rejected by a business rule are
// skipped instead when revertOnInvalid is false; malformed fractions,
// signature failures and fraction overflow always abort.
func (e *Engine) validateOrderAndDetermineFraction(ctx context.Context, st *stateTable, wo *workingOrder, fulfiller common.Address, revertOnInvalid bool) error {
	p := &wo.adv.Parameters
	now := e.now()

	if err := checkTime(p, now); err != nil {
		if revertOnInvalid {
			return err
		}
		wo.skip()
		return nil
	}

	if p.OrderType == order.Contract {
		one := big.NewInt(1)
		if wo.adv.Numerator == nil || wo.adv.Denominator == nil ||
			wo.adv.Numerator.Cmp(one) != 0 || wo.adv.Denominator.Cmp(one) != 0 {
			return ErrBadFraction
		}
		return e.getGeneratedOrder(ctx, st, wo, fulfiller, revertOnInvalid)
	}

	num, den := wo.adv.Numerator, wo.adv.Denominator
	if num == nil || den == nil || num.Sign() <= 0 || den.Sign() <= 0 || num.Cmp(den) > 0 {
		return ErrBadFraction
	}
	if num.Cmp(den) < 0 && !p.OrderType.AllowsPartialFills() {
		return ErrPartialFillsNotEnabledForOrder
	}

	if uint64(len(p.Consideration)) != p.TotalOriginalConsiderationItems {
		return ErrConsiderationLengthNotEqualToTotalOriginal
	}

	hash, err := e.deriveOrderHash(p)
	if err != nil {
		return err
	}
	wo.orderHash = hash

	status, err := st.orderStatus(hash)
	if err != nil {
		return fmt.Errorf("read status for %s: %w", hash, err)
	}
	if status.Cancelled {
		if revertOnInvalid {
			return fmt.Errorf("order %s: %w", hash, ErrOrderIsCancelled)
		}
		wo.skip()
		return nil
	}

	if !status.Validated {
		digest := e.hasher.Digest(hash)
		if err := signer.Verify(p.Offerer, digest, wo.adv.Signature); err != nil {
			return fmt.Errorf("order %s: %w", hash, err)
		}
	}

	cf, err := combineFraction(num, den, status)
	if err != nil {
		return err
	}
	if cf.appliedNumerator.Sign() == 0 {
		if revertOnInvalid {
			return fmt.Errorf("order %s: %w", hash, ErrOrderAlreadyFilled)
		}
		wo.skip()
		return nil
	}

	wo.numerator = cf.appliedNumerator
	wo.denominator = cf.denominator
	if err := wo.resolveItems(now); err != nil {
		return err
	}

	e.log.Debug("order validated",
		zap.Stringer("orderHash", hash),
		zap.String("numerator", wo.numerator.String()),
		zap.String("denominator", wo.denominator.String()))
	return nil
}

// updateStatus re-derives the combined fraction against the staged status
// and persists the new total as a single staged write. It reports false
// without staging anything when the order can no longer absorb the fraction;
// mandatoryRevert upgrades that to an error even when the caller would
// otherwise tolerate skips.
func (e *Engine) updateStatus(st *stateTable, wo *workingOrder, revertOnInvalid, mandatoryRevert bool) (bool, error) {
	status, err := st.orderStatus(wo.orderHash)
	if err != nil {
		return false, fmt.Errorf("read status for %s: %w", wo.orderHash, err)
	}
	if status.Cancelled {
		if revertOnInvalid || mandatoryRevert {
			return false, fmt.Errorf("order %s: %w", wo.orderHash, ErrOrderIsCancelled)
		}
		return false, nil
	}

	filledNum, filledDen := status.FilledFraction()
	num := new(big.Int).Set(wo.numerator)
	den := new(big.Int).Set(wo.denominator)
	filled := new(big.Int).Set(filledNum)

	if filledNum.Sign() != 0 && filledDen.Cmp(den) != 0 {
		num.Mul(num, filledDen)
		filled.Mul(filled, den)
		den.Mul(den, filledDen)
	}

	total := new(big.Int).Add(filled, num)
	if total.Cmp(den) > 0 {
		// Carry: applying this fraction would overfill the order.
		if revertOnInvalid || mandatoryRevert {
			return false, fmt.Errorf("order %s: %w", wo.orderHash, ErrOrderAlreadyFilled)
		}
		return false, nil
	}

	if den.Cmp(maxFraction) > 0 {
		g := new(big.Int).GCD(nil, nil, den, total)
		if g.Sign() != 0 && g.Cmp(big.NewInt(1)) != 0 {
			total.Quo(total, g)
			den.Quo(den, g)
		}
		if den.Cmp(maxFraction) > 0 {
			return false, ErrFractionOverflow
		}
	}

	st.putStatus(wo.orderHash, order.Status{
		Validated:   true,
		Cancelled:   false,
		Numerator:   total,
		Denominator: den,
	})
	return true, nil
}

// Cancel marks every referenced order cancelled. The caller must be offerer
// or zone of every order in the batch and no order may be a contract order;
// the whole batch is checked before any order is touched. Cancelling an
// already-cancelled order is a no-op.
func (e *Engine) Cancel(caller common.Address, components []order.Components) ([]common.Hash, error) {
	if err := e.guard.enter(false); err != nil {
		return nil, err
	}
	defer e.guard.exit()

	for i := range components {
		p := &components[i].Parameters
		if p.OrderType == order.Contract {
			return nil, ErrCannotCancelOrder
		}
		if caller != p.Offerer && caller != p.Zone {
			return nil, ErrCannotCancelOrder
		}
	}

	hashes := make([]common.Hash, len(components))
	changes := StateChanges{Statuses: make(map[common.Hash]order.Status, len(components))}
	for i := range components {
		hash := e.hasher.OrderHash(components[i])
		hashes[i] = hash

		status, err := e.store.OrderStatus(hash)
		if err != nil {
			return nil, fmt.Errorf("read status for %s: %w", hash, err)
		}
		status.Validated = false
		status.Cancelled = true
		changes.Statuses[hash] = status
	}

	if err := e.store.Apply(changes); err != nil {
		return nil, fmt.Errorf("apply cancellations: %w", err)
	}

	e.log.Info("orders cancelled", zap.Int("count", len(hashes)), zap.Stringer("caller", caller))
	return hashes, nil
}

// Validate verifies and durably marks orders as validated so later fills can
// skip signature checks. Already-validated and contract orders are silently
// skipped; cancelled orders fail.
func (e *Engine) Validate(orders []order.Order) ([]common.Hash, error) {
	if err := e.guard.enter(false); err != nil {
		return nil, err
	}
	defer e.guard.exit()

	var hashes []common.Hash
	changes := StateChanges{Statuses: make(map[common.Hash]order.Status)}
	for i := range orders {
		p := &orders[i].Parameters
		if p.OrderType == order.Contract {
			continue
		}

		hash, err := e.deriveOrderHash(p)
		if err != nil {
			return nil, err
		}

		status, err := e.store.OrderStatus(hash)
		if err != nil {
			return nil, fmt.Errorf("read status for %s: %w", hash, err)
		}
		if status.Cancelled {
			return nil, fmt.Errorf("order %s: %w", hash, ErrOrderIsCancelled)
		}
		if status.Validated {
			continue
		}

		if uint64(len(p.Consideration)) != p.TotalOriginalConsiderationItems {
			return nil, ErrConsiderationLengthNotEqualToTotalOriginal
		}
		digest := e.hasher.Digest(hash)
		if err := signer.Verify(p.Offerer, digest, orders[i].Signature); err != nil {
			return nil, fmt.Errorf("order %s: %w", hash, err)
		}

		status.Validated = true
		changes.Statuses[hash] = status
		hashes = append(hashes, hash)
	}

	if len(changes.Statuses) > 0 {
		if err := e.store.Apply(changes); err != nil {
			return nil, fmt.Errorf("apply validations: %w", err)
		}
	}
	return hashes, nil
}

// IncrementCounter bumps the offerer's signing counter, invalidating every
// order signed against the previous value.
func (e *Engine) IncrementCounter(offerer common.Address) (*big.Int, error) {
	counter, err := e.store.IncrementCounter(offerer)
	if err != nil {
		return nil, fmt.Errorf("increment counter for %s: %w", offerer, err)
	}
	e.log.Info("counter incremented",
		zap.Stringer("offerer", offerer),
		zap.String("counter", counter.String()))
	return counter, nil
}

// Counter returns the offerer's current signing counter.
func (e *Engine) Counter(offerer common.Address) (*big.Int, error) {
	return e.store.Counter(offerer)
}

// OrderStatus returns the stored fill status for an order hash.
func (e *Engine) OrderStatus(hash common.Hash) (order.Status, error) {
	return e.store.OrderStatus(hash)
}

// OrderHash derives the hash an order would settle under with the offerer's
// current counter.
func (e *Engine) OrderHash(p order.Parameters) (common.Hash, error) {
	return e.deriveOrderHash(&p)
}
