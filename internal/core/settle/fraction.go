package settle

import (
	"math/big"

	"github.com/marinerlabs/goseaport/internal/core/order"
)

// maxFraction is the largest numerator/denominator value the status store
// can represent (2^120 - 1).
var maxFraction = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 120), big.NewInt(1))

// combinedFraction is the result of merging a requested fill fraction with
// an order's already-filled fraction.
type combinedFraction struct {
	// appliedNumerator/denominator is the fraction actually filled by this
	// call, capped so the order never overfills. A zero numerator means
	// nothing remains to fill.
	appliedNumerator *big.Int
	// filledNumerator/denominator is the new total filled fraction to
	// persist.
	filledNumerator *big.Int
	denominator     *big.Int
}

// combineFraction merges the requested numerator/denominator with the stored
// fill status: cross-multiplies to a common denominator when the two
// denominators differ, caps the request at the exact remainder, and GCD-
// reduces when the common denominator exceeds the storage bound. A fraction
// chain that stays out of bounds even after reduction is unrepresentable and
// yields ErrFractionOverflow.
func combineFraction(reqNum, reqDen *big.Int, status order.Status) (combinedFraction, error) {
	filledNum, filledDen := status.FilledFraction()

	num := new(big.Int).Set(reqNum)
	den := new(big.Int).Set(reqDen)
	filled := new(big.Int).Set(filledNum)

	if filledNum.Sign() != 0 && filledDen.Cmp(den) != 0 {
		num.Mul(num, filledDen)
		filled.Mul(filled, den)
		den.Mul(den, filledDen)
	}

	// Never overfill: cap the request at the remainder.
	total := new(big.Int).Add(filled, num)
	if total.Cmp(den) > 0 {
		num.Sub(den, filled)
		total.Set(den)
	}

	if den.Cmp(maxFraction) > 0 {
		g := new(big.Int).GCD(nil, nil, den, num)
		g.GCD(nil, nil, g, total)
		if g.Sign() != 0 && g.Cmp(big.NewInt(1)) != 0 {
			num.Quo(num, g)
			total.Quo(total, g)
			den.Quo(den, g)
		}
		if den.Cmp(maxFraction) > 0 {
			return combinedFraction{}, ErrFractionOverflow
		}
	}

	return combinedFraction{
		appliedNumerator: num,
		filledNumerator:  total,
		denominator:      den,
	}, nil
}
