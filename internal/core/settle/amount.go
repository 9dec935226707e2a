package settle

import (
	"math/big"
)

// LocateCurrentAmount linearly interpolates between startAmount at startTime
// and endAmount at endTime, evaluated at now. Before the window it clamps to
// startAmount, at or after endTime to endAmount. The interior division rounds
// down unless roundUp is set, in which case a nonzero remainder rounds up —
// offers round down (never overpay) and considerations round up (never
// underpay the offerer).
func LocateCurrentAmount(startAmount, endAmount, startTime, endTime, now *big.Int, roundUp bool) *big.Int {
	if startAmount.Cmp(endAmount) == 0 || now.Cmp(startTime) <= 0 {
		return new(big.Int).Set(startAmount)
	}
	if now.Cmp(endTime) >= 0 {
		return new(big.Int).Set(endAmount)
	}

	duration := new(big.Int).Sub(endTime, startTime)
	elapsed := new(big.Int).Sub(now, startTime)
	remaining := new(big.Int).Sub(duration, elapsed)

	// startAmount*remaining + endAmount*elapsed, divided by duration. This
	// form avoids negative intermediates on decreasing amounts.
	total := new(big.Int).Mul(startAmount, remaining)
	total.Add(total, new(big.Int).Mul(endAmount, elapsed))

	quo, rem := new(big.Int).QuoRem(total, duration, new(big.Int))
	if roundUp && rem.Sign() != 0 {
		quo.Add(quo, big.NewInt(1))
	}
	return quo
}

// getFraction scales value by numerator/denominator, requiring the division
// to be exact unless the fraction is one.
func getFraction(numerator, denominator, value *big.Int) (*big.Int, error) {
	if numerator.Cmp(denominator) == 0 {
		return new(big.Int).Set(value), nil
	}

	product := new(big.Int).Mul(value, numerator)
	quo, rem := new(big.Int).QuoRem(product, denominator, new(big.Int))
	if rem.Sign() != 0 {
		return nil, ErrInexactFraction
	}
	return quo, nil
}

// ApplyFraction scales the start and end amounts by numerator/denominator
// and interpolates the scaled bounds at now. When the bounds coincide the
// single scaled value is reused directly so both ends carry identical
// rounding.
func ApplyFraction(numerator, denominator, startAmount, endAmount, startTime, endTime, now *big.Int, roundUp bool) (*big.Int, error) {
	if startAmount.Cmp(endAmount) == 0 {
		return getFraction(numerator, denominator, endAmount)
	}

	scaledStart, err := getFraction(numerator, denominator, startAmount)
	if err != nil {
		return nil, err
	}
	scaledEnd, err := getFraction(numerator, denominator, endAmount)
	if err != nil {
		return nil, err
	}

	return LocateCurrentAmount(scaledStart, scaledEnd, startTime, endTime, now, roundUp), nil
}
