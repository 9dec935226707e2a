package settle

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/marinerlabs/goseaport/internal/core/order"
	"github.com/marinerlabs/goseaport/internal/core/signer"
)

func TestCheckTime(t *testing.T) {
	window := func(start, end int64) *order.Parameters {
		return &order.Parameters{StartTime: big.NewInt(start), EndTime: big.NewInt(end)}
	}

	tests := []struct {
		name    string
		p       *order.Parameters
		now     int64
		wantErr bool
	}{
		{name: "inside window", p: window(100, 200), now: 150},
		{name: "at start time", p: window(100, 200), now: 100},
		{name: "just before end", p: window(100, 200), now: 199},
		{name: "at end time", p: window(100, 200), now: 200, wantErr: true},
		{name: "before start", p: window(100, 200), now: 99, wantErr: true},
		{name: "empty window", p: window(100, 100), now: 100, wantErr: true},
		{name: "inverted window", p: window(200, 100), now: 150, wantErr: true},
		{name: "missing bounds", p: &order.Parameters{}, now: 150, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := checkTime(tc.p, big.NewInt(tc.now))
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidTime, "window check should fail")
			} else {
				require.NoError(t, err, "window check should pass")
			}
		})
	}
}

func TestValidateOrderAndDetermineFraction(t *testing.T) {
	ctx := context.Background()

	validate := func(t *testing.T, env *testEnv, adv order.AdvancedOrder, revertOnInvalid bool) (*workingOrder, error) {
		t.Helper()
		st := newStateTable(env.store)
		wo := &workingOrder{adv: &adv}
		err := env.engine.validateOrderAndDetermineFraction(ctx, st, wo, common.Address{}, revertOnInvalid)
		return wo, err
	}

	t.Run("valid full fill resolves items", func(t *testing.T) {
		env := newTestEnv(t)
		offerer := newAccount(t)
		p := simpleSwap(offerer, offerer.addr)
		adv := advanced(p, env.signOrder(t, offerer, p), 1, 1)

		wo, err := validate(t, env, adv, true)
		require.NoError(t, err, "valid order")
		require.True(t, wo.available(), "order should be available")
		require.Equal(t, int64(100), wo.offer[0].amount.Int64(), "resolved offer amount")
		require.Equal(t, int64(1), wo.consideration[0].amount.Int64(), "resolved consideration amount")
	})

	t.Run("expired order skips or reverts", func(t *testing.T) {
		env := newTestEnv(t)
		offerer := newAccount(t)
		p := simpleSwap(offerer, offerer.addr)
		p.EndTime = new(big.Int).Sub(testNow, big.NewInt(1))
		adv := advanced(p, env.signOrder(t, offerer, p), 1, 1)

		wo, err := validate(t, env, adv, false)
		require.NoError(t, err, "tolerant mode skips")
		require.False(t, wo.available(), "expired order is unavailable")

		_, err = validate(t, env, adv, true)
		require.ErrorIs(t, err, ErrInvalidTime, "strict mode reverts")
	})

	t.Run("zero numerator always aborts", func(t *testing.T) {
		env := newTestEnv(t)
		offerer := newAccount(t)
		p := simpleSwap(offerer, offerer.addr)
		adv := advanced(p, env.signOrder(t, offerer, p), 0, 1)

		_, err := validate(t, env, adv, false)
		require.ErrorIs(t, err, ErrBadFraction, "zero numerator")
	})

	t.Run("numerator above denominator always aborts", func(t *testing.T) {
		env := newTestEnv(t)
		offerer := newAccount(t)
		p := simpleSwap(offerer, offerer.addr)
		adv := advanced(p, env.signOrder(t, offerer, p), 3, 2)

		_, err := validate(t, env, adv, false)
		require.ErrorIs(t, err, ErrBadFraction, "numerator exceeds denominator")
	})

	t.Run("partial fill on full-only order", func(t *testing.T) {
		env := newTestEnv(t)
		offerer := newAccount(t)
		p := simpleSwap(offerer, offerer.addr)
		adv := advanced(p, env.signOrder(t, offerer, p), 1, 2)

		_, err := validate(t, env, adv, true)
		require.ErrorIs(t, err, ErrPartialFillsNotEnabledForOrder, "FullOpen rejects partial fills")
	})

	t.Run("shortened consideration is rejected", func(t *testing.T) {
		env := newTestEnv(t)
		offerer := newAccount(t)
		p := simpleSwap(offerer, offerer.addr)
		p.TotalOriginalConsiderationItems = 2
		adv := advanced(p, env.signOrder(t, offerer, p), 1, 1)

		_, err := validate(t, env, adv, true)
		require.ErrorIs(t, err, ErrConsiderationLengthNotEqualToTotalOriginal, "missing consideration item")
	})

	t.Run("bad signature always aborts", func(t *testing.T) {
		env := newTestEnv(t)
		offerer := newAccount(t)
		stranger := newAccount(t)
		p := simpleSwap(offerer, offerer.addr)
		adv := advanced(p, env.signOrder(t, stranger, p), 1, 1)

		_, err := validate(t, env, adv, false)
		require.ErrorIs(t, err, signer.ErrInvalidSignature, "signature from the wrong key")
	})

	t.Run("validated order skips signature check", func(t *testing.T) {
		env := newTestEnv(t)
		offerer := newAccount(t)
		p := simpleSwap(offerer, offerer.addr)
		hash, err := env.engine.OrderHash(p)
		require.NoError(t, err, "deriving hash")
		env.store.statuses[hash] = order.Status{Validated: true}

		adv := advanced(p, []byte("not a signature"), 1, 1)
		wo, err := validate(t, env, adv, true)
		require.NoError(t, err, "validated orders need no signature")
		require.True(t, wo.available(), "order should be available")
	})

	t.Run("cancelled order skips or reverts", func(t *testing.T) {
		env := newTestEnv(t)
		offerer := newAccount(t)
		p := simpleSwap(offerer, offerer.addr)
		hash, err := env.engine.OrderHash(p)
		require.NoError(t, err, "deriving hash")
		env.store.statuses[hash] = order.Status{Cancelled: true}

		adv := advanced(p, env.signOrder(t, offerer, p), 1, 1)
		wo, err := validate(t, env, adv, false)
		require.NoError(t, err, "tolerant mode skips")
		require.False(t, wo.available(), "cancelled order is unavailable")

		_, err = validate(t, env, adv, true)
		require.ErrorIs(t, err, ErrOrderIsCancelled, "strict mode reverts")
	})

	t.Run("fully filled order skips or reverts", func(t *testing.T) {
		env := newTestEnv(t)
		offerer := newAccount(t)
		p := simpleSwap(offerer, offerer.addr)
		p.OrderType = order.PartialOpen
		hash, err := env.engine.OrderHash(p)
		require.NoError(t, err, "deriving hash")
		env.store.statuses[hash] = status(1, 1)

		adv := advanced(p, env.signOrder(t, offerer, p), 1, 2)
		wo, err := validate(t, env, adv, false)
		require.NoError(t, err, "tolerant mode skips")
		require.False(t, wo.available(), "filled order is unavailable")

		_, err = validate(t, env, adv, true)
		require.ErrorIs(t, err, ErrOrderAlreadyFilled, "strict mode reverts")
	})

	t.Run("partial fill caps at remainder", func(t *testing.T) {
		env := newTestEnv(t)
		offerer := newAccount(t)
		p := simpleSwap(offerer, offerer.addr)
		p.OrderType = order.PartialOpen
		p.Offer[0].StartAmount = big.NewInt(1000)
		p.Offer[0].EndAmount = big.NewInt(1000)
		p.Consideration[0].ItemType = order.ERC20
		p.Consideration[0].StartAmount = big.NewInt(10)
		p.Consideration[0].EndAmount = big.NewInt(10)
		hash, err := env.engine.OrderHash(p)
		require.NoError(t, err, "deriving hash")
		env.store.statuses[hash] = status(7, 10)

		adv := advanced(p, env.signOrder(t, offerer, p), 5, 10)
		wo, err := validate(t, env, adv, true)
		require.NoError(t, err, "capped partial fill")
		require.Equal(t, int64(3), wo.numerator.Int64(), "applied numerator capped at remainder")
		require.Equal(t, int64(300), wo.offer[0].amount.Int64(), "offer scaled by capped fraction")
		require.Equal(t, int64(3), wo.consideration[0].amount.Int64(), "consideration scaled by capped fraction")
	})

	t.Run("contract order requires full fraction", func(t *testing.T) {
		env := newTestEnv(t)
		offerer := newAccount(t)
		p := simpleSwap(offerer, offerer.addr)
		p.OrderType = order.Contract
		adv := advanced(p, nil, 1, 2)

		_, err := validate(t, env, adv, true)
		require.ErrorIs(t, err, ErrBadFraction, "contract orders only fill whole")
	})
}

func TestUpdateStatusDetectsCarry(t *testing.T) {
	env := newTestEnv(t)
	offerer := newAccount(t)
	p := simpleSwap(offerer, offerer.addr)
	p.OrderType = order.PartialOpen
	p.Consideration[0].ItemType = order.ERC20
	p.Consideration[0].StartAmount = big.NewInt(10)
	p.Consideration[0].EndAmount = big.NewInt(10)
	sig := env.signOrder(t, offerer, p)

	st := newStateTable(env.store)
	ctx := context.Background()

	// The same 6/10 order twice in one batch: both validate against the
	// unstaged store, but the second status update sees the staged 6/10 and
	// must cap or bail.
	first := &workingOrder{adv: &order.AdvancedOrder{
		Parameters: p, Numerator: big.NewInt(6), Denominator: big.NewInt(10), Signature: sig}}
	second := &workingOrder{adv: &order.AdvancedOrder{
		Parameters: p, Numerator: big.NewInt(6), Denominator: big.NewInt(10), Signature: sig}}

	require.NoError(t, env.engine.validateOrderAndDetermineFraction(ctx, st, first, common.Address{}, true), "first validates")
	require.NoError(t, env.engine.validateOrderAndDetermineFraction(ctx, st, second, common.Address{}, true), "second validates")

	ok, err := env.engine.updateStatus(st, first, false, false)
	require.NoError(t, err, "first update")
	require.True(t, ok, "first fill accepted")

	ok, err = env.engine.updateStatus(st, second, false, false)
	require.NoError(t, err, "tolerant second update")
	require.False(t, ok, "second fill would overfill and is dropped")

	_, err = env.engine.updateStatus(st, second, true, false)
	require.ErrorIs(t, err, ErrOrderAlreadyFilled, "strict second update reverts")

	_, err = env.engine.updateStatus(st, second, false, true)
	require.ErrorIs(t, err, ErrOrderAlreadyFilled, "mandatory revert overrides tolerance")
}

func TestCancel(t *testing.T) {
	t.Run("offerer cancels own orders", func(t *testing.T) {
		env := newTestEnv(t)
		offerer := newAccount(t)
		p := simpleSwap(offerer, offerer.addr)

		hashes, err := env.engine.Cancel(offerer.addr, []order.Components{{Parameters: p, Counter: new(big.Int)}})
		require.NoError(t, err, "offerer cancellation")
		require.Len(t, hashes, 1, "one cancelled hash")

		st, err := env.engine.OrderStatus(hashes[0])
		require.NoError(t, err, "reading status")
		require.True(t, st.Cancelled, "order must be cancelled")
		require.False(t, st.Validated, "cancellation clears validation")
	})

	t.Run("cancelling twice is a harmless no-op", func(t *testing.T) {
		env := newTestEnv(t)
		offerer := newAccount(t)
		p := simpleSwap(offerer, offerer.addr)
		components := []order.Components{{Parameters: p, Counter: new(big.Int)}}

		hashes, err := env.engine.Cancel(offerer.addr, components)
		require.NoError(t, err, "first cancellation")

		again, err := env.engine.Cancel(offerer.addr, components)
		require.NoError(t, err, "repeat cancellation")
		require.Equal(t, hashes, again, "same hashes reported")

		st, err := env.engine.OrderStatus(hashes[0])
		require.NoError(t, err, "reading status")
		require.True(t, st.Cancelled, "order stays cancelled")
		require.False(t, st.Validated, "order stays unvalidated")
	})

	t.Run("zone cancels restricted orders", func(t *testing.T) {
		env := newTestEnv(t)
		offerer := newAccount(t)
		zone := newAccount(t)
		p := simpleSwap(offerer, offerer.addr)
		p.Zone = zone.addr
		p.OrderType = order.FullRestricted

		_, err := env.engine.Cancel(zone.addr, []order.Components{{Parameters: p, Counter: new(big.Int)}})
		require.NoError(t, err, "zone cancellation")
	})

	t.Run("stranger cannot cancel", func(t *testing.T) {
		env := newTestEnv(t)
		offerer := newAccount(t)
		stranger := newAccount(t)
		p := simpleSwap(offerer, offerer.addr)

		_, err := env.engine.Cancel(stranger.addr, []order.Components{{Parameters: p, Counter: new(big.Int)}})
		require.ErrorIs(t, err, ErrCannotCancelOrder, "unauthorized caller")
		require.Zero(t, env.store.applies, "nothing may be written")
	})

	t.Run("contract orders cannot be cancelled", func(t *testing.T) {
		env := newTestEnv(t)
		offerer := newAccount(t)
		p := simpleSwap(offerer, offerer.addr)
		p.OrderType = order.Contract

		_, err := env.engine.Cancel(offerer.addr, []order.Components{{Parameters: p, Counter: new(big.Int)}})
		require.ErrorIs(t, err, ErrCannotCancelOrder, "contract order")
	})

	t.Run("batch checks authorization before touching state", func(t *testing.T) {
		env := newTestEnv(t)
		offerer := newAccount(t)
		other := newAccount(t)
		mine := simpleSwap(offerer, offerer.addr)
		theirs := simpleSwap(other, other.addr)

		_, err := env.engine.Cancel(offerer.addr, []order.Components{
			{Parameters: mine, Counter: new(big.Int)},
			{Parameters: theirs, Counter: new(big.Int)},
		})
		require.ErrorIs(t, err, ErrCannotCancelOrder, "one unauthorized order fails the batch")
		require.Zero(t, env.store.applies, "no partial cancellation")
	})
}

func TestValidate(t *testing.T) {
	t.Run("marks orders validated", func(t *testing.T) {
		env := newTestEnv(t)
		offerer := newAccount(t)
		p := simpleSwap(offerer, offerer.addr)
		sig := env.signOrder(t, offerer, p)

		hashes, err := env.engine.Validate([]order.Order{{Parameters: p, Signature: sig}})
		require.NoError(t, err, "validation")
		require.Len(t, hashes, 1, "one validated hash")

		st, err := env.engine.OrderStatus(hashes[0])
		require.NoError(t, err, "reading status")
		require.True(t, st.Validated, "order must be validated")
	})

	t.Run("bad signature fails", func(t *testing.T) {
		env := newTestEnv(t)
		offerer := newAccount(t)
		stranger := newAccount(t)
		p := simpleSwap(offerer, offerer.addr)

		_, err := env.engine.Validate([]order.Order{{Parameters: p, Signature: env.signOrder(t, stranger, p)}})
		require.ErrorIs(t, err, signer.ErrInvalidSignature, "wrong signer")
	})

	t.Run("cancelled order cannot be validated", func(t *testing.T) {
		env := newTestEnv(t)
		offerer := newAccount(t)
		p := simpleSwap(offerer, offerer.addr)
		_, err := env.engine.Cancel(offerer.addr, []order.Components{{Parameters: p, Counter: new(big.Int)}})
		require.NoError(t, err, "cancelling first")

		_, err = env.engine.Validate([]order.Order{{Parameters: p, Signature: env.signOrder(t, offerer, p)}})
		require.ErrorIs(t, err, ErrOrderIsCancelled, "cancellation is terminal")
	})

	t.Run("already validated orders are skipped", func(t *testing.T) {
		env := newTestEnv(t)
		offerer := newAccount(t)
		p := simpleSwap(offerer, offerer.addr)
		sig := env.signOrder(t, offerer, p)

		_, err := env.engine.Validate([]order.Order{{Parameters: p, Signature: sig}})
		require.NoError(t, err, "first validation")

		hashes, err := env.engine.Validate([]order.Order{{Parameters: p, Signature: sig}})
		require.NoError(t, err, "second validation")
		require.Empty(t, hashes, "nothing newly validated")
	})
}

func TestIncrementCounterInvalidatesOrders(t *testing.T) {
	env := newTestEnv(t)
	offerer := newAccount(t)
	p := simpleSwap(offerer, offerer.addr)

	before, err := env.engine.OrderHash(p)
	require.NoError(t, err, "hash before bump")

	c, err := env.engine.IncrementCounter(offerer.addr)
	require.NoError(t, err, "bumping counter")
	require.Equal(t, int64(1), c.Int64(), "counter advances by one")

	after, err := env.engine.OrderHash(p)
	require.NoError(t, err, "hash after bump")
	require.NotEqual(t, before, after, "counter bump changes every order hash")
}
