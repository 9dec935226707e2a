package settle

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/marinerlabs/goseaport/internal/core/order"
)

// workingERC20Order builds an available working order offering offerAmount
// of tokenA and asking askAmount of tokenB for the given offerer.
func workingERC20Order(offerer common.Address, offerToken common.Address, offerAmount int64,
	askToken common.Address, askAmount int64, payee common.Address) *workingOrder {
	return &workingOrder{
		adv: &order.AdvancedOrder{Parameters: order.Parameters{
			Offerer:   offerer,
			OrderType: order.FullOpen,
		}},
		numerator:   big.NewInt(1),
		denominator: big.NewInt(1),
		offer: []resolvedItem{{
			itemType:   order.ERC20,
			token:      offerToken,
			identifier: new(big.Int),
			amount:     big.NewInt(offerAmount),
			remaining:  big.NewInt(offerAmount),
		}},
		consideration: []resolvedItem{{
			itemType:   order.ERC20,
			token:      askToken,
			identifier: new(big.Int),
			amount:     big.NewInt(askAmount),
			remaining:  big.NewInt(askAmount),
			recipient:  payee,
		}},
	}
}

var (
	tokenA = common.HexToAddress("0xaa")
	tokenB = common.HexToAddress("0xbb")
	alice  = common.HexToAddress("0xa11ce")
	bob    = common.HexToAddress("0xb0b")
	carol  = common.HexToAddress("0xca401")
)

func TestAggregateOfferComponents(t *testing.T) {
	t.Run("sums matching items across orders", func(t *testing.T) {
		orders := []*workingOrder{
			workingERC20Order(alice, tokenA, 100, tokenB, 50, alice),
			workingERC20Order(alice, tokenA, 200, tokenB, 100, alice),
		}
		agg, err := aggregateOfferComponents(orders, []order.FulfillmentComponent{
			{OrderIndex: 0, ItemIndex: 0},
			{OrderIndex: 1, ItemIndex: 0},
		})
		require.NoError(t, err, "aggregating same offerer and token")
		require.Equal(t, int64(300), agg.total.Int64(), "summed amount")
		require.Zero(t, orders[0].offer[0].remaining.Sign(), "first item drained")
		require.Zero(t, orders[1].offer[0].remaining.Sign(), "second item drained")
	})

	t.Run("different offerers cannot aggregate", func(t *testing.T) {
		orders := []*workingOrder{
			workingERC20Order(alice, tokenA, 100, tokenB, 50, alice),
			workingERC20Order(bob, tokenA, 200, tokenB, 100, bob),
		}
		_, err := aggregateOfferComponents(orders, []order.FulfillmentComponent{
			{OrderIndex: 0, ItemIndex: 0},
			{OrderIndex: 1, ItemIndex: 0},
		})
		require.ErrorIs(t, err, ErrMismatchedComponents, "offer aggregation is per offerer")
	})

	t.Run("different tokens cannot aggregate", func(t *testing.T) {
		orders := []*workingOrder{
			workingERC20Order(alice, tokenA, 100, tokenB, 50, alice),
			workingERC20Order(alice, tokenB, 200, tokenA, 100, alice),
		}
		_, err := aggregateOfferComponents(orders, []order.FulfillmentComponent{
			{OrderIndex: 0, ItemIndex: 0},
			{OrderIndex: 1, ItemIndex: 0},
		})
		require.ErrorIs(t, err, ErrMismatchedComponents, "token identity must match")
	})

	t.Run("unavailable and out-of-range components are skipped", func(t *testing.T) {
		skipped := workingERC20Order(bob, tokenA, 999, tokenB, 1, bob)
		skipped.skip()
		orders := []*workingOrder{
			workingERC20Order(alice, tokenA, 100, tokenB, 50, alice),
			skipped,
		}
		agg, err := aggregateOfferComponents(orders, []order.FulfillmentComponent{
			{OrderIndex: 0, ItemIndex: 0},
			{OrderIndex: 1, ItemIndex: 0},
			{OrderIndex: 7, ItemIndex: 0},
			{OrderIndex: 0, ItemIndex: 9},
		})
		require.NoError(t, err, "invalid components are ignored")
		require.Equal(t, int64(100), agg.total.Int64(), "only the valid component counts")
	})
}

func TestAggregateConsiderationComponents(t *testing.T) {
	t.Run("different recipients cannot aggregate", func(t *testing.T) {
		orders := []*workingOrder{
			workingERC20Order(alice, tokenA, 100, tokenB, 50, alice),
			workingERC20Order(bob, tokenA, 100, tokenB, 50, carol),
		}
		_, err := aggregateConsiderationComponents(orders, []order.FulfillmentComponent{
			{OrderIndex: 0, ItemIndex: 0},
			{OrderIndex: 1, ItemIndex: 0},
		})
		require.ErrorIs(t, err, ErrMismatchedComponents, "consideration aggregation is per recipient")
	})

	t.Run("matching recipients sum", func(t *testing.T) {
		orders := []*workingOrder{
			workingERC20Order(alice, tokenA, 100, tokenB, 50, carol),
			workingERC20Order(bob, tokenA, 100, tokenB, 70, carol),
		}
		agg, err := aggregateConsiderationComponents(orders, []order.FulfillmentComponent{
			{OrderIndex: 0, ItemIndex: 0},
			{OrderIndex: 1, ItemIndex: 0},
		})
		require.NoError(t, err, "same token and recipient")
		require.Equal(t, int64(120), agg.total.Int64(), "summed amount")
	})
}

func TestAggregateAvailable(t *testing.T) {
	t.Run("offer side pays offerer to recipient", func(t *testing.T) {
		orders := []*workingOrder{workingERC20Order(alice, tokenA, 100, tokenB, 50, alice)}
		exec, err := aggregateAvailable(orders, order.SideOffer,
			[]order.FulfillmentComponent{{OrderIndex: 0, ItemIndex: 0}},
			carol, bob, common.Hash{})
		require.NoError(t, err, "offer-side aggregation")
		require.Equal(t, alice, exec.Offerer, "offerer pays")
		require.Equal(t, carol, exec.Item.Recipient, "recipient receives")
		require.Equal(t, int64(100), exec.Item.Amount.Int64(), "full offer amount")
	})

	t.Run("consideration side pays fulfiller to item recipient", func(t *testing.T) {
		orders := []*workingOrder{workingERC20Order(alice, tokenA, 100, tokenB, 50, alice)}
		conduit := common.HexToHash("0xc0")
		exec, err := aggregateAvailable(orders, order.SideConsideration,
			[]order.FulfillmentComponent{{OrderIndex: 0, ItemIndex: 0}},
			carol, bob, conduit)
		require.NoError(t, err, "consideration-side aggregation")
		require.Equal(t, bob, exec.Offerer, "fulfiller pays")
		require.Equal(t, alice, exec.Item.Recipient, "item recipient receives")
		require.Equal(t, conduit, exec.ConduitKey, "fulfiller conduit used")
		require.Equal(t, int64(50), exec.Item.Amount.Int64(), "full consideration amount")
	})

	t.Run("empty group yields zero execution", func(t *testing.T) {
		orders := []*workingOrder{workingERC20Order(alice, tokenA, 100, tokenB, 50, alice)}
		orders[0].skip()
		exec, err := aggregateAvailable(orders, order.SideOffer,
			[]order.FulfillmentComponent{{OrderIndex: 0, ItemIndex: 0}},
			carol, bob, common.Hash{})
		require.NoError(t, err, "empty group is not an error")
		require.Zero(t, exec.Item.Amount.Sign(), "zero amount to be dropped")
	})
}

func TestApplyFulfillment(t *testing.T) {
	t.Run("moves the lesser amount and credits offer excess", func(t *testing.T) {
		// Alice offers 100 tokenA; Bob's order wants 60 tokenA.
		a := workingERC20Order(alice, tokenA, 100, tokenB, 50, alice)
		b := workingERC20Order(bob, tokenB, 50, tokenA, 60, bob)
		orders := []*workingOrder{a, b}

		exec, err := applyFulfillment(orders, order.Fulfillment{
			OfferComponents:         []order.FulfillmentComponent{{OrderIndex: 0, ItemIndex: 0}},
			ConsiderationComponents: []order.FulfillmentComponent{{OrderIndex: 1, ItemIndex: 0}},
		})
		require.NoError(t, err, "matched fulfillment")
		require.Equal(t, int64(60), exec.Item.Amount.Int64(), "lesser of the two totals")
		require.Equal(t, alice, exec.Offerer, "offer side pays")
		require.Equal(t, bob, exec.Item.Recipient, "consideration recipient receives")
		require.Equal(t, int64(40), a.offer[0].remaining.Int64(), "offer excess credited back")
		require.Zero(t, b.consideration[0].remaining.Sign(), "consideration fully covered")
	})

	t.Run("consideration excess stays outstanding", func(t *testing.T) {
		a := workingERC20Order(alice, tokenA, 40, tokenB, 50, alice)
		b := workingERC20Order(bob, tokenB, 50, tokenA, 60, bob)
		orders := []*workingOrder{a, b}

		exec, err := applyFulfillment(orders, order.Fulfillment{
			OfferComponents:         []order.FulfillmentComponent{{OrderIndex: 0, ItemIndex: 0}},
			ConsiderationComponents: []order.FulfillmentComponent{{OrderIndex: 1, ItemIndex: 0}},
		})
		require.NoError(t, err, "matched fulfillment")
		require.Equal(t, int64(40), exec.Item.Amount.Int64(), "lesser of the two totals")
		require.Equal(t, int64(20), b.consideration[0].remaining.Int64(), "shortfall left for a later fulfillment")
	})

	t.Run("mismatched sides fail", func(t *testing.T) {
		a := workingERC20Order(alice, tokenA, 100, tokenB, 50, alice)
		b := workingERC20Order(bob, tokenB, 50, tokenB, 60, bob)
		orders := []*workingOrder{a, b}

		_, err := applyFulfillment(orders, order.Fulfillment{
			OfferComponents:         []order.FulfillmentComponent{{OrderIndex: 0, ItemIndex: 0}},
			ConsiderationComponents: []order.FulfillmentComponent{{OrderIndex: 1, ItemIndex: 0}},
		})
		require.ErrorIs(t, err, ErrMismatchedComponents, "offer token must match consideration token")
	})
}
