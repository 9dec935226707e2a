package rpc

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/marinerlabs/goseaport/internal/core/order"
	"github.com/marinerlabs/goseaport/internal/core/settle"
)

// Wire types. Amounts, identifiers and times travel as decimal strings so
// 256-bit values survive JSON; addresses and hashes are 0x-prefixed hex.

type OfferItemJSON struct {
	ItemType             uint8  `json:"itemType"`
	Token                string `json:"token"`
	IdentifierOrCriteria string `json:"identifierOrCriteria"`
	StartAmount          string `json:"startAmount"`
	EndAmount            string `json:"endAmount"`
}

type ConsiderationItemJSON struct {
	ItemType             uint8  `json:"itemType"`
	Token                string `json:"token"`
	IdentifierOrCriteria string `json:"identifierOrCriteria"`
	StartAmount          string `json:"startAmount"`
	EndAmount            string `json:"endAmount"`
	Recipient            string `json:"recipient"`
}

type ParametersJSON struct {
	Offerer                         string                  `json:"offerer"`
	Zone                            string                  `json:"zone,omitempty"`
	Offer                           []OfferItemJSON         `json:"offer"`
	Consideration                   []ConsiderationItemJSON `json:"consideration"`
	OrderType                       uint8                   `json:"orderType"`
	StartTime                       string                  `json:"startTime"`
	EndTime                         string                  `json:"endTime"`
	ZoneHash                        string                  `json:"zoneHash,omitempty"`
	Salt                            string                  `json:"salt,omitempty"`
	ConduitKey                      string                  `json:"conduitKey,omitempty"`
	TotalOriginalConsiderationItems uint64                  `json:"totalOriginalConsiderationItems"`
}

type AdvancedOrderJSON struct {
	Parameters  ParametersJSON `json:"parameters"`
	Numerator   string         `json:"numerator"`
	Denominator string         `json:"denominator"`
	Signature   hexutil.Bytes  `json:"signature,omitempty"`
	ExtraData   hexutil.Bytes  `json:"extraData,omitempty"`
}

type OrderJSON struct {
	Parameters ParametersJSON `json:"parameters"`
	Signature  hexutil.Bytes  `json:"signature,omitempty"`
}

type ComponentsJSON struct {
	Parameters ParametersJSON `json:"parameters"`
	Counter    string         `json:"counter"`
}

type CriteriaResolverJSON struct {
	OrderIndex uint64   `json:"orderIndex"`
	Side       uint8    `json:"side"`
	Index      uint64   `json:"index"`
	Identifier string   `json:"identifier"`
	Proof      []string `json:"proof,omitempty"`
}

type FulfillmentComponentJSON struct {
	OrderIndex uint64 `json:"orderIndex"`
	ItemIndex  uint64 `json:"itemIndex"`
}

type FulfillmentJSON struct {
	OfferComponents         []FulfillmentComponentJSON `json:"offerComponents"`
	ConsiderationComponents []FulfillmentComponentJSON `json:"considerationComponents"`
}

type ExecutionJSON struct {
	ItemType   uint8  `json:"itemType"`
	Token      string `json:"token"`
	Identifier string `json:"identifier"`
	Amount     string `json:"amount"`
	Recipient  string `json:"recipient"`
	Offerer    string `json:"offerer"`
	ConduitKey string `json:"conduitKey,omitempty"`
}

type SettleResponse struct {
	OrderHashes  []string        `json:"orderHashes"`
	Available    []bool          `json:"available"`
	Executions   []ExecutionJSON `json:"executions"`
	NativeRefund string          `json:"nativeRefund"`
}

func parseBig(field, s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%s: invalid decimal integer %q", field, s)
	}
	return v, nil
}

func (j *ParametersJSON) toParameters() (order.Parameters, error) {
	var p order.Parameters
	var err error

	p.Offerer = common.HexToAddress(j.Offerer)
	p.Zone = common.HexToAddress(j.Zone)
	p.OrderType = order.OrderType(j.OrderType)
	p.ZoneHash = common.HexToHash(j.ZoneHash)
	p.ConduitKey = common.HexToHash(j.ConduitKey)
	p.TotalOriginalConsiderationItems = j.TotalOriginalConsiderationItems

	if p.StartTime, err = parseBig("startTime", j.StartTime); err != nil {
		return p, err
	}
	if p.EndTime, err = parseBig("endTime", j.EndTime); err != nil {
		return p, err
	}
	if p.Salt, err = parseBig("salt", j.Salt); err != nil {
		return p, err
	}

	p.Offer = make([]order.OfferItem, len(j.Offer))
	for i, item := range j.Offer {
		p.Offer[i].ItemType = order.ItemType(item.ItemType)
		p.Offer[i].Token = common.HexToAddress(item.Token)
		if p.Offer[i].IdentifierOrCriteria, err = parseBig("offer identifierOrCriteria", item.IdentifierOrCriteria); err != nil {
			return p, err
		}
		if p.Offer[i].StartAmount, err = parseBig("offer startAmount", item.StartAmount); err != nil {
			return p, err
		}
		if p.Offer[i].EndAmount, err = parseBig("offer endAmount", item.EndAmount); err != nil {
			return p, err
		}
	}

	p.Consideration = make([]order.ConsiderationItem, len(j.Consideration))
	for i, item := range j.Consideration {
		p.Consideration[i].ItemType = order.ItemType(item.ItemType)
		p.Consideration[i].Token = common.HexToAddress(item.Token)
		p.Consideration[i].Recipient = common.HexToAddress(item.Recipient)
		if p.Consideration[i].IdentifierOrCriteria, err = parseBig("consideration identifierOrCriteria", item.IdentifierOrCriteria); err != nil {
			return p, err
		}
		if p.Consideration[i].StartAmount, err = parseBig("consideration startAmount", item.StartAmount); err != nil {
			return p, err
		}
		if p.Consideration[i].EndAmount, err = parseBig("consideration endAmount", item.EndAmount); err != nil {
			return p, err
		}
	}

	return p, nil
}

func (j *AdvancedOrderJSON) toAdvancedOrder() (order.AdvancedOrder, error) {
	var adv order.AdvancedOrder
	var err error

	if adv.Parameters, err = j.Parameters.toParameters(); err != nil {
		return adv, err
	}
	if adv.Numerator, err = parseBig("numerator", j.Numerator); err != nil {
		return adv, err
	}
	if adv.Denominator, err = parseBig("denominator", j.Denominator); err != nil {
		return adv, err
	}
	adv.Signature = j.Signature
	adv.ExtraData = j.ExtraData
	return adv, nil
}

func toAdvancedOrders(in []AdvancedOrderJSON) ([]order.AdvancedOrder, error) {
	out := make([]order.AdvancedOrder, len(in))
	for i := range in {
		adv, err := in[i].toAdvancedOrder()
		if err != nil {
			return nil, fmt.Errorf("order %d: %w", i, err)
		}
		out[i] = adv
	}
	return out, nil
}

func toOrders(in []OrderJSON) ([]order.Order, error) {
	out := make([]order.Order, len(in))
	for i := range in {
		p, err := in[i].Parameters.toParameters()
		if err != nil {
			return nil, fmt.Errorf("order %d: %w", i, err)
		}
		out[i] = order.Order{Parameters: p, Signature: in[i].Signature}
	}
	return out, nil
}

func toComponentsList(in []ComponentsJSON) ([]order.Components, error) {
	out := make([]order.Components, len(in))
	for i := range in {
		p, err := in[i].Parameters.toParameters()
		if err != nil {
			return nil, fmt.Errorf("order %d: %w", i, err)
		}
		counter, err := parseBig("counter", in[i].Counter)
		if err != nil {
			return nil, fmt.Errorf("order %d: %w", i, err)
		}
		out[i] = order.Components{Parameters: p, Counter: counter}
	}
	return out, nil
}

func toResolvers(in []CriteriaResolverJSON) ([]order.CriteriaResolver, error) {
	out := make([]order.CriteriaResolver, len(in))
	for i, r := range in {
		id, err := parseBig("resolver identifier", r.Identifier)
		if err != nil {
			return nil, err
		}
		proof := make([]common.Hash, len(r.Proof))
		for k, h := range r.Proof {
			proof[k] = common.HexToHash(h)
		}
		out[i] = order.CriteriaResolver{
			OrderIndex: r.OrderIndex,
			Side:       order.Side(r.Side),
			Index:      r.Index,
			Identifier: id,
			Proof:      proof,
		}
	}
	return out, nil
}

func toComponents(in []FulfillmentComponentJSON) []order.FulfillmentComponent {
	out := make([]order.FulfillmentComponent, len(in))
	for i, c := range in {
		out[i] = order.FulfillmentComponent{OrderIndex: c.OrderIndex, ItemIndex: c.ItemIndex}
	}
	return out
}

func toComponentGroups(in [][]FulfillmentComponentJSON) [][]order.FulfillmentComponent {
	out := make([][]order.FulfillmentComponent, len(in))
	for i, group := range in {
		out[i] = toComponents(group)
	}
	return out
}

func toFulfillments(in []FulfillmentJSON) []order.Fulfillment {
	out := make([]order.Fulfillment, len(in))
	for i, f := range in {
		out[i] = order.Fulfillment{
			OfferComponents:         toComponents(f.OfferComponents),
			ConsiderationComponents: toComponents(f.ConsiderationComponents),
		}
	}
	return out
}

func settleResponse(res *settle.Result) SettleResponse {
	out := SettleResponse{
		OrderHashes:  make([]string, len(res.OrderHashes)),
		Available:    res.Available,
		Executions:   make([]ExecutionJSON, len(res.Executions)),
		NativeRefund: res.NativeRefund.String(),
	}
	for i, h := range res.OrderHashes {
		out.OrderHashes[i] = h.Hex()
	}
	for i := range res.Executions {
		e := &res.Executions[i]
		out.Executions[i] = ExecutionJSON{
			ItemType:   uint8(e.Item.ItemType),
			Token:      e.Item.Token.Hex(),
			Identifier: e.Item.Identifier.String(),
			Amount:     e.Item.Amount.String(),
			Recipient:  e.Item.Recipient.Hex(),
			Offerer:    e.Offerer.Hex(),
		}
		if e.ConduitKey != (common.Hash{}) {
			out.Executions[i].ConduitKey = e.ConduitKey.Hex()
		}
	}
	return out
}
