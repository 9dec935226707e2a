package rpc

import (
	"encoding/json"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/marinerlabs/goseaport/internal/core/settle"
)

// SettlementHandler handles the state-changing settlement endpoints.
type SettlementHandler struct {
	engine Settler
	logger *zap.Logger
}

// NewSettlementHandler creates a new SettlementHandler.
func NewSettlementHandler(engine Settler, logger *zap.Logger) *SettlementHandler {
	return &SettlementHandler{engine: engine, logger: logger}
}

// FulfillOrderRequest is the body of POST /api/orders/fulfill.
type FulfillOrderRequest struct {
	Order               AdvancedOrderJSON      `json:"order"`
	Resolvers           []CriteriaResolverJSON `json:"criteriaResolvers,omitempty"`
	Fulfiller           string                 `json:"fulfiller"`
	Recipient           string                 `json:"recipient,omitempty"`
	FulfillerConduitKey string                 `json:"fulfillerConduitKey,omitempty"`
	NativeValue         string                 `json:"nativeValue,omitempty"`
}

// FulfillOrder handles POST /api/orders/fulfill
func (h *SettlementHandler) FulfillOrder(w http.ResponseWriter, r *http.Request) {
	var req FulfillOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(h.logger, w, http.StatusBadRequest, "invalid_request_body", "Invalid JSON in request body")
		return
	}

	if req.Fulfiller == "" {
		writeErrorResponse(h.logger, w, http.StatusBadRequest, "missing_fulfiller", "Fulfiller address is required")
		return
	}

	adv, err := req.Order.toAdvancedOrder()
	if err != nil {
		writeErrorResponse(h.logger, w, http.StatusBadRequest, "invalid_order", err.Error())
		return
	}
	resolvers, err := toResolvers(req.Resolvers)
	if err != nil {
		writeErrorResponse(h.logger, w, http.StatusBadRequest, "invalid_resolvers", err.Error())
		return
	}
	nativeValue, err := parseBig("nativeValue", req.NativeValue)
	if err != nil {
		writeErrorResponse(h.logger, w, http.StatusBadRequest, "invalid_native_value", err.Error())
		return
	}

	result, err := h.engine.FulfillOrder(r.Context(), settle.FulfillOrderRequest{
		Order:               adv,
		Resolvers:           resolvers,
		Fulfiller:           common.HexToAddress(req.Fulfiller),
		Recipient:           common.HexToAddress(req.Recipient),
		FulfillerConduitKey: common.HexToHash(req.FulfillerConduitKey),
		NativeValue:         nativeValue,
	})
	if err != nil {
		writeSettleError(h.logger, w, err)
		return
	}

	writeJSONResponse(h.logger, w, http.StatusOK, settleResponse(result))
}

// FulfillAvailableRequest is the body of POST /api/orders/fulfill-available.
type FulfillAvailableRequest struct {
	Orders                    []AdvancedOrderJSON          `json:"orders"`
	Resolvers                 []CriteriaResolverJSON       `json:"criteriaResolvers,omitempty"`
	OfferFulfillments         [][]FulfillmentComponentJSON `json:"offerFulfillments"`
	ConsiderationFulfillments [][]FulfillmentComponentJSON `json:"considerationFulfillments"`
	Fulfiller                 string                       `json:"fulfiller"`
	Recipient                 string                       `json:"recipient,omitempty"`
	FulfillerConduitKey       string                       `json:"fulfillerConduitKey,omitempty"`
	MaximumFulfilled          uint64                       `json:"maximumFulfilled,omitempty"`
	NativeValue               string                       `json:"nativeValue,omitempty"`
}

// FulfillAvailableOrders handles POST /api/orders/fulfill-available
func (h *SettlementHandler) FulfillAvailableOrders(w http.ResponseWriter, r *http.Request) {
	var req FulfillAvailableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(h.logger, w, http.StatusBadRequest, "invalid_request_body", "Invalid JSON in request body")
		return
	}

	if req.Fulfiller == "" {
		writeErrorResponse(h.logger, w, http.StatusBadRequest, "missing_fulfiller", "Fulfiller address is required")
		return
	}
	if len(req.Orders) == 0 {
		writeErrorResponse(h.logger, w, http.StatusBadRequest, "missing_orders", "At least one order is required")
		return
	}

	orders, err := toAdvancedOrders(req.Orders)
	if err != nil {
		writeErrorResponse(h.logger, w, http.StatusBadRequest, "invalid_order", err.Error())
		return
	}
	resolvers, err := toResolvers(req.Resolvers)
	if err != nil {
		writeErrorResponse(h.logger, w, http.StatusBadRequest, "invalid_resolvers", err.Error())
		return
	}
	nativeValue, err := parseBig("nativeValue", req.NativeValue)
	if err != nil {
		writeErrorResponse(h.logger, w, http.StatusBadRequest, "invalid_native_value", err.Error())
		return
	}

	result, err := h.engine.FulfillAvailableOrders(r.Context(), settle.FulfillAvailableRequest{
		Orders:                    orders,
		Resolvers:                 resolvers,
		OfferFulfillments:         toComponentGroups(req.OfferFulfillments),
		ConsiderationFulfillments: toComponentGroups(req.ConsiderationFulfillments),
		Fulfiller:                 common.HexToAddress(req.Fulfiller),
		Recipient:                 common.HexToAddress(req.Recipient),
		FulfillerConduitKey:       common.HexToHash(req.FulfillerConduitKey),
		MaximumFulfilled:          req.MaximumFulfilled,
		NativeValue:               nativeValue,
	})
	if err != nil {
		writeSettleError(h.logger, w, err)
		return
	}

	writeJSONResponse(h.logger, w, http.StatusOK, settleResponse(result))
}

// MatchOrdersRequest is the body of POST /api/orders/match.
type MatchOrdersRequest struct {
	Orders       []AdvancedOrderJSON    `json:"orders"`
	Resolvers    []CriteriaResolverJSON `json:"criteriaResolvers,omitempty"`
	Fulfillments []FulfillmentJSON      `json:"fulfillments"`
	Fulfiller    string                 `json:"fulfiller"`
	Recipient    string                 `json:"recipient,omitempty"`
	NativeValue  string                 `json:"nativeValue,omitempty"`
}

// MatchOrders handles POST /api/orders/match
func (h *SettlementHandler) MatchOrders(w http.ResponseWriter, r *http.Request) {
	var req MatchOrdersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(h.logger, w, http.StatusBadRequest, "invalid_request_body", "Invalid JSON in request body")
		return
	}

	if req.Fulfiller == "" {
		writeErrorResponse(h.logger, w, http.StatusBadRequest, "missing_fulfiller", "Fulfiller address is required")
		return
	}
	if len(req.Orders) == 0 {
		writeErrorResponse(h.logger, w, http.StatusBadRequest, "missing_orders", "At least one order is required")
		return
	}

	orders, err := toAdvancedOrders(req.Orders)
	if err != nil {
		writeErrorResponse(h.logger, w, http.StatusBadRequest, "invalid_order", err.Error())
		return
	}
	resolvers, err := toResolvers(req.Resolvers)
	if err != nil {
		writeErrorResponse(h.logger, w, http.StatusBadRequest, "invalid_resolvers", err.Error())
		return
	}
	nativeValue, err := parseBig("nativeValue", req.NativeValue)
	if err != nil {
		writeErrorResponse(h.logger, w, http.StatusBadRequest, "invalid_native_value", err.Error())
		return
	}

	result, err := h.engine.MatchOrders(r.Context(), settle.MatchRequest{
		Orders:       orders,
		Resolvers:    resolvers,
		Fulfillments: toFulfillments(req.Fulfillments),
		Fulfiller:    common.HexToAddress(req.Fulfiller),
		Recipient:    common.HexToAddress(req.Recipient),
		NativeValue:  nativeValue,
	})
	if err != nil {
		writeSettleError(h.logger, w, err)
		return
	}

	writeJSONResponse(h.logger, w, http.StatusOK, settleResponse(result))
}

// CancelRequest is the body of POST /api/orders/cancel.
type CancelRequest struct {
	Caller string           `json:"caller"`
	Orders []ComponentsJSON `json:"orders"`
}

// HashListResponse reports the order hashes touched by a cancel or validate.
type HashListResponse struct {
	OrderHashes []string `json:"orderHashes"`
}

// Cancel handles POST /api/orders/cancel
func (h *SettlementHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(h.logger, w, http.StatusBadRequest, "invalid_request_body", "Invalid JSON in request body")
		return
	}

	if req.Caller == "" {
		writeErrorResponse(h.logger, w, http.StatusBadRequest, "missing_caller", "Caller address is required")
		return
	}

	components, err := toComponentsList(req.Orders)
	if err != nil {
		writeErrorResponse(h.logger, w, http.StatusBadRequest, "invalid_order", err.Error())
		return
	}

	hashes, err := h.engine.Cancel(common.HexToAddress(req.Caller), components)
	if err != nil {
		writeSettleError(h.logger, w, err)
		return
	}

	writeJSONResponse(h.logger, w, http.StatusOK, hashListResponse(hashes))
}

// ValidateRequest is the body of POST /api/orders/validate.
type ValidateRequest struct {
	Orders []OrderJSON `json:"orders"`
}

// Validate handles POST /api/orders/validate
func (h *SettlementHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(h.logger, w, http.StatusBadRequest, "invalid_request_body", "Invalid JSON in request body")
		return
	}

	orders, err := toOrders(req.Orders)
	if err != nil {
		writeErrorResponse(h.logger, w, http.StatusBadRequest, "invalid_order", err.Error())
		return
	}

	hashes, err := h.engine.Validate(orders)
	if err != nil {
		writeSettleError(h.logger, w, err)
		return
	}

	writeJSONResponse(h.logger, w, http.StatusOK, hashListResponse(hashes))
}

func hashListResponse(hashes []common.Hash) HashListResponse {
	out := HashListResponse{OrderHashes: make([]string, len(hashes))}
	for i, h := range hashes {
		out.OrderHashes[i] = h.Hex()
	}
	return out
}
