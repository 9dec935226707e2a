package rpc

import (
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/marinerlabs/goseaport/internal/storage/history"
)

// OrderHandler handles the read-only order, counter and fill endpoints.
type OrderHandler struct {
	engine   Settler
	statuses StatusReader
	fills    FillReader
	logger   *zap.Logger
}

// NewOrderHandler creates a new OrderHandler. fills may be nil when no
// history store is configured.
func NewOrderHandler(engine Settler, statuses StatusReader, fills FillReader, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{engine: engine, statuses: statuses, fills: fills, logger: logger}
}

// OrderStatusResponse reports the stored fill state of one order hash.
type OrderStatusResponse struct {
	OrderHash   string `json:"orderHash"`
	Validated   bool   `json:"validated"`
	Cancelled   bool   `json:"cancelled"`
	Numerator   string `json:"numerator"`
	Denominator string `json:"denominator"`
	FullyFilled bool   `json:"fullyFilled"`
}

// CounterResponse reports an offerer's signing counter.
type CounterResponse struct {
	Offerer string `json:"offerer"`
	Counter string `json:"counter"`
}

// FillsResponse wraps a list of historical fills.
type FillsResponse struct {
	Fills []history.Fill `json:"fills"`
}

// GetOrderStatus handles GET /api/orders/{order_hash}/status
func (h *OrderHandler) GetOrderStatus(w http.ResponseWriter, r *http.Request) {
	hash, ok := h.orderHash(w, r)
	if !ok {
		return
	}

	status, err := h.statuses.OrderStatus(hash)
	if err != nil {
		h.logger.Error("Failed to read order status", zap.String("order_hash", hash.Hex()), zap.Error(err))
		writeErrorResponse(h.logger, w, http.StatusInternalServerError, "storage_error", "Failed to read order status")
		return
	}

	resp := OrderStatusResponse{
		OrderHash:   hash.Hex(),
		Validated:   status.Validated,
		Cancelled:   status.Cancelled,
		Numerator:   "0",
		Denominator: "0",
		FullyFilled: status.IsFullyFilled(),
	}
	if status.Numerator != nil {
		resp.Numerator = status.Numerator.String()
	}
	if status.Denominator != nil {
		resp.Denominator = status.Denominator.String()
	}

	writeJSONResponse(h.logger, w, http.StatusOK, resp)
}

// GetOrderFills handles GET /api/orders/{order_hash}/fills
func (h *OrderHandler) GetOrderFills(w http.ResponseWriter, r *http.Request) {
	if h.fills == nil {
		writeErrorResponse(h.logger, w, http.StatusNotFound, "history_disabled", "Fill history is not enabled")
		return
	}

	hash, ok := h.orderHash(w, r)
	if !ok {
		return
	}

	fills, err := h.fills.FillsForOrder(r.Context(), hash)
	if err != nil {
		h.logger.Error("Failed to query order fills", zap.String("order_hash", hash.Hex()), zap.Error(err))
		writeErrorResponse(h.logger, w, http.StatusInternalServerError, "storage_error", "Failed to query order fills")
		return
	}

	writeJSONResponse(h.logger, w, http.StatusOK, FillsResponse{Fills: fills})
}

const defaultRecentFillsLimit = 50

// GetRecentFills handles GET /api/fills/recent?limit=
func (h *OrderHandler) GetRecentFills(w http.ResponseWriter, r *http.Request) {
	if h.fills == nil {
		writeErrorResponse(h.logger, w, http.StatusNotFound, "history_disabled", "Fill history is not enabled")
		return
	}

	limit := defaultRecentFillsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeErrorResponse(h.logger, w, http.StatusBadRequest, "invalid_limit", "Limit must be a positive integer")
			return
		}
		limit = parsed
	}

	fills, err := h.fills.RecentFills(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to query recent fills", zap.Error(err))
		writeErrorResponse(h.logger, w, http.StatusInternalServerError, "storage_error", "Failed to query recent fills")
		return
	}

	writeJSONResponse(h.logger, w, http.StatusOK, FillsResponse{Fills: fills})
}

// GetCounter handles GET /api/counters/{offerer}
func (h *OrderHandler) GetCounter(w http.ResponseWriter, r *http.Request) {
	offerer, ok := h.offerer(w, r)
	if !ok {
		return
	}

	counter, err := h.engine.Counter(offerer)
	if err != nil {
		h.logger.Error("Failed to read counter", zap.String("offerer", offerer.Hex()), zap.Error(err))
		writeErrorResponse(h.logger, w, http.StatusInternalServerError, "storage_error", "Failed to read counter")
		return
	}

	writeJSONResponse(h.logger, w, http.StatusOK, CounterResponse{
		Offerer: offerer.Hex(),
		Counter: counter.String(),
	})
}

// IncrementCounter handles POST /api/counters/{offerer}/increment
func (h *OrderHandler) IncrementCounter(w http.ResponseWriter, r *http.Request) {
	offerer, ok := h.offerer(w, r)
	if !ok {
		return
	}

	counter, err := h.engine.IncrementCounter(offerer)
	if err != nil {
		h.logger.Error("Failed to increment counter", zap.String("offerer", offerer.Hex()), zap.Error(err))
		writeErrorResponse(h.logger, w, http.StatusInternalServerError, "storage_error", "Failed to increment counter")
		return
	}

	writeJSONResponse(h.logger, w, http.StatusOK, CounterResponse{
		Offerer: offerer.Hex(),
		Counter: counter.String(),
	})
}

func (h *OrderHandler) orderHash(w http.ResponseWriter, r *http.Request) (common.Hash, bool) {
	raw := mux.Vars(r)["order_hash"]
	if !isHexHash(raw) {
		writeErrorResponse(h.logger, w, http.StatusBadRequest, "invalid_order_hash", "Order hash must be a 32-byte hex string")
		return common.Hash{}, false
	}
	return common.HexToHash(raw), true
}

func (h *OrderHandler) offerer(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	raw := mux.Vars(r)["offerer"]
	if !common.IsHexAddress(raw) {
		writeErrorResponse(h.logger, w, http.StatusBadRequest, "invalid_offerer", "Offerer must be a 20-byte hex address")
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

func isHexHash(s string) bool {
	if len(s) == 2+2*common.HashLength && (s[:2] == "0x" || s[:2] == "0X") {
		s = s[2:]
	}
	if len(s) != 2*common.HashLength {
		return false
	}
	for _, c := range []byte(s) {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
