package rpc

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/marinerlabs/goseaport/internal/core/merkle"
	"github.com/marinerlabs/goseaport/internal/core/settle"
	"github.com/marinerlabs/goseaport/internal/core/signer"
)

// ErrorResponse is the JSON body of every non-2xx reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSONResponse(logger *zap.Logger, w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode JSON response", zap.Error(err))
	}
}

func writeErrorResponse(logger *zap.Logger, w http.ResponseWriter, statusCode int, errorCode, message string) {
	writeJSONResponse(logger, w, statusCode, ErrorResponse{
		Error:   errorCode,
		Message: message,
	})
}

// rejectionErrors are settlement rule violations reported as client errors
// rather than server failures.
var rejectionErrors = []error{
	settle.ErrInvalidTime,
	settle.ErrBadFraction,
	settle.ErrPartialFillsNotEnabledForOrder,
	settle.ErrOrderIsCancelled,
	settle.ErrOrderAlreadyFilled,
	settle.ErrCannotCancelOrder,
	settle.ErrConsiderationLengthNotEqualToTotalOriginal,
	settle.ErrOrderCriteriaResolverOutOfRange,
	settle.ErrOfferCriteriaResolverOutOfRange,
	settle.ErrConsiderationCriteriaResolverOutOfRange,
	settle.ErrCriteriaNotEnabledForItem,
	settle.ErrMismatchedComponents,
	settle.ErrNoSpecifiedOrdersAvailable,
	settle.ErrInvalidNativeOfferItem,
	settle.ErrInvalidRestrictedOrder,
	settle.ErrInvalidContractOrder,
	settle.ErrInvalidMsgValue,
	settle.ErrFractionOverflow,
	settle.ErrInexactFraction,
	settle.ErrInsufficientNativeTokensSupplied,
	signer.ErrInvalidSignature,
	signer.ErrBadSignatureLength,
	merkle.ErrInvalidProof,
}

// writeSettleError maps settlement failures onto HTTP statuses: rule
// violations become 422, reentrancy becomes 409, the rest 500.
func writeSettleError(logger *zap.Logger, w http.ResponseWriter, err error) {
	if errors.Is(err, settle.ErrNoReentrantCalls) {
		writeErrorResponse(logger, w, http.StatusConflict, "settlement_in_progress", err.Error())
		return
	}

	for _, sentinel := range rejectionErrors {
		if errors.Is(err, sentinel) {
			writeErrorResponse(logger, w, http.StatusUnprocessableEntity, "settlement_rejected", err.Error())
			return
		}
	}

	var unresolvedOffer *settle.UnresolvedOfferCriteriaError
	var unresolvedConsideration *settle.UnresolvedConsiderationCriteriaError
	var notMet *settle.ConsiderationNotMetError
	if errors.As(err, &unresolvedOffer) || errors.As(err, &unresolvedConsideration) || errors.As(err, &notMet) {
		writeErrorResponse(logger, w, http.StatusUnprocessableEntity, "settlement_rejected", err.Error())
		return
	}

	var callback *settle.CallbackError
	if errors.As(err, &callback) {
		writeErrorResponse(logger, w, http.StatusUnprocessableEntity, "settlement_rejected", err.Error())
		return
	}

	logger.Error("Settlement failed", zap.Error(err))
	writeErrorResponse(logger, w, http.StatusInternalServerError, "settlement_error", "Failed to settle orders")
}
