package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/chilirig-checkout/internal/domain/delivery"
	"github.com/xenking/chilirig-checkout/internal/domain/order"
	"github.com/xenking/chilirig-checkout/internal/wire"
)

// Error messages of POST /orders.
const (
	MsgInvalidBody  = "Invalid request body"
	MsgAuditFailed  = "Failed to save order to sheet"
	MsgOrderFailed  = "Failed to place order"
	MsgBodyTooLarge = "Request body too large"
)

// PlaceOrder decodes the checkout payload, runs the order pipeline and
// reports the placed order, including a courier warning when the
// consignment could not be created.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	body, err := h.readBody(w, r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, MsgBodyTooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, MsgInvalidBody)
		return
	}

	req, err := wire.DecodeOrderRequest(body)
	if err != nil {
		zctx.From(r.Context()).Debug("Malformed order body", zap.Error(err))
		writeError(w, http.StatusBadRequest, MsgInvalidBody)
		return
	}

	result, err := h.orders.PlaceOrder(r.Context(), req)
	if err != nil {
		status, msg := mapOrderError(err)
		if status >= http.StatusInternalServerError {
			zctx.From(r.Context()).Error("Place order failed", zap.Error(err))
		}
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, wire.OrderResponse{
		OrderID:       result.OrderID,
		ConsignmentID: result.ConsignmentID,
		PathaoError:   result.DeliveryWarning,
	})
}

// mapOrderError converts domain errors to an HTTP status and a message that
// is safe to show to the buyer.
func mapOrderError(err error) (int, string) {
	var vErr *order.ValidationError
	if errors.As(err, &vErr) {
		return http.StatusBadRequest, vErr.Message
	}

	var aErr *order.AuditSinkError
	if errors.As(err, &aErr) {
		return http.StatusBadGateway, MsgAuditFailed
	}

	var rErr *delivery.RouteResolutionError
	if errors.As(err, &rErr) {
		return http.StatusBadGateway, rErr.Error()
	}

	return http.StatusInternalServerError, MsgOrderFailed
}
