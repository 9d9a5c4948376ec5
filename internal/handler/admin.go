package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/chilirig-checkout/internal/domain/order"
	"github.com/xenking/chilirig-checkout/internal/wire"
)

// ListOrders returns the newest audit records, ?limit= (default 50, at
// most 500).
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = min(n, maxListLimit)
	}

	records, err := h.records.List(r.Context(), limit)
	if err != nil {
		zctx.From(r.Context()).Error("List orders failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to list orders")
		return
	}
	writeJSON(w, http.StatusOK, encoderFunc(func(e *jx.Encoder) {
		wire.EncodeList(e, records, wire.EncodeRecord)
	}))
}

// GetOrder returns one audit record.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "orderID")
	rec, err := h.records.Get(r.Context(), id)
	switch {
	case errors.Is(err, order.ErrRecordNotFound):
		writeError(w, http.StatusNotFound, "Order not found")
		return
	case err != nil:
		zctx.From(r.Context()).Error("Get order failed", zap.String("order_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load order")
		return
	}
	writeJSON(w, http.StatusOK, encoderFunc(func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.FieldStart("success")
			e.Bool(true)
			e.FieldStart("data")
			wire.EncodeRecord(e, *rec)
		})
	}))
}
