package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/chilirig-checkout/internal/domain/delivery"
	"github.com/xenking/chilirig-checkout/internal/wire"
)

// MsgPriceRouteRequired is returned when a price lookup lacks its route.
const MsgPriceRouteRequired = "city_id and zone_id are required"

// Cities lists the courier's cities.
func (h *Handler) Cities(w http.ResponseWriter, r *http.Request) {
	cities, err := h.courier.Cities(r.Context())
	if err != nil {
		h.upstreamError(w, r, "cities", err)
		return
	}
	writeJSON(w, http.StatusOK, encoderFunc(func(e *jx.Encoder) {
		wire.EncodeList(e, cities, wire.EncodeCity)
	}))
}

// Zones lists the zones of ?city_id=.
func (h *Handler) Zones(w http.ResponseWriter, r *http.Request) {
	cityID, ok := queryID(w, r, "city_id")
	if !ok {
		return
	}
	zones, err := h.courier.Zones(r.Context(), cityID)
	if err != nil {
		h.upstreamError(w, r, "zones", err)
		return
	}
	writeJSON(w, http.StatusOK, encoderFunc(func(e *jx.Encoder) {
		wire.EncodeList(e, zones, wire.EncodeZone)
	}))
}

// Areas lists the areas of ?zone_id=.
func (h *Handler) Areas(w http.ResponseWriter, r *http.Request) {
	zoneID, ok := queryID(w, r, "zone_id")
	if !ok {
		return
	}
	areas, err := h.courier.Areas(r.Context(), zoneID)
	if err != nil {
		h.upstreamError(w, r, "areas", err)
		return
	}
	writeJSON(w, http.StatusOK, encoderFunc(func(e *jx.Encoder) {
		wire.EncodeList(e, areas, wire.EncodeArea)
	}))
}

// Price quotes a route. When the body carries a subtotal, the reconciled
// shipping and total are returned as well.
func (h *Handler) Price(w http.ResponseWriter, r *http.Request) {
	body, err := h.readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, MsgInvalidBody)
		return
	}
	req, err := wire.DecodePriceRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, MsgInvalidBody)
		return
	}
	if req.CityID == nil || req.ZoneID == nil {
		writeError(w, http.StatusBadRequest, MsgPriceRouteRequired)
		return
	}
	if req.Subtotal != nil && req.Subtotal.IsNegative() {
		writeError(w, http.StatusBadRequest, "subtotal must not be negative")
		return
	}

	q := delivery.QuoteRequest{CityID: *req.CityID, ZoneID: *req.ZoneID}
	if req.ItemWeight != nil {
		q.Weight = *req.ItemWeight
	}
	quote, err := h.courier.Price(r.Context(), q)
	if err != nil {
		h.upstreamError(w, r, "price", err)
		return
	}

	resp := wire.PriceResponse{Price: quote.Price, CODEnabled: quote.CODEnabled}
	if req.Subtotal != nil {
		price := quote.Price
		b := h.reconciler.Reconcile(*req.Subtotal, &price)
		resp.Shipping = b.Shipping
		total := b.Total
		resp.Total = &total
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) upstreamError(w http.ResponseWriter, r *http.Request, op string, err error) {
	rErr := &delivery.RouteResolutionError{Op: op, Err: err}
	zctx.From(r.Context()).Warn("Courier lookup failed", zap.String("op", op), zap.Error(err))
	writeError(w, http.StatusBadGateway, rErr.Error())
}

// queryID parses a required integer query parameter, writing a 400 when it
// is absent or malformed.
func queryID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		writeError(w, http.StatusBadRequest, name+" is required")
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid "+name)
		return 0, false
	}
	return id, true
}
