// Package handler serves the checkout HTTP API: order submission, the
// courier geography and price lookups, and the admin order listing.
package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/chilirig-checkout/internal/domain/delivery"
	"github.com/xenking/chilirig-checkout/internal/domain/order"
	"github.com/xenking/chilirig-checkout/internal/domain/pricing"
	"github.com/xenking/chilirig-checkout/internal/wire"
)

const (
	defaultMaxBodyBytes = 64 << 10
	defaultListLimit    = 50
	maxListLimit        = 500
)

// OrderPlacer runs the order submission pipeline; *order.Service implements
// it.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req order.Request) (*order.Result, error)
}

// Records is a queryable audit sink used by the admin routes.
type Records interface {
	order.Lister
	order.Finder
}

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// MaxBodyBytes caps request bodies. Defaults to 64 KiB.
	MaxBodyBytes int64
	// AdminKey is the shared secret for /admin routes. The routes are not
	// mounted when it is empty or when no Records are given.
	AdminKey string
}

// Handler serves the API, delegating business logic to the order service,
// the courier and the fee reconciler.
type Handler struct {
	orders     OrderPlacer
	courier    delivery.Provider
	reconciler *pricing.Reconciler
	records    Records
	admin      *AdminAuth
	maxBody    int64
}

// NewHandler constructs a Handler. records may be nil.
func NewHandler(
	cfg Config,
	orders OrderPlacer,
	courier delivery.Provider,
	reconciler *pricing.Reconciler,
	records Records,
) *Handler {
	h := &Handler{
		orders:     orders,
		courier:    courier,
		reconciler: reconciler,
		records:    records,
		maxBody:    cfg.MaxBodyBytes,
	}
	if h.maxBody <= 0 {
		h.maxBody = defaultMaxBodyBytes
	}
	if h.reconciler == nil {
		h.reconciler = pricing.DefaultReconciler()
	}
	if cfg.AdminKey != "" {
		h.admin = NewAdminAuth(cfg.AdminKey)
	}
	return h
}

// Routes returns the API router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/orders", h.PlaceOrder)
	r.Route("/delivery", func(r chi.Router) {
		r.Get("/cities", h.Cities)
		r.Get("/zones", h.Zones)
		r.Get("/areas", h.Areas)
		r.Post("/price", h.Price)
	})
	if h.records != nil && h.admin != nil {
		r.Route("/admin/orders", func(r chi.Router) {
			r.Use(h.admin.Middleware)
			r.Get("/", h.ListOrders)
			r.Get("/{orderID}", h.GetOrder)
		})
	}
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	return r
}

func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	return body, nil
}

func writeJSON(w http.ResponseWriter, status int, v wire.Encodable) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	v.Encode(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, wire.ErrorResponse{Error: msg})
}

// encoderFunc adapts a function to wire.Encodable.
type encoderFunc func(e *jx.Encoder)

func (f encoderFunc) Encode(e *jx.Encoder) { f(e) }
