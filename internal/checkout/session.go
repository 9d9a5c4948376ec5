package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/chilirig-checkout/internal/cart"
	"github.com/xenking/chilirig-checkout/internal/domain/delivery"
	"github.com/xenking/chilirig-checkout/internal/domain/order"
	"github.com/xenking/chilirig-checkout/internal/domain/phone"
	"github.com/xenking/chilirig-checkout/internal/domain/pricing"
	"github.com/xenking/chilirig-checkout/internal/orderhistory"
	"github.com/xenking/chilirig-checkout/internal/wire"
)

var (
	// ErrStale is returned by lookups whose selection changed before they
	// completed. Their result is discarded.
	ErrStale = errors.New("delivery selection changed")
	// ErrRouteIncomplete is returned when city or zone is not selected.
	ErrRouteIncomplete = errors.New("city and zone must be selected")
	// ErrEmptyCart is returned by Submit for an empty cart.
	ErrEmptyCart = errors.New("cart is empty")
)

// Selection is the delivery route chosen by the buyer. Area is optional.
type Selection struct {
	CityID   int64
	CityName string
	ZoneID   int64
	ZoneName string
	AreaID   int64
	AreaName string
}

// Complete reports whether city and zone are set.
func (s Selection) Complete() bool {
	return s.CityID != 0 && s.ZoneID != 0
}

// Contact is the buyer's details entered at checkout.
type Contact struct {
	Email          string
	FullName       string
	Phone          string
	SecondaryPhone string
	Address        string
}

// Receipt describes a submitted order.
type Receipt struct {
	OrderID       string
	ConsignmentID string
	// Warning is the courier failure message when the parcel was not booked.
	Warning   string
	Breakdown pricing.Breakdown
	Placed    orderhistory.PlacedOrder
}

// Session is one checkout: the route selection, the current delivery quote
// and submission. Every selection change invalidates the quote and any
// lookup still in flight.
type Session struct {
	api        API
	cart       *cart.Cart
	history    *orderhistory.History
	reconciler *pricing.Reconciler
	now        func() time.Time

	mu     sync.Mutex
	sel    Selection
	gen    uint64
	quote  *delivery.Quote
	cancel context.CancelFunc
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithReconciler overrides pricing.DefaultReconciler.
func WithReconciler(r *pricing.Reconciler) SessionOption {
	return func(s *Session) { s.reconciler = r }
}

// WithClock overrides time.Now for history entries.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// NewSession starts a checkout for c. Placed orders are added to h.
func NewSession(api API, c *cart.Cart, h *orderhistory.History, opts ...SessionOption) *Session {
	s := &Session{
		api:        api,
		cart:       c,
		history:    h,
		reconciler: pricing.DefaultReconciler(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Selection returns the current route.
func (s *Session) Selection() Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sel
}

// Quote returns the current delivery quote, if resolved.
func (s *Session) Quote() (delivery.Quote, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quote == nil {
		return delivery.Quote{}, false
	}
	return *s.quote, true
}

// Cities lists the cities to choose from.
func (s *Session) Cities(ctx context.Context) ([]delivery.City, error) {
	v, err := s.api.Cities(ctx)
	if err != nil {
		return nil, &delivery.RouteResolutionError{Op: "cities", Err: err}
	}
	return v, nil
}

// Zones lists the zones of the selected city.
func (s *Session) Zones(ctx context.Context) ([]delivery.Zone, error) {
	sel, gen := s.snapshot()
	if sel.CityID == 0 {
		return nil, ErrRouteIncomplete
	}
	v, err := s.api.Zones(ctx, sel.CityID)
	if err != nil {
		return nil, &delivery.RouteResolutionError{Op: "zones", Err: err}
	}
	if !s.current(gen) {
		return nil, ErrStale
	}
	return v, nil
}

// Areas lists the areas of the selected zone.
func (s *Session) Areas(ctx context.Context) ([]delivery.Area, error) {
	sel, gen := s.snapshot()
	if sel.ZoneID == 0 {
		return nil, ErrRouteIncomplete
	}
	v, err := s.api.Areas(ctx, sel.ZoneID)
	if err != nil {
		return nil, &delivery.RouteResolutionError{Op: "areas", Err: err}
	}
	if !s.current(gen) {
		return nil, ErrStale
	}
	return v, nil
}

// SelectCity sets the city and clears zone, area and quote.
func (s *Session) SelectCity(c delivery.City) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sel = Selection{CityID: c.ID, CityName: c.Name}
	s.invalidate()
}

// SelectZone sets the zone and clears area and quote.
func (s *Session) SelectZone(z delivery.Zone) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sel.CityID == 0 {
		return ErrRouteIncomplete
	}
	s.sel.ZoneID, s.sel.ZoneName = z.ID, z.Name
	s.sel.AreaID, s.sel.AreaName = 0, ""
	s.invalidate()
	return nil
}

// SelectArea sets the area. The quote depends on city and zone only and
// is kept.
func (s *Session) SelectArea(a delivery.Area) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sel.ZoneID == 0 {
		return ErrRouteIncomplete
	}
	s.sel.AreaID, s.sel.AreaName = a.ID, a.Name
	return nil
}

// invalidate drops the quote and supersedes in-flight lookups. Callers hold mu.
func (s *Session) invalidate() {
	s.gen++
	s.quote = nil
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Session) snapshot() (Selection, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sel, s.gen
}

func (s *Session) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen
}

// RefreshQuote asks for the delivery price of the selected route for the
// current cart weight. A newer selection or refresh cancels this one, which
// then returns ErrStale. On failure the quote stays absent and a
// *delivery.RouteResolutionError is returned.
func (s *Session) RefreshQuote(ctx context.Context) (delivery.Quote, error) {
	s.mu.Lock()
	if !s.sel.Complete() {
		s.mu.Unlock()
		return delivery.Quote{}, ErrRouteIncomplete
	}
	s.invalidate()
	gen, sel := s.gen, s.sel
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	weight := s.cart.Weight()
	resp, err := s.api.Price(ctx, wire.PriceRequest{
		CityID:     &sel.CityID,
		ZoneID:     &sel.ZoneID,
		ItemWeight: &weight,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return delivery.Quote{}, ErrStale
	}
	s.cancel = nil
	if err != nil {
		zctx.From(ctx).Warn("Delivery quote failed",
			zap.Int64("city_id", sel.CityID),
			zap.Int64("zone_id", sel.ZoneID),
			zap.Error(err),
		)
		return delivery.Quote{}, &delivery.RouteResolutionError{Op: "price", Err: err}
	}
	q := delivery.Quote{Price: resp.Price, CODEnabled: resp.CODEnabled}
	s.quote = &q
	return q, nil
}

// Breakdown prices the cart with the current quote. Without a quote the
// total is the subtotal and the breakdown carries a warning.
func (s *Session) Breakdown() pricing.Breakdown {
	var price *decimal.Decimal
	if q, ok := s.Quote(); ok {
		price = &q.Price
	}
	return s.reconciler.Reconcile(s.cart.Subtotal(), price)
}

// Request builds the order request for the current cart and route.
func (s *Session) Request(c Contact) (order.Request, pricing.Breakdown) {
	sel := s.Selection()
	b := s.Breakdown()

	req := order.Request{
		Email:          c.Email,
		FullName:       c.FullName,
		Phone:          c.Phone,
		SecondaryPhone: c.SecondaryPhone,
		Address:        c.Address,
		CityName:       sel.CityName,
		ZoneName:       sel.ZoneName,
		AreaID:         sel.AreaID,
		AreaName:       sel.AreaName,
		Items:          s.cart.OrderItems(),
		Subtotal:       &b.Subtotal,
		Shipping:       b.Shipping,
		Total:          &b.Total,
	}
	if sel.CityID != 0 {
		req.CityID = &sel.CityID
	}
	if sel.ZoneID != 0 {
		req.ZoneID = &sel.ZoneID
	}
	return req, b
}

// Submit places the order. Only a successful placement is recorded in the
// order history and empties the cart; on error both are left untouched.
func (s *Session) Submit(ctx context.Context, c Contact) (*Receipt, error) {
	if s.cart.Empty() {
		return nil, ErrEmptyCart
	}
	if !s.Selection().Complete() {
		return nil, ErrRouteIncomplete
	}

	req, b := s.Request(c)
	resp, err := s.api.PlaceOrder(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "place order")
	}

	total := b.Total
	placed := orderhistory.PlacedOrder{
		OrderID:       resp.OrderID,
		Date:          s.now(),
		ConsignmentID: resp.ConsignmentID,
		Total:         &total,
		ItemsSummary:  order.Summary(req.Items),
	}
	if p, ok := phone.Parse(c.Phone); ok {
		placed.Phone = p
	}

	lg := zctx.From(ctx).With(zap.String("order_id", resp.OrderID))
	if err := s.history.Add(ctx, placed); err != nil {
		lg.Warn("Failed to save order history", zap.Error(err))
	}
	if err := s.cart.Clear(ctx); err != nil {
		lg.Warn("Failed to clear cart", zap.Error(err))
	}

	return &Receipt{
		OrderID:       resp.OrderID,
		ConsignmentID: resp.ConsignmentID,
		Warning:       resp.PathaoError,
		Breakdown:     b,
		Placed:        placed,
	}, nil
}
