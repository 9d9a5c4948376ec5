// Package orderhistory keeps the buyer's own placed orders on the client,
// newest first, so they can be looked up and tracked after checkout.
package orderhistory

import (
	"context"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/chilirig-checkout/internal/domain/phone"
	"github.com/xenking/chilirig-checkout/internal/statestore"
	"github.com/xenking/chilirig-checkout/internal/wire"
)

// TrackingBaseURL is the courier's public parcel tracking page.
const TrackingBaseURL = "https://merchant.pathao.com/tracking"

// PlacedOrder is one order as remembered by the client.
type PlacedOrder struct {
	OrderID string
	Date    time.Time
	// ConsignmentID is empty when the courier did not accept the parcel.
	ConsignmentID string
	// Phone is the normalized phone the order was placed with, if valid.
	Phone        string
	Total        *decimal.Decimal
	ItemsSummary string
}

// TrackingURL returns the courier tracking link, available only when the
// order has a consignment id and a valid phone.
func (o PlacedOrder) TrackingURL() (string, bool) {
	if o.ConsignmentID == "" || o.Phone == "" {
		return "", false
	}
	p, ok := phone.Parse(o.Phone)
	if !ok {
		return "", false
	}
	q := url.Values{}
	q.Set("consignment_id", o.ConsignmentID)
	q.Set("phone", p)
	return TrackingBaseURL + "?" + q.Encode(), true
}

// History is the persisted order list.
type History struct {
	mu     sync.Mutex
	store  statestore.Store
	orders []PlacedOrder
}

// Load restores the history from store.
func Load(ctx context.Context, store statestore.Store) (*History, error) {
	h := &History{store: store}
	data, err := store.Load(ctx, statestore.OrdersKey)
	switch {
	case errors.Is(err, statestore.ErrNotFound):
		return h, nil
	case err != nil:
		return nil, errors.Wrap(err, "load order history")
	}
	orders, err := decode(data)
	if err != nil {
		return nil, errors.Wrap(err, "decode order history")
	}
	h.orders = orders
	return h, nil
}

// Add prepends o and persists the list.
func (h *History) Add(ctx context.Context, o PlacedOrder) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	next := make([]PlacedOrder, 0, len(h.orders)+1)
	next = append(next, o)
	next = append(next, h.orders...)
	if err := h.store.Save(ctx, statestore.OrdersKey, encode(next)); err != nil {
		return errors.Wrap(err, "save order history")
	}
	h.orders = next
	return nil
}

// Orders returns the list, newest first.
func (h *History) Orders() []PlacedOrder {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.orders)
}

// Len returns the number of remembered orders.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.orders)
}

// Find returns the order with the given id.
func (h *History) Find(orderID string) (PlacedOrder, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	i := slices.IndexFunc(h.orders, func(o PlacedOrder) bool { return o.OrderID == orderID })
	if i < 0 {
		return PlacedOrder{}, false
	}
	return h.orders[i], true
}

// encode writes {"orders":[...]} with the storefront's field names; absent
// consignment ids and phones are null.
func encode(orders []PlacedOrder) []byte {
	nullable := func(e *jx.Encoder, v string) {
		if v == "" {
			e.Null()
			return
		}
		e.Str(v)
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.FieldStart("orders")
		e.Arr(func(e *jx.Encoder) {
			for _, o := range orders {
				e.Obj(func(e *jx.Encoder) {
					e.FieldStart("orderId")
					e.Str(o.OrderID)
					e.FieldStart("date")
					e.Str(wire.FormatTime(o.Date))
					e.FieldStart("pathaoConsignmentId")
					nullable(e, o.ConsignmentID)
					e.FieldStart("orderPhone")
					nullable(e, o.Phone)
					if o.Total != nil {
						e.FieldStart("total")
						wire.EncodeMoney(e, *o.Total)
					}
					if o.ItemsSummary != "" {
						e.FieldStart("itemsSummary")
						e.Str(o.ItemsSummary)
					}
				})
			}
		})
	})
	return e.Bytes()
}

func decode(data []byte) ([]PlacedOrder, error) {
	var orders []PlacedOrder
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		if key != "orders" {
			return d.Skip()
		}
		var err error
		orders, err = wire.DecodeArray(d, decodeOrder)
		return err
	})
	return orders, err
}

func decodeOrder(d *jx.Decoder) (PlacedOrder, error) {
	var o PlacedOrder
	optStr := func(d *jx.Decoder) (string, error) {
		if d.Next() != jx.String {
			return "", d.Skip()
		}
		return d.Str()
	}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "orderId":
			o.OrderID, err = d.Str()
		case "date":
			var s string
			if s, err = d.Str(); err == nil {
				o.Date, err = wire.ParseTime(s)
			}
		case "pathaoConsignmentId":
			o.ConsignmentID, err = optStr(d)
		case "orderPhone":
			o.Phone, err = optStr(d)
		case "total":
			if d.Next() == jx.Null {
				return d.Null()
			}
			var v decimal.Decimal
			if v, err = wire.DecodeDecimal(d); err == nil {
				o.Total = &v
			}
		case "itemsSummary":
			o.ItemsSummary, err = optStr(d)
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	if err != nil {
		return o, errors.Wrap(err, "decode placed order")
	}
	return o, nil
}
