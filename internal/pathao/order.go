package pathao

import (
	"context"
	"net/http"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/chilirig-checkout/internal/domain/delivery"
	"github.com/xenking/chilirig-checkout/internal/wire"
)

var defaultWeight = decimal.RequireFromString("0.5")

// Price quotes a normal parcel delivery to the given city and zone. The
// final price is preferred over the list price when the courier sends both.
func (c *Client) Price(ctx context.Context, req delivery.QuoteRequest) (delivery.Quote, error) {
	if c.storeID == 0 {
		return delivery.Quote{}, &delivery.ProviderError{Op: "price", Message: "store id is required for price calculation"}
	}
	weight := req.Weight
	if weight.IsZero() {
		weight = defaultWeight
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.FieldStart("store_id")
		e.Int64(c.storeID)
		e.FieldStart("item_type")
		e.Int(delivery.ItemTypeParcel)
		e.FieldStart("delivery_type")
		e.Int(delivery.DeliveryTypeNormal)
		e.FieldStart("item_weight")
		wire.EncodeDecimal(e, weight)
		e.FieldStart("recipient_city")
		e.Int64(req.CityID)
		e.FieldStart("recipient_zone")
		e.Int64(req.ZoneID)
	})

	var (
		price, final *decimal.Decimal
		cod          bool
		seen         bool
	)
	_, err := c.call(ctx, "price", http.MethodPost, pricePath, e.Bytes(), func(d *jx.Decoder) error {
		seen = true
		return d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "price":
				return decodeOptional(d, &price)
			case "final_price":
				return decodeOptional(d, &final)
			case "cod_enabled":
				switch d.Next() {
				case jx.Bool:
					v, err := d.Bool()
					cod = v
					return err
				case jx.Number:
					v, err := d.Int()
					cod = v != 0
					return err
				default:
					return d.Skip()
				}
			default:
				return d.Skip()
			}
		})
	})
	if err != nil {
		return delivery.Quote{}, err
	}
	if !seen {
		return delivery.Quote{}, &delivery.ProviderError{Op: "price", Message: "price response missing data"}
	}

	q := delivery.Quote{Price: decimal.Zero, CODEnabled: cod}
	switch {
	case final != nil:
		q.Price = *final
	case price != nil:
		q.Price = *price
	}
	return q, nil
}

func decodeOptional(d *jx.Decoder, dst **decimal.Decimal) error {
	if d.Next() == jx.Null {
		return d.Null()
	}
	v, err := wire.DecodeDecimal(d)
	if err != nil {
		return err
	}
	*dst = &v
	return nil
}

// CreateConsignment registers a parcel. The courier must answer with type
// "success" and code 200. A success without a consignment id is not an
// error; the returned Consignment then has an empty ID.
func (c *Client) CreateConsignment(ctx context.Context, req delivery.ConsignmentRequest) (delivery.Consignment, error) {
	if req.StoreID == 0 {
		req.StoreID = c.storeID
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.FieldStart("store_id")
		e.Int64(req.StoreID)
		if req.MerchantOrderID != "" {
			e.FieldStart("merchant_order_id")
			e.Str(req.MerchantOrderID)
		}
		e.FieldStart("recipient_name")
		e.Str(req.RecipientName)
		e.FieldStart("recipient_phone")
		e.Str(req.RecipientPhone)
		if req.RecipientSecondaryPhone != "" {
			e.FieldStart("recipient_secondary_phone")
			e.Str(req.RecipientSecondaryPhone)
		}
		e.FieldStart("recipient_address")
		e.Str(req.RecipientAddress)
		e.FieldStart("recipient_city")
		e.Int64(req.RecipientCity)
		e.FieldStart("recipient_zone")
		e.Int64(req.RecipientZone)
		if req.RecipientArea != 0 {
			e.FieldStart("recipient_area")
			e.Int64(req.RecipientArea)
		}
		e.FieldStart("delivery_type")
		e.Int(req.DeliveryType)
		e.FieldStart("item_type")
		e.Int(req.ItemType)
		e.FieldStart("item_quantity")
		e.Int(req.ItemQuantity)
		e.FieldStart("item_weight")
		e.Str(req.ItemWeight)
		e.FieldStart("amount_to_collect")
		e.Int64(req.AmountToCollect)
		if req.ItemDescription != "" {
			e.FieldStart("item_description")
			e.Str(req.ItemDescription)
		}
	})

	var out delivery.Consignment
	env, err := c.call(ctx, "create order", http.MethodPost, ordersPath, e.Bytes(), func(d *jx.Decoder) error {
		return d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "consignment_id":
				return decodeStr(d, &out.ID)
			case "order_status":
				return decodeStr(d, &out.OrderStatus)
			case "delivery_fee":
				var fee *decimal.Decimal
				if err := decodeOptional(d, &fee); err != nil {
					return err
				}
				if fee != nil {
					out.DeliveryFee = *fee
				}
				return nil
			default:
				return d.Skip()
			}
		})
	})
	if err != nil {
		return delivery.Consignment{}, err
	}
	if env.Code != http.StatusOK {
		msg := env.Message
		if msg == "" {
			msg = "order creation returned non-success"
		}
		return delivery.Consignment{}, &delivery.ProviderError{Op: "create order", Status: env.Code, Message: msg}
	}
	return out, nil
}
