package wire

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/chilirig-checkout/internal/domain/order"
)

// DecodeOrderRequest reads the body of POST /orders. Missing or mistyped
// fields are left unset for the order service to report; only malformed
// JSON is an error here.
func DecodeOrderRequest(data []byte) (order.Request, error) {
	var r order.Request
	d := jx.DecodeBytes(data)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "email":
			r.Email, err = decodeString(d)
		case "fullName":
			r.FullName, err = decodeString(d)
		case "phone":
			r.Phone, err = decodeString(d)
		case "secondaryPhone":
			r.SecondaryPhone, err = decodeString(d)
		case "address":
			r.Address, err = decodeString(d)
		case "city_id":
			r.CityID, err = lenientID(d)
		case "zone_id":
			r.ZoneID, err = lenientID(d)
		case "area_id":
			var v *int64
			v, err = lenientID(d)
			if v != nil {
				r.AreaID = *v
			}
		case "city_name":
			r.CityName, err = decodeString(d)
		case "zone_name":
			r.ZoneName, err = decodeString(d)
		case "area_name":
			r.AreaName, err = decodeString(d)
		case "items":
			if d.Next() != jx.Array {
				return d.Skip()
			}
			r.Items, err = DecodeArray(d, decodeItem)
		case "subtotal":
			r.Subtotal, err = decodeNumber(d)
		case "shipping":
			r.Shipping, err = decodeNumber(d)
		case "total":
			r.Total, err = decodeNumber(d)
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	}); err != nil {
		return order.Request{}, errors.Wrap(err, "decode order request")
	}
	return r, nil
}

// lenientID is DecodeID that treats a non-numeric value as absent.
func lenientID(d *jx.Decoder) (*int64, error) {
	v, err := DecodeID(d)
	if errors.Is(err, ErrNotNumber) {
		return nil, nil
	}
	return v, err
}

func decodeItem(d *jx.Decoder) (order.Item, error) {
	var it order.Item
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "id":
			if d.Next() == jx.Number {
				n, err := d.Num()
				it.ID = n.String()
				return err
			}
			v, err := decodeString(d)
			it.ID = v
			return err
		case "name":
			v, err := decodeString(d)
			it.Name = v
			return err
		case "price":
			v, err := DecodeDecimal(d)
			it.Price = v
			if err != nil {
				return errors.Wrap(err, "price")
			}
			return nil
		case "quantity":
			v, err := DecodeID(d)
			if err != nil {
				return errors.Wrap(err, "quantity")
			}
			if v != nil {
				it.Quantity = int(*v)
			}
			return nil
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return it, errors.Wrap(err, "decode item")
	}
	return it, nil
}

func encodeItem(e *jx.Encoder, it order.Item) {
	e.Obj(func(e *jx.Encoder) {
		e.FieldStart("id")
		e.Str(it.ID)
		e.FieldStart("name")
		e.Str(it.Name)
		e.FieldStart("price")
		EncodeMoney(e, it.Price)
		e.FieldStart("quantity")
		e.Int(it.Quantity)
	})
}

// EncodeOrderRequest writes an order request as the API expects it.
func EncodeOrderRequest(e *jx.Encoder, r order.Request) {
	str := func(k, v string) {
		e.FieldStart(k)
		e.Str(v)
	}
	money := func(k string, v *decimal.Decimal) {
		if v != nil {
			e.FieldStart(k)
			EncodeMoney(e, *v)
		}
	}
	e.Obj(func(e *jx.Encoder) {
		str("email", r.Email)
		str("fullName", r.FullName)
		str("phone", r.Phone)
		if r.SecondaryPhone != "" {
			str("secondaryPhone", r.SecondaryPhone)
		}
		str("address", r.Address)
		if r.CityID != nil {
			e.FieldStart("city_id")
			e.Int64(*r.CityID)
		}
		if r.ZoneID != nil {
			e.FieldStart("zone_id")
			e.Int64(*r.ZoneID)
		}
		if r.AreaID != 0 {
			e.FieldStart("area_id")
			e.Int64(r.AreaID)
		}
		str("city_name", r.CityName)
		str("zone_name", r.ZoneName)
		if r.AreaName != "" {
			str("area_name", r.AreaName)
		}
		e.FieldStart("items")
		e.Arr(func(e *jx.Encoder) {
			for _, it := range r.Items {
				encodeItem(e, it)
			}
		})
		money("subtotal", r.Subtotal)
		money("shipping", r.Shipping)
		money("total", r.Total)
	})
}

// OrderRequest adapts an order.Request to Encodable.
type OrderRequest order.Request

// Encode writes the request.
func (r OrderRequest) Encode(e *jx.Encoder) {
	EncodeOrderRequest(e, order.Request(r))
}

// OrderResponse is the body of a successful POST /orders.
type OrderResponse struct {
	OrderID string
	// ConsignmentID is written as null when empty.
	ConsignmentID string
	PathaoError   string
}

// Encode writes the response.
func (r OrderResponse) Encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		e.FieldStart("success")
		e.Bool(true)
		e.FieldStart("orderId")
		e.Str(r.OrderID)
		e.FieldStart("consignmentId")
		if r.ConsignmentID == "" {
			e.Null()
		} else {
			e.Str(r.ConsignmentID)
		}
		if r.PathaoError != "" {
			e.FieldStart("pathaoError")
			e.Str(r.PathaoError)
		}
	})
}

// DecodeOrderResponse reads an order response. Both consignmentId and the
// legacy pathaoConsignmentId key are accepted.
func DecodeOrderResponse(data []byte) (OrderResponse, Status, error) {
	var r OrderResponse
	st, err := DecodeEnvelope(data, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "orderId":
			r.OrderID, err = decodeString(d)
		case "consignmentId", "pathaoConsignmentId":
			var v string
			v, err = decodeString(d)
			if v != "" {
				r.ConsignmentID = v
			}
		case "pathaoError":
			r.PathaoError, err = decodeString(d)
		default:
			return d.Skip()
		}
		return err
	})
	return r, st, err
}

// EncodeRecord writes a flat order record, the shape stored by audit sinks.
func EncodeRecord(e *jx.Encoder, r order.Record) {
	e.Obj(func(e *jx.Encoder) {
		fields := []struct{ k, v string }{
			{"orderId", r.OrderID},
			{"date", FormatTime(r.Date)},
			{"email", r.Email},
			{"fullName", r.FullName},
			{"phone", r.Phone},
			{"secondaryPhone", r.SecondaryPhone},
			{"address", r.Address},
			{"city", r.City},
			{"zone", r.Zone},
			{"area", r.Area},
			{"items", r.Items},
		}
		for _, f := range fields {
			e.FieldStart(f.k)
			e.Str(f.v)
		}
		e.FieldStart("cityId")
		e.Int64(r.CityID)
		e.FieldStart("zoneId")
		e.Int64(r.ZoneID)
		e.FieldStart("areaId")
		e.Int64(r.AreaID)
		e.FieldStart("subtotal")
		EncodeMoney(e, r.Subtotal)
		e.FieldStart("shipping")
		EncodeMoney(e, r.Shipping)
		e.FieldStart("total")
		EncodeMoney(e, r.Total)
		e.FieldStart("weight")
		EncodeDecimal(e, r.Weight)
		e.FieldStart("status")
		e.Str(r.Status)
		e.FieldStart("pathaoConsignmentId")
		e.Str(r.ConsignmentID)
	})
}

// DecodeRecord reads a record written by EncodeRecord.
func DecodeRecord(d *jx.Decoder) (order.Record, error) {
	var r order.Record
	strs := map[string]*string{
		"orderId":             &r.OrderID,
		"email":               &r.Email,
		"fullName":            &r.FullName,
		"phone":               &r.Phone,
		"secondaryPhone":      &r.SecondaryPhone,
		"address":             &r.Address,
		"city":                &r.City,
		"zone":                &r.Zone,
		"area":                &r.Area,
		"items":               &r.Items,
		"status":              &r.Status,
		"pathaoConsignmentId": &r.ConsignmentID,
	}
	nums := map[string]*decimal.Decimal{
		"subtotal": &r.Subtotal,
		"shipping": &r.Shipping,
		"total":    &r.Total,
		"weight":   &r.Weight,
	}
	ids := map[string]*int64{
		"cityId": &r.CityID,
		"zoneId": &r.ZoneID,
		"areaId": &r.AreaID,
	}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if dst, ok := strs[key]; ok {
			v, err := decodeString(d)
			*dst = v
			return err
		}
		if dst, ok := nums[key]; ok {
			v, err := DecodeDecimal(d)
			*dst = v
			if err != nil {
				return errors.Wrap(err, key)
			}
			return nil
		}
		if dst, ok := ids[key]; ok {
			return decodeIDInto(d, dst)
		}
		if key == "date" {
			s, err := decodeString(d)
			if err != nil || s == "" {
				return err
			}
			r.Date, err = ParseTime(s)
			if err != nil {
				return errors.Wrap(err, "date")
			}
			return nil
		}
		return d.Skip()
	})
	if err != nil {
		return r, errors.Wrap(err, "decode record")
	}
	return r, nil
}

// MarshalItems encodes order lines as a JSON array.
func MarshalItems(items []order.Item) []byte {
	var e jx.Encoder
	e.Arr(func(e *jx.Encoder) {
		for _, it := range items {
			encodeItem(e, it)
		}
	})
	return e.Bytes()
}

// UnmarshalItems decodes a JSON array written by MarshalItems.
func UnmarshalItems(data []byte) ([]order.Item, error) {
	if len(data) == 0 {
		return nil, nil
	}
	items, err := DecodeArray(jx.DecodeBytes(data), decodeItem)
	if err != nil {
		return items, errors.Wrap(err, "decode items")
	}
	return items, nil
}
