package wire

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/chilirig-checkout/internal/domain/delivery"
)

// EncodeCity writes a city in the courier's field naming.
func EncodeCity(e *jx.Encoder, c delivery.City) {
	e.Obj(func(e *jx.Encoder) {
		e.FieldStart("city_id")
		e.Int64(c.ID)
		e.FieldStart("city_name")
		e.Str(c.Name)
	})
}

// DecodeCity reads a city.
func DecodeCity(d *jx.Decoder) (delivery.City, error) {
	var c delivery.City
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "city_id":
			return decodeIDInto(d, &c.ID)
		case "city_name":
			v, err := decodeString(d)
			c.Name = v
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return c, errors.Wrap(err, "decode city")
	}
	return c, nil
}

// EncodeZone writes a zone.
func EncodeZone(e *jx.Encoder, z delivery.Zone) {
	e.Obj(func(e *jx.Encoder) {
		e.FieldStart("zone_id")
		e.Int64(z.ID)
		e.FieldStart("zone_name")
		e.Str(z.Name)
	})
}

// DecodeZone reads a zone.
func DecodeZone(d *jx.Decoder) (delivery.Zone, error) {
	var z delivery.Zone
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "zone_id":
			return decodeIDInto(d, &z.ID)
		case "zone_name":
			v, err := decodeString(d)
			z.Name = v
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return z, errors.Wrap(err, "decode zone")
	}
	return z, nil
}

// EncodeArea writes an area. Availability flags are omitted when unknown.
func EncodeArea(e *jx.Encoder, a delivery.Area) {
	e.Obj(func(e *jx.Encoder) {
		e.FieldStart("area_id")
		e.Int64(a.ID)
		e.FieldStart("area_name")
		e.Str(a.Name)
		if a.HomeDeliveryAvailable != nil {
			e.FieldStart("home_delivery_available")
			e.Bool(*a.HomeDeliveryAvailable)
		}
		if a.PickupAvailable != nil {
			e.FieldStart("pickup_available")
			e.Bool(*a.PickupAvailable)
		}
	})
}

// DecodeArea reads an area.
func DecodeArea(d *jx.Decoder) (delivery.Area, error) {
	var a delivery.Area
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "area_id":
			return decodeIDInto(d, &a.ID)
		case "area_name":
			v, err := decodeString(d)
			a.Name = v
			return err
		case "home_delivery_available":
			v, err := decodeFlag(d)
			a.HomeDeliveryAvailable = &v
			return err
		case "pickup_available":
			v, err := decodeFlag(d)
			a.PickupAvailable = &v
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return a, errors.Wrap(err, "decode area")
	}
	return a, nil
}

func decodeIDInto(d *jx.Decoder, dst *int64) error {
	v, err := DecodeID(d)
	if err != nil {
		return err
	}
	if v != nil {
		*dst = *v
	}
	return nil
}

// PriceRequest is the body of POST /delivery/price.
type PriceRequest struct {
	CityID     *int64
	ZoneID     *int64
	ItemWeight *decimal.Decimal
	// Subtotal, when set, asks for the reconciled shipping and total.
	Subtotal *decimal.Decimal
}

// Encode writes the request.
func (r PriceRequest) Encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		if r.CityID != nil {
			e.FieldStart("city_id")
			e.Int64(*r.CityID)
		}
		if r.ZoneID != nil {
			e.FieldStart("zone_id")
			e.Int64(*r.ZoneID)
		}
		if r.ItemWeight != nil {
			e.FieldStart("item_weight")
			EncodeDecimal(e, *r.ItemWeight)
		}
		if r.Subtotal != nil {
			e.FieldStart("subtotal")
			EncodeMoney(e, *r.Subtotal)
		}
	})
}

// DecodePriceRequest reads a price request body.
func DecodePriceRequest(data []byte) (PriceRequest, error) {
	var r PriceRequest
	d := jx.DecodeBytes(data)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "city_id":
			r.CityID, err = DecodeID(d)
		case "zone_id":
			r.ZoneID, err = DecodeID(d)
		case "item_weight":
			r.ItemWeight, err = decodeOptionalDecimal(d)
		case "subtotal":
			r.Subtotal, err = decodeOptionalDecimal(d)
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	}); err != nil {
		return PriceRequest{}, errors.Wrap(err, "decode price request")
	}
	return r, nil
}

// PriceResponse is the body of a successful POST /delivery/price.
type PriceResponse struct {
	Price      decimal.Decimal
	CODEnabled bool
	Shipping   *decimal.Decimal
	Total      *decimal.Decimal
}

// Encode writes the response.
func (r PriceResponse) Encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		e.FieldStart("success")
		e.Bool(true)
		e.FieldStart("price")
		EncodeMoney(e, r.Price)
		e.FieldStart("cod_enabled")
		e.Bool(r.CODEnabled)
		if r.Shipping != nil {
			e.FieldStart("shipping")
			EncodeMoney(e, *r.Shipping)
		}
		if r.Total != nil {
			e.FieldStart("total")
			EncodeMoney(e, *r.Total)
		}
	})
}

// DecodePriceResponse reads a price response.
func DecodePriceResponse(data []byte) (PriceResponse, Status, error) {
	var r PriceResponse
	st, err := DecodeEnvelope(data, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "price":
			r.Price, err = DecodeDecimal(d)
		case "cod_enabled":
			r.CODEnabled, err = decodeFlag(d)
		case "shipping":
			r.Shipping, err = decodeOptionalDecimal(d)
		case "total":
			r.Total, err = decodeOptionalDecimal(d)
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	return r, st, err
}
