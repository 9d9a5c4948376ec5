package cart

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/chilirig-checkout/internal/wire"
)

// encode writes {"items":[{"id","name","price","image","quantity"}]}.
func encode(items []Item) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.FieldStart("items")
		e.Arr(func(e *jx.Encoder) {
			for _, it := range items {
				e.Obj(func(e *jx.Encoder) {
					e.FieldStart("id")
					e.Str(it.ID)
					e.FieldStart("name")
					e.Str(it.Name)
					e.FieldStart("price")
					wire.EncodeMoney(e, it.Price)
					if it.Image != "" {
						e.FieldStart("image")
						e.Str(it.Image)
					}
					e.FieldStart("quantity")
					e.Int(it.Quantity)
				})
			}
		})
	})
	return e.Bytes()
}

func decode(data []byte) ([]Item, error) {
	var items []Item
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		if key != "items" {
			return d.Skip()
		}
		var err error
		items, err = wire.DecodeArray(d, decodeItem)
		return err
	})
	if err != nil {
		return nil, err
	}
	// Lines that could never have been added are dropped.
	out := items[:0]
	for _, it := range items {
		if it.ID != "" && it.Quantity > 0 {
			out = append(out, it)
		}
	}
	return out, nil
}

func decodeItem(d *jx.Decoder) (Item, error) {
	var it Item
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			it.ID, err = d.Str()
		case "name":
			it.Name, err = d.Str()
		case "image":
			it.Image, err = d.Str()
		case "price":
			it.Price, err = wire.DecodeDecimal(d)
		case "quantity":
			it.Quantity, err = d.Int()
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	return it, err
}
