package wire

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error string
}

// Encode writes {"success":false,"error":...}.
func (r ErrorResponse) Encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		e.FieldStart("success")
		e.Bool(false)
		e.FieldStart("error")
		e.Str(r.Error)
	})
}

// Status is the common part of every API response.
type Status struct {
	Success bool
	Error   string
}

// DecodeEnvelope reads an API response object. The success and error fields
// are captured into the returned Status; every other key is passed to field,
// which must consume its value. A nil field skips them.
func DecodeEnvelope(data []byte, field func(d *jx.Decoder, key string) error) (Status, error) {
	var st Status
	d := jx.DecodeBytes(data)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "success":
			if d.Next() != jx.Bool {
				return d.Skip()
			}
			v, err := d.Bool()
			st.Success = v
			return err
		case "error":
			v, err := decodeString(d)
			st.Error = v
			return err
		default:
			if field == nil {
				return d.Skip()
			}
			return field(d, key)
		}
	}); err != nil {
		return Status{}, errors.Wrap(err, "decode response")
	}
	return st, nil
}

// EncodeList writes {"success":true,"data":[...]}.
func EncodeList[T any](e *jx.Encoder, items []T, enc func(*jx.Encoder, T)) {
	e.Obj(func(e *jx.Encoder) {
		e.FieldStart("success")
		e.Bool(true)
		e.FieldStart("data")
		e.Arr(func(e *jx.Encoder) {
			for _, it := range items {
				enc(e, it)
			}
		})
	})
}

// DecodeArray reads a JSON array with dec. Null yields an empty slice.
func DecodeArray[T any](d *jx.Decoder, dec func(*jx.Decoder) (T, error)) ([]T, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	var out []T
	if err := d.Arr(func(d *jx.Decoder) error {
		v, err := dec(d)
		if err != nil {
			return err
		}
		out = append(out, v)
		return nil
	}); err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeList reads a list response produced by EncodeList.
func DecodeList[T any](data []byte, dec func(*jx.Decoder) (T, error)) ([]T, Status, error) {
	var items []T
	st, err := DecodeEnvelope(data, func(d *jx.Decoder, key string) error {
		if key != "data" {
			return d.Skip()
		}
		var err error
		items, err = DecodeArray(d, dec)
		return err
	})
	if err != nil {
		return nil, Status{}, err
	}
	return items, st, nil
}
