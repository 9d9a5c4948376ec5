// Package wire is the JSON codec shared by the HTTP handlers, the courier
// client and the checkout client. Every payload is read and written with
// go-faster/jx.
package wire

import (
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// TimeLayout is the ISO-8601 UTC timestamp format used in order records.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// ErrNotNumber is returned when a numeric field holds another JSON type.
var ErrNotNumber = errors.New("not a number")

// DecodeDecimal reads a JSON number or a numeric string.
func DecodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(n.String())
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		v, err := decimal.NewFromString(strings.TrimSpace(s))
		if err != nil {
			return decimal.Zero, ErrNotNumber
		}
		return v, nil
	default:
		if err := d.Skip(); err != nil {
			return decimal.Zero, err
		}
		return decimal.Zero, ErrNotNumber
	}
}

// decodeNumber reads a strict JSON number. Any other type, null included,
// yields nil so that callers can report the field as missing.
func decodeNumber(d *jx.Decoder) (*decimal.Decimal, error) {
	if d.Next() != jx.Number {
		return nil, d.Skip()
	}
	n, err := d.Num()
	if err != nil {
		return nil, err
	}
	v, err := decimal.NewFromString(n.String())
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// decodeOptionalDecimal is DecodeDecimal that maps null to nil.
func decodeOptionalDecimal(d *jx.Decoder) (*decimal.Decimal, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	v, err := DecodeDecimal(d)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// DecodeID reads a numeric identifier given as a JSON integer or a numeric
// string. Null yields nil.
func DecodeID(d *jx.Decoder) (*int64, error) {
	var raw string
	switch d.Next() {
	case jx.Null:
		return nil, d.Null()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return nil, err
		}
		raw = n.String()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return nil, err
		}
		raw = strings.TrimSpace(s)
	default:
		if err := d.Skip(); err != nil {
			return nil, err
		}
		return nil, ErrNotNumber
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, ErrNotNumber
	}
	return &v, nil
}

// decodeString reads a JSON string. Null and other types yield "".
func decodeString(d *jx.Decoder) (string, error) {
	if d.Next() != jx.String {
		return "", d.Skip()
	}
	return d.Str()
}

// decodeFlag reads a boolean given as true/false or as 1/0.
func decodeFlag(d *jx.Decoder) (bool, error) {
	switch d.Next() {
	case jx.Bool:
		return d.Bool()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return false, err
		}
		return n.String() != "0", nil
	default:
		return false, d.Skip()
	}
}

// EncodeDecimal writes v as a JSON number.
func EncodeDecimal(e *jx.Encoder, v decimal.Decimal) {
	e.Raw([]byte(v.String()))
}

// EncodeMoney writes v as a JSON number rounded to 2 decimal places.
func EncodeMoney(e *jx.Encoder, v decimal.Decimal) {
	e.Raw([]byte(v.Round(2).String()))
}

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a TimeLayout or RFC 3339 timestamp.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(TimeLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

// Encodable is a value that writes itself as JSON.
type Encodable interface {
	Encode(e *jx.Encoder)
}

// Marshal encodes v into a fresh buffer.
func Marshal(v Encodable) []byte {
	var e jx.Encoder
	v.Encode(&e)
	return e.Bytes()
}
