package pathao

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-faster/jx"

	"github.com/xenking/chilirig-checkout/internal/domain/delivery"
	"github.com/xenking/chilirig-checkout/internal/wire"
)

// Cities lists the cities served by the courier.
func (c *Client) Cities(ctx context.Context) ([]delivery.City, error) {
	return list(ctx, c, "cities", citiesPath, wire.DecodeCity)
}

// Zones lists the zones of a city.
func (c *Client) Zones(ctx context.Context, cityID int64) ([]delivery.Zone, error) {
	path := "/aladdin/api/v1/cities/" + strconv.FormatInt(cityID, 10) + "/zone-list"
	return list(ctx, c, "zones", path, wire.DecodeZone)
}

// Areas lists the areas of a zone.
func (c *Client) Areas(ctx context.Context, zoneID int64) ([]delivery.Area, error) {
	path := "/aladdin/api/v1/zones/" + strconv.FormatInt(zoneID, 10) + "/area-list"
	return list(ctx, c, "areas", path, wire.DecodeArea)
}

// list fetches a {data: {data: [...]}} collection.
func list[T any](ctx context.Context, c *Client, op, path string, dec func(*jx.Decoder) (T, error)) ([]T, error) {
	items := []T{}
	_, err := c.call(ctx, op, http.MethodGet, path, nil, func(d *jx.Decoder) error {
		return d.Obj(func(d *jx.Decoder, key string) error {
			if key != "data" || d.Next() != jx.Array {
				return d.Skip()
			}
			v, err := wire.DecodeArray(d, dec)
			if v != nil {
				items = v
			}
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}
