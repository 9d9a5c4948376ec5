// Package checkout is the storefront client: it talks to the checkout API,
// resolves the delivery route and price for the cart, and submits orders.
package checkout

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/chilirig-checkout/internal/domain/delivery"
	"github.com/xenking/chilirig-checkout/internal/domain/order"
	"github.com/xenking/chilirig-checkout/internal/wire"
)

const maxResponseBytes = 4 << 20

// APIError is a response with success=false or a non-2xx status.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (%d): %s", e.Status, e.Message)
}

// API is what the checkout session needs from the server.
type API interface {
	delivery.Geography
	Price(ctx context.Context, req wire.PriceRequest) (wire.PriceResponse, error)
	PlaceOrder(ctx context.Context, req order.Request) (wire.OrderResponse, error)
}

// Client calls the checkout API over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

var _ API = (*Client)(nil)

// NewClient returns a Client for baseURL. A nil hc uses http.DefaultClient.
func NewClient(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

// Cities lists cities.
func (c *Client) Cities(ctx context.Context) ([]delivery.City, error) {
	return list(ctx, c, "/delivery/cities", wire.DecodeCity)
}

// Zones lists the zones of a city.
func (c *Client) Zones(ctx context.Context, cityID int64) ([]delivery.Zone, error) {
	return list(ctx, c, "/delivery/zones?city_id="+strconv.FormatInt(cityID, 10), wire.DecodeZone)
}

// Areas lists the areas of a zone.
func (c *Client) Areas(ctx context.Context, zoneID int64) ([]delivery.Area, error) {
	return list(ctx, c, "/delivery/areas?zone_id="+strconv.FormatInt(zoneID, 10), wire.DecodeArea)
}

// Price quotes a route.
func (c *Client) Price(ctx context.Context, req wire.PriceRequest) (wire.PriceResponse, error) {
	status, body, err := c.do(ctx, http.MethodPost, "/delivery/price", wire.Marshal(req))
	if err != nil {
		return wire.PriceResponse{}, err
	}
	resp, st, err := wire.DecodePriceResponse(body)
	if err := check(status, st, err); err != nil {
		return wire.PriceResponse{}, err
	}
	return resp, nil
}

// PlaceOrder submits an order.
func (c *Client) PlaceOrder(ctx context.Context, req order.Request) (wire.OrderResponse, error) {
	status, body, err := c.do(ctx, http.MethodPost, "/orders", wire.Marshal(wire.OrderRequest(req)))
	if err != nil {
		return wire.OrderResponse{}, err
	}
	resp, st, err := wire.DecodeOrderResponse(body)
	if err := check(status, st, err); err != nil {
		return wire.OrderResponse{}, err
	}
	return resp, nil
}

func list[T any](ctx context.Context, c *Client, path string, dec func(*jx.Decoder) (T, error)) ([]T, error) {
	status, body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	items, st, err := wire.DecodeList(body, dec)
	if err := check(status, st, err); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return 0, nil, errors.Wrap(err, "parse url")
	}
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), r)
	if err != nil {
		return 0, nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, errors.Wrapf(err, "%s %s", method, path)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, errors.Wrap(err, "read response")
	}
	return resp.StatusCode, data, nil
}

// check turns a decoded envelope into an error. A body that cannot be
// decoded is reported with the HTTP status.
func check(status int, st wire.Status, decodeErr error) error {
	ok := status >= 200 && status < 300
	switch {
	case decodeErr != nil && ok:
		return errors.Wrap(decodeErr, "decode response")
	case decodeErr != nil:
		return &APIError{Status: status, Message: http.StatusText(status)}
	case !ok || !st.Success:
		msg := st.Error
		if msg == "" {
			msg = http.StatusText(status)
		}
		return &APIError{Status: status, Message: msg}
	}
	return nil
}
