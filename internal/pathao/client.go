// Package pathao is a client for the Pathao Courier merchant API. It
// implements delivery.Provider.
package pathao

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xenking/chilirig-checkout/internal/domain/delivery"
)

// DefaultBaseURL is the courier sandbox.
const DefaultBaseURL = "https://courier-api-sandbox.pathao.com"

const (
	tokenPath  = "/aladdin/api/v1/issue-token"
	ordersPath = "/aladdin/api/v1/orders"
	pricePath  = "/aladdin/api/v1/merchant/price-plan"
	citiesPath = "/aladdin/api/v1/city-list"

	// tokenSkew refreshes tokens slightly before the courier expires them.
	tokenSkew    = time.Minute
	defaultTTL   = time.Hour
	maxErrorBody = 200
)

// ErrCredentials is returned by New when any credential is missing.
var ErrCredentials = errors.New("pathao client id, client secret, username and password are required")

// Credentials are the password-grant credentials of a merchant account.
type Credentials struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
}

// Complete reports whether every credential is set.
func (c Credentials) Complete() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.Username != "" && c.Password != ""
}

// Config configures a Client.
type Config struct {
	BaseURL     string
	Credentials Credentials
	// StoreID is required for price quotes and consignments.
	StoreID    int64
	HTTPClient *http.Client
	Now        func() time.Time
}

// Client talks to the courier API. Access tokens are cached until shortly
// before expiry and concurrent refreshes share a single request.
type Client struct {
	baseURL string
	creds   Credentials
	storeID int64
	http    *http.Client
	now     func() time.Time

	sf      singleflight.Group
	mu      sync.Mutex
	token   string
	expires time.Time
}

var _ delivery.Provider = (*Client)(nil)

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if !cfg.Credentials.Complete() {
		return nil, ErrCredentials
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		creds:   cfg.Credentials,
		storeID: cfg.StoreID,
		http:    cfg.HTTPClient,
		now:     cfg.Now,
	}, nil
}

// NewHTTPClient returns an instrumented HTTP client for outbound calls.
func NewHTTPClient(timeout time.Duration, tp trace.TracerProvider, mp metric.MeterProvider) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithTracerProvider(tp),
			otelhttp.WithMeterProvider(mp),
		),
	}
}

// StoreID returns the merchant store the client quotes and ships for.
func (c *Client) StoreID() int64 {
	return c.storeID
}

// Ping verifies the credentials by obtaining an access token. A cached token
// counts as success.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.accessToken(ctx)
	return err
}

// accessToken returns a cached token or issues a new one.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	if tok, ok := c.cachedToken(); ok {
		return tok, nil
	}

	v, err, _ := c.sf.Do("token", func() (any, error) {
		if tok, ok := c.cachedToken(); ok {
			return tok, nil
		}
		return c.issueToken(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) cachedToken() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.now().Before(c.expires) {
		return c.token, true
	}
	return "", false
}

func (c *Client) issueToken(ctx context.Context) (string, error) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.FieldStart("client_id")
		e.Str(c.creds.ClientID)
		e.FieldStart("client_secret")
		e.Str(c.creds.ClientSecret)
		e.FieldStart("grant_type")
		e.Str("password")
		e.FieldStart("username")
		e.Str(c.creds.Username)
		e.FieldStart("password")
		e.Str(c.creds.Password)
	})

	status, body, err := c.send(ctx, http.MethodPost, tokenPath, "", e.Bytes())
	if err != nil {
		return "", &delivery.ProviderError{Op: "token", Message: err.Error()}
	}
	if status < 200 || status > 299 {
		return "", &delivery.ProviderError{Op: "token", Status: status, Message: errorMessage(body)}
	}

	var (
		token string
		ttl   int64
	)
	if err := jx.DecodeBytes(body).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "access_token":
			v, err := d.Str()
			token = v
			return err
		case "expires_in":
			v, err := d.Int64()
			ttl = v
			return err
		default:
			return d.Skip()
		}
	}); err != nil {
		return "", &delivery.ProviderError{Op: "token", Status: status, Message: "response was not valid JSON"}
	}
	if token == "" {
		return "", &delivery.ProviderError{Op: "token", Status: status, Message: "response missing access_token"}
	}

	lifetime := defaultTTL
	if ttl > 0 {
		lifetime = time.Duration(ttl) * time.Second
	}
	c.mu.Lock()
	c.token = token
	c.expires = c.now().Add(lifetime - tokenSkew)
	c.mu.Unlock()

	zctx.From(ctx).Debug("Issued courier token", zap.Duration("ttl", lifetime))
	return token, nil
}

// invalidate drops the cached token after the courier rejected it.
func (c *Client) invalidate(token string) {
	c.mu.Lock()
	if c.token == token {
		c.token = ""
	}
	c.mu.Unlock()
}

// call performs an authenticated request and returns the envelope.
func (c *Client) call(ctx context.Context, op, method, path string, body []byte, data func(d *jx.Decoder) error) (envelope, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return envelope{}, err
	}

	status, raw, err := c.send(ctx, method, path, token, body)
	if err != nil {
		return envelope{}, &delivery.ProviderError{Op: op, Message: err.Error()}
	}
	if status == http.StatusUnauthorized {
		c.invalidate(token)
	}

	env, err := decodeEnvelope(raw, data)
	if err != nil {
		return envelope{}, &delivery.ProviderError{Op: op, Status: status, Message: truncate(string(raw))}
	}
	if status < 200 || status > 299 || env.Type != "success" {
		msg := env.Message
		if msg == "" {
			msg = env.Type
		}
		if msg == "" {
			msg = http.StatusText(status)
		}
		return envelope{}, &delivery.ProviderError{Op: op, Status: status, Message: msg}
	}
	return env, nil
}

func (c *Client) send(ctx context.Context, method, path, token string, body []byte) (int, []byte, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return 0, nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, errors.Wrap(err, "send request")
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, errors.Wrap(err, "read response")
	}
	return resp.StatusCode, raw, nil
}

// envelope is the courier's response wrapper.
type envelope struct {
	Type    string
	Code    int
	Message string
}

func decodeEnvelope(raw []byte, data func(d *jx.Decoder) error) (envelope, error) {
	var env envelope
	err := jx.DecodeBytes(raw).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "type":
			return decodeStr(d, &env.Type)
		case "message":
			return decodeStr(d, &env.Message)
		case "code":
			if d.Next() != jx.Number {
				return d.Skip()
			}
			v, err := d.Int()
			env.Code = v
			return err
		case "data":
			if data == nil || d.Next() != jx.Object {
				return d.Skip()
			}
			return data(d)
		default:
			return d.Skip()
		}
	})
	return env, err
}

func decodeStr(d *jx.Decoder, dst *string) error {
	if d.Next() != jx.String {
		return d.Skip()
	}
	v, err := d.Str()
	*dst = v
	return err
}

// errorMessage extracts message or error from a JSON error body.
func errorMessage(raw []byte) string {
	var msg, alt string
	if err := jx.DecodeBytes(raw).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "message":
			return decodeStr(d, &msg)
		case "error":
			return decodeStr(d, &alt)
		default:
			return d.Skip()
		}
	}); err != nil {
		return truncate(string(raw))
	}
	if msg == "" {
		msg = alt
	}
	if msg == "" {
		msg = truncate(string(raw))
	}
	return msg
}

func truncate(s string) string {
	if len(s) > maxErrorBody {
		return s[:maxErrorBody]
	}
	return s
}
