// Package audit implements order.AuditSink: an HTTP webhook in the style of
// a spreadsheet script endpoint, a log-only fallback and a fan-out.
package audit

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/chilirig-checkout/internal/domain/order"
	"github.com/xenking/chilirig-checkout/internal/wire"
)

const maxErrorBody = 512

// StatusError is a non-2xx answer from the webhook.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return "webhook returned " + http.StatusText(e.Status) + ": " + e.Body
}

// Webhook posts each record as a JSON object.
type Webhook struct {
	url    string
	client *http.Client
}

var _ order.AuditSink = (*Webhook)(nil)

// NewWebhook creates a Webhook sink. A nil client uses http.DefaultClient.
func NewWebhook(url string, client *http.Client) *Webhook {
	if client == nil {
		client = http.DefaultClient
	}
	return &Webhook{url: url, client: client}
}

// Append posts r and fails on any non-2xx status.
func (w *Webhook) Append(ctx context.Context, r order.Record) error {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	wire.EncodeRecord(e, r)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(e.Bytes()))
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "post record")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		zctx.From(ctx).Error("Audit webhook rejected order",
			zap.String("order_id", r.OrderID),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body),
		)
		return &StatusError{Status: resp.StatusCode, Body: string(body)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Log writes records to the request logger only. It never fails and is meant
// for local development.
type Log struct{}

var _ order.AuditSink = Log{}

// Append logs r.
func (Log) Append(ctx context.Context, r order.Record) error {
	zctx.From(ctx).Info("No audit sink configured, order logged",
		zap.String("order_id", r.OrderID),
		zap.String("date", wire.FormatTime(r.Date)),
		zap.String("email", r.Email),
		zap.String("phone", r.Phone),
		zap.String("city", r.City),
		zap.String("zone", r.Zone),
		zap.String("items", r.Items),
		zap.Stringer("total", r.Total),
		zap.String("consignment_id", r.ConsignmentID),
	)
	return nil
}

// Mirrored makes Primary the system of record. A record is placed once
// Primary holds it; Mirrors get a copy afterwards and their failures are only
// logged, so a retried checkout never duplicates a stored sale.
type Mirrored struct {
	Primary order.AuditSink
	Mirrors []order.AuditSink
}

var _ order.AuditSink = Mirrored{}

// Append stores r in Primary, then copies it to every mirror.
func (m Mirrored) Append(ctx context.Context, r order.Record) error {
	if err := m.Primary.Append(ctx, r); err != nil {
		return err
	}
	for i, mirror := range m.Mirrors {
		if err := mirror.Append(ctx, r); err != nil {
			zctx.From(ctx).Warn("Audit mirror failed",
				zap.Int("mirror", i),
				zap.String("order_id", r.OrderID),
				zap.Error(err),
			)
		}
	}
	return nil
}

// Combine returns the sink for the given configured sinks: the log sink
// when there are none, the single sink itself, or the first sink mirrored
// to the rest.
func Combine(sinks ...order.AuditSink) order.AuditSink {
	switch len(sinks) {
	case 0:
		return Log{}
	case 1:
		return sinks[0]
	default:
		return Mirrored{Primary: sinks[0], Mirrors: sinks[1:]}
	}
}
