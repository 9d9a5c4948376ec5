package audit

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xenking/chilirig-checkout/internal/domain/order"
	"github.com/xenking/chilirig-checkout/internal/wire"
)

func testRecord() order.Record {
	return order.Record{
		OrderID:  "CR-20260314-AB12",
		Date:     time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
		Email:    "rahim@example.com",
		Phone:    "01712345678",
		City:     "Dhaka",
		Items:    "Naga Chili Oil × 2",
		Subtotal: decimal.NewFromInt(900),
		Shipping: decimal.RequireFromString("66.67"),
		Total:    decimal.RequireFromString("966.67"),
		Status:   order.StatusNew,
	}
}

type recordingSink struct {
	got []string
	err error
}

func (s *recordingSink) Append(_ context.Context, r order.Record) error {
	s.got = append(s.got, r.OrderID)
	return s.err
}

func TestWebhook_Append(t *testing.T) {
	var got order.Record
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		var err error
		got, err = wire.DecodeRecord(jx.DecodeBytes(body))
		assert.NoError(t, err)
		_, _ = io.WriteString(w, `{"result":"success"}`)
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL, srv.Client()).Append(context.Background(), testRecord())
	require.NoError(t, err)
	assert.Equal(t, "CR-20260314-AB12", got.OrderID)
	assert.Equal(t, order.StatusNew, got.Status)
	assert.Empty(t, got.ConsignmentID)
	assert.True(t, decimal.RequireFromString("966.67").Equal(got.Total))
}

func TestWebhook_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, "Script error")
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL, srv.Client()).Append(context.Background(), testRecord())
	var sErr *StatusError
	require.ErrorAs(t, err, &sErr)
	assert.Equal(t, http.StatusInternalServerError, sErr.Status)
	assert.Equal(t, "Script error", sErr.Body)
}

func TestWebhook_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := NewWebhook(url, nil).Append(context.Background(), testRecord())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "post record")
}

func TestMirrored(t *testing.T) {
	primary, mirror := &recordingSink{}, &recordingSink{}
	require.NoError(t, Mirrored{Primary: primary, Mirrors: []order.AuditSink{mirror}}.Append(context.Background(), testRecord()))
	assert.Equal(t, []string{"CR-20260314-AB12"}, primary.got)
	assert.Equal(t, []string{"CR-20260314-AB12"}, mirror.got)
}

func TestMirrored_PrimaryFailureSkipsMirrors(t *testing.T) {
	primary := &recordingSink{err: errors.New("db down")}
	mirror := &recordingSink{}

	err := Mirrored{Primary: primary, Mirrors: []order.AuditSink{mirror}}.Append(context.Background(), testRecord())
	assert.EqualError(t, err, "db down")
	assert.Empty(t, mirror.got)
}

func TestMirrored_MirrorFailureKeepsOrder(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	ctx := zctx.Base(context.Background(), zap.New(core))

	primary := &recordingSink{}
	hook := &recordingSink{err: errors.New("webhook 500")}
	after := &recordingSink{}

	require.NoError(t, Combine(primary, hook, after).Append(ctx, testRecord()))
	assert.Len(t, primary.got, 1)
	assert.Len(t, hook.got, 1)
	assert.Len(t, after.got, 1)

	entries := logs.FilterMessage("Audit mirror failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "CR-20260314-AB12", entries[0].ContextMap()["order_id"])
}

func TestCombine(t *testing.T) {
	assert.IsType(t, Log{}, Combine())

	one := &recordingSink{}
	assert.Same(t, one, Combine(one))
	assert.IsType(t, Mirrored{}, Combine(one, &recordingSink{}))

	assert.NoError(t, Log{}.Append(context.Background(), testRecord()))
}
