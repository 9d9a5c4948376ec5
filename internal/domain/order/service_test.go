package order

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/chilirig-checkout/internal/domain/delivery"
)

// --- Mock implementations ---

type mockProvider struct {
	lastReq   *delivery.ConsignmentRequest
	calls     int
	consign   delivery.Consignment
	createErr error
}

func (m *mockProvider) Cities(context.Context) ([]delivery.City, error) { return nil, nil }

func (m *mockProvider) Zones(context.Context, int64) ([]delivery.Zone, error) { return nil, nil }

func (m *mockProvider) Areas(context.Context, int64) ([]delivery.Area, error) { return nil, nil }

func (m *mockProvider) Price(context.Context, delivery.QuoteRequest) (delivery.Quote, error) {
	return delivery.Quote{}, nil
}

func (m *mockProvider) CreateConsignment(_ context.Context, req delivery.ConsignmentRequest) (delivery.Consignment, error) {
	m.calls++
	m.lastReq = &req
	return m.consign, m.createErr
}

type mockSink struct {
	records []Record
	err     error
}

func (m *mockSink) Append(_ context.Context, r Record) error {
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, r)
	return nil
}

// --- Helpers ---

var fixedNow = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func id(v int64) *int64 { return &v }

func validRequest() Request {
	return Request{
		Email:    "rahim@example.com",
		FullName: "  Rahim Uddin ",
		Phone:    "+880 1712-345678",
		Address:  "House 12, Road 5, Dhanmondi",
		CityID:   id(1),
		ZoneID:   id(52),
		CityName: "Dhaka",
		ZoneName: "Dhanmondi",
		Items: []Item{
			{ID: "naga-oil", Name: "Naga Chili Oil", Price: decimal.RequireFromString("450.00"), Quantity: 2},
			{ID: "crisp", Name: "Chili Crisp", Price: decimal.RequireFromString("100.00"), Quantity: 1},
		},
		Subtotal: dec("1000.00"),
		Shipping: dec("70.71"),
		Total:    dec("1070.71"),
	}
}

func newTestService(t *testing.T, provider delivery.Provider, sink AuditSink) *Service {
	t.Helper()
	svc, err := NewService(delivery.NewDispatcher(provider, 777), sink, WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	return svc
}

// --- Tests ---

func TestPlaceOrder_MissingFields(t *testing.T) {
	tests := []struct {
		field  string
		mutate func(r *Request)
	}{
		{"email", func(r *Request) { r.Email = "" }},
		{"fullName", func(r *Request) { r.FullName = "   " }},
		{"phone", func(r *Request) { r.Phone = "" }},
		{"address", func(r *Request) { r.Address = "" }},
		{"city_id", func(r *Request) { r.CityID = nil }},
		{"zone_id", func(r *Request) { r.ZoneID = nil }},
		{"city_name", func(r *Request) { r.CityName = "" }},
		{"zone_name", func(r *Request) { r.ZoneName = "" }},
		{"items", func(r *Request) { r.Items = nil }},
		{"subtotal", func(r *Request) { r.Subtotal = nil }},
		{"total", func(r *Request) { r.Total = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			sink := &mockSink{}
			svc := newTestService(t, nil, sink)

			req := validRequest()
			tt.mutate(&req)
			_, err := svc.PlaceOrder(context.Background(), req)

			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
			assert.Equal(t, "Missing or invalid order field: "+tt.field, vErr.Message)
			assert.Empty(t, sink.records)
		})
	}
}

func TestPlaceOrder_InvalidPhone(t *testing.T) {
	svc := newTestService(t, nil, &mockSink{})

	req := validRequest()
	req.Phone = "123456789"
	_, err := svc.PlaceOrder(context.Background(), req)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "phone", vErr.Field)
	assert.Equal(t, MsgInvalidPhone, vErr.Message)
}

func TestPlaceOrder_ItemValidation(t *testing.T) {
	tests := []struct {
		name   string
		field  string
		mutate func(r *Request)
	}{
		{"zero quantity", "items", func(r *Request) { r.Items[0].Quantity = 0 }},
		{"negative price", "items", func(r *Request) { r.Items[1].Price = decimal.NewFromInt(-1) }},
		{"subtotal mismatch", "subtotal", func(r *Request) { r.Subtotal = dec("999.99") }},
		{"total mismatch", "total", func(r *Request) { r.Total = dec("1060.00") }},
		{"total below subtotal", "total", func(r *Request) { r.Shipping = nil; r.Total = dec("900") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, nil, &mockSink{})
			req := validRequest()
			tt.mutate(&req)

			_, err := svc.PlaceOrder(context.Background(), req)

			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestPlaceOrder_ProviderDisabled(t *testing.T) {
	sink := &mockSink{}
	svc := newTestService(t, nil, sink)

	result, err := svc.PlaceOrder(context.Background(), validRequest())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(result.OrderID, "CR-20260314-"))
	assert.Empty(t, result.ConsignmentID)
	assert.Empty(t, result.DeliveryWarning)

	require.Len(t, sink.records, 1)
	rec := sink.records[0]
	assert.Equal(t, result.OrderID, rec.OrderID)
	assert.Equal(t, fixedNow, rec.Date)
	assert.Equal(t, "01712345678", rec.Phone)
	assert.Equal(t, "Naga Chili Oil × 2 | Chili Crisp × 1", rec.Items)
	assert.Equal(t, StatusNew, rec.Status)
	assert.Empty(t, rec.ConsignmentID)
	assert.True(t, decimal.RequireFromString("70.71").Equal(rec.Shipping))
	assert.True(t, decimal.RequireFromString("1.5").Equal(rec.Weight))
}

func TestPlaceOrder_ConsignmentCreated(t *testing.T) {
	provider := &mockProvider{consign: delivery.Consignment{ID: "DL121224VS8TTJ"}}
	sink := &mockSink{}
	svc := newTestService(t, provider, sink)

	req := validRequest()
	req.SecondaryPhone = "01812-345678"
	req.AreaName = "Road 5"
	result, err := svc.PlaceOrder(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "DL121224VS8TTJ", result.ConsignmentID)
	assert.Empty(t, result.DeliveryWarning)

	require.NotNil(t, provider.lastReq)
	got := provider.lastReq
	assert.Equal(t, int64(777), got.StoreID)
	assert.Equal(t, result.OrderID, got.MerchantOrderID)
	assert.Equal(t, "Rahim Uddin", got.RecipientName)
	assert.Equal(t, "01712345678", got.RecipientPhone)
	assert.Equal(t, "01812345678", got.RecipientSecondaryPhone)
	assert.Equal(t, "House 12, Road 5, Dhanmondi, Road 5, Dhanmondi, Dhaka", got.RecipientAddress)
	assert.Equal(t, int64(1), got.RecipientCity)
	assert.Equal(t, int64(52), got.RecipientZone)
	assert.Zero(t, got.RecipientArea)
	assert.Equal(t, delivery.DeliveryTypeNormal, got.DeliveryType)
	assert.Equal(t, delivery.ItemTypeParcel, got.ItemType)
	assert.Equal(t, 1, got.ItemQuantity)
	assert.Equal(t, "1.5", got.ItemWeight)
	assert.Equal(t, int64(1071), got.AmountToCollect)
	assert.Equal(t, "Naga Chili Oil × 2 | Chili Crisp × 1", got.ItemDescription)

	require.Len(t, sink.records, 1)
	assert.Equal(t, "DL121224VS8TTJ", sink.records[0].ConsignmentID)
	assert.Equal(t, "01812345678", sink.records[0].SecondaryPhone)
}

func TestPlaceOrder_InvalidSecondaryPhoneDropped(t *testing.T) {
	provider := &mockProvider{consign: delivery.Consignment{ID: "C1"}}
	sink := &mockSink{}
	svc := newTestService(t, provider, sink)

	req := validRequest()
	req.SecondaryPhone = "12345"
	_, err := svc.PlaceOrder(context.Background(), req)
	require.NoError(t, err)

	assert.Empty(t, provider.lastReq.RecipientSecondaryPhone)
	assert.Empty(t, sink.records[0].SecondaryPhone)
}

func TestPlaceOrder_LongSummaryFallsBackToOrderID(t *testing.T) {
	provider := &mockProvider{consign: delivery.Consignment{ID: "C1"}}
	svc := newTestService(t, provider, &mockSink{})

	req := validRequest()
	req.Items = nil
	for i := range 20 {
		req.Items = append(req.Items, Item{
			ID:       "sku-" + strings.Repeat("x", i),
			Name:     "Ghost Pepper Sauce Extra Hot",
			Price:    decimal.NewFromInt(10),
			Quantity: 1,
		})
	}
	req.Subtotal = dec("200")
	req.Shipping = dec("0")
	req.Total = dec("200")

	result, err := svc.PlaceOrder(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Order "+result.OrderID, provider.lastReq.ItemDescription)
	assert.Equal(t, "10", provider.lastReq.ItemWeight)
}

func TestPlaceOrder_AreaSentWhenSelected(t *testing.T) {
	provider := &mockProvider{consign: delivery.Consignment{ID: "C1"}}
	svc := newTestService(t, provider, &mockSink{})

	req := validRequest()
	req.AreaID = 11
	_, err := svc.PlaceOrder(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int64(11), provider.lastReq.RecipientArea)
}

func TestPlaceOrder_ProviderError(t *testing.T) {
	provider := &mockProvider{createErr: errors.New("pathao order failed: store not found")}
	sink := &mockSink{}
	svc := newTestService(t, provider, sink)

	result, err := svc.PlaceOrder(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Empty(t, result.ConsignmentID)
	assert.Equal(t, "pathao order failed: store not found", result.DeliveryWarning)

	require.Len(t, sink.records, 1)
	assert.Empty(t, sink.records[0].ConsignmentID)
}

func TestPlaceOrder_AddressTooShortSkipsProvider(t *testing.T) {
	provider := &mockProvider{consign: delivery.Consignment{ID: "C1"}}
	sink := &mockSink{}
	svc := newTestService(t, provider, sink)

	req := validRequest()
	req.Address = "H1"
	req.CityName = "C"
	req.ZoneName = "Z"
	result, err := svc.PlaceOrder(context.Background(), req)
	require.NoError(t, err)

	assert.Zero(t, provider.calls)
	assert.Equal(t, delivery.ErrAddressLength.Error(), result.DeliveryWarning)
	require.Len(t, sink.records, 1)
}

func TestPlaceOrder_AuditFailure(t *testing.T) {
	provider := &mockProvider{consign: delivery.Consignment{ID: "C1"}}
	svc := newTestService(t, provider, &mockSink{err: errors.New("sheet returned 500")})

	result, err := svc.PlaceOrder(context.Background(), validRequest())
	require.Error(t, err)
	assert.Nil(t, result)

	var aErr *AuditSinkError
	require.ErrorAs(t, err, &aErr)
	assert.True(t, strings.HasPrefix(aErr.OrderID, "CR-"))
	assert.Contains(t, err.Error(), "sheet returned 500")
}

func TestRecipientAddress(t *testing.T) {
	assert.Equal(t, "12 Lake Rd, Gulshan, Dhaka", RecipientAddress("12 Lake Rd", "", "Gulshan", " Dhaka "))
	assert.Empty(t, RecipientAddress("", " ", ""))
}
