package orderhistory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/chilirig-checkout/internal/statestore"
)

func TestTrackingURL(t *testing.T) {
	tests := []struct {
		name   string
		order  PlacedOrder
		want   string
		wantOK bool
	}{
		{
			name:   "consignment and phone",
			order:  PlacedOrder{ConsignmentID: "DL121224VS8TTJ", Phone: "01712345678"},
			want:   "https://merchant.pathao.com/tracking?consignment_id=DL121224VS8TTJ&phone=01712345678",
			wantOK: true,
		},
		{
			name:   "phone normalized",
			order:  PlacedOrder{ConsignmentID: "DL1", Phone: "+880 1712-345678"},
			want:   "https://merchant.pathao.com/tracking?consignment_id=DL1&phone=01712345678",
			wantOK: true,
		},
		{
			name:   "id is escaped",
			order:  PlacedOrder{ConsignmentID: "A B&C", Phone: "01712345678"},
			want:   "https://merchant.pathao.com/tracking?consignment_id=A+B%26C&phone=01712345678",
			wantOK: true,
		},
		{name: "no consignment", order: PlacedOrder{Phone: "01712345678"}},
		{name: "no phone", order: PlacedOrder{ConsignmentID: "DL1"}},
		{name: "invalid phone", order: PlacedOrder{ConsignmentID: "DL1", Phone: "12345"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.order.TrackingURL()
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHistory_NewestFirstAndPersisted(t *testing.T) {
	ctx := context.Background()
	store := statestore.NewMemory()

	h, err := Load(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, 0, h.Len())

	total := decimal.RequireFromString("1070.71")
	first := PlacedOrder{
		OrderID:       "CR-20260102-AAAA",
		Date:          time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC),
		ConsignmentID: "DL1",
		Phone:         "01712345678",
		Total:         &total,
		ItemsSummary:  "Chili Oil × 2",
	}
	second := PlacedOrder{
		OrderID: "CR-20260103-BBBB",
		Date:    time.Date(2026, 1, 3, 9, 30, 0, 0, time.UTC),
	}
	require.NoError(t, h.Add(ctx, first))
	require.NoError(t, h.Add(ctx, second))

	orders := h.Orders()
	require.Len(t, orders, 2)
	assert.Equal(t, "CR-20260103-BBBB", orders[0].OrderID)
	assert.Equal(t, "CR-20260102-AAAA", orders[1].OrderID)

	raw, err := store.Load(ctx, statestore.OrdersKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"orders":[
		{"orderId":"CR-20260103-BBBB","date":"2026-01-03T09:30:00.000Z","pathaoConsignmentId":null,"orderPhone":null},
		{"orderId":"CR-20260102-AAAA","date":"2026-01-02T10:00:00.000Z","pathaoConsignmentId":"DL1",
		 "orderPhone":"01712345678","total":1070.71,"itemsSummary":"Chili Oil × 2"}
	]}`, string(raw))

	reloaded, err := Load(ctx, store)
	require.NoError(t, err)
	got, ok := reloaded.Find("CR-20260102-AAAA")
	require.True(t, ok)
	assert.Equal(t, first.Date, got.Date)
	require.NotNil(t, got.Total)
	assert.True(t, total.Equal(*got.Total))
	assert.Equal(t, "DL1", got.ConsignmentID)

	_, ok = reloaded.Find("CR-missing")
	assert.False(t, ok)
}

func TestLoad_StorefrontDocument(t *testing.T) {
	ctx := context.Background()
	store := statestore.NewMemory()
	require.NoError(t, store.Save(ctx, statestore.OrdersKey, []byte(`{"orders":[
		{"orderId":"CR-20251201-X1Y2","date":"2025-12-01T08:15:30.123Z","pathaoConsignmentId":null,"orderPhone":"01812345678"}
	]}`)))

	h, err := Load(ctx, store)
	require.NoError(t, err)
	orders := h.Orders()
	require.Len(t, orders, 1)
	assert.Nil(t, orders[0].Total)
	assert.Empty(t, orders[0].ConsignmentID)
	_, ok := orders[0].TrackingURL()
	assert.False(t, ok)
}

func TestLoad_Corrupt(t *testing.T) {
	ctx := context.Background()
	store := statestore.NewMemory()
	require.NoError(t, store.Save(ctx, statestore.OrdersKey, []byte(`{"orders":[{"date":"yesterday"}]}`)))

	_, err := Load(ctx, store)
	assert.Error(t, err)
}
