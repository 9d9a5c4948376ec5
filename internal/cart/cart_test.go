package cart

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/chilirig-checkout/internal/statestore"
)

var (
	chiliOil = Item{ID: "chili-oil", Name: "Chili Oil", Price: decimal.RequireFromString("450.00"), Image: "/img/oil.png"}
	crisp    = Item{ID: "chili-crisp", Name: "Chili Crisp", Price: decimal.RequireFromString("520.50")}
)

type failingStore struct {
	statestore.Store
	err error
}

func (f failingStore) Save(context.Context, string, []byte) error { return f.err }

func newCart(t *testing.T, store statestore.Store) *Cart {
	t.Helper()
	c, err := Load(context.Background(), store)
	require.NoError(t, err)
	return c
}

func TestAdd_MergesSameID(t *testing.T) {
	ctx := context.Background()
	c := newCart(t, statestore.NewMemory())

	require.NoError(t, c.Add(ctx, chiliOil, 1))
	require.NoError(t, c.Add(ctx, crisp, 2))
	require.NoError(t, c.Add(ctx, chiliOil, 3))

	items := c.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "chili-oil", items[0].ID)
	assert.Equal(t, 4, items[0].Quantity)
	assert.Equal(t, 2, items[1].Quantity)
	assert.Equal(t, 6, c.ItemCount())
}

func TestAdd_DefaultsToOneUnit(t *testing.T) {
	c := newCart(t, statestore.NewMemory())
	require.NoError(t, c.Add(context.Background(), chiliOil, 0))
	assert.Equal(t, 1, c.ItemCount())
}

func TestAdd_Invalid(t *testing.T) {
	c := newCart(t, statestore.NewMemory())
	ctx := context.Background()

	assert.ErrorIs(t, c.Add(ctx, Item{Name: "no id", Price: decimal.NewFromInt(1)}, 1), ErrInvalidItem)
	assert.ErrorIs(t, c.Add(ctx, Item{ID: "x", Price: decimal.NewFromInt(-1)}, 1), ErrInvalidItem)
	assert.True(t, c.Empty())
}

func TestUpdateQuantity(t *testing.T) {
	ctx := context.Background()
	c := newCart(t, statestore.NewMemory())
	require.NoError(t, c.Add(ctx, chiliOil, 1))
	require.NoError(t, c.Add(ctx, crisp, 1))

	require.NoError(t, c.UpdateQuantity(ctx, "chili-crisp", 5))
	assert.Equal(t, 6, c.ItemCount())

	require.NoError(t, c.UpdateQuantity(ctx, "chili-oil", 0))
	items := c.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "chili-crisp", items[0].ID)

	require.NoError(t, c.UpdateQuantity(ctx, "chili-crisp", -2))
	assert.True(t, c.Empty())

	require.NoError(t, c.UpdateQuantity(ctx, "unknown", 3))
}

func TestRemoveAndClear(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	c, err := Load(ctx, statestore.NewMemory(), WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	require.NoError(t, c.Add(ctx, chiliOil, 1))
	require.NoError(t, c.Add(ctx, crisp, 1))
	assert.Equal(t, now, c.LastAddedAt())

	require.NoError(t, c.Remove(ctx, "chili-oil"))
	require.NoError(t, c.Remove(ctx, "chili-oil"))
	assert.Equal(t, 1, c.ItemCount())

	require.NoError(t, c.Clear(ctx))
	assert.True(t, c.Empty())
	assert.True(t, c.LastAddedAt().IsZero())
}

func TestTotals(t *testing.T) {
	ctx := context.Background()
	c := newCart(t, statestore.NewMemory())

	assert.True(t, c.Subtotal().IsZero())
	assert.Equal(t, "0.5", c.Weight().String(), "empty cart still weighs the minimum")

	require.NoError(t, c.Add(ctx, chiliOil, 2))
	require.NoError(t, c.Add(ctx, crisp, 1))

	assert.Equal(t, "1420.5", c.Subtotal().String())
	assert.Equal(t, "1.5", c.Weight().String())

	items := c.OrderItems()
	require.Len(t, items, 2)
	assert.Equal(t, 2, items[0].Quantity)
	assert.True(t, items[1].Price.Equal(decimal.RequireFromString("520.5")))
}

func TestItems_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	c := newCart(t, statestore.NewMemory())
	require.NoError(t, c.Add(ctx, chiliOil, 1))

	items := c.Items()
	items[0].Quantity = 99

	assert.Equal(t, 1, c.ItemCount())
}

func TestPersistence_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := statestore.NewMemory()

	c := newCart(t, store)
	require.NoError(t, c.Add(ctx, chiliOil, 2))
	require.NoError(t, c.Add(ctx, crisp, 1))

	raw, err := store.Load(ctx, statestore.CartKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[
		{"id":"chili-oil","name":"Chili Oil","price":450,"image":"/img/oil.png","quantity":2},
		{"id":"chili-crisp","name":"Chili Crisp","price":520.5,"quantity":1}
	]}`, string(raw))

	reloaded := newCart(t, store)
	assert.Equal(t, c.ItemCount(), reloaded.ItemCount())
	assert.True(t, c.Subtotal().Equal(reloaded.Subtotal()))
	assert.Equal(t, "/img/oil.png", reloaded.Items()[0].Image)
}

func TestLoad_DropsBrokenLines(t *testing.T) {
	ctx := context.Background()
	store := statestore.NewMemory()
	require.NoError(t, store.Save(ctx, statestore.CartKey, []byte(`{"items":[
		{"id":"a","name":"A","price":"10","quantity":1},
		{"id":"","name":"B","price":10,"quantity":1},
		{"id":"c","name":"C","price":10,"quantity":0}
	],"version":0}`)))

	c := newCart(t, store)
	items := c.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "a", items[0].ID)
}

func TestLoad_Corrupt(t *testing.T) {
	ctx := context.Background()
	store := statestore.NewMemory()
	require.NoError(t, store.Save(ctx, statestore.CartKey, []byte(`{"items":`)))

	_, err := Load(ctx, store)
	assert.Error(t, err)
}

func TestSaveFailure_LeavesCartUnchanged(t *testing.T) {
	ctx := context.Background()
	mem := statestore.NewMemory()
	c := newCart(t, mem)
	require.NoError(t, c.Add(ctx, chiliOil, 1))

	c.store = failingStore{Store: mem, err: errors.New("disk full")}

	err := c.Add(ctx, crisp, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 1, c.ItemCount())

	require.Error(t, c.Clear(ctx))
	assert.False(t, c.Empty())
}
