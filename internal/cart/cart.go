// Package cart is the client-side cart aggregator. The cart is loaded from a
// statestore.Store when created and saved after every mutation.
package cart

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/chilirig-checkout/internal/domain/order"
	"github.com/xenking/chilirig-checkout/internal/domain/pricing"
	"github.com/xenking/chilirig-checkout/internal/statestore"
)

// ErrInvalidItem is returned by Add for an item without an id or with a
// negative price.
var ErrInvalidItem = errors.New("cart item needs an id and a non-negative price")

// Item is a cart line.
type Item struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	Image    string
	Quantity int
}

// Cart is safe for concurrent use. Items are never exposed by reference.
type Cart struct {
	mu          sync.Mutex
	store       statestore.Store
	key         string
	items       []Item
	lastAddedAt time.Time
	now         func() time.Time
}

// Option configures a Cart.
type Option func(*Cart)

// WithClock overrides time.Now for LastAddedAt.
func WithClock(now func() time.Time) Option {
	return func(c *Cart) { c.now = now }
}

// WithKey overrides the storage key (statestore.CartKey).
func WithKey(key string) Option {
	return func(c *Cart) { c.key = key }
}

// Load restores the cart persisted in store, or starts an empty one.
func Load(ctx context.Context, store statestore.Store, opts ...Option) (*Cart, error) {
	c := &Cart{store: store, key: statestore.CartKey, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}

	data, err := store.Load(ctx, c.key)
	switch {
	case errors.Is(err, statestore.ErrNotFound):
		return c, nil
	case err != nil:
		return nil, errors.Wrap(err, "load cart")
	}
	items, err := decode(data)
	if err != nil {
		return nil, errors.Wrap(err, "decode cart")
	}
	c.items = items
	return c, nil
}

// Add puts quantity units of it in the cart. An existing line with the same
// id has its quantity increased instead. A quantity below 1 adds one unit.
func (c *Cart) Add(ctx context.Context, it Item, quantity int) error {
	if it.ID == "" || it.Price.IsNegative() {
		return ErrInvalidItem
	}
	if quantity < 1 {
		quantity = 1
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	next := slices.Clone(c.items)
	if i := c.index(it.ID); i >= 0 {
		next[i].Quantity += quantity
	} else {
		it.Quantity = quantity
		next = append(next, it)
	}
	if err := c.commit(ctx, next); err != nil {
		return err
	}
	c.lastAddedAt = c.now()
	return nil
}

// Remove drops the line with id. Unknown ids are ignored.
func (c *Cart) Remove(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.index(id)
	if i < 0 {
		return nil
	}
	return c.commit(ctx, slices.Delete(slices.Clone(c.items), i, i+1))
}

// UpdateQuantity sets the quantity of the line with id. A quantity of zero
// or less removes the line.
func (c *Cart) UpdateQuantity(ctx context.Context, id string, quantity int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.index(id)
	if i < 0 {
		return nil
	}
	next := slices.Clone(c.items)
	if quantity <= 0 {
		next = slices.Delete(next, i, i+1)
	} else {
		next[i].Quantity = quantity
	}
	return c.commit(ctx, next)
}

// Clear empties the cart.
func (c *Cart) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.commit(ctx, nil); err != nil {
		return err
	}
	c.lastAddedAt = time.Time{}
	return nil
}

// Items returns a copy of the cart lines in insertion order.
func (c *Cart) Items() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.items)
}

// Empty reports whether the cart has no lines.
func (c *Cart) Empty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items) == 0
}

// ItemCount returns the total number of units.
func (c *Cart) ItemCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, it := range c.items {
		n += it.Quantity
	}
	return n
}

// Subtotal returns Σ price × quantity at 2 decimal places.
func (c *Cart) Subtotal() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	lines := make([]pricing.Line, len(c.items))
	for i, it := range c.items {
		lines[i] = pricing.Line{UnitPrice: it.Price, Quantity: it.Quantity}
	}
	return pricing.Subtotal(lines)
}

// Weight returns the parcel weight in kilograms.
func (c *Cart) Weight() decimal.Decimal {
	return pricing.ParcelWeight(c.ItemCount())
}

// LastAddedAt is when an item was last added; zero after Clear or on a
// freshly loaded cart.
func (c *Cart) LastAddedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastAddedAt
}

// OrderItems converts the lines to order request items.
func (c *Cart) OrderItems() []order.Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]order.Item, len(c.items))
	for i, it := range c.items {
		out[i] = order.Item{ID: it.ID, Name: it.Name, Price: it.Price, Quantity: it.Quantity}
	}
	return out
}

func (c *Cart) index(id string) int {
	return slices.IndexFunc(c.items, func(it Item) bool { return it.ID == id })
}

// commit persists next and only then makes it the current state, so a
// failed save leaves the cart unchanged.
func (c *Cart) commit(ctx context.Context, next []Item) error {
	if err := c.store.Save(ctx, c.key, encode(next)); err != nil {
		return errors.Wrap(err, "save cart")
	}
	c.items = next
	return nil
}
