// Package delivery defines the courier capability consumed by the checkout
// pipeline: the city → zone → area geography, route price quotes and
// consignment creation.
package delivery

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Courier enumerations used for every parcel of this store.
const (
	DeliveryTypeNormal = 48
	ItemTypeParcel     = 2
)

// City is the top level of the courier's geography.
type City struct {
	ID   int64  `json:"city_id"`
	Name string `json:"city_name"`
}

// Zone is a delivery zone inside a city.
type Zone struct {
	ID   int64  `json:"zone_id"`
	Name string `json:"zone_name"`
}

// Area is an optional refinement of a zone.
type Area struct {
	ID                    int64  `json:"area_id"`
	Name                  string `json:"area_name"`
	HomeDeliveryAvailable *bool  `json:"home_delivery_available,omitempty"`
	PickupAvailable       *bool  `json:"pickup_available,omitempty"`
}

// QuoteRequest asks for the delivery price of a parcel on a route.
type QuoteRequest struct {
	CityID int64
	ZoneID int64
	// Weight in kilograms. Zero means the courier default (0.5 kg).
	Weight decimal.Decimal
}

// Quote is the courier's price for a route.
type Quote struct {
	Price      decimal.Decimal
	CODEnabled bool
}

// ConsignmentRequest registers one parcel with the courier.
type ConsignmentRequest struct {
	StoreID                 int64
	MerchantOrderID         string
	RecipientName           string
	RecipientPhone          string
	RecipientSecondaryPhone string
	RecipientAddress        string
	RecipientCity           int64
	RecipientZone           int64
	// RecipientArea is omitted from the courier request when zero.
	RecipientArea   int64
	DeliveryType    int
	ItemType        int
	ItemQuantity    int
	ItemWeight      string
	AmountToCollect int64
	ItemDescription string
}

// Consignment is the courier's acknowledgement of a created parcel.
type Consignment struct {
	ID          string
	OrderStatus string
	DeliveryFee decimal.Decimal
}

// Geography resolves the courier's location taxonomy.
type Geography interface {
	Cities(ctx context.Context) ([]City, error)
	Zones(ctx context.Context, cityID int64) ([]Zone, error)
	Areas(ctx context.Context, zoneID int64) ([]Area, error)
}

// Provider is the full courier capability.
type Provider interface {
	Geography
	Price(ctx context.Context, req QuoteRequest) (Quote, error)
	CreateConsignment(ctx context.Context, req ConsignmentRequest) (Consignment, error)
}

// ProviderError is a failed call to the courier API.
type ProviderError struct {
	Op      string
	Status  int
	Message string
}

func (e *ProviderError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("courier %s failed: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("courier %s failed (%d): %s", e.Op, e.Status, e.Message)
}

// RouteResolutionError wraps a failed geography or price lookup.
type RouteResolutionError struct {
	Op  string
	Err error
}

func (e *RouteResolutionError) Error() string {
	return fmt.Sprintf("could not load %s: %v", e.Op, e.Err)
}

func (e *RouteResolutionError) Unwrap() error {
	return e.Err
}
