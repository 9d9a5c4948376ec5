package geo

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/chilirig-checkout/internal/domain/delivery"
)

// ErrNotConfigured is returned for live-only operations when no courier
// client is configured.
var ErrNotConfigured = errors.New("courier is not configured")

// ErrUnknown is returned when neither the courier nor the snapshot knows
// the requested city or zone.
var ErrUnknown = errors.New("not found in geography snapshot")

// Fallback serves geography from a snapshot when the live provider fails
// or is absent. Price and consignment calls always go to the live provider.
type Fallback struct {
	live delivery.Provider
	snap *Snapshot
}

var _ delivery.Provider = (*Fallback)(nil)

// NewFallback wraps live with snap. Either may be nil.
func NewFallback(live delivery.Provider, snap *Snapshot) *Fallback {
	if snap == nil {
		snap = NewSnapshot(time.Time{}, nil)
	}
	return &Fallback{live: live, snap: snap}
}

// Cities lists cities.
func (f *Fallback) Cities(ctx context.Context) ([]delivery.City, error) {
	var liveErr error
	if f.live != nil {
		v, err := f.live.Cities(ctx)
		if err == nil {
			return v, nil
		}
		warn(ctx, "cities", err)
		liveErr = err
	}
	if v := f.snap.CityList(); len(v) > 0 {
		return v, nil
	}
	return nil, f.miss(liveErr)
}

// Zones lists the zones of a city.
func (f *Fallback) Zones(ctx context.Context, cityID int64) ([]delivery.Zone, error) {
	var liveErr error
	if f.live != nil {
		v, err := f.live.Zones(ctx, cityID)
		if err == nil {
			return v, nil
		}
		warn(ctx, "zones", err)
		liveErr = err
	}
	if v, ok := f.snap.ZoneList(cityID); ok {
		return v, nil
	}
	return nil, f.miss(liveErr)
}

// Areas lists the areas of a zone.
func (f *Fallback) Areas(ctx context.Context, zoneID int64) ([]delivery.Area, error) {
	var liveErr error
	if f.live != nil {
		v, err := f.live.Areas(ctx, zoneID)
		if err == nil {
			return v, nil
		}
		warn(ctx, "areas", err)
		liveErr = err
	}
	if v, ok := f.snap.AreaList(zoneID); ok {
		return v, nil
	}
	return nil, f.miss(liveErr)
}

// Price quotes a route with the live provider.
func (f *Fallback) Price(ctx context.Context, req delivery.QuoteRequest) (delivery.Quote, error) {
	if f.live == nil {
		return delivery.Quote{}, ErrNotConfigured
	}
	return f.live.Price(ctx, req)
}

// CreateConsignment registers a parcel with the live provider.
func (f *Fallback) CreateConsignment(ctx context.Context, req delivery.ConsignmentRequest) (delivery.Consignment, error) {
	if f.live == nil {
		return delivery.Consignment{}, ErrNotConfigured
	}
	return f.live.CreateConsignment(ctx, req)
}

func warn(ctx context.Context, op string, err error) {
	zctx.From(ctx).Warn("Courier geography failed, serving snapshot",
		zap.String("op", op),
		zap.Error(err),
	)
}

// miss is the error for a lookup the snapshot cannot answer: the live
// failure if there was one, otherwise ErrNotConfigured when there is no data
// source at all, or ErrUnknown.
func (f *Fallback) miss(liveErr error) error {
	switch {
	case liveErr != nil:
		return liveErr
	case f.live == nil && len(f.snap.Cities) == 0:
		return ErrNotConfigured
	default:
		return ErrUnknown
	}
}
