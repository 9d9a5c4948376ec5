package geo

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/chilirig-checkout/internal/domain/delivery"
)

// Crawl walks the whole hierarchy of g. Zones and areas are fetched with at
// most concurrency requests in flight. Any failure aborts the crawl.
func Crawl(ctx context.Context, g delivery.Geography, concurrency int, now time.Time) (*Snapshot, error) {
	cities, err := g.Cities(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list cities")
	}
	if concurrency < 1 {
		concurrency = 1
	}

	nodes := make([]CityNode, len(cities))
	for i, c := range cities {
		nodes[i].City = c
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(concurrency)
	for i := range nodes {
		eg.Go(func() error {
			zones, err := g.Zones(egCtx, nodes[i].ID)
			if err != nil {
				return errors.Wrapf(err, "list zones of city %d", nodes[i].ID)
			}
			nodes[i].Zones = make([]ZoneNode, len(zones))
			for j, z := range zones {
				nodes[i].Zones[j].Zone = z
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	// The first group's context is done once Wait returns.
	eg, egCtx = errgroup.WithContext(ctx)
	eg.SetLimit(concurrency)
	for i := range nodes {
		for j := range nodes[i].Zones {
			z := &nodes[i].Zones[j]
			eg.Go(func() error {
				areas, err := g.Areas(egCtx, z.ID)
				if err != nil {
					return errors.Wrapf(err, "list areas of zone %d", z.ID)
				}
				z.Areas = areas
				return nil
			})
		}
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return NewSnapshot(now, nodes), nil
}
