package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"

	"github.com/xenking/chilirig-checkout/internal/checkout"
	"github.com/xenking/chilirig-checkout/internal/domain/delivery"
)

func newCitiesCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "cities",
		Short: "List delivery cities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cities, err := e.session().Cities(cmd.Context())
			if err != nil {
				return err
			}
			for _, c := range cities {
				printID(cmd.OutOrStdout(), c.ID, c.Name)
			}
			return nil
		},
	}
}

func newZonesCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "zones <city_id>",
		Short: "List the delivery zones of a city",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("city_id", args[0])
			if err != nil {
				return err
			}
			zones, err := e.api.Zones(cmd.Context(), id)
			if err != nil {
				return &delivery.RouteResolutionError{Op: "zones", Err: err}
			}
			for _, z := range zones {
				printID(cmd.OutOrStdout(), z.ID, z.Name)
			}
			return nil
		},
	}
}

func newAreasCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "areas <zone_id>",
		Short: "List the areas of a delivery zone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("zone_id", args[0])
			if err != nil {
				return err
			}
			areas, err := e.api.Areas(cmd.Context(), id)
			if err != nil {
				return &delivery.RouteResolutionError{Op: "areas", Err: err}
			}
			for _, a := range areas {
				printID(cmd.OutOrStdout(), a.ID, a.Name)
			}
			return nil
		},
	}
}

// routeFlags select a delivery route by id.
type routeFlags struct {
	city int64
	zone int64
	area int64
}

func (f *routeFlags) register(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&f.city, "city", 0, "city id")
	cmd.Flags().Int64Var(&f.zone, "zone", 0, "zone id")
	cmd.Flags().Int64Var(&f.area, "area", 0, "area id (optional)")
	_ = cmd.MarkFlagRequired("city")
	_ = cmd.MarkFlagRequired("zone")
}

// apply walks the geography for the chosen ids so the session carries their
// names, the same way an interactive picker would.
func (f *routeFlags) apply(ctx context.Context, s *checkout.Session) error {
	cities, err := s.Cities(ctx)
	if err != nil {
		return err
	}
	city, ok := find(cities, f.city, func(c delivery.City) int64 { return c.ID })
	if !ok {
		return errors.Errorf("unknown city %d", f.city)
	}
	s.SelectCity(city)

	zones, err := s.Zones(ctx)
	if err != nil {
		return err
	}
	zone, ok := find(zones, f.zone, func(z delivery.Zone) int64 { return z.ID })
	if !ok {
		return errors.Errorf("unknown zone %d in city %d", f.zone, f.city)
	}
	if err := s.SelectZone(zone); err != nil {
		return err
	}

	if f.area == 0 {
		return nil
	}
	areas, err := s.Areas(ctx)
	if err != nil {
		return err
	}
	area, ok := find(areas, f.area, func(a delivery.Area) int64 { return a.ID })
	if !ok {
		return errors.Errorf("unknown area %d in zone %d", f.area, f.zone)
	}
	return s.SelectArea(area)
}

func newQuoteCmd(e *env) *cobra.Command {
	var route routeFlags
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Price the cart for a delivery route",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s := e.session()
			if err := route.apply(ctx, s); err != nil {
				return err
			}
			if _, err := s.RefreshQuote(ctx); err != nil {
				var rre *delivery.RouteResolutionError
				if !errors.As(err, &rre) {
					return err
				}
			}
			out := cmd.OutOrStdout()
			_, err := fmt.Fprintf(out, "%s\n%s", renderSelection(s.Selection()), renderBreakdown(s.Breakdown()))
			return err
		},
	}
	route.register(cmd)
	return cmd
}

func find[T any](items []T, id int64, key func(T) int64) (T, bool) {
	for _, it := range items {
		if key(it) == id {
			return it, true
		}
	}
	var zero T
	return zero, false
}

func parseID(name, s string) (int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 {
		return 0, errors.Errorf("invalid %s %q", name, s)
	}
	return v, nil
}

func printID(w io.Writer, id int64, name string) {
	_, _ = fmt.Fprintf(w, "%s %s\n", dimStyle.Render(fmt.Sprintf("%6d", id)), name)
}
