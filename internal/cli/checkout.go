package cli

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xenking/chilirig-checkout/internal/checkout"
	"github.com/xenking/chilirig-checkout/internal/domain/delivery"
)

func newCheckoutCmd(e *env) *cobra.Command {
	var (
		route   routeFlags
		contact checkout.Contact
	)
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Place a cash-on-delivery order for the cart",
		Long: "Place a cash-on-delivery order for the cart. When the delivery price " +
			"cannot be resolved the order is still placed for the subtotal.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if e.cart.Empty() {
				return checkout.ErrEmptyCart
			}
			s := e.session()
			if err := route.apply(ctx, s); err != nil {
				return err
			}
			if _, err := s.RefreshQuote(ctx); err != nil {
				var rre *delivery.RouteResolutionError
				if !errors.As(err, &rre) {
					return err
				}
				zctx.From(ctx).Warn("Checking out without delivery price", zap.Error(err))
			}

			r, err := s.Submit(ctx, contact)
			if err != nil {
				var apiErr *checkout.APIError
				if errors.As(err, &apiErr) {
					return errors.New(apiErr.Message)
				}
				return err
			}
			out := cmd.OutOrStdout()
			_, err = fmt.Fprintf(out, "%s\n%s", renderSelection(s.Selection()), renderReceipt(r))
			return err
		},
	}
	route.register(cmd)
	f := cmd.Flags()
	f.StringVar(&contact.FullName, "name", "", "full name")
	f.StringVar(&contact.Email, "email", "", "email address")
	f.StringVar(&contact.Phone, "phone", "", "mobile number")
	f.StringVar(&contact.SecondaryPhone, "secondary-phone", "", "alternative mobile number")
	f.StringVar(&contact.Address, "address", "", "delivery address")
	for _, name := range []string{"name", "email", "phone", "address"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}
