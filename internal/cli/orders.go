package cli

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"

	"github.com/xenking/chilirig-checkout/internal/orderhistory"
)

func newOrdersCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "orders [order_id]",
		Short: "List placed orders with their tracking links",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orders := e.history.Orders()
			if len(args) == 1 {
				o, ok := e.history.Find(args[0])
				if !ok {
					return errors.Errorf("order %s not found", args[0])
				}
				orders = []orderhistory.PlacedOrder{o}
			}
			_, err := fmt.Fprint(cmd.OutOrStdout(), renderOrders(orders))
			return err
		},
	}
}
