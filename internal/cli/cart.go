package cli

import (
	"fmt"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/xenking/chilirig-checkout/internal/cart"
)

func newCartCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Show and edit the cart",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprint(cmd.OutOrStdout(), renderCart(e.cart))
			return err
		},
	}
	cmd.AddCommand(newCartAddCmd(e))
	cmd.AddCommand(&cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a product from the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.cart.Remove(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, err := fmt.Fprint(cmd.OutOrStdout(), renderCart(e.cart))
			return err
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "update <id> <quantity>",
		Short: "Set the quantity of a product; 0 removes it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := strconv.Atoi(args[1])
			if err != nil {
				return errors.Errorf("invalid quantity %q", args[1])
			}
			if err := e.cart.UpdateQuantity(cmd.Context(), args[0], qty); err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), renderCart(e.cart))
			return err
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := e.cart.Clear(cmd.Context()); err != nil {
				return err
			}
			_, err := fmt.Fprint(cmd.OutOrStdout(), renderCart(e.cart))
			return err
		},
	})
	return cmd
}

func newCartAddCmd(e *env) *cobra.Command {
	var (
		name  string
		price string
		image string
		qty   int
	)
	cmd := &cobra.Command{
		Use:   "add <id>",
		Short: "Add a product to the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := decimal.NewFromString(price)
			if err != nil {
				return errors.Errorf("invalid price %q", price)
			}
			if name == "" {
				name = args[0]
			}
			it := cart.Item{ID: args[0], Name: name, Price: p, Image: image}
			if err := e.cart.Add(cmd.Context(), it, qty); err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), renderCart(e.cart))
			return err
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "product name")
	cmd.Flags().StringVar(&price, "price", "", "unit price")
	cmd.Flags().StringVar(&image, "image", "", "product image URL")
	cmd.Flags().IntVarP(&qty, "quantity", "q", 1, "units to add")
	_ = cmd.MarkFlagRequired("price")
	return cmd
}
