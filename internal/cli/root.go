// Package cli is the storefront command line: cart management, delivery
// route lookup, checkout and the local order history.
package cli

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xenking/chilirig-checkout/internal/cart"
	"github.com/xenking/chilirig-checkout/internal/checkout"
	"github.com/xenking/chilirig-checkout/internal/orderhistory"
	"github.com/xenking/chilirig-checkout/internal/statestore"
)

const (
	envAPIURL = "CHILIRIG_API_URL"
	envState  = "CHILIRIG_STATE"

	defaultAPIURL = "http://localhost:8080"
)

// options are the persistent flags shared by every command.
type options struct {
	apiURL  string
	state   string
	timeout time.Duration
	verbose bool
}

// env is the lazily opened client state of a single invocation.
type env struct {
	opts *options

	store   statestore.Store
	cart    *cart.Cart
	history *orderhistory.History
	api     *checkout.Client
}

func (e *env) open(ctx context.Context) error {
	if e.store != nil {
		return nil
	}
	store, err := statestore.Open(e.opts.state)
	if err != nil {
		return errors.Wrap(err, "open state")
	}
	c, err := cart.Load(ctx, store)
	if err != nil {
		return err
	}
	h, err := orderhistory.Load(ctx, store)
	if err != nil {
		return errors.Wrap(err, "load order history")
	}
	e.store, e.cart, e.history = store, c, h
	e.api = checkout.NewClient(e.opts.apiURL, &http.Client{Timeout: e.opts.timeout})
	return nil
}

func (e *env) close() {
	if c, ok := e.store.(interface{ Close() error }); ok {
		_ = c.Close()
	}
}

func (e *env) session() *checkout.Session {
	return checkout.NewSession(e.api, e.cart, e.history)
}

// defaultState is a directory under the user config dir, or the working
// directory when that is unknown.
func defaultState() string {
	if v := os.Getenv(envState); v != "" {
		return v
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".chilirig"
	}
	return filepath.Join(dir, "chilirig")
}

func defaultAPI() string {
	if v := os.Getenv(envAPIURL); v != "" {
		return v
	}
	return defaultAPIURL
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	e := &env{opts: opts}

	cmd := &cobra.Command{
		Use:           "kart",
		Short:         "Chilirig storefront client",
		Long:          "Manage the cart, look up delivery routes and prices, place cash-on-delivery orders and track them.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if opts.verbose {
				lg, err := zap.NewDevelopment()
				if err != nil {
					return errors.Wrap(err, "create logger")
				}
				ctx = zctx.Base(ctx, lg)
				cmd.SetContext(ctx)
			}
			return e.open(ctx)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			e.close()
		},
	}

	f := cmd.PersistentFlags()
	f.StringVar(&opts.apiURL, "api", defaultAPI(), "checkout API base URL (env "+envAPIURL+")")
	f.StringVar(&opts.state, "state", defaultState(), "state store: directory, file://, redis:// or memory: (env "+envState+")")
	f.DurationVar(&opts.timeout, "timeout", 30*time.Second, "API request timeout")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "log to stderr")

	cmd.AddCommand(newCartCmd(e))
	cmd.AddCommand(newCitiesCmd(e))
	cmd.AddCommand(newZonesCmd(e))
	cmd.AddCommand(newAreasCmd(e))
	cmd.AddCommand(newQuoteCmd(e))
	cmd.AddCommand(newCheckoutCmd(e))
	cmd.AddCommand(newOrdersCmd(e))
	return cmd
}

// Execute runs the command line.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}
