package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Maharab24/Bottle-Collection/internal/app"
	"github.com/Maharab24/Bottle-Collection/internal/catalog"
	"github.com/Maharab24/Bottle-Collection/internal/config"
	"github.com/Maharab24/Bottle-Collection/internal/domain"
	"github.com/Maharab24/Bottle-Collection/internal/notify"
	"github.com/Maharab24/Bottle-Collection/pkg/logger"
)

// cartStore is the part of the store the commands use.
type cartStore interface {
	Read(ctx context.Context) domain.Cart
	MergeAdd(ctx context.Context, id string, snap domain.Snapshot, delta int) (domain.Cart, error)
	SetQuantity(ctx context.Context, id string, quantity int) (domain.Cart, error)
	Remove(ctx context.Context, id string) (domain.Cart, error)
	Subscribe(fn notify.Listener) (cancel func())
	Run(ctx context.Context) error
}

// env is what a command runs against. close releases the backend.
type env struct {
	store   cartStore
	catalog func(ctx context.Context) *catalog.Catalog
	close   func() error
}

type opener func(ctx context.Context, logLevel string) (*env, error)

// openEnv opens the configured backend with a fresh origin.
func openEnv(ctx context.Context, logLevel string) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if logLevel == "" {
		logLevel = cfg.LogLevel
	}
	log := logger.NewText("cartctl", logLevel, os.Stderr)

	b, err := app.OpenBackend(ctx, cfg, uuid.NewString(), nil, log)
	if err != nil {
		return nil, err
	}
	return &env{
		store: b.Store,
		catalog: func(ctx context.Context) *catalog.Catalog {
			return catalog.Load(ctx, catalog.NewSource(cfg.CatalogSource, cfg.CatalogTimeout()), log)
		},
		close: b.Close,
	}, nil
}

func newRootCmd(open opener) *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:           "cartctl",
		Short:         "Inspect and edit the shared bottle cart",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	// with opens the backend for the duration of one command.
	var with wrapper = func(fn func(cmd *cobra.Command, e *env, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			e, err := open(cmd.Context(), logLevel)
			if err != nil {
				return err
			}
			defer func() { _ = e.close() }()
			return fn(cmd, e, args)
		}
	}

	root.AddCommand(
		newShowCmd(with),
		newAddCmd(with),
		newSetCmd(with),
		newRemoveCmd(with),
		newWatchCmd(with),
	)
	return root
}

// wrapper turns an env-taking command body into a cobra RunE.
type wrapper func(fn func(cmd *cobra.Command, e *env, args []string) error) func(*cobra.Command, []string) error

func newShowCmd(with wrapper) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the cart lines and totals",
		Args:  cobra.NoArgs,
		RunE: with(func(cmd *cobra.Command, e *env, _ []string) error {
			return printCart(cmd.OutOrStdout(), e.store.Read(cmd.Context()))
		}),
	}
}

func newAddCmd(with wrapper) *cobra.Command {
	var qty int
	cmd := &cobra.Command{
		Use:   "add <product-id>",
		Short: "Add a catalog product to the cart",
		Args:  cobra.ExactArgs(1),
		RunE: with(func(cmd *cobra.Command, e *env, args []string) error {
			if qty < 1 {
				return fmt.Errorf("quantity must be at least 1, got %d", qty)
			}
			ctx := cmd.Context()
			p, ok := e.catalog(ctx).Get(args[0])
			if !ok {
				return fmt.Errorf("unknown product %q", args[0])
			}
			cart, err := e.store.MergeAdd(ctx, p.ID, p.Snapshot(), qty)
			if err != nil {
				return err
			}
			line, _ := cart.Find(p.ID)
			fmt.Fprintf(cmd.OutOrStdout(), "%s: quantity %d (%d lines in cart)\n", line.Name, line.Quantity, cart.DistinctCount())
			return nil
		}),
	}
	cmd.Flags().IntVarP(&qty, "quantity", "q", 1, "units to add")
	return cmd
}

func newSetCmd(with wrapper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <product-id> <quantity>",
		Short: "Set the quantity of a cart line; 0 removes it",
		Args:  cobra.ExactArgs(2),
		RunE: with(func(cmd *cobra.Command, e *env, args []string) error {
			qty, err := strconv.Atoi(args[1])
			if err != nil || qty < 0 {
				return fmt.Errorf("quantity must be a non-negative integer, got %q", args[1])
			}
			ctx := cmd.Context()
			if _, ok := e.store.Read(ctx).Find(args[0]); !ok {
				return fmt.Errorf("product %q is not in the cart", args[0])
			}
			cart, err := e.store.SetQuantity(ctx, args[0], qty)
			if err != nil {
				return err
			}
			return printCart(cmd.OutOrStdout(), cart)
		}),
	}
	// Flags end at the product id, so "set b-001 -1" reaches the quantity
	// check instead of failing as an unknown shorthand.
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func newRemoveCmd(with wrapper) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <product-id>",
		Aliases: []string{"rm"},
		Short:   "Remove a line from the cart",
		Args:    cobra.ExactArgs(1),
		RunE: with(func(cmd *cobra.Command, e *env, args []string) error {
			cart, err := e.store.Remove(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printCart(cmd.OutOrStdout(), cart)
		}),
	}
}

func newWatchCmd(with wrapper) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print the line count whenever the cart changes",
		Args:  cobra.NoArgs,
		RunE: with(func(cmd *cobra.Command, e *env, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			updates := make(chan struct{}, 1)
			cancel := e.store.Subscribe(func(notify.Change) {
				select {
				case updates <- struct{}{}:
				default:
				}
			})
			defer cancel()

			errc := make(chan error, 1)
			go func() { errc <- e.store.Run(ctx) }()

			fmt.Fprintf(out, "lines: %d\n", e.store.Read(ctx).DistinctCount())
			for {
				select {
				case <-ctx.Done():
					return nil
				case err := <-errc:
					if err != nil && ctx.Err() == nil {
						return fmt.Errorf("listen for changes: %w", err)
					}
					return nil
				case <-updates:
					fmt.Fprintf(out, "lines: %d\n", e.store.Read(ctx).DistinctCount())
				}
			}
		}),
	}
}

func printCart(w io.Writer, cart domain.Cart) error {
	if cart.IsEmpty() {
		_, err := fmt.Fprintln(w, "cart is empty")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tQTY\tPRICE\tLINE TOTAL")
	for _, l := range cart.Items {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			l.ID, l.Name, l.Quantity, domain.FormatMoney(l.Price), domain.FormatMoney(l.LineTotal()))
	}
	fmt.Fprintln(tw)
	fmt.Fprintf(tw, "\t\t\tSubtotal\t%s\n", domain.FormatMoney(cart.Subtotal()))
	fmt.Fprintf(tw, "\t\t\tShipping\t%s\n", domain.FormatMoney(cart.ShippingTotal()))
	fmt.Fprintf(tw, "\t\t\tTotal\t%s\n", domain.FormatMoney(cart.Total()))
	return tw.Flush()
}
