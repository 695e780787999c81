// Command cartsync drives the cart sync engine against a cart service from the
// shell. Each invocation hydrates the local snapshot, refreshes from the service,
// applies one command and waits for it to settle.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"

	"storefront-cart/internal/cartsync"
	"storefront-cart/internal/checkout"
	"storefront-cart/internal/config"
	"storefront-cart/internal/logger"
	"storefront-cart/internal/persist"
	"storefront-cart/internal/remote"

	"go.uber.org/zap"
)

const usage = `usage: cartsync [flags] <command> [args]

commands:
  show                 print the cart
  add <variant> [qty]  add a variant (qty defaults to 1)
  qty <item> <qty>     set a line quantity
  rm <item>            remove a line
  select <item>        toggle a line for checkout
  select-all [off]     select every line, or clear the selection
  refresh              pull the cart from the service
  checkout             print the checkout summary for the selection
`

func main() {
	configPath := flag.String("config", "", "path to config file")
	offline := flag.Bool("offline", false, "skip the initial refresh")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: "console", Output: "stderr"}).
		With(zap.String("service", "cartsync"))
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, *offline, flag.Args()); err != nil {
		log.Error("command failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger, offline bool, args []string) error {
	client, err := remote.New(remote.Config{
		BaseURL:    cfg.Remote.BaseURL,
		CustomerID: cfg.Remote.CustomerID,
		Timeout:    cfg.Remote.Timeout,
	}, log)
	if err != nil {
		return err
	}

	backend, release, err := openBackend(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open %s storage: %w", cfg.Storage.Backend, err)
	}
	defer release()

	engine := cartsync.New(client,
		cartsync.WithSnapshotStore(persist.NewPersister(backend, cfg.SnapshotKey(), log)),
		cartsync.WithLogger(log),
		cartsync.WithNotifier(cartsync.LogNotifier{Logger: log}),
		cartsync.WithRemoteTimeout(cfg.Remote.Timeout),
		cartsync.WithRollbackFailedEdits(cfg.Cart.RollbackFailedEdits),
	)
	defer engine.Close()

	if err := engine.Hydrate(ctx); err != nil {
		return fmt.Errorf("hydrate: %w", err)
	}
	if !offline && args[0] != "refresh" {
		if err := engine.Refresh(ctx); err != nil {
			log.Warn("refresh failed, showing local cart", zap.Error(err))
		}
	}

	store := engine.Store()
	limit := cfg.Cart.SelectionCap

	switch args[0] {
	case "show":
	case "add":
		variantID, err := intArg(args, 1, "variant")
		if err != nil {
			return err
		}
		qty := int64(1)
		if len(args) > 2 {
			if qty, err = intArg(args, 2, "qty"); err != nil {
				return err
			}
		}
		op, err := engine.AddItem(ctx, variantID, int(qty))
		if err := settle(ctx, op, err); err != nil {
			return err
		}
	case "qty":
		id, err := intArg(args, 1, "item")
		if err != nil {
			return err
		}
		qty, err := intArg(args, 2, "qty")
		if err != nil {
			return err
		}
		op, err := engine.UpdateQuantity(ctx, id, int(qty))
		if err := settle(ctx, op, err); err != nil {
			return err
		}
	case "rm":
		id, err := intArg(args, 1, "item")
		if err != nil {
			return err
		}
		op, err := engine.RemoveItem(ctx, id)
		if err := settle(ctx, op, err); err != nil {
			return err
		}
	case "select":
		id, err := intArg(args, 1, "item")
		if err != nil {
			return err
		}
		if err := checkout.Toggle(store, id, limit); err != nil {
			return err
		}
	case "select-all":
		if len(args) > 1 && args[1] == "off" {
			store.SelectAll(false, nil)
		} else if err := checkout.SelectAll(store, limit); err != nil {
			return err
		}
	case "refresh":
		if err := engine.Refresh(ctx); err != nil {
			return err
		}
	case "checkout":
		summary, err := checkout.Begin(store, limit)
		if err != nil {
			return err
		}
		fmt.Printf("checkout: %d lines, %d units, total %d\n", summary.Count, summary.Quantity, summary.Total)
		return nil
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}

	printCart(engine)
	return nil
}

// settle waits for a dispatched mutation and reports its outcome.
func settle(ctx context.Context, op *cartsync.Op, err error) error {
	if err != nil {
		return err
	}
	if err := op.Wait(ctx); err != nil {
		return err
	}
	if w := op.Warning(); w != nil {
		fmt.Fprintln(os.Stderr, "warning:", w)
	}
	return nil
}

func intArg(args []string, i int, name string) (int64, error) {
	if len(args) <= i {
		return 0, fmt.Errorf("missing %s argument", name)
	}
	v, err := strconv.ParseInt(args[i], 10, 64)
	if err != nil {
		return 0, errors.New("invalid " + name + ": " + args[i])
	}
	return v, nil
}

func printCart(engine *cartsync.Engine) {
	store := engine.Store()
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEL\tID\tPRODUCT\tQTY\tUNIT\tLINE")
	for _, item := range store.Items() {
		sel := " "
		if store.IsSelected(item.ID) {
			sel = "x"
		}
		name := ""
		if item.Variant.Product != nil {
			name = item.Variant.Product.Name
		}
		fmt.Fprintf(tw, "[%s]\t%d\t%s\t%d\t%d\t%d\n", sel, item.ID, name, item.Quantity, item.FinalPrice, item.LineTotal())
	}
	tw.Flush()
	fmt.Printf("items: %d  total: %d  selected: %d\n", store.ItemCount(), store.TotalPrice(), store.SelectedTotal())
}
